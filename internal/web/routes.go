package web

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/koguma/bearcourt/internal/cases"
	"github.com/koguma/bearcourt/internal/fault"
	"github.com/koguma/bearcourt/internal/judge"
	"github.com/koguma/bearcourt/internal/session"
)

// registerRoutes sets up all API routes on the Gin router.
func registerRoutes(router *gin.Engine, opts StartOpts) {
	api := router.Group("/api")

	api.GET("/health", handleHealth())
	api.POST("/sessions", handleCreateSession(opts))
	api.POST("/cases/quick", handleCreateQuickCase(opts))
	api.POST("/cases/:id/judgment", handleGenerateJudgment(opts))
	api.GET("/cases/:id/judgment", handleGetJudgment(opts))
	api.POST("/judgments/:id/accept", handleAcceptJudgment(opts))
	api.POST("/judgments/:id/plans", handleGeneratePlans(opts))
	api.GET("/judgments/:id/plans", handleListPlans(opts))
	api.POST("/plans/:id/select", handleSelectPlan(opts))
}

func handleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func handleCreateSession(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := session.Create(opts.DB)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, s)
	}
}

func handleCreateQuickCase(opts StartOpts) gin.HandlerFunc {
	type request struct {
		SessionID          string `json:"session_id"`
		PlaintiffStatement string `json:"plaintiff_statement"`
		DefendantStatement string `json:"defendant_statement"`
	}
	return func(c *gin.Context) {
		var req request
		if err := c.ShouldBindJSON(&req); err != nil {
			respondErr(c, fault.New(fault.KindValidation, "invalid request body"))
			return
		}
		created, err := opts.Cases.CreateQuick(c.Request.Context(), cases.QuickCaseInput{
			SessionID:          req.SessionID,
			PlaintiffStatement: req.PlaintiffStatement,
			DefendantStatement: req.DefendantStatement,
		})
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, created)
	}
}

func handleGenerateJudgment(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		j, err := opts.Judge.GenerateJudgment(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, j)
	}
}

func handleGetJudgment(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		j, err := opts.Judge.GetJudgment(c.Param("id"))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, j)
	}
}

func handleAcceptJudgment(opts StartOpts) gin.HandlerFunc {
	type request struct {
		ActorID  string `json:"actor_id"`
		Party    string `json:"party"`
		Accepted bool   `json:"accepted"`
		Rating   *int   `json:"rating"`
	}
	return func(c *gin.Context) {
		var req request
		if err := c.ShouldBindJSON(&req); err != nil {
			respondErr(c, fault.New(fault.KindValidation, "invalid request body"))
			return
		}
		j, err := opts.Judge.Accept(judge.AcceptInput{
			JudgmentID: c.Param("id"),
			ActorID:    req.ActorID,
			Party:      req.Party,
			Accepted:   req.Accepted,
			Rating:     req.Rating,
		})
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, j)
	}
}

func handleGeneratePlans(opts StartOpts) gin.HandlerFunc {
	type request struct {
		Difficulty string   `json:"difficulty"`
		PlanTypes  []string `json:"plan_types"`
	}
	return func(c *gin.Context) {
		var req request
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				respondErr(c, fault.New(fault.KindValidation, "invalid request body"))
				return
			}
		}
		plans, err := opts.Judge.GeneratePlans(c.Request.Context(), c.Param("id"), judge.PlanPreferences{
			Difficulty: req.Difficulty,
			PlanTypes:  req.PlanTypes,
		})
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"plans": plans})
	}
}

func handleListPlans(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		prefs := judge.PlanPreferences{
			Difficulty: c.Query("difficulty"),
			PlanTypes:  c.QueryArray("plan_type"),
		}
		plans, err := opts.Judge.ListPlans(c.Param("id"), prefs)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"plans": plans})
	}
}

func handleSelectPlan(opts StartOpts) gin.HandlerFunc {
	type request struct {
		ActorID string `json:"actor_id"`
		Party   string `json:"party"`
	}
	return func(c *gin.Context) {
		var req request
		if err := c.ShouldBindJSON(&req); err != nil {
			respondErr(c, fault.New(fault.KindValidation, "invalid request body"))
			return
		}
		p, err := opts.Judge.SelectPlan(c.Param("id"), req.ActorID, req.Party)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

// respondErr translates fault kinds to HTTP statuses. Unclassified errors
// answer 500 without leaking internals.
func respondErr(c *gin.Context, err error) {
	var fe *fault.Error
	if errors.As(err, &fe) {
		c.JSON(fault.HTTPStatus(fe.Kind), gin.H{
			"code":  string(fe.Kind),
			"error": fe.Message,
		})
		return
	}
	log.Printf("web: %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	c.JSON(http.StatusInternalServerError, gin.H{
		"code":  string(fault.KindInternal),
		"error": "internal error",
	})
}
