// Package web exposes the arbitration pipeline over an HTTP JSON API.
package web

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/koguma/bearcourt/internal/cases"
	"github.com/koguma/bearcourt/internal/judge"
)

// StartOpts holds configuration for the API server.
type StartOpts struct {
	DB    *gorm.DB
	Cases *cases.Service
	Judge *judge.Service
	Port  int
	Out   io.Writer
}

// Start launches the API server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.DB == nil {
		return fmt.Errorf("web: db is required")
	}
	if opts.Cases == nil || opts.Judge == nil {
		return fmt.Errorf("web: case and judge services are required")
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}

	router := newRouter(opts)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: router,
	}

	// Graceful shutdown on context cancellation.
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "API listening at http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("web: %w", err)
	}
	return nil
}

func newRouter(opts StartOpts) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	registerRoutes(router, opts)
	return router
}
