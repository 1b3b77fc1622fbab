// Package judge orchestrates judgment generation for submitted cases.
//
// Generation is guarded by a per-case TTL lock with a double-checked
// existence test: once before the expensive AI call and once again inside
// the insert transaction. The unique index on judgments.case_id is the
// final backstop.
package judge

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/koguma/bearcourt/internal/ai"
	"github.com/koguma/bearcourt/internal/fault"
	"github.com/koguma/bearcourt/internal/lock"
	"github.com/koguma/bearcourt/internal/models"
	"github.com/koguma/bearcourt/internal/session"
)

// Generator produces judgment and plan content. *ai.Client satisfies this.
type Generator interface {
	GenerateJudgment(ctx context.Context, caseType, plaintiffStatement, defendantStatement string) (*ai.JudgmentResult, error)
	GenerateReconciliationPlans(ctx context.Context, caseType string, ratio models.ResponsibilityRatio, judgmentSummary string) ([]ai.PlanContent, error)
	Model() string
}

// Service runs the judgment pipeline.
type Service struct {
	db      *gorm.DB
	gen     Generator
	locks   lock.Store
	lockTTL time.Duration
}

func NewService(db *gorm.DB, gen Generator, locks lock.Store, lockTTL time.Duration) *Service {
	return &Service{db: db, gen: gen, locks: locks, lockTTL: lockTTL}
}

func lockKey(caseID string) string {
	return "judgment:lock:" + caseID
}

// GenerateJudgment produces the judgment for a case, or returns the
// existing one. Safe to call concurrently and repeatedly: only one caller
// generates, contenders fail fast with a LockConflict fault, and repeat
// calls after completion return the stored judgment without touching the
// AI backend.
func (s *Service) GenerateJudgment(ctx context.Context, caseID string) (*models.Judgment, error) {
	return lock.WithLock(ctx, s.locks, lockKey(caseID), s.lockTTL, func() (*models.Judgment, error) {
		if j, err := s.findByCase(caseID); err != nil {
			return nil, err
		} else if j != nil {
			return j, nil
		}

		var c models.Case
		err := s.db.Where("id = ?", caseID).First(&c).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fault.New(fault.KindNotFound, "case not found")
		}
		if err != nil {
			return nil, fmt.Errorf("judge: load case %s: %w", caseID, err)
		}
		if c.Status != models.CaseStatusSubmitted {
			return nil, fault.New(fault.KindCaseNotReady,
				fmt.Sprintf("case %s is %s, judgment requires submitted", caseID, c.Status))
		}

		res, err := s.gen.GenerateJudgment(ctx, c.Type, c.PlaintiffStatement, c.DefendantStatement)
		if err != nil {
			return nil, err
		}
		if !res.Ratio.Valid() {
			return nil, fault.New(fault.KindValidation, "responsibility ratio does not sum to 100")
		}

		j := &models.Judgment{
			ID:             uuid.NewString(),
			CaseID:         caseID,
			Content:        res.Content,
			Summary:        res.Summary,
			PlaintiffRatio: res.Ratio.Plaintiff,
			DefendantRatio: res.Ratio.Defendant,
			AIModel:        s.gen.Model(),
			PromptVersion:  ai.PromptVersion,
		}
		err = s.db.Transaction(func(tx *gorm.DB) error {
			var existing models.Judgment
			err := tx.Where("case_id = ?", caseID).First(&existing).Error
			if err == nil {
				j = &existing
				return nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("judge: recheck judgment: %w", err)
			}
			if err := tx.Create(j).Error; err != nil {
				return fmt.Errorf("judge: insert judgment: %w", err)
			}
			now := time.Now()
			return tx.Model(&models.Case{}).Where("id = ?", caseID).
				Updates(map[string]any{
					"status":       models.CaseStatusCompleted,
					"completed_at": now,
				}).Error
		})
		if err != nil {
			return nil, err
		}

		// Session extension is best effort. A failure here must not undo a
		// judgment that already landed.
		if c.Mode == models.CaseModeQuick && c.SessionID != nil {
			if err := session.MarkCompleted(s.db, *c.SessionID); err != nil {
				log.Printf("judge: extend session %s after judgment: %v", *c.SessionID, err)
			}
		}
		return j, nil
	})
}

// GetJudgment returns the stored judgment for a case.
func (s *Service) GetJudgment(caseID string) (*models.Judgment, error) {
	j, err := s.findByCase(caseID)
	if err != nil {
		return nil, err
	}
	if j == nil {
		return nil, fault.New(fault.KindNotFound, "judgment not found")
	}
	return j, nil
}

func (s *Service) findByCase(caseID string) (*models.Judgment, error) {
	var j models.Judgment
	err := s.db.Where("case_id = ?", caseID).First(&j).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("judge: find judgment for case %s: %w", caseID, err)
	}
	return &j, nil
}
