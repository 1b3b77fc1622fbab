// Package cases creates disputes and drives their status transitions.
package cases

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/koguma/bearcourt/internal/fault"
	"github.com/koguma/bearcourt/internal/models"
	"github.com/koguma/bearcourt/internal/session"
)

// Classifier assigns one of the known dispute categories to a statement.
// *ai.Client satisfies this.
type Classifier interface {
	ClassifyCaseType(ctx context.Context, plaintiffStatement, defendantStatement string) string
}

// Service owns case lifecycle operations.
type Service struct {
	db         *gorm.DB
	classifier Classifier
}

func NewService(db *gorm.DB, classifier Classifier) *Service {
	return &Service{db: db, classifier: classifier}
}

// QuickCaseInput carries both parties' statements for a guest-session case.
type QuickCaseInput struct {
	SessionID          string
	PlaintiffStatement string
	DefendantStatement string
}

// CreateQuick creates a quick-mode case bound to a guest session. The case
// lands directly in submitted status so judgment generation can proceed
// without a separate submit step.
func (s *Service) CreateQuick(ctx context.Context, in QuickCaseInput) (*models.Case, error) {
	if _, err := session.Get(s.db, in.SessionID); err != nil {
		return nil, err
	}
	if err := validateStatement("plaintiff", in.PlaintiffStatement); err != nil {
		return nil, err
	}
	if err := validateStatement("defendant", in.DefendantStatement); err != nil {
		return nil, err
	}

	caseType := s.classifier.ClassifyCaseType(ctx, in.PlaintiffStatement, in.DefendantStatement)

	now := time.Now()
	c := &models.Case{
		ID:                 uuid.NewString(),
		Title:              makeTitle(caseType, now),
		Type:               caseType,
		Status:             models.CaseStatusSubmitted,
		Mode:               models.CaseModeQuick,
		SessionID:          &in.SessionID,
		PlaintiffStatement: in.PlaintiffStatement,
		DefendantStatement: in.DefendantStatement,
		SubmittedAt:        &now,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(c).Error; err != nil {
			return fmt.Errorf("cases: create: %w", err)
		}
		return session.LinkCase(tx, in.SessionID, c.ID)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Get loads a case by id.
func (s *Service) Get(id string) (*models.Case, error) {
	var c models.Case
	err := s.db.Where("id = ?", id).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fault.New(fault.KindNotFound, "case not found")
	}
	if err != nil {
		return nil, fmt.Errorf("cases: get %s: %w", id, err)
	}
	return &c, nil
}

// Cancel moves a case to cancelled. Only draft and submitted cases may be
// cancelled.
func (s *Service) Cancel(id string) error {
	return s.transition(id, models.CaseStatusCancelled)
}

func (s *Service) transition(id, to string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var c models.Case
		err := tx.Where("id = ?", id).First(&c).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fault.New(fault.KindNotFound, "case not found")
		}
		if err != nil {
			return fmt.Errorf("cases: transition %s: %w", id, err)
		}
		if !c.CanTransition(to) {
			return fault.New(fault.KindCaseNotReady,
				fmt.Sprintf("case %s cannot move from %s to %s", id, c.Status, to))
		}
		return tx.Model(&c).Update("status", to).Error
	})
}

func validateStatement(party, statement string) error {
	n := utf8.RuneCountInString(statement)
	if n < models.MinStatementLength || n > models.MaxStatementLength {
		return fault.New(fault.KindValidation,
			fmt.Sprintf("%s statement must be %d-%d characters, got %d",
				party, models.MinStatementLength, models.MaxStatementLength, n))
	}
	return nil
}

func makeTitle(caseType string, at time.Time) string {
	return fmt.Sprintf("%s %s", caseType, at.Format("2006-01-02 15:04"))
}
