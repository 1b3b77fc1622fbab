package judge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/koguma/bearcourt/internal/fault"
	"github.com/koguma/bearcourt/internal/models"
)

// PlanPreferences narrows generated plans. Zero values mean no filter.
type PlanPreferences struct {
	Difficulty string
	PlanTypes  []string
}

// GeneratePlans produces reconciliation plans for a judgment, or returns
// the stored ones. Plan generation takes no per-case lock: a duplicate
// concurrent call wastes one AI invocation but both batches are valid and
// the existence check keeps the steady state at one batch.
func (s *Service) GeneratePlans(ctx context.Context, judgmentID string, prefs PlanPreferences) ([]models.ReconciliationPlan, error) {
	existing, err := s.ListPlans(judgmentID, PlanPreferences{})
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return filterPlans(existing, prefs), nil
	}

	j, err := s.loadJudgment(judgmentID)
	if err != nil {
		return nil, err
	}
	c, err := s.loadCase(j.CaseID)
	if err != nil {
		return nil, err
	}

	contents, err := s.gen.GenerateReconciliationPlans(ctx, c.Type, j.Ratio(), j.Summary)
	if err != nil {
		return nil, err
	}

	plans := make([]models.ReconciliationPlan, 0, len(contents))
	for _, pc := range contents {
		steps, err := json.Marshal(pc.Steps)
		if err != nil {
			return nil, fmt.Errorf("judge: encode plan steps: %w", err)
		}
		plans = append(plans, models.ReconciliationPlan{
			ID:               uuid.NewString(),
			JudgmentID:       judgmentID,
			Title:            pc.Title,
			Description:      pc.Description,
			Steps:            string(steps),
			ExpectedEffect:   pc.ExpectedEffect,
			TimeCost:         pc.TimeCost,
			MoneyCost:        pc.MoneyCost,
			EmotionCost:      pc.EmotionCost,
			SkillRequirement: pc.SkillRequirement,
			PlanType:         pc.PlanType,
			DifficultyLevel:  pc.DifficultyLevel,
			EstimatedDays:    pc.EstimatedDays(),
		})
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(&plans).Error
	})
	if err != nil {
		return nil, fmt.Errorf("judge: insert plans: %w", err)
	}
	return filterPlans(plans, prefs), nil
}

// ListPlans returns stored plans for a judgment, optionally filtered by
// difficulty and plan type.
func (s *Service) ListPlans(judgmentID string, prefs PlanPreferences) ([]models.ReconciliationPlan, error) {
	q := s.db.Where("judgment_id = ?", judgmentID)
	if prefs.Difficulty != "" {
		q = q.Where("difficulty_level = ?", prefs.Difficulty)
	}
	if len(prefs.PlanTypes) > 0 {
		q = q.Where("plan_type IN ?", prefs.PlanTypes)
	}

	var plans []models.ReconciliationPlan
	if err := q.Order("created_at").Find(&plans).Error; err != nil {
		return nil, fmt.Errorf("judge: list plans for judgment %s: %w", judgmentID, err)
	}
	return plans, nil
}

// SelectPlan marks a plan as chosen by one party.
func (s *Service) SelectPlan(planID, actorID, party string) (*models.ReconciliationPlan, error) {
	if party != PartyPlaintiff && party != PartyDefendant {
		return nil, fault.New(fault.KindValidation, "party must be plaintiff or defendant")
	}

	var p models.ReconciliationPlan
	err := s.db.Where("id = ?", planID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fault.New(fault.KindNotFound, "plan not found")
	}
	if err != nil {
		return nil, fmt.Errorf("judge: load plan %s: %w", planID, err)
	}

	j, err := s.loadJudgment(p.JudgmentID)
	if err != nil {
		return nil, err
	}
	c, err := s.loadCase(j.CaseID)
	if err != nil {
		return nil, err
	}
	if !actorOwnsParty(c, actorID, party) {
		return nil, fault.New(fault.KindForbidden, "not a party to this judgment")
	}

	column := "plaintiff_selected"
	if party == PartyDefendant {
		column = "defendant_selected"
	}
	if err := s.db.Model(&p).Update(column, true).Error; err != nil {
		return nil, fmt.Errorf("judge: select plan %s: %w", planID, err)
	}
	return &p, nil
}

func filterPlans(plans []models.ReconciliationPlan, prefs PlanPreferences) []models.ReconciliationPlan {
	if prefs.Difficulty == "" && len(prefs.PlanTypes) == 0 {
		return plans
	}
	out := make([]models.ReconciliationPlan, 0, len(plans))
	for _, p := range plans {
		if prefs.Difficulty != "" && p.DifficultyLevel != prefs.Difficulty {
			continue
		}
		if len(prefs.PlanTypes) > 0 && !containsString(prefs.PlanTypes, p.PlanType) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
