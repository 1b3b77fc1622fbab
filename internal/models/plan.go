package models

import "time"

// Plan types.
const (
	PlanTypeActivity      = "activity"
	PlanTypeCommunication = "communication"
	PlanTypeIntimacy      = "intimacy"
)

// Difficulty levels, derived from the summed cost scores when the model
// does not supply one.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// ValidPlanType reports whether t is a known plan type.
func ValidPlanType(t string) bool {
	return t == PlanTypeActivity || t == PlanTypeCommunication || t == PlanTypeIntimacy
}

// ReconciliationPlan is a follow-up AI-generated suggestion for repairing
// the relationship, generated from a judgment. Cost scores are 1-5 each.
type ReconciliationPlan struct {
	ID               string `gorm:"primaryKey;size:36"`
	JudgmentID       string `gorm:"size:36;not null;index"`
	Title            string `gorm:"size:128;not null"`
	Description      string `gorm:"type:text;not null"`
	Steps            string `gorm:"type:json"` // JSON array of step strings
	ExpectedEffect   string `gorm:"type:text"`
	TimeCost         int
	MoneyCost        int
	EmotionCost      int
	SkillRequirement int
	PlanType         string `gorm:"size:16;index"`
	DifficultyLevel  string `gorm:"size:8;index"`
	EstimatedDays    int

	PlaintiffSelected bool
	DefendantSelected bool

	CreatedAt time.Time
}
