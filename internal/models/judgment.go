package models

import "time"

// ResponsibilityRatio is the two-party percentage split attached to a
// judgment. A valid ratio has non-negative parts summing to exactly 100.
type ResponsibilityRatio struct {
	Plaintiff int `json:"plaintiff"`
	Defendant int `json:"defendant"`
}

// Valid reports whether the ratio satisfies the persistence invariant.
func (r ResponsibilityRatio) Valid() bool {
	return r.Plaintiff >= 0 && r.Defendant >= 0 && r.Plaintiff+r.Defendant == 100
}

// Judgment is the AI-produced arbitration result for a case. At most one
// judgment exists per case; the unique index backs up the orchestrator's
// double-checked locking. Once created it is immutable except for the
// per-party acceptance and rating fields.
type Judgment struct {
	ID             string `gorm:"primaryKey;size:36"`
	CaseID         string `gorm:"size:36;uniqueIndex;not null"`
	Content        string `gorm:"type:mediumtext;not null"`
	Summary        string `gorm:"type:text"`
	PlaintiffRatio int    `gorm:"not null"`
	DefendantRatio int    `gorm:"not null"`
	AIModel        string `gorm:"size:64"`
	PromptVersion  string `gorm:"size:16"`

	// Last write wins on the acceptance fields; each party updates only
	// their own pair.
	PlaintiffAccepted *bool
	PlaintiffRating   *int
	DefendantAccepted *bool
	DefendantRating   *int

	CreatedAt time.Time

	Plans []ReconciliationPlan `gorm:"foreignKey:JudgmentID"`
}

// Ratio returns the persisted split as a ResponsibilityRatio.
func (j *Judgment) Ratio() ResponsibilityRatio {
	return ResponsibilityRatio{Plaintiff: j.PlaintiffRatio, Defendant: j.DefendantRatio}
}
