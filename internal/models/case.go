package models

import "time"

// Case statuses. Transitions are one-directional:
// draft -> submitted -> completed, with cancelled as a terminal escape
// from draft or submitted.
const (
	CaseStatusDraft      = "draft"
	CaseStatusSubmitted  = "submitted"
	CaseStatusInProgress = "in_progress"
	CaseStatusCompleted  = "completed"
	CaseStatusCancelled  = "cancelled"
)

// Case modes. Full cases belong to a registered plaintiff/defendant pair;
// quick cases belong to a guest session.
const (
	CaseModeFull  = "full"
	CaseModeQuick = "quick"
)

// CaseTypes is the closed taxonomy of dispute categories. The classifier
// substitutes CaseTypeOther for anything it does not recognize.
var CaseTypes = []string{
	"生活習慣衝突",
	"消費決策衝突",
	"社交關係衝突",
	"價值觀衝突",
	"情感需求衝突",
	"其他衝突",
}

// CaseTypeOther is the fallback category.
const CaseTypeOther = "其他衝突"

// ValidCaseType reports whether t is one of the six known categories.
func ValidCaseType(t string) bool {
	for _, known := range CaseTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Statement length bounds, in characters.
const (
	MinStatementLength = 50
	MaxStatementLength = 2000
)

// Case is a submitted dispute between two parties. Ownership is either a
// registered user pair (PlaintiffID/DefendantID) or a guest session
// (SessionID), mutually exclusive by Mode.
type Case struct {
	ID                 string  `gorm:"primaryKey;size:36"`
	Title              string  `gorm:"size:128"`
	Type               string  `gorm:"size:32;index"`
	Status             string  `gorm:"size:16;default:draft;index"`
	Mode               string  `gorm:"size:16;default:full"`
	PlaintiffID        *string `gorm:"size:36;index"`
	DefendantID        *string `gorm:"size:36;index"`
	SessionID          *string `gorm:"size:64;index"`
	PlaintiffStatement string  `gorm:"type:text;not null"`
	DefendantStatement string  `gorm:"type:text"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
	SubmittedAt        *time.Time
	CompletedAt        *time.Time

	Judgment *Judgment `gorm:"foreignKey:CaseID"`
}

// CanTransition reports whether a case may move from its current status to
// the target status.
func (c *Case) CanTransition(to string) bool {
	switch to {
	case CaseStatusSubmitted:
		return c.Status == CaseStatusDraft
	case CaseStatusCompleted:
		return c.Status == CaseStatusSubmitted
	case CaseStatusCancelled:
		return c.Status == CaseStatusDraft || c.Status == CaseStatusSubmitted
	default:
		return false
	}
}
