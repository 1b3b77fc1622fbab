package models

import "time"

// Guest session lifetimes. A fresh session lasts a day; once its case has
// a judgment the session is extended so the owner can come back for plans.
const (
	SessionExpiry          = 24 * time.Hour
	SessionExpiryCompleted = 7 * 24 * time.Hour
)

// GuestSession owns quick-mode cases for unregistered visitors. Expired
// sessions are removed by the hourly cleanup job; their cases expire with
// them.
type GuestSession struct {
	ID        string  `gorm:"primaryKey;size:64"` // "guest_" + uuid
	CaseID    *string `gorm:"size:36"`
	CreatedAt time.Time
	ExpiresAt time.Time `gorm:"index"`
}

// Expired reports whether the session has passed its expiry.
func (s *GuestSession) Expired(now time.Time) bool {
	return s.ExpiresAt.Before(now)
}
