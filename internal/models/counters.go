package models

import "time"

// QuotaCounter is a day-scoped count of AI backend calls, keyed by calendar
// date so the limit rolls over at midnight without explicit resets. Used by
// the shared-backend counter store; single-instance deployments keep the
// counter in memory.
type QuotaCounter struct {
	Day       string `gorm:"primaryKey;size:10"` // YYYY-MM-DD
	Count     int    `gorm:"not null;default:0"`
	UpdatedAt time.Time
}

// LockEntry is an advisory lock row for the shared-backend lock store.
// A key is held while a non-expired row exists for it.
type LockEntry struct {
	Key       string    `gorm:"primaryKey;size:128"`
	ExpiresAt time.Time `gorm:"index"`
	CreatedAt time.Time
}
