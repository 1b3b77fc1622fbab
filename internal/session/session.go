// Package session manages guest sessions that own quick-mode cases.
package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/koguma/bearcourt/internal/fault"
	"github.com/koguma/bearcourt/internal/models"
)

// idPrefix marks guest session identifiers.
const idPrefix = "guest_"

// Create inserts a fresh guest session with the standard 24h expiry.
func Create(db *gorm.DB) (*models.GuestSession, error) {
	s := &models.GuestSession{
		ID:        idPrefix + uuid.NewString(),
		ExpiresAt: time.Now().Add(models.SessionExpiry),
	}
	if err := db.Create(s).Error; err != nil {
		return nil, fmt.Errorf("session: create: %w", err)
	}
	return s, nil
}

// Get loads a live session. A missing or expired session surfaces as an
// Unauthorized fault so the web layer answers 401 rather than 404.
func Get(db *gorm.DB, id string) (*models.GuestSession, error) {
	if !strings.HasPrefix(id, idPrefix) {
		return nil, fault.New(fault.KindValidation, "malformed session id")
	}

	var s models.GuestSession
	err := db.Where("id = ?", id).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fault.New(fault.KindUnauthorized, "session expired or does not exist")
	}
	if err != nil {
		return nil, fmt.Errorf("session: get %s: %w", id, err)
	}
	if s.Expired(time.Now()) {
		return nil, fault.New(fault.KindUnauthorized, "session expired or does not exist")
	}
	return &s, nil
}

// LinkCase associates the session with its case. Runs inside the case
// creation transaction.
func LinkCase(tx *gorm.DB, sessionID, caseID string) error {
	result := tx.Model(&models.GuestSession{}).Where("id = ?", sessionID).Update("case_id", caseID)
	if result.Error != nil {
		return fmt.Errorf("session: link case: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fault.New(fault.KindUnauthorized, "session expired or does not exist")
	}
	return nil
}

// MarkCompleted extends the session so the owner can return for
// reconciliation plans after their judgment lands.
func MarkCompleted(db *gorm.DB, id string) error {
	expires := time.Now().Add(models.SessionExpiryCompleted)
	if err := db.Model(&models.GuestSession{}).Where("id = ?", id).Update("expires_at", expires).Error; err != nil {
		return fmt.Errorf("session: mark completed %s: %w", id, err)
	}
	return nil
}

// CleanupExpired deletes sessions past their expiry and returns the count.
// Called hourly by the cleanup job.
func CleanupExpired(db *gorm.DB) (int, error) {
	result := db.Where("expires_at < ?", time.Now()).Delete(&models.GuestSession{})
	if result.Error != nil {
		return 0, fmt.Errorf("session: cleanup expired: %w", result.Error)
	}
	return int(result.RowsAffected), nil
}
