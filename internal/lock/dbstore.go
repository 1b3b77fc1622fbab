package lock

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/koguma/bearcourt/internal/models"
)

// DBStore keeps lock entries in the shared database so multiple instances
// serialize on the same keys. The primary key on lock_entries.key arbitrates
// races: the transaction that inserts first wins.
type DBStore struct {
	db *gorm.DB
}

// NewDBStore returns a Store backed by the given GORM connection.
func NewDBStore(db *gorm.DB) *DBStore {
	return &DBStore{db: db}
}

// Acquire implements Store.
func (s *DBStore) Acquire(key string, ttl time.Duration) (bool, error) {
	now := time.Now()
	acquired := false

	err := s.db.Transaction(func(tx *gorm.DB) error {
		// Expire a stale entry for this key so the insert below can win.
		if err := tx.Where("`key` = ? AND expires_at <= ?", key, now).
			Delete(&models.LockEntry{}).Error; err != nil {
			return fmt.Errorf("expire stale entry: %w", err)
		}

		var existing models.LockEntry
		result := tx.Where("`key` = ?", key).First(&existing)
		if result.Error == nil {
			return nil // held by someone else
		}
		if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return fmt.Errorf("check existing entry: %w", result.Error)
		}

		entry := models.LockEntry{Key: key, ExpiresAt: now.Add(ttl)}
		if err := tx.Create(&entry).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return nil // lost the race
			}
			return fmt.Errorf("create entry: %w", err)
		}
		acquired = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("lock: acquire %s: %w", key, err)
	}
	return acquired, nil
}

// Release implements Store.
func (s *DBStore) Release(key string) error {
	if err := s.db.Where("`key` = ?", key).Delete(&models.LockEntry{}).Error; err != nil {
		return fmt.Errorf("lock: release %s: %w", key, err)
	}
	return nil
}

// Sweep implements Sweeper.
func (s *DBStore) Sweep() (int, error) {
	result := s.db.Where("expires_at <= ?", time.Now()).Delete(&models.LockEntry{})
	if result.Error != nil {
		return 0, fmt.Errorf("lock: sweep: %w", result.Error)
	}
	return int(result.RowsAffected), nil
}
