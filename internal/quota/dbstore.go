package quota

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/koguma/bearcourt/internal/models"
)

// DBStore keeps day counters in the shared database so every instance
// draws from the same quota. Increments use an upsert with a SQL-side
// addition, so concurrent commits never lose updates.
type DBStore struct {
	db *gorm.DB
}

// NewDBStore returns a CounterStore backed by the given GORM connection.
func NewDBStore(db *gorm.DB) *DBStore {
	return &DBStore{db: db}
}

// Get implements CounterStore. Rows roll over by key, so TTL expiry is
// implicit: yesterday's row simply stops being read.
func (s *DBStore) Get(key string) (int, error) {
	var counter models.QuotaCounter
	err := s.db.Where("day = ?", dayFromKey(key)).First(&counter).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("quota: get %s: %w", key, err)
	}
	return counter.Count, nil
}

// Incr implements CounterStore. The ttl argument is ignored; day rollover
// bounds the row's relevance.
func (s *DBStore) Incr(key string, _ time.Duration) (int, error) {
	day := dayFromKey(key)
	err := s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "day"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"count":      gorm.Expr("count + 1"),
			"updated_at": time.Now(),
		}),
	}).Create(&models.QuotaCounter{Day: day, Count: 1}).Error
	if err != nil {
		return 0, fmt.Errorf("quota: increment %s: %w", key, err)
	}
	return s.Get(key)
}

// counterRetention keeps recent days around for inspection before the
// sweep removes them.
const counterRetention = 7 * 24 * time.Hour

// Sweep deletes counter rows older than the retention window.
func (s *DBStore) Sweep() (int, error) {
	cutoff := time.Now().UTC().Add(-counterRetention).Format("2006-01-02")
	result := s.db.Where("day < ?", cutoff).Delete(&models.QuotaCounter{})
	if result.Error != nil {
		return 0, fmt.Errorf("quota: sweep counters: %w", result.Error)
	}
	return int(result.RowsAffected), nil
}

// dayFromKey strips the counter prefix, leaving the YYYY-MM-DD day column.
func dayFromKey(key string) string {
	if i := strings.LastIndexByte(key, ':'); i >= 0 {
		return key[i+1:]
	}
	return key
}
