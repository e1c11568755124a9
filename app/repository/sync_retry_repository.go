package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/catalystschool/checkout/app/models"
)

// syncRetryRepository implements the SyncRetryRepository interface
type syncRetryRepository struct {
	db *gorm.DB
}

// NewSyncRetryRepository creates a new sync retry queue repository instance
func NewSyncRetryRepository(db *gorm.DB) SyncRetryRepository {
	return &syncRetryRepository{db: db}
}

// Enqueue inserts a new pending retry entry
func (r *syncRetryRepository) Enqueue(entry *models.SyncRetryEntry) error {
	return r.db.Create(entry).Error
}

// Due returns pending entries whose next_retry_at has passed
func (r *syncRetryRepository) Due(now time.Time, limit int) ([]models.SyncRetryEntry, error) {
	var entries []models.SyncRetryEntry
	err := r.db.
		Where("status = ? AND next_retry_at <= ?", models.SyncRetryStatusPending, now).
		Order("next_retry_at ASC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

// Reschedule bumps the retry count and pushes the next attempt out
func (r *syncRetryRepository) Reschedule(id string, retryCount int, nextRetryAt time.Time, lastError string) error {
	return r.db.Model(&models.SyncRetryEntry{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"retry_count":   retryCount,
			"next_retry_at": nextRetryAt,
			"last_error":    lastError,
		}).Error
}

// MarkCompleted records a successful sync
func (r *syncRetryRepository) MarkCompleted(id string) error {
	now := time.Now()
	return r.db.Model(&models.SyncRetryEntry{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       models.SyncRetryStatusCompleted,
			"completed_at": &now,
		}).Error
}

// MarkExhausted parks an entry after the retry ceiling for manual intervention
func (r *syncRetryRepository) MarkExhausted(id string, lastError string) error {
	return r.db.Model(&models.SyncRetryEntry{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     models.SyncRetryStatusExhausted,
			"last_error": lastError,
		}).Error
}
