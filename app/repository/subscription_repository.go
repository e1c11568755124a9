package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/catalystschool/checkout/app/models"
)

// subscriptionRepository implements the SubscriptionRepository interface
type subscriptionRepository struct {
	db *gorm.DB
}

// NewSubscriptionRepository creates a new subscription repository instance
func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

// Create inserts a new pending subscription
func (r *subscriptionRepository) Create(sub *models.Subscription) error {
	return r.db.Create(sub).Error
}

// GetByID retrieves a subscription by its ID
func (r *subscriptionRepository) GetByID(id string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Where("id = ?", id).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// ListBySchoolID retrieves all subscriptions for a school
func (r *subscriptionRepository) ListBySchoolID(schoolID string) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.Where("school_id = ?", schoolID).Order("created_at DESC").Find(&subs).Error
	return subs, err
}

// TransitionToTrial advances pending -> trial. The status guard makes the
// update idempotent when verification and webhook race on the same row.
func (r *subscriptionRepository) TransitionToTrial(id string, trialEnd, nextBilling time.Time) (bool, error) {
	tx := r.db.Model(&models.Subscription{}).
		Where("id = ? AND status = ?", id, models.SubscriptionStatusPending).
		Updates(map[string]interface{}{
			"status":            models.SubscriptionStatusTrial,
			"trial_end_date":    trialEnd,
			"next_billing_date": nextBilling,
		})
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

// AdvanceBilling applies a recurring billing tick. The date guard keeps
// replayed subscription.charged events from advancing the date twice.
func (r *subscriptionRepository) AdvanceBilling(id string, next time.Time) (bool, error) {
	tx := r.db.Model(&models.Subscription{}).
		Where("id = ? AND status IN ? AND (next_billing_date IS NULL OR next_billing_date < ?)",
			id,
			[]string{models.SubscriptionStatusTrial, models.SubscriptionStatusActive},
			next,
		).
		Updates(map[string]interface{}{
			"status":            models.SubscriptionStatusActive,
			"next_billing_date": next,
		})
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

// Cancel marks the subscription cancelled; re-cancelling is a no-op.
func (r *subscriptionRepository) Cancel(id string) (bool, error) {
	tx := r.db.Model(&models.Subscription{}).
		Where("id = ? AND status <> ?", id, models.SubscriptionStatusCancelled).
		Update("status", models.SubscriptionStatusCancelled)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}
