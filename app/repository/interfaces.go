package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/catalystschool/checkout/app/models"
)

// SubscriptionRepository defines the interface for subscription database operations
type SubscriptionRepository interface {
	Create(sub *models.Subscription) error
	GetByID(id string) (*models.Subscription, error)
	ListBySchoolID(schoolID string) ([]models.Subscription, error)
	// TransitionToTrial advances a pending subscription to trial and stamps
	// trial/billing dates. Returns false when the subscription already left
	// pending, so replayed events stay no-ops.
	TransitionToTrial(id string, trialEnd, nextBilling time.Time) (bool, error)
	// AdvanceBilling applies a recurring billing tick: status becomes active
	// and next_billing_date moves to next, but only if next is later than the
	// stored date. Replays with the same tick date change nothing.
	AdvanceBilling(id string, next time.Time) (bool, error)
	Cancel(id string) (bool, error)
}

// TransactionRepository defines the interface for payment transaction operations
type TransactionRepository interface {
	Create(txn *models.PaymentTransaction) error
	GetByProviderOrderID(orderID string) (*models.PaymentTransaction, error)
	// MarkPaid sets the terminal paid status. The update is guarded on the
	// created status; false means the row was already terminal.
	MarkPaid(orderID, paymentID string, paidAt time.Time) (bool, error)
	// MarkFailed sets the terminal failed status, guarded the same way.
	MarkFailed(orderID, paymentID, reason string) (bool, error)
}

// WebhookLogRepository defines the interface for webhook log operations
type WebhookLogRepository interface {
	CreateIfNotExists(entry *models.WebhookLog) (bool, *models.WebhookLog, error)
	MarkProcessed(id uint, processingError string) error
}

// SyncRetryRepository defines the interface for the sync retry queue
type SyncRetryRepository interface {
	Enqueue(entry *models.SyncRetryEntry) error
	Due(now time.Time, limit int) ([]models.SyncRetryEntry, error)
	Reschedule(id string, retryCount int, nextRetryAt time.Time, lastError string) error
	MarkCompleted(id string) error
	MarkExhausted(id string, lastError string) error
}

// Repositories struct holds all repository instances
type Repositories struct {
	Subscription SubscriptionRepository
	Transaction  TransactionRepository
	WebhookLog   WebhookLogRepository
	SyncRetry    SyncRetryRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Subscription: NewSubscriptionRepository(db),
		Transaction:  NewTransactionRepository(db),
		WebhookLog:   NewWebhookLogRepository(db),
		SyncRetry:    NewSyncRetryRepository(db),
	}
}
