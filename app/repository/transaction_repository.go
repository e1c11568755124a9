package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/catalystschool/checkout/app/models"
)

// transactionRepository implements the TransactionRepository interface
type transactionRepository struct {
	db *gorm.DB
}

// NewTransactionRepository creates a new payment transaction repository instance
func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &transactionRepository{db: db}
}

// Create inserts a new transaction in created status
func (r *transactionRepository) Create(txn *models.PaymentTransaction) error {
	return r.db.Create(txn).Error
}

// GetByProviderOrderID retrieves a transaction by the provider order id
func (r *transactionRepository) GetByProviderOrderID(orderID string) (*models.PaymentTransaction, error) {
	var txn models.PaymentTransaction
	err := r.db.Where("provider_order_id = ?", orderID).First(&txn).Error
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// MarkPaid sets the terminal paid status. Guarded on created so a
// transaction reaches a terminal status at most once.
func (r *transactionRepository) MarkPaid(orderID, paymentID string, paidAt time.Time) (bool, error) {
	tx := r.db.Model(&models.PaymentTransaction{}).
		Where("provider_order_id = ? AND status = ?", orderID, models.TransactionStatusCreated).
		Updates(map[string]interface{}{
			"status":              models.TransactionStatusPaid,
			"provider_payment_id": paymentID,
			"paid_at":             paidAt,
		})
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

// MarkFailed sets the terminal failed status, guarded the same way.
func (r *transactionRepository) MarkFailed(orderID, paymentID, reason string) (bool, error) {
	tx := r.db.Model(&models.PaymentTransaction{}).
		Where("provider_order_id = ? AND status = ?", orderID, models.TransactionStatusCreated).
		Updates(map[string]interface{}{
			"status":              models.TransactionStatusFailed,
			"provider_payment_id": paymentID,
			"failure_reason":      reason,
		})
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}
