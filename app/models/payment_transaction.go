package models

import "time"

const (
	TransactionStatusCreated = "created"
	TransactionStatusPaid    = "paid"
	TransactionStatusFailed  = "failed"
)

// PaymentTransaction records one provider order attempt. It is created
// alongside the Subscription and updated exactly once to a terminal status
// (paid or failed); the guarded repository update enforces that.
type PaymentTransaction struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	SubscriptionID    string     `gorm:"type:uuid;not null;index" json:"subscription_id"`
	ProviderOrderID   string     `gorm:"type:varchar(64);not null;uniqueIndex" json:"provider_order_id"`
	ProviderPaymentID string     `gorm:"type:varchar(64);index" json:"provider_payment_id"`
	Amount            float64    `gorm:"type:numeric(12,2);not null" json:"amount"`
	Currency          string     `gorm:"type:varchar(8);not null;default:'INR'" json:"currency"`
	Status            string     `gorm:"type:varchar(16);not null;default:'created';index" json:"status"`
	FailureReason     string     `gorm:"type:text" json:"failure_reason"`
	ClientIP          string     `gorm:"type:varchar(64)" json:"client_ip"`
	UserAgent         string     `gorm:"type:varchar(255)" json:"user_agent"`
	PaidAt            *time.Time `gorm:"type:timestamptz;default:null" json:"paid_at,omitempty"`
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsTerminal reports whether the transaction already reached paid or failed.
func (t *PaymentTransaction) IsTerminal() bool {
	return t.Status == TransactionStatusPaid || t.Status == TransactionStatusFailed
}
