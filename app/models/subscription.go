package models

import "time"

const (
	BillingCycleMonthly = "monthly"
	BillingCycleYearly  = "yearly"
)

const (
	SubscriptionStatusPending   = "pending"
	SubscriptionStatusTrial     = "trial"
	SubscriptionStatusActive    = "active"
	SubscriptionStatusCancelled = "cancelled"
)

// Subscription holds a school's desired plan from checkout until the main
// application takes over billing. Created as pending on order creation and
// advanced by the verification/webhook handlers. Rows are never hard-deleted.
type Subscription struct {
	ID              string     `gorm:"type:uuid;primaryKey" json:"id"`
	SchoolID        string     `gorm:"type:varchar(64);not null;index" json:"school_id"`
	PlanName        string     `gorm:"type:varchar(100);not null" json:"plan_name"`
	StudentCount    int        `gorm:"not null" json:"student_count"`
	BillingCycle    string     `gorm:"type:varchar(16);not null;default:'monthly'" json:"billing_cycle"`
	Amount          float64    `gorm:"type:numeric(12,2);not null" json:"amount"`
	Currency        string     `gorm:"type:varchar(8);not null;default:'INR'" json:"currency"`
	Status          string     `gorm:"type:varchar(32);not null;default:'pending';index" json:"status"`
	Address         string     `gorm:"type:text" json:"address"`
	City            string     `gorm:"type:varchar(100)" json:"city"`
	State           string     `gorm:"type:varchar(100)" json:"state"`
	Pincode         string     `gorm:"type:varchar(16)" json:"pincode"`
	GSTNumber       string     `gorm:"type:varchar(32)" json:"gst_number"`
	TrialEndDate    *time.Time `gorm:"type:timestamptz;default:null" json:"trial_end_date,omitempty"`
	NextBillingDate *time.Time `gorm:"type:timestamptz;default:null" json:"next_billing_date,omitempty"`
	CreatedAt       time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func subscriptionStatusRank(status string) int {
	switch status {
	case SubscriptionStatusPending:
		return 0
	case SubscriptionStatusTrial:
		return 1
	case SubscriptionStatusActive:
		return 2
	case SubscriptionStatusCancelled:
		return 3
	default:
		return -1
	}
}

// CanTransitionTo reports whether the lifecycle may advance from the current
// status to the target. The lifecycle only moves forward; re-applying the
// current status is allowed so replayed webhook events stay no-ops.
func (s *Subscription) CanTransitionTo(target string) bool {
	from := subscriptionStatusRank(s.Status)
	to := subscriptionStatusRank(target)
	if from < 0 || to < 0 {
		return false
	}
	return to >= from
}
