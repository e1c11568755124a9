package models

import "time"

const (
	SyncRetryStatusPending   = "pending"
	SyncRetryStatusCompleted = "completed"
	SyncRetryStatusExhausted = "exhausted"
)

// SyncRetryEntry is a durable record of a failed subscription sync to the
// main application. The sync worker polls for due entries, retries with
// exponential backoff and marks them completed, or exhausted once the retry
// ceiling is reached (left for manual intervention).
type SyncRetryEntry struct {
	ID          string     `gorm:"type:uuid;primaryKey" json:"id"`
	PayloadJSON string     `gorm:"type:text;not null" json:"payload_json"`
	RetryCount  int        `gorm:"not null;default:0" json:"retry_count"`
	NextRetryAt time.Time  `gorm:"type:timestamptz;not null;index" json:"next_retry_at"`
	Status      string     `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	LastError   string     `gorm:"type:text" json:"last_error"`
	CompletedAt *time.Time `gorm:"type:timestamptz;default:null" json:"completed_at,omitempty"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName pins the table name used by the payment schema.
func (SyncRetryEntry) TableName() string {
	return "sync_retry_queue"
}
