package syncqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/catalystschool/checkout/app/models"
	"github.com/catalystschool/checkout/app/repository"
	"github.com/catalystschool/checkout/internal/pkg/mainapp"
)

const (
	// InitialRetryDelay is how long after a failed sync the first replay
	// attempt becomes due.
	InitialRetryDelay = 5 * time.Minute
	// MaxRetries caps replay attempts; exhausted entries are left for
	// manual intervention.
	MaxRetries = 5
)

// Queue records failed subscription syncs durably so the worker can replay
// them with backoff. This is the only part of the system with an explicit
// failure-recovery policy.
type Queue struct {
	repo repository.SyncRetryRepository

	now func() time.Time
}

// NewQueue creates a queue over the sync retry repository.
func NewQueue(repo repository.SyncRetryRepository) *Queue {
	return &Queue{repo: repo, now: time.Now}
}

// Enqueue stores the full outbound payload with a retry counter at zero and
// the first attempt a few minutes out.
func (q *Queue) Enqueue(_ context.Context, payload mainapp.SyncPayload) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("sync payload marshal failed: %w", err)
	}
	entry := &models.SyncRetryEntry{
		ID:          uuid.NewString(),
		PayloadJSON: string(raw),
		RetryCount:  0,
		NextRetryAt: q.now().Add(InitialRetryDelay),
		Status:      models.SyncRetryStatusPending,
	}
	return q.repo.Enqueue(entry)
}
