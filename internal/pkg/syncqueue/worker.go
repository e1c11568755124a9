package syncqueue

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/catalystschool/checkout/app/models"
	"github.com/catalystschool/checkout/app/repository"
	"github.com/catalystschool/checkout/internal/pkg/mainapp"
)

const (
	defaultPollInterval = 30 * time.Second
	defaultBatchSize    = 20
	syncAttemptTimeout  = 10 * time.Second
)

// Syncer pushes a subscription state payload to the main application.
type Syncer interface {
	SyncSubscription(ctx context.Context, payload mainapp.SyncPayload) error
}

// Worker polls the retry queue for due entries and replays them against the
// main application. Delays double with every failed attempt.
type Worker struct {
	repo   repository.SyncRetryRepository
	syncer Syncer

	pollInterval time.Duration
	batchSize    int
	maxRetries   int
	baseDelay    time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	now func() time.Time
}

// NewWorker creates a sync retry worker with default polling and backoff
// settings.
func NewWorker(repo repository.SyncRetryRepository, syncer Syncer) *Worker {
	return &Worker{
		repo:         repo,
		syncer:       syncer,
		pollInterval: defaultPollInterval,
		batchSize:    defaultBatchSize,
		maxRetries:   MaxRetries,
		baseDelay:    InitialRetryDelay,
		stopCh:       make(chan struct{}),
		now:          time.Now,
	}
}

// Start launches the polling loop in a background goroutine.
func (w *Worker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return
	}
	w.running = true

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		log.Info("[SyncWorker] Started")
		ticker := time.NewTicker(w.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-w.stopCh:
				log.Info("[SyncWorker] Stopped")
				return
			case <-ticker.C:
				w.processDue()
			}
		}
	}()
}

// Stop signals the loop to exit and waits for the in-flight batch to finish.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stopCh)
	w.mu.Unlock()

	w.wg.Wait()
}

func (w *Worker) processDue() {
	entries, err := w.repo.Due(w.now(), w.batchSize)
	if err != nil {
		log.Errorf("[SyncWorker] Failed to load due entries: %v", err)
		return
	}
	for i := range entries {
		w.processEntry(&entries[i])
	}
}

func (w *Worker) processEntry(entry *models.SyncRetryEntry) {
	var payload mainapp.SyncPayload
	if err := json.Unmarshal([]byte(entry.PayloadJSON), &payload); err != nil {
		// The payload will never become parseable; retrying is pointless.
		log.Errorf("[SyncWorker] Entry %s has unreadable payload: %v", entry.ID, err)
		if markErr := w.repo.MarkExhausted(entry.ID, "unreadable payload: "+err.Error()); markErr != nil {
			log.Errorf("[SyncWorker] Failed to mark entry %s exhausted: %v", entry.ID, markErr)
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), syncAttemptTimeout)
	err := w.syncer.SyncSubscription(ctx, payload)
	cancel()

	if err == nil {
		if markErr := w.repo.MarkCompleted(entry.ID); markErr != nil {
			log.Errorf("[SyncWorker] Failed to mark entry %s completed: %v", entry.ID, markErr)
		} else {
			log.Infof("[SyncWorker] Synced subscription %s after %d retries", payload.SubscriptionID, entry.RetryCount)
		}
		return
	}

	retryCount := entry.RetryCount + 1
	if retryCount >= w.maxRetries {
		log.Errorf("[SyncWorker] Giving up on subscription %s after %d attempts: %v", payload.SubscriptionID, retryCount, err)
		if markErr := w.repo.MarkExhausted(entry.ID, err.Error()); markErr != nil {
			log.Errorf("[SyncWorker] Failed to mark entry %s exhausted: %v", entry.ID, markErr)
		}
		return
	}

	next := w.now().Add(w.backoffDelay(retryCount))
	log.Warnf("[SyncWorker] Sync for subscription %s failed (attempt %d), retrying at %s: %v", payload.SubscriptionID, retryCount, next.Format(time.RFC3339), err)
	if markErr := w.repo.Reschedule(entry.ID, retryCount, next, err.Error()); markErr != nil {
		log.Errorf("[SyncWorker] Failed to reschedule entry %s: %v", entry.ID, markErr)
	}
}

// backoffDelay doubles the base delay per completed attempt: 5m, 10m, 20m...
func (w *Worker) backoffDelay(retryCount int) time.Duration {
	delay := w.baseDelay
	for i := 1; i < retryCount; i++ {
		delay *= 2
	}
	return delay
}
