package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps per-key request timestamps in process memory. A
// background sweeper removes keys untouched for longer than the retention
// horizon so the map stays bounded.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*windowEntry

	retention time.Duration
	stopCh    chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup

	now func() time.Time
}

type windowEntry struct {
	timestamps []time.Time
	touchedAt  time.Time
}

const defaultRetention = 10 * time.Minute

// NewMemoryStore creates a store and starts its sweeper.
func NewMemoryStore(retention time.Duration) *MemoryStore {
	if retention <= 0 {
		retention = defaultRetention
	}
	s := &MemoryStore{
		entries:   make(map[string]*windowEntry),
		retention: retention,
		stopCh:    make(chan struct{}),
		now:       time.Now,
	}
	s.wg.Add(1)
	go s.sweeper(time.Minute)
	return s
}

// Stop terminates the sweeper goroutine.
func (s *MemoryStore) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	s.wg.Wait()
}

// Take implements WindowStore with a sliding window: timestamps older than
// the window are dropped, the remaining count is compared to the ceiling and
// the current timestamp is appended only when the call is allowed.
func (s *MemoryStore) Take(_ context.Context, key string, limit int, window time.Duration) (Decision, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		entry = &windowEntry{}
		s.entries[key] = entry
	}
	entry.touchedAt = now

	cutoff := now.Add(-window)
	kept := entry.timestamps[:0]
	for _, ts := range entry.timestamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	entry.timestamps = kept

	if len(entry.timestamps) >= limit {
		oldest := entry.timestamps[0]
		resetAt := oldest.Add(window)
		return Decision{
			Allowed:    false,
			Limit:      limit,
			Remaining:  0,
			ResetAt:    resetAt,
			RetryAfter: resetAt.Sub(now),
		}, nil
	}

	entry.timestamps = append(entry.timestamps, now)
	return Decision{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - len(entry.timestamps),
		ResetAt:   entry.timestamps[0].Add(window),
	}, nil
}

func (s *MemoryStore) sweeper(interval time.Duration) {
	defer s.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *MemoryStore) sweep() {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, entry := range s.entries {
		if now.Sub(entry.touchedAt) > s.retention {
			delete(s.entries, key)
		}
	}
}
