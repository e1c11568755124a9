package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Category names an endpoint class with its own ceiling and window.
type Category string

const (
	CategoryOrder  Category = "order"
	CategoryVerify Category = "verify"
	CategoryLookup Category = "lookup"
)

// Rule is a ceiling of Limit requests per sliding Window.
type Rule struct {
	Limit  int
	Window time.Duration
}

// DefaultRules returns the per-category ceilings for the checkout API.
func DefaultRules() map[Category]Rule {
	return map[Category]Rule{
		CategoryOrder:  {Limit: 3, Window: time.Minute},
		CategoryVerify: {Limit: 5, Window: time.Minute},
		CategoryLookup: {Limit: 10, Window: time.Minute},
	}
}

// Decision is the outcome of a limiter check, including everything the HTTP
// layer needs for the X-RateLimit-* headers.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// WindowStore tracks request timestamps per key within a sliding window.
// Implementations serialize concurrent takes on the same key themselves.
type WindowStore interface {
	Take(ctx context.Context, key string, limit int, window time.Duration) (Decision, error)
}

// Limiter gates how often an endpoint category may be invoked per caller.
// It is an abuse deterrent, not a security boundary: state may reset on
// restart and is only shared across instances with the Redis store.
type Limiter struct {
	store WindowStore
	rules map[Category]Rule
}

// New builds a limiter over the given store. Nil rules fall back to
// DefaultRules.
func New(store WindowStore, rules map[Category]Rule) *Limiter {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Limiter{store: store, rules: rules}
}

// Allow checks and consumes one request slot for the caller key.
func (l *Limiter) Allow(ctx context.Context, category Category, key string) (Decision, error) {
	rule, ok := l.rules[category]
	if !ok {
		return Decision{}, fmt.Errorf("no rate-limit rule for category %q", category)
	}
	if rule.Limit <= 0 {
		return Decision{Allowed: true, Limit: 0, Remaining: 0, ResetAt: time.Now()}, nil
	}
	return l.store.Take(ctx, string(category)+":"+key, rule.Limit, rule.Window)
}
