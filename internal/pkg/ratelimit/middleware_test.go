package ratelimit

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareThrottles(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	defer store.Stop()
	limiter := New(store, map[Category]Rule{
		CategoryOrder: {Limit: 3, Window: time.Minute},
	})

	app := fiber.New()
	app.Post("/order", Middleware(limiter, CategoryOrder), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"ok": true})
	})

	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest("POST", "/order", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, "3", resp.Header.Get("X-RateLimit-Limit"))
		assert.NotEmpty(t, resp.Header.Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, resp.Header.Get("X-RateLimit-Reset"))
	}

	resp, err := app.Test(httptest.NewRequest("POST", "/order", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "0", resp.Header.Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
}

func TestMiddlewareFailsOpenOnStoreError(t *testing.T) {
	limiter := New(failingStore{}, map[Category]Rule{
		CategoryOrder: {Limit: 1, Window: time.Minute},
	})

	app := fiber.New()
	app.Post("/order", Middleware(limiter, CategoryOrder), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"ok": true})
	})

	for i := 0; i < 5; i++ {
		resp, err := app.Test(httptest.NewRequest("POST", "/order", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	}
}

type failingStore struct{}

func (failingStore) Take(_ context.Context, _ string, _ int, _ time.Duration) (Decision, error) {
	return Decision{}, assert.AnError
}
