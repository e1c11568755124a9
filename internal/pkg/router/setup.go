package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/catalystschool/checkout/internal/pkg/ratelimit"
)

// Router installs a group of routes on the fiber app.
type Router interface {
	InstallRouter(app *fiber.App)
}

// InstallRouter wires all route groups. The rate limiter is shared so the
// per-endpoint windows live in one store.
func InstallRouter(app *fiber.App, limiter *ratelimit.Limiter) {
	setup(app, NewApiRouter(limiter))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
