package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/catalystschool/checkout/app/controllers"
	"github.com/catalystschool/checkout/internal/pkg/ratelimit"
)

type ApiRouter struct {
	limiter *ratelimit.Limiter
}

func NewApiRouter(limiter *ratelimit.Limiter) *ApiRouter {
	return &ApiRouter{limiter: limiter}
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api")
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Catalyst checkout API",
		})
	})

	v1 := api.Group("/v1")
	v1.Get("/plans", controllers.HandleGetPlans)

	payments := v1.Group("/payments")
	payments.Post("/create-order", ratelimit.Middleware(h.limiter, ratelimit.CategoryOrder), controllers.HandleCreateOrder)
	payments.Post("/verify", ratelimit.Middleware(h.limiter, ratelimit.CategoryVerify), controllers.HandleVerifyPayment)
	// The provider signs webhook deliveries; they are not rate limited.
	payments.Post("/webhook", controllers.HandlePaymentWebhook)

	subscriptions := v1.Group("/subscriptions")
	subscriptions.Get("/:id", ratelimit.Middleware(h.limiter, ratelimit.CategoryLookup), controllers.HandleGetSubscription)

	schools := v1.Group("/schools")
	schools.Get("/:id/subscriptions", ratelimit.Middleware(h.limiter, ratelimit.CategoryLookup), controllers.HandleListSchoolSubscriptions)
}
