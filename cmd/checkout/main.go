package main

import (
	"fmt"
	"log"
	"os"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/catalystschool/checkout/app/controllers"
	"github.com/catalystschool/checkout/app/repository"
	"github.com/catalystschool/checkout/internal/pkg/cache"
	"github.com/catalystschool/checkout/internal/pkg/checkout"
	"github.com/catalystschool/checkout/internal/pkg/database"
	"github.com/catalystschool/checkout/internal/pkg/env"
	"github.com/catalystschool/checkout/internal/pkg/mainapp"
	"github.com/catalystschool/checkout/internal/pkg/payment"
	"github.com/catalystschool/checkout/internal/pkg/ratelimit"
	"github.com/catalystschool/checkout/internal/pkg/receipt"
	"github.com/catalystschool/checkout/internal/pkg/router"
	"github.com/catalystschool/checkout/internal/pkg/syncqueue"
)

func main() {
	app := NewApplication()
	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()
	repository.InitializeFactory(database.GetDB())

	repos := repository.GetGlobalFactory().GetRepositories()

	providerClient := payment.NewClientFromEnv()
	recordClient := mainapp.NewClientFromEnv()
	retryQueue := syncqueue.NewQueue(repos.SyncRetry)

	svc := checkout.NewService(checkout.Config{
		KeyID:         env.GetEnv("PAYMENT_KEY_ID", ""),
		KeySecret:     env.GetEnv("PAYMENT_KEY_SECRET", ""),
		WebhookSecret: env.GetEnv("PAYMENT_WEBHOOK_SECRET", ""),
	}, repos, providerClient, recordClient, retryQueue)

	// Receipt storage is optional; without it, payments simply skip receipts.
	if storeCfg, err := receipt.LoadStoreConfig(); err != nil {
		log.Printf("receipt storage misconfigured, receipts disabled: %v", err)
	} else if storeCfg.IsEnabled() {
		store, err := receipt.NewStore(storeCfg)
		if err != nil {
			log.Printf("receipt store unavailable, receipts disabled: %v", err)
		} else {
			svc.WithReceiptStore(store)
		}
	}

	controllers.SetCheckoutService(svc)
	controllers.SetWebhookSecret(env.GetEnv("PAYMENT_WEBHOOK_SECRET", ""))

	limiter := newLimiter()

	basePaths := []string{
		"./",     // Current directory
		"../../", // From cmd/checkout to project root
	}
	basePath := "./"
	for _, path := range basePaths {
		if _, err := os.Stat(path + "public"); !os.IsNotExist(err) {
			basePath = path
			break
		}
	}

	app := fiber.New(fiber.Config{
		AppName: "catalyst-checkout",
	})

	app.Use(recover.New())
	if env.IsDev() {
		app.Use(logger.New(logger.Config{Format: "[${time}] ${status} ${latency} ${method} ${path}\n"}))
	} else {
		app.Use(logger.New())
	}

	app.Get("/metrics", monitor.New())

	// SWAGGER / OPENAPI
	openAPICfg := swagger.Config{
		BasePath: "/docs/api/",
		FilePath: basePath + "public/docs/v1/openapi.yml",
		Path:     "v1",
	}
	app.Use(swagger.New(openAPICfg))

	// ROUTER
	router.InstallRouter(app, limiter)

	return app
}

// newLimiter uses the shared Redis store so limits hold across replicas.
// RATE_LIMIT_STORE=memory selects in-process windows for single-instance
// setups without Redis.
func newLimiter() *ratelimit.Limiter {
	if env.GetEnv("RATE_LIMIT_STORE", "redis") == "memory" {
		log.Println("rate limits are per-instance only")
		return ratelimit.New(ratelimit.NewMemoryStore(0), ratelimit.DefaultRules())
	}
	return ratelimit.New(ratelimit.NewRedisStore(cache.GetClient()), ratelimit.DefaultRules())
}
