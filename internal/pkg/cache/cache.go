package cache

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"

	"github.com/catalystschool/checkout/internal/pkg/env"
)

var client *redis.Client

// SetupCache connects to the shared Redis instance. The rate limiter keeps
// its sliding windows here so limits hold across replicas.
func SetupCache() {
	client = redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", env.GetEnv("CACHE_HOST", "localhost"), env.GetEnv("CACHE_PORT", "6379")),
		Password: env.GetEnv("CACHE_PASSWORD", ""),
		DB:       0,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		log.Warnf("[Cache] could not reach Redis: %v", err)
		return
	}
	log.Info("[Cache] connected to Redis")
}

// GetClient returns the Redis client, connecting lazily if needed.
func GetClient() *redis.Client {
	if client == nil {
		SetupCache()
	}
	return client
}
