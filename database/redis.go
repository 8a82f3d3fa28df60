package database

import (
	"context"
	"log/slog"
	"time"

	"groupbuy-backend/config"

	"github.com/redis/go-redis/v9"
)

// ConnectRedis returns nil when REDIS_URL is unset or the server does not
// answer. The service then runs without the settlement lock and redis events.
func ConnectRedis(cfg *config.Config) *redis.Client {
	if cfg.RedisURL == "" {
		slog.Warn("REDIS_URL not set, running without redis")
		return nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		// Plain host:port
		opts = &redis.Options{Addr: cfg.RedisURL}
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		slog.Warn("Redis not available, running without it", "error", err)
		client.Close()
		return nil
	}

	slog.Info("Redis connected")
	return client
}
