package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// New creates a Redis client. An unreachable server is logged rather than returned: the
// report cache degrades to direct fetches, so the dashboard keeps serving without it.
func New(ctx context.Context, addr string, logger *slog.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})

	if err := Ping(ctx, client); err != nil {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("redis unavailable, report cache disabled until it recovers", slog.String("addr", addr), slog.Any("error", err))
	}
	return client
}

// Ping checks connectivity with a bounded wait.
func Ping(ctx context.Context, client *redis.Client) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("platform/cache: ping: %w", err)
	}
	return nil
}
