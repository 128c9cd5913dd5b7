package redis

import (
	"context"
	"fmt"
	"log/slog"

	rd "github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/polkiloo/storefront/internal/config"
	"github.com/polkiloo/storefront/internal/server/http/middleware"
	"github.com/polkiloo/storefront/internal/worker"
)

// Module wires the Redis client, the sweeper lock and the checkout rate limiter.
var Module = fx.Options(
	fx.Provide(newClient, newLocker, newRateLimiter),
	fx.Invoke(registerLifecycle),
)

type clientParams struct {
	fx.In

	Config *config.Config
}

func newClient(p clientParams) *rd.Client {
	return NewClient(p.Config.RedisAddress)
}

func newLocker(client *rd.Client) worker.Locker {
	return NewLocker(client)
}

func newRateLimiter(client *rd.Client, cfg *config.Config) middleware.RateLimiter {
	return NewRateLimiter(client, cfg.CheckoutRateLimit, cfg.CheckoutRateWindow)
}

func registerLifecycle(lc fx.Lifecycle, client *rd.Client, logger *slog.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("redis ping: %w", err)
			}
			logger.Info("redis connected", slog.String("addr", client.Options().Addr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})
}
