package events

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/polkiloo/storefront/internal/config"
	"github.com/polkiloo/storefront/internal/usecase"
)

// Module wires the Kafka order event publisher.
var Module = fx.Options(
	fx.Provide(
		newPublisher,
		func(p *Publisher) usecase.Notifier { return p },
	),
	fx.Invoke(registerLifecycle),
)

type publisherParams struct {
	fx.In

	Config *config.Config
	Logger *slog.Logger
}

func newPublisher(p publisherParams) *Publisher {
	return NewPublisher(NewWriter(p.Config.KafkaBrokers, p.Config.OrderEventsTopic), defaultBuffer, p.Logger)
}

func registerLifecycle(lc fx.Lifecycle, p *Publisher) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			p.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return p.Stop(ctx)
		},
	})
}
