package payment

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/polkiloo/storefront/internal/config"
	"github.com/polkiloo/storefront/internal/usecase"
)

// Module exposes the invoice gateway client to fx graph.
var Module = fx.Provide(newClient)

type clientParams struct {
	fx.In

	Config *config.Config
	Logger *slog.Logger
}

func newClient(p clientParams) (usecase.PaymentGateway, error) {
	return NewHTTPClient(p.Config.PaymentGatewayAddress, p.Config.PaymentSecretKey, p.Logger)
}
