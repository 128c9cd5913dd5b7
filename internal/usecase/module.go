package usecase

import (
	"go.uber.org/fx"

	"github.com/polkiloo/storefront/internal/config"
)

// Module provides core business use cases to the fx container.
var Module = fx.Provide(
	NewAuthUseCase,
	NewOrderUseCase,
	NewWebhookUseCase,
	NewPromoUseCase,
	newOrderSettings,
)

func newOrderSettings(cfg *config.Config) OrderSettings {
	return OrderSettings{
		Expiration:      cfg.OrderExpiration,
		CheckoutTimeout: cfg.CheckoutTimeout,
		InvoiceDuration: cfg.InvoiceDuration,
		Currency:        cfg.Currency,
	}
}
