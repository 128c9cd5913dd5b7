package handlers

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/polkiloo/storefront/internal/domain/model"
)

// AuthFacade describes authentication capabilities required by handlers.
type AuthFacade interface {
	Register(ctx context.Context, login, email, password string) (string, error)
	Authenticate(ctx context.Context, login, password string) (string, error)
	ParseToken(token string) (model.Actor, error)
}

// OrderFacade encapsulates customer order operations exposed via HTTP.
type OrderFacade interface {
	Checkout(ctx context.Context, actor model.Actor, addressID int64, promoCode string) (*model.Order, error)
	Orders(ctx context.Context, actor model.Actor) ([]model.Order, error)
	Order(ctx context.Context, actor model.Actor, orderID int64) (*model.Order, error)
	PaymentLogs(ctx context.Context, actor model.Actor, orderID int64) ([]model.PaymentLog, error)
	CancelOrder(ctx context.Context, actor model.Actor, orderID int64, reason string) (*model.Order, error)
	Repay(ctx context.Context, actor model.Actor, orderID int64) (*model.Order, error)
	RequestRefund(ctx context.Context, actor model.Actor, orderID int64, reason string) (*model.Order, error)
}

// AdminFacade provides administrative order transitions.
type AdminFacade interface {
	ProcessRefund(ctx context.Context, actor model.Actor, orderID int64) (*model.Order, error)
	ShipOrder(ctx context.Context, actor model.Actor, orderID int64) (*model.Order, error)
	CompleteOrder(ctx context.Context, actor model.Actor, orderID int64) (*model.Order, error)
}

type PromoFacade interface {
	ValidatePromo(ctx context.Context, actor model.Actor, code string, amount decimal.Decimal) (*model.PromoEvaluation, error)
}

// PaymentFacade reconciles gateway callbacks.
type PaymentFacade interface {
	HandlePaymentEvent(ctx context.Context, event model.PaymentEvent) (model.WebhookResult, error)
}

// StoreFacade aggregates the full set of operations used across handlers.
type StoreFacade interface {
	AuthFacade
	OrderFacade
	AdminFacade
	PromoFacade
	PaymentFacade
}
