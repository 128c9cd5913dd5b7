package app

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/polkiloo/storefront/internal/domain/model"
	"github.com/polkiloo/storefront/internal/usecase"
)

// StoreFacade adapts the use cases to the HTTP handlers and the expiration sweeper.
type StoreFacade struct {
	auth    *usecase.AuthUseCase
	orders  *usecase.OrderUseCase
	promos  *usecase.PromoUseCase
	webhook *usecase.WebhookUseCase
}

func NewStoreFacade(auth *usecase.AuthUseCase, orders *usecase.OrderUseCase, promos *usecase.PromoUseCase, webhook *usecase.WebhookUseCase) *StoreFacade {
	return &StoreFacade{auth: auth, orders: orders, promos: promos, webhook: webhook}
}

func (f *StoreFacade) Register(ctx context.Context, login, email, password string) (string, error) {
	_, token, err := f.auth.Register(ctx, login, email, password)
	return token, err
}

func (f *StoreFacade) Authenticate(ctx context.Context, login, password string) (string, error) {
	_, token, err := f.auth.Authenticate(ctx, login, password)
	return token, err
}

func (f *StoreFacade) ParseToken(token string) (model.Actor, error) {
	return f.auth.ParseToken(token)
}

func (f *StoreFacade) Checkout(ctx context.Context, actor model.Actor, addressID int64, promoCode string) (*model.Order, error) {
	return f.orders.Checkout(ctx, actor, addressID, promoCode)
}

func (f *StoreFacade) Orders(ctx context.Context, actor model.Actor) ([]model.Order, error) {
	return f.orders.ListByUser(ctx, actor)
}

func (f *StoreFacade) Order(ctx context.Context, actor model.Actor, orderID int64) (*model.Order, error) {
	return f.orders.GetByID(ctx, actor, orderID)
}

func (f *StoreFacade) PaymentLogs(ctx context.Context, actor model.Actor, orderID int64) ([]model.PaymentLog, error) {
	return f.orders.PaymentLogs(ctx, actor, orderID)
}

func (f *StoreFacade) CancelOrder(ctx context.Context, actor model.Actor, orderID int64, reason string) (*model.Order, error) {
	return f.orders.CancelByUser(ctx, actor, orderID, reason)
}

func (f *StoreFacade) Repay(ctx context.Context, actor model.Actor, orderID int64) (*model.Order, error) {
	return f.orders.Repay(ctx, actor, orderID)
}

func (f *StoreFacade) RequestRefund(ctx context.Context, actor model.Actor, orderID int64, reason string) (*model.Order, error) {
	return f.orders.RequestRefund(ctx, actor, orderID, reason)
}

func (f *StoreFacade) ProcessRefund(ctx context.Context, actor model.Actor, orderID int64) (*model.Order, error) {
	return f.orders.ProcessRefund(ctx, actor, orderID)
}

func (f *StoreFacade) ShipOrder(ctx context.Context, actor model.Actor, orderID int64) (*model.Order, error) {
	return f.orders.MarkAsShipped(ctx, actor, orderID)
}

func (f *StoreFacade) CompleteOrder(ctx context.Context, actor model.Actor, orderID int64) (*model.Order, error) {
	return f.orders.MarkAsCompleted(ctx, actor, orderID)
}

func (f *StoreFacade) ValidatePromo(ctx context.Context, actor model.Actor, code string, amount decimal.Decimal) (*model.PromoEvaluation, error) {
	return f.promos.Validate(ctx, actor, code, amount)
}

func (f *StoreFacade) HandlePaymentEvent(ctx context.Context, event model.PaymentEvent) (model.WebhookResult, error) {
	return f.webhook.Reconcile(ctx, event)
}

// ExpiredOrders and CancelExpired serve the expiration sweeper.
func (f *StoreFacade) ExpiredOrders(ctx context.Context, limit int) ([]model.Order, error) {
	return f.orders.ExpiredOrders(ctx, limit)
}

func (f *StoreFacade) CancelExpired(ctx context.Context, orderID int64) error {
	return f.orders.CancelExpired(ctx, orderID)
}
