package test

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/polkiloo/storefront/internal/domain/model"
)

// SampleOrder returns a pending order owned by userID.
func SampleOrder(id, userID int64) *model.Order {
	return &model.Order{
		ID:                id,
		Number:            "ORD-240701-0000000A",
		UserID:            userID,
		Status:            model.OrderStatusPending,
		PaymentStatus:     model.PaymentStatusPending,
		Subtotal:          decimal.NewFromInt(55000),
		DiscountAmount:    decimal.Zero,
		TotalAmount:       decimal.NewFromInt(55000),
		PaymentExternalID: "ref-1",
		PaymentURL:        "https://pay.test/inv-1",
		PendingSince:      time.Unix(0, 0).UTC(),
		CreatedAt:         time.Unix(0, 0).UTC(),
		Items: []model.OrderItem{{
			ProductID:       1,
			ProductName:     "MUG",
			ProductSKU:      "MUG-1",
			Quantity:        2,
			PriceAtPurchase: decimal.NewFromInt(27500),
		}},
	}
}

// OrderFacadeStub provides controllable behaviour for customer order endpoints.
type OrderFacadeStub struct {
	CheckoutFn func(context.Context, model.Actor, int64, string) (*model.Order, error)
	OrdersFn   func(context.Context, model.Actor) ([]model.Order, error)
	OrderFn    func(context.Context, model.Actor, int64) (*model.Order, error)
	LogsFn     func(context.Context, model.Actor, int64) ([]model.PaymentLog, error)
	CancelFn   func(context.Context, model.Actor, int64, string) (*model.Order, error)
	RepayFn    func(context.Context, model.Actor, int64) (*model.Order, error)
	RefundFn   func(context.Context, model.Actor, int64, string) (*model.Order, error)
}

// Checkout delegates to provided function or returns a pending order.
func (s OrderFacadeStub) Checkout(ctx context.Context, actor model.Actor, addressID int64, promoCode string) (*model.Order, error) {
	if s.CheckoutFn != nil {
		return s.CheckoutFn(ctx, actor, addressID, promoCode)
	}
	return SampleOrder(1, actor.UserID), nil
}

// Orders returns predefined orders for given actor.
func (s OrderFacadeStub) Orders(ctx context.Context, actor model.Actor) ([]model.Order, error) {
	if s.OrdersFn != nil {
		return s.OrdersFn(ctx, actor)
	}
	return []model.Order{*SampleOrder(1, actor.UserID)}, nil
}

func (s OrderFacadeStub) Order(ctx context.Context, actor model.Actor, orderID int64) (*model.Order, error) {
	if s.OrderFn != nil {
		return s.OrderFn(ctx, actor, orderID)
	}
	return SampleOrder(orderID, actor.UserID), nil
}

func (s OrderFacadeStub) PaymentLogs(ctx context.Context, actor model.Actor, orderID int64) ([]model.PaymentLog, error) {
	if s.LogsFn != nil {
		return s.LogsFn(ctx, actor, orderID)
	}
	return []model.PaymentLog{{ID: 1, OrderID: orderID, Status: "PAID", RawPayload: []byte(`{"id":"inv-1"}`)}}, nil
}

func (s OrderFacadeStub) CancelOrder(ctx context.Context, actor model.Actor, orderID int64, reason string) (*model.Order, error) {
	if s.CancelFn != nil {
		return s.CancelFn(ctx, actor, orderID, reason)
	}
	order := SampleOrder(orderID, actor.UserID)
	order.Status = model.OrderStatusCancelled
	return order, nil
}

func (s OrderFacadeStub) Repay(ctx context.Context, actor model.Actor, orderID int64) (*model.Order, error) {
	if s.RepayFn != nil {
		return s.RepayFn(ctx, actor, orderID)
	}
	return SampleOrder(orderID, actor.UserID), nil
}

func (s OrderFacadeStub) RequestRefund(ctx context.Context, actor model.Actor, orderID int64, reason string) (*model.Order, error) {
	if s.RefundFn != nil {
		return s.RefundFn(ctx, actor, orderID, reason)
	}
	order := SampleOrder(orderID, actor.UserID)
	order.Status = model.OrderStatusRefundRequested
	return order, nil
}

// AdminFacadeStub simulates administrative transitions.
type AdminFacadeStub struct {
	ProcessRefundFn func(context.Context, model.Actor, int64) (*model.Order, error)
	ShipFn          func(context.Context, model.Actor, int64) (*model.Order, error)
	CompleteFn      func(context.Context, model.Actor, int64) (*model.Order, error)
}

func (s AdminFacadeStub) ProcessRefund(ctx context.Context, actor model.Actor, orderID int64) (*model.Order, error) {
	if s.ProcessRefundFn != nil {
		return s.ProcessRefundFn(ctx, actor, orderID)
	}
	return adminResult(orderID, model.OrderStatusRefunded), nil
}

func (s AdminFacadeStub) ShipOrder(ctx context.Context, actor model.Actor, orderID int64) (*model.Order, error) {
	if s.ShipFn != nil {
		return s.ShipFn(ctx, actor, orderID)
	}
	return adminResult(orderID, model.OrderStatusShipped), nil
}

func (s AdminFacadeStub) CompleteOrder(ctx context.Context, actor model.Actor, orderID int64) (*model.Order, error) {
	if s.CompleteFn != nil {
		return s.CompleteFn(ctx, actor, orderID)
	}
	return adminResult(orderID, model.OrderStatusCompleted), nil
}

func adminResult(orderID int64, status model.OrderStatus) *model.Order {
	order := SampleOrder(orderID, 1)
	order.Status = status
	return order
}

// PromoFacadeStub answers promo validation requests.
type PromoFacadeStub struct {
	ValidateFn func(context.Context, model.Actor, string, decimal.Decimal) (*model.PromoEvaluation, error)
}

// ValidatePromo returns a flat 10000 discount by default.
func (s PromoFacadeStub) ValidatePromo(ctx context.Context, actor model.Actor, code string, amount decimal.Decimal) (*model.PromoEvaluation, error) {
	if s.ValidateFn != nil {
		return s.ValidateFn(ctx, actor, code, amount)
	}
	discount := decimal.NewFromInt(10000)
	return &model.PromoEvaluation{
		PromoID:        1,
		Code:           code,
		Type:           model.DiscountTypeFixed,
		Value:          discount,
		DiscountAmount: discount,
		FinalAmount:    amount.Sub(discount),
	}, nil
}

// PaymentFacadeStub records payment events passed to the reconciler.
type PaymentFacadeStub struct {
	HandleFn func(context.Context, model.PaymentEvent) (model.WebhookResult, error)
	mu       *sync.Mutex
	events   *[]model.PaymentEvent
}

// NewPaymentFacadeStub creates a stub that records every event.
func NewPaymentFacadeStub(fn func(context.Context, model.PaymentEvent) (model.WebhookResult, error)) PaymentFacadeStub {
	return PaymentFacadeStub{HandleFn: fn, mu: &sync.Mutex{}, events: &[]model.PaymentEvent{}}
}

func (s PaymentFacadeStub) HandlePaymentEvent(ctx context.Context, event model.PaymentEvent) (model.WebhookResult, error) {
	if s.mu != nil {
		s.mu.Lock()
		*s.events = append(*s.events, event)
		s.mu.Unlock()
	}
	if s.HandleFn != nil {
		return s.HandleFn(ctx, event)
	}
	return model.WebhookSuccess, nil
}

// Events returns recorded events.
func (s PaymentFacadeStub) Events() []model.PaymentEvent {
	if s.mu == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.PaymentEvent(nil), *s.events...)
}

// StoreFacadeStub satisfies every handler facade at once.
type StoreFacadeStub struct {
	AuthFacadeStub
	OrderFacadeStub
	AdminFacadeStub
	PromoFacadeStub
	PaymentFacadeStub
}

// SweepTargetStub serves expired orders oldest first and records cancellations.
type SweepTargetStub struct {
	mu        sync.Mutex
	Orders    []model.Order
	ListErr   error
	CancelFn  func(context.Context, int64) error
	cancelled []int64
	limits    []int
}

// ExpiredOrders returns up to limit orders that were not cancelled yet.
func (s *SweepTargetStub) ExpiredOrders(_ context.Context, limit int) ([]model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limits = append(s.limits, limit)
	if s.ListErr != nil {
		return nil, s.ListErr
	}
	done := make(map[int64]bool, len(s.cancelled))
	for _, id := range s.cancelled {
		done[id] = true
	}
	out := make([]model.Order, 0, limit)
	for _, o := range s.Orders {
		if len(out) == limit {
			break
		}
		if !done[o.ID] {
			out = append(out, o)
		}
	}
	return out, nil
}

// CancelExpired records the cancellation unless CancelFn fails.
func (s *SweepTargetStub) CancelExpired(ctx context.Context, orderID int64) error {
	if s.CancelFn != nil {
		if err := s.CancelFn(ctx, orderID); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = append(s.cancelled, orderID)
	return nil
}

// Cancelled returns the ids cancelled so far.
func (s *SweepTargetStub) Cancelled() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.cancelled...)
}

// Limits returns the batch sizes requested so far.
func (s *SweepTargetStub) Limits() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.limits...)
}

// LockerStub grants a single in-process lease.
type LockerStub struct {
	mu       sync.Mutex
	Held     bool
	Err      error
	Acquired int
	Released int
	TTLs     []time.Duration
}

func (l *LockerStub) TryLock(_ context.Context, _ string, ttl time.Duration) (func(context.Context) error, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.TTLs = append(l.TTLs, ttl)
	if l.Err != nil {
		return nil, false, l.Err
	}
	if l.Held {
		return nil, false, nil
	}
	l.Held = true
	l.Acquired++
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.Held = false
		l.Released++
		return nil
	}, true, nil
}

// Counts returns acquisitions and releases.
func (l *LockerStub) Counts() (int, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.Acquired, l.Released
}

// RateLimiterStub admits the first Limit calls per key.
type RateLimiterStub struct {
	mu    sync.Mutex
	Limit int
	Err   error
	seen  map[string]int
}

func (r *RateLimiterStub) Allow(_ context.Context, key string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return false, r.Err
	}
	if r.seen == nil {
		r.seen = map[string]int{}
	}
	r.seen[key]++
	return r.seen[key] <= r.Limit, nil
}

// Calls returns how often key was checked.
func (r *RateLimiterStub) Calls(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seen[key]
}
