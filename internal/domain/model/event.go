package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderEventType names notifications emitted on order transitions.
type OrderEventType string

const (
	EventOrderCreated    OrderEventType = "OrderCreated"
	EventOrderPaid       OrderEventType = "OrderPaid"
	EventOrderCancelled  OrderEventType = "OrderCancelled"
	EventOrderRepaid     OrderEventType = "OrderRepaid"
	EventRefundRequested OrderEventType = "RefundRequested"
	EventOrderRefunded   OrderEventType = "OrderRefunded"
	EventOrderShipped    OrderEventType = "OrderShipped"
	EventOrderCompleted  OrderEventType = "OrderCompleted"
)

// OrderEvent is published fire-and-forget for user notification.
type OrderEvent struct {
	Type        OrderEventType  `json:"type"`
	OrderID     int64           `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	UserID      int64           `json:"user_id"`
	Status      OrderStatus     `json:"status"`
	Amount      decimal.Decimal `json:"amount"`
	PaymentURL  string          `json:"payment_url,omitempty"`
	Reason      string          `json:"reason,omitempty"`
	OccurredAt  time.Time       `json:"occurred_at"`
}

// NewOrderEvent builds an event from the order's current state.
func NewOrderEvent(t OrderEventType, order Order, reason string, at time.Time) OrderEvent {
	return OrderEvent{
		Type:        t,
		OrderID:     order.ID,
		OrderNumber: order.Number,
		UserID:      order.UserID,
		Status:      order.Status,
		Amount:      order.TotalAmount,
		PaymentURL:  order.PaymentURL,
		Reason:      reason,
		OccurredAt:  at,
	}
}
