package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus describes the order lifecycle.
type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "PENDING"
	OrderStatusPaid            OrderStatus = "PAID"
	OrderStatusShipped         OrderStatus = "SHIPPED"
	OrderStatusCompleted       OrderStatus = "COMPLETED"
	OrderStatusCancelled       OrderStatus = "CANCELLED"
	OrderStatusRefundRequested OrderStatus = "REFUND_REQUESTED"
	OrderStatusRefunded        OrderStatus = "REFUNDED"
)

// IsTerminal reports statuses no transition leaves.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCancelled || s == OrderStatusRefunded || s == OrderStatusCompleted
}

// CanCancel reports whether the order may still be cancelled.
func (s OrderStatus) CanCancel() bool {
	return s == OrderStatusPending
}

// IsFulfilled reports statuses reached after a successful payment.
// Cancellation never reverses them.
func (s OrderStatus) IsFulfilled() bool {
	switch s {
	case OrderStatusPaid, OrderStatusShipped, OrderStatusCompleted, OrderStatusRefundRequested, OrderStatusRefunded:
		return true
	}
	return false
}

// Payment status values mirrored from the gateway or set locally.
const (
	PaymentStatusPending   = "PENDING"
	PaymentStatusPaid      = "PAID"
	PaymentStatusExpired   = "EXPIRED"
	PaymentStatusCancelled = "CANCELLED"
	PaymentStatusRefunded  = "REFUNDED"
)

// Order is a purchase with frozen item, price and shipping snapshots.
type Order struct {
	ID                int64
	Number            string
	UserID            int64
	Status            OrderStatus
	PaymentStatus     string
	Subtotal          decimal.Decimal
	DiscountAmount    decimal.Decimal
	TotalAmount       decimal.Decimal
	PromoCodeID       *int64
	ShippingAddress   string
	ShippingPhone     string
	ShippingReceiver  string
	PaymentExternalID string
	PaymentURL        string
	PaidAt            *time.Time
	PendingSince      time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
	Items             []OrderItem
}

// ExpiredAt reports whether a pending order outlived its payment window.
func (o Order) ExpiredAt(now time.Time, window time.Duration) bool {
	return o.Status == OrderStatusPending && now.Sub(o.PendingSince) > window
}

// OrderItem holds the product snapshot taken at purchase time.
type OrderItem struct {
	ID              int64
	OrderID         int64
	ProductID       int64
	ProductName     string
	ProductSKU      string
	Quantity        int
	PriceAtPurchase decimal.Decimal
}

// Subtotal returns price at purchase multiplied by quantity.
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.PriceAtPurchase.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// SumItems totals the item snapshots.
func SumItems(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// StatusChange lists the columns a status transition may touch alongside status.
type StatusChange struct {
	PaymentStatus string
	PaidAt        *time.Time
	// ExternalID replaces the payment reference and clears the payment URL.
	ExternalID string
	// PendingSince restarts the payment window when set.
	PendingSince *time.Time
}
