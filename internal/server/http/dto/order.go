package dto

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// CheckoutRequest converts the caller's cart into an order.
type CheckoutRequest struct {
	AddressID int64  `json:"address_id"`
	PromoCode string `json:"promo_code,omitempty"`
}

// ReasonRequest carries an optional free-text reason.
type ReasonRequest struct {
	Reason string `json:"reason,omitempty"`
}

type OrderItemResponse struct {
	ProductID       int64           `json:"product_id"`
	ProductName     string          `json:"product_name"`
	ProductSKU      string          `json:"product_sku,omitempty"`
	Quantity        int             `json:"quantity"`
	PriceAtPurchase decimal.Decimal `json:"price_at_purchase"`
	Subtotal        decimal.Decimal `json:"subtotal"`
}

// OrderResponse is the public view of an order.
type OrderResponse struct {
	ID               int64               `json:"id"`
	Number           string              `json:"order_number"`
	Status           string              `json:"status"`
	PaymentStatus    string              `json:"payment_status"`
	Subtotal         decimal.Decimal     `json:"subtotal"`
	DiscountAmount   decimal.Decimal     `json:"discount_amount"`
	TotalAmount      decimal.Decimal     `json:"total_amount"`
	ShippingAddress  string              `json:"shipping_address"`
	ShippingReceiver string              `json:"shipping_receiver"`
	ShippingPhone    string              `json:"shipping_phone"`
	PaymentURL       string              `json:"payment_url,omitempty"`
	PaidAt           *time.Time          `json:"paid_at,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
	Items            []OrderItemResponse `json:"items,omitempty"`
}

type PaymentLogResponse struct {
	Status     string          `json:"status"`
	RawPayload json.RawMessage `json:"raw_payload,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// ErrorResponse is returned for rejected requests.
type ErrorResponse struct {
	Error string `json:"error"`
}
