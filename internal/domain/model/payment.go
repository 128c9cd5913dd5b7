package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceStatus is the gateway-side invoice state.
type InvoiceStatus string

const (
	InvoiceStatusPending InvoiceStatus = "PENDING"
	InvoiceStatusPaid    InvoiceStatus = "PAID"
	InvoiceStatusSettled InvoiceStatus = "SETTLED"
	InvoiceStatusExpired InvoiceStatus = "EXPIRED"
)

// IsPaid treats settled invoices as paid.
func (s InvoiceStatus) IsPaid() bool {
	return s == InvoiceStatusPaid || s == InvoiceStatusSettled
}

// Invoice is a hosted payment page issued by the gateway.
type Invoice struct {
	ID         string
	ExternalID string
	Status     InvoiceStatus
	URL        string
	Amount     decimal.Decimal
	ExpiresAt  time.Time
}

// InvoiceRequest asks the gateway for a new invoice.
type InvoiceRequest struct {
	ExternalID  string
	OrderNumber string
	Amount      decimal.Decimal
	Discount    decimal.Decimal
	Currency    string
	Duration    time.Duration
	Customer    InvoiceCustomer
	Items       []InvoiceItem
}

type InvoiceCustomer struct {
	Email      string
	GivenNames string
	Phone      string
	Address    Address
}

type InvoiceItem struct {
	Name     string
	Price    decimal.Decimal
	Quantity int
}

// PaymentLog is an append-only audit entry for inbound payment signals.
type PaymentLog struct {
	ID         int64
	OrderID    int64
	Status     string
	RawPayload json.RawMessage
	CreatedAt  time.Time
}

// PaymentEvent is an asynchronous payment notification from the gateway.
type PaymentEvent struct {
	EventID    string
	ExternalID string
	Status     InvoiceStatus
	Payload    json.RawMessage
}

// WebhookResult is the acknowledgement tag returned to the gateway.
type WebhookResult string

const (
	WebhookSuccess               WebhookResult = "success"
	WebhookIgnoredAlreadyPaid    WebhookResult = "ignored_already_paid"
	WebhookIgnoredCancelled      WebhookResult = "ignored_cancelled"
	WebhookIgnoredInvalidPayload WebhookResult = "ignored_invalid_payload"
	WebhookIgnoredUnknownOrder   WebhookResult = "ignored_unknown_order"
	WebhookIgnoredBadState       WebhookResult = "ignored_bad_state"
	WebhookRejectedMismatch      WebhookResult = "rejected_mismatch"
)
