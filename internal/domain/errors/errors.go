package errors

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrAlreadyExists      = errors.New("already exists")
	ErrNotFound           = errors.New("not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidAmount      = errors.New("invalid amount")

	ErrEmptyCart       = errors.New("cart is empty or not found")
	ErrAddressNotFound = errors.New("address not found")
	ErrInvalidQuantity = errors.New("quantity must be positive")

	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrStateChanged       = errors.New("order state changed, retry")
	ErrCheckoutTimeout    = errors.New("checkout timed out, retry")
	ErrAlreadyPaid        = errors.New("ALREADY_PAID")
	ErrOrderCancelled     = errors.New("cannot pay a cancelled order, create a new order")
	ErrInvalidTransition  = errors.New("invalid order state transition")
	ErrOrderExpired       = errors.New("order expired")
	ErrBundleNoComponents = errors.New("bundle has no components")
	ErrProductUnavailable = errors.New("product unavailable")

	ErrPromoInvalid      = errors.New("promo code is not valid")
	ErrPromoInactive     = errors.New("promo code is not active")
	ErrPromoExpired      = errors.New("promo code is expired")
	ErrPromoExhausted    = errors.New("promo code usage limit reached")
	ErrPromoBelowMinimum = errors.New("order amount below promo minimum")
	ErrPromoUserLimit    = errors.New("maximum usage limit for this promo code reached")

	ErrMissingEventID  = errors.New("payment event has no event id")
	ErrInvoiceNotFound = errors.New("invoice not found")
)

// StockError reports a shortfall for a single physical product.
type StockError struct {
	ProductID int64
	Requested int
	Available int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested %d, available %d", e.ProductID, e.Requested, e.Available)
}

func (e *StockError) Unwrap() error { return ErrInsufficientStock }

// PromoMinimumError carries the configured minimum order amount.
type PromoMinimumError struct {
	Minimum decimal.Decimal
}

func (e *PromoMinimumError) Error() string {
	return fmt.Sprintf("promo code minimum order amount is %s", e.Minimum.String())
}

func (e *PromoMinimumError) Unwrap() error { return ErrPromoBelowMinimum }

// IntegrityError marks broken catalog data. It is never retried.
type IntegrityError struct {
	Err    error
	Detail string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity violation: %s: %v", e.Detail, e.Err)
}

func (e *IntegrityError) Unwrap() error { return e.Err }

// IsValidation reports errors rejected synchronously without retry.
func IsValidation(err error) bool {
	return errors.Is(err, ErrEmptyCart) ||
		errors.Is(err, ErrAddressNotFound) ||
		errors.Is(err, ErrInvalidQuantity) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrPromoInvalid) ||
		errors.Is(err, ErrPromoInactive) ||
		errors.Is(err, ErrPromoExpired) ||
		errors.Is(err, ErrPromoBelowMinimum) ||
		errors.Is(err, ErrPromoUserLimit)
}

// IsConflict reports conditions the user may retry.
func IsConflict(err error) bool {
	return errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrPromoExhausted) ||
		errors.Is(err, ErrStateChanged) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrAlreadyPaid) ||
		errors.Is(err, ErrOrderCancelled)
}

// IsExpectedTransition reports state-machine refusals that cannot change outcome on retry.
func IsExpectedTransition(err error) bool {
	return errors.Is(err, ErrAlreadyPaid) ||
		errors.Is(err, ErrOrderCancelled) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrStateChanged) ||
		errors.Is(err, ErrNotFound)
}
