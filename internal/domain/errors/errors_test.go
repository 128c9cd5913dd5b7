package errors

import (
	stdErrors "errors"
	"fmt"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestSentinelErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
	}{
		{"already exists", ErrAlreadyExists},
		{"not found", ErrNotFound},
		{"invalid credentials", ErrInvalidCredentials},
		{"forbidden", ErrForbidden},
		{"insufficient stock", ErrInsufficientStock},
		{"already paid", ErrAlreadyPaid},
		{"promo below minimum", ErrPromoBelowMinimum},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if !stdErrors.Is(tc.err, tc.err) {
				t.Fatalf("expected error to match itself: %v", tc.err)
			}
		})
	}
}

func TestAlreadyPaidMessage(t *testing.T) {
	if ErrAlreadyPaid.Error() != "ALREADY_PAID" {
		t.Fatalf("unexpected message %q", ErrAlreadyPaid.Error())
	}
}

func TestStockErrorUnwraps(t *testing.T) {
	err := fmt.Errorf("checkout: %w", &StockError{ProductID: 3, Requested: 6, Available: 2})
	if !stdErrors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected stock error to unwrap to ErrInsufficientStock")
	}
	var stockErr *StockError
	if !stdErrors.As(err, &stockErr) || stockErr.ProductID != 3 {
		t.Fatalf("expected StockError with product 3, got %v", err)
	}
	if !IsConflict(err) {
		t.Fatalf("stock shortfall must be a conflict")
	}
}

func TestPromoMinimumErrorMessage(t *testing.T) {
	err := &PromoMinimumError{Minimum: decimal.NewFromInt(50000)}
	if !stdErrors.Is(err, ErrPromoBelowMinimum) {
		t.Fatalf("expected ErrPromoBelowMinimum")
	}
	if !strings.Contains(err.Error(), "50000") {
		t.Fatalf("expected minimum in message, got %q", err.Error())
	}
	if !IsValidation(err) {
		t.Fatalf("below minimum must be a validation error")
	}
}

func TestIntegrityErrorUnwraps(t *testing.T) {
	err := &IntegrityError{Err: ErrBundleNoComponents, Detail: "bundle 9"}
	if !stdErrors.Is(err, ErrBundleNoComponents) {
		t.Fatalf("expected ErrBundleNoComponents")
	}
	if IsConflict(err) || IsValidation(err) {
		t.Fatalf("integrity errors are neither conflicts nor validation errors")
	}
}

func TestIsExpectedTransition(t *testing.T) {
	for _, err := range []error{ErrAlreadyPaid, ErrOrderCancelled, ErrInvalidTransition, ErrStateChanged} {
		if !IsExpectedTransition(fmt.Errorf("wrapped: %w", err)) {
			t.Fatalf("expected %v to be an expected transition error", err)
		}
	}
	if IsExpectedTransition(stdErrors.New("connection reset")) {
		t.Fatalf("unexpected error classified as expected transition")
	}
}
