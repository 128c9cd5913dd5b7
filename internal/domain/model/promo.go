package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DiscountType selects how a promo value is applied.
type DiscountType string

const (
	DiscountTypeFixed      DiscountType = "FIXED"
	DiscountTypePercentage DiscountType = "PERCENTAGE"
)

// PromoCode describes a redeemable discount.
type PromoCode struct {
	ID             int64
	Code           string
	Type           DiscountType
	Value          decimal.Decimal
	MaxDiscount    *decimal.Decimal
	MinOrderAmount *decimal.Decimal
	IsActive       bool
	StartDate      time.Time
	EndDate        time.Time
	UsageLimit     *int
	UsagePerUser   *int
	UsageCount     int
}

// PromoEvaluation is the outcome of validating a promo against a subtotal.
type PromoEvaluation struct {
	PromoID        int64
	Code           string
	DiscountAmount decimal.Decimal
	FinalAmount    decimal.Decimal
	Type           DiscountType
	Value          decimal.Decimal
	MaxDiscount    *decimal.Decimal
	MinOrderAmount *decimal.Decimal
	UsageLimit     *int
	UsagePerUser   *int
}
