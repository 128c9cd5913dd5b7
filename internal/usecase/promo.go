package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	domainErrors "github.com/polkiloo/storefront/internal/domain/errors"
	"github.com/polkiloo/storefront/internal/domain/model"
	"github.com/polkiloo/storefront/internal/domain/repository"
)

var hundred = decimal.NewFromInt(100)

// PromoEvaluator validates promo codes and computes discounts.
// It never touches usage counters.
type PromoEvaluator struct {
	promos repository.PromoRepository
	now    func() time.Time
}

// NewPromoEvaluator constructs PromoEvaluator.
func NewPromoEvaluator(promos repository.PromoRepository, now func() time.Time) *PromoEvaluator {
	if now == nil {
		now = time.Now
	}
	return &PromoEvaluator{promos: promos, now: now}
}

// Validate runs the checks in order and fails fast on the first violation.
func (e *PromoEvaluator) Validate(ctx context.Context, userID int64, code string, subtotal decimal.Decimal) (*model.PromoEvaluation, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, domainErrors.ErrPromoInvalid
	}

	promo, err := e.promos.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, domainErrors.ErrNotFound) {
			return nil, domainErrors.ErrPromoInvalid
		}
		return nil, err
	}

	if !promo.IsActive {
		return nil, domainErrors.ErrPromoInactive
	}
	now := e.now()
	if now.Before(promo.StartDate) || now.After(promo.EndDate) {
		return nil, domainErrors.ErrPromoExpired
	}
	if promo.UsageLimit != nil && promo.UsageCount >= *promo.UsageLimit {
		return nil, domainErrors.ErrPromoExhausted
	}
	if promo.MinOrderAmount != nil && subtotal.LessThan(*promo.MinOrderAmount) {
		return nil, &domainErrors.PromoMinimumError{Minimum: *promo.MinOrderAmount}
	}
	if promo.UsagePerUser != nil {
		used, err := e.promos.CountUserRedemptions(ctx, promo.ID, userID)
		if err != nil {
			return nil, err
		}
		if used >= *promo.UsagePerUser {
			return nil, domainErrors.ErrPromoUserLimit
		}
	}

	discount := CalculateDiscount(*promo, subtotal)
	return &model.PromoEvaluation{
		PromoID:        promo.ID,
		Code:           promo.Code,
		DiscountAmount: discount,
		FinalAmount:    subtotal.Sub(discount),
		Type:           promo.Type,
		Value:          promo.Value,
		MaxDiscount:    promo.MaxDiscount,
		MinOrderAmount: promo.MinOrderAmount,
		UsageLimit:     promo.UsageLimit,
		UsagePerUser:   promo.UsagePerUser,
	}, nil
}

// CalculateDiscount applies the promo to subtotal. The result never exceeds subtotal.
func CalculateDiscount(promo model.PromoCode, subtotal decimal.Decimal) decimal.Decimal {
	var discount decimal.Decimal
	switch promo.Type {
	case model.DiscountTypePercentage:
		discount = subtotal.Mul(promo.Value).Div(hundred).Round(2)
		if promo.MaxDiscount != nil && discount.GreaterThan(*promo.MaxDiscount) {
			discount = *promo.MaxDiscount
		}
	default:
		discount = promo.Value
	}

	if discount.IsNegative() {
		return decimal.Zero
	}
	if discount.GreaterThan(subtotal) {
		return subtotal
	}
	return discount
}

// PromoUseCase serves standalone promo checks before checkout.
type PromoUseCase struct {
	store repository.Factory
	now   func() time.Time
}

// NewPromoUseCase constructs PromoUseCase.
func NewPromoUseCase(store repository.Transactor) *PromoUseCase {
	return &PromoUseCase{store: store, now: time.Now}
}

// Validate evaluates code for the actor against amount.
func (u *PromoUseCase) Validate(ctx context.Context, actor model.Actor, code string, amount decimal.Decimal) (*model.PromoEvaluation, error) {
	if amount.IsNegative() {
		return nil, domainErrors.ErrInvalidAmount
	}
	return NewPromoEvaluator(u.store.Promos(), u.now).Validate(ctx, actor.UserID, code, amount)
}
