package repository

import (
	"context"

	"github.com/polkiloo/storefront/internal/domain/model"
)

// PromoRepository describes promo code reads and redemption bookkeeping.
type PromoRepository interface {
	GetByCode(ctx context.Context, code string) (*model.PromoCode, error)
	CountUserRedemptions(ctx context.Context, promoID, userID int64) (int, error)
	// Redeem records the usage against the order and returns the new global usage count.
	Redeem(ctx context.Context, promoID, userID, orderID int64) (int, error)
}
