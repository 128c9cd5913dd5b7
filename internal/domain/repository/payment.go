package repository

import (
	"context"

	"github.com/polkiloo/storefront/internal/domain/model"
)

// PaymentLogRepository stores the append-only payment audit trail.
type PaymentLogRepository interface {
	Append(ctx context.Context, entry model.PaymentLog) error
	ListByOrder(ctx context.Context, orderID int64) ([]model.PaymentLog, error)
}
