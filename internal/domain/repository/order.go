package repository

import (
	"context"
	"time"

	"github.com/polkiloo/storefront/internal/domain/model"
)

// OrderRepository describes persistence operations with orders.
type OrderRepository interface {
	// Create inserts the order with its items and fills generated ids.
	Create(ctx context.Context, order *model.Order) error
	GetByID(ctx context.Context, id int64) (*model.Order, error)
	GetByExternalID(ctx context.Context, externalID string) (*model.Order, error)
	// LockByID loads the order with its items and holds a row lock until the transaction ends.
	LockByID(ctx context.Context, id int64) (*model.Order, error)
	ListByUser(ctx context.Context, userID int64) ([]model.Order, error)
	// ListExpiredPending returns pending orders whose window started before the cutoff, oldest first.
	ListExpiredPending(ctx context.Context, before time.Time, limit int) ([]model.Order, error)
	// TransitionStatus moves the order from one status to another.
	// It returns ErrStateChanged when the order is no longer in the expected status.
	TransitionStatus(ctx context.Context, id int64, from, to model.OrderStatus, change model.StatusChange) error
	// AttachInvoice stores the payment URL while the order is still pending on the same reference.
	AttachInvoice(ctx context.Context, id int64, externalID string, invoice model.Invoice) error
}
