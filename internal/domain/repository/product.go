package repository

import (
	"context"

	"github.com/polkiloo/storefront/internal/domain/model"
)

// ProductRepository describes catalog reads and stock mutations.
// Soft-deleted products are invisible to every read.
type ProductRepository interface {
	GetByID(ctx context.Context, id int64) (*model.Product, error)
	GetByIDs(ctx context.Context, ids []int64) (map[int64]model.Product, error)
	// LockByIDs takes row locks in the order the ids are given.
	LockByIDs(ctx context.Context, ids []int64) ([]model.Product, error)
	// DecrementStock fails with ErrInsufficientStock when stock would go negative.
	DecrementStock(ctx context.Context, id int64, qty int) error
	IncrementStock(ctx context.Context, id int64, qty int) error
}

// BundleRepository reads bundle composition.
type BundleRepository interface {
	Components(ctx context.Context, bundleID int64) ([]model.BundleItem, error)
}
