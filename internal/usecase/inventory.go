package usecase

import (
	"context"
	"fmt"
	"slices"

	domainErrors "github.com/polkiloo/storefront/internal/domain/errors"
	"github.com/polkiloo/storefront/internal/domain/model"
	"github.com/polkiloo/storefront/internal/domain/repository"
)

// InventoryLocker takes product row locks for the enclosing transaction.
// Locks are always taken in ascending id order so overlapping checkouts cannot deadlock.
type InventoryLocker struct {
	products repository.ProductRepository
}

// NewInventoryLocker constructs InventoryLocker bound to a transactional repository.
func NewInventoryLocker(products repository.ProductRepository) *InventoryLocker {
	return &InventoryLocker{products: products}
}

// Lock locks the live rows among ids and returns them keyed by id.
// Deleted or unknown products are absent from the result.
func (l *InventoryLocker) Lock(ctx context.Context, ids []int64) (map[int64]model.Product, error) {
	ordered := uniqueSorted(ids)
	if len(ordered) == 0 {
		return map[int64]model.Product{}, nil
	}

	rows, err := l.products.LockByIDs(ctx, ordered)
	if err != nil {
		return nil, err
	}
	locked := make(map[int64]model.Product, len(rows))
	for _, p := range rows {
		locked[p.ID] = p
	}
	return locked, nil
}

// LockAll is Lock that fails with ErrProductUnavailable when any id has no live row.
func (l *InventoryLocker) LockAll(ctx context.Context, ids []int64) (map[int64]model.Product, error) {
	locked, err := l.Lock(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if _, ok := locked[id]; !ok {
			return nil, fmt.Errorf("%w: product %d", domainErrors.ErrProductUnavailable, id)
		}
	}
	return locked, nil
}

// Reserve locks every required product, verifies live stock and decrements it.
func (l *InventoryLocker) Reserve(ctx context.Context, reqs []model.StockRequirement) error {
	reqs = AggregateRequirements(reqs)
	ids := make([]int64, 0, len(reqs))
	for _, r := range reqs {
		ids = append(ids, r.ProductID)
	}

	locked, err := l.LockAll(ctx, ids)
	if err != nil {
		return err
	}
	for _, r := range reqs {
		if available := locked[r.ProductID].Stock; available < r.Quantity {
			return &domainErrors.StockError{ProductID: r.ProductID, Requested: r.Quantity, Available: available}
		}
	}
	for _, r := range reqs {
		if err := l.products.DecrementStock(ctx, r.ProductID, r.Quantity); err != nil {
			return err
		}
	}
	return nil
}

func uniqueSorted(ids []int64) []int64 {
	out := slices.Clone(ids)
	sortIDs(out)
	return slices.Compact(out)
}

func sortIDs(ids []int64) {
	slices.Sort(ids)
}
