package usecase

import (
	"context"
	"fmt"

	domainErrors "github.com/polkiloo/storefront/internal/domain/errors"
	"github.com/polkiloo/storefront/internal/domain/model"
	"github.com/polkiloo/storefront/internal/domain/repository"
)

// BundleResolver expands bundles into the physical products that carry stock.
type BundleResolver struct {
	bundles repository.BundleRepository
}

// NewBundleResolver constructs BundleResolver over the given repository.
func NewBundleResolver(bundles repository.BundleRepository) *BundleResolver {
	return &BundleResolver{bundles: bundles}
}

// Resolve returns the stock requirements of qty units of product.
func (r *BundleResolver) Resolve(ctx context.Context, product model.Product, qty int) ([]model.StockRequirement, error) {
	if qty <= 0 {
		return nil, domainErrors.ErrInvalidQuantity
	}
	if !product.IsBundle() {
		return []model.StockRequirement{{ProductID: product.ID, Quantity: qty}}, nil
	}

	components, err := r.bundles.Components(ctx, product.ID)
	if err != nil {
		return nil, err
	}
	if len(components) == 0 {
		return nil, &domainErrors.IntegrityError{
			Err:    domainErrors.ErrBundleNoComponents,
			Detail: fmt.Sprintf("bundle %d (%s)", product.ID, product.SKU),
		}
	}

	result := make([]model.StockRequirement, 0, len(components))
	for _, c := range components {
		result = append(result, model.StockRequirement{ProductID: c.ProductID, Quantity: c.Quantity * qty})
	}
	return result, nil
}

// AggregateRequirements merges requirements per product, sorted by ascending product id.
func AggregateRequirements(reqs []model.StockRequirement) []model.StockRequirement {
	totals := make(map[int64]int, len(reqs))
	for _, r := range reqs {
		totals[r.ProductID] += r.Quantity
	}
	ids := make([]int64, 0, len(totals))
	for id := range totals {
		ids = append(ids, id)
	}
	sortIDs(ids)

	result := make([]model.StockRequirement, 0, len(ids))
	for _, id := range ids {
		result = append(result, model.StockRequirement{ProductID: id, Quantity: totals[id]})
	}
	return result
}
