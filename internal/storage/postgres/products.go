package postgres

import (
	"context"

	domainErrors "github.com/polkiloo/storefront/internal/domain/errors"
	"github.com/polkiloo/storefront/internal/domain/model"
)

type productRepository struct {
	q querier
}

type bundleRepository struct {
	q querier
}

const selectProduct = `SELECT id, name, sku, price, stock, types FROM products`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (model.Product, error) {
	var (
		p     model.Product
		types []string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.SKU, &p.Price, &p.Stock, &types); err != nil {
		return model.Product{}, err
	}
	p.Types = make([]model.ProductType, 0, len(types))
	for _, t := range types {
		p.Types = append(p.Types, model.ProductType(t))
	}
	return p, nil
}

func (r *productRepository) GetByID(ctx context.Context, id int64) (*model.Product, error) {
	p, err := scanProduct(r.q.QueryRow(ctx, selectProduct+` WHERE id=$1 AND deleted_at IS NULL`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (r *productRepository) GetByIDs(ctx context.Context, ids []int64) (map[int64]model.Product, error) {
	list, err := r.list(ctx, selectProduct+` WHERE id = ANY($1) AND deleted_at IS NULL`, ids)
	if err != nil {
		return nil, err
	}
	result := make(map[int64]model.Product, len(list))
	for _, p := range list {
		result[p.ID] = p
	}
	return result, nil
}

func (r *productRepository) LockByIDs(ctx context.Context, ids []int64) ([]model.Product, error) {
	return r.list(ctx, selectProduct+` WHERE id = ANY($1) AND deleted_at IS NULL ORDER BY id FOR UPDATE`, ids)
}

func (r *productRepository) list(ctx context.Context, query string, ids []int64) ([]model.Product, error) {
	rows, err := r.q.Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *productRepository) DecrementStock(ctx context.Context, id int64, qty int) error {
	const query = `UPDATE products SET stock = stock - $2 WHERE id = $1 AND stock >= $2 AND deleted_at IS NULL`
	tag, err := r.q.Exec(ctx, query, id, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &domainErrors.StockError{ProductID: id, Requested: qty}
	}
	return nil
}

func (r *productRepository) IncrementStock(ctx context.Context, id int64, qty int) error {
	const query = `UPDATE products SET stock = stock + $2 WHERE id = $1 AND deleted_at IS NULL`
	tag, err := r.q.Exec(ctx, query, id, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrProductUnavailable
	}
	return nil
}

func (r *bundleRepository) Components(ctx context.Context, bundleID int64) ([]model.BundleItem, error) {
	const query = `SELECT bundle_id, product_id, quantity FROM bundle_items WHERE bundle_id=$1 ORDER BY product_id`
	rows, err := r.q.Query(ctx, query, bundleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.BundleItem
	for rows.Next() {
		var item model.BundleItem
		if err := rows.Scan(&item.BundleID, &item.ProductID, &item.Quantity); err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
