package postgres

import (
	"context"
	"time"

	domainErrors "github.com/polkiloo/storefront/internal/domain/errors"
	"github.com/polkiloo/storefront/internal/domain/model"
)

type orderRepository struct {
	q querier
}

const selectOrder = `SELECT id, order_number, user_id, status, payment_status, subtotal, discount_amount, total_amount,
       promo_code_id, shipping_address, shipping_phone, shipping_receiver, payment_external_id, payment_url,
       paid_at, pending_since, created_at, updated_at
FROM orders`

func scanOrder(row rowScanner) (model.Order, error) {
	var o model.Order
	err := row.Scan(
		&o.ID, &o.Number, &o.UserID, &o.Status, &o.PaymentStatus, &o.Subtotal, &o.DiscountAmount, &o.TotalAmount,
		&o.PromoCodeID, &o.ShippingAddress, &o.ShippingPhone, &o.ShippingReceiver, &o.PaymentExternalID, &o.PaymentURL,
		&o.PaidAt, &o.PendingSince, &o.CreatedAt, &o.UpdatedAt,
	)
	return o, err
}

func (r *orderRepository) Create(ctx context.Context, order *model.Order) error {
	const insertOrder = `INSERT INTO orders (order_number, user_id, status, payment_status, subtotal, discount_amount,
                             total_amount, promo_code_id, shipping_address, shipping_phone, shipping_receiver,
                             payment_external_id, pending_since)
                         VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
                         RETURNING id, created_at, updated_at`
	err := r.q.QueryRow(ctx, insertOrder,
		order.Number, order.UserID, order.Status, order.PaymentStatus, order.Subtotal, order.DiscountAmount,
		order.TotalAmount, order.PromoCodeID, order.ShippingAddress, order.ShippingPhone, order.ShippingReceiver,
		order.PaymentExternalID, order.PendingSince,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domainErrors.ErrAlreadyExists
		}
		return err
	}

	const insertItem = `INSERT INTO order_items (order_id, product_id, product_name, product_sku, quantity, price_at_purchase)
                        VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`
	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID
		err := r.q.QueryRow(ctx, insertItem,
			order.ID, item.ProductID, item.ProductName, item.ProductSKU, item.Quantity, item.PriceAtPurchase,
		).Scan(&item.ID)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *orderRepository) GetByID(ctx context.Context, id int64) (*model.Order, error) {
	return r.getWithItems(ctx, selectOrder+` WHERE id=$1 AND deleted_at IS NULL`, id)
}

func (r *orderRepository) LockByID(ctx context.Context, id int64) (*model.Order, error) {
	return r.getWithItems(ctx, selectOrder+` WHERE id=$1 AND deleted_at IS NULL FOR UPDATE`, id)
}

// GetByExternalID loads the order header without items.
func (r *orderRepository) GetByExternalID(ctx context.Context, externalID string) (*model.Order, error) {
	o, err := scanOrder(r.q.QueryRow(ctx, selectOrder+` WHERE payment_external_id=$1 AND deleted_at IS NULL`, externalID))
	if err != nil {
		return nil, notFound(err)
	}
	return &o, nil
}

func (r *orderRepository) getWithItems(ctx context.Context, query string, id int64) (*model.Order, error) {
	o, err := scanOrder(r.q.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound(err)
	}
	items, err := r.items(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return &o, nil
}

func (r *orderRepository) items(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	const query = `SELECT id, order_id, product_id, product_name, product_sku, quantity, price_at_purchase
                   FROM order_items WHERE order_id=$1 ORDER BY id`
	rows, err := r.q.Query(ctx, query, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.OrderItem
	for rows.Next() {
		var item model.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.ProductName, &item.ProductSKU, &item.Quantity, &item.PriceAtPurchase); err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *orderRepository) ListByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	return r.list(ctx, selectOrder+` WHERE user_id=$1 AND deleted_at IS NULL ORDER BY created_at DESC, id DESC`, userID)
}

func (r *orderRepository) ListExpiredPending(ctx context.Context, before time.Time, limit int) ([]model.Order, error) {
	return r.list(ctx, selectOrder+` WHERE status='PENDING' AND pending_since < $1 AND deleted_at IS NULL
ORDER BY pending_since, id LIMIT $2`, before, limit)
}

func (r *orderRepository) list(ctx context.Context, query string, args ...any) ([]model.Order, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *orderRepository) TransitionStatus(ctx context.Context, id int64, from, to model.OrderStatus, change model.StatusChange) error {
	const query = `UPDATE orders SET status=$3,
                       payment_status = COALESCE(NULLIF($4, ''), payment_status),
                       paid_at = COALESCE($5, paid_at),
                       payment_external_id = COALESCE(NULLIF($6, ''), payment_external_id),
                       payment_url = CASE WHEN $6 = '' THEN payment_url ELSE '' END,
                       pending_since = COALESCE($7, pending_since),
                       updated_at = NOW()
                   WHERE id=$1 AND status=$2 AND deleted_at IS NULL`
	tag, err := r.q.Exec(ctx, query, id, from, to, change.PaymentStatus, change.PaidAt, change.ExternalID, change.PendingSince)
	if err != nil {
		if isUniqueViolation(err) {
			return domainErrors.ErrAlreadyExists
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrStateChanged
	}
	return nil
}

func (r *orderRepository) AttachInvoice(ctx context.Context, id int64, externalID string, invoice model.Invoice) error {
	const query = `UPDATE orders SET payment_url=$3, updated_at=NOW()
                   WHERE id=$1 AND payment_external_id=$2 AND status='PENDING'`
	tag, err := r.q.Exec(ctx, query, id, externalID, invoice.URL)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrStateChanged
	}
	return nil
}
