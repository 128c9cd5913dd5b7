package postgres

import (
	"context"

	"github.com/polkiloo/storefront/internal/domain/model"
)

type promoRepository struct {
	q querier
}

type paymentLogRepository struct {
	q querier
}

func (r *promoRepository) GetByCode(ctx context.Context, code string) (*model.PromoCode, error) {
	const query = `SELECT id, code, discount_type, value, max_discount, min_order_amount, is_active,
                          start_date, end_date, usage_limit, usage_per_user, usage_count
                   FROM promo_codes WHERE code=$1 AND deleted_at IS NULL`
	var p model.PromoCode
	err := r.q.QueryRow(ctx, query, code).Scan(
		&p.ID, &p.Code, &p.Type, &p.Value, &p.MaxDiscount, &p.MinOrderAmount, &p.IsActive,
		&p.StartDate, &p.EndDate, &p.UsageLimit, &p.UsagePerUser, &p.UsageCount,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (r *promoRepository) CountUserRedemptions(ctx context.Context, promoID, userID int64) (int, error) {
	const query = `SELECT COUNT(*) FROM voucher_usages WHERE promo_code_id=$1 AND user_id=$2`
	var count int
	if err := r.q.QueryRow(ctx, query, promoID, userID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *promoRepository) Redeem(ctx context.Context, promoID, userID, orderID int64) (int, error) {
	const update = `UPDATE promo_codes SET usage_count = usage_count + 1 WHERE id=$1 RETURNING usage_count`
	var count int
	if err := r.q.QueryRow(ctx, update, promoID).Scan(&count); err != nil {
		return 0, notFound(err)
	}

	const insert = `INSERT INTO voucher_usages (promo_code_id, user_id, order_id) VALUES ($1, $2, $3)`
	if _, err := r.q.Exec(ctx, insert, promoID, userID, orderID); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *paymentLogRepository) Append(ctx context.Context, entry model.PaymentLog) error {
	const query = `INSERT INTO payment_logs (order_id, status, raw_payload) VALUES ($1, $2, $3)`
	payload := entry.RawPayload
	if len(payload) == 0 {
		payload = []byte(`{}`)
	}
	_, err := r.q.Exec(ctx, query, entry.OrderID, entry.Status, payload)
	return err
}

func (r *paymentLogRepository) ListByOrder(ctx context.Context, orderID int64) ([]model.PaymentLog, error) {
	const query = `SELECT id, order_id, status, raw_payload, created_at FROM payment_logs WHERE order_id=$1 ORDER BY created_at, id`
	rows, err := r.q.Query(ctx, query, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.PaymentLog
	for rows.Next() {
		var entry model.PaymentLog
		if err := rows.Scan(&entry.ID, &entry.OrderID, &entry.Status, &entry.RawPayload, &entry.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
