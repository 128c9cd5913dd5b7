package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	domainErrors "github.com/polkiloo/storefront/internal/domain/errors"
	"github.com/polkiloo/storefront/internal/domain/model"
)

type userRepository struct {
	q querier
}

type addressRepository struct {
	q querier
}

type cartRepository struct {
	q querier
}

func (r *userRepository) Create(ctx context.Context, login, email, passwordHash string, role model.Role) (*model.User, error) {
	const query = `INSERT INTO users (login, email, password_hash, role) VALUES ($1, $2, $3, $4) RETURNING id, created_at`
	u := model.User{Login: login, Email: email, PasswordHash: passwordHash, Role: role}
	if err := r.q.QueryRow(ctx, query, login, email, passwordHash, role).Scan(&u.ID, &u.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return nil, domainErrors.ErrAlreadyExists
		}
		return nil, err
	}
	return &u, nil
}

const selectUser = `SELECT id, login, email, password_hash, role, created_at FROM users`

func (r *userRepository) GetByLogin(ctx context.Context, login string) (*model.User, error) {
	return r.get(ctx, selectUser+` WHERE login=$1 AND deleted_at IS NULL`, login)
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	return r.get(ctx, selectUser+` WHERE id=$1 AND deleted_at IS NULL`, id)
}

func (r *userRepository) get(ctx context.Context, query string, arg any) (*model.User, error) {
	var u model.User
	err := r.q.QueryRow(ctx, query, arg).Scan(&u.ID, &u.Login, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (r *addressRepository) GetByID(ctx context.Context, userID, addressID int64) (*model.Address, error) {
	const query = `SELECT id, user_id, receiver_name, phone, street_line1, street_line2, city, province, postal_code
                   FROM addresses WHERE id=$1 AND user_id=$2 AND deleted_at IS NULL`
	var a model.Address
	err := r.q.QueryRow(ctx, query, addressID, userID).Scan(
		&a.ID, &a.UserID, &a.ReceiverName, &a.Phone, &a.StreetLine1, &a.StreetLine2, &a.City, &a.Province, &a.PostalCode,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrAddressNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (r *cartRepository) GetByUser(ctx context.Context, userID int64) (*model.Cart, error) {
	const cartQuery = `SELECT id FROM carts WHERE user_id=$1`
	cart := model.Cart{UserID: userID}
	if err := r.q.QueryRow(ctx, cartQuery, userID).Scan(&cart.ID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrEmptyCart
		}
		return nil, err
	}

	const itemsQuery = `SELECT product_id, quantity FROM cart_items WHERE cart_id=$1 ORDER BY product_id`
	rows, err := r.q.Query(ctx, itemsQuery, cart.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var item model.CartItem
		if err := rows.Scan(&item.ProductID, &item.Quantity); err != nil {
			return nil, err
		}
		cart.Items = append(cart.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &cart, nil
}

func (r *cartRepository) Clear(ctx context.Context, cartID int64) error {
	_, err := r.q.Exec(ctx, `DELETE FROM cart_items WHERE cart_id=$1`, cartID)
	return err
}
