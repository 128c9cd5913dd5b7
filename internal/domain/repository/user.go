package repository

import (
	"context"

	"github.com/polkiloo/storefront/internal/domain/model"
)

// UserRepository describes persistence operations for users.
type UserRepository interface {
	Create(ctx context.Context, login, email, passwordHash string, role model.Role) (*model.User, error)
	GetByLogin(ctx context.Context, login string) (*model.User, error)
	GetByID(ctx context.Context, id int64) (*model.User, error)
}

// AddressRepository reads saved shipping addresses.
type AddressRepository interface {
	GetByID(ctx context.Context, userID, addressID int64) (*model.Address, error)
}

// CartRepository reads and empties shopping carts.
type CartRepository interface {
	GetByUser(ctx context.Context, userID int64) (*model.Cart, error)
	Clear(ctx context.Context, cartID int64) error
}
