package repository

import "context"

// Factory describes access to different domain repositories.
type Factory interface {
	Users() UserRepository
	Addresses() AddressRepository
	Carts() CartRepository
	Products() ProductRepository
	Bundles() BundleRepository
	Orders() OrderRepository
	PaymentLogs() PaymentLogRepository
	Promos() PromoRepository
}

// Transactor runs fn against repositories bound to a single transaction.
// The transaction commits when fn returns nil and rolls back otherwise.
type Transactor interface {
	Factory
	WithinTransaction(ctx context.Context, fn func(tx Factory) error) error
}
