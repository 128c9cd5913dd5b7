package test

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	domainErrors "github.com/polkiloo/storefront/internal/domain/errors"
	"github.com/polkiloo/storefront/internal/domain/model"
	"github.com/polkiloo/storefront/internal/domain/repository"
)

// MemoryStore is an in-memory repository.Transactor.
// Transactions run against a copy of the data that replaces the live state on commit,
// so a failed callback leaves no trace. Transactions and single statements are serialized.
type MemoryStore struct {
	mu    sync.Mutex
	state *memState

	// Hook runs at the start of every repository call with the operation name,
	// e.g. "Orders.Create". A non-nil error is returned from the call.
	Hook func(ctx context.Context, op string) error
	Now  func() time.Time

	lockCalls [][]int64
	commits   int
	rollbacks int
}

type voucherUsage struct {
	promoID int64
	userID  int64
	orderID int64
}

type memState struct {
	users     map[int64]model.User
	addresses map[int64]model.Address
	carts     map[int64]model.Cart
	products  map[int64]model.Product
	bundles   map[int64][]model.BundleItem
	promos    map[string]model.PromoCode
	usages    []voucherUsage
	orders    map[int64]model.Order
	logs      []model.PaymentLog

	nextUser  int64
	nextOrder int64
	nextItem  int64
	nextLog   int64
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		state: &memState{
			users:     make(map[int64]model.User),
			addresses: make(map[int64]model.Address),
			carts:     make(map[int64]model.Cart),
			products:  make(map[int64]model.Product),
			bundles:   make(map[int64][]model.BundleItem),
			promos:    make(map[string]model.PromoCode),
			orders:    make(map[int64]model.Order),
		},
	}
}

var _ repository.Transactor = (*MemoryStore)(nil)

func (st *memState) clone() *memState {
	c := *st
	c.users = cloneMap(st.users)
	c.addresses = cloneMap(st.addresses)
	c.carts = make(map[int64]model.Cart, len(st.carts))
	for k, v := range st.carts {
		v.Items = slices.Clone(v.Items)
		c.carts[k] = v
	}
	c.products = make(map[int64]model.Product, len(st.products))
	for k, v := range st.products {
		v.Types = slices.Clone(v.Types)
		c.products[k] = v
	}
	c.bundles = make(map[int64][]model.BundleItem, len(st.bundles))
	for k, v := range st.bundles {
		c.bundles[k] = slices.Clone(v)
	}
	c.promos = cloneMap(st.promos)
	c.usages = slices.Clone(st.usages)
	c.orders = make(map[int64]model.Order, len(st.orders))
	for k, v := range st.orders {
		v.Items = slices.Clone(v.Items)
		c.orders[k] = v
	}
	c.logs = slices.Clone(st.logs)
	return &c
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// WithinTransaction runs fn on a private copy and commits it when fn and ctx both succeed.
func (s *MemoryStore) WithinTransaction(ctx context.Context, fn func(tx repository.Factory) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &memRepos{store: s, st: s.state.clone()}
	if err := fn(tx); err != nil {
		s.rollbacks++
		return err
	}
	if err := ctx.Err(); err != nil {
		s.rollbacks++
		return err
	}
	s.state = tx.st
	s.commits++
	return nil
}

func (s *MemoryStore) Users() repository.UserRepository             { return memUsers{s.auto()} }
func (s *MemoryStore) Addresses() repository.AddressRepository      { return memAddresses{s.auto()} }
func (s *MemoryStore) Carts() repository.CartRepository             { return memCarts{s.auto()} }
func (s *MemoryStore) Products() repository.ProductRepository       { return memProducts{s.auto()} }
func (s *MemoryStore) Bundles() repository.BundleRepository         { return memBundles{s.auto()} }
func (s *MemoryStore) Orders() repository.OrderRepository           { return memOrders{s.auto()} }
func (s *MemoryStore) PaymentLogs() repository.PaymentLogRepository { return memLogs{s.auto()} }
func (s *MemoryStore) Promos() repository.PromoRepository           { return memPromos{s.auto()} }

// auto returns repositories that run every call as its own statement.
func (s *MemoryStore) auto() *memRepos { return &memRepos{store: s} }

type memRepos struct {
	store *MemoryStore
	st    *memState
}

func (r *memRepos) Users() repository.UserRepository             { return memUsers{r} }
func (r *memRepos) Addresses() repository.AddressRepository      { return memAddresses{r} }
func (r *memRepos) Carts() repository.CartRepository             { return memCarts{r} }
func (r *memRepos) Products() repository.ProductRepository       { return memProducts{r} }
func (r *memRepos) Bundles() repository.BundleRepository         { return memBundles{r} }
func (r *memRepos) Orders() repository.OrderRepository           { return memOrders{r} }
func (r *memRepos) PaymentLogs() repository.PaymentLogRepository { return memLogs{r} }
func (r *memRepos) Promos() repository.PromoRepository           { return memPromos{r} }

// run executes fn against the transaction copy or, outside a transaction, the live state.
func (r *memRepos) run(ctx context.Context, op string, fn func(st *memState) error) error {
	if hook := r.store.Hook; hook != nil {
		if err := hook(ctx, op); err != nil {
			return err
		}
	}
	if r.st != nil {
		return fn(r.st)
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return fn(r.store.state)
}

func (r *memRepos) now() time.Time {
	if r.store.Now != nil {
		return r.store.Now()
	}
	return time.Now()
}

type memUsers struct{ *memRepos }

func (r memUsers) Create(ctx context.Context, login, email, passwordHash string, role model.Role) (*model.User, error) {
	var out model.User
	err := r.run(ctx, "Users.Create", func(st *memState) error {
		for _, u := range st.users {
			if u.Login == login {
				return domainErrors.ErrAlreadyExists
			}
		}
		st.nextUser++
		out = model.User{ID: st.nextUser, Login: login, Email: email, PasswordHash: passwordHash, Role: role, CreatedAt: r.now()}
		st.users[out.ID] = out
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r memUsers) GetByLogin(ctx context.Context, login string) (*model.User, error) {
	var out *model.User
	err := r.run(ctx, "Users.GetByLogin", func(st *memState) error {
		for _, u := range st.users {
			if u.Login == login {
				out = &u
				return nil
			}
		}
		return domainErrors.ErrNotFound
	})
	return out, err
}

func (r memUsers) GetByID(ctx context.Context, id int64) (*model.User, error) {
	var out *model.User
	err := r.run(ctx, "Users.GetByID", func(st *memState) error {
		u, ok := st.users[id]
		if !ok {
			return domainErrors.ErrNotFound
		}
		out = &u
		return nil
	})
	return out, err
}

type memAddresses struct{ *memRepos }

func (r memAddresses) GetByID(ctx context.Context, userID, addressID int64) (*model.Address, error) {
	var out *model.Address
	err := r.run(ctx, "Addresses.GetByID", func(st *memState) error {
		a, ok := st.addresses[addressID]
		if !ok || a.UserID != userID {
			return domainErrors.ErrAddressNotFound
		}
		out = &a
		return nil
	})
	return out, err
}

type memCarts struct{ *memRepos }

func (r memCarts) GetByUser(ctx context.Context, userID int64) (*model.Cart, error) {
	var out *model.Cart
	err := r.run(ctx, "Carts.GetByUser", func(st *memState) error {
		c, ok := st.carts[userID]
		if !ok {
			return domainErrors.ErrEmptyCart
		}
		c.Items = slices.Clone(c.Items)
		out = &c
		return nil
	})
	return out, err
}

func (r memCarts) Clear(ctx context.Context, cartID int64) error {
	return r.run(ctx, "Carts.Clear", func(st *memState) error {
		for userID, c := range st.carts {
			if c.ID == cartID {
				c.Items = nil
				st.carts[userID] = c
			}
		}
		return nil
	})
}

type memProducts struct{ *memRepos }

func (r memProducts) GetByID(ctx context.Context, id int64) (*model.Product, error) {
	var out *model.Product
	err := r.run(ctx, "Products.GetByID", func(st *memState) error {
		p, ok := st.products[id]
		if !ok || p.DeletedAt != nil {
			return domainErrors.ErrNotFound
		}
		out = &p
		return nil
	})
	return out, err
}

func (r memProducts) GetByIDs(ctx context.Context, ids []int64) (map[int64]model.Product, error) {
	out := make(map[int64]model.Product, len(ids))
	err := r.run(ctx, "Products.GetByIDs", func(st *memState) error {
		for _, id := range ids {
			if p, ok := st.products[id]; ok && p.DeletedAt == nil {
				out[id] = p
			}
		}
		return nil
	})
	return out, err
}

func (r memProducts) LockByIDs(ctx context.Context, ids []int64) ([]model.Product, error) {
	var out []model.Product
	err := r.run(ctx, "Products.LockByIDs", func(st *memState) error {
		r.store.lockCalls = append(r.store.lockCalls, slices.Clone(ids))
		for _, id := range ids {
			if p, ok := st.products[id]; ok && p.DeletedAt == nil {
				out = append(out, p)
			}
		}
		return nil
	})
	return out, err
}

func (r memProducts) DecrementStock(ctx context.Context, id int64, qty int) error {
	return r.run(ctx, "Products.DecrementStock", func(st *memState) error {
		p, ok := st.products[id]
		if !ok || p.DeletedAt != nil || p.Stock < qty {
			return &domainErrors.StockError{ProductID: id, Requested: qty}
		}
		p.Stock -= qty
		st.products[id] = p
		return nil
	})
}

func (r memProducts) IncrementStock(ctx context.Context, id int64, qty int) error {
	return r.run(ctx, "Products.IncrementStock", func(st *memState) error {
		p, ok := st.products[id]
		if !ok || p.DeletedAt != nil {
			return domainErrors.ErrProductUnavailable
		}
		p.Stock += qty
		st.products[id] = p
		return nil
	})
}

type memBundles struct{ *memRepos }

func (r memBundles) Components(ctx context.Context, bundleID int64) ([]model.BundleItem, error) {
	var out []model.BundleItem
	err := r.run(ctx, "Bundles.Components", func(st *memState) error {
		out = slices.Clone(st.bundles[bundleID])
		return nil
	})
	return out, err
}

type memOrders struct{ *memRepos }

func (r memOrders) Create(ctx context.Context, order *model.Order) error {
	return r.run(ctx, "Orders.Create", func(st *memState) error {
		for _, o := range st.orders {
			if o.Number == order.Number || o.PaymentExternalID == order.PaymentExternalID {
				return domainErrors.ErrAlreadyExists
			}
		}
		st.nextOrder++
		now := r.now()
		order.ID = st.nextOrder
		order.CreatedAt = now
		order.UpdatedAt = now
		for i := range order.Items {
			st.nextItem++
			order.Items[i].ID = st.nextItem
			order.Items[i].OrderID = order.ID
		}
		stored := *order
		stored.Items = slices.Clone(order.Items)
		st.orders[order.ID] = stored
		return nil
	})
}

func (r memOrders) get(ctx context.Context, op string, id int64) (*model.Order, error) {
	var out *model.Order
	err := r.run(ctx, op, func(st *memState) error {
		o, ok := st.orders[id]
		if !ok {
			return domainErrors.ErrNotFound
		}
		o.Items = slices.Clone(o.Items)
		out = &o
		return nil
	})
	return out, err
}

func (r memOrders) GetByID(ctx context.Context, id int64) (*model.Order, error) {
	return r.get(ctx, "Orders.GetByID", id)
}

func (r memOrders) LockByID(ctx context.Context, id int64) (*model.Order, error) {
	return r.get(ctx, "Orders.LockByID", id)
}

func (r memOrders) GetByExternalID(ctx context.Context, externalID string) (*model.Order, error) {
	var out *model.Order
	err := r.run(ctx, "Orders.GetByExternalID", func(st *memState) error {
		for _, o := range st.orders {
			if o.PaymentExternalID == externalID {
				o.Items = nil
				out = &o
				return nil
			}
		}
		return domainErrors.ErrNotFound
	})
	return out, err
}

func (r memOrders) ListByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	var out []model.Order
	err := r.run(ctx, "Orders.ListByUser", func(st *memState) error {
		for _, o := range st.orders {
			if o.UserID == userID {
				o.Items = nil
				out = append(out, o)
			}
		}
		sort.Slice(out, func(i, j int) bool {
			if out[i].CreatedAt.Equal(out[j].CreatedAt) {
				return out[i].ID > out[j].ID
			}
			return out[i].CreatedAt.After(out[j].CreatedAt)
		})
		return nil
	})
	return out, err
}

func (r memOrders) ListExpiredPending(ctx context.Context, before time.Time, limit int) ([]model.Order, error) {
	var out []model.Order
	err := r.run(ctx, "Orders.ListExpiredPending", func(st *memState) error {
		for _, o := range st.orders {
			if o.Status == model.OrderStatusPending && o.PendingSince.Before(before) {
				o.Items = nil
				out = append(out, o)
			}
		}
		sort.Slice(out, func(i, j int) bool {
			if out[i].PendingSince.Equal(out[j].PendingSince) {
				return out[i].ID < out[j].ID
			}
			return out[i].PendingSince.Before(out[j].PendingSince)
		})
		if limit > 0 && len(out) > limit {
			out = out[:limit]
		}
		return nil
	})
	return out, err
}

func (r memOrders) TransitionStatus(ctx context.Context, id int64, from, to model.OrderStatus, change model.StatusChange) error {
	return r.run(ctx, "Orders.TransitionStatus", func(st *memState) error {
		o, ok := st.orders[id]
		if !ok || o.Status != from {
			return domainErrors.ErrStateChanged
		}
		o.Status = to
		if change.PaymentStatus != "" {
			o.PaymentStatus = change.PaymentStatus
		}
		if change.PaidAt != nil {
			o.PaidAt = change.PaidAt
		}
		if change.ExternalID != "" {
			o.PaymentExternalID = change.ExternalID
			o.PaymentURL = ""
		}
		if change.PendingSince != nil {
			o.PendingSince = *change.PendingSince
		}
		o.UpdatedAt = r.now()
		st.orders[id] = o
		return nil
	})
}

func (r memOrders) AttachInvoice(ctx context.Context, id int64, externalID string, invoice model.Invoice) error {
	return r.run(ctx, "Orders.AttachInvoice", func(st *memState) error {
		o, ok := st.orders[id]
		if !ok || o.PaymentExternalID != externalID || o.Status != model.OrderStatusPending {
			return domainErrors.ErrStateChanged
		}
		o.PaymentURL = invoice.URL
		st.orders[id] = o
		return nil
	})
}

type memLogs struct{ *memRepos }

func (r memLogs) Append(ctx context.Context, entry model.PaymentLog) error {
	return r.run(ctx, "PaymentLogs.Append", func(st *memState) error {
		st.nextLog++
		entry.ID = st.nextLog
		entry.CreatedAt = r.now()
		if len(entry.RawPayload) == 0 {
			entry.RawPayload = json.RawMessage(`{}`)
		}
		st.logs = append(st.logs, entry)
		return nil
	})
}

func (r memLogs) ListByOrder(ctx context.Context, orderID int64) ([]model.PaymentLog, error) {
	var out []model.PaymentLog
	err := r.run(ctx, "PaymentLogs.ListByOrder", func(st *memState) error {
		for _, l := range st.logs {
			if l.OrderID == orderID {
				out = append(out, l)
			}
		}
		return nil
	})
	return out, err
}

type memPromos struct{ *memRepos }

func (r memPromos) GetByCode(ctx context.Context, code string) (*model.PromoCode, error) {
	var out *model.PromoCode
	err := r.run(ctx, "Promos.GetByCode", func(st *memState) error {
		p, ok := st.promos[code]
		if !ok {
			return domainErrors.ErrNotFound
		}
		out = &p
		return nil
	})
	return out, err
}

func (r memPromos) CountUserRedemptions(ctx context.Context, promoID, userID int64) (int, error) {
	var n int
	err := r.run(ctx, "Promos.CountUserRedemptions", func(st *memState) error {
		for _, u := range st.usages {
			if u.promoID == promoID && u.userID == userID {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r memPromos) Redeem(ctx context.Context, promoID, userID, orderID int64) (int, error) {
	var count int
	err := r.run(ctx, "Promos.Redeem", func(st *memState) error {
		for code, p := range st.promos {
			if p.ID != promoID {
				continue
			}
			p.UsageCount++
			st.promos[code] = p
			count = p.UsageCount
			st.usages = append(st.usages, voucherUsage{promoID: promoID, userID: userID, orderID: orderID})
			return nil
		}
		return domainErrors.ErrNotFound
	})
	return count, err
}

// Seeding and inspection helpers.

func (s *MemoryStore) locked(fn func(st *memState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.state)
}

// AddUser stores u and returns it with an id assigned when missing.
func (s *MemoryStore) AddUser(u model.User) model.User {
	s.locked(func(st *memState) {
		if u.ID == 0 {
			st.nextUser++
			u.ID = st.nextUser
		} else if u.ID > st.nextUser {
			st.nextUser = u.ID
		}
		if u.Role == "" {
			u.Role = model.RoleCustomer
		}
		st.users[u.ID] = u
	})
	return u
}

func (s *MemoryStore) AddAddress(a model.Address) {
	s.locked(func(st *memState) { st.addresses[a.ID] = a })
}

// SetCart replaces the user's cart. The cart id equals the user id.
func (s *MemoryStore) SetCart(userID int64, items ...model.CartItem) {
	s.locked(func(st *memState) {
		st.carts[userID] = model.Cart{ID: userID, UserID: userID, Items: slices.Clone(items)}
	})
}

func (s *MemoryStore) AddProduct(p model.Product) {
	if len(p.Types) == 0 {
		p.Types = []model.ProductType{model.ProductTypeSingle}
	}
	s.locked(func(st *memState) { st.products[p.ID] = p })
}

// AddBundle stores a bundle product and its composition.
func (s *MemoryStore) AddBundle(p model.Product, components ...model.BundleItem) {
	p.Types = []model.ProductType{model.ProductTypeBundle}
	s.locked(func(st *memState) {
		st.products[p.ID] = p
		for i := range components {
			components[i].BundleID = p.ID
		}
		st.bundles[p.ID] = slices.Clone(components)
	})
}

// DeleteProduct soft-deletes a product.
func (s *MemoryStore) DeleteProduct(id int64, at time.Time) {
	s.locked(func(st *memState) {
		p := st.products[id]
		p.DeletedAt = &at
		st.products[id] = p
	})
}

func (s *MemoryStore) AddPromo(p model.PromoCode) {
	s.locked(func(st *memState) { st.promos[p.Code] = p })
}

// AddRedemption records a past use of a promo code by a user.
func (s *MemoryStore) AddRedemption(promoID, userID int64) {
	s.locked(func(st *memState) {
		st.usages = append(st.usages, voucherUsage{promoID: promoID, userID: userID})
	})
}

// PutOrder stores an order as is, assigning ids when missing.
func (s *MemoryStore) PutOrder(o model.Order) model.Order {
	s.locked(func(st *memState) {
		if o.ID == 0 {
			st.nextOrder++
			o.ID = st.nextOrder
		} else if o.ID > st.nextOrder {
			st.nextOrder = o.ID
		}
		if o.Number == "" {
			o.Number = fmt.Sprintf("ORD-TEST-%d", o.ID)
		}
		if o.PaymentExternalID == "" {
			o.PaymentExternalID = fmt.Sprintf("ref-%d", o.ID)
		}
		for i := range o.Items {
			st.nextItem++
			o.Items[i].ID = st.nextItem
			o.Items[i].OrderID = o.ID
		}
		o.Items = slices.Clone(o.Items)
		st.orders[o.ID] = o
	})
	return o
}

func (s *MemoryStore) Product(id int64) model.Product {
	var p model.Product
	s.locked(func(st *memState) { p = st.products[id] })
	return p
}

func (s *MemoryStore) Order(id int64) model.Order {
	var o model.Order
	s.locked(func(st *memState) {
		o = st.orders[id]
		o.Items = slices.Clone(o.Items)
	})
	return o
}

func (s *MemoryStore) AllOrders() []model.Order {
	var out []model.Order
	s.locked(func(st *memState) {
		for _, o := range st.orders {
			out = append(out, o)
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *MemoryStore) Promo(code string) model.PromoCode {
	var p model.PromoCode
	s.locked(func(st *memState) { p = st.promos[code] })
	return p
}

func (s *MemoryStore) Cart(userID int64) model.Cart {
	var c model.Cart
	s.locked(func(st *memState) { c = st.carts[userID] })
	return c
}

// Logs returns the payment log entries of an order in insertion order.
func (s *MemoryStore) Logs(orderID int64) []model.PaymentLog {
	var out []model.PaymentLog
	s.locked(func(st *memState) {
		for _, l := range st.logs {
			if l.OrderID == orderID {
				out = append(out, l)
			}
		}
	})
	return out
}

// LockCalls returns the id lists passed to LockByIDs, in call order.
func (s *MemoryStore) LockCalls() [][]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.lockCalls)
}

// Commits and Rollbacks count finished transactions.
func (s *MemoryStore) Commits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commits
}

func (s *MemoryStore) Rollbacks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rollbacks
}
