package usecase

import (
	"io"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/polkiloo/storefront/internal/domain/model"
	testhelpers "github.com/polkiloo/storefront/internal/test"
)

var testNow = time.Date(2024, time.July, 1, 12, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func ptrTime(t time.Time) *time.Time { return &t }

func ptrInt(n int) *int { return &n }

func ptrDec(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

var (
	customer = model.Actor{UserID: 1, Role: model.RoleCustomer}
	stranger = model.Actor{UserID: 2, Role: model.RoleCustomer}
	admin    = model.Actor{UserID: 50, Role: model.RoleAdmin}
)

type orderFixture struct {
	store    *testhelpers.MemoryStore
	gateway  *testhelpers.GatewayStub
	notifier *testhelpers.NotifierRecorder
	orders   *OrderUseCase
	clock    *time.Time
}

// newOrderFixture seeds customer 1 with address 7 and a catalog of
// MUG (id 1, 25000, stock 10), SPOON (id 2, 5000, stock 20) and
// SET (id 10, bundle of 3 MUG, 60000).
func newOrderFixture() *orderFixture {
	store := testhelpers.NewMemoryStore()
	now := testNow
	clock := &now
	store.Now = func() time.Time { return *clock }

	store.AddUser(model.User{ID: 1, Login: "alice", Email: "alice@example.com"})
	store.AddUser(model.User{ID: 2, Login: "bob"})
	store.AddAddress(model.Address{
		ID: 7, UserID: 1, ReceiverName: "Alice", Phone: "+62811",
		StreetLine1: "Jl. Merdeka 1", City: "Jakarta", PostalCode: "10110",
	})
	store.AddProduct(model.Product{ID: 1, Name: "Mug", SKU: "MUG", Price: dec(25000), Stock: 10})
	store.AddProduct(model.Product{ID: 2, Name: "Spoon", SKU: "SPOON", Price: dec(5000), Stock: 20})
	store.AddBundle(model.Product{ID: 10, Name: "Mug set", SKU: "SET", Price: dec(60000)},
		model.BundleItem{ProductID: 1, Quantity: 3},
	)

	gateway := &testhelpers.GatewayStub{}
	notifier := &testhelpers.NotifierRecorder{}
	uc := NewOrderUseCase(store, gateway, notifier, OrderSettings{
		Expiration:      1450 * time.Minute,
		CheckoutTimeout: time.Second,
		InvoiceDuration: 24 * time.Hour,
	}, testLogger())
	uc.now = func() time.Time { return *clock }

	return &orderFixture{store: store, gateway: gateway, notifier: notifier, orders: uc, clock: clock}
}

func (f *orderFixture) advance(d time.Duration) {
	*f.clock = f.clock.Add(d)
}

func summerPromo() model.PromoCode {
	return model.PromoCode{
		ID:             1,
		Code:           "SUMMER2024",
		Type:           model.DiscountTypeFixed,
		Value:          dec(10000),
		MinOrderAmount: ptrDec(50000),
		IsActive:       true,
		StartDate:      testNow.AddDate(0, -1, 0),
		EndDate:        testNow.AddDate(0, 1, 0),
	}
}
