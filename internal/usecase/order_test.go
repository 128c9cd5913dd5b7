package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	domainErrors "github.com/polkiloo/storefront/internal/domain/errors"
	"github.com/polkiloo/storefront/internal/domain/model"
	"github.com/polkiloo/storefront/internal/domain/repository"
	testhelpers "github.com/polkiloo/storefront/internal/test"
)

func (f *orderFixture) checkout(t *testing.T, promo string, items ...model.CartItem) *model.Order {
	t.Helper()
	f.store.SetCart(1, items...)
	order, err := f.orders.Checkout(context.Background(), customer, 7, promo)
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	return order
}

func logActions(t *testing.T, logs []model.PaymentLog) []string {
	t.Helper()
	var actions []string
	for _, l := range logs {
		var payload map[string]string
		if err := json.Unmarshal(l.RawPayload, &payload); err != nil {
			t.Fatalf("payment log payload: %v", err)
		}
		actions = append(actions, payload["action"])
	}
	return actions
}

func TestCheckoutCreatesPendingOrder(t *testing.T) {
	f := newOrderFixture()
	order := f.checkout(t, "", model.CartItem{ProductID: 1, Quantity: 2}, model.CartItem{ProductID: 2, Quantity: 1})

	if order.ID == 0 || order.Status != model.OrderStatusPending || order.PaymentStatus != model.PaymentStatusPending {
		t.Fatalf("unexpected order %+v", order)
	}
	if !strings.HasPrefix(order.Number, "ORD-240701-") || len(order.Number) != len("ORD-240701-")+8 {
		t.Fatalf("unexpected order number %q", order.Number)
	}
	if !order.Subtotal.Equal(dec(55000)) || !order.DiscountAmount.IsZero() || !order.TotalAmount.Equal(dec(55000)) {
		t.Fatalf("unexpected amounts %s/%s/%s", order.Subtotal, order.DiscountAmount, order.TotalAmount)
	}
	if !order.Subtotal.Equal(model.SumItems(order.Items)) {
		t.Fatalf("subtotal must equal the sum of items")
	}
	if order.ShippingReceiver != "Alice" || !strings.Contains(order.ShippingAddress, "Jl. Merdeka 1") {
		t.Fatalf("shipping snapshot not captured: %+v", order)
	}
	if !order.PendingSince.Equal(testNow) {
		t.Fatalf("expected pending since %s, got %s", testNow, order.PendingSince)
	}

	if got := f.store.Product(1).Stock; got != 8 {
		t.Fatalf("expected mug stock 8, got %d", got)
	}
	if got := f.store.Product(2).Stock; got != 19 {
		t.Fatalf("expected spoon stock 19, got %d", got)
	}
	if len(f.store.Cart(1).Items) != 0 {
		t.Fatal("expected cart to be cleared")
	}

	stored := f.store.Order(order.ID)
	if stored.PaymentURL == "" || stored.PaymentURL != order.PaymentURL {
		t.Fatalf("expected invoice url attached, got %q / %q", stored.PaymentURL, order.PaymentURL)
	}

	reqs := f.gateway.Requests()
	if len(reqs) != 1 {
		t.Fatalf("expected one invoice request, got %d", len(reqs))
	}
	req := reqs[0]
	if req.ExternalID != order.PaymentExternalID || req.Currency != "IDR" || req.Customer.Email != "alice@example.com" {
		t.Fatalf("unexpected invoice request %+v", req)
	}
	if !req.Amount.Equal(dec(55000)) || len(req.Items) != 2 || req.Duration != 24*time.Hour {
		t.Fatalf("unexpected invoice request %+v", req)
	}

	if types := f.notifier.Types(); !reflect.DeepEqual(types, []model.OrderEventType{model.EventOrderCreated}) {
		t.Fatalf("unexpected events %v", types)
	}
}

func TestCheckoutBundleRoundTrip(t *testing.T) {
	f := newOrderFixture()
	order := f.checkout(t, "", model.CartItem{ProductID: 10, Quantity: 2})

	if got := f.store.Product(1).Stock; got != 4 {
		t.Fatalf("expected bundle checkout to take 6 mugs, stock %d", got)
	}
	if !order.Subtotal.Equal(dec(120000)) {
		t.Fatalf("expected bundle priced at its own price, got %s", order.Subtotal)
	}
	if len(order.Items) != 1 || order.Items[0].ProductID != 10 || order.Items[0].Quantity != 2 {
		t.Fatalf("expected the bundle itself as order line, got %+v", order.Items)
	}

	if err := f.orders.MarkAsCancelled(context.Background(), order.ID, "test"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got := f.store.Product(1).Stock; got != 10 {
		t.Fatalf("expected cancel to restore 6 mugs, stock %d", got)
	}
}

func TestCheckoutLocksInAscendingOrder(t *testing.T) {
	f := newOrderFixture()
	f.checkout(t, "", model.CartItem{ProductID: 2, Quantity: 1}, model.CartItem{ProductID: 10, Quantity: 1}, model.CartItem{ProductID: 1, Quantity: 1})

	calls := f.store.LockCalls()
	if len(calls) != 1 || !reflect.DeepEqual(calls[0], []int64{1, 2}) {
		t.Fatalf("expected a single ascending lock of physical products, got %v", calls)
	}
	if got := f.store.Product(1).Stock; got != 6 {
		t.Fatalf("expected bundle and single mug aggregated to 4, stock %d", got)
	}
}

func TestCheckoutWithPromo(t *testing.T) {
	f := newOrderFixture()
	f.store.AddPromo(summerPromo())

	order := f.checkout(t, "SUMMER2024", model.CartItem{ProductID: 1, Quantity: 4})
	if !order.Subtotal.Equal(dec(100000)) || !order.DiscountAmount.Equal(dec(10000)) || !order.TotalAmount.Equal(dec(90000)) {
		t.Fatalf("unexpected amounts %s/%s/%s", order.Subtotal, order.DiscountAmount, order.TotalAmount)
	}
	if order.PromoCodeID == nil || *order.PromoCodeID != 1 {
		t.Fatalf("expected promo id recorded, got %v", order.PromoCodeID)
	}
	if got := f.store.Promo("SUMMER2024").UsageCount; got != 1 {
		t.Fatalf("expected usage count 1, got %d", got)
	}
	if req := f.gateway.Requests()[0]; !req.Discount.Equal(dec(10000)) || !req.Amount.Equal(dec(90000)) {
		t.Fatalf("unexpected invoice amounts %+v", req)
	}
}

func TestCheckoutPromoRejectionRollsBack(t *testing.T) {
	f := newOrderFixture()
	f.store.AddPromo(summerPromo())
	f.store.SetCart(1, model.CartItem{ProductID: 2, Quantity: 2})

	_, err := f.orders.Checkout(context.Background(), customer, 7, "SUMMER2024")
	if !errors.Is(err, domainErrors.ErrPromoBelowMinimum) {
		t.Fatalf("expected ErrPromoBelowMinimum, got %v", err)
	}
	if f.store.Product(2).Stock != 20 || len(f.store.Cart(1).Items) != 1 || len(f.store.AllOrders()) != 0 {
		t.Fatal("a rejected promo must leave stock, cart and orders untouched")
	}
}

func TestRedeemPromoRechecksAfterIncrement(t *testing.T) {
	cases := []struct {
		name  string
		setup func(f *orderFixture) *model.PromoEvaluation
		want  error
	}{
		{
			name: "global limit overtaken",
			setup: func(f *orderFixture) *model.PromoEvaluation {
				promo := summerPromo()
				promo.UsageLimit = ptrInt(1)
				promo.UsageCount = 1
				f.store.AddPromo(promo)
				return &model.PromoEvaluation{PromoID: promo.ID, UsageLimit: promo.UsageLimit}
			},
			want: domainErrors.ErrPromoExhausted,
		},
		{
			name: "per user limit overtaken",
			setup: func(f *orderFixture) *model.PromoEvaluation {
				promo := summerPromo()
				promo.UsagePerUser = ptrInt(1)
				f.store.AddPromo(promo)
				f.store.AddRedemption(promo.ID, 1)
				return &model.PromoEvaluation{PromoID: promo.ID, UsagePerUser: promo.UsagePerUser}
			},
			want: domainErrors.ErrPromoUserLimit,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newOrderFixture()
			eval := tc.setup(f)
			before := f.store.Promo("SUMMER2024").UsageCount

			err := f.store.WithinTransaction(context.Background(), func(tx repository.Factory) error {
				return f.orders.redeemPromo(context.Background(), tx, eval, 1, 99)
			})
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if got := f.store.Promo("SUMMER2024").UsageCount; got != before {
				t.Fatalf("usage count must roll back to %d, got %d", before, got)
			}
		})
	}
}

func TestCheckoutValidation(t *testing.T) {
	cases := []struct {
		name  string
		actor model.Actor
		addr  int64
		cart  []model.CartItem
		setup func(f *orderFixture)
		want  error
	}{
		{name: "anonymous actor", actor: model.Actor{}, addr: 7, cart: []model.CartItem{{ProductID: 1, Quantity: 1}}, want: domainErrors.ErrForbidden},
		{name: "empty cart", actor: customer, addr: 7, want: domainErrors.ErrEmptyCart},
		{name: "non positive quantity", actor: customer, addr: 7, cart: []model.CartItem{{ProductID: 1, Quantity: 0}}, want: domainErrors.ErrInvalidQuantity},
		{
			name: "foreign address", actor: customer, addr: 8, cart: []model.CartItem{{ProductID: 1, Quantity: 1}},
			setup: func(f *orderFixture) { f.store.AddAddress(model.Address{ID: 8, UserID: 2}) },
			want:  domainErrors.ErrAddressNotFound,
		},
		{name: "insufficient stock", actor: customer, addr: 7, cart: []model.CartItem{{ProductID: 10, Quantity: 4}}, want: domainErrors.ErrInsufficientStock},
		{
			name: "deleted product", actor: customer, addr: 7, cart: []model.CartItem{{ProductID: 2, Quantity: 1}},
			setup: func(f *orderFixture) { f.store.DeleteProduct(2, testNow) },
			want:  domainErrors.ErrProductUnavailable,
		},
		{
			name: "bundle without components", actor: customer, addr: 7, cart: []model.CartItem{{ProductID: 11, Quantity: 1}},
			setup: func(f *orderFixture) { f.store.AddBundle(model.Product{ID: 11, SKU: "HOLLOW"}) },
			want:  domainErrors.ErrBundleNoComponents,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newOrderFixture()
			if tc.setup != nil {
				tc.setup(f)
			}
			f.store.SetCart(1, tc.cart...)

			_, err := f.orders.Checkout(context.Background(), tc.actor, tc.addr, "")
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if f.store.Product(1).Stock != 10 || len(f.store.AllOrders()) != 0 {
				t.Fatal("failed checkout must not change state")
			}
			if len(f.gateway.Requests()) != 0 || len(f.notifier.Events()) != 0 {
				t.Fatal("failed checkout must not reach the gateway or notifier")
			}
		})
	}
}

func TestCheckoutTimeout(t *testing.T) {
	f := newOrderFixture()
	f.orders.settings.CheckoutTimeout = 20 * time.Millisecond
	f.store.Hook = func(ctx context.Context, op string) error {
		if op == "Products.LockByIDs" {
			<-ctx.Done()
			return ctx.Err()
		}
		return nil
	}
	f.store.SetCart(1, model.CartItem{ProductID: 1, Quantity: 1})

	_, err := f.orders.Checkout(context.Background(), customer, 7, "")
	if !errors.Is(err, domainErrors.ErrCheckoutTimeout) {
		t.Fatalf("expected ErrCheckoutTimeout, got %v", err)
	}
	if f.store.Product(1).Stock != 10 || len(f.store.Cart(1).Items) != 1 || len(f.store.AllOrders()) != 0 {
		t.Fatal("timed out checkout must roll back")
	}
}

func TestCheckoutInvoiceFailureKeepsOrder(t *testing.T) {
	f := newOrderFixture()
	f.gateway.CreateFn = func(context.Context, model.InvoiceRequest) (*model.Invoice, error) {
		return nil, errors.New("gateway unreachable")
	}

	order := f.checkout(t, "", model.CartItem{ProductID: 1, Quantity: 1})
	stored := f.store.Order(order.ID)
	if stored.Status != model.OrderStatusPending || stored.PaymentURL != "" {
		t.Fatalf("expected pending order without payment link, got %+v", stored)
	}
	if f.store.Product(1).Stock != 9 {
		t.Fatal("stock reservation must survive an invoice failure")
	}
}

func TestMarkAsPaidIsIdempotent(t *testing.T) {
	f := newOrderFixture()
	order := f.checkout(t, "", model.CartItem{ProductID: 1, Quantity: 1})

	if err := f.orders.MarkAsPaid(context.Background(), order.ID); err != nil {
		t.Fatalf("first mark as paid: %v", err)
	}
	stored := f.store.Order(order.ID)
	if stored.Status != model.OrderStatusPaid || stored.PaymentStatus != model.PaymentStatusPaid || stored.PaidAt == nil {
		t.Fatalf("unexpected paid order %+v", stored)
	}

	if err := f.orders.MarkAsPaid(context.Background(), order.ID); !errors.Is(err, domainErrors.ErrAlreadyPaid) {
		t.Fatalf("expected ErrAlreadyPaid, got %v", err)
	}
	var paidEvents int
	for _, typ := range f.notifier.Types() {
		if typ == model.EventOrderPaid {
			paidEvents++
		}
	}
	if paidEvents != 1 {
		t.Fatalf("expected exactly one paid event, got %d", paidEvents)
	}
}

func TestMarkAsPaidRefusals(t *testing.T) {
	f := newOrderFixture()
	cancelled := f.store.PutOrder(model.Order{UserID: 1, Status: model.OrderStatusCancelled})
	shipped := f.store.PutOrder(model.Order{UserID: 1, Status: model.OrderStatusShipped})

	if err := f.orders.MarkAsPaid(context.Background(), cancelled.ID); !errors.Is(err, domainErrors.ErrOrderCancelled) {
		t.Fatalf("expected ErrOrderCancelled, got %v", err)
	}
	if err := f.orders.MarkAsPaid(context.Background(), shipped.ID); !errors.Is(err, domainErrors.ErrAlreadyPaid) {
		t.Fatalf("expected ErrAlreadyPaid for shipped order, got %v", err)
	}
	if err := f.orders.MarkAsPaid(context.Background(), 404); !errors.Is(err, domainErrors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMarkAsCancelled(t *testing.T) {
	f := newOrderFixture()
	order := f.checkout(t, "", model.CartItem{ProductID: 1, Quantity: 3})

	if err := f.orders.MarkAsCancelled(context.Background(), order.ID, ReasonPaymentTimeout); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	stored := f.store.Order(order.ID)
	if stored.Status != model.OrderStatusCancelled || stored.PaymentStatus != model.PaymentStatusExpired {
		t.Fatalf("unexpected cancelled order %+v", stored)
	}
	if f.store.Product(1).Stock != 10 {
		t.Fatalf("expected stock restored, got %d", f.store.Product(1).Stock)
	}
	if actions := logActions(t, f.store.Logs(order.ID)); !reflect.DeepEqual(actions, []string{ActionAutoCancel}) {
		t.Fatalf("unexpected payment log actions %v", actions)
	}

	if err := f.orders.MarkAsCancelled(context.Background(), order.ID, ReasonPaymentTimeout); err != nil {
		t.Fatalf("second cancel: %v", err)
	}
	if f.store.Product(1).Stock != 10 || len(f.store.Logs(order.ID)) != 1 {
		t.Fatal("cancelling twice must not restock or log twice")
	}
	if err := f.orders.MarkAsCancelled(context.Background(), 404, ReasonPaymentTimeout); err != nil {
		t.Fatalf("missing order must be a no-op, got %v", err)
	}
}

func TestMarkAsCancelledLeavesPaidOrder(t *testing.T) {
	f := newOrderFixture()
	order := f.checkout(t, "", model.CartItem{ProductID: 1, Quantity: 1})
	if err := f.orders.MarkAsPaid(context.Background(), order.ID); err != nil {
		t.Fatalf("mark as paid: %v", err)
	}

	if err := f.orders.MarkAsCancelled(context.Background(), order.ID, ReasonPaymentTimeout); err != nil {
		t.Fatalf("cancel of paid order: %v", err)
	}
	if f.store.Order(order.ID).Status != model.OrderStatusPaid || f.store.Product(1).Stock != 9 {
		t.Fatal("paid order must not be cancelled or restocked")
	}
}

func TestRestockSkipsDeletedProducts(t *testing.T) {
	f := newOrderFixture()
	order := f.checkout(t, "", model.CartItem{ProductID: 1, Quantity: 2}, model.CartItem{ProductID: 2, Quantity: 1})
	f.store.DeleteProduct(2, testNow)

	if err := f.orders.MarkAsCancelled(context.Background(), order.ID, "test"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if f.store.Order(order.ID).Status != model.OrderStatusCancelled {
		t.Fatal("order must be cancelled even when a product is gone")
	}
	if f.store.Product(1).Stock != 10 || f.store.Product(2).Stock != 19 {
		t.Fatalf("unexpected stock after restock: %d / %d", f.store.Product(1).Stock, f.store.Product(2).Stock)
	}
}

func TestCancelByUser(t *testing.T) {
	f := newOrderFixture()
	order := f.checkout(t, "", model.CartItem{ProductID: 1, Quantity: 1})

	if _, err := f.orders.CancelByUser(context.Background(), stranger, order.ID, ""); !errors.Is(err, domainErrors.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if f.store.Order(order.ID).Status != model.OrderStatusPending {
		t.Fatal("forbidden cancel must not change state")
	}

	cancelled, err := f.orders.CancelByUser(context.Background(), customer, order.ID, "changed my mind")
	if err != nil {
		t.Fatalf("cancel by user: %v", err)
	}
	if cancelled.Status != model.OrderStatusCancelled || cancelled.PaymentStatus != model.PaymentStatusCancelled {
		t.Fatalf("unexpected order %+v", cancelled)
	}
	if actions := logActions(t, f.store.Logs(order.ID)); !reflect.DeepEqual(actions, []string{ActionUserCancel}) {
		t.Fatalf("unexpected actions %v", actions)
	}
	if _, err := f.orders.CancelByUser(context.Background(), customer, order.ID, ""); !errors.Is(err, domainErrors.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition on second cancel, got %v", err)
	}
}

func TestRepayCancelledOrder(t *testing.T) {
	f := newOrderFixture()
	order := f.checkout(t, "", model.CartItem{ProductID: 10, Quantity: 1})
	oldRef := order.PaymentExternalID
	if err := f.orders.MarkAsCancelled(context.Background(), order.ID, "test"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	f.advance(time.Hour)

	if _, err := f.orders.Repay(context.Background(), stranger, order.ID); !errors.Is(err, domainErrors.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	repaid, err := f.orders.Repay(context.Background(), customer, order.ID)
	if err != nil {
		t.Fatalf("repay: %v", err)
	}
	if repaid.Status != model.OrderStatusPending || repaid.PaymentExternalID == oldRef {
		t.Fatalf("expected pending order with a new reference, got %+v", repaid)
	}
	stored := f.store.Order(order.ID)
	if !stored.PendingSince.Equal(testNow.Add(time.Hour)) {
		t.Fatalf("expected payment window restarted, got %s", stored.PendingSince)
	}
	if stored.PaymentURL == "" {
		t.Fatal("expected a fresh invoice attached")
	}
	if f.store.Product(1).Stock != 7 {
		t.Fatalf("expected bundle components reserved again, stock %d", f.store.Product(1).Stock)
	}
	reqs := f.gateway.Requests()
	if len(reqs) != 2 || reqs[1].ExternalID != repaid.PaymentExternalID {
		t.Fatalf("expected a second invoice for the new reference, got %+v", reqs)
	}
}

func TestRepayPendingKeepsReservation(t *testing.T) {
	f := newOrderFixture()
	order := f.checkout(t, "", model.CartItem{ProductID: 1, Quantity: 2})

	repaid, err := f.orders.Repay(context.Background(), customer, order.ID)
	if err != nil {
		t.Fatalf("repay: %v", err)
	}
	if repaid.PaymentExternalID == order.PaymentExternalID {
		t.Fatal("expected a new payment reference")
	}
	if f.store.Product(1).Stock != 8 {
		t.Fatalf("pending repay must not reserve twice, stock %d", f.store.Product(1).Stock)
	}
}

func TestRepayRefusals(t *testing.T) {
	f := newOrderFixture()
	paid := f.store.PutOrder(model.Order{UserID: 1, Status: model.OrderStatusPaid})
	short := f.store.PutOrder(model.Order{
		UserID: 1, Status: model.OrderStatusCancelled,
		Items: []model.OrderItem{{ProductID: 1, Quantity: 11, PriceAtPurchase: dec(25000)}},
	})

	if _, err := f.orders.Repay(context.Background(), customer, paid.ID); !errors.Is(err, domainErrors.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if _, err := f.orders.Repay(context.Background(), customer, short.ID); !errors.Is(err, domainErrors.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	if f.store.Order(short.ID).Status != model.OrderStatusCancelled {
		t.Fatal("failed repay must leave the order cancelled")
	}
}

func TestRefundFlow(t *testing.T) {
	f := newOrderFixture()
	order := f.checkout(t, "", model.CartItem{ProductID: 1, Quantity: 2})

	if _, err := f.orders.RequestRefund(context.Background(), customer, order.ID, "broken"); !errors.Is(err, domainErrors.ErrInvalidTransition) {
		t.Fatalf("pending order cannot be refunded, got %v", err)
	}
	if err := f.orders.MarkAsPaid(context.Background(), order.ID); err != nil {
		t.Fatalf("mark as paid: %v", err)
	}
	if _, err := f.orders.RequestRefund(context.Background(), stranger, order.ID, "broken"); !errors.Is(err, domainErrors.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	requested, err := f.orders.RequestRefund(context.Background(), customer, order.ID, "broken")
	if err != nil {
		t.Fatalf("request refund: %v", err)
	}
	if requested.Status != model.OrderStatusRefundRequested {
		t.Fatalf("unexpected status %s", requested.Status)
	}

	if _, err := f.orders.ProcessRefund(context.Background(), customer, order.ID); !errors.Is(err, domainErrors.ErrForbidden) {
		t.Fatalf("customers cannot approve refunds, got %v", err)
	}
	refunded, err := f.orders.ProcessRefund(context.Background(), admin, order.ID)
	if err != nil {
		t.Fatalf("process refund: %v", err)
	}
	if refunded.Status != model.OrderStatusRefunded || refunded.PaymentStatus != model.PaymentStatusRefunded {
		t.Fatalf("unexpected refunded order %+v", refunded)
	}
	if f.store.Product(1).Stock != 10 {
		t.Fatalf("expected refund to restock, stock %d", f.store.Product(1).Stock)
	}
	if actions := logActions(t, f.store.Logs(order.ID)); !reflect.DeepEqual(actions, []string{ActionRefundRequested, ActionRefundApproved}) {
		t.Fatalf("unexpected actions %v", actions)
	}
}

func TestShipAndComplete(t *testing.T) {
	f := newOrderFixture()
	order := f.store.PutOrder(model.Order{UserID: 1, Status: model.OrderStatusPaid})

	if _, err := f.orders.MarkAsShipped(context.Background(), customer, order.ID); !errors.Is(err, domainErrors.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := f.orders.MarkAsCompleted(context.Background(), admin, order.ID); !errors.Is(err, domainErrors.ErrInvalidTransition) {
		t.Fatalf("paid order cannot be completed, got %v", err)
	}
	if _, err := f.orders.MarkAsShipped(context.Background(), admin, order.ID); err != nil {
		t.Fatalf("ship: %v", err)
	}
	completed, err := f.orders.MarkAsCompleted(context.Background(), admin, order.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if completed.Status != model.OrderStatusCompleted || !completed.Status.IsTerminal() {
		t.Fatalf("unexpected status %s", completed.Status)
	}
}

func TestGetByIDLazyExpiry(t *testing.T) {
	f := newOrderFixture()
	order := f.checkout(t, "", model.CartItem{ProductID: 1, Quantity: 2})

	got, err := f.orders.GetByID(context.Background(), customer, order.ID)
	if err != nil || got.ID != order.ID {
		t.Fatalf("expected order, got %v / %v", got, err)
	}
	if _, err := f.orders.GetByID(context.Background(), stranger, order.ID); !errors.Is(err, domainErrors.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := f.orders.GetByID(context.Background(), admin, order.ID); err != nil {
		t.Fatalf("admin read: %v", err)
	}

	f.advance(1451 * time.Minute)
	if _, err := f.orders.GetByID(context.Background(), customer, order.ID); !errors.Is(err, domainErrors.ErrOrderExpired) {
		t.Fatalf("expected ErrOrderExpired, got %v", err)
	}
	stored := f.store.Order(order.ID)
	if stored.Status != model.OrderStatusCancelled || f.store.Product(1).Stock != 10 {
		t.Fatalf("expected expired order cancelled and restocked, got %s / %d", stored.Status, f.store.Product(1).Stock)
	}
}

// interleavedStore runs beforeTx once, ahead of the next transaction,
// to simulate a concurrent writer landing between a read and the row lock.
type interleavedStore struct {
	*testhelpers.MemoryStore
	beforeTx func()
}

func (s *interleavedStore) WithinTransaction(ctx context.Context, fn func(tx repository.Factory) error) error {
	if before := s.beforeTx; before != nil {
		s.beforeTx = nil
		before()
	}
	return s.MemoryStore.WithinTransaction(ctx, fn)
}

func TestGetByIDKeepsOrderPaidBeforeLock(t *testing.T) {
	f := newOrderFixture()
	order := f.checkout(t, "", model.CartItem{ProductID: 1, Quantity: 2})
	f.advance(1451 * time.Minute)

	f.orders.store = &interleavedStore{MemoryStore: f.store, beforeTx: func() {
		paid := f.store.Order(order.ID)
		paid.Status = model.OrderStatusPaid
		paid.PaymentStatus = model.PaymentStatusPaid
		f.store.PutOrder(paid)
	}}

	got, err := f.orders.GetByID(context.Background(), customer, order.ID)
	if err != nil {
		t.Fatalf("expected paid order, got %v", err)
	}
	if got.Status != model.OrderStatusPaid {
		t.Fatalf("expected PAID, got %s", got.Status)
	}
	if f.store.Product(1).Stock != 8 {
		t.Fatalf("paid order must keep its stock, got %d", f.store.Product(1).Stock)
	}
}

func TestCancelExpiredSkipsRepaidOrder(t *testing.T) {
	f := newOrderFixture()
	order := f.checkout(t, "", model.CartItem{ProductID: 1, Quantity: 2})
	f.advance(1451 * time.Minute)

	expired, err := f.orders.ExpiredOrders(context.Background(), 10)
	if err != nil || len(expired) != 1 || expired[0].ID != order.ID {
		t.Fatalf("expected the order listed as expired, got %+v / %v", expired, err)
	}

	repaid, err := f.orders.Repay(context.Background(), customer, order.ID)
	if err != nil {
		t.Fatalf("repay: %v", err)
	}

	if err := f.orders.CancelExpired(context.Background(), expired[0].ID); err != nil {
		t.Fatalf("cancel expired: %v", err)
	}
	stored := f.store.Order(order.ID)
	if stored.Status != model.OrderStatusPending || stored.PaymentExternalID != repaid.PaymentExternalID {
		t.Fatalf("repaid order must stay pending, got %s / %s", stored.Status, stored.PaymentExternalID)
	}
	if f.store.Product(1).Stock != 8 {
		t.Fatalf("expected reservation kept, got stock %d", f.store.Product(1).Stock)
	}
	for _, typ := range f.notifier.Types() {
		if typ == model.EventOrderCancelled {
			t.Fatal("repaid order must not be announced as cancelled")
		}
	}
}

func TestConcurrentCheckoutsNeverOversell(t *testing.T) {
	f := newOrderFixture()
	const buyers = 20
	for i := range buyers {
		id := int64(100 + i)
		f.store.AddUser(model.User{ID: id, Login: fmt.Sprintf("buyer-%d", id)})
		f.store.AddAddress(model.Address{ID: 1000 + id, UserID: id, ReceiverName: "Buyer", StreetLine1: "Jl. Sudirman 5"})
		f.store.SetCart(id, model.CartItem{ProductID: 10, Quantity: 1})
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		placed   int
		rejected int
		failures []error
	)
	for i := range buyers {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			actor := model.Actor{UserID: id, Role: model.RoleCustomer}
			_, err := f.orders.Checkout(context.Background(), actor, 1000+id, "")

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				placed++
			case errors.Is(err, domainErrors.ErrInsufficientStock):
				rejected++
			default:
				failures = append(failures, err)
			}
		}(int64(100 + i))
	}
	wg.Wait()

	if len(failures) > 0 {
		t.Fatalf("unexpected checkout errors: %v", failures)
	}
	stock := f.store.Product(1).Stock
	if stock < 0 {
		t.Fatalf("stock went negative: %d", stock)
	}
	// Each set consumes three mugs out of ten.
	if placed != 3 || rejected != buyers-3 {
		t.Fatalf("expected 3 placed and %d rejected, got %d / %d", buyers-3, placed, rejected)
	}
	if consumed := 10 - stock; consumed != placed*3 {
		t.Fatalf("expected %d mugs consumed, got %d", placed*3, consumed)
	}
	if len(f.store.AllOrders()) != placed {
		t.Fatalf("expected %d orders, got %d", placed, len(f.store.AllOrders()))
	}
}

func TestExpiredOrdersOldestFirst(t *testing.T) {
	f := newOrderFixture()
	window := f.orders.settings.Expiration
	older := f.store.PutOrder(model.Order{UserID: 1, Status: model.OrderStatusPending, PendingSince: testNow.Add(-window - 2*time.Hour)})
	newer := f.store.PutOrder(model.Order{UserID: 1, Status: model.OrderStatusPending, PendingSince: testNow.Add(-window - time.Hour)})
	f.store.PutOrder(model.Order{UserID: 1, Status: model.OrderStatusPending, PendingSince: testNow.Add(-time.Hour)})
	f.store.PutOrder(model.Order{UserID: 1, Status: model.OrderStatusPaid, PendingSince: testNow.Add(-window - 3*time.Hour)})

	orders, err := f.orders.ExpiredOrders(context.Background(), 10)
	if err != nil {
		t.Fatalf("expired orders: %v", err)
	}
	if len(orders) != 2 || orders[0].ID != older.ID || orders[1].ID != newer.ID {
		t.Fatalf("unexpected expired orders %+v", orders)
	}

	if err := f.orders.CancelExpired(context.Background(), older.ID); err != nil {
		t.Fatalf("cancel expired: %v", err)
	}
	if f.store.Order(older.ID).Status != model.OrderStatusCancelled {
		t.Fatal("expected expired order cancelled")
	}
}

func TestListByUserAndPaymentLogs(t *testing.T) {
	f := newOrderFixture()
	first := f.checkout(t, "", model.CartItem{ProductID: 1, Quantity: 1})
	f.advance(time.Minute)
	second := f.checkout(t, "", model.CartItem{ProductID: 2, Quantity: 1})

	orders, err := f.orders.ListByUser(context.Background(), customer)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(orders) != 2 || orders[0].ID != second.ID || orders[1].ID != first.ID {
		t.Fatalf("expected newest first, got %+v", orders)
	}
	if others, _ := f.orders.ListByUser(context.Background(), stranger); len(others) != 0 {
		t.Fatalf("stranger must see no orders, got %d", len(others))
	}

	if err := f.orders.MarkAsCancelled(context.Background(), first.ID, "test"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := f.orders.PaymentLogs(context.Background(), stranger, first.ID); !errors.Is(err, domainErrors.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	logs, err := f.orders.PaymentLogs(context.Background(), customer, first.ID)
	if err != nil || len(logs) != 1 {
		t.Fatalf("expected one payment log, got %v / %v", logs, err)
	}
}
