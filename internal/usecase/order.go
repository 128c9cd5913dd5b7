package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	domainErrors "github.com/polkiloo/storefront/internal/domain/errors"
	"github.com/polkiloo/storefront/internal/domain/model"
	"github.com/polkiloo/storefront/internal/domain/repository"
)

// Payment log actions recorded on state changes.
const (
	ActionAutoCancel      = "AUTO_CANCEL_BY_SYSTEM"
	ActionUserCancel      = "CANCELLED_BY_USER"
	ActionRefundRequested = "REFUND_REQUESTED"
	ActionRefundApproved  = "REFUND_APPROVED"

	ReasonPaymentTimeout = "payment time limit exceeded"
	ReasonPaymentExpired = "payment invoice expired"
)

// PaymentGateway issues and looks up hosted invoices.
type PaymentGateway interface {
	CreateInvoice(ctx context.Context, req model.InvoiceRequest) (*model.Invoice, error)
	GetInvoice(ctx context.Context, id string) (*model.Invoice, error)
}

// Notifier delivers order events without blocking the caller.
type Notifier interface {
	Notify(ctx context.Context, event model.OrderEvent)
}

// OrderSettings holds lifecycle timing.
type OrderSettings struct {
	Expiration      time.Duration
	CheckoutTimeout time.Duration
	InvoiceDuration time.Duration
	Currency        string
}

// OrderUseCase encapsulates order lifecycle logic.
type OrderUseCase struct {
	store    repository.Transactor
	gateway  PaymentGateway
	notifier Notifier
	settings OrderSettings
	logger   *slog.Logger

	now       func() time.Time
	newNumber func(time.Time) string
	newRef    func() string
}

// NewOrderUseCase constructs OrderUseCase.
func NewOrderUseCase(store repository.Transactor, gateway PaymentGateway, notifier Notifier, settings OrderSettings, logger *slog.Logger) *OrderUseCase {
	if settings.Currency == "" {
		settings.Currency = "IDR"
	}
	return &OrderUseCase{
		store:     store,
		gateway:   gateway,
		notifier:  notifier,
		settings:  settings,
		logger:    logger,
		now:       time.Now,
		newNumber: newOrderNumber,
		newRef:    uuid.NewString,
	}
}

func newOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:8]
	return fmt.Sprintf("ORD-%s-%s", now.Format("060102"), suffix)
}

// MarkAsPaid moves a pending order to PAID.
// A repeated call reports ErrAlreadyPaid and changes nothing.
func (u *OrderUseCase) MarkAsPaid(ctx context.Context, orderID int64) error {
	order, err := u.store.Orders().GetByID(ctx, orderID)
	if err != nil {
		return err
	}

	switch {
	case order.Status.IsFulfilled():
		return domainErrors.ErrAlreadyPaid
	case order.Status == model.OrderStatusCancelled:
		return domainErrors.ErrOrderCancelled
	case order.Status != model.OrderStatusPending:
		return domainErrors.ErrInvalidTransition
	}

	paidAt := u.now()
	err = u.store.Orders().TransitionStatus(ctx, order.ID, model.OrderStatusPending, model.OrderStatusPaid, model.StatusChange{
		PaymentStatus: model.PaymentStatusPaid,
		PaidAt:        &paidAt,
	})
	if err != nil {
		return err
	}

	order.Status = model.OrderStatusPaid
	order.PaymentStatus = model.PaymentStatusPaid
	order.PaidAt = &paidAt
	u.logger.Info("order paid", slog.Int64("order_id", order.ID), slog.String("number", order.Number))
	u.notify(ctx, model.EventOrderPaid, *order, "")
	return nil
}

// MarkAsCancelled cancels a pending order and restocks its items in one transaction.
// Missing, cancelled and already fulfilled orders are left untouched.
func (u *OrderUseCase) MarkAsCancelled(ctx context.Context, orderID int64, reason string) error {
	_, _, err := u.cancel(ctx, orderID, reason, ActionAutoCancel, model.PaymentStatusExpired, nil)
	if errors.Is(err, domainErrors.ErrNotFound) {
		u.logger.Warn("order to cancel not found", slog.Int64("order_id", orderID))
		return nil
	}
	return err
}

// expire cancels the order only if it is still overdue once locked.
// A repay or payment that landed after the caller's read keeps the order alive.
func (u *OrderUseCase) expire(ctx context.Context, orderID int64) (bool, error) {
	_, cancelled, err := u.cancel(ctx, orderID, ReasonPaymentTimeout, ActionAutoCancel, model.PaymentStatusExpired, func(order *model.Order) error {
		if !order.ExpiredAt(u.now(), u.settings.Expiration) {
			return errCancelSkipped
		}
		return nil
	})
	if errors.Is(err, domainErrors.ErrNotFound) {
		u.logger.Warn("order to expire not found", slog.Int64("order_id", orderID))
		return false, nil
	}
	return cancelled, err
}

// CancelByUser cancels the actor's own pending order.
func (u *OrderUseCase) CancelByUser(ctx context.Context, actor model.Actor, orderID int64, reason string) (*model.Order, error) {
	if reason == "" {
		reason = "cancelled by user"
	}
	order, _, err := u.cancel(ctx, orderID, reason, ActionUserCancel, model.PaymentStatusCancelled, func(order *model.Order) error {
		if !actor.CanAccess(order.UserID) {
			return domainErrors.ErrForbidden
		}
		if order.Status != model.OrderStatusPending {
			return domainErrors.ErrInvalidTransition
		}
		return nil
	})
	return order, err
}

// errCancelSkipped lets a guard turn the cancellation into a no-op.
var errCancelSkipped = errors.New("cancel skipped")

func (u *OrderUseCase) cancel(ctx context.Context, orderID int64, reason, action, paymentStatus string, guard func(*model.Order) error) (*model.Order, bool, error) {
	var (
		result    *model.Order
		cancelled bool
	)
	err := u.store.WithinTransaction(ctx, func(tx repository.Factory) error {
		order, err := tx.Orders().LockByID(ctx, orderID)
		if err != nil {
			return err
		}
		result = order
		if guard != nil {
			if err := guard(order); err != nil {
				if errors.Is(err, errCancelSkipped) {
					return nil
				}
				return err
			}
		}

		switch {
		case order.Status == model.OrderStatusCancelled:
			return nil
		case !order.Status.CanCancel():
			u.logger.Info("refusing to cancel order",
				slog.Int64("order_id", order.ID),
				slog.String("status", string(order.Status)),
			)
			return nil
		}

		if err := tx.Orders().TransitionStatus(ctx, order.ID, model.OrderStatusPending, model.OrderStatusCancelled, model.StatusChange{
			PaymentStatus: paymentStatus,
		}); err != nil {
			return err
		}
		if err := u.appendLog(ctx, tx, order.ID, string(model.OrderStatusCancelled), reason, action); err != nil {
			return err
		}
		if err := u.restock(ctx, tx, order); err != nil {
			return err
		}

		order.Status = model.OrderStatusCancelled
		order.PaymentStatus = paymentStatus
		cancelled = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if cancelled {
		u.logger.Info("order cancelled",
			slog.Int64("order_id", result.ID),
			slog.String("reason", reason),
			slog.String("action", action),
		)
		u.notify(ctx, model.EventOrderCancelled, *result, reason)
	}
	return result, cancelled, nil
}

// restock returns the order's items to stock, re-resolving bundles against the live catalog.
func (u *OrderUseCase) restock(ctx context.Context, tx repository.Factory, order *model.Order) error {
	ids := make([]int64, 0, len(order.Items))
	for _, item := range order.Items {
		ids = append(ids, item.ProductID)
	}
	products, err := tx.Products().GetByIDs(ctx, ids)
	if err != nil {
		return err
	}

	resolver := NewBundleResolver(tx.Bundles())
	var reqs []model.StockRequirement
	for _, item := range order.Items {
		product, ok := products[item.ProductID]
		if !ok {
			u.logger.Error("skipping restock of deleted product",
				slog.Int64("order_id", order.ID),
				slog.Int64("product_id", item.ProductID),
				slog.Int("quantity", item.Quantity),
			)
			continue
		}
		resolved, err := resolver.Resolve(ctx, product, item.Quantity)
		if err != nil {
			return err
		}
		reqs = append(reqs, resolved...)
	}

	reqs = AggregateRequirements(reqs)
	lockIDs := make([]int64, 0, len(reqs))
	for _, r := range reqs {
		lockIDs = append(lockIDs, r.ProductID)
	}
	locked, err := NewInventoryLocker(tx.Products()).Lock(ctx, lockIDs)
	if err != nil {
		return err
	}
	for _, r := range reqs {
		if _, ok := locked[r.ProductID]; !ok {
			u.logger.Error("skipping restock of deleted component",
				slog.Int64("order_id", order.ID),
				slog.Int64("product_id", r.ProductID),
				slog.Int("quantity", r.Quantity),
			)
			continue
		}
		if err := tx.Products().IncrementStock(ctx, r.ProductID, r.Quantity); err != nil {
			return err
		}
	}
	return nil
}

// Repay reopens a cancelled or pending order with a fresh payment reference.
// A cancelled order reserves its stock again; a pending one keeps its reservation.
func (u *OrderUseCase) Repay(ctx context.Context, actor model.Actor, orderID int64) (*model.Order, error) {
	var result *model.Order
	err := u.store.WithinTransaction(ctx, func(tx repository.Factory) error {
		order, err := tx.Orders().LockByID(ctx, orderID)
		if err != nil {
			return err
		}
		if !actor.CanAccess(order.UserID) {
			return domainErrors.ErrForbidden
		}

		switch order.Status {
		case model.OrderStatusPending:
			// Stock is still held from checkout; reserving again would leak it on the next cancel.
		case model.OrderStatusCancelled:
			if err := u.reserveItems(ctx, tx, order.Items); err != nil {
				return err
			}
		default:
			return domainErrors.ErrInvalidTransition
		}

		now := u.now()
		ref := u.newRef()
		if err := tx.Orders().TransitionStatus(ctx, order.ID, order.Status, model.OrderStatusPending, model.StatusChange{
			PaymentStatus: model.PaymentStatusPending,
			ExternalID:    ref,
			PendingSince:  &now,
		}); err != nil {
			return err
		}

		order.Status = model.OrderStatusPending
		order.PaymentStatus = model.PaymentStatusPending
		order.PaymentExternalID = ref
		order.PaymentURL = ""
		order.PendingSince = now
		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	u.logger.Info("order reopened for payment", slog.Int64("order_id", result.ID), slog.String("reference", result.PaymentExternalID))
	u.notify(ctx, model.EventOrderRepaid, *result, "")
	u.issueInvoice(ctx, result)
	return result, nil
}

func (u *OrderUseCase) reserveItems(ctx context.Context, tx repository.Factory, items []model.OrderItem) error {
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	products, err := tx.Products().GetByIDs(ctx, ids)
	if err != nil {
		return err
	}

	resolver := NewBundleResolver(tx.Bundles())
	var reqs []model.StockRequirement
	for _, item := range items {
		product, ok := products[item.ProductID]
		if !ok {
			return fmt.Errorf("%w: product %d", domainErrors.ErrProductUnavailable, item.ProductID)
		}
		resolved, err := resolver.Resolve(ctx, product, item.Quantity)
		if err != nil {
			return err
		}
		reqs = append(reqs, resolved...)
	}
	return NewInventoryLocker(tx.Products()).Reserve(ctx, reqs)
}

// RequestRefund asks for a refund of a paid order.
func (u *OrderUseCase) RequestRefund(ctx context.Context, actor model.Actor, orderID int64, reason string) (*model.Order, error) {
	var result *model.Order
	err := u.store.WithinTransaction(ctx, func(tx repository.Factory) error {
		order, err := tx.Orders().LockByID(ctx, orderID)
		if err != nil {
			return err
		}
		if !actor.CanAccess(order.UserID) {
			return domainErrors.ErrForbidden
		}
		if order.Status != model.OrderStatusPaid {
			return domainErrors.ErrInvalidTransition
		}

		if err := tx.Orders().TransitionStatus(ctx, order.ID, model.OrderStatusPaid, model.OrderStatusRefundRequested, model.StatusChange{}); err != nil {
			return err
		}
		if err := u.appendLog(ctx, tx, order.ID, string(model.OrderStatusRefundRequested), reason, ActionRefundRequested); err != nil {
			return err
		}
		order.Status = model.OrderStatusRefundRequested
		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	u.notify(ctx, model.EventRefundRequested, *result, reason)
	return result, nil
}

// ProcessRefund approves a requested refund, restocking the items.
func (u *OrderUseCase) ProcessRefund(ctx context.Context, actor model.Actor, orderID int64) (*model.Order, error) {
	if !actor.IsAdmin() {
		return nil, domainErrors.ErrForbidden
	}

	var result *model.Order
	err := u.store.WithinTransaction(ctx, func(tx repository.Factory) error {
		order, err := tx.Orders().LockByID(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status != model.OrderStatusRefundRequested {
			return domainErrors.ErrInvalidTransition
		}

		if err := u.restock(ctx, tx, order); err != nil {
			return err
		}
		if err := tx.Orders().TransitionStatus(ctx, order.ID, model.OrderStatusRefundRequested, model.OrderStatusRefunded, model.StatusChange{
			PaymentStatus: model.PaymentStatusRefunded,
		}); err != nil {
			return err
		}
		if err := u.appendLog(ctx, tx, order.ID, string(model.OrderStatusRefunded), "refund approved", ActionRefundApproved); err != nil {
			return err
		}
		order.Status = model.OrderStatusRefunded
		order.PaymentStatus = model.PaymentStatusRefunded
		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	u.logger.Info("order refunded", slog.Int64("order_id", result.ID), slog.Int64("admin_id", actor.UserID))
	u.notify(ctx, model.EventOrderRefunded, *result, "")
	return result, nil
}

// MarkAsShipped moves a paid order to SHIPPED.
func (u *OrderUseCase) MarkAsShipped(ctx context.Context, actor model.Actor, orderID int64) (*model.Order, error) {
	return u.advance(ctx, actor, orderID, model.OrderStatusPaid, model.OrderStatusShipped, model.EventOrderShipped)
}

// MarkAsCompleted moves a shipped order to COMPLETED.
func (u *OrderUseCase) MarkAsCompleted(ctx context.Context, actor model.Actor, orderID int64) (*model.Order, error) {
	return u.advance(ctx, actor, orderID, model.OrderStatusShipped, model.OrderStatusCompleted, model.EventOrderCompleted)
}

func (u *OrderUseCase) advance(ctx context.Context, actor model.Actor, orderID int64, from, to model.OrderStatus, event model.OrderEventType) (*model.Order, error) {
	if !actor.IsAdmin() {
		return nil, domainErrors.ErrForbidden
	}
	order, err := u.store.Orders().GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != from {
		return nil, domainErrors.ErrInvalidTransition
	}
	if err := u.store.Orders().TransitionStatus(ctx, order.ID, from, to, model.StatusChange{}); err != nil {
		return nil, err
	}
	order.Status = to
	u.notify(ctx, event, *order, "")
	return order, nil
}

// GetByID returns the order visible to actor.
// An overdue pending order is cancelled on read and reported as ErrOrderExpired.
func (u *OrderUseCase) GetByID(ctx context.Context, actor model.Actor, orderID int64) (*model.Order, error) {
	order, err := u.store.Orders().GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(order.UserID) {
		return nil, domainErrors.ErrForbidden
	}

	if !order.ExpiredAt(u.now(), u.settings.Expiration) {
		return order, nil
	}
	cancelled, err := u.expire(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	if cancelled {
		return nil, domainErrors.ErrOrderExpired
	}
	return u.store.Orders().GetByID(ctx, orderID)
}

// ListByUser returns the actor's orders, newest first.
func (u *OrderUseCase) ListByUser(ctx context.Context, actor model.Actor) ([]model.Order, error) {
	return u.store.Orders().ListByUser(ctx, actor.UserID)
}

// PaymentLogs returns the payment audit trail of an order visible to actor.
func (u *OrderUseCase) PaymentLogs(ctx context.Context, actor model.Actor, orderID int64) ([]model.PaymentLog, error) {
	order, err := u.store.Orders().GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(order.UserID) {
		return nil, domainErrors.ErrForbidden
	}
	return u.store.PaymentLogs().ListByOrder(ctx, orderID)
}

// ExpiredOrders returns at most limit overdue pending orders, oldest first.
func (u *OrderUseCase) ExpiredOrders(ctx context.Context, limit int) ([]model.Order, error) {
	return u.store.Orders().ListExpiredPending(ctx, u.now().Add(-u.settings.Expiration), limit)
}

// CancelExpired cancels an overdue order on behalf of the system.
// Orders repaid or paid since they were listed are left alone.
func (u *OrderUseCase) CancelExpired(ctx context.Context, orderID int64) error {
	_, err := u.expire(ctx, orderID)
	return err
}

func (u *OrderUseCase) appendLog(ctx context.Context, tx repository.Factory, orderID int64, status, reason, action string) error {
	payload, err := json.Marshal(map[string]string{"reason": reason, "action": action})
	if err != nil {
		return err
	}
	return tx.PaymentLogs().Append(ctx, model.PaymentLog{OrderID: orderID, Status: status, RawPayload: payload})
}

func (u *OrderUseCase) notify(ctx context.Context, t model.OrderEventType, order model.Order, reason string) {
	if u.notifier == nil {
		return
	}
	u.notifier.Notify(ctx, model.NewOrderEvent(t, order, reason, u.now()))
}
