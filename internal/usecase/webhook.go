package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	domainErrors "github.com/polkiloo/storefront/internal/domain/errors"
	"github.com/polkiloo/storefront/internal/domain/model"
	"github.com/polkiloo/storefront/internal/domain/repository"
)

// OrderTransitions is the part of the order lifecycle driven by payment events.
type OrderTransitions interface {
	MarkAsPaid(ctx context.Context, orderID int64) error
	MarkAsCancelled(ctx context.Context, orderID int64, reason string) error
}

// WebhookUseCase reconciles gateway payment events with orders.
type WebhookUseCase struct {
	store   repository.Factory
	gateway PaymentGateway
	orders  OrderTransitions
	logger  *slog.Logger
}

// NewWebhookUseCase constructs WebhookUseCase.
func NewWebhookUseCase(store repository.Transactor, gateway PaymentGateway, orders *OrderUseCase, logger *slog.Logger) *WebhookUseCase {
	return &WebhookUseCase{store: store, gateway: gateway, orders: orders, logger: logger}
}

// Reconcile applies a payment event. Expected business outcomes are returned as a tag with a nil error;
// a non-nil error means the sender should retry.
func (u *WebhookUseCase) Reconcile(ctx context.Context, event model.PaymentEvent) (model.WebhookResult, error) {
	logger := u.logger.With(slog.String("event_id", event.EventID), slog.String("reference", event.ExternalID))

	if strings.TrimSpace(event.EventID) == "" || strings.TrimSpace(event.ExternalID) == "" {
		logger.Warn("payment event rejected", slog.Any("error", domainErrors.ErrMissingEventID))
		return model.WebhookIgnoredInvalidPayload, nil
	}

	order, err := u.store.Orders().GetByExternalID(ctx, event.ExternalID)
	if err != nil {
		if errors.Is(err, domainErrors.ErrNotFound) {
			logger.Warn("payment event for unknown order")
			return model.WebhookIgnoredUnknownOrder, nil
		}
		return "", err
	}
	logger = logger.With(slog.Int64("order_id", order.ID))

	switch {
	case order.Status.IsFulfilled():
		return model.WebhookIgnoredAlreadyPaid, nil
	case order.Status == model.OrderStatusCancelled:
		return model.WebhookIgnoredCancelled, nil
	}

	if err := u.store.PaymentLogs().Append(ctx, model.PaymentLog{
		OrderID:    order.ID,
		Status:     string(event.Status),
		RawPayload: event.Payload,
	}); err != nil {
		return "", err
	}

	switch {
	case event.Status.IsPaid():
		invoice, err := u.gateway.GetInvoice(ctx, event.EventID)
		if errors.Is(err, domainErrors.ErrInvoiceNotFound) {
			logger.Error("payment event for unknown invoice", slog.String("claimed_status", string(event.Status)))
			return model.WebhookRejectedMismatch, nil
		}
		if err != nil {
			return "", err
		}
		if !invoice.Status.IsPaid() || invoice.ExternalID != event.ExternalID {
			logger.Error("payment status mismatch",
				slog.String("claimed_status", string(event.Status)),
				slog.String("gateway_status", string(invoice.Status)),
				slog.String("gateway_reference", invoice.ExternalID),
			)
			return model.WebhookRejectedMismatch, nil
		}
		err = u.orders.MarkAsPaid(ctx, order.ID)
		return u.outcome(logger, err)
	case event.Status == model.InvoiceStatusExpired:
		err := u.orders.MarkAsCancelled(ctx, order.ID, ReasonPaymentExpired)
		return u.outcome(logger, err)
	default:
		logger.Info("payment event recorded", slog.String("status", string(event.Status)))
		return model.WebhookSuccess, nil
	}
}

func (u *WebhookUseCase) outcome(logger *slog.Logger, err error) (model.WebhookResult, error) {
	switch {
	case err == nil:
		return model.WebhookSuccess, nil
	case errors.Is(err, domainErrors.ErrAlreadyPaid):
		return model.WebhookIgnoredAlreadyPaid, nil
	case errors.Is(err, domainErrors.ErrOrderCancelled):
		return model.WebhookIgnoredCancelled, nil
	case domainErrors.IsExpectedTransition(err):
		logger.Info("payment event absorbed", slog.Any("error", err))
		return model.WebhookIgnoredBadState, nil
	default:
		return "", err
	}
}
