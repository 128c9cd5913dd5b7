package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	domainErrors "github.com/polkiloo/storefront/internal/domain/errors"
	"github.com/polkiloo/storefront/internal/domain/model"
	"github.com/polkiloo/storefront/internal/domain/repository"
)

// Checkout converts the actor's cart into a pending order.
// Stock, promo redemption, order creation and cart clearing commit together;
// the invoice is requested afterwards and its failure leaves the order pending without a payment URL.
func (u *OrderUseCase) Checkout(ctx context.Context, actor model.Actor, addressID int64, promoCode string) (*model.Order, error) {
	if actor.UserID == 0 {
		return nil, domainErrors.ErrForbidden
	}

	txCtx, cancel := ctx, context.CancelFunc(func() {})
	if u.settings.CheckoutTimeout > 0 {
		txCtx, cancel = context.WithTimeout(ctx, u.settings.CheckoutTimeout)
	}
	defer cancel()

	var order *model.Order
	err := u.store.WithinTransaction(txCtx, func(tx repository.Factory) error {
		placed, err := u.placeOrder(txCtx, tx, actor.UserID, addressID, promoCode)
		if err != nil {
			return err
		}
		order = placed
		return nil
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(txCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", domainErrors.ErrCheckoutTimeout, err)
		}
		return nil, err
	}

	u.logger.Info("order placed",
		slog.Int64("order_id", order.ID),
		slog.String("number", order.Number),
		slog.String("total", order.TotalAmount.String()),
	)
	u.notify(ctx, model.EventOrderCreated, *order, "")
	u.issueInvoice(ctx, order)
	return order, nil
}

func (u *OrderUseCase) placeOrder(ctx context.Context, tx repository.Factory, userID, addressID int64, promoCode string) (*model.Order, error) {
	cart, err := tx.Carts().GetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(cart.Items) == 0 {
		return nil, domainErrors.ErrEmptyCart
	}
	for _, item := range cart.Items {
		if item.Quantity <= 0 {
			return nil, domainErrors.ErrInvalidQuantity
		}
	}

	address, err := tx.Addresses().GetByID(ctx, userID, addressID)
	if err != nil {
		return nil, err
	}

	products, err := tx.Products().GetByIDs(ctx, cart.ProductIDs())
	if err != nil {
		return nil, err
	}

	resolver := NewBundleResolver(tx.Bundles())
	var (
		reqs     []model.StockRequirement
		items    = make([]model.OrderItem, 0, len(cart.Items))
		subtotal = decimal.Zero
	)
	for _, line := range cart.Items {
		product, ok := products[line.ProductID]
		if !ok {
			return nil, fmt.Errorf("%w: product %d", domainErrors.ErrProductUnavailable, line.ProductID)
		}
		resolved, err := resolver.Resolve(ctx, product, line.Quantity)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, resolved...)

		item := model.OrderItem{
			ProductID:       product.ID,
			ProductName:     product.Name,
			ProductSKU:      product.SKU,
			Quantity:        line.Quantity,
			PriceAtPurchase: product.Price,
		}
		items = append(items, item)
		subtotal = subtotal.Add(item.Subtotal())
	}

	if err := NewInventoryLocker(tx.Products()).Reserve(ctx, reqs); err != nil {
		return nil, err
	}

	discount := decimal.Zero
	var evaluation *model.PromoEvaluation
	if promoCode != "" {
		evaluation, err = NewPromoEvaluator(tx.Promos(), u.now).Validate(ctx, userID, promoCode, subtotal)
		if err != nil {
			return nil, err
		}
		discount = evaluation.DiscountAmount
	}

	now := u.now()
	order := &model.Order{
		Number:            u.newNumber(now),
		UserID:            userID,
		Status:            model.OrderStatusPending,
		PaymentStatus:     model.PaymentStatusPending,
		Subtotal:          subtotal,
		DiscountAmount:    discount,
		TotalAmount:       subtotal.Sub(discount),
		ShippingAddress:   address.Snapshot(),
		ShippingPhone:     address.Phone,
		ShippingReceiver:  address.ReceiverName,
		PaymentExternalID: u.newRef(),
		PendingSince:      now,
		Items:             items,
	}
	if evaluation != nil {
		order.PromoCodeID = &evaluation.PromoID
	}
	if err := tx.Orders().Create(ctx, order); err != nil {
		return nil, err
	}

	if evaluation != nil {
		if err := u.redeemPromo(ctx, tx, evaluation, userID, order.ID); err != nil {
			return nil, err
		}
	}

	if err := tx.Carts().Clear(ctx, cart.ID); err != nil {
		return nil, err
	}
	return order, nil
}

// redeemPromo consumes one usage and re-checks the limits after the increment.
func (u *OrderUseCase) redeemPromo(ctx context.Context, tx repository.Factory, evaluation *model.PromoEvaluation, userID, orderID int64) error {
	count, err := tx.Promos().Redeem(ctx, evaluation.PromoID, userID, orderID)
	if err != nil {
		return err
	}
	if evaluation.UsageLimit != nil && count > *evaluation.UsageLimit {
		return domainErrors.ErrPromoExhausted
	}
	if evaluation.UsagePerUser != nil {
		used, err := tx.Promos().CountUserRedemptions(ctx, evaluation.PromoID, userID)
		if err != nil {
			return err
		}
		if used > *evaluation.UsagePerUser {
			return domainErrors.ErrPromoUserLimit
		}
	}
	return nil
}

// issueInvoice requests a hosted invoice and stores its URL. Failures are logged only.
func (u *OrderUseCase) issueInvoice(ctx context.Context, order *model.Order) {
	if u.gateway == nil {
		return
	}

	req := model.InvoiceRequest{
		ExternalID:  order.PaymentExternalID,
		OrderNumber: order.Number,
		Amount:      order.TotalAmount,
		Discount:    order.DiscountAmount,
		Currency:    u.settings.Currency,
		Duration:    u.settings.InvoiceDuration,
		Customer: model.InvoiceCustomer{
			GivenNames: order.ShippingReceiver,
			Phone:      order.ShippingPhone,
			Address:    model.Address{StreetLine1: order.ShippingAddress},
		},
	}
	if user, err := u.store.Users().GetByID(ctx, order.UserID); err == nil {
		req.Customer.Email = user.Email
	}
	for _, item := range order.Items {
		req.Items = append(req.Items, model.InvoiceItem{Name: item.ProductName, Price: item.PriceAtPurchase, Quantity: item.Quantity})
	}

	invoice, err := u.gateway.CreateInvoice(ctx, req)
	if err != nil {
		u.logger.Error("invoice creation failed",
			slog.Int64("order_id", order.ID),
			slog.String("reference", order.PaymentExternalID),
			slog.Any("error", err),
		)
		return
	}

	if err := u.store.Orders().AttachInvoice(ctx, order.ID, order.PaymentExternalID, *invoice); err != nil {
		u.logger.Warn("invoice not attached to order",
			slog.Int64("order_id", order.ID),
			slog.String("invoice_id", invoice.ID),
			slog.Any("error", err),
		)
		return
	}
	order.PaymentURL = invoice.URL
}
