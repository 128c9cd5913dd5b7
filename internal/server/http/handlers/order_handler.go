package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/polkiloo/storefront/internal/domain/model"
	"github.com/polkiloo/storefront/internal/server/http/dto"
)

// OrderHandler serves customer order endpoints.
type OrderHandler struct {
	facade OrderFacade
	logger *slog.Logger
}

// NewOrderHandler creates OrderHandler.
func NewOrderHandler(facade OrderFacade, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{facade: facade, logger: logger}
}

// Checkout handles POST /api/orders/checkout.
func (h *OrderHandler) Checkout(c *gin.Context) {
	var req dto.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.AddressID <= 0 {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "address_id is required"})
		return
	}

	order, err := h.facade.Checkout(c.Request.Context(), CurrentActor(c), req.AddressID, req.PromoCode)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, toOrderResponse(order))
}

// List handles GET /api/orders.
func (h *OrderHandler) List(c *gin.Context) {
	orders, err := h.facade.Orders(c.Request.Context(), CurrentActor(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if len(orders) == 0 {
		c.Status(http.StatusNoContent)
		return
	}

	resp := make([]dto.OrderResponse, 0, len(orders))
	for i := range orders {
		resp = append(resp, toOrderResponse(&orders[i]))
	}
	c.JSON(http.StatusOK, resp)
}

// Get handles GET /api/orders/:id.
func (h *OrderHandler) Get(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}
	order, err := h.facade.Order(c.Request.Context(), CurrentActor(c), id)
	h.respond(c, order, err)
}

// Payments handles GET /api/orders/:id/payments.
func (h *OrderHandler) Payments(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}
	logs, err := h.facade.PaymentLogs(c.Request.Context(), CurrentActor(c), id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	resp := make([]dto.PaymentLogResponse, 0, len(logs))
	for _, entry := range logs {
		resp = append(resp, dto.PaymentLogResponse{Status: entry.Status, RawPayload: entry.RawPayload, CreatedAt: entry.CreatedAt})
	}
	c.JSON(http.StatusOK, resp)
}

// Cancel handles POST /api/orders/:id/cancel.
func (h *OrderHandler) Cancel(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}
	reason, ok := bindReason(c)
	if !ok {
		return
	}
	order, err := h.facade.CancelOrder(c.Request.Context(), CurrentActor(c), id, reason)
	h.respond(c, order, err)
}

// Repay handles POST /api/orders/:id/repay.
func (h *OrderHandler) Repay(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}
	order, err := h.facade.Repay(c.Request.Context(), CurrentActor(c), id)
	h.respond(c, order, err)
}

// Refund handles POST /api/orders/:id/refund.
func (h *OrderHandler) Refund(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}
	reason, ok := bindReason(c)
	if !ok {
		return
	}
	order, err := h.facade.RequestRefund(c.Request.Context(), CurrentActor(c), id, reason)
	h.respond(c, order, err)
}

func (h *OrderHandler) respond(c *gin.Context, order *model.Order, err error) {
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(order))
}

// bindReason reads an optional reason body. An empty body is accepted.
func bindReason(c *gin.Context) (string, bool) {
	var req dto.ReasonRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid request body"})
		return "", false
	}
	return req.Reason, true
}
