package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	domainErrors "github.com/polkiloo/storefront/internal/domain/errors"
	"github.com/polkiloo/storefront/internal/domain/model"
	"github.com/polkiloo/storefront/internal/server/http/dto"
	"github.com/polkiloo/storefront/internal/server/http/middleware"
)

// CurrentActor extracts the authenticated actor from context.
func CurrentActor(c *gin.Context) model.Actor {
	return middleware.Actor(c)
}

// orderID parses the :id path parameter. It writes 400 and returns false on failure.
func orderID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid order id"})
		return 0, false
	}
	return id, true
}

// statusFor maps a domain error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domainErrors.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domainErrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domainErrors.ErrOrderExpired):
		return http.StatusGone
	case errors.Is(err, domainErrors.ErrCheckoutTimeout):
		return http.StatusServiceUnavailable
	case domainErrors.IsValidation(err):
		return http.StatusBadRequest
	case domainErrors.IsConflict(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError responds with the mapped status. Internal failures are logged and their detail hidden.
func writeError(c *gin.Context, logger *slog.Logger, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed",
			slog.String("path", c.Request.URL.Path),
			slog.Int64("user_id", CurrentActor(c).UserID),
			slog.Any("error", err),
		)
		c.JSON(status, dto.ErrorResponse{Error: "internal error"})
		return
	}
	c.JSON(status, dto.ErrorResponse{Error: err.Error()})
}

func toOrderResponse(order *model.Order) dto.OrderResponse {
	resp := dto.OrderResponse{
		ID:               order.ID,
		Number:           order.Number,
		Status:           string(order.Status),
		PaymentStatus:    order.PaymentStatus,
		Subtotal:         order.Subtotal,
		DiscountAmount:   order.DiscountAmount,
		TotalAmount:      order.TotalAmount,
		ShippingAddress:  order.ShippingAddress,
		ShippingReceiver: order.ShippingReceiver,
		ShippingPhone:    order.ShippingPhone,
		PaymentURL:       order.PaymentURL,
		PaidAt:           order.PaidAt,
		CreatedAt:        order.CreatedAt,
	}
	for _, item := range order.Items {
		resp.Items = append(resp.Items, dto.OrderItemResponse{
			ProductID:       item.ProductID,
			ProductName:     item.ProductName,
			ProductSKU:      item.ProductSKU,
			Quantity:        item.Quantity,
			PriceAtPurchase: item.PriceAtPurchase,
			Subtotal:        item.Subtotal(),
		})
	}
	return resp
}
