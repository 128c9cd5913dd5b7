package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/polkiloo/storefront/internal/domain/model"
)

// AdminHandler serves administrative order transitions.
type AdminHandler struct {
	facade AdminFacade
	logger *slog.Logger
}

func NewAdminHandler(facade AdminFacade, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{facade: facade, logger: logger}
}

// ProcessRefund handles POST /api/admin/orders/:id/refund.
func (h *AdminHandler) ProcessRefund(c *gin.Context) {
	h.transition(c, h.facade.ProcessRefund)
}

// Ship handles POST /api/admin/orders/:id/ship.
func (h *AdminHandler) Ship(c *gin.Context) {
	h.transition(c, h.facade.ShipOrder)
}

// Complete handles POST /api/admin/orders/:id/complete.
func (h *AdminHandler) Complete(c *gin.Context) {
	h.transition(c, h.facade.CompleteOrder)
}

func (h *AdminHandler) transition(c *gin.Context, apply func(context.Context, model.Actor, int64) (*model.Order, error)) {
	id, ok := orderID(c)
	if !ok {
		return
	}
	order, err := apply(c.Request.Context(), CurrentActor(c), id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(order))
}
