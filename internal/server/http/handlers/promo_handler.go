package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/polkiloo/storefront/internal/server/http/dto"
)

// PromoHandler answers promo code checks.
type PromoHandler struct {
	facade PromoFacade
	logger *slog.Logger
}

func NewPromoHandler(facade PromoFacade, logger *slog.Logger) *PromoHandler {
	return &PromoHandler{facade: facade, logger: logger}
}

// Validate handles POST /api/promos/validate.
func (h *PromoHandler) Validate(c *gin.Context) {
	var req dto.PromoValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Code) == "" || !req.Amount.IsPositive() {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "code and positive amount are required"})
		return
	}

	evaluation, err := h.facade.ValidatePromo(c.Request.Context(), CurrentActor(c), req.Code, req.Amount)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.PromoValidateResponse{
		Code:           evaluation.Code,
		Type:           string(evaluation.Type),
		DiscountAmount: evaluation.DiscountAmount,
		FinalAmount:    evaluation.FinalAmount,
	})
}
