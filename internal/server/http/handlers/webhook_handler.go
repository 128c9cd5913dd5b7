package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/polkiloo/storefront/internal/domain/model"
	"github.com/polkiloo/storefront/internal/server/http/dto"
)

// WebhookHandler receives gateway invoice callbacks.
type WebhookHandler struct {
	facade PaymentFacade
	logger *slog.Logger
}

func NewWebhookHandler(facade PaymentFacade, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{facade: facade, logger: logger}
}

// Handle serves POST /api/payments/webhook.
// Business outcomes are acknowledged with 200 and a status tag; only unexpected failures return 500
// so the gateway redelivers.
func (h *WebhookHandler) Handle(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "unreadable body"})
		return
	}

	var payload dto.WebhookPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		h.logger.Warn("malformed payment callback", slog.Any("error", err))
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "malformed payload"})
		return
	}

	result, err := h.facade.HandlePaymentEvent(c.Request.Context(), model.PaymentEvent{
		EventID:    payload.ID,
		ExternalID: payload.ExternalID,
		Status:     model.InvoiceStatus(strings.ToUpper(strings.TrimSpace(payload.Status))),
		Payload:    json.RawMessage(raw),
	})
	if err != nil {
		h.logger.Error("payment callback failed",
			slog.String("event_id", payload.ID),
			slog.String("reference", payload.ExternalID),
			slog.Any("error", err),
		)
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "internal error"})
		return
	}
	c.JSON(http.StatusOK, dto.WebhookResponse{Status: string(result)})
}
