package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cashflow/pix-gateway/internal/adapter/secondary/gateway"
	"github.com/cashflow/pix-gateway/internal/core"
	"github.com/cashflow/pix-gateway/internal/port/input"
)

// ConfirmationHandler is a primary adapter (HTTP handler)
type ConfirmationHandler struct {
	service input.ConfirmationService
	logger  *zap.Logger
}

// NewConfirmationHandler creates a new confirmation handler
func NewConfirmationHandler(service input.ConfirmationService, logger *zap.Logger) *ConfirmationHandler {
	return &ConfirmationHandler{
		service: service,
		logger:  logger,
	}
}

// WebhookResponse is returned to the gateway after a webhook is stored
type WebhookResponse struct {
	Success    bool         `json:"success"`
	ExternalID string       `json:"externalId"`
	Status     int          `json:"status"`
	Outcome    core.Outcome `json:"outcome"`
}

// StatusResponse is the payload served to polling clients
type StatusResponse struct {
	*core.PaymentConfirmation
	Found      bool         `json:"found"`
	IsTerminal bool         `json:"isTerminal"`
	Outcome    core.Outcome `json:"outcome"`
}

// CreateInvoiceRequest represents the HTTP request to create a PIX charge
type CreateInvoiceRequest struct {
	ExternalID  string          `json:"externalId"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Customer    core.Customer   `json:"customer"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// ReceiveWebhook handles POST /webhooks/:gateway
func (h *ConfirmationHandler) ReceiveWebhook(c echo.Context) error {
	gw, err := core.ParseGateway(c.Param("gateway"))
	if err != nil {
		return h.fail(c, err)
	}

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
	}

	confirmation, err := h.service.Ingest(c.Request().Context(), gw, c.Request().Header, body)
	if err != nil {
		return h.fail(c, err)
	}

	return c.JSON(http.StatusOK, WebhookResponse{
		Success:    true,
		ExternalID: confirmation.ExternalID,
		Status:     confirmation.StatusCode,
		Outcome:    confirmation.Outcome(),
	})
}

// GetStatus handles GET /payments/status
func (h *ConfirmationHandler) GetStatus(c echo.Context) error {
	id := firstNonEmpty(c.QueryParam("externalId"), c.QueryParam("invoiceId"), c.QueryParam("token"))
	if id == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "externalId, invoiceId or token is required"})
	}

	confirmation, err := h.service.Get(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return c.JSON(http.StatusNotFound, StatusResponse{Found: false, Outcome: core.OutcomePending})
		}
		return h.fail(c, err)
	}

	return c.JSON(http.StatusOK, StatusResponse{
		PaymentConfirmation: confirmation,
		Found:               true,
		IsTerminal:          confirmation.IsTerminal(),
		Outcome:             confirmation.Outcome(),
	})
}

// ListConfirmations handles GET /payments/confirmations
func (h *ConfirmationHandler) ListConfirmations(c echo.Context) error {
	list, err := h.service.List(c.Request().Context())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, list)
}

// RecentEvents handles GET /webhooks/events
func (h *ConfirmationHandler) RecentEvents(c echo.Context) error {
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "limit must be a non-negative integer"})
		}
		limit = n
	}

	events, err := h.service.RecentEvents(c.Request().Context(), limit)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, events)
}

// CreateInvoice handles POST /payments/:gateway/invoices
func (h *ConfirmationHandler) CreateInvoice(c echo.Context) error {
	gw, err := core.ParseGateway(c.Param("gateway"))
	if err != nil {
		return h.fail(c, err)
	}

	var req CreateInvoiceRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
	}

	invoice, err := h.service.CreateInvoice(c.Request().Context(), core.CreateInvoiceRequest{
		Gateway:     gw,
		ExternalID:  req.ExternalID,
		Amount:      req.Amount,
		Description: req.Description,
		Customer:    req.Customer,
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, invoice)
}

// fail maps service errors onto HTTP status codes
func (h *ConfirmationHandler) fail(c echo.Context, err error) error {
	var apiErr *gateway.APIError
	switch {
	case errors.Is(err, core.ErrUnknownGateway):
		return c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, core.ErrUnauthorized):
		return c.JSON(http.StatusUnauthorized, errorResponse{Error: "Unauthorized"})
	case errors.Is(err, core.ErrInvalidPayload),
		errors.Is(err, core.ErrUnknownStatus),
		errors.Is(err, core.ErrMissingIdentifier),
		errors.Is(err, core.ErrInvalidAmount):
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, core.ErrNotFound):
		return c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.As(err, &apiErr):
		h.logger.Warn("gateway request failed", zap.Error(err))
		return c.JSON(http.StatusBadGateway, errorResponse{Error: apiErr.Error()})
	}

	h.logger.Error("request failed",
		zap.String("method", c.Request().Method),
		zap.String("path", c.Path()),
		zap.Error(err),
	)
	// 5xx tells the gateway to retry the webhook
	return c.JSON(http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
