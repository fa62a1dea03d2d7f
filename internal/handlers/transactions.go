package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/openmarket/assetgate/internal/auth"
	"github.com/openmarket/assetgate/internal/commerce"
	"github.com/openmarket/assetgate/internal/transaction"
)

// MarketplaceTokenHeader carries the caller's ledger access token.
const MarketplaceTokenHeader = "X-Marketplace-Token"

type TransactionHandler struct {
	initiator *transaction.Initiator
	logger    *slog.Logger
}

// InitiateResponse passes the ledger reply through.
type InitiateResponse struct {
	Status     int             `json:"status"`
	StatusText string          `json:"statusText"`
	Data       json.RawMessage `json:"data"`
}

func NewTransactionHandler(log *slog.Logger, initiator *transaction.Initiator) *TransactionHandler {
	return &TransactionHandler{
		initiator: initiator,
		logger:    log.With(slog.String("handler", "transactions")),
	}
}

func (h *TransactionHandler) Register(e *echo.Echo) {
	e.POST("/api/transactions/initiate-privileged", h.InitiatePrivileged)
}

// InitiatePrivileged godoc
// @Summary Initiate a transaction with secured assets
// @Description Initiates (or previews) a transaction; non-speculative initiations carry the listing's secured assets
// @Tags transactions
// @Param payload body transaction.Request true "Initiation"
// @Success 200 {object} InitiateResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/transactions/initiate-privileged [post]
func (h *TransactionHandler) InitiatePrivileged(c echo.Context) error {
	var req transaction.Request
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ctx := c.Request().Context()
	if token := strings.TrimSpace(c.Request().Header.Get(MarketplaceTokenHeader)); token != "" {
		ctx = commerce.WithUserToken(ctx, token)
	}
	resp, err := h.initiator.Initiate(ctx, req)
	if err != nil {
		userID, _ := auth.UserIDFromContext(c)
		h.logger.Warn("initiate privileged failed", slog.String("user_id", userID), slog.Any("error", err))
		return httpError(err, "failed to initiate transaction")
	}
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	return c.JSON(status, InitiateResponse{
		Status:     status,
		StatusText: http.StatusText(status),
		Data:       resp.Data,
	})
}
