package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/openmarket/assetgate/internal/apperr"
	"github.com/openmarket/assetgate/internal/commerce"
)

// ErrorResponse is the standard API error body.
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Retryable bool   `json:"retryable,omitempty"`
}

// httpError maps a classified error to an echo error whose message is safe to
// return. The original error stays attached for server-side logging.
func httpError(err error, fallback string) *echo.HTTPError {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}
	status := apperr.HTTPStatus(err)
	message := apperr.PublicMessage(err, fallback)

	var ledgerErr *commerce.StatusError
	if errors.As(err, &ledgerErr) && ledgerErr.Status >= 400 && ledgerErr.Status < 500 {
		status = ledgerErr.Status
		message = http.StatusText(ledgerErr.Status)
	}
	return echo.NewHTTPError(status, message).SetInternal(err)
}
