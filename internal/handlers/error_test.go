package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/openmarket/assetgate/internal/apperr"
	"github.com/openmarket/assetgate/internal/commerce"
)

func TestHTTPError(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"validation", apperr.Validation("playbackId is required"), http.StatusBadRequest, "playbackId is required"},
		{"configuration", apperr.Configuration("video signing credentials are not configured"), http.StatusInternalServerError, "video signing credentials are not configured"},
		{"upstream", apperr.Upstream("failed to generate secured URL", errors.New("dial tcp 10.0.0.7:443")), http.StatusInternalServerError, "failed to generate secured URL"},
		{"timeout", apperr.Timeout("video processing timeout", nil), http.StatusGatewayTimeout, "video processing timeout"},
		{"unclassified", errors.New("boom"), http.StatusInternalServerError, "fallback"},
		{"ledger 4xx", apperr.Upstream("failed to initiate transaction", fmt.Errorf("show listing: %w", &commerce.StatusError{Status: http.StatusForbidden})), http.StatusForbidden, "Forbidden"},
		{"ledger 5xx", apperr.Upstream("failed to initiate transaction", &commerce.StatusError{Status: http.StatusBadGateway}), http.StatusInternalServerError, "failed to initiate transaction"},
		{"echo", echo.NewHTTPError(http.StatusBadRequest, "invalid request body"), http.StatusBadRequest, "invalid request body"},
	}
	for _, tc := range cases {
		he := httpError(tc.err, "fallback")
		assert.Equal(t, tc.status, he.Code, tc.name)
		assert.Equal(t, tc.message, he.Message, tc.name)
	}
}
