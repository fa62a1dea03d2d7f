package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/openmarket/assetgate/internal/version"
)

// HealthResponse reports build info and which collaborators have credentials.
type HealthResponse struct {
	Status     string          `json:"status"`
	Version    version.Info    `json:"version"`
	Configured map[string]bool `json:"configured"`
}

// PingHandler serves /ping and /health for liveness.
type PingHandler struct {
	configured map[string]bool
	logger     *slog.Logger
}

// NewPingHandler creates a ping handler. configured is reported by GET /health.
func NewPingHandler(log *slog.Logger, configured map[string]bool) *PingHandler {
	return &PingHandler{
		configured: configured,
		logger:     log.With(slog.String("handler", "ping")),
	}
}

// Register mounts GET /ping, GET /health and HEAD /health on the Echo instance.
func (h *PingHandler) Register(e *echo.Echo) {
	e.GET("/ping", h.Ping)
	e.GET("/health", h.Health)
	e.HEAD("/health", h.PingHead)
}

// Ping returns 200 JSON {"status":"ok"}.
func (h *PingHandler) Ping(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Health godoc
// @Summary Service health
// @Tags health
// @Success 200 {object} HealthResponse
// @Router /health [get]
func (h *PingHandler) Health(c echo.Context) error {
	configured := make(map[string]bool, len(h.configured))
	for name, ok := range h.configured {
		configured[name] = ok
	}
	return c.JSON(http.StatusOK, HealthResponse{
		Status:     "ok",
		Version:    version.Get(),
		Configured: configured,
	})
}

// PingHead returns 200 No Content for health checks.
func (h *PingHandler) PingHead(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}
