package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/openmarket/assetgate/internal/apperr"
	"github.com/openmarket/assetgate/internal/auth"
	"github.com/openmarket/assetgate/internal/delivery"
	"github.com/openmarket/assetgate/internal/media"
	"github.com/openmarket/assetgate/internal/upload"
)

type MediaHandler struct {
	uploads  *upload.Issuer
	delivery *delivery.Issuer
	logger   *slog.Logger
}

// PresignedURLsRequest asks for one upload URL per file under StoragePath.
type PresignedURLsRequest struct {
	StoragePath string             `json:"storagePath"`
	Files       []media.Descriptor `json:"files"`
}

// PresignedURLItem is either a ticket (URL, Key) or a per-file Error.
type PresignedURLItem struct {
	Name      string            `json:"name"`
	URL       string            `json:"url,omitempty"`
	Key       string            `json:"key,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
	ExpiresAt *time.Time        `json:"expiresAt,omitempty"`
	Error     string            `json:"error,omitempty"`
}

type PresignedURLsResponse struct {
	Success bool               `json:"success"`
	Data    []PresignedURLItem `json:"data"`
}

type SecuredURLRequest struct {
	Key string `json:"key"`
}

type SecuredURLResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func NewMediaHandler(log *slog.Logger, uploads *upload.Issuer, delivery *delivery.Issuer) *MediaHandler {
	return &MediaHandler{
		uploads:  uploads,
		delivery: delivery,
		logger:   log.With(slog.String("handler", "media")),
	}
}

func (h *MediaHandler) Register(e *echo.Echo) {
	group := e.Group("/api/media")
	group.POST("/presigned-urls", h.PresignedURLs)
	group.POST("/secured-url", h.SecuredURL)
}

// PresignedURLs godoc
// @Summary Issue upload URLs
// @Description Issue a short-lived signed PUT URL and object key for every file
// @Tags media
// @Param payload body PresignedURLsRequest true "Files to upload"
// @Success 200 {object} PresignedURLsResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/media/presigned-urls [post]
func (h *MediaHandler) PresignedURLs(c echo.Context) error {
	var req PresignedURLsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	results, err := h.uploads.IssueBatch(c.Request().Context(), req.Files, req.StoragePath)
	if err != nil {
		return httpError(err, "failed to generate upload URL")
	}
	if upload.AllFailed(results) {
		return httpError(results[0].Err, "failed to generate upload URL")
	}

	userID, _ := auth.UserIDFromContext(c)
	items := make([]PresignedURLItem, 0, len(results))
	issued := 0
	for _, r := range results {
		item := PresignedURLItem{Name: r.File.Name}
		if r.Err != nil {
			item.Error = apperr.PublicMessage(r.Err, "failed to generate upload URL")
		} else {
			expiresAt := r.Ticket.ExpiresAt
			item.URL = r.Ticket.URL
			item.Key = r.Ticket.Key
			item.Headers = r.Ticket.Headers
			item.ExpiresAt = &expiresAt
			issued++
		}
		items = append(items, item)
	}
	h.logger.Info("upload urls issued",
		slog.String("user_id", userID),
		slog.String("storage_path", req.StoragePath),
		slog.Int("issued", issued),
		slog.Int("failed", len(results)-issued),
	)
	return c.JSON(http.StatusOK, PresignedURLsResponse{Success: true, Data: items})
}

// SecuredURL godoc
// @Summary Issue a delivery URL
// @Description Issue a long-lived signed GET URL for a secured object key
// @Tags media
// @Param payload body SecuredURLRequest true "Object key"
// @Success 200 {object} SecuredURLResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/media/secured-url [post]
func (h *MediaHandler) SecuredURL(c echo.Context) error {
	var req SecuredURLRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	url, err := h.delivery.Issue(c.Request().Context(), req.Key)
	if err != nil {
		return httpError(err, "failed to generate secured URL")
	}
	return c.JSON(http.StatusOK, SecuredURLResponse{URL: url.URL, ExpiresAt: url.ExpiresAt})
}
