package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/openmarket/assetgate/internal/playback"
	"github.com/openmarket/assetgate/internal/video"
)

type VideoHandler struct {
	tracker  *video.Tracker
	playback *playback.Issuer
	logger   *slog.Logger
}

// VideoAssetResponse is the resolved state of an upload session.
type VideoAssetResponse struct {
	PlaybackID string      `json:"playback_id"`
	AssetID    string      `json:"asset_id"`
	State      video.State `json:"state"`
}

type PlaybackTokenRequest struct {
	PlaybackID string `json:"playbackId" query:"playbackId"`
	Type       string `json:"type" query:"type"`
}

func NewVideoHandler(log *slog.Logger, tracker *video.Tracker, issuer *playback.Issuer) *VideoHandler {
	return &VideoHandler{
		tracker:  tracker,
		playback: issuer,
		logger:   log.With(slog.String("handler", "video")),
	}
}

func (h *VideoHandler) Register(e *echo.Echo) {
	group := e.Group("/api/video")
	group.POST("/uploads", h.CreateUpload)
	group.GET("/assets", h.GetAsset)
	group.GET("/playback-token", h.PlaybackToken)
	group.POST("/playback-token", h.PlaybackToken)
}

// CreateUpload godoc
// @Summary Create a video upload session
// @Tags video
// @Success 200 {object} video.Session
// @Failure 500 {object} ErrorResponse
// @Router /api/video/uploads [post]
func (h *VideoHandler) CreateUpload(c echo.Context) error {
	session, err := h.tracker.CreateSession(c.Request().Context())
	if err != nil {
		return httpError(err, "failed to create video upload")
	}
	return c.JSON(http.StatusOK, session)
}

// GetAsset godoc
// @Summary Resolve a video asset
// @Description Resolve the asset of an upload session; wait=true polls until ready
// @Tags video
// @Param uploadId query string true "Upload session id"
// @Param wait query bool false "Poll until ready"
// @Success 200 {object} VideoAssetResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Failure 504 {object} ErrorResponse
// @Router /api/video/assets [get]
func (h *VideoHandler) GetAsset(c echo.Context) error {
	uploadID := strings.TrimSpace(c.QueryParam("uploadId"))
	wait := false
	if raw := c.QueryParam("wait"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "wait must be a boolean")
		}
		wait = parsed
	}

	var (
		asset video.Asset
		err   error
	)
	if wait {
		asset, err = h.tracker.WaitReady(c.Request().Context(), uploadID)
	} else {
		asset, err = h.tracker.ResolveAsset(c.Request().Context(), uploadID)
	}
	if err != nil {
		return httpError(err, "failed to resolve video asset")
	}
	return c.JSON(http.StatusOK, VideoAssetResponse{
		PlaybackID: asset.PlaybackID,
		AssetID:    asset.AssetID,
		State:      asset.State,
	})
}

// PlaybackToken godoc
// @Summary Issue a playback token
// @Tags video
// @Param playbackId query string true "Playback id"
// @Param type query string false "video, thumbnail, gif or storyboard"
// @Success 200 {object} playback.Token
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/video/playback-token [get]
// @Router /api/video/playback-token [post]
func (h *VideoHandler) PlaybackToken(c echo.Context) error {
	var req PlaybackTokenRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}
	token, err := h.playback.Issue(req.PlaybackID, playback.Kind(strings.TrimSpace(req.Type)))
	if err != nil {
		return httpError(err, "failed to generate playback token")
	}
	return c.JSON(http.StatusOK, token)
}
