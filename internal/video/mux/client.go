// Package mux is a REST client for the Mux Video API covering direct uploads
// and asset lookup.
package mux

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"

	"github.com/openmarket/assetgate/internal/apperr"
	"github.com/openmarket/assetgate/internal/video"
)

const (
	DefaultBaseURL = "https://api.mux.com"
	uploadsPath    = "/video/v1/uploads"
	assetsPath     = "/video/v1/assets"
)

var tracer = otel.Tracer("github.com/openmarket/assetgate/internal/video/mux")

// Config holds the API access token. RequestsPerSecond <= 0 disables pacing.
type Config struct {
	BaseURL           string
	TokenID           string
	TokenSecret       string
	RequestsPerSecond float64
	Timeout           time.Duration
}

// Client implements video.Platform.
type Client struct {
	baseURL     string
	tokenID     string
	tokenSecret string
	limiter     *rate.Limiter
	logger      *slog.Logger
	http        *http.Client
}

var _ video.Platform = (*Client)(nil)

type uploadRequest struct {
	CORSOrigin       string           `json:"cors_origin,omitempty"`
	NewAssetSettings newAssetSettings `json:"new_asset_settings"`
}

type newAssetSettings struct {
	PlaybackPolicy []string `json:"playback_policy"`
}

type uploadData struct {
	ID      string `json:"id"`
	URL     string `json:"url"`
	Status  string `json:"status"`
	AssetID string `json:"asset_id"`
}

type assetData struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	PlaybackIDs []struct {
		ID     string `json:"id"`
		Policy string `json:"policy"`
	} `json:"playback_ids"`
	Progress struct {
		State string `json:"state"`
	} `json:"progress"`
}

type envelope[T any] struct {
	Data T `json:"data"`
}

type errorResponse struct {
	Error struct {
		Type     string   `json:"type"`
		Messages []string `json:"messages"`
	} `json:"error"`
}

// NewClient builds a client; baseURL defaults to DefaultBaseURL if empty.
func NewClient(log *slog.Logger, cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		tokenID:     cfg.TokenID,
		tokenSecret: cfg.TokenSecret,
		limiter:     limiter,
		logger:      log.With(slog.String("client", "mux")),
		http:        &http.Client{Timeout: timeout},
	}
}

func (c *Client) CreateUpload(ctx context.Context, req video.UploadRequest) (video.Upload, error) {
	policy := req.PlaybackPolicy
	if policy == "" {
		policy = video.PlaybackPolicySigned
	}
	var out envelope[uploadData]
	err := c.do(ctx, http.MethodPost, uploadsPath, uploadRequest{
		CORSOrigin:       req.CORSOrigin,
		NewAssetSettings: newAssetSettings{PlaybackPolicy: []string{policy}},
	}, &out)
	if err != nil {
		return video.Upload{}, err
	}
	return toUpload(out.Data), nil
}

func (c *Client) GetUpload(ctx context.Context, uploadID string) (video.Upload, error) {
	var out envelope[uploadData]
	if err := c.do(ctx, http.MethodGet, uploadsPath+"/"+uploadID, nil, &out); err != nil {
		return video.Upload{}, err
	}
	return toUpload(out.Data), nil
}

func (c *Client) GetAsset(ctx context.Context, assetID string) (video.PlatformAsset, error) {
	var out envelope[assetData]
	if err := c.do(ctx, http.MethodGet, assetsPath+"/"+assetID, nil, &out); err != nil {
		return video.PlatformAsset{}, err
	}
	asset := video.PlatformAsset{
		ID:            out.Data.ID,
		Status:        out.Data.Status,
		ProgressState: out.Data.Progress.State,
		PlaybackIDs:   make([]video.PlaybackID, 0, len(out.Data.PlaybackIDs)),
	}
	for _, id := range out.Data.PlaybackIDs {
		asset.PlaybackIDs = append(asset.PlaybackIDs, video.PlaybackID{ID: id.ID, Policy: id.Policy})
	}
	return asset, nil
}

// DeleteAsset returns video.ErrNotFound when the asset does not exist.
func (c *Client) DeleteAsset(ctx context.Context, assetID string) error {
	return c.do(ctx, http.MethodDelete, assetsPath+"/"+assetID, nil, nil)
}

func toUpload(d uploadData) video.Upload {
	return video.Upload{ID: d.ID, URL: d.URL, Status: d.Status, AssetID: d.AssetID}
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) (err error) {
	if c.tokenID == "" || c.tokenSecret == "" {
		return apperr.Configuration("video platform credentials are not configured")
	}
	ctx, span := tracer.Start(ctx, "mux "+method)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "mux request failed")
		}
		span.End()
	}()
	span.SetAttributes(attribute.String("http.method", method), attribute.String("mux.path", path))

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(c.tokenID, c.tokenSecret)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Warn("mux: close response body failed", slog.Any("error", err))
		}
	}()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read mux response: %w", err)
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode == http.StatusNotFound {
		return video.ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var parsed errorResponse
		if json.Unmarshal(raw, &parsed) == nil && len(parsed.Error.Messages) > 0 {
			return fmt.Errorf("mux %s %s: %d %s: %s", method, path, resp.StatusCode, parsed.Error.Type, strings.Join(parsed.Error.Messages, "; "))
		}
		return fmt.Errorf("mux %s %s: %d %s", method, path, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode mux response: %w", err)
	}
	return nil
}
