// Package commerce talks to the marketplace ledger that owns listings and
// transactions.
package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/openmarket/assetgate/internal/apperr"
)

const (
	marketplacePrefix = "/v1/api"
	integrationPrefix = "/v1/integration_api"
)

var tracer = otel.Tracer("github.com/openmarket/assetgate/internal/commerce")

// Config locates the ledger. ClientToken authorises privileged reads.
type Config struct {
	BaseURL     string
	ClientToken string
	Timeout     time.Duration
}

// Client implements Ledger over the ledger's JSON API.
type Client struct {
	baseURL     string
	clientToken string
	logger      *slog.Logger
	http        *http.Client
}

var _ Ledger = (*Client)(nil)

type dataEnvelope struct {
	Data json.RawMessage `json:"data"`
}

func NewClient(log *slog.Logger, cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		clientToken: cfg.ClientToken,
		logger:      log.With(slog.String("client", "commerce")),
		http:        &http.Client{Timeout: timeout},
	}
}

func (c *Client) ShowListing(ctx context.Context, id string) (Listing, error) {
	return c.showListing(ctx, marketplacePrefix, UserToken(ctx), id)
}

func (c *Client) ShowListingPrivate(ctx context.Context, id string) (Listing, error) {
	if c.clientToken == "" {
		return Listing{}, apperr.Configuration("commerce integration credentials are not configured")
	}
	return c.showListing(ctx, integrationPrefix, c.clientToken, id)
}

func (c *Client) Initiate(ctx context.Context, req InitiateRequest) (Response, error) {
	return c.initiate(ctx, "/transactions/initiate", req)
}

func (c *Client) InitiateSpeculative(ctx context.Context, req InitiateRequest) (Response, error) {
	return c.initiate(ctx, "/transactions/initiate_speculative", req)
}

func (c *Client) showListing(ctx context.Context, prefix, token, id string) (Listing, error) {
	query := url.Values{"id": {id}}
	status, body, err := c.do(ctx, http.MethodGet, prefix+"/listings/show", query, token, nil)
	if err != nil {
		return Listing{}, err
	}
	if status < 200 || status >= 300 {
		return Listing{}, &StatusError{Op: "show listing", Status: status, Body: body}
	}
	var env dataEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Listing{}, fmt.Errorf("decode listing: %w", err)
	}
	var listing Listing
	if err := json.Unmarshal(env.Data, &listing); err != nil {
		return Listing{}, fmt.Errorf("decode listing: %w", err)
	}
	return listing, nil
}

func (c *Client) initiate(ctx context.Context, path string, req InitiateRequest) (Response, error) {
	query := url.Values{}
	for k, v := range req.Query {
		query.Set(k, v)
	}
	status, body, err := c.do(ctx, http.MethodPost, marketplacePrefix+path, query, UserToken(ctx), req.Body)
	if err != nil {
		return Response{}, err
	}
	if status < 200 || status >= 300 {
		return Response{}, &StatusError{Op: "initiate transaction", Status: status, Body: body}
	}
	var env dataEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Response{}, fmt.Errorf("decode transaction: %w", err)
	}
	return Response{Status: status, Data: env.Data}, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, token string, payload any) (int, []byte, error) {
	if c.baseURL == "" {
		return 0, nil, apperr.Configuration("commerce base URL is not configured")
	}
	ctx, span := tracer.Start(ctx, "commerce "+path)
	defer span.End()
	span.SetAttributes(attribute.String("http.method", method))

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		body = bytes.NewReader(raw)
	}
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return 0, nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Warn("commerce: close response body failed", slog.Any("error", err))
		}
	}()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode >= 500 {
		span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
	}
	return resp.StatusCode, raw, nil
}
