// Package delivery issues read-scoped signed URLs for secured objects.
package delivery

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/openmarket/assetgate/internal/apperr"
	"github.com/openmarket/assetgate/internal/metrics"
	"github.com/openmarket/assetgate/internal/storage"
)

// DefaultTTL is roughly six months.
const DefaultTTL = 4320 * time.Hour

// URL is a time-limited read credential.
type URL struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type Issuer struct {
	signer storage.Signer
	ttl    time.Duration
	logger *slog.Logger
}

func NewIssuer(log *slog.Logger, signer storage.Signer, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Issuer{
		signer: signer,
		ttl:    ttl,
		logger: log.With(slog.String("service", "delivery")),
	}
}

// TTL returns the validity window of issued URLs.
func (i *Issuer) TTL() time.Duration { return i.ttl }

// Issue signs a GET for key.
func (i *Issuer) Issue(ctx context.Context, key string) (URL, error) {
	if err := validateKey(key); err != nil {
		metrics.CredentialsIssued.WithLabelValues(metrics.KindDelivery, metrics.ResultRejected).Inc()
		return URL{}, err
	}
	signed, err := i.signer.SignGet(ctx, key, i.ttl)
	if err != nil {
		metrics.CredentialsIssued.WithLabelValues(metrics.KindDelivery, metrics.ResultFailed).Inc()
		i.logger.Error("sign delivery failed", slog.String("key", key), slog.Any("error", err))
		if apperr.Is(err, apperr.KindConfiguration) {
			return URL{}, err
		}
		return URL{}, apperr.Upstream("failed to generate secured URL", err)
	}
	metrics.CredentialsIssued.WithLabelValues(metrics.KindDelivery, metrics.ResultOK).Inc()
	return URL{URL: signed.URL, ExpiresAt: signed.ExpiresAt}, nil
}

func validateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return apperr.Validation("object key is required")
	}
	if strings.Contains(key, "..") || strings.HasPrefix(key, "/") || strings.HasPrefix(key, `\`) {
		return apperr.Validation("invalid object key")
	}
	return nil
}
