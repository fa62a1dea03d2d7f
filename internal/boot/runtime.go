// Package boot turns the loaded configuration into typed runtime settings.
package boot

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/openmarket/assetgate/internal/config"
	"github.com/openmarket/assetgate/internal/media"
	"github.com/openmarket/assetgate/internal/storage/s3"
)

// MaxPresignTTL is the longest validity SigV4 presigned URLs support.
const MaxPresignTTL = 7 * 24 * time.Hour

// RuntimeConfig holds parsed runtime settings. Values may be overridden by
// environment variables (e.g. HTTP_ADDR).
type RuntimeConfig struct {
	JwtSecret       string
	JwtExpiresIn    time.Duration
	ServerAddr      string
	ShutdownTimeout time.Duration

	Storage      s3.Config
	UploadTTL    time.Duration
	DeliveryTTL  time.Duration
	MaxSizes     map[media.Category]int64
	StorageRoots []string
	Concurrency  int

	VideoTimeout    time.Duration
	PollAttempts    int
	PollInterval    time.Duration
	PlaybackTTL     time.Duration
	CommerceTimeout time.Duration
}

// ProvideRuntimeConfig builds RuntimeConfig from the given config and applies env overrides.
func ProvideRuntimeConfig(cfg config.Config) (*RuntimeConfig, error) {
	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		return nil, errors.New("jwt secret is required")
	}

	ret := &RuntimeConfig{
		JwtSecret:    cfg.Auth.JWTSecret,
		ServerAddr:   cfg.Server.Addr,
		StorageRoots: cfg.Upload.StorageRoots,
		Concurrency:  cfg.Upload.Concurrency,
		PollAttempts: cfg.Video.PollAttempts,
		Storage: s3.Config{
			Bucket:          cfg.Storage.Bucket,
			Region:          cfg.Storage.Region,
			Endpoint:        cfg.Storage.Endpoint,
			AccessKeyID:     cfg.Storage.AccessKeyID,
			SecretAccessKey: cfg.Storage.SecretAccessKey,
			UsePathStyle:    cfg.Storage.UsePathStyle,
		},
		MaxSizes: map[media.Category]int64{},
	}
	if ret.Storage.Endpoint == "" && cfg.Storage.AccountID != "" {
		ret.Storage.Endpoint = s3.R2Endpoint(cfg.Storage.AccountID)
	}
	for category, limit := range media.DefaultMaxSizes {
		ret.MaxSizes[category] = limit
	}
	overrideSize(ret.MaxSizes, media.CategoryImage, cfg.Upload.MaxImageSize)
	overrideSize(ret.MaxSizes, media.CategoryVideo, cfg.Upload.MaxVideoSize)
	overrideSize(ret.MaxSizes, media.CategoryDocument, cfg.Upload.MaxDocumentSize)

	durations := []struct {
		name  string
		value string
		dst   *time.Duration
	}{
		{"jwt expires in", cfg.Auth.JWTExpiresIn, &ret.JwtExpiresIn},
		{"shutdown timeout", cfg.Server.ShutdownTimeout, &ret.ShutdownTimeout},
		{"upload url ttl", cfg.Upload.URLTTL, &ret.UploadTTL},
		{"delivery url ttl", cfg.Delivery.URLTTL, &ret.DeliveryTTL},
		{"video timeout", cfg.Video.Timeout, &ret.VideoTimeout},
		{"video poll interval", cfg.Video.PollInterval, &ret.PollInterval},
		{"playback token ttl", cfg.Playback.TokenTTL, &ret.PlaybackTTL},
		{"commerce timeout", cfg.Commerce.Timeout, &ret.CommerceTimeout},
	}
	for _, d := range durations {
		parsed, err := ParseDuration(d.value)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", d.name, err)
		}
		*d.dst = parsed
	}
	if ret.UploadTTL >= ret.DeliveryTTL && ret.DeliveryTTL > 0 {
		return nil, fmt.Errorf("upload url ttl %s must be shorter than delivery url ttl %s", ret.UploadTTL, ret.DeliveryTTL)
	}

	if value := os.Getenv("HTTP_ADDR"); value != "" {
		ret.ServerAddr = value
	}
	return ret, nil
}

// Warn logs settings that are accepted but likely to misbehave.
func (r *RuntimeConfig) Warn(log *slog.Logger) {
	if r.DeliveryTTL > MaxPresignTTL {
		log.Warn("delivery url ttl exceeds what SigV4 storage backends honour",
			slog.Duration("delivery_ttl", r.DeliveryTTL),
			slog.Duration("max", MaxPresignTTL),
		)
	}
	if err := r.Storage.Validate(); err != nil {
		log.Warn("storage is not fully configured; upload and delivery URLs will fail", slog.String("reason", err.Error()))
	}
}

// ParseDuration accepts a Go duration or a bare number of seconds. Empty is zero.
func ParseDuration(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	if seconds, err := strconv.ParseInt(value, 10, 64); err == nil {
		if seconds < 0 {
			return 0, fmt.Errorf("negative duration %q", value)
		}
		return time.Duration(seconds) * time.Second, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", value)
	}
	return d, nil
}

func overrideSize(sizes map[media.Category]int64, category media.Category, value int64) {
	if value > 0 {
		sizes[category] = value
	}
}
