package s3

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/openmarket/assetgate/internal/apperr"
)

// Config identifies the bucket and the S3-compatible endpoint (R2 by default).
type Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

// DefaultRegion is the region name R2 expects.
const DefaultRegion = "auto"

// R2Endpoint returns the account-scoped R2 endpoint.
func R2Endpoint(accountID string) string {
	return fmt.Sprintf("https://%s.r2.cloudflarestorage.com", accountID)
}

// Validate reports missing identity or credentials without echoing their values.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Bucket) == "" {
		return apperr.Configuration("storage bucket is not configured")
	}
	if c.AccessKeyID == "" || c.SecretAccessKey == "" || c.Endpoint == "" {
		return apperr.Configuration("storage credentials are not properly configured")
	}
	return nil
}

// NewClient builds the process-wide S3 client for cfg and wraps it in a Store.
func NewClient(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	region := cfg.Region
	if region == "" {
		region = DefaultRegion
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		o.UsePathStyle = cfg.UsePathStyle
	})
	return New(client, cfg.Bucket, opts...), nil
}

// Option customises a Store.
type Option func(*Store)

// WithClock overrides the clock used for expiry timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}
