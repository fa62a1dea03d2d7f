// Package s3 signs object requests against an S3-compatible bucket using the
// AWS SDK presigner. Signing is local; no request reaches the bucket.
package s3

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/openmarket/assetgate/internal/storage"
)

var tracer = otel.Tracer("github.com/openmarket/assetgate/internal/storage/s3")

// Store implements storage.Signer.
type Store struct {
	presigner *s3.PresignClient
	bucket    string
	now       func() time.Time
}

var _ storage.Signer = (*Store)(nil)

// New wraps an existing client.
func New(client *s3.Client, bucket string, opts ...Option) *Store {
	s := &Store{
		presigner: s3.NewPresignClient(client),
		bucket:    bucket,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Bucket returns the bucket the store signs for.
func (s *Store) Bucket() string { return s.bucket }

// SignPut presigns a PutObject for req.Key with its content type and metadata.
func (s *Store) SignPut(ctx context.Context, req storage.PutRequest) (storage.SignedRequest, error) {
	ctx, span := tracer.Start(ctx, "s3.SignPut")
	defer span.End()
	span.SetAttributes(attribute.String("storage.key", req.Key))

	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(req.Key),
		ContentType: aws.String(req.ContentType),
		Metadata:    req.Metadata,
	}
	if req.ContentLength > 0 {
		input.ContentLength = aws.Int64(req.ContentLength)
	}
	presigned, err := s.presigner.PresignPutObject(ctx, input, s3.WithPresignExpires(req.TTL))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "presign put")
		return storage.SignedRequest{}, fmt.Errorf("presign put %s: %w", req.Key, err)
	}
	return s.signed(presigned, req.TTL), nil
}

// SignGet presigns a GetObject for key.
func (s *Store) SignGet(ctx context.Context, key string, ttl time.Duration) (storage.SignedRequest, error) {
	ctx, span := tracer.Start(ctx, "s3.SignGet")
	defer span.End()
	span.SetAttributes(attribute.String("storage.key", key))

	presigned, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "presign get")
		return storage.SignedRequest{}, fmt.Errorf("presign get %s: %w", key, err)
	}
	return s.signed(presigned, ttl), nil
}

func (s *Store) signed(presigned *v4.PresignedHTTPRequest, ttl time.Duration) storage.SignedRequest {
	header := http.Header{}
	for name, values := range presigned.SignedHeader {
		if http.CanonicalHeaderKey(name) == "Host" {
			continue
		}
		header[http.CanonicalHeaderKey(name)] = append([]string(nil), values...)
	}
	return storage.SignedRequest{
		URL:       presigned.URL,
		Method:    presigned.Method,
		Header:    header,
		ExpiresAt: s.now().Add(ttl),
	}
}
