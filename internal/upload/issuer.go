// Package upload issues write-scoped, short-lived signed URLs that let a seller's
// client put files straight into blob storage.
package upload

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/openmarket/assetgate/internal/apperr"
	"github.com/openmarket/assetgate/internal/media"
	"github.com/openmarket/assetgate/internal/metrics"
	"github.com/openmarket/assetgate/internal/storage"
)

const (
	DefaultTTL         = 5 * time.Minute
	DefaultConcurrency = 8
)

// Ticket is the credential handed back for one file.
type Ticket struct {
	URL string `json:"url"`
	Key string `json:"key"`
	// Headers must be sent with the PUT for the signature to hold.
	Headers   map[string]string `json:"headers,omitempty"`
	ExpiresAt time.Time         `json:"expiresAt"`
	// Object describes what the upload will create. It is kept server side.
	Object media.StoredObject `json:"-"`
}

// Result is the outcome for one file of a batch. Exactly one of Ticket and Err is set.
type Result struct {
	File   media.Descriptor
	Ticket *Ticket
	Err    error
}

// Options tunes an Issuer. Zero values select defaults.
type Options struct {
	TTL         time.Duration
	MaxSizes    map[media.Category]int64
	Roots       []string
	Concurrency int
	Classifier  *media.Classifier
	Now         func() time.Time
}

type Issuer struct {
	signer      storage.Signer
	classifier  *media.Classifier
	ttl         time.Duration
	maxSizes    map[media.Category]int64
	roots       []string
	concurrency int
	now         func() time.Time
	logger      *slog.Logger
}

func NewIssuer(log *slog.Logger, signer storage.Signer, opts Options) *Issuer {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.MaxSizes == nil {
		opts.MaxSizes = media.DefaultMaxSizes
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Classifier == nil {
		opts.Classifier = media.NewClassifier(nil)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Issuer{
		signer:      signer,
		classifier:  opts.Classifier,
		ttl:         opts.TTL,
		maxSizes:    opts.MaxSizes,
		roots:       append([]string(nil), opts.Roots...),
		concurrency: opts.Concurrency,
		now:         opts.Now,
		logger:      log.With(slog.String("service", "upload")),
	}
}

// Issue signs an upload for a single file under storagePath.
func (i *Issuer) Issue(ctx context.Context, file media.Descriptor, storagePath string) (Ticket, error) {
	if err := i.validatePath(storagePath); err != nil {
		return Ticket{}, err
	}
	return i.issue(ctx, file, storagePath)
}

// IssueBatch validates the request as a whole, then issues every file
// concurrently. A failure for one file never affects the others; results are
// returned in input order.
func (i *Issuer) IssueBatch(ctx context.Context, files []media.Descriptor, storagePath string) ([]Result, error) {
	if err := i.validatePath(storagePath); err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, apperr.Validation("files array is required")
	}

	results := make([]Result, len(files))
	var g errgroup.Group
	g.SetLimit(i.concurrency)
	for idx, file := range files {
		g.Go(func() error {
			ticket, err := i.issue(ctx, file, storagePath)
			results[idx] = Result{File: file, Err: err}
			if err == nil {
				results[idx].Ticket = &ticket
			}
			return nil
		})
	}
	_ = g.Wait()
	return results, nil
}

func (i *Issuer) validatePath(storagePath string) error {
	if err := media.ValidateStoragePath(storagePath, i.roots); err != nil {
		metrics.CredentialsIssued.WithLabelValues(metrics.KindUpload, metrics.ResultRejected).Inc()
		return apperr.Validation("%s", err.Error())
	}
	return nil
}

func (i *Issuer) issue(ctx context.Context, file media.Descriptor, storagePath string) (Ticket, error) {
	category, err := i.validate(file)
	if err != nil {
		metrics.CredentialsIssued.WithLabelValues(metrics.KindUpload, metrics.ResultRejected).Inc()
		return Ticket{}, err
	}

	object := media.StoredObject{
		Key:          media.NewObjectKey(storagePath, file.Name),
		Category:     category,
		OriginalName: media.SanitizeFilename(file.Name),
		UploadedAt:   i.now().UTC(),
	}
	key := object.Key
	signed, err := i.signer.SignPut(ctx, storage.PutRequest{
		Key:           key,
		ContentType:   file.MimeType,
		ContentLength: file.Size,
		Metadata: map[string]string{
			"originalname": object.OriginalName,
			"category":     string(category),
			"uploadedat":   object.UploadedAt.Format(time.RFC3339),
		},
		TTL: i.ttl,
	})
	if err != nil {
		metrics.CredentialsIssued.WithLabelValues(metrics.KindUpload, metrics.ResultFailed).Inc()
		i.logger.Error("sign upload failed",
			slog.String("file", file.Name),
			slog.String("storage_path", storagePath),
			slog.Any("error", err),
		)
		if apperr.Is(err, apperr.KindConfiguration) {
			return Ticket{}, err
		}
		return Ticket{}, apperr.Upstream("failed to generate upload URL", err)
	}
	metrics.CredentialsIssued.WithLabelValues(metrics.KindUpload, metrics.ResultOK).Inc()

	ticket := Ticket{URL: signed.URL, Key: key, ExpiresAt: signed.ExpiresAt, Object: object}
	if len(signed.Header) > 0 {
		ticket.Headers = make(map[string]string, len(signed.Header))
		for name, values := range signed.Header {
			if len(values) > 0 {
				ticket.Headers[name] = strings.Join(values, ",")
			}
		}
	}
	return ticket, nil
}

func (i *Issuer) validate(file media.Descriptor) (media.Category, error) {
	if strings.TrimSpace(file.Name) == "" {
		return "", apperr.Validation("file name is required")
	}
	if strings.TrimSpace(file.MimeType) == "" {
		return "", apperr.Validation("file type is required for %s", file.Name)
	}
	category, ok := i.classifier.Category(file.MimeType)
	if !ok {
		return "", apperr.Validation("file type %s is not allowed. Allowed types: %s", file.MimeType, i.classifier.AllowedList())
	}
	if file.Size < 0 {
		return "", apperr.Validation("file size for %s must not be negative", file.Name)
	}
	if limit := i.maxSizes[category]; limit > 0 && file.Size > limit {
		return "", apperr.Validation("file %s exceeds the %d byte limit for %s files", file.Name, limit, category)
	}
	return category, nil
}

// AllFailed reports whether no file of a batch was issued.
func AllFailed(results []Result) bool {
	for _, r := range results {
		if r.Err == nil {
			return false
		}
	}
	return len(results) > 0
}
