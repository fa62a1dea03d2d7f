package upload

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openmarket/assetgate/internal/apperr"
	"github.com/openmarket/assetgate/internal/media"
	"github.com/openmarket/assetgate/internal/storage"
)

type fakeSigner struct {
	mu     sync.Mutex
	puts   []storage.PutRequest
	failOn map[string]bool
}

func (f *fakeSigner) SignPut(_ context.Context, req storage.PutRequest) (storage.SignedRequest, error) {
	f.mu.Lock()
	f.puts = append(f.puts, req)
	f.mu.Unlock()
	if f.failOn[req.Metadata["originalname"]] {
		return storage.SignedRequest{}, errors.New("dial tcp: connection refused (secret=hunter2)")
	}
	return storage.SignedRequest{
		URL:       "https://bucket.example/" + req.Key + "?X-Amz-Signature=abc",
		Method:    http.MethodPut,
		Header:    http.Header{"Content-Type": {req.ContentType}},
		ExpiresAt: time.Unix(0, 0).Add(req.TTL),
	}, nil
}

func (f *fakeSigner) SignGet(context.Context, string, time.Duration) (storage.SignedRequest, error) {
	return storage.SignedRequest{}, errors.New("not used")
}

func (f *fakeSigner) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.puts)
}

func newTestIssuer(signer storage.Signer, opts Options) *Issuer {
	return NewIssuer(slog.New(slog.NewTextHandler(io.Discard, nil)), signer, opts)
}

var uuidSegment = regexp.MustCompile(`[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)

func TestIssueKeyShape(t *testing.T) {
	t.Parallel()
	signer := &fakeSigner{}
	issuer := newTestIssuer(signer, Options{})

	file := media.Descriptor{Name: "photo.png", MimeType: "image/png"}
	first, err := issuer.Issue(context.Background(), file, "listings/42")
	require.NoError(t, err)
	second, err := issuer.Issue(context.Background(), file, "listings/42")
	require.NoError(t, err)

	for _, ticket := range []Ticket{first, second} {
		assert.True(t, strings.HasPrefix(ticket.Key, "listings/42/"), ticket.Key)
		assert.Len(t, uuidSegment.FindAllString(ticket.Key, -1), 1)
		assert.True(t, strings.HasSuffix(ticket.Key, "-photo.png"))
		assert.Contains(t, ticket.URL, ticket.Key)
		assert.Equal(t, "image/png", ticket.Headers["Content-Type"])
	}
	assert.NotEqual(t, first.Key, second.Key)

	require.Equal(t, 2, signer.calls())
	put := signer.puts[0]
	assert.Equal(t, DefaultTTL, put.TTL)
	assert.Equal(t, "image/png", put.ContentType)
	assert.Equal(t, "photo.png", put.Metadata["originalname"])
	assert.Equal(t, "image", put.Metadata["category"])
	assert.NotEmpty(t, put.Metadata["uploadedat"])
}

func TestIssueSanitizesTraversalInName(t *testing.T) {
	t.Parallel()
	issuer := newTestIssuer(&fakeSigner{}, Options{})

	ticket, err := issuer.Issue(context.Background(), media.Descriptor{Name: "a/../../etc.png", MimeType: "image/png"}, "listings/42")
	require.NoError(t, err)
	rest := strings.TrimPrefix(ticket.Key, "listings/42/")
	assert.NotContains(t, rest, "/")
	assert.NotContains(t, rest, `\`)
	assert.NotContains(t, ticket.Key, "..")
}

func TestIssueMetadataUsesSanitizedName(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		want string
	}{
		{name: "отчёт.png", want: "_____.png"},
		{name: "a/../../etc.png", want: "etc.png"},
		{name: "plain name.png", want: "plain_name.png"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()
			signer := &fakeSigner{}
			issuer := newTestIssuer(signer, Options{Now: func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }})

			ticket, err := issuer.Issue(context.Background(), media.Descriptor{Name: tt.name, MimeType: "image/png"}, "listings/42")
			require.NoError(t, err)
			require.Equal(t, 1, signer.calls())
			got := signer.puts[0].Metadata["originalname"]
			assert.Equal(t, tt.want, got)
			for _, r := range got {
				assert.Less(t, r, rune(0x80))
			}
			assert.True(t, strings.HasSuffix(ticket.Key, "-"+tt.want), ticket.Key)

			assert.Equal(t, media.StoredObject{
				Key:          ticket.Key,
				Category:     media.CategoryImage,
				OriginalName: tt.want,
				UploadedAt:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
			}, ticket.Object)
			assert.Equal(t, "2026-01-02T03:04:05Z", signer.puts[0].Metadata["uploadedat"])
		})
	}
}

func TestIssueRejectsBeforeSigning(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name        string
		file        media.Descriptor
		storagePath string
		contains    string
	}{
		{"parent reference", media.Descriptor{Name: "a.png", MimeType: "image/png"}, "../evil", "invalid storagePath"},
		{"embedded parent", media.Descriptor{Name: "a.png", MimeType: "image/png"}, "listings/../x", "invalid storagePath"},
		{"absolute", media.Descriptor{Name: "a.png", MimeType: "image/png"}, "/listings", "invalid storagePath"},
		{"empty path", media.Descriptor{Name: "a.png", MimeType: "image/png"}, "", "storagePath is required"},
		{"missing name", media.Descriptor{MimeType: "image/png"}, "listings/1", "name is required"},
		{"missing type", media.Descriptor{Name: "a.png"}, "listings/1", "type is required"},
		{"unknown type", media.Descriptor{Name: "a.exe", MimeType: "application/x-msdownload"}, "listings/1", "Allowed types: image/jpeg"},
		{"oversized image", media.Descriptor{Name: "a.png", MimeType: "image/png", Size: 6 << 20}, "listings/1", "exceeds"},
		{"negative size", media.Descriptor{Name: "a.png", MimeType: "image/png", Size: -1}, "listings/1", "negative"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			signer := &fakeSigner{}
			issuer := newTestIssuer(signer, Options{})
			_, err := issuer.Issue(context.Background(), tc.file, tc.storagePath)
			require.Error(t, err)
			assert.True(t, apperr.Is(err, apperr.KindValidation), err)
			assert.Contains(t, err.Error(), tc.contains)
			assert.Zero(t, signer.calls())
		})
	}
}

func TestIssueUnknownTypeListsAllowedTypes(t *testing.T) {
	t.Parallel()
	issuer := newTestIssuer(&fakeSigner{}, Options{})
	_, err := issuer.Issue(context.Background(), media.Descriptor{Name: "x.zip", MimeType: "application/zip"}, "listings/1")
	require.Error(t, err)
	for _, mime := range media.NewClassifier(nil).AllowedTypes() {
		assert.Contains(t, err.Error(), mime)
	}
}

func TestIssueStorageRoots(t *testing.T) {
	t.Parallel()
	issuer := newTestIssuer(&fakeSigner{}, Options{Roots: []string{"listings", "profiles"}})
	file := media.Descriptor{Name: "a.pdf", MimeType: "application/pdf"}

	_, err := issuer.Issue(context.Background(), file, "profiles/7")
	require.NoError(t, err)
	_, err = issuer.Issue(context.Background(), file, "secrets/7")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestIssueSignsDeclaredSize(t *testing.T) {
	t.Parallel()
	signer := &fakeSigner{}
	issuer := newTestIssuer(signer, Options{TTL: time.Minute})
	_, err := issuer.Issue(context.Background(), media.Descriptor{Name: "clip.mp4", MimeType: "video/mp4", Size: 50 << 20}, "listings/1")
	require.NoError(t, err)
	require.Equal(t, 1, signer.calls())
	assert.Equal(t, int64(50<<20), signer.puts[0].ContentLength)
	assert.Equal(t, time.Minute, signer.puts[0].TTL)
}

func TestIssueUpstreamFailureIsGeneric(t *testing.T) {
	t.Parallel()
	issuer := newTestIssuer(&fakeSigner{failOn: map[string]bool{"a.png": true}}, Options{})
	_, err := issuer.Issue(context.Background(), media.Descriptor{Name: "a.png", MimeType: "image/png"}, "listings/1")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindUpstream))
	assert.Equal(t, "failed to generate upload URL", apperr.PublicMessage(err, ""))
	assert.NotContains(t, apperr.PublicMessage(err, ""), "hunter2")
}

func TestIssueUnconfiguredStorage(t *testing.T) {
	t.Parallel()
	issuer := newTestIssuer(storage.Unavailable(apperr.Configuration("storage bucket is not configured")), Options{})
	_, err := issuer.Issue(context.Background(), media.Descriptor{Name: "a.png", MimeType: "image/png"}, "listings/1")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindConfiguration))
	assert.Equal(t, "storage bucket is not configured", apperr.PublicMessage(err, ""))
}

func TestIssueBatchPartialFailure(t *testing.T) {
	t.Parallel()
	signer := &fakeSigner{failOn: map[string]bool{"broken.png": true}}
	issuer := newTestIssuer(signer, Options{Concurrency: 2})

	files := []media.Descriptor{
		{Name: "one.png", MimeType: "image/png"},
		{Name: "broken.png", MimeType: "image/png"},
		{Name: "bad.exe", MimeType: "application/x-msdownload"},
		{Name: "deed.pdf", MimeType: "application/pdf"},
	}
	results, err := issuer.IssueBatch(context.Background(), files, "listings/42")
	require.NoError(t, err)
	require.Len(t, results, len(files))

	for idx, r := range results {
		assert.Equal(t, files[idx], r.File)
	}
	require.NotNil(t, results[0].Ticket)
	assert.True(t, apperr.Is(results[1].Err, apperr.KindUpstream))
	assert.True(t, apperr.Is(results[2].Err, apperr.KindValidation))
	require.NotNil(t, results[3].Ticket)
	assert.True(t, strings.HasSuffix(results[3].Ticket.Key, "-deed.pdf"))
	assert.False(t, AllFailed(results))
	assert.Equal(t, 3, signer.calls())
}

func TestIssueBatchRequestValidation(t *testing.T) {
	t.Parallel()
	signer := &fakeSigner{}
	issuer := newTestIssuer(signer, Options{})

	_, err := issuer.IssueBatch(context.Background(), nil, "listings/1")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = issuer.IssueBatch(context.Background(), []media.Descriptor{{Name: "a.png", MimeType: "image/png"}}, "../evil")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Zero(t, signer.calls())
}

func TestAllFailed(t *testing.T) {
	t.Parallel()
	fail := errors.New("x")
	assert.False(t, AllFailed(nil))
	assert.True(t, AllFailed([]Result{{Err: fail}, {Err: fail}}))
	assert.False(t, AllFailed([]Result{{Err: fail}, {Ticket: &Ticket{}}}))
}
