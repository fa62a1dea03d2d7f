package transaction

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openmarket/assetgate/internal/apperr"
	"github.com/openmarket/assetgate/internal/commerce"
)

func deedEntries() []AssetEntry {
	return []AssetEntry{
		{Name: "deed.pdf", Type: "document", File: &FileRef{URL: "https://delivery.example/deed", Key: "listings/42/xyz-deed.pdf", Size: 1024, Type: "application/pdf"}},
		{Name: "tour.mp4", Type: "video", File: &FileRef{AssetID: "as1", PlaybackID: "pb1", UploadID: "up1"}},
	}
}

func TestProjectDropsIdentifiers(t *testing.T) {
	t.Parallel()
	secured := Project(deedEntries())
	assert.Equal(t, []SecuredAsset{
		{URL: "https://delivery.example/deed", Name: "deed.pdf", Type: "document"},
		{PlaybackID: "pb1", Name: "tour.mp4", Type: "video"},
	}, secured)

	raw, err := json.Marshal(secured)
	require.NoError(t, err)
	for _, leaked := range []string{"key", "listings/42", "asset_id", "as1", "upload_id", "up1"} {
		assert.NotContains(t, string(raw), leaked)
	}
}

func TestProjectIsPointInTime(t *testing.T) {
	t.Parallel()
	entries := deedEntries()
	secured := Project(entries)
	entries[0].Name = "renamed.pdf"
	entries[0].File.URL = "https://delivery.example/other"
	assert.Equal(t, "deed.pdf", secured[0].Name)
	assert.Equal(t, "https://delivery.example/deed", secured[0].URL)
}

func TestSecure(t *testing.T) {
	t.Parallel()
	assert.Nil(t, Secure(deedEntries(), true))
	assert.Nil(t, Secure(nil, false))
	assert.Nil(t, Secure([]AssetEntry{}, false))
	assert.Len(t, Secure(deedEntries(), false), 2)
	assert.Equal(t, []SecuredAsset{{Name: "x", Type: "document"}}, Secure([]AssetEntry{{Name: "x", Type: "document"}}, false))
}

type fakeLedger struct {
	mu          sync.Mutex
	private     string
	showErr     error
	initiated   []commerce.InitiateRequest
	speculative []commerce.InitiateRequest
}

func (f *fakeLedger) ShowListing(_ context.Context, id string) (commerce.Listing, error) {
	if f.showErr != nil {
		return commerce.Listing{}, f.showErr
	}
	return commerce.Listing{ID: id}, nil
}

func (f *fakeLedger) ShowListingPrivate(_ context.Context, id string) (commerce.Listing, error) {
	listing := commerce.Listing{ID: id}
	if f.private != "" {
		listing.Attributes.PrivateData = map[string]json.RawMessage{"digitalAssets": json.RawMessage(f.private)}
	}
	return listing, nil
}

func (f *fakeLedger) Initiate(_ context.Context, req commerce.InitiateRequest) (commerce.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initiated = append(f.initiated, req)
	return commerce.Response{Status: http.StatusOK, Data: json.RawMessage(`{"id":"tx-1"}`)}, nil
}

func (f *fakeLedger) InitiateSpeculative(_ context.Context, req commerce.InitiateRequest) (commerce.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.speculative = append(f.speculative, req)
	return commerce.Response{Status: http.StatusOK, Data: json.RawMessage(`{"id":"tx-speculative"}`)}, nil
}

const deedAssets = `[{"name":"deed.pdf","type":"document","file":{"url":"https://delivery.example/deed","key":"listings/42/xyz-deed.pdf"}}]`

func newRequest(speculative bool) Request {
	return Request{
		IsSpeculative: speculative,
		BodyParams: map[string]any{
			"transition":   "transition/request-payment",
			"processAlias": "default-purchase/release-1",
			"params": map[string]any{
				"listingId":     "listing-42",
				"protectedData": map[string]any{"note": "hello"},
			},
		},
		QueryParams: map[string]any{"expand": true, "include": []any{"booking", "provider"}},
	}
}

func newTestInitiator(ledger commerce.Ledger, disclose []string) *Initiator {
	return NewInitiator(slog.New(slog.NewTextHandler(io.Discard, nil)), ledger, disclose)
}

func protectedAssets(t *testing.T, req commerce.InitiateRequest) (any, bool) {
	t.Helper()
	params, ok := req.Body["params"].(map[string]any)
	require.True(t, ok)
	protected, ok := params["protectedData"].(map[string]any)
	require.True(t, ok)
	assets, ok := protected["digitalAssets"]
	return assets, ok
}

func TestInitiateAttachesSecuredAssets(t *testing.T) {
	t.Parallel()
	ledger := &fakeLedger{private: deedAssets}
	req := newRequest(false)

	resp, err := newTestInitiator(ledger, nil).Initiate(context.Background(), req)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"tx-1"}`, string(resp.Data))
	require.Len(t, ledger.initiated, 1)
	assert.Empty(t, ledger.speculative)

	sent := ledger.initiated[0]
	assets, ok := protectedAssets(t, sent)
	require.True(t, ok)
	raw, err := json.Marshal(assets)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"name":"deed.pdf","type":"document","url":"https://delivery.example/deed"}]`, string(raw))
	assert.NotContains(t, string(raw), "key")

	params := sent.Body["params"].(map[string]any)
	assert.Equal(t, "hello", params["protectedData"].(map[string]any)["note"])
	assert.Equal(t, "true", sent.Query["expand"])
	assert.Equal(t, "booking,provider", sent.Query["include"])

	original := req.BodyParams["params"].(map[string]any)["protectedData"].(map[string]any)
	assert.NotContains(t, original, "digitalAssets")
}

func TestInitiateSpeculativeNeverAttaches(t *testing.T) {
	t.Parallel()
	ledger := &fakeLedger{private: deedAssets}

	_, err := newTestInitiator(ledger, nil).Initiate(context.Background(), newRequest(true))
	require.NoError(t, err)
	require.Len(t, ledger.speculative, 1)
	assert.Empty(t, ledger.initiated)
	_, ok := protectedAssets(t, ledger.speculative[0])
	assert.False(t, ok)
}

func TestInitiateWithoutAssets(t *testing.T) {
	t.Parallel()
	ledger := &fakeLedger{}
	req := newRequest(false)
	delete(req.BodyParams["params"].(map[string]any), "protectedData")

	_, err := newTestInitiator(ledger, nil).Initiate(context.Background(), req)
	require.NoError(t, err)
	params := ledger.initiated[0].Body["params"].(map[string]any)
	assert.NotContains(t, params, "protectedData")
}

func TestInitiateDiscloseTransitions(t *testing.T) {
	t.Parallel()
	ledger := &fakeLedger{private: deedAssets}
	initiator := newTestInitiator(ledger, []string{"transition/accept"})
	assert.True(t, initiator.Discloses("transition/accept"))
	assert.False(t, initiator.Discloses("transition/request-payment"))

	_, err := initiator.Initiate(context.Background(), newRequest(false))
	require.NoError(t, err)
	_, ok := protectedAssets(t, ledger.initiated[0])
	assert.False(t, ok)
}

func TestInitiateListingIDForms(t *testing.T) {
	t.Parallel()
	ledger := &fakeLedger{}
	req := newRequest(false)
	req.BodyParams["params"].(map[string]any)["listingId"] = map[string]any{"uuid": "listing-7"}
	_, err := newTestInitiator(ledger, nil).Initiate(context.Background(), req)
	require.NoError(t, err)

	req.BodyParams["params"].(map[string]any)["listingId"] = ""
	_, err = newTestInitiator(ledger, nil).Initiate(context.Background(), req)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = newTestInitiator(ledger, nil).Initiate(context.Background(), Request{})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestInitiateLedgerFailure(t *testing.T) {
	t.Parallel()
	statusErr := &commerce.StatusError{Op: "show listing", Status: http.StatusNotFound}
	ledger := &fakeLedger{showErr: statusErr}

	_, err := newTestInitiator(ledger, nil).Initiate(context.Background(), newRequest(false))
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindUpstream))
	var got *commerce.StatusError
	require.True(t, errors.As(err, &got))
	assert.Equal(t, http.StatusNotFound, got.Status)
	assert.Empty(t, ledger.initiated)
}

func TestInitiateMalformedAssets(t *testing.T) {
	t.Parallel()
	ledger := &fakeLedger{private: `{"not":"a list"}`}
	_, err := newTestInitiator(ledger, nil).Initiate(context.Background(), newRequest(false))
	assert.True(t, apperr.Is(err, apperr.KindUpstream))
	assert.Empty(t, ledger.initiated)
}

func withForgedAssets(req Request) Request {
	protected := req.BodyParams["params"].(map[string]any)["protectedData"].(map[string]any)
	protected["digitalAssets"] = []any{map[string]any{
		"name": "x", "type": "document", "url": "https://evil.example/x", "key": "listings/42/k",
	}}
	return req
}

func TestInitiateDropsClientSuppliedAssets(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name        string
		private     string
		speculative bool
		disclose    []string
	}{
		{name: "speculative", private: deedAssets, speculative: true},
		{name: "listing without assets"},
		{name: "speculative without assets", speculative: true},
		{name: "transition not disclosed", private: deedAssets, disclose: []string{"transition/accept"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ledger := &fakeLedger{private: tt.private}
			req := withForgedAssets(newRequest(tt.speculative))

			_, err := newTestInitiator(ledger, tt.disclose).Initiate(context.Background(), req)
			require.NoError(t, err)
			sent := append(ledger.initiated, ledger.speculative...)
			require.Len(t, sent, 1)
			_, ok := protectedAssets(t, sent[0])
			assert.False(t, ok)

			params := sent[0].Body["params"].(map[string]any)
			assert.Equal(t, "hello", params["protectedData"].(map[string]any)["note"])
			original := req.BodyParams["params"].(map[string]any)["protectedData"].(map[string]any)
			assert.Contains(t, original, "digitalAssets")
		})
	}
}

func TestInitiateReplacesClientSuppliedAssets(t *testing.T) {
	t.Parallel()
	ledger := &fakeLedger{private: deedAssets}
	_, err := newTestInitiator(ledger, nil).Initiate(context.Background(), withForgedAssets(newRequest(false)))
	require.NoError(t, err)

	assets, ok := protectedAssets(t, ledger.initiated[0])
	require.True(t, ok)
	raw, err := json.Marshal(assets)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"name":"deed.pdf","type":"document","url":"https://delivery.example/deed"}]`, string(raw))
	assert.NotContains(t, string(raw), "evil")
}
