package transaction

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/openmarket/assetgate/internal/apperr"
	"github.com/openmarket/assetgate/internal/commerce"
	"github.com/openmarket/assetgate/internal/metrics"
)

const privateAssetsField = "digitalAssets"

// Request is a privileged initiation as posted by the client.
type Request struct {
	IsSpeculative bool           `json:"isSpeculative"`
	OrderData     map[string]any `json:"orderData,omitempty"`
	BodyParams    map[string]any `json:"bodyParams"`
	QueryParams   map[string]any `json:"queryParams,omitempty"`
}

// Initiator fetches the listing, secures its private assets and initiates the
// transaction on the ledger.
type Initiator struct {
	ledger commerce.Ledger
	// disclose limits which transitions carry assets; empty means all of them.
	disclose map[string]struct{}
	logger   *slog.Logger
}

func NewInitiator(log *slog.Logger, ledger commerce.Ledger, discloseTransitions []string) *Initiator {
	disclose := make(map[string]struct{}, len(discloseTransitions))
	for _, name := range discloseTransitions {
		if name = strings.TrimSpace(name); name != "" {
			disclose[name] = struct{}{}
		}
	}
	return &Initiator{
		ledger:   ledger,
		disclose: disclose,
		logger:   log.With(slog.String("service", "transaction")),
	}
}

// Discloses reports whether a non-speculative initiation through transition
// attaches the secured asset list.
func (i *Initiator) Discloses(transition string) bool {
	if len(i.disclose) == 0 {
		return true
	}
	_, ok := i.disclose[transition]
	return ok
}

func (i *Initiator) Initiate(ctx context.Context, req Request) (commerce.Response, error) {
	if req.BodyParams == nil {
		return commerce.Response{}, apperr.Validation("bodyParams is required")
	}
	body := cloneMap(req.BodyParams)
	params, _ := body["params"].(map[string]any)
	if params == nil {
		params = map[string]any{}
		body["params"] = params
	}
	listingID := listingIDOf(params["listingId"])
	if listingID == "" {
		return commerce.Response{}, apperr.Validation("listingId is required")
	}
	transition, _ := body["transition"].(string)
	// Only the list built from the listing's private data may reach the ledger.
	if protected, ok := params["protectedData"].(map[string]any); ok {
		delete(protected, privateAssetsField)
	}

	var (
		listing commerce.Listing
		private commerce.Listing
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		listing, err = i.ledger.ShowListing(gctx, listingID)
		if err != nil {
			return fmt.Errorf("show listing: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		private, err = i.ledger.ShowListingPrivate(gctx, listingID)
		if err != nil {
			return fmt.Errorf("show private listing: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return commerce.Response{}, i.ledgerError(listingID, err)
	}

	entries, err := privateAssets(private)
	if err != nil {
		i.logger.Error("decode listing assets failed", slog.String("listing_id", listingID), slog.Any("error", err))
		return commerce.Response{}, apperr.Upstream("failed to initiate transaction", err)
	}

	var secured []SecuredAsset
	if i.Discloses(transition) {
		secured = Secure(entries, req.IsSpeculative)
	}
	if secured != nil {
		protected, _ := params["protectedData"].(map[string]any)
		if protected == nil {
			protected = map[string]any{}
			params["protectedData"] = protected
		}
		protected[privateAssetsField] = secured
	}

	out := commerce.InitiateRequest{Body: body, Query: queryValues(req.QueryParams)}
	mode := "initiate"
	var resp commerce.Response
	if req.IsSpeculative {
		mode = "speculative"
		resp, err = i.ledger.InitiateSpeculative(ctx, out)
	} else {
		resp, err = i.ledger.Initiate(ctx, out)
	}
	if err != nil {
		return commerce.Response{}, i.ledgerError(listingID, err)
	}
	metrics.TransactionsInitiated.WithLabelValues(mode, strconv.FormatBool(secured != nil)).Inc()
	i.logger.Info("transaction initiated",
		slog.String("listing_id", listing.ID),
		slog.String("transition", transition),
		slog.Bool("speculative", req.IsSpeculative),
		slog.Int("secured_assets", len(secured)),
	)
	return resp, nil
}

func (i *Initiator) ledgerError(listingID string, err error) error {
	if apperr.Is(err, apperr.KindConfiguration) {
		return err
	}
	i.logger.Error("ledger call failed", slog.String("listing_id", listingID), slog.Any("error", err))
	return apperr.Upstream("failed to initiate transaction", err)
}

func privateAssets(listing commerce.Listing) ([]AssetEntry, error) {
	raw, ok := listing.Attributes.PrivateData[privateAssetsField]
	if !ok || len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var entries []AssetEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// listingIDOf accepts a plain id or an {"uuid": id} object.
func listingIDOf(v any) string {
	switch id := v.(type) {
	case string:
		return strings.TrimSpace(id)
	case map[string]any:
		s, _ := id["uuid"].(string)
		return strings.TrimSpace(s)
	}
	return ""
}

func queryValues(in map[string]any) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		switch value := v.(type) {
		case string:
			out[k] = value
		case []any:
			parts := make([]string, 0, len(value))
			for _, p := range value {
				parts = append(parts, fmt.Sprint(p))
			}
			out[k] = strings.Join(parts, ",")
		case nil:
		default:
			out[k] = fmt.Sprint(value)
		}
	}
	return out
}

func cloneMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch value := v.(type) {
	case map[string]any:
		return cloneMap(value)
	case []any:
		out := make([]any, len(value))
		for i, item := range value {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return value
	}
}
