package commerce

import (
	"context"
	"encoding/json"
	"fmt"
)

// Listing is the subset of a marketplace listing this service reads.
type Listing struct {
	ID         string            `json:"id"`
	Type       string            `json:"type,omitempty"`
	Attributes ListingAttributes `json:"attributes"`
}

type ListingAttributes struct {
	Title      string                     `json:"title,omitempty"`
	State      string                     `json:"state,omitempty"`
	PublicData map[string]json.RawMessage `json:"publicData,omitempty"`
	// PrivateData is only populated by ShowListingPrivate.
	PrivateData map[string]json.RawMessage `json:"privateData,omitempty"`
}

// InitiateRequest is forwarded to the ledger unchanged apart from the fields
// the caller of Initiate sets on Body.
type InitiateRequest struct {
	Body  map[string]any
	Query map[string]string
}

// Response is the ledger's reply, passed through to the client.
type Response struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

// StatusError is a non-2xx reply from the ledger.
type StatusError struct {
	Op     string
	Status int
	Body   []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("commerce %s: status %d", e.Op, e.Status)
}

// Ledger is the marketplace's listing and transaction API. User-scoped calls
// act as the user whose token is carried in ctx.
type Ledger interface {
	ShowListing(ctx context.Context, id string) (Listing, error)
	ShowListingPrivate(ctx context.Context, id string) (Listing, error)
	Initiate(ctx context.Context, req InitiateRequest) (Response, error)
	InitiateSpeculative(ctx context.Context, req InitiateRequest) (Response, error)
}

type userTokenKey struct{}

// WithUserToken attaches the caller's ledger access token to ctx.
func WithUserToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, userTokenKey{}, token)
}

// UserToken returns the token set by WithUserToken.
func UserToken(ctx context.Context) string {
	token, _ := ctx.Value(userTokenKey{}).(string)
	return token
}
