// Package storage defines the Signer interface for blob storage backends. The
// pipeline never reads or writes object bytes itself; it only hands out signed
// requests that let clients talk to the bucket directly.
package storage

import (
	"context"
	"net/http"
	"time"
)

// PutRequest describes one object a client may write.
type PutRequest struct {
	Key         string
	ContentType string
	// ContentLength is signed into the request when positive.
	ContentLength int64
	Metadata      map[string]string
	TTL           time.Duration
}

// SignedRequest is a time-limited credential for a single object operation.
type SignedRequest struct {
	URL    string
	Method string
	// Header holds headers the client must send verbatim for the signature to hold.
	Header    http.Header
	ExpiresAt time.Time
}

// Signer issues signed object requests.
type Signer interface {
	// SignPut returns a write-scoped credential for exactly req.Key.
	SignPut(ctx context.Context, req PutRequest) (SignedRequest, error)
	// SignGet returns a read-scoped credential for key valid for ttl.
	SignGet(ctx context.Context, key string, ttl time.Duration) (SignedRequest, error)
}

type unavailable struct{ err error }

// Unavailable returns a Signer that fails every request with err. It stands in
// for a backend whose configuration is incomplete so the process can still start.
func Unavailable(err error) Signer { return unavailable{err: err} }

func (u unavailable) SignPut(context.Context, PutRequest) (SignedRequest, error) {
	return SignedRequest{}, u.err
}

func (u unavailable) SignGet(context.Context, string, time.Duration) (SignedRequest, error) {
	return SignedRequest{}, u.err
}
