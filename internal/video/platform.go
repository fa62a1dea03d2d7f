package video

import (
	"context"
	"errors"
)

// ErrNotFound is returned by a Platform for an unknown upload or asset.
var ErrNotFound = errors.New("video: not found")

// PlaybackPolicySigned requires a signed token for every view.
const PlaybackPolicySigned = "signed"

// UploadRequest opens a direct-upload session.
type UploadRequest struct {
	CORSOrigin     string
	PlaybackPolicy string
}

// Upload is a direct-upload session. AssetID is empty until the platform has
// received the file.
type Upload struct {
	ID      string
	URL     string
	Status  string
	AssetID string
}

type PlaybackID struct {
	ID     string
	Policy string
}

// PlatformAsset is an ingested asset as the platform reports it.
type PlatformAsset struct {
	ID            string
	Status        string
	ProgressState string
	PlaybackIDs   []PlaybackID
}

// Platform is the hosted video service. Implementations must be safe for concurrent use.
type Platform interface {
	CreateUpload(ctx context.Context, req UploadRequest) (Upload, error)
	GetUpload(ctx context.Context, uploadID string) (Upload, error)
	GetAsset(ctx context.Context, assetID string) (PlatformAsset, error)
	DeleteAsset(ctx context.Context, assetID string) error
}
