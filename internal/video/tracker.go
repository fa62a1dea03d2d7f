// Package video tracks direct uploads to the hosted video platform until they
// become playable assets. The platform is the source of truth; nothing here is
// stored between calls.
package video

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/openmarket/assetgate/internal/apperr"
	"github.com/openmarket/assetgate/internal/metrics"
)

// Session is a freshly opened upload session.
type Session struct {
	UploadEndpoint string `json:"url"`
	SessionID      string `json:"id"`
}

// Asset is the resolved view of one upload session.
type Asset struct {
	UploadID   string `json:"upload_id,omitempty"`
	AssetID    string `json:"asset_id,omitempty"`
	PlaybackID string `json:"playback_id,omitempty"`
	State      State  `json:"state"`
}

type Tracker struct {
	platform   Platform
	corsOrigin string
	policy     RetryPolicy
	logger     *slog.Logger
}

func NewTracker(log *slog.Logger, platform Platform, corsOrigin string, policy RetryPolicy) *Tracker {
	return &Tracker{
		platform:   platform,
		corsOrigin: corsOrigin,
		policy:     policy.normalized(),
		logger:     log.With(slog.String("service", "video")),
	}
}

// CreateSession opens a direct upload whose asset will only play with signed tokens.
func (t *Tracker) CreateSession(ctx context.Context) (Session, error) {
	upload, err := t.platform.CreateUpload(ctx, UploadRequest{
		CORSOrigin:     t.corsOrigin,
		PlaybackPolicy: PlaybackPolicySigned,
	})
	if err != nil {
		if apperr.Is(err, apperr.KindConfiguration) {
			return Session{}, err
		}
		t.logger.Error("create upload failed", slog.Any("error", err))
		return Session{}, apperr.Upstream("failed to create video upload", err)
	}
	return Session{UploadEndpoint: upload.URL, SessionID: upload.ID}, nil
}

// ResolveAsset reports the current state of sessionID. It is safe to call repeatedly.
func (t *Tracker) ResolveAsset(ctx context.Context, sessionID string) (Asset, error) {
	if strings.TrimSpace(sessionID) == "" {
		return Asset{}, apperr.Validation("uploadId is required")
	}
	upload, err := t.platform.GetUpload(ctx, sessionID)
	if err != nil {
		return Asset{}, t.upstream("get upload failed", sessionID, err)
	}
	if upload.AssetID == "" {
		return Asset{UploadID: sessionID, State: DeriveState(upload, nil)}, nil
	}
	asset, err := t.platform.GetAsset(ctx, upload.AssetID)
	if err != nil {
		return Asset{}, t.upstream("get asset failed", sessionID, err)
	}
	return Asset{
		UploadID:   sessionID,
		AssetID:    asset.ID,
		PlaybackID: primaryPlaybackID(asset.PlaybackIDs),
		State:      DeriveState(upload, &asset),
	}, nil
}

// WaitReady polls ResolveAsset under the retry policy until the asset is ready.
// Lookup failures count against the budget; an exhausted budget is a timeout.
func (t *Tracker) WaitReady(ctx context.Context, sessionID string) (Asset, error) {
	if strings.TrimSpace(sessionID) == "" {
		return Asset{}, apperr.Validation("uploadId is required")
	}
	var (
		last    = Asset{UploadID: sessionID, State: StateUploading}
		lastErr error
	)
	err := t.policy.Run(ctx, func(ctx context.Context, attempt int) (bool, error) {
		metrics.VideoPollAttempts.Inc()
		asset, err := t.ResolveAsset(ctx, sessionID)
		if err != nil {
			if apperr.Is(err, apperr.KindConfiguration) || apperr.Is(err, apperr.KindValidation) {
				return false, err
			}
			lastErr = err
			t.logger.Warn("poll asset failed", slog.String("upload_id", sessionID), slog.Int("attempt", attempt), slog.Any("error", err))
			return false, nil
		}
		last = asset
		switch asset.State {
		case StateReady:
			return true, nil
		case StateErrored:
			return false, apperr.Upstream("video processing failed", nil)
		}
		return false, nil
	})
	switch {
	case err == nil:
		return last, nil
	case errors.Is(err, ErrAttemptsExhausted):
		metrics.VideoPollTimeouts.Inc()
		if next, terr := Transition(last.State, EventPollExhausted); terr == nil {
			last.State = next
		}
		if lastErr == nil {
			lastErr = err
		}
		return last, apperr.Timeout("video processing timeout", lastErr)
	default:
		return last, err
	}
}

// DeleteAsset removes assetID from the platform. An already absent asset is not an error.
func (t *Tracker) DeleteAsset(ctx context.Context, assetID string) error {
	if strings.TrimSpace(assetID) == "" {
		return apperr.Validation("assetId is required")
	}
	err := t.platform.DeleteAsset(ctx, assetID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound):
		t.logger.Info("asset already absent", slog.String("asset_id", assetID))
		return nil
	case apperr.Is(err, apperr.KindConfiguration):
		return err
	default:
		t.logger.Error("delete asset failed", slog.String("asset_id", assetID), slog.Any("error", err))
		return apperr.Upstream("failed to delete video asset", err)
	}
}

func (t *Tracker) upstream(msg, sessionID string, err error) error {
	if apperr.Is(err, apperr.KindConfiguration) {
		return err
	}
	if errors.Is(err, ErrNotFound) {
		return apperr.Validation("video upload %s not found", sessionID)
	}
	t.logger.Error(msg, slog.String("upload_id", sessionID), slog.Any("error", err))
	return apperr.Upstream("failed to resolve video asset", err)
}

// primaryPlaybackID prefers a signed-policy playback id.
func primaryPlaybackID(ids []PlaybackID) string {
	for _, id := range ids {
		if id.Policy == PlaybackPolicySigned {
			return id.ID
		}
	}
	if len(ids) > 0 {
		return ids[0].ID
	}
	return ""
}
