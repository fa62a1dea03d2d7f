package modules

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/openmarket/assetgate/internal/boot"
	"github.com/openmarket/assetgate/internal/commerce"
	"github.com/openmarket/assetgate/internal/config"
	"github.com/openmarket/assetgate/internal/delivery"
	"github.com/openmarket/assetgate/internal/playback"
	"github.com/openmarket/assetgate/internal/storage"
	"github.com/openmarket/assetgate/internal/transaction"
	"github.com/openmarket/assetgate/internal/upload"
	"github.com/openmarket/assetgate/internal/video"
)

var DomainModule = fx.Module(
	"domain",
	fx.Provide(
		provideUploadIssuer,
		provideDeliveryIssuer,
		provideTracker,
		providePlaybackIssuer,
		provideInitiator,
	),
)

// ---------------------------------------------------------------------------
// domain service providers
// ---------------------------------------------------------------------------

func provideUploadIssuer(log *slog.Logger, signer storage.Signer, rc *boot.RuntimeConfig) *upload.Issuer {
	return upload.NewIssuer(log, signer, upload.Options{
		TTL:         rc.UploadTTL,
		MaxSizes:    rc.MaxSizes,
		Roots:       rc.StorageRoots,
		Concurrency: rc.Concurrency,
	})
}

func provideDeliveryIssuer(log *slog.Logger, signer storage.Signer, rc *boot.RuntimeConfig) *delivery.Issuer {
	return delivery.NewIssuer(log, signer, rc.DeliveryTTL)
}

func provideTracker(log *slog.Logger, platform video.Platform, cfg config.Config, rc *boot.RuntimeConfig) *video.Tracker {
	return video.NewTracker(log, platform, cfg.Video.CORSOrigin, video.RetryPolicy{
		MaxAttempts: rc.PollAttempts,
		Interval:    rc.PollInterval,
	})
}

func providePlaybackIssuer(log *slog.Logger, cfg config.Config, rc *boot.RuntimeConfig) *playback.Issuer {
	return playback.NewIssuer(log, playback.Config{
		KeyID:     cfg.Playback.SigningKeyID,
		KeySecret: cfg.Playback.SigningKeySecret,
		TTL:       rc.PlaybackTTL,
	})
}

func provideInitiator(log *slog.Logger, ledger commerce.Ledger, cfg config.Config) *transaction.Initiator {
	return transaction.NewInitiator(log, ledger, cfg.Transactions.DiscloseTransitions)
}
