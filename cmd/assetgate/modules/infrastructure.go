package modules

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"go.uber.org/fx"

	"github.com/openmarket/assetgate/internal/boot"
	"github.com/openmarket/assetgate/internal/commerce"
	"github.com/openmarket/assetgate/internal/config"
	"github.com/openmarket/assetgate/internal/logger"
	"github.com/openmarket/assetgate/internal/storage"
	"github.com/openmarket/assetgate/internal/storage/s3"
	"github.com/openmarket/assetgate/internal/tracing"
	"github.com/openmarket/assetgate/internal/video"
	"github.com/openmarket/assetgate/internal/video/mux"
)

var InfraModule = fx.Module(
	"Infra",
	fx.Provide(
		provideConfig,
		provideLogger,
		boot.ProvideRuntimeConfig,
		provideSigner,
		fx.Annotate(provideVideoPlatform, fx.As(new(video.Platform))),
		fx.Annotate(provideLedger, fx.As(new(commerce.Ledger))),
	),
	fx.Invoke(startTracing),
)

// ---------------------------------------------------------------------------
// infrastructure providers
// ---------------------------------------------------------------------------

func provideConfig() (config.Config, error) {
	if err := config.LoadDotEnv(".env"); err != nil {
		return config.Config{}, fmt.Errorf("load env: %w", err)
	}
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	return logger.Init(cfg.Log.Level, cfg.Log.Format)
}

// provideSigner builds the storage client once per process. Incomplete storage
// settings do not stop the process; every signing call reports them instead.
func provideSigner(log *slog.Logger, rc *boot.RuntimeConfig) (storage.Signer, error) {
	rc.Warn(log)
	if err := rc.Storage.Validate(); err != nil {
		return storage.Unavailable(err), nil
	}
	store, err := s3.NewClient(context.Background(), rc.Storage)
	if err != nil {
		return nil, fmt.Errorf("storage client: %w", err)
	}
	log.Info("storage client ready", slog.String("bucket", store.Bucket()), slog.String("endpoint", rc.Storage.Endpoint))
	return store, nil
}

func provideVideoPlatform(log *slog.Logger, cfg config.Config, rc *boot.RuntimeConfig) *mux.Client {
	return mux.NewClient(log, mux.Config{
		BaseURL:           cfg.Video.BaseURL,
		TokenID:           cfg.Video.TokenID,
		TokenSecret:       cfg.Video.TokenSecret,
		RequestsPerSecond: cfg.Video.RequestsPerSecond,
		Timeout:           rc.VideoTimeout,
	})
}

func provideLedger(log *slog.Logger, cfg config.Config, rc *boot.RuntimeConfig) *commerce.Client {
	return commerce.NewClient(log, commerce.Config{
		BaseURL:     cfg.Commerce.BaseURL,
		ClientToken: cfg.Commerce.ClientToken,
		Timeout:     rc.CommerceTimeout,
	})
}

func startTracing(lc fx.Lifecycle, log *slog.Logger, cfg config.Config) error {
	shutdown, err := tracing.Init(log, tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		SampleRatio: cfg.Tracing.SampleRatio,
		PrettyPrint: cfg.Tracing.PrettyPrint,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return shutdown(ctx)
		},
	})
	return nil
}
