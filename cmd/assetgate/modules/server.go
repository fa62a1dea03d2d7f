package modules

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"go.uber.org/fx"

	"github.com/openmarket/assetgate/internal/boot"
	"github.com/openmarket/assetgate/internal/config"
	"github.com/openmarket/assetgate/internal/handlers"
	"github.com/openmarket/assetgate/internal/playback"
	"github.com/openmarket/assetgate/internal/server"
	"github.com/openmarket/assetgate/internal/version"
)

var ServerModule = fx.Module(
	"server",
	fx.Provide(
		provideServerHandler(providePingHandler),
		provideServerHandler(handlers.NewMediaHandler),
		provideServerHandler(handlers.NewVideoHandler),
		provideServerHandler(handlers.NewTransactionHandler),

		provideServer,
	),
	fx.Invoke(startServer),
)

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

// ---------------------------------------------------------------------------
// server
// ---------------------------------------------------------------------------

func providePingHandler(log *slog.Logger, cfg config.Config, rc *boot.RuntimeConfig, issuer *playback.Issuer) *handlers.PingHandler {
	return handlers.NewPingHandler(log, map[string]bool{
		"storage":  rc.Storage.Validate() == nil,
		"video":    cfg.Video.TokenID != "" && cfg.Video.TokenSecret != "",
		"playback": issuer.Configured(),
		"commerce": cfg.Commerce.BaseURL != "",
	})
}

type serverParams struct {
	fx.In

	Logger         *slog.Logger
	RuntimeConfig  *boot.RuntimeConfig
	ServerHandlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	return server.NewServer(params.Logger, params.RuntimeConfig.ServerAddr, params.RuntimeConfig.JwtSecret, params.ServerHandlers...)
}

func startServer(lc fx.Lifecycle, logger *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner, rc *boot.RuntimeConfig) {
	fmt.Printf("Starting assetgate %s\n", version.GetInfo())

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if rc.ShutdownTimeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, rc.ShutdownTimeout)
				defer cancel()
			}
			if err := srv.Stop(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
