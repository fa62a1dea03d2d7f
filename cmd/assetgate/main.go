package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/openmarket/assetgate/cmd/assetgate/modules"
	"github.com/openmarket/assetgate/internal/auth"
	"github.com/openmarket/assetgate/internal/boot"
	"github.com/openmarket/assetgate/internal/playback"
	"github.com/openmarket/assetgate/internal/version"
	"github.com/openmarket/assetgate/internal/video"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:          "assetgate",
		Short:        "Signed upload, playback and delivery credentials for marketplace assets",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if configPath != "" {
				_ = os.Setenv("CONFIG_PATH", configPath)
			}
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.toml (defaults to $CONFIG_PATH)")

	root.AddCommand(
		newServeCommand(),
		newPlaybackTokenCommand(),
		newVideoCommand(),
		newTokenCommand(),
		newVersionCommand(),
	)
	return root
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fx.New(
				modules.InfraModule,
				modules.DomainModule,
				modules.ServerModule,
				fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
					return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
				}),
			).Run()
		},
	}
}

// populate builds the infrastructure and domain graph without the HTTP server
// and fills targets with the requested components.
func populate(targets ...any) error {
	app := fx.New(
		modules.InfraModule,
		modules.DomainModule,
		fx.NopLogger,
		fx.Populate(targets...),
	)
	return app.Err()
}

func newPlaybackTokenCommand() *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "playback-token <playbackId>",
		Short: "Sign a playback token for a video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var issuer *playback.Issuer
			if err := populate(&issuer); err != nil {
				return err
			}
			token, err := issuer.Issue(args[0], playback.Kind(kind))
			if err != nil {
				return err
			}
			return printJSON(cmd, token)
		},
	}
	cmd.Flags().StringVarP(&kind, "type", "t", string(playback.KindVideo), "token type: video, thumbnail, gif or storyboard")
	return cmd
}

func newVideoCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "video",
		Short: "Manage hosted video assets",
	}

	var wait bool
	resolve := &cobra.Command{
		Use:   "resolve <uploadId>",
		Short: "Show the asset behind a direct upload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var tracker *video.Tracker
			if err := populate(&tracker); err != nil {
				return err
			}
			var (
				asset video.Asset
				err   error
			)
			if wait {
				asset, err = tracker.WaitReady(cmd.Context(), args[0])
			} else {
				asset, err = tracker.ResolveAsset(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}
			return printJSON(cmd, asset)
		},
	}
	resolve.Flags().BoolVarP(&wait, "wait", "w", false, "poll until the asset is ready")

	remove := &cobra.Command{
		Use:   "delete <assetId>",
		Short: "Delete a hosted video asset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var tracker *video.Tracker
			if err := populate(&tracker); err != nil {
				return err
			}
			if err := tracker.DeleteAsset(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(resolve, remove)
	return cmd
}

func newTokenCommand() *cobra.Command {
	var (
		userID string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a caller JWT for local testing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var rc *boot.RuntimeConfig
			if err := populate(&rc); err != nil {
				return err
			}
			if ttl <= 0 {
				ttl = rc.JwtExpiresIn
			}
			token, expiresAt, err := auth.GenerateToken(userID, rc.JwtSecret, ttl)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{"token": token, "expiresAt": expiresAt})
		},
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "", "user id placed in the sub claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to auth.jwt_expires_in)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "assetgate %s\n", version.GetInfo())
		},
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
