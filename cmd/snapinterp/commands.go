package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jarvis394/snapshot-interpolation/internal/app"
	"github.com/jarvis394/snapshot-interpolation/internal/config"
	"github.com/jarvis394/snapshot-interpolation/internal/telemetry"
)

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "snapinterp",
		Short:         "Serve and follow an interpolated snapshot feed",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")

	loadConfig := func() (config.Config, telemetry.Logger, error) {
		logger := telemetry.WrapLogger(log.Default())
		cfg, err := config.Load(configPath, logger)
		return cfg, logger, err
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Produce snapshots and broadcast them over a websocket feed",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr, _ = cmd.Flags().GetString("addr")
			}
			ctx, stop := signalContext(cmd.Context())
			defer stop()
			return app.RunServer(ctx, cfg, app.Options{Logger: logger, Stdout: cmd.OutOrStdout()})
		},
	}
	serveCmd.Flags().String("addr", "", "listen address (overrides config)")

	followCmd := &cobra.Command{
		Use:   "follow [url]",
		Short: "Subscribe to a feed and interpolate it at the render rate",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if len(args) == 1 {
				cfg.Follow.URL = args[0]
			}
			ctx, stop := signalContext(cmd.Context())
			defer stop()
			return app.RunFollower(ctx, cfg, app.Options{Logger: logger, Stdout: cmd.OutOrStdout()})
		},
	}

	rootCmd.AddCommand(serveCmd, followCmd, newSchemaCmd())
	return rootCmd
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
