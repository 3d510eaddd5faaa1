package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/sparkleclean/realtime/internal/app"
	"github.com/sparkleclean/realtime/internal/config"
	"github.com/sparkleclean/realtime/internal/log"
	"github.com/sparkleclean/realtime/internal/metrics"
)

func main() {
	var configPath string

	root := &cobra.Command{
		Use:   "realtime",
		Short: "Sparkle realtime backend: event bus, gateway and subscriber",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the realtime gateway (WebSocket + REST API)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			metrics.Init()

			application, err := app.New(&cfg, logger)
			if err != nil {
				return fmt.Errorf("init gateway: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger.Info().Str("addr", cfg.Addr).Msg("starting realtime gateway")
			if err := application.Run(ctx); err != nil {
				return fmt.Errorf("gateway exited: %w", err)
			}
			logger.Info().Msg("gateway stopped")
			return nil
		},
	}

	subscribe := &cobra.Command{
		Use:   "subscriber",
		Short: "Run the event subscriber and notification delivery worker",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			metrics.Init()

			application, err := app.NewSubscriber(&cfg, logger)
			if err != nil {
				return fmt.Errorf("init subscriber: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger.Info().Msg("starting event subscriber")
			if err := application.Run(ctx); err != nil {
				return fmt.Errorf("subscriber exited: %w", err)
			}
			logger.Info().Msg("subscriber stopped")
			return nil
		},
	}

	root.AddCommand(serve, subscribe)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(path string) (config.Config, *zerolog.Logger, error) {
	bootstrap := log.New("info", "console")
	cfg, resolved, err := config.Load(bootstrap, path)
	if err != nil {
		return cfg, nil, fmt.Errorf("load config: %w", err)
	}
	logger := log.New(cfg.LogLevel, cfg.LogFormat)
	logger.Debug().Str("config", resolved).Msg("configuration loaded")
	return cfg, logger, nil
}
