package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"safetyrelay/internal/config"
	"safetyrelay/internal/constants"
	"safetyrelay/internal/logger"
	"safetyrelay/pkg/logging"
)

var (
	configFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   constants.ServiceName,
		Short: "Driver safety relay",
		Long:  "Polls fleet telemetry for safety events and severe speeding and relays them to chat destinations",
		RunE:  serveCmd().RunE,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (required)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(intervalsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads .env, the config file and the logger.
func setup() (*config.Config, logger.Logger, error) {
	earlyLog := logging.NewEarlyLog()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		earlyLog.Warn("Failed to read .env: %v", err)
	}

	if configFile == "" {
		configFile = os.Getenv("CONFIG_FILE")
		if configFile == "" {
			earlyLog.Error("Config file is required. Use --config flag or CONFIG_FILE environment variable")
			return nil, nil, fmt.Errorf("config file is required")
		}
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		earlyLog.Error("Failed to load config: %v", err)
		return nil, nil, err
	}

	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		earlyLog.Error("Failed to init logger: %v", err)
		return nil, nil, err
	}
	if sugared, ok := log.(*logger.SugaredLogger); ok {
		sugared.SetServiceName(constants.ServiceName)
	}
	return cfg, log, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the relay loop and the ops server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			log.InfowCtx(ctx, "Starting relay", "dry_run", cfg.DryRun)

			app := NewApp(cfg, log)
			defer func() {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
				defer shutdownCancel()
				if serr := app.Shutdown(shutdownCtx); serr != nil {
					log.ErrorwCtx(shutdownCtx, "Shutdown incomplete", "error", serr)
				}
			}()

			if err := app.Initialize(ctx); err != nil {
				log.ErrorwCtx(ctx, "Failed to initialize application", "error", err)
				return err
			}

			err = app.Run(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				log.ErrorwCtx(ctx, "Relay stopped with error", "error", err)
				return err
			}
			log.Infow("Relay stopped")
			return nil
		},
	}
}

func intervalsCmd() *cobra.Command {
	var (
		vehicle string
		from    string
		to      string
		all     bool
	)

	cmd := &cobra.Command{
		Use:   "intervals",
		Short: "Search speeding intervals for one vehicle with an expanding window",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()

			req, err := parseSearch(vehicle, from, to, all, cfg, time.Now())
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			fetcher := newIntervalFetcher(cfg, log)
			res := fetcher.Search(ctx, req)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(searchResponse(vehicle, res))
		},
	}

	cmd.Flags().StringVar(&vehicle, "vehicle", "", "Vehicle (asset) id")
	cmd.Flags().StringVar(&from, "from", "", "Window start, RFC3339 (default: sliding window start)")
	cmd.Flags().StringVar(&to, "to", "", "Window end, RFC3339 (default: now)")
	cmd.Flags().BoolVar(&all, "all", false, "Show every interval instead of the configured severity only")
	_ = cmd.MarkFlagRequired("vehicle")
	return cmd
}
