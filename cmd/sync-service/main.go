package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	_ "datasync/cmd/sync-service/docs"
	"datasync/internal/config"
	"datasync/internal/logger"
	"datasync/pkg/logging"
)

var (
	configFile string
)

// @title           Data Sync Service API
// @version         1.0
// @description     REST API for inspecting integrations and triggering synchronization runs

// @host      localhost:8080
// @BasePath  /api/v1

// @schemes   http https

func main() {
	rootCmd := &cobra.Command{
		Use:   "sync-service",
		Short: "Integration synchronization service",
		Long:  "Sync Service reads relational source views and reconciles them into the document store",
		RunE:  serveCmd().RunE,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (required)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(executeCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setup() (*config.Config, logger.Logger, error) {
	earlyLog := logging.NewEarlyLog()

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
	return cfg, log, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the sync service HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			log.InfowCtx(ctx, "Starting Sync Service")

			app := NewApp(cfg, log)
			if err := app.Initialize(ctx); err != nil {
				log.Fatalf("Failed to initialize application: %v", err)
			}

			if err := app.Serve(ctx); err != nil {
				log.ErrorwCtx(ctx, "Application error", "error", err)
				return err
			}
			return nil
		},
	}
}

func executeCmd() *cobra.Command {
	var integrationID, userID string

	cmd := &cobra.Command{
		Use:   "execute",
		Short: "Run one integration and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			app := NewApp(cfg, log)
			if err := app.Initialize(ctx); err != nil {
				log.Fatalf("Failed to initialize application: %v", err)
			}
			defer func() {
				if err := app.Shutdown(context.WithoutCancel(ctx)); err != nil {
					log.Errorw("Shutdown error", "error", err)
				}
			}()

			result, runErr := app.ExecuteOnce(ctx, integrationID, userID)
			if result != nil {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(result); err != nil {
					return err
				}
			}
			if runErr != nil {
				log.ErrorwCtx(ctx, "Integration run failed", "integration_id", integrationID, "error", runErr)
				return runErr
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&integrationID, "id", "", "Integration configuration ID (required)")
	cmd.Flags().StringVar(&userID, "user", "", "Invoking user ID, used as fallback project owner")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}
