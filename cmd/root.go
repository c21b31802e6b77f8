// Package cmd defines the CLI commands for the irdocs executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/ir-disclosure-crawler/internal/config"
	"github.com/JakeFAU/ir-disclosure-crawler/internal/logging"
	"github.com/JakeFAU/ir-disclosure-crawler/internal/metrics"
	"github.com/JakeFAU/ir-disclosure-crawler/internal/telemetry"
)

// envKeyType is the key for storing the command environment in the context.
type envKeyType string

const envKey envKeyType = "env"

// env carries what every subcommand needs after PersistentPreRunE.
type env struct {
	cfg    config.Config
	logger *zap.Logger
	tracer *sdktrace.TracerProvider
}

// loadConfig is a variable so tests can inject configuration.
var loadConfig = config.Load

func newRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "irdocs",
		Short: "Collects financial disclosure PDFs from an investor relations page.",
		Long: `irdocs crawls a company's investor relations listing page, extracts the
financial disclosure PDFs it links to, classifies them by title and stores
their metadata through a small HTTP storage API.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(logging.Config{
				Development: cfg.Logging.Development,
				Level:       cfg.Logging.Level,
			})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			zap.ReplaceGlobals(logger)
			metrics.Init()

			e := &env{cfg: cfg, logger: logger}
			if cfg.Tracing.Enabled {
				e.tracer, err = telemetry.InitTracerProvider(cmd.Context(), telemetry.Config{
					ServiceName: cfg.Tracing.ServiceName,
					SampleRatio: cfg.Tracing.SampleRatio,
				})
				if err != nil {
					return fmt.Errorf("init tracing: %w", err)
				}
			}

			ctx := context.WithValue(cmd.Context(), envKey, e)
			cmd.SetContext(ctx)
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			e, ok := cmd.Context().Value(envKey).(*env)
			if !ok || e == nil {
				return
			}
			if e.tracer != nil {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := e.tracer.Shutdown(shutdownCtx); err != nil {
					e.logger.Warn("tracer shutdown failed", zap.Error(err))
				}
			}
			_ = e.logger.Sync()
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML, JSON or TOML)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

func resolveEnv(ctx context.Context) (*env, error) {
	e, ok := ctx.Value(envKey).(*env)
	if !ok || e == nil {
		return nil, errors.New("command environment not initialized")
	}
	return e, nil
}

// Execute is the main entry point.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "irdocs: %v\n", err)
		stop()
		os.Exit(1)
	}
}
