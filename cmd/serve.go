package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/ir-disclosure-crawler/internal/app"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Runs the document storage API",
		Long: `Opens the configured document store and serves POST /create and
GET /read until interrupted.`,
		RunE: runServeCommand,
	}
}

func runServeCommand(cmd *cobra.Command, _ []string) error {
	e, err := resolveEnv(cmd.Context())
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	services, err := app.NewServer(ctx, e.cfg, e.logger)
	if err != nil {
		return fmt.Errorf("init services: %w", err)
	}
	defer func() {
		if cerr := services.Close(); cerr != nil {
			e.logger.Warn("close services failed", zap.Error(cerr))
		}
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", e.cfg.Server.Port),
		Handler:           services.Server().Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		e.logger.Info("http server started", zap.Int("port", e.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	e.logger.Info("shutdown initiated")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		e.logger.Error("server shutdown error", zap.Error(err))
	}
	e.logger.Info("shutdown complete")
	return nil
}
