package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hupe1980/opsmesh"
	"github.com/hupe1980/opsmesh/internal/tracing"
)

func newServeCommand(g *globalOptions) *cobra.Command {
	var (
		addr      string
		publicURL string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Start the orchestrator HTTP API together with the locally hosted specialist
agents (A2A endpoints), Prometheus metrics and health probes.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, g, addr, publicURL)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")
	cmd.Flags().StringVar(&publicURL, "public-url", "", "Base URL advertised in agent cards (defaults to agents.base_url)")

	return cmd
}

func runServe(ctx context.Context, g *globalOptions, addr, publicURL string) error {
	cfg, err := loadConfig(g)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := setupLogger(cfg.Log, os.Stdout)
	if err != nil {
		return err
	}
	for _, w := range cfg.Warnings() {
		logger.Warn(w)
	}

	tp, err := tracing.New(ctx, cfg.Tracing, func(o *tracing.Options) {
		o.Logger = logger
		o.Version = opsmesh.Version
		o.SetGlobal = true
	})
	if err != nil {
		return err
	}

	mesh, err := opsmesh.New(ctx, *cfg, func(o *opsmesh.Options) {
		o.Logger = logger
		o.TracerProvider = tp.TracerProvider()
	})
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := mesh.Close(); closeErr != nil {
			logger.Error("failed to close session store", "error", closeErr)
		}
	}()

	if publicURL == "" {
		publicURL = cfg.Agents.BaseURL
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      mesh.Handler(publicURL),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr, "version", opsmesh.Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		logger.Warn("tracing shutdown incomplete", "error", err)
	}

	logger.Info("server stopped")
	return nil
}
