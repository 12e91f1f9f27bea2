package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/hyperengineering/feedcache"
	"github.com/hyperengineering/feedcache/internal/api"
	"github.com/hyperengineering/feedcache/internal/telemetry"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the cache over HTTP",
	Long: `Start an HTTP server exposing the cache.

Endpoints:
  GET    /v1/health
  GET    /v1/feeds
  GET    /v1/feeds/{label}/items?limit=N
  GET    /v1/feeds/{label}/state
  GET    /v1/feeds/{label}/export
  POST   /v1/feeds/{label}/refresh
  POST   /v1/feeds/{label}/append
  DELETE /v1/feeds/{label}
  GET    /v1/items/{id}

Labels containing "/" are passed escaped as %2F.

Tracing is exported when FEEDCACHE_OTEL_ENDPOINT is set.

Example:
  feedcache serve --addr :8080 --auto-refresh`,
	RunE: runServe,
}

var (
	serveAddr        string
	serveTimeout     time.Duration
	serveAutoRefresh bool
)

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "127.0.0.1:8080", "Listen address")
	serveCmd.Flags().DurationVar(&serveTimeout, "timeout", 30*time.Second, "Per-request timeout")
	serveCmd.Flags().BoolVar(&serveAutoRefresh, "auto-refresh", false, "Refresh the default feed in the background")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	shutdownTracing, err := telemetry.Setup(ctx, "feedcache")
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() { _ = shutdownTracing(context.WithoutCancel(ctx)) }()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAutoRefresh {
		cfg.AutoRefresh = true
	}

	client, err := feedcache.New(cfg)
	if err != nil {
		return fmt.Errorf("initialize client: %w", err)
	}
	defer client.Close()

	srv := &http.Server{
		Addr:              serveAddr,
		Handler:           api.NewRouter(client, api.Options{Timeout: serveTimeout}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("feedcache: listening on %s (db %s, offline=%t)", serveAddr, cfg.LocalPath, cfg.IsOffline())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	log.Printf("feedcache: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
