// Command server hosts interactive traversal sessions over HTTP and publishes
// them as a GTFS-Realtime VehiclePositions feed.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cxd309/metroline/internal/api"
	"github.com/cxd309/metroline/internal/config"
	"github.com/cxd309/metroline/internal/engine"
	"github.com/cxd309/metroline/internal/platform/logging"
	"github.com/cxd309/metroline/internal/route"
	"github.com/cxd309/metroline/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}

func run(ctx context.Context, cfg *config.Config, log *logrus.Logger) error {
	db, err := store.Open(ctx, cfg.DatabaseURL, log)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := seed(ctx, db, cfg.RouteFile); err != nil {
		return err
	}

	sessions := api.NewManager(engine.Config{
		SegmentDuration: cfg.SegmentDuration,
		DwellDuration:   cfg.DwellDuration,
	}, cfg.SessionTTL, time.Now, log)
	go sessions.RunJanitor(ctx, time.Minute)

	handler := api.NewHandler(sessions, db, log)
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.NewRouter(handler, cfg.CORSOrigins, log),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.Addr).Info("server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// seed ensures the schema and stores the default line plus the optional
// route file.
func seed(ctx context.Context, db *store.Store, routeFile string) error {
	if err := db.EnsureSchema(ctx); err != nil {
		return err
	}
	if err := db.SaveRoute(ctx, route.Default()); err != nil {
		return fmt.Errorf("seed default route: %w", err)
	}
	if routeFile == "" {
		return nil
	}
	r, err := route.LoadFile(routeFile)
	if err != nil {
		return fmt.Errorf("seed route file: %w", err)
	}
	if err := db.SaveRoute(ctx, r); err != nil {
		return fmt.Errorf("seed route file: %w", err)
	}
	return nil
}
