package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/radar-overlay/internal/adapter/httpadmin"
	"github.com/couchcryptid/radar-overlay/internal/adapter/kafka"
	"github.com/couchcryptid/radar-overlay/internal/adapter/nws"
	"github.com/couchcryptid/radar-overlay/internal/adapter/rainviewer"
	"github.com/couchcryptid/radar-overlay/internal/adapter/sqlite"
	"github.com/couchcryptid/radar-overlay/internal/alerts"
	"github.com/couchcryptid/radar-overlay/internal/config"
	"github.com/couchcryptid/radar-overlay/internal/domain"
	"github.com/couchcryptid/radar-overlay/internal/mapsurface"
	"github.com/couchcryptid/radar-overlay/internal/observability"
	"github.com/couchcryptid/radar-overlay/internal/radar"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "radard",
		Short: "Radar overlay engine daemon",
		Long: `radard runs the radar frame cache and alert overlay engine against a
headless map surface: it keeps frame tiles warm, monitors active hazard
alerts with a last-known-good cache, and exposes health and metrics
endpoints.`,
	}
	rootCmd.AddCommand(serveCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the engine and admin endpoints",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve()
		},
	}
}

func serve() error {
	// Best-effort: a missing .env just means plain environment config.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return err
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	catalog := rainviewer.NewClient(rainviewer.Options{
		CatalogURL:  cfg.CatalogURL,
		TileHost:    cfg.TileHost,
		TileSize:    cfg.TileSize,
		ColorScheme: cfg.ColorScheme,
		Smoothing:   cfg.Smoothing,
		SnowColors:  cfg.SnowColors,
	}, logger)
	alertClient := nws.NewClient(cfg.NWSBaseURL, cfg.NWSUserAgent, logger)

	// Optional last-known-good alert persistence.
	var store alerts.CacheStore
	if cfg.AlertCachePath != "" {
		s, err := sqlite.Open(cfg.AlertCachePath)
		if err != nil {
			logger.Error("failed to open alert store", "error", err)
			return err
		}
		defer s.Close()
		store = s
		logger.Info("alert persistence enabled", "path", cfg.AlertCachePath)
	} else {
		logger.Info("alert persistence disabled")
	}

	// Optional alert-change publisher.
	var publisher alerts.Publisher
	if cfg.KafkaEnabled() {
		p := kafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaAlertsTopic, logger)
		defer func() {
			if err := p.Close(); err != nil {
				logger.Error("kafka publisher close error", "error", err)
			}
		}()
		publisher = p
		logger.Info("alert publishing enabled", "topic", cfg.KafkaAlertsTopic)
	} else {
		logger.Info("alert publishing disabled")
	}

	surface := mapsurface.NewHeadless(domain.ViewportWindow{
		Bounds: viewportAround(cfg.CenterLat, cfg.CenterLon),
		Zoom:   cfg.Zoom,
	})

	engine := radar.New(radar.Options{
		Catalog:              catalog,
		Tiles:                catalog,
		Alerts:               alertClient,
		AlertStore:           store,
		AlertPublisher:       publisher,
		Logger:               logger,
		Metrics:              metrics,
		ReturnToLatestOnStop: true,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := engine.Init(ctx, surface); err != nil {
		logger.Error("engine init failed", "error", err)
		return err
	}
	defer engine.Dispose()

	if err := engine.UpdateLocation(ctx, cfg.CenterLat, cfg.CenterLon); err != nil {
		// Non-fatal: the refresh loop retries; readiness stays down until
		// a catalog load succeeds.
		logger.Warn("initial frame load failed", "error", err)
	}
	surface.Emit(domain.EventViewSettled)

	srv := httpadmin.NewServer(cfg.HTTPAddr, engine, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	go engine.RunPeriodicAlerts(ctx)
	go refreshLoop(ctx, engine, cfg, logger)

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// refreshLoop re-fetches the frame catalog on the configured cadence.
func refreshLoop(ctx context.Context, engine *radar.Engine, cfg *config.Config, logger *slog.Logger) {
	ticker := time.NewTicker(cfg.FrameRefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := engine.RefreshFrames(ctx); err != nil {
				logger.Warn("frame refresh failed", "error", err)
			}
		}
	}
}

// viewportAround builds a roughly region-sized view box around the
// configured center; the headless surface has no widget to derive one
// from.
func viewportAround(lat, lon float64) domain.Bounds {
	const span = 2.5 // degrees each direction
	return domain.Bounds{
		SouthWest: domain.LatLng{Lat: lat - span, Lng: lon - span},
		NorthEast: domain.LatLng{Lat: lat + span, Lng: lon + span},
	}
}
