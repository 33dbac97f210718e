package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Radar frame settings.
	CatalogURL           string
	TileHost             string
	TileSize             int
	ColorScheme          int
	Smoothing            bool
	SnowColors           bool
	FrameRefreshInterval time.Duration

	// Initial viewport.
	CenterLat float64
	CenterLon float64
	Zoom      int

	// NWS alert settings.
	NWSBaseURL   string
	NWSUserAgent string

	// Optional last-known-good alert store (disabled when empty).
	AlertCachePath string

	// Optional alert-change publisher (disabled when no brokers).
	KafkaBrokers     []string
	KafkaAlertsTopic string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	refreshInterval, err := parseDuration("FRAME_REFRESH_INTERVAL", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	centerLat, err := parseFloat("RADAR_CENTER_LAT", 39.8283)
	if err != nil {
		return nil, err
	}
	centerLon, err := parseFloat("RADAR_CENTER_LON", -98.5795)
	if err != nil {
		return nil, err
	}

	zoom, err := parseInt("RADAR_ZOOM", 7)
	if err != nil {
		return nil, err
	}
	tileSize, err := parseInt("RADAR_TILE_SIZE", 256)
	if err != nil {
		return nil, err
	}
	colorScheme, err := parseInt("RADAR_COLOR_SCHEME", 4)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		CatalogURL:           envOrDefault("RADAR_CATALOG_URL", "https://api.rainviewer.com/public/weather-maps.json"),
		TileHost:             envOrDefault("RADAR_TILE_HOST", "https://tilecache.rainviewer.com"),
		TileSize:             tileSize,
		ColorScheme:          colorScheme,
		Smoothing:            envOrDefault("RADAR_SMOOTHING", "true") == "true",
		SnowColors:           envOrDefault("RADAR_SNOW_COLORS", "true") == "true",
		FrameRefreshInterval: refreshInterval,

		CenterLat: centerLat,
		CenterLon: centerLon,
		Zoom:      zoom,

		NWSBaseURL:   envOrDefault("NWS_BASE_URL", "https://api.weather.gov"),
		NWSUserAgent: envOrDefault("NWS_USER_AGENT", "radar-overlay (github.com/couchcryptid/radar-overlay)"),

		AlertCachePath: os.Getenv("ALERT_CACHE_PATH"),

		KafkaBrokers:     parseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaAlertsTopic: envOrDefault("KAFKA_ALERTS_TOPIC", "radar-alert-events"),
	}

	if cfg.CatalogURL == "" {
		return nil, errors.New("RADAR_CATALOG_URL is required")
	}
	if cfg.TileHost == "" {
		return nil, errors.New("RADAR_TILE_HOST is required")
	}
	if cfg.Zoom < 0 || cfg.Zoom > 20 {
		return nil, errors.New("RADAR_ZOOM must be between 0 and 20")
	}
	if cfg.CenterLat < -90 || cfg.CenterLat > 90 {
		return nil, errors.New("RADAR_CENTER_LAT must be between -90 and 90")
	}
	if cfg.CenterLon < -180 || cfg.CenterLon > 180 {
		return nil, errors.New("RADAR_CENTER_LON must be between -180 and 180")
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaAlertsTopic == "" {
		return nil, errors.New("KAFKA_ALERTS_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

// KafkaEnabled reports whether the alert-change publisher is configured.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseDuration(key string, fallback time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

func parseFloat(key string, fallback float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return v, nil
}

func parseBrokers(s string) []string {
	if s == "" {
		return nil
	}
	var brokers []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
