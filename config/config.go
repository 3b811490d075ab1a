// Package config loads runtime settings from environment variables. CLI flags
// override the loaded values in cmd/vyapaarpost.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ByLCY/vyapaarpost/layout"
	"github.com/ByLCY/vyapaarpost/share"
)

// Config holds all application settings.
type Config struct {
	// HTTP surface
	Addr string

	// Content sources
	CatalogPath string // empty uses the embedded catalog
	FontDir     string
	AssetDir    string

	// Export
	ExportDir  string
	Scale      float64
	Width      float64
	Height     float64
	LineHeight layout.LineHeightSpec

	// Optional S3-compatible share bucket
	Share share.BucketConfig

	LogLevel slog.Level
}

// Load reads the configuration from the environment, applying defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Addr:        envOrDefault("VP_ADDR", ":8080"),
		CatalogPath: os.Getenv("VP_CATALOG"),
		FontDir:     os.Getenv("VP_FONT_DIR"),
		AssetDir:    envOrDefault("VP_ASSET_DIR", "public"),
		ExportDir:   envOrDefault("VP_EXPORT_DIR", "exports"),
		Share: share.BucketConfig{
			Endpoint:  os.Getenv("VP_SHARE_ENDPOINT"),
			Region:    envOrDefault("VP_SHARE_REGION", "us-east-1"),
			AccessKey: os.Getenv("VP_SHARE_ACCESS_KEY"),
			SecretKey: os.Getenv("VP_SHARE_SECRET_KEY"),
			Bucket:    os.Getenv("VP_SHARE_BUCKET"),
			Prefix:    envOrDefault("VP_SHARE_PREFIX", "shared"),
		},
	}

	scale, err := strconv.ParseFloat(envOrDefault("VP_SCALE", "2"), 64)
	if err != nil {
		return nil, fmt.Errorf("VP_SCALE: %w", err)
	}
	if scale < 2 {
		return nil, fmt.Errorf("VP_SCALE must be at least 2, got %g", scale)
	}
	cfg.Scale = scale

	cfg.Width, cfg.Height, err = ParseSurface(envOrDefault("VP_SURFACE", "360x360"))
	if err != nil {
		return nil, fmt.Errorf("VP_SURFACE: %w", err)
	}

	cfg.LineHeight, err = layout.ParseLineHeight(os.Getenv("VP_LINE_HEIGHT"))
	if err != nil {
		return nil, fmt.Errorf("VP_LINE_HEIGHT: %w", err)
	}

	if v := os.Getenv("VP_SHARE_EXPIRY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("VP_SHARE_EXPIRY: %w", err)
		}
		cfg.Share.Expiry = d
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(envOrDefault("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return cfg, nil
}

// ParseSurface parses a "WIDTHxHEIGHT" logical surface size.
func ParseSurface(v string) (float64, float64, error) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(v)), "x")
	if !ok {
		return 0, 0, fmt.Errorf("expected WIDTHxHEIGHT, got %q", v)
	}
	width, err := strconv.ParseFloat(w, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("width %q: %w", w, err)
	}
	height, err := strconv.ParseFloat(h, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("height %q: %w", h, err)
	}
	if width <= 0 || height <= 0 {
		return 0, 0, fmt.Errorf("surface must be positive, got %q", v)
	}
	return width, height, nil
}

// NewLogger returns a text logger at the configured level.
func (c *Config) NewLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: c.LogLevel}))
}

// envOrDefault reads an environment variable, returning a fallback if unset or empty.
func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
