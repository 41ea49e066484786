// Package config loads process configuration from the environment once at
// startup. The resulting struct is immutable; core packages never read
// ambient environment state themselves.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds every knob the back-office service reads at boot.
type Config struct {
	// Server
	HTTPAddr string

	// Database. Empty DSN switches the service to the in-memory store,
	// intended for local development only.
	DatabaseDSN string

	// Token signing secrets. Both are required and must differ so that a
	// leaked refresh token can never pass as an access token.
	AccessSecret  string
	RefreshSecret string

	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// AuditAPIAccess controls whether every authenticated request writes an
	// API_ACCESS audit row. Defaults to on for full request traceability.
	AuditAPIAccess bool

	// Bootstrap administrator seeded at startup when absent.
	SeedAdminEmail    string
	SeedAdminPassword string
}

const (
	defaultHTTPAddr   = ":8080"
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
	defaultSeedEmail  = "admin@mecone.com"
	defaultSeedPass   = "admin123"
)

// Load reads configuration from the environment. Missing signing secrets are
// a hard error: they must never be defaulted in a deployed environment.
func Load() (*Config, error) {
	cfg := &Config{
		HTTPAddr:          getEnv("MECONE_HTTP_ADDR", defaultHTTPAddr),
		DatabaseDSN:       strings.TrimSpace(os.Getenv("MECONE_PG_DSN")),
		AccessSecret:      strings.TrimSpace(os.Getenv("MECONE_ACCESS_SECRET")),
		RefreshSecret:     strings.TrimSpace(os.Getenv("MECONE_REFRESH_SECRET")),
		AccessTTL:         defaultAccessTTL,
		RefreshTTL:        defaultRefreshTTL,
		AuditAPIAccess:    true,
		SeedAdminEmail:    getEnv("MECONE_SEED_ADMIN_EMAIL", defaultSeedEmail),
		SeedAdminPassword: getEnv("MECONE_SEED_ADMIN_PASSWORD", defaultSeedPass),
	}

	if cfg.AccessSecret == "" {
		return nil, errors.New("config: MECONE_ACCESS_SECRET is required")
	}
	if cfg.RefreshSecret == "" {
		return nil, errors.New("config: MECONE_REFRESH_SECRET is required")
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, errors.New("config: access and refresh secrets must differ")
	}

	if v := os.Getenv("MECONE_ACCESS_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("config: invalid MECONE_ACCESS_TTL %q", v)
		}
		cfg.AccessTTL = d
	}
	if v := os.Getenv("MECONE_REFRESH_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("config: invalid MECONE_REFRESH_TTL %q", v)
		}
		cfg.RefreshTTL = d
	}
	if v := os.Getenv("MECONE_AUDIT_API_ACCESS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("config: invalid MECONE_AUDIT_API_ACCESS %q", v)
		}
		cfg.AuditAPIAccess = b
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
