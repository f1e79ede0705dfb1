// Package config reads service configuration from IAM_* environment
// variables. Validation failures are fatal at startup; a service must
// never run with a partial or ambiguous configuration.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// GatewayConfig configures the gateway service.
type GatewayConfig struct {
	Addr         string
	PGDSN        string
	TokenSecret  string
	TokenIssuer  string
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
	DirectoryURL *url.URL
	RoutePolicy  string
	PublicPaths  []string

	RateBurst     int
	RatePerSecond int
}

// DirectoryConfig configures the directory service.
type DirectoryConfig struct {
	Addr  string
	PGDSN string

	RateBurst     int
	RatePerSecond int

	SMTPAddr     string
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string

	AdminEmail     string
	SweepInterval  time.Duration
	SweepThreshold time.Duration
}

// GatewayFromEnv loads and validates the gateway configuration.
func GatewayFromEnv() (GatewayConfig, error) {
	cfg := GatewayConfig{
		Addr:        envOr("IAM_GATEWAY_ADDR", ":8080"),
		PGDSN:       os.Getenv("IAM_PG_DSN"),
		TokenSecret: os.Getenv("IAM_TOKEN_SECRET"),
		TokenIssuer: envOr("IAM_TOKEN_ISSUER", "iam-gateway"),
		RoutePolicy: os.Getenv("IAM_ROUTE_POLICY"),
	}
	if cfg.TokenSecret == "" {
		return GatewayConfig{}, errors.New("IAM_TOKEN_SECRET is required")
	}
	if cfg.PGDSN == "" {
		return GatewayConfig{}, errors.New("IAM_PG_DSN is required")
	}
	if cfg.RoutePolicy == "" {
		return GatewayConfig{}, errors.New("IAM_ROUTE_POLICY is required")
	}

	rawURL := envOr("IAM_DIRECTORY_URL", "http://localhost:8081")
	target, err := url.Parse(rawURL)
	if err != nil || target.Scheme == "" || target.Host == "" {
		return GatewayConfig{}, fmt.Errorf("IAM_DIRECTORY_URL %q is not a valid URL", rawURL)
	}
	cfg.DirectoryURL = target

	if cfg.AccessTTL, err = envDuration("IAM_ACCESS_TTL", 24*time.Hour); err != nil {
		return GatewayConfig{}, err
	}
	if cfg.RefreshTTL, err = envDuration("IAM_REFRESH_TTL", 14*24*time.Hour); err != nil {
		return GatewayConfig{}, err
	}
	if cfg.RateBurst, err = envInt("IAM_RATE_BURST", 20); err != nil {
		return GatewayConfig{}, err
	}
	if cfg.RatePerSecond, err = envInt("IAM_RATE_PER_SECOND", 10); err != nil {
		return GatewayConfig{}, err
	}
	if raw := strings.TrimSpace(os.Getenv("IAM_PUBLIC_PATHS")); raw != "" {
		for _, p := range strings.Split(raw, ",") {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			if !strings.HasPrefix(p, "/") {
				return GatewayConfig{}, fmt.Errorf("IAM_PUBLIC_PATHS entry %q must start with /", p)
			}
			cfg.PublicPaths = append(cfg.PublicPaths, p)
		}
	}
	return cfg, nil
}

// DirectoryFromEnv loads and validates the directory configuration.
func DirectoryFromEnv() (DirectoryConfig, error) {
	cfg := DirectoryConfig{
		Addr:         envOr("IAM_DIRECTORY_ADDR", ":8081"),
		PGDSN:        os.Getenv("IAM_PG_DSN"),
		SMTPAddr:     os.Getenv("IAM_SMTP_ADDR"),
		SMTPFrom:     os.Getenv("IAM_SMTP_FROM"),
		SMTPUsername: os.Getenv("IAM_SMTP_USERNAME"),
		SMTPPassword: os.Getenv("IAM_SMTP_PASSWORD"),
		AdminEmail:   os.Getenv("IAM_ADMIN_EMAIL"),
	}
	if cfg.PGDSN == "" {
		return DirectoryConfig{}, errors.New("IAM_PG_DSN is required")
	}
	if cfg.SMTPAddr != "" && cfg.SMTPFrom == "" {
		return DirectoryConfig{}, errors.New("IAM_SMTP_FROM is required when IAM_SMTP_ADDR is set")
	}

	var err error
	if cfg.RateBurst, err = envInt("IAM_RATE_BURST", 20); err != nil {
		return DirectoryConfig{}, err
	}
	if cfg.RatePerSecond, err = envInt("IAM_RATE_PER_SECOND", 10); err != nil {
		return DirectoryConfig{}, err
	}
	if cfg.SweepInterval, err = envDuration("IAM_SWEEP_INTERVAL", 24*time.Hour); err != nil {
		return DirectoryConfig{}, err
	}
	if cfg.SweepThreshold, err = envDuration("IAM_SWEEP_THRESHOLD", 90*24*time.Hour); err != nil {
		return DirectoryConfig{}, err
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s %q is not a positive duration", key, raw)
	}
	return d, nil
}

func envInt(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%s %q is not a non-negative integer", key, raw)
	}
	return v, nil
}
