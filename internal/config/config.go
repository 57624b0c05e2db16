package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config contains all runtime settings for the call coordinator.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	AllowAnyOrigin bool

	// EngineMode selects the telephony engine strategy at startup.
	// Only "loopback" ships here; the adapter for a real platform
	// engine plugs in through the same constructor switch.
	EngineMode string

	// ReachabilityTimeout is the default watchdog delay for displayed
	// incoming calls. The provider configuration may override it per
	// setup; 0 disables the watchdog entirely.
	ReachabilityTimeout time.Duration

	DatabaseURL string
	Env         string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:            envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:    envOrDefault("APP_METRICS_NAMESPACE", "callkeeper"),
		EngineMode:          strings.ToLower(envOrDefault("ENGINE_MODE", "loopback")),
		Env:                 envOrDefault("APP_ENV", "prod"),
		DatabaseURL:         stringsTrimSpace("DATABASE_URL"),
		ShutdownTimeout:     15 * time.Second,
		ReachabilityTimeout: 30 * time.Second,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.ReachabilityTimeout, err = durationFromEnv("CALL_REACHABILITY_TIMEOUT", cfg.ReachabilityTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", false)
	if err != nil {
		return Config{}, err
	}

	if cfg.ReachabilityTimeout < 0 {
		return Config{}, fmt.Errorf("CALL_REACHABILITY_TIMEOUT must be >= 0")
	}
	switch cfg.EngineMode {
	case "loopback":
	default:
		return Config{}, fmt.Errorf("ENGINE_MODE %q is not supported", cfg.EngineMode)
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: invalid boolean %q", key, v)
	}
}
