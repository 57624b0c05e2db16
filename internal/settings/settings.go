// Package settings holds the process-wide provider configuration
// snapshot: written once by the first successful initialize, immutable
// afterwards, persisted so the provider can be re-registered on the
// next process start.
package settings

import (
	"context"
	"errors"
	"strings"
	"sync"
)

var (
	// ErrNotConfigured is returned by Current before any configuration
	// is known.
	ErrNotConfigured = errors.New("settings not initialized")

	// ErrMissingAppName rejects a structurally invalid configuration on
	// the very first initialize.
	ErrMissingAppName = errors.New("configuration missing app name")
)

// ProviderConfiguration mirrors the platform provider registration
// settings. JSON tags match the wire names used by the application
// layer.
type ProviderConfiguration struct {
	AppName           string `json:"appName"`
	MaxCallGroups     int    `json:"maximumCallGroups"`
	MaxCallsPerGroup  int    `json:"maximumCallsPerCallGroup"`
	SupportsVideo     bool   `json:"supportsVideo"`
	IncludesInRecents bool   `json:"includesCallsInRecents"`
	IconRef           string `json:"imageName,omitempty"`
	RingtoneRef       string `json:"ringtoneSound,omitempty"`
	// ReachabilityTimeoutMS overrides the default watchdog delay for
	// displayed incoming calls. 0 keeps the configured default.
	ReachabilityTimeoutMS int `json:"displayCallReachabilityTimeout,omitempty"`
}

func (c ProviderConfiguration) validate() error {
	if strings.TrimSpace(c.AppName) == "" {
		return ErrMissingAppName
	}
	return nil
}

// normalize applies the documented defaults for group limits.
func (c ProviderConfiguration) normalize() ProviderConfiguration {
	if c.MaxCallGroups <= 0 {
		c.MaxCallGroups = 1
	}
	if c.MaxCallsPerGroup <= 0 {
		c.MaxCallsPerGroup = 1
	}
	return c
}

// Store guards the configuration with a first-writer-wins init guard.
// A configuration loaded from persistence is readable immediately but
// does not count as an in-process initialize: the first caller of
// Initialize still decides the configuration for this process.
type Store struct {
	mu          sync.RWMutex
	cfg         *ProviderConfiguration
	initialized bool
	persist     Persistence
}

// NewStore builds a store over the given persistence and reads back the
// last known configuration, if any.
func NewStore(ctx context.Context, persist Persistence) (*Store, error) {
	s := &Store{persist: persist}
	cfg, err := persist.Load(ctx)
	if err != nil {
		return nil, err
	}
	s.cfg = cfg
	return s, nil
}

// Initialize stores cfg on the first call and persists it. Later calls
// succeed without modifying anything; callers must not rely on
// re-initialization taking effect. Fails only when the very first
// configuration is structurally invalid.
func (s *Store) Initialize(ctx context.Context, cfg ProviderConfiguration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return nil
	}
	if err := cfg.validate(); err != nil {
		return err
	}
	cfg = cfg.normalize()

	if err := s.persist.Save(ctx, cfg); err != nil {
		return err
	}
	s.cfg = &cfg
	s.initialized = true
	return nil
}

// Current returns the configuration snapshot, which may originate from
// persistence rather than an in-process initialize.
func (s *Store) Current() (ProviderConfiguration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cfg == nil {
		return ProviderConfiguration{}, ErrNotConfigured
	}
	return *s.cfg, nil
}

// Ready reports whether a configuration is available.
func (s *Store) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg != nil
}

// Initialized reports whether Initialize succeeded in this process.
func (s *Store) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

// Close releases the persistence layer.
func (s *Store) Close() error {
	return s.persist.Close()
}
