package settings

import (
	"context"
	"errors"
	"testing"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(context.Background(), NewInMemoryPersistence())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return s
}

func TestInitializeFirstWriterWins(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	first := ProviderConfiguration{AppName: "Dialer", MaxCallGroups: 2, SupportsVideo: true}
	if err := s.Initialize(ctx, first); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	// A second initialize with a different configuration is a no-op
	// returning success.
	second := ProviderConfiguration{AppName: "Other", MaxCallGroups: 9}
	if err := s.Initialize(ctx, second); err != nil {
		t.Fatalf("second Initialize() error = %v", err)
	}

	got, err := s.Current()
	if err != nil {
		t.Fatalf("Current() error = %v", err)
	}
	if got.AppName != "Dialer" || got.MaxCallGroups != 2 || !got.SupportsVideo {
		t.Fatalf("Current() = %+v, want first configuration", got)
	}
}

func TestInitializeRejectsMissingAppName(t *testing.T) {
	s := newStore(t)
	err := s.Initialize(context.Background(), ProviderConfiguration{})
	if !errors.Is(err, ErrMissingAppName) {
		t.Fatalf("Initialize() error = %v, want ErrMissingAppName", err)
	}
	if s.Ready() {
		t.Fatalf("store ready after rejected initialize")
	}
}

func TestInitializeNormalizesGroupLimits(t *testing.T) {
	s := newStore(t)
	if err := s.Initialize(context.Background(), ProviderConfiguration{AppName: "Dialer"}); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	got, err := s.Current()
	if err != nil {
		t.Fatalf("Current() error = %v", err)
	}
	if got.MaxCallGroups != 1 || got.MaxCallsPerGroup != 1 {
		t.Fatalf("group limits = %d/%d, want 1/1", got.MaxCallGroups, got.MaxCallsPerGroup)
	}
}

func TestCurrentBeforeInitialize(t *testing.T) {
	s := newStore(t)
	if _, err := s.Current(); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("Current() error = %v, want ErrNotConfigured", err)
	}
}

func TestStoreReadsBackPersistedConfiguration(t *testing.T) {
	ctx := context.Background()
	persist := NewInMemoryPersistence()
	if err := persist.Save(ctx, ProviderConfiguration{AppName: "Dialer", MaxCallGroups: 3}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	s, err := NewStore(ctx, persist)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	got, err := s.Current()
	if err != nil {
		t.Fatalf("Current() error = %v", err)
	}
	if got.AppName != "Dialer" {
		t.Fatalf("Current().AppName = %q, want Dialer", got.AppName)
	}

	// Read-back makes the store ready but not initialized: the first
	// in-process initialize still wins.
	if s.Initialized() {
		t.Fatalf("store reports initialized before any in-process Initialize")
	}
	if err := s.Initialize(ctx, ProviderConfiguration{AppName: "Fresh"}); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	got, _ = s.Current()
	if got.AppName != "Fresh" {
		t.Fatalf("Current().AppName = %q, want Fresh", got.AppName)
	}
}
