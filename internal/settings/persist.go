package settings

import (
	"context"
	"strings"
	"sync"
)

// Persistence stores the single provider-settings blob.
type Persistence interface {
	// Load returns the last saved configuration, or nil when none was
	// ever saved.
	Load(ctx context.Context) (*ProviderConfiguration, error)
	Save(ctx context.Context, cfg ProviderConfiguration) error
	Close() error
}

// NewPersistence creates a Postgres-backed persistence when configured,
// otherwise in-memory.
func NewPersistence(ctx context.Context, databaseURL string) (Persistence, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return NewInMemoryPersistence(), nil
	}
	return NewPostgresPersistence(ctx, databaseURL)
}

// InMemoryPersistence keeps the blob for the process lifetime only.
type InMemoryPersistence struct {
	mu  sync.Mutex
	cfg *ProviderConfiguration
}

func NewInMemoryPersistence() *InMemoryPersistence {
	return &InMemoryPersistence{}
}

func (p *InMemoryPersistence) Load(_ context.Context) (*ProviderConfiguration, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cfg == nil {
		return nil, nil
	}
	c := *p.cfg
	return &c, nil
}

func (p *InMemoryPersistence) Save(_ context.Context, cfg ProviderConfiguration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cfg = &cfg
	return nil
}

func (p *InMemoryPersistence) Close() error { return nil }
