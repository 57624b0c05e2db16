package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresPersistence keeps the settings blob in a single-row table so
// the provider can be re-registered before the application initializes
// again.
type PostgresPersistence struct {
	pool *pgxpool.Pool
}

func NewPostgresPersistence(ctx context.Context, databaseURL string) (*PostgresPersistence, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresPersistence{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS provider_settings (
			id TEXT PRIMARY KEY,
			config JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

const settingsKey = "provider"

func (p *PostgresPersistence) Load(ctx context.Context) (*ProviderConfiguration, error) {
	var raw []byte
	err := p.pool.QueryRow(ctx,
		`SELECT config FROM provider_settings WHERE id = $1`, settingsKey,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	var cfg ProviderConfiguration
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	return &cfg, nil
}

func (p *PostgresPersistence) Save(ctx context.Context, cfg ProviderConfiguration) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	_, err = p.pool.Exec(ctx,
		`INSERT INTO provider_settings (id, config, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (id) DO UPDATE SET config = EXCLUDED.config, updated_at = now()`,
		settingsKey, raw,
	)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

func (p *PostgresPersistence) Close() error {
	p.pool.Close()
	return nil
}
