package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/raaihank/aegis-shield/internal/config"
	"github.com/raaihank/aegis-shield/internal/logger"
	"github.com/raaihank/aegis-shield/internal/privacy"
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Postgres stores mappings as jsonb rows keyed by session
type Postgres struct {
	db     *sqlx.DB
	table  string
	ttl    time.Duration
	logger *logger.Logger
}

type mappingRow struct {
	Key     string `db:"key"`
	Mapping []byte `db:"mapping"`
}

// NewPostgres connects, configures the pool and creates the table if needed
func NewPostgres(ctx context.Context, cfg config.StoreConfig, log *logger.Logger) (*Postgres, error) {
	if !tableName.MatchString(cfg.Postgres.Table) {
		return nil, fmt.Errorf("invalid postgres table name: %q", cfg.Postgres.Table)
	}

	db, err := sqlx.Connect("postgres", cfg.Postgres.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Postgres.ConnMaxLifetime)

	p := &Postgres{
		db:     db,
		table:  cfg.Postgres.Table,
		ttl:    cfg.TTL,
		logger: log,
	}

	if err := p.initialize(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	log.Info("Postgres mapping store initialized",
		zap.String("database_url", maskURL(cfg.Postgres.DatabaseURL)),
		zap.String("table", p.table),
		zap.Int("max_open_conns", cfg.Postgres.MaxOpenConns),
	)
	return p, nil
}

func (p *Postgres) initialize(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := p.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			key        TEXT PRIMARY KEY,
			mapping    JSONB NOT NULL,
			expires_at TIMESTAMPTZ,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, p.table)
	if _, err := p.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create table %s: %w", p.table, err)
	}
	return nil
}

// Get selects all unexpired keys in one query
func (p *Postgres) Get(ctx context.Context, keys ...string) (map[string]privacy.Mapping, error) {
	out := make(map[string]privacy.Mapping, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	query := fmt.Sprintf(`
		SELECT key, mapping FROM %s
		WHERE key = ANY($1) AND (expires_at IS NULL OR expires_at > now())`, p.table)

	var rows []mappingRow
	if err := p.db.SelectContext(ctx, &rows, query, pq.Array(keys)); err != nil {
		return nil, fmt.Errorf("failed to read mappings: %w", err)
	}

	for _, row := range rows {
		var mapping privacy.Mapping
		if err := json.Unmarshal(row.Mapping, &mapping); err != nil {
			p.logger.Error("Failed to unmarshal stored mapping", zap.Error(err))
			continue
		}
		out[row.Key] = mapping
	}
	return out, nil
}

// Set upserts every item in one transaction
func (p *Postgres) Set(ctx context.Context, items map[string]privacy.Mapping) error {
	if len(items) == 0 {
		return nil
	}

	var expires sql.NullTime
	if p.ttl > 0 {
		expires = sql.NullTime{Time: time.Now().Add(p.ttl), Valid: true}
	}

	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`
		INSERT INTO %s (key, mapping, expires_at, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (key) DO UPDATE
		SET mapping = EXCLUDED.mapping, expires_at = EXCLUDED.expires_at, updated_at = now()`, p.table)

	for key, mapping := range items {
		data, err := json.Marshal(mapping)
		if err != nil {
			return fmt.Errorf("failed to marshal mapping: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, key, data, expires); err != nil {
			return fmt.Errorf("failed to write mapping: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit mappings: %w", err)
	}
	return nil
}

// Remove deletes keys
func (p *Postgres) Remove(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE key = ANY($1)`, p.table)
	if _, err := p.db.ExecContext(ctx, query, pq.Array(keys)); err != nil {
		return fmt.Errorf("failed to remove mappings: %w", err)
	}
	return nil
}

// Close closes the database connection
func (p *Postgres) Close() error {
	return p.db.Close()
}
