package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"

	"taskweave/internal/core"
)

// Postgres keeps completion records in a single table.
type Postgres struct {
	db *sql.DB

	schemaReady setup
}

// NewPostgres opens dsn with the pgx driver and checks the connection.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Postgres{db: db}, nil
}

// NewPostgresDB uses an already opened database.
func NewPostgresDB(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) Close() error { return p.db.Close() }

func (p *Postgres) ensureSchema(ctx context.Context) error {
	return p.schemaReady.do(ctx, func(ctx context.Context) error {
		_, err := p.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS taskweave_completions (
  hash TEXT PRIMARY KEY,
  identity_key TEXT NOT NULL,
  task_type TEXT NOT NULL,
  record JSONB NOT NULL,
  completed_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_taskweave_completions_task_type ON taskweave_completions (task_type);
`)
		return err
	})
}

func (p *Postgres) IsComplete(ctx context.Context, id core.Identity) (bool, error) {
	if err := p.ensureSchema(ctx); err != nil {
		return false, fmt.Errorf("ensure schema: %w", err)
	}
	var one int
	err := p.db.QueryRowContext(ctx, `SELECT 1 FROM taskweave_completions WHERE hash = $1`, id.Hash()).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query completion: %w", err)
	}
	return true, nil
}

func (p *Postgres) MarkComplete(ctx context.Context, id core.Identity, outputs core.Outputs) error {
	data, err := encodeRecord(id, outputs)
	if err != nil {
		return err
	}
	if err := p.ensureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	_, err = p.db.ExecContext(ctx, `
INSERT INTO taskweave_completions (hash, identity_key, task_type, record)
VALUES ($1,$2,$3,$4)
ON CONFLICT (hash)
DO UPDATE SET identity_key=EXCLUDED.identity_key,
  task_type=EXCLUDED.task_type,
  record=EXCLUDED.record,
  completed_at=NOW()`, id.Hash(), id.String(), id.Type(), string(data))
	if err != nil {
		return fmt.Errorf("insert completion: %w", err)
	}
	return nil
}

func (p *Postgres) LoadOutputs(ctx context.Context, id core.Identity) (core.Outputs, error) {
	if err := p.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	var data string
	err := p.db.QueryRowContext(ctx, `SELECT record FROM taskweave_completions WHERE hash = $1`, id.Hash()).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("query completion: %w", err)
	}
	return decodeRecord(id, []byte(data))
}
