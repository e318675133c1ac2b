package postgres

import (
	"context"
	"fmt"

	"github.com/FranksOps/stylus/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ensure postgresBackend implements storage.Backend
var _ storage.Backend = (*postgresBackend)(nil)

type postgresBackend struct {
	pool *pgxpool.Pool
}

const schema = `
CREATE TABLE IF NOT EXISTS stylus_kv (
	key TEXT PRIMARY KEY,
	value JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// New creates a new Postgres-backed storage.Backend.
func New(ctx context.Context, dsn string) (storage.Backend, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	_, err = pool.Exec(ctx, schema)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &postgresBackend{pool: pool}, nil
}

func (b *postgresBackend) Get(ctx context.Context, keys ...string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	rows, err := b.pool.Query(ctx, `SELECT key, value FROM stylus_kv WHERE key = ANY($1)`, keys)
	if err != nil {
		return nil, fmt.Errorf("query kv: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan kv: %w", err)
		}
		out[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate kv: %w", err)
	}
	return out, nil
}

func (b *postgresBackend) Set(ctx context.Context, values map[string][]byte) error {
	return pgx.BeginFunc(ctx, b.pool, func(tx pgx.Tx) error {
		query := `
		INSERT INTO stylus_kv (key, value, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
		`
		for k, v := range values {
			if _, err := tx.Exec(ctx, query, k, string(v)); err != nil {
				return fmt.Errorf("upsert %q: %w", k, err)
			}
		}
		return nil
	})
}

func (b *postgresBackend) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if _, err := b.pool.Exec(ctx, `DELETE FROM stylus_kv WHERE key = ANY($1)`, keys); err != nil {
		return fmt.Errorf("delete keys: %w", err)
	}
	return nil
}

func (b *postgresBackend) Clear(ctx context.Context) error {
	if _, err := b.pool.Exec(ctx, `DELETE FROM stylus_kv`); err != nil {
		return fmt.Errorf("clear kv: %w", err)
	}
	return nil
}

func (b *postgresBackend) Close() error {
	b.pool.Close()
	return nil
}
