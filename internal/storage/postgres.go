package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const dbTimeout = 5 * time.Second

// PostgresBackend stores entries in the study_kv table, one row per
// (namespace, key).
type PostgresBackend struct {
	pool      *pgxpool.Pool
	namespace string
}

// NewPostgresBackend creates a PostgreSQL-backed store scoped to namespace.
// The study_kv table must exist (see database.EnsureSchema).
func NewPostgresBackend(pool *pgxpool.Pool, namespace string) (*PostgresBackend, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	if namespace == "" {
		namespace = "default"
	}
	return &PostgresBackend{pool: pool, namespace: namespace}, nil
}

func (b *PostgresBackend) Read(key string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()

	var value string
	err := b.pool.QueryRow(ctx,
		`SELECT value FROM study_kv WHERE namespace = $1 AND key = $2`,
		b.namespace,
		key,
	).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read %s: %w", key, err)
	}
	return value, true, nil
}

func (b *PostgresBackend) Write(key, value string) error {
	if key == "" {
		return fmt.Errorf("key is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()

	_, err := b.pool.Exec(ctx,
		`INSERT INTO study_kv (namespace, key, value, updated_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (namespace, key)
		 DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		b.namespace,
		key,
		value,
	)
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func (b *PostgresBackend) Delete(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()

	if _, err := b.pool.Exec(ctx,
		`DELETE FROM study_kv WHERE namespace = $1 AND key = $2`,
		b.namespace,
		key,
	); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}
