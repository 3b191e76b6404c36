package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// PostgresStore is a Store backed by a single Postgres table holding one
// JSONB payload per composite key. All entity types share the same layout
// (key, data, created_at, updated_at) so backends can be swapped without
// schema work per type.
type PostgresStore[T any] struct {
	db     *sql.DB
	table  string
	logger *zap.Logger
}

// NewPostgresStore creates a store over the named table, creating the
// table if it does not exist.
func NewPostgresStore[T any](db *sql.DB, table string, logger *zap.Logger) (*PostgresStore[T], error) {
	s := &PostgresStore[T]{db: db, table: table, logger: logger}
	if err := s.ensureTable(); err != nil {
		return nil, fmt.Errorf("failed to ensure table %s: %w", table, err)
	}
	return s, nil
}

func (s *PostgresStore[T]) ensureTable() error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			key TEXT PRIMARY KEY,
			data JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`, s.table)
	_, err := s.db.Exec(query)
	return err
}

// Put stores or replaces the value at key using upsert
func (s *PostgresStore[T]) Put(key string, value T) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (key, data, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key)
		DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at
	`, s.table)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, query, key, data, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to upsert key %s: %w", key, err)
	}
	return nil
}

// Get returns the value at key and whether it exists
func (s *PostgresStore[T]) Get(key string) (T, bool, error) {
	var zero T
	query := fmt.Sprintf(`SELECT data FROM %s WHERE key = $1`, s.table)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var data []byte
	err := s.db.QueryRowContext(ctx, query, key).Scan(&data)
	if err == sql.ErrNoRows {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("failed to query key %s: %w", key, err)
	}

	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		return zero, false, fmt.Errorf("failed to unmarshal value for key %s: %w", key, err)
	}
	return value, true, nil
}

// List returns all values whose key starts with prefix, oldest first
func (s *PostgresStore[T]) List(prefix string) ([]T, error) {
	query := fmt.Sprintf(`
		SELECT data FROM %s
		WHERE key LIKE $1 || '%%'
		ORDER BY created_at ASC
	`, s.table)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, query, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list prefix %s: %w", prefix, err)
	}
	defer rows.Close()

	values := make([]T, 0)
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		var value T
		if err := json.Unmarshal(data, &value); err != nil {
			s.logger.Warn("skipping row with malformed payload",
				zap.String("table", s.table),
				zap.Error(err))
			continue
		}
		values = append(values, value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return values, nil
}

// Delete removes the value at key, reporting whether it existed
func (s *PostgresStore[T]) Delete(key string) (bool, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE key = $1`, s.table)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result, err := s.db.ExecContext(ctx, query, key)
	if err != nil {
		return false, fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected > 0, nil
}

// Exists reports whether key is present
func (s *PostgresStore[T]) Exists(key string) (bool, error) {
	query := fmt.Sprintf(`SELECT 1 FROM %s WHERE key = $1`, s.table)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var one int
	err := s.db.QueryRowContext(ctx, query, key).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check key %s: %w", key, err)
	}
	return true, nil
}
