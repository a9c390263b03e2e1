package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// GetMetadata reads one app metadata value
func (db *Database) GetMetadata(ctx context.Context, key string) (value string, ok bool, err error) {
	start := time.Now()
	defer func() { observe("select", "app_metadata", start, err) }()

	err = db.q.QueryRow(ctx, `SELECT value FROM app_metadata WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get metadata %s: %w", key, err)
	}
	return value, true, nil
}

// SetMetadata upserts one app metadata value
func (db *Database) SetMetadata(ctx context.Context, key, value string) (err error) {
	start := time.Now()
	defer func() { observe("upsert", "app_metadata", start, err) }()

	query := `
		INSERT INTO app_metadata (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = NOW()
	`

	if _, err = db.q.Exec(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to set metadata %s: %w", key, err)
	}
	return nil
}
