package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/indexd/internal/chunking"
	"github.com/fyrsmithlabs/indexd/internal/indexer"
)

// watermarkStore implements indexer.WatermarkStore. Monotonicity is
// enforced in the upsert itself: a regressing timestamp never wins.
type watermarkStore struct {
	store *Store
}

var _ indexer.WatermarkStore = (*watermarkStore)(nil)

func (w *watermarkStore) GetWatermark(ctx context.Context, scopeKey string, sourceType chunking.SourceType) (time.Time, error) {
	row := w.store.db.QueryRowContext(ctx, `
		SELECT ts FROM watermarks WHERE scope_key = ? AND source_type = ?
	`, scopeKey, string(sourceType))

	var ts time.Time
	if err := row.Scan(&ts); err != nil {
		if err == sql.ErrNoRows {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("reading watermark: %w", err)
	}
	return ts.UTC(), nil
}

func (w *watermarkStore) SetWatermark(ctx context.Context, scopeKey string, sourceType chunking.SourceType, ts time.Time) error {
	tx, err := w.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var current time.Time
	row := tx.QueryRowContext(ctx, `
		SELECT ts FROM watermarks WHERE scope_key = ? AND source_type = ?
	`, scopeKey, string(sourceType))
	if err := row.Scan(&current); err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("reading watermark: %w", err)
	}
	if !ts.After(current) {
		return nil
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO watermarks (scope_key, source_type, ts, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(scope_key, source_type) DO UPDATE SET
			ts = excluded.ts,
			updated_at = excluded.updated_at
	`, scopeKey, string(sourceType), ts.UTC(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("setting watermark: %w", err)
	}
	return tx.Commit()
}
