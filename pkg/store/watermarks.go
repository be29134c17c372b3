package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/6529-collections/tdh-indexer/pkg/model"
)

// GetWatermark returns the watermark for a namespace, or nil when the stream
// has never run.
func (s *Store) GetWatermark(ctx context.Context, namespace string) (*model.Watermark, error) {
	query := `
		SELECT namespace, block, block_time FROM watermarks WHERE namespace = $1
	`
	wm := &model.Watermark{}
	err := s.q.QueryRowContext(ctx, query, namespace).Scan(&wm.Namespace, &wm.Block, &wm.Timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query watermark %s: %w", namespace, err)
	}
	return wm, nil
}

// SetWatermark advances a namespace watermark. Callers persist it in the same
// transaction as the window's rows so progress and data commit atomically.
func (s *Store) SetWatermark(ctx context.Context, wm model.Watermark) error {
	query := `
		INSERT INTO watermarks (namespace, block, block_time)
		VALUES ($1, $2, $3)
		ON CONFLICT (namespace)
		DO UPDATE SET block = EXCLUDED.block, block_time = EXCLUDED.block_time
	`
	_, err := s.q.ExecContext(ctx, query, wm.Namespace, wm.Block, wm.Timestamp)
	return err
}
