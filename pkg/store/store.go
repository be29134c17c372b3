// Package store is the Postgres persistence layer for the indexer.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/6529-collections/tdh-indexer/internal/metrics"
	"github.com/6529-collections/tdh-indexer/pkg/tdherr"
)

// querier is satisfied by both *sql.DB and *sql.Tx so every query method
// works inside and outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store provides database operations for the indexer.
type Store struct {
	db     *sql.DB
	q      querier
	logger *zap.Logger
}

// NewStore creates a new database store.
func NewStore(connString string, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open("postgres", connString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db, q: db, logger: logger}, nil
}

// NewStoreFromDB wraps an existing connection, mainly for tests.
func NewStoreFromDB(db *sql.DB, logger *zap.Logger) *Store {
	return &Store{db: db, q: db, logger: logger}
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

const (
	lockRetryAttempts = 5
	lockRetryDelay    = 200 * time.Millisecond
)

// lockConflict reports whether the error is a serialization failure,
// deadlock, or lock-not-available condition worth retrying.
func lockConflict(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	switch string(pqErr.Code) {
	case "40001", "40P01", "55P03":
		return true
	}
	return false
}

// WithTx runs fn inside a transaction bound to a store copy. Lock conflicts
// roll back and retry with linear backoff; after the attempts run out the
// error surfaces as StoreLocked.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Store) error) error {
	var lastErr error
	for attempt := 1; attempt <= lockRetryAttempts; attempt++ {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}

		err = fn(&Store{db: s.db, q: tx, logger: s.logger})
		if err == nil {
			if err = tx.Commit(); err == nil {
				return nil
			}
		} else {
			_ = tx.Rollback()
		}

		if !lockConflict(err) {
			return err
		}
		lastErr = err
		metrics.StoreRetries.Inc()
		s.logger.Warn("Transaction hit lock conflict, retrying",
			zap.Int("attempt", attempt),
			zap.Error(err))

		select {
		case <-time.After(lockRetryDelay * time.Duration(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return tdherr.StoreLocked(fmt.Errorf("transaction retries exhausted: %w", lastErr))
}
