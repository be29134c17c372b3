package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/6529-collections/tdh-indexer/pkg/model"
)

// GetBalance returns the current balance for one owner/contract/token, or
// zero when no row exists.
func (s *Store) GetBalance(ctx context.Context, owner, contract string, tokenID int64) (int64, error) {
	query := `
		SELECT balance FROM owned_balances
		WHERE owner = $1 AND contract = $2 AND token_id = $3
	`
	var balance int64
	err := s.q.QueryRowContext(ctx, query, owner, contract, tokenID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query balance: %w", err)
	}
	return balance, nil
}

// UpsertBalance writes a positive balance row.
func (s *Store) UpsertBalance(ctx context.Context, balance model.OwnershipBalance) error {
	query := `
		INSERT INTO owned_balances (owner, contract, token_id, balance)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (owner, contract, token_id)
		DO UPDATE SET balance = EXCLUDED.balance
	`
	_, err := s.q.ExecContext(ctx, query,
		balance.Owner, balance.Contract, balance.TokenID, balance.Balance)
	return err
}

// DeleteBalance removes a balance row that reached zero.
func (s *Store) DeleteBalance(ctx context.Context, owner, contract string, tokenID int64) error {
	query := `
		DELETE FROM owned_balances
		WHERE owner = $1 AND contract = $2 AND token_id = $3
	`
	_, err := s.q.ExecContext(ctx, query, owner, contract, tokenID)
	return err
}
