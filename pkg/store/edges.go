package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/6529-collections/tdh-indexer/pkg/model"
)

// GetEdge returns the consolidation edge for an unordered wallet pair, or nil
// when none exists.
func (s *Store) GetEdge(ctx context.Context, walletA, walletB string) (*model.ConsolidationEdge, error) {
	query := `
		SELECT wallet_a, wallet_b, block, confirmed
		FROM consolidation_edges
		WHERE LEAST(wallet_a, wallet_b) = LEAST($1::text, $2::text)
		  AND GREATEST(wallet_a, wallet_b) = GREATEST($1::text, $2::text)
	`
	edge := &model.ConsolidationEdge{}
	err := s.q.QueryRowContext(ctx, query, walletA, walletB).Scan(
		&edge.WalletA, &edge.WalletB, &edge.Block, &edge.Confirmed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query edge: %w", err)
	}
	return edge, nil
}

// UpsertEdge replaces whatever edge exists for the unordered pair.
func (s *Store) UpsertEdge(ctx context.Context, edge model.ConsolidationEdge) error {
	if err := s.DeleteEdge(ctx, edge.WalletA, edge.WalletB); err != nil {
		return err
	}
	query := `
		INSERT INTO consolidation_edges (wallet_a, wallet_b, block, confirmed)
		VALUES ($1, $2, $3, $4)
	`
	_, err := s.q.ExecContext(ctx, query,
		edge.WalletA, edge.WalletB, edge.Block, edge.Confirmed)
	return err
}

// DeleteEdge removes the edge for an unordered wallet pair.
func (s *Store) DeleteEdge(ctx context.Context, walletA, walletB string) error {
	query := `
		DELETE FROM consolidation_edges
		WHERE LEAST(wallet_a, wallet_b) = LEAST($1::text, $2::text)
		  AND GREATEST(wallet_a, wallet_b) = GREATEST($1::text, $2::text)
	`
	_, err := s.q.ExecContext(ctx, query, walletA, walletB)
	return err
}

// ConfirmedEdgesTouching returns every confirmed edge with at least one
// endpoint among the wallets.
func (s *Store) ConfirmedEdgesTouching(ctx context.Context, wallets []string) ([]model.ConsolidationEdge, error) {
	query := `
		SELECT wallet_a, wallet_b, block, confirmed
		FROM consolidation_edges
		WHERE confirmed = TRUE
		  AND (wallet_a = ANY($1) OR wallet_b = ANY($1))
		ORDER BY block DESC, wallet_a ASC, wallet_b ASC
	`
	rows, err := s.q.QueryContext(ctx, query, pq.Array(wallets))
	if err != nil {
		return nil, fmt.Errorf("query confirmed edges: %w", err)
	}
	defer rows.Close()

	var edges []model.ConsolidationEdge
	for rows.Next() {
		var edge model.ConsolidationEdge
		if err := rows.Scan(&edge.WalletA, &edge.WalletB, &edge.Block, &edge.Confirmed); err != nil {
			return nil, err
		}
		edges = append(edges, edge)
	}
	return edges, rows.Err()
}

// ConfirmedEdgeWallets returns every wallet that participates in at least one
// confirmed consolidation edge.
func (s *Store) ConfirmedEdgeWallets(ctx context.Context) ([]string, error) {
	query := `
		SELECT wallet_a FROM consolidation_edges WHERE confirmed = TRUE
		UNION
		SELECT wallet_b FROM consolidation_edges WHERE confirmed = TRUE
	`
	rows, err := s.q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query edge wallets: %w", err)
	}
	defer rows.Close()

	var wallets []string
	for rows.Next() {
		var w string
		if err := rows.Scan(&w); err != nil {
			return nil, err
		}
		wallets = append(wallets, w)
	}
	return wallets, rows.Err()
}

// InsertDelegation appends a delegation registration.
func (s *Store) InsertDelegation(ctx context.Context, edge model.DelegationEdge) error {
	query := `
		INSERT INTO delegations (
			from_wallet, to_wallet, block, collection, use_case,
			expiry, all_tokens, token_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.q.ExecContext(ctx, query,
		edge.FromWallet, edge.ToWallet, edge.Block, edge.Collection,
		edge.UseCase, edge.Expiry, edge.AllTokens, edge.TokenID,
	)
	return err
}

// DeleteDelegationsBefore removes matching delegations registered strictly
// before the given block.
func (s *Store) DeleteDelegationsBefore(ctx context.Context, fromWallet, toWallet, collection string, useCase int64, block uint64) error {
	query := `
		DELETE FROM delegations
		WHERE from_wallet = $1 AND to_wallet = $2
		  AND collection = $3 AND use_case = $4
		  AND block < $5
	`
	_, err := s.q.ExecContext(ctx, query, fromWallet, toWallet, collection, useCase, block)
	return err
}
