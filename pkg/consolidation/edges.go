// Package consolidation resolves wallet-consolidation registrations into
// bounded identity clusters.
package consolidation

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/6529-collections/tdh-indexer/pkg/model"
)

// EdgeStore persists consolidation edges. At most one row exists per
// unordered wallet pair; WalletA is the registering side while the edge is
// unconfirmed.
type EdgeStore interface {
	GetEdge(ctx context.Context, walletA, walletB string) (*model.ConsolidationEdge, error)
	UpsertEdge(ctx context.Context, edge model.ConsolidationEdge) error
	DeleteEdge(ctx context.Context, walletA, walletB string) error
	ConfirmedEdgesTouching(ctx context.Context, wallets []string) ([]model.ConsolidationEdge, error)
}

// DelegationStore persists the append-only delegation registry.
type DelegationStore interface {
	InsertDelegation(ctx context.Context, edge model.DelegationEdge) error
	DeleteDelegationsBefore(ctx context.Context, fromWallet, toWallet, collection string, useCase int64, block uint64) error
}

// Resolver applies consolidation events and answers cluster queries.
type Resolver struct {
	edges       EdgeStore
	delegations DelegationStore
	logger      *zap.Logger
}

// NewResolver creates a consolidation resolver.
func NewResolver(edges EdgeStore, delegations DelegationStore, logger *zap.Logger) *Resolver {
	return &Resolver{edges: edges, delegations: delegations, logger: logger}
}

// Register applies a consolidation registration from walletA towards walletB.
// A registration in the reverse direction of an existing unconfirmed edge
// confirms it; repeats are no-ops.
func (r *Resolver) Register(ctx context.Context, walletA, walletB string, block uint64) error {
	a, b := strings.ToLower(walletA), strings.ToLower(walletB)
	if a == b {
		return nil
	}

	edge, err := r.edges.GetEdge(ctx, a, b)
	if err != nil {
		return fmt.Errorf("lookup edge: %w", err)
	}
	switch {
	case edge == nil:
		return r.edges.UpsertEdge(ctx, model.ConsolidationEdge{
			WalletA: a, WalletB: b, Block: block,
		})
	case edge.Confirmed:
		return nil
	case edge.WalletA == a:
		// Same direction already registered.
		return nil
	default:
		// Mutual registration observed: the reverse side registered earlier.
		r.logger.Info("Consolidation confirmed",
			zap.String("wallet_a", a),
			zap.String("wallet_b", b),
			zap.Uint64("block", block))
		return r.edges.UpsertEdge(ctx, model.ConsolidationEdge{
			WalletA: a, WalletB: b, Block: block, Confirmed: true,
		})
	}
}

// Revoke applies a consolidation revocation by walletA towards walletB.
// Revoking one side of a confirmed edge demotes it to unconfirmed in the
// other direction, since the reverse registration still stands.
func (r *Resolver) Revoke(ctx context.Context, walletA, walletB string, block uint64) error {
	a, b := strings.ToLower(walletA), strings.ToLower(walletB)
	if a == b {
		return nil
	}

	edge, err := r.edges.GetEdge(ctx, a, b)
	if err != nil {
		return fmt.Errorf("lookup edge: %w", err)
	}
	switch {
	case edge == nil:
		return nil
	case edge.Confirmed:
		return r.edges.UpsertEdge(ctx, model.ConsolidationEdge{
			WalletA: b, WalletB: a, Block: block,
		})
	case edge.WalletA == a:
		return r.edges.DeleteEdge(ctx, a, b)
	default:
		// Unconfirmed in the other direction: nothing to revoke.
		return nil
	}
}

// Delegate records a non-consolidation delegation registration.
func (r *Resolver) Delegate(ctx context.Context, edge model.DelegationEdge) error {
	edge.FromWallet = strings.ToLower(edge.FromWallet)
	edge.ToWallet = strings.ToLower(edge.ToWallet)
	return r.delegations.InsertDelegation(ctx, edge)
}

// RevokeDelegation removes matching delegation edges registered strictly
// before the revocation block.
func (r *Resolver) RevokeDelegation(ctx context.Context, fromWallet, toWallet, collection string, useCase int64, block uint64) error {
	return r.delegations.DeleteDelegationsBefore(ctx,
		strings.ToLower(fromWallet), strings.ToLower(toWallet), collection, useCase, block)
}

// Key builds the canonical consolidation key for a cluster.
func Key(wallets []string) string {
	return strings.Join(wallets, "-")
}
