// Package ledger maintains the ownership-balance ledger. Balances only ever
// change through signed deltas folded from transfer records, and can never go
// negative.
package ledger

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/6529-collections/tdh-indexer/pkg/model"
	"github.com/6529-collections/tdh-indexer/pkg/tdherr"
)

// BalanceStore is the transactional slice of the store the ledger mutates.
type BalanceStore interface {
	GetBalance(ctx context.Context, owner, contract string, tokenID int64) (int64, error)
	UpsertBalance(ctx context.Context, balance model.OwnershipBalance) error
	DeleteBalance(ctx context.Context, owner, contract string, tokenID int64) error
}

// FoldDeltas folds a batch of transfer records into per-owner signed deltas.
// Outgoing legs are negative except for the null address and marketplace
// escrow addresses, whose outflows represent returns of custody rather than
// holdings.
func FoldDeltas(records []model.TransferRecord, escrowAddresses []string) []model.OwnershipDelta {
	type key struct {
		owner    string
		contract string
		tokenID  int64
	}
	deltas := make(map[key]int64)

	excluded := func(addr string) bool {
		if addr == nullAddress {
			return true
		}
		for _, e := range escrowAddresses {
			if strings.EqualFold(e, addr) {
				return true
			}
		}
		return false
	}

	for _, rec := range records {
		if !excluded(rec.From) {
			deltas[key{rec.From, rec.Contract, rec.TokenID}] -= rec.Count
		}
		if !excluded(rec.To) {
			deltas[key{rec.To, rec.Contract, rec.TokenID}] += rec.Count
		}
	}

	out := make([]model.OwnershipDelta, 0, len(deltas))
	for k, d := range deltas {
		if d == 0 {
			continue
		}
		out = append(out, model.OwnershipDelta{
			Owner:    k.owner,
			Contract: k.contract,
			TokenID:  k.tokenID,
			Delta:    d,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Owner != out[j].Owner {
			return out[i].Owner < out[j].Owner
		}
		if out[i].Contract != out[j].Contract {
			return out[i].Contract < out[j].Contract
		}
		return out[i].TokenID < out[j].TokenID
	})
	return out
}

const nullAddress = "0x0000000000000000000000000000000000000000"

// Apply applies deltas against the store. A delta driving any balance below
// zero fails the whole batch with LedgerInvariantViolation; callers run Apply
// inside a transaction so nothing is committed in that case. Zero balances
// are deleted, never retained.
func Apply(ctx context.Context, store BalanceStore, deltas []model.OwnershipDelta) error {
	for _, d := range deltas {
		current, err := store.GetBalance(ctx, d.Owner, d.Contract, d.TokenID)
		if err != nil {
			return fmt.Errorf("read balance for %s/%s/%d: %w", d.Owner, d.Contract, d.TokenID, err)
		}
		next := current + d.Delta
		switch {
		case next < 0:
			return tdherr.LedgerInvariant(fmt.Sprintf(
				"balance for %s %s token %d would become %d (current %d, delta %d)",
				d.Owner, d.Contract, d.TokenID, next, current, d.Delta))
		case next == 0:
			if err := store.DeleteBalance(ctx, d.Owner, d.Contract, d.TokenID); err != nil {
				return fmt.Errorf("delete zero balance: %w", err)
			}
		default:
			if err := store.UpsertBalance(ctx, model.OwnershipBalance{
				Owner:    d.Owner,
				Contract: d.Contract,
				TokenID:  d.TokenID,
				Balance:  next,
			}); err != nil {
				return fmt.Errorf("upsert balance: %w", err)
			}
		}
	}
	return nil
}
