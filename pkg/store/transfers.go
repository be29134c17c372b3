package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/6529-collections/tdh-indexer/pkg/model"
)

const transferColumns = `
	tx_hash, block, block_time, from_address, to_address, contract,
	token_id, token_count, value, royalties, primary_proceeds,
	gas_cost, gas_price_gwei, resolved`

// UpsertTransfers writes a batch of transfer records. Re-inserting a record
// with the same natural key overwrites it, which makes window re-scans
// idempotent.
func (s *Store) UpsertTransfers(ctx context.Context, records []model.TransferRecord) error {
	query := `
		INSERT INTO transfers (` + transferColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (tx_hash, from_address, to_address, contract, token_id)
		DO UPDATE SET
			block = EXCLUDED.block,
			block_time = EXCLUDED.block_time,
			token_count = EXCLUDED.token_count,
			value = EXCLUDED.value,
			royalties = EXCLUDED.royalties,
			primary_proceeds = EXCLUDED.primary_proceeds,
			gas_cost = EXCLUDED.gas_cost,
			gas_price_gwei = EXCLUDED.gas_price_gwei,
			resolved = EXCLUDED.resolved
	`
	for _, rec := range records {
		_, err := s.q.ExecContext(ctx, query,
			rec.TxHash, rec.Block, rec.Timestamp, rec.From, rec.To,
			rec.Contract, rec.TokenID, rec.Count, rec.Value, rec.Royalties,
			rec.PrimaryProceeds, rec.GasCost, rec.GasPriceGwei, rec.Resolved,
		)
		if err != nil {
			return fmt.Errorf("upsert transfer %s: %w", rec.TxHash, err)
		}
	}
	return nil
}

// UnresolvedTransfers returns transfers whose economic fields still need the
// resolver pass, oldest first.
func (s *Store) UnresolvedTransfers(ctx context.Context, limit int) ([]model.TransferRecord, error) {
	query := `
		SELECT ` + transferColumns + `
		FROM transfers
		WHERE resolved = FALSE
		ORDER BY block ASC, tx_hash ASC
		LIMIT $1
	`
	rows, err := s.q.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query unresolved transfers: %w", err)
	}
	defer rows.Close()
	return scanTransfers(rows)
}

// TransfersForWallets returns every transfer touching any of the wallets on
// the given contracts up to the block, ordered for replay.
func (s *Store) TransfersForWallets(ctx context.Context, wallets, contracts []string, upToBlock uint64) ([]model.TransferRecord, error) {
	query := `
		SELECT ` + transferColumns + `
		FROM transfers
		WHERE (from_address = ANY($1) OR to_address = ANY($1))
		  AND contract = ANY($2)
		  AND block <= $3
		ORDER BY block_time ASC, block ASC, tx_hash ASC
	`
	rows, err := s.q.QueryContext(ctx, query,
		pq.Array(wallets), pq.Array(contracts), upToBlock)
	if err != nil {
		return nil, fmt.Errorf("query wallet transfers: %w", err)
	}
	defer rows.Close()
	return scanTransfers(rows)
}

// TransactionsFilter narrows a transaction history query. Zero-valued fields
// are ignored.
type TransactionsFilter struct {
	Wallets  []string
	Contract string
	From     time.Time
	To       time.Time
}

// TransactionsPage returns one page of transfer history matching the filter,
// newest first, with the total row count for pagination.
func (s *Store) TransactionsPage(ctx context.Context, filter TransactionsFilter, page, pageSize int) ([]model.TransferRecord, int, error) {
	if page < 1 {
		page = 1
	}

	where := "TRUE"
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if len(filter.Wallets) > 0 {
		p := arg(pq.Array(filter.Wallets))
		where += fmt.Sprintf(" AND (from_address = ANY(%s) OR to_address = ANY(%s))", p, p)
	}
	if filter.Contract != "" {
		where += fmt.Sprintf(" AND contract = %s", arg(filter.Contract))
	}
	if !filter.From.IsZero() {
		where += fmt.Sprintf(" AND block_time >= %s", arg(filter.From))
	}
	if !filter.To.IsZero() {
		where += fmt.Sprintf(" AND block_time <= %s", arg(filter.To))
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM transfers WHERE " + where
	if err := s.q.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	query := `
		SELECT ` + transferColumns + `
		FROM transfers
		WHERE ` + where + `
		ORDER BY block DESC, tx_hash DESC
		LIMIT ` + arg(pageSize) + ` OFFSET ` + arg((page-1)*pageSize)
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query transactions page: %w", err)
	}
	defer rows.Close()

	records, err := scanTransfers(rows)
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// Owners returns every address currently holding a balance on the contracts.
func (s *Store) Owners(ctx context.Context, contracts []string) ([]string, error) {
	query := `
		SELECT DISTINCT owner FROM owned_balances
		WHERE contract = ANY($1)
		ORDER BY owner
	`
	rows, err := s.q.QueryContext(ctx, query, pq.Array(contracts))
	if err != nil {
		return nil, fmt.Errorf("query owners: %w", err)
	}
	defer rows.Close()

	var owners []string
	for rows.Next() {
		var owner string
		if err := rows.Scan(&owner); err != nil {
			return nil, err
		}
		owners = append(owners, owner)
	}
	return owners, rows.Err()
}

// EditionSizes computes the net minted supply per token on a contract as of
// the cutoff: mints from the null address minus burns back to it.
func (s *Store) EditionSizes(ctx context.Context, contract string, until time.Time) (map[int64]int64, error) {
	query := `
		SELECT token_id,
		       SUM(CASE WHEN from_address = $1 THEN token_count ELSE -token_count END)
		FROM transfers
		WHERE contract = $2
		  AND block_time <= $3
		  AND (from_address = $1 OR to_address = $1)
		GROUP BY token_id
	`
	rows, err := s.q.QueryContext(ctx, query, nullAddress, contract, until)
	if err != nil {
		return nil, fmt.Errorf("query edition sizes: %w", err)
	}
	defer rows.Close()

	sizes := map[int64]int64{}
	for rows.Next() {
		var tokenID, size int64
		if err := rows.Scan(&tokenID, &size); err != nil {
			return nil, err
		}
		if size > 0 {
			sizes[tokenID] = size
		}
	}
	return sizes, rows.Err()
}

const nullAddress = "0x0000000000000000000000000000000000000000"

func scanTransfers(rows *sql.Rows) ([]model.TransferRecord, error) {
	var records []model.TransferRecord
	for rows.Next() {
		var rec model.TransferRecord
		err := rows.Scan(
			&rec.TxHash, &rec.Block, &rec.Timestamp, &rec.From, &rec.To,
			&rec.Contract, &rec.TokenID, &rec.Count, &rec.Value,
			&rec.Royalties, &rec.PrimaryProceeds, &rec.GasCost,
			&rec.GasPriceGwei, &rec.Resolved,
		)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
