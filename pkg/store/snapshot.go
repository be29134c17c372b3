package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/6529-collections/tdh-indexer/pkg/model"
)

const snapshotColumns = `
	consolidation_key, wallets, block, snapshot_date,
	raw_tdh, boost, boosted_tdh,
	memes_tdh, memes_boosted_tdh, memes_raw_tdh, memes_balance,
	gradients_tdh, gradients_boosted_tdh, gradients_balance,
	nextgen_tdh, nextgen_boosted_tdh, nextgen_balance, total_balance,
	memes_set_count, has_genesis, has_nakamoto,
	rank_global, rank_memes, rank_gradients, rank_nextgen,
	memes_scores, gradients_scores, nextgen_scores`

// ReplaceSnapshot persists a scoring snapshot atomically. A nil target list
// replaces the whole table; otherwise only rows for the target consolidation
// keys are swapped out.
func (s *Store) ReplaceSnapshot(ctx context.Context, rows []model.WalletSnapshot, targets []string) error {
	return s.WithTx(ctx, func(tx *Store) error {
		if targets == nil {
			if _, err := tx.q.ExecContext(ctx, `DELETE FROM tdh`); err != nil {
				return fmt.Errorf("clear snapshot: %w", err)
			}
		} else {
			query := `
				DELETE FROM tdh
				WHERE consolidation_key = ANY($1)
				   OR wallets && (SELECT COALESCE(array_agg(w), '{}') FROM unnest($2::text[]) AS w)
			`
			wallets := targetWallets(rows)
			if _, err := tx.q.ExecContext(ctx, query, pq.Array(targets), pq.Array(wallets)); err != nil {
				return fmt.Errorf("trim snapshot rows: %w", err)
			}
		}

		query := `
			INSERT INTO tdh (` + snapshotColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
				$14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25,
				$26, $27, $28)
		`
		for _, row := range rows {
			memes, err := json.Marshal(row.MemesScores)
			if err != nil {
				return fmt.Errorf("encode memes scores: %w", err)
			}
			gradients, err := json.Marshal(row.GradientsScores)
			if err != nil {
				return fmt.Errorf("encode gradients scores: %w", err)
			}
			nextgen, err := json.Marshal(row.NextgenScores)
			if err != nil {
				return fmt.Errorf("encode nextgen scores: %w", err)
			}
			_, err = tx.q.ExecContext(ctx, query,
				row.ConsolidationKey, pq.Array(row.Wallets), row.Block, row.Date,
				row.RawTDH, row.Boost, row.BoostedTDH,
				row.MemesTDH, row.MemesBoostedTDH, row.MemesRawTDH, row.MemesBalance,
				row.GradientsTDH, row.GradientsBoostedTDH, row.GradientsBalance,
				row.NextgenTDH, row.NextgenBoostedTDH, row.NextgenBalance, row.TotalBalance,
				row.MemesSetCount, row.HasGenesis, row.HasNakamoto,
				row.RankGlobal, row.RankMemes, row.RankGradients, row.RankNextgen,
				memes, gradients, nextgen,
			)
			if err != nil {
				return fmt.Errorf("insert snapshot row %s: %w", row.ConsolidationKey, err)
			}
		}
		return nil
	})
}

func targetWallets(rows []model.WalletSnapshot) []string {
	seen := map[string]bool{}
	var wallets []string
	for _, row := range rows {
		for _, w := range row.Wallets {
			if !seen[w] {
				seen[w] = true
				wallets = append(wallets, w)
			}
		}
	}
	return wallets
}

// SnapshotRows returns every persisted snapshot row.
func (s *Store) SnapshotRows(ctx context.Context) ([]model.WalletSnapshot, error) {
	query := `SELECT ` + snapshotColumns + ` FROM tdh ORDER BY rank_global ASC`
	rows, err := s.q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query snapshot rows: %w", err)
	}
	defer rows.Close()

	var out []model.WalletSnapshot
	for rows.Next() {
		row, err := scanSnapshotRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *row)
	}
	return out, rows.Err()
}

// SnapshotRowForWallet returns the snapshot row whose cluster contains the
// wallet, or nil.
func (s *Store) SnapshotRowForWallet(ctx context.Context, wallet string) (*model.WalletSnapshot, error) {
	query := `SELECT ` + snapshotColumns + ` FROM tdh WHERE $1 = ANY(wallets)`
	rows, err := s.q.QueryContext(ctx, query, wallet)
	if err != nil {
		return nil, fmt.Errorf("query snapshot row: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanSnapshotRow(rows)
}

func scanSnapshotRow(rows *sql.Rows) (*model.WalletSnapshot, error) {
	var (
		row                      model.WalletSnapshot
		memes, gradients, nextgn []byte
	)
	err := rows.Scan(
		&row.ConsolidationKey, pq.Array(&row.Wallets), &row.Block, &row.Date,
		&row.RawTDH, &row.Boost, &row.BoostedTDH,
		&row.MemesTDH, &row.MemesBoostedTDH, &row.MemesRawTDH, &row.MemesBalance,
		&row.GradientsTDH, &row.GradientsBoostedTDH, &row.GradientsBalance,
		&row.NextgenTDH, &row.NextgenBoostedTDH, &row.NextgenBalance, &row.TotalBalance,
		&row.MemesSetCount, &row.HasGenesis, &row.HasNakamoto,
		&row.RankGlobal, &row.RankMemes, &row.RankGradients, &row.RankNextgen,
		&memes, &gradients, &nextgn,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(memes, &row.MemesScores); err != nil {
		return nil, fmt.Errorf("decode memes scores: %w", err)
	}
	if err := json.Unmarshal(gradients, &row.GradientsScores); err != nil {
		return nil, fmt.Errorf("decode gradients scores: %w", err)
	}
	if err := json.Unmarshal(nextgn, &row.NextgenScores); err != nil {
		return nil, fmt.Errorf("decode nextgen scores: %w", err)
	}
	return &row, nil
}

// SaveCommitment replaces the singleton snapshot commitment.
func (s *Store) SaveCommitment(ctx context.Context, c model.SnapshotCommitment) error {
	query := `
		INSERT INTO snapshot_commitment (id, block, block_time, merkle_root, computed_at)
		VALUES (1, $1, $2, $3, $4)
		ON CONFLICT (id)
		DO UPDATE SET
			block = EXCLUDED.block,
			block_time = EXCLUDED.block_time,
			merkle_root = EXCLUDED.merkle_root,
			computed_at = EXCLUDED.computed_at
	`
	_, err := s.q.ExecContext(ctx, query, c.Block, c.Timestamp, c.MerkleRoot, c.ComputedAt)
	return err
}

// GetCommitment returns the current snapshot commitment, or nil before the
// first scoring run.
func (s *Store) GetCommitment(ctx context.Context) (*model.SnapshotCommitment, error) {
	query := `SELECT block, block_time, merkle_root, computed_at FROM snapshot_commitment WHERE id = 1`
	c := &model.SnapshotCommitment{}
	err := s.q.QueryRowContext(ctx, query).Scan(&c.Block, &c.Timestamp, &c.MerkleRoot, &c.ComputedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query commitment: %w", err)
	}
	return c, nil
}
