package tdhdb

import (
	"context"
	"log"

	mghelper "github.com/6529-collections/tdh-indexer/pkg/pgutil/migrations"
	"github.com/6529-collections/tdh-indexer/pkg/store/dao"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating consolidation_edges table...")
		if err := mghelper.CreateSchema(ctx, db, &dao.ConsolidationEdgeDao{}); err != nil {
			return err
		}
		if err := mghelper.CreateModelIndexes(ctx, db, &dao.ConsolidationEdgeDao{}, "confirmed"); err != nil {
			return err
		}
		// One edge per unordered wallet pair regardless of direction.
		_, err := db.ExecContext(ctx, `
			CREATE UNIQUE INDEX IF NOT EXISTS idx_consolidation_edges_pair
			ON consolidation_edges (LEAST(wallet_a, wallet_b), GREATEST(wallet_a, wallet_b))
		`)
		return err
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping consolidation_edges table...")
		return mghelper.DropTables(ctx, db, &dao.ConsolidationEdgeDao{})
	})
}
