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
		log.Println("creating tdh table...")
		if err := mghelper.CreateSchema(ctx, db, &dao.TdhDao{}); err != nil {
			return err
		}
		if err := mghelper.CreateModelIndexes(ctx, db, &dao.TdhDao{}, "rank_global"); err != nil {
			return err
		}
		// Wallet-membership lookups search inside the wallets array.
		_, err := db.ExecContext(ctx, `
			CREATE INDEX IF NOT EXISTS idx_tdh_wallets ON tdh USING GIN (wallets)
		`)
		return err
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping tdh table...")
		return mghelper.DropTables(ctx, db, &dao.TdhDao{})
	})
}
