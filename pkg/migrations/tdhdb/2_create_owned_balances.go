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
		log.Println("creating owned_balances table...")
		if err := mghelper.CreateSchema(ctx, db, &dao.OwnedBalanceDao{}); err != nil {
			return err
		}
		return mghelper.CreateModelIndexes(ctx, db, &dao.OwnedBalanceDao{}, "contract")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping owned_balances table...")
		return mghelper.DropTables(ctx, db, &dao.OwnedBalanceDao{})
	})
}
