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
		log.Println("creating delegations table...")
		if err := mghelper.CreateSchema(ctx, db, &dao.DelegationDao{}); err != nil {
			return err
		}
		return mghelper.CreateModelIndexes(ctx, db, &dao.DelegationDao{},
			"from_wallet", "to_wallet", "use_case")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping delegations table...")
		return mghelper.DropTables(ctx, db, &dao.DelegationDao{})
	})
}
