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
		log.Println("creating transfers table...")
		if err := mghelper.CreateSchema(ctx, db, &dao.TransferDao{}); err != nil {
			return err
		}
		return mghelper.CreateModelIndexes(ctx, db, &dao.TransferDao{},
			"block", "contract", "from_address", "to_address", "resolved")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping transfers table...")
		return mghelper.DropTables(ctx, db, &dao.TransferDao{})
	})
}
