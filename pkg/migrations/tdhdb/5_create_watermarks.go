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
		log.Println("creating watermarks table...")
		return mghelper.CreateSchema(ctx, db, &dao.WatermarkDao{})
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping watermarks table...")
		return mghelper.DropTables(ctx, db, &dao.WatermarkDao{})
	})
}
