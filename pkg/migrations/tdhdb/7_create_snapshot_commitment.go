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
		log.Println("creating snapshot_commitment table...")
		return mghelper.CreateSchema(ctx, db, &dao.SnapshotCommitmentDao{})
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping snapshot_commitment table...")
		return mghelper.DropTables(ctx, db, &dao.SnapshotCommitmentDao{})
	})
}
