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
		log.Println("creating job_logs table...")
		if err := mghelper.CreateSchema(ctx, db, &dao.JobLogDao{}); err != nil {
			return err
		}
		return mghelper.CreateModelIndexes(ctx, db, &dao.JobLogDao{}, "namespace", "created_at")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping job_logs table...")
		return mghelper.DropTables(ctx, db, &dao.JobLogDao{})
	})
}
