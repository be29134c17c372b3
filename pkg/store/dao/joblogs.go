package dao

import (
	"time"

	"github.com/uptrace/bun"
)

// JobLogDao maps to the 'job_logs' table in PostgreSQL.
type JobLogDao struct {
	bun.BaseModel `bun:"table:job_logs"`
	ID            int64     `json:"id" bun:",pk,autoincrement"`
	Namespace     string    `json:"namespace" bun:",notnull"`
	Level         string    `json:"level" bun:",notnull"`
	Message       string    `json:"message" bun:",notnull"`
	CreatedAt     time.Time `json:"created_at" bun:",notnull"`
}
