package dao

import (
	"time"

	"github.com/uptrace/bun"
)

// WatermarkDao maps to the 'watermarks' table in PostgreSQL.
type WatermarkDao struct {
	bun.BaseModel `bun:"table:watermarks"`
	Namespace     string    `json:"namespace" bun:",pk"`
	Block         int64     `json:"block" bun:",notnull"`
	BlockTime     time.Time `json:"block_time" bun:",notnull"`
}
