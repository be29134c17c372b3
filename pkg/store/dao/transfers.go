// Package dao defines the table models the migrations create.
package dao

import (
	"time"

	"github.com/uptrace/bun"
)

// TransferDao maps to the 'transfers' table in PostgreSQL.
type TransferDao struct {
	bun.BaseModel   `bun:"table:transfers"`
	TxHash          string    `json:"tx_hash" bun:",pk"`
	FromAddress     string    `json:"from_address" bun:",pk"`
	ToAddress       string    `json:"to_address" bun:",pk"`
	Contract        string    `json:"contract" bun:",pk"`
	TokenID         int64     `json:"token_id" bun:",pk"`
	Block           int64     `json:"block" bun:",notnull"`
	BlockTime       time.Time `json:"block_time" bun:",notnull"`
	TokenCount      int64     `json:"token_count" bun:",notnull"`
	Value           float64   `json:"value" bun:",notnull,default:0"`
	Royalties       float64   `json:"royalties" bun:",notnull,default:0"`
	PrimaryProceeds float64   `json:"primary_proceeds" bun:",notnull,default:0"`
	GasCost         float64   `json:"gas_cost" bun:",notnull,default:0"`
	GasPriceGwei    float64   `json:"gas_price_gwei" bun:",notnull,default:0"`
	Resolved        bool      `json:"resolved" bun:",notnull,default:false"`
}
