package dao

import (
	"time"

	"github.com/uptrace/bun"
)

// ConsolidationEdgeDao maps to the 'consolidation_edges' table in PostgreSQL.
type ConsolidationEdgeDao struct {
	bun.BaseModel `bun:"table:consolidation_edges"`
	WalletA       string `json:"wallet_a" bun:",pk"`
	WalletB       string `json:"wallet_b" bun:",pk"`
	Block         int64  `json:"block" bun:",notnull"`
	Confirmed     bool   `json:"confirmed" bun:",notnull,default:false"`
}

// DelegationDao maps to the 'delegations' table in PostgreSQL.
type DelegationDao struct {
	bun.BaseModel `bun:"table:delegations"`
	ID            int64      `json:"id" bun:",pk,autoincrement"`
	FromWallet    string     `json:"from_wallet" bun:",notnull"`
	ToWallet      string     `json:"to_wallet" bun:",notnull"`
	Block         int64      `json:"block" bun:",notnull"`
	Collection    string     `json:"collection" bun:",notnull"`
	UseCase       int64      `json:"use_case" bun:",notnull"`
	Expiry        *time.Time `json:"expiry,omitempty" bun:",nullzero"`
	AllTokens     bool       `json:"all_tokens" bun:",notnull,default:true"`
	TokenID       *int64     `json:"token_id,omitempty" bun:",nullzero"`
}
