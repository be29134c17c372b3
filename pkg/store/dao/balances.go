package dao

import "github.com/uptrace/bun"

// OwnedBalanceDao maps to the 'owned_balances' table in PostgreSQL.
type OwnedBalanceDao struct {
	bun.BaseModel `bun:"table:owned_balances"`
	Owner         string `json:"owner" bun:",pk"`
	Contract      string `json:"contract" bun:",pk"`
	TokenID       int64  `json:"token_id" bun:",pk"`
	Balance       int64  `json:"balance" bun:",notnull"`
}
