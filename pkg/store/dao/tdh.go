package dao

import (
	"time"

	"github.com/uptrace/bun"
)

// TdhDao maps to the 'tdh' snapshot table in PostgreSQL. One row per
// consolidation key; per-token scores live in JSONB columns.
type TdhDao struct {
	bun.BaseModel `bun:"table:tdh"`

	ConsolidationKey string    `json:"consolidation_key" bun:",pk"`
	Wallets          []string  `json:"wallets" bun:",notnull,array"`
	Block            int64     `json:"block" bun:",notnull"`
	SnapshotDate     time.Time `json:"snapshot_date" bun:",notnull"`

	RawTDH     int64   `json:"raw_tdh" bun:"raw_tdh,notnull,default:0"`
	Boost      float64 `json:"boost" bun:",notnull,default:1"`
	BoostedTDH int64   `json:"boosted_tdh" bun:"boosted_tdh,notnull,default:0"`

	MemesTDH            int64 `json:"memes_tdh" bun:"memes_tdh,notnull,default:0"`
	MemesBoostedTDH     int64 `json:"memes_boosted_tdh" bun:"memes_boosted_tdh,notnull,default:0"`
	MemesRawTDH         int64 `json:"memes_raw_tdh" bun:"memes_raw_tdh,notnull,default:0"`
	MemesBalance        int64 `json:"memes_balance" bun:",notnull,default:0"`
	GradientsTDH        int64 `json:"gradients_tdh" bun:"gradients_tdh,notnull,default:0"`
	GradientsBoostedTDH int64 `json:"gradients_boosted_tdh" bun:"gradients_boosted_tdh,notnull,default:0"`
	GradientsBalance    int64 `json:"gradients_balance" bun:",notnull,default:0"`
	NextgenTDH          int64 `json:"nextgen_tdh" bun:"nextgen_tdh,notnull,default:0"`
	NextgenBoostedTDH   int64 `json:"nextgen_boosted_tdh" bun:"nextgen_boosted_tdh,notnull,default:0"`
	NextgenBalance      int64 `json:"nextgen_balance" bun:",notnull,default:0"`
	TotalBalance        int64 `json:"total_balance" bun:",notnull,default:0"`

	MemesSetCount int  `json:"memes_set_count" bun:",notnull,default:0"`
	HasGenesis    bool `json:"has_genesis" bun:",notnull,default:false"`
	HasNakamoto   bool `json:"has_nakamoto" bun:",notnull,default:false"`

	RankGlobal    int `json:"rank_global" bun:",notnull,default:0"`
	RankMemes     int `json:"rank_memes" bun:",notnull,default:0"`
	RankGradients int `json:"rank_gradients" bun:",notnull,default:0"`
	RankNextgen   int `json:"rank_nextgen" bun:",notnull,default:0"`

	MemesScores     []byte `json:"memes_scores" bun:",type:jsonb"`
	GradientsScores []byte `json:"gradients_scores" bun:",type:jsonb"`
	NextgenScores   []byte `json:"nextgen_scores" bun:",type:jsonb"`
}

// SnapshotCommitmentDao maps to the singleton 'snapshot_commitment' table.
type SnapshotCommitmentDao struct {
	bun.BaseModel `bun:"table:snapshot_commitment"`
	ID            int64     `json:"id" bun:",pk"`
	Block         int64     `json:"block" bun:",notnull"`
	BlockTime     time.Time `json:"block_time" bun:",notnull"`
	MerkleRoot    string    `json:"merkle_root" bun:",notnull"`
	ComputedAt    time.Time `json:"computed_at" bun:",notnull"`
}
