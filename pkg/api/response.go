package api

import (
	"time"

	"github.com/6529-collections/tdh-indexer/pkg/model"
)

// walletTDHResponse is the wire shape of one scoring row.
type walletTDHResponse struct {
	ConsolidationKey string    `json:"consolidation_key"`
	Wallets          []string  `json:"wallets"`
	Block            uint64    `json:"block"`
	Date             time.Time `json:"date"`

	RawTDH     int64   `json:"raw_tdh"`
	Boost      float64 `json:"boost"`
	BoostedTDH int64   `json:"boosted_tdh"`

	MemesTDH            int64 `json:"memes_tdh"`
	MemesBoostedTDH     int64 `json:"memes_boosted_tdh"`
	MemesRawTDH         int64 `json:"memes_raw_tdh"`
	MemesBalance        int64 `json:"memes_balance"`
	GradientsTDH        int64 `json:"gradients_tdh"`
	GradientsBoostedTDH int64 `json:"gradients_boosted_tdh"`
	GradientsBalance    int64 `json:"gradients_balance"`
	NextgenTDH          int64 `json:"nextgen_tdh"`
	NextgenBoostedTDH   int64 `json:"nextgen_boosted_tdh"`
	NextgenBalance      int64 `json:"nextgen_balance"`
	TotalBalance        int64 `json:"total_balance"`

	MemesSetCount int  `json:"memes_set_count"`
	HasGenesis    bool `json:"has_genesis"`
	HasNakamoto   bool `json:"has_nakamoto"`

	RankGlobal    int `json:"rank_global"`
	RankMemes     int `json:"rank_memes"`
	RankGradients int `json:"rank_gradients"`
	RankNextgen   int `json:"rank_nextgen"`

	MemesScores     []model.TokenScore `json:"memes"`
	GradientsScores []model.TokenScore `json:"gradients"`
	NextgenScores   []model.TokenScore `json:"nextgen"`
}

func snapshotResponse(row *model.WalletSnapshot) *walletTDHResponse {
	return &walletTDHResponse{
		ConsolidationKey:    row.ConsolidationKey,
		Wallets:             row.Wallets,
		Block:               row.Block,
		Date:                row.Date,
		RawTDH:              row.RawTDH,
		Boost:               row.Boost,
		BoostedTDH:          row.BoostedTDH,
		MemesTDH:            row.MemesTDH,
		MemesBoostedTDH:     row.MemesBoostedTDH,
		MemesRawTDH:         row.MemesRawTDH,
		MemesBalance:        row.MemesBalance,
		GradientsTDH:        row.GradientsTDH,
		GradientsBoostedTDH: row.GradientsBoostedTDH,
		GradientsBalance:    row.GradientsBalance,
		NextgenTDH:          row.NextgenTDH,
		NextgenBoostedTDH:   row.NextgenBoostedTDH,
		NextgenBalance:      row.NextgenBalance,
		TotalBalance:        row.TotalBalance,
		MemesSetCount:       row.MemesSetCount,
		HasGenesis:          row.HasGenesis,
		HasNakamoto:         row.HasNakamoto,
		RankGlobal:          row.RankGlobal,
		RankMemes:           row.RankMemes,
		RankGradients:       row.RankGradients,
		RankNextgen:         row.RankNextgen,
		MemesScores:         row.MemesScores,
		GradientsScores:     row.GradientsScores,
		NextgenScores:       row.NextgenScores,
	}
}
