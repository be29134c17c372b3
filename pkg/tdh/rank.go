package tdh

import (
	"sort"

	"github.com/6529-collections/tdh-indexer/pkg/model"
)

// rankRows assigns the global and per-collection ranks in place. Ranks are
// dense positions over the full row set; a wallet with no boosted score in a
// collection gets rank -1 there.
func rankRows(rows []model.WalletSnapshot) {
	byIndex := make([]*model.WalletSnapshot, len(rows))
	for i := range rows {
		byIndex[i] = &rows[i]
	}

	assign := func(less func(a, b *model.WalletSnapshot) bool, scored func(r *model.WalletSnapshot) bool, set func(r *model.WalletSnapshot, rank int)) {
		order := make([]*model.WalletSnapshot, len(byIndex))
		copy(order, byIndex)
		sort.SliceStable(order, func(i, j int) bool { return less(order[i], order[j]) })
		rank := 0
		for _, row := range order {
			if !scored(row) {
				set(row, -1)
				continue
			}
			rank++
			set(row, rank)
		}
	}

	assign(
		func(a, b *model.WalletSnapshot) bool {
			if a.BoostedTDH != b.BoostedTDH {
				return a.BoostedTDH > b.BoostedTDH
			}
			if a.RawTDH != b.RawTDH {
				return a.RawTDH > b.RawTDH
			}
			if a.GradientsTDH != b.GradientsTDH {
				return a.GradientsTDH > b.GradientsTDH
			}
			if a.NextgenTDH != b.NextgenTDH {
				return a.NextgenTDH > b.NextgenTDH
			}
			return a.ConsolidationKey < b.ConsolidationKey
		},
		func(r *model.WalletSnapshot) bool { return true },
		func(r *model.WalletSnapshot, rank int) { r.RankGlobal = rank },
	)

	assign(
		func(a, b *model.WalletSnapshot) bool {
			if a.MemesBoostedTDH != b.MemesBoostedTDH {
				return a.MemesBoostedTDH > b.MemesBoostedTDH
			}
			if a.MemesRawTDH != b.MemesRawTDH {
				return a.MemesRawTDH > b.MemesRawTDH
			}
			if a.MemesBalance != b.MemesBalance {
				return a.MemesBalance > b.MemesBalance
			}
			if a.TotalBalance != b.TotalBalance {
				return a.TotalBalance > b.TotalBalance
			}
			return a.ConsolidationKey < b.ConsolidationKey
		},
		func(r *model.WalletSnapshot) bool { return r.MemesBoostedTDH > 0 },
		func(r *model.WalletSnapshot, rank int) { r.RankMemes = rank },
	)

	assign(
		func(a, b *model.WalletSnapshot) bool {
			if a.GradientsBoostedTDH != b.GradientsBoostedTDH {
				return a.GradientsBoostedTDH > b.GradientsBoostedTDH
			}
			if a.GradientsTDH != b.GradientsTDH {
				return a.GradientsTDH > b.GradientsTDH
			}
			if a.GradientsBalance != b.GradientsBalance {
				return a.GradientsBalance > b.GradientsBalance
			}
			if a.TotalBalance != b.TotalBalance {
				return a.TotalBalance > b.TotalBalance
			}
			return a.ConsolidationKey < b.ConsolidationKey
		},
		func(r *model.WalletSnapshot) bool { return r.GradientsBoostedTDH > 0 },
		func(r *model.WalletSnapshot, rank int) { r.RankGradients = rank },
	)

	assign(
		func(a, b *model.WalletSnapshot) bool {
			if a.NextgenBoostedTDH != b.NextgenBoostedTDH {
				return a.NextgenBoostedTDH > b.NextgenBoostedTDH
			}
			if a.NextgenTDH != b.NextgenTDH {
				return a.NextgenTDH > b.NextgenTDH
			}
			if a.NextgenBalance != b.NextgenBalance {
				return a.NextgenBalance > b.NextgenBalance
			}
			if a.TotalBalance != b.TotalBalance {
				return a.TotalBalance > b.TotalBalance
			}
			return a.ConsolidationKey < b.ConsolidationKey
		},
		func(r *model.WalletSnapshot) bool { return r.NextgenBoostedTDH > 0 },
		func(r *model.WalletSnapshot, rank int) { r.RankNextgen = rank },
	)

	rankTokenHolders(byIndex, func(r *model.WalletSnapshot) []model.TokenScore { return r.MemesScores })
	rankTokenHolders(byIndex, func(r *model.WalletSnapshot) []model.TokenScore { return r.GradientsScores })
	rankTokenHolders(byIndex, func(r *model.WalletSnapshot) []model.TokenScore { return r.NextgenScores })
}

type tokenHolder struct {
	row   *model.WalletSnapshot
	score *model.TokenScore
}

// rankTokenHolders assigns per-token holder ranks within one collection.
// Holders of each token sort by token score descending, with the cluster's
// combined boosted score as tie-break.
func rankTokenHolders(rows []*model.WalletSnapshot, scores func(r *model.WalletSnapshot) []model.TokenScore) {
	byToken := make(map[int64][]tokenHolder)
	for _, row := range rows {
		list := scores(row)
		for i := range list {
			byToken[list[i].TokenID] = append(byToken[list[i].TokenID], tokenHolder{row: row, score: &list[i]})
		}
	}
	for _, holders := range byToken {
		sort.SliceStable(holders, func(i, j int) bool {
			if holders[i].score.Score != holders[j].score.Score {
				return holders[i].score.Score > holders[j].score.Score
			}
			if holders[i].row.BoostedTDH != holders[j].row.BoostedTDH {
				return holders[i].row.BoostedTDH > holders[j].row.BoostedTDH
			}
			return holders[i].row.ConsolidationKey < holders[j].row.ConsolidationKey
		})
		for rank, h := range holders {
			h.score.Rank = rank + 1
		}
	}
}
