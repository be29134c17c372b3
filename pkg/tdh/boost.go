package tdh

import (
	"math"

	"github.com/6529-collections/tdh-indexer/pkg/model"
)

// applyBoost derives the set-completion flags for a snapshot row and applies
// the resulting multiplier to its scores.
func (e *Engine) applyBoost(row *model.WalletSnapshot, editions map[string]map[int64]int64) {
	memeBalances := make(map[int64]int64, len(row.MemesScores))
	for _, s := range row.MemesScores {
		memeBalances[s.TokenID] = s.Balance
	}
	memeEditions := editions[e.cfg.Memes]

	row.MemesSetCount = fullSetCount(memeBalances, memeEditions)
	row.HasGenesis = memeBalances[e.cfg.GenesisTokenID] > 0
	row.HasNakamoto = memeBalances[e.cfg.NakamotoTokenID] > 0

	bonus := 0.0
	if row.MemesSetCount >= 1 {
		extra := row.MemesSetCount - 1
		if extra > 2 {
			extra = 2
		}
		bonus = 0.25 + 0.02*float64(extra)
	} else {
		for _, season := range e.cfg.MemeSeasons {
			complete := seasonComplete(memeBalances, memeEditions, season)
			if complete {
				bonus += 0.05
			} else if season.Season == 1 {
				if row.HasGenesis {
					bonus += 0.01
				}
				if row.HasNakamoto {
					bonus += 0.01
				}
			}
		}
	}

	gradients := row.GradientsBalance
	if gradients > 3 {
		gradients = 3
	}
	bonus += 0.02 * float64(gradients)

	row.Boost = round2(1.0 + bonus)
	row.MemesBoostedTDH = boostedSum(row.MemesScores, row.Boost)
	row.GradientsBoostedTDH = boostedSum(row.GradientsScores, row.Boost)
	row.NextgenBoostedTDH = boostedSum(row.NextgenScores, row.Boost)
	row.BoostedTDH = row.MemesBoostedTDH + row.GradientsBoostedTDH + row.NextgenBoostedTDH
}

// boostedSum multiplies each token score by the boost and rounds per token
// before summing, so the collection total equals the sum of the published
// per-token boosted scores.
func boostedSum(scores []model.TokenScore, boost float64) int64 {
	var total int64
	for _, s := range scores {
		total += int64(math.Round(float64(s.Score) * boost))
	}
	return total
}

// fullSetCount returns how many complete memes sets the balances cover. A set
// requires at least one of every token minted as of the cutoff; the count is
// the minimum balance across them.
func fullSetCount(balances, editions map[int64]int64) int {
	if len(editions) == 0 {
		return 0
	}
	sets := int64(math.MaxInt64)
	for tokenID, size := range editions {
		if size <= 0 {
			continue
		}
		held := balances[tokenID]
		if held < sets {
			sets = held
		}
	}
	if sets == math.MaxInt64 {
		return 0
	}
	return int(sets)
}

// seasonComplete reports whether every token of the season minted as of the
// cutoff is held.
func seasonComplete(balances, editions map[int64]int64, season SeasonRange) bool {
	any := false
	for tokenID := season.FromID; tokenID <= season.ToID; tokenID++ {
		size, minted := editions[tokenID]
		if !minted || size <= 0 {
			continue
		}
		any = true
		if balances[tokenID] == 0 {
			return false
		}
	}
	return any
}
