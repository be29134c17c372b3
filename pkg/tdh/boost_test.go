package tdh

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/6529-collections/tdh-indexer/pkg/model"
)

func boostEngine() *Engine {
	cfg := testCollections()
	cfg.MemeSeasons = []SeasonRange{
		{Season: 1, FromID: 1, ToID: 4},
		{Season: 2, FromID: 5, ToID: 8},
		{Season: 3, FromID: 9, ToID: 12},
	}
	return NewEngine(nil, nil, cfg, 1, zap.NewNop())
}

func rowHolding(tokens ...int64) *model.WalletSnapshot {
	row := &model.WalletSnapshot{}
	for _, id := range tokens {
		row.MemesScores = append(row.MemesScores, model.TokenScore{TokenID: id, Balance: 1, Score: 100})
		row.MemesTDH += 100
	}
	return row
}

func fullEditions() map[string]map[int64]int64 {
	memes := map[int64]int64{}
	for id := int64(1); id <= 12; id++ {
		memes[id] = 100
	}
	return map[string]map[int64]int64{memesContract: memes}
}

func TestBoostFullSet(t *testing.T) {
	e := boostEngine()
	row := rowHolding(1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12)

	e.applyBoost(row, fullEditions())

	assert.Equal(t, 1, row.MemesSetCount)
	assert.Equal(t, 1.25, row.Boost)
}

func TestBoostExtraSetsCapped(t *testing.T) {
	e := boostEngine()
	row := &model.WalletSnapshot{}
	for id := int64(1); id <= 12; id++ {
		row.MemesScores = append(row.MemesScores, model.TokenScore{TokenID: id, Balance: 5, Score: 100})
	}

	e.applyBoost(row, fullEditions())

	assert.Equal(t, 5, row.MemesSetCount)
	// 0.25 for the first set plus 0.02 per extra set, capped at two extras.
	assert.Equal(t, 1.29, row.Boost)
}

func TestBoostSeasonBonuses(t *testing.T) {
	e := boostEngine()
	// Seasons 2 and 3 complete, season 1 missing.
	row := rowHolding(5, 6, 7, 8, 9, 10, 11, 12)

	e.applyBoost(row, fullEditions())

	assert.Equal(t, 0, row.MemesSetCount)
	assert.Equal(t, 1.10, row.Boost)
}

func TestBoostGenesisAndNakamotoOnlyWithoutSeasonOne(t *testing.T) {
	e := boostEngine()
	row := rowHolding(1, 4)

	e.applyBoost(row, fullEditions())

	assert.True(t, row.HasGenesis)
	assert.True(t, row.HasNakamoto)
	assert.Equal(t, 1.02, row.Boost)
}

func TestBoostGenesisSuppressedBySeasonOne(t *testing.T) {
	e := boostEngine()
	// Season 1 complete: the per-season bonus replaces the token bonuses.
	row := rowHolding(1, 2, 3, 4)

	e.applyBoost(row, fullEditions())

	assert.True(t, row.HasGenesis)
	assert.Equal(t, 1.05, row.Boost)
}

func TestBoostGradientsCapped(t *testing.T) {
	e := boostEngine()
	row := &model.WalletSnapshot{
		GradientsBalance: 5,
		GradientsTDH:     100,
		GradientsScores:  []model.TokenScore{{TokenID: 1, Balance: 5, Score: 100}},
	}

	e.applyBoost(row, fullEditions())

	assert.Equal(t, 1.06, row.Boost)
	assert.Equal(t, int64(106), row.GradientsBoostedTDH)
}

func TestBoostRounding(t *testing.T) {
	e := boostEngine()
	row := &model.WalletSnapshot{
		MemesScores: []model.TokenScore{{TokenID: 1, Balance: 1, Score: 33}},
		MemesTDH:    33,
	}

	e.applyBoost(row, fullEditions())

	// Genesis only: boost 1.01, 33 * 1.01 = 33.33 rounds to 33.
	assert.Equal(t, 1.01, row.Boost)
	assert.Equal(t, int64(33), row.MemesBoostedTDH)
}

func TestBoostRoundsPerToken(t *testing.T) {
	e := boostEngine()
	// Season 2 complete, boost 1.05. Each token score rounds on its own, so
	// four tokens at 10 yield 4 * round(10.5) = 44, not round(40 * 1.05) = 42.
	row := &model.WalletSnapshot{}
	for _, id := range []int64{5, 6, 7, 8} {
		row.MemesScores = append(row.MemesScores, model.TokenScore{TokenID: id, Balance: 1, Score: 10})
		row.MemesTDH += 10
	}

	e.applyBoost(row, fullEditions())

	assert.Equal(t, 1.05, row.Boost)
	assert.Equal(t, int64(44), row.MemesBoostedTDH)
	assert.Equal(t, int64(44), row.BoostedTDH)
}
