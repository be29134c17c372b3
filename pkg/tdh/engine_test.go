package tdh

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/6529-collections/tdh-indexer/pkg/model"
	"github.com/6529-collections/tdh-indexer/pkg/tdherr"
)

const (
	memesContract     = "0xmemes"
	gradientsContract = "0xgradients"
	nextgenContract   = "0xnextgen"
	nullAddr          = "0x0000000000000000000000000000000000000000"
)

// MockStore is a mock implementation of Store
type MockStore struct {
	WatermarkBlock uint64
	OwnersList     []string
	EdgeWallets    []string
	Transfers      []model.TransferRecord
	Editions       map[string]map[int64]int64
	Previous       []model.WalletSnapshot

	SavedRows    []model.WalletSnapshot
	SavedTargets []string
}

func (m *MockStore) GetWatermark(_ context.Context, namespace string) (*model.Watermark, error) {
	return &model.Watermark{Namespace: namespace, Block: m.WatermarkBlock}, nil
}

func (m *MockStore) Owners(_ context.Context, _ []string) ([]string, error) {
	return m.OwnersList, nil
}

func (m *MockStore) ConfirmedEdgeWallets(_ context.Context) ([]string, error) {
	return m.EdgeWallets, nil
}

func (m *MockStore) TransfersForWallets(_ context.Context, wallets, _ []string, upToBlock uint64) ([]model.TransferRecord, error) {
	inSet := map[string]bool{}
	for _, w := range wallets {
		inSet[w] = true
	}
	var out []model.TransferRecord
	for _, t := range m.Transfers {
		if t.Block <= upToBlock && (inSet[t.From] || inSet[t.To]) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *MockStore) EditionSizes(_ context.Context, contract string, _ time.Time) (map[int64]int64, error) {
	sizes := map[int64]int64{}
	for k, v := range m.Editions[contract] {
		sizes[k] = v
	}
	return sizes, nil
}

func (m *MockStore) SnapshotRows(_ context.Context) ([]model.WalletSnapshot, error) {
	return m.Previous, nil
}

func (m *MockStore) ReplaceSnapshot(_ context.Context, rows []model.WalletSnapshot, targets []string) error {
	m.SavedRows = rows
	m.SavedTargets = targets
	return nil
}

// MockClusterResolver returns a fixed cluster per wallet.
type MockClusterResolver struct {
	Clusters map[string][]string
}

func (m *MockClusterResolver) ClusterFor(_ context.Context, wallet string) ([]string, error) {
	if cluster, ok := m.Clusters[wallet]; ok {
		return cluster, nil
	}
	return []string{wallet}, nil
}

func testCollections() Collections {
	return Collections{
		Memes:     memesContract,
		Gradients: gradientsContract,
		Nextgen:   nextgenContract,
		MemeSeasons: []SeasonRange{
			{Season: 1, FromID: 1, ToID: 2},
		},
		GenesisTokenID:  1,
		NakamotoTokenID: 4,
	}
}

func TestComputeRejectsBlockAheadOfWatermark(t *testing.T) {
	st := &MockStore{WatermarkBlock: 1000}
	engine := NewEngine(st, &MockClusterResolver{}, testCollections(), 1, zap.NewNop())

	_, err := engine.Compute(context.Background(), 2000, time.Now(), nil)

	require.Error(t, err)
	assert.True(t, tdherr.Is(err, tdherr.KindValidation))
}

func TestComputeScoresSingleHolder(t *testing.T) {
	cutoff := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	acquired := cutoff.AddDate(0, 0, -10)

	st := &MockStore{
		WatermarkBlock: 1000,
		OwnersList:     []string{"0xaaa"},
		Transfers: []model.TransferRecord{
			{TxHash: "0x1", Block: 100, Timestamp: acquired, From: nullAddr, To: "0xaaa", Contract: memesContract, TokenID: 2, Count: 1},
		},
		Editions: map[string]map[int64]int64{
			// Token 1's edition of 500 drives the hodl index; the held token 2
			// has edition 100, so its hodl rate is 5.00.
			memesContract: {1: 500, 2: 100},
		},
	}
	engine := NewEngine(st, &MockClusterResolver{}, testCollections(), 1, zap.NewNop())

	result, err := engine.Compute(context.Background(), 1000, cutoff, nil)
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)

	row := result.Rows[0]
	assert.Equal(t, "0xaaa", row.ConsolidationKey)
	require.Len(t, row.MemesScores, 1)

	score := row.MemesScores[0]
	assert.Equal(t, int64(2), score.TokenID)
	assert.Equal(t, int64(1), score.Balance)
	assert.Equal(t, 5.00, score.HodlRate)
	assert.Equal(t, int64(10), score.RawScore)
	assert.Equal(t, int64(50), score.Score)
	assert.Equal(t, 1, score.Rank)

	assert.Equal(t, int64(10), row.RawTDH)
	assert.Equal(t, 1.00, row.Boost)
	assert.Equal(t, int64(50), row.BoostedTDH)
	assert.Equal(t, 1, row.RankGlobal)
	assert.Equal(t, 1, row.RankMemes)
	assert.Equal(t, -1, row.RankGradients)
}

func TestComputeBoostAppliedToScore(t *testing.T) {
	cutoff := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	acquired := cutoff.AddDate(0, 0, -10)

	st := &MockStore{
		WatermarkBlock: 1000,
		OwnersList:     []string{"0xaaa"},
		Transfers: []model.TransferRecord{
			// Complete season 1 (tokens 1 and 2) for the +0.05 season bonus.
			{TxHash: "0x1", Block: 100, Timestamp: acquired, From: nullAddr, To: "0xaaa", Contract: memesContract, TokenID: 1, Count: 1},
			{TxHash: "0x2", Block: 100, Timestamp: acquired, From: nullAddr, To: "0xaaa", Contract: memesContract, TokenID: 2, Count: 1},
		},
		Editions: map[string]map[int64]int64{
			memesContract: {1: 500, 2: 100, 3: 250},
		},
	}
	engine := NewEngine(st, &MockClusterResolver{}, testCollections(), 1, zap.NewNop())

	result, err := engine.Compute(context.Background(), 1000, cutoff, nil)
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)

	row := result.Rows[0]
	// token 1: rate 1.00, raw 10, score 10; token 2: rate 5.00, raw 10, score 50.
	assert.Equal(t, int64(60), row.MemesTDH)
	assert.Equal(t, 1.05, row.Boost)
	assert.Equal(t, int64(63), row.BoostedTDH)
}

func TestComputeTreatsClusterAsOneHolder(t *testing.T) {
	cutoff := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	acquired := cutoff.AddDate(0, 0, -20)
	moved := cutoff.AddDate(0, 0, -5)

	st := &MockStore{
		WatermarkBlock: 1000,
		OwnersList:     []string{"0xbbb"},
		Transfers: []model.TransferRecord{
			{TxHash: "0x1", Block: 100, Timestamp: acquired, From: nullAddr, To: "0xaaa", Contract: memesContract, TokenID: 1, Count: 1},
			// Intra-cluster move must not reset the acquisition date.
			{TxHash: "0x2", Block: 500, Timestamp: moved, From: "0xaaa", To: "0xbbb", Contract: memesContract, TokenID: 1, Count: 1},
		},
		Editions: map[string]map[int64]int64{
			memesContract: {1: 100},
		},
	}
	clusters := &MockClusterResolver{Clusters: map[string][]string{
		"0xbbb": {"0xaaa", "0xbbb"},
		"0xaaa": {"0xaaa", "0xbbb"},
	}}
	engine := NewEngine(st, clusters, testCollections(), 1, zap.NewNop())

	result, err := engine.Compute(context.Background(), 1000, cutoff, nil)
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)

	row := result.Rows[0]
	assert.Equal(t, "0xaaa-0xbbb", row.ConsolidationKey)
	require.Len(t, row.MemesScores, 1)
	assert.Equal(t, int64(20), row.MemesScores[0].RawScore)
}

func TestComputeExcludesBurnTxAndSelfTransfers(t *testing.T) {
	cutoff := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	acquired := cutoff.AddDate(0, 0, -10)

	cfg := testCollections()
	cfg.ExcludedBurnTx = "0xburn"

	st := &MockStore{
		WatermarkBlock: 1000,
		OwnersList:     []string{"0xaaa"},
		Transfers: []model.TransferRecord{
			{TxHash: "0xburn", Block: 90, Timestamp: acquired, From: nullAddr, To: "0xaaa", Contract: memesContract, TokenID: 1, Count: 5},
			{TxHash: "0x1", Block: 100, Timestamp: acquired, From: nullAddr, To: "0xaaa", Contract: memesContract, TokenID: 1, Count: 1},
			{TxHash: "0x2", Block: 110, Timestamp: acquired, From: "0xaaa", To: "0xaaa", Contract: memesContract, TokenID: 1, Count: 1},
		},
		Editions: map[string]map[int64]int64{
			memesContract: {1: 100},
		},
	}
	engine := NewEngine(st, &MockClusterResolver{}, cfg, 1, zap.NewNop())

	result, err := engine.Compute(context.Background(), 1000, cutoff, nil)
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, int64(1), result.Rows[0].MemesBalance)
}

func TestComputeIncrementalMergesForRanking(t *testing.T) {
	cutoff := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	acquired := cutoff.AddDate(0, 0, -10)

	st := &MockStore{
		WatermarkBlock: 1000,
		Transfers: []model.TransferRecord{
			{TxHash: "0x1", Block: 100, Timestamp: acquired, From: nullAddr, To: "0xaaa", Contract: memesContract, TokenID: 1, Count: 1},
		},
		Editions: map[string]map[int64]int64{
			memesContract: {1: 100},
		},
		Previous: []model.WalletSnapshot{
			{ConsolidationKey: "0xzzz", Wallets: []string{"0xzzz"}, BoostedTDH: 1000000, RankGlobal: 1},
		},
	}
	engine := NewEngine(st, &MockClusterResolver{}, testCollections(), 1, zap.NewNop())

	result, err := engine.Compute(context.Background(), 1000, cutoff, []string{"0xaaa"})
	require.NoError(t, err)

	// Only the target row is persisted, but its rank reflects the merged set.
	require.Len(t, result.Rows, 1)
	assert.Equal(t, "0xaaa", result.Rows[0].ConsolidationKey)
	assert.Equal(t, 2, result.Rows[0].RankGlobal)
	assert.Equal(t, []string{"0xaaa"}, st.SavedTargets)
}

func TestComputeIncrementalDeletesEmptiedCluster(t *testing.T) {
	cutoff := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	acquired := cutoff.AddDate(0, 0, -10)
	sold := cutoff.AddDate(0, 0, -2)

	st := &MockStore{
		WatermarkBlock: 1000,
		Transfers: []model.TransferRecord{
			{TxHash: "0x1", Block: 100, Timestamp: acquired, From: nullAddr, To: "0xaaa", Contract: memesContract, TokenID: 1, Count: 1},
			{TxHash: "0x2", Block: 900, Timestamp: sold, From: "0xaaa", To: "0xext", Contract: memesContract, TokenID: 1, Count: 1},
		},
		Editions: map[string]map[int64]int64{
			memesContract: {1: 100},
		},
		Previous: []model.WalletSnapshot{
			{ConsolidationKey: "0xaaa", Wallets: []string{"0xaaa"}, BoostedTDH: 50},
			{ConsolidationKey: "0xzzz", Wallets: []string{"0xzzz"}, BoostedTDH: 100},
		},
	}
	engine := NewEngine(st, &MockClusterResolver{}, testCollections(), 1, zap.NewNop())

	result, err := engine.Compute(context.Background(), 1000, cutoff, []string{"0xaaa"})
	require.NoError(t, err)

	// The cluster sold its last token: no row survives, but its key stays a
	// replacement target so the stale persisted row is deleted rather than
	// left behind.
	assert.Empty(t, result.Rows)
	assert.Empty(t, st.SavedRows)
	assert.Equal(t, []string{"0xaaa"}, st.SavedTargets)
}

func TestReplayHoldingsFIFO(t *testing.T) {
	t1 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	t3 := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	transfers := []model.TransferRecord{
		{From: "0xext", To: "0xaaa", Contract: memesContract, TokenID: 1, Count: 1, Timestamp: t1},
		{From: "0xext", To: "0xaaa", Contract: memesContract, TokenID: 1, Count: 1, Timestamp: t2},
		// Outflow releases the oldest unit first.
		{From: "0xaaa", To: "0xext", Contract: memesContract, TokenID: 1, Count: 1, Timestamp: t3},
	}

	holdings := replayHoldings(transfers, []string{"0xaaa"})
	units := holdings[memesContract][1]
	require.Len(t, units, 1)
	assert.Equal(t, t2, units[0])
}

func TestPrepareReplayAnchorsTieBreakOnFirstClusterWallet(t *testing.T) {
	ts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	engine := NewEngine(nil, nil, testCollections(), 1, zap.NewNop())
	cluster := []string{"0xaaa", "0xbbb"}

	transfers := []model.TransferRecord{
		{TxHash: "0x2", Block: 100, Timestamp: ts, From: "0xext", To: "0xbbb", Contract: memesContract, TokenID: 1, Count: 1},
		{TxHash: "0x1", Block: 100, Timestamp: ts, From: "0xext", To: "0xaaa", Contract: memesContract, TokenID: 1, Count: 1},
	}

	// Same timestamp and block: the inflow to the cluster's first wallet
	// replays first, whichever member wallet triggered the computation.
	out := engine.prepareReplay(transfers, cluster[0], cluster)
	require.Len(t, out, 2)
	assert.Equal(t, "0xaaa", out[0].To)
	assert.Equal(t, "0xbbb", out[1].To)
}

func TestReplayHoldingsFullExitLeavesNothing(t *testing.T) {
	t1 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	transfers := []model.TransferRecord{
		{From: "0xext", To: "0xaaa", Contract: memesContract, TokenID: 1, Count: 2, Timestamp: t1},
		{From: "0xaaa", To: "0xext", Contract: memesContract, TokenID: 1, Count: 2, Timestamp: t2},
	}

	holdings := replayHoldings(transfers, []string{"0xaaa"})
	assert.Empty(t, holdings)
}

func TestDaysBetween(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, int64(10), daysBetween(base, base.AddDate(0, 0, 10)))
	assert.Equal(t, int64(9), daysBetween(base, base.AddDate(0, 0, 10).Add(-12*time.Hour)))
	assert.Equal(t, int64(0), daysBetween(base, base))
	assert.Equal(t, int64(0), daysBetween(base.AddDate(0, 0, 1), base))
}

func TestDefaultCutoff(t *testing.T) {
	now := time.Date(2025, 6, 15, 14, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC), DefaultCutoff(now))

	midnight := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC), DefaultCutoff(midnight))
}
