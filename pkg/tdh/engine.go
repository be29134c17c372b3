// Package tdh computes per-wallet holding-duration scores over the tracked
// collections and produces the ranked scoring snapshot.
package tdh

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/6529-collections/tdh-indexer/pkg/consolidation"
	"github.com/6529-collections/tdh-indexer/pkg/model"
	"github.com/6529-collections/tdh-indexer/pkg/tdherr"
)

// SeasonRange maps a memes season to its inclusive token-ID range.
type SeasonRange struct {
	Season int
	FromID int64
	ToID   int64
}

// Collections describes the tracked contracts and the historical adjustments
// scoring applies.
type Collections struct {
	Memes     string
	Gradients string
	Nextgen   string

	MemeSeasons     []SeasonRange
	GenesisTokenID  int64
	NakamotoTokenID int64

	// Meme8EditionAdjustment corrects token 8's edition size for a burn that
	// predates indexed history.
	Meme8EditionAdjustment int64
	// ExcludedBurnTx is a historical null-address burn excluded from replay.
	ExcludedBurnTx string
}

func (c Collections) contracts() []string {
	return []string{c.Memes, c.Gradients, c.Nextgen}
}

const meme8TokenID = 8

// Store is the persistence surface the engine consumes and produces.
type Store interface {
	GetWatermark(ctx context.Context, namespace string) (*model.Watermark, error)
	Owners(ctx context.Context, contracts []string) ([]string, error)
	ConfirmedEdgeWallets(ctx context.Context) ([]string, error)
	TransfersForWallets(ctx context.Context, wallets, contracts []string, upToBlock uint64) ([]model.TransferRecord, error)
	EditionSizes(ctx context.Context, contract string, until time.Time) (map[int64]int64, error)
	SnapshotRows(ctx context.Context) ([]model.WalletSnapshot, error)
	ReplaceSnapshot(ctx context.Context, rows []model.WalletSnapshot, targets []string) error
}

// ClusterResolver resolves a wallet to its identity cluster.
type ClusterResolver interface {
	ClusterFor(ctx context.Context, wallet string) ([]string, error)
}

// TransferWatermarkNamespace is the ingestion stream scoring validates
// against before doing any work.
const TransferWatermarkNamespace = "transfers"

// Engine computes scoring snapshots.
type Engine struct {
	store       Store
	clusters    ClusterResolver
	cfg         Collections
	concurrency int
	logger      *zap.Logger
}

// NewEngine creates a scoring engine. concurrency bounds per-wallet fan-out.
func NewEngine(store Store, clusters ClusterResolver, cfg Collections, concurrency int, logger *zap.Logger) *Engine {
	if concurrency <= 0 {
		concurrency = 8
	}
	return &Engine{
		store:       store,
		clusters:    clusters,
		cfg:         cfg,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Result summarizes a completed scoring run.
type Result struct {
	Block        uint64
	Cutoff       time.Time
	Rows         []model.WalletSnapshot
	TotalBoosted int64
}

// DefaultCutoff returns the most recent UTC midnight strictly before now.
func DefaultCutoff(now time.Time) time.Time {
	utc := now.UTC()
	midnight := time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC)
	if !midnight.Before(utc) {
		midnight = midnight.AddDate(0, 0, -1)
	}
	return midnight
}

// Compute runs a full or incremental scoring pass for the target block.
// startingWallets restricts recomputation to those wallets; ranking still
// runs over the merged full set. Writes happen only after every wallet
// computed, so a failed run leaves the previous snapshot untouched.
func (e *Engine) Compute(ctx context.Context, block uint64, cutoff time.Time, startingWallets []string) (*Result, error) {
	wm, err := e.store.GetWatermark(ctx, TransferWatermarkNamespace)
	if err != nil {
		return nil, fmt.Errorf("read transfer watermark: %w", err)
	}
	if wm == nil || block > wm.Block {
		return nil, tdherr.Validation(fmt.Sprintf(
			"target block %d is ahead of transfer watermark", block))
	}
	if cutoff.IsZero() {
		cutoff = DefaultCutoff(time.Now())
	}

	universe, err := e.walletUniverse(ctx, startingWallets)
	if err != nil {
		return nil, err
	}

	editions, hodlIndex, err := e.editionIndex(ctx, cutoff)
	if err != nil {
		return nil, err
	}

	e.logger.Info("Scoring run started",
		zap.Uint64("block", block),
		zap.Time("cutoff", cutoff),
		zap.Int("wallets", len(universe)),
		zap.Int64("hodl_index", hodlIndex),
		zap.Bool("incremental", len(startingWallets) > 0))

	rows, resolvedKeys, err := e.computeRows(ctx, universe, block, cutoff, editions, hodlIndex)
	if err != nil {
		return nil, err
	}

	targets := []string(nil)
	if len(startingWallets) > 0 {
		// Targets are every resolved cluster key, not just the clusters that
		// still hold tokens: a cluster whose last token left must have its
		// stale row replaced by nothing. Merge recomputed rows with the
		// previously persisted rows for all other wallets so ranking remains
		// global, then trim back down.
		targets = resolvedKeys
		rows, err = e.mergePrevious(ctx, rows, resolvedKeys)
		if err != nil {
			return nil, err
		}
	}

	rankRows(rows)

	if len(targets) > 0 {
		rows = filterRows(rows, targets)
	}

	if err := e.store.ReplaceSnapshot(ctx, rows, targets); err != nil {
		return nil, fmt.Errorf("persist snapshot: %w", err)
	}

	var total int64
	for _, row := range rows {
		total += row.BoostedTDH
	}
	return &Result{Block: block, Cutoff: cutoff, Rows: rows, TotalBoosted: total}, nil
}

func (e *Engine) walletUniverse(ctx context.Context, startingWallets []string) ([]string, error) {
	if len(startingWallets) > 0 {
		out := make([]string, 0, len(startingWallets))
		for _, w := range startingWallets {
			out = append(out, strings.ToLower(w))
		}
		return out, nil
	}

	owners, err := e.store.Owners(ctx, e.cfg.contracts())
	if err != nil {
		return nil, fmt.Errorf("list owners: %w", err)
	}
	edgeWallets, err := e.store.ConfirmedEdgeWallets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list consolidation wallets: %w", err)
	}

	seen := map[string]bool{}
	var universe []string
	for _, w := range append(owners, edgeWallets...) {
		w = strings.ToLower(w)
		if !seen[w] {
			seen[w] = true
			universe = append(universe, w)
		}
	}
	sort.Strings(universe)
	return universe, nil
}

// editionIndex computes per-token edition sizes as of the cutoff and the
// global hodl index (the maximum edition size across all tracked tokens).
func (e *Engine) editionIndex(ctx context.Context, cutoff time.Time) (map[string]map[int64]int64, int64, error) {
	editions := make(map[string]map[int64]int64, 3)
	var hodlIndex int64
	for _, contract := range e.cfg.contracts() {
		sizes, err := e.store.EditionSizes(ctx, contract, cutoff)
		if err != nil {
			return nil, 0, fmt.Errorf("edition sizes for %s: %w", contract, err)
		}
		if contract == e.cfg.Memes {
			if size, ok := sizes[meme8TokenID]; ok {
				sizes[meme8TokenID] = size - e.cfg.Meme8EditionAdjustment
			}
		}
		editions[contract] = sizes
		for _, size := range sizes {
			if size > hodlIndex {
				hodlIndex = size
			}
		}
	}
	return editions, hodlIndex, nil
}

// computeRows scores every distinct cluster the universe resolves to. The
// second return lists all resolved cluster keys, including clusters that no
// longer hold anything and so produced no row.
func (e *Engine) computeRows(ctx context.Context, universe []string, block uint64, cutoff time.Time, editions map[string]map[int64]int64, hodlIndex int64) ([]model.WalletSnapshot, []string, error) {
	var (
		mu       sync.Mutex
		rows     []model.WalletSnapshot
		rowsSeen = map[string]bool{}
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for _, wallet := range universe {
		g.Go(func() error {
			cluster, err := e.clusters.ClusterFor(ctx, wallet)
			if err != nil {
				return fmt.Errorf("resolve cluster for %s: %w", wallet, err)
			}
			sort.Strings(cluster)
			key := consolidation.Key(cluster)

			mu.Lock()
			if rowsSeen[key] {
				mu.Unlock()
				return nil
			}
			rowsSeen[key] = true
			mu.Unlock()

			// The sorted cluster's first wallet anchors the replay tie-breaks
			// so the result does not depend on which member wallet resolved
			// the cluster first.
			row, err := e.scoreCluster(ctx, cluster[0], cluster, block, cutoff, editions, hodlIndex)
			if err != nil {
				return err
			}
			if row == nil {
				return nil
			}
			mu.Lock()
			rows = append(rows, *row)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	sort.Slice(rows, func(i, j int) bool {
		return rows[i].ConsolidationKey < rows[j].ConsolidationKey
	})
	keys := make([]string, 0, len(rowsSeen))
	for key := range rowsSeen {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return rows, keys, nil
}

// scoreCluster computes one snapshot row by replaying the cluster's transfer
// history up to the target block.
func (e *Engine) scoreCluster(ctx context.Context, anchor string, cluster []string, block uint64, cutoff time.Time, editions map[string]map[int64]int64, hodlIndex int64) (*model.WalletSnapshot, error) {
	transfers, err := e.store.TransfersForWallets(ctx, cluster, e.cfg.contracts(), block)
	if err != nil {
		return nil, fmt.Errorf("transfers for cluster %v: %w", cluster, err)
	}
	transfers = e.prepareReplay(transfers, anchor, cluster)

	holdings := replayHoldings(transfers, cluster)
	if len(holdings) == 0 {
		return nil, nil
	}

	row := &model.WalletSnapshot{
		ConsolidationKey: consolidation.Key(cluster),
		Wallets:          cluster,
		Block:            block,
		Date:             cutoff,
	}

	for ck, tokens := range holdings {
		for tokenID, units := range tokens {
			score := scoreToken(tokenID, units, cutoff, editions[ck], hodlIndex)
			if score.Score == 0 && score.Balance == 0 {
				continue
			}
			switch ck {
			case e.cfg.Memes:
				row.MemesScores = append(row.MemesScores, score)
				row.MemesRawTDH += score.RawScore
				row.MemesTDH += score.Score
				row.MemesBalance += score.Balance
			case e.cfg.Gradients:
				row.GradientsScores = append(row.GradientsScores, score)
				row.GradientsTDH += score.Score
				row.GradientsBalance += score.Balance
			case e.cfg.Nextgen:
				row.NextgenScores = append(row.NextgenScores, score)
				row.NextgenTDH += score.Score
				row.NextgenBalance += score.Balance
			}
			row.RawTDH += score.RawScore
		}
	}
	row.TotalBalance = row.MemesBalance + row.GradientsBalance + row.NextgenBalance

	sortScores(row.MemesScores)
	sortScores(row.GradientsScores)
	sortScores(row.NextgenScores)

	e.applyBoost(row, editions)
	return row, nil
}

// prepareReplay deduplicates transfers by natural key, drops self-transfers
// and the excluded historical burn, and orders the replay by date with the
// cluster-inbound and anchor-directed tie-breaks.
func (e *Engine) prepareReplay(transfers []model.TransferRecord, anchor string, cluster []string) []model.TransferRecord {
	inCluster := map[string]bool{}
	for _, w := range cluster {
		inCluster[w] = true
	}

	type key struct {
		tx, from, to, contract string
		tokenID                int64
	}
	seen := map[key]bool{}
	out := make([]model.TransferRecord, 0, len(transfers))
	for _, t := range transfers {
		if t.From == t.To {
			continue
		}
		if strings.EqualFold(t.TxHash, e.cfg.ExcludedBurnTx) {
			continue
		}
		k := key{t.TxHash, t.From, t.To, t.Contract, t.TokenID}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, t)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		// Inbound transfers from cluster members land before external inflows.
		if inCluster[a.From] != inCluster[b.From] {
			return inCluster[a.From]
		}
		// Transfers to the anchor wallet land before transfers elsewhere.
		if (a.To == anchor) != (b.To == anchor) {
			return a.To == anchor
		}
		if a.Block != b.Block {
			return a.Block < b.Block
		}
		return a.TxHash < b.TxHash
	})
	return out
}

// replayHoldings replays transfers against the cluster, tracking the
// acquisition date of every unit still attributable to it. Intra-cluster
// moves preserve acquisition dates; outflows release the oldest units first.
func replayHoldings(transfers []model.TransferRecord, cluster []string) map[string]map[int64][]time.Time {
	inCluster := map[string]bool{}
	for _, w := range cluster {
		inCluster[w] = true
	}

	holdings := map[string]map[int64][]time.Time{}
	for _, t := range transfers {
		fromIn, toIn := inCluster[t.From], inCluster[t.To]
		switch {
		case toIn && !fromIn:
			tokens := holdings[t.Contract]
			if tokens == nil {
				tokens = map[int64][]time.Time{}
				holdings[t.Contract] = tokens
			}
			for i := int64(0); i < t.Count; i++ {
				tokens[t.TokenID] = append(tokens[t.TokenID], t.Timestamp)
			}
		case fromIn && !toIn:
			tokens := holdings[t.Contract]
			if tokens == nil {
				continue
			}
			units := tokens[t.TokenID]
			release := t.Count
			if release > int64(len(units)) {
				release = int64(len(units))
			}
			tokens[t.TokenID] = units[release:]
			if len(tokens[t.TokenID]) == 0 {
				delete(tokens, t.TokenID)
			}
			if len(tokens) == 0 {
				delete(holdings, t.Contract)
			}
		}
	}
	return holdings
}

// scoreToken converts a token's held units into its holding score.
func scoreToken(tokenID int64, units []time.Time, cutoff time.Time, editions map[int64]int64, hodlIndex int64) model.TokenScore {
	score := model.TokenScore{
		TokenID: tokenID,
		Balance: int64(len(units)),
	}
	for _, acquired := range units {
		days := daysBetween(acquired, cutoff)
		if days > 0 {
			score.RawScore += days
		}
	}
	edition := editions[tokenID]
	if edition > 0 {
		score.HodlRate = round2(float64(hodlIndex) / float64(edition))
	}
	score.Score = int64(math.Round(float64(score.RawScore) * score.HodlRate))
	return score
}

func daysBetween(from, to time.Time) int64 {
	if !from.Before(to) {
		return 0
	}
	return int64(to.Sub(from).Hours() / 24)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func sortScores(scores []model.TokenScore) {
	sort.Slice(scores, func(i, j int) bool {
		return scores[i].TokenID < scores[j].TokenID
	})
}

// mergePrevious folds previously persisted rows for non-target clusters into
// the recomputed set so ranking stays global in incremental mode. Previous
// rows for any resolved cluster are skipped even when the recomputation
// produced no row: those are stale.
func (e *Engine) mergePrevious(ctx context.Context, recomputed []model.WalletSnapshot, resolvedKeys []string) ([]model.WalletSnapshot, error) {
	previous, err := e.store.SnapshotRows(ctx)
	if err != nil {
		return nil, fmt.Errorf("load previous snapshot: %w", err)
	}
	fresh := map[string]bool{}
	for _, key := range resolvedKeys {
		fresh[key] = true
	}
	merged := recomputed
	for _, row := range previous {
		if !fresh[row.ConsolidationKey] {
			merged = append(merged, row)
		}
	}
	return merged, nil
}

func filterRows(rows []model.WalletSnapshot, targets []string) []model.WalletSnapshot {
	keep := map[string]bool{}
	for _, t := range targets {
		keep[t] = true
	}
	out := rows[:0]
	for _, row := range rows {
		if keep[row.ConsolidationKey] {
			out = append(out, row)
		}
	}
	return out
}
