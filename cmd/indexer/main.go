package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/6529-collections/tdh-indexer/internal/metrics"
	"github.com/6529-collections/tdh-indexer/pkg/api"
	"github.com/6529-collections/tdh-indexer/pkg/chain"
	"github.com/6529-collections/tdh-indexer/pkg/config"
	"github.com/6529-collections/tdh-indexer/pkg/consolidation"
	"github.com/6529-collections/tdh-indexer/pkg/decoder"
	"github.com/6529-collections/tdh-indexer/pkg/merkle"
	"github.com/6529-collections/tdh-indexer/pkg/model"
	"github.com/6529-collections/tdh-indexer/pkg/scanner"
	"github.com/6529-collections/tdh-indexer/pkg/scheduler"
	"github.com/6529-collections/tdh-indexer/pkg/store"
	"github.com/6529-collections/tdh-indexer/pkg/tdh"
)

var (
	configPath = flag.String("config", "config.yaml", "Path to configuration file")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting TDH indexer")

	st, err := store.NewStore(cfg.Database.GetConnectionString(), logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer st.Close()
	logger.Info("Database connection established")

	chainClient, err := chain.Dial(cfg.Chain.RPCURL, cfg.Chain.MaxInflightCalls, logger)
	if err != nil {
		logger.Fatal("Failed to connect to chain RPC", zap.Error(err))
	}
	defer chainClient.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sched := buildScheduler(cfg, st, chainClient, logger)
	sched.Start()
	defer sched.Stop()

	if cfg.Monitoring.Enabled {
		go serveMetrics(cfg.Monitoring.MetricsPort, logger)
	}

	server := api.NewServer(st, sched, logger)
	if err := api.ServeAndWait(ctx, server.Router(), cfg.Server, logger); err != nil {
		logger.Error("HTTP server exited with error", zap.Error(err))
	}

	logger.Info("Indexer stopped")
}

func buildScheduler(cfg *config.Config, st *store.Store, chainClient *chain.Client, logger *zap.Logger) *scheduler.Scheduler {
	resolver := decoder.NewResolver(chainClient, decoder.ResolverConfig{
		PaymentTokens:      cfg.Resolver.PaymentTokens,
		RoyaltyRecipients:  cfg.Resolver.RoyaltyRecipients,
		ProceedsRecipients: cfg.Resolver.ProceedsRecipients,
		Concurrency:        cfg.Resolver.Concurrency,
	}, logger)

	contracts := []common.Address{
		common.HexToAddress(cfg.Collections.Memes),
		common.HexToAddress(cfg.Collections.Gradients),
	}
	if cfg.Collections.Nextgen != "" {
		contracts = append(contracts, common.HexToAddress(cfg.Collections.Nextgen))
	}

	transferScanner := scanner.NewTransferScanner(chainClient, st, resolver, scanner.TransferConfig{
		Contracts:       contracts,
		StartBlock:      cfg.Scanner.TransferStartBlock,
		WindowSize:      cfg.Scanner.WindowSize,
		Pause:           cfg.Scanner.Pause,
		EscrowAddresses: cfg.Scanner.EscrowAddresses,
	}, logger)

	delegationScanner := scanner.NewDelegationScanner(chainClient, st, scanner.DelegationConfig{
		Registry:   common.HexToAddress(cfg.Chain.DelegationRegistry),
		StartBlock: cfg.Scanner.DelegationStartBlock,
		WindowSize: cfg.Scanner.WindowSize,
		Pause:      cfg.Scanner.Pause,
	}, logger)

	clusters := consolidation.NewResolver(st, st, logger)
	engine := tdh.NewEngine(st, clusters, tdh.Collections{
		Memes:                  cfg.Collections.Memes,
		Gradients:              cfg.Collections.Gradients,
		Nextgen:                cfg.Collections.Nextgen,
		MemeSeasons:            seasonRanges(cfg.Collections.MemeSeasons),
		GenesisTokenID:         cfg.Collections.GenesisTokenID,
		NakamotoTokenID:        cfg.Collections.NakamotoTokenID,
		Meme8EditionAdjustment: cfg.Collections.Meme8EditionAdjustment,
		ExcludedBurnTx:         cfg.Collections.ExcludedBurnTx,
	}, cfg.Scoring.Concurrency, logger)

	disabled := func(namespace string) bool {
		for _, ns := range cfg.Jobs.Disabled {
			if ns == namespace {
				return true
			}
		}
		return false
	}

	sched := scheduler.New(st, logger)
	sched.Register(scheduler.Job{
		Namespace: scanner.WatermarkNamespace,
		Interval:  cfg.Jobs.TransfersInterval,
		Disabled:  disabled(scanner.WatermarkNamespace),
		Run: func(ctx context.Context, report scheduler.Reporter) error {
			transferScanner.OnProgress = func(p scanner.Progress) {
				report("info", fmt.Sprintf("window %d-%d committed (%d records, head %d)",
					p.FromBlock, p.ToBlock, p.Records, p.Head))
			}
			return transferScanner.Scan(ctx)
		},
	})
	sched.Register(scheduler.Job{
		Namespace: scanner.DelegationWatermarkNamespace,
		Interval:  cfg.Jobs.DelegationsInterval,
		Disabled:  disabled(scanner.DelegationWatermarkNamespace),
		Run: func(ctx context.Context, report scheduler.Reporter) error {
			delegationScanner.OnProgress = func(p scanner.Progress) {
				report("info", fmt.Sprintf("window %d-%d committed (%d events, head %d)",
					p.FromBlock, p.ToBlock, p.Records, p.Head))
			}
			return delegationScanner.Scan(ctx)
		},
	})
	sched.Register(scheduler.Job{
		Namespace: "resolve",
		Interval:  cfg.Jobs.ResolveInterval,
		Disabled:  disabled("resolve"),
		Run: func(ctx context.Context, report scheduler.Reporter) error {
			return runResolution(ctx, st, resolver, report)
		},
	})
	sched.Register(scheduler.Job{
		Namespace: "tdh",
		Interval:  cfg.Jobs.ScoringInterval,
		Disabled:  disabled("tdh"),
		Run: func(ctx context.Context, report scheduler.Reporter) error {
			return runScoring(ctx, st, engine, report)
		},
	})
	return sched
}

const resolveBatchSize = 500

// runResolution retries value resolution for transfers whose economic fields
// are still unresolved, oldest first.
func runResolution(ctx context.Context, st *store.Store, resolver *decoder.Resolver, report scheduler.Reporter) error {
	for {
		pending, err := st.UnresolvedTransfers(ctx, resolveBatchSize)
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			report("info", "no unresolved transfers")
			return nil
		}

		records, err := resolver.ResolveBatch(ctx, pending)
		if err != nil {
			return err
		}
		if err := st.UpsertTransfers(ctx, records); err != nil {
			return err
		}

		resolved := 0
		for _, rec := range records {
			if rec.Resolved {
				resolved++
			}
		}
		report("info", fmt.Sprintf("resolved %d of %d transfers", resolved, len(records)))
		// A batch that made no progress would be refetched verbatim.
		if len(pending) < resolveBatchSize || resolved == 0 {
			return nil
		}
	}
}

// runScoring computes a full snapshot at the transfer watermark and commits
// its Merkle root.
func runScoring(ctx context.Context, st *store.Store, engine *tdh.Engine, report scheduler.Reporter) error {
	wm, err := st.GetWatermark(ctx, tdh.TransferWatermarkNamespace)
	if err != nil {
		return err
	}
	if wm == nil {
		report("info", "no transfers ingested yet, skipping scoring")
		return nil
	}

	result, err := engine.Compute(ctx, wm.Block, time.Time{}, nil)
	if err != nil {
		return err
	}
	report("info", fmt.Sprintf("scored %d clusters at block %d", len(result.Rows), result.Block))

	entries := make([]merkle.Entry, 0, len(result.Rows))
	for _, row := range result.Rows {
		entries = append(entries, merkle.Entry{Key: row.ConsolidationKey, Value: row.BoostedTDH})
	}
	root := merkle.Root(entries)

	err = st.SaveCommitment(ctx, model.SnapshotCommitment{
		Block:      result.Block,
		Timestamp:  wm.Timestamp,
		MerkleRoot: fmt.Sprintf("0x%x", root),
		ComputedAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	metrics.SnapshotBlock.Set(float64(result.Block))
	metrics.SnapshotTotalTDH.Set(float64(result.TotalBoosted))
	report("info", fmt.Sprintf("committed merkle root 0x%x", root))
	return nil
}

func seasonRanges(seasons []config.SeasonConfig) []tdh.SeasonRange {
	out := make([]tdh.SeasonRange, 0, len(seasons))
	for _, s := range seasons {
		out = append(out, tdh.SeasonRange{Season: s.Season, FromID: s.FromID, ToID: s.ToID})
	}
	return out
}

func serveMetrics(port int, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	addr := fmt.Sprintf(":%d", port)
	logger.Info("Metrics server listening", zap.String("address", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("Metrics server failed", zap.Error(err))
	}
}
