package scanner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/6529-collections/tdh-indexer/internal/metrics"
	"github.com/6529-collections/tdh-indexer/pkg/consolidation"
	"github.com/6529-collections/tdh-indexer/pkg/model"
	"github.com/6529-collections/tdh-indexer/pkg/store"
)

// Delegation registry event signatures.
var (
	TopicRegisterDelegation = crypto.Keccak256Hash([]byte("RegisterDelegation(address,address,address,uint256)"))
	TopicRevokeDelegation   = crypto.Keccak256Hash([]byte("RevokeDelegation(address,address,address,uint256)"))
)

// ConsolidationUseCase is the registry use case that declares two wallets one
// identity rather than a plain delegation.
const ConsolidationUseCase = 99

// DelegationWatermarkNamespace is the delegation stream's watermark key.
const DelegationWatermarkNamespace = "delegations"

// DelegationConfig configures the delegation scanner.
type DelegationConfig struct {
	Registry   common.Address
	StartBlock uint64
	WindowSize uint64
	Pause      time.Duration
}

// DelegationScanner ingests delegation-registry events and applies them to
// the consolidation state machine.
type DelegationScanner struct {
	chain  ChainSource
	store  *store.Store
	cfg    DelegationConfig
	logger *zap.Logger

	OnProgress func(Progress)
}

// NewDelegationScanner creates a delegation scanner.
func NewDelegationScanner(chain ChainSource, st *store.Store, cfg DelegationConfig, logger *zap.Logger) *DelegationScanner {
	if cfg.WindowSize == 0 {
		cfg.WindowSize = 2000
	}
	return &DelegationScanner{chain: chain, store: st, cfg: cfg, logger: logger}
}

// Scan walks the registry contract from the stored watermark to the head.
// Each window's events and the watermark commit in one transaction.
func (s *DelegationScanner) Scan(ctx context.Context) error {
	head, err := s.chain.BlockNumber(ctx)
	if err != nil {
		return err
	}

	start := s.cfg.StartBlock
	wm, err := s.store.GetWatermark(ctx, DelegationWatermarkNamespace)
	if err != nil {
		return fmt.Errorf("read watermark: %w", err)
	}
	if wm != nil && wm.Block+1 > start {
		start = wm.Block + 1
	}
	if start > head {
		return nil
	}

	for from := start; from <= head; {
		to := from + s.cfg.WindowSize - 1
		if to > head {
			to = head
		}

		applied, err := s.processWindow(ctx, from, to)
		if err != nil {
			return err
		}

		metrics.BlocksProcessed.WithLabelValues(DelegationWatermarkNamespace).Add(float64(to - from + 1))
		metrics.WatermarkBlock.WithLabelValues(DelegationWatermarkNamespace).Set(float64(to))
		if s.OnProgress != nil {
			s.OnProgress(Progress{FromBlock: from, ToBlock: to, Head: head, Records: applied})
		}

		from = to + 1
		if from <= head && s.cfg.Pause > 0 {
			select {
			case <-time.After(s.cfg.Pause):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}

func (s *DelegationScanner) processWindow(ctx context.Context, from, to uint64) (int, error) {
	logs, err := s.chain.FilterLogs(ctx, []common.Address{s.cfg.Registry}, [][]common.Hash{{
		TopicRegisterDelegation,
		TopicRevokeDelegation,
	}}, from, to)
	if err != nil {
		return 0, err
	}

	endBlock, err := s.chain.BlockByNumber(ctx, to)
	if err != nil {
		return 0, err
	}
	endTime := time.Unix(int64(endBlock.Time()), 0).UTC()

	applied := 0
	err = s.store.WithTx(ctx, func(tx *store.Store) error {
		resolver := consolidation.NewResolver(tx, tx, s.logger)
		for _, log := range logs {
			ok, err := s.applyLog(ctx, resolver, log)
			if err != nil {
				return err
			}
			if ok {
				applied++
			}
		}
		return tx.SetWatermark(ctx, model.Watermark{
			Namespace: DelegationWatermarkNamespace,
			Block:     to,
			Timestamp: endTime,
		})
	})
	if err != nil {
		return 0, fmt.Errorf("commit window %d-%d: %w", from, to, err)
	}
	return applied, nil
}

// applyLog routes one registry event. The consolidation use case drives the
// edge state machine; every other use case lands in the delegation registry.
func (s *DelegationScanner) applyLog(ctx context.Context, resolver *consolidation.Resolver, log types.Log) (bool, error) {
	if len(log.Topics) < 4 || len(log.Data) < 32 {
		s.logger.Debug("Skipping malformed registry log",
			zap.String("tx_hash", log.TxHash.Hex()),
			zap.Uint("log_index", log.Index))
		return false, nil
	}

	delegator := strings.ToLower(common.BytesToAddress(log.Topics[1].Bytes()).Hex())
	collection := strings.ToLower(common.BytesToAddress(log.Topics[2].Bytes()).Hex())
	delegate := strings.ToLower(common.BytesToAddress(log.Topics[3].Bytes()).Hex())
	useCase := wordInt64(log.Data[:32])

	switch log.Topics[0] {
	case TopicRegisterDelegation:
		if useCase == ConsolidationUseCase {
			return true, resolver.Register(ctx, delegator, delegate, log.BlockNumber)
		}
		return true, resolver.Delegate(ctx, model.DelegationEdge{
			FromWallet: delegator,
			ToWallet:   delegate,
			Block:      log.BlockNumber,
			Collection: collection,
			UseCase:    useCase,
			AllTokens:  true,
		})
	case TopicRevokeDelegation:
		if useCase == ConsolidationUseCase {
			return true, resolver.Revoke(ctx, delegator, delegate, log.BlockNumber)
		}
		return true, resolver.RevokeDelegation(ctx, delegator, delegate, collection, useCase, log.BlockNumber)
	}
	return false, nil
}

// wordInt64 reads a 32-byte ABI word as a small integer. Use-case values fit
// comfortably; only the low 8 bytes matter.
func wordInt64(word []byte) int64 {
	var v int64
	for _, b := range word[len(word)-8:] {
		v = v<<8 | int64(b)
	}
	return v
}
