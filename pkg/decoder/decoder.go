// Package decoder turns raw transfer-style chain logs into structured
// transfer records and resolves their economic value in a second pass.
package decoder

import (
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/6529-collections/tdh-indexer/internal/metrics"
	"github.com/6529-collections/tdh-indexer/pkg/model"
)

type recordKey struct {
	txHash   string
	from     string
	to       string
	contract string
	tokenID  int64
}

// DecodeTransferLogs groups raw logs into draft transfer records. Multiple
// logs for the same (tx, from, to, contract, tokenId) accumulate counts,
// which covers both single- and batch-transfer encodings. Economic fields are
// left zeroed for the value resolver. blockTimes maps block numbers to their
// timestamps.
func DecodeTransferLogs(logs []types.Log, blockTimes map[uint64]time.Time, logger *zap.Logger) []model.TransferRecord {
	grouped := make(map[recordKey]*model.TransferRecord)
	order := make([]recordKey, 0, len(logs))

	for _, log := range logs {
		transfers, ok := decodeTransferLog(log)
		if !ok {
			logger.Debug("Skipping unrecognized log",
				zap.String("tx_hash", log.TxHash.Hex()),
				zap.Uint("log_index", log.Index))
			continue
		}
		for _, t := range transfers {
			key := recordKey{
				txHash:   strings.ToLower(log.TxHash.Hex()),
				from:     strings.ToLower(t.From.Hex()),
				to:       strings.ToLower(t.To.Hex()),
				contract: strings.ToLower(log.Address.Hex()),
				tokenID:  t.TokenID.Int64(),
			}
			if existing, ok := grouped[key]; ok {
				existing.Count += t.Count
				continue
			}
			grouped[key] = &model.TransferRecord{
				TxHash:    key.txHash,
				Block:     log.BlockNumber,
				Timestamp: blockTimes[log.BlockNumber],
				From:      key.from,
				To:        key.to,
				Contract:  key.contract,
				TokenID:   key.tokenID,
				Count:     t.Count,
			}
			order = append(order, key)
		}
	}

	records := make([]model.TransferRecord, 0, len(order))
	for _, key := range order {
		records = append(records, *grouped[key])
	}
	metrics.TransfersDecoded.Add(float64(len(records)))
	return records
}
