package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ChainCalls counts JSON-RPC calls by method and outcome
	ChainCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tdh_chain_calls_total",
			Help: "Total number of chain RPC calls",
		},
		[]string{"method", "outcome"},
	)

	// BlocksProcessed counts blocks processed per ingestion namespace
	BlocksProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tdh_blocks_processed_total",
			Help: "Total number of blocks processed",
		},
		[]string{"namespace"},
	)

	// TransfersDecoded counts decoded transfer records
	TransfersDecoded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tdh_transfers_decoded_total",
			Help: "Total number of transfer records decoded",
		},
	)

	// JobRuns counts scheduled job runs by namespace and final status
	JobRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tdh_job_runs_total",
			Help: "Total number of job runs",
		},
		[]string{"namespace", "status"},
	)

	// StoreRetries counts transient store-locked retries
	StoreRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tdh_store_retries_total",
			Help: "Total number of store lock retries",
		},
	)

	// WatermarkBlock tracks the last fully processed block per namespace
	WatermarkBlock = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tdh_watermark_block",
			Help: "Last fully processed block by ingestion namespace",
		},
		[]string{"namespace"},
	)

	// SnapshotBlock tracks the block of the latest published snapshot
	SnapshotBlock = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tdh_snapshot_block",
			Help: "Block number of the latest scoring snapshot",
		},
	)

	// SnapshotTotalTDH tracks the aggregate boosted score of the latest snapshot
	SnapshotTotalTDH = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tdh_snapshot_total_boosted",
			Help: "Aggregate boosted TDH of the latest scoring snapshot",
		},
	)
)
