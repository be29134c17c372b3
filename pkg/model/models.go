// Package model holds the entities shared between ingestion, scoring and storage.
package model

import "time"

// TransferRecord is one decoded NFT transfer. The natural key is
// (TxHash, From, To, Contract, TokenID); economic fields are filled by the
// value resolver in a second pass.
type TransferRecord struct {
	TxHash          string    `json:"tx_hash"`
	Block           uint64    `json:"block"`
	Timestamp       time.Time `json:"timestamp"`
	From            string    `json:"from"`
	To              string    `json:"to"`
	Contract        string    `json:"contract"`
	TokenID         int64     `json:"token_id"`
	Count           int64     `json:"count"`
	Value           float64   `json:"value"`
	Royalties       float64   `json:"royalties"`
	PrimaryProceeds float64   `json:"primary_proceeds"`
	GasCost         float64   `json:"gas_cost"`
	GasPriceGwei    float64   `json:"gas_price_gwei"`
	Resolved        bool      `json:"resolved"`
}

// OwnershipBalance is the current holding of one token by one address.
// Rows with a zero balance are deleted, never retained.
type OwnershipBalance struct {
	Owner    string
	Contract string
	TokenID  int64
	Balance  int64
}

// OwnershipDelta is a signed balance change derived from transfers.
type OwnershipDelta struct {
	Owner    string
	Contract string
	TokenID  int64
	Delta    int64
}

// ConsolidationEdge links two wallets that declared themselves one identity.
// WalletA is the registering side while the edge is unconfirmed; once both
// directions have been seen the edge is confirmed. Addresses are lower-cased
// and never self-referential.
type ConsolidationEdge struct {
	WalletA   string
	WalletB   string
	Block     uint64
	Confirmed bool
}

// DelegationEdge is an append-only delegation registration. A revocation
// removes matching edges registered strictly before the revocation block.
type DelegationEdge struct {
	FromWallet string
	ToWallet   string
	Block      uint64
	Collection string
	UseCase    int64
	Expiry     *time.Time
	AllTokens  bool
	TokenID    *int64
}

// Watermark is the last block fully processed by an ingestion stream.
type Watermark struct {
	Namespace string
	Block     uint64
	Timestamp time.Time
}

// TokenScore is the per-token holding score inside a wallet snapshot row.
type TokenScore struct {
	TokenID  int64   `json:"id"`
	Balance  int64   `json:"balance"`
	HodlRate float64 `json:"hodl_rate"`
	RawScore int64   `json:"raw_tdh"`
	Score    int64   `json:"tdh"`
	Rank     int     `json:"rank"`
}

// WalletSnapshot is one wallet's scoring row for a snapshot block. The
// ConsolidationKey identifies the wallet's identity cluster.
type WalletSnapshot struct {
	ConsolidationKey string
	Wallets          []string
	Block            uint64
	Date             time.Time

	RawTDH     int64
	Boost      float64
	BoostedTDH int64

	MemesTDH            int64
	MemesBoostedTDH     int64
	MemesRawTDH         int64
	MemesBalance        int64
	GradientsTDH        int64
	GradientsBoostedTDH int64
	GradientsBalance    int64
	NextgenTDH          int64
	NextgenBoostedTDH   int64
	NextgenBalance      int64
	TotalBalance        int64

	MemesSetCount int
	HasGenesis    bool
	HasNakamoto   bool

	RankGlobal    int
	RankMemes     int
	RankGradients int
	RankNextgen   int

	MemesScores     []TokenScore
	GradientsScores []TokenScore
	NextgenScores   []TokenScore
}

// SnapshotCommitment is the singleton Merkle commitment over the latest
// fully-persisted snapshot.
type SnapshotCommitment struct {
	Block      uint64
	Timestamp  time.Time
	MerkleRoot string
	ComputedAt time.Time
}

// JobLogLine is one persisted log line emitted by a scheduled job run.
type JobLogLine struct {
	Namespace string
	Level     string
	Message   string
	CreatedAt time.Time
}
