package decoder

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/6529-collections/tdh-indexer/pkg/model"
	"github.com/6529-collections/tdh-indexer/pkg/tdherr"
)

// ChainReader is the chain access the resolver needs.
type ChainReader interface {
	TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, error)
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	FilterLogs(ctx context.Context, addresses []common.Address, topics [][]common.Hash, fromBlock, toBlock uint64) ([]types.Log, error)
}

// ResolverConfig carries the addresses the resolver matches against.
// All addresses are compared lower-cased.
type ResolverConfig struct {
	// PaymentTokens are wrapped-payment token contracts whose Transfer logs
	// carry sale proceeds (e.g. WETH).
	PaymentTokens []string
	// RoyaltyRecipients are the collection royalty addresses.
	RoyaltyRecipients []string
	// ProceedsRecipients are deployer/minter addresses credited with primary
	// mint proceeds.
	ProceedsRecipients []string
	// Concurrency bounds per-record fan-out.
	Concurrency int
}

// Resolver fills the economic fields of draft transfer records by inspecting
// each record's transaction receipt. Per-record failures are logged and
// skipped; a rate-limited chain read aborts the batch.
type Resolver struct {
	reader ChainReader
	cfg    ResolverConfig
	logger *zap.Logger
}

// NewResolver creates a value resolver.
func NewResolver(reader ChainReader, cfg ResolverConfig, logger *zap.Logger) *Resolver {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &Resolver{reader: reader, cfg: cfg, logger: logger}
}

// ResolveBatch resolves records in place with bounded concurrency. Records
// whose resolution failed transiently keep Resolved=false so the next run
// picks them up again.
func (r *Resolver) ResolveBatch(ctx context.Context, records []model.TransferRecord) ([]model.TransferRecord, error) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)

	for i := range records {
		rec := &records[i]
		g.Go(func() error {
			err := r.resolveRecord(ctx, rec)
			if err == nil {
				return nil
			}
			if tdherr.Is(err, tdherr.KindRateLimited) {
				return err
			}
			r.logger.Warn("Value resolution failed for record",
				zap.String("tx_hash", rec.TxHash),
				zap.Int64("token_id", rec.TokenID),
				zap.Error(err))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return records, err
	}
	return records, nil
}

func (r *Resolver) resolveRecord(ctx context.Context, rec *model.TransferRecord) error {
	txHash := common.HexToHash(rec.TxHash)
	tx, err := r.reader.TransactionByHash(ctx, txHash)
	if err != nil {
		return err
	}
	receipt, err := r.reader.TransactionReceipt(ctx, txHash)
	if err != nil {
		return err
	}

	gasPrice := receipt.EffectiveGasPrice
	if gasPrice == nil {
		gasPrice = tx.GasPrice()
	}
	gasWei := new(big.Int).Mul(new(big.Int).SetUint64(receipt.GasUsed), gasPrice)

	// Gas is split evenly across transfer events the receipt emits to the
	// same recipient (shared-transaction cost splitting).
	shares := r.countTransfersTo(receipt.Logs, rec.To)
	if shares > 1 {
		gasWei.Div(gasWei, big.NewInt(shares))
	}
	rec.GasCost = weiToEth(gasWei)
	rec.GasPriceGwei = round8(decimal.NewFromBigInt(gasPrice, -9))

	valueWei := big.NewInt(0)
	royaltiesWei := big.NewInt(0)

	if value, royalties, ok := r.resolveSettlement(receipt.Logs, rec); ok {
		valueWei, royaltiesWei = value, royalties
	} else {
		// Plain value-transfer fallback: a payment-token transfer to the
		// seller is attributed as the sale value.
		valueWei = r.paymentTransferTo(receipt.Logs, rec.From)
		if feeRate, ok := r.royaltyFeeRate(receipt.Logs); ok {
			royaltiesWei = new(big.Int).Div(
				new(big.Int).Mul(valueWei, big.NewInt(feeRate)),
				big.NewInt(10000))
		}
	}

	if rec.From == NullAddress {
		proceeds, err := r.primaryProceeds(ctx, rec)
		if err != nil {
			return err
		}
		if proceeds.Sign() == 0 {
			proceeds = valueWei
		}
		rec.PrimaryProceeds = weiToEth(proceeds)
	}

	rec.Value = weiToEth(valueWei)
	rec.Royalties = weiToEth(royaltiesWei)
	rec.Resolved = true
	return nil
}

// countTransfersTo counts transfer events in the receipt destined for the
// given address, for gas splitting.
func (r *Resolver) countTransfersTo(logs []*types.Log, to string) int64 {
	var n int64
	for _, log := range logs {
		transfers, ok := decodeTransferLog(*log)
		if !ok {
			continue
		}
		for _, t := range transfers {
			if strings.EqualFold(t.To.Hex(), to) {
				n++
			}
		}
	}
	if n == 0 {
		return 1
	}
	return n
}

// resolveSettlement scans the receipt for a structured settlement log whose
// token legs match the record, and extracts the total non-token
// consideration plus the amount paid to the royalty recipient.
func (r *Resolver) resolveSettlement(logs []*types.Log, rec *model.TransferRecord) (*big.Int, *big.Int, bool) {
	for _, log := range logs {
		if len(log.Topics) == 0 || log.Topics[0] != TopicOrderFulfilled {
			continue
		}
		offer, consideration, ok := parseOrderFulfilled(*log)
		if !ok {
			continue
		}
		if !legsMatchRecord(offer, rec) && !legsMatchRecord(consideration, rec) {
			continue
		}

		value := big.NewInt(0)
		royalties := big.NewInt(0)
		// When the NFT sits on the offer side the payment legs are the
		// consideration, and vice versa for accepted bids.
		paymentLegs := consideration
		if legsMatchRecord(consideration, rec) && !legsMatchRecord(offer, rec) {
			paymentLegs = offer
		}
		for _, leg := range paymentLegs {
			if strings.EqualFold(leg.Token.Hex(), rec.Contract) {
				continue
			}
			value.Add(value, leg.Amount)
			if r.isRoyaltyRecipient(leg.Recipient) {
				royalties.Add(royalties, leg.Amount)
			}
		}
		return value, royalties, true
	}
	return nil, nil, false
}

// royaltyFeeRate extracts the basis-point fee rate from a compact royalty-fee
// log when its packed recipient matches a configured royalty address.
func (r *Resolver) royaltyFeeRate(logs []*types.Log) (int64, bool) {
	for _, log := range logs {
		if len(log.Topics) == 0 || log.Topics[0] != TopicRoyaltyFee {
			continue
		}
		packed, ok := word(log.Data, 0)
		if !ok {
			continue
		}
		recipient := common.BigToAddress(new(big.Int).And(packed, addressMask))
		feeRate := new(big.Int).Rsh(packed, 160).Int64()
		if r.isRoyaltyRecipient(recipient) {
			return feeRate, true
		}
	}
	return 0, false
}

var addressMask = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 160), big.NewInt(1))

// paymentTransferTo sums payment-token transfer amounts sent to the given
// address within the receipt.
func (r *Resolver) paymentTransferTo(logs []*types.Log, to string) *big.Int {
	total := big.NewInt(0)
	for _, log := range logs {
		if !r.isPaymentToken(log.Address) {
			continue
		}
		if len(log.Topics) != 3 || log.Topics[0] != TopicTransfer {
			continue
		}
		recipient := common.BytesToAddress(log.Topics[2].Bytes())
		if !strings.EqualFold(recipient.Hex(), to) {
			continue
		}
		if amount, ok := word(log.Data, 0); ok {
			total.Add(total, amount)
		}
	}
	return total
}

// primaryProceeds sums payment amounts routed to the deployer/minter in the
// minting transaction's block.
func (r *Resolver) primaryProceeds(ctx context.Context, rec *model.TransferRecord) (*big.Int, error) {
	if len(r.cfg.PaymentTokens) == 0 {
		return big.NewInt(0), nil
	}
	addresses := make([]common.Address, 0, len(r.cfg.PaymentTokens))
	for _, a := range r.cfg.PaymentTokens {
		addresses = append(addresses, common.HexToAddress(a))
	}
	logs, err := r.reader.FilterLogs(ctx, addresses,
		[][]common.Hash{{TopicTransfer}}, rec.Block, rec.Block)
	if err != nil {
		return nil, err
	}

	total := big.NewInt(0)
	for _, log := range logs {
		if !strings.EqualFold(log.TxHash.Hex(), rec.TxHash) {
			continue
		}
		if len(log.Topics) != 3 {
			continue
		}
		recipient := strings.ToLower(common.BytesToAddress(log.Topics[2].Bytes()).Hex())
		if !r.isProceedsRecipient(recipient) && recipient != rec.To {
			continue
		}
		if amount, ok := word(log.Data, 0); ok {
			total.Add(total, amount)
		}
	}
	return total, nil
}

func (r *Resolver) isPaymentToken(addr common.Address) bool {
	return containsAddress(r.cfg.PaymentTokens, addr.Hex())
}

func (r *Resolver) isRoyaltyRecipient(addr common.Address) bool {
	return containsAddress(r.cfg.RoyaltyRecipients, addr.Hex())
}

func (r *Resolver) isProceedsRecipient(addr string) bool {
	return containsAddress(r.cfg.ProceedsRecipients, addr)
}

func containsAddress(haystack []string, addr string) bool {
	for _, a := range haystack {
		if strings.EqualFold(a, addr) {
			return true
		}
	}
	return false
}

// weiToEth converts a wei amount to ETH rounded to 8 decimal places.
func weiToEth(wei *big.Int) float64 {
	return round8(decimal.NewFromBigInt(wei, -18))
}

func round8(d decimal.Decimal) float64 {
	return d.Round(8).InexactFloat64()
}
