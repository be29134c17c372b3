// Package chain wraps the JSON-RPC chain endpoint behind a bounded
// concurrency limit. Rate-limit rejections surface as a distinguishable
// error; everything else is a generic chain read failure. No retries happen
// at this layer.
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/6529-collections/tdh-indexer/internal/metrics"
	"github.com/6529-collections/tdh-indexer/pkg/tdherr"
)

// Client is a rate-limited Ethereum JSON-RPC client. Every call acquires a
// slot from a counting semaphore bounding concurrent in-flight requests.
type Client struct {
	eth    *ethclient.Client
	sem    *semaphore.Weighted
	logger *zap.Logger
}

// Dial connects to the given RPC endpoint. maxInflight bounds concurrent
// outstanding calls across all users of the client.
func Dial(rpcURL string, maxInflight int64, logger *zap.Logger) (*Client, error) {
	if maxInflight <= 0 {
		return nil, fmt.Errorf("max inflight calls must be positive, got %d", maxInflight)
	}
	eth, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to chain RPC: %w", err)
	}
	logger.Info("Connected to chain RPC",
		zap.String("rpc_url", rpcURL),
		zap.Int64("max_inflight", maxInflight))
	return &Client{
		eth:    eth,
		sem:    semaphore.NewWeighted(maxInflight),
		logger: logger,
	}, nil
}

// Close closes the underlying RPC connection.
func (c *Client) Close() {
	c.eth.Close()
}

func (c *Client) acquire(ctx context.Context) error {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return tdherr.ChainRead(err)
	}
	return nil
}

// BlockByNumber fetches a full block.
func (c *Client) BlockByNumber(ctx context.Context, number uint64) (*types.Block, error) {
	if err := c.acquire(ctx); err != nil {
		return nil, err
	}
	defer c.sem.Release(1)

	block, err := c.eth.BlockByNumber(ctx, new(big.Int).SetUint64(number))
	if err != nil {
		return nil, classify("eth_getBlockByNumber", err)
	}
	metrics.ChainCalls.WithLabelValues("eth_getBlockByNumber", "ok").Inc()
	return block, nil
}

// BlockNumber fetches the current chain head.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	if err := c.acquire(ctx); err != nil {
		return 0, err
	}
	defer c.sem.Release(1)

	n, err := c.eth.BlockNumber(ctx)
	if err != nil {
		return 0, classify("eth_blockNumber", err)
	}
	metrics.ChainCalls.WithLabelValues("eth_blockNumber", "ok").Inc()
	return n, nil
}

// FilterLogs fetches logs for the given addresses and topics over an
// inclusive block range.
func (c *Client) FilterLogs(ctx context.Context, addresses []common.Address, topics [][]common.Hash, fromBlock, toBlock uint64) ([]types.Log, error) {
	if err := c.acquire(ctx); err != nil {
		return nil, err
	}
	defer c.sem.Release(1)

	logs, err := c.eth.FilterLogs(ctx, ethereum.FilterQuery{
		Addresses: addresses,
		Topics:    topics,
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
	})
	if err != nil {
		return nil, classify("eth_getLogs", err)
	}
	metrics.ChainCalls.WithLabelValues("eth_getLogs", "ok").Inc()
	return logs, nil
}

// TransactionByHash fetches a transaction.
func (c *Client) TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, error) {
	if err := c.acquire(ctx); err != nil {
		return nil, err
	}
	defer c.sem.Release(1)

	tx, _, err := c.eth.TransactionByHash(ctx, hash)
	if err != nil {
		return nil, classify("eth_getTransactionByHash", err)
	}
	metrics.ChainCalls.WithLabelValues("eth_getTransactionByHash", "ok").Inc()
	return tx, nil
}

// TransactionReceipt fetches a transaction receipt.
func (c *Client) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	if err := c.acquire(ctx); err != nil {
		return nil, err
	}
	defer c.sem.Release(1)

	receipt, err := c.eth.TransactionReceipt(ctx, hash)
	if err != nil {
		return nil, classify("eth_getTransactionReceipt", err)
	}
	metrics.ChainCalls.WithLabelValues("eth_getTransactionReceipt", "ok").Inc()
	return receipt, nil
}

// classify maps a transport error to the indexer taxonomy. HTTP 429 and
// provider-specific rate-limit messages become RateLimited; everything else
// is a ChainReadError.
func classify(method string, err error) error {
	if isRateLimited(err) {
		metrics.ChainCalls.WithLabelValues(method, "rate_limited").Inc()
		return tdherr.RateLimited(fmt.Errorf("%s: %w", method, err))
	}
	metrics.ChainCalls.WithLabelValues(method, "error").Inc()
	return tdherr.ChainRead(fmt.Errorf("%s: %w", method, err))
}

func isRateLimited(err error) bool {
	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusTooManyRequests {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "too many requests") ||
		strings.Contains(msg, "429")
}
