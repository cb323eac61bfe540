package chain

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
)

// Client wraps go-ethereum RPC and provides helper methods.
type Client struct {
	rpcClient *rpc.Client
	ethClient *ethclient.Client
	headers   headerReader
	logger    *zap.Logger

	mu      sync.RWMutex
	tsCache map[uint64]uint64
	tsStore TimestampStore
}

// TimestampStore is a persistent second-level timestamp cache.
type TimestampStore interface {
	Get(block uint64) (uint64, bool, error)
	Put(block, ts uint64) error
}

type headerReader interface {
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

// NewClient creates a new chain client from the RPC URL.
func NewClient(ctx context.Context, rpcURL string) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}

	ethClient := ethclient.NewClient(rpcClient)
	return &Client{
		rpcClient: rpcClient,
		ethClient: ethClient,
		headers:   ethClient,
		logger:    zap.NewNop(),
		tsCache:   make(map[uint64]uint64),
	}, nil
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

// SetLogger sets the logger used for cache diagnostics.
func (c *Client) SetLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c.logger = logger
}

// SetTimestampStore attaches a persistent cache consulted after the in-memory one.
func (c *Client) SetTimestampStore(store TimestampStore) {
	c.tsStore = store
}

// GetChainID returns the chain ID.
func (c *Client) GetChainID(ctx context.Context) (*big.Int, error) {
	return c.ethClient.ChainID(ctx)
}

// LatestBlockNumber returns the latest block number.
func (c *Client) LatestBlockNumber(ctx context.Context) (uint64, error) {
	return c.ethClient.BlockNumber(ctx)
}

// HeaderByNumber returns the block header by number.
func (c *Client) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return c.headers.HeaderByNumber(ctx, number)
}

// BlockTimestamp returns the block timestamp, using the in-memory cache and
// then the persistent store before asking the node.
func (c *Client) BlockTimestamp(ctx context.Context, number uint64) (uint64, error) {
	c.mu.RLock()
	ts, ok := c.tsCache[number]
	c.mu.RUnlock()
	if ok {
		return ts, nil
	}

	if c.tsStore != nil {
		stored, ok, err := c.tsStore.Get(number)
		switch {
		case err != nil:
			c.logger.Debug("timestamp cache read failed", zap.Uint64("block", number), zap.Error(err))
		case ok:
			c.remember(number, stored)
			return stored, nil
		}
	}

	header, err := c.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
	if err != nil {
		return 0, err
	}

	ts = header.Time
	c.remember(number, ts)
	if c.tsStore != nil {
		if err := c.tsStore.Put(number, ts); err != nil {
			return 0, fmt.Errorf("persist timestamp %d: %w", number, err)
		}
	}

	return ts, nil
}

func (c *Client) remember(number, ts uint64) {
	c.mu.Lock()
	c.tsCache[number] = ts
	c.mu.Unlock()
}

// FilterLogs returns logs in the given range for addresses and topic0 filters.
func (c *Client) FilterLogs(
	ctx context.Context,
	fromBlock uint64,
	toBlock uint64,
	addresses []common.Address,
	topic0 []common.Hash,
) ([]types.Log, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: addresses,
	}
	if len(topic0) > 0 {
		query.Topics = [][]common.Hash{topic0}
	}
	return c.ethClient.FilterLogs(ctx, query)
}

// CallContract performs an eth_call for a contract method.
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return c.ethClient.CallContract(ctx, msg, blockNumber)
}
