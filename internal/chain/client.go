// Package chain provides EVM JSON-RPC access for the launch layer: balance
// reads, contract deployment and receipt polling.
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Backend is the subset of the Ethereum JSON-RPC API the launch layer uses.
// *ethclient.Client satisfies it.
type Backend interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	Close()
}

// Client provides EVM RPC client functionality.
type Client struct {
	mu           sync.RWMutex
	backend      Backend
	rpcURL       string
	chainID      *big.Int
	timeout      time.Duration
	pollInterval time.Duration
	maxRetries   uint64
}

// Config holds client configuration.
type Config struct {
	RPCURL       string
	ChainID      int64 // Polygon: 137, Base: 8453; 0 asks the node
	Timeout      time.Duration
	PollInterval time.Duration
	MaxRetries   uint64
}

// NewClient dials the RPC endpoint and creates a client.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("RPC URL required")
	}

	dialCtx := ctx
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	ec, err := ethclient.DialContext(dialCtx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.RPCURL, err)
	}
	return NewClientWithBackend(ec, cfg), nil
}

// NewClientWithBackend wraps an existing backend.
func NewClientWithBackend(backend Backend, cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	retries := cfg.MaxRetries
	if retries == 0 {
		retries = 2
	}

	c := &Client{
		backend:      backend,
		rpcURL:       cfg.RPCURL,
		timeout:      timeout,
		pollInterval: poll,
		maxRetries:   retries,
	}
	if cfg.ChainID > 0 {
		c.chainID = big.NewInt(cfg.ChainID)
	}
	return c
}

// Close releases the underlying connection.
func (c *Client) Close() {
	c.backend.Close()
}

// RPCURL returns the endpoint the client was created with.
func (c *Client) RPCURL() string {
	return c.rpcURL
}

// =============================================================================
// Core RPC Methods
// =============================================================================

// ChainID returns the configured chain ID, asking the node once if unset.
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	c.mu.RLock()
	id := c.chainID
	c.mu.RUnlock()
	if id != nil {
		return new(big.Int).Set(id), nil
	}

	var fetched *big.Int
	err := c.retry(ctx, func(ctx context.Context) error {
		var err error
		fetched, err = c.backend.ChainID(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("chain id: %w", err)
	}

	c.mu.Lock()
	c.chainID = fetched
	c.mu.Unlock()
	return new(big.Int).Set(fetched), nil
}

// BlockNumber returns the current block height.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	var n uint64
	err := c.retry(ctx, func(ctx context.Context) error {
		var err error
		n, err = c.backend.BlockNumber(ctx)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("block number: %w", err)
	}
	return n, nil
}

// BalanceOf returns the latest balance of address in wei.
func (c *Client) BalanceOf(ctx context.Context, address common.Address) (*big.Int, error) {
	var bal *big.Int
	err := c.retry(ctx, func(ctx context.Context) error {
		var err error
		bal, err = c.backend.BalanceAt(ctx, address, nil)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("balance of %s: %w", address.Hex(), err)
	}
	return bal, nil
}

// retry runs fn with a per-attempt timeout and exponential backoff.
// Context errors are not retried.
func (c *Client) retry(ctx context.Context, fn func(ctx context.Context) error) error {
	op := func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		err := fn(attemptCtx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || errors.Is(err, ethereum.NotFound) {
			return backoff.Permanent(err)
		}
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 200 * time.Millisecond
	policy.MaxInterval = 2 * time.Second
	b := backoff.WithContext(backoff.WithMaxRetries(policy, c.maxRetries), ctx)

	return backoff.Retry(op, b)
}
