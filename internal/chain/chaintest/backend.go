// Package chaintest provides an in-memory chain backend for tests.
package chaintest

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// TokenArtifact is a compiled token artifact with a (name, symbol, supply)
// constructor.
const TokenArtifact = `{
  "contractName": "GuardianToken",
  "abi": [
    {"type": "constructor", "stateMutability": "nonpayable",
     "inputs": [
       {"name": "name_", "type": "string", "internalType": "string"},
       {"name": "symbol_", "type": "string", "internalType": "string"},
       {"name": "initialSupply", "type": "uint256", "internalType": "uint256"}
     ]}
  ],
  "bytecode": {"object": "0x6080604052348015600f57600080fd5b50"}
}`

// ErrBalance is returned by BalanceAt while BalanceErrs is positive.
var ErrBalance = errors.New("balance unavailable")

// Backend is a scriptable chain.Backend.
type Backend struct {
	mu sync.Mutex

	balance     *big.Int
	balanceErrs int
	deployErr   error
	reverted    bool

	sent         []*types.Transaction
	balanceCalls int
	closed       bool
}

// NewBackend returns a backend that reports balance wei for every account.
func NewBackend(balance *big.Int) *Backend {
	if balance == nil {
		balance = new(big.Int)
	}
	return &Backend{balance: new(big.Int).Set(balance)}
}

// SetBalance changes the reported balance.
func (b *Backend) SetBalance(wei *big.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balance = new(big.Int).Set(wei)
}

// FailBalance makes the next n balance reads fail.
func (b *Backend) FailBalance(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balanceErrs = n
}

// FailSend makes SendTransaction return err.
func (b *Backend) FailSend(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deployErr = err
}

// Revert makes mined receipts report failure.
func (b *Backend) Revert() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reverted = true
}

// Sent returns the transactions sent so far.
func (b *Backend) Sent() []*types.Transaction {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*types.Transaction, len(b.sent))
	copy(out, b.sent)
	return out
}

// BalanceCalls returns the number of balance reads.
func (b *Backend) BalanceCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balanceCalls
}

// Closed reports whether Close was called.
func (b *Backend) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

func (b *Backend) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balanceCalls++
	if b.balanceErrs > 0 {
		b.balanceErrs--
		return nil, ErrBalance
	}
	return new(big.Int).Set(b.balance), nil
}

func (b *Backend) BlockNumber(ctx context.Context) (uint64, error) { return 100, nil }

func (b *Backend) ChainID(ctx context.Context) (*big.Int, error) { return big.NewInt(1337), nil }

func (b *Backend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return uint64(len(b.sent)), nil
}

func (b *Backend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (b *Backend) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return 1_500_000, nil
}

func (b *Backend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.deployErr != nil {
		return b.deployErr
	}
	b.sent = append(b.sent, tx)
	return nil
}

func (b *Backend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, tx := range b.sent {
		if tx.Hash() != txHash {
			continue
		}
		status := types.ReceiptStatusSuccessful
		if b.reverted {
			status = types.ReceiptStatusFailed
		}
		return &types.Receipt{
			Status:      status,
			TxHash:      txHash,
			GasUsed:     1_200_000,
			BlockNumber: big.NewInt(101),
		}, nil
	}
	return nil, ethereum.NotFound
}

func (b *Backend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
}
