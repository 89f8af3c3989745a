package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// DefaultTxWaitTimeout is the default timeout for waiting for a receipt.
const DefaultTxWaitTimeout = 2 * time.Minute

// DefaultPollInterval is the default interval for polling receipts.
const DefaultPollInterval = 2 * time.Second

// gasHeadroomPercent is added on top of the node's gas estimate.
const gasHeadroomPercent = 20

// DeployResult describes a mined contract creation.
type DeployResult struct {
	Address     common.Address `json:"address"`
	TxHash      common.Hash    `json:"tx_hash"`
	Deployer    common.Address `json:"deployer"`
	BlockNumber uint64         `json:"block_number"`
	GasUsed     uint64         `json:"gas_used"`
	GasPrice    *big.Int       `json:"gas_price"`
}

// =============================================================================
// Keys
// =============================================================================

// ParsePrivateKey parses a hex private key with or without 0x prefix.
func ParsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if hexKey == "" {
		return nil, fmt.Errorf("private key required")
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return key, nil
}

// AddressFromKey returns the address controlled by key.
func AddressFromKey(key *ecdsa.PrivateKey) common.Address {
	return crypto.PubkeyToAddress(key.PublicKey)
}

// =============================================================================
// Deployment
// =============================================================================

// DeployContract packs constructor args, signs a contract creation tx with
// key, broadcasts it and waits until it is mined.
func (c *Client) DeployContract(ctx context.Context, key *ecdsa.PrivateKey, artifact *Artifact, args ...interface{}) (*DeployResult, error) {
	data, err := artifact.DeployData(args...)
	if err != nil {
		return nil, err
	}

	from := AddressFromKey(key)

	chainID, err := c.ChainID(ctx)
	if err != nil {
		return nil, err
	}

	var nonce uint64
	if err := c.retry(ctx, func(ctx context.Context) error {
		var err error
		nonce, err = c.backend.PendingNonceAt(ctx, from)
		return err
	}); err != nil {
		return nil, fmt.Errorf("pending nonce: %w", err)
	}

	var gasPrice *big.Int
	if err := c.retry(ctx, func(ctx context.Context) error {
		var err error
		gasPrice, err = c.backend.SuggestGasPrice(ctx)
		return err
	}); err != nil {
		return nil, fmt.Errorf("suggest gas price: %w", err)
	}

	gas, err := c.backend.EstimateGas(ctx, ethereum.CallMsg{From: from, Data: data})
	if err != nil {
		return nil, fmt.Errorf("estimate gas: %w", err)
	}
	gas += gas * gasHeadroomPercent / 100

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gas,
		Value:    big.NewInt(0),
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.NewEIP155Signer(chainID), key)
	if err != nil {
		return nil, fmt.Errorf("sign deployment: %w", err)
	}

	if err := c.backend.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("broadcast deployment: %w", err)
	}

	wctx, cancel := context.WithTimeout(ctx, DefaultTxWaitTimeout)
	defer cancel()

	receipt, err := c.WaitForReceipt(wctx, signed.Hash())
	if err != nil {
		return nil, fmt.Errorf("wait for deployment %s: %w", signed.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("deployment %s reverted", signed.Hash().Hex())
	}

	address := receipt.ContractAddress
	if address == (common.Address{}) {
		address = crypto.CreateAddress(from, nonce)
	}

	result := &DeployResult{
		Address:  address,
		TxHash:   signed.Hash(),
		Deployer: from,
		GasUsed:  receipt.GasUsed,
		GasPrice: gasPrice,
	}
	if receipt.BlockNumber != nil {
		result.BlockNumber = receipt.BlockNumber.Uint64()
	}
	return result, nil
}

// WaitForReceipt polls for a transaction receipt until it is available or
// ctx is done. A missing receipt means the tx is not mined yet; other lookup
// errors are retried with backoff before the wait fails.
func (c *Client) WaitForReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		var receipt *types.Receipt
		err := c.retry(ctx, func(ctx context.Context) error {
			var err error
			receipt, err = c.backend.TransactionReceipt(ctx, txHash)
			return err
		})
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
