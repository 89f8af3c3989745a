package chain

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

const testArtifact = `{
  "contractName": "GuardianToken",
  "abi": [
    {"type": "constructor", "stateMutability": "nonpayable",
     "inputs": [{"name": "initialSupply", "type": "uint256", "internalType": "uint256"}]}
  ],
  "bytecode": "0x6080604052"
}`

type fakeBackend struct {
	mu           sync.Mutex
	balance      *big.Int
	balanceErrs  int
	receiptMiss  int
	receiptErrs  int
	receiptState uint64
	sent         []*types.Transaction
	closed       bool
}

func (f *fakeBackend) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.balanceErrs > 0 {
		f.balanceErrs--
		return nil, errors.New("connection reset")
	}
	return new(big.Int).Set(f.balance), nil
}

func (f *fakeBackend) BlockNumber(ctx context.Context) (uint64, error) { return 42, nil }

func (f *fakeBackend) ChainID(ctx context.Context) (*big.Int, error) { return big.NewInt(80002), nil }

func (f *fakeBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return 7, nil
}

func (f *fakeBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(30_000_000_000), nil
}

func (f *fakeBackend) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return 100_000, nil
}

func (f *fakeBackend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeBackend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.receiptErrs > 0 {
		f.receiptErrs--
		return nil, errors.New("connection reset by peer")
	}
	if f.receiptMiss > 0 {
		f.receiptMiss--
		return nil, ethereum.NotFound
	}
	return &types.Receipt{
		Status:      f.receiptState,
		TxHash:      txHash,
		GasUsed:     95_000,
		BlockNumber: big.NewInt(1234),
	}, nil
}

func (f *fakeBackend) Close() { f.closed = true }

func newTestClient(b *fakeBackend, chainID int64) *Client {
	return NewClientWithBackend(b, Config{
		RPCURL:       "http://localhost:8545",
		ChainID:      chainID,
		Timeout:      time.Second,
		PollInterval: 5 * time.Millisecond,
	})
}

func TestBalanceOfRetriesTransientErrors(t *testing.T) {
	b := &fakeBackend{balance: big.NewInt(5), balanceErrs: 1}
	c := newTestClient(b, 137)

	got, err := c.BalanceOf(context.Background(), common.HexToAddress("0x01"))
	if err != nil {
		t.Fatalf("BalanceOf() error = %v", err)
	}
	if got.Int64() != 5 {
		t.Errorf("BalanceOf() = %v, want 5", got)
	}
}

func TestChainIDFallsBackToNode(t *testing.T) {
	c := newTestClient(&fakeBackend{}, 0)

	id, err := c.ChainID(context.Background())
	if err != nil {
		t.Fatalf("ChainID() error = %v", err)
	}
	if id.Int64() != 80002 {
		t.Errorf("ChainID() = %v, want 80002", id)
	}
}

func TestDeployContract(t *testing.T) {
	b := &fakeBackend{receiptMiss: 2, receiptState: types.ReceiptStatusSuccessful}
	c := newTestClient(b, 137)

	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	artifact, err := ParseArtifact([]byte(testArtifact))
	if err != nil {
		t.Fatalf("ParseArtifact() error = %v", err)
	}

	res, err := c.DeployContract(context.Background(), key, artifact, big.NewInt(1000))
	if err != nil {
		t.Fatalf("DeployContract() error = %v", err)
	}

	from := AddressFromKey(key)
	if want := crypto.CreateAddress(from, 7); res.Address != want {
		t.Errorf("Address = %s, want %s", res.Address.Hex(), want.Hex())
	}
	if res.BlockNumber != 1234 {
		t.Errorf("BlockNumber = %d, want 1234", res.BlockNumber)
	}
	if len(b.sent) != 1 {
		t.Fatalf("sent %d txs, want 1", len(b.sent))
	}
	tx := b.sent[0]
	if tx.Gas() != 120_000 {
		t.Errorf("Gas = %d, want 120000", tx.Gas())
	}
	if tx.Nonce() != 7 {
		t.Errorf("Nonce = %d, want 7", tx.Nonce())
	}
	if tx.To() != nil {
		t.Errorf("To = %v, want contract creation", tx.To())
	}
	if tx.ChainId().Int64() != 137 {
		t.Errorf("ChainId = %v, want 137", tx.ChainId())
	}
	if len(tx.Data()) != 5+32 {
		t.Errorf("data length = %d, want %d", len(tx.Data()), 5+32)
	}
}

func TestDeployContractReverted(t *testing.T) {
	b := &fakeBackend{receiptState: types.ReceiptStatusFailed}
	c := newTestClient(b, 137)
	key, _ := crypto.GenerateKey()
	artifact, _ := ParseArtifact([]byte(testArtifact))

	if _, err := c.DeployContract(context.Background(), key, artifact, big.NewInt(1)); err == nil {
		t.Fatal("DeployContract() expected error for reverted receipt")
	}
}

func TestWaitForReceiptContextCancel(t *testing.T) {
	b := &fakeBackend{receiptMiss: 1 << 30}
	c := newTestClient(b, 137)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := c.WaitForReceipt(ctx, common.Hash{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("WaitForReceipt() error = %v, want deadline exceeded", err)
	}
}

func TestWaitForReceiptRetriesTransientErrors(t *testing.T) {
	b := &fakeBackend{receiptErrs: 1, receiptMiss: 1, receiptState: types.ReceiptStatusSuccessful}
	c := newTestClient(b, 137)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	receipt, err := c.WaitForReceipt(ctx, common.HexToHash("0xbeef"))
	if err != nil {
		t.Fatalf("WaitForReceipt() error = %v", err)
	}
	if receipt.BlockNumber.Int64() != 1234 {
		t.Errorf("BlockNumber = %v, want 1234", receipt.BlockNumber)
	}
}

func TestParseArtifactFoundryLayout(t *testing.T) {
	data := `{"abi": [], "bytecode": {"object": "6001"}}`
	a, err := ParseArtifact([]byte(data))
	if err != nil {
		t.Fatalf("ParseArtifact() error = %v", err)
	}
	if len(a.Bytecode) != 2 {
		t.Errorf("bytecode length = %d, want 2", len(a.Bytecode))
	}
}

func TestParseArtifactErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"invalid json", `{`},
		{"missing abi", `{"bytecode": "0x60"}`},
		{"missing bytecode", `{"abi": []}`},
		{"empty bytecode", `{"abi": [], "bytecode": "0x"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseArtifact([]byte(tt.data)); err == nil {
				t.Error("ParseArtifact() expected error")
			}
		})
	}
}

func TestParsePrivateKey(t *testing.T) {
	key, _ := crypto.GenerateKey()
	hexKey := "0x" + common.Bytes2Hex(crypto.FromECDSA(key))

	parsed, err := ParsePrivateKey(hexKey)
	if err != nil {
		t.Fatalf("ParsePrivateKey() error = %v", err)
	}
	if AddressFromKey(parsed) != AddressFromKey(key) {
		t.Error("parsed key address mismatch")
	}
	if _, err := ParsePrivateKey(""); err == nil {
		t.Error("ParsePrivateKey(\"\") expected error")
	}
	if _, err := ParsePrivateKey("zz"); err == nil {
		t.Error("ParsePrivateKey(\"zz\") expected error")
	}
}
