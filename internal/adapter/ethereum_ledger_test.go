package adapter

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/estate-sync/internal/errors"
	"github.com/estate-sync/internal/types"
)

var (
	testContract = common.HexToAddress("0xcccccccccccccccccccccccccccccccccccccccc")
	testCaller   = common.HexToAddress("0x1111111111111111111111111111111111111111")
)

// fakeBackend scripts the ethclient surface the adapter uses.
type fakeBackend struct {
	callFn    func(msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	nonceFn   func(account common.Address) (uint64, error)
	gasFn     func(msg ethereum.CallMsg) (uint64, error)
	sendFn    func(tx *ethtypes.Transaction) error
	receiptFn func(txHash common.Hash) (*ethtypes.Receipt, error)
}

func (b *fakeBackend) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return b.callFn(msg, blockNumber)
}

func (b *fakeBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	if b.nonceFn != nil {
		return b.nonceFn(account)
	}
	return 7, nil
}

func (b *fakeBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (b *fakeBackend) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	if b.gasFn != nil {
		return b.gasFn(msg)
	}
	return 21_000, nil
}

func (b *fakeBackend) SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error {
	if b.sendFn != nil {
		return b.sendFn(tx)
	}
	return nil
}

func (b *fakeBackend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error) {
	if b.receiptFn != nil {
		return b.receiptFn(txHash)
	}
	return nil, ethereum.NotFound
}

// passthroughSigner returns the transaction unsigned; the fake backend does
// not verify signatures.
type passthroughSigner struct{}

func (passthroughSigner) SignTx(account common.Address, tx *ethtypes.Transaction, chainID *big.Int) (*ethtypes.Transaction, error) {
	return tx, nil
}

func newTestLedger(t *testing.T, backend ethBackend, signer TxSigner) *EthereumLedger {
	t.Helper()
	ledger, err := newEthereumLedger(backend, &EthereumLedgerConfig{
		Provider:        nil,
		ContractAddress: testContract,
		ChainID:         big.NewInt(1337),
		Signer:          signer,
	})
	if err != nil {
		t.Fatalf("newEthereumLedger failed: %v", err)
	}
	return ledger
}

func packOutputs(t *testing.T, method string, values ...interface{}) []byte {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(propertyLedgerABI))
	if err != nil {
		t.Fatalf("failed to parse ABI: %v", err)
	}
	out, err := parsed.Methods[method].Outputs.Pack(values...)
	if err != nil {
		t.Fatalf("failed to pack %s outputs: %v", method, err)
	}
	return out
}

func TestPropertyCount(t *testing.T) {
	backend := &fakeBackend{
		callFn: func(msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
			if *msg.To != testContract {
				t.Errorf("call target = %s, want %s", msg.To.Hex(), testContract.Hex())
			}
			return packOutputs(t, "getAllPropertiesCount", big.NewInt(5)), nil
		},
	}
	ledger := newTestLedger(t, backend, nil)

	count, err := ledger.PropertyCount(context.Background())
	if err != nil {
		t.Fatalf("PropertyCount failed: %v", err)
	}
	if count != 5 {
		t.Errorf("count = %d, want 5", count)
	}
}

func TestPropertyDetail(t *testing.T) {
	backend := &fakeBackend{
		callFn: func(msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
			return packOutputs(t, "getPropertyDetails",
				"Sea View Villa", "Lisbon", "A villa", "ipfs://img",
				big.NewInt(1_000_000), big.NewInt(100), big.NewInt(10_000), true), nil
		},
	}
	ledger := newTestLedger(t, backend, nil)

	p, err := ledger.PropertyDetail(context.Background(), 3)
	if err != nil {
		t.Fatalf("PropertyDetail failed: %v", err)
	}
	if p.PropertyID != 3 {
		t.Errorf("PropertyID = %d, want 3", p.PropertyID)
	}
	if p.Name != "Sea View Villa" || p.Location != "Lisbon" {
		t.Errorf("unexpected property: %+v", p)
	}
	if p.TotalTokens != 100 {
		t.Errorf("TotalTokens = %d, want 100", p.TotalTokens)
	}
	if p.PricePerToken.Cmp(big.NewInt(10_000)) != 0 {
		t.Errorf("PricePerToken = %s, want 10000", p.PricePerToken)
	}
	if !p.IsActive {
		t.Error("expected an active property")
	}
}

func TestTokenBalanceSetsCallOrigin(t *testing.T) {
	backend := &fakeBackend{
		callFn: func(msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
			// The contract derives the balance owner from the call sender.
			if msg.From != testCaller {
				t.Errorf("call origin = %s, want %s", msg.From.Hex(), testCaller.Hex())
			}
			return packOutputs(t, "getMyTokens", big.NewInt(12)), nil
		},
	}
	ledger := newTestLedger(t, backend, nil)

	balance, err := ledger.TokenBalance(context.Background(), testCaller, 0)
	if err != nil {
		t.Fatalf("TokenBalance failed: %v", err)
	}
	if balance != 12 {
		t.Errorf("balance = %d, want 12", balance)
	}
}

func TestActiveSellOrders(t *testing.T) {
	orders := []rawSellOrder{
		{
			OrderId:       big.NewInt(1),
			PropertyId:    big.NewInt(0),
			Seller:        testCaller,
			TokenAmount:   big.NewInt(4),
			PricePerToken: big.NewInt(25_000),
			IsActive:      true,
		},
		{
			OrderId:       big.NewInt(2),
			PropertyId:    big.NewInt(3),
			Seller:        testCaller,
			TokenAmount:   big.NewInt(1),
			PricePerToken: big.NewInt(9_000),
			IsActive:      false,
		},
	}
	backend := &fakeBackend{
		callFn: func(msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
			return packOutputs(t, "getAllSellOrders", orders), nil
		},
	}
	ledger := newTestLedger(t, backend, nil)

	got, err := ledger.ActiveSellOrders(context.Background())
	if err != nil {
		t.Fatalf("ActiveSellOrders failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(got))
	}
	if got[0].OrderID != 1 || got[0].TokenAmount != 4 || !got[0].IsActive {
		t.Errorf("unexpected order: %+v", got[0])
	}
	if got[1].IsActive {
		t.Error("expected order 2 to be inactive")
	}
}

func TestCallFailureIsRemoteUnavailable(t *testing.T) {
	backend := &fakeBackend{
		callFn: func(msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
			return nil, fmt.Errorf("connection refused")
		},
	}
	ledger := newTestLedger(t, backend, nil)

	_, err := ledger.PropertyCount(context.Background())
	if err == nil {
		t.Fatal("expected an error")
	}
	if errors.Categorize(err).Code != types.CodeRemoteUnavailable {
		t.Errorf("expected %s, got %v", types.CodeRemoteUnavailable, err)
	}
}

func TestSubmitWithoutSignerIsUnauthenticated(t *testing.T) {
	ledger := newTestLedger(t, &fakeBackend{}, nil)

	_, err := ledger.PurchaseTokens(context.Background(), testCaller, 0, 1, big.NewInt(100))
	if err == nil {
		t.Fatal("expected an error without a signer")
	}
	if errors.Categorize(err).Code != types.CodeUnauthenticated {
		t.Errorf("expected %s, got %v", types.CodeUnauthenticated, err)
	}
}

func TestSubmitSurfacesEstimationRevertReason(t *testing.T) {
	backend := &fakeBackend{
		gasFn: func(msg ethereum.CallMsg) (uint64, error) {
			return 0, fmt.Errorf("execution reverted: Not enough tokens available")
		},
	}
	ledger := newTestLedger(t, backend, passthroughSigner{})

	_, err := ledger.PurchaseTokens(context.Background(), testCaller, 0, 500, big.NewInt(100))
	if err == nil {
		t.Fatal("expected the revert to fail the submission")
	}

	categorized := errors.Categorize(err)
	if categorized.Code != types.CodeTransactionFailed {
		t.Errorf("Code = %s, want %s", categorized.Code, types.CodeTransactionFailed)
	}
	if categorized.Message != "Not enough tokens available" {
		t.Errorf("Message = %q, want the contract reason", categorized.Message)
	}
}

func TestSubmitFallsBackToDefaultGasOnTransportError(t *testing.T) {
	var sentGas uint64
	backend := &fakeBackend{
		gasFn: func(msg ethereum.CallMsg) (uint64, error) {
			return 0, fmt.Errorf("connection refused")
		},
		sendFn: func(tx *ethtypes.Transaction) error {
			sentGas = tx.Gas()
			return nil
		},
	}
	ledger := newTestLedger(t, backend, passthroughSigner{})

	handle, err := ledger.SellTokens(context.Background(), testCaller, 0, 1)
	if err != nil {
		t.Fatalf("SellTokens failed: %v", err)
	}
	if handle.Hash() == (common.Hash{}) {
		t.Error("expected a transaction hash")
	}
	if sentGas != defaultGasLimit {
		t.Errorf("gas = %d, want the default limit %d", sentGas, defaultGasLimit)
	}
}

func TestAwaitConfirmationSuccess(t *testing.T) {
	backend := &fakeBackend{
		receiptFn: func(txHash common.Hash) (*ethtypes.Receipt, error) {
			return &ethtypes.Receipt{Status: ethtypes.ReceiptStatusSuccessful, BlockNumber: big.NewInt(10)}, nil
		},
	}
	handle := &txHandle{backend: backend, hash: common.HexToHash("0x1")}

	if err := handle.AwaitConfirmation(context.Background()); err != nil {
		t.Errorf("AwaitConfirmation failed: %v", err)
	}
}

func TestAwaitConfirmationRevertReplaysCall(t *testing.T) {
	backend := &fakeBackend{
		receiptFn: func(txHash common.Hash) (*ethtypes.Receipt, error) {
			return &ethtypes.Receipt{Status: ethtypes.ReceiptStatusFailed, BlockNumber: big.NewInt(10)}, nil
		},
		callFn: func(msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
			if blockNumber == nil || blockNumber.Int64() != 10 {
				t.Errorf("replay block = %v, want 10", blockNumber)
			}
			return nil, fmt.Errorf("execution reverted: insufficient funds")
		},
	}
	handle := &txHandle{backend: backend, hash: common.HexToHash("0x1")}

	err := handle.AwaitConfirmation(context.Background())
	if err == nil {
		t.Fatal("expected the reverted transaction to fail")
	}

	categorized := errors.Categorize(err)
	if categorized.Code != types.CodeTransactionFailed {
		t.Errorf("Code = %s, want %s", categorized.Code, types.CodeTransactionFailed)
	}
	if categorized.Message != "insufficient funds" {
		t.Errorf("Message = %q, want insufficient funds", categorized.Message)
	}
}

func TestRevertReason(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"with reason", fmt.Errorf("execution reverted: Property does not exist"), "Property does not exist"},
		{"bare revert", fmt.Errorf("execution reverted"), ""},
		{"transport error", fmt.Errorf("connection refused"), "connection refused"},
		{"nil", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := revertReason(tt.err); got != tt.want {
				t.Errorf("revertReason() = %q, want %q", got, tt.want)
			}
		})
	}
}
