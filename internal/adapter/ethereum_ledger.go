package adapter

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"golang.org/x/time/rate"

	"github.com/estate-sync/internal/circuitbreaker"
	"github.com/estate-sync/internal/errors"
	"github.com/estate-sync/internal/models"
	"github.com/estate-sync/internal/retry"
)

// receiptPollInterval is how often a TxHandle polls for inclusion.
const receiptPollInterval = 2 * time.Second

// defaultGasLimit is used when gas estimation is unavailable.
const defaultGasLimit = 400_000

// ethBackend is the subset of ethclient.Client the ledger adapter uses.
type ethBackend interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error)
}

// TxSigner signs ledger transactions on behalf of a granted account.
type TxSigner interface {
	SignTx(account common.Address, tx *ethtypes.Transaction, chainID *big.Int) (*ethtypes.Transaction, error)
}

// EthereumLedger implements Ledger against the property ledger contract.
type EthereumLedger struct {
	backend  ethBackend
	provider DataProvider
	contract common.Address
	chainID  *big.Int
	signer   TxSigner
	abi      abi.ABI
	limiter  *rate.Limiter
	breaker  *circuitbreaker.CircuitBreaker
}

// EthereumLedgerConfig holds configuration for creating an EthereumLedger.
type EthereumLedgerConfig struct {
	// Provider supplies RPC URLs. Required.
	Provider DataProvider

	// ContractAddress is the deployed ledger contract. Required.
	ContractAddress common.Address

	// ChainID identifies the chain for transaction signing. Required.
	ChainID *big.Int

	// Signer signs mutating calls. Optional: a nil signer makes the write
	// surface fail UNAUTHENTICATED.
	Signer TxSigner

	// RequestsPerSecond throttles outbound RPC calls. 0 disables throttling.
	RequestsPerSecond int
}

// NewEthereumLedger dials the RPC endpoint (with backoff and failover) and
// returns a ledger adapter bound to the contract.
func NewEthereumLedger(ctx context.Context, cfg *EthereumLedgerConfig) (*EthereumLedger, error) {
	if cfg == nil || cfg.Provider == nil {
		return nil, fmt.Errorf("provider cannot be nil")
	}
	if cfg.ChainID == nil {
		return nil, fmt.Errorf("chain ID cannot be nil")
	}

	var client *ethclient.Client
	err := retry.WithRetry(ctx, func(ctx context.Context, attempt int) error {
		url, err := cfg.Provider.GetCurrentURL()
		if err != nil {
			return err
		}
		c, err := ethclient.DialContext(ctx, url)
		if err != nil {
			cfg.Provider.RecordFailure(err)
			if !cfg.Provider.IsHealthy() {
				if foErr := cfg.Provider.Failover(); foErr != nil {
					log.Printf("[Ledger] No failover endpoint: %v", foErr)
				}
			}
			return err
		}
		client = c
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ledger RPC: %w", err)
	}

	return newEthereumLedger(client, cfg)
}

// newEthereumLedger wires the adapter around an existing backend. Split out
// so tests can inject a fake backend.
func newEthereumLedger(backend ethBackend, cfg *EthereumLedgerConfig) (*EthereumLedger, error) {
	parsed, err := abi.JSON(strings.NewReader(propertyLedgerABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ledger ABI: %w", err)
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.RequestsPerSecond)
	}

	return &EthereumLedger{
		backend:  backend,
		provider: cfg.Provider,
		contract: cfg.ContractAddress,
		chainID:  cfg.ChainID,
		signer:   cfg.Signer,
		abi:      parsed,
		limiter:  limiter,
		breaker:  circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig("ledger-rpc")),
	}, nil
}

// throttle waits for rate-limit headroom before an RPC call.
func (l *EthereumLedger) throttle(ctx context.Context) error {
	if l.limiter == nil {
		return nil
	}
	return l.limiter.Wait(ctx)
}

// call performs an eth_call against the contract. from may be the zero
// address for calls that do not depend on the caller.
func (l *EthereumLedger) call(ctx context.Context, from common.Address, method string, args ...interface{}) ([]interface{}, error) {
	if err := l.throttle(ctx); err != nil {
		return nil, err
	}

	data, err := l.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}

	start := time.Now()
	var result []byte
	err = l.breaker.Execute(func() error {
		var callErr error
		result, callErr = l.backend.CallContract(ctx, ethereum.CallMsg{
			From: from,
			To:   &l.contract,
			Data: data,
		}, nil)
		return callErr
	})
	if err != nil {
		if l.provider != nil {
			l.provider.RecordFailure(err)
		}
		return nil, errors.NewRemoteUnavailableError(method, err)
	}
	if l.provider != nil {
		l.provider.RecordSuccess(time.Since(start))
	}

	out, err := l.abi.Unpack(method, result)
	if err != nil {
		return nil, errors.NewRemoteUnavailableError(method, err)
	}
	return out, nil
}

// PropertyCount returns the number of property slots on the ledger.
func (l *EthereumLedger) PropertyCount(ctx context.Context) (int64, error) {
	out, err := l.call(ctx, common.Address{}, "getAllPropertiesCount")
	if err != nil {
		return 0, err
	}
	count := *abi.ConvertType(out[0], new(*big.Int)).(**big.Int)
	return count.Int64(), nil
}

// PropertyDetail fetches one property slot by identifier.
func (l *EthereumLedger) PropertyDetail(ctx context.Context, propertyID int64) (*models.Property, error) {
	out, err := l.call(ctx, common.Address{}, "getPropertyDetails", big.NewInt(propertyID))
	if err != nil {
		return nil, err
	}

	raw := rawProperty{
		Name:                *abi.ConvertType(out[0], new(string)).(*string),
		Location:            *abi.ConvertType(out[1], new(string)).(*string),
		Description:         *abi.ConvertType(out[2], new(string)).(*string),
		ImageURI:            *abi.ConvertType(out[3], new(string)).(*string),
		TotalCost:           *abi.ConvertType(out[4], new(*big.Int)).(**big.Int),
		TotalNumberOfTokens: *abi.ConvertType(out[5], new(*big.Int)).(**big.Int),
		PricePerToken:       *abi.ConvertType(out[6], new(*big.Int)).(**big.Int),
		IsActive:            *abi.ConvertType(out[7], new(bool)).(*bool),
	}

	return &models.Property{
		PropertyID:    propertyID,
		Name:          raw.Name,
		Location:      raw.Location,
		Description:   raw.Description,
		ImageURI:      raw.ImageURI,
		TotalCost:     raw.TotalCost,
		TotalTokens:   raw.TotalNumberOfTokens.Int64(),
		PricePerToken: raw.PricePerToken,
		IsActive:      raw.IsActive,
	}, nil
}

// TokenBalance returns the identity's token balance for a property. The
// contract resolves the caller from the call's sender, so the identity is
// set as the call origin.
func (l *EthereumLedger) TokenBalance(ctx context.Context, identity common.Address, propertyID int64) (int64, error) {
	out, err := l.call(ctx, identity, "getMyTokens", big.NewInt(propertyID))
	if err != nil {
		return 0, err
	}
	balance := *abi.ConvertType(out[0], new(*big.Int)).(**big.Int)
	return balance.Int64(), nil
}

// ActiveSellOrders returns the global active marketplace order set.
func (l *EthereumLedger) ActiveSellOrders(ctx context.Context) ([]models.SellOrder, error) {
	out, err := l.call(ctx, common.Address{}, "getAllSellOrders")
	if err != nil {
		return nil, err
	}
	return convertSellOrders(out[0]), nil
}

// SellOrdersBySeller returns the identity's active marketplace orders.
func (l *EthereumLedger) SellOrdersBySeller(ctx context.Context, identity common.Address) ([]models.SellOrder, error) {
	out, err := l.call(ctx, identity, "getMySellOrders")
	if err != nil {
		return nil, err
	}
	return convertSellOrders(out[0]), nil
}

// convertSellOrders converts an unpacked tuple array into the model type.
func convertSellOrders(unpacked interface{}) []models.SellOrder {
	raws := *abi.ConvertType(unpacked, new([]rawSellOrder)).(*[]rawSellOrder)

	orders := make([]models.SellOrder, 0, len(raws))
	for _, r := range raws {
		orders = append(orders, models.SellOrder{
			OrderID:       r.OrderId.Int64(),
			PropertyID:    r.PropertyId.Int64(),
			Seller:        r.Seller,
			TokenAmount:   r.TokenAmount.Int64(),
			PricePerToken: r.PricePerToken,
			IsActive:      r.IsActive,
		})
	}
	return orders
}

// PurchaseTokens buys tokens directly from the ledger, attaching the payment.
func (l *EthereumLedger) PurchaseTokens(ctx context.Context, from common.Address, propertyID, amount int64, payment *big.Int) (TxHandle, error) {
	return l.submit(ctx, from, payment, "purchasePropertyTokens", big.NewInt(propertyID), big.NewInt(amount))
}

// SellTokens returns tokens to the ledger.
func (l *EthereumLedger) SellTokens(ctx context.Context, from common.Address, propertyID, amount int64) (TxHandle, error) {
	return l.submit(ctx, from, nil, "sellPropertyTokens", big.NewInt(propertyID), big.NewInt(amount))
}

// CreateSellOrder lists tokens for resale on the marketplace.
func (l *EthereumLedger) CreateSellOrder(ctx context.Context, from common.Address, propertyID, amount int64, pricePerToken *big.Int) (TxHandle, error) {
	return l.submit(ctx, from, nil, "createSellOrder", big.NewInt(propertyID), big.NewInt(amount), pricePerToken)
}

// CancelSellOrder withdraws a standing sell order.
func (l *EthereumLedger) CancelSellOrder(ctx context.Context, from common.Address, orderID int64) (TxHandle, error) {
	return l.submit(ctx, from, nil, "cancelSellOrder", big.NewInt(orderID))
}

// FillSellOrder buys tokens from another party's order, attaching the payment.
func (l *EthereumLedger) FillSellOrder(ctx context.Context, from common.Address, orderID int64, payment *big.Int) (TxHandle, error) {
	return l.submit(ctx, from, payment, "buyFromSellOrder", big.NewInt(orderID))
}

// submit signs and dispatches a mutating contract call. The submission is
// irrevocable once SendTransaction returns.
func (l *EthereumLedger) submit(ctx context.Context, from common.Address, value *big.Int, method string, args ...interface{}) (TxHandle, error) {
	if l.signer == nil {
		return nil, errors.NewUnauthenticatedError(method)
	}
	if value == nil {
		value = new(big.Int)
	}

	data, err := l.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}

	if err := l.throttle(ctx); err != nil {
		return nil, err
	}

	nonce, err := l.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, errors.NewRemoteUnavailableError(method, err)
	}

	gasPrice, err := l.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, errors.NewRemoteUnavailableError(method, err)
	}

	msg := ethereum.CallMsg{From: from, To: &l.contract, Value: value, Data: data}
	gasLimit, err := l.backend.EstimateGas(ctx, msg)
	if err != nil {
		// Estimation replays the call, so a revert surfaces here with the
		// provider's reason before anything is dispatched.
		if isRevert(err) {
			return nil, errors.NewTransactionFailedError(revertReason(err), err)
		}
		log.Printf("[Ledger] Gas estimation failed for %s, using default limit: %v", method, err)
		gasLimit = defaultGasLimit
	}

	tx := ethtypes.NewTransaction(nonce, l.contract, value, gasLimit, gasPrice, data)
	signed, err := l.signer.SignTx(from, tx, l.chainID)
	if err != nil {
		return nil, err
	}

	if err := l.backend.SendTransaction(ctx, signed); err != nil {
		return nil, errors.NewTransactionFailedError(revertReason(err), err)
	}

	log.Printf("[Ledger] Submitted %s tx %s (nonce %d)", method, signed.Hash().Hex(), nonce)

	return &txHandle{
		backend: l.backend,
		hash:    signed.Hash(),
		callMsg: msg,
	}, nil
}

// txHandle tracks a dispatched transaction until finality.
type txHandle struct {
	backend ethBackend
	hash    common.Hash
	// callMsg is kept for replaying a reverted call to extract its reason
	callMsg ethereum.CallMsg
}

// Hash returns the transaction hash assigned at submission.
func (h *txHandle) Hash() common.Hash {
	return h.hash
}

// AwaitConfirmation polls for the receipt until inclusion or context end.
func (h *txHandle) AwaitConfirmation(ctx context.Context) error {
	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := h.backend.TransactionReceipt(ctx, h.hash)
		if err == nil && receipt != nil {
			if receipt.Status == ethtypes.ReceiptStatusSuccessful {
				return nil
			}
			return h.revertError(ctx, receipt)
		}
		if err != nil && err != ethereum.NotFound {
			return errors.NewRemoteUnavailableError("awaitConfirmation", err)
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// revertError replays the reverted call at its block to recover the
// provider-supplied reason, falling back to a generic failure.
func (h *txHandle) revertError(ctx context.Context, receipt *ethtypes.Receipt) error {
	_, err := h.backend.CallContract(ctx, h.callMsg, receipt.BlockNumber)
	if err != nil {
		return errors.NewTransactionFailedError(revertReason(err), err)
	}
	return errors.NewTransactionFailedError("", nil)
}

// isRevert reports whether an RPC error represents a contract revert rather
// than a transport failure.
func isRevert(err error) bool {
	return err != nil && strings.Contains(err.Error(), "execution reverted")
}

// revertReason extracts the provider-supplied revert reason from an RPC
// error, if present.
func revertReason(err error) string {
	if err == nil {
		return ""
	}

	// JSON-RPC errors carry the reason in their data payload.
	type dataError interface {
		ErrorData() interface{}
	}
	if de, ok := err.(dataError); ok {
		if s, ok := de.ErrorData().(string); ok && s != "" {
			return s
		}
	}

	msg := err.Error()
	if idx := strings.Index(msg, "execution reverted: "); idx >= 0 {
		return msg[idx+len("execution reverted: "):]
	}
	if strings.Contains(msg, "execution reverted") {
		return ""
	}
	return msg
}
