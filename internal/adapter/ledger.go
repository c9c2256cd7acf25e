// Package adapter provides access to the remote property ledger contract.
package adapter

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/estate-sync/internal/models"
)

// LedgerReader is the read surface of the remote ledger service.
type LedgerReader interface {
	// PropertyCount returns the number of property slots on the ledger,
	// including placeholder/deleted slots.
	PropertyCount(ctx context.Context) (int64, error)

	// PropertyDetail fetches one property slot. Placeholder slots come back
	// with an empty name; the ledger does not distinguish missing from
	// malformed, so callers treat both as unavailable.
	PropertyDetail(ctx context.Context, propertyID int64) (*models.Property, error)

	// TokenBalance returns the identity's token balance for a property.
	TokenBalance(ctx context.Context, identity common.Address, propertyID int64) (int64, error)

	// ActiveSellOrders returns the global active marketplace order set.
	ActiveSellOrders(ctx context.Context) ([]models.SellOrder, error)

	// SellOrdersBySeller returns the identity's active marketplace orders.
	SellOrdersBySeller(ctx context.Context, identity common.Address) ([]models.SellOrder, error)
}

// LedgerWriter is the write surface of the remote ledger service. Every call
// dispatches a signed transaction and returns a handle; the submission is
// irrevocable once dispatched.
type LedgerWriter interface {
	PurchaseTokens(ctx context.Context, from common.Address, propertyID, amount int64, payment *big.Int) (TxHandle, error)
	SellTokens(ctx context.Context, from common.Address, propertyID, amount int64) (TxHandle, error)
	CreateSellOrder(ctx context.Context, from common.Address, propertyID, amount int64, pricePerToken *big.Int) (TxHandle, error)
	CancelSellOrder(ctx context.Context, from common.Address, orderID int64) (TxHandle, error)
	FillSellOrder(ctx context.Context, from common.Address, orderID int64, payment *big.Int) (TxHandle, error)
}

// Ledger combines the read and write surfaces.
type Ledger interface {
	LedgerReader
	LedgerWriter
}

// TxHandle tracks a dispatched mutating action until finality.
type TxHandle interface {
	// Hash returns the transaction hash assigned at submission.
	Hash() common.Hash

	// AwaitConfirmation blocks until the ledger reports inclusion. A revert
	// is returned as a TRANSACTION_FAILED error carrying the most specific
	// reason available.
	AwaitConfirmation(ctx context.Context) error
}
