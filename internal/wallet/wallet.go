// Package wallet provides the external wallet capability the session layer
// depends on: account discovery, access requests, signing, and change
// notifications.
package wallet

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
)

// Provider is the wallet capability boundary. Implementations surface
// NO_PROVIDER when no wallet backend exists and USER_DENIED when access to
// an account is refused.
type Provider interface {
	// RequestAccounts requests access to the wallet's accounts, unlocking
	// the primary account for signing. May prompt or fail; never silent.
	RequestAccounts(ctx context.Context) ([]common.Address, error)

	// CurrentAccounts enumerates accessible accounts without prompting.
	// An empty result means no session can be established silently.
	CurrentAccounts() []common.Address

	// SignTx signs a transaction with the given account. The account must
	// have been granted via RequestAccounts.
	SignTx(account common.Address, tx *ethtypes.Transaction, chainID *big.Int) (*ethtypes.Transaction, error)

	// Subscribe registers a channel receiving a signal whenever the
	// account set changes. Close the returned Subscription to stop.
	Subscribe(sink chan<- struct{}) Subscription
}

// Subscription represents an active account-change subscription.
type Subscription interface {
	// Unsubscribe cancels the subscription and releases its resources.
	Unsubscribe()
	// Err returns the subscription error channel.
	Err() <-chan error
}
