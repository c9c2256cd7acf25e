package wallet

import (
	"context"
	"log"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"

	"github.com/estate-sync/internal/config"
	"github.com/estate-sync/internal/errors"
)

// KeystoreProvider implements Provider over an encrypted on-disk keystore.
type KeystoreProvider struct {
	ks         *keystore.KeyStore
	passphrase string

	mu       sync.Mutex
	unlocked map[common.Address]bool
}

// NewKeystoreProvider creates a keystore-backed wallet provider. A nil
// provider with a NoProvider error is returned when no keystore directory
// is configured.
func NewKeystoreProvider(cfg *config.WalletConfig) (*KeystoreProvider, error) {
	if cfg == nil || cfg.KeystoreDir == "" {
		return nil, errors.NewNoProviderError()
	}

	ks := keystore.NewKeyStore(cfg.KeystoreDir, keystore.StandardScryptN, keystore.StandardScryptP)
	log.Printf("[Wallet] Keystore opened at %s with %d account(s)", cfg.KeystoreDir, len(ks.Accounts()))

	return &KeystoreProvider{
		ks:         ks,
		passphrase: cfg.Passphrase,
		unlocked:   make(map[common.Address]bool),
	}, nil
}

// RequestAccounts unlocks the primary account and returns the account list.
// A passphrase mismatch is reported as USER_DENIED; an empty keystore as
// NO_PROVIDER.
func (p *KeystoreProvider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	accts := p.ks.Accounts()
	if len(accts) == 0 {
		return nil, errors.NewNoProviderError()
	}

	// Unlock only the primary account; the rest stay enumerable but locked.
	primary := accts[0]
	if err := p.ks.TimedUnlock(primary, p.passphrase, 0); err != nil {
		log.Printf("[Wallet] Unlock refused for %s: %v", primary.Address.Hex(), err)
		return nil, errors.NewUserDeniedError(err)
	}

	p.mu.Lock()
	p.unlocked[primary.Address] = true
	p.mu.Unlock()

	addresses := make([]common.Address, 0, len(accts))
	for _, a := range accts {
		addresses = append(addresses, a.Address)
	}
	return addresses, nil
}

// CurrentAccounts enumerates keystore accounts without unlocking anything.
func (p *KeystoreProvider) CurrentAccounts() []common.Address {
	accts := p.ks.Accounts()
	addresses := make([]common.Address, 0, len(accts))
	for _, a := range accts {
		addresses = append(addresses, a.Address)
	}
	return addresses
}

// SignTx signs a transaction with a previously granted account.
func (p *KeystoreProvider) SignTx(account common.Address, tx *ethtypes.Transaction, chainID *big.Int) (*ethtypes.Transaction, error) {
	p.mu.Lock()
	granted := p.unlocked[account]
	p.mu.Unlock()
	if !granted {
		return nil, errors.NewUnauthenticatedError("sign transaction")
	}

	signed, err := p.ks.SignTx(accounts.Account{Address: account}, tx, chainID)
	if err != nil {
		return nil, errors.NewUserDeniedError(err)
	}
	return signed, nil
}

// Subscribe forwards keystore wallet arrivals/departures as account-change
// signals.
func (p *KeystoreProvider) Subscribe(sink chan<- struct{}) Subscription {
	events := make(chan accounts.WalletEvent, 16)
	sub := p.ks.Subscribe(events)

	forward := event.NewSubscription(func(quit <-chan struct{}) error {
		defer sub.Unsubscribe()
		for {
			select {
			case <-events:
				select {
				case sink <- struct{}{}:
				case <-quit:
					return nil
				}
			case err := <-sub.Err():
				return err
			case <-quit:
				return nil
			}
		}
	})
	return forward
}
