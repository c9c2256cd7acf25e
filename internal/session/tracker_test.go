package session

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/estate-sync/internal/errors"
	"github.com/estate-sync/internal/types"
	"github.com/estate-sync/internal/wallet"
)

var (
	addrA = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	addrB = common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
)

type stubWallet struct {
	mu       sync.Mutex
	accounts []common.Address
	denied   bool
	sinks    []chan<- struct{}
}

func (w *stubWallet) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.denied {
		return nil, errors.NewUserDeniedError(fmt.Errorf("access refused"))
	}
	return w.accounts, nil
}

func (w *stubWallet) CurrentAccounts() []common.Address {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.accounts
}

func (w *stubWallet) SignTx(account common.Address, tx *ethtypes.Transaction, chainID *big.Int) (*ethtypes.Transaction, error) {
	return tx, nil
}

func (w *stubWallet) Subscribe(sink chan<- struct{}) wallet.Subscription {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sinks = append(w.sinks, sink)
	return stubSubscription{errCh: make(chan error)}
}

// switchAccounts swaps the account set and fires the change notification,
// mimicking a wallet-side account switch.
func (w *stubWallet) switchAccounts(accounts []common.Address) {
	w.mu.Lock()
	w.accounts = accounts
	sinks := make([]chan<- struct{}, len(w.sinks))
	copy(sinks, w.sinks)
	w.mu.Unlock()
	for _, sink := range sinks {
		sink <- struct{}{}
	}
}

type stubSubscription struct{ errCh chan error }

func (s stubSubscription) Unsubscribe()      {}
func (s stubSubscription) Err() <-chan error { return s.errCh }

func TestSilentDiscoveryConnects(t *testing.T) {
	tracker := NewTracker(&stubWallet{accounts: []common.Address{addrA}})

	identity, connected := tracker.CurrentIdentity()
	if !connected {
		t.Fatal("expected silent discovery to connect")
	}
	if identity != addrA {
		t.Errorf("identity = %s, want %s", identity.Hex(), addrA.Hex())
	}
}

func TestConnectWithoutProvider(t *testing.T) {
	tracker := NewTracker(nil)

	_, err := tracker.Connect(context.Background())
	if err == nil {
		t.Fatal("expected an error without a provider")
	}
	if errors.Categorize(err).Code != types.CodeNoProvider {
		t.Errorf("expected %s, got %v", types.CodeNoProvider, err)
	}
}

func TestConnectDenied(t *testing.T) {
	tracker := NewTracker(&stubWallet{denied: true})

	_, err := tracker.Connect(context.Background())
	if err == nil {
		t.Fatal("expected an error when access is refused")
	}
	if errors.Categorize(err).Code != types.CodeUserDenied {
		t.Errorf("expected %s, got %v", types.CodeUserDenied, err)
	}

	if _, connected := tracker.CurrentIdentity(); connected {
		t.Error("denied connect must not establish a session")
	}
}

func TestConnectEstablishesSession(t *testing.T) {
	w := &stubWallet{}
	tracker := NewTracker(w)

	if _, connected := tracker.CurrentIdentity(); connected {
		t.Fatal("expected no session before connect")
	}

	w.mu.Lock()
	w.accounts = []common.Address{addrA}
	w.mu.Unlock()

	identity, err := tracker.Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if identity != addrA {
		t.Errorf("identity = %s, want %s", identity.Hex(), addrA.Hex())
	}
}

func TestEpochBumpsOnEveryTransition(t *testing.T) {
	w := &stubWallet{accounts: []common.Address{addrA}}
	tracker := NewTracker(w)

	start := tracker.Epoch()

	tracker.Disconnect()
	if tracker.Epoch() != start+1 {
		t.Errorf("epoch after disconnect = %d, want %d", tracker.Epoch(), start+1)
	}

	if _, err := tracker.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if tracker.Epoch() != start+2 {
		t.Errorf("epoch after reconnect = %d, want %d", tracker.Epoch(), start+2)
	}

	// Redundant transitions do not bump the epoch.
	if _, err := tracker.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if tracker.Epoch() != start+2 {
		t.Errorf("epoch after no-op connect = %d, want %d", tracker.Epoch(), start+2)
	}
}

func TestAccountSwitchUpdatesIdentityAndNotifies(t *testing.T) {
	w := &stubWallet{accounts: []common.Address{addrA}}
	tracker := NewTracker(w)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tracker.Start(ctx)
	defer tracker.Stop()

	changes := tracker.Subscribe()
	epochBefore := tracker.Epoch()

	w.switchAccounts([]common.Address{addrB})

	change := <-changes
	if change.Identity != addrB || !change.Connected {
		t.Errorf("change = %+v, want connected %s", change, addrB.Hex())
	}
	if change.Epoch != epochBefore+1 {
		t.Errorf("change epoch = %d, want %d", change.Epoch, epochBefore+1)
	}

	identity, connected := tracker.CurrentIdentity()
	if !connected || identity != addrB {
		t.Errorf("identity = %s connected=%v, want %s", identity.Hex(), connected, addrB.Hex())
	}
}

func TestWalletLockDisconnects(t *testing.T) {
	w := &stubWallet{accounts: []common.Address{addrA}}
	tracker := NewTracker(w)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tracker.Start(ctx)
	defer tracker.Stop()

	changes := tracker.Subscribe()

	w.switchAccounts(nil)

	change := <-changes
	if change.Connected {
		t.Error("expected a disconnect change after the wallet locked")
	}
	if _, connected := tracker.CurrentIdentity(); connected {
		t.Error("expected no session after the wallet locked")
	}
}
