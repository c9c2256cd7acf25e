// Package session owns wallet connection state and the current identity.
// All ledger-derived state is keyed by the tracker's epoch: an identity
// change bumps the epoch, which invalidates any fetch still in flight for
// the previous identity.
package session

import (
	"context"
	"log"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/estate-sync/internal/errors"
	"github.com/estate-sync/internal/wallet"
)

// Change describes one identity transition delivered to subscribers.
// The epoch in the change is already current when the change is delivered,
// so a re-fetch triggered by it can never be confused with a fetch started
// under the previous identity.
type Change struct {
	Identity  common.Address
	Connected bool
	Epoch     uint64
}

// Tracker tracks the active wallet session. It is the single writer of
// session state; everything else reads through accessors.
type Tracker struct {
	provider wallet.Provider

	mu        sync.RWMutex
	identity  common.Address
	connected bool
	epoch     uint64
	subs      []chan Change

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewTracker creates a session tracker bound to a wallet provider. The
// provider may be nil, in which case every operation reports NO_PROVIDER.
// Silent identity discovery runs immediately: if the wallet already exposes
// an account, the session starts connected without prompting.
func NewTracker(provider wallet.Provider) *Tracker {
	t := &Tracker{
		provider: provider,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}

	if provider != nil {
		if accts := provider.CurrentAccounts(); len(accts) > 0 {
			t.identity = accts[0]
			t.connected = true
			log.Printf("[Session] Silent discovery connected %s", t.identity.Hex())
		}
	}

	return t
}

// Start consumes wallet account-change notifications until the context is
// cancelled or Stop is called. Identity updates strictly precede the change
// delivery to subscribers.
func (t *Tracker) Start(ctx context.Context) {
	if t.provider == nil {
		close(t.doneCh)
		return
	}

	events := make(chan struct{}, 16)
	sub := t.provider.Subscribe(events)

	go func() {
		defer close(t.doneCh)
		defer sub.Unsubscribe()
		for {
			select {
			case <-events:
				t.refreshIdentity()
			case err := <-sub.Err():
				if err != nil {
					log.Printf("[Session] Wallet subscription error: %v", err)
				}
				return
			case <-ctx.Done():
				return
			case <-t.stopCh:
				return
			}
		}
	}()
}

// Stop terminates the event loop and waits for it to drain.
func (t *Tracker) Stop() {
	t.stopOnce.Do(func() { close(t.stopCh) })
	<-t.doneCh
}

// Connect requests account access from the wallet capability and marks the
// session connected. Fails with NO_PROVIDER or USER_DENIED.
func (t *Tracker) Connect(ctx context.Context) (common.Address, error) {
	if t.provider == nil {
		return common.Address{}, errors.NewNoProviderError()
	}

	accts, err := t.provider.RequestAccounts(ctx)
	if err != nil {
		return common.Address{}, err
	}
	if len(accts) == 0 {
		return common.Address{}, errors.NewNoProviderError()
	}

	t.setIdentity(accts[0], true)
	return accts[0], nil
}

// Disconnect tears down the session. Ledger-derived state for the previous
// identity is invalidated through the epoch bump.
func (t *Tracker) Disconnect() {
	t.setIdentity(common.Address{}, false)
}

// CurrentIdentity returns the active address, or false when no session
// exists. Never blocks on I/O.
func (t *Tracker) CurrentIdentity() (common.Address, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.identity, t.connected
}

// Epoch returns the current session epoch. Fetches capture the epoch before
// starting and discard their result if it moved while they were in flight.
func (t *Tracker) Epoch() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.epoch
}

// Snapshot returns identity, connected flag, and epoch atomically.
func (t *Tracker) Snapshot() (common.Address, bool, uint64) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.identity, t.connected, t.epoch
}

// Subscribe returns a channel receiving identity changes. The channel is
// buffered; a slow consumer drops intermediate changes rather than blocking
// the tracker.
func (t *Tracker) Subscribe() <-chan Change {
	ch := make(chan Change, 4)
	t.mu.Lock()
	t.subs = append(t.subs, ch)
	t.mu.Unlock()
	return ch
}

// refreshIdentity re-derives the identity from the wallet's current account
// set after a change notification.
func (t *Tracker) refreshIdentity() {
	accts := t.provider.CurrentAccounts()
	if len(accts) == 0 {
		t.setIdentity(common.Address{}, false)
		return
	}
	t.setIdentity(accts[0], true)
}

// setIdentity applies an identity transition. The epoch bump happens under
// the same lock as the identity write, so no reader can observe the new
// identity with the old epoch.
func (t *Tracker) setIdentity(identity common.Address, connected bool) {
	t.mu.Lock()
	if t.identity == identity && t.connected == connected {
		t.mu.Unlock()
		return
	}

	t.identity = identity
	t.connected = connected
	t.epoch++

	change := Change{Identity: identity, Connected: connected, Epoch: t.epoch}
	subs := make([]chan Change, len(t.subs))
	copy(subs, t.subs)
	t.mu.Unlock()

	if connected {
		log.Printf("[Session] Identity changed to %s (epoch %d)", identity.Hex(), change.Epoch)
	} else {
		log.Printf("[Session] Session disconnected (epoch %d)", change.Epoch)
	}

	for _, ch := range subs {
		select {
		case ch <- change:
		default:
			// Drop rather than block; subscribers re-read Snapshot anyway.
		}
	}
}
