package service

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/estate-sync/internal/adapter"
	"github.com/estate-sync/internal/errors"
	"github.com/estate-sync/internal/models"
	"github.com/estate-sync/internal/session"
	"github.com/estate-sync/internal/wallet"
)

// fakeLedger is a scriptable in-memory ledger for service tests.
type fakeLedger struct {
	mu sync.Mutex

	properties map[int64]*models.Property
	count      int64
	balances   map[common.Address]map[int64]int64
	orders     []models.SellOrder

	countErr   error
	detailErr  map[int64]error
	balanceErr map[int64]error
	ordersErr  error

	// onDetail runs before each PropertyDetail call, letting tests mutate
	// state mid-fetch.
	onDetail func(propertyID int64)

	countCalls   int
	detailCalls  int
	balanceCalls int

	submitErr  error
	confirmErr error
	submitted  []string
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		properties: make(map[int64]*models.Property),
		balances:   make(map[common.Address]map[int64]int64),
		detailErr:  make(map[int64]error),
		balanceErr: make(map[int64]error),
	}
}

func (f *fakeLedger) addProperty(p models.Property) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.properties[p.PropertyID] = &p
	if p.PropertyID+1 > f.count {
		f.count = p.PropertyID + 1
	}
}

func (f *fakeLedger) setBalance(identity common.Address, propertyID, balance int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.balances[identity] == nil {
		f.balances[identity] = make(map[int64]int64)
	}
	f.balances[identity][propertyID] = balance
}

func (f *fakeLedger) PropertyCount(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.countCalls++
	if f.countErr != nil {
		return 0, f.countErr
	}
	return f.count, nil
}

func (f *fakeLedger) PropertyDetail(ctx context.Context, propertyID int64) (*models.Property, error) {
	f.mu.Lock()
	hook := f.onDetail
	f.detailCalls++
	err := f.detailErr[propertyID]
	p := f.properties[propertyID]
	f.mu.Unlock()

	if hook != nil {
		hook(propertyID)
	}
	if err != nil {
		return nil, err
	}
	if p == nil {
		// Placeholder slot.
		return &models.Property{PropertyID: propertyID}, nil
	}
	clone := *p
	return &clone, nil
}

func (f *fakeLedger) TokenBalance(ctx context.Context, identity common.Address, propertyID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balanceCalls++
	if err := f.balanceErr[propertyID]; err != nil {
		return 0, err
	}
	return f.balances[identity][propertyID], nil
}

func (f *fakeLedger) ActiveSellOrders(ctx context.Context) ([]models.SellOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ordersErr != nil {
		return nil, f.ordersErr
	}
	out := make([]models.SellOrder, len(f.orders))
	copy(out, f.orders)
	return out, nil
}

func (f *fakeLedger) SellOrdersBySeller(ctx context.Context, identity common.Address) ([]models.SellOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ordersErr != nil {
		return nil, f.ordersErr
	}
	var out []models.SellOrder
	for _, o := range f.orders {
		if o.Seller == identity {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeLedger) submit(action string) (adapter.TxHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	f.submitted = append(f.submitted, action)
	return &fakeTxHandle{hash: common.HexToHash(fmt.Sprintf("0x%x", len(f.submitted))), err: f.confirmErr}, nil
}

func (f *fakeLedger) PurchaseTokens(ctx context.Context, from common.Address, propertyID, amount int64, payment *big.Int) (adapter.TxHandle, error) {
	return f.submit("purchase")
}

func (f *fakeLedger) SellTokens(ctx context.Context, from common.Address, propertyID, amount int64) (adapter.TxHandle, error) {
	return f.submit("sell")
}

func (f *fakeLedger) CreateSellOrder(ctx context.Context, from common.Address, propertyID, amount int64, pricePerToken *big.Int) (adapter.TxHandle, error) {
	h, err := f.submit("create_order")
	if err != nil {
		return nil, err
	}
	// The order only exists on the ledger once the transaction confirms.
	h.(*fakeTxHandle).onConfirm = func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.orders = append(f.orders, models.SellOrder{
			OrderID:       int64(len(f.orders) + 1),
			PropertyID:    propertyID,
			Seller:        from,
			TokenAmount:   amount,
			PricePerToken: pricePerToken,
			IsActive:      true,
		})
	}
	return h, nil
}

func (f *fakeLedger) CancelSellOrder(ctx context.Context, from common.Address, orderID int64) (adapter.TxHandle, error) {
	return f.submit("cancel_order")
}

func (f *fakeLedger) FillSellOrder(ctx context.Context, from common.Address, orderID int64, payment *big.Int) (adapter.TxHandle, error) {
	return f.submit("fill_order")
}

type fakeTxHandle struct {
	hash      common.Hash
	err       error
	onConfirm func()
}

func (h *fakeTxHandle) Hash() common.Hash { return h.hash }

func (h *fakeTxHandle) AwaitConfirmation(ctx context.Context) error {
	if h.err != nil {
		return errors.NewTransactionFailedError(h.err.Error(), h.err)
	}
	if h.onConfirm != nil {
		h.onConfirm()
	}
	return nil
}

// fakeWallet implements wallet.Provider for session-dependent tests.
type fakeWallet struct {
	mu       sync.Mutex
	accounts []common.Address
	denied   bool
}

func (w *fakeWallet) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.denied {
		return nil, errors.NewUserDeniedError(fmt.Errorf("access refused"))
	}
	return w.accounts, nil
}

func (w *fakeWallet) CurrentAccounts() []common.Address {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.accounts
}

func (w *fakeWallet) SignTx(account common.Address, tx *ethtypes.Transaction, chainID *big.Int) (*ethtypes.Transaction, error) {
	return tx, nil
}

func (w *fakeWallet) Subscribe(sink chan<- struct{}) wallet.Subscription {
	return fakeSubscription{errCh: make(chan error)}
}

type fakeSubscription struct{ errCh chan error }

func (s fakeSubscription) Unsubscribe()      {}
func (s fakeSubscription) Err() <-chan error { return s.errCh }

// connectedTracker builds a tracker with an established session.
func connectedTracker(identity common.Address) *session.Tracker {
	return session.NewTracker(&fakeWallet{accounts: []common.Address{identity}})
}
