package service

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"sync"

	"github.com/estate-sync/internal/adapter"
	"github.com/estate-sync/internal/errors"
	"github.com/estate-sync/internal/models"
	"github.com/estate-sync/internal/session"
	"github.com/estate-sync/internal/types"
)

// OrderService manages the secondary-market sell orders: listing the global
// and per-identity order books and running the order-mutating actions
// through the transaction state machine.
type OrderService struct {
	ledger  adapter.LedgerReader
	session *session.Tracker
	reader  *PropertyService
	txs     *TransactionService

	mu        sync.RWMutex
	orders    []models.SellOrder
	orderByID map[int64]models.SellOrder
	ordersSet bool
}

// NewOrderService creates an order service.
func NewOrderService(ledger adapter.LedgerReader, tracker *session.Tracker, reader *PropertyService, txs *TransactionService) *OrderService {
	return &OrderService{
		ledger:    ledger,
		session:   tracker,
		reader:    reader,
		txs:       txs,
		orderByID: make(map[int64]models.SellOrder),
	}
}

// ListActiveOrders fetches the global active order book with each order
// joined to its property. Orders whose property cannot be resolved are
// skipped rather than failing the listing. On a remote failure the previous
// successfully fetched book is retained and returned alongside the error.
func (s *OrderService) ListActiveOrders(ctx context.Context) ([]models.SellOrder, error) {
	fetched, err := s.ledger.ActiveSellOrders(ctx)
	if err != nil {
		wrapped := errors.NewRemoteUnavailableError("getAllSellOrders", err)
		s.mu.RLock()
		retained := s.orders
		hadData := s.ordersSet
		s.mu.RUnlock()
		if hadData {
			log.Printf("[OrderService] Order book refresh failed, serving retained snapshot of %d orders: %v", len(retained), err)
			return retained, wrapped
		}
		return nil, wrapped
	}

	enriched := s.joinProperties(ctx, fetched)

	s.mu.Lock()
	s.orders = enriched
	byID := make(map[int64]models.SellOrder, len(enriched))
	for _, o := range enriched {
		byID[o.OrderID] = o
	}
	s.orderByID = byID
	s.ordersSet = true
	s.mu.Unlock()
	return enriched, nil
}

// ListMyOrders fetches the connected identity's active sell orders.
func (s *OrderService) ListMyOrders(ctx context.Context) ([]models.SellOrder, error) {
	identity, connected := s.session.CurrentIdentity()
	if !connected {
		return nil, errors.NewUnauthenticatedError("listMyOrders")
	}

	fetched, err := s.ledger.SellOrdersBySeller(ctx, identity)
	if err != nil {
		return nil, errors.NewRemoteUnavailableError("getMySellOrders", err)
	}
	return s.joinProperties(ctx, fetched), nil
}

// CachedOrder looks up an order in the last fetched global order book.
func (s *OrderService) CachedOrder(orderID int64) (models.SellOrder, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orderByID[orderID]
	return o, ok
}

// CreateOrder lists tokens for resale and runs the submission to a terminal
// state.
func (s *OrderService) CreateOrder(ctx context.Context, propertyID, amount int64, pricePerToken *big.Int) (*models.TransactionRecord, error) {
	return s.txs.Execute(ctx, TxRequest{
		Action:        types.ActionCreateOrder,
		PropertyID:    propertyID,
		Amount:        amount,
		PricePerToken: pricePerToken,
	})
}

// CancelOrder withdraws one of the identity's standing sell orders.
func (s *OrderService) CancelOrder(ctx context.Context, orderID int64) (*models.TransactionRecord, error) {
	return s.txs.Execute(ctx, TxRequest{
		Action:  types.ActionCancelOrder,
		OrderID: orderID,
	})
}

// FillOrder buys the full token amount of another party's sell order. The
// order must be present in the last fetched order book; the attached
// payment is the order's total cost.
func (s *OrderService) FillOrder(ctx context.Context, orderID int64) (*models.TransactionRecord, error) {
	order, ok := s.CachedOrder(orderID)
	if !ok {
		return nil, errors.NewNotFoundError("order", fmt.Sprintf("%d", orderID))
	}

	return s.txs.Execute(ctx, TxRequest{
		Action:  types.ActionFillOrder,
		OrderID: orderID,
		Payment: order.TotalCost(),
	})
}

// joinProperties resolves each order's property through the reader. A
// failed join drops the order from the result and is logged; the order book
// stays usable when a single slot misbehaves.
func (s *OrderService) joinProperties(ctx context.Context, orders []models.SellOrder) []models.SellOrder {
	out := make([]models.SellOrder, 0, len(orders))
	for _, o := range orders {
		if !o.IsActive {
			continue
		}
		property, err := s.reader.GetProperty(ctx, o.PropertyID)
		if err != nil {
			log.Printf("[OrderService] Skipping order %d: failed to resolve property %d: %v", o.OrderID, o.PropertyID, err)
			continue
		}
		o.Property = &property
		out = append(out, o)
	}
	return out
}
