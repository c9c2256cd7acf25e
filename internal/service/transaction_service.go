package service

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/estate-sync/internal/adapter"
	"github.com/estate-sync/internal/errors"
	"github.com/estate-sync/internal/models"
	"github.com/estate-sync/internal/session"
	"github.com/estate-sync/internal/storage"
	"github.com/estate-sync/internal/types"
)

// TxRequest describes one mutating ledger action.
type TxRequest struct {
	Action     types.ActionKind
	PropertyID int64
	OrderID    int64
	// Amount is the token count for purchase, sell and create_order.
	Amount int64
	// PricePerToken is the asking price in wei for create_order.
	PricePerToken *big.Int
	// Payment is the wei value attached to purchase and fill_order. When nil
	// for a purchase it is derived from the cached property price.
	Payment *big.Int
}

// TransactionService runs the mutating-action state machine: validate,
// submit, await confirmation, reconcile local state, settle. Actions against
// the same target run one at a time; a failed action is never retried
// automatically.
type TransactionService struct {
	ledger  adapter.Ledger
	session *session.Tracker
	reader  *PropertyService
	journal *storage.TransactionRepository // optional, nil disables the journal

	lockMu  sync.Mutex
	targets map[string]*sync.Mutex
}

// NewTransactionService creates a transaction service. journal may be nil.
func NewTransactionService(ledger adapter.Ledger, tracker *session.Tracker, reader *PropertyService, journal *storage.TransactionRepository) *TransactionService {
	return &TransactionService{
		ledger:  ledger,
		session: tracker,
		reader:  reader,
		journal: journal,
		targets: make(map[string]*sync.Mutex),
	}
}

// Execute runs one action through the full state machine and returns the
// terminal journal record. The returned error, if any, is the categorized
// failure; the record's FailureReason carries the same reason.
func (s *TransactionService) Execute(ctx context.Context, req TxRequest) (*models.TransactionRecord, error) {
	identity, connected := s.session.CurrentIdentity()
	if !connected {
		return nil, errors.NewUnauthenticatedError(string(req.Action))
	}

	target, payment, err := s.validate(req)
	if err != nil {
		return nil, err
	}

	// One in-flight action per target. Concurrent actions against distinct
	// targets proceed independently.
	unlock := s.lockTarget(target)
	defer unlock()

	record := &models.TransactionRecord{
		ID:          uuid.New().String(),
		Action:      req.Action,
		Identity:    identity.Hex(),
		Target:      target,
		State:       types.TxSubmitting,
		SubmittedAt: time.Now().UTC(),
	}
	s.journalCreate(ctx, record)

	log.Printf("[TransactionService] Submitting %s for %s target=%s", req.Action, identity.Hex(), target)

	handle, err := s.dispatch(ctx, identity, req, payment)
	if err != nil {
		return s.fail(ctx, record, err)
	}

	record.TxHash = handle.Hash().Hex()
	record.State = types.TxAwaitingConfirmation
	s.journalUpdate(ctx, record)

	if err := handle.AwaitConfirmation(ctx); err != nil {
		// The ledger state after a revert is unchanged, so the local
		// snapshot stays as-is; no re-fetch on failure.
		return s.fail(ctx, record, err)
	}

	record.State = types.TxReconciling
	s.journalUpdate(ctx, record)

	// Local state is refreshed before the action is reported settled so a
	// caller observing the terminal state sees post-transaction data. A
	// failed refresh degrades to the retained snapshot and is not a
	// transaction failure.
	s.reader.InvalidateCache(ctx)
	if err := s.reader.Refresh(ctx); err != nil {
		log.Printf("[TransactionService] Post-transaction refresh failed for %s: %v", target, err)
	}

	record.State = types.TxSettled
	record.CompletedAt = time.Now().UTC()
	s.journalUpdate(ctx, record)

	log.Printf("[TransactionService] Settled %s target=%s tx=%s", req.Action, target, record.TxHash)
	return record, nil
}

// History returns the journal entries for an identity, newest first.
func (s *TransactionService) History(ctx context.Context, identity string, limit int) ([]*models.TransactionRecord, error) {
	if s.journal == nil {
		return []*models.TransactionRecord{}, nil
	}
	return s.journal.ListByIdentity(ctx, identity, limit)
}

// validate resolves the action target against the current local view and
// computes the attached payment where it can be derived.
func (s *TransactionService) validate(req TxRequest) (target string, payment *big.Int, err error) {
	switch req.Action {
	case types.ActionPurchase:
		if req.Amount <= 0 {
			return "", nil, errors.NewInvalidParameterError("amount", "must be positive")
		}
		property, ok := s.reader.CachedProperty(req.PropertyID)
		if !ok {
			return "", nil, errors.NewNotFoundError("property", fmt.Sprintf("%d", req.PropertyID))
		}
		payment = req.Payment
		if payment == nil {
			payment = new(big.Int).Mul(property.PricePerToken, big.NewInt(req.Amount))
		}
		return propertyTarget(req.PropertyID), payment, nil

	case types.ActionSell:
		if req.Amount <= 0 {
			return "", nil, errors.NewInvalidParameterError("amount", "must be positive")
		}
		if _, ok := s.reader.CachedProperty(req.PropertyID); !ok {
			return "", nil, errors.NewNotFoundError("property", fmt.Sprintf("%d", req.PropertyID))
		}
		return propertyTarget(req.PropertyID), nil, nil

	case types.ActionCreateOrder:
		if req.Amount <= 0 {
			return "", nil, errors.NewInvalidParameterError("amount", "must be positive")
		}
		if req.PricePerToken == nil || req.PricePerToken.Sign() <= 0 {
			return "", nil, errors.NewInvalidParameterError("pricePerToken", "must be positive")
		}
		if _, ok := s.reader.CachedProperty(req.PropertyID); !ok {
			return "", nil, errors.NewNotFoundError("property", fmt.Sprintf("%d", req.PropertyID))
		}
		return propertyTarget(req.PropertyID), nil, nil

	case types.ActionCancelOrder:
		return orderTarget(req.OrderID), nil, nil

	case types.ActionFillOrder:
		if req.Payment == nil || req.Payment.Sign() <= 0 {
			return "", nil, errors.NewInvalidParameterError("payment", "must be positive")
		}
		return orderTarget(req.OrderID), req.Payment, nil

	default:
		return "", nil, errors.NewInvalidParameterError("action", fmt.Sprintf("unknown action %q", req.Action))
	}
}

func (s *TransactionService) dispatch(ctx context.Context, identity common.Address, req TxRequest, payment *big.Int) (adapter.TxHandle, error) {
	switch req.Action {
	case types.ActionPurchase:
		return s.ledger.PurchaseTokens(ctx, identity, req.PropertyID, req.Amount, payment)
	case types.ActionSell:
		return s.ledger.SellTokens(ctx, identity, req.PropertyID, req.Amount)
	case types.ActionCreateOrder:
		return s.ledger.CreateSellOrder(ctx, identity, req.PropertyID, req.Amount, req.PricePerToken)
	case types.ActionCancelOrder:
		return s.ledger.CancelSellOrder(ctx, identity, req.OrderID)
	case types.ActionFillOrder:
		return s.ledger.FillSellOrder(ctx, identity, req.OrderID, payment)
	default:
		return nil, errors.NewInvalidParameterError("action", fmt.Sprintf("unknown action %q", req.Action))
	}
}

// fail moves the record to its terminal failed state with the most specific
// reason available and returns the categorized error.
func (s *TransactionService) fail(ctx context.Context, record *models.TransactionRecord, cause error) (*models.TransactionRecord, error) {
	categorized := errors.Categorize(cause)
	record.State = types.TxFailed
	record.FailureReason = categorized.Message
	record.CompletedAt = time.Now().UTC()
	s.journalUpdate(ctx, record)

	log.Printf("[TransactionService] Failed %s target=%s: %s", record.Action, record.Target, categorized.Message)
	return record, categorized
}

func (s *TransactionService) journalCreate(ctx context.Context, record *models.TransactionRecord) {
	if s.journal == nil {
		return
	}
	if err := s.journal.Create(ctx, record); err != nil {
		log.Printf("[TransactionService] Failed to journal transaction %s: %v", record.ID, err)
	}
}

func (s *TransactionService) journalUpdate(ctx context.Context, record *models.TransactionRecord) {
	if s.journal == nil {
		return
	}
	if err := s.journal.UpdateState(ctx, record.ID, record.State, record.TxHash, record.FailureReason); err != nil {
		log.Printf("[TransactionService] Failed to update journal entry %s: %v", record.ID, err)
	}
}

func (s *TransactionService) lockTarget(target string) func() {
	s.lockMu.Lock()
	mu, ok := s.targets[target]
	if !ok {
		mu = &sync.Mutex{}
		s.targets[target] = mu
	}
	s.lockMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

func propertyTarget(id int64) string { return fmt.Sprintf("property:%d", id) }
func orderTarget(id int64) string    { return fmt.Sprintf("order:%d", id) }
