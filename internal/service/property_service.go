package service

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/estate-sync/internal/adapter"
	"github.com/estate-sync/internal/errors"
	"github.com/estate-sync/internal/models"
	"github.com/estate-sync/internal/session"
	"github.com/estate-sync/internal/storage"
)

// balanceFetchWorkers bounds the concurrent getMyTokens calls during a
// holdings sync so a large property list does not flood the RPC endpoint.
const balanceFetchWorkers = 4

// PropertyService reads the property registry and per-identity token
// balances from the ledger and maintains a local snapshot of both. The
// snapshot survives read failures: a failed refresh reports an error but
// leaves the last successfully fetched data in place.
type PropertyService struct {
	ledger  adapter.LedgerReader
	session *session.Tracker
	cache   *storage.RedisCache // optional, nil disables read-through caching

	mu             sync.RWMutex
	properties     []models.Property
	propertyByID   map[int64]models.Property
	propertiesSet  bool
	holdings       []models.Holding
	holdingsOwner  common.Address
	holdingsSet    bool
	lastSyncErr    error
}

// NewPropertyService creates a property service. cache may be nil.
func NewPropertyService(ledger adapter.LedgerReader, tracker *session.Tracker, cache *storage.RedisCache) *PropertyService {
	return &PropertyService{
		ledger:       ledger,
		session:      tracker,
		cache:        cache,
		propertyByID: make(map[int64]models.Property),
	}
}

// ListProperties fetches the full property registry and returns the
// normalized listing. Slots with an empty name are placeholder entries left
// by deletions and are skipped. On a remote failure the previously fetched
// listing is retained and returned alongside the error; callers can use
// errors.IsSoft to distinguish a degraded result from a hard failure.
func (s *PropertyService) ListProperties(ctx context.Context) ([]models.Property, error) {
	fetched, err := s.fetchProperties(ctx)
	if err != nil {
		s.mu.Lock()
		s.lastSyncErr = err
		retained := s.properties
		hadData := s.propertiesSet
		s.mu.Unlock()
		if hadData {
			log.Printf("[PropertyService] Property refresh failed, serving retained snapshot of %d properties: %v", len(retained), err)
			return retained, err
		}
		return nil, err
	}

	s.mu.Lock()
	s.applyPropertiesLocked(fetched)
	s.lastSyncErr = nil
	s.mu.Unlock()
	return fetched, nil
}

// CachedProperties returns the last successfully fetched property listing
// without touching the ledger.
func (s *PropertyService) CachedProperties() []models.Property {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Property, len(s.properties))
	copy(out, s.properties)
	return out
}

// CachedProperty looks up a property in the last fetched listing.
func (s *PropertyService) CachedProperty(id int64) (models.Property, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.propertyByID[id]
	return p, ok
}

// GetProperty returns a single property by id, consulting the Redis cache
// before the ledger. Both a missing slot and a fetch failure surface as a
// load failure for the caller.
func (s *PropertyService) GetProperty(ctx context.Context, id int64) (models.Property, error) {
	if s.cache != nil {
		cached, ok, err := s.cache.GetProperty(ctx, id)
		if err != nil {
			log.Printf("[PropertyService] Property cache read failed for %d: %v", id, err)
		} else if ok {
			return *cached, nil
		}
	}

	p, err := s.ledger.PropertyDetail(ctx, id)
	if err != nil {
		return models.Property{}, errors.NewRemoteUnavailableError("getPropertyDetails", err)
	}
	if !p.Valid() {
		return models.Property{}, errors.NewNotFoundError("property", fmt.Sprintf("%d", id))
	}

	if s.cache != nil {
		if err := s.cache.SetProperty(ctx, p); err != nil {
			log.Printf("[PropertyService] Failed to cache property %d: %v", id, err)
		}
	}
	return *p, nil
}

// ListHoldings fetches the connected identity's token balance for every
// property and returns the holdings with a non-zero balance. The result is
// computed against the identity captured at call start; if the session
// identity changes while the fetch is in flight, the result is discarded
// instead of being applied to the snapshot.
func (s *PropertyService) ListHoldings(ctx context.Context) ([]models.Holding, error) {
	// Identity and epoch must come from the same snapshot: an identity
	// change between the two reads would let a stale fetch pass the epoch
	// check below.
	identity, connected, epoch := s.session.Snapshot()
	if !connected {
		return nil, errors.NewUnauthenticatedError("listHoldings")
	}

	properties, err := s.fetchProperties(ctx)
	if err != nil {
		s.mu.Lock()
		s.lastSyncErr = err
		retained := s.holdings
		hadData := s.holdingsSet && s.holdingsOwner == identity
		s.mu.Unlock()
		if hadData {
			log.Printf("[PropertyService] Holdings refresh failed, serving retained snapshot of %d holdings: %v", len(retained), err)
			return retained, err
		}
		return nil, err
	}

	holdings := s.fetchBalances(ctx, identity, properties)

	// The session identity may have changed while balances were being
	// fetched. A stale result must never overwrite the snapshot or be
	// reported as the current identity's holdings.
	if s.session.Epoch() != epoch {
		log.Printf("[PropertyService] Discarding holdings fetch for %s: session identity changed mid-fetch", identity.Hex())
		s.mu.RLock()
		current := make([]models.Holding, len(s.holdings))
		copy(current, s.holdings)
		owner := s.holdingsOwner
		has := s.holdingsSet
		s.mu.RUnlock()
		if cur, ok := s.session.CurrentIdentity(); ok && has && owner == cur {
			return current, nil
		}
		return []models.Holding{}, nil
	}

	s.mu.Lock()
	s.applyPropertiesLocked(properties)
	s.holdings = holdings
	s.holdingsOwner = identity
	s.holdingsSet = true
	s.lastSyncErr = nil
	s.mu.Unlock()
	return holdings, nil
}

// CachedHoldings returns the last applied holdings snapshot and the
// identity it was computed for.
func (s *PropertyService) CachedHoldings() ([]models.Holding, common.Address, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Holding, len(s.holdings))
	copy(out, s.holdings)
	return out, s.holdingsOwner, s.holdingsSet
}

// HoldingsForCurrentIdentity returns the cached holdings snapshot only when
// it was computed for the currently connected identity. After a disconnect
// or account switch the new identity starts from an empty holdings set
// until its own fetch completes.
func (s *PropertyService) HoldingsForCurrentIdentity() []models.Holding {
	identity, connected := s.session.CurrentIdentity()
	if !connected {
		return []models.Holding{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.holdingsSet || s.holdingsOwner != identity {
		return []models.Holding{}
	}
	out := make([]models.Holding, len(s.holdings))
	copy(out, s.holdings)
	return out
}

// Refresh re-fetches the property registry and, when a session is active,
// the holdings snapshot. Used by the periodic sync worker and after a
// confirmed transaction.
func (s *PropertyService) Refresh(ctx context.Context) error {
	if _, err := s.ListProperties(ctx); err != nil {
		return err
	}
	if _, connected := s.session.CurrentIdentity(); connected {
		if _, err := s.ListHoldings(ctx); err != nil {
			return err
		}
	}
	return nil
}

// InvalidateCache drops all cached property entries from Redis. No-op
// without a cache.
func (s *PropertyService) InvalidateCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateProperties(ctx); err != nil {
		log.Printf("[PropertyService] Failed to invalidate property cache: %v", err)
	}
}

// LastSyncError reports the error from the most recent failed sync, or nil
// if the last sync succeeded.
func (s *PropertyService) LastSyncError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSyncErr
}

// fetchProperties enumerates the registry by index. Any slot that fails to
// load fails the whole fetch; empty-name slots are skipped.
func (s *PropertyService) fetchProperties(ctx context.Context) ([]models.Property, error) {
	count, err := s.ledger.PropertyCount(ctx)
	if err != nil {
		return nil, errors.NewRemoteUnavailableError("getAllPropertiesCount", err)
	}

	properties := make([]models.Property, 0, count)
	for i := int64(0); i < count; i++ {
		p, err := s.ledger.PropertyDetail(ctx, i)
		if err != nil {
			return nil, errors.NewRemoteUnavailableError("getPropertyDetails", err)
		}
		if !p.Valid() {
			continue
		}
		properties = append(properties, *p)
	}
	return properties, nil
}

// fetchBalances queries the identity's balance for each property with a
// bounded worker pool. A failed or zero balance excludes that property from
// the result; individual failures are logged and do not fail the sync.
func (s *PropertyService) fetchBalances(ctx context.Context, identity common.Address, properties []models.Property) []models.Holding {
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		sem     = make(chan struct{}, balanceFetchWorkers)
		results = make([]models.Holding, 0, len(properties))
	)

	for _, p := range properties {
		wg.Add(1)
		sem <- struct{}{}
		go func(p models.Property) {
			defer wg.Done()
			defer func() { <-sem }()

			balance, err := s.ledger.TokenBalance(ctx, identity, p.PropertyID)
			if err != nil {
				log.Printf("[PropertyService] Failed to fetch balance for property %d: %v", p.PropertyID, err)
				return
			}
			if balance <= 0 {
				return
			}
			h := models.NewHolding(p, balance)
			mu.Lock()
			results = append(results, h)
			mu.Unlock()
		}(p)
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool {
		return results[i].Property.PropertyID < results[j].Property.PropertyID
	})
	return results
}

func (s *PropertyService) applyPropertiesLocked(properties []models.Property) {
	s.properties = properties
	s.propertiesSet = true
	byID := make(map[int64]models.Property, len(properties))
	for _, p := range properties {
		byID[p.PropertyID] = p
	}
	s.propertyByID = byID
}
