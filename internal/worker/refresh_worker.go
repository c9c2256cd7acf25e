// Package worker runs the periodic ledger synchronization loop.
package worker

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/estate-sync/internal/service"
	"github.com/estate-sync/internal/session"
)

// RefreshWorker periodically re-fetches the property registry, the
// connected identity's holdings and the order book, and records a portfolio
// snapshot after each successful sync. It also reacts to session changes so
// a newly connected identity sees fresh data without waiting a full cycle.
type RefreshWorker struct {
	reader    *service.PropertyService
	orders    *service.OrderService
	portfolio *service.PortfolioService
	tracker   *session.Tracker
	interval  time.Duration

	mu           sync.RWMutex
	running      bool
	lastSyncTime time.Time
	lastSyncErr  error
	syncCount    int64
	stopCh       chan struct{}
	doneCh       chan struct{}
}

// RefreshWorkerConfig holds configuration for a refresh worker.
type RefreshWorkerConfig struct {
	Reader    *service.PropertyService
	Orders    *service.OrderService
	Portfolio *service.PortfolioService
	Tracker   *session.Tracker
	Interval  time.Duration
}

// RefreshWorkerStatus is the point-in-time view reported by the health
// endpoint.
type RefreshWorkerStatus struct {
	Running         bool      `json:"running"`
	LastSyncTime    time.Time `json:"lastSyncTime"`
	LastSyncError   string    `json:"lastSyncError,omitempty"`
	SyncCount       int64     `json:"syncCount"`
	IntervalSeconds int       `json:"intervalSeconds"`
}

// NewRefreshWorker creates a refresh worker.
func NewRefreshWorker(cfg *RefreshWorkerConfig) (*RefreshWorker, error) {
	if cfg.Reader == nil {
		return nil, fmt.Errorf("property service cannot be nil")
	}
	if cfg.Orders == nil {
		return nil, fmt.Errorf("order service cannot be nil")
	}
	if cfg.Tracker == nil {
		return nil, fmt.Errorf("session tracker cannot be nil")
	}

	interval := cfg.Interval
	if interval == 0 {
		interval = 30 * time.Second
	}
	if interval < 5*time.Second {
		return nil, fmt.Errorf("refresh interval must be at least 5 seconds, got %v", interval)
	}

	return &RefreshWorker{
		reader:    cfg.Reader,
		orders:    cfg.Orders,
		portfolio: cfg.Portfolio,
		tracker:   cfg.Tracker,
		interval:  interval,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}, nil
}

// Start runs an initial sync and launches the refresh loop.
func (w *RefreshWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("refresh worker is already running")
	}
	w.running = true
	w.mu.Unlock()

	log.Printf("[RefreshWorker] Starting with refresh interval %v", w.interval)

	if err := w.syncOnce(ctx); err != nil {
		log.Printf("[RefreshWorker] Initial sync failed, will retry on next cycle: %v", err)
	}

	go w.refreshLoop(ctx)
	return nil
}

// Stop signals the loop and waits for it to exit.
func (w *RefreshWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return fmt.Errorf("refresh worker is not running")
	}
	w.mu.Unlock()

	log.Printf("[RefreshWorker] Stopping")
	close(w.stopCh)

	select {
	case <-w.doneCh:
		log.Printf("[RefreshWorker] Stopped gracefully")
	case <-ctx.Done():
		log.Printf("[RefreshWorker] Stop timed out")
		return ctx.Err()
	case <-time.After(30 * time.Second):
		return fmt.Errorf("stop timeout")
	}

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
	return nil
}

// GetStatus returns the current worker status.
func (w *RefreshWorker) GetStatus() *RefreshWorkerStatus {
	w.mu.RLock()
	defer w.mu.RUnlock()

	status := &RefreshWorkerStatus{
		Running:         w.running,
		LastSyncTime:    w.lastSyncTime,
		SyncCount:       w.syncCount,
		IntervalSeconds: int(w.interval.Seconds()),
	}
	if w.lastSyncErr != nil {
		status.LastSyncError = w.lastSyncErr.Error()
	}
	return status
}

func (w *RefreshWorker) refreshLoop(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	sessionCh := w.tracker.Subscribe()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[RefreshWorker] Context cancelled")
			return
		case <-w.stopCh:
			log.Printf("[RefreshWorker] Stop signal received")
			return
		case change := <-sessionCh:
			// A connect, disconnect or account switch invalidates the
			// per-identity portions of the snapshot immediately.
			log.Printf("[RefreshWorker] Session changed (connected=%v epoch=%d), refreshing", change.Connected, change.Epoch)
			if err := w.syncOnce(ctx); err != nil {
				log.Printf("[RefreshWorker] Refresh after session change failed: %v", err)
			}
		case <-ticker.C:
			if err := w.syncOnce(ctx); err != nil {
				log.Printf("[RefreshWorker] Periodic sync failed: %v", err)
				continue
			}
		}
	}
}

// syncOnce runs one full refresh cycle. The order book is refreshed even
// when the holdings fetch degrades; only the first hard failure aborts the
// cycle.
func (w *RefreshWorker) syncOnce(ctx context.Context) error {
	w.mu.Lock()
	w.lastSyncTime = time.Now()
	w.mu.Unlock()

	err := w.reader.Refresh(ctx)
	if _, ordersErr := w.orders.ListActiveOrders(ctx); ordersErr != nil && err == nil {
		err = ordersErr
	}

	w.mu.Lock()
	w.lastSyncErr = err
	if err == nil {
		w.syncCount++
	}
	w.mu.Unlock()

	if err != nil {
		return err
	}

	if w.portfolio != nil {
		w.portfolio.RecordCurrent(ctx)
	}
	return nil
}
