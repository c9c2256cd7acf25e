package adapter

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// DataProvider supplies RPC URLs with failover support.
type DataProvider interface {
	// GetPrimaryURL returns the preferred RPC URL
	GetPrimaryURL() (string, error)
	// GetCurrentURL returns the currently active RPC URL
	GetCurrentURL() (string, error)
	// Failover switches to the backup endpoint
	Failover() error
	// RecordSuccess records a successful request for health tracking
	RecordSuccess(duration time.Duration)
	// RecordFailure records a failed request for health tracking
	RecordFailure(err error)
	// IsHealthy reports whether the current endpoint looks usable
	IsHealthy() bool
}

// ProviderHealth tracks endpoint health statistics
type ProviderHealth struct {
	URL              string    `json:"url"`
	TotalRequests    int64     `json:"totalRequests"`
	FailedRequests   int64     `json:"failedRequests"`
	ConsecutiveFails int       `json:"consecutiveFails"`
	LastFailure      time.Time `json:"lastFailure,omitempty"`
	AvgLatencyMs     float64   `json:"avgLatencyMs"`
}

// RPCProvider is a primary/secondary RPC endpoint pair with failover.
type RPCProvider struct {
	primaryURL   string
	secondaryURL string

	mu                  sync.RWMutex
	usingSecondary      bool
	health              ProviderHealth
	maxConsecutiveFails int
}

// NewRPCProvider creates a provider. secondaryURL may be empty, in which
// case Failover fails and callers keep retrying the primary.
func NewRPCProvider(primaryURL, secondaryURL string) (*RPCProvider, error) {
	if primaryURL == "" {
		return nil, fmt.Errorf("primary RPC URL is required")
	}

	return &RPCProvider{
		primaryURL:          primaryURL,
		secondaryURL:        secondaryURL,
		health:              ProviderHealth{URL: primaryURL},
		maxConsecutiveFails: 5,
	}, nil
}

// GetPrimaryURL returns the preferred RPC URL
func (p *RPCProvider) GetPrimaryURL() (string, error) {
	return p.primaryURL, nil
}

// GetCurrentURL returns the currently active RPC URL
func (p *RPCProvider) GetCurrentURL() (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.usingSecondary {
		return p.secondaryURL, nil
	}
	return p.primaryURL, nil
}

// Failover switches to the secondary endpoint
func (p *RPCProvider) Failover() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.usingSecondary || p.secondaryURL == "" {
		return fmt.Errorf("no backup endpoint available")
	}

	p.usingSecondary = true
	p.health = ProviderHealth{URL: p.secondaryURL}
	log.Printf("[Provider] Failing over to secondary endpoint %s", p.secondaryURL)
	return nil
}

// RecordSuccess records a successful request for health tracking
func (p *RPCProvider) RecordSuccess(duration time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.health.TotalRequests++
	p.health.ConsecutiveFails = 0

	// Running average latency
	ms := float64(duration.Milliseconds())
	n := float64(p.health.TotalRequests)
	p.health.AvgLatencyMs = p.health.AvgLatencyMs + (ms-p.health.AvgLatencyMs)/n
}

// RecordFailure records a failed request for health tracking
func (p *RPCProvider) RecordFailure(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.health.TotalRequests++
	p.health.FailedRequests++
	p.health.ConsecutiveFails++
	p.health.LastFailure = time.Now()
}

// IsHealthy reports whether the current endpoint looks usable
func (p *RPCProvider) IsHealthy() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.health.ConsecutiveFails < p.maxConsecutiveFails
}

// GetHealth returns a copy of the current health statistics
func (p *RPCProvider) GetHealth() ProviderHealth {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.health
}
