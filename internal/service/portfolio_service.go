package service

import (
	"context"
	"log"
	"time"

	"github.com/estate-sync/internal/models"
	"github.com/estate-sync/internal/storage"
)

// PortfolioService derives aggregate portfolio figures from a holdings
// snapshot and optionally records them to the snapshot history table.
type PortfolioService struct {
	reader    *PropertyService
	snapshots *storage.SnapshotRepository // optional, nil disables history
}

// NewPortfolioService creates a portfolio service. snapshots may be nil.
func NewPortfolioService(reader *PropertyService, snapshots *storage.SnapshotRepository) *PortfolioService {
	return &PortfolioService{reader: reader, snapshots: snapshots}
}

// Summarize computes the aggregate view of a holdings set. The result
// depends only on the multiset of holdings, not their order.
func (s *PortfolioService) Summarize(holdings []models.Holding) models.PortfolioSummary {
	summary := models.PortfolioSummary{Count: len(holdings)}
	for _, h := range holdings {
		summary.TotalTokens += h.UserTokens
		summary.TotalValue += h.InvestmentValue
	}
	return summary
}

// CurrentSummary summarizes the holdings snapshot of the currently
// connected identity. A snapshot left over from a previous identity yields
// the empty summary.
func (s *PortfolioService) CurrentSummary() models.PortfolioSummary {
	return s.Summarize(s.reader.HoldingsForCurrentIdentity())
}

// RecordCurrent persists a snapshot of the current portfolio summary for
// the identity the holdings were computed against. Skipped silently when no
// holdings snapshot exists yet or history storage is disabled.
func (s *PortfolioService) RecordCurrent(ctx context.Context) {
	if s.snapshots == nil {
		return
	}
	holdings, owner, ok := s.reader.CachedHoldings()
	if !ok {
		return
	}
	summary := s.Summarize(holdings)
	snapshot := models.PortfolioSnapshot{
		Identity:    owner.Hex(),
		Count:       summary.Count,
		TotalTokens: summary.TotalTokens,
		TotalValue:  summary.TotalValue,
		RecordedAt:  time.Now().UTC(),
	}
	if err := s.snapshots.Create(ctx, &snapshot); err != nil {
		log.Printf("[PortfolioService] Failed to record portfolio snapshot for %s: %v", owner.Hex(), err)
	}
}

// History returns recorded snapshots for an identity within [from, to].
func (s *PortfolioService) History(ctx context.Context, identity string, from, to time.Time) ([]models.PortfolioSnapshot, error) {
	if s.snapshots == nil {
		return []models.PortfolioSnapshot{}, nil
	}
	rows, err := s.snapshots.GetByIdentityAndRange(ctx, identity, from, to)
	if err != nil {
		return nil, err
	}
	out := make([]models.PortfolioSnapshot, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row)
	}
	return out, nil
}
