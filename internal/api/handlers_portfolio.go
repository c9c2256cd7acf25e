package api

import (
	"net/http"
	"time"

	"github.com/estate-sync/internal/models"
)

// HoldingsResponse wraps the holdings listing with its aggregate summary.
type HoldingsResponse struct {
	Holdings []models.Holding        `json:"holdings"`
	Summary  models.PortfolioSummary `json:"summary"`
	Degraded bool                    `json:"degraded,omitempty"`
	Error    string                  `json:"error,omitempty"`
}

// handleListHoldings returns the connected identity's holdings.
func (s *Server) handleListHoldings(w http.ResponseWriter, r *http.Request) {
	holdings, err := s.properties.ListHoldings(r.Context())
	if err != nil {
		if holdings == nil {
			respondServiceError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, HoldingsResponse{
			Holdings: holdings,
			Summary:  summarize(holdings),
			Degraded: true,
			Error:    err.Error(),
		})
		return
	}

	respondJSON(w, http.StatusOK, HoldingsResponse{Holdings: holdings, Summary: summarize(holdings)})
}

// handleGetPortfolio returns the aggregate portfolio view for the current
// holdings snapshot.
func (s *Server) handleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.portfolio.CurrentSummary())
}

// handlePortfolioHistory returns recorded portfolio snapshots for the
// connected identity within an optional time range.
func (s *Server) handlePortfolioHistory(w http.ResponseWriter, r *http.Request) {
	identity, connected, _ := s.tracker.Snapshot()
	if !connected {
		respondError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "No active session", nil)
		return
	}

	from := time.Time{}
	to := time.Now().UTC()
	if raw := r.URL.Query().Get("from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid from parameter, expected RFC3339", nil)
			return
		}
		from = parsed
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid to parameter, expected RFC3339", nil)
			return
		}
		to = parsed
	}

	snapshots, err := s.portfolio.History(r.Context(), identity.Hex(), from, to)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"snapshots": snapshots,
		"count":     len(snapshots),
	})
}

func summarize(holdings []models.Holding) models.PortfolioSummary {
	summary := models.PortfolioSummary{Count: len(holdings)}
	for _, h := range holdings {
		summary.TotalTokens += h.UserTokens
		summary.TotalValue += h.InvestmentValue
	}
	return summary
}
