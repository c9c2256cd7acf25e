package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/estate-sync/internal/models"
	"github.com/estate-sync/internal/service"
	"github.com/estate-sync/internal/types"
)

// PropertyListResponse wraps a property listing. Degraded is set when the
// listing is a retained snapshot served after a failed refresh.
type PropertyListResponse struct {
	Properties []models.Property `json:"properties"`
	Count      int               `json:"count"`
	Degraded   bool              `json:"degraded,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// handleListProperties returns the full property listing.
func (s *Server) handleListProperties(w http.ResponseWriter, r *http.Request) {
	properties, err := s.properties.ListProperties(r.Context())
	if err != nil {
		// A retained snapshot still serves the listing; only a failure with
		// nothing to fall back on is an error response.
		if properties == nil {
			respondServiceError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, PropertyListResponse{
			Properties: properties,
			Count:      len(properties),
			Degraded:   true,
			Error:      err.Error(),
		})
		return
	}

	respondJSON(w, http.StatusOK, PropertyListResponse{Properties: properties, Count: len(properties)})
}

// handleGetProperty returns a single property by id.
func (s *Server) handleGetProperty(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDVar(w, r, "id")
	if !ok {
		return
	}

	property, err := s.properties.GetProperty(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, property)
}

// PurchaseRequest is the body for a direct token purchase.
type PurchaseRequest struct {
	Amount int64 `json:"amount"`
}

// handlePurchase buys property tokens directly from the ledger.
func (s *Server) handlePurchase(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDVar(w, r, "id")
	if !ok {
		return
	}

	var req PurchaseRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	record, err := s.transactions.Execute(r.Context(), service.TxRequest{
		Action:     types.ActionPurchase,
		PropertyID: id,
		Amount:     req.Amount,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, record)
}

// SellRequest is the body for returning tokens to the ledger.
type SellRequest struct {
	Amount int64 `json:"amount"`
}

// handleSell returns property tokens to the ledger.
func (s *Server) handleSell(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDVar(w, r, "id")
	if !ok {
		return
	}

	var req SellRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	record, err := s.transactions.Execute(r.Context(), service.TxRequest{
		Action:     types.ActionSell,
		PropertyID: id,
		Amount:     req.Amount,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, record)
}

// handleSync triggers an immediate full refresh.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if err := s.properties.Refresh(r.Context()); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "synced"})
}

// parseIDVar extracts a numeric path variable, writing a 400 on failure.
func parseIDVar(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := mux.Vars(r)[name]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 0 {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid "+name+" parameter", map[string]interface{}{name: raw})
		return 0, false
	}
	return id, true
}
