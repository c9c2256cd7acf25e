package api

import (
	"net/http"
	"strconv"
)

// handleListTransactions returns the connected identity's journal entries,
// newest first.
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	identity, connected, _ := s.tracker.Snapshot()
	if !connected {
		respondError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "No active session", nil)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid limit parameter", nil)
			return
		}
		limit = parsed
	}

	records, err := s.transactions.History(r.Context(), identity.Hex(), limit)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": records,
		"count":        len(records),
	})
}
