package api

import (
	"net/http"
)

// SessionResponse is the session state view returned by the API.
type SessionResponse struct {
	Connected bool   `json:"connected"`
	Identity  string `json:"identity,omitempty"`
	Epoch     uint64 `json:"epoch"`
}

// handleGetSession returns the current session state.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	identity, connected, epoch := s.tracker.Snapshot()

	response := SessionResponse{Connected: connected, Epoch: epoch}
	if connected {
		response.Identity = identity.Hex()
	}
	respondJSON(w, http.StatusOK, response)
}

// handleConnect requests wallet access and establishes a session.
func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	identity, err := s.tracker.Connect(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, SessionResponse{
		Connected: true,
		Identity:  identity.Hex(),
		Epoch:     s.tracker.Epoch(),
	})
}

// handleDisconnect clears the current session.
func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	s.tracker.Disconnect()
	respondJSON(w, http.StatusOK, SessionResponse{Connected: false, Epoch: s.tracker.Epoch()})
}
