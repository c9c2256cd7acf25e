package api

import (
	"math/big"
	"net/http"

	"github.com/estate-sync/internal/models"
)

// OrderListResponse wraps a marketplace order listing.
type OrderListResponse struct {
	Orders   []models.SellOrder `json:"orders"`
	Count    int                `json:"count"`
	Degraded bool               `json:"degraded,omitempty"`
	Error    string             `json:"error,omitempty"`
}

// handleListOrders returns the global active order book.
func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.orders.ListActiveOrders(r.Context())
	if err != nil {
		if orders == nil {
			respondServiceError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, OrderListResponse{
			Orders:   orders,
			Count:    len(orders),
			Degraded: true,
			Error:    err.Error(),
		})
		return
	}
	respondJSON(w, http.StatusOK, OrderListResponse{Orders: orders, Count: len(orders)})
}

// handleListMyOrders returns the connected identity's active orders.
func (s *Server) handleListMyOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.orders.ListMyOrders(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, OrderListResponse{Orders: orders, Count: len(orders)})
}

// CreateOrderRequest is the body for listing tokens on the marketplace.
// PricePerToken is a decimal wei string to avoid float precision loss.
type CreateOrderRequest struct {
	PropertyID    int64  `json:"propertyId"`
	Amount        int64  `json:"amount"`
	PricePerToken string `json:"pricePerToken"`
}

// handleCreateOrder lists tokens for resale.
func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	price, ok := new(big.Int).SetString(req.PricePerToken, 10)
	if !ok {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid pricePerToken, expected decimal wei string", nil)
		return
	}

	record, err := s.orders.CreateOrder(r.Context(), req.PropertyID, req.Amount, price)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, record)
}

// handleCancelOrder withdraws a standing sell order.
func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDVar(w, r, "id")
	if !ok {
		return
	}

	record, err := s.orders.CancelOrder(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, record)
}

// handleFillOrder buys the full token amount of a standing sell order.
func (s *Server) handleFillOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDVar(w, r, "id")
	if !ok {
		return
	}

	record, err := s.orders.FillOrder(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, record)
}
