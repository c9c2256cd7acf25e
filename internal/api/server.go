// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/estate-sync/internal/models"
	"github.com/estate-sync/internal/service"
	"github.com/estate-sync/internal/session"
	"github.com/estate-sync/internal/worker"
)

// Service interfaces for dependency injection and testing

// PropertyServiceInterface defines the interface for property read operations
type PropertyServiceInterface interface {
	ListProperties(ctx context.Context) ([]models.Property, error)
	GetProperty(ctx context.Context, id int64) (models.Property, error)
	ListHoldings(ctx context.Context) ([]models.Holding, error)
	Refresh(ctx context.Context) error
	LastSyncError() error
}

// PortfolioServiceInterface defines the interface for portfolio aggregation
type PortfolioServiceInterface interface {
	CurrentSummary() models.PortfolioSummary
	History(ctx context.Context, identity string, from, to time.Time) ([]models.PortfolioSnapshot, error)
}

// TransactionServiceInterface defines the interface for mutating ledger actions
type TransactionServiceInterface interface {
	Execute(ctx context.Context, req service.TxRequest) (*models.TransactionRecord, error)
	History(ctx context.Context, identity string, limit int) ([]*models.TransactionRecord, error)
}

// OrderServiceInterface defines the interface for marketplace order operations
type OrderServiceInterface interface {
	ListActiveOrders(ctx context.Context) ([]models.SellOrder, error)
	ListMyOrders(ctx context.Context) ([]models.SellOrder, error)
	CreateOrder(ctx context.Context, propertyID, amount int64, pricePerToken *big.Int) (*models.TransactionRecord, error)
	CancelOrder(ctx context.Context, orderID int64) (*models.TransactionRecord, error)
	FillOrder(ctx context.Context, orderID int64) (*models.TransactionRecord, error)
}

// WorkerStatusInterface exposes the sync worker's health view
type WorkerStatusInterface interface {
	GetStatus() *worker.RefreshWorkerStatus
}

// Server represents the HTTP API server.
type Server struct {
	router       *mux.Router
	httpServer   *http.Server
	tracker      *session.Tracker
	properties   PropertyServiceInterface
	portfolio    PortfolioServiceInterface
	transactions TransactionServiceInterface
	orders       OrderServiceInterface
	workerStatus WorkerStatusInterface
	config       *ServerConfig
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	RequestsPerSec  int
	Burst           int
}

// NewServer creates a new API server instance.
func NewServer(
	config *ServerConfig,
	tracker *session.Tracker,
	properties PropertyServiceInterface,
	portfolio PortfolioServiceInterface,
	transactions TransactionServiceInterface,
	orders OrderServiceInterface,
	workerStatus WorkerStatusInterface,
) *Server {
	s := &Server{
		router:       mux.NewRouter(),
		tracker:      tracker,
		properties:   properties,
		portfolio:    portfolio,
		transactions: transactions,
		orders:       orders,
		workerStatus: workerStatus,
		config:       config,
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	rateLimiter := NewRateLimiter(s.config.RequestsPerSec, s.config.Burst)

	// Set up middleware (order matters!)
	s.router.Use(RequestIDMiddleware)
	s.router.Use(LoggingMiddleware)
	s.router.Use(RecoveryMiddleware)
	s.router.Use(CORSMiddleware)
	s.router.Use(RateLimitMiddleware(rateLimiter))

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	// Health check endpoint
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	// API routes
	api := s.router.PathPrefix("/api").Subrouter()

	// Session endpoints
	api.HandleFunc("/session", s.handleGetSession).Methods("GET")
	api.HandleFunc("/session/connect", s.handleConnect).Methods("POST")
	api.HandleFunc("/session/disconnect", s.handleDisconnect).Methods("POST")

	// Property endpoints
	api.HandleFunc("/properties", s.handleListProperties).Methods("GET")
	api.HandleFunc("/properties/{id}", s.handleGetProperty).Methods("GET")
	api.HandleFunc("/properties/{id}/purchase", s.handlePurchase).Methods("POST")
	api.HandleFunc("/properties/{id}/sell", s.handleSell).Methods("POST")

	// Portfolio endpoints
	api.HandleFunc("/holdings", s.handleListHoldings).Methods("GET")
	api.HandleFunc("/portfolio", s.handleGetPortfolio).Methods("GET")
	api.HandleFunc("/portfolio/history", s.handlePortfolioHistory).Methods("GET")

	// Marketplace endpoints
	api.HandleFunc("/orders", s.handleListOrders).Methods("GET")
	api.HandleFunc("/orders", s.handleCreateOrder).Methods("POST")
	api.HandleFunc("/orders/mine", s.handleListMyOrders).Methods("GET")
	api.HandleFunc("/orders/{id}", s.handleCancelOrder).Methods("DELETE")
	api.HandleFunc("/orders/{id}/fill", s.handleFillOrder).Methods("POST")

	// Transaction journal and manual sync
	api.HandleFunc("/transactions", s.handleListTransactions).Methods("GET")
	api.HandleFunc("/sync", s.handleSync).Methods("POST")
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":  "healthy",
		"service": "estate-sync",
	}
	if s.properties != nil {
		if err := s.properties.LastSyncError(); err != nil {
			response["status"] = "degraded"
			response["lastSyncError"] = err.Error()
		}
	}
	if s.workerStatus != nil {
		response["worker"] = s.workerStatus.GetStatus()
	}
	respondJSON(w, http.StatusOK, response)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	log.Printf("Starting API server on %s", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down API server...")
	return s.httpServer.Shutdown(ctx)
}
