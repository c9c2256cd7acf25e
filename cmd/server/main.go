// Package main provides the API server entry point for the estate sync service.
package main

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/estate-sync/internal/adapter"
	"github.com/estate-sync/internal/api"
	"github.com/estate-sync/internal/config"
	"github.com/estate-sync/internal/logging"
	"github.com/estate-sync/internal/service"
	"github.com/estate-sync/internal/session"
	"github.com/estate-sync/internal/storage"
	"github.com/estate-sync/internal/wallet"
	"github.com/estate-sync/internal/worker"
)

func main() {
	fmt.Println("Estate Sync API Server")
	log.Println("Server starting...")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logging
	logLevel := logging.ParseLogLevel(cfg.Logging.Level)
	logFormat := logging.ParseLogFormat(cfg.Logging.Format)
	logging.InitGlobalLogger(logLevel, logFormat)

	logger := logging.GetGlobalLogger()
	logger.WithFields(map[string]interface{}{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
	}).Info("Structured logging initialized")

	// Wallet provider. A missing keystore is not fatal: the read surface
	// stays available and writes fail with NO_PROVIDER semantics.
	var provider wallet.Provider
	keystoreProvider, err := wallet.NewKeystoreProvider(&cfg.Wallet)
	if err != nil {
		logger.WithError(err).Warn("No wallet capability, mutating actions will be unavailable")
	} else {
		provider = keystoreProvider
	}

	// Session tracker
	tracker := session.NewTracker(provider)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tracker.Start(ctx)
	defer tracker.Stop()

	// Ledger adapter with failover
	rpcProvider, err := adapter.NewRPCProvider(cfg.Chain.RPCPrimary, cfg.Chain.RPCSecondary)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create RPC provider")
	}

	var signer adapter.TxSigner
	if keystoreProvider != nil {
		signer = keystoreProvider
	}

	ledger, err := adapter.NewEthereumLedger(ctx, &adapter.EthereumLedgerConfig{
		Provider:          rpcProvider,
		ContractAddress:   common.HexToAddress(cfg.Contract.Address),
		ChainID:           big.NewInt(cfg.Chain.ChainID),
		Signer:            signer,
		RequestsPerSecond: cfg.Chain.RPCRequestsPerSecond,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to ledger")
	}

	// Storage is optional: without Postgres the journal and snapshot
	// history are disabled, without Redis property lookups skip the cache.
	var (
		journal   *storage.TransactionRepository
		snapshots *storage.SnapshotRepository
	)
	if postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres); err != nil {
		logger.WithError(err).Warn("Postgres unavailable, transaction journal disabled")
	} else {
		defer postgres.Close()
		journal = storage.NewTransactionRepository(postgres)
		snapshots = storage.NewSnapshotRepository(postgres)
		logger.Info("Postgres connection established")
	}

	var cache *storage.RedisCache
	if redisCache, err := storage.NewRedisCache(&cfg.Database.Redis, cfg.Cache.TTL); err != nil {
		logger.WithError(err).Warn("Redis unavailable, property cache disabled")
	} else {
		defer redisCache.Close()
		cache = redisCache
		logger.Info("Redis connection established")
	}

	// Initialize services
	logger.Info("Initializing services...")

	propertyService := service.NewPropertyService(ledger, tracker, cache)
	portfolioService := service.NewPortfolioService(propertyService, snapshots)
	transactionService := service.NewTransactionService(ledger, tracker, propertyService, journal)
	orderService := service.NewOrderService(ledger, tracker, propertyService, transactionService)

	logger.Info("Services initialized")

	// Background refresh worker
	refreshWorker, err := worker.NewRefreshWorker(&worker.RefreshWorkerConfig{
		Reader:    propertyService,
		Orders:    orderService,
		Portfolio: portfolioService,
		Tracker:   tracker,
		Interval:  cfg.Sync.RefreshInterval,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to create refresh worker")
	}
	if err := refreshWorker.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Failed to start refresh worker")
	}

	// Create server configuration
	serverConfig := &api.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    15 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		RequestsPerSec:  cfg.RateLimit.RequestsPerSecond,
		Burst:           cfg.RateLimit.Burst,
	}

	server := api.NewServer(serverConfig, tracker, propertyService, portfolioService, transactionService, orderService, refreshWorker)

	// Start server in a goroutine
	go func() {
		if err := server.Start(); err != nil {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	logger.WithFields(map[string]interface{}{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Server started successfully")

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
	defer shutdownCancel()

	if err := refreshWorker.Stop(shutdownCtx); err != nil {
		logger.WithError(err).Warn("Refresh worker stop failed")
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Fatal("Server forced to shutdown")
	}

	logger.Info("Server exited")
}
