// Package main provides a diagnostic tool that prints an identity's
// on-ledger holdings without going through the API server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/estate-sync/internal/adapter"
	"github.com/estate-sync/internal/config"
	"github.com/estate-sync/internal/models"
)

func main() {
	var (
		address = flag.String("address", "", "Identity address to check (hex)")
		timeout = flag.Duration("timeout", 60*time.Second, "Overall timeout")
	)
	flag.Parse()

	if *address == "" || !common.IsHexAddress(*address) {
		fmt.Fprintln(os.Stderr, "Usage: holdings_check -address 0x...")
		os.Exit(1)
	}
	identity := common.HexToAddress(*address)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	provider, err := adapter.NewRPCProvider(cfg.Chain.RPCPrimary, cfg.Chain.RPCSecondary)
	if err != nil {
		log.Fatalf("Failed to create RPC provider: %v", err)
	}

	ledger, err := adapter.NewEthereumLedger(ctx, &adapter.EthereumLedgerConfig{
		Provider:          provider,
		ContractAddress:   common.HexToAddress(cfg.Contract.Address),
		ChainID:           big.NewInt(cfg.Chain.ChainID),
		RequestsPerSecond: cfg.Chain.RPCRequestsPerSecond,
	})
	if err != nil {
		log.Fatalf("Failed to connect to ledger: %v", err)
	}

	count, err := ledger.PropertyCount(ctx)
	if err != nil {
		log.Fatalf("Failed to fetch property count: %v", err)
	}
	fmt.Printf("Ledger reports %d property slots\n\n", count)

	var (
		totalTokens int64
		totalValue  float64
		holdings    int
	)
	for i := int64(0); i < count; i++ {
		property, err := ledger.PropertyDetail(ctx, i)
		if err != nil {
			log.Printf("Slot %d: fetch failed: %v", i, err)
			continue
		}
		if !property.Valid() {
			continue
		}

		balance, err := ledger.TokenBalance(ctx, identity, property.PropertyID)
		if err != nil {
			log.Printf("Property %d (%s): balance fetch failed: %v", property.PropertyID, property.Name, err)
			continue
		}
		if balance <= 0 {
			continue
		}

		h := models.NewHolding(*property, balance)
		holdings++
		totalTokens += h.UserTokens
		totalValue += h.InvestmentValue
		fmt.Printf("Property %d  %-30s  tokens=%d  value=%.6f ETH\n",
			property.PropertyID, property.Name, h.UserTokens, h.InvestmentValue)
	}

	fmt.Printf("\n%s holds %d properties, %d tokens, %.6f ETH total\n",
		identity.Hex(), holdings, totalTokens, totalValue)
}
