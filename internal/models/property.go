// Package models defines the data model synchronized from the property ledger.
package models

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Property represents one tokenized property as recorded on the ledger.
// A Property is immutable per snapshot: a fresh fetch replaces it, nothing
// mutates it in place.
type Property struct {
	PropertyID  int64  `json:"propertyId"`
	Name        string `json:"name"`
	Location    string `json:"location"`
	Description string `json:"description"`
	ImageURI    string `json:"imageUri"`
	// TotalCost is the full property cost in the ledger's smallest unit (wei)
	TotalCost *big.Int `json:"totalCost"`
	// TotalTokens is the total token supply issued against the property
	TotalTokens int64 `json:"totalTokens"`
	// PricePerToken is the fixed-point per-token price in wei
	PricePerToken *big.Int `json:"pricePerToken"`
	IsActive      bool     `json:"isActive"`
}

// Valid reports whether the ledger slot holds a real property. The contract
// returns placeholder slots with an empty name for deleted entries.
func (p *Property) Valid() bool {
	return p != nil && p.Name != ""
}

// Holding represents a property for which an identity owns at least one token.
// UserTokens is always > 0; zero-token properties are excluded at fetch time,
// never retained as zero-valued entries.
type Holding struct {
	Property
	UserTokens int64 `json:"userTokens"`
	// InvestmentValue is the display-grade value in ether units. Callers that
	// need exact settlement amounts use UserTokens and PricePerToken instead.
	InvestmentValue float64 `json:"investmentValue"`
}

// NewHolding derives a Holding from a property snapshot and a token balance.
func NewHolding(p Property, tokens int64) Holding {
	return Holding{
		Property:        p,
		UserTokens:      tokens,
		InvestmentValue: WeiToEther(new(big.Int).Mul(p.PricePerToken, big.NewInt(tokens))),
	}
}

// SellOrder represents a standing marketplace offer to transfer tokens of a
// property at a stated price.
type SellOrder struct {
	OrderID     int64          `json:"orderId"`
	PropertyID  int64          `json:"propertyId"`
	Seller      common.Address `json:"seller"`
	TokenAmount int64          `json:"tokenAmount"`
	// PricePerToken is the asking price per token in wei
	PricePerToken *big.Int `json:"pricePerToken"`
	IsActive      bool     `json:"isActive"`
	// Property carries the joined property snapshot when the join succeeded
	Property *Property `json:"property,omitempty"`
}

// TotalCost returns the full cost of filling the order, in wei.
func (o *SellOrder) TotalCost() *big.Int {
	return new(big.Int).Mul(o.PricePerToken, big.NewInt(o.TokenAmount))
}
