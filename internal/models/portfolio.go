package models

import "time"

// PortfolioSummary is derived from the current holding collection, never
// stored as live state.
type PortfolioSummary struct {
	Count       int     `json:"count"`
	TotalTokens int64   `json:"totalTokens"`
	TotalValue  float64 `json:"totalValue"`
}

// PortfolioSnapshot is a summary recorded after a successful holdings sync.
type PortfolioSnapshot struct {
	ID          string    `json:"id" db:"id"`
	Identity    string    `json:"identity" db:"identity"`
	Count       int       `json:"count" db:"property_count"`
	TotalTokens int64     `json:"totalTokens" db:"total_tokens"`
	TotalValue  float64   `json:"totalValue" db:"total_value"`
	RecordedAt  time.Time `json:"recordedAt" db:"recorded_at"`
}
