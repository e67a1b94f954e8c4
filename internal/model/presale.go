package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Presale statuses.
const (
	PresaleActive    = "active"
	PresaleCompleted = "completed"
	PresaleCancelled = "cancelled"
)

// Presale is a fundraising window for a token. At most one exists per token.
type Presale struct {
	ID             string          `json:"id"`
	TokenID        string          `json:"token_id"`
	PresaleAddress string          `json:"presale_address"`
	MintAddress    string          `json:"mint_address,omitempty"`
	TotalRaised    decimal.Decimal `json:"total_raised"`
	TargetAmount   decimal.Decimal `json:"target_amount"`
	StartTime      time.Time       `json:"start_time"`
	EndTime        time.Time       `json:"end_time"`
	Status         string          `json:"status"`
	Version        int64           `json:"version"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Open reports whether the presale accepts contributions at now.
func (p Presale) Open(now time.Time) bool {
	return p.Status == PresaleActive && !now.Before(p.StartTime) && now.Before(p.EndTime)
}

// PresaleContribution records one wallet's contribution to a presale.
type PresaleContribution struct {
	ID         string          `json:"id"`
	PresaleID  string          `json:"presale_id"`
	UserWallet string          `json:"user_wallet"`
	Amount     decimal.Decimal `json:"amount"`
	Timestamp  time.Time       `json:"timestamp"`
}
