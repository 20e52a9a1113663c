package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is the narrow view of a ledger participant the settlement engine
// needs: identity, current capital, and eligibility. Account records are
// owned by the user-management subsystem; this service only adjusts balances
// by relative deltas inside settlement transactions.
type Account struct {
	ID         int             `json:"id"`
	ExternalID string          `json:"external_id"`
	Balance    decimal.Decimal `json:"balance"`
	Active     bool            `json:"active"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Deposit is a non-trading balance change detected by the wallet monitor.
// Kept distinct from settlement entries so performance numbers never count
// deposited capital as earned capital.
type Deposit struct {
	ID         int             `json:"id"`
	AccountID  int             `json:"account_id"`
	Amount     decimal.Decimal `json:"amount"`
	TxHash     string          `json:"tx_hash"`
	DetectedAt time.Time       `json:"detected_at"`
}
