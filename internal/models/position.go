package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position status constants
const (
	PositionStatusOpen   = "open"
	PositionStatusClosed = "closed"
)

// Position represents a single open-to-close holding of a token.
// AccountID is nil for pool-level positions reported by an operator and
// settled across every eligible account; generator positions are scoped to
// the one account that produced them.
type Position struct {
	ID            int              `json:"id"`
	AccountID     *int             `json:"account_id,omitempty"`
	TokenName     string           `json:"token_name"`
	EntryPrice    decimal.Decimal  `json:"entry_price"`
	ExitPrice     *decimal.Decimal `json:"exit_price,omitempty"`
	BuyTxHash     string           `json:"buy_tx_hash"`
	SellTxHash    *string          `json:"sell_tx_hash,omitempty"`
	BuyTimestamp  time.Time        `json:"buy_timestamp"`
	SellTimestamp *time.Time       `json:"sell_timestamp,omitempty"`
	Status        string           `json:"status"`
	ROIPercentage *decimal.Decimal `json:"roi_percentage,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
}

// IsClosed reports whether the position has been matched with a sell.
func (p *Position) IsClosed() bool {
	return p.Status == PositionStatusClosed
}
