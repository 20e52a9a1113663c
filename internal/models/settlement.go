package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Settlement records one distribution of a closed position's ROI across the
// eligible account pool. At most one settlement exists per position,
// enforced by a unique index on position_id.
type Settlement struct {
	ID            int               `json:"id"`
	PositionID    int               `json:"position_id"`
	ROIPercentage decimal.Decimal   `json:"roi_percentage"`
	PoolCapital   decimal.Decimal   `json:"pool_capital"`
	SettledAt     time.Time         `json:"settled_at"`
	Entries       []SettlementEntry `json:"entries"`
}

// SettlementEntry is one account's share of a settlement, kept for audit
// and for the outbound notification stream.
type SettlementEntry struct {
	ID               int             `json:"id"`
	SettlementID     int             `json:"settlement_id"`
	AccountID        int             `json:"account_id"`
	Delta            decimal.Decimal `json:"delta"`
	ResultingBalance decimal.Decimal `json:"resulting_balance"`
}
