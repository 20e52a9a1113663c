package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade event action constants
const (
	ActionBuy  = "BUY"
	ActionSell = "SELL"
)

// TradeEvent is the typed inbound event from the operator layer: a reported
// buy or sell of a token at an externally supplied price. The same shape
// arrives over HTTP and Kafka, and the generator synthesizes it internally.
type TradeEvent struct {
	Action    string          `json:"action"`
	TokenName string          `json:"token_name"`
	Price     decimal.Decimal `json:"price"`
	TxHash    string          `json:"tx_hash"`
	Timestamp *time.Time      `json:"timestamp,omitempty"`
	AccountID *int            `json:"account_id,omitempty"`
}

// SettlementEvent is the outbound per-account notification published after
// a settlement commits. Delivery to users is the messaging layer's concern.
type SettlementEvent struct {
	EventType        string          `json:"event_type"`
	AccountID        int             `json:"account_id"`
	TokenName        string          `json:"token_name"`
	ROIPercentage    decimal.Decimal `json:"roi_percentage"`
	Delta            decimal.Decimal `json:"delta"`
	ResultingBalance decimal.Decimal `json:"resulting_balance"`
	Timestamp        time.Time       `json:"timestamp"`
}
