package performance

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Okay2121/vine-ledger/internal/database"
)

// Summary is the read model for one account over a date range. All numbers
// derive from settlement entries, so deposits and administrative credits
// never inflate them: capital added is not capital earned.
type Summary struct {
	AccountID     int                 `json:"account_id"`
	From          time.Time           `json:"from"`
	To            time.Time           `json:"to"`
	RealizedPnl   decimal.Decimal     `json:"realized_pnl"`
	TotalTrades   int                 `json:"total_trades"`
	WinningTrades int                 `json:"winning_trades"`
	LosingTrades  int                 `json:"losing_trades"`
	AvgROIPct     decimal.Decimal     `json:"avg_roi_pct"`
	StreakDays    int                 `json:"streak_days"`
	Daily         []database.DailyPnl `json:"daily"`
}

// Aggregator is a read-only consumer of settled ledger data.
type Aggregator struct {
	db *database.DB
}

// NewAggregator creates an aggregator
func NewAggregator(db *database.DB) *Aggregator {
	return &Aggregator{db: db}
}

// Summarize aggregates an account's settled results over [from, to].
func (a *Aggregator) Summarize(ctx context.Context, accountID int, from, to time.Time) (*Summary, error) {
	stats, err := a.db.GetPerformanceStats(ctx, accountID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize account %d: %w", accountID, err)
	}

	daily, err := a.db.GetDailyPnl(ctx, accountID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load daily pnl for account %d: %w", accountID, err)
	}

	return &Summary{
		AccountID:     accountID,
		From:          from,
		To:            to,
		RealizedPnl:   stats.TotalPnl,
		TotalTrades:   stats.TotalTrades,
		WinningTrades: stats.WinningTrades,
		LosingTrades:  stats.LosingTrades,
		AvgROIPct:     stats.AvgROIPct,
		StreakDays:    Streak(daily),
		Daily:         daily,
	}, nil
}

// Streak counts trailing days with strictly positive net settled P&L.
// Input must be ordered newest day first. Any non-positive day breaks the
// streak; days with no trades simply do not appear and are skipped over, so
// an idle weekend does not end a run.
func Streak(daily []database.DailyPnl) int {
	streak := 0
	for _, day := range daily {
		if !day.Net.IsPositive() {
			break
		}
		streak++
	}
	return streak
}
