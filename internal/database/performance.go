package database

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DailyPnl is one day's net settlement result for an account.
type DailyPnl struct {
	Day    time.Time       `json:"day"`
	Net    decimal.Decimal `json:"net"`
	Trades int             `json:"trades"`
}

// PerformanceStats aggregates an account's settled results over a range.
// Everything here derives from settlement entries only; deposits and
// administrative credits live in their own tables and never appear.
type PerformanceStats struct {
	TotalPnl      decimal.Decimal `json:"total_pnl"`
	TotalTrades   int             `json:"total_trades"`
	WinningTrades int             `json:"winning_trades"`
	LosingTrades  int             `json:"losing_trades"`
	AvgROIPct     decimal.Decimal `json:"avg_roi_pct"`
}

// GetPerformanceStats returns settled P&L and trade counts for an account
// within [from, to].
func (db *DB) GetPerformanceStats(ctx context.Context, accountID int, from, to time.Time) (*PerformanceStats, error) {
	query := `
		SELECT
			COALESCE(SUM(e.delta), 0) AS total_pnl,
			COUNT(*) AS total_trades,
			COUNT(*) FILTER (WHERE e.delta > 0) AS winning_trades,
			COUNT(*) FILTER (WHERE e.delta < 0) AS losing_trades,
			COALESCE(AVG(s.roi_percentage), 0) AS avg_roi_pct
		FROM settlement_entries e
		JOIN settlements s ON s.id = e.settlement_id
		WHERE e.account_id = $1
		  AND s.settled_at >= $2 AND s.settled_at <= $3
	`
	var stats PerformanceStats
	err := db.conn.QueryRowContext(ctx, query, accountID, from, to).Scan(
		&stats.TotalPnl, &stats.TotalTrades,
		&stats.WinningTrades, &stats.LosingTrades, &stats.AvgROIPct,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get performance stats: %w", err)
	}
	return &stats, nil
}

// GetDailyPnl returns per-day net settlement deltas for an account, newest
// day first. The streak computation walks this from the top.
func (db *DB) GetDailyPnl(ctx context.Context, accountID int, from, to time.Time) ([]DailyPnl, error) {
	query := `
		SELECT
			date_trunc('day', s.settled_at) AS day,
			SUM(e.delta) AS net,
			COUNT(*) AS trades
		FROM settlement_entries e
		JOIN settlements s ON s.id = e.settlement_id
		WHERE e.account_id = $1
		  AND s.settled_at >= $2 AND s.settled_at <= $3
		GROUP BY day
		ORDER BY day DESC
	`
	rows, err := db.conn.QueryContext(ctx, query, accountID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily pnl: %w", err)
	}
	defer rows.Close()

	var days []DailyPnl
	for rows.Next() {
		var d DailyPnl
		if err := rows.Scan(&d.Day, &d.Net, &d.Trades); err != nil {
			return nil, fmt.Errorf("failed to scan daily pnl: %w", err)
		}
		days = append(days, d)
	}
	return days, rows.Err()
}
