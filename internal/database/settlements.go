package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Okay2121/vine-ledger/internal/models"
)

// InsertSettlementTx writes the settlement header. The unique index on
// position_id is the at-most-once gate: the second settlement attempt for a
// position fails here as models.ErrSettlementAlreadyRecorded before any
// balance has moved.
func InsertSettlementTx(ctx context.Context, tx *sql.Tx, s *models.Settlement) error {
	now := time.Now().UTC()
	err := tx.QueryRowContext(ctx, `
		INSERT INTO settlements (position_id, roi_percentage, pool_capital, settled_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, s.PositionID, s.ROIPercentage, s.PoolCapital, now).Scan(&s.ID)
	if err != nil {
		if mapped := mapError(err); mapped != err {
			return mapped
		}
		return fmt.Errorf("failed to insert settlement: %w", err)
	}
	s.SettledAt = now
	return nil
}

// InsertSettlementEntryTx writes one account's audit entry for a settlement.
func InsertSettlementEntryTx(ctx context.Context, tx *sql.Tx, e *models.SettlementEntry) error {
	err := tx.QueryRowContext(ctx, `
		INSERT INTO settlement_entries (settlement_id, account_id, delta, resulting_balance)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, e.SettlementID, e.AccountID, e.Delta, e.ResultingBalance).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("failed to insert settlement entry: %w", mapError(err))
	}
	return nil
}

// GetSettlementByPosition retrieves the settlement for a position with its
// entries, or nil when the position has not been settled.
func (db *DB) GetSettlementByPosition(ctx context.Context, positionID int) (*models.Settlement, error) {
	var s models.Settlement
	err := db.conn.QueryRowContext(ctx, `
		SELECT id, position_id, roi_percentage, pool_capital, settled_at
		FROM settlements WHERE position_id = $1
	`, positionID).Scan(&s.ID, &s.PositionID, &s.ROIPercentage, &s.PoolCapital, &s.SettledAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settlement: %w", err)
	}

	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, settlement_id, account_id, delta, resulting_balance
		FROM settlement_entries
		WHERE settlement_id = $1
		ORDER BY account_id
	`, s.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query settlement entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e models.SettlementEntry
		if err := rows.Scan(&e.ID, &e.SettlementID, &e.AccountID, &e.Delta, &e.ResultingBalance); err != nil {
			return nil, fmt.Errorf("failed to scan settlement entry: %w", err)
		}
		s.Entries = append(s.Entries, e)
	}
	return &s, rows.Err()
}

// CountSettlements returns the number of settlement records, used by health
// reporting and tests.
func (db *DB) CountSettlements(ctx context.Context) (int, error) {
	var count int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM settlements`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count settlements: %w", err)
	}
	return count, nil
}

// SumEntryDeltas returns the sum of absolute deltas for one settlement.
func (db *DB) SumEntryDeltas(ctx context.Context, settlementID int) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := db.conn.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(ABS(delta)), 0)
		FROM settlement_entries WHERE settlement_id = $1
	`, settlementID).Scan(&sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum entry deltas: %w", err)
	}
	return sum, nil
}
