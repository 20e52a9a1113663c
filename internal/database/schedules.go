package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Okay2121/vine-ledger/internal/models"
)

// GetSchedule retrieves the generation schedule for an account, or nil when
// none exists yet.
func (db *DB) GetSchedule(ctx context.Context, accountID int) (*models.GenerationSchedule, error) {
	query := `
		SELECT account_id, day_start, cumulative_roi, day_target, next_fire_at, active, updated_at
		FROM generation_schedules WHERE account_id = $1
	`
	var s models.GenerationSchedule
	err := db.conn.QueryRowContext(ctx, query, accountID).Scan(
		&s.AccountID, &s.DayStart, &s.CumulativeROI, &s.DayTarget,
		&s.NextFireAt, &s.Active, &s.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get schedule: %w", err)
	}
	return &s, nil
}

// UpsertSchedule creates or replaces an account's schedule. Used when a new
// trading day starts: day_start moves forward and cumulative ROI resets.
func (db *DB) UpsertSchedule(ctx context.Context, s *models.GenerationSchedule) error {
	query := `
		INSERT INTO generation_schedules
			(account_id, day_start, cumulative_roi, day_target, next_fire_at, active, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (account_id) DO UPDATE SET
			day_start = EXCLUDED.day_start,
			cumulative_roi = EXCLUDED.cumulative_roi,
			day_target = EXCLUDED.day_target,
			next_fire_at = EXCLUDED.next_fire_at,
			active = EXCLUDED.active,
			updated_at = EXCLUDED.updated_at
	`
	now := time.Now().UTC()
	_, err := db.conn.ExecContext(ctx, query,
		s.AccountID, s.DayStart, s.CumulativeROI, s.DayTarget,
		s.NextFireAt, s.Active, now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert schedule: %w", mapError(err))
	}
	s.UpdatedAt = now
	return nil
}

// AdvanceSchedule accumulates one trade's realized ROI and moves the next
// fire time forward. The ROI add is relative so delayed loop iterations
// never clobber each other.
func (db *DB) AdvanceSchedule(ctx context.Context, accountID int, realizedROI decimal.Decimal, nextFireAt time.Time) error {
	result, err := db.conn.ExecContext(ctx, `
		UPDATE generation_schedules
		SET cumulative_roi = cumulative_roi + $2,
		    next_fire_at = $3,
		    updated_at = $4
		WHERE account_id = $1
	`, accountID, realizedROI, nextFireAt, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to advance schedule: %w", mapError(err))
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("schedule not found for account %d", accountID)
	}
	return nil
}

// DeactivateSchedule stops generation for an account before its next firing.
func (db *DB) DeactivateSchedule(ctx context.Context, accountID int) error {
	_, err := db.conn.ExecContext(ctx, `
		UPDATE generation_schedules SET active = false, updated_at = $2
		WHERE account_id = $1
	`, accountID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to deactivate schedule: %w", err)
	}
	return nil
}
