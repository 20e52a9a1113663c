package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Okay2121/vine-ledger/internal/database"
	"github.com/Okay2121/vine-ledger/internal/models"
	"github.com/Okay2121/vine-ledger/internal/observability"
)

// Notifier publishes per-account settlement results to the messaging layer.
// Publishing happens after commit; delivery failures do not unwind the
// settlement.
type Notifier interface {
	PublishSettlement(ctx context.Context, event models.SettlementEvent) error
}

// Engine converts a closed position's ROI into per-account balance deltas
// inside a single transaction.
type Engine struct {
	db               *database.DB
	notifier         Notifier
	allocationFactor decimal.Decimal
	metrics          *observability.Metrics
	logger           zerolog.Logger
}

// NewEngine creates a settlement engine
func NewEngine(db *database.DB, notifier Notifier, allocationFactor decimal.Decimal, metrics *observability.Metrics) *Engine {
	return &Engine{
		db:               db,
		notifier:         notifier,
		allocationFactor: allocationFactor,
		metrics:          metrics,
		logger:           observability.NewLogger("settlement"),
	}
}

// Settle distributes a closed position's realized ROI across the eligible
// account pool. The settlement insert, every balance adjustment, and every
// audit entry commit together or not at all. A non-nil onlyAccount restricts
// the pool to one account (the generator's single-account round trips).
//
// Settling an already settled position returns
// models.ErrSettlementAlreadyRecorded with no mutation: the unique index on
// settlements.position_id rejects the insert before any balance moves.
func (e *Engine) Settle(ctx context.Context, position *models.Position, onlyAccount *int) (*models.Settlement, error) {
	if !position.IsClosed() || position.ROIPercentage == nil {
		return nil, fmt.Errorf("position %d is not closed", position.ID)
	}
	roiPct := *position.ROIPercentage

	tx, err := e.db.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	accounts, err := database.ListEligibleAccountsTx(ctx, tx, onlyAccount)
	if err != nil {
		return nil, err
	}

	poolCapital, shares := Distribute(accounts, roiPct, e.allocationFactor)

	record := &models.Settlement{
		PositionID:    position.ID,
		ROIPercentage: roiPct,
		PoolCapital:   poolCapital,
	}
	if err := database.InsertSettlementTx(ctx, tx, record); err != nil {
		return nil, err
	}

	// Zero pool is recorded for audit with an empty distribution list.
	for _, share := range shares {
		newBalance, err := database.AdjustBalanceTx(ctx, tx, share.AccountID, share.Delta)
		if err != nil {
			return nil, err
		}

		entry := models.SettlementEntry{
			SettlementID:     record.ID,
			AccountID:        share.AccountID,
			Delta:            share.Delta,
			ResultingBalance: newBalance,
		}
		if err := database.InsertSettlementEntryTx(ctx, tx, &entry); err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrPartialDistribution, err)
		}
		record.Entries = append(record.Entries, entry)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit settlement: %w", err)
	}

	e.metrics.Settlements.Inc()
	e.metrics.SettlementAccts.Observe(float64(len(record.Entries)))
	e.logger.Info().
		Int("position_id", position.ID).
		Str("token", position.TokenName).
		Str("roi_pct", roiPct.StringFixed(4)).
		Int("accounts", len(record.Entries)).
		Str("pool_capital", poolCapital.String()).
		Msg("settlement committed")

	e.notify(ctx, position, record)

	return record, nil
}

// sweepBatch bounds one recovery pass.
const sweepBatch = 100

// SweepUnsettled re-drives settlement for closed positions that have no
// settlement record, typically stranded by a crash between the close and its
// settlement. Each re-drive goes through Settle with the position's own
// account scope, so the at-most-once guarantee holds even against a
// concurrent sweep.
func (e *Engine) SweepUnsettled(ctx context.Context) (int, error) {
	positions, err := e.db.ListUnsettledClosed(ctx, sweepBatch)
	if err != nil {
		return 0, err
	}

	settled := 0
	for _, position := range positions {
		if _, err := e.Settle(ctx, position, position.AccountID); err != nil {
			if errors.Is(err, models.ErrSettlementAlreadyRecorded) {
				continue
			}
			return settled, fmt.Errorf("re-driving settlement for position %d: %w", position.ID, err)
		}
		settled++
	}
	return settled, nil
}

func (e *Engine) notify(ctx context.Context, position *models.Position, record *models.Settlement) {
	if e.notifier == nil {
		return
	}
	for _, entry := range record.Entries {
		event := models.SettlementEvent{
			EventType:        "SETTLEMENT_APPLIED",
			AccountID:        entry.AccountID,
			TokenName:        position.TokenName,
			ROIPercentage:    record.ROIPercentage,
			Delta:            entry.Delta,
			ResultingBalance: entry.ResultingBalance,
			Timestamp:        time.Now().UTC(),
		}
		if err := e.notifier.PublishSettlement(ctx, event); err != nil {
			e.logger.Warn().Err(err).
				Int("account_id", entry.AccountID).
				Int("settlement_id", record.ID).
				Msg("settlement notification failed")
		}
	}
}
