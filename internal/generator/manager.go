package generator

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Okay2121/vine-ledger/internal/config"
	"github.com/Okay2121/vine-ledger/internal/database"
	"github.com/Okay2121/vine-ledger/internal/ledger"
	"github.com/Okay2121/vine-ledger/internal/models"
	"github.com/Okay2121/vine-ledger/internal/observability"
)

// scheduleRetry is how long a loop sleeps after a transient schedule error
// before trying again.
const scheduleRetry = time.Minute

// Manager runs one autonomous trading loop per eligible account. Each loop
// synthesizes buy/sell round trips on a jittered schedule, feeds them
// through the same ingestion engine as operator events, and stops for the
// day once the account's cumulative realized ROI reaches the daily target.
type Manager struct {
	db      *database.DB
	engine  *ledger.Engine
	cfg     config.TradingConfig
	metrics *observability.Metrics
	logger  zerolog.Logger

	mu      sync.Mutex
	cancels map[int]context.CancelFunc
	wg      sync.WaitGroup
}

// NewManager creates a generator manager
func NewManager(db *database.DB, engine *ledger.Engine, cfg config.TradingConfig, metrics *observability.Metrics) *Manager {
	return &Manager{
		db:      db,
		engine:  engine,
		cfg:     cfg,
		metrics: metrics,
		logger:  observability.NewLogger("generator"),
		cancels: make(map[int]context.CancelFunc),
	}
}

// Start launches a loop for every active account. New accounts can be added
// later with StartAccount.
func (m *Manager) Start(ctx context.Context) error {
	ids, err := m.db.ListActiveAccountIDs(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		m.StartAccount(ctx, id)
	}
	m.logger.Info().Int("accounts", len(ids)).Msg("generator loops started")
	return nil
}

// StartAccount launches the loop for one account. Starting an account that
// already has a loop is a no-op.
func (m *Manager) StartAccount(ctx context.Context, accountID int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, running := m.cancels[accountID]; running {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	m.cancels[accountID] = cancel
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.runAccount(loopCtx, accountID)
	}()
}

// StopAccount cancels one account's loop. Cancellation takes effect before
// the next firing; an in-flight settlement transaction is never interrupted.
func (m *Manager) StopAccount(accountID int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cancel, ok := m.cancels[accountID]; ok {
		cancel()
		delete(m.cancels, accountID)
	}
}

// Stop cancels every loop and waits for them to drain.
func (m *Manager) Stop() {
	m.mu.Lock()
	for id, cancel := range m.cancels {
		cancel()
		delete(m.cancels, id)
	}
	m.mu.Unlock()
	m.wg.Wait()
}

func (m *Manager) runAccount(ctx context.Context, accountID int) {
	logger := m.logger.With().Int("account_id", accountID).Logger()
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(accountID)))

	for {
		sched, err := m.ensureSchedule(ctx, accountID, rng)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error().Err(err).Msg("schedule load failed")
			if !sleepCtx(ctx, scheduleRetry) {
				return
			}
			continue
		}
		if !sched.Active {
			logger.Info().Msg("schedule inactive, loop exiting")
			return
		}

		// Missed intervals are absorbed: a delayed loop fires once now,
		// it never replays a backlog.
		wait := time.Until(sched.NextFireAt)
		if wait > 0 {
			if !sleepCtx(ctx, wait) {
				return
			}
		}

		if err := m.fire(ctx, accountID, rng, logger); err != nil {
			if ctx.Err() != nil {
				return
			}
			// One failed event never halts the schedule, but a failed fire
			// leaves next_fire_at in the past. Sleep before retrying so a
			// persistent failure cannot spin out fresh positions.
			logger.Error().Err(err).Msg("trade generation failed")
			m.metrics.GeneratorFires.WithLabelValues("failed").Inc()
			if !sleepCtx(ctx, scheduleRetry) {
				return
			}
		}
	}
}

func (m *Manager) fire(ctx context.Context, accountID int, rng *rand.Rand, logger zerolog.Logger) error {
	sched, err := m.ensureSchedule(ctx, accountID, rng)
	if err != nil {
		return err
	}

	if sched.TargetReached() {
		// Daily circuit breaker: park until the day rolls over.
		resume := sched.DayStart.Add(24 * time.Hour)
		logger.Info().
			Str("cumulative_roi", sched.CumulativeROI.String()).
			Time("resume_at", resume).
			Msg("daily target reached, pausing generation")
		m.metrics.GeneratorFires.WithLabelValues("capped").Inc()
		sched.NextFireAt = resume.Add(jitteredInterval(rng, 0, m.cfg.IntervalMin))
		return m.db.UpsertSchedule(ctx, sched)
	}

	trade := synthesizeTrade(rng, m.cfg, sched.RemainingROI())
	realized, err := m.executeTrade(ctx, accountID, trade)
	if err != nil {
		if errors.Is(err, models.ErrNoOpenPosition) || errors.Is(err, models.ErrDuplicateReference) {
			// Another writer beat us to the synthetic position; skip the
			// interval rather than fight over it.
			m.metrics.GeneratorFires.WithLabelValues("skipped").Inc()
			logger.Warn().Err(err).Msg("synthetic round trip lost a race, skipping interval")
			realized = decimal.Zero
		} else {
			return err
		}
	} else {
		m.metrics.GeneratorFires.WithLabelValues("traded").Inc()
		logger.Info().
			Str("token", trade.TokenName).
			Str("roi_pct", realized.StringFixed(4)).
			Msg("generated trade settled")
	}

	next := time.Now().UTC().Add(jitteredInterval(rng, m.cfg.IntervalMin, m.cfg.IntervalMax))
	return m.db.AdvanceSchedule(ctx, accountID, realized, next)
}

// executeTrade runs the synthetic round trip through the shared pipeline:
// open, immediately close the same token, settle for this account only. The
// single-account scope means it never contends with other accounts' FIFO
// queues for real tokens beyond losing the occasional race on a shared
// token name.
func (m *Manager) executeTrade(ctx context.Context, accountID int, trade syntheticTrade) (decimal.Decimal, error) {
	buy := models.TradeEvent{
		Action:    models.ActionBuy,
		TokenName: trade.TokenName,
		Price:     trade.EntryPrice,
		TxHash:    trade.BuyTxHash,
		AccountID: &accountID,
	}
	if _, err := m.engine.ProcessEvent(ctx, buy, "generator"); err != nil {
		return decimal.Zero, err
	}

	sell := models.TradeEvent{
		Action:    models.ActionSell,
		TokenName: trade.TokenName,
		Price:     trade.ExitPrice,
		TxHash:    trade.SellTxHash,
		AccountID: &accountID,
	}
	result, err := m.engine.ProcessEvent(ctx, sell, "generator")
	if err != nil {
		return decimal.Zero, err
	}

	if result.Position.ROIPercentage != nil {
		return *result.Position.ROIPercentage, nil
	}
	return decimal.Zero, nil
}

// ensureSchedule loads the account's schedule, creating or resetting it when
// missing or when the UTC day has rolled over.
func (m *Manager) ensureSchedule(ctx context.Context, accountID int, rng *rand.Rand) (*models.GenerationSchedule, error) {
	sched, err := m.db.GetSchedule(ctx, accountID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	dayStart := now.Truncate(24 * time.Hour)

	if sched == nil || sched.DayStart.Before(dayStart) {
		fresh := &models.GenerationSchedule{
			AccountID:  accountID,
			DayStart:   dayStart,
			DayTarget:  m.cfg.DailyROITarget,
			NextFireAt: now.Add(jitteredInterval(rng, m.cfg.IntervalMin, m.cfg.IntervalMax)),
			Active:     true,
		}
		if sched != nil {
			fresh.Active = sched.Active
		}
		if err := m.db.UpsertSchedule(ctx, fresh); err != nil {
			return nil, err
		}
		return fresh, nil
	}

	return sched, nil
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
