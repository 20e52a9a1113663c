package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/Okay2121/vine-ledger/internal/database"
	"github.com/Okay2121/vine-ledger/internal/models"
	"github.com/Okay2121/vine-ledger/internal/observability"
	"github.com/Okay2121/vine-ledger/internal/settlement"
)

const (
	// ingestTimeout bounds one event end to end; ingestion surfaces an
	// error rather than blocking on a wedged store.
	ingestTimeout = 30 * time.Second

	maxContentionRetries = 5
)

// Result is the outcome of one accepted trade event.
type Result struct {
	Position   *models.Position   `json:"position"`
	Settlement *models.Settlement `json:"settlement,omitempty"`
}

// Engine runs the ingestion pipeline: validate, deduplicate, mutate the
// position ledger, and hand closed positions to settlement. External events
// and generated events go through the same path.
type Engine struct {
	db      *database.DB
	settler *settlement.Engine
	guard   *Guard
	metrics *observability.Metrics
	logger  zerolog.Logger
}

// NewEngine creates an ingestion engine
func NewEngine(db *database.DB, settler *settlement.Engine, guard *Guard, metrics *observability.Metrics) *Engine {
	return &Engine{
		db:      db,
		settler: settler,
		guard:   guard,
		metrics: metrics,
		logger:  observability.NewLogger("ledger"),
	}
}

// ProcessEvent ingests one trade event from the given source ("operator",
// "kafka", "generator"). Failures come back as the typed outcomes in
// internal/models; only storage contention is retried, with backoff, and
// never duplicates or unmatched sells.
//
// The event's account scopes a SELL end to end: no account means it claims
// pool-level positions and settles across the full eligible pool, an account
// means it claims only that account's positions and settles that account
// alone. The queues never cross.
func (e *Engine) ProcessEvent(ctx context.Context, event models.TradeEvent, source string) (*Result, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, ingestTimeout)
	defer cancel()

	event, err := normalizeEvent(event)
	if err != nil {
		e.metrics.EventsRejected.WithLabelValues("invalid").Inc()
		return nil, err
	}

	if e.guard.Seen(ctx, event.TxHash) {
		e.metrics.DuplicateRefs.WithLabelValues("cache").Inc()
		return nil, models.ErrDuplicateReference
	}

	var result *Result
	switch event.Action {
	case models.ActionBuy:
		result, err = e.processBuy(ctx, event)
	case models.ActionSell:
		result, err = e.processSell(ctx, event)
	}
	if err != nil {
		switch {
		case errors.Is(err, models.ErrDuplicateReference):
			e.metrics.DuplicateRefs.WithLabelValues("db").Inc()
		case errors.Is(err, models.ErrNoOpenPosition):
			e.metrics.EventsRejected.WithLabelValues("no_open_position").Inc()
		case errors.Is(err, models.ErrSellBeforeBuy):
			e.metrics.EventsRejected.WithLabelValues("invalid").Inc()
		default:
			e.metrics.EventsRejected.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	e.guard.Remember(ctx, event.TxHash)
	e.metrics.EventsAccepted.WithLabelValues(event.Action, source).Inc()
	e.metrics.EventDuration.WithLabelValues(event.Action).Observe(time.Since(start).Seconds())

	return result, nil
}

func (e *Engine) processBuy(ctx context.Context, event models.TradeEvent) (*Result, error) {
	position := &models.Position{
		AccountID:  event.AccountID,
		TokenName:  event.TokenName,
		EntryPrice: event.Price,
		BuyTxHash:  event.TxHash,
	}
	if event.Timestamp != nil {
		position.BuyTimestamp = *event.Timestamp
	}

	err := e.withContentionRetry(ctx, func() error {
		return e.db.OpenPosition(ctx, position)
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info().
		Str("token", position.TokenName).
		Str("entry_price", position.EntryPrice.String()).
		Str("buy_tx", position.BuyTxHash).
		Msg("position opened")

	return &Result{Position: position}, nil
}

func (e *Engine) processSell(ctx context.Context, event models.TradeEvent) (*Result, error) {
	var sellTimestamp time.Time
	if event.Timestamp != nil {
		sellTimestamp = *event.Timestamp
	}

	var position *models.Position
	err := e.withContentionRetry(ctx, func() error {
		var err error
		position, err = e.db.CloseOldestOpen(ctx, event.TokenName, event.Price, event.TxHash, sellTimestamp, event.AccountID)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info().
		Int("position_id", position.ID).
		Str("token", position.TokenName).
		Str("exit_price", event.Price.String()).
		Str("roi_pct", position.ROIPercentage.StringFixed(4)).
		Msg("position closed")

	var record *models.Settlement
	err = e.withContentionRetry(ctx, func() error {
		var err error
		record, err = e.settler.Settle(ctx, position, event.AccountID)
		return err
	})
	if err != nil {
		// The position stays closed; settlement can be re-driven later,
		// still at most once.
		return nil, fmt.Errorf("position %d closed but settlement failed: %w", position.ID, err)
	}

	return &Result{Position: position, Settlement: record}, nil
}

// withContentionRetry retries fn with exponential backoff while it reports
// storage contention. Business outcomes pass through unretried.
func (e *Engine) withContentionRetry(ctx context.Context, fn func() error) error {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxContentionRetries),
		ctx,
	)
	return backoff.Retry(func() error {
		err := fn()
		if err == nil {
			return nil
		}
		if errors.Is(err, models.ErrStorageContention) {
			e.logger.Debug().Err(err).Msg("retrying on storage contention")
			return err
		}
		return backoff.Permanent(err)
	}, policy)
}

// normalizeEvent validates the inbound event and canonicalizes its token
// symbol. Operators routinely vary case, pad whitespace, and paste full
// explorer URLs instead of bare transaction hashes.
func normalizeEvent(event models.TradeEvent) (models.TradeEvent, error) {
	event.Action = strings.ToUpper(strings.TrimSpace(event.Action))
	if event.Action != models.ActionBuy && event.Action != models.ActionSell {
		return event, fmt.Errorf("invalid action %q", event.Action)
	}

	event.TokenName = NormalizeToken(event.TokenName)
	if event.TokenName == "" {
		return event, fmt.Errorf("token name is required")
	}

	if !event.Price.IsPositive() {
		return event, fmt.Errorf("price must be positive, got %s", event.Price)
	}

	event.TxHash = NormalizeTxHash(event.TxHash)
	if event.TxHash == "" {
		return event, fmt.Errorf("tx hash is required")
	}

	return event, nil
}

// NormalizeToken canonicalizes a token symbol: trimmed, upper-cased, no
// leading $.
func NormalizeToken(token string) string {
	return strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(token), "$"))
}

// NormalizeTxHash reduces a pasted explorer link to the bare hash.
func NormalizeTxHash(txHash string) string {
	txHash = strings.TrimSpace(txHash)
	if i := strings.LastIndex(txHash, "/"); i >= 0 {
		txHash = txHash[i+1:]
	}
	return txHash
}
