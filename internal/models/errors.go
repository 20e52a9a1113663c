package models

import "errors"

// Typed outcomes for ledger and settlement operations. Callers branch with
// errors.Is; only ErrStorageContention is retryable.
var (
	// ErrDuplicateReference means the external transaction hash was already
	// used to open or close a position. The operation performed no mutation.
	ErrDuplicateReference = errors.New("duplicate external reference")

	// ErrNoOpenPosition means a sell arrived with no open position to match
	// for that token.
	ErrNoOpenPosition = errors.New("no open position for token")

	// ErrSellBeforeBuy means a backdated sell carried a timestamp earlier
	// than the buy it matched. The position stays open.
	ErrSellBeforeBuy = errors.New("sell timestamp precedes matched buy")

	// ErrSettlementAlreadyRecorded means the position has already been
	// settled; the existing record stands.
	ErrSettlementAlreadyRecorded = errors.New("settlement already recorded for position")

	// ErrPartialDistribution means a balance adjustment failed mid
	// settlement. The enclosing transaction must roll back; it is never a
	// reportable success.
	ErrPartialDistribution = errors.New("partial distribution failure")

	// ErrStorageContention means the store reported row-level contention
	// (serialization failure or deadlock). Safe to retry with backoff.
	ErrStorageContention = errors.New("storage contention")
)
