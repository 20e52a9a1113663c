package ledger

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Okay2121/vine-ledger/internal/observability"
)

const seenKeyPrefix = "vineledger:seen:"

// Guard is the duplicate-reference fast path. Redis holds recently processed
// external references with a TTL so obvious duplicates are rejected without
// touching Postgres. It is a cache, not the authority: the unique indexes on
// positions.buy_tx_hash and positions.sell_tx_hash decide, and a miss here
// (expiry, eviction, redis outage) just means the DB gets to say no instead.
type Guard struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewGuard creates a guard. A nil client disables the fast path entirely;
// every check falls through to the database.
func NewGuard(client *redis.Client, ttl time.Duration) *Guard {
	return &Guard{
		client: client,
		ttl:    ttl,
		logger: observability.NewLogger("idempotency"),
	}
}

// Seen reports whether the reference was recently processed. Errors are
// treated as a miss; a degraded cache must never block ingestion.
func (g *Guard) Seen(ctx context.Context, externalRef string) bool {
	if g.client == nil {
		return false
	}
	n, err := g.client.Exists(ctx, seenKeyPrefix+externalRef).Result()
	if err != nil {
		g.logger.Debug().Err(err).Msg("seen-set lookup failed, deferring to db")
		return false
	}
	return n > 0
}

// Remember marks a reference as processed after the ledger write committed.
// Marking only after commit keeps a failed insert retryable.
func (g *Guard) Remember(ctx context.Context, externalRef string) {
	if g.client == nil {
		return
	}
	if err := g.client.Set(ctx, seenKeyPrefix+externalRef, 1, g.ttl).Err(); err != nil {
		g.logger.Debug().Err(err).Msg("seen-set write failed")
	}
}
