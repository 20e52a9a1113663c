package generator

import (
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Okay2121/vine-ledger/internal/config"
)

// Token pool for synthesized trades. Names only; there is no market behind
// them.
var tokenNames = []string{
	"BONK", "SAMO", "CORG", "MOON", "WOOF", "RATS", "POPCAT", "ZING", "WIF",
}

var one = decimal.NewFromInt(1)

// syntheticTrade is one planned buy/sell round trip.
type syntheticTrade struct {
	TokenName  string
	EntryPrice decimal.Decimal
	ExitPrice  decimal.Decimal
	TargetROI  decimal.Decimal
	BuyTxHash  string
	SellTxHash string
}

// synthesizeTrade plans a plausible round trip for one account. The ROI
// outcome is a bounded loss with the configured probability, otherwise a
// bounded gain clamped to remainingROI so the day's cumulative realized ROI
// lands on the target instead of past it. Losses are never clamped; they
// only widen the remaining headroom.
func synthesizeTrade(rng *rand.Rand, cfg config.TradingConfig, remainingROI decimal.Decimal) syntheticTrade {
	var roi decimal.Decimal
	if rng.Float64() < cfg.LossProbability {
		roi = uniformDecimal(rng, cfg.LossMinPct, cfg.LossMaxPct).Neg()
	} else {
		roi = uniformDecimal(rng, cfg.GainMinPct, cfg.GainMaxPct)
		if roi.GreaterThan(remainingROI) {
			roi = remainingROI
		}
	}

	// Memecoin price territory: five decimals of SOL down to sub-lamport
	// dust would be unbelievable, so stay within a realistic band.
	entry := uniformDecimal(rng, decimal.RequireFromString("0.0000050"), decimal.RequireFromString("0.0500000")).
		Truncate(9)
	exit := entry.Mul(one.Add(roi.Div(decimal.NewFromInt(100)))).Truncate(9)
	if !exit.IsPositive() {
		exit = entry // degenerate rounding on microscopic prices
	}

	return syntheticTrade{
		TokenName:  tokenNames[rng.Intn(len(tokenNames))],
		EntryPrice: entry,
		ExitPrice:  exit,
		TargetROI:  roi,
		BuyTxHash:  "auto-buy-" + uuid.NewString(),
		SellTxHash: "auto-sell-" + uuid.NewString(),
	}
}

// jitteredInterval picks a uniform duration in [min, max]. A fixed tick
// would make every account's generator fire together.
func jitteredInterval(rng *rand.Rand, min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rng.Int63n(int64(max-min)))
}

func uniformDecimal(rng *rand.Rand, min, max decimal.Decimal) decimal.Decimal {
	span := max.Sub(min)
	return min.Add(span.Mul(decimal.NewFromFloat(rng.Float64()))).Truncate(9)
}
