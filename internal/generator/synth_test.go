package generator

import (
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/Okay2121/vine-ledger/internal/config"
)

func testTradingConfig() config.TradingConfig {
	return config.TradingConfig{
		AllocationFactor: decimal.RequireFromString("0.2"),
		DailyROITarget:   decimal.RequireFromString("5"),
		LossProbability:  0.35,
		GainMinPct:       decimal.RequireFromString("0.5"),
		GainMaxPct:       decimal.RequireFromString("2.5"),
		LossMinPct:       decimal.RequireFromString("0.2"),
		LossMaxPct:       decimal.RequireFromString("1.2"),
		IntervalMin:      15 * time.Minute,
		IntervalMax:      60 * time.Minute,
	}
}

func TestSynthesizeTrade(t *testing.T) {
	cfg := testTradingConfig()
	rng := rand.New(rand.NewSource(42))
	remaining := decimal.RequireFromString("5")

	t.Run("outcomes stay within configured bounds", func(t *testing.T) {
		for i := 0; i < 1000; i++ {
			trade := synthesizeTrade(rng, cfg, remaining)

			if trade.TargetROI.IsNegative() {
				loss := trade.TargetROI.Neg()
				assert.True(t, loss.GreaterThanOrEqual(cfg.LossMinPct),
					"loss %s below min", loss)
				assert.True(t, loss.LessThanOrEqual(cfg.LossMaxPct),
					"loss %s above max", loss)
			} else {
				assert.True(t, trade.TargetROI.GreaterThanOrEqual(cfg.GainMinPct),
					"gain %s below min", trade.TargetROI)
				assert.True(t, trade.TargetROI.LessThanOrEqual(cfg.GainMaxPct),
					"gain %s above max", trade.TargetROI)
			}
		}
	})

	t.Run("gains clamp to remaining daily headroom", func(t *testing.T) {
		headroom := decimal.RequireFromString("0.7")
		for i := 0; i < 1000; i++ {
			trade := synthesizeTrade(rng, cfg, headroom)
			if trade.TargetROI.IsPositive() {
				assert.True(t, trade.TargetROI.LessThanOrEqual(headroom),
					"gain %s exceeds headroom %s", trade.TargetROI, headroom)
			}
		}
	})

	t.Run("prices are positive with nine-place precision", func(t *testing.T) {
		for i := 0; i < 200; i++ {
			trade := synthesizeTrade(rng, cfg, remaining)
			assert.True(t, trade.EntryPrice.IsPositive())
			assert.True(t, trade.ExitPrice.IsPositive())
			assert.LessOrEqual(t, -trade.EntryPrice.Exponent(), int32(9))
			assert.LessOrEqual(t, -trade.ExitPrice.Exponent(), int32(9))
		}
	})

	t.Run("references are unique across trades", func(t *testing.T) {
		seen := make(map[string]bool)
		for i := 0; i < 200; i++ {
			trade := synthesizeTrade(rng, cfg, remaining)
			assert.False(t, seen[trade.BuyTxHash])
			assert.False(t, seen[trade.SellTxHash])
			seen[trade.BuyTxHash] = true
			seen[trade.SellTxHash] = true
		}
	})

	t.Run("token names come from the known pool", func(t *testing.T) {
		pool := make(map[string]bool, len(tokenNames))
		for _, name := range tokenNames {
			pool[name] = true
		}
		for i := 0; i < 200; i++ {
			trade := synthesizeTrade(rng, cfg, remaining)
			assert.True(t, pool[trade.TokenName], "unknown token %s", trade.TokenName)
		}
	})
}

func TestJitteredInterval(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	t.Run("stays within bounds", func(t *testing.T) {
		min, max := 15*time.Minute, 60*time.Minute
		for i := 0; i < 1000; i++ {
			d := jitteredInterval(rng, min, max)
			assert.GreaterOrEqual(t, d, min)
			assert.LessOrEqual(t, d, max)
		}
	})

	t.Run("degenerate range returns min", func(t *testing.T) {
		assert.Equal(t, time.Minute, jitteredInterval(rng, time.Minute, time.Minute))
		assert.Equal(t, time.Minute, jitteredInterval(rng, time.Minute, time.Second))
	})
}
