package settlement

import (
	"github.com/shopspring/decimal"

	"github.com/Okay2121/vine-ledger/internal/models"
)

// lamportPlaces is the precision deltas are truncated to. Balances are SOL
// with nine fractional digits, so anything finer cannot be represented.
const lamportPlaces = 9

// hundred converts between percentage and fractional ROI.
var hundred = decimal.NewFromInt(100)

// Share is one account's computed slice of a distribution, before it is
// applied.
type Share struct {
	AccountID int
	Delta     decimal.Decimal
}

// Distribute computes each eligible account's delta for a realized ROI.
//
// The per-account delta uses the closed form
//
//	delta = balance * roiPct/100 * allocationFactor
//
// rather than computing a nominal pool and multiplying by weight. The two
// are algebraically equal; the closed form truncates once per account
// instead of compounding pool-level and weight-level rounding. Each delta is
// truncated toward zero at nine decimal places, and the residual against the
// nominal pool is discarded, not redistributed. That loss is accepted: the
// distribution is proportional, not exact.
//
// The returned pool capital is the sum of eligible balances at computation
// time. An empty account list yields zero pool and no shares, which is a
// valid settlement outcome.
func Distribute(accounts []*models.Account, roiPct, allocationFactor decimal.Decimal) (decimal.Decimal, []Share) {
	poolCapital := decimal.Zero
	shares := make([]Share, 0, len(accounts))

	for _, a := range accounts {
		poolCapital = poolCapital.Add(a.Balance)

		delta := a.Balance.
			Mul(roiPct).
			Div(hundred).
			Mul(allocationFactor).
			Truncate(lamportPlaces)

		shares = append(shares, Share{AccountID: a.ID, Delta: delta})
	}

	return poolCapital, shares
}

// NominalPool returns the total amount a distribution would move before
// per-account truncation: poolCapital * |roiPct|/100 * allocationFactor.
// The sum of applied |delta| never exceeds it.
func NominalPool(poolCapital, roiPct, allocationFactor decimal.Decimal) decimal.Decimal {
	return poolCapital.Mul(roiPct.Abs()).Div(hundred).Mul(allocationFactor)
}
