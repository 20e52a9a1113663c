package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// GenerationSchedule tracks the autonomous generator's per-account state:
// how much realized ROI has accumulated in the current day against the
// daily target, and when the next trade may fire.
type GenerationSchedule struct {
	AccountID     int             `json:"account_id"`
	DayStart      time.Time       `json:"day_start"`
	CumulativeROI decimal.Decimal `json:"cumulative_roi"`
	DayTarget     decimal.Decimal `json:"day_target"`
	NextFireAt    time.Time       `json:"next_fire_at"`
	Active        bool            `json:"active"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// TargetReached reports whether the day's realized ROI has hit the cap.
func (s *GenerationSchedule) TargetReached() bool {
	return s.CumulativeROI.GreaterThanOrEqual(s.DayTarget)
}

// RemainingROI returns the ROI headroom left before the daily cap,
// never negative.
func (s *GenerationSchedule) RemainingROI() decimal.Decimal {
	remaining := s.DayTarget.Sub(s.CumulativeROI)
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}
