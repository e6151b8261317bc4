// Package indicators provides momentum indicator calculations.
package indicators

import (
	"alpaca-trader/internal/errors"
	"alpaca-trader/internal/models"
)

// Mode selects which bar field the RSI deltas are computed over.
type Mode string

const (
	ModeClose Mode = "close" // close-to-close deltas
	ModeOpen  Mode = "open"  // open-to-open deltas
)

func field(b models.Bar, mode Mode) float64 {
	if mode == ModeOpen {
		return b.Open
	}
	return b.Close
}

// RSI computes the Relative Strength Index over the trailing period, splicing
// currentPrice in as the newest value so the indicator tracks the live
// synthesized price rather than the last completed bar.
//
// The result is always within [0, 100]. A window with no losses yields
// exactly 100; that is a defined edge case, not an error.
func RSI(bars []models.Bar, period int, mode Mode, currentPrice float64) (float64, error) {
	if period <= 0 {
		return 0, errors.ErrInvalidPeriod
	}
	if len(bars) < period+1 {
		return 0, errors.ErrInsufficientBars
	}

	var gain, loss float64
	n := len(bars)

	for i := 0; i < period; i++ {
		first := field(bars[n-2-i], mode)

		var second float64
		if i == 0 {
			second = currentPrice
		} else {
			second = field(bars[n-1-i], mode)
		}

		if d := second - first; d > 0 {
			gain += d
		} else {
			loss += -d
		}
	}

	averageGain := gain / float64(period)
	averageLoss := loss / float64(period)

	if averageLoss == 0 {
		return 100, nil
	}

	rs := averageGain / averageLoss
	return 100 - 100/(1+rs), nil
}
