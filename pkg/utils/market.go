package utils

import (
	"time"
)

// MarketLocation is the timezone for US equity markets.
var MarketLocation *time.Location

func init() {
	var err error
	MarketLocation, err = time.LoadLocation("America/New_York")
	if err != nil {
		MarketLocation = time.FixedZone("EST", -5*60*60)
	}
}

// SessionDate truncates t to its trading-session date in market time.
func SessionDate(t time.Time) time.Time {
	t = t.In(MarketLocation)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, MarketLocation)
}

// SameSession reports whether a and b fall on the same trading-session date.
func SameSession(a, b time.Time) bool {
	return SessionDate(a).Equal(SessionDate(b))
}

// DaysBetween returns the number of whole days between two times.
func DaysBetween(from, to time.Time) int {
	d := int(SessionDate(to).Sub(SessionDate(from)).Hours() / 24)
	if d < 0 {
		return -d
	}
	return d
}
