// Package market holds the price-bar model shared by every other package:
// bars, sides, signals, timeframes and bar feeds.
package market

import "time"

// Bar is one OHLCV candle. Timestamp is the bar open time in milliseconds
// since the Unix epoch (UTC). A zero Timestamp means the source row carried
// no time; such bars never trigger a day rollover and are never blocked by
// time-of-day filters.
type Bar struct {
	Timestamp int64   `json:"ts"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// HasTime reports whether the bar carries a timestamp.
func (b Bar) HasTime() bool { return b.Timestamp != 0 }

// Time returns the bar time in UTC. Zero if the bar has no timestamp.
func (b Bar) Time() time.Time {
	if !b.HasTime() {
		return time.Time{}
	}
	return time.UnixMilli(b.Timestamp).UTC()
}

// Day returns the UTC calendar day of the bar as YYYY-MM-DD.
func (b Bar) Day() (string, bool) {
	if !b.HasTime() {
		return "", false
	}
	return b.Time().Format(DayLayout), true
}

// DayLayout is the layout used for trading-day keys.
const DayLayout = "2006-01-02"

// FormatMillis renders a millisecond timestamp as RFC3339 UTC, or "" when
// the timestamp is missing.
func FormatMillis(ms int64) string {
	if ms == 0 {
		return ""
	}
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}
