package market

import (
	"fmt"
	"strings"
	"time"
)

var timeframeSeconds = map[string]int{
	"1s":  1,
	"1m":  60,
	"3m":  180,
	"5m":  300,
	"15m": 900,
	"30m": 1800,
	"1h":  3600,
	"2h":  7200,
	"4h":  14400,
	"1d":  86400,
}

// TimeframeDuration returns the bar length for a timeframe label like "1m".
func TimeframeDuration(tf string) (time.Duration, error) {
	sec, ok := timeframeSeconds[strings.ToLower(strings.TrimSpace(tf))]
	if !ok {
		return 0, fmt.Errorf("unknown timeframe %q", tf)
	}
	return time.Duration(sec) * time.Second, nil
}

// ValidTimeframe reports whether tf is a known timeframe label.
func ValidTimeframe(tf string) bool {
	_, err := TimeframeDuration(tf)
	return err == nil
}

// DefaultPollInterval is a third of the bar length, never below one second.
func DefaultPollInterval(tf string) time.Duration {
	d, err := TimeframeDuration(tf)
	if err != nil {
		d = time.Minute
	}
	p := d / 3
	if p < time.Second {
		p = time.Second
	}
	return p.Truncate(time.Second)
}
