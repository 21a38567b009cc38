package backtest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rustyeddy/bartrader/market"
)

// DataFile finds <dir>/<symbol>.csv or <dir>/<symbol>.csv.xz. Symbols
// like "BTC/USDT:USDT" are looked up as "BTCUSDT".
func DataFile(dir, symbol string) (string, error) {
	name := fileSymbol(symbol)
	for _, ext := range []string{".csv", ".csv.xz"} {
		p := filepath.Join(dir, name+ext)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("backtest: no data file for %s in %s", symbol, dir)
}

func fileSymbol(s string) string {
	if i := strings.Index(s, ":"); i >= 0 {
		s = s[:i]
	}
	return strings.ReplaceAll(s, "/", "")
}

// LoadSymbols loads the bars of each symbol from dir, keyed by symbol.
func LoadSymbols(dir string, symbols []string, from, to time.Time) (map[string][]market.Bar, error) {
	out := make(map[string][]market.Bar, len(symbols))
	for _, sym := range symbols {
		path, err := DataFile(dir, sym)
		if err != nil {
			return nil, err
		}
		bars, err := market.LoadBars(path, from, to)
		if err != nil {
			return nil, fmt.Errorf("backtest: load %s: %w", sym, err)
		}
		out[sym] = bars
	}
	return out, nil
}
