package sim

// Diagnostics counts what happened to signals over a run.
type Diagnostics struct {
	Signals        int            `json:"signals"`
	Entries        int            `json:"entries"`
	BlockedRisk    int            `json:"blocked_risk"`
	BlockedTime    int            `json:"blocked_time"`
	StopCloses     int            `json:"stop_closes"`
	ExitCloses     int            `json:"exit_closes"`
	TPHits         int            `json:"tp_hits"`
	SLHits         int            `json:"sl_hits"`
	OrderFailures  int            `json:"order_failures,omitempty"`
	BlockedReasons map[string]int `json:"blocked_reasons"`
	BlockedByDay   map[string]int `json:"blocked_by_day"`
}

func newDiagnostics() Diagnostics {
	return Diagnostics{
		BlockedReasons: map[string]int{},
		BlockedByDay:   map[string]int{},
	}
}

func (d Diagnostics) clone() Diagnostics {
	out := d
	out.BlockedReasons = make(map[string]int, len(d.BlockedReasons))
	for k, v := range d.BlockedReasons {
		out.BlockedReasons[k] = v
	}
	out.BlockedByDay = make(map[string]int, len(d.BlockedByDay))
	for k, v := range d.BlockedByDay {
		out.BlockedByDay[k] = v
	}
	return out
}

// Result is the aggregate outcome of a run.
type Result struct {
	Symbol         string        `json:"symbol,omitempty"`
	InitialCapital float64       `json:"initial_capital"`
	FinalEquity    float64       `json:"final_equity"`
	Trades         int           `json:"trades"`
	Wins           int           `json:"wins"`
	Losses         int           `json:"losses"`
	PnL            float64       `json:"pnl"`
	Diagnostics    Diagnostics   `json:"debug"`
	TradeLog       []TradeRecord `json:"trades_log"`
}

// WinRate is wins as a fraction of trades, 0 with no trades.
func (r Result) WinRate() float64 {
	if r.Trades == 0 {
		return 0
	}
	return float64(r.Wins) / float64(r.Trades)
}
