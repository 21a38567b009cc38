package journal

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/rustyeddy/bartrader/market"
	"github.com/rustyeddy/bartrader/sim"
)

// TradeHeader is the column layout of trade CSV files.
var TradeHeader = []string{
	"run_id", "symbol", "side", "qty", "entry_price", "exit_price", "entry_time", "exit_time",
	"fee", "pnl", "equity", "close_reason", "stop_kind",
}

var eventHeader = []string{"time", "kind", "symbol", "data"}

// CSV appends trades to one file and events, orders and snapshots to an
// optional second file. Headers are written only to new files.
type CSV struct {
	mu     sync.Mutex
	trades *csv.Writer
	events *csv.Writer
	tf, ef *os.File
}

var _ Store = (*CSV)(nil)

func NewCSV(tradesPath, eventsPath string) (*CSV, error) {
	j := &CSV{}
	tf, tw, err := openAppend(tradesPath, TradeHeader)
	if err != nil {
		return nil, err
	}
	j.tf, j.trades = tf, tw

	if eventsPath != "" {
		ef, ew, err := openAppend(eventsPath, eventHeader)
		if err != nil {
			_ = tf.Close()
			return nil, err
		}
		j.ef, j.events = ef, ew
	}
	return j, nil
}

func openAppend(path string, header []string) (*os.File, *csv.Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, err
	}
	w := csv.NewWriter(f)
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, nil, err
	}
	if st.Size() == 0 {
		if err := w.Write(header); err != nil {
			_ = f.Close()
			return nil, nil, err
		}
		w.Flush()
		if err := w.Error(); err != nil {
			_ = f.Close()
			return nil, nil, err
		}
	}
	return f, w, nil
}

// InsertRun only hands out the run ID; CSV files carry no run rows.
func (j *CSV) InsertRun(_ context.Context, r Run) (string, error) {
	ensureRunID(&r)
	return r.ID, nil
}

func (j *CSV) InsertTrades(_ context.Context, runID string, trades []sim.TradeRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, t := range trades {
		if err := j.trades.Write(tradeRow(runID, t)); err != nil {
			return err
		}
	}
	j.trades.Flush()
	return j.trades.Error()
}

func tradeRow(runID string, t sim.TradeRecord) []string {
	return []string{
		runID,
		t.Symbol,
		t.Side.String(),
		f(t.Qty),
		f(t.EntryPrice),
		f(t.ExitPrice),
		market.FormatMillis(t.EntryTime),
		market.FormatMillis(t.ExitTime),
		f(t.Fee),
		f(t.PnL),
		f(t.Equity),
		string(t.CloseReason),
		string(t.StopKind),
	}
}

// WriteTrades writes a header and trades to w as CSV.
func WriteTrades(w io.Writer, runID string, trades []sim.TradeRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(TradeHeader); err != nil {
		return err
	}
	for _, t := range trades {
		if err := cw.Write(tradeRow(runID, t)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func (j *CSV) writeEvent(t time.Time, kind, symbol string, v interface{}) error {
	if j.events == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.events.Write([]string{stamp(t).Format(time.RFC3339), kind, symbol, string(b)}); err != nil {
		return err
	}
	j.events.Flush()
	return j.events.Error()
}

func (j *CSV) LogEvent(_ context.Context, e Event) error {
	return j.writeEvent(e.Time, e.Kind, e.Symbol, e)
}

func (j *CSV) LogOrder(_ context.Context, o Order) error {
	return j.writeEvent(o.Time, "order", o.Symbol, o)
}

func (j *CSV) LogSnapshot(_ context.Context, symbol string, snapshot interface{}) error {
	return j.writeEvent(time.Time{}, "snapshot", symbol, snapshot)
}

func (j *CSV) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.trades.Flush()
	if err := j.trades.Error(); err != nil {
		return err
	}
	if err := j.tf.Close(); err != nil {
		return err
	}
	if j.events != nil {
		j.events.Flush()
		if err := j.events.Error(); err != nil {
			return err
		}
		if err := j.ef.Close(); err != nil {
			return err
		}
	}
	return nil
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
