package market

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ulikunitz/xz"
)

// CSVBarFeed reads bar rows:
//
//	ts,open,high,low,close[,volume]
//
// where ts is milliseconds since the epoch, RFC3339, or empty. Files ending
// in .xz are decompressed on the fly.
//
// It optionally filters bars to [From, To) if provided. Bars without a
// timestamp always pass the filter. A header row ("ts,..." or "time,...")
// is allowed and empty rows are skipped.
type CSVBarFeed struct {
	f    *os.File
	r    *csv.Reader
	from time.Time
	to   time.Time

	sawFirst bool
}

func NewCSVBarFeed(path string, from, to time.Time) (*CSVBarFeed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	var src io.Reader = f
	if strings.HasSuffix(strings.ToLower(path), ".xz") {
		xr, err := xz.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("xz %s: %w", path, err)
		}
		src = xr
	}

	r := csv.NewReader(src)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	return &CSVBarFeed{f: f, r: r, from: from, to: to}, nil
}

func (f *CSVBarFeed) Close() error {
	if f.f != nil {
		return f.f.Close()
	}
	return nil
}

// Next returns the next bar, or ok=false at EOF.
func (f *CSVBarFeed) Next() (Bar, bool, error) {
	for {
		row, err := f.r.Read()
		if err == io.EOF {
			return Bar{}, false, nil
		}
		if err != nil {
			return Bar{}, false, err
		}
		if len(row) == 0 {
			continue
		}

		if !f.sawFirst {
			f.sawFirst = true
			h := strings.ToLower(strings.TrimSpace(row[0]))
			if h == "ts" || h == "time" || h == "timestamp" {
				continue
			}
		}

		b, ok, err := ParseBarRow(row)
		if err != nil {
			return Bar{}, false, err
		}
		if !ok {
			continue
		}
		if !inRange(b, f.from, f.to) {
			continue
		}
		return b, true, nil
	}
}

// ParseBarRow parses one CSV row into a Bar. Short rows return ok=false.
func ParseBarRow(row []string) (Bar, bool, error) {
	if len(row) < 5 {
		return Bar{}, false, nil
	}

	ts, err := parseTimestamp(strings.TrimSpace(row[0]))
	if err != nil {
		return Bar{}, false, err
	}

	var vals [5]float64
	n := 4
	if len(row) > 5 {
		n = 5
	}
	for i := 0; i < n; i++ {
		s := strings.TrimSpace(row[i+1])
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Bar{}, false, fmt.Errorf("bad value %q in column %d: %w", s, i+1, err)
		}
		vals[i] = v
	}

	return Bar{
		Timestamp: ts,
		Open:      vals[0],
		High:      vals[1],
		Low:       vals[2],
		Close:     vals[3],
		Volume:    vals[4],
	}, true, nil
}

func parseTimestamp(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ms, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return 0, fmt.Errorf("bad time %q: %w", s, err)
	}
	return t.UnixMilli(), nil
}

func inRange(b Bar, from, to time.Time) bool {
	if !b.HasTime() {
		return true
	}
	t := b.Time()
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && !t.Before(to) {
		return false
	}
	return true
}

// LoadBars reads a whole CSV bar file into memory.
func LoadBars(path string, from, to time.Time) ([]Bar, error) {
	feed, err := NewCSVBarFeed(path, from, to)
	if err != nil {
		return nil, err
	}
	defer feed.Close()

	var bars []Bar
	for {
		b, ok, err := feed.Next()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if !ok {
			return bars, nil
		}
		bars = append(bars, b)
	}
}

// WriteBars writes bars in the format NewCSVBarFeed reads.
func WriteBars(w io.Writer, bars []Bar) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"ts", "open", "high", "low", "close", "volume"}); err != nil {
		return err
	}
	for _, b := range bars {
		if err := cw.Write([]string{
			strconv.FormatInt(b.Timestamp, 10),
			ff(b.Open), ff(b.High), ff(b.Low), ff(b.Close), ff(b.Volume),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func ff(x float64) string {
	return strconv.FormatFloat(x, 'f', -1, 64)
}
