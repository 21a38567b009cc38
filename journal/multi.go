package journal

import (
	"context"
	"errors"

	"github.com/rustyeddy/bartrader/sim"
)

// Nop discards everything.
type Nop struct{}

var _ Store = Nop{}

func (Nop) InsertRun(_ context.Context, r Run) (string, error) {
	ensureRunID(&r)
	return r.ID, nil
}
func (Nop) InsertTrades(context.Context, string, []sim.TradeRecord) error { return nil }
func (Nop) LogEvent(context.Context, Event) error { return nil }
func (Nop) LogOrder(context.Context, Order) error { return nil }
func (Nop) LogSnapshot(context.Context, string, interface{}) error { return nil }
func (Nop) Close() error { return nil }

// Multi fans every call out to all stores and joins their errors. The run
// ID is assigned once so every store records the same one.
type Multi []Store

var _ Store = Multi(nil)

func (m Multi) InsertRun(ctx context.Context, r Run) (string, error) {
	ensureRunID(&r)
	var errs []error
	for _, s := range m {
		if _, err := s.InsertRun(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return r.ID, errors.Join(errs...)
}

func (m Multi) InsertTrades(ctx context.Context, runID string, trades []sim.TradeRecord) error {
	return m.each(func(s Store) error { return s.InsertTrades(ctx, runID, trades) })
}

func (m Multi) LogEvent(ctx context.Context, e Event) error {
	e.Time = stamp(e.Time)
	return m.each(func(s Store) error { return s.LogEvent(ctx, e) })
}

func (m Multi) LogOrder(ctx context.Context, o Order) error {
	o.Time = stamp(o.Time)
	return m.each(func(s Store) error { return s.LogOrder(ctx, o) })
}

func (m Multi) LogSnapshot(ctx context.Context, symbol string, snapshot interface{}) error {
	return m.each(func(s Store) error { return s.LogSnapshot(ctx, symbol, snapshot) })
}

func (m Multi) Close() error {
	return m.each(func(s Store) error { return s.Close() })
}

func (m Multi) each(fn func(Store) error) error {
	var errs []error
	for _, s := range m {
		if err := fn(s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Reader returns the first store that can be queried.
func (m Multi) Reader() (Reader, bool) {
	for _, s := range m {
		if r, ok := s.(Reader); ok {
			return r, true
		}
	}
	return nil, false
}
