package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/rustyeddy/bartrader/sim"
)

// DefaultSubject prefixes every published message.
const DefaultSubject = "bartrader"

// NATS publishes journal records as JSON on <subject>.<kind>, where kind
// is run, trade, event, order or snapshot.
type NATS struct {
	conn    *nats.Conn
	subject string
}

var _ Store = (*NATS)(nil)

func NewNATS(url, subject string) (*NATS, error) {
	nc, err := nats.Connect(url, nats.Name("bartrader"))
	if err != nil {
		return nil, fmt.Errorf("journal: connect nats: %w", err)
	}
	return newNATS(nc, subject), nil
}

func newNATS(nc *nats.Conn, subject string) *NATS {
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATS{conn: nc, subject: subject}
}

func (n *NATS) publish(kind string, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return n.conn.Publish(n.subject+"."+kind, b)
}

func (n *NATS) InsertRun(_ context.Context, r Run) (string, error) {
	ensureRunID(&r)
	return r.ID, n.publish("run", r)
}

func (n *NATS) InsertTrades(_ context.Context, runID string, trades []sim.TradeRecord) error {
	for _, t := range trades {
		if err := n.publish("trade", Trade{RunID: runID, TradeRecord: t}); err != nil {
			return err
		}
	}
	return nil
}

func (n *NATS) LogEvent(_ context.Context, e Event) error {
	e.Time = stamp(e.Time)
	return n.publish("event", e)
}

func (n *NATS) LogOrder(_ context.Context, o Order) error {
	o.Time = stamp(o.Time)
	return n.publish("order", o)
}

func (n *NATS) LogSnapshot(_ context.Context, symbol string, snapshot interface{}) error {
	return n.publish("snapshot", struct {
		Time     time.Time   `json:"time"`
		Symbol   string      `json:"symbol"`
		Snapshot interface{} `json:"snapshot"`
	}{time.Now().UTC(), symbol, snapshot})
}

// Close flushes pending messages and drops the connection.
func (n *NATS) Close() error {
	err := n.conn.FlushTimeout(2 * time.Second)
	n.conn.Close()
	return err
}
