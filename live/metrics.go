package live

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics are the trader's Prometheus series:
//
//	bartrader_equity                      current equity
//	bartrader_signals_total{signal}       non-NONE strategy signals
//	bartrader_trades_total{result}        settled trades (win|loss)
//	bartrader_blocked_total{reason}       entries refused by time or risk
//	bartrader_orders_total{side,status}   order placements (ok|failed)
//	bartrader_last_bar_timestamp          ms timestamp of the last processed bar
type Metrics struct {
	Equity  prometheus.Gauge
	Signals *prometheus.CounterVec
	Trades  *prometheus.CounterVec
	Blocked *prometheus.CounterVec
	Orders  *prometheus.CounterVec
	LastBar prometheus.Gauge

	reg *prometheus.Registry
}

// NewMetrics registers the series on a fresh registry so several traders
// (and tests) never collide on the default one.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		Equity: f.NewGauge(prometheus.GaugeOpts{
			Name: "bartrader_equity",
			Help: "Current account equity.",
		}),
		Signals: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bartrader_signals_total",
			Help: "Strategy signals by kind.",
		}, []string{"signal"}),
		Trades: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bartrader_trades_total",
			Help: "Settled trades by result.",
		}, []string{"result"}),
		Blocked: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bartrader_blocked_total",
			Help: "Entries blocked by reason.",
		}, []string{"reason"}),
		Orders: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bartrader_orders_total",
			Help: "Order placements by side and status.",
		}, []string{"side", "status"}),
		LastBar: f.NewGauge(prometheus.GaugeOpts{
			Name: "bartrader_last_bar_timestamp",
			Help: "Timestamp in ms of the last processed bar.",
		}),
		reg: reg,
	}
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
