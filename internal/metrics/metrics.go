// Package metrics exposes live-loop counters to Prometheus.
package metrics

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "trader_cycles_total", Help: "Live cycles that fetched a bar"},
		[]string{"symbol"},
	)
	FetchFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "trader_fetch_failures_total", Help: "Live bar fetches that failed"},
		[]string{"symbol"},
	)
	SignalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "trader_signals_total", Help: "Latest signals computed per cycle"},
		[]string{"symbol", "signal"},
	)
	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "trader_orders_total", Help: "Order attempts by side and result"},
		[]string{"symbol", "side", "result"},
	)
	StopLossTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "trader_stop_loss_total", Help: "Stop-loss exits requested"},
		[]string{"symbol"},
	)
	PositionOpen = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "trader_position_open", Help: "1 while a long position is open"},
		[]string{"symbol"},
	)
)

func init() {
	prometheus.MustRegister(CyclesTotal, FetchFailuresTotal, SignalsTotal, OrdersTotal, StopLossTotal, PositionOpen)
}

func SetPosition(symbol string, open bool) {
	v := 0.0
	if open {
		v = 1
	}
	PositionOpen.WithLabelValues(symbol).Set(v)
}

// Serve starts the /metrics endpoint in the background.
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server stopped", "addr", addr, "error", err)
		}
	}()
	return srv
}
