package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"sigtrader/internal/md"
	"sigtrader/internal/metrics"
	"sigtrader/internal/state"
	"sigtrader/internal/strategy"
)

type LoopConfig struct {
	Symbol     string
	Interval   time.Duration
	RetryDelay time.Duration
	// HistoryBars caps the retained history; it is raised to the strategy
	// lookback when smaller.
	HistoryBars    int
	CheckpointPath string
}

// Loop runs live cycles strictly one after another. The history buffer is
// owned by the loop.
type Loop struct {
	cfg       LoopConfig
	strategy  strategy.Strategy
	live      md.LiveProvider
	machine   *Machine
	store     *state.Store
	decisions *DecisionLogger
	history   *md.RingBuffer
	now       func() time.Time
}

func NewLoop(cfg LoopConfig, strat strategy.Strategy, live md.LiveProvider, machine *Machine, store *state.Store, decisions *DecisionLogger) *Loop {
	size := cfg.HistoryBars
	if size < strat.Lookback() {
		size = strat.Lookback()
	}
	return &Loop{
		cfg:       cfg,
		strategy:  strat,
		live:      live,
		machine:   machine,
		store:     store,
		decisions: decisions,
		history:   md.NewRingBuffer(size),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Seed loads history before the first cycle. Failure aborts startup.
func (l *Loop) Seed(ctx context.Context, provider md.HistoricalProvider, start, end time.Time) error {
	series, err := provider.FetchHistorical(ctx, l.cfg.Symbol, start, end)
	if err != nil {
		if errors.Is(err, md.ErrDataUnavailable) {
			return err
		}
		return fmt.Errorf("%w: seed %s: %w", md.ErrDataUnavailable, l.cfg.Symbol, err)
	}
	if err := series.Validate(); err != nil {
		return fmt.Errorf("%w: seed %s: %w", md.ErrDataUnavailable, l.cfg.Symbol, err)
	}
	l.history.AddAll(series)
	if l.history.Len() < l.strategy.Lookback() {
		slog.Warn("seed history shorter than strategy lookback, signals hold until it fills", "symbol", l.cfg.Symbol, "bars", l.history.Len(), "lookback", l.strategy.Lookback())
	}
	slog.Info("history seeded", "symbol", l.cfg.Symbol, "fetched", len(series), "retained", l.history.Len(), "capacity", l.history.Cap())
	return nil
}

func (l *Loop) HistoryLen() int {
	return l.history.Len()
}

// HistoryCap is the retained history bound, at least the strategy lookback.
func (l *Loop) HistoryCap() int {
	return l.history.Cap()
}

// Run repeats Cycle until ctx is cancelled. A failed cycle is logged and the
// loop carries on; a failed fetch waits RetryDelay instead of Interval.
func (l *Loop) Run(ctx context.Context) error {
	slog.Info("live loop started", "symbol", l.cfg.Symbol, "strategy", l.strategy.Kind(), "interval", l.cfg.Interval)
	for {
		delay := l.cfg.Interval
		if _, err := l.Cycle(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			switch {
			case errors.Is(err, md.ErrDataUnavailable):
				slog.Warn("failed to fetch live data, retrying", "symbol", l.cfg.Symbol, "delay", l.cfg.RetryDelay, "error", err)
				delay = l.cfg.RetryDelay
			case errors.Is(err, ErrEntryRejected):
				slog.Info("entry rejected by risk gate", "symbol", l.cfg.Symbol, "error", err)
			default:
				slog.Error("cycle failed", "symbol", l.cfg.Symbol, "error", err)
			}
		}
		if err := waitFor(ctx, delay); err != nil {
			return err
		}
	}
}

// Cycle fetches the newest bar, computes its signal over the history, steps
// the machine and appends the bar. A failed fetch skips the cycle entirely.
func (l *Loop) Cycle(ctx context.Context) (Decision, error) {
	symbol := l.cfg.Symbol
	bar, err := l.live.FetchLatest(ctx, symbol)
	if err != nil {
		metrics.FetchFailuresTotal.WithLabelValues(symbol).Inc()
		if !errors.Is(err, md.ErrDataUnavailable) {
			err = fmt.Errorf("%w: %w", md.ErrDataUnavailable, err)
		}
		return Decision{}, err
	}
	metrics.CyclesTotal.WithLabelValues(symbol).Inc()

	warmingUp := false
	signal, err := strategy.Latest(l.strategy, l.history.With(bar))
	if err != nil {
		if !errors.Is(err, strategy.ErrInsufficientData) {
			return Decision{}, err
		}
		signal = strategy.Hold
		warmingUp = true
	}
	metrics.SignalsTotal.WithLabelValues(symbol, signal.String()).Inc()
	slog.Info("current signal", "symbol", symbol, "bar", bar.Timestamp.Format(time.RFC3339), "close", bar.Close, "signal", signal, "warming_up", warmingUp)

	outcome, stepErr := l.machine.Step(ctx, signal, bar)

	l.history.Add(bar)
	l.store.SetLastBarTime(bar.Timestamp)

	decision := Decision{
		RunID:         l.decisions.RunID(),
		Timestamp:     l.now(),
		BarTime:       bar.Timestamp,
		Symbol:        symbol,
		Close:         bar.Close,
		Strategy:      l.strategy.Kind(),
		Signal:        signal,
		WarmingUp:     warmingUp,
		Action:        outcome.Action,
		Reason:        outcome.Reason,
		Result:        outcome.Result,
		OrderID:       outcome.Order.ID,
		ClientOrderID: outcome.Order.ClientOrderID,
		IsOpen:        outcome.Trade.IsOpen,
		EntryPrice:    outcome.Trade.EntryPrice,
	}
	if stepErr != nil {
		decision.Error = stepErr.Error()
	}
	l.decisions.Append(decision)
	l.record(outcome)

	if outcome.Result == ResultSubmitted && l.cfg.CheckpointPath != "" {
		if err := l.store.Save(l.cfg.CheckpointPath); err != nil {
			slog.Error("failed to save checkpoint", "path", l.cfg.CheckpointPath, "error", err)
		}
	}
	return decision, stepErr
}

func (l *Loop) record(outcome Outcome) {
	symbol := l.cfg.Symbol
	if outcome.Action != ActionHold {
		metrics.OrdersTotal.WithLabelValues(symbol, string(outcome.Action), outcome.Result).Inc()
	}
	if outcome.Reason == ReasonStopLoss {
		metrics.StopLossTotal.WithLabelValues(symbol).Inc()
	}
	metrics.SetPosition(symbol, outcome.Trade.IsOpen)
}

func waitFor(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
