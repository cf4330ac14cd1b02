package backtest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"sigtrader/internal/md"
	"sigtrader/internal/strategy"
)

type Request struct {
	Symbol   string
	Start    time.Time
	End      time.Time
	Strategy strategy.Strategy
	Exposure Exposure
}

type Result struct {
	Symbol  string
	Title   string
	Points  []strategy.Point
	Curves  Curves
	Summary Summary
}

// Run fetches history for req and evaluates the strategy over it. Any
// failure aborts the whole run.
func Run(ctx context.Context, provider md.HistoricalProvider, req Request) (Result, error) {
	series, err := provider.FetchHistorical(ctx, req.Symbol, req.Start, req.End)
	if err != nil {
		if !errors.Is(err, md.ErrDataUnavailable) {
			err = fmt.Errorf("%w: %w", md.ErrDataUnavailable, err)
		}
		return Result{}, err
	}
	if len(series) == 0 {
		return Result{}, fmt.Errorf("%w: no bars for %s between %s and %s", ErrEmptySeries, req.Symbol, req.Start.Format(time.DateOnly), req.End.Format(time.DateOnly))
	}
	if err := series.Validate(); err != nil {
		return Result{}, fmt.Errorf("%w: %w", md.ErrDataUnavailable, err)
	}

	points, err := req.Strategy.ComputeSignals(series)
	if err != nil {
		return Result{}, fmt.Errorf("compute %s signals: %w", req.Strategy.Kind(), err)
	}
	curves, err := Evaluate(points, req.Exposure)
	if err != nil {
		return Result{}, err
	}

	kind := req.Strategy.Kind()
	result := Result{
		Symbol:  req.Symbol,
		Title:   fmt.Sprintf("Backtest Results for %s using %s", req.Symbol, kind.DisplayName()),
		Points:  points,
		Curves:  curves,
		Summary: Summarize(curves, points, req.Exposure),
	}
	slog.Info("backtest complete", "symbol", req.Symbol, "strategy", kind, "bars", len(points),
		"market_return", result.Summary.MarketReturn, "strategy_return", result.Summary.StrategyReturn)
	return result, nil
}
