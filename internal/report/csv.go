// Package report renders backtest results as CSV, SVG and console text.
package report

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"sigtrader/internal/backtest"
)

// Frame lays a backtest result out one row per bar.
func Frame(result backtest.Result) dataframe.DataFrame {
	n := len(result.Points)
	times := make([]string, n)
	closes := make([]float64, n)
	signals := make([]string, n)
	positions := make([]string, n)
	for i, p := range result.Points {
		times[i] = p.Time.UTC().Format(time.RFC3339)
		closes[i] = p.Close
		signals[i] = p.Signal.String()
		positions[i] = p.Position.String()
	}
	return dataframe.New(
		series.New(times, series.String, "timestamp"),
		series.New(closes, series.Float, "close"),
		series.New(signals, series.String, "signal"),
		series.New(positions, series.String, "position"),
		series.New(result.Curves.MarketReturns, series.Float, "market_return"),
		series.New(result.Curves.StrategyReturns, series.Float, "strategy_return"),
		series.New(result.Curves.Market, series.Float, "cumulative_market"),
		series.New(result.Curves.Strategy, series.Float, "cumulative_strategy"),
	)
}

func WriteCSV(w io.Writer, result backtest.Result) error {
	df := Frame(result)
	if df.Err != nil {
		return fmt.Errorf("build frame: %w", df.Err)
	}
	return df.WriteCSV(w)
}

func WriteCSVFile(path string, result backtest.Result) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteCSV(file, result); err != nil {
		file.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return file.Close()
}

// Print writes the title and summary table to w.
func Print(w io.Writer, result backtest.Result) {
	result.Summary.Print(w, result.Title)
}
