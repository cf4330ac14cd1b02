package backtest

import (
	"fmt"
	"io"

	"sigtrader/internal/strategy"
)

type Summary struct {
	Bars                int
	MarketReturn        float64
	StrategyReturn      float64
	MarketMaxDrawdown   float64
	StrategyMaxDrawdown float64
	// PositionChanges counts bars whose exposure differs from the bar before.
	PositionChanges int
	BarsInMarket    int
}

func Summarize(curves Curves, points []strategy.Point, exposure Exposure) Summary {
	n := len(curves.Market)
	if n == 0 {
		return Summary{}
	}
	summary := Summary{
		Bars:                n,
		MarketReturn:        curves.Market[n-1] - 1,
		StrategyReturn:      curves.Strategy[n-1] - 1,
		MarketMaxDrawdown:   maxDrawdown(curves.Market),
		StrategyMaxDrawdown: maxDrawdown(curves.Strategy),
	}
	prev := 0.0
	for _, p := range points {
		w := exposure.Weight(p.Position)
		if w != prev {
			summary.PositionChanges++
		}
		if w != 0 {
			summary.BarsInMarket++
		}
		prev = w
	}
	return summary
}

// maxDrawdown is the largest peak-to-trough fall as a fraction of the peak.
func maxDrawdown(curve []float64) float64 {
	var peak, dd float64
	for i, v := range curve {
		if i == 0 || v > peak {
			peak = v
		}
		if peak > 0 {
			if d := (peak - v) / peak; d > dd {
				dd = d
			}
		}
	}
	return dd
}

func (s Summary) Print(w io.Writer, title string) {
	fmt.Fprintf(w, "\n=== %s ===\n", title)
	fmt.Fprintf(w, "Bars:              %d\n", s.Bars)
	fmt.Fprintf(w, "Market Return:     %.2f%%\n", s.MarketReturn*100)
	fmt.Fprintf(w, "Strategy Return:   %.2f%%\n", s.StrategyReturn*100)
	fmt.Fprintf(w, "Market Max DD:     %.2f%%\n", s.MarketMaxDrawdown*100)
	fmt.Fprintf(w, "Strategy Max DD:   %.2f%%\n", s.StrategyMaxDrawdown*100)
	fmt.Fprintf(w, "Position Changes:  %d\n", s.PositionChanges)
	fmt.Fprintf(w, "Bars In Market:    %d\n", s.BarsInMarket)
}
