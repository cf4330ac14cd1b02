// Package backtest replays strategy positions against realised market
// returns.
package backtest

import (
	"errors"
	"fmt"
	"time"

	"sigtrader/internal/strategy"
)

var ErrEmptySeries = errors.New("empty series")

// Exposure maps a lagged position to a return multiplier.
type Exposure string

const (
	// LongShort scales returns by +1 on Buy and -1 on Sell. It is the
	// default, including for the zero value.
	LongShort Exposure = "long-short"
	// LongOnly matches the live machine: long on Buy, flat otherwise.
	LongOnly Exposure = "long-only"
)

func ParseExposure(value string) (Exposure, error) {
	switch Exposure(value) {
	case "", LongShort:
		return LongShort, nil
	case LongOnly:
		return LongOnly, nil
	default:
		return "", fmt.Errorf("unknown exposure %q: want long-only or long-short", value)
	}
}

func (e Exposure) Weight(position strategy.Signal) float64 {
	switch position {
	case strategy.Buy:
		return 1
	case strategy.Sell:
		if e != LongOnly {
			return -1
		}
	}
	return 0
}

// Curves are aligned index for index with the evaluated points.
type Curves struct {
	Times           []time.Time
	MarketReturns   []float64
	StrategyReturns []float64
	Market          []float64
	Strategy        []float64
}

// Evaluate compounds per-bar market returns and position-weighted strategy
// returns into cumulative curves starting at 1.0. The first bar contributes
// no return.
func Evaluate(points []strategy.Point, exposure Exposure) (Curves, error) {
	n := len(points)
	if n == 0 {
		return Curves{}, ErrEmptySeries
	}
	curves := Curves{
		Times:           make([]time.Time, n),
		MarketReturns:   make([]float64, n),
		StrategyReturns: make([]float64, n),
		Market:          make([]float64, n),
		Strategy:        make([]float64, n),
	}

	market, strat := 1.0, 1.0
	for i, p := range points {
		curves.Times[i] = p.Time
		if i > 0 && points[i-1].Close != 0 {
			r := p.Close/points[i-1].Close - 1
			curves.MarketReturns[i] = r
			curves.StrategyReturns[i] = r * exposure.Weight(p.Position)
		}
		market *= 1 + curves.MarketReturns[i]
		strat *= 1 + curves.StrategyReturns[i]
		curves.Market[i] = market
		curves.Strategy[i] = strat
	}
	return curves, nil
}
