package strategy

import (
	"fmt"
	"math"

	"sigtrader/internal/md"
)

// MeanReversion trades Bollinger-style bands: buy below the lower band
// (oversold), sell above the upper band (overbought).
type MeanReversion struct {
	window int
	numStd float64
}

func NewMeanReversion(window int, numStd float64) (MeanReversion, error) {
	if window < 2 {
		return MeanReversion{}, fmt.Errorf("%w: band window must be >= 2, got %d", ErrInvalidParams, window)
	}
	if numStd <= 0 || math.IsNaN(numStd) || math.IsInf(numStd, 0) {
		return MeanReversion{}, fmt.Errorf("%w: band width must be a positive number of std devs, got %v", ErrInvalidParams, numStd)
	}
	return MeanReversion{window: window, numStd: numStd}, nil
}

func (m MeanReversion) Kind() Kind { return KindMeanReversion }

func (m MeanReversion) Lookback() int { return m.window }

func (m MeanReversion) ComputeSignals(bars md.Series) ([]Point, error) {
	if err := checkLength(bars, m.window); err != nil {
		return nil, err
	}
	closes := bars.Closes()
	signals := make([]Signal, len(closes))
	for i := m.window - 1; i < len(closes); i++ {
		avg, std := meanStd(trailing(closes, i, m.window))
		upper := avg + m.numStd*std
		lower := avg - m.numStd*std
		switch {
		case closes[i] < lower:
			signals[i] = Buy
		case closes[i] > upper:
			signals[i] = Sell
		}
	}
	return withPositions(bars, signals), nil
}
