package strategy

import (
	"fmt"

	"sigtrader/internal/md"
)

// Momentum follows the sign of close(t) - close(t-period).
type Momentum struct {
	period int
}

func NewMomentum(period int) (Momentum, error) {
	if period < 1 {
		return Momentum{}, fmt.Errorf("%w: momentum period must be >= 1, got %d", ErrInvalidParams, period)
	}
	return Momentum{period: period}, nil
}

func (m Momentum) Kind() Kind { return KindMomentum }

// Lookback is period+1: the first difference needs a bar period bars back, so
// a series of exactly period bars is rejected as too short.
func (m Momentum) Lookback() int { return m.period + 1 }

func (m Momentum) ComputeSignals(bars md.Series) ([]Point, error) {
	if err := checkLength(bars, m.Lookback()); err != nil {
		return nil, err
	}
	closes := bars.Closes()
	signals := make([]Signal, len(closes))
	for i := m.period; i < len(closes); i++ {
		change := closes[i] - closes[i-m.period]
		switch {
		case change > 0:
			signals[i] = Buy
		case change < 0:
			signals[i] = Sell
		}
	}
	return withPositions(bars, signals), nil
}
