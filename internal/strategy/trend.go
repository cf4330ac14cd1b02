package strategy

import (
	"fmt"

	"sigtrader/internal/md"
)

// TrendFollowing is a moving-average crossover: long while the short mean of
// closes is above the long mean.
type TrendFollowing struct {
	short int
	long  int
}

func NewTrendFollowing(short, long int) (TrendFollowing, error) {
	if short < 1 {
		return TrendFollowing{}, fmt.Errorf("%w: short window must be >= 1, got %d", ErrInvalidParams, short)
	}
	if long <= short {
		return TrendFollowing{}, fmt.Errorf("%w: long window %d must exceed short window %d", ErrInvalidParams, long, short)
	}
	return TrendFollowing{short: short, long: long}, nil
}

func (t TrendFollowing) Kind() Kind { return KindTrend }

func (t TrendFollowing) Lookback() int { return t.long }

func (t TrendFollowing) ComputeSignals(bars md.Series) ([]Point, error) {
	if err := checkLength(bars, t.long); err != nil {
		return nil, err
	}
	closes := bars.Closes()
	signals := make([]Signal, len(closes))
	for i := t.long - 1; i < len(closes); i++ {
		if mean(trailing(closes, i, t.short)) > mean(trailing(closes, i, t.long)) {
			signals[i] = Buy
		} else {
			signals[i] = Sell
		}
	}
	return withPositions(bars, signals), nil
}
