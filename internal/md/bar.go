// Package md holds price bars, the bounded live history and the market data
// providers that produce them.
package md

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrDataUnavailable is returned when a historical or live fetch fails.
var ErrDataUnavailable = errors.New("market data unavailable")

type Bar struct {
	Symbol    string    `json:"symbol"`
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// Series is an ordered run of bars with strictly increasing timestamps.
type Series []Bar

func (s Series) Validate() error {
	for i := 1; i < len(s); i++ {
		if !s[i].Timestamp.After(s[i-1].Timestamp) {
			return fmt.Errorf("bar %d at %s is not after %s", i, s[i].Timestamp.Format(time.RFC3339), s[i-1].Timestamp.Format(time.RFC3339))
		}
	}
	return nil
}

func (s Series) Closes() []float64 {
	closes := make([]float64, len(s))
	for i, bar := range s {
		closes[i] = bar.Close
	}
	return closes
}

// Between returns the bars with start <= timestamp < end. A zero bound is open.
func (s Series) Between(start, end time.Time) Series {
	out := make(Series, 0, len(s))
	for _, bar := range s {
		if !start.IsZero() && bar.Timestamp.Before(start) {
			continue
		}
		if !end.IsZero() && !bar.Timestamp.Before(end) {
			continue
		}
		out = append(out, bar)
	}
	return out
}

// Merge appends bar to s. A bar with the same timestamp as the last bar
// replaces it and an older bar is ignored, so the result stays ordered.
func (s Series) Merge(bar Bar) Series {
	if n := len(s); n > 0 {
		last := s[n-1]
		if bar.Timestamp.Equal(last.Timestamp) {
			out := make(Series, n)
			copy(out, s)
			out[n-1] = bar
			return out
		}
		if bar.Timestamp.Before(last.Timestamp) {
			return s
		}
	}
	out := make(Series, len(s), len(s)+1)
	copy(out, s)
	return append(out, bar)
}

type HistoricalProvider interface {
	FetchHistorical(ctx context.Context, symbol string, start, end time.Time) (Series, error)
}

type LiveProvider interface {
	FetchLatest(ctx context.Context, symbol string) (Bar, error)
}
