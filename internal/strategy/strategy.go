// Package strategy turns a price series into per-bar trading signals and
// one-bar-lagged positions.
package strategy

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"sigtrader/internal/md"
)

var (
	ErrInsufficientData = errors.New("insufficient data")
	ErrInvalidParams    = errors.New("invalid strategy params")
)

type Signal int8

const (
	Sell Signal = -1
	Hold Signal = 0
	Buy  Signal = 1
)

func (s Signal) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return "HOLD"
	}
}

func (s Signal) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type Kind string

const (
	KindTrend         Kind = "trend"
	KindMeanReversion Kind = "meanrev"
	KindMomentum      Kind = "momentum"
)

func ParseKind(value string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(value))) {
	case KindTrend:
		return KindTrend, nil
	case KindMeanReversion:
		return KindMeanReversion, nil
	case KindMomentum:
		return KindMomentum, nil
	default:
		return "", fmt.Errorf("unknown strategy %q: want trend, meanrev or momentum", value)
	}
}

// DisplayName is the label used in reports.
func (k Kind) DisplayName() string {
	switch k {
	case KindTrend:
		return "Trend Following"
	case KindMeanReversion:
		return "Mean Reversion"
	case KindMomentum:
		return "Momentum"
	default:
		return string(k)
	}
}

// Point is one bar's output. Position is the previous bar's Signal, so a
// signal derived from a bar's close is only traded on the following bar.
type Point struct {
	Time     time.Time `json:"time"`
	Close    float64   `json:"close"`
	Signal   Signal    `json:"signal"`
	Position Signal    `json:"position"`
}

// Params carries the knobs for every strategy kind; each kind reads its own.
type Params struct {
	ShortWindow    int     `yaml:"short_window"`
	LongWindow     int     `yaml:"long_window"`
	BandWindow     int     `yaml:"band_window"`
	NumStd         float64 `yaml:"num_std"`
	MomentumPeriod int     `yaml:"momentum_period"`
}

func DefaultParams() Params {
	return Params{
		ShortWindow:    50,
		LongWindow:     200,
		BandWindow:     20,
		NumStd:         2,
		MomentumPeriod: 10,
	}
}

type Strategy interface {
	Kind() Kind
	// Lookback is the number of bars needed before the newest bar can carry
	// a directional signal.
	Lookback() int
	ComputeSignals(bars md.Series) ([]Point, error)
}

// New validates params for kind and returns the matching strategy.
func New(kind Kind, params Params) (Strategy, error) {
	switch kind {
	case KindTrend:
		return NewTrendFollowing(params.ShortWindow, params.LongWindow)
	case KindMeanReversion:
		return NewMeanReversion(params.BandWindow, params.NumStd)
	case KindMomentum:
		return NewMomentum(params.MomentumPeriod)
	default:
		return nil, fmt.Errorf("%w: unknown strategy %q", ErrInvalidParams, kind)
	}
}

// Latest returns the signal of the newest bar.
func Latest(s Strategy, bars md.Series) (Signal, error) {
	points, err := s.ComputeSignals(bars)
	if err != nil {
		return Hold, err
	}
	return points[len(points)-1].Signal, nil
}

func checkLength(bars md.Series, lookback int) error {
	if len(bars) == 0 {
		return fmt.Errorf("%w: empty series", ErrInsufficientData)
	}
	if len(bars) < lookback {
		return fmt.Errorf("%w: have %d bars, need %d", ErrInsufficientData, len(bars), lookback)
	}
	return nil
}

func withPositions(bars md.Series, signals []Signal) []Point {
	points := make([]Point, len(bars))
	for i, bar := range bars {
		points[i] = Point{
			Time:   bar.Timestamp,
			Close:  bar.Close,
			Signal: signals[i],
		}
		if i > 0 {
			points[i].Position = signals[i-1]
		}
	}
	return points
}
