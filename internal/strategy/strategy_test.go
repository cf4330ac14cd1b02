package strategy

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sigtrader/internal/md"
)

func seriesFrom(closes ...float64) md.Series {
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make(md.Series, len(closes))
	for i, c := range closes {
		bars[i] = md.Bar{Symbol: "TEST", Timestamp: start.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c}
	}
	return bars
}

func linear(n int, from, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = from + step*float64(i)
	}
	return out
}

func wave(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 100 + 10*math.Sin(float64(i)/3) + float64(i%7)
	}
	return out
}

func TestPositionLagsSignalForEveryStrategy(t *testing.T) {
	bars := seriesFrom(wave(120)...)
	for _, kind := range []Kind{KindTrend, KindMeanReversion, KindMomentum} {
		t.Run(string(kind), func(t *testing.T) {
			params := DefaultParams()
			params.ShortWindow, params.LongWindow = 5, 20
			strat, err := New(kind, params)
			require.NoError(t, err)

			points, err := strat.ComputeSignals(bars)
			require.NoError(t, err)
			require.Len(t, points, len(bars))

			assert.Equal(t, Hold, points[0].Position)
			for i := 1; i < len(points); i++ {
				assert.Equal(t, points[i-1].Signal, points[i].Position, "index %d", i)
			}
		})
	}
}

func TestTrendHoldsUntilLongWindowFills(t *testing.T) {
	strat, err := NewTrendFollowing(3, 10)
	require.NoError(t, err)

	points, err := strat.ComputeSignals(seriesFrom(linear(30, 100, 1)...))
	require.NoError(t, err)

	for i := 0; i < 9; i++ {
		assert.Equal(t, Hold, points[i].Signal, "index %d", i)
	}
	for i := 9; i < len(points); i++ {
		assert.Equal(t, Buy, points[i].Signal, "index %d", i)
	}
}

func TestTrendSellsWhenShortMeanBelowLong(t *testing.T) {
	strat, err := NewTrendFollowing(3, 10)
	require.NoError(t, err)

	points, err := strat.ComputeSignals(seriesFrom(linear(20, 200, -2)...))
	require.NoError(t, err)
	for i := 9; i < len(points); i++ {
		assert.Equal(t, Sell, points[i].Signal, "index %d", i)
	}
}

func TestTrendFlatThenRising(t *testing.T) {
	closes := make([]float64, 0, 400)
	for i := 0; i < 300; i++ {
		closes = append(closes, 100)
	}
	closes = append(closes, linear(100, 100.5, 0.5)...)

	strat, err := New(KindTrend, DefaultParams())
	require.NoError(t, err)
	points, err := strat.ComputeSignals(seriesFrom(closes...))
	require.NoError(t, err)

	for i := 0; i < 199; i++ {
		require.Equal(t, Hold, points[i].Signal, "index %d", i)
	}
	for i := 300; i < len(points); i++ {
		require.Equal(t, Buy, points[i].Signal, "index %d", i)
	}
	for i := 301; i < len(points); i++ {
		require.Equal(t, Buy, points[i].Position, "index %d", i)
	}
}

func TestMeanReversionBandCrossings(t *testing.T) {
	strat, err := NewMeanReversion(20, 2)
	require.NoError(t, err)

	base := make([]float64, 19)
	for i := range base {
		base[i] = 100 + float64(i%2)
	}

	cases := []struct {
		name string
		last float64
		want Signal
	}{
		{"below lower band", 90, Buy},
		{"above upper band", 110, Sell},
		{"inside bands", 100.5, Hold},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			points, err := strat.ComputeSignals(seriesFrom(append(append([]float64{}, base...), tc.last)...))
			require.NoError(t, err)
			assert.Equal(t, tc.want, points[len(points)-1].Signal)
		})
	}
}

func TestMeanReversionHoldsWhileWindowFills(t *testing.T) {
	strat, err := NewMeanReversion(5, 1)
	require.NoError(t, err)

	points, err := strat.ComputeSignals(seriesFrom(100, 50, 150, 20, 100, 100, 100))
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		assert.Equal(t, Hold, points[i].Signal, "index %d", i)
	}
}

func TestMeanReversionConstantSeriesHolds(t *testing.T) {
	strat, err := NewMeanReversion(5, 2)
	require.NoError(t, err)

	points, err := strat.ComputeSignals(seriesFrom(100, 100, 100, 100, 100, 100))
	require.NoError(t, err)
	for _, p := range points {
		assert.Equal(t, Hold, p.Signal)
	}
}

func TestMomentumStrictlyIncreasingBuys(t *testing.T) {
	strat, err := NewMomentum(10)
	require.NoError(t, err)

	points, err := strat.ComputeSignals(seriesFrom(linear(40, 50, 0.25)...))
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		assert.Equal(t, Hold, points[i].Signal, "index %d", i)
	}
	for i := 10; i < len(points); i++ {
		assert.Equal(t, Buy, points[i].Signal, "index %d", i)
	}
}

func TestMomentumSignsAndZero(t *testing.T) {
	strat, err := NewMomentum(2)
	require.NoError(t, err)

	points, err := strat.ComputeSignals(seriesFrom(10, 11, 9, 11, 12))
	require.NoError(t, err)
	want := []Signal{Hold, Hold, Sell, Hold, Buy}
	for i, p := range points {
		assert.Equal(t, want[i], p.Signal, "index %d", i)
	}
}

func TestComputeSignalsRejectsShortSeries(t *testing.T) {
	strat, err := New(KindTrend, DefaultParams())
	require.NoError(t, err)

	_, err = strat.ComputeSignals(nil)
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, err = strat.ComputeSignals(seriesFrom(linear(199, 1, 1)...))
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, err = strat.ComputeSignals(seriesFrom(linear(200, 1, 1)...))
	assert.NoError(t, err)
}

func TestNewRejectsInvalidParams(t *testing.T) {
	cases := []struct {
		name   string
		kind   Kind
		params Params
	}{
		{"short not below long", KindTrend, Params{ShortWindow: 20, LongWindow: 20}},
		{"zero short", KindTrend, Params{ShortWindow: 0, LongWindow: 20}},
		{"band window too small", KindMeanReversion, Params{BandWindow: 1, NumStd: 2}},
		{"non-positive std", KindMeanReversion, Params{BandWindow: 20, NumStd: 0}},
		{"zero momentum period", KindMomentum, Params{MomentumPeriod: 0}},
		{"unknown kind", Kind("pairs"), DefaultParams()},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.kind, tc.params)
			assert.ErrorIs(t, err, ErrInvalidParams)
		})
	}
}

func TestLatestReturnsNewestSignal(t *testing.T) {
	strat, err := NewMomentum(1)
	require.NoError(t, err)

	signal, err := Latest(strat, seriesFrom(10, 11, 10))
	require.NoError(t, err)
	assert.Equal(t, Sell, signal)

	_, err = Latest(strat, seriesFrom(10))
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestParseKind(t *testing.T) {
	kind, err := ParseKind(" MeanRev ")
	require.NoError(t, err)
	assert.Equal(t, KindMeanReversion, kind)
	assert.Equal(t, "Mean Reversion", kind.DisplayName())

	_, err = ParseKind("sma")
	assert.Error(t, err)
}
