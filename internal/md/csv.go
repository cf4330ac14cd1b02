package md

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// CSVSource serves historical bars from a CSV file with a header of
// timestamp,open,high,low,close,volume. Only timestamp and close are required.
type CSVSource struct {
	Path string
}

func (c CSVSource) FetchHistorical(ctx context.Context, symbol string, start, end time.Time) (Series, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	file, err := os.Open(c.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDataUnavailable, err)
	}
	defer file.Close()

	bars, err := ReadCSV(file, symbol)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDataUnavailable, c.Path, err)
	}
	return bars.Between(start, end), nil
}

func ReadCSV(r io.Reader, symbol string) (Series, error) {
	df := dataframe.ReadCSV(r, dataframe.WithTypes(map[string]series.Type{
		"timestamp": series.String,
		"open":      series.Float,
		"high":      series.Float,
		"low":       series.Float,
		"close":     series.Float,
		"volume":    series.Float,
	}))
	if df.Err != nil {
		return nil, fmt.Errorf("read csv: %w", df.Err)
	}

	names := make(map[string]bool, df.Ncol())
	for _, name := range df.Names() {
		names[name] = true
	}
	if !names["timestamp"] || !names["close"] {
		return nil, fmt.Errorf("csv requires timestamp and close columns, got %v", df.Names())
	}

	stamps := df.Col("timestamp").Records()
	closes := df.Col("close").Float()
	column := func(name string, fallback []float64) []float64 {
		if !names[name] {
			return fallback
		}
		return df.Col(name).Float()
	}
	opens := column("open", closes)
	highs := column("high", closes)
	lows := column("low", closes)
	volumes := column("volume", make([]float64, len(closes)))

	bars := make(Series, 0, df.Nrow())
	for i, raw := range stamps {
		ts, err := parseTimestamp(raw)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		bars = append(bars, Bar{
			Symbol:    symbol,
			Timestamp: ts,
			Open:      opens[i],
			High:      highs[i],
			Low:       lows[i],
			Close:     closes[i],
			Volume:    volumes[i],
		})
	}
	if err := bars.Validate(); err != nil {
		return nil, err
	}
	return bars, nil
}

func parseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", value)
}
