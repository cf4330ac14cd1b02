package md

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
)

// AlpacaData fetches bars from the Alpaca market data REST API.
type AlpacaData struct {
	client    *marketdata.Client
	feed      marketdata.Feed
	timeframe marketdata.TimeFrame
}

func NewAlpacaData(apiKey, apiSecret, feed, timeframe string) (*AlpacaData, error) {
	tf, err := ParseTimeFrame(timeframe)
	if err != nil {
		return nil, err
	}
	client := marketdata.NewClient(marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	})
	return &AlpacaData{
		client:    client,
		feed:      parseFeed(feed),
		timeframe: tf,
	}, nil
}

func (a *AlpacaData) FetchHistorical(ctx context.Context, symbol string, start, end time.Time) (Series, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	bars, err := a.client.GetBars(symbol, marketdata.GetBarsRequest{
		TimeFrame:  a.timeframe,
		Adjustment: marketdata.All,
		Start:      start,
		End:        end,
		Feed:       a.feed,
	})
	if err != nil {
		slog.Error("fetch historical bars failed", "symbol", symbol, "start", start, "end", end, "error", err)
		return nil, fmt.Errorf("%w: historical bars for %s: %v", ErrDataUnavailable, symbol, err)
	}

	series := make(Series, 0, len(bars))
	for _, bar := range bars {
		series = append(series, fromAlpaca(symbol, bar))
	}
	slog.Info("historical bars fetched", "symbol", symbol, "count", len(series), "timeframe", a.timeframe.String())
	return series, nil
}

func (a *AlpacaData) FetchLatest(ctx context.Context, symbol string) (Bar, error) {
	if err := ctx.Err(); err != nil {
		return Bar{}, err
	}
	bar, err := a.client.GetLatestBar(symbol, marketdata.GetLatestBarRequest{Feed: a.feed})
	if err != nil {
		slog.Error("fetch latest bar failed", "symbol", symbol, "error", err)
		return Bar{}, fmt.Errorf("%w: latest bar for %s: %v", ErrDataUnavailable, symbol, err)
	}
	if bar == nil {
		return Bar{}, fmt.Errorf("%w: no latest bar for %s", ErrDataUnavailable, symbol)
	}
	return fromAlpaca(symbol, *bar), nil
}

func fromAlpaca(symbol string, bar marketdata.Bar) Bar {
	return Bar{
		Symbol:    symbol,
		Timestamp: bar.Timestamp.UTC(),
		Open:      bar.Open,
		High:      bar.High,
		Low:       bar.Low,
		Close:     bar.Close,
		Volume:    float64(bar.Volume),
	}
}

// ParseTimeFrame accepts 1Min, 5Min, 15Min, 1Hour and 1Day.
func ParseTimeFrame(value string) (marketdata.TimeFrame, error) {
	switch value {
	case "1Min":
		return marketdata.NewTimeFrame(1, marketdata.Min), nil
	case "5Min":
		return marketdata.NewTimeFrame(5, marketdata.Min), nil
	case "15Min":
		return marketdata.NewTimeFrame(15, marketdata.Min), nil
	case "1Hour":
		return marketdata.NewTimeFrame(1, marketdata.Hour), nil
	case "", "1Day":
		return marketdata.NewTimeFrame(1, marketdata.Day), nil
	default:
		return marketdata.TimeFrame{}, fmt.Errorf("unsupported timeframe: %s", value)
	}
}

func parseFeed(feed string) marketdata.Feed {
	switch feed {
	case "iex":
		return marketdata.IEX
	case "sip":
		return marketdata.SIP
	default:
		return marketdata.IEX
	}
}
