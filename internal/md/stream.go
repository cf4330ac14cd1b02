package md

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata/stream"
)

// StreamFeed subscribes to the Alpaca bar stream and serves the most recent
// bar per symbol to the live loop.
type StreamFeed struct {
	apiKey    string
	apiSecret string
	feed      string

	mu     sync.Mutex
	latest map[string]Bar
}

func NewStreamFeed(apiKey, apiSecret, feed string) *StreamFeed {
	return &StreamFeed{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		feed:      feed,
		latest:    make(map[string]Bar),
	}
}

// Start connects and subscribes. The SDK keeps delivering bars until ctx is done.
func (s *StreamFeed) Start(ctx context.Context, symbols ...string) error {
	client := stream.NewStocksClient(
		parseFeed(s.feed),
		stream.WithCredentials(s.apiKey, s.apiSecret),
	)

	// Connect must be called before subscribing in this SDK version.
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("connect market data stream: %w", err)
	}
	if err := client.SubscribeToBars(func(bar stream.Bar) {
		slog.Debug("stream bar received", "symbol", bar.Symbol, "timestamp", bar.Timestamp, "close", bar.Close)
		s.Observe(Bar{
			Symbol:    bar.Symbol,
			Timestamp: bar.Timestamp.UTC(),
			Open:      bar.Open,
			High:      bar.High,
			Low:       bar.Low,
			Close:     bar.Close,
			Volume:    float64(bar.Volume),
		})
	}, symbols...); err != nil {
		return fmt.Errorf("subscribe to bars: %w", err)
	}
	slog.Info("subscribed to bar stream", "symbols", symbols, "feed", s.feed)
	return nil
}

// Observe records bar as the latest for its symbol unless it is older.
func (s *StreamFeed) Observe(bar Bar) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.latest[bar.Symbol]; ok && bar.Timestamp.Before(current.Timestamp) {
		return
	}
	s.latest[bar.Symbol] = bar
}

func (s *StreamFeed) FetchLatest(ctx context.Context, symbol string) (Bar, error) {
	if err := ctx.Err(); err != nil {
		return Bar{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	bar, ok := s.latest[symbol]
	if !ok {
		return Bar{}, fmt.Errorf("%w: no streamed bar for %s yet", ErrDataUnavailable, symbol)
	}
	return bar, nil
}
