package md

import (
	"testing"
	"time"
)

func barAt(minute int, close float64) Bar {
	return Bar{
		Symbol:    "AAPL",
		Timestamp: time.Date(2024, 1, 2, 14, minute, 0, 0, time.UTC),
		Close:     close,
	}
}

func TestRingBufferKeepsMostRecent(t *testing.T) {
	buffer := NewRingBuffer(3)
	for i, v := range []float64{1, 2, 3, 4, 5} {
		buffer.Add(barAt(i, v))
	}

	values := buffer.Values()
	if len(values) != 3 {
		t.Fatalf("expected 3 bars, got %d", len(values))
	}
	closes := values.Closes()
	expected := []float64{3, 4, 5}
	for i := range expected {
		if closes[i] != expected[i] {
			t.Fatalf("expected closes %v, got %v", expected, closes)
		}
	}
	if err := values.Validate(); err != nil {
		t.Fatalf("expected ordered bars, got %v", err)
	}
}

func TestRingBufferReplacesSameTimestamp(t *testing.T) {
	buffer := NewRingBuffer(4)
	buffer.Add(barAt(0, 10))
	buffer.Add(barAt(1, 11))
	if !buffer.Add(barAt(1, 12)) {
		t.Fatalf("expected same-timestamp bar to be kept")
	}

	if buffer.Len() != 2 {
		t.Fatalf("expected 2 bars, got %d", buffer.Len())
	}
	last, _ := buffer.Last()
	if last.Close != 12 {
		t.Fatalf("expected replaced close 12, got %.2f", last.Close)
	}
}

func TestRingBufferDropsOlderBar(t *testing.T) {
	buffer := NewRingBuffer(4)
	buffer.Add(barAt(5, 10))
	if buffer.Add(barAt(4, 9)) {
		t.Fatalf("expected older bar to be dropped")
	}
	if buffer.Len() != 1 {
		t.Fatalf("expected 1 bar, got %d", buffer.Len())
	}
}

func TestRingBufferWithDoesNotStore(t *testing.T) {
	buffer := NewRingBuffer(2)
	buffer.Add(barAt(0, 1))
	buffer.Add(barAt(1, 2))

	candidate := buffer.With(barAt(2, 3))
	if len(candidate) != 3 {
		t.Fatalf("expected 3 bars in candidate, got %d", len(candidate))
	}
	if buffer.Len() != 2 {
		t.Fatalf("expected buffer untouched, got %d bars", buffer.Len())
	}
}

func TestSeriesValidateRejectsDuplicates(t *testing.T) {
	series := Series{barAt(0, 1), barAt(0, 2)}
	if err := series.Validate(); err == nil {
		t.Fatalf("expected error for duplicate timestamps")
	}
}
