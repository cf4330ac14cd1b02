package engine

import (
	"bufio"
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"time"

	"sigtrader/internal/strategy"
)

// Decision is one live cycle, written as a line of NDJSON.
type Decision struct {
	RunID         string          `json:"run_id"`
	Timestamp     time.Time       `json:"timestamp"`
	BarTime       time.Time       `json:"bar_time"`
	Symbol        string          `json:"symbol"`
	Close         float64         `json:"close"`
	Strategy      strategy.Kind   `json:"strategy"`
	Signal        strategy.Signal `json:"signal"`
	WarmingUp     bool            `json:"warming_up,omitempty"`
	Action        Action          `json:"action"`
	Reason        string          `json:"reason"`
	Result        string          `json:"result"`
	OrderID       string          `json:"order_id,omitempty"`
	ClientOrderID string          `json:"client_order_id,omitempty"`
	IsOpen        bool            `json:"is_open"`
	EntryPrice    *float64        `json:"entry_price,omitempty"`
	Error         string          `json:"error,omitempty"`
}

type DecisionLogger struct {
	runID  string
	file   *os.File
	writer *bufio.Writer
	mu     sync.Mutex
}

func NewDecisionLogger(path string, runID string) (*DecisionLogger, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &DecisionLogger{
		runID:  runID,
		file:   file,
		writer: bufio.NewWriter(file),
	}, nil
}

func (d *DecisionLogger) RunID() string {
	if d == nil {
		return ""
	}
	return d.runID
}

// Append writes decision; a nil logger discards it.
func (d *DecisionLogger) Append(decision Decision) {
	if d == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	payload, err := json.Marshal(decision)
	if err != nil {
		slog.Error("failed to marshal decision", "error", err)
		return
	}
	if _, err := d.writer.Write(append(payload, '\n')); err != nil {
		slog.Error("failed to write decision", "error", err)
		return
	}
	if err := d.writer.Flush(); err != nil {
		slog.Error("failed to flush decision log", "error", err)
	}
}

func (d *DecisionLogger) Close() error {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.writer.Flush(); err != nil {
		_ = d.file.Close()
		return err
	}
	return d.file.Close()
}
