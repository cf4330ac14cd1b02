package state

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// TradeState is the live position. EntryPrice is set iff IsOpen.
type TradeState struct {
	IsOpen     bool     `json:"is_open"`
	EntryPrice *float64 `json:"entry_price"`
}

func (t TradeState) Valid() bool {
	return t.IsOpen == (t.EntryPrice != nil)
}

type Snapshot struct {
	Trade         TradeState `json:"trade"`
	Symbol        string     `json:"symbol"`
	LastTradeTime time.Time  `json:"last_trade_time"`
	LastBarTime   time.Time  `json:"last_bar_time"`
}

type Store struct {
	mu       sync.RWMutex
	snapshot Snapshot
}

func NewStore(symbol string) *Store {
	return &Store{snapshot: Snapshot{Symbol: symbol}}
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := s.snapshot
	if snap.Trade.EntryPrice != nil {
		entry := *snap.Trade.EntryPrice
		snap.Trade.EntryPrice = &entry
	}
	return snap
}

func (s *Store) Trade() TradeState {
	return s.Snapshot().Trade
}

// Open records an entry at price.
func (s *Store) Open(price float64, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.Trade = TradeState{IsOpen: true, EntryPrice: &price}
	s.snapshot.LastTradeTime = at
}

// Close clears the open position.
func (s *Store) Close(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.Trade = TradeState{}
	s.snapshot.LastTradeTime = at
}

func (s *Store) SetLastBarTime(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.LastBarTime = t
}

func (s *Store) Save(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, err := json.MarshalIndent(s.snapshot, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Load restores a checkpoint written by Save. A checkpoint for another symbol
// or with an inconsistent trade state is rejected.
func (s *Store) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return err
	}
	if !snapshot.Trade.Valid() {
		return fmt.Errorf("checkpoint %s: is_open=%t disagrees with entry_price", path, snapshot.Trade.IsOpen)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshot.Symbol != "" && snapshot.Symbol != s.snapshot.Symbol {
		return fmt.Errorf("checkpoint %s is for %s, not %s", path, snapshot.Symbol, s.snapshot.Symbol)
	}
	s.snapshot = snapshot
	return nil
}
