package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"

	"sigtrader/internal/broker"
	"sigtrader/internal/md"
	"sigtrader/internal/risk"
	"sigtrader/internal/state"
	"sigtrader/internal/strategy"
)

type Action string

const (
	ActionHold Action = "hold"
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
)

const (
	ResultHold      = "hold"
	ResultSubmitted = "order_submitted"
	ResultFailed    = "order_failed"
	ResultRejected  = "rejected"
)

const (
	ReasonSignalBuy  = "signal_buy"
	ReasonSignalSell = "signal_sell"
	ReasonStopLoss   = "stop_loss"
	ReasonFlat       = "flat_no_entry"
	ReasonHolding    = "holding"
)

// ErrEntryRejected wraps a risk gate rejection of a buy. The position is
// unchanged and the next cycle re-evaluates.
var ErrEntryRejected = errors.New("entry rejected")

type OrderPlacer interface {
	PlaceOrder(ctx context.Context, req broker.OrderRequest) (broker.OrderRef, error)
}

type MachineConfig struct {
	Symbol      string
	Qty         int
	OrderType   alpaca.OrderType
	TimeInForce alpaca.TimeInForce
	StopLoss    float64
	Gate        risk.Gate
	RunID       string
}

type Outcome struct {
	Action Action
	Reason string
	Result string
	Order  broker.OrderRef
	Trade  state.TradeState
}

// Machine is the Flat/Long position state machine. It is the only writer of
// the store's trade state, and each Step submits at most one order.
type Machine struct {
	cfg         MachineConfig
	orders      OrderPlacer
	store       *state.Store
	now         func() time.Time
	orderSeqNum uint64
}

func NewMachine(cfg MachineConfig, orders OrderPlacer, store *state.Store) *Machine {
	return &Machine{
		cfg:    cfg,
		orders: orders,
		store:  store,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (m *Machine) Trade() state.TradeState {
	return m.store.Trade()
}

// Step applies signal and the stop-loss rule to the current trade state using
// bar's close. A failed or rejected order leaves the state untouched.
func (m *Machine) Step(ctx context.Context, signal strategy.Signal, bar md.Bar) (Outcome, error) {
	trade := m.store.Trade()
	action, reason := m.decide(signal, bar.Close, trade)
	outcome := Outcome{Action: action, Reason: reason, Result: ResultHold, Trade: trade}
	if action == ActionHold {
		return outcome, nil
	}

	if action == ActionBuy {
		if err := m.cfg.Gate.Evaluate(m.cfg.Qty, bar.Close); err != nil {
			outcome.Result = ResultRejected
			return outcome, fmt.Errorf("%w: %w", ErrEntryRejected, err)
		}
	}

	req := m.buildOrder(action)
	ref, err := m.orders.PlaceOrder(ctx, req)
	if err != nil {
		outcome.Result = ResultFailed
		if !errors.Is(err, broker.ErrOrderSubmission) {
			err = fmt.Errorf("%w: %w", broker.ErrOrderSubmission, err)
		}
		return outcome, err
	}

	switch action {
	case ActionBuy:
		m.store.Open(bar.Close, m.now())
	case ActionSell:
		m.store.Close(m.now())
	}
	outcome.Result = ResultSubmitted
	outcome.Order = ref
	outcome.Trade = m.store.Trade()
	slog.Info("position transition", "symbol", m.cfg.Symbol, "action", action, "reason", reason, "close", bar.Close, "order_id", ref.ID, "is_open", outcome.Trade.IsOpen)
	return outcome, nil
}

// decide picks at most one action. While long, a stop-loss breach wins over
// the signal so a same-cycle Sell does not produce a second exit.
func (m *Machine) decide(signal strategy.Signal, price float64, trade state.TradeState) (Action, string) {
	if !trade.IsOpen {
		if signal == strategy.Buy {
			return ActionBuy, ReasonSignalBuy
		}
		return ActionHold, ReasonFlat
	}
	if trade.EntryPrice != nil && risk.StopLossTriggered(*trade.EntryPrice, price, m.cfg.StopLoss) {
		return ActionSell, ReasonStopLoss
	}
	if signal == strategy.Sell {
		return ActionSell, ReasonSignalSell
	}
	return ActionHold, ReasonHolding
}

func (m *Machine) buildOrder(action Action) broker.OrderRequest {
	side := alpaca.Buy
	if action == ActionSell {
		side = alpaca.Sell
	}
	return broker.OrderRequest{
		Symbol:        m.cfg.Symbol,
		Qty:           m.cfg.Qty,
		Side:          side,
		Type:          m.cfg.OrderType,
		TimeInForce:   m.cfg.TimeInForce,
		ClientOrderID: m.nextClientOrderID(),
	}
}

func (m *Machine) nextClientOrderID() string {
	seq := atomic.AddUint64(&m.orderSeqNum, 1)
	return fmt.Sprintf("%s-%d", m.cfg.RunID, seq)
}
