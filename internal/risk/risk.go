package risk

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
)

var (
	ErrKillSwitch          = errors.New("kill_switch_enabled")
	ErrMaxNotionalExceeded = errors.New("max_notional_exceeded")
	ErrInvalidQuantity     = errors.New("invalid_quantity")
)

// StopLossTriggered reports whether current has fallen to or below entry
// reduced by threshold, a fraction in (0, 1).
func StopLossTriggered(entry, current, threshold float64) bool {
	return current <= entry*(1-threshold)
}

func ValidateStopLoss(threshold float64) error {
	if !(threshold > 0 && threshold < 1) {
		return fmt.Errorf("stop-loss must be in (0, 1), got %v", threshold)
	}
	return nil
}

// Gate is a pre-trade check on entries. Exits are never blocked so an open
// position can always be closed.
type Gate struct {
	KillSwitch  bool
	MaxNotional float64
}

func (g Gate) Evaluate(qty int, price float64) error {
	if g.KillSwitch {
		slog.Info("risk rejected", "reason", "kill_switch_enabled")
		return ErrKillSwitch
	}
	if qty <= 0 {
		slog.Info("risk rejected", "reason", "invalid_quantity", "qty", qty)
		return ErrInvalidQuantity
	}
	if g.MaxNotional <= 0 {
		return nil
	}
	notional := decimal.NewFromFloat(price).Mul(decimal.NewFromInt(int64(qty)))
	if notional.GreaterThan(decimal.NewFromFloat(g.MaxNotional)) {
		slog.Info("risk rejected", "reason", "max_notional_exceeded", "notional", notional.StringFixed(2), "max", g.MaxNotional)
		return fmt.Errorf("%w: %s > %.2f", ErrMaxNotionalExceeded, notional.StringFixed(2), g.MaxNotional)
	}
	slog.Debug("risk approved", "qty", qty, "price", price, "notional", notional.StringFixed(2))
	return nil
}
