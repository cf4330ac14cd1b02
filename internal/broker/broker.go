package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/shopspring/decimal"
)

// ErrOrderSubmission means the order did not reach the broker and must be
// treated as not having happened.
var ErrOrderSubmission = errors.New("order submission failed")

type OrderRequest struct {
	Symbol        string
	Qty           int
	Side          alpaca.Side
	Type          alpaca.OrderType
	TimeInForce   alpaca.TimeInForce
	ClientOrderID string
}

type OrderRef struct {
	ID            string
	ClientOrderID string
	Status        string
}

type Position struct {
	Symbol   string
	Qty      decimal.Decimal
	AvgEntry decimal.Decimal
}

type Account struct {
	Equity      decimal.Decimal
	BuyingPower decimal.Decimal
}

type Client struct {
	client *alpaca.Client
}

func New(apiKey, apiSecret, baseURL string) *Client {
	opts := alpaca.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
		BaseURL:   baseURL,
	}
	return &Client{client: alpaca.NewClient(opts)}
}

func (c *Client) PlaceOrder(ctx context.Context, req OrderRequest) (OrderRef, error) {
	if err := ctx.Err(); err != nil {
		return OrderRef{}, fmt.Errorf("%w: %w", ErrOrderSubmission, err)
	}
	qty := decimal.NewFromInt(int64(req.Qty))
	order, err := c.client.PlaceOrder(alpaca.PlaceOrderRequest{
		Symbol:        req.Symbol,
		Qty:           &qty,
		Side:          req.Side,
		Type:          req.Type,
		TimeInForce:   req.TimeInForce,
		ClientOrderID: req.ClientOrderID,
	})
	if err != nil {
		slog.Error("place order failed", "side", req.Side, "symbol", req.Symbol, "qty", req.Qty, "type", req.Type, "error", err)
		return OrderRef{}, fmt.Errorf("%w: %s %d %s: %w", ErrOrderSubmission, req.Side, req.Qty, req.Symbol, err)
	}

	slog.Info("place order success", "order_id", order.ID, "side", req.Side, "symbol", req.Symbol, "qty", req.Qty, "type", req.Type, "status", order.Status)
	return OrderRef{
		ID:            order.ID,
		ClientOrderID: order.ClientOrderID,
		Status:        string(order.Status),
	}, nil
}

// Position returns the broker-side position, or a zero quantity when the
// broker reports none.
func (c *Client) Position(ctx context.Context, symbol string) (Position, error) {
	pos, err := c.client.GetPosition(symbol)
	if err != nil {
		var apiErr *alpaca.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return Position{Symbol: symbol}, nil
		}
		slog.Error("fetch position failed", "symbol", symbol, "error", err)
		return Position{}, err
	}
	slog.Info("position fetched", "symbol", symbol, "qty", pos.Qty.String(), "avg_entry", pos.AvgEntryPrice.String())
	return Position{
		Symbol:   pos.Symbol,
		Qty:      pos.Qty,
		AvgEntry: pos.AvgEntryPrice,
	}, nil
}

func (c *Client) Account(ctx context.Context) (Account, error) {
	acct, err := c.client.GetAccount()
	if err != nil {
		slog.Error("fetch account failed", "error", err)
		return Account{}, err
	}
	slog.Info("account fetched", "equity", acct.Equity.StringFixed(2), "buying_power", acct.BuyingPower.StringFixed(2))
	return Account{Equity: acct.Equity, BuyingPower: acct.BuyingPower}, nil
}

func ParseOrderType(value string) (alpaca.OrderType, error) {
	switch value {
	case "market":
		return alpaca.Market, nil
	case "limit":
		return alpaca.Limit, nil
	default:
		return "", fmt.Errorf("unsupported order type: %s", value)
	}
}

// ParseTimeInForce accepts the durations that make sense for market orders.
func ParseTimeInForce(value string) (alpaca.TimeInForce, error) {
	switch value {
	case "day":
		return alpaca.Day, nil
	case "gtc":
		return alpaca.GTC, nil
	case "ioc":
		return alpaca.IOC, nil
	default:
		return "", fmt.Errorf("unsupported time in force: %s", value)
	}
}
