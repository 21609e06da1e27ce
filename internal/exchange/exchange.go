// Package exchange
package exchange

import (
	"context"

	"candlebot/internal/candle"
)

// Side of a market order.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// Order is the venue's response to a submitted market order.
type Order struct {
	OrderID       string  `json:"order_id"`
	Symbol        string  `json:"symbol"`
	Side          Side    `json:"side"`
	Status        string  `json:"status"`
	ExecutedPrice float64 `json:"executed_price"`
	ExecutedQty   float64 `json:"executed_qty"`
}

// Filled reports whether the order executed completely.
func (o Order) Filled() bool { return o.Status == "FILLED" }

// Exchange is the interface to the trading venue's REST API.
type Exchange interface {
	Name() string
	// FetchCandles returns up to limit of the most recent closed candles,
	// oldest first.
	FetchCandles(ctx context.Context, symbol, interval string, limit int) ([]candle.Candle, error)
	// FetchPrice returns the last traded price for the symbol.
	FetchPrice(ctx context.Context, symbol string) (float64, error)
	// SubmitMarketOrder submits an immediate market order and waits for the
	// venue's response. A non-FILLED status is returned without error.
	SubmitMarketOrder(ctx context.Context, symbol string, side Side, quantity float64) (Order, error)
}
