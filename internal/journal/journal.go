// Package journal
package journal

import (
	"context"
	"time"

	"candlebot/internal/indicator"
)

// Trade is a persisted record of one executed entry or exit.
type Trade struct {
	ID         int64              `json:"id"`
	Time       time.Time          `json:"time"`
	Symbol     string             `json:"symbol"`
	Side       string             `json:"side"` // "BUY" or "SELL"
	Price      float64            `json:"price"`
	Quantity   float64            `json:"quantity"`
	Profit     float64            `json:"profit"` // sells only
	Reason     string             `json:"reason"` // sells only
	OrderID    string             `json:"order_id"`
	Indicators indicator.Snapshot `json:"indicators"` // buys only
}

// Event is a journaled non-trade occurrence (state changes, errors, etc.).
type Event struct {
	Time        time.Time      `json:"time"`
	Type        string         `json:"type"` // e.g. "feed", "order", "state"
	Description string         `json:"description"`
	Data        map[string]any `json:"data"`
}

// Journaler persists trades and events. Implementations are fire-and-forget
// from the decision path: callers log failures and move on.
type Journaler interface {
	RecordTrade(ctx context.Context, t Trade) error
	LogEvent(ctx context.Context, e Event) error
	GetTrades(ctx context.Context, start, end time.Time) ([]Trade, error)
	Close() error
}
