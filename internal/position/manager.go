// Package position
package position

import (
	"context"
	"fmt"
	"sync"
	"time"

	"candlebot/internal/candle"
	"candlebot/internal/config"
	"candlebot/internal/exchange"
	"candlebot/internal/indicator"
	"candlebot/internal/journal"
	"candlebot/internal/notifier"
	"candlebot/pkg/logger"
)

// State of the position machine.
type State string

const (
	Flat State = "FLAT"
	Long State = "LONG"
)

// Position is the current holding. Owned exclusively by Manager and mutated
// only on confirmed fills.
type Position struct {
	State         State     `json:"state"`
	EntryPrice    float64   `json:"entry_price"`
	HighWaterMark float64   `json:"high_water_mark"`
	EntryTime     time.Time `json:"entry_time"`
}

// Status is a read-only snapshot served to the control surface.
type Status struct {
	State             State   `json:"state"`
	EntryPrice        float64 `json:"entry_price"`
	CurrentPrice      float64 `json:"current_price"`
	UnrealizedPercent float64 `json:"unrealized_percent"`
	HighWaterMark     float64 `json:"high_water_mark"`
}

// ExitResult reports the outcome of a manual exit request.
type ExitResult struct {
	Status  string          `json:"status"` // "success", "warning" or "error"
	Message string          `json:"message,omitempty"`
	Order   *exchange.Order `json:"order,omitempty"`
}

// Manager evaluates entry/exit rules per closed candle and drives the
// flat/long transition through the exchange. One coarse mutex serializes
// candle evaluation, the price poller, status reads and manual exits.
type Manager struct {
	mu sync.Mutex

	cfg      config.StrategyConfig
	symbol   string
	quantity float64
	params   indicator.Params

	pos           Position
	lastPrice     float64
	lastTradeTime time.Time

	ex      exchange.Exchange
	journal journal.Journaler
	notif   notifier.Notifier

	now func() time.Time
}

func NewManager(cfg config.StrategyConfig, symbol string, quantity float64,
	ex exchange.Exchange, j journal.Journaler, n notifier.Notifier,
) *Manager {
	if n == nil {
		n = notifier.Nop{}
	}
	return &Manager{
		cfg:      cfg,
		symbol:   symbol,
		quantity: quantity,
		params: indicator.Params{
			FastPeriod:   cfg.FastPeriod,
			SlowPeriod:   cfg.SlowPeriod,
			VolumePeriod: cfg.VolumePeriod,
			RSIPeriod:    cfg.RSIPeriod,
		},
		pos:     Position{State: Flat},
		ex:      ex,
		journal: j,
		notif:   n,
		now:     time.Now,
	}
}

// OnClosedCandle evaluates the rule set against the window after a closed
// candle was appended. Called synchronously from the feed's read loop;
// never invoked concurrently with itself.
func (m *Manager) OnClosedCandle(ctx context.Context, w *candle.Window) {
	m.mu.Lock()
	defer m.mu.Unlock()

	last, ok := w.Last()
	if !ok {
		return
	}
	m.lastPrice = last.Close

	snap := indicator.Compute(w, m.params)
	if !snap.Ready {
		logger.Debugf("Position | Warming up: %d/%d candles", w.Len(), m.params.Warmup())
		return
	}

	switch m.pos.State {
	case Flat:
		m.evaluateEntry(ctx, last, snap)
	case Long:
		// Ratchet the peak before exit checks so the trailing stop sees
		// the true running high.
		if last.Close > m.pos.HighWaterMark {
			m.pos.HighWaterMark = last.Close
		}
		m.evaluateExit(ctx, last, snap)
	}
}

// OnPrice records the latest polled price and refines the high-water mark
// while long. Shares the evaluation mutex.
func (m *Manager) OnPrice(price float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastPrice = price
	if m.pos.State == Long && price > m.pos.HighWaterMark {
		m.pos.HighWaterMark = price
	}
}

// Status returns a read-only snapshot of the position and last known price.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Status{
		State:         m.pos.State,
		EntryPrice:    m.pos.EntryPrice,
		CurrentPrice:  m.lastPrice,
		HighWaterMark: m.pos.HighWaterMark,
	}
	if m.pos.State == Long && m.pos.EntryPrice > 0 && m.lastPrice > 0 {
		s.UnrealizedPercent = (m.lastPrice/m.pos.EntryPrice - 1) * 100
	}
	return s
}

// ForceExit sells the open position at market with reason "manual". When
// the position is already flat it returns a warning, not an error.
func (m *Manager) ForceExit(ctx context.Context) ExitResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pos.State != Long {
		return ExitResult{Status: "warning", Message: "no open position to sell"}
	}

	price := m.lastPrice
	if price <= 0 {
		price = m.pos.EntryPrice
	}
	order, err := m.sell(ctx, price, "manual", indicator.Snapshot{})
	if err != nil {
		return ExitResult{Status: "error", Message: err.Error()}
	}
	return ExitResult{Status: "success", Order: &order}
}

func (m *Manager) evaluateEntry(ctx context.Context, c candle.Candle, snap indicator.Snapshot) {
	if !m.lastTradeTime.IsZero() && m.now().Sub(m.lastTradeTime) < m.cfg.TradeCooldown {
		return
	}

	uptrend := snap.FastSMA > snap.SlowSMA &&
		snap.FastSMA-snap.PrevFastSMA > m.cfg.MinTrendStrength
	highVolume := c.Volume > snap.VolumeSMA*m.cfg.MinVolumeFactor
	obvRising := snap.OBVIncreasing()
	rsiOK := snap.RSI > 50 && snap.RSI < m.cfg.RSIOverbought
	aboveFast := c.Close > snap.FastSMA
	bullish := c.IsBullish()

	if !(uptrend && highVolume && obvRising && rsiOK && aboveFast && bullish) {
		return
	}

	logger.Infof("Position | BUY signal at %.6f (fast=%.4f slow=%.4f rsi=%.1f vol=%.2f avgVol=%.2f)",
		c.Close, snap.FastSMA, snap.SlowSMA, snap.RSI, c.Volume, snap.VolumeSMA)

	order, err := m.ex.SubmitMarketOrder(ctx, m.symbol, exchange.Buy, m.quantity)
	if err != nil {
		logger.Errorf("Position | BUY submission failed: %v", err)
		m.logEvent(ctx, "order", "buy_submission_failed", map[string]any{"error": err.Error()})
		return
	}
	if !order.Filled() {
		logger.Warnf("Position | BUY not filled (status=%s), staying flat", order.Status)
		m.logEvent(ctx, "order", "buy_not_filled", map[string]any{"status": order.Status})
		return
	}

	// The fill price, not the signal price, is the source of truth for the
	// entry.
	fill := order.ExecutedPrice
	if fill <= 0 {
		logger.Warnf("Position | BUY fill price missing, falling back to close %.6f", c.Close)
		fill = c.Close
	}

	now := m.now()
	m.pos = Position{State: Long, EntryPrice: fill, HighWaterMark: fill, EntryTime: now}
	m.lastTradeTime = now

	logger.Infof("Position | BUY filled: %.6f x %.6f (order %s)", fill, order.ExecutedQty, order.OrderID)

	m.recordTrade(ctx, journal.Trade{
		Time:       now,
		Symbol:     m.symbol,
		Side:       string(exchange.Buy),
		Price:      fill,
		Quantity:   order.ExecutedQty,
		OrderID:    order.OrderID,
		Indicators: snap,
	})
	m.notify(fmt.Sprintf("BUY %s at %.6f (qty %.6f)", m.symbol, fill, order.ExecutedQty))
}

func (m *Manager) evaluateExit(ctx context.Context, c candle.Candle, snap indicator.Snapshot) {
	entry := m.pos.EntryPrice
	hwm := m.pos.HighWaterMark

	// First true reason wins for reporting; the sell fires regardless of
	// which triggered.
	var reason string
	switch {
	case c.Close <= entry*(1-m.cfg.StopLossPercent):
		reason = "stop-loss"
	case c.Close >= entry*(1+m.cfg.TakeProfitPercent):
		reason = "take-profit"
	case c.Close <= hwm*(1-m.cfg.TrailingStopPercent):
		reason = "trailing-stop"
	case snap.RSI >= m.cfg.RSIOverbought:
		reason = "rsi-overbought"
	case snap.FastSMA < snap.SlowSMA:
		reason = "trend-reversal"
	default:
		return
	}

	logger.Infof("Position | SELL signal (%s) at %.6f (entry=%.6f hwm=%.6f rsi=%.1f)",
		reason, c.Close, entry, hwm, snap.RSI)

	if _, err := m.sell(ctx, c.Close, reason, snap); err != nil {
		logger.Errorf("Position | SELL failed: %v", err)
	}
}

// sell submits a market sell and, on fill, resets the position. Callers
// must hold the mutex.
func (m *Manager) sell(ctx context.Context, price float64, reason string, snap indicator.Snapshot) (exchange.Order, error) {
	order, err := m.ex.SubmitMarketOrder(ctx, m.symbol, exchange.Sell, m.quantity)
	if err != nil {
		m.logEvent(ctx, "order", "sell_submission_failed", map[string]any{"error": err.Error(), "reason": reason})
		return exchange.Order{}, fmt.Errorf("submitting sell: %w", err)
	}
	if !order.Filled() {
		m.logEvent(ctx, "order", "sell_not_filled", map[string]any{"status": order.Status, "reason": reason})
		return exchange.Order{}, fmt.Errorf("sell not filled: status %s", order.Status)
	}

	fill := order.ExecutedPrice
	if fill <= 0 {
		fill = price
	}
	profit := (fill - m.pos.EntryPrice) * order.ExecutedQty

	now := m.now()
	entry := m.pos.EntryPrice
	m.pos = Position{State: Flat}
	m.lastTradeTime = now

	logger.Infof("Position | SELL filled (%s): %.6f x %.6f, profit %.6f (order %s)",
		reason, fill, order.ExecutedQty, profit, order.OrderID)

	m.recordTrade(ctx, journal.Trade{
		Time:     now,
		Symbol:   m.symbol,
		Side:     string(exchange.Sell),
		Price:    fill,
		Quantity: order.ExecutedQty,
		Profit:   profit,
		Reason:   reason,
		OrderID:  order.OrderID,
	})
	m.notify(fmt.Sprintf("SELL %s at %.6f (%s), entry %.6f, profit %.6f",
		m.symbol, fill, reason, entry, profit))

	return order, nil
}

// recordTrade journals a trade; failures are logged, never propagated to
// the decision path.
func (m *Manager) recordTrade(ctx context.Context, t journal.Trade) {
	if m.journal == nil {
		return
	}
	if err := m.journal.RecordTrade(ctx, t); err != nil {
		logger.Errorf("Position | Failed to journal %s trade: %v", t.Side, err)
	}
}

func (m *Manager) logEvent(ctx context.Context, typ, desc string, data map[string]any) {
	if m.journal == nil {
		return
	}
	e := journal.Event{Time: m.now(), Type: typ, Description: desc, Data: data}
	if err := m.journal.LogEvent(ctx, e); err != nil {
		logger.Errorf("Position | Failed to journal event %s: %v", desc, err)
	}
}

func (m *Manager) notify(msg string) {
	go func() {
		if err := m.notif.SendWithRetry(msg); err != nil {
			logger.Warnf("Position | Notification failed: %v", err)
		}
	}()
}
