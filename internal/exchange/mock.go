package exchange

import (
	"context"
	"sync"

	"candlebot/internal/candle"
)

// MockExchange is a scripted Exchange implementation for tests.
type MockExchange struct {
	mu sync.Mutex

	Candles    []candle.Candle
	CandlesErr error

	Price    float64
	PriceErr error

	// Orders are popped front-to-back per SubmitMarketOrder call; when
	// exhausted, OrderResp/OrderErr are used.
	Orders    []Order
	OrderResp Order
	OrderErr  error

	Submitted []Order
}

func (m *MockExchange) Name() string { return "mock" }

func (m *MockExchange) FetchCandles(ctx context.Context, symbol, interval string, limit int) ([]candle.Candle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CandlesErr != nil {
		return nil, m.CandlesErr
	}
	if limit < len(m.Candles) {
		return m.Candles[len(m.Candles)-limit:], nil
	}
	return m.Candles, nil
}

func (m *MockExchange) FetchPrice(ctx context.Context, symbol string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Price, m.PriceErr
}

func (m *MockExchange) SubmitMarketOrder(ctx context.Context, symbol string, side Side, quantity float64) (Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	resp := m.OrderResp
	err := m.OrderErr
	if len(m.Orders) > 0 {
		resp = m.Orders[0]
		m.Orders = m.Orders[1:]
		err = nil
	}
	if err != nil {
		return Order{}, err
	}

	resp.Symbol = symbol
	resp.Side = side
	if resp.ExecutedQty == 0 {
		resp.ExecutedQty = quantity
	}
	m.Submitted = append(m.Submitted, resp)
	return resp, nil
}

// SubmittedOrders returns a copy of all orders accepted so far.
func (m *MockExchange) SubmittedOrders() []Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Order, len(m.Submitted))
	copy(out, m.Submitted)
	return out
}
