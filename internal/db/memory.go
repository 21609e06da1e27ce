package db

import (
	"context"
	"sync"
	"time"

	"candlebot/internal/journal"
)

// MemoryJournal is an in-memory Journaler used in tests and when no
// database is configured.
type MemoryJournal struct {
	mu     sync.RWMutex
	trades []journal.Trade
	events []journal.Event
	nextID int64
}

func NewMemory() *MemoryJournal {
	return &MemoryJournal{
		trades: make([]journal.Trade, 0, 64),
		events: make([]journal.Event, 0, 256),
		nextID: 1,
	}
}

func (m *MemoryJournal) RecordTrade(ctx context.Context, t journal.Trade) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.ID = m.nextID
	m.nextID++
	m.trades = append(m.trades, t)
	return nil
}

func (m *MemoryJournal) LogEvent(ctx context.Context, e journal.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

func (m *MemoryJournal) GetTrades(ctx context.Context, start, end time.Time) ([]journal.Trade, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []journal.Trade
	for _, t := range m.trades {
		if !t.Time.Before(start) && !t.Time.After(end) {
			out = append(out, t)
		}
	}
	return out, nil
}

// Events returns a copy of all logged events.
func (m *MemoryJournal) Events() []journal.Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]journal.Event, len(m.events))
	copy(out, m.events)
	return out
}

func (m *MemoryJournal) Close() error { return nil }
