// Package db
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"candlebot/internal/indicator"
	"candlebot/internal/journal"
)

// PostgresJournal persists trades and events in Postgres.
type PostgresJournal struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS trades (
	id          BIGSERIAL PRIMARY KEY,
	time        TIMESTAMPTZ NOT NULL,
	symbol      TEXT NOT NULL,
	side        TEXT NOT NULL,
	price       DOUBLE PRECISION NOT NULL,
	quantity    DOUBLE PRECISION NOT NULL,
	profit      DOUBLE PRECISION NOT NULL DEFAULT 0,
	reason      TEXT NOT NULL DEFAULT '',
	order_id    TEXT NOT NULL DEFAULT '',
	indicators  JSONB
);
CREATE INDEX IF NOT EXISTS idx_trades_time ON trades (time);

CREATE TABLE IF NOT EXISTS events (
	id          BIGSERIAL PRIMARY KEY,
	time        TIMESTAMPTZ NOT NULL,
	type        TEXT NOT NULL,
	description TEXT NOT NULL,
	data        JSONB
);
CREATE INDEX IF NOT EXISTS idx_events_time ON events (time);
`

// NewPostgres opens a connection pool and bootstraps the schema.
func NewPostgres(connStr string, maxOpen, maxIdle int) (*PostgresJournal, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &PostgresJournal{db: db}, nil
}

func (p *PostgresJournal) RecordTrade(ctx context.Context, t journal.Trade) error {
	indicators, err := json.Marshal(t.Indicators)
	if err != nil {
		return fmt.Errorf("marshaling indicators: %w", err)
	}
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO trades (time, symbol, side, price, quantity, profit, reason, order_id, indicators)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		t.Time.UTC(), t.Symbol, t.Side, t.Price, t.Quantity, t.Profit, t.Reason, t.OrderID, indicators)
	if err != nil {
		return fmt.Errorf("inserting trade: %w", err)
	}
	return nil
}

func (p *PostgresJournal) LogEvent(ctx context.Context, e journal.Event) error {
	data, err := json.Marshal(e.Data)
	if err != nil {
		return fmt.Errorf("marshaling event data: %w", err)
	}
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO events (time, type, description, data) VALUES ($1, $2, $3, $4)`,
		e.Time.UTC(), e.Type, e.Description, data)
	if err != nil {
		return fmt.Errorf("inserting event: %w", err)
	}
	return nil
}

func (p *PostgresJournal) GetTrades(ctx context.Context, start, end time.Time) ([]journal.Trade, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, time, symbol, side, price, quantity, profit, reason, order_id, indicators
		 FROM trades WHERE time >= $1 AND time <= $2 ORDER BY time`,
		start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("querying trades: %w", err)
	}
	defer rows.Close()

	var trades []journal.Trade
	for rows.Next() {
		var t journal.Trade
		var indicators []byte
		if err := rows.Scan(&t.ID, &t.Time, &t.Symbol, &t.Side, &t.Price, &t.Quantity,
			&t.Profit, &t.Reason, &t.OrderID, &indicators); err != nil {
			return nil, fmt.Errorf("scanning trade: %w", err)
		}
		if len(indicators) > 0 {
			var snap indicator.Snapshot
			if err := json.Unmarshal(indicators, &snap); err == nil {
				t.Indicators = snap
			}
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

func (p *PostgresJournal) Close() error { return p.db.Close() }
