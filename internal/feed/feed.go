// Package feed
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"candlebot/internal/candle"
	"candlebot/internal/config"
	"candlebot/internal/exchange"
	"candlebot/pkg/logger"
)

// ConnState is the state of the feed's transport connection.
type ConnState int

const (
	Disconnected ConnState = iota
	Connecting
	Connected
)

func (s ConnState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Conn is the subset of the websocket connection the feed depends on.
// Tests inject a fake implementation.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetPingHandler(h func(appData string) error)
	Close() error
}

// Dialer opens a transport connection to the stream URL.
type Dialer func(ctx context.Context, url string) (Conn, error)

// Evaluator consumes the window after each admitted closed candle.
type Evaluator interface {
	OnClosedCandle(ctx context.Context, w *candle.Window)
}

// Feed owns the single live kline subscription for one symbol/interval.
// It backfills the window over REST, then keeps exactly one stream
// connection alive for the process lifetime, reconnecting after a fixed
// delay on close, error or watchdog timeout. Closed candles are admitted
// into the window and evaluated synchronously on the read-loop goroutine,
// so evaluation never overlaps with itself.
type Feed struct {
	cfg      config.FeedConfig
	symbol   string
	interval string

	window    *candle.Window
	evaluator Evaluator
	ex        exchange.Exchange
	backfill  int

	dial Dialer

	mu          sync.Mutex
	state       ConnState
	conn        Conn
	lastMessage time.Time
	reconnects  int
}

func New(cfg config.FeedConfig, symbol, interval string, window *candle.Window,
	evaluator Evaluator, ex exchange.Exchange, backfillLimit int,
) *Feed {
	return &Feed{
		cfg:       cfg,
		symbol:    symbol,
		interval:  interval,
		window:    window,
		evaluator: evaluator,
		ex:        ex,
		backfill:  backfillLimit,
		dial:      dialWebsocket,
		state:     Disconnected,
	}
}

// SetDialer replaces the transport dialer. Must be called before Start.
func (f *Feed) SetDialer(d Dialer) { f.dial = d }

// Start backfills the window and launches the connection and watchdog
// loops. Backfill failure is soft: the feed proceeds with an empty window
// and accumulates history from live candles only.
func (f *Feed) Start(ctx context.Context) {
	f.backfillWindow(ctx)
	go f.watchdog(ctx)
	go f.run(ctx)
}

// State returns the current connection state.
func (f *Feed) State() ConnState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Reconnects returns how many times the feed has re-entered the connect
// path after the initial attempt.
func (f *Feed) Reconnects() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reconnects
}

// LastMessageAt returns the time the last transport message was received.
func (f *Feed) LastMessageAt() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastMessage
}

func (f *Feed) streamAddr() string {
	return fmt.Sprintf("%s/%s@kline_%s", f.cfg.StreamURL, strings.ToLower(f.symbol), f.interval)
}

func (f *Feed) backfillWindow(ctx context.Context) {
	if f.ex == nil || f.backfill <= 0 {
		return
	}
	candles, err := f.ex.FetchCandles(ctx, f.symbol, f.interval, f.backfill)
	if err != nil {
		logger.Warnf("Feed | Backfill failed, starting with empty window: %v", err)
		return
	}
	for _, c := range candles {
		f.window.Append(c)
	}
	logger.Infof("Feed | Backfilled %d candles for %s %s", len(candles), f.symbol, f.interval)
}

// run is the connection loop. The in-memory window is preserved across
// reconnects; candles missed while disconnected are not backfilled.
func (f *Feed) run(ctx context.Context) {
	first := true
	for {
		if ctx.Err() != nil {
			return
		}
		if !first {
			f.mu.Lock()
			f.reconnects++
			f.mu.Unlock()
		}
		first = false

		f.setState(Connecting)
		conn, err := f.dial(ctx, f.streamAddr())
		if err != nil {
			logger.Errorf("Feed | Connect failed: %v", err)
			f.setState(Disconnected)
			if !f.sleep(ctx, f.cfg.ReconnectDelay) {
				return
			}
			continue
		}

		f.attach(conn)
		logger.Infof("Feed | Connected to %s", f.streamAddr())

		f.readLoop(ctx, conn)

		f.detach(conn)
		logger.Warnf("Feed | Disconnected, reconnecting in %v", f.cfg.ReconnectDelay)
		if !f.sleep(ctx, f.cfg.ReconnectDelay) {
			return
		}
	}
}

func (f *Feed) attach(conn Conn) {
	// Venue keepalive pings must be answered immediately on the same
	// connection or the server drops it.
	conn.SetPingHandler(func(appData string) error {
		f.touch()
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(5*time.Second))
	})

	f.mu.Lock()
	f.conn = conn
	f.state = Connected
	f.lastMessage = time.Now()
	f.mu.Unlock()
}

func (f *Feed) detach(conn Conn) {
	conn.Close()
	f.mu.Lock()
	f.conn = nil
	f.state = Disconnected
	f.mu.Unlock()
}

func (f *Feed) readLoop(ctx context.Context, conn Conn) {
	for {
		if ctx.Err() != nil {
			return
		}
		_, msg, err := conn.ReadMessage()
		if err != nil {
			logger.Warnf("Feed | Read error: %v", err)
			return
		}
		f.touch()
		f.handleMessage(ctx, msg)
	}
}

func (f *Feed) touch() {
	f.mu.Lock()
	f.lastMessage = time.Now()
	f.mu.Unlock()
}

func (f *Feed) setState(s ConnState) {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
}

// watchdog force-closes the transport when no message has been observed
// within the silence threshold, even if the transport reports itself
// healthy. The read loop then drives the normal reconnect path.
func (f *Feed) watchdog(ctx context.Context) {
	ticker := time.NewTicker(f.cfg.WatchdogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.mu.Lock()
			silent := f.state == Connected && time.Since(f.lastMessage) > f.cfg.SilenceThreshold
			conn := f.conn
			f.mu.Unlock()

			if silent && conn != nil {
				logger.Warnf("Feed | Watchdog: no message in %v, forcing reconnect", f.cfg.SilenceThreshold)
				conn.Close()
			}
		}
	}
}

func (f *Feed) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

// klineEvent is the venue's kline stream envelope. OHLCV come as strings,
// the open time as milliseconds since epoch.
type klineEvent struct {
	Event string       `json:"e"`
	Kline klinePayload `json:"k"`
}

type klinePayload struct {
	OpenTime int64  `json:"t"`
	Symbol   string `json:"s"`
	Interval string `json:"i"`
	Open     string `json:"o"`
	Close    string `json:"c"`
	High     string `json:"h"`
	Low      string `json:"l"`
	Volume   string `json:"v"`
	Final    bool   `json:"x"`
}

// handleMessage normalizes one raw stream message. Non-final klines are
// skipped; malformed payloads are logged and dropped, never fatal.
func (f *Feed) handleMessage(ctx context.Context, msg []byte) {
	var evt klineEvent
	if err := json.Unmarshal(msg, &evt); err != nil {
		logger.Warnf("Feed | Dropping malformed message: %v", err)
		return
	}
	if evt.Event != "kline" || !evt.Kline.Final {
		return
	}

	c, err := evt.Kline.toCandle()
	if err != nil {
		logger.Warnf("Feed | Dropping invalid kline: %v", err)
		return
	}

	logger.Debugf("Feed | Closed candle %s close=%.6f volume=%.4f",
		c.OpenTime.Format(time.RFC3339), c.Close, c.Volume)

	f.window.Append(c)
	f.evaluator.OnClosedCandle(ctx, f.window)
}

func (k klinePayload) toCandle() (candle.Candle, error) {
	open, err := strconv.ParseFloat(k.Open, 64)
	if err != nil {
		return candle.Candle{}, fmt.Errorf("parsing open %q: %w", k.Open, err)
	}
	high, err := strconv.ParseFloat(k.High, 64)
	if err != nil {
		return candle.Candle{}, fmt.Errorf("parsing high %q: %w", k.High, err)
	}
	low, err := strconv.ParseFloat(k.Low, 64)
	if err != nil {
		return candle.Candle{}, fmt.Errorf("parsing low %q: %w", k.Low, err)
	}
	closePrice, err := strconv.ParseFloat(k.Close, 64)
	if err != nil {
		return candle.Candle{}, fmt.Errorf("parsing close %q: %w", k.Close, err)
	}
	volume, err := strconv.ParseFloat(k.Volume, 64)
	if err != nil {
		return candle.Candle{}, fmt.Errorf("parsing volume %q: %w", k.Volume, err)
	}

	c := candle.Candle{
		OpenTime: time.UnixMilli(k.OpenTime).UTC(),
		Open:     open,
		High:     high,
		Low:      low,
		Close:    closePrice,
		Volume:   volume,
		Symbol:   k.Symbol,
		Interval: k.Interval,
	}
	if err := c.Validate(); err != nil {
		return candle.Candle{}, err
	}
	return c, nil
}

func dialWebsocket(ctx context.Context, url string) (Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}
