package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"
	"time"

	"candlebot/internal/api"
	"candlebot/internal/candle"
	"candlebot/internal/config"
	"candlebot/internal/db"
	"candlebot/internal/exchange"
	"candlebot/internal/feed"
	"candlebot/internal/journal"
	"candlebot/internal/notifier"
	"candlebot/internal/position"
	"candlebot/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Init(true)
		logger.Fatalf("Main | Invalid configuration: %v", err)
	}

	logger.Init(cfg.Debug)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var j journal.Journaler
	if cfg.DB.ConnStr != "" {
		pg, err := db.NewPostgres(cfg.DB.ConnStr, cfg.DB.MaxOpen, cfg.DB.MaxIdle)
		if err != nil {
			logger.Fatalf("Main | Failed to open journal database: %v", err)
		}
		j = pg
	} else {
		logger.Warnf("Main | No database configured, journaling in memory only")
		j = db.NewMemory()
	}
	defer j.Close()

	var n notifier.Notifier = notifier.Nop{}
	if cfg.Telegram.Token != "" && cfg.Telegram.ChatID != "" {
		n = notifier.NewTelegramNotifier(cfg.Telegram.Token, cfg.Telegram.ChatID,
			cfg.Telegram.Retries, cfg.Telegram.Delay)
	}

	ex := exchange.NewBinance(cfg.Exchange.APIKey, cfg.Exchange.SecretKey, cfg.Exchange.Testnet)

	manager := position.NewManager(cfg.Strategy, cfg.Trading.Symbol, cfg.Trading.Quantity, ex, j, n)

	window := candle.NewWindow(cfg.Trading.WindowSize)
	marketFeed := feed.New(cfg.Feed, cfg.Trading.Symbol, cfg.Trading.Interval,
		window, manager, ex, cfg.Trading.BackfillLimit)

	logger.Infof("Main | Starting %s %s on %s (testnet=%t)",
		cfg.Trading.Symbol, cfg.Trading.Interval, ex.Name(), cfg.Exchange.Testnet)

	marketFeed.Start(ctx)
	go pollPrices(ctx, cfg, ex, manager)

	server := api.NewServer(cfg.API, manager, j, marketFeed, cfg.Debug)
	go func() {
		if err := server.Start(); err != nil {
			logger.Errorf("Main | API server failed: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Infof("Main | Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Main | API shutdown failed: %v", err)
	}
}

// pollPrices refreshes the last price between candle closes so the
// trailing stop tracks intrabar peaks.
func pollPrices(ctx context.Context, cfg config.Config, ex exchange.Exchange, m *position.Manager) {
	if cfg.Feed.PricePollInterval <= 0 {
		return
	}
	ticker := time.NewTicker(cfg.Feed.PricePollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			price, err := ex.FetchPrice(ctx, cfg.Trading.Symbol)
			if err != nil {
				logger.Debugf("Main | Price poll failed: %v", err)
				continue
			}
			m.OnPrice(price)
		}
	}
}
