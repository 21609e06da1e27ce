package exchange

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"

	"candlebot/internal/candle"
	"candlebot/pkg/logger"
)

// BinanceExchange implements Exchange against the Binance spot API.
type BinanceExchange struct {
	client *binance.Client
}

func NewBinance(apiKey, secretKey string, testnet bool) *BinanceExchange {
	binance.UseTestnet = testnet
	return &BinanceExchange{
		client: binance.NewClient(apiKey, secretKey),
	}
}

func (b *BinanceExchange) Name() string { return "binance" }

func (b *BinanceExchange) FetchCandles(ctx context.Context, symbol, interval string, limit int) ([]candle.Candle, error) {
	klines, err := b.client.NewKlinesService().
		Symbol(symbol).
		Interval(interval).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching klines: %w", err)
	}

	candles := make([]candle.Candle, 0, len(klines))
	for _, k := range klines {
		c, err := klineToCandle(k, symbol, interval)
		if err != nil {
			logger.Warnf("Exchange | Skipping malformed kline at %d: %v", k.OpenTime, err)
			continue
		}
		candles = append(candles, c)
	}
	return candles, nil
}

func (b *BinanceExchange) FetchPrice(ctx context.Context, symbol string) (float64, error) {
	prices, err := b.client.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetching ticker price: %w", err)
	}
	if len(prices) == 0 {
		return 0, fmt.Errorf("no ticker price for %s", symbol)
	}
	price, err := strconv.ParseFloat(prices[0].Price, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing ticker price %q: %w", prices[0].Price, err)
	}
	return price, nil
}

func (b *BinanceExchange) SubmitMarketOrder(ctx context.Context, symbol string, side Side, quantity float64) (Order, error) {
	resp, err := b.client.NewCreateOrderService().
		Symbol(symbol).
		Side(binance.SideType(side)).
		Type(binance.OrderTypeMarket).
		Quantity(strconv.FormatFloat(quantity, 'f', -1, 64)).
		Do(ctx)
	if err != nil {
		return Order{}, fmt.Errorf("submitting %s order: %w", side, err)
	}

	executedQty, _ := strconv.ParseFloat(resp.ExecutedQuantity, 64)
	quoteQty, _ := strconv.ParseFloat(resp.CummulativeQuoteQuantity, 64)

	order := Order{
		OrderID:     strconv.FormatInt(resp.OrderID, 10),
		Symbol:      resp.Symbol,
		Side:        side,
		Status:      string(resp.Status),
		ExecutedQty: executedQty,
	}

	// Average fill price: prefer the cumulative quote amount, fall back to
	// the first reported fill.
	if executedQty > 0 && quoteQty > 0 {
		order.ExecutedPrice = quoteQty / executedQty
	} else if len(resp.Fills) > 0 {
		order.ExecutedPrice, _ = strconv.ParseFloat(resp.Fills[0].Price, 64)
	}
	return order, nil
}

func klineToCandle(k *binance.Kline, symbol, interval string) (candle.Candle, error) {
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
		Symbol:   symbol,
		Interval: interval,
	}
	if err := c.Validate(); err != nil {
		return candle.Candle{}, err
	}
	return c, nil
}
