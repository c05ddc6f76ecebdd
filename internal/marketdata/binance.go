package marketdata

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"golang.org/x/time/rate"

	"crypto-signal-bot/internal/model"
)

// BinanceProvider implements Provider against the Binance spot REST API.
// A client-side rate limiter keeps us under the exchange weight budget
// even when many markets refresh concurrently.
type BinanceProvider struct {
	client  *binance.Client
	limiter *rate.Limiter
}

// NewBinanceProvider creates a Binance-backed provider. API credentials
// are optional — kline endpoints are public.
func NewBinanceProvider(apiKey, secretKey string) *BinanceProvider {
	client := binance.NewClient(apiKey, secretKey)
	client.HTTPClient = &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	return &BinanceProvider{
		client: client,
		// 10 req/s with burst of 20 stays well under Binance limits.
		limiter: rate.NewLimiter(rate.Limit(10), 20),
	}
}

// Candles fetches klines for the market, ordered ascending by open time.
func (p *BinanceProvider) Candles(ctx context.Context, market model.Market, since time.Time, limit int) ([]model.Candle, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	svc := p.client.NewKlinesService().
		Symbol(market.Symbol()).
		Interval(market.Timeframe)
	if !since.IsZero() {
		svc = svc.StartTime(since.UnixMilli())
	}
	if limit > 0 {
		svc = svc.Limit(limit)
	}

	klines, err := svc.Do(ctx)
	if err != nil {
		if isRateLimit(err) {
			return nil, fmt.Errorf("binance %s: %w", market.Symbol(), ErrRateLimited)
		}
		return nil, fmt.Errorf("binance %s: %v: %w", market.Symbol(), err, ErrDataUnavailable)
	}
	if len(klines) == 0 {
		return nil, fmt.Errorf("binance %s: empty kline response: %w", market.Symbol(), ErrDataUnavailable)
	}

	candles := make([]model.Candle, 0, len(klines))
	for _, k := range klines {
		c, err := convertKline(k)
		if err != nil {
			return nil, fmt.Errorf("binance %s: %v: %w", market.Symbol(), err, ErrDataUnavailable)
		}
		candles = append(candles, c)
	}
	sort.Slice(candles, func(i, j int) bool {
		return candles[i].OpenTime.Before(candles[j].OpenTime)
	})
	return candles, nil
}

// convertKline parses the string-typed Binance kline into a Candle.
func convertKline(k *binance.Kline) (model.Candle, error) {
	var (
		c   model.Candle
		err error
	)
	c.OpenTime = time.UnixMilli(k.OpenTime).UTC()
	if c.Open, err = strconv.ParseFloat(k.Open, 64); err != nil {
		return c, fmt.Errorf("bad open %q", k.Open)
	}
	if c.High, err = strconv.ParseFloat(k.High, 64); err != nil {
		return c, fmt.Errorf("bad high %q", k.High)
	}
	if c.Low, err = strconv.ParseFloat(k.Low, 64); err != nil {
		return c, fmt.Errorf("bad low %q", k.Low)
	}
	if c.Close, err = strconv.ParseFloat(k.Close, 64); err != nil {
		return c, fmt.Errorf("bad close %q", k.Close)
	}
	if c.Volume, err = strconv.ParseFloat(k.Volume, 64); err != nil {
		return c, fmt.Errorf("bad volume %q", k.Volume)
	}
	return c, nil
}

// isRateLimit reports whether the error is a Binance rate-limit rejection
// (-1003 TOO_MANY_REQUESTS / -1015 TOO_MANY_ORDERS, or an IP ban 418).
func isRateLimit(err error) bool {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == -1003 || apiErr.Code == -1015
	}
	return false
}
