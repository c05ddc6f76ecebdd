// Package marketdata defines the Market Data Provider port and its
// exchange implementations. The engine only ever sees ordered OHLCV
// candle sequences; everything exchange-specific stays behind Provider.
package marketdata

import (
	"context"
	"errors"
	"time"

	"crypto-signal-bot/internal/model"
)

// ErrDataUnavailable is returned when the exchange cannot supply candles
// (network failure, bad symbol, empty response). The caller skips the
// market's cycle and keeps its previous buffer.
var ErrDataUnavailable = errors.New("market data unavailable")

// ErrRateLimited is returned when the exchange rejects the request for
// rate-limit reasons. The caller must back off, not retry immediately.
var ErrRateLimited = errors.New("market data rate limited")

// Provider fetches ordered candle sequences for a market.
type Provider interface {
	// Candles returns candles with OpenTime >= since, ordered ascending by
	// OpenTime. A zero since means "the most recent window the exchange
	// will give us". The final candle may still be open (forming).
	Candles(ctx context.Context, market model.Market, since time.Time, limit int) ([]model.Candle, error)
}
