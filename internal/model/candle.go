// Package model defines the core domain types shared across the signal
// engine: markets, OHLCV candles, alerts and chart specs.
package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Market identifies one analysis target: a trading pair on an exchange
// at a specific candle timeframe.
type Market struct {
	Exchange  string `json:"exchange"`  // e.g. "binance"
	Pair      string `json:"pair"`      // e.g. "BTC/USDT"
	Timeframe string `json:"timeframe"` // e.g. "1m", "5m", "1h", "1d"
}

// Key returns a unique key for this market: "exchange:pair:timeframe".
func (m Market) Key() string {
	return m.Exchange + ":" + m.Pair + ":" + m.Timeframe
}

// Symbol returns the pair without the separator, e.g. "BTCUSDT".
// Most exchange REST APIs want this form.
func (m Market) Symbol() string {
	return strings.ReplaceAll(m.Pair, "/", "")
}

func (m Market) String() string {
	return m.Pair + " " + m.Timeframe + " on " + m.Exchange
}

// TimeframeDuration converts a timeframe string ("1m", "4h", "1d") to a
// time.Duration. Returns an error for unparseable input.
func TimeframeDuration(tf string) (time.Duration, error) {
	if len(tf) < 2 {
		return 0, fmt.Errorf("invalid timeframe %q", tf)
	}
	n, err := strconv.Atoi(tf[:len(tf)-1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid timeframe %q", tf)
	}
	switch tf[len(tf)-1] {
	case 'm':
		return time.Duration(n) * time.Minute, nil
	case 'h':
		return time.Duration(n) * time.Hour, nil
	case 'd':
		return time.Duration(n) * 24 * time.Hour, nil
	case 'w':
		return time.Duration(n) * 7 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("invalid timeframe %q", tf)
	}
}

// Candle represents one closed (or still-forming) OHLCV bucket.
// OpenTime uniquely identifies the candle within a market.
type Candle struct {
	OpenTime time.Time `json:"open_time"` // bucket start (UTC)
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
}

// JSON returns the JSON-encoded candle (ignoring errors for hot-path usage).
func (c *Candle) JSON() []byte {
	b, _ := json.Marshal(c)
	return b
}
