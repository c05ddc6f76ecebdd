// Package confstore holds the shared engine configuration: which markets
// to analyze, their indicator setups, the analysis interval and the alert
// cooldown.
//
// The scheduler never caches configuration — it takes a fresh Snapshot at
// the start of every cycle, so external reconfiguration (the Telegram
// command layer calling the mutation API) is picked up without a restart.
package confstore

import (
	"context"
	"errors"
	"time"

	"crypto-signal-bot/internal/indicator"
	"crypto-signal-bot/internal/model"
)

var (
	ErrMarketExists   = errors.New("market already configured")
	ErrMarketNotFound = errors.New("market not configured")
)

// MarketConfig is the per-market configuration entry.
type MarketConfig struct {
	Market     model.Market       `json:"market"`
	Indicators []indicator.Config `json:"indicators"`

	// Interval overrides the global analysis interval when non-zero.
	Interval time.Duration `json:"interval,omitempty"`
}

// Snapshot is a consistent read of the whole configuration, valid for the
// duration of one analysis cycle.
type Snapshot struct {
	Markets  []MarketConfig `json:"markets"`
	Interval time.Duration  `json:"interval"` // global analysis interval

	// Cooldown is the alert dedup window. Zero means "one analysis
	// interval", the default.
	Cooldown time.Duration `json:"cooldown,omitempty"`
}

// IntervalFor resolves the analysis interval for a market, honoring the
// per-market override.
func (s Snapshot) IntervalFor(m model.Market) time.Duration {
	for _, mc := range s.Markets {
		if mc.Market == m && mc.Interval > 0 {
			return mc.Interval
		}
	}
	return s.Interval
}

// Store is the Configuration Store port. Reads are snapshot-consistent;
// mutations come from the external command layer and become visible to
// the engine at its next cycle.
type Store interface {
	// Snapshot returns a consistent copy of the full configuration.
	Snapshot(ctx context.Context) (Snapshot, error)

	// AddMarket registers a market with the given indicator set.
	AddMarket(ctx context.Context, m model.Market, indicators []indicator.Config) error

	// RemoveMarket drops a market and all its indicator config.
	RemoveMarket(ctx context.Context, m model.Market) error

	// SetIndicator adds or replaces one indicator config on a market,
	// matched by Label().
	SetIndicator(ctx context.Context, m model.Market, cfg indicator.Config) error

	// EnableIndicator toggles one indicator, matched by label.
	EnableIndicator(ctx context.Context, m model.Market, label string, enabled bool) error

	// SetInterval changes the global analysis interval.
	SetInterval(ctx context.Context, d time.Duration) error

	// SetMarketInterval sets (or clears, with 0) a per-market interval.
	SetMarketInterval(ctx context.Context, m model.Market, d time.Duration) error

	// SetCooldown changes the alert dedup window.
	SetCooldown(ctx context.Context, d time.Duration) error
}

// DefaultIndicators is the indicator set a market starts with when none
// is specified: the classic MA crossover pair, RSI(14) 70/30 and
// MACD(12/26/9).
func DefaultIndicators() []indicator.Config {
	return []indicator.Config{
		{Kind: indicator.KindMA, Enabled: true, FastPeriod: 9, SlowPeriod: 21},
		{Kind: indicator.KindRSI, Enabled: true, Period: 14, Overbought: 70, Oversold: 30},
		{Kind: indicator.KindMACD, Enabled: true, FastPeriod: 12, SlowPeriod: 26, SignalPeriod: 9},
	}
}

// clone deep-copies a snapshot so callers can never alias store innards.
func clone(s Snapshot) Snapshot {
	out := s
	out.Markets = make([]MarketConfig, len(s.Markets))
	for i, mc := range s.Markets {
		cp := mc
		cp.Indicators = append([]indicator.Config(nil), mc.Indicators...)
		out.Markets[i] = cp
	}
	return out
}
