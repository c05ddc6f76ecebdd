// Package indicator provides technical indicator calculations over candle data.
//
// Two computation paths exist. The stateful types (SMA, EMA, RSI, MACD)
// update incrementally in O(1) per candle and back the per-cycle analysis.
// The *Series functions in series.go recompute a full aligned series from
// a candle window and back chart building and correctness tests.
//
// Indicators that have not accumulated enough candles report Ready()=false
// ("not ready"), never a fake zero value.
package indicator

import (
	"fmt"

	"crypto-signal-bot/internal/model"
)

// Kind names a configurable indicator family.
type Kind string

const (
	KindMA   Kind = "MA"   // simple moving-average pair (fast/slow crossover)
	KindRSI  Kind = "RSI"  // Wilder relative strength index
	KindMACD Kind = "MACD" // moving average convergence divergence
	KindOBV  Kind = "OBV"  // on-balance volume vs its signal SMA
)

// Indicator is the interface for all incremental indicators.
type Indicator interface {
	// Name returns the indicator name (e.g. "SMA", "RSI").
	Name() string

	// Update feeds a new closed candle and recalculates.
	Update(candle model.Candle)

	// Value returns the current calculated value. Returns 0 if not enough data.
	Value() float64

	// Ready returns true when enough data has been accumulated.
	Ready() bool

	// Reset clears all accumulated state for reuse after a buffer discontinuity.
	Reset()
}

// Config specifies one indicator to evaluate for a market, including its
// trigger thresholds. It is owned by the Configuration Store; the engine
// and trigger evaluator only ever see per-cycle snapshots of it.
type Config struct {
	Kind    Kind `json:"kind"`
	Enabled bool `json:"enabled"`

	// MA and MACD periods. For MA these are the two SMA windows of the
	// crossover pair; for MACD the two EMA windows.
	FastPeriod int `json:"fast_period,omitempty"`
	SlowPeriod int `json:"slow_period,omitempty"`

	// RSI lookback.
	Period int `json:"period,omitempty"`

	// Signal-line period: EMA over the MACD line, SMA over the OBV line.
	SignalPeriod int `json:"signal_period,omitempty"`

	// RSI thresholds (hot/cold in the classic config sense).
	Overbought float64 `json:"overbought,omitempty"`
	Oversold   float64 `json:"oversold,omitempty"`
}

// Validate checks the config for malformed parameters.
func (c Config) Validate() error {
	switch c.Kind {
	case KindMA:
		if c.FastPeriod <= 0 || c.SlowPeriod <= 0 {
			return fmt.Errorf("MA periods must be positive, got fast=%d slow=%d", c.FastPeriod, c.SlowPeriod)
		}
		if c.FastPeriod >= c.SlowPeriod {
			return fmt.Errorf("MA fast period %d must be below slow period %d", c.FastPeriod, c.SlowPeriod)
		}
	case KindRSI:
		if c.Period <= 1 {
			return fmt.Errorf("RSI period must be > 1, got %d", c.Period)
		}
		if c.Overbought <= c.Oversold {
			return fmt.Errorf("RSI overbought %.1f must be above oversold %.1f", c.Overbought, c.Oversold)
		}
		if c.Oversold < 0 || c.Overbought > 100 {
			return fmt.Errorf("RSI thresholds must stay within 0..100, got %.1f/%.1f", c.Oversold, c.Overbought)
		}
	case KindMACD:
		if c.FastPeriod <= 0 || c.SlowPeriod <= 0 || c.SignalPeriod <= 0 {
			return fmt.Errorf("MACD periods must be positive, got %d/%d/%d", c.FastPeriod, c.SlowPeriod, c.SignalPeriod)
		}
		if c.FastPeriod >= c.SlowPeriod {
			return fmt.Errorf("MACD fast period %d must be below slow period %d", c.FastPeriod, c.SlowPeriod)
		}
	case KindOBV:
		if c.SignalPeriod <= 0 {
			return fmt.Errorf("OBV signal period must be positive, got %d", c.SignalPeriod)
		}
	default:
		return fmt.Errorf("unknown indicator kind %q", c.Kind)
	}
	return nil
}

// Label returns the display key for this config, e.g. "MA(5/10)",
// "RSI(14)", "MACD(12/26/9)". Labels key all downstream trigger and
// dedup state for the market.
func (c Config) Label() string {
	switch c.Kind {
	case KindMA:
		return fmt.Sprintf("MA(%d/%d)", c.FastPeriod, c.SlowPeriod)
	case KindRSI:
		return fmt.Sprintf("RSI(%d)", c.Period)
	case KindMACD:
		return fmt.Sprintf("MACD(%d/%d/%d)", c.FastPeriod, c.SlowPeriod, c.SignalPeriod)
	case KindOBV:
		return fmt.Sprintf("OBV(%d)", c.SignalPeriod)
	default:
		return string(c.Kind)
	}
}

// Lookback returns the number of closed candles this indicator needs
// before it can report a value.
func (c Config) Lookback() int {
	switch c.Kind {
	case KindMA:
		return c.SlowPeriod
	case KindRSI:
		return c.Period + 1
	case KindMACD:
		return c.SlowPeriod + c.SignalPeriod - 1
	case KindOBV:
		return c.SignalPeriod
	default:
		return 0
	}
}

// MaxLookback returns the largest lookback across a config set. The candle
// cache retention window is derived from this.
func MaxLookback(configs []Config) int {
	max := 0
	for _, c := range configs {
		if lb := c.Lookback(); lb > max {
			max = lb
		}
	}
	return max
}

// Snapshot carries the per-cycle output of one configured indicator for
// one market. Primary/Secondary hold the two lines the trigger evaluator
// compares: fast/slow MA, MACD/signal, OBV/signal, or RSI/0.
type Snapshot struct {
	Config Config
	Label  string
	Ready  bool

	Primary   float64 // fast MA, RSI value, MACD line, OBV line
	Secondary float64 // slow MA, unused for RSI, signal line otherwise
}
