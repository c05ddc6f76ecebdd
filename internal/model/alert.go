package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Severity classifies how urgent an alert is.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// Condition names a trigger condition an indicator can fire.
type Condition string

const (
	// Moving-average crossovers.
	CondGoldenCross Condition = "golden_cross" // fast MA crosses above slow MA
	CondDeathCross  Condition = "death_cross"  // fast MA crosses below slow MA

	// RSI threshold entries (edge-triggered).
	CondOverbought Condition = "overbought" // RSI crosses above the hot threshold
	CondOversold   Condition = "oversold"   // RSI crosses below the cold threshold

	// MACD line vs signal line crossovers.
	CondMACDBullish Condition = "macd_bullish_cross" // MACD crosses above signal
	CondMACDBearish Condition = "macd_bearish_cross" // MACD crosses below signal

	// OBV line vs signal line crossovers.
	CondOBVBullish Condition = "obv_bullish_cross" // OBV crosses above signal
	CondOBVBearish Condition = "obv_bearish_cross" // OBV crosses below signal
)

// Alert is one fired signal, immutable once created and consumed exactly
// once by the Notifier.
type Alert struct {
	ID        string    `json:"id"`
	Exchange  string    `json:"exchange"`
	Pair      string    `json:"pair"`
	Timeframe string    `json:"timeframe"`
	Indicator string    `json:"indicator"` // e.g. "MA(5/10)", "RSI(14)", "MACD(12/26/9)"
	Condition Condition `json:"condition"`
	Value     float64   `json:"value"` // indicator value at the moment of firing
	Price     float64   `json:"price"` // last close when the alert fired
	Timestamp time.Time `json:"timestamp"`
	Severity  Severity  `json:"severity"`
}

// NewAlert builds an Alert with a fresh ID for a fired condition.
func NewAlert(m Market, indicator string, cond Condition, value, price float64, ts time.Time) Alert {
	return Alert{
		ID:        uuid.NewString(),
		Exchange:  m.Exchange,
		Pair:      m.Pair,
		Timeframe: m.Timeframe,
		Indicator: indicator,
		Condition: cond,
		Value:     value,
		Price:     price,
		Timestamp: ts,
		Severity:  cond.Severity(),
	}
}

// Market reconstructs the market this alert belongs to.
func (a Alert) Market() Market {
	return Market{Exchange: a.Exchange, Pair: a.Pair, Timeframe: a.Timeframe}
}

// DedupKey identifies the (market, indicator, condition) tuple used for
// cooldown bookkeeping.
func (a Alert) DedupKey() string {
	return a.Market().Key() + ":" + a.Indicator + ":" + string(a.Condition)
}

func (a Alert) String() string {
	return fmt.Sprintf("%s %s %s %s value=%.4f price=%.4f",
		a.Pair, a.Timeframe, a.Indicator, a.Condition, a.Value, a.Price)
}

// Severity maps a condition to its alert severity. Crossovers are
// informational, threshold breaches warn.
func (c Condition) Severity() Severity {
	switch c {
	case CondOverbought, CondOversold:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}
