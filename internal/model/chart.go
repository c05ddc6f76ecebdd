package model

import "time"

// ChartSpec describes everything an external renderer needs to draw the
// chart attached to an alert batch: the candle window, MA overlays on the
// price panel, and RSI/MACD sub-panels. It is derived data, rebuilt fresh
// per alert batch and never mutated after construction.
type ChartSpec struct {
	Exchange  string    `json:"exchange"`
	Pair      string    `json:"pair"`
	Timeframe string    `json:"timeframe"`
	Generated time.Time `json:"generated"`

	Candles  []Candle     `json:"candles"`
	Overlays []Series     `json:"overlays,omitempty"` // MA lines on the price panel
	Panels   []ChartPanel `json:"panels,omitempty"`   // RSI, MACD sub-panels
}

// Series is one named line aligned to the candle window. Values before an
// indicator's warmup are NaN; renderers skip NaN points.
type Series struct {
	Name   string    `json:"name"` // e.g. "MA(5)", "RSI(14)", "MACD"
	Values []float64 `json:"values"`
}

// ChartPanel groups series that share a sub-panel below the price chart.
type ChartPanel struct {
	Title  string   `json:"title"` // e.g. "RSI(14)", "MACD(12/26/9)"
	Series []Series `json:"series"`

	// Optional horizontal guide lines (RSI 30/70, MACD zero line).
	Guides []float64 `json:"guides,omitempty"`
}
