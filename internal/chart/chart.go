// Package chart builds renderable ChartSpec objects for alerted markets.
// The engine never rasterizes anything itself; the spec carries the
// candle window plus exactly the indicator series that fired, and an
// external renderer turns it into an image.
package chart

import (
	"fmt"
	"time"

	"crypto-signal-bot/internal/indicator"
	"crypto-signal-bot/internal/model"
)

// maxWindow caps the candle window embedded in a spec so charts stay
// readable regardless of cache retention.
const maxWindow = 120

// Build assembles a ChartSpec for one market from its candle window and
// the configs of the indicators that fired this cycle. MA pairs become
// overlays on the price panel; RSI, MACD and OBV get their own sub-panels.
func Build(m model.Market, window []model.Candle, fired []indicator.Config) model.ChartSpec {
	if len(window) > maxWindow {
		window = window[len(window)-maxWindow:]
	}
	closes := indicator.Closes(window)

	spec := model.ChartSpec{
		Exchange:  m.Exchange,
		Pair:      m.Pair,
		Timeframe: m.Timeframe,
		Generated: time.Now().UTC(),
		Candles:   window,
	}

	seen := make(map[string]bool, len(fired))
	for _, cfg := range fired {
		label := cfg.Label()
		if seen[label] {
			continue
		}
		seen[label] = true

		switch cfg.Kind {
		case indicator.KindMA:
			spec.Overlays = append(spec.Overlays,
				model.Series{Name: maName(cfg.FastPeriod), Values: indicator.SMASeries(closes, cfg.FastPeriod)},
				model.Series{Name: maName(cfg.SlowPeriod), Values: indicator.SMASeries(closes, cfg.SlowPeriod)},
			)
		case indicator.KindRSI:
			spec.Panels = append(spec.Panels, model.ChartPanel{
				Title: label,
				Series: []model.Series{
					{Name: label, Values: indicator.RSISeries(closes, cfg.Period)},
				},
				Guides: []float64{cfg.Oversold, cfg.Overbought},
			})
		case indicator.KindMACD:
			macd, sig, hist := indicator.MACDSeries(closes, cfg.FastPeriod, cfg.SlowPeriod, cfg.SignalPeriod)
			spec.Panels = append(spec.Panels, model.ChartPanel{
				Title: label,
				Series: []model.Series{
					{Name: "MACD", Values: macd},
					{Name: "Signal", Values: sig},
					{Name: "Histogram", Values: hist},
				},
				Guides: []float64{0},
			})
		case indicator.KindOBV:
			obv := indicator.OBVSeries(window)
			spec.Panels = append(spec.Panels, model.ChartPanel{
				Title: label,
				Series: []model.Series{
					{Name: "OBV", Values: obv},
					{Name: "Signal", Values: indicator.SMASeries(obv, cfg.SignalPeriod)},
				},
			})
		}
	}
	return spec
}

func maName(period int) string {
	return fmt.Sprintf("MA(%d)", period)
}
