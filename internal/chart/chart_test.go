package chart

import (
	"math"
	"testing"
	"time"

	"crypto-signal-bot/internal/indicator"
	"crypto-signal-bot/internal/model"
)

var btc = model.Market{Exchange: "binance", Pair: "BTC/USDT", Timeframe: "1h"}

func window(n int) []model.Candle {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	out := make([]model.Candle, n)
	for i := range out {
		cl := 100 + float64(i)
		out[i] = model.Candle{
			OpenTime: start.Add(time.Duration(i) * time.Hour),
			Open:     cl, High: cl + 1, Low: cl - 1, Close: cl, Volume: 5,
		}
	}
	return out
}

func TestBuild_MAOverlays(t *testing.T) {
	fired := []indicator.Config{{Kind: indicator.KindMA, FastPeriod: 5, SlowPeriod: 10}}
	spec := Build(btc, window(30), fired)

	if len(spec.Overlays) != 2 {
		t.Fatalf("expected 2 MA overlays, got %d", len(spec.Overlays))
	}
	if spec.Overlays[0].Name != "MA(5)" || spec.Overlays[1].Name != "MA(10)" {
		t.Errorf("overlay names: %s/%s", spec.Overlays[0].Name, spec.Overlays[1].Name)
	}
	if len(spec.Overlays[0].Values) != len(spec.Candles) {
		t.Error("overlay series must align with the candle window")
	}
	if !math.IsNaN(spec.Overlays[0].Values[0]) {
		t.Error("warmup region of overlay should be NaN")
	}
	if len(spec.Panels) != 0 {
		t.Errorf("MA-only alert should have no sub-panels, got %d", len(spec.Panels))
	}
}

func TestBuild_RSIAndMACDPanels(t *testing.T) {
	fired := []indicator.Config{
		{Kind: indicator.KindRSI, Period: 14, Overbought: 70, Oversold: 30},
		{Kind: indicator.KindMACD, FastPeriod: 12, SlowPeriod: 26, SignalPeriod: 9},
	}
	spec := Build(btc, window(60), fired)

	if len(spec.Panels) != 2 {
		t.Fatalf("expected 2 panels, got %d", len(spec.Panels))
	}
	rsi := spec.Panels[0]
	if rsi.Title != "RSI(14)" || len(rsi.Guides) != 2 || rsi.Guides[0] != 30 || rsi.Guides[1] != 70 {
		t.Errorf("RSI panel wrong: %+v", rsi)
	}
	macd := spec.Panels[1]
	if macd.Title != "MACD(12/26/9)" || len(macd.Series) != 3 {
		t.Errorf("MACD panel wrong: title=%s series=%d", macd.Title, len(macd.Series))
	}
	if len(macd.Guides) != 1 || macd.Guides[0] != 0 {
		t.Errorf("MACD panel needs a zero guide, got %v", macd.Guides)
	}
}

func TestBuild_OBVPanel(t *testing.T) {
	fired := []indicator.Config{{Kind: indicator.KindOBV, SignalPeriod: 5}}
	spec := Build(btc, window(30), fired)

	if len(spec.Panels) != 1 {
		t.Fatalf("expected 1 panel, got %d", len(spec.Panels))
	}
	obv := spec.Panels[0]
	if obv.Title != "OBV(5)" || len(obv.Series) != 2 {
		t.Fatalf("OBV panel wrong: title=%s series=%d", obv.Title, len(obv.Series))
	}
	// window() closes rise monotonically, so OBV accumulates volume.
	line := obv.Series[0].Values
	if line[0] != 5 || line[len(line)-1] != 5*30 {
		t.Errorf("OBV line wrong: first=%v last=%v", line[0], line[len(line)-1])
	}
	if math.IsNaN(obv.Series[1].Values[len(line)-1]) {
		t.Error("OBV signal should be defined at the window tail")
	}
}

func TestBuild_CapsWindow(t *testing.T) {
	spec := Build(btc, window(500), nil)
	if len(spec.Candles) != maxWindow {
		t.Fatalf("window should be capped at %d, got %d", maxWindow, len(spec.Candles))
	}
	// The cap keeps the most recent candles.
	last := spec.Candles[len(spec.Candles)-1]
	if last.Close != 100+499 {
		t.Errorf("cap should keep the tail of the window, last close=%v", last.Close)
	}
}

func TestBuild_DedupsRepeatedConfigs(t *testing.T) {
	cfg := indicator.Config{Kind: indicator.KindMA, FastPeriod: 5, SlowPeriod: 10}
	spec := Build(btc, window(30), []indicator.Config{cfg, cfg})
	if len(spec.Overlays) != 2 {
		t.Fatalf("duplicate fired configs must not duplicate overlays, got %d", len(spec.Overlays))
	}
}
