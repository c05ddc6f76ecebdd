package indicator

import (
	"testing"
	"time"

	"crypto-signal-bot/internal/model"
)

var testMarket = model.Market{Exchange: "binance", Pair: "BTC/USDT", Timeframe: "1m"}

var t0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func maConfig(fast, slow int) Config {
	return Config{Kind: KindMA, Enabled: true, FastPeriod: fast, SlowPeriod: slow}
}

func TestEngine_SnapshotPerConfig(t *testing.T) {
	engine := NewEngine()
	configs := []Config{
		maConfig(2, 3),
		{Kind: KindRSI, Enabled: true, Period: 14, Overbought: 70, Oversold: 30},
		{Kind: KindMACD, Enabled: true, FastPeriod: 12, SlowPeriod: 26, SignalPeriod: 9},
	}

	window := candlesAt(t0, time.Minute, 100, 101, 102, 103)
	snaps := engine.Compute(testMarket, configs, window)

	if len(snaps) != 3 {
		t.Fatalf("expected 3 snapshots, got %d", len(snaps))
	}
	if !snaps[0].Ready {
		t.Error("MA(2/3) should be ready after 4 candles")
	}
	assertClose(t, "fast MA", snaps[0].Primary, (102.0+103.0)/2, 1e-9)
	assertClose(t, "slow MA", snaps[0].Secondary, (101.0+102.0+103.0)/3, 1e-9)

	if snaps[1].Ready {
		t.Error("RSI(14) must not be ready after 4 candles")
	}
	if snaps[2].Ready {
		t.Error("MACD(12/26/9) must not be ready after 4 candles")
	}
}

func TestEngine_IncrementalFeedMatchesReplay(t *testing.T) {
	// Feeding the window in growing slices (as the scheduler does each
	// cycle) must give the same values as one full replay.
	closes := []float64{10, 11, 12, 11.5, 13, 14, 13.2, 15, 16, 15.5, 17, 18}
	all := candlesAt(t0, time.Minute, closes...)
	configs := []Config{maConfig(3, 5)}

	incremental := NewEngine()
	var last Snapshot
	for i := 1; i <= len(all); i++ {
		snaps := incremental.Compute(testMarket, configs, all[:i])
		last = snaps[0]
	}

	replayed := NewEngine().Compute(testMarket, configs, all)[0]

	assertClose(t, "fast", last.Primary, replayed.Primary, 1e-9)
	assertClose(t, "slow", last.Secondary, replayed.Secondary, 1e-9)
}

func TestEngine_ProvisionalTailIsNeverCommitted(t *testing.T) {
	// The tail candle is still forming on the exchange, so its close is
	// provisional. After the cache replaces it with the final close, the
	// incremental values must equal a full recomputation over the buffer:
	// a wild provisional close must leave no trace in the state.
	engine := NewEngine()
	configs := []Config{
		{Kind: KindRSI, Enabled: true, Period: 5, Overbought: 70, Oversold: 30},
		{Kind: KindMACD, Enabled: true, FastPeriod: 3, SlowPeriod: 5, SignalPeriod: 3},
	}
	closes := []float64{100, 101, 102, 103, 104, 105, 106, 107, 108}

	// Cycle 1: the tail spikes to 200 while still open.
	provisional := candlesAt(t0, time.Minute, append(append([]float64{}, closes...), 200)...)
	engine.Compute(testMarket, configs, provisional)

	// Cycle 2: the tail actually closed at 109, and one new candle formed.
	final := candlesAt(t0, time.Minute, append(append([]float64{}, closes...), 109, 110)...)
	snaps := engine.Compute(testMarket, configs, final)

	finalCloses := Closes(final)
	rsi := RSISeries(finalCloses, 5)
	assertClose(t, "RSI after tail correction", snaps[0].Primary, rsi[len(rsi)-1], 1e-9)

	macd, sig, _ := MACDSeries(finalCloses, 3, 5, 3)
	assertClose(t, "MACD line after tail correction", snaps[1].Primary, macd[len(macd)-1], 1e-9)
	assertClose(t, "MACD signal after tail correction", snaps[1].Secondary, sig[len(sig)-1], 1e-9)
}

func TestEngine_OBVSnapshotMatchesSeries(t *testing.T) {
	engine := NewEngine()
	cfg := Config{Kind: KindOBV, Enabled: true, SignalPeriod: 3}

	closes := []float64{10, 11, 10.5, 10.5, 12, 11}
	vols := []float64{100, 150, 80, 60, 120, 90}
	window := make([]model.Candle, len(closes))
	for i := range closes {
		c := candle(closes[i])
		c.OpenTime = t0.Add(time.Duration(i) * time.Minute)
		c.Volume = vols[i]
		window[i] = c
	}

	snap := engine.Compute(testMarket, []Config{cfg}, window)[0]
	if !snap.Ready {
		t.Fatal("OBV(3) should be ready after 6 candles")
	}
	obv := OBVSeries(window)
	sig := SMASeries(obv, 3)
	assertClose(t, "OBV line", snap.Primary, obv[len(obv)-1], 1e-9)
	assertClose(t, "OBV signal", snap.Secondary, sig[len(sig)-1], 1e-9)
}

func TestEngine_StaleWindowRebuildsState(t *testing.T) {
	engine := NewEngine()
	configs := []Config{maConfig(2, 3)}

	engine.Compute(testMarket, configs, candlesAt(t0, time.Minute, 100, 101, 102))

	// A window that no longer contains the last fed candle: continuity is
	// broken, the engine must replay instead of appending.
	later := candlesAt(t0.Add(12*time.Hour), time.Minute, 50, 51, 52)
	snap := engine.Compute(testMarket, configs, later)[0]

	assertClose(t, "fast after rebuild", snap.Primary, (51.0+52.0)/2, 1e-9)
	assertClose(t, "slow after rebuild", snap.Secondary, (50.0+51.0+52.0)/3, 1e-9)
}

func TestEngine_UnchangedWindowKeepsValues(t *testing.T) {
	engine := NewEngine()
	configs := []Config{maConfig(2, 3)}
	window := candlesAt(t0, time.Minute, 100, 101, 102)

	first := engine.Compute(testMarket, configs, window)[0]
	second := engine.Compute(testMarket, configs, window)[0]

	assertClose(t, "fast stable", second.Primary, first.Primary, 1e-12)
	assertClose(t, "slow stable", second.Secondary, first.Secondary, 1e-12)
}

func TestEngine_ConfigChangeWarmsNewIndicator(t *testing.T) {
	engine := NewEngine()
	window := candlesAt(t0, time.Minute, 100, 101, 102, 103, 104)

	engine.Compute(testMarket, []Config{maConfig(2, 3)}, window)

	// Add an RSI mid-run: it must be warmed from the window, and the MA
	// pair must keep its state.
	configs := []Config{
		maConfig(2, 3),
		{Kind: KindRSI, Enabled: true, Period: 3, Overbought: 70, Oversold: 30},
	}
	snaps := engine.Compute(testMarket, configs, window)

	if !snaps[0].Ready {
		t.Error("surviving MA should still be ready")
	}
	if !snaps[1].Ready {
		t.Error("new RSI(3) should be warmed from the window (5 candles >= 4)")
	}
	// All gains → RSI 100
	assertClose(t, "warmed RSI", snaps[1].Primary, 100.0, 1e-9)
}

func TestEngine_PeriodChangeRebuildsThatIndicator(t *testing.T) {
	engine := NewEngine()
	window := candlesAt(t0, time.Minute, 100, 101, 102, 103, 104, 105)

	before := engine.Compute(testMarket, []Config{maConfig(2, 3)}, window)[0]
	after := engine.Compute(testMarket, []Config{maConfig(2, 4)}, window)[0]

	assertClose(t, "fast unchanged", after.Primary, before.Primary, 1e-9)
	assertClose(t, "slow reperioded", after.Secondary, (102.0+103.0+104.0+105.0)/4, 1e-9)
}

func TestEngine_PruneDropsRemovedMarkets(t *testing.T) {
	engine := NewEngine()
	other := model.Market{Exchange: "binance", Pair: "ETH/USDT", Timeframe: "1m"}
	window := candlesAt(t0, time.Minute, 100, 101, 102)

	engine.Compute(testMarket, []Config{maConfig(2, 3)}, window)
	engine.Compute(other, []Config{maConfig(2, 3)}, window)
	if engine.Tracked() != 2 {
		t.Fatalf("expected 2 tracked markets, got %d", engine.Tracked())
	}

	engine.Prune(map[string]bool{testMarket.Key(): true})
	if engine.Tracked() != 1 {
		t.Fatalf("expected 1 tracked market after prune, got %d", engine.Tracked())
	}
}

func TestNewCandleOffset(t *testing.T) {
	window := candlesAt(t0, time.Minute, 1, 2, 3, 4)

	from, stale := newCandleOffset(window, time.Time{})
	if from != 0 || stale {
		t.Errorf("zero lastOpen: from=%d stale=%v, want 0/false", from, stale)
	}

	from, stale = newCandleOffset(window, window[2].OpenTime)
	if from != 3 || stale {
		t.Errorf("mid-window: from=%d stale=%v, want 3/false", from, stale)
	}

	from, stale = newCandleOffset(window, window[3].OpenTime)
	if from != 4 || stale {
		t.Errorf("at tail: from=%d stale=%v, want 4/false", from, stale)
	}

	_, stale = newCandleOffset(window, t0.Add(30*time.Second))
	if !stale {
		t.Error("lastOpen between buckets should be stale")
	}

	_, stale = newCandleOffset(window, t0.Add(-time.Hour))
	if !stale {
		t.Error("lastOpen evicted from the window should be stale")
	}
}
