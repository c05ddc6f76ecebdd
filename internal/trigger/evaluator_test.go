package trigger

import (
	"testing"
	"time"

	"crypto-signal-bot/internal/indicator"
	"crypto-signal-bot/internal/model"
)

var (
	btc = model.Market{Exchange: "binance", Pair: "BTC/USDT", Timeframe: "1h"}
	now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
)

func maSnap(fast, slow float64) indicator.Snapshot {
	cfg := indicator.Config{Kind: indicator.KindMA, Enabled: true, FastPeriod: 5, SlowPeriod: 10}
	return indicator.Snapshot{Config: cfg, Label: cfg.Label(), Ready: true, Primary: fast, Secondary: slow}
}

func macdSnap(line, signal float64) indicator.Snapshot {
	cfg := indicator.Config{Kind: indicator.KindMACD, Enabled: true, FastPeriod: 12, SlowPeriod: 26, SignalPeriod: 9}
	return indicator.Snapshot{Config: cfg, Label: cfg.Label(), Ready: true, Primary: line, Secondary: signal}
}

func obvSnap(line, signal float64) indicator.Snapshot {
	cfg := indicator.Config{Kind: indicator.KindOBV, Enabled: true, SignalPeriod: 21}
	return indicator.Snapshot{Config: cfg, Label: cfg.Label(), Ready: true, Primary: line, Secondary: signal}
}

func rsiSnap(value float64) indicator.Snapshot {
	cfg := indicator.Config{Kind: indicator.KindRSI, Enabled: true, Period: 14, Overbought: 70, Oversold: 30}
	return indicator.Snapshot{Config: cfg, Label: cfg.Label(), Ready: true, Primary: value}
}

func evalOne(t *testing.T, e *Evaluator, snap indicator.Snapshot) []model.Alert {
	t.Helper()
	return e.Evaluate(btc, []indicator.Snapshot{snap}, 50000, now)
}

func TestCrossover_FiresOncePerCrossing(t *testing.T) {
	e := NewEvaluator()

	// Cycle 1: fast below slow — arms only.
	if alerts := evalOne(t, e, maSnap(99, 100)); len(alerts) != 0 {
		t.Fatalf("arming cycle fired %d alerts", len(alerts))
	}

	// Cycle 2: fast crosses above — exactly one golden cross.
	alerts := evalOne(t, e, maSnap(101, 100))
	if len(alerts) != 1 || alerts[0].Condition != model.CondGoldenCross {
		t.Fatalf("expected one golden_cross, got %+v", alerts)
	}

	// Cycles 3..6: stays above — must not re-fire.
	for i := 0; i < 4; i++ {
		if alerts := evalOne(t, e, maSnap(102+float64(i), 100)); len(alerts) != 0 {
			t.Fatalf("cycle held above re-fired: %+v", alerts)
		}
	}

	// Crosses back below — one death cross.
	alerts = evalOne(t, e, maSnap(99, 100))
	if len(alerts) != 1 || alerts[0].Condition != model.CondDeathCross {
		t.Fatalf("expected one death_cross, got %+v", alerts)
	}
}

func TestCrossover_EqualityIsNoCrossing(t *testing.T) {
	e := NewEvaluator()

	evalOne(t, e, maSnap(99, 100))
	// Moving to exactly equal is not a crossing.
	if alerts := evalOne(t, e, maSnap(100, 100)); len(alerts) != 0 {
		t.Fatalf("equality fired: %+v", alerts)
	}
	// Equal → strictly above fires.
	alerts := evalOne(t, e, maSnap(100.01, 100))
	if len(alerts) != 1 || alerts[0].Condition != model.CondGoldenCross {
		t.Fatalf("equal→above should fire golden_cross, got %+v", alerts)
	}
}

func TestCrossover_FirstReadyCycleOnlyArms(t *testing.T) {
	e := NewEvaluator()
	// First observation already above: no previous cycle, nothing fires.
	if alerts := evalOne(t, e, maSnap(105, 100)); len(alerts) != 0 {
		t.Fatalf("first ready cycle fired: %+v", alerts)
	}
}

func TestMACD_CrossoverConditions(t *testing.T) {
	e := NewEvaluator()

	evalOne(t, e, macdSnap(-0.5, 0.1))
	alerts := evalOne(t, e, macdSnap(0.3, 0.1))
	if len(alerts) != 1 || alerts[0].Condition != model.CondMACDBullish {
		t.Fatalf("expected macd_bullish_cross, got %+v", alerts)
	}

	alerts = evalOne(t, e, macdSnap(-0.2, 0.1))
	if len(alerts) != 1 || alerts[0].Condition != model.CondMACDBearish {
		t.Fatalf("expected macd_bearish_cross, got %+v", alerts)
	}
}

func TestOBV_CrossoverConditions(t *testing.T) {
	e := NewEvaluator()

	evalOne(t, e, obvSnap(1200, 1500))
	alerts := evalOne(t, e, obvSnap(1800, 1550))
	if len(alerts) != 1 || alerts[0].Condition != model.CondOBVBullish {
		t.Fatalf("expected obv_bullish_cross, got %+v", alerts)
	}

	alerts = evalOne(t, e, obvSnap(1400, 1600))
	if len(alerts) != 1 || alerts[0].Condition != model.CondOBVBearish {
		t.Fatalf("expected obv_bearish_cross, got %+v", alerts)
	}
}

func TestRSI_ThresholdIsEdgeTriggered(t *testing.T) {
	e := NewEvaluator()

	evalOne(t, e, rsiSnap(55)) // arms in neutral

	alerts := evalOne(t, e, rsiSnap(75))
	if len(alerts) != 1 || alerts[0].Condition != model.CondOverbought {
		t.Fatalf("expected overbought on entry, got %+v", alerts)
	}
	if alerts[0].Severity != model.SeverityWarning {
		t.Errorf("overbought severity=%s, want WARNING", alerts[0].Severity)
	}

	// Still in region: no repeat fire.
	for _, v := range []float64{80, 90, 71} {
		if alerts := evalOne(t, e, rsiSnap(v)); len(alerts) != 0 {
			t.Fatalf("RSI=%v re-fired while held in region: %+v", v, alerts)
		}
	}

	// Leaves region, re-enters: fires again.
	evalOne(t, e, rsiSnap(60))
	alerts = evalOne(t, e, rsiSnap(72))
	if len(alerts) != 1 || alerts[0].Condition != model.CondOverbought {
		t.Fatalf("expected re-armed overbought, got %+v", alerts)
	}
}

func TestRSI_OversoldAndBoundaries(t *testing.T) {
	e := NewEvaluator()

	evalOne(t, e, rsiSnap(50))

	// Exactly at threshold is not in-region (strict inequality).
	if alerts := evalOne(t, e, rsiSnap(30)); len(alerts) != 0 {
		t.Fatalf("RSI exactly at oversold threshold fired: %+v", alerts)
	}
	alerts := evalOne(t, e, rsiSnap(29.9))
	if len(alerts) != 1 || alerts[0].Condition != model.CondOversold {
		t.Fatalf("expected oversold, got %+v", alerts)
	}
}

func TestRSI_DirectSwingFiresOppositeRegion(t *testing.T) {
	e := NewEvaluator()
	evalOne(t, e, rsiSnap(75)) // arms (first observation)
	alerts := evalOne(t, e, rsiSnap(25))
	if len(alerts) != 1 || alerts[0].Condition != model.CondOversold {
		t.Fatalf("overbought→oversold swing should fire oversold, got %+v", alerts)
	}
}

func TestNotReady_NeverTriggersAndResetsBaseline(t *testing.T) {
	e := NewEvaluator()

	evalOne(t, e, maSnap(99, 100))

	notReady := maSnap(101, 100)
	notReady.Ready = false
	if alerts := evalOne(t, e, notReady); len(alerts) != 0 {
		t.Fatalf("not-ready snapshot fired: %+v", alerts)
	}

	// Baseline was cleared by the not-ready cycle: the next ready value
	// arms again instead of comparing against the stale pre-gap value.
	if alerts := evalOne(t, e, maSnap(105, 100)); len(alerts) != 0 {
		t.Fatalf("post-gap cycle should only re-arm, got %+v", alerts)
	}
}

func TestEvaluate_PopulatesAlertFields(t *testing.T) {
	e := NewEvaluator()
	evalOne(t, e, rsiSnap(50))
	alerts := evalOne(t, e, rsiSnap(80))
	if len(alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(alerts))
	}
	a := alerts[0]
	if a.Pair != "BTC/USDT" || a.Exchange != "binance" || a.Timeframe != "1h" {
		t.Errorf("market fields wrong: %+v", a)
	}
	if a.Indicator != "RSI(14)" || a.Value != 80 || a.Price != 50000 {
		t.Errorf("indicator fields wrong: %+v", a)
	}
	if a.ID == "" || !a.Timestamp.Equal(now) {
		t.Errorf("id/timestamp wrong: %+v", a)
	}
}

func TestPrune_DropsRemovedMarketState(t *testing.T) {
	e := NewEvaluator()
	eth := model.Market{Exchange: "binance", Pair: "ETH/USDT", Timeframe: "1h"}

	e.Evaluate(btc, []indicator.Snapshot{maSnap(99, 100)}, 1, now)
	e.Evaluate(eth, []indicator.Snapshot{maSnap(99, 100)}, 1, now)

	e.Prune(map[string]bool{btc.Key(): true})

	// ETH state is gone: a value that would have crossed only arms.
	alerts := e.Evaluate(eth, []indicator.Snapshot{maSnap(101, 100)}, 1, now)
	if len(alerts) != 0 {
		t.Fatalf("pruned market retained baseline and fired: %+v", alerts)
	}
	// BTC state survived: same value does fire.
	alerts = e.Evaluate(btc, []indicator.Snapshot{maSnap(101, 100)}, 1, now)
	if len(alerts) != 1 {
		t.Fatalf("active market lost its baseline: %+v", alerts)
	}
}
