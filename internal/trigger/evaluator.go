// Package trigger turns per-cycle indicator snapshots into candidate
// alerts. All conditions are edge-triggered: a crossover fires exactly
// once per actual crossing and a threshold fires only on the transition
// into the region, never while the value stays there.
package trigger

import (
	"sync"
	"time"

	"crypto-signal-bot/internal/indicator"
	"crypto-signal-bot/internal/model"
)

// region classifies an RSI value against its thresholds.
type region int

const (
	regionNeutral region = iota
	regionOverbought
	regionOversold
)

// condState remembers the previous cycle's observation for one
// (market, indicator) pair. Without a previous observation nothing can
// fire: the first ready value only arms the state machine.
type condState struct {
	hasPrev    bool
	prevDiff   float64 // primary - secondary, crossover kinds
	prevRegion region  // RSI threshold kind
}

// Evaluator holds the per (market, indicator) trigger state machines.
type Evaluator struct {
	mu     sync.Mutex
	states map[string]*condState
}

// NewEvaluator creates an empty evaluator.
func NewEvaluator() *Evaluator {
	return &Evaluator{states: make(map[string]*condState)}
}

// Evaluate compares the cycle's snapshots against the previous cycle and
// returns zero or more candidate alerts. price is the market's latest
// close, ts the candle time the snapshots were computed at.
func (e *Evaluator) Evaluate(m model.Market, snaps []indicator.Snapshot, price float64, ts time.Time) []model.Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	var alerts []model.Alert
	for _, snap := range snaps {
		key := m.Key() + ":" + snap.Label
		st, ok := e.states[key]
		if !ok {
			st = &condState{}
			e.states[key] = st
		}

		if !snap.Ready {
			// Not ready → no trigger possible, and any previous baseline
			// is stale once the indicator went back to warming up.
			st.hasPrev = false
			continue
		}

		switch snap.Config.Kind {
		case indicator.KindMA:
			if cond, ok := st.crossover(snap.Primary - snap.Secondary); ok {
				c := CondForCross(indicator.KindMA, cond)
				alerts = append(alerts, model.NewAlert(m, snap.Label, c, snap.Primary, price, ts))
			}
		case indicator.KindMACD:
			if cond, ok := st.crossover(snap.Primary - snap.Secondary); ok {
				c := CondForCross(indicator.KindMACD, cond)
				alerts = append(alerts, model.NewAlert(m, snap.Label, c, snap.Primary, price, ts))
			}
		case indicator.KindOBV:
			if cond, ok := st.crossover(snap.Primary - snap.Secondary); ok {
				c := CondForCross(indicator.KindOBV, cond)
				alerts = append(alerts, model.NewAlert(m, snap.Label, c, snap.Primary, price, ts))
			}
		case indicator.KindRSI:
			if cond, ok := st.threshold(snap.Primary, snap.Config.Overbought, snap.Config.Oversold); ok {
				alerts = append(alerts, model.NewAlert(m, snap.Label, cond, snap.Primary, price, ts))
			}
		}
	}
	return alerts
}

// Prune drops state for markets not present in active, so removed
// markets do not leak trigger state across reconfigurations.
func (e *Evaluator) Prune(activeMarkets map[string]bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for key := range e.states {
		if !activeFor(key, activeMarkets) {
			delete(e.states, key)
		}
	}
}

// activeFor reports whether the state key belongs to an active market.
// State keys are "<market key>:<label>" with the market key itself
// containing two colons.
func activeFor(stateKey string, active map[string]bool) bool {
	for mk := range active {
		if len(stateKey) > len(mk) && stateKey[:len(mk)] == mk && stateKey[len(mk)] == ':' {
			return true
		}
	}
	return false
}

// crossDirection is the outcome of a crossover check.
type crossDirection int

const (
	crossUp crossDirection = iota
	crossDown
)

// crossover updates the diff baseline and reports a crossing. Equality is
// not a crossing: firing requires the current diff to be strictly past
// zero with the previous diff at or on the other side.
func (s *condState) crossover(diff float64) (crossDirection, bool) {
	defer func() {
		s.prevDiff = diff
		s.hasPrev = true
	}()

	if !s.hasPrev {
		return 0, false
	}
	if s.prevDiff <= 0 && diff > 0 {
		return crossUp, true
	}
	if s.prevDiff >= 0 && diff < 0 {
		return crossDown, true
	}
	return 0, false
}

// threshold updates the region baseline and fires on region entry.
func (s *condState) threshold(value, overbought, oversold float64) (model.Condition, bool) {
	cur := regionNeutral
	switch {
	case value > overbought:
		cur = regionOverbought
	case value < oversold:
		cur = regionOversold
	}

	prev, had := s.prevRegion, s.hasPrev
	s.prevRegion = cur
	s.hasPrev = true

	if !had || cur == prev || cur == regionNeutral {
		return "", false
	}
	if cur == regionOverbought {
		return model.CondOverbought, true
	}
	return model.CondOversold, true
}

// CondForCross maps a crossover direction to the named condition for the
// indicator family.
func CondForCross(kind indicator.Kind, dir crossDirection) model.Condition {
	switch kind {
	case indicator.KindMACD:
		if dir == crossUp {
			return model.CondMACDBullish
		}
		return model.CondMACDBearish
	case indicator.KindOBV:
		if dir == crossUp {
			return model.CondOBVBullish
		}
		return model.CondOBVBearish
	}
	if dir == crossUp {
		return model.CondGoldenCross
	}
	return model.CondDeathCross
}
