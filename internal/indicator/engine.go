package indicator

import (
	"log"
	"sync"
	"time"

	"crypto-signal-bot/internal/model"
)

// Engine maintains incremental indicator state per market and computes the
// per-cycle snapshots the trigger evaluator consumes.
//
// Each cycle hands the engine the market's current candle window. The
// window's tail may still be forming on the exchange, so it is never
// committed: only the closed candles that are new since the previous cycle
// advance the incremental indicators, and the snapshot previews the tail
// through the Peek path. When the next cycle delivers the tail's final
// close it is committed like any other closed candle. If the window no
// longer contains the candle the engine stopped at (the cache was reset or
// the market gapped), the state is considered stale and rebuilt by
// replaying the window.
type Engine struct {
	mu     sync.Mutex
	states map[string]*marketState
}

// marketState holds the live indicator instances for one market.
type marketState struct {
	sets     map[string]*indicatorSet // keyed by Config.Label()
	lastOpen time.Time                // open time of the last committed candle
}

// indicatorSet holds the instances backing one configured indicator.
type indicatorSet struct {
	cfg  Config
	fast *SMA // MA pair
	slow *SMA
	rsi  *RSI
	macd *MACD
	obv  *OBV
}

// NewEngine creates an empty indicator engine.
func NewEngine() *Engine {
	return &Engine{states: make(map[string]*marketState)}
}

// Compute updates the indicator state for market m from the given candle
// window and returns one snapshot per enabled config, in config order.
// Configs must be pre-validated; indicators for removed configs are
// dropped, indicators for new configs are warmed from the window.
func (e *Engine) Compute(m model.Market, configs []Config, window []model.Candle) []Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := m.Key()
	st, ok := e.states[key]
	if !ok {
		st = &marketState{sets: make(map[string]*indicatorSet, len(configs))}
		e.states[key] = st
	}

	// The tail candle may still be open on the exchange: it is previewed
	// in the snapshot, never committed to incremental state.
	var (
		closed  []model.Candle
		tail    model.Candle
		hasTail bool
	)
	if n := len(window); n > 0 {
		closed, tail, hasTail = window[:n-1], window[n-1], true
	}

	// Figure out which closed candles are new since last cycle.
	feedFrom, stale := newCandleOffset(closed, st.lastOpen)
	if stale {
		log.Printf("[indicator] %s: candle window discontinuous, rebuilding state", key)
		st.sets = make(map[string]*indicatorSet, len(configs))
		feedFrom = 0
	}

	// Reconcile indicator sets with the current config. Fresh sets replay
	// all closed candles; surviving sets only see the new ones.
	wanted := make(map[string]bool, len(configs))
	for _, cfg := range configs {
		label := cfg.Label()
		wanted[label] = true
		set, exists := st.sets[label]
		if exists && set.cfg == cfg {
			set.feed(closed[feedFrom:])
			continue
		}
		set = newIndicatorSet(cfg)
		set.feed(closed)
		st.sets[label] = set
	}
	for label := range st.sets {
		if !wanted[label] {
			delete(st.sets, label)
		}
	}

	if len(closed) > 0 {
		st.lastOpen = closed[len(closed)-1].OpenTime
	} else {
		st.lastOpen = time.Time{}
	}

	snaps := make([]Snapshot, 0, len(configs))
	for _, cfg := range configs {
		snaps = append(snaps, st.sets[cfg.Label()].snapshot(tail, hasTail))
	}
	return snaps
}

// Prune drops state for markets not present in active. Called at cycle
// start so removed markets do not leak indicator state.
func (e *Engine) Prune(active map[string]bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for key := range e.states {
		if !active[key] {
			delete(e.states, key)
		}
	}
}

// Tracked returns the number of markets with live state (for metrics).
func (e *Engine) Tracked() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.states)
}

// newCandleOffset locates the first window index that has not been fed
// yet. stale is true when lastOpen is set but no longer inside the window,
// meaning continuity is broken and a full replay is required.
func newCandleOffset(window []model.Candle, lastOpen time.Time) (from int, stale bool) {
	if lastOpen.IsZero() {
		return 0, false
	}
	for i := len(window) - 1; i >= 0; i-- {
		if window[i].OpenTime.Equal(lastOpen) {
			return i + 1, false
		}
		if window[i].OpenTime.Before(lastOpen) {
			break
		}
	}
	return 0, true
}

func newIndicatorSet(cfg Config) *indicatorSet {
	set := &indicatorSet{cfg: cfg}
	switch cfg.Kind {
	case KindMA:
		set.fast = NewSMA(cfg.FastPeriod)
		set.slow = NewSMA(cfg.SlowPeriod)
	case KindRSI:
		set.rsi = NewRSI(cfg.Period)
	case KindMACD:
		set.macd = NewMACD(cfg.FastPeriod, cfg.SlowPeriod, cfg.SignalPeriod)
	case KindOBV:
		set.obv = NewOBV(cfg.SignalPeriod)
	}
	return set
}

func (s *indicatorSet) feed(candles []model.Candle) {
	for _, c := range candles {
		switch s.cfg.Kind {
		case KindMA:
			s.fast.Update(c)
			s.slow.Update(c)
		case KindRSI:
			s.rsi.Update(c)
		case KindMACD:
			s.macd.Update(c)
		case KindOBV:
			s.obv.Update(c)
		}
	}
}

// snapshot derives the per-cycle values, previewing the still-forming
// tail candle through Peek so its provisional close stays out of state.
func (s *indicatorSet) snapshot(tail model.Candle, hasTail bool) Snapshot {
	snap := Snapshot{Config: s.cfg, Label: s.cfg.Label()}
	if !hasTail {
		switch s.cfg.Kind {
		case KindMA:
			snap.Ready = s.slow.Ready()
			snap.Primary = s.fast.Value()
			snap.Secondary = s.slow.Value()
		case KindRSI:
			snap.Ready = s.rsi.Ready()
			snap.Primary = s.rsi.Value()
		case KindMACD:
			snap.Ready = s.macd.Ready()
			snap.Primary = s.macd.Value()
			snap.Secondary = s.macd.Signal()
		case KindOBV:
			snap.Ready = s.obv.Ready()
			snap.Primary = s.obv.Value()
			snap.Secondary = s.obv.Signal()
		}
		return snap
	}

	switch s.cfg.Kind {
	case KindMA:
		snap.Ready = s.slow.PeekReady()
		snap.Primary = s.fast.Peek(tail.Close)
		snap.Secondary = s.slow.Peek(tail.Close)
	case KindRSI:
		snap.Ready = s.rsi.PeekReady()
		snap.Primary = s.rsi.Peek(tail.Close)
	case KindMACD:
		snap.Ready = s.macd.PeekReady()
		snap.Primary, snap.Secondary = s.macd.Peek(tail.Close)
	case KindOBV:
		snap.Ready = s.obv.PeekReady()
		snap.Primary, snap.Secondary = s.obv.Peek(tail.Close, tail.Volume)
	}
	return snap
}
