// Package dedup suppresses repeat alerts for the same
// (market, indicator, condition) within a cooldown window.
//
// The cooldown memory lives in-process only: a restart clears it. That is
// a deliberate trade — the worst case after a restart is one early
// duplicate alert, which is preferable to dragging in durable storage for
// throwaway state.
package dedup

import (
	"sync"
	"time"

	"crypto-signal-bot/internal/model"
)

// Stats counts limiter decisions for observability.
type Stats struct {
	Admitted   uint64
	Suppressed uint64
}

// Limiter tracks last-fired timestamps per (market, indicator, condition).
type Limiter struct {
	cooldown time.Duration

	mu        sync.Mutex
	lastFired map[string]time.Time
	stats     Stats
}

// NewLimiter creates a limiter with the given cooldown window.
func NewLimiter(cooldown time.Duration) *Limiter {
	return &Limiter{
		cooldown:  cooldown,
		lastFired: make(map[string]time.Time),
	}
}

// SetCooldown updates the cooldown window; picked up by the next Admit.
func (l *Limiter) SetCooldown(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cooldown = d
}

// Admit reports whether the candidate alert may be delivered. An alert is
// admitted when no prior fire exists for its dedup key or the cooldown
// has fully elapsed (admission exactly at expiry is allowed). Suppressed
// candidates update nothing.
func (l *Limiter) Admit(alert model.Alert) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := alert.DedupKey()
	if last, ok := l.lastFired[key]; ok {
		if alert.Timestamp.Sub(last) < l.cooldown {
			l.stats.Suppressed++
			return false
		}
	}

	l.lastFired[key] = alert.Timestamp
	l.stats.Admitted++
	return true
}

// Prune drops cooldown entries for markets not present in active, keeping
// the map from growing as markets come and go.
func (l *Limiter) Prune(activeMarkets map[string]bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key := range l.lastFired {
		if !keyActive(key, activeMarkets) {
			delete(l.lastFired, key)
		}
	}
}

// Stats returns a copy of the decision counters.
func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}

// Tracked returns the number of live cooldown entries.
func (l *Limiter) Tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.lastFired)
}

// keyActive reports whether the dedup key ("<market key>:<indicator>:<condition>")
// belongs to an active market.
func keyActive(dedupKey string, active map[string]bool) bool {
	for mk := range active {
		if len(dedupKey) > len(mk) && dedupKey[:len(mk)] == mk && dedupKey[len(mk)] == ':' {
			return true
		}
	}
	return false
}
