// Package redis keeps a rolling history of fired alerts in a Redis list,
// so operators (and the Telegram command layer) can inspect recent
// signals across restarts. History writes are best-effort: the engine
// never blocks an alert on Redis being down.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"crypto-signal-bot/internal/model"
)

const (
	alertHistoryKey    = "signalbot:alert_history"
	defaultHistoryLen  = 500
	breakerMaxFailures = 5
	breakerResetAfter  = 15 * time.Second
)

// History is the Redis-backed alert log.
type History struct {
	rdb    *goredis.Client
	cb     *CircuitBreaker
	maxLen int64
}

// NewHistory builds a history capped at maxLen entries (0 uses the
// default). Writes go through a circuit breaker so a Redis outage costs
// one failed call per reset window instead of one per alert.
func NewHistory(rdb *goredis.Client, maxLen int64) *History {
	if maxLen <= 0 {
		maxLen = defaultHistoryLen
	}
	cb := NewCircuitBreaker(breakerMaxFailures, breakerResetAfter)
	cb.OnStateChange = func(from, to State) {
		log.Printf("[history] circuit breaker %s -> %s", from, to)
	}
	return &History{rdb: rdb, cb: cb, maxLen: maxLen}
}

// Append records an admitted alert. Failures are returned for metrics
// but must not block delivery.
func (h *History) Append(ctx context.Context, alert model.Alert) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("history: marshal alert: %w", err)
	}
	return h.cb.Execute(func() error {
		pipe := h.rdb.TxPipeline()
		pipe.LPush(ctx, alertHistoryKey, data)
		pipe.LTrim(ctx, alertHistoryKey, 0, h.maxLen-1)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("history: append: %w", err)
		}
		return nil
	})
}

// Recent returns up to n alerts, newest first.
func (h *History) Recent(ctx context.Context, n int64) ([]model.Alert, error) {
	if n <= 0 || n > h.maxLen {
		n = h.maxLen
	}
	raw, err := h.rdb.LRange(ctx, alertHistoryKey, 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("history: read: %w", err)
	}
	alerts := make([]model.Alert, 0, len(raw))
	for _, item := range raw {
		var a model.Alert
		if err := json.Unmarshal([]byte(item), &a); err != nil {
			// A corrupt entry should not hide the rest of the log.
			log.Printf("[history] WARNING: dropping corrupt entry: %v", err)
			continue
		}
		alerts = append(alerts, a)
	}
	return alerts, nil
}
