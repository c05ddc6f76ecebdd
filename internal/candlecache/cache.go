// Package candlecache maintains per-market rolling OHLCV buffers,
// refreshed incrementally from a Market Data Provider.
//
// Each buffer is bounded by the longest configured indicator lookback
// (plus chart headroom); older candles are evicted FIFO. The last candle
// of a refresh may still be open on the exchange, so a refresh replaces
// an existing tail candle with the same open time instead of appending a
// duplicate.
package candlecache

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"crypto-signal-bot/internal/marketdata"
	"crypto-signal-bot/internal/model"
)

const (
	defaultRetries = 3
	defaultBackoff = 500 * time.Millisecond
)

// Cache holds the rolling candle buffers for all configured markets.
// Refresh for a single market is never called concurrently (the scheduler
// guarantees one in-flight cycle per market), but Size and Window are
// read from other goroutines, so the lock guards the buffer map and every
// buffer's contents. The provider fetch itself runs outside the lock.
type Cache struct {
	provider marketdata.Provider
	retries  int
	backoff  time.Duration

	mu      sync.Mutex
	buffers map[string]*buffer
}

type buffer struct {
	candles  []model.Candle
	capacity int
}

// New creates a cache over the given provider with default retry policy.
func New(provider marketdata.Provider) *Cache {
	return &Cache{
		provider: provider,
		retries:  defaultRetries,
		backoff:  defaultBackoff,
		buffers:  make(map[string]*buffer),
	}
}

// SetRetryPolicy overrides the refresh retry count and initial backoff.
func (c *Cache) SetRetryPolicy(retries int, backoff time.Duration) {
	c.retries = retries
	c.backoff = backoff
}

// Refresh fetches candles newer than the buffer's last known open time,
// merges them in, evicts beyond capacity and returns a copy of the
// window. On provider failure the previous buffer is retained unchanged
// and the wrapped error carries marketdata.ErrDataUnavailable.
func (c *Cache) Refresh(ctx context.Context, market model.Market, capacity int) ([]model.Candle, error) {
	c.mu.Lock()
	buf := c.getOrCreateLocked(market.Key(), capacity)
	var since time.Time
	if n := len(buf.candles); n > 0 {
		// Re-request the tail candle too: it may have been open last cycle.
		since = buf.candles[n-1].OpenTime
	}
	c.mu.Unlock()

	fetched, err := c.fetchWithRetry(ctx, market, since, capacity)
	if err != nil {
		return nil, err
	}

	// Re-acquire after the fetch; the buffer may have been pruned while
	// the request was in flight.
	c.mu.Lock()
	defer c.mu.Unlock()
	buf = c.getOrCreateLocked(market.Key(), capacity)
	buf.merge(fetched)
	buf.evict()
	if len(buf.candles) == 0 {
		return nil, fmt.Errorf("refresh %s: provider returned no candles: %w",
			market.Key(), marketdata.ErrDataUnavailable)
	}
	return buf.window(), nil
}

// Window returns a copy of the current buffer without refreshing.
func (c *Cache) Window(market model.Market) []model.Candle {
	c.mu.Lock()
	defer c.mu.Unlock()
	if buf, ok := c.buffers[market.Key()]; ok {
		return buf.window()
	}
	return nil
}

// Seed populates an empty buffer, e.g. from the candle archive at
// startup. Seeding a non-empty buffer is a no-op.
func (c *Cache) Seed(market model.Market, capacity int, candles []model.Candle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	buf := c.getOrCreateLocked(market.Key(), capacity)
	if len(buf.candles) > 0 || len(candles) == 0 {
		return
	}
	buf.merge(candles)
	buf.evict()
	log.Printf("[candlecache] %s: seeded %d candles", market.Key(), len(buf.candles))
}

// Prune drops buffers for markets not present in active.
func (c *Cache) Prune(active map[string]bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.buffers {
		if !active[key] {
			delete(c.buffers, key)
		}
	}
}

// Size returns the total number of cached candles across markets.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := 0
	for _, buf := range c.buffers {
		total += len(buf.candles)
	}
	return total
}

// getOrCreateLocked looks up or creates a buffer. Callers hold c.mu.
func (c *Cache) getOrCreateLocked(key string, capacity int) *buffer {
	buf, ok := c.buffers[key]
	if !ok {
		buf = &buffer{capacity: capacity}
		c.buffers[key] = buf
	}
	// A config change can raise the required lookback mid-run.
	if capacity > buf.capacity {
		buf.capacity = capacity
	}
	return buf
}

// fetchWithRetry calls the provider with exponential backoff. Rate-limit
// rejections wait a full extra backoff step before the next attempt.
func (c *Cache) fetchWithRetry(ctx context.Context, market model.Market, since time.Time, limit int) ([]model.Candle, error) {
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			wait := c.backoff << (attempt - 1)
			if lastErr != nil && isRateLimited(lastErr) {
				wait += c.backoff << attempt
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}

		candles, err := c.provider.Candles(ctx, market, since, limit)
		if err == nil {
			return candles, nil
		}
		lastErr = err
		log.Printf("[candlecache] %s: fetch attempt %d/%d failed: %v",
			market.Key(), attempt+1, c.retries+1, err)
	}
	return nil, fmt.Errorf("refresh %s after %d attempts: %w", market.Key(), c.retries+1, lastErr)
}

func isRateLimited(err error) bool {
	return errors.Is(err, marketdata.ErrRateLimited)
}

// merge appends candles newer than the current tail and replaces the tail
// when the provider re-sends it (still-open candle update). Candles older
// than the tail are duplicates of what we already hold and are dropped.
func (b *buffer) merge(fetched []model.Candle) {
	for _, cd := range fetched {
		n := len(b.candles)
		if n == 0 {
			b.candles = append(b.candles, cd)
			continue
		}
		last := b.candles[n-1].OpenTime
		switch {
		case cd.OpenTime.After(last):
			b.candles = append(b.candles, cd)
		case cd.OpenTime.Equal(last):
			b.candles[n-1] = cd // still-open tail updated in place
		}
	}
}

func (b *buffer) evict() {
	if b.capacity > 0 && len(b.candles) > b.capacity {
		drop := len(b.candles) - b.capacity
		b.candles = append(b.candles[:0], b.candles[drop:]...)
	}
}

func (b *buffer) window() []model.Candle {
	out := make([]model.Candle, len(b.candles))
	copy(out, b.candles)
	return out
}
