package confstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"crypto-signal-bot/internal/indicator"
	"crypto-signal-bot/internal/model"
)

const activeConfigRedisKey = "signalbot:active_config"

// Redis persists the configuration document as JSON under a single key,
// so it survives restarts and can be edited by other processes. Reads
// always hit Redis; the engine sees external edits at its next cycle.
type Redis struct {
	rdb *goredis.Client

	// mu serializes this process's read-modify-write mutations. Writes
	// from other processes are last-write-wins, same as the document
	// model implies.
	mu sync.Mutex
}

// NewRedis builds a Redis-backed store. Init must be called before use.
func NewRedis(rdb *goredis.Client) *Redis {
	return &Redis{rdb: rdb}
}

// Init loads the persisted document, seeding it with initial when the key
// does not exist yet. A Redis outage at startup is fatal to the caller.
func (r *Redis) Init(ctx context.Context, initial Snapshot) error {
	_, err := r.load(ctx)
	if err == goredis.Nil {
		log.Printf("[confstore] no persisted config, seeding %d markets", len(initial.Markets))
		return r.save(ctx, initial)
	}
	if err != nil {
		return fmt.Errorf("confstore: load active config: %w", err)
	}
	return nil
}

func (r *Redis) Snapshot(ctx context.Context) (Snapshot, error) {
	snap, err := r.load(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("confstore: load active config: %w", err)
	}
	return snap, nil
}

func (r *Redis) AddMarket(ctx context.Context, m model.Market, indicators []indicator.Config) error {
	return r.mutate(ctx, func(s *Snapshot) error { return applyAddMarket(s, m, indicators) })
}

func (r *Redis) RemoveMarket(ctx context.Context, m model.Market) error {
	return r.mutate(ctx, func(s *Snapshot) error { return applyRemoveMarket(s, m) })
}

func (r *Redis) SetIndicator(ctx context.Context, m model.Market, cfg indicator.Config) error {
	return r.mutate(ctx, func(s *Snapshot) error { return applySetIndicator(s, m, cfg) })
}

func (r *Redis) EnableIndicator(ctx context.Context, m model.Market, label string, enabled bool) error {
	return r.mutate(ctx, func(s *Snapshot) error { return applyEnableIndicator(s, m, label, enabled) })
}

func (r *Redis) SetInterval(ctx context.Context, d time.Duration) error {
	return r.mutate(ctx, func(s *Snapshot) error { return applySetInterval(s, d) })
}

func (r *Redis) SetMarketInterval(ctx context.Context, m model.Market, d time.Duration) error {
	return r.mutate(ctx, func(s *Snapshot) error { return applySetMarketInterval(s, m, d) })
}

func (r *Redis) SetCooldown(ctx context.Context, d time.Duration) error {
	return r.mutate(ctx, func(s *Snapshot) error { return applySetCooldown(s, d) })
}

func (r *Redis) mutate(ctx context.Context, fn func(*Snapshot) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap, err := r.load(ctx)
	if err != nil {
		return fmt.Errorf("confstore: load active config: %w", err)
	}
	if err := fn(&snap); err != nil {
		return err
	}
	return r.save(ctx, snap)
}

func (r *Redis) load(ctx context.Context) (Snapshot, error) {
	data, err := r.rdb.Get(ctx, activeConfigRedisKey).Result()
	if err != nil {
		return Snapshot{}, err
	}
	var snap Snapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return Snapshot{}, fmt.Errorf("corrupt config document: %w", err)
	}
	return snap, nil
}

func (r *Redis) save(ctx context.Context, snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	if err := r.rdb.Set(ctx, activeConfigRedisKey, data, 0).Err(); err != nil {
		return fmt.Errorf("confstore: persist active config: %w", err)
	}
	return nil
}
