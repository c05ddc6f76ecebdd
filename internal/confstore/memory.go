package confstore

import (
	"context"
	"sync"
	"time"

	"crypto-signal-bot/internal/indicator"
	"crypto-signal-bot/internal/model"
)

// Memory is the in-process Store used by tests and by deployments that
// run without Redis. Mutations survive only as long as the process.
type Memory struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewMemory builds a store seeded with the given initial configuration.
func NewMemory(initial Snapshot) *Memory {
	return &Memory{snap: clone(initial)}
}

func (m *Memory) Snapshot(ctx context.Context) (Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return clone(m.snap), nil
}

func (m *Memory) AddMarket(ctx context.Context, mk model.Market, indicators []indicator.Config) error {
	return m.mutate(func(s *Snapshot) error { return applyAddMarket(s, mk, indicators) })
}

func (m *Memory) RemoveMarket(ctx context.Context, mk model.Market) error {
	return m.mutate(func(s *Snapshot) error { return applyRemoveMarket(s, mk) })
}

func (m *Memory) SetIndicator(ctx context.Context, mk model.Market, cfg indicator.Config) error {
	return m.mutate(func(s *Snapshot) error { return applySetIndicator(s, mk, cfg) })
}

func (m *Memory) EnableIndicator(ctx context.Context, mk model.Market, label string, enabled bool) error {
	return m.mutate(func(s *Snapshot) error { return applyEnableIndicator(s, mk, label, enabled) })
}

func (m *Memory) SetInterval(ctx context.Context, d time.Duration) error {
	return m.mutate(func(s *Snapshot) error { return applySetInterval(s, d) })
}

func (m *Memory) SetMarketInterval(ctx context.Context, mk model.Market, d time.Duration) error {
	return m.mutate(func(s *Snapshot) error { return applySetMarketInterval(s, mk, d) })
}

func (m *Memory) SetCooldown(ctx context.Context, d time.Duration) error {
	return m.mutate(func(s *Snapshot) error { return applySetCooldown(s, d) })
}

func (m *Memory) mutate(fn func(*Snapshot) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	work := clone(m.snap)
	if err := fn(&work); err != nil {
		return err
	}
	m.snap = work
	return nil
}
