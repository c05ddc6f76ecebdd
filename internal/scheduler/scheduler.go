// Package scheduler drives the analysis loop: every interval it reads
// the current configuration, refreshes candles per market, computes
// indicators, evaluates trigger conditions and hands admitted alerts to
// the notifier. One cycle's worth of work per market runs on its own
// goroutine; a market whose previous evaluation is still in flight is
// skipped for the cycle rather than run twice.
package scheduler

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"sync"
	"time"

	"crypto-signal-bot/internal/candlecache"
	"crypto-signal-bot/internal/chart"
	"crypto-signal-bot/internal/confstore"
	"crypto-signal-bot/internal/dedup"
	"crypto-signal-bot/internal/indicator"
	"crypto-signal-bot/internal/logger"
	"crypto-signal-bot/internal/marketdata"
	"crypto-signal-bot/internal/metrics"
	"crypto-signal-bot/internal/model"
	"crypto-signal-bot/internal/notify"
	"crypto-signal-bot/internal/trigger"
)

// minChartWindow keeps enough candles around for readable charts even
// when the configured lookbacks are short.
const minChartWindow = 60

// Archive persists refreshed candles and warms the cache at startup.
// sqlite.Archive satisfies it; a nil Archive disables archiving.
type Archive interface {
	WriteCandles(ctx context.Context, m model.Market, candles []model.Candle) error
	ReadWindow(ctx context.Context, m model.Market, limit int) ([]model.Candle, error)
}

// History records admitted alerts for later inspection. Best-effort: a
// failed append never blocks delivery.
type History interface {
	Append(ctx context.Context, alert model.Alert) error
}

// Deps wires the scheduler's collaborators. Store, Cache and Notifier
// are required; the rest may be nil.
type Deps struct {
	Store    confstore.Store
	Cache    *candlecache.Cache
	Notifier notify.Notifier
	Archive  Archive
	History  History
	Metrics  *metrics.Metrics
	Health   *metrics.HealthStatus

	// Now is the clock, defaulting to time.Now. Tests inject a fake.
	Now func() time.Time

	// DrainTimeout bounds how long Run waits for in-flight market
	// evaluations after its context is cancelled.
	DrainTimeout time.Duration
}

// Scheduler owns all per-market analysis state and the cycle loop.
type Scheduler struct {
	store    confstore.Store
	cache    *candlecache.Cache
	engine   *indicator.Engine
	eval     *trigger.Evaluator
	limiter  *dedup.Limiter
	notifier notify.Notifier
	archive  Archive
	history  History
	metrics  *metrics.Metrics
	health   *metrics.HealthStatus

	now          func() time.Time
	drainTimeout time.Duration

	mu       sync.Mutex
	inFlight map[string]bool
	lastRun  map[string]time.Time
	wg       sync.WaitGroup
}

func New(deps Deps) *Scheduler {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	drain := deps.DrainTimeout
	if drain <= 0 {
		drain = 10 * time.Second
	}
	return &Scheduler{
		store:        deps.Store,
		cache:        deps.Cache,
		engine:       indicator.NewEngine(),
		eval:         trigger.NewEvaluator(),
		limiter:      dedup.NewLimiter(time.Minute),
		notifier:     deps.Notifier,
		archive:      deps.Archive,
		history:      deps.History,
		metrics:      deps.Metrics,
		health:       deps.Health,
		now:          now,
		drainTimeout: drain,
		inFlight:     make(map[string]bool),
		lastRun:      make(map[string]time.Time),
	}
}

// WarmUp seeds the candle cache from the archive so indicators are ready
// shortly after a restart instead of after a full lookback of fetches.
func (s *Scheduler) WarmUp(ctx context.Context) {
	if s.archive == nil {
		return
	}
	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		log.Printf("[scheduler] warm-up skipped, config unavailable: %v", err)
		return
	}
	for _, mc := range snap.Markets {
		capacity := s.capacityFor(enabledConfigs(mc.Indicators))
		candles, err := s.archive.ReadWindow(ctx, mc.Market, capacity)
		if err != nil {
			log.Printf("[scheduler] warm-up read failed for %s: %v", mc.Market.Key(), err)
			continue
		}
		if len(candles) > 0 {
			s.cache.Seed(mc.Market, capacity, candles)
			log.Printf("[scheduler] warmed %s with %d archived candles", mc.Market.Key(), len(candles))
		}
	}
}

// Run executes cycles until ctx is cancelled, then drains in-flight
// market evaluations for at most DrainTimeout.
func (s *Scheduler) Run(ctx context.Context) error {
	log.Printf("[scheduler] starting analysis loop")
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.drain()
			return ctx.Err()
		case <-timer.C:
		}

		interval := s.runCycle(ctx)
		timer.Reset(interval)
	}
}

// runCycle performs one pass over all configured markets and returns the
// interval to wait before the next pass.
func (s *Scheduler) runCycle(ctx context.Context) time.Duration {
	const fallbackInterval = time.Minute

	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		log.Printf("[scheduler] config snapshot failed, retrying next cycle: %v", err)
		return fallbackInterval
	}
	interval := snap.Interval
	if interval <= 0 {
		interval = fallbackInterval
	}

	cycleStart := s.now()
	// Every log line and downstream call of this pass carries the same
	// correlation ID, so one cycle can be grepped together.
	ctx = logger.WithCycleID(ctx, logger.GenerateCycleID(cycleStart))
	if s.metrics != nil {
		s.metrics.CyclesTotal.Inc()
		s.metrics.TrackedMarkets.Set(float64(len(snap.Markets)))
	}

	// Cooldown follows config each cycle. An explicitly configured value
	// is honored as-is; unset falls back to one interval, floored so very
	// fast loops still dedup meaningfully.
	cooldown := snap.Cooldown
	if cooldown <= 0 {
		cooldown = interval
		if cooldown < time.Minute {
			cooldown = time.Minute
		}
	}
	s.limiter.SetCooldown(cooldown)

	s.pruneRemoved(snap)

	var cycleWG sync.WaitGroup
	for _, mc := range snap.Markets {
		mc := mc
		key := mc.Market.Key()

		if due := s.markStarted(key, snap.IntervalFor(mc.Market), cycleStart); !due {
			continue
		}
		s.wg.Add(1)
		cycleWG.Add(1)
		go func() {
			defer s.wg.Done()
			defer cycleWG.Done()
			defer s.markDone(key)
			s.evaluateMarket(ctx, mc)
		}()
	}

	// Observe the cycle once its own markets finish; late stragglers
	// from earlier cycles are not this cycle's cost.
	go func() {
		cycleWG.Wait()
		if s.metrics != nil {
			s.metrics.CycleDur.Observe(s.now().Sub(cycleStart).Seconds())
			s.metrics.CachedCandles.Set(float64(s.cache.Size()))
		}
	}()

	if s.health != nil {
		s.health.SetLastCycle(cycleStart, len(snap.Markets))
	}
	return interval
}

// markStarted reports whether the market is due this cycle and, if so,
// flags it in flight. A market still running from a previous cycle, or
// one whose per-market interval has not elapsed, is skipped.
func (s *Scheduler) markStarted(key string, interval time.Duration, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inFlight[key] {
		log.Printf("[scheduler] %s still in flight, skipping cycle", key)
		s.countPair("skipped_inflight")
		return false
	}
	if last, ok := s.lastRun[key]; ok && now.Sub(last) < interval {
		return false
	}
	s.inFlight[key] = true
	s.lastRun[key] = now
	return true
}

func (s *Scheduler) markDone(key string) {
	s.mu.Lock()
	delete(s.inFlight, key)
	s.mu.Unlock()
}

// pruneRemoved drops all engine, trigger, cooldown and cache state for
// markets no longer present in the configuration.
func (s *Scheduler) pruneRemoved(snap confstore.Snapshot) {
	active := make(map[string]bool, len(snap.Markets))
	for _, mc := range snap.Markets {
		active[mc.Market.Key()] = true
	}
	s.engine.Prune(active)
	s.eval.Prune(active)
	s.limiter.Prune(active)
	s.cache.Prune(active)

	s.mu.Lock()
	for key := range s.lastRun {
		if !active[key] {
			delete(s.lastRun, key)
		}
	}
	s.mu.Unlock()
}

// evaluateMarket runs the full pipeline for one market: refresh candles,
// compute indicators, evaluate triggers, deliver admitted alerts.
// Failures are market-scoped; one pair never takes down a cycle.
func (s *Scheduler) evaluateMarket(ctx context.Context, mc confstore.MarketConfig) {
	m := mc.Market
	configs := enabledConfigs(mc.Indicators)
	if len(configs) == 0 {
		return
	}
	capacity := s.capacityFor(configs)

	window, err := s.cache.Refresh(ctx, m, capacity)
	if err != nil {
		slog.Warn("refresh failed", cycleArgs(ctx, "market", m.Key(), "err", err)...)
		s.countPair("data_unavailable")
		s.countProviderError(err)
		return
	}
	if s.metrics != nil {
		s.metrics.CandlesFetched.Add(float64(len(window)))
	}

	if s.archive != nil {
		start := s.now()
		if err := s.archive.WriteCandles(ctx, m, window); err != nil {
			slog.Warn("archive write failed", cycleArgs(ctx, "market", m.Key(), "err", err)...)
		} else if s.metrics != nil {
			s.metrics.ArchiveWriteDur.Observe(s.now().Sub(start).Seconds())
		}
	}

	snaps := s.engine.Compute(m, configs, window)
	if len(window) == 0 {
		s.countPair("ok")
		return
	}
	price := window[len(window)-1].Close

	alerts := s.eval.Evaluate(m, snaps, price, s.now())
	var admitted []model.Alert
	for _, alert := range alerts {
		if !s.limiter.Admit(alert) {
			slog.Info("alert suppressed by cooldown", cycleArgs(ctx, "alert", alert.String())...)
			if s.metrics != nil {
				s.metrics.AlertsSuppressed.Inc()
			}
			continue
		}
		admitted = append(admitted, alert)
	}
	if len(admitted) > 0 {
		s.deliver(ctx, m, admitted, configs, window)
	}
	s.countPair("ok")
}

// deliver sends a market's admitted alerts, all sharing one chart built
// from the indicators that fired this cycle. Delivery is at-most-once:
// failures are logged and counted, never retried.
func (s *Scheduler) deliver(ctx context.Context, m model.Market, admitted []model.Alert, configs []indicator.Config, window []model.Candle) {
	fired := make([]indicator.Config, 0, len(admitted))
	for _, alert := range admitted {
		fired = append(fired, configsForLabel(configs, alert.Indicator)...)
	}
	spec := chart.Build(m, window, fired)

	for _, alert := range admitted {
		if s.metrics != nil {
			s.metrics.AlertsFired.WithLabelValues(string(alert.Condition)).Inc()
		}
		slog.Info("alert fired", cycleArgs(ctx, "alert", alert.String())...)
		if err := s.notifier.Notify(ctx, alert, &spec); err != nil {
			slog.Error("notify failed", cycleArgs(ctx, "alert_id", alert.ID, "err", err)...)
			if s.metrics != nil {
				s.metrics.NotifyFailures.Inc()
			}
		}

		if s.history != nil {
			if err := s.history.Append(ctx, alert); err != nil {
				slog.Warn("history append failed", cycleArgs(ctx, "err", err)...)
			}
		}
	}
}

func (s *Scheduler) drain() {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		log.Printf("[scheduler] drained cleanly")
	case <-time.After(s.drainTimeout):
		log.Printf("[scheduler] WARNING: drain timeout after %v, abandoning in-flight work", s.drainTimeout)
	}
}

func (s *Scheduler) capacityFor(configs []indicator.Config) int {
	capacity := indicator.MaxLookback(configs)
	if capacity < minChartWindow {
		capacity = minChartWindow
	}
	return capacity
}

// cycleArgs appends the cycle correlation attrs from ctx to the given
// slog key/value pairs.
func cycleArgs(ctx context.Context, args ...any) []any {
	return append(args, logger.LogWithCycle(ctx)...)
}

func (s *Scheduler) countPair(result string) {
	if s.metrics != nil {
		s.metrics.PairEvaluations.WithLabelValues(result).Inc()
	}
}

func (s *Scheduler) countProviderError(err error) {
	if s.metrics == nil {
		return
	}
	kind := "unavailable"
	if errors.Is(err, marketdata.ErrRateLimited) {
		kind = "rate_limited"
	}
	s.metrics.ProviderErrors.WithLabelValues(kind).Inc()
}

// enabledConfigs filters a market's indicator set down to the enabled,
// valid entries. Invalid configs are disabled with a log line instead of
// poisoning the whole market.
func enabledConfigs(configs []indicator.Config) []indicator.Config {
	out := make([]indicator.Config, 0, len(configs))
	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}
		if err := cfg.Validate(); err != nil {
			log.Printf("[scheduler] disabling invalid indicator config %s: %v", cfg.Label(), err)
			continue
		}
		out = append(out, cfg)
	}
	return out
}

func configsForLabel(configs []indicator.Config, label string) []indicator.Config {
	for _, cfg := range configs {
		if cfg.Label() == label {
			return []indicator.Config{cfg}
		}
	}
	return nil
}
