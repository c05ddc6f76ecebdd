package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the signal engine.
type Metrics struct {
	CyclesTotal prometheus.Counter
	CycleDur    prometheus.Histogram

	// Per-pair evaluation outcomes (ok, data_unavailable, skipped_inflight,
	// config_invalid).
	PairEvaluations *prometheus.CounterVec

	// Provider failures by kind (rate_limited, unavailable).
	ProviderErrors *prometheus.CounterVec

	CandlesFetched prometheus.Counter

	AlertsFired      *prometheus.CounterVec // labels: condition
	AlertsSuppressed prometheus.Counter
	NotifyFailures   prometheus.Counter

	TrackedMarkets prometheus.Gauge
	CachedCandles  prometheus.Gauge

	ArchiveWriteDur prometheus.Histogram
}

// NewMetrics registers and returns all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		CyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signalbot_cycles_total",
			Help: "Total analysis cycles started",
		}),
		CycleDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "signalbot_cycle_duration_seconds",
			Help:    "Wall-clock duration of a full analysis cycle",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		PairEvaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signalbot_pair_evaluations_total",
			Help: "Per-pair evaluation outcomes per cycle",
		}, []string{"result"}),
		ProviderErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signalbot_provider_errors_total",
			Help: "Market data provider failures by kind",
		}, []string{"kind"}),
		CandlesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signalbot_candles_fetched_total",
			Help: "Candles fetched from the market data provider",
		}),
		AlertsFired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signalbot_alerts_fired_total",
			Help: "Alerts admitted past the cooldown filter (by condition)",
		}, []string{"condition"}),
		AlertsSuppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signalbot_alerts_suppressed_total",
			Help: "Alerts suppressed by the cooldown filter",
		}),
		NotifyFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signalbot_notify_failures_total",
			Help: "Alert deliveries that failed (alerts are not retried)",
		}),
		TrackedMarkets: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "signalbot_tracked_markets",
			Help: "Markets currently under analysis",
		}),
		CachedCandles: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "signalbot_cached_candles",
			Help: "Candles currently held across all cache buffers",
		}),
		ArchiveWriteDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "signalbot_archive_write_duration_seconds",
			Help:    "SQLite candle archive batch write latency",
			Buckets: prometheus.DefBuckets,
		}),
	}

	prometheus.MustRegister(
		m.CyclesTotal,
		m.CycleDur,
		m.PairEvaluations,
		m.ProviderErrors,
		m.CandlesFetched,
		m.AlertsFired,
		m.AlertsSuppressed,
		m.NotifyFailures,
		m.TrackedMarkets,
		m.CachedCandles,
		m.ArchiveWriteDur,
	)

	return m
}

// HealthStatus represents the system health.
type HealthStatus struct {
	mu sync.RWMutex

	RedisConnected bool      `json:"redis_connected"`
	SQLiteOK       bool      `json:"sqlite_ok"`
	LastCycleAt    time.Time `json:"last_cycle_at"`
	TrackedPairs   int       `json:"tracked_pairs"`

	// Liveness probe results
	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		StartedAt: time.Now(),
	}
}

func (h *HealthStatus) SetLastCycle(t time.Time, pairs int) {
	h.mu.Lock()
	h.LastCycleAt = t
	h.TrackedPairs = pairs
	h.mu.Unlock()
}

func (h *HealthStatus) SetRedisConnected(v bool) {
	h.mu.Lock()
	h.RedisConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetSQLiteOK(v bool) {
	h.mu.Lock()
	h.SQLiteOK = v
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite runs a trivial query and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if sqlDB != nil {
					h.CheckSQLite(probeCtx, sqlDB)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK
	if !h.RedisConnected || !h.SQLiteOK {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}
	if !h.RedisConnected && !h.SQLiteOK {
		overallStatus = "unhealthy"
	}

	cycleAge := ""
	if !h.LastCycleAt.IsZero() {
		cycleAge = time.Since(h.LastCycleAt).Round(time.Millisecond).String()
	}

	status := struct {
		Status          string  `json:"status"`
		Uptime          string  `json:"uptime"`
		LastCycleAt     string  `json:"last_cycle_at"`
		CycleAge        string  `json:"cycle_age"`
		TrackedPairs    int     `json:"tracked_pairs"`
		RedisConnected  bool    `json:"redis_connected"`
		RedisLatencyMs  float64 `json:"redis_latency_ms"`
		SQLiteOK        bool    `json:"sqlite_ok"`
		SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
		LastCheckAt     string  `json:"last_check_at"`
	}{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		LastCycleAt:     h.LastCycleAt.Format(time.RFC3339),
		CycleAge:        cycleAge,
		TrackedPairs:    h.TrackedPairs,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		health: health,
		addr:   addr,
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
