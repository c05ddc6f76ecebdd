package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"crypto-signal-bot/config"
	"crypto-signal-bot/internal/candlecache"
	"crypto-signal-bot/internal/confstore"
	"crypto-signal-bot/internal/logger"
	"crypto-signal-bot/internal/marketdata"
	"crypto-signal-bot/internal/metrics"
	"crypto-signal-bot/internal/notify"
	"crypto-signal-bot/internal/scheduler"
	redisstore "crypto-signal-bot/internal/store/redis"
	sqlitestore "crypto-signal-bot/internal/store/sqlite"
)

// archiveRetention bounds how far back the sqlite candle archive keeps
// data. Anything older than the longest plausible warm-up is dead weight.
const archiveRetention = 30 * 24 * time.Hour

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[signalbot] starting...")

	cfg := config.Load()
	logger.Init("signalbot", slog.LevelInfo)

	// ---- Metrics & health ----
	prom := metrics.NewMetrics()
	health := metrics.NewHealthStatus()
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	// ---- Graceful shutdown wiring ----
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// ---- Redis ----
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
	redisUp := rdb.Ping(pingCtx).Err() == nil
	pingCancel()
	health.SetRedisConnected(redisUp)

	// ---- Configuration store ----
	initial := confstore.Snapshot{
		Interval: cfg.Interval,
		Cooldown: cfg.Cooldown,
	}
	for _, m := range cfg.ParseMarkets() {
		initial.Markets = append(initial.Markets, confstore.MarketConfig{
			Market:     m,
			Indicators: confstore.DefaultIndicators(),
		})
	}

	var store confstore.Store
	switch cfg.ConfigBackend {
	case "redis":
		rstore := confstore.NewRedis(rdb)
		initCtx, initCancel := context.WithTimeout(ctx, 5*time.Second)
		err := rstore.Init(initCtx, initial)
		initCancel()
		if err != nil {
			// Without the config document there is nothing to analyze.
			log.Fatalf("[signalbot] config store init failed: %v", err)
		}
		store = rstore
		log.Printf("[signalbot] using redis config store at %s", cfg.RedisAddr)
	case "memory":
		store = confstore.NewMemory(initial)
		log.Printf("[signalbot] using in-memory config store (%d markets)", len(initial.Markets))
	default:
		log.Fatalf("[signalbot] unknown CONFIG_BACKEND %q", cfg.ConfigBackend)
	}

	// ---- SQLite candle archive ----
	if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
		os.MkdirAll(dir, 0o755)
	}
	archive, err := sqlitestore.Open(cfg.SQLitePath)
	if err != nil {
		log.Fatalf("[signalbot] sqlite init failed: %v", err)
	}
	defer archive.Close()
	health.SetSQLiteOK(true)

	health.StartLivenessChecker(ctx, rdb, archive.DB(), 10*time.Second)

	// ---- Alert history (best-effort) ----
	var history scheduler.History
	if redisUp {
		history = redisstore.NewHistory(rdb, 0)
	} else {
		log.Printf("[signalbot] WARNING: redis unreachable, alert history disabled")
	}

	// ---- Market data & cache ----
	provider := marketdata.NewBinanceProvider(cfg.BinanceAPIKey, cfg.BinanceAPISecret)
	cache := candlecache.New(provider)

	// ---- Notification backends ----
	backends := []notify.Notifier{notify.NewLogNotifier()}
	if cfg.TelegramToken != "" {
		// Rasterization is external; without a renderer alerts go out as
		// text, which is still the full signal payload.
		tg, err := notify.NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChatID, nil)
		if err != nil {
			log.Fatalf("[signalbot] telegram init failed: %v", err)
		}
		backends = append(backends, tg)
	} else {
		log.Printf("[signalbot] no telegram token, running log-only notification")
	}
	if cfg.WebhookURL != "" {
		backends = append(backends, notify.NewWebhookNotifier(cfg.WebhookURL))
	}
	notifier := notify.NewMulti(backends...)

	// ---- Scheduler ----
	sched := scheduler.New(scheduler.Deps{
		Store:        store,
		Cache:        cache,
		Notifier:     notifier,
		Archive:      archive,
		History:      history,
		Metrics:      prom,
		Health:       health,
		DrainTimeout: cfg.ShutdownTimeout,
	})
	sched.WarmUp(ctx)

	// ---- Daily archive pruning ----
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				pruneCtx, pruneCancel := context.WithTimeout(ctx, time.Minute)
				if _, err := archive.PruneBefore(pruneCtx, time.Now().Add(-archiveRetention)); err != nil {
					log.Printf("[signalbot] archive prune failed: %v", err)
				}
				pruneCancel()
			}
		}
	}()

	// ---- Run until a signal arrives ----
	go func() {
		sig := <-sigCh
		log.Printf("[signalbot] received %v, shutting down...", sig)
		cancel()
	}()

	if err := sched.Run(ctx); err != nil && err != context.Canceled {
		log.Printf("[signalbot] scheduler stopped: %v", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	metricsSrv.Stop(shutdownCtx)
	shutdownCancel()
	log.Println("[signalbot] shutdown complete")
}
