package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"request-gate/middleware/pipeline"
	"request-gate/middleware/ratelimit/domain"
	"request-gate/middleware/ratelimit/infra"
	"request-gate/middleware/session"
)

func main() {
	cfg, err := readConfig()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.logLevel}))
	slog.SetDefault(logger)

	target, err := url.Parse(cfg.upstreamURL)
	if err != nil {
		log.Fatalf("invalid UPSTREAM_URL: %v", err)
	}

	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.ErrorContext(r.Context(), "proxy error", "error", err)
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}

	apiLimiter, err := infra.NewFixedWindow(cfg.apiLimit)
	if err != nil {
		log.Fatalf("api limiter: %v", err)
	}
	authLimiter, err := infra.NewFixedWindow(cfg.authLimit)
	if err != nil {
		log.Fatalf("auth limiter: %v", err)
	}
	webhookLimiter, err := infra.NewFixedWindow(cfg.webhookLimit)
	if err != nil {
		log.Fatalf("webhook limiter: %v", err)
	}

	codec, err := session.NewJWTCodec([]byte(cfg.sessionSecret))
	if err != nil {
		log.Fatalf("session codec: %v", err)
	}

	var statsStore domain.StatsStore
	if cfg.rateStatsEnabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.rateStatsRedisAddr,
			Password: cfg.rateStatsRedisPassword,
			DB:       cfg.rateStatsRedisDB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		cancel()
		if err != nil {
			log.Fatalf("redis stats ping error: %v", err)
		}

		redisStats := infra.NewRedisStatsStore(
			rdb,
			infra.WithStatsPrefix(cfg.rateStatsPrefix),
			infra.WithStatsTTL(cfg.rateStatsTTL),
			infra.WithStatsBucket(cfg.rateStatsBucket),
			infra.WithStatsTrackKeys(cfg.rateStatsTrackKeys),
		)

		// Redis fica fora do caminho da request; erros são amostrados no log
		statsErrLog := &rate.Sometimes{First: 3, Interval: 30 * time.Second}
		asyncStats := infra.NewAsyncStatsStore(
			redisStats,
			infra.WithAsyncBuffer(cfg.rateStatsBuffer),
			infra.WithAsyncTimeout(time.Second),
			infra.WithAsyncErrorHandler(func(err error) {
				statsErrLog.Do(func() { logger.Warn("rate stats write failed", "error", err) })
			}),
		)
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := asyncStats.Close(flushCtx); err != nil {
				log.Printf("rate-stats flush: %v (dropped=%d)", err, asyncStats.Dropped())
			}
		}()
		statsStore = asyncStats
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := pipeline.NewMetrics(reg)
	if err != nil {
		log.Fatalf("metrics: %v", err)
	}

	gate, err := pipeline.New(pipeline.Options{
		APILimiter:  apiLimiter,
		AuthLimiter: authLimiter,
		Codec:       codec,
		Stats:       statsStore,
		Metrics:     metrics,
		Logger:      logger,
		SignInPath:  cfg.signInPath,
		SessionTTL:  cfg.sessionTTL,
	})
	if err != nil {
		log.Fatalf("pipeline: %v", err)
	}

	h := newRouter(routerDeps{
		upstream:       proxy,
		gate:           gate,
		webhookLimiter: webhookLimiter,
		stats:          statsStore,
		gatherer:       reg,
	})

	srv := &http.Server{
		Addr:              cfg.listenAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("gateway listening on %s -> %s", cfg.listenAddr, target)
	for _, lim := range []*infra.FixedWindow{apiLimiter, authLimiter, webhookLimiter} {
		c := lim.Config()
		log.Printf("limit %s: %d req / %s", c.Name, c.MaxRequests, c.Window)
	}
	log.Printf("session: ttl=%s signIn=%q", cfg.sessionTTL, cfg.signInPath)
	log.Printf("rate-stats: enabled=%v redisAddr=%q bucket=%q ttl=%s trackKeys=%v buffer=%d", cfg.rateStatsEnabled, cfg.rateStatsRedisAddr, cfg.rateStatsBucket, cfg.rateStatsTTL, cfg.rateStatsTrackKeys, cfg.rateStatsBuffer)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
}
