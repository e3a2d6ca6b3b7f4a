package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/huskybids/internal/auth"
	httpapi "github.com/radieske/huskybids/internal/bet-service/http"
	"github.com/radieske/huskybids/internal/bet-service/ledger"
	"github.com/radieske/huskybids/internal/bet-service/live"
	"github.com/radieske/huskybids/internal/bet-service/odds"
	"github.com/radieske/huskybids/internal/bet-service/producer"
	"github.com/radieske/huskybids/internal/bet-service/validation"
	"github.com/radieske/huskybids/internal/settlement/settler"
	"github.com/radieske/huskybids/internal/shared/cache"
	"github.com/radieske/huskybids/internal/shared/config"
	"github.com/radieske/huskybids/internal/shared/db"
	"github.com/radieske/huskybids/internal/shared/kafka"
	"github.com/radieske/huskybids/internal/shared/logger"
	"github.com/radieske/huskybids/internal/shared/metrics"
	"github.com/radieske/huskybids/internal/stats"
	"github.com/radieske/huskybids/internal/store/postgres"
)

func main() {
	cfg := config.LoadFor("bet-service")
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Postgres
	pg, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg", zap.Error(err))
	}
	defer pg.Close()

	st := postgres.New(pg)
	if err := st.Migrate(ctx); err != nil {
		log.Fatal("migrate", zap.Error(err))
	}

	// Redis
	rdb, err := cache.ConnectRedis(ctx, cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	// Kafka writers (bet_placed, bet_settled)
	placedW := kafka.NewWriter(cfg.Brokers(), cfg.TopicBetPlaced)
	defer placedW.Close()
	settledW := kafka.NewWriter(cfg.Brokers(), cfg.TopicBetSettled)
	defer settledW.Close()

	// deps
	bm := metrics.NewBetting(prometheus.DefaultRegisterer)
	pub := producer.NewKafkaPublisher(placedW, settledW, log)
	oddsCache := odds.NewRedisCache(rdb, cfg.OddsCacheTTL)
	agg := stats.New(st,
		stats.WithCache(stats.NewRedisCache(rdb, cfg.StatsCacheTTL)),
		stats.WithLogger(log),
	)

	led := ledger.New(st,
		ledger.WithLogger(log),
		ledger.WithLimits(validation.Limits{Min: cfg.MinBet, Max: cfg.MaxBet}),
		ledger.WithStartingBiscuits(cfg.StartingBiscuits),
		ledger.WithPublisher(pub),
		ledger.WithBroadcaster(live.NewRedisBroadcaster(rdb, cfg.RedisOddsChannel, oddsCache, log)),
		ledger.WithCacheInvalidator(agg),
		ledger.WithMetrics(bm),
	)
	stl := settler.New(st,
		settler.WithLogger(log),
		settler.WithPublisher(pub),
		settler.WithInvalidator(agg),
		settler.WithMetrics(bm),
	)

	var verifier auth.Verifier = auth.HeaderVerifier{}
	if cfg.AuthMode == "remote" {
		verifier = auth.NewRemoteVerifier(cfg.AuthBaseURL, cfg.AuthAPIKey)
	}
	if cfg.AdminToken == "" {
		log.Warn("ADMIN_TOKEN not set, admin routes are disabled")
	}

	// live odds: redis channel -> websocket clients
	hub := live.NewHub(func(*http.Request) bool { return true }, log)
	go func() {
		if err := live.Subscribe(ctx, rdb, cfg.RedisOddsChannel, hub, log); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("odds subscriber", zap.Error(err))
		}
	}()

	// public HTTP
	api := httpapi.NewServer(httpapi.Deps{
		Log:        log,
		Store:      st,
		Ledger:     led,
		Settler:    stl,
		Stats:      agg,
		Verifier:   verifier,
		OddsCache:  oddsCache,
		Live:       http.HandlerFunc(hub.HandleWS),
		AdminToken: cfg.AdminToken,
	})
	apiSrv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// metrics/health
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		if err := st.Ping(ctx); err != nil {
			return err
		}
		return rdb.Ping(ctx).Err()
	}, log)

	go func() {
		log.Info("bet-service listening", zap.String("addr", apiSrv.Addr))
		if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("api", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = apiSrv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
}
