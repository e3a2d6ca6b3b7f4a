package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/huskybids/internal/bet-service/ledger"
	"github.com/radieske/huskybids/internal/bet-service/live"
	"github.com/radieske/huskybids/internal/bet-service/odds"
	"github.com/radieske/huskybids/internal/bet-service/producer"
	"github.com/radieske/huskybids/internal/game-sync/consumer"
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
	cfg := config.LoadFor("settlement-worker")
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// graceful shutdown on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pg, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	st := postgres.New(pg)
	if err := st.Migrate(ctx); err != nil {
		log.Fatal("migrate", zap.Error(err))
	}

	rdb, err := cache.ConnectRedis(ctx, cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer rdb.Close()

	if cfg.Env == "local" || cfg.Env == "dev" {
		if err := kafka.EnsureTopics(ctx, cfg.Brokers(), cfg.TopicGameUpdates, cfg.TopicGameUpdatesDLQ, cfg.TopicBetSettled); err != nil {
			log.Warn("ensure topics", zap.Error(err))
		}
	}

	// game-sync consumer group on game_updates, plus the DLQ and bet_settled writers
	reader := kafka.NewReader(cfg.Brokers(), cfg.TopicGameUpdates, "game-sync")
	defer reader.Close()
	dlq := kafka.NewWriter(cfg.Brokers(), cfg.TopicGameUpdatesDLQ)
	defer dlq.Close()
	settledW := kafka.NewWriter(cfg.Brokers(), cfg.TopicBetSettled)
	defer settledW.Close()

	bm := metrics.NewBetting(prometheus.DefaultRegisterer)
	pipe := metrics.NewPipeline(prometheus.DefaultRegisterer, "game_sync")
	pub := producer.NewKafkaPublisher(nil, settledW, log)
	agg := stats.New(st, stats.WithCache(stats.NewRedisCache(rdb, cfg.StatsCacheTTL)), stats.WithLogger(log))

	led := ledger.New(st,
		ledger.WithLogger(log),
		ledger.WithPublisher(pub),
		ledger.WithBroadcaster(live.NewRedisBroadcaster(rdb, cfg.RedisOddsChannel, odds.NewRedisCache(rdb, cfg.OddsCacheTTL), log)),
		ledger.WithCacheInvalidator(agg),
		ledger.WithMetrics(bm),
	)

	stl := settler.New(st,
		settler.WithLogger(log),
		settler.WithPublisher(pub),
		settler.WithInvalidator(agg),
		settler.WithMetrics(bm),
		settler.WithRefunder(led),
		settler.WithInterval(cfg.SettlementInterval),
	)

	proc := &consumer.Processor{
		Log:        log,
		Reader:     reader,
		DLQ:        dlq,
		Store:      st,
		Settler:    stl,
		Refunder:   led,
		OnConsumed: pipe.Consumed,
		OnApplied:  pipe.Applied,
		OnError:    pipe.Error,
	}

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		if err := st.Ping(ctx); err != nil {
			return err
		}
		return rdb.Ping(ctx).Err()
	}, log)

	// periodic sweep of finished games that still have pending bets
	go stl.Run(ctx)

	log.Info("settlement-worker started", zap.Duration("sweep_interval", cfg.SettlementInterval))
	if err := proc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("processor stopped with error", zap.Error(err))
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	_ = metricsSrv.Shutdown(shutdownCtx)
	log.Info("settlement-worker stopped")
}
