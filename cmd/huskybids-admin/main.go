package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/radieske/huskybids/internal/bet-service/ledger"
	"github.com/radieske/huskybids/internal/bet-service/producer"
	"github.com/radieske/huskybids/internal/settlement/settler"
	"github.com/radieske/huskybids/internal/shared/cache"
	"github.com/radieske/huskybids/internal/shared/config"
	"github.com/radieske/huskybids/internal/shared/db"
	"github.com/radieske/huskybids/internal/shared/kafka"
	"github.com/radieske/huskybids/internal/shared/logger"
	"github.com/radieske/huskybids/internal/stats"
	"github.com/radieske/huskybids/internal/store"
	"github.com/radieske/huskybids/internal/store/postgres"
)

// backend is what the data commands operate on.
type backend struct {
	store   store.Store
	ledger  *ledger.Ledger
	settler *settler.Settler
	stats   *stats.Aggregator
	close   func()
}

type connectFunc func(ctx context.Context) (*backend, error)

func main() {
	cfg := config.LoadFor("huskybids-admin")
	if cfg.LogLevel == "" {
		cfg.LogLevel = "warn"
	}
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(func(ctx context.Context) (*backend, error) { return connect(ctx, cfg, log) })
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd(connect connectFunc) *cobra.Command {
	root := &cobra.Command{
		Use:          "huskybids-admin",
		Short:        "HuskyBids operator tools",
		SilenceUsage: true,
	}
	root.AddCommand(
		newOddsCmd(),
		newSettleCmd(connect),
		newRefundCmd(connect),
		newLeaderboardCmd(connect),
	)
	return root
}

// connect opens Postgres and, when reachable, Redis for stats invalidation
// and Kafka for bet_settled events.
func connect(ctx context.Context, cfg config.Config, log *zap.Logger) (*backend, error) {
	pg, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}
	st := postgres.New(pg)
	closers := []func() error{pg.Close}

	var statsOpts []stats.Option
	if rdb, err := cache.ConnectRedis(ctx, cfg.RedisAddr); err != nil {
		log.Warn("redis unavailable, stats cache will not be invalidated", zap.Error(err))
	} else {
		statsOpts = append(statsOpts, stats.WithCache(stats.NewRedisCache(rdb, cfg.StatsCacheTTL)))
		closers = append(closers, rdb.Close)
	}
	agg := stats.New(st, append(statsOpts, stats.WithLogger(log))...)

	settledW := kafka.NewWriter(cfg.Brokers(), cfg.TopicBetSettled)
	closers = append(closers, settledW.Close)
	pub := producer.NewKafkaPublisher(nil, settledW, log)

	return &backend{
		store:   st,
		ledger:  ledger.New(st, ledger.WithLogger(log), ledger.WithPublisher(pub), ledger.WithCacheInvalidator(agg)),
		settler: settler.New(st, settler.WithLogger(log), settler.WithPublisher(pub), settler.WithInvalidator(agg)),
		stats:   agg,
		close: func() {
			for i := len(closers) - 1; i >= 0; i-- {
				_ = closers[i]()
			}
		},
	}, nil
}
