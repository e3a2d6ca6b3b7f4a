package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/huskybids/internal/feed-ingest/publisher"
	"github.com/radieske/huskybids/internal/feed-ingest/service"
	"github.com/radieske/huskybids/internal/shared/config"
	"github.com/radieske/huskybids/internal/shared/kafka"
	"github.com/radieske/huskybids/internal/shared/logger"
	"github.com/radieske/huskybids/internal/shared/metrics"
)

func main() {
	cfg := config.LoadFor("feed-ingest-service")
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	log.Info("Kafka brokers", zap.String("brokers", cfg.KafkaBrokers))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.Env == "local" || cfg.Env == "dev" {
		if err := kafka.EnsureTopics(ctx, cfg.Brokers(), cfg.TopicGameUpdates); err != nil {
			log.Warn("ensure topics", zap.Error(err))
		}
	}

	// Kafka publisher (game_updates)
	writer := kafka.NewWriter(cfg.Brokers(), cfg.TopicGameUpdates)
	defer writer.Close()
	pub := publisher.NewKafkaPublisher(writer, log)

	pipe := metrics.NewPipeline(prometheus.DefaultRegisterer, "feed_ingest")

	// WS client
	wsClient := &service.WSClient{
		URL:            cfg.FeedWSURL,
		Log:            log,
		Publisher:      pub,
		ReconnectDelay: 2 * time.Second,
		OnReceived:     pipe.Consumed,
		OnPublished:    pipe.Applied,
		OnError:        pipe.Error,
	}

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, nil, log)

	wsClient.Start(ctx)
	log.Info("shutdown signal received")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 2*time.Second)
	defer stop()
	_ = metricsSrv.Shutdown(shutdownCtx)
}
