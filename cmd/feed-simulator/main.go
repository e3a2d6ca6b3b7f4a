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

	"github.com/radieske/huskybids/internal/feed-simulator/sim"
	"github.com/radieske/huskybids/internal/shared/config"
	"github.com/radieske/huskybids/internal/shared/logger"
	"github.com/radieske/huskybids/internal/shared/metrics"
)

const tickEvery = time.Second

func main() {
	cfg := config.LoadFor("feed-simulator")
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	s := sim.New(sim.DefaultConfig(), time.Now().UnixNano())
	s.NewSeason(time.Now())
	hub := sim.NewHub(s.Snapshot, prometheus.DefaultRegisterer, log)

	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, nil, log)

	go func() {
		log.Info("feed simulator listening", zap.String("addr", srv.Addr), zap.Int("games", len(sim.Catalog)))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("ws server", zap.Error(err))
			cancel()
		}
	}()

	sim.Run(ctx, s, hub, tickEvery, time.Now)
	log.Info("shutdown signal received")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	_ = srv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
}
