package config

import (
	"os"
	"slices"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SERVICE_NAME", "bet-service")
	t.Setenv("MIN_BET", "25")
	t.Setenv("MAX_BET", "oops")
	t.Setenv("SETTLEMENT_INTERVAL", "15s")

	cfg := Load()
	if cfg.HTTPPort != "8083" || cfg.MetricsPort != "9099" {
		t.Fatalf("ports = %q %q", cfg.HTTPPort, cfg.MetricsPort)
	}
	if cfg.MinBet != 25 || cfg.MaxBet != 10000 {
		t.Fatalf("limits = %d %d", cfg.MinBet, cfg.MaxBet)
	}
	if cfg.SettlementInterval != 15*time.Second || cfg.StartingBiscuits != 1000 {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.TopicGameUpdates != "game_updates" || cfg.TopicBetSettled != "bet_settled" {
		t.Fatalf("topics = %+v", cfg)
	}
}

func TestSettlementWorkerHasNoHTTPPort(t *testing.T) {
	t.Setenv("SERVICE_NAME", "settlement-worker")
	if cfg := Load(); cfg.HTTPPort != "" || cfg.MetricsPort != "9097" {
		t.Fatalf("ports = %q %q", cfg.HTTPPort, cfg.MetricsPort)
	}
}

func TestBrokers(t *testing.T) {
	cfg := Config{KafkaBrokers: " a:9092, ,b:9092"}
	if got := cfg.Brokers(); !slices.Equal(got, []string{"a:9092", "b:9092"}) {
		t.Fatalf("brokers = %v", got)
	}
}

func TestLoadForFallsBackToService(t *testing.T) {
	t.Setenv("SERVICE_NAME", "")
	os.Unsetenv("SERVICE_NAME")

	cfg := LoadFor("feed-simulator")
	if cfg.ServiceName != "feed-simulator" || cfg.HTTPPort != "8081" {
		t.Fatalf("cfg = %q %q", cfg.ServiceName, cfg.HTTPPort)
	}
}
