package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestBettingCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	b := NewBetting(reg)

	b.Placed(20 * time.Millisecond)
	b.Rejected("insufficient_funds")
	b.Rejected("insufficient_funds")
	b.Settled("won", 250)
	b.Settled("lost", 0)
	b.Conflict()
	b.Cancelled()

	if got := counterValue(t, b.betsPlaced); got != 1 {
		t.Fatalf("bets placed = %v", got)
	}
	if got := counterValue(t, b.rejections.WithLabelValues("insufficient_funds")); got != 2 {
		t.Fatalf("rejections = %v", got)
	}
	if got := counterValue(t, b.payout); got != 250 {
		t.Fatalf("payout = %v", got)
	}
	if got := counterValue(t, b.txConflicts); got != 1 {
		t.Fatalf("conflicts = %v", got)
	}
	if got := counterValue(t, b.cancelled); got != 1 {
		t.Fatalf("cancelled = %v", got)
	}
	if got := counterValue(t, b.settled.WithLabelValues("cancelled")); got != 0 {
		t.Fatalf("cancellations counted as settled: %v", got)
	}
}

func TestNilBettingIsNoop(t *testing.T) {
	var b *Betting
	b.Placed(time.Second)
	b.Rejected("x")
	b.Settled("won", 1)
	b.SettlementError()
	b.Conflict()
	b.Cancelled()
}

func TestHealthHandler(t *testing.T) {
	ok := healthHandler(func(context.Context) error { return nil })
	rec := httptest.NewRecorder()
	ok(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthy = %d %q", rec.Code, rec.Body.String())
	}

	bad := healthHandler(func(context.Context) error { return errors.New("pg down") })
	rec = httptest.NewRecorder()
	bad(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable || rec.Body.String() != "unhealthy: pg down" {
		t.Fatalf("unhealthy = %d %q", rec.Code, rec.Body.String())
	}
}

func TestPipelineCounters(t *testing.T) {
	p := NewPipeline(prometheus.NewRegistry(), "game_sync")
	p.Consumed()
	p.Consumed()
	p.Applied()
	p.Error("decode")

	if got := counterValue(t, p.consumed); got != 2 {
		t.Fatalf("consumed = %v", got)
	}
	if got := counterValue(t, p.errors.WithLabelValues("decode")); got != 1 {
		t.Fatalf("decode errors = %v", got)
	}

	var nilPipeline *Pipeline
	nilPipeline.Consumed()
	nilPipeline.Error("read")
}
