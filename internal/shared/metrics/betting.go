package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Betting groups the ledger and settlement collectors. A nil *Betting is
// valid and records nothing.
type Betting struct {
	betsPlaced       prometheus.Counter
	rejections       *prometheus.CounterVec
	settled          *prometheus.CounterVec
	cancelled        prometheus.Counter
	settlementErrors prometheus.Counter
	payout           prometheus.Counter
	txConflicts      prometheus.Counter
	placeDuration    prometheus.Histogram
}

// NewBetting creates the collectors and registers them with reg when reg is
// not nil.
func NewBetting(reg prometheus.Registerer) *Betting {
	b := &Betting{
		betsPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bets_placed_total",
			Help: "Bets committed by the ledger",
		}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bet_rejections_total",
			Help: "Bet placements rejected, by reason",
		}, []string{"reason"}),
		settled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bets_settled_total",
			Help: "Bets moved out of pending, by outcome",
		}, []string{"outcome"}),
		cancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bets_cancelled_total",
			Help: "Bets cancelled by their owner before kickoff",
		}),
		settlementErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "settlement_errors_total",
			Help: "Per-bet settlement failures",
		}),
		payout: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "settlement_payout_biscuits_total",
			Help: "Biscuits credited to winners and refunds",
		}),
		txConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ledger_tx_conflicts_total",
			Help: "Transactions aborted by serialization conflicts",
		}),
		placeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bet_place_duration_seconds",
			Help:    "Time spent in a bet placement transaction",
			Buckets: prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(b.betsPlaced, b.rejections, b.settled, b.cancelled, b.settlementErrors,
			b.payout, b.txConflicts, b.placeDuration)
	}
	return b
}

func (b *Betting) Placed(d time.Duration) {
	if b == nil {
		return
	}
	b.betsPlaced.Inc()
	b.placeDuration.Observe(d.Seconds())
}

func (b *Betting) Rejected(reason string) {
	if b == nil {
		return
	}
	b.rejections.WithLabelValues(reason).Inc()
}

// Settled records one bet leaving pending with the biscuits it credited.
func (b *Betting) Settled(outcome string, credited int64) {
	if b == nil {
		return
	}
	b.settled.WithLabelValues(outcome).Inc()
	if credited > 0 {
		b.payout.Add(float64(credited))
	}
}

// Cancelled records a user cancellation. The returned stake is not payout.
func (b *Betting) Cancelled() {
	if b == nil {
		return
	}
	b.cancelled.Inc()
}

func (b *Betting) SettlementError() {
	if b == nil {
		return
	}
	b.settlementErrors.Inc()
}

func (b *Betting) Conflict() {
	if b == nil {
		return
	}
	b.txConflicts.Inc()
}
