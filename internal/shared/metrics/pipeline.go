package metrics

import "github.com/prometheus/client_golang/prometheus"

// Pipeline counts messages through a consume and apply loop. Its methods
// match the OnConsumed, OnApplied and OnError hooks of the workers. A nil
// *Pipeline records nothing.
type Pipeline struct {
	consumed prometheus.Counter
	applied  prometheus.Counter
	errors   *prometheus.CounterVec
}

func NewPipeline(reg prometheus.Registerer, prefix string) *Pipeline {
	p := &Pipeline{
		consumed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_messages_consumed_total",
			Help: "Messages read from the source",
		}),
		applied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_messages_applied_total",
			Help: "Messages applied successfully",
		}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_errors_total",
			Help: "Failures by phase",
		}, []string{"phase"}),
	}
	if reg != nil {
		reg.MustRegister(p.consumed, p.applied, p.errors)
	}
	return p
}

func (p *Pipeline) Consumed() {
	if p != nil {
		p.consumed.Inc()
	}
}

func (p *Pipeline) Applied() {
	if p != nil {
		p.applied.Inc()
	}
}

func (p *Pipeline) Error(phase string) {
	if p != nil {
		p.errors.WithLabelValues(phase).Inc()
	}
}
