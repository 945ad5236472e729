package certificate

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors that report issuance activity. A nil *Metrics records nothing.
type Metrics struct {
	issued        *prometheus.CounterVec
	lookups       *prometheus.CounterVec
	races         prometheus.Counter
	ineligible    prometheus.Counter
	batchDuration prometheus.Histogram
}

// NewMetrics registers the collectors with reg (the default registerer when nil).
// Collectors already registered under the same names are reused.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		issued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "oneeduca",
			Subsystem: "certificates",
			Name:      "issued_total",
			Help:      "Certificates returned by the issuer, by provenance and outcome.",
		}, []string{"provenance", "outcome"}),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "oneeduca",
			Subsystem: "certificates",
			Name:      "lookups_total",
			Help:      "Certificate lookups, by the source that answered them.",
		}, []string{"source"}),
		races: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "oneeduca",
			Subsystem: "certificates",
			Name:      "uniqueness_races_total",
			Help:      "Inserts that lost the race against a concurrent issuance of the same certificate.",
		}),
		ineligible: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "oneeduca",
			Subsystem: "certificates",
			Name:      "ineligible_total",
			Help:      "Issuance attempts rejected because the learner is not eligible.",
		}),
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "oneeduca",
			Subsystem: "certificates",
			Name:      "batch_duration_seconds",
			Help:      "Duration of batch issuance runs.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	m.issued = register(reg, m.issued)
	m.lookups = register(reg, m.lookups)
	m.races = register(reg, m.races)
	m.ineligible = register(reg, m.ineligible)
	m.batchDuration = register(reg, m.batchDuration)
	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

func (m *Metrics) observeIssued(cert Certificate, outcome string) {
	if m == nil {
		return
	}
	m.issued.WithLabelValues(cert.Provenance.String(), outcome).Inc()
}

func (m *Metrics) observeLookup(source string) {
	if m == nil {
		return
	}
	m.lookups.WithLabelValues(source).Inc()
}

func (m *Metrics) observeRace() {
	if m == nil {
		return
	}
	m.races.Inc()
}

func (m *Metrics) observeIneligible() {
	if m == nil {
		return
	}
	m.ineligible.Inc()
}

func (m *Metrics) observeBatch(start time.Time) {
	if m == nil {
		return
	}
	m.batchDuration.Observe(time.Since(start).Seconds())
}
