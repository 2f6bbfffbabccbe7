package transact

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes registry counters to prometheus.
// A nil *Metrics is valid and collects nothing.
type Metrics struct {
	active      prometheus.Gauge
	addedByKind *prometheus.CounterVec
	expiredCnt  prometheus.Counter
	deletedCnt  prometheus.Counter
}

// NewMetrics creates registry metrics registered on reg.
// If reg is nil, the default prometheus registerer is used.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		active: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "sipward",
			Subsystem: "transact",
			Name:      "active_records",
			Help:      "Number of transaction records currently tracked.",
		}),
		addedByKind: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sipward",
			Subsystem: "transact",
			Name:      "records_added_total",
			Help:      "Transaction records added, by kind.",
		}, []string{"kind"}),
		expiredCnt: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "sipward",
			Subsystem: "transact",
			Name:      "records_expired_total",
			Help:      "Transaction records evicted by the expiry sweep.",
		}),
		deletedCnt: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "sipward",
			Subsystem: "transact",
			Name:      "records_deleted_total",
			Help:      "Transaction records deleted on worker termination.",
		}),
	}
}

func (m *Metrics) setActive(n int) {
	if m == nil {
		return
	}
	m.active.Set(float64(n))
}

func (m *Metrics) added(kind Kind) {
	if m == nil {
		return
	}
	m.addedByKind.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) expired(n int) {
	if m == nil {
		return
	}
	m.expiredCnt.Add(float64(n))
}

func (m *Metrics) deleted(n int) {
	if m == nil {
		return
	}
	m.deletedCnt.Add(float64(n))
}
