package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "velock"

// Recorder holds the engine metrics. A nil *Recorder is valid and records nothing.
type Recorder struct {
	commands        *prometheus.CounterVec
	adapterErrors   *prometheus.CounterVec
	refreshDuration *prometheus.HistogramVec
	refreshes       *prometheus.CounterVec
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	trackedOwners   prometheus.Gauge
}

// New registers the engine metrics with reg.
func New(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		commands: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "commands_total",
			Help:      "Lock and queue commands by command and outcome",
		}, []string{"command", "outcome"}),
		adapterErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "adapter",
			Name:      "errors_total",
			Help:      "Chain adapter failures by operation and error kind",
		}, []string{"op", "kind"}),
		refreshDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "refresh_duration_seconds",
			Help:      "Duration of owner refreshes",
			Buckets:   prometheus.DefBuckets,
		}, []string{"trigger"}),
		refreshes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "refresher",
			Name:      "refreshes_total",
			Help:      "Background refreshes by trigger and result",
		}, []string{"trigger", "result"}),
		cacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Snapshot cache hits",
		}),
		cacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Snapshot cache misses",
		}),
		trackedOwners: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "refresher",
			Name:      "tracked_owners",
			Help:      "Owners with an active refresh loop",
		}),
	}
}

func (r *Recorder) Command(command, outcome string) {
	if r == nil {
		return
	}
	r.commands.WithLabelValues(command, outcome).Inc()
}

func (r *Recorder) AdapterError(op, kind string) {
	if r == nil {
		return
	}
	r.adapterErrors.WithLabelValues(op, kind).Inc()
}

func (r *Recorder) RefreshDuration(trigger string, d time.Duration) {
	if r == nil {
		return
	}
	r.refreshDuration.WithLabelValues(trigger).Observe(d.Seconds())
}

func (r *Recorder) Refresh(trigger, result string) {
	if r == nil {
		return
	}
	r.refreshes.WithLabelValues(trigger, result).Inc()
}

func (r *Recorder) CacheLookup(hit bool) {
	if r == nil {
		return
	}
	if hit {
		r.cacheHits.Inc()
	} else {
		r.cacheMisses.Inc()
	}
}

func (r *Recorder) TrackedOwners(n int) {
	if r == nil {
		return
	}
	r.trackedOwners.Set(float64(n))
}
