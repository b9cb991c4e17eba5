// Package metrics exposes SuperSave's internal counters as Prometheus
// collectors, owned per SuperSave instance rather than registered against
// the global default registry so multiple instances in one process never
// collide.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder collects schema-sync and record-write metrics. The zero value is
// not usable; construct one with New.
type Recorder struct {
	registry     *prometheus.Registry
	syncDuration *prometheus.HistogramVec
	syncFailures *prometheus.CounterVec
	recordWrites *prometheus.CounterVec
}

// New builds a Recorder with its own registry.
func New() *Recorder {
	registry := prometheus.NewRegistry()

	r := &Recorder{
		registry: registry,
		syncDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "supersave",
			Name:      "schema_sync_duration_seconds",
			Help:      "Time spent reconciling an entity's table shape.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"entity"}),
		syncFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "supersave",
			Name:      "schema_sync_failures_total",
			Help:      "Schema synchronizations that returned an error.",
		}, []string{"entity"}),
		recordWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "supersave",
			Name:      "record_writes_total",
			Help:      "Repository writes, labeled by entity and operation.",
		}, []string{"entity", "operation"}),
	}

	registry.MustRegister(r.syncDuration, r.syncFailures, r.recordWrites)
	return r
}

// Registry exposes the collector registry, for a caller to mount behind
// promhttp.HandlerFor on their own router.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// ObserveSync records how long a sync of entity took, and whether it failed.
func (r *Recorder) ObserveSync(entity string, d time.Duration, err error) {
	if r == nil {
		return
	}
	r.syncDuration.WithLabelValues(entity).Observe(d.Seconds())
	if err != nil {
		r.syncFailures.WithLabelValues(entity).Inc()
	}
}

// ObserveWrite records a create/update/delete against entity.
func (r *Recorder) ObserveWrite(entity, operation string) {
	if r == nil {
		return
	}
	r.recordWrites.WithLabelValues(entity, operation).Inc()
}
