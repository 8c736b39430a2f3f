// Package observability provides Prometheus metrics for the ingestion
// engine.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the engine's counters. A nil *Metrics is valid and
// records nothing, so callers never need to branch on whether metrics
// are enabled.
type Metrics struct {
	uploadsTotal      *prometheus.CounterVec
	uploadBytesTotal  prometheus.Counter
	uploadFailures    *prometheus.CounterVec
	reserveCollisions prometheus.Counter
	reserveExhausted  prometheus.Counter
	purgedObjects     prometheus.Counter
	purgeFailures     prometheus.Counter
}

// New registers the engine metrics with the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		uploadsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tmphost_uploads_total",
			Help: "Stored objects by media kind.",
		}, []string{"kind"}),
		uploadBytesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "tmphost_upload_bytes_total",
			Help: "Total bytes written to the content store.",
		}),
		uploadFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tmphost_upload_failures_total",
			Help: "Failed uploads by error kind.",
		}, []string{"error_kind"}),
		reserveCollisions: factory.NewCounter(prometheus.CounterOpts{
			Name: "tmphost_reserve_collisions_total",
			Help: "Identifier draws that hit an existing path.",
		}),
		reserveExhausted: factory.NewCounter(prometheus.CounterOpts{
			Name: "tmphost_reserve_exhausted_total",
			Help: "Reservations that failed after the retry bound.",
		}),
		purgedObjects: factory.NewCounter(prometheus.CounterOpts{
			Name: "tmphost_purged_objects_total",
			Help: "Objects removed by the deletion workflow.",
		}),
		purgeFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "tmphost_purge_failures_total",
			Help: "Objects the deletion workflow failed to remove.",
		}),
	}
}

// ObserveUpload records one stored object.
func (m *Metrics) ObserveUpload(kind string, bytes int64) {
	if m == nil {
		return
	}
	m.uploadsTotal.WithLabelValues(kind).Inc()
	m.uploadBytesTotal.Add(float64(bytes))
}

// ObserveUploadFailure records one failed upload.
func (m *Metrics) ObserveUploadFailure(errorKind string) {
	if m == nil {
		return
	}
	m.uploadFailures.WithLabelValues(errorKind).Inc()
}

// ObserveReserveCollision records one identifier collision.
func (m *Metrics) ObserveReserveCollision() {
	if m == nil {
		return
	}
	m.reserveCollisions.Inc()
}

// ObserveReserveExhausted records one exhausted reservation.
func (m *Metrics) ObserveReserveExhausted() {
	if m == nil {
		return
	}
	m.reserveExhausted.Inc()
}

// ObservePurge records the outcome of one deletion workflow run.
func (m *Metrics) ObservePurge(removed, failed int) {
	if m == nil {
		return
	}
	m.purgedObjects.Add(float64(removed))
	m.purgeFailures.Add(float64(failed))
}
