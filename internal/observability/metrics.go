package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	activitiesIngested = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitdigest",
		Subsystem: "ingest",
		Name:      "activities_total",
		Help:      "Activities upserted into the store, per user.",
	}, []string{"user"})
	malformedPayloads = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fitdigest",
		Subsystem: "ingest",
		Name:      "malformed_payloads_total",
		Help:      "Raw payloads that could not be parsed at all.",
	})
	syncConflicts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fitdigest",
		Subsystem: "ingest",
		Name:      "sync_conflicts_total",
		Help:      "Ingest attempts rejected because a sync for the same user was in flight.",
	})
	digestRenders = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fitdigest",
		Subsystem: "digest",
		Name:      "renders_total",
		Help:      "Weekly digests rendered.",
	})
	lastIngestGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fitdigest",
		Subsystem: "ingest",
		Name:      "last_ingest_timestamp_seconds",
		Help:      "Unix timestamp of the most recent successful ingest.",
	})
)

func init() {
	prometheus.MustRegister(
		activitiesIngested,
		malformedPayloads,
		syncConflicts,
		digestRenders,
		lastIngestGauge,
	)
}

// RecordActivitiesIngested bumps the per-user ingest counter.
func RecordActivitiesIngested(userID string, n int) {
	if n <= 0 {
		return
	}
	activitiesIngested.WithLabelValues(userID).Add(float64(n))
}

// RecordMalformedPayload counts a payload the extractor rejected outright.
func RecordMalformedPayload() {
	malformedPayloads.Inc()
}

// RecordSyncConflict counts a same-user concurrent ingest rejection.
func RecordSyncConflict() {
	syncConflicts.Inc()
}

// RecordDigestRendered counts a digest render.
func RecordDigestRendered() {
	digestRenders.Inc()
}

// RecordIngestCompleted updates the ingest watermark gauge.
func RecordIngestCompleted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	lastIngestGauge.Set(float64(ts.Unix()))
}
