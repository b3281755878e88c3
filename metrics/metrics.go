package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const metricNamespace = "searchlink"

// Reset kinds reported by [IncReset].
const (
	ResetInvalidate   = "invalidate"
	ResetTokenInvalid = "token-invalid"
	ResetFeedError    = "feed-error"
)

// Counters.
var (
	//nolint:gochecknoglobals
	dumpDocumentsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name:      "dump_documents_total",
		Help:      "Total number of documents transferred by bootstrap dumps.",
		Namespace: metricNamespace,
	})

	//nolint:gochecknoglobals
	dumpBatchesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name:      "dump_batches_total",
		Help:      "Total number of bulk batches sent by bootstrap dumps.",
		Namespace: metricNamespace,
	})

	//nolint:gochecknoglobals
	feedEventsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name:      "feed_events_total",
		Help:      "Total number of change feed events received.",
		Namespace: metricNamespace,
	})

	//nolint:gochecknoglobals
	feedEventsAppliedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name:      "feed_events_applied_total",
		Help:      "Total number of change feed events replicated to the index.",
		Namespace: metricNamespace,
	})

	//nolint:gochecknoglobals
	resetsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:      "resets_total",
		Help:      "Total number of feed resets by kind.",
		Namespace: metricNamespace,
	}, []string{"kind"})

	//nolint:gochecknoglobals
	checkpointWriteFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name:      "checkpoint_write_failures_total",
		Help:      "Total number of failed checkpoint writes.",
		Namespace: metricNamespace,
	})
)

// Gauges.
var (
	//nolint:gochecknoglobals
	dumpRateDocsPerSecond = prometheus.NewGauge(prometheus.GaugeOpts{
		Name:      "dump_rate_docs_per_second",
		Help:      "Document transfer rate of the last bootstrap batch.",
		Namespace: metricNamespace,
	})

	//nolint:gochecknoglobals
	pausedDumps = prometheus.NewGauge(prometheus.GaugeOpts{
		Name:      "paused_dumps",
		Help:      "1 while bootstrap dumps are paused, 0 otherwise.",
		Namespace: metricNamespace,
	})
)

// Init initializes and registers the metrics.
func Init(reg prometheus.Registerer) {
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{
		Namespace: metricNamespace,
	}))

	reg.MustRegister(
		dumpDocumentsTotal,
		dumpBatchesTotal,
		dumpRateDocsPerSecond,
		pausedDumps,

		feedEventsTotal,
		feedEventsAppliedTotal,

		resetsTotal,
		checkpointWriteFailuresTotal,
	)
}

// AddDumpDocuments increments the dumped documents counter.
func AddDumpDocuments(v int) {
	dumpDocumentsTotal.Add(float64(v))
}

// IncDumpBatches increments the sent bulk batches counter.
func IncDumpBatches() {
	dumpBatchesTotal.Inc()
}

// SetDumpRate sets the last-batch document transfer rate gauge.
func SetDumpRate(v float64) {
	dumpRateDocsPerSecond.Set(v)
}

// SetDumpsPaused sets the paused dumps gauge.
func SetDumpsPaused(paused bool) {
	if paused {
		pausedDumps.Set(1)
	} else {
		pausedDumps.Set(0)
	}
}

// IncFeedEvents increments the received feed events counter.
func IncFeedEvents() {
	feedEventsTotal.Inc()
}

// IncFeedEventsApplied increments the replicated feed events counter.
func IncFeedEventsApplied() {
	feedEventsAppliedTotal.Inc()
}

// IncReset increments the reset counter for the given kind.
func IncReset(kind string) {
	resetsTotal.WithLabelValues(kind).Inc()
}

// IncCheckpointWriteFailure increments the failed checkpoint writes counter.
func IncCheckpointWriteFailure() {
	checkpointWriteFailuresTotal.Inc()
}
