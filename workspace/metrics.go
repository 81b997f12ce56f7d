package workspace

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
)

// Metrics definitions
var (
	FilesAnalyzed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "phpintel_files_analyzed_total",
		Help: "Total number of files analyzed, by phase.",
	}, []string{"phase"})

	AnalysisDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "phpintel_analysis_seconds",
		Help:    "Time spent analyzing a single file, by phase.",
		Buckets: prometheus.DefBuckets,
	}, []string{"phase"})

	CacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "phpintel_cache_requests_total",
		Help: "Analysis cache lookups, by result (hit, miss, error).",
	}, []string{"result"})

	IndexDefinitions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "phpintel_index_definitions",
		Help: "Number of FQNs with a visible definition in the index.",
	})

	IndexFiles = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "phpintel_index_files",
		Help: "Number of files contributing to the index.",
	})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "phpintel_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})
)

// Analysis phases used as metric labels.
const (
	phaseDefinitions = "definitions"
	phaseReferences  = "references"
)

// WriteMetrics writes every registered metric in the Prometheus text format.
func WriteMetrics(w io.Writer) error {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}

	for _, mf := range families {
		_, err := expfmt.MetricFamilyToText(w, mf)
		if err != nil {
			return fmt.Errorf("write metric %s: %w", mf.GetName(), err)
		}
	}

	return nil
}
