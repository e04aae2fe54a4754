package metrics

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/alvmarrod/tree-exporter/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Tracker holds and manages export metrics. A nil *Tracker is valid and
// records nothing.
type Tracker struct {
	mu   sync.Mutex
	data storage.Metrics

	registry      *prometheus.Registry
	batches       prometheus.Counter
	rows          *prometheus.CounterVec
	failures      *prometheus.CounterVec
	reschedules   prometheus.Counter
	queueLength   prometheus.Gauge
	batchDuration prometheus.Histogram
}

// NewTracker creates a new metrics tracker with its own prometheus registry
func NewTracker() *Tracker {
	t := &Tracker{
		data: storage.Metrics{
			StartTime: time.Now(),
		},
		registry: prometheus.NewRegistry(),
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tree_exporter",
			Name:      "batches_total",
			Help:      "Batch invocations that committed.",
		}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tree_exporter",
			Name:      "rows_total",
			Help:      "Report rows written, by category.",
		}, []string{"category"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tree_exporter",
			Name:      "skipped_total",
			Help:      "Nodes skipped after a resolution failure, by kind.",
		}, []string{"kind"}),
		reschedules: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tree_exporter",
			Name:      "reschedules_total",
			Help:      "Wake-ups scheduled for a later batch.",
		}),
		queueLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tree_exporter",
			Name:      "queue_length",
			Help:      "Containers waiting in the checkpoint queue.",
		}),
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tree_exporter",
			Name:      "batch_duration_seconds",
			Help:      "Wall-clock time of committed batches.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
	}
	t.registry.MustRegister(t.batches, t.rows, t.failures, t.reschedules, t.queueLength, t.batchDuration)
	return t
}

// SetRunID stamps the export run the metrics belong to
func (t *Tracker) SetRunID(runID string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.RunID = runID
}

// RecordBatch accounts for one committed batch
func (t *Tracker) RecordBatch(duration time.Duration, rows storage.Counters, resolutionFailures, subpartFailures, queued int) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	t.data.Batches++
	t.data.FoldersExported += rows.Containers
	t.data.FilesExported += rows.Leaves
	t.data.TabsExported += rows.SubItems
	t.data.ResolutionFailures += resolutionFailures
	t.data.SubpartFailures += subpartFailures
	t.data.TotalBatchTimeMs += duration.Milliseconds()

	t.batches.Inc()
	t.rows.WithLabelValues(string(storage.CategoryFolder)).Add(float64(rows.Containers))
	t.rows.WithLabelValues(string(storage.CategoryFile)).Add(float64(rows.Leaves))
	t.rows.WithLabelValues(string(storage.CategoryTab)).Add(float64(rows.SubItems))
	t.failures.WithLabelValues("folder").Add(float64(resolutionFailures))
	t.failures.WithLabelValues("subparts").Add(float64(subpartFailures))
	t.queueLength.Set(float64(queued))
	t.batchDuration.Observe(duration.Seconds())
}

// IncrementReschedules increments the scheduled wake-up counter
func (t *Tracker) IncrementReschedules() {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.Reschedules++
	t.reschedules.Inc()
}

// GetSnapshot returns a copy of current metrics
func (t *Tracker) GetSnapshot() storage.Metrics {
	if t == nil {
		return storage.Metrics{}
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	snapshot := t.data
	if snapshot.Batches > 0 {
		snapshot.AvgBatchTimeMs = snapshot.TotalBatchTimeMs / int64(snapshot.Batches)
	}
	return snapshot
}

// Registry exposes the prometheus collectors
func (t *Tracker) Registry() *prometheus.Registry {
	return t.registry
}

// Handler serves the collectors in the prometheus text format
func (t *Tracker) Handler() http.Handler {
	return promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{})
}

// WriteToFile exports metrics to a JSON file
func (t *Tracker) WriteToFile(path, reason string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	// Finalize metrics
	t.data.EndTime = time.Now()
	t.data.TerminationReason = reason
	if t.data.Batches > 0 {
		t.data.AvgBatchTimeMs = t.data.TotalBatchTimeMs / int64(t.data.Batches)
	}

	// Marshal to JSON
	jsonData, err := json.MarshalIndent(t.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}

	// Write to file
	if err := os.WriteFile(path, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}

	return nil
}

// LogProgress formats current metrics for periodic console updates
func (t *Tracker) LogProgress() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return fmt.Sprintf("Batches: %d | Rows: %d folders, %d files, %d tabs | Skipped: %d folders, %d sheets | Reschedules: %d",
		t.data.Batches,
		t.data.FoldersExported,
		t.data.FilesExported,
		t.data.TabsExported,
		t.data.ResolutionFailures,
		t.data.SubpartFailures,
		t.data.Reschedules,
	)
}
