package metrics

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/alvmarrod/label-weaver/internal/crawler"
	"github.com/alvmarrod/label-weaver/internal/label"
	"github.com/alvmarrod/label-weaver/internal/storage"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

// Tracker holds and manages run metrics
type Tracker struct {
	mu               sync.Mutex
	data             storage.Metrics
	totalFetchTimeMs int64
	fetchCount       int

	registry    *prometheus.Registry
	rowsTotal   *prometheus.CounterVec
	eventsTotal *prometheus.CounterVec
	fetchTime   *prometheus.HistogramVec
}

// NewTracker creates a new metrics tracker with its own Prometheus registry
func NewTracker() *Tracker {
	t := &Tracker{
		data: storage.Metrics{
			RunID:     uuid.NewString(),
			StartTime: time.Now(),
			Stages:    make(map[string]*storage.StageMetrics),
		},
		registry: prometheus.NewRegistry(),
		rowsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "labelweaver_rows_total",
			Help: "Rows processed, labeled by stage and outcome.",
		}, []string{"stage", "outcome"}),
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "labelweaver_crawler_events_total",
			Help: "Crawler searches, cache hits and fetches, labeled by source and event.",
		}, []string{"source", "event"}),
		fetchTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "labelweaver_fetch_duration_seconds",
			Help:    "Latency of corpus requests, labeled by source.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}, []string{"source"}),
	}
	t.registry.MustRegister(t.rowsTotal, t.eventsTotal, t.fetchTime)
	return t
}

// RunID identifies this run in exported metrics
func (t *Tracker) RunID() string {
	return t.data.RunID
}

func (t *Tracker) stage(s label.Stage) *storage.StageMetrics {
	m, ok := t.data.Stages[s.String()]
	if !ok {
		m = &storage.StageMetrics{Classified: map[string]int{}, Flagged: map[string]int{}}
		t.data.Stages[s.String()] = m
	}
	return m
}

// RecordRow counts a processed row and the classification it ended with
func (t *Tracker) RecordRow(s label.Stage, result label.Classification) {
	t.mu.Lock()
	defer t.mu.Unlock()

	m := t.stage(s)
	m.Processed++
	outcome := "pending"
	if c, ok := result.Class(); ok {
		outcome = c.Short()
		m.Classified[c.String()]++
	} else if f, _, ok := result.Flag(); ok {
		outcome = "flag"
		m.Flagged[f.String()]++
	}
	t.rowsTotal.WithLabelValues(s.String(), outcome).Inc()
}

// RecordSkip counts a row the stage left untouched
func (t *Tracker) RecordSkip(s label.Stage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stage(s).Skipped++
	t.rowsTotal.WithLabelValues(s.String(), "skipped").Inc()
}

// RecordConflict counts a copyright disagreement
func (t *Tracker) RecordConflict(s label.Stage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stage(s).Conflicts++
}

// RecordCheckpoint counts a checkpoint write
func (t *Tracker) RecordCheckpoint() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.Checkpoints++
}

var eventNames = map[crawler.Event]string{
	crawler.EventSearch:      "search",
	crawler.EventCacheHit:    "cache_hit",
	crawler.EventFetch:       "fetch",
	crawler.EventFetchFailed: "fetch_failed",
	crawler.EventArchived:    "archived",
}

// RecordCrawlerEvent is a crawler.EventFunc
func (t *Tracker) RecordCrawlerEvent(source string, ev crawler.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch ev {
	case crawler.EventSearch:
		t.data.Searches++
	case crawler.EventCacheHit:
		t.data.CacheHits++
	case crawler.EventFetch:
		t.data.PagesFetched++
	case crawler.EventFetchFailed:
		t.data.PagesFailed++
	}
	t.eventsTotal.WithLabelValues(source, eventNames[ev]).Inc()
}

// RecordFetchTime records a request duration
func (t *Tracker) RecordFetchTime(source string, duration time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.totalFetchTimeMs += duration.Milliseconds()
	t.fetchCount++
	t.fetchTime.WithLabelValues(source).Observe(duration.Seconds())
}

// GetSnapshot returns a copy of current metrics
func (t *Tracker) GetSnapshot() storage.Metrics {
	t.mu.Lock()
	defer t.mu.Unlock()

	snapshot := t.data
	snapshot.Stages = make(map[string]*storage.StageMetrics, len(t.data.Stages))
	for k, v := range t.data.Stages {
		stageCopy := *v
		stageCopy.Classified = copyCounts(v.Classified)
		stageCopy.Flagged = copyCounts(v.Flagged)
		snapshot.Stages[k] = &stageCopy
	}
	snapshot.TotalFetchTimeMs = t.totalFetchTimeMs
	if t.fetchCount > 0 {
		snapshot.AvgFetchTimeMs = t.totalFetchTimeMs / int64(t.fetchCount)
	}
	return snapshot
}

func copyCounts(in map[string]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// WriteToFile exports metrics to a JSON file
func (t *Tracker) WriteToFile(path, reason string) error {
	t.mu.Lock()
	t.data.EndTime = time.Now()
	t.data.TerminationReason = reason
	t.mu.Unlock()

	jsonData, err := json.MarshalIndent(t.GetSnapshot(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}

	if err := os.WriteFile(path, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}
	return nil
}

// WriteTextfile exports the Prometheus counters in text exposition format
func (t *Tracker) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, t.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}

// LogProgress formats current metrics for periodic console updates
func (t *Tracker) LogProgress() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	processed := 0
	for _, m := range t.data.Stages {
		processed += m.Processed
	}
	return fmt.Sprintf("Rows: %d processed | Searches: %d | Cache hits: %d | Pages: %d fetched, %d failed | Checkpoints: %d",
		processed,
		t.data.Searches,
		t.data.CacheHits,
		t.data.PagesFetched,
		t.data.PagesFailed,
		t.data.Checkpoints,
	)
}
