package storage

import (
	"time"

	"github.com/alvmarrod/label-weaver/internal/label"
)

// CrawlNode is one resolved entity of a crawled corpus
type CrawlNode struct {
	Source     string
	Identifier string
	Name       string
	Class      label.Classification
	// Parents holds parent companies, then distributors, then labels
	Parents         []string
	Keywords        label.Keywords
	CrossRef        string
	IndependentLink bool
	FetchedAt       time.Time
}

// NameMapping caches the outcome of a name search: an identifier or a flag
type NameMapping struct {
	Source     string
	Name       string
	Identifier string
	Flag       label.Classification
}

// Found reports whether the search produced an identifier
func (m NameMapping) Found() bool {
	return m.Identifier != "" && m.Flag.IsPending()
}

// StageMetrics counts what a single stage did during a run
type StageMetrics struct {
	Processed  int            `json:"processed"`
	Skipped    int            `json:"skipped"`
	Classified map[string]int `json:"classified"`
	Flagged    map[string]int `json:"flagged"`
	Conflicts  int            `json:"conflicts,omitempty"`
}

// Metrics tracks run statistics for export on exit
type Metrics struct {
	RunID             string                   `json:"run_id"`
	StartTime         time.Time                `json:"start_time"`
	EndTime           time.Time                `json:"end_time"`
	Stages            map[string]*StageMetrics `json:"stages"`
	Searches          int                      `json:"searches"`
	CacheHits         int                      `json:"cache_hits"`
	PagesFetched      int                      `json:"pages_fetched"`
	PagesFailed       int                      `json:"pages_failed"`
	Checkpoints       int                      `json:"checkpoints"`
	TotalFetchTimeMs  int64                    `json:"total_fetch_time_ms"`
	AvgFetchTimeMs    int64                    `json:"avg_fetch_time_ms"`
	TerminationReason string                   `json:"termination_reason"`
}
