package crawler

import (
	"context"
	"errors"
	"strings"

	"github.com/alvmarrod/label-weaver/internal/label"
	"github.com/alvmarrod/label-weaver/internal/storage"
)

var (
	// ErrNotFound means the entity does not exist in the corpus.
	ErrNotFound = errors.New("entity not found")
	// ErrDisambiguation means the identifier names several entities.
	ErrDisambiguation = errors.New("ambiguous entity")
)

// Candidate is one search hit.
type Candidate struct {
	ID    string
	Title string
}

// Entity is the structured view of a fetched corpus page.
type Entity struct {
	Name            string
	Text            string
	Parents         []string
	Distributors    []string
	Labels          []string
	CrossRef        string
	IndependentLink bool
}

// References returns every reference group in priority order.
func (e Entity) References() [][]string {
	return [][]string{e.Parents, e.Distributors, e.Labels}
}

// Source is a crawlable corpus.
type Source interface {
	// Name is the archive namespace.
	Name() string
	// Stage is the pipeline stage this corpus serves.
	Stage() label.Stage
	Search(ctx context.Context, query string) ([]Candidate, error)
	Fetch(ctx context.Context, id string) (Entity, error)
	// Canonical normalises a reference into an identifier, or returns ""
	// when the reference does not belong to this corpus.
	Canonical(ref string) string
	// Major reports whether id is one of the major-label entities.
	Major(id string) (label.Class, bool)
}

// Archive memoises searches and resolved nodes across runs.
type Archive interface {
	Identifier(source, name string) (storage.NameMapping, bool)
	PutIdentifier(m storage.NameMapping, transient bool)
	Node(source, id string) (storage.CrawlNode, bool)
	PutNode(n storage.CrawlNode, transient bool) error
}

var keywordTerms = map[label.Class]string{
	label.Universal:   "universal",
	label.Sony:        "sony",
	label.Warner:      "warner",
	label.Independent: "independent",
}

// CountKeywords counts case-insensitive occurrences of each category term.
func CountKeywords(text string) label.Keywords {
	var k label.Keywords
	lower := strings.ToLower(text)
	for c, term := range keywordTerms {
		k[c] = float64(strings.Count(lower, term))
	}
	return k
}
