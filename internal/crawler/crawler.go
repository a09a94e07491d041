// Package crawler resolves a label name to a major class by walking the
// parent, distributor and label references of a corpus up to a fixed depth.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alvmarrod/label-weaver/internal/label"
	"github.com/alvmarrod/label-weaver/internal/storage"
	"github.com/sirupsen/logrus"
)

// Event is a countable crawler occurrence.
type Event int

const (
	EventSearch Event = iota
	EventCacheHit
	EventFetch
	EventFetchFailed
	EventArchived
)

// EventFunc receives crawler events for metrics.
type EventFunc func(source string, ev Event)

// Crawler orchestrates lookups against one corpus
type Crawler struct {
	source   Source
	archive  Archive
	maxDepth int
	events   EventFunc
	log      *logrus.Entry
	now      func() time.Time
}

// New creates a crawler over source, memoising into archive.
func New(source Source, archive Archive, maxDepth int, events EventFunc) *Crawler {
	return &Crawler{
		source:   source,
		archive:  archive,
		maxDepth: maxDepth,
		events:   events,
		log:      logrus.WithFields(logrus.Fields{"component": "crawler", "source": source.Name()}),
		now:      time.Now,
	}
}

// Source returns the corpus this crawler walks.
func (c *Crawler) Source() Source { return c.source }

func (c *Crawler) emit(ev Event) {
	if c.events != nil {
		c.events(c.source.Name(), ev)
	}
}

func (c *Crawler) flag(f label.FlagKind) label.Classification {
	return label.Flagged(f, c.source.Stage())
}

func transientFlag(cls label.Classification) bool {
	f, _, ok := cls.Flag()
	return ok && f == label.FlagConnection
}

// Classify resolves name, or crossRef when it points into this corpus, to a
// node. The node's Class is final or a flag; the error is only set when ctx
// ends.
func (c *Crawler) Classify(ctx context.Context, name, crossRef string) (storage.CrawlNode, error) {
	id := ""
	if crossRef != "" {
		id = c.source.Canonical(crossRef)
	}
	if id == "" {
		mapping, err := c.identify(ctx, name)
		if err != nil {
			return storage.CrawlNode{}, err
		}
		if !mapping.Found() {
			return storage.CrawlNode{Source: c.source.Name(), Name: name, Class: mapping.Flag}, nil
		}
		id = mapping.Identifier
	}
	return c.resolve(ctx, id, 0)
}

// identify maps a display name to an identifier with at most one search.
func (c *Crawler) identify(ctx context.Context, name string) (storage.NameMapping, error) {
	if m, ok := c.archive.Identifier(c.source.Name(), name); ok {
		c.emit(EventCacheHit)
		return m, nil
	}

	mapping := storage.NameMapping{Source: c.source.Name(), Name: name}
	if strings.TrimSpace(name) == "" {
		mapping.Flag = c.flag(label.FlagNoID)
		return mapping, nil
	}

	c.emit(EventSearch)
	candidates, err := c.source.Search(ctx, name)
	if err != nil {
		if ctx.Err() != nil {
			return storage.NameMapping{}, ctx.Err()
		}
		kind := label.FlagConnection
		if errors.Is(err, ErrDisambiguation) {
			kind = label.FlagDisambiguation
		}
		c.log.WithError(err).Debugf("Search for %q failed", name)
		mapping.Flag = c.flag(kind)
		c.archive.PutIdentifier(mapping, transientFlag(mapping.Flag))
		return mapping, nil
	}

	for _, cand := range candidates {
		if strings.Contains(strings.ToLower(cand.Title), "list") {
			continue
		}
		if id := c.source.Canonical(cand.ID); id != "" {
			mapping.Identifier = id
			break
		}
	}
	if mapping.Identifier == "" {
		mapping.Flag = c.flag(label.FlagNoID)
	}
	c.log.Debugf("Search %q -> %q %s", name, mapping.Identifier, mapping.Flag)
	c.archive.PutIdentifier(mapping, false)
	return mapping, nil
}

// resolve returns the archived node for id, extracting it on a miss.
func (c *Crawler) resolve(ctx context.Context, id string, depth int) (storage.CrawlNode, error) {
	if depth > c.maxDepth {
		return storage.CrawlNode{Source: c.source.Name(), Identifier: id, Class: c.flag(label.FlagMaxDepth)}, nil
	}
	if node, ok := c.archive.Node(c.source.Name(), id); ok {
		c.emit(EventCacheHit)
		return node, nil
	}
	return c.extract(ctx, id, depth)
}

// extract fetches id and classifies it from its references. Only the depth
// bound stops a reference cycle.
func (c *Crawler) extract(ctx context.Context, id string, depth int) (storage.CrawlNode, error) {
	node := storage.CrawlNode{
		Source:     c.source.Name(),
		Identifier: id,
		Class:      c.flag(label.FlagTry),
		FetchedAt:  c.now(),
	}

	c.emit(EventFetch)
	entity, err := c.source.Fetch(ctx, id)
	if err != nil {
		if ctx.Err() != nil {
			return storage.CrawlNode{}, ctx.Err()
		}
		c.emit(EventFetchFailed)
		switch {
		case errors.Is(err, ErrNotFound):
			node.Class = c.flag(label.FlagNoID)
		case errors.Is(err, ErrDisambiguation):
			node.Class = c.flag(label.FlagDisambiguation)
		default:
			node.Class = c.flag(label.FlagConnection)
		}
		c.log.WithError(err).Debugf("Fetch %s failed at depth %d", id, depth)
		return node, c.store(node)
	}

	node.Name = entity.Name
	node.Keywords = CountKeywords(entity.Text)
	node.CrossRef = entity.CrossRef
	node.IndependentLink = entity.IndependentLink
	node.Parents = c.references(id, entity)

	if cls, ok := c.majorOf(id, entity); ok {
		node.Class = label.Final(cls)
		c.log.Debugf("%s (%s) resolves to %s at depth %d", id, entity.Name, cls, depth)
		return node, c.store(node)
	}

	if len(node.Parents) == 0 {
		node.Class = c.flag(label.FlagNoParent)
		return node, c.store(node)
	}

	for _, ref := range node.Parents {
		parent, err := c.resolve(ctx, ref, depth+1)
		if err != nil {
			return storage.CrawlNode{}, err
		}
		node.Class = parent.Class
		if node.CrossRef == "" {
			node.CrossRef = parent.CrossRef
		}
		if parent.Class.IsFinal() {
			break
		}
	}
	c.log.Debugf("%s (%s) -> %s at depth %d", id, entity.Name, node.Class, depth)
	return node, c.store(node)
}

func (c *Crawler) store(node storage.CrawlNode) error {
	if err := c.archive.PutNode(node, transientFlag(node.Class)); err != nil {
		return fmt.Errorf("archive %s: %w", node.Identifier, err)
	}
	c.emit(EventArchived)
	return nil
}

// majorOf checks the entity itself, then parents, distributors and labels
// for a direct major reference.
func (c *Crawler) majorOf(id string, entity Entity) (label.Class, bool) {
	if cls, ok := c.source.Major(id); ok {
		return cls, true
	}
	for _, group := range entity.References() {
		for _, ref := range group {
			if cls, ok := c.source.Major(c.source.Canonical(ref)); ok {
				return cls, true
			}
		}
	}
	return 0, false
}

// references flattens the entity's reference groups into unique canonical
// identifiers, dropping self references.
func (c *Crawler) references(self string, entity Entity) []string {
	seen := map[string]bool{self: true}
	var refs []string
	for _, group := range entity.References() {
		for _, ref := range group {
			id := c.source.Canonical(ref)
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			refs = append(refs, id)
		}
	}
	return refs
}

// AggregateKeywords sums the node's keyword counts with every ancestor's,
// each generation weighted half of the one below it.
func (c *Crawler) AggregateKeywords(node storage.CrawlNode) label.Keywords {
	total := node.Keywords
	frontier := node.Parents
	weight := 1.0
	for gen := 1; gen <= c.maxDepth && len(frontier) > 0; gen++ {
		weight /= 2
		var next []string
		for _, ref := range frontier {
			parent, ok := c.archive.Node(c.source.Name(), ref)
			if !ok {
				continue
			}
			total = total.Add(parent.Keywords, weight)
			next = append(next, parent.Parents...)
		}
		frontier = next
	}
	return total
}

// AggregateIndependent reports whether the node or an ancestor within the
// depth bound links to the independent-label article.
func (c *Crawler) AggregateIndependent(node storage.CrawlNode) bool {
	if node.IndependentLink {
		return true
	}
	frontier := node.Parents
	for gen := 1; gen <= c.maxDepth && len(frontier) > 0; gen++ {
		var next []string
		for _, ref := range frontier {
			parent, ok := c.archive.Node(c.source.Name(), ref)
			if !ok {
				continue
			}
			if parent.IndependentLink {
				return true
			}
			next = append(next, parent.Parents...)
		}
		frontier = next
	}
	return false
}
