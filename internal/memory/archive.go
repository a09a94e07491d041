package memory

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alvmarrod/label-weaver/internal/label"
	"github.com/alvmarrod/label-weaver/internal/storage"
	"github.com/sirupsen/logrus"
)

// ErrUnresolved is returned when a node is archived while still in progress.
var ErrUnresolved = errors.New("node resolution still in progress")

type key struct {
	source string
	id     string
}

type mappingEntry struct {
	mapping   storage.NameMapping
	transient bool
	dirty     bool
}

type nodeEntry struct {
	node      storage.CrawlNode
	transient bool
	dirty     bool
}

// Archive holds crawl results in memory for fast access and writes new
// entries back to SQLite on Flush. Transient entries serve the current run
// only and are never flushed.
type Archive struct {
	mappings map[key]*mappingEntry // (source, name) -> mapping
	nodes    map[key]*nodeEntry    // (source, identifier) -> node
	mu       sync.RWMutex
}

// NewArchive creates an empty archive
func NewArchive() *Archive {
	return &Archive{
		mappings: make(map[key]*mappingEntry),
		nodes:    make(map[key]*nodeEntry),
	}
}

// Identifier returns the cached search outcome for a name
func (a *Archive) Identifier(source, name string) (storage.NameMapping, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if e, ok := a.mappings[key{source, name}]; ok {
		return e.mapping, true
	}
	return storage.NameMapping{}, false
}

// PutIdentifier records a search outcome
func (a *Archive) PutIdentifier(m storage.NameMapping, transient bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.mappings[key{m.Source, m.Name}] = &mappingEntry{mapping: m, transient: transient, dirty: !transient}
}

// Node returns a copy of an archived node
func (a *Archive) Node(source, id string) (storage.CrawlNode, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if e, ok := a.nodes[key{source, id}]; ok {
		nodeCopy := e.node
		nodeCopy.Parents = append([]string(nil), e.node.Parents...)
		return nodeCopy, true
	}
	return storage.CrawlNode{}, false
}

// PutNode archives a fully resolved node
func (a *Archive) PutNode(n storage.CrawlNode, transient bool) error {
	if f, _, ok := n.Class.Flag(); ok && f == label.FlagTry {
		return fmt.Errorf("%w: %s/%s", ErrUnresolved, n.Source, n.Identifier)
	}
	if n.Identifier == "" {
		return fmt.Errorf("node for %q has no identifier", n.Name)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	n.Parents = append([]string(nil), n.Parents...)
	a.nodes[key{n.Source, n.Identifier}] = &nodeEntry{node: n, transient: transient, dirty: !transient}
	return nil
}

// GetStats returns the number of cached mappings and nodes
func (a *Archive) GetStats() (mappingCount, nodeCount int) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return len(a.mappings), len(a.nodes)
}

// Dirty returns how many entries are waiting for the next flush
func (a *Archive) Dirty() int {
	a.mu.RLock()
	defer a.mu.RUnlock()

	count := 0
	for _, e := range a.mappings {
		if e.dirty {
			count++
		}
	}
	for _, e := range a.nodes {
		if e.dirty {
			count++
		}
	}
	return count
}

// Flush writes every new non-transient entry to SQLite storage in one transaction
func (a *Archive) Flush(store *storage.Storage) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	startTime := time.Now()

	var (
		mappings []storage.NameMapping
		nodes    []storage.CrawlNode
	)
	for _, e := range a.mappings {
		if e.dirty {
			mappings = append(mappings, e.mapping)
		}
	}
	for _, e := range a.nodes {
		if e.dirty {
			nodes = append(nodes, e.node)
		}
	}
	if len(mappings) == 0 && len(nodes) == 0 {
		logrus.Debug("Archive flush skipped: nothing new")
		return nil
	}

	if err := store.SaveBatch(mappings, nodes); err != nil {
		return fmt.Errorf("failed to flush archive: %w", err)
	}

	for _, e := range a.mappings {
		e.dirty = false
	}
	for _, e := range a.nodes {
		e.dirty = false
	}

	logrus.Infof("Archive flush complete: %d mappings, %d nodes written in %v",
		len(mappings), len(nodes), time.Since(startTime))
	return nil
}

// LoadFromStorage populates the archive from SQLite (for resume)
func (a *Archive) LoadFromStorage(store *storage.Storage) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	logrus.Info("Loading archive from database into memory...")

	mappings, err := store.LoadMappings()
	if err != nil {
		return fmt.Errorf("failed to load mappings: %w", err)
	}
	nodes, err := store.LoadNodes()
	if err != nil {
		return fmt.Errorf("failed to load nodes: %w", err)
	}

	for _, m := range mappings {
		a.mappings[key{m.Source, m.Name}] = &mappingEntry{mapping: *m}
	}
	for _, n := range nodes {
		a.nodes[key{n.Source, n.Identifier}] = &nodeEntry{node: *n}
	}

	logrus.Infof("Loaded %d mappings and %d nodes into memory", len(mappings), len(nodes))
	return nil
}
