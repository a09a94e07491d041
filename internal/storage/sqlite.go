package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alvmarrod/label-weaver/internal/label"
	_ "github.com/mattn/go-sqlite3"
)

// Storage handles all archive database operations
type Storage struct {
	db *sql.DB
}

// NewStorage creates a new Storage instance, opening/creating the DB and initializing schema
func NewStorage(dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	storage := &Storage{db: db}

	if err := storage.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

// initSchema creates tables and indices if they don't exist
func (s *Storage) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS name_mappings (
		source TEXT NOT NULL,
		name TEXT NOT NULL,
		identifier TEXT NOT NULL DEFAULT '',
		flag TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (source, name)
	);

	CREATE TABLE IF NOT EXISTS crawl_nodes (
		source TEXT NOT NULL,
		identifier TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		class TEXT NOT NULL,
		parents TEXT NOT NULL DEFAULT '[]',
		keywords TEXT NOT NULL DEFAULT '[0,0,0,0]',
		cross_ref TEXT NOT NULL DEFAULT '',
		independent_link INTEGER NOT NULL DEFAULT 0,
		fetched_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (source, identifier)
	);

	CREATE INDEX IF NOT EXISTS idx_nodes_source ON crawl_nodes(source);
	CREATE INDEX IF NOT EXISTS idx_mappings_source ON name_mappings(source);
	`

	_, err := s.db.Exec(schema)
	return err
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func upsertMapping(e execer, m NameMapping) error {
	_, err := e.Exec(`
		INSERT INTO name_mappings (source, name, identifier, flag)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(source, name) DO UPDATE SET
			identifier = EXCLUDED.identifier,
			flag = EXCLUDED.flag
	`, m.Source, m.Name, m.Identifier, m.Flag.String())
	if err != nil {
		return fmt.Errorf("failed to upsert mapping %s/%q: %w", m.Source, m.Name, err)
	}
	return nil
}

func upsertNode(e execer, n CrawlNode) error {
	parents, err := json.Marshal(n.Parents)
	if err != nil {
		return fmt.Errorf("failed to encode parents: %w", err)
	}
	keywords, err := json.Marshal(n.Keywords)
	if err != nil {
		return fmt.Errorf("failed to encode keywords: %w", err)
	}
	fetched := n.FetchedAt
	if fetched.IsZero() {
		fetched = time.Now()
	}
	_, err = e.Exec(`
		INSERT INTO crawl_nodes (source, identifier, name, class, parents, keywords, cross_ref, independent_link, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source, identifier) DO UPDATE SET
			name = EXCLUDED.name,
			class = EXCLUDED.class,
			parents = EXCLUDED.parents,
			keywords = EXCLUDED.keywords,
			cross_ref = EXCLUDED.cross_ref,
			independent_link = EXCLUDED.independent_link,
			fetched_at = EXCLUDED.fetched_at
	`, n.Source, n.Identifier, n.Name, n.Class.String(), string(parents), string(keywords),
		n.CrossRef, n.IndependentLink, fetched.UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert node %s/%s: %w", n.Source, n.Identifier, err)
	}
	return nil
}

// SaveBatch writes mappings and nodes in a single transaction
func (s *Storage) SaveBatch(mappings []NameMapping, nodes []CrawlNode) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	for _, m := range mappings {
		if err := upsertMapping(tx, m); err != nil {
			tx.Rollback()
			return err
		}
	}
	for _, n := range nodes {
		if err := upsertNode(tx, n); err != nil {
			tx.Rollback()
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNode(row scanner) (*CrawlNode, error) {
	var (
		node               CrawlNode
		class, parents, kw string
	)
	if err := row.Scan(&node.Source, &node.Identifier, &node.Name, &class, &parents, &kw,
		&node.CrossRef, &node.IndependentLink, &node.FetchedAt); err != nil {
		return nil, err
	}
	c, err := label.ParseClassification(class)
	if err != nil {
		return nil, fmt.Errorf("node %s/%s: %w", node.Source, node.Identifier, err)
	}
	node.Class = c
	if err := json.Unmarshal([]byte(parents), &node.Parents); err != nil {
		return nil, fmt.Errorf("node %s/%s parents: %w", node.Source, node.Identifier, err)
	}
	if err := json.Unmarshal([]byte(kw), &node.Keywords); err != nil {
		return nil, fmt.Errorf("node %s/%s keywords: %w", node.Source, node.Identifier, err)
	}
	return &node, nil
}

const nodeColumns = `source, identifier, name, class, parents, keywords, cross_ref, independent_link, fetched_at`

// LoadNodes returns every archived node
func (s *Storage) LoadNodes() ([]*CrawlNode, error) {
	rows, err := s.db.Query(`SELECT ` + nodeColumns + ` FROM crawl_nodes ORDER BY source, identifier`)
	if err != nil {
		return nil, fmt.Errorf("failed to load nodes: %w", err)
	}
	defer rows.Close()

	var nodes []*CrawlNode
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		nodes = append(nodes, node)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating nodes: %w", err)
	}
	return nodes, nil
}

// LoadMappings returns every archived name mapping
func (s *Storage) LoadMappings() ([]*NameMapping, error) {
	rows, err := s.db.Query(`SELECT source, name, identifier, flag FROM name_mappings ORDER BY source, name`)
	if err != nil {
		return nil, fmt.Errorf("failed to load mappings: %w", err)
	}
	defer rows.Close()

	var mappings []*NameMapping
	for rows.Next() {
		var (
			m    NameMapping
			flag string
		)
		if err := rows.Scan(&m.Source, &m.Name, &m.Identifier, &flag); err != nil {
			return nil, fmt.Errorf("failed to scan mapping: %w", err)
		}
		if m.Flag, err = label.ParseClassification(flag); err != nil {
			return nil, fmt.Errorf("mapping %s/%q: %w", m.Source, m.Name, err)
		}
		mappings = append(mappings, &m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating mappings: %w", err)
	}
	return mappings, nil
}

// Counts returns the number of archived mappings and nodes
func (s *Storage) Counts() (mappings, nodes int, err error) {
	if err = s.db.QueryRow("SELECT COUNT(*) FROM name_mappings").Scan(&mappings); err != nil {
		return 0, 0, fmt.Errorf("failed to count mappings: %w", err)
	}
	if err = s.db.QueryRow("SELECT COUNT(*) FROM crawl_nodes").Scan(&nodes); err != nil {
		return 0, 0, fmt.Errorf("failed to count nodes: %w", err)
	}
	return mappings, nodes, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}
