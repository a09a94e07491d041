package label

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrMalformedTable is returned when a label table cannot be loaded.
var ErrMalformedTable = errors.New("malformed label table")

const (
	ColumnName        = "record_label_low"
	ColumnOccurrences = "occurrences"
	ColumnCopyrightP  = "copyright_p"
	ColumnCopyrightC  = "copyright_c"
	ColumnConflict    = "copyright_conflict"
	ColumnDiscogsRef  = "discogs_wiki_url"
	ColumnWikiURL     = "wiki_url"
	ColumnWikiIndi    = "wiki_has_indi_link"
)

func keywordColumn(prefix string, c Class) string {
	return prefix + "_keywords_" + c.Short() + "_sum"
}

// Columns returns the full header written by WriteTo.
func Columns() []string {
	cols := []string{ColumnName, ColumnOccurrences}
	for _, s := range Stages() {
		cols = append(cols, s.Column())
	}
	cols = append(cols, ColumnDiscogsRef)
	for _, c := range KeywordClasses {
		cols = append(cols, keywordColumn("discogs", c))
	}
	cols = append(cols, ColumnWikiURL, ColumnWikiIndi)
	for _, c := range KeywordClasses {
		cols = append(cols, keywordColumn("wiki", c))
	}
	return append(cols, ColumnCopyrightP, ColumnCopyrightC, ColumnConflict)
}

// Table is the ordered collection of label entries, unique by name.
type Table struct {
	entries []*Entry
	index   map[string]int
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{index: make(map[string]int)}
}

// Add appends an entry. Names must be unique.
func (t *Table) Add(e *Entry) error {
	if _, dup := t.index[e.Name]; dup {
		return fmt.Errorf("%w: duplicate label %q", ErrMalformedTable, e.Name)
	}
	t.index[e.Name] = len(t.entries)
	t.entries = append(t.entries, e)
	return nil
}

// Len is the number of entries.
func (t *Table) Len() int { return len(t.entries) }

// Entries returns the entries in table order.
func (t *Table) Entries() []*Entry { return t.entries }

// Lookup finds an entry by exact name.
func (t *Table) Lookup(name string) (*Entry, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.entries[i], true
}

type rowReader struct {
	cols map[string]int
	rec  []string
	line int
}

func (r rowReader) has(col string) bool {
	_, ok := r.cols[col]
	return ok
}

func (r rowReader) get(col string) string {
	if i, ok := r.cols[col]; ok && i < len(r.rec) {
		return r.rec[i]
	}
	return ""
}

func (r rowReader) fail(col string, err error) error {
	return fmt.Errorf("%w: line %d column %s: %v", ErrMalformedTable, r.line, col, err)
}

func (r rowReader) float(col string) (float64, error) {
	v := strings.TrimSpace(r.get(col))
	if v == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, r.fail(col, err)
	}
	return f, nil
}

func (r rowReader) keywords(prefix string) (Keywords, error) {
	var k Keywords
	for _, c := range KeywordClasses {
		v, err := r.float(keywordColumn(prefix, c))
		if err != nil {
			return k, err
		}
		k[c] = v
	}
	return k, nil
}

func (r rowReader) boolean(col string) (bool, error) {
	v := strings.TrimSpace(r.get(col))
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, r.fail(col, err)
	}
	return b, nil
}

// ReadTable parses a label table. Only the name and occurrence columns are
// required; absent stage columns load as pending. Any malformed cell fails
// the whole read.
func ReadTable(in io.Reader) (*Table, error) {
	reader := csv.NewReader(in)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: missing header", ErrMalformedTable)
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedTable, err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	for _, required := range []string{ColumnName, ColumnOccurrences} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("%w: missing column %s", ErrMalformedTable, required)
		}
	}

	table := NewTable()
	for line := 2; ; line++ {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedTable, err)
		}
		entry, err := parseRow(rowReader{cols: cols, rec: rec, line: line})
		if err != nil {
			return nil, err
		}
		if err := table.Add(entry); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
	}
	return table, nil
}

func parseRow(r rowReader) (*Entry, error) {
	e := &Entry{Name: strings.TrimSpace(r.get(ColumnName))}

	occ, err := strconv.Atoi(strings.TrimSpace(r.get(ColumnOccurrences)))
	if err != nil {
		return nil, r.fail(ColumnOccurrences, err)
	}
	if occ < 0 {
		return nil, r.fail(ColumnOccurrences, fmt.Errorf("negative count %d", occ))
	}
	e.Occurrences = occ

	for _, s := range Stages() {
		if !r.has(s.Column()) {
			continue
		}
		c, err := ParseClassification(r.get(s.Column()))
		if err != nil {
			return nil, r.fail(s.Column(), err)
		}
		e.Classes[s] = c
	}

	if e.Discogs.Keywords, err = r.keywords("discogs"); err != nil {
		return nil, err
	}
	if e.Wikipedia.Keywords, err = r.keywords("wiki"); err != nil {
		return nil, err
	}
	if e.Wikipedia.IndependentLink, err = r.boolean(ColumnWikiIndi); err != nil {
		return nil, err
	}
	e.Discogs.CrossRef = strings.TrimSpace(r.get(ColumnDiscogsRef))
	e.Wikipedia.URL = strings.TrimSpace(r.get(ColumnWikiURL))
	e.CopyrightP = r.get(ColumnCopyrightP)
	e.CopyrightC = r.get(ColumnCopyrightC)
	if e.CopyrightConflict, err = ParseClassification(r.get(ColumnConflict)); err != nil {
		return nil, r.fail(ColumnConflict, err)
	}
	return e, nil
}

// ReadTableFile loads a table from disk.
func ReadTableFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open label table: %w", err)
	}
	defer f.Close()

	t, err := ReadTable(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// WriteTo writes the table as CSV with the full column set.
func (t *Table) WriteTo(out io.Writer) error {
	w := csv.NewWriter(out)
	if err := w.Write(Columns()); err != nil {
		return err
	}
	for _, e := range t.entries {
		rec := []string{e.Name, strconv.Itoa(e.Occurrences)}
		for _, s := range Stages() {
			rec = append(rec, e.Classes[s].String())
		}
		rec = append(rec, e.Discogs.CrossRef)
		for _, c := range KeywordClasses {
			rec = append(rec, formatFloat(e.Discogs.Keywords[c]))
		}
		rec = append(rec, e.Wikipedia.URL, strconv.FormatBool(e.Wikipedia.IndependentLink))
		for _, c := range KeywordClasses {
			rec = append(rec, formatFloat(e.Wikipedia.Keywords[c]))
		}
		rec = append(rec, e.CopyrightP, e.CopyrightC, e.CopyrightConflict.String())
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// WriteFile replaces path with the table contents via a temporary file.
func (t *Table) WriteFile(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create table directory: %w", err)
		}
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp table: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := t.WriteTo(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write label table: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close label table: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace label table: %w", err)
	}
	return nil
}
