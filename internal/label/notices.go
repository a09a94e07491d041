package label

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Notice is the producer and copyright text attached to a label's releases.
type Notice struct {
	P string
	C string
}

// ReadNotices loads a copyright map keyed by label name. Later rows for the
// same name replace earlier ones.
func ReadNotices(in io.Reader) (map[string]Notice, error) {
	reader := csv.NewReader(in)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: copyright map header: %v", ErrMalformedTable, err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	nameCol, ok := cols[ColumnName]
	if !ok {
		return nil, fmt.Errorf("%w: copyright map missing column %s", ErrMalformedTable, ColumnName)
	}
	get := func(rec []string, col string) string {
		if i, ok := cols[col]; ok && i < len(rec) {
			return rec[i]
		}
		return ""
	}

	notices := make(map[string]Notice)
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedTable, err)
		}
		if nameCol >= len(rec) {
			continue
		}
		notices[strings.TrimSpace(rec[nameCol])] = Notice{
			P: get(rec, ColumnCopyrightP),
			C: get(rec, ColumnCopyrightC),
		}
	}
	return notices, nil
}

// ReadNoticesFile loads a copyright map from disk.
func ReadNoticesFile(path string) (map[string]Notice, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open copyright map: %w", err)
	}
	defer f.Close()
	return ReadNotices(f)
}

// MergeNotices copies notices onto matching entries and returns how many matched.
func (t *Table) MergeNotices(notices map[string]Notice) int {
	matched := 0
	for _, e := range t.entries {
		n, ok := notices[e.Name]
		if !ok {
			continue
		}
		e.CopyrightP, e.CopyrightC = n.P, n.C
		matched++
	}
	return matched
}
