package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/alvmarrod/label-weaver/internal/label"
)

// falsey names stand for a missing label in album metadata.
var falsey = map[string]bool{"": true, "N/A": true, "n/a": true, "NA": true, "null": true}

// Enrich copies an album CSV to out with a record_label_major column taken
// from the final column of t. Albums without a usable label name are mapped
// to Independent, albums whose label is not in the table get an empty cell.
// It returns the number of rows written.
func Enrich(t *label.Table, albums io.Reader, out io.Writer) (int, error) {
	r := csv.NewReader(albums)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return 0, fmt.Errorf("%w: album header: %v", label.ErrMalformedTable, err)
	}
	nameCol, majorCol := -1, -1
	for i, h := range header {
		switch strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")) {
		case label.ColumnName:
			nameCol = i
		case label.StageFinal.Column():
			majorCol = i
		}
	}
	if nameCol < 0 {
		return 0, fmt.Errorf("%w: album list missing column %s", label.ErrMalformedTable, label.ColumnName)
	}

	w := csv.NewWriter(out)
	if err := w.Write(append(dropColumn(header, majorCol), label.StageFinal.Column())); err != nil {
		return 0, err
	}

	rows := 0
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return rows, fmt.Errorf("%w: %v", label.ErrMalformedTable, err)
		}
		for len(rec) < len(header) {
			rec = append(rec, "")
		}

		name := strings.TrimSpace(rec[nameCol])
		major := ""
		if falsey[name] {
			rec[nameCol] = label.Independent.String()
			major = label.Independent.String()
		} else if e, ok := t.Lookup(name); ok {
			major = e.Major().String()
		}

		if err := w.Write(append(dropColumn(rec, majorCol), major)); err != nil {
			return rows, err
		}
		rows++
	}
	w.Flush()
	return rows, w.Error()
}

func dropColumn(rec []string, col int) []string {
	if col < 0 || col >= len(rec) {
		return rec
	}
	out := make([]string, 0, len(rec)-1)
	out = append(out, rec[:col]...)
	return append(out, rec[col+1:]...)
}
