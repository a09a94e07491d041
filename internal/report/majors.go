package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/alvmarrod/label-weaver/internal/label"
)

// WriteMajorMap writes the name, occurrences and final class of every entry.
func WriteMajorMap(t *label.Table, out io.Writer) error {
	w := csv.NewWriter(out)
	if err := w.Write([]string{label.ColumnName, label.ColumnOccurrences, label.StageFinal.Column()}); err != nil {
		return err
	}
	for _, e := range t.Entries() {
		if err := w.Write([]string{e.Name, strconv.Itoa(e.Occurrences), e.Major().String()}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// WriteMajorMapFile writes the major map to path.
func WriteMajorMapFile(t *label.Table, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create major map: %w", err)
	}
	if err := WriteMajorMap(t, f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write major map: %w", err)
	}
	return f.Close()
}
