// Package report summarises label tables and joins them onto album lists.
package report

import (
	"fmt"
	"io"
	"sort"

	"github.com/alvmarrod/label-weaver/internal/label"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Unclassified labels a cell no stage has decided yet.
const Unclassified = "Unclassified"

var stepTitles = map[label.Stage]string{
	label.StageTrivial:   "Trivial mapping",
	label.StageDiscogs:   "Discogs label crawler",
	label.StageWikipedia: "Wikipedia label crawler",
	label.StageInterim:   "Interim mapping",
	label.StageCopyright: "Copyright classification",
	label.StageFinal:     "Final classification",
}

// Count tallies labels and their occurrence weight.
type Count struct {
	Labels      int
	Occurrences int
}

func (c *Count) add(e *label.Entry) {
	c.Labels++
	c.Occurrences += e.Occurrences
}

// FlagCount is the tally for one non-final cell value.
type FlagCount struct {
	Value string
	Count
}

// StageStats is the class distribution of one stage column.
type StageStats struct {
	Stage   label.Stage
	Classes [len(label.KeywordClasses) + 1]Count
	Flags   []FlagCount
	// Gain is the change in occurrences per class relative to the previous
	// stage, as a fraction of all occurrences.
	Gain [len(label.KeywordClasses) + 1]float64
}

// Resolved sums the final classes.
func (s StageStats) Resolved() Count {
	var sum Count
	for _, c := range s.Classes {
		sum.Labels += c.Labels
		sum.Occurrences += c.Occurrences
	}
	return sum
}

// Summary is the stepwise gain over a whole table.
type Summary struct {
	Labels      int
	Occurrences int
	Stages      []StageStats
}

// Stepwise computes the distribution of every stage column in order.
func Stepwise(t *label.Table) Summary {
	sum := Summary{Labels: t.Len()}
	for _, e := range t.Entries() {
		sum.Occurrences += e.Occurrences
	}

	var prev *StageStats
	for _, stage := range label.Stages() {
		st := StageStats{Stage: stage}
		flags := map[string]*FlagCount{}
		for _, e := range t.Entries() {
			cell := e.Get(stage)
			if c, ok := cell.Class(); ok {
				st.Classes[c].add(e)
				continue
			}
			key := Unclassified
			if cell.IsFlag() {
				key = cell.String()
			}
			fc, ok := flags[key]
			if !ok {
				fc = &FlagCount{Value: key}
				flags[key] = fc
			}
			fc.add(e)
		}
		for _, fc := range flags {
			st.Flags = append(st.Flags, *fc)
		}
		sort.Slice(st.Flags, func(i, j int) bool {
			if st.Flags[i].Occurrences != st.Flags[j].Occurrences {
				return st.Flags[i].Occurrences > st.Flags[j].Occurrences
			}
			return st.Flags[i].Value < st.Flags[j].Value
		})
		if sum.Occurrences > 0 {
			for i := range st.Classes {
				before := 0
				if prev != nil {
					before = prev.Classes[i].Occurrences
				}
				st.Gain[i] = float64(st.Classes[i].Occurrences-before) / float64(sum.Occurrences)
			}
		}
		sum.Stages = append(sum.Stages, st)
		prev = &sum.Stages[len(sum.Stages)-1]
	}
	return sum
}

func share(n, total int) string {
	if total == 0 {
		return "0.00%"
	}
	return fmt.Sprintf("%.2f%%", 100*float64(n)/float64(total))
}

// Render writes one table per stage.
func Render(w io.Writer, s Summary) error {
	if _, err := fmt.Fprintf(w, "Labels: %d, occurrences: %d\n", s.Labels, s.Occurrences); err != nil {
		return err
	}
	for _, st := range s.Stages {
		tw := table.NewWriter()
		tw.SetStyle(table.StyleRounded)
		tw.SetTitle(stepTitles[st.Stage])
		tw.AppendHeader(table.Row{"Class", "Labels", "%", "Occurrences", "%", "Gain"})

		for i, c := range st.Classes {
			tw.AppendRow(table.Row{
				label.Class(i).String(),
				c.Labels, share(c.Labels, s.Labels),
				c.Occurrences, share(c.Occurrences, s.Occurrences),
				fmt.Sprintf("%+.2f%%", 100*st.Gain[i]),
			})
		}
		resolved := st.Resolved()
		tw.AppendSeparator()
		tw.AppendRow(table.Row{"Sum", resolved.Labels, share(resolved.Labels, s.Labels),
			resolved.Occurrences, share(resolved.Occurrences, s.Occurrences), ""})

		if len(st.Flags) > 0 {
			tw.AppendSeparator()
			for _, f := range st.Flags {
				tw.AppendRow(table.Row{f.Value, f.Labels, share(f.Labels, s.Labels),
					f.Occurrences, share(f.Occurrences, s.Occurrences), ""})
			}
		}

		configs := []table.ColumnConfig{{Number: 1, Align: text.AlignLeft}}
		for col := 2; col <= 6; col++ {
			configs = append(configs, table.ColumnConfig{Number: col, Align: text.AlignRight, AlignHeader: text.AlignLeft})
		}
		tw.SetColumnConfigs(configs)

		if _, err := fmt.Fprintln(w, tw.Render()); err != nil {
			return err
		}
	}
	return nil
}
