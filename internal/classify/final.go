package classify

import (
	"strings"

	"github.com/alvmarrod/label-weaver/internal/label"
)

// Correction forces a class for any label whose name contains Match.
type Correction struct {
	Match string
	Class label.Class
}

// DefaultCorrections are manual fixes for labels the crawls get wrong.
var DefaultCorrections = []Correction{
	{"glassnote", label.Sony},
	{"chance the rapper", label.Independent},
	{"domino recording co", label.Independent},
	{"bread winners", label.Warner},
	{"rise records", label.Independent},
	{"integrity music", label.Independent},
	{"monstercat", label.Independent},
}

// Final arbitrates the last column.
type Final struct {
	KeywordThreshold float64
	Corrections      []Correction
}

func (f Final) correction(name string) (label.Class, bool) {
	lower := strings.ToLower(name)
	for _, c := range f.Corrections {
		if strings.Contains(lower, c.Match) {
			return c.Class, true
		}
	}
	return 0, false
}

// Decide returns the final class for an entry given the carried-forward
// copyright cell. The result is always final.
func (f Final) Decide(e *label.Entry, prev label.Classification) label.Classification {
	if c, ok := f.correction(e.Name); ok {
		return label.Final(c)
	}
	// Labels whose name itself means unknown start over from Unknown
	if e.Get(label.StageTrivial).Is(label.Unknown) && !prev.IsTerminal() {
		prev = label.Final(label.Unknown)
	}
	if prev.IsTerminal() {
		return prev
	}

	kw := e.Discogs.Keywords
	if kw.Total() < f.KeywordThreshold {
		return label.Final(label.Independent)
	}
	if c, ok := kw.Argmax(label.Majors[:]...); ok {
		return label.Final(c)
	}
	return label.Final(label.Independent)
}
