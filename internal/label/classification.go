package label

import (
	"fmt"
	"strings"
)

// FlagKind is an intermediate, non-terminal lookup outcome.
type FlagKind int

const (
	// FlagTry marks a node whose resolution is in progress. Never archived.
	FlagTry FlagKind = iota
	FlagNoID
	FlagNoParent
	FlagMaxDepth
	FlagConnection
	FlagDisambiguation
)

var flagKinds = []FlagKind{FlagTry, FlagNoID, FlagNoParent, FlagMaxDepth, FlagConnection, FlagDisambiguation}

var flagText = map[FlagKind]string{
	FlagTry:            "Unsuccessful lookup",
	FlagNoID:           "Label not found",
	FlagNoParent:       "No parent found",
	FlagMaxDepth:       "Exceeded max depth",
	FlagConnection:     "Failed lookup",
	FlagDisambiguation: "Disambiguation Error",
}

// Wikipedia history uses its own wording for two outcomes.
var wikipediaFlagText = map[FlagKind]string{
	FlagNoID:     "No Wiki url found",
	FlagNoParent: "Dead end",
}

// Text renders the flag as it appears for the given stage.
func (f FlagKind) Text(stage Stage) string {
	if stage == StageWikipedia {
		if t, ok := wikipediaFlagText[f]; ok {
			return t
		}
	}
	return flagText[f]
}

func (f FlagKind) String() string {
	return flagText[f]
}

type cellKind uint8

const (
	cellPending cellKind = iota
	cellFinal
	cellFlag
)

// Classification is a pending, final or flagged table cell.
// The zero value is pending.
type Classification struct {
	kind  cellKind
	class Class
	flag  FlagKind
	stage Stage
}

// Pending returns an empty classification.
func Pending() Classification {
	return Classification{}
}

// Final wraps a canonical class.
func Final(c Class) Classification {
	return Classification{kind: cellFinal, class: c}
}

// Flagged returns a flag raised by the given stage.
func Flagged(f FlagKind, stage Stage) Classification {
	return Classification{kind: cellFlag, flag: f, stage: stage}
}

// IsPending reports whether no decision has been recorded.
func (c Classification) IsPending() bool { return c.kind == cellPending }

// IsFlag reports whether the cell holds an intermediate flag.
func (c Classification) IsFlag() bool { return c.kind == cellFlag }

// Class returns the final class, ok is false for pending or flagged cells.
func (c Classification) Class() (Class, bool) {
	if c.kind != cellFinal {
		return 0, false
	}
	return c.class, true
}

// Flag returns the flag and the stage that raised it.
func (c Classification) Flag() (FlagKind, Stage, bool) {
	if c.kind != cellFlag {
		return 0, 0, false
	}
	return c.flag, c.stage, true
}

// IsFinal reports whether the cell holds one of the five classes.
func (c Classification) IsFinal() bool { return c.kind == cellFinal }

// Is reports whether the cell is final with class want.
func (c Classification) Is(want Class) bool {
	return c.kind == cellFinal && c.class == want
}

// IsTerminal reports a final class other than Unknown. Terminal cells are
// never changed by a later stage.
func (c Classification) IsTerminal() bool {
	return c.kind == cellFinal && c.class != Unknown
}

// String renders the cell for the table file.
func (c Classification) String() string {
	switch c.kind {
	case cellFinal:
		return c.class.String()
	case cellFlag:
		return c.stage.Title() + ": " + c.flag.Text(c.stage)
	default:
		return ""
	}
}

// ParseClassification is the inverse of String.
func ParseClassification(s string) (Classification, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Pending(), nil
	}
	if cls, ok := ParseClass(s); ok {
		return Final(cls), nil
	}
	prefix, text, found := strings.Cut(s, ": ")
	if found {
		for _, stage := range Stages() {
			if stage.Title() != prefix {
				continue
			}
			for _, f := range flagKinds {
				if f.Text(stage) == text || flagText[f] == text {
					return Flagged(f, stage), nil
				}
			}
		}
	}
	return Classification{}, fmt.Errorf("unrecognised classification %q", s)
}
