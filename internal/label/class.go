// Package label holds the record-label domain model: canonical classes,
// per-stage classifications and the label table persisted between stages.
package label

import (
	"fmt"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Class is one of the five canonical major-label classes.
type Class int

const (
	Universal Class = iota
	Sony
	Warner
	Independent
	Unknown
)

// KeywordClasses are the categories counted by the crawlers, in column order.
var KeywordClasses = [...]Class{Universal, Sony, Warner, Independent}

// Majors are the classes owned by a major conglomerate.
var Majors = [...]Class{Universal, Sony, Warner}

var classNames = map[Class]string{
	Universal:   "Universal Music Group",
	Sony:        "Sony Music Entertainment",
	Warner:      "Warner Records",
	Independent: "Independent",
	Unknown:     "Unknown",
}

var classShort = map[Class]string{
	Universal:   "univ",
	Sony:        "sony",
	Warner:      "warn",
	Independent: "indi",
	Unknown:     "unkn",
}

// String returns the canonical display name.
func (c Class) String() string {
	if name, ok := classNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Class(%d)", int(c))
}

// Short returns the abbreviation used in column names and metric labels.
func (c Class) Short() string {
	return classShort[c]
}

// Valid reports whether c is one of the five classes.
func (c Class) Valid() bool {
	_, ok := classNames[c]
	return ok
}

// ParseClass maps a canonical display name back to its class.
func ParseClass(s string) (Class, bool) {
	for c, name := range classNames {
		if name == s {
			return c, true
		}
	}
	return 0, false
}

// Stage identifies a pipeline stage. Stages run in declaration order.
type Stage int

const (
	StageTrivial Stage = iota
	StageDiscogs
	StageWikipedia
	StageInterim
	StageCopyright
	StageFinal

	StageCount = int(StageFinal) + 1
)

var stageNames = [StageCount]string{"trivial", "discogs", "wikipedia", "interim", "copyright", "final"}

var stageColumns = [StageCount]string{
	"class_trivial",
	"class_discogs",
	"class_wikipedia",
	"class_interim",
	"class_copyright",
	"record_label_major",
}

var titleCaser = cases.Title(language.English)

// Stages lists every stage in execution order.
func Stages() []Stage {
	out := make([]Stage, StageCount)
	for i := range out {
		out[i] = Stage(i)
	}
	return out
}

func (s Stage) String() string {
	if s < 0 || int(s) >= StageCount {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

// Title is the capitalised stage name used as a flag prefix.
func (s Stage) Title() string {
	return titleCaser.String(s.String())
}

// Column is the table column holding this stage's classification.
func (s Stage) Column() string {
	return stageColumns[s]
}

// Previous returns the stage feeding this one, false for the first stage.
func (s Stage) Previous() (Stage, bool) {
	if s == StageTrivial {
		return 0, false
	}
	return s - 1, true
}

// ParseStage resolves a stage by its lowercase name.
func ParseStage(name string) (Stage, error) {
	for i, n := range stageNames {
		if n == name {
			return Stage(i), nil
		}
	}
	return 0, fmt.Errorf("unknown stage %q", name)
}
