package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alvmarrod/label-weaver/internal/classify"
	"github.com/alvmarrod/label-weaver/internal/crawler"
	"github.com/alvmarrod/label-weaver/internal/label"
	"github.com/alvmarrod/label-weaver/internal/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	name     string
	stage    label.Stage
	search   map[string][]crawler.Candidate
	entities map[string]crawler.Entity
	majors   map[string]label.Class
	failing  map[string]bool
	onFetch  func()
	searches []string
}

func newStubSource(name string, stage label.Stage) *stubSource {
	return &stubSource{
		name:     name,
		stage:    stage,
		search:   map[string][]crawler.Candidate{},
		entities: map[string]crawler.Entity{},
		majors:   map[string]label.Class{"umg": label.Universal, "sme": label.Sony, "wmg": label.Warner},
		failing:  map[string]bool{},
	}
}

func (s *stubSource) Name() string       { return s.name }
func (s *stubSource) Stage() label.Stage { return s.stage }

func (s *stubSource) Search(_ context.Context, q string) ([]crawler.Candidate, error) {
	s.searches = append(s.searches, q)
	if s.failing[q] {
		return nil, errors.New("connection reset")
	}
	return s.search[q], nil
}

func (s *stubSource) Fetch(ctx context.Context, id string) (crawler.Entity, error) {
	if s.onFetch != nil {
		s.onFetch()
	}
	if err := ctx.Err(); err != nil {
		return crawler.Entity{}, err
	}
	e, ok := s.entities[id]
	if !ok {
		return crawler.Entity{}, crawler.ErrNotFound
	}
	return e, nil
}

func (s *stubSource) Canonical(ref string) string { return strings.TrimSpace(ref) }

func (s *stubSource) Major(id string) (label.Class, bool) {
	c, ok := s.majors[id]
	return c, ok
}

type countingRecorder struct {
	rows, skips, conflicts, checkpoints int
}

func (r *countingRecorder) RecordRow(label.Stage, label.Classification) { r.rows++ }
func (r *countingRecorder) RecordSkip(label.Stage)                      { r.skips++ }
func (r *countingRecorder) RecordConflict(label.Stage)                  { r.conflicts++ }
func (r *countingRecorder) RecordCheckpoint()                           { r.checkpoints++ }

type fixture struct {
	discogs  *stubSource
	wiki     *stubSource
	archive  *memory.Archive
	recorder *countingRecorder
	flushes  int
	driver   *Driver
}

func newFixture(saveInterval int, notices map[string]label.Notice) *fixture {
	f := &fixture{
		discogs:  newStubSource("discogs", label.StageDiscogs),
		wiki:     newStubSource("wikipedia", label.StageWikipedia),
		archive:  memory.NewArchive(),
		recorder: &countingRecorder{},
	}
	processors := []Processor{
		TrivialStage{},
		CrawlStage{Crawler: crawler.New(f.discogs, f.archive, 6, nil)},
		CrawlStage{
			Crawler: crawler.New(f.wiki, f.archive, 6, nil),
			URL:     func(id string) string { return "https://en.wikipedia.org" + id },
		},
		InterimStage{Rule: classify.Interim{UnderThreshold: 2, OverThreshold: 0.25}},
		CopyrightStage{Notices: notices},
		FinalStage{Rule: classify.Final{KeywordThreshold: 0.2, Corrections: classify.DefaultCorrections}},
	}
	flush := func() error {
		f.flushes++
		return nil
	}
	f.driver = NewDriver(processors, saveInterval, flush, f.recorder)
	return f
}

func newTable(t *testing.T, names ...string) *label.Table {
	t.Helper()
	table := label.NewTable()
	for _, n := range names {
		require.NoError(t, table.Add(&label.Entry{Name: n, Occurrences: 1}))
	}
	return table
}

func lookup(t *testing.T, table *label.Table, name string) *label.Entry {
	t.Helper()
	e, ok := table.Lookup(name)
	require.True(t, ok, name)
	return e
}

func TestRunAllEndToEnd(t *testing.T) {
	f := newFixture(500, nil)
	f.discogs.search["Island Records"] = []crawler.Candidate{{ID: "island", Title: "Island Records"}}
	f.discogs.entities["island"] = crawler.Entity{
		Name:    "Island Records",
		Text:    "A Universal Music label.",
		Parents: []string{"umg"},
	}

	table := newTable(t, "Universal Music Group International", "Island Records", "Tiny Tapes")
	out := filepath.Join(t.TempDir(), AllFile)
	require.NoError(t, f.driver.RunAll(context.Background(), table, false, out))

	umg := lookup(t, table, "Universal Music Group International")
	for _, stage := range label.Stages() {
		assert.Equal(t, label.Final(label.Universal), umg.Get(stage), stage.String())
	}
	assert.NotContains(t, f.discogs.searches, "Universal Music Group International")
	assert.NotContains(t, f.wiki.searches, "Universal Music Group International")

	island := lookup(t, table, "Island Records")
	assert.Equal(t, label.Final(label.Universal), island.Get(label.StageDiscogs))
	assert.Equal(t, label.Final(label.Universal), island.Major())
	assert.Equal(t, 1.0, island.Discogs.Keywords.Get(label.Universal))
	assert.NotContains(t, f.wiki.searches, "Island Records")

	tiny := lookup(t, table, "Tiny Tapes")
	assert.Equal(t, label.Flagged(label.FlagNoID, label.StageDiscogs), tiny.Get(label.StageDiscogs))
	assert.Equal(t, label.Flagged(label.FlagNoID, label.StageWikipedia), tiny.Get(label.StageWikipedia))
	assert.True(t, tiny.Get(label.StageInterim).IsPending())
	assert.Equal(t, label.Final(label.Unknown), tiny.Get(label.StageCopyright))
	assert.Equal(t, label.Final(label.Independent), tiny.Major())

	reread, err := label.ReadTableFile(out)
	require.NoError(t, err)
	assert.Equal(t, table.Entries(), reread.Entries())
}

func TestStagesAreMonotonic(t *testing.T) {
	f := newFixture(500, nil)
	f.discogs.search["Arista Nashville"] = []crawler.Candidate{{ID: "cn", Title: "Arista Nashville"}}
	f.discogs.entities["cn"] = crawler.Entity{Name: "Arista Nashville", Distributors: []string{"sme"}}
	f.wiki.search["Small"] = []crawler.Candidate{{ID: "/wiki/Small", Title: "Small"}}
	f.wiki.entities["/wiki/Small"] = crawler.Entity{
		Name:            "Small",
		Text:            "An independent label.",
		IndependentLink: true,
	}

	table := newTable(t, "Arista Nashville", "Small", "Various Artists", "Sony Music")
	require.NoError(t, f.driver.RunAll(context.Background(), table, false, filepath.Join(t.TempDir(), AllFile)))

	for _, e := range table.Entries() {
		var terminal label.Classification
		for _, stage := range label.Stages() {
			cell := e.Get(stage)
			if terminal.IsTerminal() {
				assert.Equal(t, terminal, cell, "%s at %s", e.Name, stage)
			}
			if cell.IsTerminal() {
				terminal = cell
			}
		}
		assert.True(t, e.Major().IsFinal(), e.Name)
		assert.False(t, e.Major().Is(label.Unknown), e.Name)
	}
	assert.Equal(t, label.Final(label.Unknown), lookup(t, table, "Various Artists").Get(label.StageCopyright))
	assert.Equal(t, label.Final(label.Independent), lookup(t, table, "Various Artists").Major())
	assert.Equal(t, label.Final(label.Independent), lookup(t, table, "Small").Get(label.StageInterim))
}

func TestCarry(t *testing.T) {
	table := newTable(t, "a", "b", "c")
	lookup(t, table, "a").Set(label.StageTrivial, label.Final(label.Unknown))
	lookup(t, table, "b").Set(label.StageTrivial, label.Flagged(label.FlagConnection, label.StageDiscogs))
	c := lookup(t, table, "c")
	c.Set(label.StageTrivial, label.Final(label.Sony))
	c.Set(label.StageDiscogs, label.Final(label.Warner))

	Carry(table, label.StageDiscogs)

	assert.Equal(t, label.Final(label.Unknown), lookup(t, table, "a").Get(label.StageDiscogs))
	assert.True(t, lookup(t, table, "b").Get(label.StageDiscogs).IsPending())
	assert.Equal(t, label.Final(label.Warner), c.Get(label.StageDiscogs), "existing finals are kept")
}

func TestResumeRetriesOnlyConnectionFailures(t *testing.T) {
	f := newFixture(500, nil)
	table := newTable(t, "Flaky", "Missing", "Fresh")
	lookup(t, table, "Flaky").Set(label.StageDiscogs, label.Flagged(label.FlagConnection, label.StageDiscogs))
	lookup(t, table, "Missing").Set(label.StageDiscogs, label.Flagged(label.FlagNoID, label.StageDiscogs))

	out := StageFile(t.TempDir(), label.StageDiscogs)
	require.NoError(t, f.driver.RunStage(context.Background(), table, label.StageDiscogs, true, out))

	assert.ElementsMatch(t, []string{"Flaky", "Fresh"}, f.discogs.searches)
	assert.Equal(t, 1, f.recorder.skips)
}

func TestConnectionFailureIsRetriedNextRun(t *testing.T) {
	f := newFixture(500, nil)
	f.discogs.failing["Flaky"] = true
	table := newTable(t, "Flaky")
	out := StageFile(t.TempDir(), label.StageDiscogs)

	require.NoError(t, f.driver.RunStage(context.Background(), table, label.StageDiscogs, false, out))
	assert.Equal(t, label.Flagged(label.FlagConnection, label.StageDiscogs), lookup(t, table, "Flaky").Get(label.StageDiscogs))
	assert.Zero(t, f.archive.Dirty(), "transient failures are not persisted")
}

func TestCheckpointInterval(t *testing.T) {
	f := newFixture(2, nil)
	table := newTable(t, "a", "b", "c", "d", "e")
	out := StageFile(t.TempDir(), label.StageTrivial)

	require.NoError(t, f.driver.RunStage(context.Background(), table, label.StageTrivial, false, out))
	assert.Equal(t, 5, f.recorder.rows)
	assert.Equal(t, 3, f.recorder.checkpoints)
	assert.Equal(t, 3, f.flushes)
	assert.FileExists(t, out)
}

func TestInterruptSavesPartialProgress(t *testing.T) {
	f := newFixture(500, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.discogs.search["First"] = []crawler.Candidate{{ID: "first", Title: "First"}}
	f.discogs.entities["first"] = crawler.Entity{Name: "First", Parents: []string{"umg"}}
	f.discogs.search["Second"] = []crawler.Candidate{{ID: "second", Title: "Second"}}
	fetches := 0
	f.discogs.onFetch = func() {
		fetches++
		if fetches == 2 {
			cancel()
		}
	}

	table := newTable(t, "First", "Second", "Third")
	out := StageFile(t.TempDir(), label.StageDiscogs)
	err := f.driver.RunStage(ctx, table, label.StageDiscogs, false, out)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, f.flushes)

	saved, err := label.ReadTableFile(out)
	require.NoError(t, err)
	first, _ := saved.Lookup("First")
	assert.Equal(t, label.Final(label.Universal), first.Get(label.StageDiscogs))
	second, _ := saved.Lookup("Second")
	assert.True(t, second.Get(label.StageDiscogs).IsPending())
	assert.NotContains(t, f.discogs.searches, "Third")
}

func TestCopyrightMergesNoticesAndRecordsConflicts(t *testing.T) {
	notices := map[string]label.Notice{
		"Parlophone": {C: "© 2018 Warner Music UK"},
		"Columbia X": {P: "℗ 2020 Warner Music"},
		"Blank":      {},
	}
	f := newFixture(500, notices)
	table := newTable(t, "Parlophone", "Columbia X", "Blank")
	lookup(t, table, "Columbia X").Set(label.StageInterim, label.Final(label.Sony))

	out := StageFile(t.TempDir(), label.StageCopyright)
	require.NoError(t, f.driver.RunStage(context.Background(), table, label.StageCopyright, false, out))

	assert.Equal(t, label.Final(label.Warner), lookup(t, table, "Parlophone").Get(label.StageCopyright))
	cx := lookup(t, table, "Columbia X")
	assert.Equal(t, label.Final(label.Sony), cx.Get(label.StageCopyright))
	assert.Equal(t, label.Final(label.Warner), cx.CopyrightConflict)
	assert.Equal(t, 1, f.recorder.conflicts)
	assert.Equal(t, label.Final(label.Unknown), lookup(t, table, "Blank").Get(label.StageCopyright))
}

func TestRunStageUnknownProcessor(t *testing.T) {
	d := NewDriver([]Processor{TrivialStage{}}, 10, nil, nil)
	err := d.RunAll(context.Background(), label.NewTable(), false, filepath.Join(t.TempDir(), AllFile))
	assert.Error(t, err)
}

func TestInputFile(t *testing.T) {
	assert.Equal(t, "raw.csv", InputFile("data", "raw.csv", label.StageTrivial))
	assert.Equal(t, filepath.Join("data", "label_map_interim.csv"), InputFile("data", "raw.csv", label.StageCopyright))
}

func TestLock(t *testing.T) {
	dir := t.TempDir()
	l, err := AcquireLock(dir)
	require.NoError(t, err)

	_, err = AcquireLock(dir)
	assert.ErrorIs(t, err, ErrLocked)

	require.NoError(t, l.Release())
	l2, err := AcquireLock(dir)
	require.NoError(t, err)
	require.NoError(t, l2.Release())

	_, err = os.Stat(l.Path())
	assert.NoError(t, err)
}
