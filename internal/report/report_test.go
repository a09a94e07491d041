package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/alvmarrod/label-weaver/internal/label"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTable(t *testing.T) *label.Table {
	t.Helper()
	table := label.NewTable()

	umg := &label.Entry{Name: "Capitol", Occurrences: 6}
	for _, s := range label.Stages() {
		umg.Set(s, label.Final(label.Universal))
	}
	tiny := &label.Entry{Name: "Tiny Tapes", Occurrences: 3}
	tiny.Set(label.StageDiscogs, label.Flagged(label.FlagNoID, label.StageDiscogs))
	tiny.Set(label.StageCopyright, label.Final(label.Unknown))
	tiny.Set(label.StageFinal, label.Final(label.Independent))
	odd := &label.Entry{Name: "Odd", Occurrences: 1}
	odd.Set(label.StageDiscogs, label.Final(label.Sony))
	for _, s := range label.Stages()[label.StageWikipedia:] {
		odd.Set(s, label.Final(label.Sony))
	}

	for _, e := range []*label.Entry{umg, tiny, odd} {
		require.NoError(t, table.Add(e))
	}
	return table
}

func TestStepwise(t *testing.T) {
	sum := Stepwise(sampleTable(t))
	require.Len(t, sum.Stages, int(label.StageCount))
	assert.Equal(t, 3, sum.Labels)
	assert.Equal(t, 10, sum.Occurrences)

	trivial := sum.Stages[label.StageTrivial]
	assert.Equal(t, Count{Labels: 1, Occurrences: 6}, trivial.Classes[label.Universal])
	assert.InDelta(t, 0.6, trivial.Gain[label.Universal], 1e-9)
	require.Len(t, trivial.Flags, 1)
	assert.Equal(t, Unclassified, trivial.Flags[0].Value)
	assert.Equal(t, 4, trivial.Flags[0].Occurrences)

	discogs := sum.Stages[label.StageDiscogs]
	assert.InDelta(t, 0.0, discogs.Gain[label.Universal], 1e-9)
	assert.InDelta(t, 0.1, discogs.Gain[label.Sony], 1e-9)
	require.Len(t, discogs.Flags, 1)
	assert.Equal(t, "Discogs: Label not found", discogs.Flags[0].Value)

	final := sum.Stages[label.StageFinal]
	assert.Equal(t, Count{Labels: 3, Occurrences: 10}, final.Resolved())
	assert.Empty(t, final.Flags)
	assert.InDelta(t, -0.3, final.Gain[label.Unknown], 1e-9)
}

func TestRender(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, Stepwise(sampleTable(t))))
	out := buf.String()

	assert.Contains(t, out, "Labels: 3, occurrences: 10")
	assert.Contains(t, out, "Trivial mapping")
	assert.Contains(t, out, "Final classification")
	assert.Contains(t, out, "Universal Music Group")
	assert.Contains(t, out, "Discogs: Label not found")
	assert.Contains(t, out, "+60.00%")
}

func TestEnrich(t *testing.T) {
	table := sampleTable(t)
	albums := "album_uri,record_label_low,record_label_major,occurrences\n" +
		"a1,Capitol,stale,2\n" +
		"a2,N/A,,1\n" +
		"a3,,,1\n" +
		"a4,Not In Map,,1\n" +
		"a5,Tiny Tapes\n"

	var out bytes.Buffer
	n, err := Enrich(table, strings.NewReader(albums), &out)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	want := "album_uri,record_label_low,occurrences,record_label_major\n" +
		"a1,Capitol,2,Universal Music Group\n" +
		"a2,Independent,1,Independent\n" +
		"a3,Independent,1,Independent\n" +
		"a4,Not In Map,1,\n" +
		"a5,Tiny Tapes,,Independent\n"
	assert.Equal(t, want, out.String())
}

func TestEnrichRequiresLabelColumn(t *testing.T) {
	_, err := Enrich(label.NewTable(), strings.NewReader("album_uri\nx\n"), &bytes.Buffer{})
	assert.ErrorIs(t, err, label.ErrMalformedTable)
}

func TestWriteMajorMapReadsBack(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMajorMap(sampleTable(t), &buf))
	assert.True(t, strings.HasPrefix(buf.String(), "record_label_low,occurrences,record_label_major\n"))

	majors, err := label.ReadTable(&buf)
	require.NoError(t, err)
	e, ok := majors.Lookup("Odd")
	require.True(t, ok)
	assert.Equal(t, label.Final(label.Sony), e.Major())
	assert.Equal(t, 1, e.Occurrences)
}
