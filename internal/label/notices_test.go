package label

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadAndMergeNotices(t *testing.T) {
	in := "record_label_low,copyright_p,copyright_c\n" +
		"Parlophone,℗ 2018 Parlophone Records Limited,© 2018 Warner Music UK\n" +
		"Ghost,,\n"
	notices, err := ReadNotices(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, notices, 2)

	table := NewTable()
	require.NoError(t, table.Add(&Entry{Name: "Parlophone"}))
	require.NoError(t, table.Add(&Entry{Name: "Other"}))

	assert.Equal(t, 1, table.MergeNotices(notices))
	e, _ := table.Lookup("Parlophone")
	assert.Equal(t, "© 2018 Warner Music UK", e.CopyrightC)
}

func TestReadNoticesRequiresName(t *testing.T) {
	_, err := ReadNotices(strings.NewReader("copyright_p\nfoo\n"))
	assert.ErrorIs(t, err, ErrMalformedTable)
}
