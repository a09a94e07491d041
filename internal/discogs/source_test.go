package discogs

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alvmarrod/label-weaver/internal/crawler"
	"github.com/alvmarrod/label-weaver/internal/label"
	"github.com/alvmarrod/label-weaver/internal/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/database/search", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "label", r.URL.Query().Get("type"))
		assert.Equal(t, "5", r.URL.Query().Get("per_page"))
		assert.Equal(t, "Discogs token=secret", r.Header.Get("Authorization"))
		switch r.URL.Query().Get("q") {
		case "Island Records":
			w.Write([]byte(`{"results":[{"id":1234,"title":"Island Records"},{"id":9,"title":"Island Def Jam"}]}`))
		default:
			w.Write([]byte(`{"results":[]}`))
		}
	})
	mux.HandleFunc("/labels/1234", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"id":1234,"name":"Island Records","profile":"Owned by Universal Music Group.",
			"parent_label":{"id":77,"name":"Universal Music UK"},
			"urls":["http://www.islandrecords.com","https://en.wikipedia.org/wiki/Island_Records"]}`))
	})
	mux.HandleFunc("/labels/77", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"id":77,"name":"Universal Music UK","profile":"","parent_label":{"id":38404,"name":"Universal Music Group"}}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestSource(srv *httptest.Server) *Source {
	return NewFromConfig(Config{
		BaseURL:   srv.URL,
		Token:     "secret",
		UserAgent: "label-weaver-test",
		Timeout:   2 * time.Second,
	}, nil)
}

func TestSearch(t *testing.T) {
	src := newTestSource(newTestServer(t))
	got, err := src.Search(context.Background(), "Island Records")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, crawler.Candidate{ID: "1234", Title: "Island Records"}, got[0])
}

func TestFetch(t *testing.T) {
	src := newTestSource(newTestServer(t))
	e, err := src.Fetch(context.Background(), "1234")
	require.NoError(t, err)
	assert.Equal(t, "Island Records", e.Name)
	assert.Equal(t, []string{"77"}, e.Parents)
	assert.Equal(t, "https://en.wikipedia.org/wiki/Island_Records", e.CrossRef)
	assert.Contains(t, e.Text, "Universal")
}

func TestFetchMissing(t *testing.T) {
	src := newTestSource(newTestServer(t))
	_, err := src.Fetch(context.Background(), "5555")
	assert.ErrorIs(t, err, crawler.ErrNotFound)
}

func TestCanonicalAndMajor(t *testing.T) {
	src := New("http://unused", nil)
	assert.Equal(t, "42", src.Canonical(" 42 "))
	assert.Equal(t, "", src.Canonical("https://en.wikipedia.org/wiki/EMI"))
	c, ok := src.Major("353657")
	require.True(t, ok)
	assert.Equal(t, label.Sony, c)
	_, ok = src.Major("1")
	assert.False(t, ok)
}

func TestCrawlEndToEnd(t *testing.T) {
	src := newTestSource(newTestServer(t))
	c := crawler.New(src, memory.NewArchive(), 6, nil)

	node, err := c.Classify(context.Background(), "Island Records", "")
	require.NoError(t, err)
	assert.Equal(t, label.Final(label.Universal), node.Class)
	assert.Equal(t, "https://en.wikipedia.org/wiki/Island_Records", node.CrossRef)
	assert.Equal(t, 1.0, c.AggregateKeywords(node).Get(label.Universal))
}
