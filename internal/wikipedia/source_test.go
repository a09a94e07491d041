package wikipedia

import (
	"context"
	"errors"
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

const islandArticle = `<html><body>
<h1 id="firstHeading">Island Records</h1>
<div id="mw-content-text">
<table class="infobox vcard">
<tr><th class="infobox-label">Parent company</th><td><a href="/wiki/Parent_company">Parent</a> <a href="/wiki/Universal_Music_Group">Universal Music Group</a></td></tr>
<tr><th class="infobox-label">Distributor(s)</th><td><a href="/wiki/Virgin_EMI_Records#History">Virgin EMI</a></td></tr>
<tr><th class="infobox-label">Genre</th><td><a href="/wiki/Reggae">Reggae</a></td></tr>
</table>
<p>Island Records is a British-Jamaican record label owned by Universal Music Group.</p>
<p>See also <a href="/wiki/File:Island.png">logo</a>.</p>
</div></body></html>`

const smallArticle = `<html><body>
<h1 id="firstHeading">Tiny Tapes</h1>
<div id="mw-content-text">
<table class="infobox"><tr><th class="infobox-label">Labels</th><td><a href="/wiki/Tiny_Tapes_Sub">Sub</a></td></tr></table>
<p>Tiny Tapes is an <a href="/wiki/Independent_record_label">independent record label</a>.</p>
</div></body></html>`

const subArticle = `<html><body><h1 id="firstHeading">Tiny Tapes Sub</h1>
<div id="mw-content-text"><p>A sub label.</p></div></body></html>`

const disambiguationArticle = `<html><body><h1 id="firstHeading">Mercury</h1>
<div id="mw-content-text"><table id="disambigbox"><tr><td>may refer to</td></tr></table></div></body></html>`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/w/api.php", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "search", r.URL.Query().Get("list"))
		switch r.URL.Query().Get("srsearch") {
		case "island records":
			w.Write([]byte(`{"query":{"search":[{"title":"List of Island Records artists"},{"title":"Island Records"}]}}`))
		case "tiny tapes records":
			w.Write([]byte(`{"query":{"search":[{"title":"Tiny Tapes"}]}}`))
		case "busy records":
			w.Write([]byte(`{"error":{"code":"toomanyrequests","info":"Search is too busy"}}`))
		default:
			w.Write([]byte(`{"query":{"search":[]}}`))
		}
	})
	pages := map[string]string{
		"/wiki/Island_Records": islandArticle,
		"/wiki/Tiny_Tapes":     smallArticle,
		"/wiki/Tiny_Tapes_Sub": subArticle,
		"/wiki/Mercury":        disambiguationArticle,
	}
	mux.HandleFunc("/wiki/", func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(body))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestSource(srv *httptest.Server) *Source {
	return NewFromConfig(Config{BaseURL: srv.URL, UserAgent: "label-weaver-test", Timeout: 2 * time.Second}, nil)
}

func TestParseArticleInfobox(t *testing.T) {
	e, err := ParseArticle([]byte(islandArticle))
	require.NoError(t, err)
	assert.Equal(t, "Island Records", e.Name)
	assert.Equal(t, []string{"/wiki/Universal_Music_Group"}, e.Parents, "stub links dropped")
	assert.Equal(t, []string{"/wiki/Virgin_EMI_Records"}, e.Distributors, "fragment stripped")
	assert.Empty(t, e.Labels)
	assert.False(t, e.IndependentLink)
	assert.Equal(t, 2.0, crawler.CountKeywords(e.Text).Get(label.Universal))
}

func TestParseArticleDisambiguation(t *testing.T) {
	_, err := ParseArticle([]byte(disambiguationArticle))
	assert.True(t, errors.Is(err, crawler.ErrDisambiguation))
}

func TestSearchSkipsListsViaCrawler(t *testing.T) {
	src := newTestSource(newTestServer(t))
	c := crawler.New(src, memory.NewArchive(), 6, nil)

	node, err := c.Classify(context.Background(), "Island Records", "")
	require.NoError(t, err)
	assert.Equal(t, "/wiki/Island_Records", node.Identifier)
	assert.Equal(t, label.Final(label.Universal), node.Class)
}

func TestCrossRefUsed(t *testing.T) {
	src := newTestSource(newTestServer(t))
	c := crawler.New(src, memory.NewArchive(), 6, nil)

	node, err := c.Classify(context.Background(), "no such search", "https://en.wikipedia.org/wiki/Island_Records")
	require.NoError(t, err)
	assert.Equal(t, label.Final(label.Universal), node.Class)
}

func TestIndependentSignal(t *testing.T) {
	src := newTestSource(newTestServer(t))
	c := crawler.New(src, memory.NewArchive(), 6, nil)

	node, err := c.Classify(context.Background(), "Tiny Tapes", "")
	require.NoError(t, err)
	assert.Equal(t, label.Flagged(label.FlagNoParent, label.StageWikipedia), node.Class)
	assert.True(t, c.AggregateIndependent(node))
	assert.Equal(t, "Wikipedia: Dead end", node.Class.String())
}

func TestSearchErrors(t *testing.T) {
	src := newTestSource(newTestServer(t))
	_, err := src.Search(context.Background(), "busy")
	assert.Error(t, err)

	_, err = src.Fetch(context.Background(), "/wiki/Nowhere")
	assert.ErrorIs(t, err, crawler.ErrNotFound)

	_, err = src.Fetch(context.Background(), "/wiki/Mercury")
	assert.ErrorIs(t, err, crawler.ErrDisambiguation)
}

func TestCanonical(t *testing.T) {
	cases := map[string]string{
		"/wiki/Sony_Music":                                 "/wiki/Sony_Music",
		"https://en.wikipedia.org/wiki/Atlantic%20Records": "/wiki/Atlantic_Records",
		"//en.wikipedia.org/wiki/EMI#History":              "/wiki/EMI",
		"https://de.wikipedia.org/wiki/EMI":                "",
		"/wiki/Category:Record_labels":                     "",
		"/wiki/Record_label":                               "",
		"/wiki/List_of_record_labels":                      "",
		"https://example.com/wiki/EMI":                     "",
		"/w/index.php?title=EMI":                           "",
	}
	for in, want := range cases {
		assert.Equal(t, want, Canonical(in), in)
	}
}

func TestCleanLabel(t *testing.T) {
	assert.Equal(t, "def jam records", CleanLabel("Def Jam Recordings"))
	assert.Equal(t, "island records", CleanLabel("Island Records, Inc."))
	assert.Equal(t, "a m records", CleanLabel("A&M"))
}
