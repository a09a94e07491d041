// Package wikipedia adapts English Wikipedia label articles to crawler.Source.
package wikipedia

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/alvmarrod/label-weaver/internal/crawler"
	"github.com/alvmarrod/label-weaver/internal/fetch"
	"github.com/alvmarrod/label-weaver/internal/label"
)

// SourceName is the archive namespace for Wikipedia nodes.
const SourceName = "wikipedia"

// DefaultBaseURL is the English Wikipedia host.
const DefaultBaseURL = "https://en.wikipedia.org"

var majors = map[string]label.Class{
	"/wiki/Universal_Music_Group": label.Universal,
	"/wiki/Universal_Music":       label.Universal,
	"/wiki/UTV_Records":           label.Universal,
	"/wiki/UMG":                   label.Universal,

	"/wiki/Sony_Music":                    label.Sony,
	"/wiki/Sony_Music_Entertainment":      label.Sony,
	"/wiki/Sony_Music_Entertainment_Inc.": label.Sony,
	"/wiki/Sony_International":            label.Sony,

	"/wiki/Warner_Music_Group":    label.Warner,
	"/wiki/Warner_Bros.":          label.Warner,
	"/wiki/WarnerMedia":           label.Warner,
	"/wiki/Warner_Music":          label.Warner,
	"/wiki/WEA_International":     label.Warner,
	"/wiki/Warner_Brothers_Music": label.Warner,
}

// Infobox row labels grouped by reference kind.
var (
	parentRows      = map[string]bool{"parent company": true, "parent": true, "parents": true}
	distributorRows = map[string]bool{"distributor(s)": true, "distributors": true, "distributor": true}
	labelRows       = map[string]bool{"label": true, "labels": true, "label(s)": true}
)

// Config for the Wikipedia client.
type Config struct {
	BaseURL           string
	UserAgent         string
	RequestsPerSecond float64
	Timeout           time.Duration
}

// Getter is the HTTP capability the source needs.
type Getter interface {
	Get(ctx context.Context, rawURL string) (fetch.Response, error)
}

// Source searches and parses Wikipedia articles.
type Source struct {
	baseURL string
	client  Getter
}

// New builds a source over an existing getter.
func New(baseURL string, client Getter) *Source {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Source{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

// NewFromConfig wires a paced fetcher for Wikipedia.
func NewFromConfig(cfg Config, observe fetch.ObserveFunc) *Source {
	f := fetch.New(fetch.Config{
		UserAgent:         cfg.UserAgent,
		Timeout:           cfg.Timeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
	}, observe)
	return New(cfg.BaseURL, f)
}

func (s *Source) Name() string       { return SourceName }
func (s *Source) Stage() label.Stage { return label.StageWikipedia }

// URL returns the absolute article URL for an identifier.
func (s *Source) URL(id string) string {
	return s.baseURL + (&url.URL{Path: id}).EscapedPath()
}

type searchResponse struct {
	Error *struct {
		Code string `json:"code"`
		Info string `json:"info"`
	} `json:"error"`
	Query struct {
		Search []struct {
			Title string `json:"title"`
		} `json:"search"`
	} `json:"query"`
}

// Search runs a full-text article search on the cleaned label name.
func (s *Source) Search(ctx context.Context, query string) ([]crawler.Candidate, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("list", "search")
	params.Set("srsearch", CleanLabel(query))
	params.Set("srlimit", "5")
	params.Set("format", "json")

	resp, err := s.client.Get(ctx, s.baseURL+"/w/api.php?"+params.Encode())
	if err != nil {
		return nil, err
	}
	var parsed searchResponse
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("search error %s: %s", parsed.Error.Code, parsed.Error.Info)
	}

	out := make([]crawler.Candidate, 0, len(parsed.Query.Search))
	for _, hit := range parsed.Query.Search {
		out = append(out, crawler.Candidate{ID: TitleID(hit.Title), Title: hit.Title})
	}
	return out, nil
}

// Fetch downloads and parses an article.
func (s *Source) Fetch(ctx context.Context, id string) (crawler.Entity, error) {
	resp, err := s.client.Get(ctx, s.URL(id))
	if err != nil {
		if fetch.IsNotFound(err) {
			return crawler.Entity{}, fmt.Errorf("%w: %v", crawler.ErrNotFound, err)
		}
		return crawler.Entity{}, err
	}
	return ParseArticle(resp.Body)
}

// ParseArticle extracts the infobox references and body text of an article.
func ParseArticle(body []byte) (crawler.Entity, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return crawler.Entity{}, fmt.Errorf("parse article: %w", err)
	}

	name := strings.TrimSpace(doc.Find("#firstHeading").First().Text())
	if isDisambiguation(doc, name) {
		return crawler.Entity{}, fmt.Errorf("%w: %s", crawler.ErrDisambiguation, name)
	}

	content := doc.Find("#mw-content-text")
	if content.Length() == 0 {
		content = doc.Find("body")
	}

	entity := crawler.Entity{
		Name: name,
		Text: content.Text(),
	}

	content.Find("table.infobox").First().Find("tr").Each(func(_ int, row *goquery.Selection) {
		header := strings.ToLower(strings.TrimSpace(row.Find("th.infobox-label").First().Text()))
		var target *[]string
		switch {
		case parentRows[header]:
			target = &entity.Parents
		case distributorRows[header]:
			target = &entity.Distributors
		case labelRows[header]:
			target = &entity.Labels
		default:
			return
		}
		row.Find("td a[href]").Each(func(_ int, a *goquery.Selection) {
			href, _ := a.Attr("href")
			if id := Canonical(href); id != "" {
				*target = append(*target, id)
			}
		})
	})

	content.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		if Canonical(href) == IndependentArticle {
			entity.IndependentLink = true
			return false
		}
		return true
	})
	return entity, nil
}

func isDisambiguation(doc *goquery.Document, name string) bool {
	if strings.Contains(strings.ToLower(name), "(disambiguation)") {
		return true
	}
	return doc.Find("#disambigbox, .dmbox-disambig, .mw-disambig").Length() > 0
}

// Canonical normalises article references.
func (s *Source) Canonical(ref string) string {
	return Canonical(ref)
}

// Major reports the conglomerate articles.
func (s *Source) Major(id string) (label.Class, bool) {
	c, ok := majors[id]
	return c, ok
}
