// Package discogs adapts the Discogs label database to crawler.Source.
package discogs

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alvmarrod/label-weaver/internal/crawler"
	"github.com/alvmarrod/label-weaver/internal/fetch"
	"github.com/alvmarrod/label-weaver/internal/label"
)

// SourceName is the archive namespace for Discogs nodes.
const SourceName = "discogs"

// Major label ids.
var majors = map[string]label.Class{
	"38404":  label.Universal,
	"353657": label.Sony,
	"2345":   label.Warner,
}

// Config for the Discogs API.
type Config struct {
	BaseURL           string
	Token             string
	UserAgent         string
	RequestsPerMinute float64
	Timeout           time.Duration
}

// Getter is the HTTP capability the source needs.
type Getter interface {
	Get(ctx context.Context, rawURL string) (fetch.Response, error)
}

// Source queries the Discogs REST API.
type Source struct {
	baseURL string
	client  Getter
}

// New builds a source over an existing getter.
func New(baseURL string, client Getter) *Source {
	return &Source{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

// NewFromConfig wires a paced fetcher with the Discogs auth header.
func NewFromConfig(cfg Config, observe fetch.ObserveFunc) *Source {
	headers := map[string]string{"Accept": "application/json"}
	if cfg.Token != "" {
		headers["Authorization"] = "Discogs token=" + cfg.Token
	}
	f := fetch.New(fetch.Config{
		UserAgent:         cfg.UserAgent,
		Timeout:           cfg.Timeout,
		RequestsPerSecond: cfg.RequestsPerMinute / 60,
		Headers:           headers,
	}, observe)
	return New(cfg.BaseURL, f)
}

func (s *Source) Name() string       { return SourceName }
func (s *Source) Stage() label.Stage { return label.StageDiscogs }

type searchResponse struct {
	Results []struct {
		ID    int64  `json:"id"`
		Title string `json:"title"`
	} `json:"results"`
}

type labelResponse struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Profile     string   `json:"profile"`
	URLs        []string `json:"urls"`
	ParentLabel *struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	} `json:"parent_label"`
}

func (s *Source) getJSON(ctx context.Context, rawURL string, out any) error {
	resp, err := s.client.Get(ctx, rawURL)
	if err != nil {
		if fetch.IsNotFound(err) {
			return fmt.Errorf("%w: %v", crawler.ErrNotFound, err)
		}
		return err
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("decode %s: %w", rawURL, err)
	}
	return nil
}

// Search looks up labels by name.
func (s *Source) Search(ctx context.Context, query string) ([]crawler.Candidate, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("type", "label")
	params.Set("per_page", "5")

	var resp searchResponse
	if err := s.getJSON(ctx, s.baseURL+"/database/search?"+params.Encode(), &resp); err != nil {
		return nil, err
	}
	out := make([]crawler.Candidate, 0, len(resp.Results))
	for _, r := range resp.Results {
		out = append(out, crawler.Candidate{ID: strconv.FormatInt(r.ID, 10), Title: r.Title})
	}
	return out, nil
}

// Fetch loads a label profile.
func (s *Source) Fetch(ctx context.Context, id string) (crawler.Entity, error) {
	var resp labelResponse
	if err := s.getJSON(ctx, s.baseURL+"/labels/"+url.PathEscape(id), &resp); err != nil {
		return crawler.Entity{}, err
	}

	entity := crawler.Entity{Name: resp.Name, Text: resp.Profile}
	if resp.ParentLabel != nil && resp.ParentLabel.ID != 0 {
		entity.Parents = []string{strconv.FormatInt(resp.ParentLabel.ID, 10)}
	}
	for _, u := range resp.URLs {
		if strings.Contains(strings.ToLower(u), "wikipedia") {
			entity.CrossRef = strings.TrimSpace(u)
			break
		}
	}
	return entity, nil
}

// Canonical accepts numeric label ids only.
func (s *Source) Canonical(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	if _, err := strconv.ParseUint(ref, 10, 64); err != nil {
		return ""
	}
	return ref
}

// Major reports the three conglomerate label ids.
func (s *Source) Major(id string) (label.Class, bool) {
	c, ok := majors[id]
	return c, ok
}
