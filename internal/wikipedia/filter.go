package wikipedia

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/alvmarrod/label-weaver/internal/fetch"
)

// IndependentArticle is the article whose presence marks an independent label.
const IndependentArticle = "/wiki/Independent_record_label"

// Namespaced pages never describe a company
var excludedPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(file|image|help|special|category|template|template_talk|wikipedia|portal|talk|module|draft|user|mos):`),
	regexp.MustCompile(`(?i)^list_of_`),
}

// Infobox links that point at generic concepts instead of companies
var stubArticles = map[string]bool{
	"/wiki/Parent_company":       true,
	"/wiki/Record_label":         true,
	"/wiki/Digital_distribution": true,
}

var wikiHosts = map[string]bool{
	"en.wikipedia.org":   true,
	"en.m.wikipedia.org": true,
}

// IsExcluded checks if an article title matches any excluded pattern
func IsExcluded(title string) bool {
	for _, pattern := range excludedPatterns {
		if pattern.MatchString(title) {
			return true
		}
	}
	return false
}

// Canonical turns an article href or URL into "/wiki/Title" form, or ""
// when the reference is not a usable English article.
func Canonical(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}

	if strings.HasPrefix(ref, "//") || strings.Contains(ref, "://") {
		host, err := fetch.ExtractDomain(ref)
		if err != nil || !wikiHosts[host] {
			return ""
		}
		if strings.HasPrefix(ref, "//") {
			ref = "https:" + ref
		}
		parsed, err := url.Parse(ref)
		if err != nil {
			return ""
		}
		ref = parsed.EscapedPath()
	}

	if !strings.HasPrefix(ref, "/wiki/") {
		return ""
	}
	title := strings.TrimPrefix(ref, "/wiki/")
	if i := strings.IndexAny(title, "#?"); i >= 0 {
		title = title[:i]
	}
	if unescaped, err := url.PathUnescape(title); err == nil {
		title = unescaped
	}
	title = strings.ReplaceAll(strings.TrimSpace(title), " ", "_")
	if title == "" || IsExcluded(title) {
		return ""
	}

	id := "/wiki/" + title
	if stubArticles[id] {
		return ""
	}
	return id
}

// TitleID converts a search-result title into an article identifier.
func TitleID(title string) string {
	return Canonical("/wiki/" + strings.ReplaceAll(strings.TrimSpace(title), " ", "_"))
}

var fillWords = map[string]bool{
	"records":    true,
	"record":     true,
	"recording":  true,
	"recordings": true,
	"inc":        true,
	"llc":        true,
	"licence":    true,
	"exclusive":  true,
}

// CleanLabel builds the search query for a label name: lowercase, no
// punctuation, no corporate filler, suffixed with "records".
func CleanLabel(name string) string {
	mapped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, name)

	var kept []string
	for _, tok := range strings.Fields(mapped) {
		if !fillWords[tok] {
			kept = append(kept, tok)
		}
	}
	return strings.Join(append(kept, "records"), " ")
}
