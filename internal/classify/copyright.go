package classify

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/alvmarrod/label-weaver/internal/label"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const maxTokenRunes = 15

// Aliases map copyright-notice tokens to classes. Checked in this order.
var copyrightAliases = []struct {
	class  label.Class
	tokens []string
}{
	{label.Universal, []string{"universal", "umg", "capitol", "emi", "decca", "concord", "geffen", "republic", "interscope", "motown", "verve"}},
	{label.Warner, []string{"warner", "atlantic", "rhino", "wea", "parlophone", "spinninrecords", "elektra"}},
	{label.Sony, []string{"sony", "bmg", "ultra", "rca", "columbia", "epic"}},
	{label.Independent, []string{"independent", "indi"}},
}

func deaccent(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Tokenize lowercases and accent-folds a notice and keeps alphabetic runs
// of 3 to 15 letters that are not stop words.
func Tokenize(text string) []string {
	text = strings.ToLower(deaccent(text))
	words := strings.FieldsFunc(text, func(r rune) bool { return !unicode.IsLetter(r) })

	var tokens []string
	for _, w := range words {
		n := utf8.RuneCountInString(w)
		if n <= 2 || n > maxTokenRunes || stopwords[w] {
			continue
		}
		tokens = append(tokens, w)
	}
	return tokens
}

// Combine merges producer and copyright token lists: the longer list is the
// base, the copyright list on a tie, and unseen tokens of the other are appended.
func Combine(p, c []string) []string {
	base, other := c, p
	if len(p) > len(c) {
		base, other = p, c
	}
	out := append([]string(nil), base...)
	seen := make(map[string]bool, len(base))
	for _, tok := range base {
		seen[tok] = true
	}
	for _, tok := range other {
		if !seen[tok] {
			seen[tok] = true
			out = append(out, tok)
		}
	}
	return out
}

// ClassifyTokens walks tokens by descending frequency, first occurrence
// breaking ties, and returns the class of the first alias found.
func ClassifyTokens(tokens []string) (label.Class, bool) {
	counts := make(map[string]int)
	var order []string
	for _, tok := range tokens {
		if counts[tok] == 0 {
			order = append(order, tok)
		}
		counts[tok]++
	}
	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})

	for _, tok := range order {
		for _, alias := range copyrightAliases {
			for _, a := range alias.tokens {
				if tok == a {
					return alias.class, true
				}
			}
		}
	}
	return 0, false
}

// ClassifyNotices classifies a producer and a copyright notice together.
func ClassifyNotices(p, c string) (label.Class, bool) {
	return ClassifyTokens(Combine(Tokenize(p), Tokenize(c)))
}

// Copyright applies the notice classifier to a carried-forward cell.
type Copyright struct {
	// OverrideConflicts lets a notice replace an earlier terminal class.
	OverrideConflicts bool
}

// CopyrightDecision is the outcome for one entry.
type CopyrightDecision struct {
	Class label.Classification
	// Conflict is set when the notice disagreed with a terminal class.
	Conflict bool
	Derived  label.Class
}

// Decide computes the copyright column from the previous cell and the notices.
func (c Copyright) Decide(prev label.Classification, p, notice string) CopyrightDecision {
	derived, found := ClassifyNotices(p, notice)

	if prev.IsTerminal() {
		prevClass, _ := prev.Class()
		d := CopyrightDecision{Class: prev, Derived: derived}
		if found && derived != prevClass {
			d.Conflict = true
			if c.OverrideConflicts {
				d.Class = label.Final(derived)
			}
		}
		return d
	}

	if found {
		return CopyrightDecision{Class: label.Final(derived), Derived: derived}
	}
	return CopyrightDecision{Class: label.Final(label.Unknown), Derived: label.Unknown}
}
