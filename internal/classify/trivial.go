// Package classify implements the deterministic classification rules:
// alias matching, interim reconciliation, copyright notices and final
// arbitration.
package classify

import (
	"regexp"
	"strings"

	"github.com/alvmarrod/label-weaver/internal/label"
)

type aliasRule struct {
	class   label.Class
	pattern *regexp.Regexp
}

// Evaluated in order; the first match wins.
var aliasRules = []aliasRule{
	{label.Universal, regexp.MustCompile(`(?i)\b(?:Universal|Capitol)\b`)},
	{label.Sony, regexp.MustCompile(`(?i)\b(?:Sony|RCA|Columbia|Epic/|/Epic)\b`)},
	{label.Warner, regexp.MustCompile(`(?i)\b(?:Warner|WM|Atlantic Records|Rhino)\b`)},
	{label.Independent, regexp.MustCompile(`(?i)^(?:Independent)$`)},
	{label.Unknown, regexp.MustCompile(`(?i)^(?:Unknown|N/A|None|N/A \(Independent\)|Unknown Label|Unsigned|Various Artists|Various Artist|Vintage Music|Error: Lookup failed \(404\))$`)},
}

// Trivial matches a label name against the alias table. A missing name is
// Unknown; no match leaves the cell pending.
func Trivial(name string) label.Classification {
	name = strings.TrimSpace(name)
	if name == "" {
		return label.Final(label.Unknown)
	}
	for _, rule := range aliasRules {
		if rule.pattern.MatchString(name) {
			return label.Final(rule.class)
		}
	}
	return label.Pending()
}
