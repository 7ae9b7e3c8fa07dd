package trace

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeLabel returns the canonical form of an externally supplied label:
// surrounding whitespace trimmed and NFC normalized, so that visually equal
// labels from different sources compare equal.
func NormalizeLabel(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// Normalized builds a trace from labels after NormalizeLabel.
func Normalized(labels ...string) Trace {
	out := make([]string, len(labels))
	for i, l := range labels {
		out[i] = NormalizeLabel(l)
	}
	return Trace{labels: out}
}
