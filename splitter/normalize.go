package splitter

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// accentStripper decomposes (NFD), drops combining marks and recomposes;
// FoldAccentsLower uses it to compare paragraphs case- and
// accent-insensitively before repetition removal (spec.md §4.2).
var accentStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// FoldAccentsLower strips combining marks and lower-cases s, so "café" and
// "cafe" compare equal.
func FoldAccentsLower(s string) string {
	folded, _, err := transform.String(accentStripper, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}

// collapseRepeatedParagraphs removes consecutive duplicate paragraphs
// (case- and accent-insensitive match), keeping the first occurrence, per
// spec.md §4.2 "Repetition removal".
func collapseRepeatedParagraphs(paragraphs []string) []string {
	if len(paragraphs) == 0 {
		return paragraphs
	}
	out := make([]string, 0, len(paragraphs))
	var prevFold string
	havePrev := false
	for _, p := range paragraphs {
		fold := FoldAccentsLower(strings.TrimSpace(p))
		if havePrev && fold == prevFold {
			continue
		}
		out = append(out, p)
		prevFold = fold
		havePrev = true
	}
	return out
}

// normalizeWhitespace collapses runs of blank lines/spaces the way P6's
// round-trip property requires ("whitespace normalised").
func normalizeWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	var out []string
	blank := false
	for _, l := range lines {
		t := strings.TrimRight(l, " \t")
		if strings.TrimSpace(t) == "" {
			if blank {
				continue
			}
			blank = true
			out = append(out, "")
			continue
		}
		blank = false
		out = append(out, t)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
