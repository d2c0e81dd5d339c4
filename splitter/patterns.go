package splitter

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/dlclark/regexp2"
)

var (
	markdownHeadingRe = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)
	numberedRe        = regexp.MustCompile(`^(\d+(?:\.\d+)*)\s+(.*)$`)
	// normativeRe uses regexp2 because spotting a real "Art. 5" section marker
	// without matching ordinary cross-references like "Art. 5 combined with
	// Art. 12" requires a negative lookahead the stdlib regexp engine (RE2)
	// cannot express.
	normativeRe = regexp2.MustCompile(
		`(?i)^(T[ií]tulo|Cap[ií]tulo|Se[cç][ãa]o|Art\.?)\s*\d+[ºo]?(?!\s*(,|e\s|combinado))`, 0)
)

// detectMarkdownHeading matches rule (1): "#".."######" ATX headings.
func detectMarkdownHeading(line string) (title string, level int, ok bool) {
	m := markdownHeadingRe.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return "", 0, false
	}
	return strings.TrimSpace(m[2]), len(m[1]), true
}

// detectNumbered matches rule (2): "^\d+(\.\d+)*\s+".
func detectNumbered(line string) (title string, level int, ok bool) {
	trimmed := strings.TrimSpace(line)
	m := numberedRe.FindStringSubmatch(trimmed)
	if m == nil {
		return "", 0, false
	}
	return trimmed, strings.Count(m[1], ".") + 1, true
}

// detectAllCaps matches rule (3): all-caps short lines (≤80 chars, ≥60% letters).
func detectAllCaps(line string) (title string, level int, ok bool) {
	trimmed := strings.TrimSpace(line)
	if !isAllCapsTitle(trimmed) {
		return "", 0, false
	}
	return trimmed, 1, true
}

// detectNormative matches rule (4): Título/Capítulo/Seção/Art. markers, only
// consulted when the router classified the document as "legal".
func detectNormative(line string) (title string, level int, ok bool) {
	trimmed := strings.TrimSpace(line)
	matched, _ := normativeRe.MatchString(trimmed)
	if !matched {
		return "", 0, false
	}
	return trimmed, 1, true
}

func isAllCapsTitle(line string) bool {
	if len(line) == 0 || len(line) > 80 {
		return false
	}
	runesInLine := []rune(line)
	var letters, upper int
	for _, r := range runesInLine {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	if letters == 0 {
		return false
	}
	if float64(letters)/float64(len(runesInLine)) < 0.6 {
		return false
	}
	return upper == letters
}

// titleDetector is a single Phase A priority rule.
type titleDetector func(line string) (title string, level int, ok bool)

// priorityDetectors returns the §4.2 Phase A detectors in priority order.
// The normative detector is included only for documents routed as "legal".
func priorityDetectors(legalClass bool) []titleDetector {
	detectors := []titleDetector{detectMarkdownHeading, detectNumbered, detectAllCaps}
	if legalClass {
		detectors = append(detectors, detectNormative)
	}
	return detectors
}
