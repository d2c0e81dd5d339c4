package search

import (
	"fmt"
	"strings"

	"github.com/stratarag/stratarag/ragerr"
)

// ParsedQuery is the result of parsing a websearch-style query string: plain
// terms are implicitly OR'd, quoted segments are phrases, and a leading "-"
// excludes a term. Grounded on PostgreSQL's websearch_to_tsquery grammar
// (spec.md §6 names it directly); no ecosystem library in the pack
// implements this specific grammar, so the tokenizer below is hand-written.
type ParsedQuery struct {
	Raw      string
	Terms    []string
	Phrases  []string
	Excluded []string
}

// Empty reports whether the parsed query carries no positive terms or
// phrases to search for.
func (q ParsedQuery) Empty() bool {
	return len(q.Terms) == 0 && len(q.Phrases) == 0
}

var booleanOperators = map[string]bool{"AND": true, "OR": true, "NOT": true}

// ParseQuery tokenizes raw per the websearch-style grammar. It rejects bare
// AND/OR/NOT tokens (case-insensitive) outside quotes, per spec.md §4.9's
// validation rule, with a hint to use quoting or a leading "-" instead.
func ParseQuery(raw string) (ParsedQuery, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ParsedQuery{}, ragerr.New(ragerr.InvalidInput, "ParseQuery", fmt.Errorf("query must not be empty"))
	}

	pq := ParsedQuery{Raw: raw}
	i, n := 0, len(trimmed)
	for i < n {
		for i < n && trimmed[i] == ' ' {
			i++
		}
		if i >= n {
			break
		}

		if trimmed[i] == '"' {
			rest := trimmed[i+1:]
			end := strings.IndexByte(rest, '"')
			var phrase string
			if end < 0 {
				phrase = strings.TrimSpace(rest)
				i = n
			} else {
				phrase = rest[:end]
				i += 1 + end + 1
			}
			if phrase != "" {
				pq.Phrases = append(pq.Phrases, strings.ToLower(phrase))
			}
			continue
		}

		j := i
		for j < n && trimmed[j] != ' ' {
			j++
		}
		token := trimmed[i:j]
		i = j
		if token == "" {
			continue
		}

		if booleanOperators[strings.ToUpper(token)] {
			return ParsedQuery{}, ragerr.New(ragerr.InvalidInput, "ParseQuery",
				fmt.Errorf("boolean operator %q is not supported; quote a phrase or prefix a term with - to exclude it", token))
		}

		if strings.HasPrefix(token, "-") && len(token) > 1 {
			pq.Excluded = append(pq.Excluded, strings.ToLower(token[1:]))
			continue
		}

		pq.Terms = append(pq.Terms, strings.ToLower(token))
	}

	if pq.Empty() {
		return ParsedQuery{}, ragerr.New(ragerr.InvalidInput, "ParseQuery", fmt.Errorf("query must contain at least one term or phrase"))
	}
	return pq, nil
}
