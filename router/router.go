// Package router classifies a document's header sample into a content class
// (spec.md §4.3); it returns no splitter configuration, and the splitter
// derives its chapter target and title detectors from the class. It never fails: any
// failure anywhere in the priority chain degrades to ClassGeneric.
package router

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/stratarag/stratarag/splitter"
)

// HeaderSampleLen is the number of leading characters of a document examined
// for classification.
const HeaderSampleLen = 500

// Hint carries the caller-supplied classification hint (priority rule 1):
// the source URL's host, or the file extension, whichever the ingest caller
// has available.
type Hint struct {
	URLHost       string
	FileExtension string
}

// hostHints and extHints are small curated lookup tables; anything absent
// falls through to the LLM classifier or the regex heuristics.
var hostHints = map[string]splitter.ContentClass{
	"wikipedia.org":    splitter.ClassWiki,
	"en.wikipedia.org": splitter.ClassWiki,
}

var extHints = map[string]splitter.ContentClass{
	".contract.md": splitter.ClassContract,
}

// Classifier is the narrow capability router needs from an LLM-backed
// classification service (llmctx.Context.Classify implements this). Router
// owns the interface, following the teacher's provider-port pattern
// (consumers define the minimal shape they need).
type Classifier interface {
	Classify(ctx context.Context, text string, labels []string) (string, error)
}

// AllowedLabels is the full output label set passed to the LLM classifier.
var AllowedLabels = []string{"legal", "wiki", "article", "manual", "book", "contract", "generic"}

// Router implements spec.md §4.3.
type Router struct {
	Classifier Classifier
	Logger     *slog.Logger
}

// New builds a Router. classifier may be nil, in which case priority rule 2
// is skipped and the router falls straight to the regex heuristics.
func New(classifier Classifier, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{Classifier: classifier, Logger: logger}
}

// Classify applies the §4.3 priority order to a full document, using only
// its first HeaderSampleLen characters, and returns the content class only;
// no splitter configuration is returned (splitter.TargetChapterTokens and
// SplitChapters map the class to one).
func (r *Router) Classify(ctx context.Context, fullText string, hint Hint) splitter.ContentClass {
	sample := headerSample(fullText)

	if class, ok := classifyByHint(hint); ok {
		return class
	}

	if r.Classifier != nil {
		label, err := r.Classifier.Classify(ctx, sample, AllowedLabels)
		if err != nil {
			r.Logger.Warn("router: LLM classification failed, falling back to heuristics", "error", err)
		} else if class, ok := validLabel(label); ok {
			return class
		}
	}

	return classifyByRegex(sample)
}

func headerSample(text string) string {
	runes := []rune(text)
	if len(runes) > HeaderSampleLen {
		return string(runes[:HeaderSampleLen])
	}
	return text
}

func classifyByHint(hint Hint) (splitter.ContentClass, bool) {
	if hint.URLHost != "" {
		if c, ok := hostHints[strings.ToLower(hint.URLHost)]; ok {
			return c, true
		}
	}
	if hint.FileExtension != "" {
		if c, ok := extHints[strings.ToLower(hint.FileExtension)]; ok {
			return c, true
		}
	}
	return "", false
}

func validLabel(label string) (splitter.ContentClass, bool) {
	label = strings.ToLower(strings.TrimSpace(label))
	for _, allowed := range AllowedLabels {
		if label == allowed {
			return splitter.ContentClass(label), true
		}
	}
	return "", false
}

var (
	legalRe    = regexp.MustCompile(`(?i)\b(whereas|hereby|T[ií]tulo|Cap[ií]tulo|Art\.)\b`)
	contractRe = regexp.MustCompile(`(?i)\b(agreement|party of the|contrat(o|ante)|licensor|licensee)\b`)
	manualRe   = regexp.MustCompile(`(?i)\b(user manual|installation guide|troubleshooting|step \d+)\b`)
	articleRe  = regexp.MustCompile(`(?i)\b(abstract|introduction|references|doi:)\b`)
	bookRe     = regexp.MustCompile(`(?i)\b(chapter \d+|table of contents|preface|epilogue)\b`)
	wikiRe     = regexp.MustCompile(`(?i)\[\[.+?\]\]|\{\{.+?\}\}|==\s*\w+\s*==`)
)

// classifyByRegex is priority rule (3): keyword and markup regexes defined
// in this package with stdlib regexp; the splitter's own title patterns are
// not reused here.
func classifyByRegex(sample string) splitter.ContentClass {
	switch {
	case legalRe.MatchString(sample):
		return splitter.ClassLegal
	case contractRe.MatchString(sample):
		return splitter.ClassContract
	case wikiRe.MatchString(sample):
		return splitter.ClassWiki
	case manualRe.MatchString(sample):
		return splitter.ClassManual
	case articleRe.MatchString(sample):
		return splitter.ClassArticle
	case bookRe.MatchString(sample):
		return splitter.ClassBook
	default:
		return splitter.ClassGeneric
	}
}
