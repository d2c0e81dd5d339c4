package splitter

import (
	"fmt"
	"regexp"

	"github.com/neurosnap/sentences"
)

// SentenceSplitterStrategy is the interface for sentence-boundary detection
// used by Phase B's third cut priority, mirrored from the teacher's
// textsplitter.SentenceSplitterStrategy so both a cheap regex strategy and a
// trained neurosnap/sentences strategy can be swapped in behind it.
type SentenceSplitterStrategy interface {
	Split(text string) []string
}

// DefaultSentenceRegex approximates sentence boundaries on ./!/? followed by
// whitespace, grounded on the teacher's DefaultChunkingRegex.
const DefaultSentenceRegex = `[^.!?]+[.!?]+(?:\s+|$)|[^.!?]+$`

var defaultSentenceRe = regexp.MustCompile(DefaultSentenceRegex)

// regexSentenceStrategy is the zero-configuration default: fast, slightly
// less accurate than a trained tokenizer, and exactly what the teacher falls
// back to when no NeurosnapSplitterStrategy training data is supplied.
type regexSentenceStrategy struct{}

func (regexSentenceStrategy) Split(text string) []string {
	return defaultSentenceRe.FindAllString(text, -1)
}

// NeurosnapSentenceStrategy wraps github.com/neurosnap/sentences' trained
// Punkt-style tokenizer. Unlike the teacher, which embeds a bundled
// english.json via go:embed, training data here is supplied explicitly by the
// caller (e.g. loaded from an operator-provided model file) since no training
// corpus ships in this module; this keeps the same pluggable-strategy shape
// the teacher uses (RegexSplitterStrategy vs NeurosnapSplitterStrategy behind
// one interface) without vendoring data this module cannot redistribute.
type NeurosnapSentenceStrategy struct {
	tokenizer *sentences.DefaultSentenceTokenizer
}

// NewNeurosnapSentenceStrategy loads training data (as produced by
// sentences.LoadTraining) and returns a strategy backed by it.
func NewNeurosnapSentenceStrategy(trainingData []byte) (*NeurosnapSentenceStrategy, error) {
	storage, err := sentences.LoadTraining(trainingData)
	if err != nil {
		return nil, fmt.Errorf("splitter: load sentence training data: %w", err)
	}
	return &NeurosnapSentenceStrategy{tokenizer: sentences.NewSentenceTokenizer(storage)}, nil
}

func (n *NeurosnapSentenceStrategy) Split(text string) []string {
	tokenized := n.tokenizer.Tokenize(text)
	out := make([]string, len(tokenized))
	for i, s := range tokenized {
		out[i] = s.Text
	}
	return out
}
