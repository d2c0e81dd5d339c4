package router

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stratarag/stratarag/splitter"
)

type stubClassifier struct {
	label string
	err   error
}

func (s stubClassifier) Classify(ctx context.Context, text string, labels []string) (string, error) {
	return s.label, s.err
}

func TestClassifyHintTakesPriorityOverEverythingElse(t *testing.T) {
	r := New(stubClassifier{label: "book"}, nil)
	class := r.Classify(context.Background(), "Whereas the parties hereby agree...", Hint{URLHost: "en.wikipedia.org"})
	assert.Equal(t, splitter.ClassWiki, class)
}

func TestClassifyFallsBackToLLMWhenNoHint(t *testing.T) {
	r := New(stubClassifier{label: "manual"}, nil)
	class := r.Classify(context.Background(), "some ambiguous text", Hint{})
	assert.Equal(t, splitter.ClassManual, class)
}

func TestClassifyFallsBackToRegexWhenLLMFails(t *testing.T) {
	r := New(stubClassifier{err: errors.New("timeout")}, nil)
	class := r.Classify(context.Background(), "Whereas the parties hereby agree to this Agreement...", Hint{})
	assert.Equal(t, splitter.ClassLegal, class)
}

func TestClassifyFallsBackToRegexWhenLLMReturnsUnknownLabel(t *testing.T) {
	r := New(stubClassifier{label: "unknown-thing"}, nil)
	class := r.Classify(context.Background(), "Abstract: this paper introduces... References", Hint{})
	assert.Equal(t, splitter.ClassArticle, class)
}

func TestClassifyDefaultsToGenericWithNoClassifierAndNoMatch(t *testing.T) {
	r := New(nil, nil)
	class := r.Classify(context.Background(), "just some plain unremarkable text", Hint{})
	assert.Equal(t, splitter.ClassGeneric, class)
}

func TestClassifyRegexDetectsWikiMarkup(t *testing.T) {
	r := New(nil, nil)
	class := r.Classify(context.Background(), "See [[Go (programming language)]] for details. == History ==", Hint{})
	assert.Equal(t, splitter.ClassWiki, class)
}

func TestClassifyHeaderSampleTruncatesLongText(t *testing.T) {
	long := make([]byte, HeaderSampleLen*2)
	for i := range long {
		long[i] = 'x'
	}
	sample := headerSample(string(long))
	assert.Len(t, []rune(sample), HeaderSampleLen)
}
