package embedctx

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratarag/stratarag/dispatch"
	"github.com/stratarag/stratarag/provider"
	"github.com/stratarag/stratarag/tokencount"
)

type fakeProvider struct {
	name   string
	vector []float32
}

func (f *fakeProvider) Name() string                                       { return f.name }
func (f *fakeProvider) IsOnline(ctx context.Context) bool                  { return true }
func (f *fakeProvider) ListModels(ctx context.Context) ([]string, error)   { return []string{"m"}, nil }
func (f *fakeProvider) Complete(ctx context.Context, model string, messages []provider.Message, params provider.Params) (string, error) {
	return "", nil
}

func (f *fakeProvider) Embed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		vec := f.vector
		if vec == nil {
			vec = []float32{3, 4} // magnitude 5
		}
		out[i] = vec
	}
	return out, nil
}

type fixedTokenizer struct{ count int }

func (f fixedTokenizer) CountTokens(ctx context.Context, text, model string) (int, error) {
	return f.count, nil
}

type stubSummarizer struct {
	summary string
	err     error
}

func (s stubSummarizer) Summarize(ctx context.Context, text string, maxTokens int) (string, error) {
	return s.summary, s.err
}

func noopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 100}))
}

func newTestDispatcher(p provider.Provider) *dispatch.Dispatcher {
	return dispatch.New([]provider.Provider{p}, dispatch.StrategyPrimaryOnly, dispatch.DefaultRetryPolicy(), noopLogger())
}

func TestEmbedOneNormalizesVectorToUnitLength(t *testing.T) {
	d := newTestDispatcher(&fakeProvider{name: "p0", vector: []float32{3, 4}})
	ctr := tokencount.New(fixedTokenizer{count: 10}, nil)
	c := New(d, "m", 2, 1000, ctr)

	vec, err := c.EmbedOne(context.Background(), "hello", dispatch.OpDocument)
	require.NoError(t, err)
	require.Len(t, vec, 2)
	assert.InDelta(t, float32(0.6), vec[0], 0.0001)
	assert.InDelta(t, float32(0.8), vec[1], 0.0001)
}

func TestEmbedOneRejectsEmptyText(t *testing.T) {
	d := newTestDispatcher(&fakeProvider{name: "p0"})
	c := New(d, "m", 2, 1000, nil)
	_, err := c.EmbedOne(context.Background(), "", dispatch.OpDocument)
	assert.Error(t, err)
}

func TestEmbedBatchRejectsOversizedBatch(t *testing.T) {
	d := newTestDispatcher(&fakeProvider{name: "p0"})
	c := New(d, "m", 2, 1000, nil)
	texts := make([]string, MaxBatchSize+1)
	for i := range texts {
		texts[i] = "x"
	}
	_, err := c.EmbedBatch(context.Background(), texts, dispatch.OpDocument, nil)
	assert.Error(t, err)
}

func TestEmbedBatchInvokesProgressOncePerText(t *testing.T) {
	d := newTestDispatcher(&fakeProvider{name: "p0", vector: []float32{1, 0}})
	c := New(d, "m", 2, 1000, nil)

	var seen []int
	_, err := c.EmbedBatch(context.Background(), []string{"a", "b", "c"}, dispatch.OpDocument, func(current, total int) {
		seen = append(seen, current)
		assert.Equal(t, 3, total)
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, seen)
}

func TestPrepareTextLeavesShortTextUnchanged(t *testing.T) {
	d := newTestDispatcher(&fakeProvider{name: "p0"})
	ctr := tokencount.New(fixedTokenizer{count: 100}, nil)
	c := New(d, "m", 2, 1000, ctr)

	out, prep, err := c.PrepareText(context.Background(), "short text")
	require.NoError(t, err)
	assert.Equal(t, "short text", out)
	assert.Equal(t, TextPreparation{}, prep)
}

// Token count 1040 against a 1000-token limit is a 3.8% overage, within the
// 5% truncate-not-summarize band (spec.md §4.5).
func TestPrepareTextTruncatesWithinFivePercentOverage(t *testing.T) {
	d := newTestDispatcher(&fakeProvider{name: "p0"})
	ctr := tokencount.New(fixedTokenizer{count: 1040}, nil)
	c := New(d, "m", 2, 1000, ctr)

	longText := strings.Repeat("a", 10000)
	out, prep, err := c.PrepareText(context.Background(), longText)
	require.NoError(t, err)
	assert.True(t, prep.TextTruncated)
	assert.False(t, prep.SummaryGenerated)
	assert.Len(t, out, 1000*4)
}

// Token count 2000 against a 1000-token limit is a 50% overage, past the 5%
// band, so a configured summarizer is used instead of truncation.
func TestPrepareTextSummarizesBeyondFivePercentOverage(t *testing.T) {
	d := newTestDispatcher(&fakeProvider{name: "p0"})
	ctr := tokencount.New(fixedTokenizer{count: 2000}, nil)
	c := New(d, "m", 2, 1000, ctr, WithSummarizer(stubSummarizer{summary: "a short summary"}))

	out, prep, err := c.PrepareText(context.Background(), strings.Repeat("a", 10000))
	require.NoError(t, err)
	assert.Equal(t, "a short summary", out)
	assert.True(t, prep.SummaryGenerated)
	assert.Equal(t, 2000, prep.OriginalTokens)
}

func TestPrepareTextFallsBackToTruncateWithoutSummarizer(t *testing.T) {
	d := newTestDispatcher(&fakeProvider{name: "p0"})
	ctr := tokencount.New(fixedTokenizer{count: 2000}, nil)
	c := New(d, "m", 2, 1000, ctr)

	out, prep, err := c.PrepareText(context.Background(), strings.Repeat("a", 10000))
	require.NoError(t, err)
	assert.True(t, prep.TextTruncated)
	assert.False(t, prep.SummaryGenerated)
	assert.Len(t, out, 1000*4)
}

func TestEmbedOnePadsShortProviderVectorToConfiguredDimension(t *testing.T) {
	d := newTestDispatcher(&fakeProvider{name: "p0", vector: []float32{1, 0}})
	ctr := tokencount.New(fixedTokenizer{count: 10}, nil)
	c := New(d, "m", 4, 1000, ctr)

	vec, err := c.EmbedOne(context.Background(), "hello", dispatch.OpDocument)
	require.NoError(t, err)
	assert.Len(t, vec, 4)
}

func TestEmbedOneRejectsDimensionMismatchBeyondFactor(t *testing.T) {
	d := newTestDispatcher(&fakeProvider{name: "p0", vector: []float32{1, 0}})
	ctr := tokencount.New(fixedTokenizer{count: 10}, nil)
	c := New(d, "m", 10, 1000, ctr)

	_, err := c.EmbedOne(context.Background(), "hello", dispatch.OpDocument)
	assert.Error(t, err)
}
