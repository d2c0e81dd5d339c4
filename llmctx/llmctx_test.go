package llmctx

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratarag/stratarag/dispatch"
	"github.com/stratarag/stratarag/provider"
)

type fakeProvider struct {
	name       string
	completeFn func(messages []provider.Message) (string, error)
}

func (f *fakeProvider) Name() string                                     { return f.name }
func (f *fakeProvider) IsOnline(ctx context.Context) bool                { return true }
func (f *fakeProvider) ListModels(ctx context.Context) ([]string, error) { return []string{"m"}, nil }
func (f *fakeProvider) Embed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	return nil, nil
}

func (f *fakeProvider) Complete(ctx context.Context, model string, messages []provider.Message, params provider.Params) (string, error) {
	return f.completeFn(messages)
}

func noopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 100}))
}

func newTestContext(completeFn func(messages []provider.Message) (string, error)) *Context {
	p := &fakeProvider{name: "p0", completeFn: completeFn}
	d := dispatch.New([]provider.Provider{p}, dispatch.StrategyPrimaryOnly, dispatch.DefaultRetryPolicy(), noopLogger())
	return New(d, "m", noopLogger())
}

func TestCompleteRejectsEmptyUserMessage(t *testing.T) {
	c := newTestContext(func(messages []provider.Message) (string, error) { return "", nil })
	_, err := c.Complete(context.Background(), "sys", "", Params{})
	assert.Error(t, err)
}

func TestCompleteRejectsOutOfRangeTemperature(t *testing.T) {
	c := newTestContext(func(messages []provider.Message) (string, error) { return "", nil })
	_, err := c.Complete(context.Background(), "sys", "hello", Params{Temperature: 3})
	assert.Error(t, err)
}

func TestCompleteUsesModelOverride(t *testing.T) {
	p := &fakeProvider{name: "p0", completeFn: func(messages []provider.Message) (string, error) { return "ok", nil }}
	d := dispatch.New([]provider.Provider{p}, dispatch.StrategyPrimaryOnly, dispatch.DefaultRetryPolicy(), noopLogger())
	c := New(d, "bound-model", noopLogger())

	out, err := c.Complete(context.Background(), "", "hi", Params{ModelOverride: "other-model"})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
}

func TestSummarizeTrimsResponse(t *testing.T) {
	c := newTestContext(func(messages []provider.Message) (string, error) { return "  a tidy summary  \n", nil })
	out, err := c.Summarize(context.Background(), "long text", 100)
	require.NoError(t, err)
	assert.Equal(t, "a tidy summary", out)
}

func TestSummarizeRejectsEmptyText(t *testing.T) {
	c := newTestContext(func(messages []provider.Message) (string, error) { return "", nil })
	_, err := c.Summarize(context.Background(), "", 100)
	assert.Error(t, err)
}

func TestClassifyMatchesLabelCaseInsensitively(t *testing.T) {
	c := newTestContext(func(messages []provider.Message) (string, error) { return "  Legal  ", nil })
	label, err := c.Classify(context.Background(), "whereas the parties", []string{"legal", "manual", "book"})
	require.NoError(t, err)
	assert.Equal(t, "legal", label)
}

func TestClassifyRejectsResponseOutsideLabelSet(t *testing.T) {
	c := newTestContext(func(messages []provider.Message) (string, error) { return "something unexpected", nil })
	_, err := c.Classify(context.Background(), "text", []string{"legal", "manual"})
	assert.Error(t, err)
}

func TestClassifyRejectsEmptyLabelSet(t *testing.T) {
	c := newTestContext(func(messages []provider.Message) (string, error) { return "", nil })
	_, err := c.Classify(context.Background(), "text", nil)
	assert.Error(t, err)
}

func TestGenerateQAParsesNumberedList(t *testing.T) {
	c := newTestContext(func(messages []provider.Message) (string, error) {
		return "1. What is the capital?\n2. Who wrote this?\n3. When was it published?\n", nil
	})
	questions, err := c.GenerateQA(context.Background(), "some excerpt", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"What is the capital?", "Who wrote this?"}, questions)
}

func TestGenerateQARejectsNonPositiveCount(t *testing.T) {
	c := newTestContext(func(messages []provider.Message) (string, error) { return "", nil })
	_, err := c.GenerateQA(context.Background(), "text", 0)
	assert.Error(t, err)
}
