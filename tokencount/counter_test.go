package tokencount

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeProviderTokenizer struct {
	count int
	err   error
}

func (f fakeProviderTokenizer) CountTokens(ctx context.Context, text, model string) (int, error) {
	return f.count, f.err
}

func TestCountNeverFailsAndUsesHeuristicOnError(t *testing.T) {
	c := New(fakeProviderTokenizer{err: errors.New("boom")}, nil)
	n := c.Count(context.Background(), "hello world", "gpt-4")
	assert.Equal(t, Heuristic("hello world"), n)
}

func TestCountPrefersProviderWhenAvailable(t *testing.T) {
	c := New(fakeProviderTokenizer{count: 7}, nil)
	n := c.Count(context.Background(), "anything", "gpt-4")
	assert.Equal(t, 7, n)
}

func TestCountEmptyStringIsZero(t *testing.T) {
	c := New(nil, nil)
	assert.Equal(t, 0, c.Count(context.Background(), "", "gpt-4"))
}

func TestCountFallsBackToTiktokenWithoutProvider(t *testing.T) {
	c := New(nil, nil)
	n := c.Count(context.Background(), "The quick brown fox jumps over the lazy dog.", "gpt-4")
	assert.Greater(t, n, 0)
	assert.Less(t, n, 20)
}

func TestHeuristicMatchesSpecFormula(t *testing.T) {
	assert.Equal(t, 1, Heuristic("abcd"))
	assert.Equal(t, 3, Heuristic("0123456789"))
}
