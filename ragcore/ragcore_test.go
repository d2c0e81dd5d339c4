package ragcore

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratarag/stratarag/dispatch"
	"github.com/stratarag/stratarag/model"
	"github.com/stratarag/stratarag/provider"
	"github.com/stratarag/stratarag/ragconfig"
	"github.com/stratarag/stratarag/tokencount"
)

func noopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 100}))
}

func TestBuildProvidersRejectsUnknownKind(t *testing.T) {
	_, err := buildProviders([]ragconfig.ProviderConfig{{Name: "p0", Kind: "carrier_pigeon"}}, noopLogger())
	require.Error(t, err)
}

func TestBuildProvidersRejectsEmptyList(t *testing.T) {
	_, err := buildProviders(nil, noopLogger())
	require.Error(t, err)
}

func TestBuildProvidersBuildsOpenAICompatAndBedrock(t *testing.T) {
	providers, err := buildProviders([]ragconfig.ProviderConfig{
		{Name: "cloud", Kind: "openai_compat", URL: "https://api.openai.com/v1", Key: "sk-test"},
		{Name: "local", Kind: "bedrock", URL: "us-east-1", Models: []string{"amazon.titan-embed-text-v2:0"}},
	}, noopLogger())
	require.NoError(t, err)
	require.Len(t, providers, 2)
	assert.Equal(t, "cloud", providers[0].Name())
	assert.Equal(t, "local", providers[1].Name())
}

type fakeProvider struct{}

func (fakeProvider) Name() string                                     { return "p" }
func (fakeProvider) IsOnline(ctx context.Context) bool                { return true }
func (fakeProvider) ListModels(ctx context.Context) ([]string, error) { return nil, nil }
func (fakeProvider) Embed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	return nil, nil
}
func (fakeProvider) Complete(ctx context.Context, model string, messages []provider.Message, params provider.Params) (string, error) {
	return "", nil
}

func TestEmbedContextFactoryUsesKnownModelContextLength(t *testing.T) {
	d := dispatch.New([]provider.Provider{fakeProvider{}}, dispatch.StrategyPrimaryOnly, dispatch.DefaultRetryPolicy(), noopLogger())
	counter := tokencount.New(nil, noopLogger())
	factory := embedContextFactory(d, counter)

	ctx, err := factory(model.Library{EmbeddingModel: "text-embedding-3-small", EmbeddingDimension: 1536})
	require.NoError(t, err)
	assert.NotNil(t, ctx)
}

func TestEmbedContextFactoryFallsBackForUnknownModel(t *testing.T) {
	d := dispatch.New([]provider.Provider{fakeProvider{}}, dispatch.StrategyPrimaryOnly, dispatch.DefaultRetryPolicy(), noopLogger())
	counter := tokencount.New(nil, noopLogger())
	factory := embedContextFactory(d, counter)

	ctx, err := factory(model.Library{EmbeddingModel: "some-unlisted-model", EmbeddingDimension: 768})
	require.NoError(t, err)
	assert.NotNil(t, ctx)
}

func TestLLMContextFactoryBindsCompletionModel(t *testing.T) {
	d := dispatch.New([]provider.Provider{fakeProvider{}}, dispatch.StrategyPrimaryOnly, dispatch.DefaultRetryPolicy(), noopLogger())
	factory := llmContextFactory(d, noopLogger())

	ctx, err := factory(model.Library{CompletionModel: "gpt-4o-mini"})
	require.NoError(t, err)
	assert.NotNil(t, ctx)
}
