package bedrock

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratarag/stratarag/provider"
)

func TestConvertMessagesSeparatesSystemFromConversation(t *testing.T) {
	messages := []provider.Message{
		{Role: "system", Content: "be terse"},
		{Role: "user", Content: "hello"},
		{Role: "assistant", Content: "hi there"},
	}
	converse, system := convertMessages(messages)

	require.Len(t, system, 1)
	require.Len(t, converse, 2)
	assert.Equal(t, types.ConversationRoleUser, converse[0].Role)
	assert.Equal(t, types.ConversationRoleAssistant, converse[1].Role)
}

func TestExtractTextHandlesNilOutput(t *testing.T) {
	assert.Equal(t, "", extractText(nil))
}

func TestNewWithEmptyRegionBuildsNamedProvider(t *testing.T) {
	p := New("bedrock-primary", "", []string{"anthropic.claude-3-5-sonnet-20241022-v2:0"})
	assert.Equal(t, "bedrock-primary", p.Name())
}

func TestListModelsReturnsConfiguredSet(t *testing.T) {
	models := []string{"amazon.titan-embed-text-v2:0"}
	p := New("bedrock-embed", "us-east-1", models)
	got, err := p.ListModels(nil)
	require.NoError(t, err)
	assert.Equal(t, models, got)
}
