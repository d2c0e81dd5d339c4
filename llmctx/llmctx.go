// Package llmctx binds a library to a concrete completion model (spec.md
// §4.6): a fixed Params shape and four operations — Complete, Summarize,
// Classify, GenerateQA — that all delegate to a dispatch.Dispatcher with the
// bound model. Summarize/Classify/GenerateQA are the direct analogues of the
// teacher's extractors.SummaryExtractor / extractors.QuestionsAnsweredExtractor
// (prompt template + LLM.Complete + response parsing), generalized from a
// single bound llm.LLM to a dispatcher, and program.BaseProgram's
// options-over-an-LLM shape for Complete itself.
package llmctx

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/stratarag/stratarag/dispatch"
	"github.com/stratarag/stratarag/provider"
	"github.com/stratarag/stratarag/ragerr"
)

// Params is the fixed set of recognised completion options (spec.md §4.6).
// TopK and RepeatPenalty are accepted but not forwarded to provider.Params:
// neither the OpenAI-compatible nor the Bedrock Converse API surfaces used by
// provider.Provider exposes them, so they are recorded here for callers that
// want to log/tune against a future provider but otherwise ignored — see
// DESIGN.md.
type Params struct {
	MaxTokens     int
	Temperature   float32
	TopP          float32
	TopK          int
	RepeatPenalty float32
	// ModelOverride, if set, is used instead of the Context's bound model for
	// this call only.
	ModelOverride string
}

func (p Params) validate() error {
	if p.Temperature < 0 || p.Temperature > 2 {
		return fmt.Errorf("temperature %v out of range [0,2]", p.Temperature)
	}
	return nil
}

func (p Params) toProvider() provider.Params {
	return provider.Params{Temperature: p.Temperature, MaxTokens: p.MaxTokens, TopP: p.TopP}
}

// DefaultSummaryTemplate mirrors the teacher's
// extractors.DefaultSummaryExtractTemplate.
const DefaultSummaryTemplate = `Here is the content of the section:
%s

Summarize the key topics and entities of the section.

Summary: `

// DefaultQuestionTemplate mirrors the teacher's
// extractors.DefaultQuestionGenTemplate.
const DefaultQuestionTemplate = `Here is the context:
%s

Given the contextual information, generate %d questions this context can provide specific answers to which are unlikely to be found elsewhere.

Higher-level summaries of surrounding context may be provided as well. Try using these summaries to generate better questions that this context can answer.
`

// DefaultClassifyTemplate asks the model to pick exactly one of the given
// labels. classify() validates the response is one of them rather than
// trusting free-form output.
const DefaultClassifyTemplate = `Classify the following text into exactly one of these categories: %s.
Respond with only the category name, nothing else.

Text:
%s

Category: `

// Context binds one library to one completion model served through a
// dispatcher.
type Context struct {
	dispatcher *dispatch.Dispatcher
	model      string
	logger     *slog.Logger
}

// New binds a dispatcher and model name.
func New(d *dispatch.Dispatcher, model string, logger *slog.Logger) *Context {
	if logger == nil {
		logger = slog.Default()
	}
	return &Context{dispatcher: d, model: model, logger: logger}
}

// Complete generates a single completion from a system and user message.
func (c *Context) Complete(ctx context.Context, system, user string, params Params) (string, error) {
	if strings.TrimSpace(user) == "" {
		return "", ragerr.New(ragerr.InvalidInput, "Complete", fmt.Errorf("user message must not be empty"))
	}
	if err := params.validate(); err != nil {
		return "", ragerr.New(ragerr.InvalidInput, "Complete", err)
	}
	model := c.model
	if params.ModelOverride != "" {
		model = params.ModelOverride
	}
	return c.dispatcher.Complete(ctx, system, user, model, params.toProvider())
}

// Summarize generates a summary of text targeting at most maxTokens. It
// satisfies embedctx.Summarizer so a Context can be passed directly as the
// oversized-text fallback for an embedctx.Context.
func (c *Context) Summarize(ctx context.Context, text string, maxTokens int) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ragerr.New(ragerr.InvalidInput, "Summarize", fmt.Errorf("text must not be empty"))
	}
	prompt := fmt.Sprintf(DefaultSummaryTemplate, text)
	out, err := c.Complete(ctx, "", prompt, Params{MaxTokens: maxTokens, Temperature: 0.2, TopP: 1})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Classify asks the model to pick exactly one of labels for text, satisfying
// router.Classifier. The raw response is matched case-insensitively against
// labels; a response that matches none of them is returned as an error
// rather than silently accepted, leaving router to fall back to its regex
// heuristics.
func (c *Context) Classify(ctx context.Context, text string, labels []string) (string, error) {
	if len(labels) == 0 {
		return "", ragerr.New(ragerr.InvalidInput, "Classify", fmt.Errorf("labels must not be empty"))
	}
	prompt := fmt.Sprintf(DefaultClassifyTemplate, strings.Join(labels, ", "), text)
	out, err := c.Complete(ctx, "", prompt, Params{MaxTokens: 16, Temperature: 0, TopP: 1})
	if err != nil {
		return "", err
	}
	answer := strings.ToLower(strings.TrimSpace(out))
	for _, label := range labels {
		if strings.ToLower(label) == answer {
			return label, nil
		}
	}
	return "", ragerr.New(ragerr.InvalidInput, "Classify", fmt.Errorf("model response %q did not match any of %v", out, labels))
}

// GenerateQA generates n questions the text can specifically answer,
// mirrored from the teacher's QuestionsAnsweredExtractor +
// extractors.ParseQuestions line-splitting logic.
func (c *Context) GenerateQA(ctx context.Context, text string, n int) ([]string, error) {
	if n < 1 {
		return nil, ragerr.New(ragerr.InvalidInput, "GenerateQA", fmt.Errorf("n must be at least 1, got %d", n))
	}
	prompt := fmt.Sprintf(DefaultQuestionTemplate, text, n)
	out, err := c.Complete(ctx, "", prompt, Params{MaxTokens: 256 * n, Temperature: 0.7, TopP: 1})
	if err != nil {
		return nil, err
	}
	questions := parseQuestions(out)
	if len(questions) > n {
		questions = questions[:n]
	}
	return questions, nil
}

// parseQuestions splits a newline-separated questions response into a slice,
// stripping common "1.", "- " list prefixes, mirrored from the teacher's
// extractors.ParseQuestions.
func parseQuestions(raw string) []string {
	lines := strings.Split(raw, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		q := strings.TrimSpace(line)
		q = strings.TrimLeft(q, "0123456789.-) ")
		q = strings.TrimSpace(q)
		if q != "" {
			out = append(out, q)
		}
	}
	return out
}
