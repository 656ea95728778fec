package agent

import (
	"context"
	"errors"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIConfig configures the chat-completions narrator.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// OpenAINarrator talks to an OpenAI-compatible chat completions endpoint.
type OpenAINarrator struct {
	client openai.Client
	model  string
}

// NewOpenAI builds a narrator. An empty model falls back to gpt-4o-mini.
func NewOpenAI(cfg OpenAIConfig) *OpenAINarrator {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAINarrator{client: openai.NewClient(opts...), model: model}
}

func (n *OpenAINarrator) Suggest(ctx context.Context, req SuggestRequest) (string, error) {
	out, err := n.complete(ctx, suggestSystemPrompt, suggestPrompt(req), 0.2)
	if err != nil {
		return "", err
	}
	out = stripFence(out)
	if out == "{}" {
		return "", nil
	}
	return out, nil
}

func (n *OpenAINarrator) Choose(ctx context.Context, req ChoicesRequest) (string, error) {
	out, err := n.complete(ctx, choicesSystemPrompt, choicesPrompt(req), 0.6)
	if err != nil {
		return "", err
	}
	out = stripFence(out)
	if out == "[]" {
		return "", nil
	}
	return out, nil
}

func (n *OpenAINarrator) Narrate(ctx context.Context, req NarrateRequest) (string, error) {
	out, err := n.complete(ctx, narrateSystemPrompt, narratePrompt(req), 0.7)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (n *OpenAINarrator) complete(ctx context.Context, system, user string, temperature float64) (string, error) {
	resp, err := n.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(n.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Temperature: openai.Float(temperature),
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: empty response")
	}
	return resp.Choices[0].Message.Content, nil
}

func stripFence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
