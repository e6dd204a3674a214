package llm

import (
	"context"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// openAIProvider talks to any chat-completions endpoint (OpenAI itself, or
// Grok through a custom base URL).
type openAIProvider struct {
	name   string
	client *openai.Client
	model  string
}

func newOpenAI(model, apiKey, baseURL string) *openAIProvider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &openAIProvider{
		name:   string(ProviderOpenAI),
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func newGrok(model, apiKey, baseURL string) *openAIProvider {
	p := newOpenAI(model, apiKey, baseURL)
	p.name = string(ProviderGrok)
	return p
}

func (p *openAIProvider) Name() string { return p.name }

// Complete sends one chat completion request, with transport-level retry.
func (p *openAIProvider) Complete(ctx context.Context, system, user string, sampling Sampling) (string, error) {
	return completeWithRetry(ctx, func() (string, error) {
		return p.complete(ctx, system, user, sampling)
	})
}

func (p *openAIProvider) complete(ctx context.Context, system, user string, sampling Sampling) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	}

	// gpt-5 family rejects temperature and renamed the token limit field.
	if strings.Contains(p.model, "gpt-5") {
		req.MaxCompletionTokens = sampling.MaxTokens
	} else {
		req.Temperature = sampling.Temperature
		req.MaxTokens = sampling.MaxTokens
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", &Error{Kind: ErrMalformed, Msg: "no choices in completion response"}
	}
	return resp.Choices[0].Message.Content, nil
}
