package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ollamaProvider talks to a local Ollama server via its chat endpoint.
type ollamaProvider struct {
	httpClient *http.Client
	baseURL    string
	model      string
}

func newOllama(model, baseURL string) (*ollamaProvider, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &ollamaProvider{
		// The per-agent deadline arrives through ctx; this is a hard upper bound.
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		model:      model,
	}, nil
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string         `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message       ollamaMessage `json:"message"`
	Done          bool          `json:"done"`
	EvalCount     int           `json:"eval_count"`
	TotalDuration int64         `json:"total_duration"`
}

func (p *ollamaProvider) Name() string { return string(ProviderOllama) }

// Complete sends one chat request, with transport-level retry.
func (p *ollamaProvider) Complete(ctx context.Context, system, user string, sampling Sampling) (string, error) {
	return completeWithRetry(ctx, func() (string, error) {
		return p.complete(ctx, system, user, sampling)
	})
}

func (p *ollamaProvider) complete(ctx context.Context, system, user string, sampling Sampling) (string, error) {
	payload := ollamaChatRequest{
		Model: p.model,
		Messages: []ollamaMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Stream: false,
		Options: map[string]any{
			"temperature":    sampling.Temperature,
			"num_predict":    sampling.MaxTokens,
			"top_k":          40,
			"top_p":          0.9,
			"repeat_penalty": 1.1,
			"seed":           0,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", &Error{Kind: ErrMalformed, Msg: "marshal chat request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", &Error{Kind: ErrConnection, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", classify(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &Error{Kind: ErrConnection, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return "", &Error{
			Kind:   classifyStatus(resp.StatusCode),
			Status: resp.StatusCode,
			Msg:    fmt.Sprintf("ollama returned %d: %s", resp.StatusCode, truncateBody(respBody)),
		}
	}

	var chat ollamaChatResponse
	if err := json.Unmarshal(respBody, &chat); err != nil {
		return "", &Error{Kind: ErrMalformed, Msg: "decode chat response", Err: err}
	}
	if chat.Message.Content == "" {
		return "", &Error{Kind: ErrMalformed, Msg: "empty message in chat response"}
	}
	return chat.Message.Content, nil
}

func truncateBody(b []byte) string {
	const max = 200
	s := string(b)
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
