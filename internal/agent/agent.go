// Package agent implements the pipeline stages: each agent wraps one LLM
// role (decompose a vision into epics, an epic into features, and so on)
// behind a guarded call path - circuit breaker, per-agent deadline, typed
// error taxonomy - and a quality-gated improve-or-replace loop for the
// stages that have an assessor.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/backlogsmith/backlogsmith/internal/breaker"
	"github.com/backlogsmith/backlogsmith/internal/config"
	"github.com/backlogsmith/backlogsmith/internal/extract"
	"github.com/backlogsmith/backlogsmith/internal/llm"
	"github.com/backlogsmith/backlogsmith/internal/prompts"
	"github.com/backlogsmith/backlogsmith/internal/workitem"
)

// Progress receives the user-facing events of a stage: approved items with
// their quality score, improvement rounds, and dropped candidates.
// *display.Display satisfies it; a nil Progress silences the stage.
type Progress interface {
	ShowItem(kind, title string, score int)
	ShowRetry(kind string, attempt, max, score int)
	ShowSkip(kind, reason string)
}

// Agent is the shared machinery of every pipeline stage: prompt rendering,
// the guarded completion call, and success/error counters. Each instance
// owns its circuit breaker; nothing is shared across agents.
type Agent struct {
	name     string
	provider llm.Provider
	registry *prompts.Registry
	breaker  *breaker.Breaker
	timeout  time.Duration
	sampling llm.Sampling

	domain     string
	project    string
	maxRetries int
	policy     workitem.Policy

	progress Progress  // user-facing stage events
	logger   io.Writer // diagnostic detail (verbose mode)

	mu           sync.Mutex
	successCount int
	errorCount   int
}

func newAgent(name string, cfg *config.Config, provider llm.Provider, registry *prompts.Registry, progress Progress, logger io.Writer) *Agent {
	sampling := llm.DefaultSampling()
	if preset := cfg.AgentPreset(name); preset != "" {
		if s, ok := llm.Preset(preset); ok {
			sampling = s
		}
	}

	maxRetries := cfg.Quality.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	policy := workitem.Policy{
		MinAcceptanceCriteria: cfg.Quality.MinCriteria,
		MaxAcceptanceCriteria: cfg.Quality.MaxCriteria,
	}
	if policy.MinAcceptanceCriteria <= 0 {
		policy = workitem.DefaultPolicy()
	}

	return &Agent{
		name:       name,
		provider:   provider,
		registry:   registry,
		breaker:    breaker.New(breaker.DefaultConfig()),
		timeout:    cfg.AgentTimeout(name),
		sampling:   sampling,
		domain:     cfg.Domain,
		project:    cfg.ProjectName,
		maxRetries: maxRetries,
		policy:     policy,
		progress:   progress,
		logger:     logger,
	}
}

func (a *Agent) showItem(title string, score int) {
	if a.progress != nil {
		a.progress.ShowItem(a.name, title, score)
	}
}

func (a *Agent) showRetry(attempt, max, score int) {
	if a.progress != nil {
		a.progress.ShowRetry(a.name, attempt, max, score)
	}
}

func (a *Agent) showSkip(reason string) {
	if a.progress != nil {
		a.progress.ShowSkip(a.name, reason)
	}
}

// Name returns the agent identifier.
func (a *Agent) Name() string { return a.name }

// Stats returns the success/error call counters.
func (a *Agent) Stats() (successes, failures int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.successCount, a.errorCount
}

func (a *Agent) recordSuccess() {
	a.mu.Lock()
	a.successCount++
	a.mu.Unlock()
}

func (a *Agent) recordError() {
	a.mu.Lock()
	a.errorCount++
	a.mu.Unlock()
}

// systemPrompt renders the stage's system prompt template.
func (a *Agent) systemPrompt(template string, extra map[string]string) (string, error) {
	vars := map[string]string{
		"domain":  a.domain,
		"project": a.project,
	}
	for k, v := range extra {
		vars[k] = v
	}
	out, err := a.registry.Render(template, vars)
	if err != nil {
		return "", &PromptError{Agent: a.name, Template: template, Err: err}
	}
	return out, nil
}

// complete runs one guarded LLM call: breaker admission, per-agent deadline,
// and error classification into the agent taxonomy.
func (a *Agent) complete(ctx context.Context, system, user string) (string, error) {
	if err := a.breaker.Allow(); err != nil {
		a.recordError()
		return "", &CircuitBreakerError{Agent: a.name}
	}

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	out, err := a.provider.Complete(callCtx, system, user, a.sampling)
	if err != nil {
		a.breaker.RecordFailure()
		a.recordError()
		if errors.Is(err, context.DeadlineExceeded) {
			return "", &TimeoutError{Agent: a.name, Budget: a.timeout, Err: err}
		}
		var te *llm.Error
		if errors.As(err, &te) && te.Kind == llm.ErrTimeout {
			return "", &TimeoutError{Agent: a.name, Budget: a.timeout, Err: err}
		}
		return "", &CommunicationError{Agent: a.name, Err: err}
	}

	a.breaker.RecordSuccess()
	a.recordSuccess()
	return out, nil
}

// decodeList extracts JSON from a raw response and unmarshals it as a list
// of T. A single bare object decodes as a one-element list. Malformed input
// yields ok=false, never an error: extraction failures degrade, they do not
// abort the pipeline.
func decodeList[T any](raw string) ([]T, bool) {
	text, ok := extract.Extract(raw)
	if !ok {
		return nil, false
	}
	var items []T
	if err := json.Unmarshal([]byte(text), &items); err == nil {
		return items, true
	}
	var one T
	if err := json.Unmarshal([]byte(text), &one); err == nil {
		return []T{one}, true
	}
	return nil, false
}

// decodeOne extracts JSON from a raw response and unmarshals a single T.
// A one-element list also decodes.
func decodeOne[T any](raw string) (T, bool) {
	var zero T
	text, ok := extract.Extract(raw)
	if !ok {
		return zero, false
	}
	var one T
	if err := json.Unmarshal([]byte(text), &one); err == nil {
		return one, true
	}
	var items []T
	if err := json.Unmarshal([]byte(text), &items); err == nil && len(items) > 0 {
		return items[0], true
	}
	return zero, false
}
