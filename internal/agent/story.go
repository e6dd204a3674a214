package agent

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/backlogsmith/backlogsmith/internal/config"
	"github.com/backlogsmith/backlogsmith/internal/extract"
	"github.com/backlogsmith/backlogsmith/internal/llm"
	"github.com/backlogsmith/backlogsmith/internal/prompts"
	"github.com/backlogsmith/backlogsmith/internal/quality"
	"github.com/backlogsmith/backlogsmith/internal/workitem"
)

// StoryAgent turns a feature into user stories, gated by the story quality
// rubric. Responses with no JSON at all get a last-ditch scan for "As a ...
// I want ... so that ..." sentences in the prose.
type StoryAgent struct {
	*Agent
	assessor *quality.StoryAssessor
}

// NewStoryAgent builds the story stage.
func NewStoryAgent(cfg *config.Config, provider llm.Provider, registry *prompts.Registry, progress Progress, logger io.Writer) *StoryAgent {
	assessor := quality.NewStoryAssessor()
	a := newAgent("story", cfg, provider, registry, progress, logger)
	assessor.Criteria = a.policy
	return &StoryAgent{Agent: a, assessor: assessor}
}

func featureContext(f workitem.Feature) string {
	return fmt.Sprintf("Feature: %s\n%s", f.Title, f.Description)
}

// Generate produces up to max quality-approved user stories for a feature.
func (a *StoryAgent) Generate(ctx context.Context, feature workitem.Feature, vision string, max int) ([]workitem.UserStory, error) {
	system, err := a.systemPrompt("story", map[string]string{
		"min_criteria": strconv.Itoa(a.policy.MinAcceptanceCriteria),
		"max_criteria": strconv.Itoa(a.policy.MaxAcceptanceCriteria),
	})
	if err != nil {
		return nil, err
	}

	user := fmt.Sprintf("%s\n\nProduct vision:\n%s\n\nGenerate at most %d user stories for this feature.",
		featureContext(feature), vision, max)
	raw, err := a.complete(ctx, system, user)
	if err != nil {
		return nil, err
	}

	items, ok := decodeList[workitem.UserStory](raw)
	if !ok {
		a.logf("story: response is not JSON, scanning for story sentences")
		for _, sentence := range extract.FallbackStories(raw) {
			items = append(items, workitem.UserStory{Title: sentence, Story: sentence})
		}
	}
	candidates := a.normalize(items)

	assess := func(s workitem.UserStory) quality.Assessment {
		return a.assessor.Assess(s, feature, a.domain, vision)
	}
	improve := func(ctx context.Context, s workitem.UserStory, asm quality.Assessment) (workitem.UserStory, bool) {
		return a.improve(ctx, system, s, asm, feature)
	}
	generate := func(ctx context.Context, n int) []workitem.UserStory {
		return a.backfill(ctx, system, feature, candidates, n)
	}

	title := func(s workitem.UserStory) string { return s.Title }
	return refineBatch(ctx, a.Agent, candidates, max, title, assess, improve, generate), nil
}

func (a *StoryAgent) normalize(items []workitem.UserStory) []workitem.UserStory {
	out := make([]workitem.UserStory, 0, len(items))
	for _, s := range items {
		norm, err := workitem.NormalizeStory(s, a.policy)
		if err != nil {
			a.logf("story: dropped candidate: %v", err)
			continue
		}
		out = append(out, norm)
	}
	return out
}

func (a *StoryAgent) improve(ctx context.Context, system string, s workitem.UserStory, asm quality.Assessment, feature workitem.Feature) (workitem.UserStory, bool) {
	user := improvementPrompt("user story", s, asm, featureContext(feature))
	raw, err := a.complete(ctx, system, user)
	if err != nil {
		a.logf("story: improvement call failed: %v", err)
		return workitem.UserStory{}, false
	}
	next, ok := decodeOne[workitem.UserStory](raw)
	if !ok {
		return workitem.UserStory{}, false
	}
	norm, err := workitem.NormalizeStory(next, a.policy)
	if err != nil {
		return workitem.UserStory{}, false
	}
	return norm, true
}

func (a *StoryAgent) backfill(ctx context.Context, system string, feature workitem.Feature, existing []workitem.UserStory, n int) []workitem.UserStory {
	titles := make([]string, 0, len(existing))
	for _, s := range existing {
		titles = append(titles, s.Title)
	}
	user := backfillPrompt("user story", n, titles, featureContext(feature))
	raw, err := a.complete(ctx, system, user)
	if err != nil {
		a.logf("story: backfill call failed: %v", err)
		return nil
	}
	items, _ := decodeList[workitem.UserStory](raw)
	return a.normalize(items)
}
