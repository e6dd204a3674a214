package agent

import (
	"context"
	"fmt"
	"io"

	"github.com/backlogsmith/backlogsmith/internal/config"
	"github.com/backlogsmith/backlogsmith/internal/llm"
	"github.com/backlogsmith/backlogsmith/internal/prompts"
	"github.com/backlogsmith/backlogsmith/internal/quality"
	"github.com/backlogsmith/backlogsmith/internal/workitem"
)

// FeatureAgent breaks an epic into features, each gated by the feature
// quality rubric with improve-then-replace retries.
type FeatureAgent struct {
	*Agent
	assessor *quality.FeatureAssessor
}

// NewFeatureAgent builds the feature stage.
func NewFeatureAgent(cfg *config.Config, provider llm.Provider, registry *prompts.Registry, progress Progress, logger io.Writer) *FeatureAgent {
	return &FeatureAgent{
		Agent:    newAgent("feature", cfg, provider, registry, progress, logger),
		assessor: quality.NewFeatureAssessor(),
	}
}

func epicContext(e workitem.Epic) string {
	return fmt.Sprintf("Epic: %s\n%s", e.Title, e.Description)
}

// Generate produces up to max quality-approved features for an epic.
func (a *FeatureAgent) Generate(ctx context.Context, epic workitem.Epic, vision string, max int) ([]workitem.Feature, error) {
	system, err := a.systemPrompt("feature", nil)
	if err != nil {
		return nil, err
	}

	user := fmt.Sprintf("%s\n\nProduct vision:\n%s\n\nGenerate at most %d features for this epic.",
		epicContext(epic), vision, max)
	raw, err := a.complete(ctx, system, user)
	if err != nil {
		return nil, err
	}

	items, _ := decodeList[workitem.Feature](raw)
	candidates := a.normalize(items)

	assess := func(f workitem.Feature) quality.Assessment {
		return a.assessor.Assess(f, epic, a.domain, vision)
	}
	improve := func(ctx context.Context, f workitem.Feature, asm quality.Assessment) (workitem.Feature, bool) {
		return a.improve(ctx, system, f, asm, epic)
	}
	generate := func(ctx context.Context, n int) []workitem.Feature {
		return a.backfill(ctx, system, epic, candidates, n)
	}

	title := func(f workitem.Feature) string { return f.Title }
	return refineBatch(ctx, a.Agent, candidates, max, title, assess, improve, generate), nil
}

func (a *FeatureAgent) normalize(items []workitem.Feature) []workitem.Feature {
	out := make([]workitem.Feature, 0, len(items))
	for _, f := range items {
		norm, err := workitem.NormalizeFeature(f)
		if err != nil {
			a.logf("feature: dropped candidate: %v", err)
			continue
		}
		out = append(out, norm)
	}
	return out
}

func (a *FeatureAgent) improve(ctx context.Context, system string, f workitem.Feature, asm quality.Assessment, epic workitem.Epic) (workitem.Feature, bool) {
	user := improvementPrompt("feature", f, asm, epicContext(epic))
	raw, err := a.complete(ctx, system, user)
	if err != nil {
		a.logf("feature: improvement call failed: %v", err)
		return workitem.Feature{}, false
	}
	next, ok := decodeOne[workitem.Feature](raw)
	if !ok {
		return workitem.Feature{}, false
	}
	norm, err := workitem.NormalizeFeature(next)
	if err != nil {
		return workitem.Feature{}, false
	}
	return norm, true
}

func (a *FeatureAgent) backfill(ctx context.Context, system string, epic workitem.Epic, existing []workitem.Feature, n int) []workitem.Feature {
	titles := make([]string, 0, len(existing))
	for _, f := range existing {
		titles = append(titles, f.Title)
	}
	user := backfillPrompt("feature", n, titles, epicContext(epic))
	raw, err := a.complete(ctx, system, user)
	if err != nil {
		a.logf("feature: backfill call failed: %v", err)
		return nil
	}
	items, _ := decodeList[workitem.Feature](raw)
	return a.normalize(items)
}
