package agent

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/backlogsmith/backlogsmith/internal/config"
	"github.com/backlogsmith/backlogsmith/internal/llm"
	"github.com/backlogsmith/backlogsmith/internal/prompts"
	"github.com/backlogsmith/backlogsmith/internal/quality"
	"github.com/backlogsmith/backlogsmith/internal/workitem"
)

// TaskAgent breaks a user story into implementation tasks, gated by the
// task quality rubric.
type TaskAgent struct {
	*Agent
	assessor *quality.TaskAssessor
}

// NewTaskAgent builds the task stage.
func NewTaskAgent(cfg *config.Config, provider llm.Provider, registry *prompts.Registry, progress Progress, logger io.Writer) *TaskAgent {
	return &TaskAgent{
		Agent:    newAgent("task", cfg, provider, registry, progress, logger),
		assessor: quality.NewTaskAssessor(),
	}
}

func storyContext(s workitem.UserStory) string {
	var b strings.Builder
	fmt.Fprintf(&b, "User story: %s\n%s\n%s\n", s.Title, s.Story, s.Description)
	if len(s.AcceptanceCriteria) > 0 {
		b.WriteString("Acceptance criteria:\n")
		for _, ac := range s.AcceptanceCriteria {
			fmt.Fprintf(&b, "- %s\n", ac)
		}
	}
	return b.String()
}

// Generate produces up to max quality-approved tasks for a user story.
func (a *TaskAgent) Generate(ctx context.Context, story workitem.UserStory, vision string, max int) ([]workitem.Task, error) {
	system, err := a.systemPrompt("task", nil)
	if err != nil {
		return nil, err
	}

	user := fmt.Sprintf("%s\nGenerate at most %d implementation tasks for this story.",
		storyContext(story), max)
	raw, err := a.complete(ctx, system, user)
	if err != nil {
		return nil, err
	}

	items, _ := decodeList[workitem.Task](raw)
	candidates := a.normalize(items)

	assess := func(t workitem.Task) quality.Assessment {
		return a.assessor.Assess(t, story, a.domain, vision)
	}
	improve := func(ctx context.Context, t workitem.Task, asm quality.Assessment) (workitem.Task, bool) {
		return a.improve(ctx, system, t, asm, story)
	}
	generate := func(ctx context.Context, n int) []workitem.Task {
		return a.backfill(ctx, system, story, candidates, n)
	}

	title := func(t workitem.Task) string { return t.Title }
	return refineBatch(ctx, a.Agent, candidates, max, title, assess, improve, generate), nil
}

func (a *TaskAgent) normalize(items []workitem.Task) []workitem.Task {
	out := make([]workitem.Task, 0, len(items))
	for _, t := range items {
		norm, err := workitem.NormalizeTask(t)
		if err != nil {
			a.logf("task: dropped candidate: %v", err)
			continue
		}
		out = append(out, norm)
	}
	return out
}

func (a *TaskAgent) improve(ctx context.Context, system string, t workitem.Task, asm quality.Assessment, story workitem.UserStory) (workitem.Task, bool) {
	user := improvementPrompt("task", t, asm, storyContext(story))
	raw, err := a.complete(ctx, system, user)
	if err != nil {
		a.logf("task: improvement call failed: %v", err)
		return workitem.Task{}, false
	}
	next, ok := decodeOne[workitem.Task](raw)
	if !ok {
		return workitem.Task{}, false
	}
	norm, err := workitem.NormalizeTask(next)
	if err != nil {
		return workitem.Task{}, false
	}
	return norm, true
}

func (a *TaskAgent) backfill(ctx context.Context, system string, story workitem.UserStory, existing []workitem.Task, n int) []workitem.Task {
	titles := make([]string, 0, len(existing))
	for _, t := range existing {
		titles = append(titles, t.Title)
	}
	user := backfillPrompt("task", n, titles, storyContext(story))
	raw, err := a.complete(ctx, system, user)
	if err != nil {
		a.logf("task: backfill call failed: %v", err)
		return nil
	}
	items, _ := decodeList[workitem.Task](raw)
	return a.normalize(items)
}
