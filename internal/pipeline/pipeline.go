// Package pipeline sequences the agents over a product vision: epics, then
// per epic features, per feature user stories, per story tasks and test
// cases. Parent context and the vision cascade downward; an empty stage
// narrows the tree but never aborts the run.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/backlogsmith/backlogsmith/internal/agent"
	"github.com/backlogsmith/backlogsmith/internal/config"
	"github.com/backlogsmith/backlogsmith/internal/display"
	"github.com/backlogsmith/backlogsmith/internal/llm"
	"github.com/backlogsmith/backlogsmith/internal/prompts"
	"github.com/backlogsmith/backlogsmith/internal/workitem"
)

// Backlog is the full output of one pipeline run.
type Backlog struct {
	RunID       string       `json:"run_id"`
	GeneratedAt time.Time    `json:"generated_at"`
	Project     string       `json:"project"`
	Vision      string       `json:"vision"`
	Epics       []EpicResult `json:"epics"`
}

// EpicResult is an epic with its generated features.
type EpicResult struct {
	workitem.Epic
	Features []FeatureResult `json:"features"`
}

// FeatureResult is a feature with its generated stories.
type FeatureResult struct {
	workitem.Feature
	Stories []StoryResult `json:"stories"`
}

// StoryResult is a user story with its tasks and test cases.
type StoryResult struct {
	workitem.UserStory
	Tasks     []workitem.Task     `json:"tasks"`
	TestCases []workitem.TestCase `json:"test_cases"`
}

// Counts tallies the items in a backlog.
type Counts struct {
	Epics     int
	Features  int
	Stories   int
	Tasks     int
	TestCases int
}

// Count walks the backlog tree.
func (b *Backlog) Count() Counts {
	var c Counts
	c.Epics = len(b.Epics)
	for _, e := range b.Epics {
		c.Features += len(e.Features)
		for _, f := range e.Features {
			c.Stories += len(f.Stories)
			for _, s := range f.Stories {
				c.Tasks += len(s.Tasks)
				c.TestCases += len(s.TestCases)
			}
		}
	}
	return c
}

// Supervisor drives the five agents in order.
type Supervisor struct {
	cfg     *config.Config
	display *display.Display

	epics     *agent.EpicAgent
	features  *agent.FeatureAgent
	stories   *agent.StoryAgent
	tasks     *agent.TaskAgent
	testcases *agent.TestCaseAgent
}

// New wires a supervisor from configuration: one provider shared by five
// agents, each with its own sampling preset, timeout, and circuit breaker.
// The display doubles as the agents' progress sink, so gated stages report
// each approved item with its quality score.
func New(cfg *config.Config, provider llm.Provider, registry *prompts.Registry, d *display.Display, agentLog io.Writer) *Supervisor {
	return &Supervisor{
		cfg:       cfg,
		display:   d,
		epics:     agent.NewEpicAgent(cfg, provider, registry, d, agentLog),
		features:  agent.NewFeatureAgent(cfg, provider, registry, d, agentLog),
		stories:   agent.NewStoryAgent(cfg, provider, registry, d, agentLog),
		tasks:     agent.NewTaskAgent(cfg, provider, registry, d, agentLog),
		testcases: agent.NewTestCaseAgent(cfg, provider, registry, d, agentLog),
	}
}

// Run executes the full decomposition. The epic stage failing outright is
// fatal; every later stage failure degrades to an empty branch so one bad
// epic cannot sink the run.
func (s *Supervisor) Run(ctx context.Context, runID, vision string) (*Backlog, error) {
	backlog := &Backlog{
		RunID:       runID,
		GeneratedAt: time.Now().UTC(),
		Project:     s.cfg.ProjectName,
		Vision:      vision,
	}
	limits := s.cfg.Limits

	s.display.ShowStage("epics", s.cfg.ProjectName)
	s.display.StartSpinner("decomposing vision...")
	epics, err := s.epics.Generate(ctx, vision, limits.MaxEpics)
	if err != nil {
		return nil, fmt.Errorf("epic stage: %w", err)
	}
	if len(epics) == 0 {
		s.display.ShowWarning("no epics extracted from the model response")
		return backlog, nil
	}
	for _, e := range epics {
		s.display.ShowItem("epic", e.Title, -1)
	}

	for _, e := range epics {
		er := EpicResult{Epic: e}
		er.Features = s.runFeatures(ctx, e, vision, limits)
		backlog.Epics = append(backlog.Epics, er)
	}
	return backlog, nil
}

func (s *Supervisor) runFeatures(ctx context.Context, e workitem.Epic, vision string, limits config.Limits) []FeatureResult {
	s.display.ShowStage("features", e.Title)
	s.display.StartSpinner("generating features...")
	features, err := s.features.Generate(ctx, e, vision, limits.MaxFeatures)
	if err != nil {
		s.display.ShowWarning(fmt.Sprintf("feature stage failed for %q: %v", e.Title, err))
		return nil
	}
	if len(features) == 0 {
		s.display.ShowWarning(fmt.Sprintf("no features survived for %q", e.Title))
		return nil
	}

	out := make([]FeatureResult, 0, len(features))
	for _, f := range features {
		fr := FeatureResult{Feature: f}
		fr.Stories = s.runStories(ctx, f, vision, limits)
		out = append(out, fr)
	}
	return out
}

func (s *Supervisor) runStories(ctx context.Context, f workitem.Feature, vision string, limits config.Limits) []StoryResult {
	s.display.ShowStage("stories", f.Title)
	s.display.StartSpinner("generating stories...")
	stories, err := s.stories.Generate(ctx, f, vision, limits.MaxStories)
	if err != nil {
		s.display.ShowWarning(fmt.Sprintf("story stage failed for %q: %v", f.Title, err))
		return nil
	}
	if len(stories) == 0 {
		s.display.ShowWarning(fmt.Sprintf("no stories survived for %q", f.Title))
		return nil
	}

	out := make([]StoryResult, 0, len(stories))
	for _, st := range stories {
		sr := StoryResult{UserStory: st}
		sr.Tasks = s.runTasks(ctx, st, vision, limits)
		sr.TestCases = s.runTestCases(ctx, st, vision, limits)
		out = append(out, sr)
	}
	return out
}

func (s *Supervisor) runTasks(ctx context.Context, st workitem.UserStory, vision string, limits config.Limits) []workitem.Task {
	s.display.StartSpinner("generating tasks...")
	tasks, err := s.tasks.Generate(ctx, st, vision, limits.MaxTasks)
	if err != nil {
		s.display.ShowWarning(fmt.Sprintf("task stage failed for %q: %v", st.Title, err))
		return nil
	}
	return tasks
}

func (s *Supervisor) runTestCases(ctx context.Context, st workitem.UserStory, vision string, limits config.Limits) []workitem.TestCase {
	s.display.StartSpinner("generating test cases...")
	cases, err := s.testcases.Generate(ctx, st, vision, limits.MaxTests)
	if err != nil {
		s.display.ShowWarning(fmt.Sprintf("test case stage failed for %q: %v", st.Title, err))
		return nil
	}
	for _, tc := range cases {
		s.display.ShowItem("testcase", tc.Title, -1)
	}
	return cases
}
