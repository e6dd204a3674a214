package agent

import (
	"context"
	"fmt"
	"io"

	"github.com/backlogsmith/backlogsmith/internal/config"
	"github.com/backlogsmith/backlogsmith/internal/llm"
	"github.com/backlogsmith/backlogsmith/internal/prompts"
	"github.com/backlogsmith/backlogsmith/internal/workitem"
)

// TestCaseAgent designs test cases for a user story. Like epics, test cases
// have no scored quality gate; normalization filters out cases missing steps
// or an expected result.
type TestCaseAgent struct {
	*Agent
}

// NewTestCaseAgent builds the test case stage.
func NewTestCaseAgent(cfg *config.Config, provider llm.Provider, registry *prompts.Registry, progress Progress, logger io.Writer) *TestCaseAgent {
	return &TestCaseAgent{newAgent("testcase", cfg, provider, registry, progress, logger)}
}

// Generate produces up to max test cases for a user story.
func (a *TestCaseAgent) Generate(ctx context.Context, story workitem.UserStory, vision string, max int) ([]workitem.TestCase, error) {
	system, err := a.systemPrompt("testcase", nil)
	if err != nil {
		return nil, err
	}

	user := fmt.Sprintf("%s\nDesign at most %d test cases verifying this story.",
		storyContext(story), max)
	raw, err := a.complete(ctx, system, user)
	if err != nil {
		return nil, err
	}

	items, _ := decodeList[workitem.TestCase](raw)
	cases := make([]workitem.TestCase, 0, max)
	for _, tc := range items {
		if len(cases) == max {
			break
		}
		norm, err := workitem.NormalizeTestCase(tc)
		if err != nil {
			a.logf("testcase: dropped candidate: %v", err)
			continue
		}
		cases = append(cases, norm)
	}
	return cases, nil
}
