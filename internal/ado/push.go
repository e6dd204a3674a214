package ado

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/backlogsmith/backlogsmith/internal/pipeline"
	"github.com/backlogsmith/backlogsmith/internal/workitem"
)

// Azure DevOps work item types (Agile process template).
const (
	typeEpic      = "Epic"
	typeFeature   = "Feature"
	typeUserStory = "User Story"
	typeTask      = "Task"
	typeTestCase  = "Test Case"
)

// PushResult tallies what a push created.
type PushResult struct {
	Created int
	Failed  int
}

// priorityValue maps the textual priority onto the ADO 1-4 scale.
func priorityValue(p workitem.Priority) int {
	switch p {
	case workitem.PriorityHigh:
		return 1
	case workitem.PriorityLow:
		return 3
	default:
		return 2
	}
}

func htmlList(items []string) string {
	if len(items) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("<ul>")
	for _, it := range items {
		b.WriteString("<li>" + it + "</li>")
	}
	b.WriteString("</ul>")
	return b.String()
}

// PushBacklog walks the backlog tree top-down, creating each work item under
// its parent. A failed item is reported and its subtree skipped; the rest of
// the push continues.
func (c *Client) PushBacklog(ctx context.Context, b *pipeline.Backlog, w io.Writer) (PushResult, error) {
	var res PushResult

	for _, e := range b.Epics {
		epicID, err := c.CreateWorkItem(ctx, typeEpic, epicFields(e.Epic), 0)
		if err != nil {
			res.Failed++
			fmt.Fprintf(w, "  !! epic %q: %v\n", e.Title, err)
			continue
		}
		res.Created++
		fmt.Fprintf(w, "  epic #%d %s\n", epicID, e.Title)

		for _, f := range e.Features {
			featureID, err := c.CreateWorkItem(ctx, typeFeature, featureFields(f.Feature), epicID)
			if err != nil {
				res.Failed++
				fmt.Fprintf(w, "  !! feature %q: %v\n", f.Title, err)
				continue
			}
			res.Created++
			fmt.Fprintf(w, "    feature #%d %s\n", featureID, f.Title)

			for _, s := range f.Stories {
				storyID, err := c.CreateWorkItem(ctx, typeUserStory, storyFields(s.UserStory), featureID)
				if err != nil {
					res.Failed++
					fmt.Fprintf(w, "  !! story %q: %v\n", s.Title, err)
					continue
				}
				res.Created++
				fmt.Fprintf(w, "      story #%d %s\n", storyID, s.Title)

				for _, t := range s.Tasks {
					id, err := c.CreateWorkItem(ctx, typeTask, taskFields(t), storyID)
					if err != nil {
						res.Failed++
						fmt.Fprintf(w, "  !! task %q: %v\n", t.Title, err)
						continue
					}
					res.Created++
					fmt.Fprintf(w, "        task #%d %s\n", id, t.Title)
				}
				for _, tc := range s.TestCases {
					id, err := c.CreateWorkItem(ctx, typeTestCase, testCaseFields(tc), storyID)
					if err != nil {
						res.Failed++
						fmt.Fprintf(w, "  !! test case %q: %v\n", tc.Title, err)
						continue
					}
					res.Created++
					fmt.Fprintf(w, "        test #%d %s\n", id, tc.Title)
				}
			}
		}
	}

	if res.Created == 0 && res.Failed > 0 {
		return res, fmt.Errorf("push created nothing: %d items failed", res.Failed)
	}
	return res, nil
}

func epicFields(e workitem.Epic) map[string]any {
	desc := e.Description
	if e.BusinessValue != "" {
		desc += "<br/><b>Business value:</b> " + e.BusinessValue
	}
	if len(e.SuccessCriteria) > 0 {
		desc += "<br/><b>Success criteria:</b>" + htmlList(e.SuccessCriteria)
	}
	return map[string]any{
		"System.Title":                   e.Title,
		"System.Description":             desc,
		"Microsoft.VSTS.Common.Priority": priorityValue(e.Priority),
	}
}

func featureFields(f workitem.Feature) map[string]any {
	desc := f.Description
	if len(f.UIUXRequirements) > 0 {
		desc += "<br/><b>UI/UX requirements:</b>" + htmlList(f.UIUXRequirements)
	}
	if len(f.TechnicalConsiderations) > 0 {
		desc += "<br/><b>Technical considerations:</b>" + htmlList(f.TechnicalConsiderations)
	}
	if len(f.EdgeCases) > 0 {
		desc += "<br/><b>Edge cases:</b>" + htmlList(f.EdgeCases)
	}
	return map[string]any{
		"System.Title":                          f.Title,
		"System.Description":                    desc,
		"Microsoft.VSTS.Common.Priority":        priorityValue(f.Priority),
		"Microsoft.VSTS.Scheduling.StoryPoints": f.EstimatedStoryPoints,
	}
}

func storyFields(s workitem.UserStory) map[string]any {
	desc := s.Story
	if s.Description != "" && s.Description != s.Story {
		desc += "<br/>" + s.Description
	}
	return map[string]any{
		"System.Title":                             s.Title,
		"System.Description":                       desc,
		"Microsoft.VSTS.Common.Priority":           priorityValue(s.Priority),
		"Microsoft.VSTS.Scheduling.StoryPoints":    s.StoryPoints,
		"Microsoft.VSTS.Common.AcceptanceCriteria": htmlList(s.AcceptanceCriteria),
		"System.Tags":                              s.Category,
	}
}

func taskFields(t workitem.Task) map[string]any {
	desc := t.Description
	if len(t.AcceptanceCriteria) > 0 {
		desc += "<br/><b>Done when:</b>" + htmlList(t.AcceptanceCriteria)
	}
	return map[string]any{
		"System.Title":                               t.Title,
		"System.Description":                         desc,
		"Microsoft.VSTS.Common.Priority":             priorityValue(t.Priority),
		"Microsoft.VSTS.Scheduling.OriginalEstimate": t.TimeEstimate,
		"System.Tags":                                t.Category,
	}
}

func testCaseFields(tc workitem.TestCase) map[string]any {
	desc := tc.Description
	if len(tc.TestSteps) > 0 {
		desc += "<br/><b>Steps:</b>" + htmlList(tc.TestSteps)
	}
	desc += "<br/><b>Expected result:</b> " + tc.ExpectedResult
	return map[string]any{
		"System.Title":                   tc.Title,
		"System.Description":             desc,
		"Microsoft.VSTS.Common.Priority": priorityValue(tc.Priority),
		"System.Tags":                    tc.CoverageType,
	}
}
