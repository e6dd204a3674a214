package quality

import (
	"fmt"
	"strings"

	"github.com/backlogsmith/backlogsmith/internal/workitem"
)

// actionVerbs are the verbs an actionable task title starts with.
var actionVerbs = []string{
	"implement", "create", "add", "build", "write", "design", "update",
	"refactor", "configure", "integrate", "migrate", "fix", "remove",
	"extend", "set up", "define", "expose", "validate", "test", "deploy",
}

// TaskAssessor scores tasks against a weighted rubric:
// title actionability 15, description 20, time estimate 15, complexity 10,
// category 15, story keyword overlap 25.
type TaskAssessor struct {
	Thresholds Thresholds
}

// NewTaskAssessor returns an assessor with the default thresholds.
func NewTaskAssessor() *TaskAssessor {
	return &TaskAssessor{Thresholds: Thresholds{Excellent: 80, Good: 75, Fair: 50}}
}

// Assess scores one task against its parent story and the product vision.
func (a *TaskAssessor) Assess(task workitem.Task, parent workitem.UserStory, domain, vision string) Assessment {
	card := &scorecard{}

	// Title actionability (15): starts with a verb, reasonable length.
	lowerTitle := strings.ToLower(strings.TrimSpace(task.Title))
	actionable := false
	for _, v := range actionVerbs {
		if strings.HasPrefix(lowerTitle, v) {
			actionable = true
			break
		}
	}
	switch {
	case actionable && len(task.Title) >= 10 && len(task.Title) <= 90:
		card.add(15)
	case actionable:
		card.add(10)
		card.weakness("title length is outside the ideal 10-90 character range")
	case len(task.Title) >= 10:
		card.add(6)
		card.issue("task title does not start with an action verb",
			"start the title with a verb like Implement, Add, or Configure")
	default:
		card.issue("title is missing or unusable",
			"give the task an actionable title starting with a verb")
	}

	// Description (20).
	switch l := len(task.Description); {
	case l >= 80:
		card.add(20)
	case l >= 40:
		card.add(12)
		card.weakness("description is brief; it should say how, not just what")
	case l >= 20:
		card.add(5)
		card.issue("description is too thin to implement from",
			"describe the change, the files or components affected, and how to verify it")
	default:
		card.issue("description is missing",
			"describe the change, the files or components affected, and how to verify it")
	}

	// Time estimate (15): a realistic half-hour-to-two-days window.
	switch {
	case task.TimeEstimate >= 0.5 && task.TimeEstimate <= 16:
		card.add(15)
	case task.TimeEstimate > 16 && task.TimeEstimate <= 40:
		card.add(7)
		card.issue(fmt.Sprintf("time estimate of %.1fh suggests the task should be split", task.TimeEstimate),
			"split the task so each piece fits within two working days")
	default:
		card.issue(fmt.Sprintf("time estimate %.1fh is not plausible", task.TimeEstimate),
			"estimate the task between 0.5 and 16 hours")
	}

	// Complexity (10).
	if task.Complexity.Valid() {
		card.add(10)
	} else {
		card.issue(fmt.Sprintf("complexity %q is not Low/Medium/High", task.Complexity),
			"rate the complexity as Low, Medium, or High")
	}

	// Category (15).
	if workitem.ValidCategory(task.Category) {
		card.add(15)
	} else {
		card.issue(fmt.Sprintf("category %q is not a known category", task.Category),
			fmt.Sprintf("pick one of: %s", strings.Join(workitem.Categories, ", ")))
	}

	// Story alignment (25).
	parentText := parent.Title + " " + parent.Description + " " + parent.Story + " " + domain
	alignment := overlap(task.Title+" "+task.Description, parentText+" "+vision)
	card.add(scaled(alignment*2, 25))
	if alignment < 0.15 {
		card.issue("task barely references its parent story",
			"tie the task to the story's concrete behavior and domain language")
	}

	return card.finish(a.Thresholds)
}
