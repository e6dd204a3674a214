package quality

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/backlogsmith/backlogsmith/internal/workitem"
)

var (
	storyFormatRe  = regexp.MustCompile(`(?i)as an? .+?,? I want .+? so that .+`)
	partialStoryRe = regexp.MustCompile(`(?i)as an? `)
	gherkinRe      = regexp.MustCompile(`(?i)\bgiven\b.*\bwhen\b.*\bthen\b`)
)

// StoryAssessor scores user stories against a weighted rubric:
// format compliance 20, title length 10, acceptance criteria 25,
// description quality 15, independence via story points 15,
// feature keyword overlap 15.
type StoryAssessor struct {
	Thresholds Thresholds
	Criteria   workitem.Policy
}

// NewStoryAssessor returns an assessor with the default policy.
func NewStoryAssessor() *StoryAssessor {
	return &StoryAssessor{
		Thresholds: Thresholds{Excellent: 80, Good: 70, Fair: 50},
		Criteria:   workitem.DefaultPolicy(),
	}
}

// Assess scores one story against its parent feature and the product vision.
func (a *StoryAssessor) Assess(story workitem.UserStory, parent workitem.Feature, domain, vision string) Assessment {
	card := &scorecard{}
	narrative := story.Story
	if narrative == "" {
		narrative = story.Description
	}

	// Format compliance (20): the full "As a ... I want ... so that ..."
	// sentence, or partial credit for at least naming the actor.
	switch {
	case storyFormatRe.MatchString(narrative):
		card.add(20)
		card.strength("story follows the As a / I want / so that format")
	case partialStoryRe.MatchString(narrative):
		card.add(10)
		card.issue("story names an actor but is missing the I want / so that clauses",
			"rewrite the narrative as 'As a <user>, I want <capability> so that <benefit>'")
	default:
		card.issue("story narrative does not follow the user story format",
			"rewrite the narrative as 'As a <user>, I want <capability> so that <benefit>'")
	}

	// Title length (10).
	switch l := len(story.Title); {
	case l >= 10 && l <= 80:
		card.add(10)
	case l >= 5 && l <= 100:
		card.add(5)
		card.weakness("title length is outside the ideal 10-80 character range")
	default:
		card.issue("title is missing or unusable",
			"give the story a concise title between 10 and 80 characters")
	}

	// Acceptance criteria (25): count within policy bounds (15) plus
	// Given/When/Then coverage (10, scaled).
	count := len(story.AcceptanceCriteria)
	if count >= a.Criteria.MinAcceptanceCriteria && count <= a.Criteria.MaxAcceptanceCriteria {
		card.add(15)
	} else {
		card.issue(fmt.Sprintf("story has %d acceptance criteria, expected %d-%d",
			count, a.Criteria.MinAcceptanceCriteria, a.Criteria.MaxAcceptanceCriteria),
			fmt.Sprintf("provide between %d and %d acceptance criteria",
				a.Criteria.MinAcceptanceCriteria, a.Criteria.MaxAcceptanceCriteria))
	}
	if count > 0 {
		gherkin := 0
		for _, ac := range story.AcceptanceCriteria {
			if gherkinRe.MatchString(ac) {
				gherkin++
			}
		}
		card.add(scaled(float64(gherkin)/float64(count), 10))
		if gherkin < count {
			card.weakness("some acceptance criteria are not in Given/When/Then form")
		}
	}

	// Description quality (15): enough substance to implement from.
	desc := story.Description
	switch {
	case len(desc) >= 80 && strings.Contains(strings.ToLower(desc), "so that"):
		card.add(15)
	case len(desc) >= 40:
		card.add(8)
		card.weakness("description is thin; it should explain the user benefit")
	default:
		card.issue("description is too short to implement from",
			"expand the description with the user context and the expected benefit")
	}

	// Independence via story points (15): small stories are deliverable on
	// their own; a 13 suggests the story should be split.
	switch {
	case workitem.ValidStoryPoints(story.StoryPoints) && story.StoryPoints <= 8:
		card.add(15)
	case story.StoryPoints == 13:
		card.add(7)
		card.issue("story is estimated at 13 points",
			"split the story into independently deliverable pieces of 8 points or fewer")
	default:
		card.issue(fmt.Sprintf("story points %d are not on the 1/2/3/5/8/13 scale", story.StoryPoints),
			"estimate the story on the modified Fibonacci scale")
	}

	// Feature alignment (15): keyword overlap with the parent feature and
	// the product vision.
	parentText := parent.Title + " " + parent.Description + " " + domain
	alignment := overlap(story.Title+" "+desc, parentText+" "+vision)
	card.add(scaled(alignment*2, 15)) // 50% overlap already earns full credit
	if alignment < 0.15 {
		card.issue("story barely references its parent feature",
			"use the feature's domain language so the story clearly belongs to it")
	}

	return card.finish(a.Thresholds)
}
