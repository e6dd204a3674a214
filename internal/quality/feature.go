package quality

import (
	"fmt"

	"github.com/backlogsmith/backlogsmith/internal/workitem"
)

// FeatureAssessor scores features against a weighted rubric:
// title 15, description 20, story point estimate 10, UI/UX requirements 10,
// technical considerations 10, business value 10, edge cases 10,
// epic keyword overlap 15.
type FeatureAssessor struct {
	Thresholds Thresholds
}

// NewFeatureAssessor returns an assessor with the default thresholds.
func NewFeatureAssessor() *FeatureAssessor {
	return &FeatureAssessor{Thresholds: Thresholds{Excellent: 80, Good: 65, Fair: 45}}
}

// Assess scores one feature against its parent epic and the product vision.
func (a *FeatureAssessor) Assess(feature workitem.Feature, parent workitem.Epic, domain, vision string) Assessment {
	card := &scorecard{}

	// Title (15).
	switch l := len(feature.Title); {
	case l >= 10 && l <= 80:
		card.add(15)
	case l >= 5 && l <= 100:
		card.add(8)
		card.weakness("title length is outside the ideal 10-80 character range")
	default:
		card.issue("title is missing or unusable",
			"give the feature a concise title between 10 and 80 characters")
	}

	// Description (20): long enough to scope the work.
	switch l := len(feature.Description); {
	case l >= 120:
		card.add(20)
	case l >= 60:
		card.add(12)
		card.weakness("description covers the what but not the why or the boundaries")
	case l >= 20:
		card.add(5)
		card.issue("description is too thin to plan stories from",
			"describe the capability, its users, and what is out of scope")
	default:
		card.issue("description is missing",
			"describe the capability, its users, and what is out of scope")
	}

	// Story point estimate (10).
	if workitem.ValidStoryPoints(feature.EstimatedStoryPoints) {
		card.add(10)
	} else {
		card.issue(fmt.Sprintf("estimated story points %d are not on the 1/2/3/5/8/13 scale",
			feature.EstimatedStoryPoints),
			"estimate the feature on the modified Fibonacci scale")
	}

	// Supporting detail lists (10 each): UI/UX, technical considerations,
	// business value, edge cases. Two entries earn full credit.
	card.add(listScore(card, feature.UIUXRequirements, 10,
		"no UI/UX requirements listed",
		"list the screens, flows, or interaction requirements the feature needs"))
	card.add(listScore(card, feature.TechnicalConsiderations, 10,
		"no technical considerations listed",
		"note the integration points, data, and performance constraints"))
	card.add(listScore(card, feature.BusinessValue, 10,
		"no business value stated",
		"state the measurable outcome this feature buys"))
	card.add(listScore(card, feature.EdgeCases, 10,
		"no edge cases listed",
		"enumerate the failure and boundary scenarios to handle"))

	// Epic alignment (15).
	parentText := parent.Title + " " + parent.Description + " " + domain
	alignment := overlap(feature.Title+" "+feature.Description, parentText+" "+vision)
	card.add(scaled(alignment*2, 15))
	if alignment < 0.15 {
		card.issue("feature barely references its parent epic",
			"use the epic's domain language so the feature clearly belongs to it")
	}

	return card.finish(a.Thresholds)
}

// listScore grades a supporting list: empty lists flag an issue, a single
// entry earns half credit, two or more earn the full weight.
func listScore(card *scorecard, items []string, weight int, issue, suggestion string) int {
	switch {
	case len(items) >= 2:
		return weight
	case len(items) == 1:
		card.weakness(issue)
		return weight / 2
	default:
		card.issue(issue, suggestion)
		return 0
	}
}
