// Package quality scores generated work items against fixed weighted
// rubrics. Assessors are pure functions over strings: the same candidate,
// parent, domain, and vision always produce the same assessment.
package quality

// Rating is the qualitative verdict derived from a score.
type Rating string

const (
	RatingExcellent Rating = "EXCELLENT"
	RatingGood      Rating = "GOOD"
	RatingFair      Rating = "FAIR"
	RatingPoor      Rating = "POOR"
)

// Assessment is the itemized outcome of scoring one candidate.
type Assessment struct {
	Rating                 Rating   `json:"rating"`
	Score                  int      `json:"score"` // 0-100
	Strengths              []string `json:"strengths"`
	Weaknesses             []string `json:"weaknesses"`
	SpecificIssues         []string `json:"specific_issues"`
	ImprovementSuggestions []string `json:"improvement_suggestions"`
}

// Approved reports whether the candidate clears the quality gate.
func (a Assessment) Approved() bool {
	return a.Rating == RatingExcellent || a.Rating == RatingGood
}

// Thresholds maps a score to a rating. The exact boundaries differ per
// assessor and are policy, not contract.
type Thresholds struct {
	Excellent int
	Good      int
	Fair      int
}

// Rate converts a score into a rating.
func (t Thresholds) Rate(score int) Rating {
	switch {
	case score >= t.Excellent:
		return RatingExcellent
	case score >= t.Good:
		return RatingGood
	case score >= t.Fair:
		return RatingFair
	default:
		return RatingPoor
	}
}

// scorecard accumulates weighted sub-scores and the itemized findings.
type scorecard struct {
	score       int
	strengths   []string
	weaknesses  []string
	issues      []string
	suggestions []string
}

func (s *scorecard) add(points int) { s.score += points }

func (s *scorecard) strength(msg string) { s.strengths = append(s.strengths, msg) }

func (s *scorecard) weakness(msg string) { s.weaknesses = append(s.weaknesses, msg) }

func (s *scorecard) issue(issue, suggestion string) {
	s.issues = append(s.issues, issue)
	s.suggestions = append(s.suggestions, suggestion)
}

func (s *scorecard) finish(t Thresholds) Assessment {
	if s.score < 0 {
		s.score = 0
	}
	if s.score > 100 {
		s.score = 100
	}
	return Assessment{
		Rating:                 t.Rate(s.score),
		Score:                  s.score,
		Strengths:              s.strengths,
		Weaknesses:             s.weaknesses,
		SpecificIssues:         s.issues,
		ImprovementSuggestions: s.suggestions,
	}
}
