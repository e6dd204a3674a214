package workitem

import (
	"errors"
	"fmt"
	"strings"
)

// ErrDropped marks a record that failed normalization and must not be
// emitted. Records are dropped rather than padded with placeholder content:
// a missing title, description, or acceptance criteria set cannot be
// invented here.
var ErrDropped = errors.New("record dropped")

const (
	minTitleLen       = 5
	minDescriptionLen = 20
)

// Policy carries the tunable normalization limits.
type Policy struct {
	MinAcceptanceCriteria int
	MaxAcceptanceCriteria int
}

// DefaultPolicy returns the default acceptance-criteria bounds.
func DefaultPolicy() Policy {
	return Policy{MinAcceptanceCriteria: 3, MaxAcceptanceCriteria: 8}
}

// definitionOfReady is stamped on every normalized story.
var definitionOfReady = []string{
	"Story is sized and fits within a single sprint",
	"Acceptance criteria are defined and testable",
	"Dependencies are identified",
	"UX input is available where the story touches the UI",
}

// definitionOfDone is stamped on every normalized story.
var definitionOfDone = []string{
	"All acceptance criteria pass",
	"Code reviewed and merged",
	"Automated tests added and green",
	"No known regressions introduced",
}

// categoryKeywords drives category inference from description text.
// Order matters: the first category with a hit wins.
var categoryKeywords = []struct {
	category string
	words    []string
}{
	{"database", []string{"database", "schema", "migration", "table", "index", "query", "sql"}},
	{"api", []string{"api", "endpoint", "rest", "request", "response", "webhook"}},
	{"frontend", []string{"ui", "screen", "page", "button", "form", "display", "render", "frontend"}},
	{"backend", []string{"backend", "server", "service", "logic", "process", "handler"}},
	{"testing", []string{"test", "verify", "validate", "coverage", "regression"}},
	{"deployment", []string{"deploy", "release", "rollout", "environment"}},
	{"devops", []string{"pipeline", "docker", "kubernetes", "monitoring", "infrastructure", "ci/cd"}},
}

// InferCategory sniffs a category from free text, defaulting to development.
func InferCategory(text string) string {
	lower := strings.ToLower(text)
	for _, ck := range categoryKeywords {
		for _, w := range ck.words {
			if strings.Contains(lower, w) {
				return ck.category
			}
		}
	}
	return "development"
}

// PointsFromCriteria buckets a story point estimate from the acceptance
// criteria count: <=3 -> 2, <=5 -> 3, <=7 -> 5, else 8.
func PointsFromCriteria(count int) int {
	switch {
	case count <= 3:
		return 2
	case count <= 5:
		return 3
	case count <= 7:
		return 5
	default:
		return 8
	}
}

func normalizePriority(p Priority) Priority {
	if p.Valid() {
		return p
	}
	return PriorityMedium
}

func requireCore(kind, title, description string) error {
	if len(strings.TrimSpace(title)) < minTitleLen {
		return fmt.Errorf("%s title missing or too short: %w", kind, ErrDropped)
	}
	if len(strings.TrimSpace(description)) < minDescriptionLen {
		return fmt.Errorf("%s description missing or too short: %w", kind, ErrDropped)
	}
	return nil
}

func cleanList(items []string) []string {
	out := items[:0]
	for _, it := range items {
		if s := strings.TrimSpace(it); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// NormalizeEpic validates and fills in an epic. Returns ErrDropped when the
// record cannot be salvaged.
func NormalizeEpic(e Epic) (Epic, error) {
	e.Title = strings.TrimSpace(e.Title)
	e.Description = strings.TrimSpace(e.Description)
	if err := requireCore("epic", e.Title, e.Description); err != nil {
		return Epic{}, err
	}
	e.Priority = normalizePriority(e.Priority)
	e.SuccessCriteria = cleanList(e.SuccessCriteria)
	e.Dependencies = cleanList(e.Dependencies)
	return e, nil
}

// NormalizeFeature validates and fills in a feature.
func NormalizeFeature(f Feature) (Feature, error) {
	f.Title = strings.TrimSpace(f.Title)
	f.Description = strings.TrimSpace(f.Description)
	if err := requireCore("feature", f.Title, f.Description); err != nil {
		return Feature{}, err
	}
	f.Priority = normalizePriority(f.Priority)
	if !ValidStoryPoints(f.EstimatedStoryPoints) {
		f.EstimatedStoryPoints = 5
	}
	f.UIUXRequirements = cleanList(f.UIUXRequirements)
	f.TechnicalConsiderations = cleanList(f.TechnicalConsiderations)
	f.BusinessValue = cleanList(f.BusinessValue)
	f.EdgeCases = cleanList(f.EdgeCases)
	return f, nil
}

// NormalizeStory validates and fills in a user story. The acceptance
// criteria count must reach the policy minimum or the story is dropped;
// criteria beyond the maximum are truncated.
func NormalizeStory(s UserStory, policy Policy) (UserStory, error) {
	s.Title = strings.TrimSpace(s.Title)
	s.Description = strings.TrimSpace(s.Description)
	s.Story = strings.TrimSpace(s.Story)
	if s.Description == "" {
		// Some models put the narrative only in user_story.
		s.Description = s.Story
	}
	if err := requireCore("story", s.Title, s.Description); err != nil {
		return UserStory{}, err
	}

	s.AcceptanceCriteria = cleanList(s.AcceptanceCriteria)
	if len(s.AcceptanceCriteria) < policy.MinAcceptanceCriteria {
		return UserStory{}, fmt.Errorf("story has %d acceptance criteria, need %d: %w",
			len(s.AcceptanceCriteria), policy.MinAcceptanceCriteria, ErrDropped)
	}
	if len(s.AcceptanceCriteria) > policy.MaxAcceptanceCriteria {
		s.AcceptanceCriteria = s.AcceptanceCriteria[:policy.MaxAcceptanceCriteria]
	}

	s.Priority = normalizePriority(s.Priority)
	if !ValidStoryPoints(s.StoryPoints) {
		s.StoryPoints = PointsFromCriteria(len(s.AcceptanceCriteria))
	}
	if s.UserType == "" {
		s.UserType = "user"
	}
	if !ValidCategory(s.Category) {
		s.Category = InferCategory(s.Title + " " + s.Description)
	}
	s.DefinitionOfReady = definitionOfReady
	s.DefinitionOfDone = definitionOfDone
	return s, nil
}

// NormalizeTask validates and fills in a task.
func NormalizeTask(t Task) (Task, error) {
	t.Title = strings.TrimSpace(t.Title)
	t.Description = strings.TrimSpace(t.Description)
	if err := requireCore("task", t.Title, t.Description); err != nil {
		return Task{}, err
	}
	t.Priority = normalizePriority(t.Priority)
	if !t.Complexity.Valid() {
		t.Complexity = ComplexityMedium
	}
	if t.TimeEstimate <= 0 || t.TimeEstimate > 40 {
		t.TimeEstimate = defaultHours(t.Complexity)
	}
	if !ValidStoryPoints(t.StoryPoints) {
		t.StoryPoints = pointsFromComplexity(t.Complexity)
	}
	if !ValidCategory(t.Category) {
		t.Category = InferCategory(t.Title + " " + t.Description)
	}
	t.Dependencies = cleanList(t.Dependencies)
	t.AcceptanceCriteria = cleanList(t.AcceptanceCriteria)
	return t, nil
}

func defaultHours(c Complexity) float64 {
	switch c {
	case ComplexityLow:
		return 2
	case ComplexityHigh:
		return 8
	default:
		return 4
	}
}

func pointsFromComplexity(c Complexity) int {
	switch c {
	case ComplexityLow:
		return 1
	case ComplexityHigh:
		return 5
	default:
		return 3
	}
}

// NormalizeTestCase validates and fills in a test case. A test case with no
// steps or no expected result is dropped.
func NormalizeTestCase(tc TestCase) (TestCase, error) {
	tc.Title = strings.TrimSpace(tc.Title)
	tc.Description = strings.TrimSpace(tc.Description)
	if err := requireCore("test case", tc.Title, tc.Description); err != nil {
		return TestCase{}, err
	}
	tc.TestSteps = cleanList(tc.TestSteps)
	tc.ExpectedResult = strings.TrimSpace(tc.ExpectedResult)
	if len(tc.TestSteps) == 0 || tc.ExpectedResult == "" {
		return TestCase{}, fmt.Errorf("test case has no steps or expected result: %w", ErrDropped)
	}
	tc.Priority = normalizePriority(tc.Priority)
	if tc.CoverageType == "" {
		tc.CoverageType = "functional"
	}
	if tc.RiskLevel == "" {
		tc.RiskLevel = "Medium"
	}
	return tc, nil
}
