// Package workitem defines the typed records that flow through the pipeline:
// Epic -> Feature -> UserStory -> Task -> TestCase. Records arrive from LLM
// JSON, get validated and normalized here, and leave toward Azure DevOps.
package workitem

// Priority is the work-item priority scale.
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	return p == PriorityHigh || p == PriorityMedium || p == PriorityLow
}

// Complexity is the task complexity scale.
type Complexity string

const (
	ComplexityLow    Complexity = "Low"
	ComplexityMedium Complexity = "Medium"
	ComplexityHigh   Complexity = "High"
)

// Valid reports whether c is one of the known complexities.
func (c Complexity) Valid() bool {
	return c == ComplexityLow || c == ComplexityMedium || c == ComplexityHigh
}

// StoryPointScale is the allowed story point values (modified Fibonacci).
var StoryPointScale = []int{1, 2, 3, 5, 8, 13}

// ValidStoryPoints reports whether n is on the story point scale.
func ValidStoryPoints(n int) bool {
	for _, v := range StoryPointScale {
		if n == v {
			return true
		}
	}
	return false
}

// Categories a task or story can be filed under.
var Categories = []string{
	"frontend", "backend", "database", "api",
	"testing", "deployment", "devops", "development",
}

// ValidCategory reports whether c is a known category.
func ValidCategory(c string) bool {
	for _, v := range Categories {
		if c == v {
			return true
		}
	}
	return false
}

// Epic is the top-level decomposition of a product vision.
type Epic struct {
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Priority        Priority `json:"priority"`
	BusinessValue   string   `json:"business_value"`
	SuccessCriteria []string `json:"success_criteria"`
	Dependencies    []string `json:"dependencies"`
}

// Feature is a deliverable slice of an epic.
type Feature struct {
	Title                   string   `json:"title"`
	Description             string   `json:"description"`
	Priority                Priority `json:"priority"`
	EstimatedStoryPoints    int      `json:"estimated_story_points"`
	UIUXRequirements        []string `json:"ui_ux_requirements"`
	TechnicalConsiderations []string `json:"technical_considerations"`
	BusinessValue           []string `json:"business_value"`
	EdgeCases               []string `json:"edge_cases"`
}

// UserStory is a user-facing increment of a feature.
type UserStory struct {
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	Priority           Priority `json:"priority"`
	Story              string   `json:"user_story"` // the "As a ..." sentence
	AcceptanceCriteria []string `json:"acceptance_criteria"`
	StoryPoints        int      `json:"story_points"`
	UserType           string   `json:"user_type"`
	Category           string   `json:"category"`
	DefinitionOfReady  []string `json:"definition_of_ready,omitempty"`
	DefinitionOfDone   []string `json:"definition_of_done,omitempty"`
}

// Task is an implementation step of a user story.
type Task struct {
	Title              string     `json:"title"`
	Description        string     `json:"description"`
	Priority           Priority   `json:"priority"`
	TimeEstimate       float64    `json:"time_estimate"` // hours
	Complexity         Complexity `json:"complexity"`
	StoryPoints        int        `json:"story_points"`
	Category           string     `json:"category"`
	Dependencies       []string   `json:"dependencies"`
	AcceptanceCriteria []string   `json:"acceptance_criteria"`
}

// TestCase verifies a user story.
type TestCase struct {
	Title               string   `json:"title"`
	Description         string   `json:"description"`
	Priority            Priority `json:"priority"`
	TestSteps           []string `json:"test_steps"`
	ExpectedResult      string   `json:"expected_result"`
	CoverageType        string   `json:"coverage_type"`
	AutomationCandidate bool     `json:"automation_candidate"`
	RiskLevel           string   `json:"risk_level"`
}
