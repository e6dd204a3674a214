package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/backlogsmith/backlogsmith/internal/config"
	"github.com/backlogsmith/backlogsmith/internal/llm"
	"github.com/backlogsmith/backlogsmith/internal/prompts"
	"github.com/backlogsmith/backlogsmith/internal/workitem"
)

// fakeProvider replays a scripted queue of responses. A response can also be
// an error. Calls beyond the script repeat the last entry.
type fakeProvider struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	calls     []fakeCall
}

type fakeCall struct {
	system string
	user   string
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Complete(ctx context.Context, system, user string, _ llm.Sampling) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fakeCall{system: system, user: user})

	i := len(f.calls) - 1
	if i >= len(f.responses) {
		i = len(f.responses) - 1
	}
	if i < 0 {
		return "", errors.New("fake provider has no script")
	}
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	return f.responses[i], nil
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func testConfig() *config.Config {
	cfg, err := config.Default()
	if err != nil {
		panic(err)
	}
	cfg.Domain = "groceries"
	cfg.ProjectName = "FreshCart"
	return cfg
}

func testRegistry(t *testing.T) *prompts.Registry {
	t.Helper()
	r, err := prompts.NewRegistry("")
	if err != nil {
		t.Fatal(err)
	}
	return r
}

const vision = "An online grocery store where busy families order weekly shopping for home delivery."

const goodEpicsJSON = `[
  {
    "title": "Shopping cart and checkout",
    "description": "Everything a shopper needs to collect grocery items, review the cart, and pay for the weekly order.",
    "priority": "High",
    "business_value": "Carts that persist convert into paid orders",
    "success_criteria": ["Checkout conversion above 60%"],
    "dependencies": []
  },
  {
    "title": "Weekly order scheduling",
    "description": "Families schedule a recurring delivery slot and adjust the basket before each cutoff.",
    "priority": "Medium",
    "business_value": "Recurring orders raise retention",
    "success_criteria": ["Half of active families use a schedule"],
    "dependencies": ["Shopping cart and checkout"]
  }
]`

const goodFeatureJSON = `{
    "title": "Persistent shopping cart",
    "description": "The shopping cart survives sessions and devices so families can build a weekly grocery order over several days. Carts expire after thirty days and flag items that went out of stock.",
    "priority": "High",
    "estimated_story_points": 8,
    "ui_ux_requirements": ["Cart badge with item count", "Restored-cart banner on return"],
    "technical_considerations": ["Cart storage keyed by account", "Stock revalidation on restore"],
    "business_value": ["Higher checkout conversion", "Larger weekly orders"],
    "edge_cases": ["Item out of stock on restore", "Cart expired after 30 days"]
  }`

const poorFeatureJSON = `{
    "title": "Cart page",
    "description": "Shoppers keep a cart here.",
    "priority": "High",
    "estimated_story_points": 0
  }`

func parentEpic() workitem.Epic {
	return workitem.Epic{
		Title:       "Shopping cart and checkout",
		Description: "Everything a shopper needs to collect grocery items, review the cart, and pay for the weekly order.",
		Priority:    workitem.PriorityHigh,
	}
}

func TestEpicAgentGenerate(t *testing.T) {
	provider := &fakeProvider{responses: []string{goodEpicsJSON}}
	a := NewEpicAgent(testConfig(), provider, testRegistry(t), nil, nil)

	epics, err := a.Generate(context.Background(), vision, 5)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(epics) != 2 {
		t.Fatalf("got %d epics, want 2", len(epics))
	}
	if epics[0].Title != "Shopping cart and checkout" {
		t.Errorf("first epic = %q", epics[0].Title)
	}

	succ, fail := a.Stats()
	if succ != 1 || fail != 0 {
		t.Errorf("stats = %d/%d, want 1/0", succ, fail)
	}
}

func TestEpicAgentTruncatesToMax(t *testing.T) {
	provider := &fakeProvider{responses: []string{goodEpicsJSON}}
	a := NewEpicAgent(testConfig(), provider, testRegistry(t), nil, nil)

	epics, err := a.Generate(context.Background(), vision, 1)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(epics) != 1 {
		t.Errorf("got %d epics, want 1", len(epics))
	}
}

func TestEpicAgentFallsBackToListScraping(t *testing.T) {
	raw := `I could not produce JSON, but here is the plan:
1. Shopping cart and checkout for collecting and paying for weekly grocery orders
2. Weekly order scheduling so families lock in a recurring delivery slot
3. Tiny`
	provider := &fakeProvider{responses: []string{raw}}
	a := NewEpicAgent(testConfig(), provider, testRegistry(t), nil, nil)

	epics, err := a.Generate(context.Background(), vision, 5)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	// The third item is too short to survive normalization.
	if len(epics) != 2 {
		t.Fatalf("got %d epics, want 2: %+v", len(epics), epics)
	}
	if !strings.HasPrefix(epics[0].Title, "Shopping cart") {
		t.Errorf("first scraped epic = %q", epics[0].Title)
	}
}

func TestEpicAgentMalformedResponseYieldsNothing(t *testing.T) {
	provider := &fakeProvider{responses: []string{"no structure at all"}}
	a := NewEpicAgent(testConfig(), provider, testRegistry(t), nil, nil)

	epics, err := a.Generate(context.Background(), vision, 5)
	if err != nil {
		t.Fatalf("malformed response must not error: %v", err)
	}
	if len(epics) != 0 {
		t.Errorf("got %d epics from garbage, want 0", len(epics))
	}
}

func TestAgentCircuitBreakerOpens(t *testing.T) {
	boom := &llm.Error{Kind: llm.ErrServer, Msg: "upstream exploded"}
	provider := &fakeProvider{
		responses: []string{"", "", "", ""},
		errs:      []error{boom, boom, boom, boom},
	}
	a := NewEpicAgent(testConfig(), provider, testRegistry(t), nil, nil)

	for i := 0; i < 3; i++ {
		if _, err := a.Generate(context.Background(), vision, 5); err == nil {
			t.Fatalf("call %d: expected error", i)
		}
	}

	// Breaker is open now: the provider must not be reached again.
	before := provider.callCount()
	_, err := a.Generate(context.Background(), vision, 5)
	var cbErr *CircuitBreakerError
	if !errors.As(err, &cbErr) {
		t.Fatalf("expected CircuitBreakerError, got %v", err)
	}
	if provider.callCount() != before {
		t.Error("open breaker still let a call through")
	}
	if !errors.Is(err, ErrAgent) {
		t.Error("CircuitBreakerError does not match ErrAgent")
	}
}

func TestAgentTimeoutClassification(t *testing.T) {
	provider := &fakeProvider{
		responses: []string{""},
		errs:      []error{context.DeadlineExceeded},
	}
	a := NewEpicAgent(testConfig(), provider, testRegistry(t), nil, nil)

	_, err := a.Generate(context.Background(), vision, 5)
	var te *TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("expected TimeoutError, got %v", err)
	}
	if !errors.Is(err, ErrAgent) {
		t.Error("TimeoutError does not match ErrAgent")
	}
}

func TestAgentCommunicationError(t *testing.T) {
	provider := &fakeProvider{
		responses: []string{""},
		errs:      []error{&llm.Error{Kind: llm.ErrAuth, Msg: "bad key"}},
	}
	a := NewEpicAgent(testConfig(), provider, testRegistry(t), nil, nil)

	_, err := a.Generate(context.Background(), vision, 5)
	var ce *CommunicationError
	if !errors.As(err, &ce) {
		t.Fatalf("expected CommunicationError, got %v", err)
	}
	if !errors.Is(err, ErrAgent) {
		t.Error("CommunicationError does not match ErrAgent")
	}
}

func TestFeatureAgentApprovesGoodCandidate(t *testing.T) {
	provider := &fakeProvider{responses: []string{"[" + goodFeatureJSON + "]"}}
	a := NewFeatureAgent(testConfig(), provider, testRegistry(t), nil, nil)

	features, err := a.Generate(context.Background(), parentEpic(), vision, 1)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(features) != 1 {
		t.Fatalf("got %d features, want 1", len(features))
	}
	if provider.callCount() != 1 {
		t.Errorf("approved candidate triggered %d calls, want 1", provider.callCount())
	}
}

func TestFeatureAgentImprovesRejectedCandidate(t *testing.T) {
	provider := &fakeProvider{responses: []string{
		"[" + poorFeatureJSON + "]", // initial generation, rejected by the gate
		goodFeatureJSON,             // improvement round
	}}
	a := NewFeatureAgent(testConfig(), provider, testRegistry(t), nil, nil)

	features, err := a.Generate(context.Background(), parentEpic(), vision, 1)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(features) != 1 {
		t.Fatalf("got %d features, want 1", len(features))
	}
	if features[0].Title != "Persistent shopping cart" {
		t.Errorf("kept the unimproved candidate: %q", features[0].Title)
	}

	if provider.callCount() != 2 {
		t.Fatalf("expected 2 calls (generate + improve), got %d", provider.callCount())
	}
	improvePrompt := provider.calls[1].user
	if !strings.Contains(improvePrompt, "rejected by a quality review") {
		t.Errorf("improvement prompt missing rejection context:\n%s", improvePrompt)
	}
	if !strings.Contains(improvePrompt, "Cart page") {
		t.Errorf("improvement prompt missing the rejected candidate:\n%s", improvePrompt)
	}
}

func TestFeatureAgentBackfillsShortfall(t *testing.T) {
	provider := &fakeProvider{responses: []string{
		"[" + goodFeatureJSON + "]", // one survivor, target is two
		"[" + strings.Replace(goodFeatureJSON, "Persistent shopping cart", "Cart sharing for households", 1) + "]",
	}}
	a := NewFeatureAgent(testConfig(), provider, testRegistry(t), nil, nil)

	features, err := a.Generate(context.Background(), parentEpic(), vision, 2)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(features) != 2 {
		t.Fatalf("got %d features, want 2", len(features))
	}

	backfillPrompt := provider.calls[1].user
	if !strings.Contains(backfillPrompt, "Persistent shopping cart") {
		t.Errorf("backfill prompt does not exclude existing titles:\n%s", backfillPrompt)
	}
}

func TestFeatureAgentGivesUpCleanly(t *testing.T) {
	// Every response is the same poor candidate: the improve rounds and the
	// backfill round all fail the gate, so nothing is emitted.
	provider := &fakeProvider{responses: []string{"[" + poorFeatureJSON + "]"}}
	a := NewFeatureAgent(testConfig(), provider, testRegistry(t), nil, nil)

	features, err := a.Generate(context.Background(), parentEpic(), vision, 1)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(features) != 0 {
		t.Errorf("got %d features from an unsalvageable candidate, want 0", len(features))
	}
}

// progressRecorder captures stage events so tests can assert what a user
// would see during a run.
type progressRecorder struct {
	mu      sync.Mutex
	items   []string
	retries []string
	skips   []string
}

func (p *progressRecorder) ShowItem(kind, title string, score int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.items = append(p.items, fmt.Sprintf("%s %s [%d]", kind, title, score))
}

func (p *progressRecorder) ShowRetry(kind string, attempt, max, score int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.retries = append(p.retries, fmt.Sprintf("%s %d/%d [%d]", kind, attempt, max, score))
}

func (p *progressRecorder) ShowSkip(kind, reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.skips = append(p.skips, fmt.Sprintf("%s %s", kind, reason))
}

func TestFeatureAgentReportsRetryThenApprovedScore(t *testing.T) {
	provider := &fakeProvider{responses: []string{
		"[" + poorFeatureJSON + "]", // rejected by the gate
		goodFeatureJSON,             // improvement round, approved
	}}
	rec := &progressRecorder{}
	a := NewFeatureAgent(testConfig(), provider, testRegistry(t), rec, nil)

	if _, err := a.Generate(context.Background(), parentEpic(), vision, 1); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if len(rec.retries) != 1 {
		t.Fatalf("recorded %d retries, want 1: %v", len(rec.retries), rec.retries)
	}
	if !strings.HasPrefix(rec.retries[0], "feature ") {
		t.Errorf("retry event = %q", rec.retries[0])
	}
	if len(rec.items) != 1 {
		t.Fatalf("recorded %d items, want 1: %v", len(rec.items), rec.items)
	}
	if !strings.Contains(rec.items[0], "Persistent shopping cart") {
		t.Errorf("item event = %q", rec.items[0])
	}
	if strings.Contains(rec.items[0], "[-1]") {
		t.Errorf("approved item reported without its score: %q", rec.items[0])
	}
}

func TestFeatureAgentReportsSkippedCandidate(t *testing.T) {
	provider := &fakeProvider{responses: []string{"[" + poorFeatureJSON + "]"}}
	rec := &progressRecorder{}
	a := NewFeatureAgent(testConfig(), provider, testRegistry(t), rec, nil)

	if _, err := a.Generate(context.Background(), parentEpic(), vision, 1); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(rec.items) != 0 {
		t.Errorf("unsalvageable candidate reported as kept: %v", rec.items)
	}
	if len(rec.skips) == 0 {
		t.Fatal("no skip event recorded")
	}
	if !strings.HasPrefix(rec.skips[0], "feature scored ") {
		t.Errorf("skip event = %q", rec.skips[0])
	}
}

func TestStoryAgentHonorsCriteriaPolicy(t *testing.T) {
	storyJSON := `[{
	  "title": "Restore saved shopping cart",
	  "description": "Returning shoppers find their grocery cart exactly as they left it, so that the weekly order can be built across several sessions.",
	  "user_story": "As a shopper, I want my cart restored when I return so that I can keep building my weekly grocery order.",
	  "priority": "High",
	  "acceptance_criteria": [
	    "Given a signed-in shopper with a saved cart, when they return, then the cart contents are restored",
	    "Given a cart older than 30 days, when the shopper returns, then the cart is shown as expired",
	    "Given an item that went out of stock, when the cart is restored, then the item is flagged"
	  ],
	  "story_points": 3,
	  "user_type": "shopper",
	  "category": "backend"
	}]`
	provider := &fakeProvider{responses: []string{storyJSON}}
	a := NewStoryAgent(testConfig(), provider, testRegistry(t), nil, nil)

	feature := workitem.Feature{
		Title:       "Persistent shopping cart",
		Description: "The shopping cart survives sessions so families can build their grocery order over several days before checkout.",
	}
	stories, err := a.Generate(context.Background(), feature, vision, 1)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(stories) != 1 {
		t.Fatalf("got %d stories, want 1", len(stories))
	}
	if len(stories[0].DefinitionOfReady) == 0 {
		t.Error("story not normalized (missing DoR)")
	}

	// The rendered system prompt carries the configured criteria bounds.
	system := provider.calls[0].system
	if !strings.Contains(system, "3") || !strings.Contains(system, "8") {
		t.Errorf("story system prompt missing criteria bounds:\n%s", system)
	}
}

func TestDecodeList(t *testing.T) {
	type item struct {
		Title string `json:"title"`
	}

	t.Run("array", func(t *testing.T) {
		items, ok := decodeList[item](`[{"title": "a"}, {"title": "b"}]`)
		if !ok || len(items) != 2 {
			t.Errorf("decodeList = %v, %v", items, ok)
		}
	})

	t.Run("bare object becomes one-element list", func(t *testing.T) {
		items, ok := decodeList[item](`{"title": "a"}`)
		if !ok || len(items) != 1 || items[0].Title != "a" {
			t.Errorf("decodeList = %v, %v", items, ok)
		}
	})

	t.Run("fenced", func(t *testing.T) {
		items, ok := decodeList[item]("```json\n[{\"title\": \"a\"}]\n```")
		if !ok || len(items) != 1 {
			t.Errorf("decodeList = %v, %v", items, ok)
		}
	})

	t.Run("garbage", func(t *testing.T) {
		if _, ok := decodeList[item]("not json"); ok {
			t.Error("decodeList accepted garbage")
		}
	})
}

func TestDecodeOne(t *testing.T) {
	type item struct {
		Title string `json:"title"`
	}

	one, ok := decodeOne[item](`{"title": "a"}`)
	if !ok || one.Title != "a" {
		t.Errorf("decodeOne = %+v, %v", one, ok)
	}

	first, ok := decodeOne[item](`[{"title": "a"}, {"title": "b"}]`)
	if !ok || first.Title != "a" {
		t.Errorf("decodeOne over list = %+v, %v", first, ok)
	}

	if _, ok := decodeOne[item](""); ok {
		t.Error("decodeOne accepted empty input")
	}
}
