package ado

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/backlogsmith/backlogsmith/internal/pipeline"
	"github.com/backlogsmith/backlogsmith/internal/retry"
	"github.com/backlogsmith/backlogsmith/internal/workitem"
)

// testClient points a client at a local server with fast retries.
func testClient(baseURL, areaPath string) *Client {
	auth := base64.StdEncoding.EncodeToString([]byte(":" + "pat-test"))
	return &Client{
		httpClient: &http.Client{Timeout: 5 * time.Second},
		baseURL:    baseURL,
		authHeader: "Basic " + auth,
		areaPath:   areaPath,
		retryCfg:   retry.Config{MaxAttempts: 3, BaseDelay: time.Millisecond},
	}
}

func decodePatch(t *testing.T, r *http.Request) []patchOp {
	t.Helper()
	var doc []patchOp
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		t.Fatalf("decode patch document: %v", err)
	}
	return doc
}

func findOp(doc []patchOp, path string) (patchOp, bool) {
	for _, op := range doc {
		if op.Path == path {
			return op, true
		}
	}
	return patchOp{}, false
}

func TestCreateWorkItem(t *testing.T) {
	var gotReq *http.Request
	var gotDoc []patchOp
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReq = r
		gotDoc = decodePatch(t, r)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": 42, "url": "http://example/42"}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL, "Project\\Team")
	id, err := c.CreateWorkItem(context.Background(), "User Story", map[string]any{
		"System.Title":       "Restore saved cart",
		"System.Description": "desc",
	}, 7)
	if err != nil {
		t.Fatalf("CreateWorkItem: %v", err)
	}
	if id != 42 {
		t.Errorf("id = %d, want 42", id)
	}

	if gotReq.Method != http.MethodPost {
		t.Errorf("method = %s", gotReq.Method)
	}
	if gotReq.URL.Path != "/_apis/wit/workitems/$User Story" {
		t.Errorf("path = %q", gotReq.URL.Path)
	}
	if v := gotReq.URL.Query().Get("api-version"); v != "7.1" {
		t.Errorf("api-version = %q", v)
	}
	if ct := gotReq.Header.Get("Content-Type"); ct != "application/json-patch+json" {
		t.Errorf("content type = %q", ct)
	}
	wantAuth := "Basic " + base64.StdEncoding.EncodeToString([]byte(":pat-test"))
	if auth := gotReq.Header.Get("Authorization"); auth != wantAuth {
		t.Errorf("authorization = %q", auth)
	}

	title, ok := findOp(gotDoc, "/fields/System.Title")
	if !ok || title.Op != "add" || title.Value != "Restore saved cart" {
		t.Errorf("title op = %+v", title)
	}
	if area, ok := findOp(gotDoc, "/fields/System.AreaPath"); !ok || area.Value != "Project\\Team" {
		t.Errorf("area path op = %+v", area)
	}
	rel, ok := findOp(gotDoc, "/relations/-")
	if !ok {
		t.Fatal("parent relation missing")
	}
	relValue, _ := rel.Value.(map[string]any)
	if relValue["rel"] != "System.LinkTypes.Hierarchy-Reverse" {
		t.Errorf("rel = %v", relValue["rel"])
	}
	if u, _ := relValue["url"].(string); !strings.HasSuffix(u, "/_apis/wit/workItems/7") {
		t.Errorf("parent url = %q", u)
	}
}

func TestCreateWorkItemNoParentNoArea(t *testing.T) {
	var gotDoc []patchOp
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotDoc = decodePatch(t, r)
		w.Write([]byte(`{"id": 1}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL, "")
	if _, err := c.CreateWorkItem(context.Background(), "Epic", map[string]any{"System.Title": "t"}, 0); err != nil {
		t.Fatalf("CreateWorkItem: %v", err)
	}
	if _, ok := findOp(gotDoc, "/relations/-"); ok {
		t.Error("unparented item must not carry a relation op")
	}
	if _, ok := findOp(gotDoc, "/fields/System.AreaPath"); ok {
		t.Error("empty area path must not be sent")
	}
}

func TestCreateWorkItemRetriesServerError(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			http.Error(w, "transient", http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"id": 5}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL, "")
	id, err := c.CreateWorkItem(context.Background(), "Task", map[string]any{"System.Title": "t"}, 0)
	if err != nil {
		t.Fatalf("CreateWorkItem: %v", err)
	}
	if id != 5 {
		t.Errorf("id = %d, want 5", id)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestCreateWorkItemNoRetryOnBadRequest(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "field does not exist", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := testClient(srv.URL, "")
	_, err := c.CreateWorkItem(context.Background(), "Task", map[string]any{"System.Title": "t"}, 0)
	if err == nil {
		t.Fatal("expected error for 400 response")
	}
	if calls != 1 {
		t.Errorf("bad request was retried: %d calls", calls)
	}
	if !strings.Contains(err.Error(), "400") {
		t.Errorf("error does not carry the status: %v", err)
	}
}

func TestHTTPErrorRetryable(t *testing.T) {
	tests := []struct {
		status int
		want   bool
	}{
		{429, true},
		{500, true},
		{503, true},
		{400, false},
		{401, false},
		{404, false},
	}
	for _, tt := range tests {
		e := &httpError{status: tt.status}
		if got := e.Retryable(); got != tt.want {
			t.Errorf("Retryable(%d) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestPriorityValue(t *testing.T) {
	tests := []struct {
		p    workitem.Priority
		want int
	}{
		{workitem.PriorityHigh, 1},
		{workitem.PriorityMedium, 2},
		{workitem.PriorityLow, 3},
		{"", 2},
	}
	for _, tt := range tests {
		if got := priorityValue(tt.p); got != tt.want {
			t.Errorf("priorityValue(%q) = %d, want %d", tt.p, got, tt.want)
		}
	}
}

func TestHTMLList(t *testing.T) {
	if got := htmlList(nil); got != "" {
		t.Errorf("htmlList(nil) = %q, want empty", got)
	}
	got := htmlList([]string{"a", "b"})
	if got != "<ul><li>a</li><li>b</li></ul>" {
		t.Errorf("htmlList = %q", got)
	}
}

func pushFixture() *pipeline.Backlog {
	return &pipeline.Backlog{
		Epics: []pipeline.EpicResult{
			{
				Epic: workitem.Epic{Title: "Broken epic", Priority: workitem.PriorityHigh},
				Features: []pipeline.FeatureResult{{
					Feature: workitem.Feature{Title: "Orphaned feature"},
				}},
			},
			{
				Epic: workitem.Epic{Title: "Cart epic", Priority: workitem.PriorityHigh},
				Features: []pipeline.FeatureResult{{
					Feature: workitem.Feature{Title: "Persistent cart", Priority: workitem.PriorityHigh},
					Stories: []pipeline.StoryResult{{
						UserStory: workitem.UserStory{
							Title:    "Restore saved cart",
							Story:    "As a shopper, I want my cart restored so that I can keep shopping.",
							Priority: workitem.PriorityHigh,
						},
						Tasks: []workitem.Task{
							{Title: "Implement restore endpoint", Priority: workitem.PriorityHigh, TimeEstimate: 6},
						},
						TestCases: []workitem.TestCase{
							{Title: "Cart survives login", ExpectedResult: "cart intact"},
						},
					}},
				}},
			},
		},
	}
}

func TestPushBacklogSkipsFailedSubtree(t *testing.T) {
	nextID := 0
	var parents []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		doc := decodePatch(t, r)
		if title, ok := findOp(doc, "/fields/System.Title"); ok && title.Value == "Broken epic" {
			http.Error(w, "rejected", http.StatusBadRequest)
			return
		}
		if rel, ok := findOp(doc, "/relations/-"); ok {
			v, _ := rel.Value.(map[string]any)
			u, _ := v["url"].(string)
			parents = append(parents, u)
		}
		nextID++
		json.NewEncoder(w).Encode(workItemResponse{ID: nextID})
	}))
	defer srv.Close()

	c := testClient(srv.URL, "")
	res, err := c.PushBacklog(context.Background(), pushFixture(), io.Discard)
	if err != nil {
		t.Fatalf("PushBacklog: %v", err)
	}

	// The broken epic fails and its feature is never attempted; the healthy
	// epic's whole subtree lands.
	if res.Failed != 1 {
		t.Errorf("Failed = %d, want 1", res.Failed)
	}
	if res.Created != 5 {
		t.Errorf("Created = %d, want 5 (epic, feature, story, task, test case)", res.Created)
	}

	// Every child was linked under the id its parent got.
	if len(parents) != 4 {
		t.Fatalf("parent links = %d, want 4", len(parents))
	}
	wantSuffixes := []string{
		"/_apis/wit/workItems/1", // feature under epic
		"/_apis/wit/workItems/2", // story under feature
		"/_apis/wit/workItems/3", // task under story
		"/_apis/wit/workItems/3", // test case under story
	}
	for i, want := range wantSuffixes {
		if !strings.HasSuffix(parents[i], want) {
			t.Errorf("parent link %d = %q, want suffix %q", i, parents[i], want)
		}
	}
}

func TestPushBacklogNothingCreated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	c := testClient(srv.URL, "")
	res, err := c.PushBacklog(context.Background(), pushFixture(), io.Discard)
	if err == nil {
		t.Fatal("expected error when nothing was created")
	}
	if res.Created != 0 || res.Failed != 2 {
		t.Errorf("result = %+v, want 0 created, 2 failed", res)
	}
}

func TestStoryFieldsCarryAcceptanceCriteria(t *testing.T) {
	s := workitem.UserStory{
		Title:              "Restore saved cart",
		Story:              "As a shopper, I want my cart restored so that I can keep shopping.",
		Description:        "Returning shoppers see their saved cart.",
		Priority:           workitem.PriorityHigh,
		StoryPoints:        3,
		AcceptanceCriteria: []string{"Given a cart, when I return, then it is restored"},
		Category:           "backend",
	}
	fields := storyFields(s)
	if fields["Microsoft.VSTS.Common.Priority"] != 1 {
		t.Errorf("priority = %v", fields["Microsoft.VSTS.Common.Priority"])
	}
	ac, _ := fields["Microsoft.VSTS.Common.AcceptanceCriteria"].(string)
	if !strings.Contains(ac, "then it is restored") {
		t.Errorf("acceptance criteria = %q", ac)
	}
	desc, _ := fields["System.Description"].(string)
	if !strings.Contains(desc, s.Story) || !strings.Contains(desc, s.Description) {
		t.Errorf("description = %q", desc)
	}
	if fields["System.Tags"] != "backend" {
		t.Errorf("tags = %v", fields["System.Tags"])
	}
}
