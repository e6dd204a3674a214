// Package ado pushes a generated backlog to Azure DevOps as work items.
// It speaks the REST work-item API directly: JSON-patch documents, PAT
// basic auth, and parent links to build the Epic > Feature > User Story >
// Task / Test Case hierarchy.
package ado

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/backlogsmith/backlogsmith/internal/retry"
)

const apiVersion = "7.1"

// patchOp is one entry of a JSON-patch document.
type patchOp struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value"`
}

// workItemResponse is the slice of the create response we need.
type workItemResponse struct {
	ID  int    `json:"id"`
	URL string `json:"url"`
}

// Client talks to one Azure DevOps project.
type Client struct {
	httpClient *http.Client
	baseURL    string // https://dev.azure.com/{org}/{project}
	authHeader string
	areaPath   string
	retryCfg   retry.Config
}

// NewClient builds a client for dev.azure.com. The token is a PAT with
// work-item write scope.
func NewClient(organization, project, areaPath, token string) *Client {
	auth := base64.StdEncoding.EncodeToString([]byte(":" + token))
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL: fmt.Sprintf("https://dev.azure.com/%s/%s",
			url.PathEscape(organization), url.PathEscape(project)),
		authHeader: "Basic " + auth,
		areaPath:   areaPath,
		retryCfg: retry.Config{
			MaxAttempts: 3,
			BaseDelay:   time.Second,
		},
	}
}

// CreateWorkItem creates one work item of the given type (e.g. "Epic",
// "User Story") and returns its id. parentID links the item under an
// existing work item; 0 means no parent.
func (c *Client) CreateWorkItem(ctx context.Context, itemType string, fields map[string]any, parentID int) (int, error) {
	doc := make([]patchOp, 0, len(fields)+2)
	for path, value := range fields {
		doc = append(doc, patchOp{Op: "add", Path: "/fields/" + path, Value: value})
	}
	if c.areaPath != "" {
		doc = append(doc, patchOp{Op: "add", Path: "/fields/System.AreaPath", Value: c.areaPath})
	}
	if parentID > 0 {
		doc = append(doc, patchOp{
			Op:   "add",
			Path: "/relations/-",
			Value: map[string]any{
				"rel": "System.LinkTypes.Hierarchy-Reverse",
				"url": fmt.Sprintf("%s/_apis/wit/workItems/%d", c.baseURL, parentID),
			},
		})
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return 0, fmt.Errorf("marshal patch document: %w", err)
	}

	endpoint := fmt.Sprintf("%s/_apis/wit/workitems/$%s?api-version=%s",
		c.baseURL, url.PathEscape(itemType), apiVersion)

	var created workItemResponse
	result := retry.Execute(ctx, c.retryCfg, func() retry.Result {
		err := c.post(ctx, endpoint, body, &created)
		return retry.Result{Success: err == nil, Error: err}
	})
	if !result.Success {
		return 0, fmt.Errorf("create %s: %w", itemType, result.Error)
	}
	return created.ID, nil
}

// httpError carries the status so retry classification can tell 429/5xx
// from hard 4xx failures.
type httpError struct {
	status int
	body   string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("azure devops returned %d: %s", e.status, e.body)
}

// Retryable reports whether the request is worth repeating.
func (e *httpError) Retryable() bool {
	return e.status == http.StatusTooManyRequests || e.status >= 500
}

func (c *Client) post(ctx context.Context, endpoint string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json-patch+json")
	req.Header.Set("Authorization", c.authHeader)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &httpError{status: resp.StatusCode, body: truncate(string(data), 200)}
	}
	return json.Unmarshal(data, out)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
