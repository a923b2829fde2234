package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// WorkflowRuns wraps the GitHub Actions runs API. The scheduler uses
// the last successful run timestamp to close any gap left by a skipped
// or failed scheduled run.
type WorkflowRuns struct {
	http  *resty.Client
	repo  string
	token string
}

// NewWorkflowRuns builds a lookup for owner/name repo. Token may be
// empty for public repos.
func NewWorkflowRuns(repo, token string) *WorkflowRuns {
	return &WorkflowRuns{
		http:  resty.New().SetTimeout(30 * time.Second),
		repo:  repo,
		token: token,
	}
}

type workflowRunsResponse struct {
	WorkflowRuns []struct {
		Name      string    `json:"name"`
		CreatedAt time.Time `json:"created_at"`
	} `json:"workflow_runs"`
}

// LastSuccessfulRun returns the creation time of the most recent
// successful run of the named workflow. A missing run is reported as a
// zero time with a nil error.
func (w *WorkflowRuns) LastSuccessfulRun(ctx context.Context, workflowName string) (time.Time, error) {
	req := w.http.R().
		SetContext(ctx).
		SetQueryParam("status", "success").
		SetQueryParam("per_page", "30")
	if w.token != "" {
		req.SetHeader("Authorization", "Bearer "+w.token)
	}

	var body workflowRunsResponse
	resp, err := req.SetResult(&body).
		Get(fmt.Sprintf("https://api.github.com/repos/%s/actions/runs", w.repo))
	if err != nil {
		return time.Time{}, fmt.Errorf("ingest: fetch workflow runs: %w", err)
	}
	if resp.IsError() {
		return time.Time{}, fmt.Errorf("ingest: workflow runs returned status %d", resp.StatusCode())
	}

	for _, run := range body.WorkflowRuns {
		if run.Name == workflowName {
			return run.CreatedAt, nil
		}
	}
	return time.Time{}, nil
}
