package evalclient

import (
	"net/http"
	"net/url"

	"github.com/eval-hub/eval-dashboard/internal/executioncontext"
	"github.com/eval-hub/eval-dashboard/pkg/api"
)

const (
	experimentsCollection = "experiments"
	runsCollection        = "runs"
)

func (c *Client) ListExperiments(ctx *executioncontext.ExecutionContext) ([]api.Experiment, error) {
	return getList[api.Experiment](c, ctx, &request{method: http.MethodGet, path: "/" + experimentsCollection})
}

func (c *Client) GetExperiment(ctx *executioncontext.ExecutionContext, id string) (*api.Experiment, error) {
	return getOne[api.Experiment](c, ctx, &request{method: http.MethodGet, path: resourcePath(experimentsCollection, id)})
}

func (c *Client) CreateExperiment(ctx *executioncontext.ExecutionContext, config *api.ExperimentConfig) (*api.Experiment, error) {
	return getOne[api.Experiment](c, ctx, &request{method: http.MethodPost, path: "/" + experimentsCollection, body: config})
}

func (c *Client) UpdateExperiment(ctx *executioncontext.ExecutionContext, id string, patch *api.ExperimentPatch) (*api.Experiment, error) {
	return getOne[api.Experiment](c, ctx, &request{method: http.MethodPut, path: resourcePath(experimentsCollection, id), body: patch})
}

func (c *Client) DeleteExperiment(ctx *executioncontext.ExecutionContext, id string) error {
	return c.delete(ctx, resourcePath(experimentsCollection, id))
}

// ListRuns lists the runs, limited to one experiment when experimentID is not empty.
func (c *Client) ListRuns(ctx *executioncontext.ExecutionContext, experimentID string) ([]api.Run, error) {
	var query url.Values
	if experimentID != "" {
		query = url.Values{"experiment_id": []string{experimentID}}
	}
	return getList[api.Run](c, ctx, &request{method: http.MethodGet, path: "/" + runsCollection, query: query})
}

func (c *Client) GetRun(ctx *executioncontext.ExecutionContext, id string) (*api.Run, error) {
	return getOne[api.Run](c, ctx, &request{method: http.MethodGet, path: resourcePath(runsCollection, id)})
}

func (c *Client) DeleteRun(ctx *executioncontext.ExecutionContext, id string) error {
	return c.delete(ctx, resourcePath(runsCollection, id))
}

func (c *Client) ListTestResults(ctx *executioncontext.ExecutionContext, runID string) ([]api.TestResult, error) {
	return getList[api.TestResult](c, ctx, &request{method: http.MethodGet, path: resourcePath(runsCollection, runID) + "/results"})
}
