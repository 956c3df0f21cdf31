package evalclient

import (
	"net/http"
	"net/url"

	"github.com/eval-hub/eval-dashboard/internal/executioncontext"
	"github.com/eval-hub/eval-dashboard/pkg/api"
)

const (
	datasetsCollection        = "datasets"
	datasetVersionsCollection = "dataset-versions"
)

func (c *Client) ListDatasets(ctx *executioncontext.ExecutionContext) ([]api.Dataset, error) {
	return getList[api.Dataset](c, ctx, &request{method: http.MethodGet, path: "/" + datasetsCollection})
}

func (c *Client) GetDataset(ctx *executioncontext.ExecutionContext, id string) (*api.Dataset, error) {
	return getOne[api.Dataset](c, ctx, &request{method: http.MethodGet, path: resourcePath(datasetsCollection, id)})
}

func (c *Client) CreateDataset(ctx *executioncontext.ExecutionContext, config *api.DatasetConfig) (*api.Dataset, error) {
	return getOne[api.Dataset](c, ctx, &request{method: http.MethodPost, path: "/" + datasetsCollection, body: config})
}

func (c *Client) UpdateDataset(ctx *executioncontext.ExecutionContext, id string, patch *api.DatasetPatch) (*api.Dataset, error) {
	return getOne[api.Dataset](c, ctx, &request{method: http.MethodPut, path: resourcePath(datasetsCollection, id), body: patch})
}

func (c *Client) DeleteDataset(ctx *executioncontext.ExecutionContext, id string) error {
	return c.delete(ctx, resourcePath(datasetsCollection, id))
}

func (c *Client) AddTestCaseToDataset(ctx *executioncontext.ExecutionContext, datasetID string, testCaseID string) error {
	_, err := c.do(ctx, &request{method: http.MethodPost, path: datasetTestCasePath(datasetID, testCaseID)})
	return err
}

func (c *Client) RemoveTestCaseFromDataset(ctx *executioncontext.ExecutionContext, datasetID string, testCaseID string) error {
	return c.delete(ctx, datasetTestCasePath(datasetID, testCaseID))
}

func datasetTestCasePath(datasetID string, testCaseID string) string {
	return resourcePath(datasetsCollection, datasetID) + "/test-cases/" + url.PathEscape(testCaseID)
}

func (c *Client) ListDatasetVersions(ctx *executioncontext.ExecutionContext, datasetID string) ([]api.DatasetVersion, error) {
	return getList[api.DatasetVersion](c, ctx, &request{method: http.MethodGet, path: resourcePath(datasetsCollection, datasetID) + "/versions"})
}

func (c *Client) GetDatasetVersion(ctx *executioncontext.ExecutionContext, id string) (*api.DatasetVersion, error) {
	return getOne[api.DatasetVersion](c, ctx, &request{method: http.MethodGet, path: resourcePath(datasetVersionsCollection, id)})
}

func (c *Client) CreateDatasetVersion(ctx *executioncontext.ExecutionContext, datasetID string, config *api.DatasetVersionConfig) (*api.DatasetVersion, error) {
	return getOne[api.DatasetVersion](c, ctx, &request{method: http.MethodPost, path: resourcePath(datasetsCollection, datasetID) + "/versions", body: config})
}
