package evalclient

import (
	"net/http"

	"github.com/eval-hub/eval-dashboard/internal/executioncontext"
	"github.com/eval-hub/eval-dashboard/pkg/api"
)

const testCasesCollection = "test-cases"

func (c *Client) ListTestCases(ctx *executioncontext.ExecutionContext) ([]api.TestCase, error) {
	return getList[api.TestCase](c, ctx, &request{method: http.MethodGet, path: "/" + testCasesCollection})
}

func (c *Client) GetTestCase(ctx *executioncontext.ExecutionContext, id string) (*api.TestCase, error) {
	return getOne[api.TestCase](c, ctx, &request{method: http.MethodGet, path: resourcePath(testCasesCollection, id)})
}

func (c *Client) CreateTestCase(ctx *executioncontext.ExecutionContext, config *api.TestCaseConfig) (*api.TestCase, error) {
	return getOne[api.TestCase](c, ctx, &request{method: http.MethodPost, path: "/" + testCasesCollection, body: config})
}

func (c *Client) UpdateTestCase(ctx *executioncontext.ExecutionContext, id string, patch *api.TestCasePatch) (*api.TestCase, error) {
	return getOne[api.TestCase](c, ctx, &request{method: http.MethodPut, path: resourcePath(testCasesCollection, id), body: patch})
}

func (c *Client) DeleteTestCase(ctx *executioncontext.ExecutionContext, id string) error {
	return c.delete(ctx, resourcePath(testCasesCollection, id))
}
