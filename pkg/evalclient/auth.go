package evalclient

import (
	"net/http"

	"github.com/eval-hub/eval-dashboard/internal/executioncontext"
	"github.com/eval-hub/eval-dashboard/pkg/api"
)

// Login signs in. The server sets the session cookie, the access token is stored when
// the server also returns one.
func (c *Client) Login(ctx *executioncontext.ExecutionContext, credentials *api.Credentials) (*api.User, error) {
	return c.authenticate(ctx, "/auth/login", credentials)
}

func (c *Client) Register(ctx *executioncontext.ExecutionContext, registration *api.Registration) (*api.User, error) {
	return c.authenticate(ctx, "/auth/register", registration)
}

func (c *Client) authenticate(ctx *executioncontext.ExecutionContext, path string, body any) (*api.User, error) {
	resp, err := getOne[api.LoginResponse](c, ctx, &request{method: http.MethodPost, path: path, body: body})
	if err != nil {
		return nil, err
	}
	if resp.AccessToken != "" {
		if err := c.tokens.SetToken(resp.AccessToken); err != nil {
			return nil, err
		}
	}
	return &resp.User, nil
}

// Logout ends the session. The local token is cleared even when the server call fails.
func (c *Client) Logout(ctx *executioncontext.ExecutionContext) error {
	_, err := c.do(ctx, &request{method: http.MethodPost, path: "/auth/logout"})
	if cerr := c.tokens.Clear(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// Me returns the signed in user, a 401 means there is no valid session.
func (c *Client) Me(ctx *executioncontext.ExecutionContext) (*api.User, error) {
	return getOne[api.User](c, ctx, &request{method: http.MethodGet, path: "/auth/me"})
}

func (c *Client) UpdateMe(ctx *executioncontext.ExecutionContext, patch *api.UserPatch) (*api.User, error) {
	return getOne[api.User](c, ctx, &request{method: http.MethodPut, path: "/users/me", body: patch})
}
