package evalclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	validator "github.com/go-playground/validator/v10"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/eval-hub/eval-dashboard/internal/executioncontext"
	"github.com/eval-hub/eval-dashboard/internal/serialization"
	"github.com/eval-hub/eval-dashboard/internal/validation"
)

const (
	// defaultMaxResponseSize limits the size of HTTP response bodies to prevent OOM.
	defaultMaxResponseSize = 10 * 1024 * 1024 // 10MB

	requestIDHeader = "X-Request-ID"
	apiPrefix       = "/api/v1"
)

// Config configures the API client. Only BaseURL is required.
type Config struct {
	BaseURL string
	// HTTPClient replaces the default client, its Jar is replaced when nil
	HTTPClient *http.Client
	Timeout    time.Duration
	TokenStore TokenStore
	Navigator  Navigator
	LoginPath  string
	// AuthPaths are the pages on which a 401 does not trigger a redirect
	AuthPaths        []string
	Hooks            []Hook
	MaxResponseBytes int64
	Logger           *slog.Logger
	Validator        *validator.Validate
}

// Client is the single HTTP client of the application. It sends the session cookie on
// every request, attaches the bearer token when one is stored and redirects to the login
// page when the server answers 401.
type Client struct {
	httpClient       *http.Client
	baseURL          string
	tokens           TokenStore
	hook             Hook
	unauthorized     *unauthorizedHook
	validate         *validator.Validate
	logger           *slog.Logger
	maxResponseBytes int64
}

func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("evalclient: base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("evalclient: invalid base URL: %w", err)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.TokenStore == nil {
		cfg.TokenStore = NewMemoryTokenStore()
	}
	if cfg.Navigator == nil {
		cfg.Navigator = NewPathNavigator("/")
	}
	if cfg.LoginPath == "" {
		cfg.LoginPath = "/login"
	}
	if cfg.AuthPaths == nil {
		cfg.AuthPaths = []string{"/login", "/register"}
	}
	if cfg.MaxResponseBytes <= 0 {
		cfg.MaxResponseBytes = defaultMaxResponseSize
	}
	if cfg.Validator == nil {
		v, err := validation.NewValidator()
		if err != nil {
			return nil, err
		}
		cfg.Validator = v
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   cfg.Timeout,
		}
	}
	if httpClient.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		httpClient.Jar = jar
	}

	unauthorized := &unauthorizedHook{
		tokens:    cfg.TokenStore,
		navigator: cfg.Navigator,
		loginPath: cfg.LoginPath,
		authPaths: cfg.AuthPaths,
		logger:    cfg.Logger,
	}
	hooks := []Hook{
		&credentialsHook{tokens: cfg.TokenStore},
		&loggingHook{logger: cfg.Logger},
		unauthorized,
	}
	hooks = append(hooks, cfg.Hooks...)

	return &Client{
		httpClient:       httpClient,
		baseURL:          strings.TrimSuffix(cfg.BaseURL, "/"),
		tokens:           cfg.TokenStore,
		hook:             combineHooks(hooks),
		unauthorized:     unauthorized,
		validate:         cfg.Validator,
		logger:           cfg.Logger,
		maxResponseBytes: cfg.MaxResponseBytes,
	}, nil
}

// OnUnauthorized registers fn to be called after the client handled an expired session.
func (c *Client) OnUnauthorized(fn func()) {
	c.unauthorized.addListener(fn)
}

// Validator returns the validator used for responses, shared with the managers.
func (c *Client) Validator() *validator.Validate {
	return c.validate
}

// request represents an HTTP request to be made.
type request struct {
	method string
	path   string
	query  url.Values
	body   any
}

// do executes a single HTTP request and returns the response body of a successful
// response. Failures to reach the server are returned as *ConnectivityError, error
// responses as *APIError.
func (c *Client) do(ctx *executioncontext.ExecutionContext, req *request) ([]byte, error) {
	u := c.baseURL + apiPrefix + req.path
	if len(req.query) > 0 {
		u += "?" + req.query.Encode()
	}

	var bodyReader io.Reader
	if req.body != nil {
		bodyBytes, err := json.Marshal(req.body)
		if err != nil {
			return nil, fmt.Errorf("evalclient: failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	httpReq, err := http.NewRequestWithContext(ctx.Ctx, req.method, u, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("evalclient: failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(requestIDHeader, ctx.RequestID)

	if err := c.hook.BeforeRequest(ctx.Ctx, httpReq); err != nil {
		return nil, fmt.Errorf("evalclient: hook BeforeRequest failed: %w", err)
	}

	startTime := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	c.hook.AfterResponse(ctx.Ctx, httpReq, resp, time.Since(startTime), err)

	if err != nil {
		// a cancelled caller context is not a connectivity problem
		if ctxErr := ctx.Ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &ConnectivityError{Method: req.method, Path: req.path, Err: err}
	}
	defer resp.Body.Close()

	// Read response body with size limit to prevent OOM
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponseBytes+1))
	if err != nil {
		return nil, &ConnectivityError{Method: req.method, Path: req.path, Err: err}
	}
	if int64(len(respBody)) > c.maxResponseBytes {
		return nil, fmt.Errorf("evalclient: response body exceeded maximum size of %d bytes (request_id=%s)", c.maxResponseBytes, ctx.RequestID)
	}

	if resp.StatusCode >= 400 {
		return nil, &APIError{
			StatusCode:   resp.StatusCode,
			Method:       req.method,
			Path:         req.path,
			RequestID:    ctx.RequestID,
			Detail:       parseErrorDetail(respBody),
			ResponseBody: string(respBody),
		}
	}
	return respBody, nil
}

// getOne fetches and validates a single resource.
func getOne[T any](c *Client, ctx *executioncontext.ExecutionContext, req *request) (*T, error) {
	body, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	var result T
	if err := serialization.Unmarshal(c.validate, ctx, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// getList fetches and validates a list of resources.
func getList[T any](c *Client, ctx *executioncontext.ExecutionContext, req *request) ([]T, error) {
	body, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	return serialization.UnmarshalList[T](c.validate, ctx, body)
}

func (c *Client) delete(ctx *executioncontext.ExecutionContext, path string) error {
	_, err := c.do(ctx, &request{method: http.MethodDelete, path: path})
	return err
}

func resourcePath(collection string, id string) string {
	return "/" + collection + "/" + url.PathEscape(id)
}
