package evalclient

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/eval-hub/eval-dashboard/internal/constants"
)

// Hook observes or changes every request made by the client. BeforeRequest may modify
// the outgoing request and abort it by returning an error. AfterResponse is called even
// when the request failed, in which case resp is nil.
type Hook interface {
	BeforeRequest(ctx context.Context, req *http.Request) error
	AfterResponse(ctx context.Context, req *http.Request, resp *http.Response, duration time.Duration, err error)
}

// combineHooks combines multiple hooks into one.
func combineHooks(hooks []Hook) Hook {
	if len(hooks) == 1 {
		return hooks[0]
	}
	return &combinedHook{hooks: hooks}
}

// combinedHook calls the hooks in order.
type combinedHook struct {
	hooks []Hook
}

func (c *combinedHook) BeforeRequest(ctx context.Context, req *http.Request) error {
	for _, h := range c.hooks {
		if err := h.BeforeRequest(ctx, req); err != nil {
			return err
		}
	}
	return nil
}

func (c *combinedHook) AfterResponse(ctx context.Context, req *http.Request, resp *http.Response, duration time.Duration, err error) {
	for _, h := range c.hooks {
		h.AfterResponse(ctx, req, resp, duration, err)
	}
}

// credentialsHook attaches the bearer token, when there is one. The session cookie is
// attached by the cookie jar.
type credentialsHook struct {
	tokens TokenStore
}

func (h *credentialsHook) BeforeRequest(_ context.Context, req *http.Request) error {
	if token := h.tokens.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return nil
}

func (h *credentialsHook) AfterResponse(context.Context, *http.Request, *http.Response, time.Duration, error) {
}

// unauthorizedHook sends the user to the login page when the session has expired,
// unless the user is already on one of the authentication pages.
type unauthorizedHook struct {
	tokens    TokenStore
	navigator Navigator
	loginPath string
	authPaths []string
	logger    *slog.Logger

	mu        sync.RWMutex
	listeners []func()
}

func (h *unauthorizedHook) BeforeRequest(context.Context, *http.Request) error {
	return nil
}

func (h *unauthorizedHook) AfterResponse(_ context.Context, req *http.Request, resp *http.Response, _ time.Duration, _ error) {
	if resp == nil || resp.StatusCode != constants.HTTPCodeUnauthorized {
		return
	}
	if h.onAuthPage() {
		return
	}
	h.logger.Info("Session expired, redirecting to the login page", constants.LOG_URI, req.URL.Path)
	if err := h.tokens.Clear(); err != nil {
		h.logger.Warn("Failed to clear the access token", constants.LOG_ERROR, err)
	}
	h.navigator.Navigate(h.loginPath)

	h.mu.RLock()
	listeners := append([]func(){}, h.listeners...)
	h.mu.RUnlock()
	for _, listener := range listeners {
		listener()
	}
}

func (h *unauthorizedHook) onAuthPage() bool {
	current := h.navigator.CurrentPath()
	for _, path := range h.authPaths {
		if current == path {
			return true
		}
	}
	return false
}

func (h *unauthorizedHook) addListener(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners = append(h.listeners, fn)
}

// loggingHook logs every exchange with the server.
type loggingHook struct {
	logger *slog.Logger
}

func (h *loggingHook) BeforeRequest(_ context.Context, req *http.Request) error {
	h.logger.Debug("API request",
		constants.LOG_REQUEST_ID, req.Header.Get(requestIDHeader),
		constants.LOG_METHOD, req.Method,
		constants.LOG_URI, req.URL.Path,
	)
	return nil
}

func (h *loggingHook) AfterResponse(_ context.Context, req *http.Request, resp *http.Response, duration time.Duration, err error) {
	attrs := []any{
		constants.LOG_REQUEST_ID, req.Header.Get(requestIDHeader),
		constants.LOG_METHOD, req.Method,
		constants.LOG_URI, req.URL.Path,
		constants.LOG_ELAPSED, duration,
	}
	switch {
	case err != nil:
		h.logger.Warn("API request failed", append(attrs, constants.LOG_ERROR, err)...)
	case resp.StatusCode >= 500:
		h.logger.Error("API response", append(attrs, constants.LOG_RESP_CODE, resp.StatusCode)...)
	case resp.StatusCode >= 400:
		h.logger.Info("API response", append(attrs, constants.LOG_RESP_CODE, resp.StatusCode)...)
	default:
		h.logger.Debug("API response", append(attrs, constants.LOG_RESP_CODE, resp.StatusCode)...)
	}
}
