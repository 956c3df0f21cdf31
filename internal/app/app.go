// Package app builds the services of one application instance from the configuration.
package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/eval-hub/eval-dashboard/internal/abstractions"
	"github.com/eval-hub/eval-dashboard/internal/config"
	"github.com/eval-hub/eval-dashboard/internal/constants"
	"github.com/eval-hub/eval-dashboard/internal/executioncontext"
	"github.com/eval-hub/eval-dashboard/internal/logging"
	"github.com/eval-hub/eval-dashboard/internal/managers"
	"github.com/eval-hub/eval-dashboard/internal/messages"
	"github.com/eval-hub/eval-dashboard/internal/metrics"
	se "github.com/eval-hub/eval-dashboard/internal/serviceerrors"
	"github.com/eval-hub/eval-dashboard/internal/session"
	"github.com/eval-hub/eval-dashboard/internal/storage"
	"github.com/eval-hub/eval-dashboard/internal/telemetry"
	"github.com/eval-hub/eval-dashboard/pkg/evalclient"
)

// App holds the services shared by every command. It is built once by New and released
// with Close.
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	Registry  *prometheus.Registry
	Metrics   *metrics.Metrics
	Store     abstractions.LocalStore
	Client    *evalclient.Client
	Navigator *evalclient.PathNavigator
	Auth      *session.AuthState
	User      *session.UserState
	*managers.Managers

	closers []func(ctx context.Context) error
}

type options struct {
	logger     *slog.Logger
	registry   *prometheus.Registry
	httpClient *http.Client
	tokens     evalclient.TokenStore
}

type Option func(*options)

// WithLogger replaces the logger built from the logging configuration.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

func WithRegistry(registry *prometheus.Registry) Option {
	return func(o *options) { o.registry = registry }
}

// WithHTTPClient replaces the HTTP client of the API client.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) { o.httpClient = client }
}

func WithTokenStore(tokens evalclient.TokenStore) Option {
	return func(o *options) { o.tokens = tokens }
}

// New builds the application. Everything created before a failure is released again.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (_ *App, err error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	a := &App{Config: cfg}
	defer func() {
		if err != nil {
			_ = a.Close(context.WithoutCancel(ctx))
		}
	}()

	a.Logger = o.logger
	if a.Logger == nil {
		logger, sync, err := logging.NewLogger(cfg.Logging)
		if err != nil {
			return nil, configurationFailed(err)
		}
		a.Logger = logger
		a.addCloser(func(context.Context) error {
			// syncing stderr fails on some platforms, nothing is lost
			_ = sync()
			return nil
		})
	}

	shutdown, err := telemetry.Setup(ctx, cfg.Telemetry, a.Logger)
	if err != nil {
		return nil, configurationFailed(err)
	}
	a.addCloser(shutdown)

	a.Registry = o.registry
	if a.Registry == nil {
		a.Registry = prometheus.NewRegistry()
	}
	a.Metrics = metrics.NewMetrics(a.Registry)

	store, err := storage.NewStorage(cfg, a.Logger)
	if err != nil {
		return nil, configurationFailed(err)
	}
	a.Store = store
	a.addCloser(func(context.Context) error { return store.Close() })

	tokens := o.tokens
	if tokens == nil && cfg.API.TokenFile != "" {
		if tokens, err = evalclient.NewFileTokenStore(cfg.API.TokenFile); err != nil {
			return nil, configurationFailed(err)
		}
	}
	a.Navigator = evalclient.NewPathNavigator("/")
	a.Client, err = evalclient.New(evalclient.Config{
		BaseURL:          cfg.API.BaseURL,
		HTTPClient:       o.httpClient,
		Timeout:          cfg.API.Timeout,
		TokenStore:       tokens,
		Navigator:        a.Navigator,
		LoginPath:        cfg.API.LoginPath,
		AuthPaths:        cfg.API.AuthPaths,
		Hooks:            []evalclient.Hook{a.Metrics.APIHook()},
		MaxResponseBytes: cfg.API.MaxResponseBytes,
		Logger:           a.Logger,
	})
	if err != nil {
		return nil, configurationFailed(err)
	}

	a.Auth = session.NewAuthState(a.Client, a.Logger)
	a.User = session.NewUserState(a.Client, a.Auth, a.Store, a.Logger)
	a.addCloser(func(context.Context) error {
		a.User.Close()
		return nil
	})

	a.Managers = managers.New(managers.Options{
		Client:            a.Client,
		Store:             a.Store,
		Metrics:           a.Metrics,
		RollbackOnFailure: cfg.Cache.RollbackOnFailure,
		Users:             a.User,
	})

	a.Logger.Debug("Application started", constants.LOG_URL, cfg.API.BaseURL, constants.LOG_DRIVER, cfg.Database.Backend)
	return a, nil
}

// NewContext returns the execution context of one command.
func (a *App) NewContext(ctx context.Context) *executioncontext.ExecutionContext {
	return executioncontext.NewExecutionContext(ctx, "", a.Logger)
}

// Close releases the services in reverse order of creation.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) addCloser(fn func(ctx context.Context) error) {
	a.closers = append(a.closers, fn)
}

func configurationFailed(err error) error {
	return se.NewServiceErrorWithCause(err, messages.ConfigurationFailed)
}
