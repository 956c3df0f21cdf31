package session

import (
	"log/slog"
	"sync"

	"github.com/eval-hub/eval-dashboard/internal/constants"
	"github.com/eval-hub/eval-dashboard/internal/executioncontext"
	"github.com/eval-hub/eval-dashboard/internal/serialization"
	"github.com/eval-hub/eval-dashboard/pkg/api"
	"github.com/eval-hub/eval-dashboard/pkg/evalclient"
)

// State is the authentication state of the application
type State string

const (
	// StateUnknown is the initial state, before the session has been checked
	StateUnknown         State = "unknown"
	StateAuthenticated   State = "authenticated"
	StateUnauthenticated State = "unauthenticated"
)

func (s State) String() string {
	return string(s)
}

// AuthEvent is published on every change of the authentication state. User is set when
// the change comes with the signed in user.
type AuthEvent struct {
	State State
	User  *api.User
}

// AuthState tracks whether the user is signed in. It is also moved to unauthenticated by
// the API client when the server reports an expired session.
type AuthState struct {
	client *evalclient.Client
	logger *slog.Logger
	events *Broadcaster[AuthEvent]

	mu    sync.RWMutex
	state State
}

func NewAuthState(client *evalclient.Client, logger *slog.Logger) *AuthState {
	if logger == nil {
		logger = slog.Default()
	}
	a := &AuthState{
		client: client,
		logger: logger,
		events: NewBroadcaster[AuthEvent](),
		state:  StateUnknown,
	}
	client.OnUnauthorized(func() {
		a.set(StateUnauthenticated, nil)
	})
	return a
}

func (a *AuthState) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

func (a *AuthState) IsAuthenticated() bool {
	return a.State() == StateAuthenticated
}

// Subscribe registers fn for every state change.
func (a *AuthState) Subscribe(fn func(AuthEvent)) *Subscription {
	return a.events.Subscribe(fn)
}

// Login signs in. A failed login leaves the state unchanged.
func (a *AuthState) Login(ctx *executioncontext.ExecutionContext, credentials *api.Credentials) (*api.User, error) {
	if err := serialization.ValidateRequest(a.client.Validator(), ctx, credentials); err != nil {
		return nil, err
	}
	user, err := a.client.Login(ctx, credentials)
	if err != nil {
		return nil, err
	}
	ctx.Logger.Info("Signed in", constants.LOG_USER_ID, user.ID)
	a.set(StateAuthenticated, user)
	return user, nil
}

// Register creates the account and signs in with it.
func (a *AuthState) Register(ctx *executioncontext.ExecutionContext, registration *api.Registration) (*api.User, error) {
	if err := serialization.ValidateRequest(a.client.Validator(), ctx, registration); err != nil {
		return nil, err
	}
	user, err := a.client.Register(ctx, registration)
	if err != nil {
		return nil, err
	}
	ctx.Logger.Info("Registered", constants.LOG_USER_ID, user.ID)
	a.set(StateAuthenticated, user)
	return user, nil
}

// Logout always ends unauthenticated, the error of the server call is still returned.
func (a *AuthState) Logout(ctx *executioncontext.ExecutionContext) error {
	err := a.client.Logout(ctx)
	if err != nil {
		ctx.Logger.Warn("Sign out request failed", constants.LOG_ERROR, err)
	}
	a.set(StateUnauthenticated, nil)
	return err
}

// CheckStatus asks the server who is signed in. Any failure leaves the state
// unauthenticated; a 401 is the expected answer without a session and is not returned
// as an error.
func (a *AuthState) CheckStatus(ctx *executioncontext.ExecutionContext) (*api.User, error) {
	user, err := a.client.Me(ctx)
	if err != nil {
		a.set(StateUnauthenticated, nil)
		if evalclient.IsUnauthorized(err) {
			return nil, nil
		}
		return nil, err
	}
	a.set(StateAuthenticated, user)
	return user, nil
}

// set publishes when the state changes or when a user comes with it.
func (a *AuthState) set(state State, user *api.User) {
	a.mu.Lock()
	previous := a.state
	a.state = state
	a.mu.Unlock()

	if previous == state && user == nil {
		return
	}
	a.logger.Debug("Authentication state changed", constants.LOG_STATE, state, "previous", previous)
	a.events.Publish(AuthEvent{State: state, User: user})
}
