package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/eval-hub/eval-dashboard/internal/abstractions"
	"github.com/eval-hub/eval-dashboard/internal/cache"
	"github.com/eval-hub/eval-dashboard/internal/constants"
	"github.com/eval-hub/eval-dashboard/internal/executioncontext"
	"github.com/eval-hub/eval-dashboard/internal/messages"
	"github.com/eval-hub/eval-dashboard/internal/serialization"
	se "github.com/eval-hub/eval-dashboard/internal/serviceerrors"
	"github.com/eval-hub/eval-dashboard/pkg/api"
	"github.com/eval-hub/eval-dashboard/pkg/evalclient"
)

// UserEvent is published whenever the current user changes, User is nil after sign out.
type UserEvent struct {
	User *api.User
}

// UserState holds the profile of the signed in user. It follows AuthState and clears
// itself when the user is no longer authenticated. When a store is given the profile is
// also kept in the users table so that it can be shown while the server is unreachable.
type UserState struct {
	client *evalclient.Client
	users  *cache.Table[api.User]
	logger *slog.Logger
	events *Broadcaster[UserEvent]
	auth   *Subscription

	mu   sync.RWMutex
	user *api.User
}

func NewUserState(client *evalclient.Client, auth *AuthState, store abstractions.LocalStore, logger *slog.Logger) *UserState {
	if logger == nil {
		logger = slog.Default()
	}
	u := &UserState{
		client: client,
		logger: logger,
		events: NewBroadcaster[UserEvent](),
	}
	if store != nil {
		u.users = cache.NewTable[api.User](store, abstractions.TableUsers, client.Validator())
	}
	u.auth = auth.Subscribe(u.onAuthChange)
	return u
}

func (u *UserState) onAuthChange(event AuthEvent) {
	ctx := executioncontext.NewExecutionContext(context.Background(), "", u.logger)
	switch {
	case event.State != StateAuthenticated:
		u.clear(ctx)
	case event.User != nil:
		u.set(ctx, event.User)
	}
}

// Current returns a copy of the current user, nil when nobody is signed in.
func (u *UserState) Current() *api.User {
	u.mu.RLock()
	defer u.mu.RUnlock()
	if u.user == nil {
		return nil
	}
	user := *u.user
	return &user
}

func (u *UserState) IsAdmin() bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.user != nil && u.user.IsAdmin
}

func (u *UserState) Subscribe(fn func(UserEvent)) *Subscription {
	return u.events.Subscribe(fn)
}

// Load fetches the signed in user. When the server is unavailable the stored profile is
// used instead.
func (u *UserState) Load(ctx *executioncontext.ExecutionContext) (*api.User, error) {
	user, err := u.client.Me(ctx)
	if err == nil {
		u.set(ctx, user)
		return u.Current(), nil
	}
	if evalclient.IsUnavailable(err) {
		if cached := u.stored(ctx); cached != nil {
			ctx.Logger.Info("Using the stored user profile", constants.LOG_ID, cached.ID, constants.LOG_OUTCOME, constants.CACHE_OUTCOME_STALE)
			u.set(ctx, cached)
			return u.Current(), nil
		}
		return nil, se.NewServiceErrorWithCause(err, messages.UnableToLoad, "Type", "user", "ResourceId", "me")
	}
	return nil, err
}

// Update changes the profile of the signed in user.
func (u *UserState) Update(ctx *executioncontext.ExecutionContext, patch *api.UserPatch) (*api.User, error) {
	if u.Current() == nil {
		return nil, se.NewServiceError(messages.NotAuthenticated)
	}
	if err := serialization.ValidateRequest(u.client.Validator(), ctx, patch); err != nil {
		return nil, err
	}
	user, err := u.client.UpdateMe(ctx, patch)
	if err != nil {
		return nil, err
	}
	u.set(ctx, user)
	return u.Current(), nil
}

// Close stops following the authentication state.
func (u *UserState) Close() {
	u.auth.Unsubscribe()
}

func (u *UserState) set(ctx *executioncontext.ExecutionContext, user *api.User) {
	copied := *user
	u.mu.Lock()
	previous := u.user
	u.user = &copied
	u.mu.Unlock()

	if u.users != nil {
		if previous != nil && previous.ID != user.ID {
			u.forget(ctx, previous.ID)
		}
		if err := u.users.Put(ctx, copied); err != nil {
			ctx.Logger.Warn("Failed to store the user profile", constants.LOG_ID, user.ID, constants.LOG_ERROR, err)
		}
	}
	u.events.Publish(UserEvent{User: u.Current()})
}

func (u *UserState) clear(ctx *executioncontext.ExecutionContext) {
	u.mu.Lock()
	previous := u.user
	u.user = nil
	u.mu.Unlock()

	if previous == nil {
		return
	}
	if u.users != nil {
		u.forget(ctx, previous.ID)
	}
	u.events.Publish(UserEvent{})
}

func (u *UserState) forget(ctx *executioncontext.ExecutionContext, id string) {
	if err := u.users.Delete(ctx, id); err != nil && !se.IsRecordNotFound(err) {
		ctx.Logger.Warn("Failed to remove the stored user profile", constants.LOG_ID, id, constants.LOG_ERROR, err)
	}
}

func (u *UserState) stored(ctx *executioncontext.ExecutionContext) *api.User {
	if u.users == nil {
		return nil
	}
	users, err := u.users.List(ctx, abstractions.Query{Descending: true, Limit: 1})
	if err != nil {
		ctx.Logger.Warn("Failed to read the stored user profile", constants.LOG_ERROR, err)
		return nil
	}
	if len(users) == 0 {
		return nil
	}
	return &users[0]
}
