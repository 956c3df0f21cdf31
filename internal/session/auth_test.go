package session

import (
	"net/http"
	"sync"
	"testing"

	"github.com/eval-hub/eval-dashboard/internal/executioncontext"
	"github.com/eval-hub/eval-dashboard/internal/logging"
	"github.com/eval-hub/eval-dashboard/internal/storage/memory"
	"github.com/eval-hub/eval-dashboard/pkg/api"
	"github.com/eval-hub/eval-dashboard/pkg/evalclient"
	"github.com/eval-hub/eval-dashboard/pkg/evalclient/evalclienttest"
)

const (
	testEmail    = "ada@example.com"
	testPassword = "correct horse"
)

type fixture struct {
	client *evalclient.Client
	server *evalclienttest.FakeServer
	nav    *evalclient.PathNavigator
	auth   *AuthState
	user   *UserState
}

func newFixture(t *testing.T, currentPath string) *fixture {
	t.Helper()
	nav := evalclient.NewPathNavigator(currentPath)
	client, server := evalclienttest.NewTestClient(t, func(cfg *evalclient.Config) {
		cfg.Navigator = nav
	})
	store, err := memory.NewStorage(logging.Discard())
	if err != nil {
		t.Fatalf("memory.NewStorage: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	auth := NewAuthState(client, logging.Discard())
	user := NewUserState(client, auth, store, logging.Discard())
	t.Cleanup(user.Close)
	return &fixture{client: client, server: server, nav: nav, auth: auth, user: user}
}

func newContext(t *testing.T) *executioncontext.ExecutionContext {
	return executioncontext.NewExecutionContext(t.Context(), "", logging.Discard())
}

// recorder collects published events, callbacks may run on the goroutine of a request.
type recorder[E any] struct {
	mu     sync.Mutex
	events []E
}

func (r *recorder[E]) add(e E) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder[E]) all() []E {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]E(nil), r.events...)
}

func TestInitialStateIsUnknown(t *testing.T) {
	f := newFixture(t, "/")
	if f.auth.State() != StateUnknown || f.auth.IsAuthenticated() {
		t.Fatalf("expected the unknown state, got %s", f.auth.State())
	}
}

func TestLoginAuthenticatesAndPublishes(t *testing.T) {
	f := newFixture(t, "/login")
	f.server.AddUser(testEmail, testPassword, false)
	events := &recorder[AuthEvent]{}
	f.auth.Subscribe(events.add)

	user, err := f.auth.Login(newContext(t), &api.Credentials{Email: testEmail, Password: testPassword})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if !f.auth.IsAuthenticated() {
		t.Fatalf("expected to be authenticated")
	}
	got := events.all()
	if len(got) != 1 || got[0].State != StateAuthenticated || got[0].User == nil || got[0].User.ID != user.ID {
		t.Fatalf("unexpected events %+v", got)
	}
}

func TestFailedLoginOnTheLoginPageLeavesTheState(t *testing.T) {
	f := newFixture(t, "/login")
	f.server.AddUser(testEmail, testPassword, false)
	events := &recorder[AuthEvent]{}
	f.auth.Subscribe(events.add)

	if _, err := f.auth.Login(newContext(t), &api.Credentials{Email: testEmail, Password: "wrong"}); !evalclient.IsUnauthorized(err) {
		t.Fatalf("expected a 401, got %v", err)
	}
	if f.auth.State() != StateUnknown || len(events.all()) != 0 {
		t.Fatalf("expected no state change, got %s and %v", f.auth.State(), events.all())
	}
	if f.nav.Redirected() {
		t.Fatalf("expected no redirect from the login page")
	}
}

func TestInvalidCredentialsAreNotSent(t *testing.T) {
	f := newFixture(t, "/login")
	if _, err := f.auth.Login(newContext(t), &api.Credentials{Email: "not-an-email", Password: "x"}); err == nil {
		t.Fatalf("expected a validation error")
	}
	if f.server.RequestCount() != 0 {
		t.Fatalf("expected no request")
	}
}

func TestRegisterAuthenticates(t *testing.T) {
	f := newFixture(t, "/register")
	name := "Grace"
	user, err := f.auth.Register(newContext(t), &api.Registration{Email: "grace@example.com", Password: "long enough", Name: &name})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if !f.auth.IsAuthenticated() || f.user.Current() == nil || f.user.Current().ID != user.ID {
		t.Fatalf("expected the registered user to be signed in")
	}
}

func TestLogoutAlwaysEndsUnauthenticated(t *testing.T) {
	f := newFixture(t, "/login")
	f.server.AddUser(testEmail, testPassword, false)
	if _, err := f.auth.Login(newContext(t), &api.Credentials{Email: testEmail, Password: testPassword}); err != nil {
		t.Fatal(err)
	}

	f.server.SetOffline(true)
	if err := f.auth.Logout(newContext(t)); !evalclient.IsConnectivityError(err) {
		t.Fatalf("expected the server call to fail, got %v", err)
	}
	if f.auth.State() != StateUnauthenticated {
		t.Fatalf("expected to be unauthenticated, got %s", f.auth.State())
	}
	if f.user.Current() != nil {
		t.Fatalf("expected the user to be cleared")
	}
}

func TestCheckStatus(t *testing.T) {
	f := newFixture(t, "/")
	if user, err := f.auth.CheckStatus(newContext(t)); err != nil || user != nil {
		t.Fatalf("expected no user without a session, got %v %v", user, err)
	}
	if f.auth.State() != StateUnauthenticated {
		t.Fatalf("expected to be unauthenticated, got %s", f.auth.State())
	}

	f.server.AddUser(testEmail, testPassword, true)
	f.nav.Navigate("/login")
	if _, err := f.client.Login(newContext(t), &api.Credentials{Email: testEmail, Password: testPassword}); err != nil {
		t.Fatal(err)
	}
	user, err := f.auth.CheckStatus(newContext(t))
	if err != nil || user == nil || user.Email != testEmail {
		t.Fatalf("expected the signed in user, got %v %v", user, err)
	}
	if !f.auth.IsAuthenticated() || !f.user.IsAdmin() {
		t.Fatalf("expected an authenticated admin")
	}

	f.server.SetOffline(true)
	if _, err := f.auth.CheckStatus(newContext(t)); err == nil {
		t.Fatalf("expected the check to fail")
	}
	if f.auth.State() != StateUnauthenticated {
		t.Fatalf("a failed check ends unauthenticated, got %s", f.auth.State())
	}
}

func TestExpiredSessionSignsOut(t *testing.T) {
	f := newFixture(t, "/login")
	f.server.AddUser(testEmail, testPassword, false)
	if _, err := f.auth.Login(newContext(t), &api.Credentials{Email: testEmail, Password: testPassword}); err != nil {
		t.Fatal(err)
	}
	f.nav.Navigate("/datasets")
	f.nav.Redirected()
	users := &recorder[UserEvent]{}
	f.user.Subscribe(users.add)

	f.server.SetRequireAuth(true)
	f.server.ExpireSessions()
	if _, err := f.client.ListDatasets(newContext(t)); !evalclient.IsUnauthorized(err) {
		t.Fatalf("expected a 401, got %v", err)
	}

	if f.auth.State() != StateUnauthenticated || f.user.Current() != nil {
		t.Fatalf("expected the session to be cleared")
	}
	if !f.nav.Redirected() || f.nav.CurrentPath() != "/login" {
		t.Fatalf("expected a redirect to the login page")
	}
	if got := users.all(); len(got) != 1 || got[0].User != nil {
		t.Fatalf("expected a single sign out event, got %+v", got)
	}
	if f.server.CountRequests(http.MethodGet, "/datasets") != 1 {
		t.Fatalf("expected one request")
	}
}
