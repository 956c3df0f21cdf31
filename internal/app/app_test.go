package app

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/goleak"

	"github.com/eval-hub/eval-dashboard/internal/config"
	"github.com/eval-hub/eval-dashboard/internal/logging"
	"github.com/eval-hub/eval-dashboard/internal/messages"
	se "github.com/eval-hub/eval-dashboard/internal/serviceerrors"
	"github.com/eval-hub/eval-dashboard/internal/session"
	"github.com/eval-hub/eval-dashboard/pkg/api"
	"github.com/eval-hub/eval-dashboard/pkg/evalclient/evalclienttest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
		goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"),
	)
}

func testConfig(baseURL string, database config.DatabaseConfig) *config.Config {
	return &config.Config{
		API: &config.APIConfig{
			BaseURL:   baseURL,
			LoginPath: "/login",
			AuthPaths: []string{"/login", "/register"},
		},
		Database:  &database,
		Cache:     &config.CacheConfig{RollbackOnFailure: true},
		Logging:   &config.LoggingConfig{Level: "error", Encoding: "json"},
		Telemetry: &config.TelemetryConfig{},
	}
}

func newServer(t *testing.T) *evalclienttest.FakeServer {
	t.Helper()
	server := evalclienttest.NewFakeServer()
	t.Cleanup(func() {
		server.CloseClientConnections()
		server.Close()
	})
	return server
}

func newApp(t *testing.T, cfg *config.Config, server *evalclienttest.FakeServer) *App {
	t.Helper()
	// every app gets its own cookie jar
	httpClient := &http.Client{Transport: server.Client().Transport}
	a, err := New(t.Context(), cfg, WithLogger(logging.Discard()), WithHTTPClient(httpClient))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() {
		if err := a.Close(t.Context()); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return a
}

func TestAppWiresSessionAndManagers(t *testing.T) {
	server := newServer(t)
	server.AddUser("admin@example.com", "correct horse", true)
	a := newApp(t, testConfig(server.URL, config.DatabaseConfig{Backend: config.BackendMemory}), server)

	a.Navigator.Navigate(a.Config.API.LoginPath)
	if _, err := a.Auth.Login(a.NewContext(t.Context()), &api.Credentials{Email: "admin@example.com", Password: "correct horse"}); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if a.Auth.State() != session.StateAuthenticated || !a.User.IsAdmin() {
		t.Fatalf("expected an authenticated admin")
	}

	tc := server.PutTestCase(api.TestCase{Name: "shared", Type: api.TestCaseTypeLLM, Input: api.TestCaseInput{Text: "hi"}, IsGlobal: true})
	if err := a.TestCases.Delete(a.NewContext(t.Context()), tc.ID); err != nil {
		t.Fatalf("expected an admin to delete a global test case: %v", err)
	}
	if testutil.CollectAndCount(a.Metrics.APIRequests) == 0 {
		t.Fatalf("expected the API requests to be counted")
	}
}

func TestAppWithSQLiteStore(t *testing.T) {
	server := newServer(t)
	ds := server.PutDataset(api.Dataset{Name: "Regression Suite"})
	path := filepath.Join(t.TempDir(), "cache.db")
	cfg := testConfig(server.URL, config.DatabaseConfig{
		Backend: config.BackendSQL,
		SQL:     config.SQLDatabaseConfig{Driver: config.SQLITE_DRIVER, URL: "file:" + path},
	})

	first := newApp(t, cfg, server)
	if _, err := first.Datasets.List(first.NewContext(t.Context())); err != nil {
		t.Fatalf("List: %v", err)
	}
	if err := first.Close(t.Context()); err != nil {
		t.Fatalf("Close: %v", err)
	}

	server.SetOffline(true)
	second := newApp(t, cfg, server)
	got, err := second.Datasets.GetByID(second.NewContext(t.Context()), ds.ID)
	if err != nil || got.Name != ds.Name {
		t.Fatalf("expected the dataset from the persisted cache, got %v %v", got, err)
	}
}

func TestTokenFileKeepsTheSession(t *testing.T) {
	server := newServer(t)
	server.SetIssueTokens(true)
	server.AddUser("ada@example.com", "correct horse", false)
	cfg := testConfig(server.URL, config.DatabaseConfig{Backend: config.BackendMemory})
	cfg.API.TokenFile = filepath.Join(t.TempDir(), "token")

	a := newApp(t, cfg, server)
	a.Navigator.Navigate("/login")
	if _, err := a.Auth.Login(a.NewContext(t.Context()), &api.Credentials{Email: "ada@example.com", Password: "correct horse"}); err != nil {
		t.Fatalf("Login: %v", err)
	}
	data, err := os.ReadFile(cfg.API.TokenFile)
	if err != nil || len(data) == 0 {
		t.Fatalf("expected the token to be written, got %q %v", data, err)
	}

	// a new process has no cookie, only the stored token
	server.SetRequireAuth(true)
	next := newApp(t, cfg, server)
	user, err := next.Auth.CheckStatus(next.NewContext(t.Context()))
	if err != nil || user == nil || user.Email != "ada@example.com" {
		t.Fatalf("expected the stored token to authenticate, got %v %v", user, err)
	}
}

func TestInvalidStoreFailsStartup(t *testing.T) {
	server := newServer(t)
	cfg := testConfig(server.URL, config.DatabaseConfig{Backend: "cassandra"})
	if _, err := New(t.Context(), cfg, WithLogger(logging.Discard())); !se.HasMessageCode(err, messages.ConfigurationFailed) {
		t.Fatalf("expected ConfigurationFailed, got %v", err)
	}
}
