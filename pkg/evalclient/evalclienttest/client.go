package evalclienttest

import (
	"io"
	"log/slog"

	"github.com/eval-hub/eval-dashboard/pkg/evalclient"
)

// TestingT is an interface that matches *testing.T and *testing.B.
type TestingT interface {
	Fatalf(format string, args ...any)
	Cleanup(func())
	Helper()
}

// NewTestClient starts a FakeServer and returns a client configured for it. The client
// and server are closed when the test ends.
func NewTestClient(t TestingT, opts ...func(*evalclient.Config)) (*evalclient.Client, *FakeServer) {
	t.Helper()

	server := NewFakeServer()
	cfg := evalclient.Config{
		BaseURL:   server.URL,
		Navigator: evalclient.NewPathNavigator("/datasets"),
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = server.Client()
	}
	client, err := evalclient.New(cfg)
	if err != nil {
		t.Fatalf("Failed to create test client: %v", err)
	}

	t.Cleanup(func() {
		server.CloseClientConnections()
		server.Close()
		cfg.HTTPClient.CloseIdleConnections()
	})

	return client, server
}
