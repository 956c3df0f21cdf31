package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/eval-hub/eval-dashboard/internal/app"
	"github.com/eval-hub/eval-dashboard/internal/logging"
	"github.com/eval-hub/eval-dashboard/pkg/api"
	"github.com/eval-hub/eval-dashboard/pkg/evalclient"
	"github.com/eval-hub/eval-dashboard/pkg/evalclient/evalclienttest"
)

type harness struct {
	t      *testing.T
	cli    *cli
	server *evalclienttest.FakeServer
}

// newHarness returns a command line bound to a fake server. The commands share one
// HTTP client so the session cookie survives between them.
func newHarness(t *testing.T) *harness {
	t.Helper()
	server := evalclienttest.NewFakeServer()
	httpClient := &http.Client{Transport: server.Client().Transport}
	t.Cleanup(func() {
		server.CloseClientConnections()
		server.Close()
		httpClient.CloseIdleConnections()
	})

	c := newCLI(app.WithLogger(logging.Discard()), app.WithHTTPClient(httpClient))
	c.viper.Set("api.base_url", server.URL)
	c.viper.Set("api.token_file", "")
	c.viper.Set("database.backend", "memory")
	return &harness{t: t, cli: c, server: server}
}

func (h *harness) run(args ...string) (string, error) {
	h.t.Helper()
	var out, errOut bytes.Buffer
	root := h.cli.rootCmd()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(""))
	err := root.ExecuteContext(h.t.Context())
	return out.String(), err
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	out, err := h.run(args...)
	if err != nil {
		h.t.Fatalf("%s: %v", strings.Join(args, " "), err)
	}
	return out
}

func (h *harness) login(admin bool) {
	h.t.Helper()
	h.server.AddUser("ada@example.com", "correct horse", admin)
	h.mustRun("login", "--email", "ada@example.com", "--password", "correct horse")
}

func TestBuildRootCmdIncludesSubcommands(t *testing.T) {
	cmd := buildRootCmd()
	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}

	required := []string{"login", "logout", "whoami", "datasets", "versions", "testcases", "experiments", "runs", "results"}
	for _, name := range required {
		if !names[name] {
			t.Fatalf("expected subcommand %q to be registered", name)
		}
	}
}

func TestLoginWithWrongPassword(t *testing.T) {
	h := newHarness(t)
	h.server.AddUser("ada@example.com", "correct horse", false)

	_, err := h.run("login", "--email", "ada@example.com", "--password", "wrong")
	if !evalclient.IsUnauthorized(err) || errors.Is(err, errSessionExpired) {
		t.Fatalf("expected a plain 401, got %v", err)
	}
}

func TestDatasetsRequireASession(t *testing.T) {
	h := newHarness(t)
	h.server.SetRequireAuth(true)

	_, err := h.run("datasets", "list")
	if !errors.Is(err, errSessionExpired) {
		t.Fatalf("expected the session hint, got %v", err)
	}
}

func TestDatasetWorkflow(t *testing.T) {
	h := newHarness(t)
	h.server.SetRequireAuth(true)
	h.login(false)

	if out := h.mustRun("whoami"); !strings.Contains(out, "ada@example.com") {
		t.Fatalf("unexpected whoami output %q", out)
	}
	out := h.mustRun("datasets", "create", "--name", "Regression Suite", "--description", "nightly")
	if !strings.Contains(out, "Regression Suite") || strings.Contains(out, "temp-") {
		t.Fatalf("unexpected create output %q", out)
	}
	if out := h.mustRun("datasets", "list"); !strings.Contains(out, "Regression Suite") {
		t.Fatalf("unexpected list output %q", out)
	}
}

func TestUpdateWithEmptyDescriptionRemovesIt(t *testing.T) {
	h := newHarness(t)
	description := "nightly"
	ds := h.server.PutDataset(api.Dataset{Name: "Regression Suite", Description: &description})

	h.mustRun("datasets", "update", ds.ID, "--description", "")
	if got := h.server.Dataset(ds.ID).Description; got != nil {
		t.Fatalf("expected the description to be removed, got %q", *got)
	}
	if last := h.server.LastRequest(); last.Method != http.MethodPut {
		t.Fatalf("expected a PUT update, got %s", last.Method)
	}
}

func TestVersionsCreateAndCompare(t *testing.T) {
	h := newHarness(t)
	ds := h.server.PutDataset(api.Dataset{Name: "Regression Suite"})
	v3 := h.server.PutVersion(api.DatasetVersion{DatasetID: ds.ID, VersionNumber: 3, TestCaseIDs: []string{"A", "B", "C"}})

	out := h.mustRun("-o", "json", "versions", "create", ds.ID, "--test-case", "B,C", "--test-case", "D")
	var created api.DatasetVersion
	if err := json.Unmarshal([]byte(out), &created); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if created.VersionNumber != 4 {
		t.Fatalf("expected version 4, got %d", created.VersionNumber)
	}

	out = h.mustRun("versions", "compare", v3.ID, created.ID)
	for _, want := range []string{"Added:", "D", "Removed:", "A", "Unchanged:", "B, C"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %q", want, out)
		}
	}
	if current := h.server.Dataset(ds.ID).CurrentVersionID; current == nil || *current != created.ID {
		t.Fatalf("expected the new version to be current")
	}
}

func TestDeleteGlobalTestCaseNeedsAnAdministrator(t *testing.T) {
	h := newHarness(t)
	h.login(false)
	tc := h.server.PutTestCase(api.TestCase{Name: "shared", Type: api.TestCaseTypeLLM, Input: api.TestCaseInput{Text: "hi"}, IsGlobal: true})

	_, err := h.run("testcases", "delete", tc.ID)
	if err == nil || !strings.Contains(err.Error(), "administrator") {
		t.Fatalf("expected the deletion to be refused, got %v", err)
	}
	if h.server.CountRequests(http.MethodDelete, "/test-cases/"+tc.ID) != 0 {
		t.Fatalf("expected no delete request")
	}
}

func TestResultsSummary(t *testing.T) {
	h := newHarness(t)
	run := h.server.PutRun(api.Run{ExperimentID: "exp-1", Status: api.StateCompleted})
	h.server.PutResult(api.TestResult{RunID: run.ID, TestCaseID: "A", Success: true, MetricsData: []api.MetricData{{Name: "relevancy", Score: 1, Success: true}}})
	h.server.PutResult(api.TestResult{RunID: run.ID, TestCaseID: "B", MetricsData: []api.MetricData{{Name: "relevancy", Score: 0.5}}})

	out := h.mustRun("results", run.ID, "--summary")
	if !strings.Contains(out, "relevancy") || !strings.Contains(out, "0.75") || !strings.Contains(out, "0.50") {
		t.Fatalf("unexpected summary %q", out)
	}
}

func TestUnsupportedOutputFormat(t *testing.T) {
	h := newHarness(t)
	if _, err := h.run("-o", "yaml", "experiments", "list"); err == nil {
		t.Fatalf("expected an error for an unsupported format")
	}
	if h.server.RequestCount() != 0 {
		t.Fatalf("expected no request")
	}
}
