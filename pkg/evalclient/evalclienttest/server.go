// Package evalclienttest provides an in-memory evaluation API for tests.
package evalclienttest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eval-hub/eval-dashboard/pkg/api"
)

const (
	SessionCookie = "session"
	apiPrefix     = "/api/v1"
)

// RecordedRequest represents a recorded HTTP request.
type RecordedRequest struct {
	Method        string
	Path          string
	Query         string
	Body          []byte
	Authorization string
	RequestID     string
	HasSession    bool
}

type failure struct {
	status int
	detail string
}

type account struct {
	user     api.User
	password string
}

// FakeServer is a stateful fake of the evaluation REST API. It records every request
// and can be told to fail, hold or drop requests.
type FakeServer struct {
	*httptest.Server

	mu          sync.Mutex
	requireAuth bool
	issueTokens bool
	requests  []*RecordedRequest
	offline   bool
	failures  map[string][]failure
	holds     map[string]chan struct{}
	sequence  int
	now       func() time.Time
	datasets  map[string]*api.Dataset
	members   map[string]map[string]bool
	versions  map[string]*api.DatasetVersion
	testCases map[string]*api.TestCase
	exps      map[string]*api.Experiment
	runs      map[string]*api.Run
	results   map[string]*api.TestResult
	accounts  map[string]*account
	sessions  map[string]string
}

func NewFakeServer() *FakeServer {
	s := &FakeServer{
		failures:  map[string][]failure{},
		holds:     map[string]chan struct{}{},
		now:       func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		datasets:  map[string]*api.Dataset{},
		members:   map[string]map[string]bool{},
		versions:  map[string]*api.DatasetVersion{},
		testCases: map[string]*api.TestCase{},
		exps:      map[string]*api.Experiment{},
		runs:      map[string]*api.Run{},
		results:   map[string]*api.TestResult{},
		accounts:  map[string]*account{},
		sessions:  map[string]string{},
	}
	s.Server = httptest.NewServer(s.routes())
	return s
}

func (s *FakeServer) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/datasets", s.authed(s.listDatasets))
	mux.HandleFunc("POST /api/v1/datasets", s.authed(s.createDataset))
	mux.HandleFunc("GET /api/v1/datasets/{id}", s.authed(s.getDataset))
	mux.HandleFunc("PUT /api/v1/datasets/{id}", s.authed(s.updateDataset))
	mux.HandleFunc("DELETE /api/v1/datasets/{id}", s.authed(s.deleteDataset))
	mux.HandleFunc("GET /api/v1/datasets/{id}/versions", s.authed(s.listVersions))
	mux.HandleFunc("POST /api/v1/datasets/{id}/versions", s.authed(s.createVersion))
	mux.HandleFunc("POST /api/v1/datasets/{id}/test-cases/{tc}", s.authed(s.addMember))
	mux.HandleFunc("DELETE /api/v1/datasets/{id}/test-cases/{tc}", s.authed(s.removeMember))
	mux.HandleFunc("GET /api/v1/dataset-versions/{id}", s.authed(s.getVersion))
	mux.HandleFunc("GET /api/v1/test-cases", s.authed(s.listTestCases))
	mux.HandleFunc("POST /api/v1/test-cases", s.authed(s.createTestCase))
	mux.HandleFunc("GET /api/v1/test-cases/{id}", s.authed(s.getTestCase))
	mux.HandleFunc("PUT /api/v1/test-cases/{id}", s.authed(s.updateTestCase))
	mux.HandleFunc("DELETE /api/v1/test-cases/{id}", s.authed(s.deleteTestCase))
	mux.HandleFunc("GET /api/v1/experiments", s.authed(s.listExperiments))
	mux.HandleFunc("POST /api/v1/experiments", s.authed(s.createExperiment))
	mux.HandleFunc("GET /api/v1/experiments/{id}", s.authed(s.getExperiment))
	mux.HandleFunc("PUT /api/v1/experiments/{id}", s.authed(s.updateExperiment))
	mux.HandleFunc("DELETE /api/v1/experiments/{id}", s.authed(s.deleteExperiment))
	mux.HandleFunc("GET /api/v1/runs", s.authed(s.listRuns))
	mux.HandleFunc("GET /api/v1/runs/{id}", s.authed(s.getRun))
	mux.HandleFunc("DELETE /api/v1/runs/{id}", s.authed(s.deleteRun))
	mux.HandleFunc("GET /api/v1/runs/{id}/results", s.authed(s.listResults))
	mux.HandleFunc("POST /api/v1/auth/login", s.login)
	mux.HandleFunc("POST /api/v1/auth/register", s.register)
	mux.HandleFunc("POST /api/v1/auth/logout", s.logout)
	mux.HandleFunc("GET /api/v1/auth/me", s.authed(s.me))
	mux.HandleFunc("PUT /api/v1/users/me", s.authed(s.updateMe))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = r.Body.Close()
		r.Body = io.NopCloser(strings.NewReader(string(body)))
		_, cookieErr := r.Cookie(SessionCookie)

		s.mu.Lock()
		s.requests = append(s.requests, &RecordedRequest{
			Method:        r.Method,
			Path:          r.URL.Path,
			Query:         r.URL.RawQuery,
			Body:          body,
			Authorization: r.Header.Get("Authorization"),
			RequestID:     r.Header.Get("X-Request-ID"),
			HasSession:    cookieErr == nil,
		})
		offline := s.offline
		key := routeKey(r.Method, r.URL.Path)
		hold := s.holds[key]
		var fail *failure
		if queued := s.failures[key]; len(queued) > 0 {
			fail = &queued[0]
			s.failures[key] = queued[1:]
		}
		s.mu.Unlock()

		if offline {
			dropConnection(w)
			return
		}
		if hold != nil {
			select {
			case <-hold:
			case <-r.Context().Done():
				return
			}
		}
		if fail != nil {
			writeError(w, fail.status, fail.detail)
			return
		}
		mux.ServeHTTP(w, r)
	})
}

func dropConnection(w http.ResponseWriter) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "offline")
		return
	}
	conn, _, err := hj.Hijack()
	if err == nil {
		_ = conn.Close()
	}
}

func routeKey(method string, path string) string {
	return method + " " + strings.TrimPrefix(path, apiPrefix)
}

// Controls

// SetRequireAuth rejects resource requests without a session cookie or bearer token.
func (s *FakeServer) SetRequireAuth(require bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requireAuth = require
}

// SetIssueTokens makes login and register return an access token as well as the cookie.
func (s *FakeServer) SetIssueTokens(issue bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issueTokens = issue
}

// SetOffline makes the server drop every connection without answering.
func (s *FakeServer) SetOffline(offline bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offline = offline
}

// FailNext makes the next request for method and path (without the /api/v1 prefix)
// fail with the status and detail. Calls queue up.
func (s *FakeServer) FailNext(method string, path string, status int, detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := method + " " + path
	s.failures[key] = append(s.failures[key], failure{status: status, detail: detail})
}

// Hold blocks requests for method and path until the returned release function is called.
func (s *FakeServer) Hold(method string, path string) (release func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan struct{})
	key := method + " " + path
	s.holds[key] = ch
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.holds, key)
			s.mu.Unlock()
			close(ch)
		})
	}
}

// Requests returns all recorded requests.
func (s *FakeServer) Requests() []*RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*RecordedRequest{}, s.requests...)
}

// RequestCount returns the number of recorded requests.
func (s *FakeServer) RequestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// CountRequests returns the number of recorded requests for method and path (without the /api/v1 prefix).
func (s *FakeServer) CountRequests(method string, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.requests {
		if r.Method == method && strings.TrimPrefix(r.Path, apiPrefix) == path {
			n++
		}
	}
	return n
}

// LastRequest returns the most recent request, or nil if none.
func (s *FakeServer) LastRequest() *RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return nil
	}
	return s.requests[len(s.requests)-1]
}

func (s *FakeServer) nextID(prefix string) string {
	s.sequence++
	return fmt.Sprintf("%s-%d", prefix, s.sequence)
}

// helpers

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, api.ErrorResponse{Detail: detail})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return false
	}
	return true
}

func sortedValues[T api.Entity](m map[string]*T) []T {
	out := make([]T, 0, len(m))
	for _, v := range m {
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SortKey() != out[j].SortKey() {
			return out[i].SortKey() < out[j].SortKey()
		}
		return out[i].GetID() < out[j].GetID()
	})
	return out
}

// authed resolves the caller and rejects anonymous requests when authentication is required.
func (s *FakeServer) authed(next func(w http.ResponseWriter, r *http.Request, user *api.User)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		user := s.caller(r)
		requireAuth := s.requireAuth || r.URL.Path == apiPrefix+"/auth/me"
		s.mu.Unlock()
		if user == nil && requireAuth {
			writeError(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		if user == nil {
			user = &api.User{ID: "u-anonymous", Email: "anonymous@example.com"}
		}
		next(w, r, user)
	}
}

func (s *FakeServer) caller(r *http.Request) *api.User {
	var session string
	if c, err := r.Cookie(SessionCookie); err == nil {
		session = c.Value
	} else if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		session = strings.TrimPrefix(h, "Bearer ")
	}
	email, ok := s.sessions[session]
	if !ok {
		return nil
	}
	acc := s.accounts[email]
	u := acc.user
	return &u
}

// ExpireSessions forgets every session, the next authenticated request gets a 401.
func (s *FakeServer) ExpireSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = map[string]string{}
}

func newSessionToken() string {
	return uuid.NewString()
}
