package evalclienttest

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/eval-hub/eval-dashboard/pkg/api"
)

// datasets

func (s *FakeServer) listDatasets(w http.ResponseWriter, _ *http.Request, _ *api.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, sortedValues(s.datasets))
}

func (s *FakeServer) getDataset(w http.ResponseWriter, r *http.Request, _ *api.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ds, ok := s.datasets[r.PathValue("id")]
	if !ok {
		writeError(w, http.StatusNotFound, "Dataset not found")
		return
	}
	writeJSON(w, http.StatusOK, ds)
}

func (s *FakeServer) createDataset(w http.ResponseWriter, r *http.Request, user *api.User) {
	var cfg api.DatasetConfig
	if !decode(w, r, &cfg) {
		return
	}
	if strings.TrimSpace(cfg.Name) == "" {
		writeError(w, http.StatusUnprocessableEntity, "Name is required")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	ds := &api.Dataset{
		ID:          s.nextID("ds"),
		Name:        cfg.Name,
		Description: cfg.Description,
		IsGlobal:    cfg.IsGlobal,
		UserID:      user.ID,
		Timestamps:  api.Timestamps{CreatedAt: now, UpdatedAt: now},
	}
	s.datasets[ds.ID] = ds
	writeJSON(w, http.StatusCreated, ds)
}

func (s *FakeServer) updateDataset(w http.ResponseWriter, r *http.Request, _ *api.User) {
	var patch api.DatasetPatch
	if !decode(w, r, &patch) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ds, ok := s.datasets[r.PathValue("id")]
	if !ok {
		writeError(w, http.StatusNotFound, "Dataset not found")
		return
	}
	if patch.Name != nil {
		ds.Name = *patch.Name
	}
	if patch.Description.IsSet() {
		ds.Description = patch.Description.Ptr()
	}
	if patch.IsGlobal != nil {
		ds.IsGlobal = *patch.IsGlobal
	}
	ds.UpdatedAt = s.now()
	writeJSON(w, http.StatusOK, ds)
}

func (s *FakeServer) deleteDataset(w http.ResponseWriter, r *http.Request, _ *api.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := r.PathValue("id")
	if _, ok := s.datasets[id]; !ok {
		writeError(w, http.StatusNotFound, "Dataset not found")
		return
	}
	if n := s.runsUsingDataset(id); n > 0 {
		writeError(w, http.StatusConflict, fmt.Sprintf("Dataset is used by %d run(s) and can not be deleted", n))
		return
	}
	delete(s.datasets, id)
	delete(s.members, id)
	for vid, v := range s.versions {
		if v.DatasetID == id {
			delete(s.versions, vid)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *FakeServer) runsUsingDataset(datasetID string) int {
	n := 0
	for _, run := range s.runs {
		if run.DatasetVersionID == nil {
			continue
		}
		if v, ok := s.versions[*run.DatasetVersionID]; ok && v.DatasetID == datasetID {
			n++
		}
	}
	return n
}

func (s *FakeServer) addMember(w http.ResponseWriter, r *http.Request, _ *api.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, tc := r.PathValue("id"), r.PathValue("tc")
	if _, ok := s.datasets[id]; !ok {
		writeError(w, http.StatusNotFound, "Dataset not found")
		return
	}
	if _, ok := s.testCases[tc]; !ok {
		writeError(w, http.StatusNotFound, "Test case not found")
		return
	}
	if s.members[id] == nil {
		s.members[id] = map[string]bool{}
	}
	s.members[id][tc] = true
	w.WriteHeader(http.StatusNoContent)
}

func (s *FakeServer) removeMember(w http.ResponseWriter, r *http.Request, _ *api.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, tc := r.PathValue("id"), r.PathValue("tc")
	if !s.members[id][tc] {
		writeError(w, http.StatusNotFound, "Test case is not part of the dataset")
		return
	}
	delete(s.members[id], tc)
	w.WriteHeader(http.StatusNoContent)
}

// dataset versions

func (s *FakeServer) listVersions(w http.ResponseWriter, r *http.Request, _ *api.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := r.PathValue("id")
	if _, ok := s.datasets[id]; !ok {
		writeError(w, http.StatusNotFound, "Dataset not found")
		return
	}
	out := make([]api.DatasetVersion, 0)
	for _, v := range sortedValues(s.versions) {
		if v.DatasetID == id {
			out = append(out, v)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *FakeServer) getVersion(w http.ResponseWriter, r *http.Request, _ *api.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.versions[r.PathValue("id")]
	if !ok {
		writeError(w, http.StatusNotFound, "Dataset version not found")
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *FakeServer) createVersion(w http.ResponseWriter, r *http.Request, user *api.User) {
	var cfg api.DatasetVersionConfig
	if !decode(w, r, &cfg) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id := r.PathValue("id")
	ds, ok := s.datasets[id]
	if !ok {
		writeError(w, http.StatusNotFound, "Dataset not found")
		return
	}
	next := 1
	for _, v := range s.versions {
		if v.DatasetID == id && v.VersionNumber >= next {
			next = v.VersionNumber + 1
		}
	}
	v := &api.DatasetVersion{
		ID:              s.nextID("dv"),
		DatasetID:       id,
		VersionNumber:   next,
		TestCaseIDs:     append([]string{}, cfg.TestCaseIDs...),
		ChangeSummary:   cfg.ChangeSummary,
		CreatedAt:       s.now(),
		CreatedByUserID: user.ID,
	}
	s.versions[v.ID] = v
	ds.CurrentVersionID = &v.ID
	writeJSON(w, http.StatusCreated, v)
}

// test cases

func (s *FakeServer) listTestCases(w http.ResponseWriter, _ *http.Request, _ *api.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, sortedValues(s.testCases))
}

func (s *FakeServer) getTestCase(w http.ResponseWriter, r *http.Request, _ *api.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tc, ok := s.testCases[r.PathValue("id")]
	if !ok {
		writeError(w, http.StatusNotFound, "Test case not found")
		return
	}
	writeJSON(w, http.StatusOK, tc)
}

func (s *FakeServer) createTestCase(w http.ResponseWriter, r *http.Request, user *api.User) {
	var cfg api.TestCaseConfig
	if !decode(w, r, &cfg) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	tc := &api.TestCase{
		ID:                 s.nextID("tc"),
		Name:               cfg.Name,
		Type:               cfg.Type,
		Input:              cfg.Input,
		ExpectedOutput:     cfg.ExpectedOutput,
		Context:            cfg.Context,
		RetrievalContext:   cfg.RetrievalContext,
		AdditionalMetadata: cfg.AdditionalMetadata,
		IsGlobal:           cfg.IsGlobal,
		UserID:             user.ID,
		Timestamps:         api.Timestamps{CreatedAt: now, UpdatedAt: now},
	}
	s.testCases[tc.ID] = tc
	writeJSON(w, http.StatusCreated, tc)
}

func (s *FakeServer) updateTestCase(w http.ResponseWriter, r *http.Request, _ *api.User) {
	var patch api.TestCasePatch
	if !decode(w, r, &patch) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tc, ok := s.testCases[r.PathValue("id")]
	if !ok {
		writeError(w, http.StatusNotFound, "Test case not found")
		return
	}
	if patch.Name != nil {
		tc.Name = *patch.Name
	}
	if patch.Input != nil {
		tc.Input = *patch.Input
	}
	if patch.ExpectedOutput.IsSet() {
		tc.ExpectedOutput = patch.ExpectedOutput.Ptr()
	}
	if patch.Context.IsSet() {
		tc.Context, _ = patch.Context.Get()
	}
	if patch.RetrievalContext.IsSet() {
		tc.RetrievalContext, _ = patch.RetrievalContext.Get()
	}
	if patch.AdditionalMetadata.IsSet() {
		tc.AdditionalMetadata, _ = patch.AdditionalMetadata.Get()
	}
	if patch.IsGlobal != nil {
		tc.IsGlobal = *patch.IsGlobal
	}
	tc.UpdatedAt = s.now()
	writeJSON(w, http.StatusOK, tc)
}

func (s *FakeServer) deleteTestCase(w http.ResponseWriter, r *http.Request, user *api.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := r.PathValue("id")
	tc, ok := s.testCases[id]
	if !ok {
		writeError(w, http.StatusNotFound, "Test case not found")
		return
	}
	if tc.IsGlobal && !user.IsAdmin {
		writeError(w, http.StatusForbidden, "Global test cases can only be deleted by an administrator")
		return
	}
	delete(s.testCases, id)
	for _, members := range s.members {
		delete(members, id)
	}
	w.WriteHeader(http.StatusNoContent)
}

// experiments and runs

func (s *FakeServer) listExperiments(w http.ResponseWriter, _ *http.Request, _ *api.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, sortedValues(s.exps))
}

func (s *FakeServer) getExperiment(w http.ResponseWriter, r *http.Request, _ *api.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.exps[r.PathValue("id")]
	if !ok {
		writeError(w, http.StatusNotFound, "Experiment not found")
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *FakeServer) createExperiment(w http.ResponseWriter, r *http.Request, user *api.User) {
	var cfg api.ExperimentConfig
	if !decode(w, r, &cfg) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	e := &api.Experiment{
		ID:          s.nextID("exp"),
		Name:        cfg.Name,
		Description: cfg.Description,
		UserID:      user.ID,
		Timestamps:  api.Timestamps{CreatedAt: now, UpdatedAt: now},
	}
	s.exps[e.ID] = e
	writeJSON(w, http.StatusCreated, e)
}

func (s *FakeServer) updateExperiment(w http.ResponseWriter, r *http.Request, _ *api.User) {
	var patch api.ExperimentPatch
	if !decode(w, r, &patch) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.exps[r.PathValue("id")]
	if !ok {
		writeError(w, http.StatusNotFound, "Experiment not found")
		return
	}
	if patch.Name != nil {
		e.Name = *patch.Name
	}
	if patch.Description.IsSet() {
		e.Description = patch.Description.Ptr()
	}
	e.UpdatedAt = s.now()
	writeJSON(w, http.StatusOK, e)
}

func (s *FakeServer) deleteExperiment(w http.ResponseWriter, r *http.Request, _ *api.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := r.PathValue("id")
	if _, ok := s.exps[id]; !ok {
		writeError(w, http.StatusNotFound, "Experiment not found")
		return
	}
	for _, run := range s.runs {
		if run.ExperimentID == id && (run.Status == api.StateRunning || run.Status == api.StatePending) {
			writeError(w, http.StatusConflict, "Experiment has active runs")
			return
		}
	}
	delete(s.exps, id)
	for rid, run := range s.runs {
		if run.ExperimentID == id {
			delete(s.runs, rid)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *FakeServer) listRuns(w http.ResponseWriter, r *http.Request, _ *api.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	experimentID := r.URL.Query().Get("experiment_id")
	out := make([]api.Run, 0)
	for _, run := range sortedValues(s.runs) {
		if experimentID == "" || run.ExperimentID == experimentID {
			out = append(out, run)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *FakeServer) getRun(w http.ResponseWriter, r *http.Request, _ *api.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[r.PathValue("id")]
	if !ok {
		writeError(w, http.StatusNotFound, "Run not found")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *FakeServer) deleteRun(w http.ResponseWriter, r *http.Request, _ *api.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := r.PathValue("id")
	run, ok := s.runs[id]
	if !ok {
		writeError(w, http.StatusNotFound, "Run not found")
		return
	}
	if run.Status == api.StateRunning {
		writeError(w, http.StatusConflict, "Run is still running")
		return
	}
	delete(s.runs, id)
	for rid, res := range s.results {
		if res.RunID == id {
			delete(s.results, rid)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *FakeServer) listResults(w http.ResponseWriter, r *http.Request, _ *api.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := r.PathValue("id")
	if _, ok := s.runs[id]; !ok {
		writeError(w, http.StatusNotFound, "Run not found")
		return
	}
	out := make([]api.TestResult, 0)
	for _, res := range sortedValues(s.results) {
		if res.RunID == id {
			out = append(out, res)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// auth

func (s *FakeServer) startSession(w http.ResponseWriter, email string) {
	token := newSessionToken()
	s.sessions[token] = email
	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: token, Path: "/", HttpOnly: true})
	resp := api.LoginResponse{User: s.accounts[email].user}
	if s.issueTokens {
		resp.AccessToken = token
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *FakeServer) login(w http.ResponseWriter, r *http.Request) {
	var creds api.Credentials
	if !decode(w, r, &creds) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[strings.ToLower(creds.Email)]
	if !ok || acc.password != creds.Password {
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	s.startSession(w, strings.ToLower(creds.Email))
}

func (s *FakeServer) register(w http.ResponseWriter, r *http.Request) {
	var reg api.Registration
	if !decode(w, r, &reg) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	email := strings.ToLower(reg.Email)
	if _, exists := s.accounts[email]; exists {
		writeError(w, http.StatusConflict, "Email already registered")
		return
	}
	s.accounts[email] = &account{
		user:     api.User{ID: s.nextID("u"), Email: email, Name: reg.Name, CreatedAt: s.now()},
		password: reg.Password,
	}
	s.startSession(w, email)
}

func (s *FakeServer) logout(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, err := r.Cookie(SessionCookie); err == nil {
		delete(s.sessions, c.Value)
	}
	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: "", Path: "/", MaxAge: -1})
	w.WriteHeader(http.StatusNoContent)
}

func (s *FakeServer) me(w http.ResponseWriter, _ *http.Request, user *api.User) {
	writeJSON(w, http.StatusOK, user)
}

func (s *FakeServer) updateMe(w http.ResponseWriter, r *http.Request, user *api.User) {
	var patch api.UserPatch
	if !decode(w, r, &patch) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[user.Email]
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	if patch.Name != nil {
		acc.user.Name = patch.Name
	}
	if patch.Email != nil && *patch.Email != acc.user.Email {
		email := strings.ToLower(*patch.Email)
		delete(s.accounts, acc.user.Email)
		acc.user.Email = email
		s.accounts[email] = acc
		for token, e := range s.sessions {
			if e == user.Email {
				s.sessions[token] = email
			}
		}
	}
	writeJSON(w, http.StatusOK, acc.user)
}

// MemberIDs returns the sorted test case IDs currently in the dataset.
func (s *FakeServer) MemberIDs(datasetID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.members[datasetID]))
	for id := range s.members[datasetID] {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
