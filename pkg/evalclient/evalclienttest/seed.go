package evalclienttest

import (
	"strings"

	"github.com/eval-hub/eval-dashboard/pkg/api"
)

// AddUser creates an account that can log in.
func (s *FakeServer) AddUser(email string, password string, isAdmin bool) api.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	email = strings.ToLower(email)
	user := api.User{ID: s.nextID("u"), Email: email, IsAdmin: isAdmin, CreatedAt: s.now()}
	s.accounts[email] = &account{user: user, password: password}
	return user
}

// PutDataset stores the dataset as is, an empty ID is assigned.
func (s *FakeServer) PutDataset(ds api.Dataset) api.Dataset {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ds.ID == "" {
		ds.ID = s.nextID("ds")
	}
	if ds.CreatedAt.IsZero() {
		ds.CreatedAt, ds.UpdatedAt = s.now(), s.now()
	}
	s.datasets[ds.ID] = &ds
	return ds
}

// PutVersion stores the version and makes it the current version of its dataset when
// its number is the highest.
func (s *FakeServer) PutVersion(v api.DatasetVersion) api.DatasetVersion {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v.ID == "" {
		v.ID = s.nextID("dv")
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = s.now()
	}
	s.versions[v.ID] = &v
	if ds, ok := s.datasets[v.DatasetID]; ok {
		highest := 0
		for _, other := range s.versions {
			if other.DatasetID == v.DatasetID && other.VersionNumber > highest {
				highest = other.VersionNumber
			}
		}
		if v.VersionNumber == highest {
			id := v.ID
			ds.CurrentVersionID = &id
		}
	}
	return v
}

func (s *FakeServer) PutTestCase(tc api.TestCase) api.TestCase {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tc.ID == "" {
		tc.ID = s.nextID("tc")
	}
	if tc.CreatedAt.IsZero() {
		tc.CreatedAt, tc.UpdatedAt = s.now(), s.now()
	}
	s.testCases[tc.ID] = &tc
	return tc
}

func (s *FakeServer) PutExperiment(e api.Experiment) api.Experiment {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == "" {
		e.ID = s.nextID("exp")
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt, e.UpdatedAt = s.now(), s.now()
	}
	s.exps[e.ID] = &e
	return e
}

func (s *FakeServer) PutRun(run api.Run) api.Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	if run.ID == "" {
		run.ID = s.nextID("run")
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = s.now()
	}
	s.runs[run.ID] = &run
	return run
}

func (s *FakeServer) PutResult(res api.TestResult) api.TestResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	if res.ID == "" {
		res.ID = s.nextID("res")
	}
	if res.CreatedAt.IsZero() {
		res.CreatedAt = s.now()
	}
	s.results[res.ID] = &res
	return res
}

// SetMembers replaces the test cases of a dataset.
func (s *FakeServer) SetMembers(datasetID string, testCaseIDs ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[datasetID] = map[string]bool{}
	for _, id := range testCaseIDs {
		s.members[datasetID][id] = true
	}
}

// Dataset returns a copy of the stored dataset, or nil.
func (s *FakeServer) Dataset(id string) *api.Dataset {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ds, ok := s.datasets[id]; ok {
		c := *ds
		return &c
	}
	return nil
}

// Datasets returns the number of stored datasets.
func (s *FakeServer) Datasets() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.datasets)
}

// Remove deletes a resource behind the client's back, whatever its type.
func (s *FakeServer) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.datasets, id)
	delete(s.versions, id)
	delete(s.testCases, id)
	delete(s.exps, id)
	delete(s.runs, id)
	delete(s.results, id)
}
