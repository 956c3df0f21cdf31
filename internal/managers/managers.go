// Package managers layers the local cache in front of the evaluation API, one manager per
// entity type.
//
// Reads go to the server and fall back to the cache when the server can not be reached.
// Creates and updates are written to the cache before the request is sent and reverted
// when the server rejects them. Deletes wait for the server.
//
// Managers are safe for concurrent use but do not order concurrent writes to the same
// entity: the last write to complete wins in the cache.
package managers

import (
	"time"

	"github.com/eval-hub/eval-dashboard/internal/abstractions"
	"github.com/eval-hub/eval-dashboard/internal/metrics"
	"github.com/eval-hub/eval-dashboard/pkg/evalclient"
)

// Entity names used in messages, logs and metric labels.
const (
	EntityDataset        = "dataset"
	EntityDatasetVersion = "dataset version"
	EntityTestCase       = "test case"
	EntityExperiment     = "experiment"
	EntityRun            = "run"
	EntityTestResult     = "test result"
)

// AdminChecker reports whether the signed in user is an administrator.
type AdminChecker interface {
	IsAdmin() bool
}

// Options are shared by every manager. Client and Store are required.
type Options struct {
	Client  *evalclient.Client
	Store   abstractions.LocalStore
	Metrics *metrics.Metrics
	// RollbackOnFailure reverts optimistic writes that did not reach the server
	RollbackOnFailure bool
	// Users is consulted before deleting global test cases, nil means no admin rights
	Users AdminChecker
	// Now replaces the clock used for provisional timestamps
	Now func() time.Time
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now().UTC()
}

// Managers groups the entity managers of one application.
type Managers struct {
	Datasets        *DatasetManager
	DatasetVersions *DatasetVersionManager
	TestCases       *TestCaseManager
	Experiments     *ExperimentManager
	Runs            *RunManager
	TestResults     *TestResultManager
}

func New(opts Options) *Managers {
	datasets := NewDatasetManager(opts)
	results := NewTestResultManager(opts)
	runs := NewRunManager(opts, results)
	return &Managers{
		Datasets:        datasets,
		DatasetVersions: NewDatasetVersionManager(opts, datasets),
		TestCases:       NewTestCaseManager(opts),
		Experiments:     NewExperimentManager(opts, runs),
		Runs:            runs,
		TestResults:     results,
	}
}
