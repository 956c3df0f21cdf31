package managers

import (
	"github.com/eval-hub/eval-dashboard/internal/abstractions"
	"github.com/eval-hub/eval-dashboard/internal/executioncontext"
	"github.com/eval-hub/eval-dashboard/pkg/api"
	"github.com/eval-hub/eval-dashboard/pkg/evalclient"
)

// RunManager reads and deletes runs. Runs are created by the evaluation system.
type RunManager struct {
	client  *evalclient.Client
	runs    *resource[api.Run]
	results *TestResultManager
}

func NewRunManager(opts Options, results *TestResultManager) *RunManager {
	return &RunManager{
		client:  opts.Client,
		runs:    newResource[api.Run](EntityRun, abstractions.TableRuns, opts),
		results: results,
	}
}

func (m *RunManager) List(ctx *executioncontext.ExecutionContext) ([]api.Run, error) {
	return m.ListByExperiment(ctx, "")
}

// ListByExperiment returns the runs of one experiment, "" lists every run.
func (m *RunManager) ListByExperiment(ctx *executioncontext.ExecutionContext, experimentID string) ([]api.Run, error) {
	return m.runs.list(ctx, experimentID, func() ([]api.Run, error) {
		return m.client.ListRuns(ctx, experimentID)
	})
}

func (m *RunManager) GetByID(ctx *executioncontext.ExecutionContext, id string) (*api.Run, error) {
	return m.runs.get(ctx, id, func() (*api.Run, error) {
		return m.client.GetRun(ctx, id)
	})
}

// Delete removes the run and its cached results once the server confirmed it.
func (m *RunManager) Delete(ctx *executioncontext.ExecutionContext, id string) error {
	return m.runs.remove(ctx, id, func() error {
		return m.client.DeleteRun(ctx, id)
	}, m.results.cachedKeys(ctx, id)...)
}

// cachedKeys returns the keys of the cached runs of the experiment and of their results.
func (m *RunManager) cachedKeys(ctx *executioncontext.ExecutionContext, experimentID string) []abstractions.Key {
	var keys []abstractions.Key
	for _, run := range m.runs.cachedList(ctx, abstractions.Query{Parent: experimentID}) {
		keys = append(keys, m.results.cachedKeys(ctx, run.ID)...)
		keys = append(keys, m.runs.table.Key(run.ID))
	}
	return keys
}
