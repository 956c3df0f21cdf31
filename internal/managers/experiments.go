package managers

import (
	validator "github.com/go-playground/validator/v10"

	"github.com/eval-hub/eval-dashboard/internal/abstractions"
	"github.com/eval-hub/eval-dashboard/internal/executioncontext"
	"github.com/eval-hub/eval-dashboard/internal/serialization"
	"github.com/eval-hub/eval-dashboard/pkg/api"
	"github.com/eval-hub/eval-dashboard/pkg/evalclient"
)

type ExperimentManager struct {
	opts        Options
	client      *evalclient.Client
	validate    *validator.Validate
	experiments *resource[api.Experiment]
	runs        *RunManager
}

func NewExperimentManager(opts Options, runs *RunManager) *ExperimentManager {
	return &ExperimentManager{
		opts:        opts,
		client:      opts.Client,
		validate:    opts.Client.Validator(),
		experiments: newResource[api.Experiment](EntityExperiment, abstractions.TableExperiments, opts),
		runs:        runs,
	}
}

func (m *ExperimentManager) List(ctx *executioncontext.ExecutionContext) ([]api.Experiment, error) {
	return m.experiments.list(ctx, "", func() ([]api.Experiment, error) {
		return m.client.ListExperiments(ctx)
	})
}

func (m *ExperimentManager) GetByID(ctx *executioncontext.ExecutionContext, id string) (*api.Experiment, error) {
	return m.experiments.get(ctx, id, func() (*api.Experiment, error) {
		return m.client.GetExperiment(ctx, id)
	})
}

func (m *ExperimentManager) Create(ctx *executioncontext.ExecutionContext, config *api.ExperimentConfig) (*api.Experiment, error) {
	if err := serialization.ValidateRequest(m.validate, ctx, config); err != nil {
		return nil, err
	}
	now := m.opts.now()
	provisional := api.Experiment{
		ID:          api.NewTemporaryID(),
		Name:        config.Name,
		Description: config.Description,
		UserID:      api.PendingUserID,
		Timestamps:  api.Timestamps{CreatedAt: now, UpdatedAt: now},
	}
	return m.experiments.create(ctx, provisional, func() (*api.Experiment, error) {
		return m.client.CreateExperiment(ctx, config)
	})
}

func (m *ExperimentManager) Update(ctx *executioncontext.ExecutionContext, id string, patch *api.ExperimentPatch) (*api.Experiment, error) {
	if err := serialization.ValidateRequest(m.validate, ctx, patch); err != nil {
		return nil, err
	}
	return m.experiments.update(ctx, id, patch, func() (*api.Experiment, error) {
		return m.client.UpdateExperiment(ctx, id, patch)
	})
}

// Delete removes the experiment and, once the server confirmed, its cached runs and
// their results.
func (m *ExperimentManager) Delete(ctx *executioncontext.ExecutionContext, id string) error {
	return m.experiments.remove(ctx, id, func() error {
		return m.client.DeleteExperiment(ctx, id)
	}, m.runs.cachedKeys(ctx, id)...)
}
