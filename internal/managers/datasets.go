package managers

import (
	validator "github.com/go-playground/validator/v10"

	"github.com/eval-hub/eval-dashboard/internal/abstractions"
	"github.com/eval-hub/eval-dashboard/internal/constants"
	"github.com/eval-hub/eval-dashboard/internal/executioncontext"
	"github.com/eval-hub/eval-dashboard/internal/messages"
	"github.com/eval-hub/eval-dashboard/internal/serialization"
	se "github.com/eval-hub/eval-dashboard/internal/serviceerrors"
	"github.com/eval-hub/eval-dashboard/pkg/api"
	"github.com/eval-hub/eval-dashboard/pkg/evalclient"
)

type DatasetManager struct {
	opts     Options
	client   *evalclient.Client
	validate *validator.Validate
	datasets *resource[api.Dataset]
	versions *resource[api.DatasetVersion]
}

func NewDatasetManager(opts Options) *DatasetManager {
	return &DatasetManager{
		opts:     opts,
		client:   opts.Client,
		validate: opts.Client.Validator(),
		datasets: newResource[api.Dataset](EntityDataset, abstractions.TableDatasets, opts),
		versions: newResource[api.DatasetVersion](EntityDatasetVersion, abstractions.TableDatasetVersions, opts),
	}
}

func (m *DatasetManager) List(ctx *executioncontext.ExecutionContext) ([]api.Dataset, error) {
	return m.datasets.list(ctx, "", func() ([]api.Dataset, error) {
		return m.client.ListDatasets(ctx)
	})
}

func (m *DatasetManager) GetByID(ctx *executioncontext.ExecutionContext, id string) (*api.Dataset, error) {
	return m.datasets.get(ctx, id, func() (*api.Dataset, error) {
		return m.client.GetDataset(ctx, id)
	})
}

// Create caches a provisional dataset under a temporary ID before the request is sent.
func (m *DatasetManager) Create(ctx *executioncontext.ExecutionContext, config *api.DatasetConfig) (*api.Dataset, error) {
	if err := serialization.ValidateRequest(m.validate, ctx, config); err != nil {
		return nil, err
	}
	now := m.opts.now()
	provisional := api.Dataset{
		ID:          api.NewTemporaryID(),
		Name:        config.Name,
		Description: config.Description,
		IsGlobal:    config.IsGlobal,
		UserID:      api.PendingUserID,
		Timestamps:  api.Timestamps{CreatedAt: now, UpdatedAt: now},
	}
	return m.datasets.create(ctx, provisional, func() (*api.Dataset, error) {
		return m.client.CreateDataset(ctx, config)
	})
}

func (m *DatasetManager) Update(ctx *executioncontext.ExecutionContext, id string, patch *api.DatasetPatch) (*api.Dataset, error) {
	if err := serialization.ValidateRequest(m.validate, ctx, patch); err != nil {
		return nil, err
	}
	return m.datasets.update(ctx, id, patch, func() (*api.Dataset, error) {
		return m.client.UpdateDataset(ctx, id, patch)
	})
}

// Delete removes the dataset once the server confirmed it, together with its cached
// versions. A rejection by the server leaves the cache untouched.
func (m *DatasetManager) Delete(ctx *executioncontext.ExecutionContext, id string) error {
	return m.datasets.remove(ctx, id, func() error {
		return m.client.DeleteDataset(ctx, id)
	}, m.versionKeys(ctx, id)...)
}

// AddTestCase adds the test case to the dataset. The server decides how the membership
// change is recorded, so the cached dataset and its versions are invalidated afterwards.
func (m *DatasetManager) AddTestCase(ctx *executioncontext.ExecutionContext, datasetID string, testCaseID string) error {
	return m.changeMembership(ctx, "add test case", datasetID, testCaseID, m.client.AddTestCaseToDataset)
}

func (m *DatasetManager) RemoveTestCase(ctx *executioncontext.ExecutionContext, datasetID string, testCaseID string) error {
	return m.changeMembership(ctx, "remove test case", datasetID, testCaseID, m.client.RemoveTestCaseFromDataset)
}

func (m *DatasetManager) changeMembership(ctx *executioncontext.ExecutionContext, operation string, datasetID string, testCaseID string,
	send func(*executioncontext.ExecutionContext, string, string) error) error {
	for _, id := range []string{datasetID, testCaseID} {
		if api.IsTemporaryID(id) {
			return se.NewServiceError(messages.TemporaryResource, "Type", EntityDataset, "ResourceId", id)
		}
	}
	if err := send(ctx, datasetID, testCaseID); err != nil {
		return m.datasets.rejected(ctx, operation, datasetID, err)
	}
	m.invalidate(ctx, datasetID)
	return nil
}

// invalidate evicts the dataset and its versions in one store transaction.
func (m *DatasetManager) invalidate(ctx *executioncontext.ExecutionContext, datasetID string) {
	keys := append([]abstractions.Key{m.datasets.table.Key(datasetID)}, m.versionKeys(ctx, datasetID)...)
	if err := m.opts.Store.Invalidate(ctx.Ctx, keys...); err != nil {
		ctx.Logger.Warn("Failed to invalidate dataset", constants.LOG_ID, datasetID, constants.LOG_ERROR, err)
		return
	}
	ctx.Logger.Debug("Invalidated dataset", constants.LOG_ID, datasetID, constants.LOG_COUNT, len(keys))
}

func (m *DatasetManager) versionKeys(ctx *executioncontext.ExecutionContext, datasetID string) []abstractions.Key {
	versions := m.versions.cachedList(ctx, abstractions.Query{Parent: datasetID})
	keys := make([]abstractions.Key, 0, len(versions))
	for _, v := range versions {
		keys = append(keys, m.versions.table.Key(v.ID))
	}
	return keys
}

// setCurrentVersion points the cached dataset at version. The dataset is loaded through
// the read path when it is not cached.
func (m *DatasetManager) setCurrentVersion(ctx *executioncontext.ExecutionContext, datasetID string, version *api.DatasetVersion) error {
	if version.DatasetID != datasetID {
		return se.NewServiceError(messages.VersionDatasetMismatch, "ResourceId", version.ID, "Actual", version.DatasetID, "Expected", datasetID)
	}
	dataset := m.datasets.cached(ctx, datasetID)
	if dataset == nil {
		loaded, err := m.GetByID(ctx, datasetID)
		if err != nil {
			return err
		}
		dataset = loaded
	}
	id := version.ID
	dataset.CurrentVersionID = &id
	if err := m.datasets.table.Put(ctx, *dataset); err != nil {
		return se.NewServiceErrorWithCause(err, messages.UnableToSave, "Type", EntityDataset, "ResourceId", datasetID)
	}
	return nil
}
