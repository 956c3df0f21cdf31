package managers

import (
	"maps"
	"slices"

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

// VersionComparison is the membership difference between two versions of a dataset.
// The ID lists are sorted and free of duplicates.
type VersionComparison struct {
	Source    *api.DatasetVersion `json:"source"`
	Target    *api.DatasetVersion `json:"target"`
	Added     []string            `json:"added"`
	Removed   []string            `json:"removed"`
	Unchanged []string            `json:"unchanged"`
}

// DatasetVersionManager manages the immutable versions of datasets. Versions are only
// created, never updated or deleted.
type DatasetVersionManager struct {
	opts     Options
	client   *evalclient.Client
	validate *validator.Validate
	versions *resource[api.DatasetVersion]
	datasets *DatasetManager
}

func NewDatasetVersionManager(opts Options, datasets *DatasetManager) *DatasetVersionManager {
	return &DatasetVersionManager{
		opts:     opts,
		client:   opts.Client,
		validate: opts.Client.Validator(),
		versions: newResource[api.DatasetVersion](EntityDatasetVersion, abstractions.TableDatasetVersions, opts),
		datasets: datasets,
	}
}

// List returns the versions of the dataset ordered by version number.
func (m *DatasetVersionManager) List(ctx *executioncontext.ExecutionContext, datasetID string) ([]api.DatasetVersion, error) {
	versions, err := m.versions.list(ctx, datasetID, func() ([]api.DatasetVersion, error) {
		return m.client.ListDatasetVersions(ctx, datasetID)
	})
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(versions, func(a, b api.DatasetVersion) int {
		return a.VersionNumber - b.VersionNumber
	})
	return versions, nil
}

func (m *DatasetVersionManager) GetByID(ctx *executioncontext.ExecutionContext, id string) (*api.DatasetVersion, error) {
	return m.versions.get(ctx, id, func() (*api.DatasetVersion, error) {
		return m.client.GetDatasetVersion(ctx, id)
	})
}

// Create snapshots the given membership as the next version of the dataset and makes it
// the dataset's current version.
func (m *DatasetVersionManager) Create(ctx *executioncontext.ExecutionContext, datasetID string, config *api.DatasetVersionConfig) (*api.DatasetVersion, error) {
	if api.IsTemporaryID(datasetID) {
		return nil, se.NewServiceError(messages.TemporaryResource, "Type", EntityDataset, "ResourceId", datasetID)
	}
	if err := serialization.ValidateRequest(m.validate, ctx, config); err != nil {
		return nil, err
	}

	provisional := api.DatasetVersion{
		ID:              api.NewTemporaryID(),
		DatasetID:       datasetID,
		VersionNumber:   m.nextVersionNumber(ctx, datasetID),
		TestCaseIDs:     slices.Clone(config.TestCaseIDs),
		ChangeSummary:   config.ChangeSummary,
		CreatedAt:       m.opts.now(),
		CreatedByUserID: api.PendingUserID,
	}
	created, err := m.versions.create(ctx, provisional, func() (*api.DatasetVersion, error) {
		return m.client.CreateDatasetVersion(ctx, datasetID, config)
	})
	if err != nil {
		return nil, err
	}

	if err := m.datasets.setCurrentVersion(ctx, datasetID, created); err != nil {
		if se.HasMessageCode(err, messages.VersionDatasetMismatch) {
			ctx.Logger.Error("Server returned a version of another dataset", constants.LOG_ID, created.ID, constants.LOG_ERROR, err)
			return nil, err
		}
		ctx.Logger.Warn("Failed to update the current version of the dataset", constants.LOG_ID, datasetID, constants.LOG_ERROR, err)
	}
	return created, nil
}

// nextVersionNumber is one more than the highest known version number of the dataset.
// The versions are loaded first when none are cached.
func (m *DatasetVersionManager) nextVersionNumber(ctx *executioncontext.ExecutionContext, datasetID string) int {
	latest := abstractions.Query{Parent: datasetID, Descending: true, Limit: 1}
	cached := m.versions.cachedList(ctx, latest)
	if len(cached) == 0 {
		if _, err := m.List(ctx, datasetID); err != nil {
			ctx.Logger.Debug("Versions not available, numbering from the cache", constants.LOG_ID, datasetID, constants.LOG_ERROR, err)
		}
		cached = m.versions.cachedList(ctx, latest)
	}
	if len(cached) == 0 {
		return 1
	}
	return cached[0].VersionNumber + 1
}

// Compare loads both versions through the read path and compares their test cases.
func (m *DatasetVersionManager) Compare(ctx *executioncontext.ExecutionContext, sourceID string, targetID string) (*VersionComparison, error) {
	source, err := m.GetByID(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	target, err := m.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}
	return CompareVersions(source, target), nil
}

// CompareVersions computes added = target - source, removed = source - target and
// unchanged = source & target over the test case IDs.
func CompareVersions(source *api.DatasetVersion, target *api.DatasetVersion) *VersionComparison {
	inSource := toSet(source.TestCaseIDs)
	inTarget := toSet(target.TestCaseIDs)

	comparison := &VersionComparison{
		Source:    source,
		Target:    target,
		Added:     []string{},
		Removed:   []string{},
		Unchanged: []string{},
	}
	for _, id := range slices.Sorted(maps.Keys(inTarget)) {
		if _, ok := inSource[id]; ok {
			comparison.Unchanged = append(comparison.Unchanged, id)
		} else {
			comparison.Added = append(comparison.Added, id)
		}
	}
	for _, id := range slices.Sorted(maps.Keys(inSource)) {
		if _, ok := inTarget[id]; !ok {
			comparison.Removed = append(comparison.Removed, id)
		}
	}
	return comparison
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
