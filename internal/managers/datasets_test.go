package managers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/eval-hub/eval-dashboard/internal/constants"
	"github.com/eval-hub/eval-dashboard/internal/messages"
	se "github.com/eval-hub/eval-dashboard/internal/serviceerrors"
	"github.com/eval-hub/eval-dashboard/pkg/api"
	"github.com/eval-hub/eval-dashboard/pkg/evalclient"
)

func TestCreateServesProvisionalEntityUntilTheServerAnswers(t *testing.T) {
	f := newFixture(t)
	release := f.server.Hold(http.MethodPost, "/datasets")
	defer release()

	type result struct {
		dataset *api.Dataset
		err     error
	}
	done := make(chan result, 1)
	go func() {
		ds, err := f.Datasets.Create(newContext(), &api.DatasetConfig{Name: "Regression Suite"})
		done <- result{ds, err}
	}()

	waitFor(t, "the create request", func() bool {
		return f.server.CountRequests(http.MethodPost, "/datasets") == 1
	})
	cached := cachedDatasets(t, f)
	if len(cached) != 1 || !api.IsTemporaryID(cached[0].ID) {
		t.Fatalf("expected one provisional dataset, got %+v", cached)
	}
	provisional, err := f.Datasets.GetByID(newContext(), cached[0].ID)
	if err != nil {
		t.Fatalf("GetByID of the provisional dataset: %v", err)
	}
	if provisional.Name != "Regression Suite" || provisional.UserID != api.PendingUserID {
		t.Fatalf("unexpected provisional dataset %+v", provisional)
	}
	if f.server.CountRequests(http.MethodGet, "/datasets/"+provisional.ID) != 0 {
		t.Fatalf("a temporary ID must not be sent to the server")
	}

	release()
	res := <-done
	if res.err != nil {
		t.Fatalf("Create: %v", res.err)
	}
	if api.IsTemporaryID(res.dataset.ID) || res.dataset.UserID == api.PendingUserID {
		t.Fatalf("expected the server dataset, got %+v", res.dataset)
	}

	cached = cachedDatasets(t, f)
	if len(cached) != 1 || cached[0].ID != res.dataset.ID || cached[0].UserID != res.dataset.UserID {
		t.Fatalf("expected exactly the server dataset in the cache, got %+v", cached)
	}
	if got := testutil.ToFloat64(f.metrics.CacheWrites.WithLabelValues(EntityDataset, constants.WRITE_OUTCOME_CONFIRMED)); got != 1 {
		t.Errorf("expected one confirmed write, got %v", got)
	}
}

func TestCreateRollsBackWhenTheServerFails(t *testing.T) {
	f := newFixture(t)
	f.server.FailNext(http.MethodPost, "/datasets", http.StatusInternalServerError, "database unavailable")

	_, err := f.Datasets.Create(newContext(), &api.DatasetConfig{Name: "Regression Suite"})
	var apiErr *evalclient.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected the server error unchanged, got %v", err)
	}
	if cached := cachedDatasets(t, f); len(cached) != 0 {
		t.Fatalf("expected the provisional dataset to be rolled back, got %+v", cached)
	}
	if got := testutil.ToFloat64(f.metrics.CacheWrites.WithLabelValues(EntityDataset, constants.WRITE_OUTCOME_ROLLED_BACK)); got != 1 {
		t.Errorf("expected one rolled back write, got %v", got)
	}
}

func TestCreateWithoutRollbackLeavesTheProvisionalEntity(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.RollbackOnFailure = false })
	f.server.SetOffline(true)

	_, err := f.Datasets.Create(newContext(), &api.DatasetConfig{Name: "Regression Suite"})
	if !se.HasMessageCode(err, messages.UnableToSave) || !evalclient.IsConnectivityError(err) {
		t.Fatalf("expected an unable to save error, got %v", err)
	}
	cached := cachedDatasets(t, f)
	if len(cached) != 1 || !api.IsTemporaryID(cached[0].ID) {
		t.Fatalf("expected the provisional dataset to stay, got %+v", cached)
	}

	// a provisional entity is discarded locally
	requests := f.server.RequestCount()
	if err := f.Datasets.Delete(newContext(), cached[0].ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if f.server.RequestCount() != requests {
		t.Fatalf("discarding a provisional entity must not reach the server")
	}
	if cached := cachedDatasets(t, f); len(cached) != 0 {
		t.Fatalf("expected the provisional dataset to be gone, got %+v", cached)
	}
}

func TestCreateValidatesTheRequest(t *testing.T) {
	f := newFixture(t)
	_, err := f.Datasets.Create(newContext(), &api.DatasetConfig{Name: ""})
	if !se.HasMessageCode(err, messages.RequestValidationFailed) {
		t.Fatalf("expected a validation error, got %v", err)
	}
	if f.server.RequestCount() != 0 || len(cachedDatasets(t, f)) != 0 {
		t.Fatalf("an invalid request must not be cached or sent")
	}
}

func TestUpdateOfUncachedEntityFailsWithoutRequest(t *testing.T) {
	f := newFixture(t)
	ds := f.server.PutDataset(api.Dataset{Name: "Regression Suite", UserID: "u-1"})

	_, err := f.Datasets.Update(newContext(), ds.ID, &api.DatasetPatch{Name: ptr("Renamed")})
	if !se.HasMessageCode(err, messages.ResourceNotCached) {
		t.Fatalf("expected a not cached error, got %v", err)
	}
	if f.server.RequestCount() != 0 {
		t.Fatalf("expected no request, got %d", f.server.RequestCount())
	}
}

func TestUpdateClearsNullFields(t *testing.T) {
	f := newFixture(t)
	ds := f.server.PutDataset(api.Dataset{Name: "Regression Suite", Description: ptr("nightly"), UserID: "u-1"})
	if _, err := f.Datasets.GetByID(newContext(), ds.ID); err != nil {
		t.Fatal(err)
	}

	updated, err := f.Datasets.Update(newContext(), ds.ID, &api.DatasetPatch{Description: api.Null[string]()})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Description != nil || updated.Name != "Regression Suite" {
		t.Fatalf("expected the description to be removed, got %+v", updated)
	}

	var sent map[string]any
	if err := json.Unmarshal(f.server.LastRequest().Body, &sent); err != nil {
		t.Fatal(err)
	}
	if value, ok := sent["description"]; !ok || value != nil || len(sent) != 1 {
		t.Fatalf("expected an explicit null description, got %v", sent)
	}
	if cached := cachedDataset(t, f, ds.ID); cached.Description != nil {
		t.Fatalf("expected the cached description to be removed, got %q", *cached.Description)
	}
}

func TestMergePatchRemovesNullFields(t *testing.T) {
	current := api.TestCase{
		ID:             "tc-1",
		Name:           "greeting",
		Type:           api.TestCaseTypeLLM,
		Input:          api.TestCaseInput{Text: "hi"},
		ExpectedOutput: ptr("hello"),
		Context:        []string{"a", "b"},
	}
	merged, err := mergePatch(current, &api.TestCasePatch{
		ExpectedOutput: api.Null[string](),
		Context:        api.Value([]string{"c"}),
	})
	if err != nil {
		t.Fatalf("mergePatch: %v", err)
	}
	if merged.ExpectedOutput != nil {
		t.Errorf("expected the expected output to be removed, got %q", *merged.ExpectedOutput)
	}
	if len(merged.Context) != 1 || merged.Context[0] != "c" {
		t.Errorf("unexpected context %v", merged.Context)
	}
	if merged.Name != "greeting" || merged.Input.Text != "hi" {
		t.Errorf("expected the other fields to be kept, got %+v", merged)
	}
}

func TestUpdateMergesThePatch(t *testing.T) {
	f := newFixture(t)
	ds := f.server.PutDataset(api.Dataset{Name: "Regression Suite", Description: ptr("nightly"), UserID: "u-1"})
	if _, err := f.Datasets.GetByID(newContext(), ds.ID); err != nil {
		t.Fatal(err)
	}

	updated, err := f.Datasets.Update(newContext(), ds.ID, &api.DatasetPatch{Name: ptr("Renamed")})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Name != "Renamed" || updated.Description == nil || *updated.Description != "nightly" {
		t.Fatalf("unexpected dataset %+v", updated)
	}

	var sent map[string]any
	if err := json.Unmarshal(f.server.LastRequest().Body, &sent); err != nil {
		t.Fatal(err)
	}
	if len(sent) != 1 || sent["name"] != "Renamed" {
		t.Fatalf("expected only the changed field to be sent, got %v", sent)
	}
	if cached := cachedDataset(t, f, ds.ID); cached.Name != "Renamed" {
		t.Fatalf("expected the cache to hold the server response, got %+v", cached)
	}
}

func TestUpdateRestoresThePreImageOnFailure(t *testing.T) {
	f := newFixture(t)
	ds := f.server.PutDataset(api.Dataset{Name: "Regression Suite", UserID: "u-1"})
	if _, err := f.Datasets.GetByID(newContext(), ds.ID); err != nil {
		t.Fatal(err)
	}
	f.server.FailNext(http.MethodPut, "/datasets/"+ds.ID, http.StatusUnprocessableEntity, "Name already taken")

	_, err := f.Datasets.Update(newContext(), ds.ID, &api.DatasetPatch{Name: ptr("Taken")})
	var rule *se.BusinessRuleError
	if !errors.As(err, &rule) || rule.Detail != "Name already taken" || rule.Operation != "update" {
		t.Fatalf("expected a business rule error, got %v", err)
	}
	if cached := cachedDataset(t, f, ds.ID); cached.Name != "Regression Suite" {
		t.Fatalf("expected the pre-image to be restored, got %+v", cached)
	}
}

func TestUpdateOfProvisionalEntityIsRefused(t *testing.T) {
	f := newFixture(t)
	_, err := f.Datasets.Update(newContext(), api.NewTemporaryID(), &api.DatasetPatch{Name: ptr("x")})
	if !se.HasMessageCode(err, messages.TemporaryResource) {
		t.Fatalf("expected a temporary resource error, got %v", err)
	}
}

func TestGetFallsBackToTheCacheWhenOffline(t *testing.T) {
	f := newFixture(t)
	ds := f.server.PutDataset(api.Dataset{Name: "Regression Suite", UserID: "u-1"})
	if _, err := f.Datasets.GetByID(newContext(), ds.ID); err != nil {
		t.Fatal(err)
	}

	f.server.SetOffline(true)
	got, err := f.Datasets.GetByID(newContext(), ds.ID)
	if err != nil {
		t.Fatalf("expected the cached dataset, got %v", err)
	}
	if got.ID != ds.ID || got.Name != ds.Name {
		t.Fatalf("unexpected dataset %+v", got)
	}
	if v := testutil.ToFloat64(f.metrics.CacheReads.WithLabelValues(EntityDataset, constants.CACHE_OUTCOME_STALE)); v != 1 {
		t.Errorf("expected one stale read, got %v", v)
	}
}

func TestGetFallsBackToTheCacheOnServerError(t *testing.T) {
	f := newFixture(t)
	ds := f.server.PutDataset(api.Dataset{Name: "Regression Suite", UserID: "u-1"})
	if _, err := f.Datasets.GetByID(newContext(), ds.ID); err != nil {
		t.Fatal(err)
	}
	f.server.FailNext(http.MethodGet, "/datasets/"+ds.ID, http.StatusServiceUnavailable, "maintenance")

	if got, err := f.Datasets.GetByID(newContext(), ds.ID); err != nil || got.ID != ds.ID {
		t.Fatalf("expected the cached dataset, got %v %v", got, err)
	}
}

func TestGetWithoutCacheReportsTheReason(t *testing.T) {
	f := newFixture(t)
	f.server.SetOffline(true)

	_, err := f.Datasets.GetByID(newContext(), "ds-1")
	if !se.HasMessageCode(err, messages.UnableToLoad) {
		t.Fatalf("expected an unable to load error, got %v", err)
	}
	if !strings.Contains(err.Error(), "ds-1") || !evalclient.IsConnectivityError(err) {
		t.Fatalf("expected the resource and the underlying failure, got %v", err)
	}
	if v := testutil.ToFloat64(f.metrics.CacheReads.WithLabelValues(EntityDataset, constants.CACHE_OUTCOME_MISS)); v != 1 {
		t.Errorf("expected one miss, got %v", v)
	}
}

func TestGetNotFoundEvictsTheCachedEntity(t *testing.T) {
	f := newFixture(t)
	ds := f.server.PutDataset(api.Dataset{Name: "Regression Suite", UserID: "u-1"})
	if _, err := f.Datasets.GetByID(newContext(), ds.ID); err != nil {
		t.Fatal(err)
	}
	f.server.Remove(ds.ID)

	_, err := f.Datasets.GetByID(newContext(), ds.ID)
	if !se.HasMessageCode(err, messages.ResourceNotFound) || !evalclient.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if cachedDataset(t, f, ds.ID) != nil {
		t.Fatalf("expected the dataset to be evicted")
	}
}

func TestGetOfUnknownTemporaryID(t *testing.T) {
	f := newFixture(t)
	_, err := f.Datasets.GetByID(newContext(), api.NewTemporaryID())
	if !se.HasMessageCode(err, messages.ResourceNotFound) || f.server.RequestCount() != 0 {
		t.Fatalf("expected a local not found error, got %v", err)
	}
}

func TestUnauthorizedIsPropagated(t *testing.T) {
	f := newFixture(t)
	ds := f.server.PutDataset(api.Dataset{Name: "Regression Suite", UserID: "u-1"})
	if _, err := f.Datasets.GetByID(newContext(), ds.ID); err != nil {
		t.Fatal(err)
	}
	f.server.SetRequireAuth(true)

	if _, err := f.Datasets.GetByID(newContext(), ds.ID); !evalclient.IsUnauthorized(err) {
		t.Fatalf("expected the 401 without fallback, got %v", err)
	}
}

func TestListReplacesTheCachedScope(t *testing.T) {
	f := newFixture(t)
	kept := f.server.PutDataset(api.Dataset{Name: "kept", UserID: "u-1"})
	gone := f.server.PutDataset(api.Dataset{Name: "gone", UserID: "u-1"})
	if _, err := f.Datasets.List(newContext()); err != nil {
		t.Fatal(err)
	}

	f.server.Remove(gone.ID)
	datasets, err := f.Datasets.List(newContext())
	if err != nil {
		t.Fatal(err)
	}
	if len(datasets) != 1 || datasets[0].ID != kept.ID {
		t.Fatalf("unexpected datasets %+v", datasets)
	}
	if cachedDataset(t, f, gone.ID) != nil {
		t.Fatalf("expected the deleted dataset to be pruned")
	}
}

func TestListKeepsProvisionalEntities(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.RollbackOnFailure = false })
	f.server.FailNext(http.MethodPost, "/datasets", http.StatusBadGateway, "")
	_, _ = f.Datasets.Create(newContext(), &api.DatasetConfig{Name: "draft"})

	if _, err := f.Datasets.List(newContext()); err != nil {
		t.Fatal(err)
	}
	cached := cachedDatasets(t, f)
	if len(cached) != 1 || !api.IsTemporaryID(cached[0].ID) {
		t.Fatalf("expected the provisional dataset to survive the refresh, got %+v", cached)
	}
}

func TestListFallsBackToTheCache(t *testing.T) {
	f := newFixture(t)
	f.server.PutDataset(api.Dataset{Name: "Regression Suite", UserID: "u-1"})
	if _, err := f.Datasets.List(newContext()); err != nil {
		t.Fatal(err)
	}

	f.server.FailNext(http.MethodGet, "/datasets", http.StatusInternalServerError, "")
	datasets, err := f.Datasets.List(newContext())
	if err != nil || len(datasets) != 1 {
		t.Fatalf("expected the cached list, got %v %v", datasets, err)
	}

	f.server.SetOffline(true)
	if _, err := f.Experiments.List(newContext()); !se.HasMessageCode(err, messages.UnableToList) {
		t.Fatalf("expected an unable to list error without cache, got %v", err)
	}
}

func TestDeleteRejectedByBusinessRuleKeepsTheCache(t *testing.T) {
	f := newFixture(t)
	ds := f.server.PutDataset(api.Dataset{Name: "Regression Suite", UserID: "u-1"})
	v := f.server.PutVersion(api.DatasetVersion{DatasetID: ds.ID, VersionNumber: 1, TestCaseIDs: []string{"A"}})
	f.server.PutRun(api.Run{ExperimentID: "exp-1", DatasetVersionID: &v.ID, Status: api.StateCompleted})
	if _, err := f.Datasets.GetByID(newContext(), ds.ID); err != nil {
		t.Fatal(err)
	}

	err := f.Datasets.Delete(newContext(), ds.ID)
	if !se.IsBusinessRuleViolation(err) {
		t.Fatalf("expected a business rule violation, got %v", err)
	}
	var rule *se.BusinessRuleError
	errors.As(err, &rule)
	if !strings.Contains(rule.Detail, "used by 1 run") {
		t.Fatalf("expected the server explanation, got %q", rule.Detail)
	}
	if cachedDataset(t, f, ds.ID) == nil {
		t.Fatalf("expected the dataset to stay cached")
	}
}

func TestDeleteEvictsTheDatasetAndItsVersions(t *testing.T) {
	f := newFixture(t)
	ds := f.server.PutDataset(api.Dataset{Name: "Regression Suite", UserID: "u-1"})
	f.server.PutVersion(api.DatasetVersion{DatasetID: ds.ID, VersionNumber: 1, TestCaseIDs: []string{"A"}})
	if _, err := f.Datasets.GetByID(newContext(), ds.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.DatasetVersions.List(newContext(), ds.ID); err != nil {
		t.Fatal(err)
	}

	if err := f.Datasets.Delete(newContext(), ds.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if cachedDataset(t, f, ds.ID) != nil {
		t.Fatalf("expected the dataset to be evicted")
	}
	if keys := f.Datasets.versionKeys(newContext(), ds.ID); len(keys) != 0 {
		t.Fatalf("expected the versions to be evicted, got %v", keys)
	}
}

func TestDeleteOfMissingDatasetEvictsIt(t *testing.T) {
	f := newFixture(t)
	ds := f.server.PutDataset(api.Dataset{Name: "Regression Suite", UserID: "u-1"})
	if _, err := f.Datasets.GetByID(newContext(), ds.ID); err != nil {
		t.Fatal(err)
	}
	f.server.Remove(ds.ID)

	if err := f.Datasets.Delete(newContext(), ds.ID); !se.HasMessageCode(err, messages.ResourceNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if cachedDataset(t, f, ds.ID) != nil {
		t.Fatalf("expected the dataset to be evicted")
	}
}

func TestMembershipChangesInvalidateTheDataset(t *testing.T) {
	f := newFixture(t)
	ds := f.server.PutDataset(api.Dataset{Name: "Regression Suite", UserID: "u-1"})
	f.server.PutVersion(api.DatasetVersion{DatasetID: ds.ID, VersionNumber: 1, TestCaseIDs: []string{}})
	tc := f.server.PutTestCase(api.TestCase{Name: "greeting", Type: api.TestCaseTypeLLM, Input: api.TestCaseInput{Text: "hi"}})
	if _, err := f.Datasets.GetByID(newContext(), ds.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.DatasetVersions.List(newContext(), ds.ID); err != nil {
		t.Fatal(err)
	}

	if err := f.Datasets.AddTestCase(newContext(), ds.ID, tc.ID); err != nil {
		t.Fatalf("AddTestCase: %v", err)
	}
	if cachedDataset(t, f, ds.ID) != nil || len(f.Datasets.versionKeys(newContext(), ds.ID)) != 0 {
		t.Fatalf("expected the dataset and its versions to be invalidated")
	}
	if got := f.server.MemberIDs(ds.ID); len(got) != 1 {
		t.Fatalf("expected the test case to be added, got %v", got)
	}

	if err := f.Datasets.RemoveTestCase(newContext(), ds.ID, tc.ID); err != nil {
		t.Fatalf("RemoveTestCase: %v", err)
	}
	if err := f.Datasets.RemoveTestCase(newContext(), ds.ID, tc.ID); !se.HasMessageCode(err, messages.ResourceNotFound) {
		t.Fatalf("expected not found for a missing member, got %v", err)
	}
}
