// Package storagetest holds the behaviour every LocalStore implementation must share.
package storagetest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/eval-hub/eval-dashboard/internal/abstractions"
	se "github.com/eval-hub/eval-dashboard/internal/serviceerrors"
)

func record(id string, parent string, sort int64) abstractions.Record {
	return abstractions.Record{
		ID:     id,
		Parent: parent,
		Sort:   sort,
		Entity: []byte(fmt.Sprintf(`{"id":%q}`, id)),
	}
}

func ids(records []abstractions.Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.ID)
	}
	return out
}

func equal(a []string, b ...string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// RunComplianceTests runs the standard compliance test suite against a LocalStore
// implementation. newStore must return an empty store.
func RunComplianceTests(t *testing.T, newStore func(t *testing.T) abstractions.LocalStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("PutAndGet", func(t *testing.T) {
		s := newStore(t)
		if err := s.Put(ctx, abstractions.TableDatasets, record("ds-1", "", 10)); err != nil {
			t.Fatal(err)
		}
		got, err := s.Get(ctx, abstractions.TableDatasets, "ds-1")
		if err != nil {
			t.Fatal(err)
		}
		if got.ID != "ds-1" || got.Sort != 10 || string(got.Entity) != `{"id":"ds-1"}` {
			t.Fatalf("unexpected record %+v", got)
		}
		if got.UpdatedAt.IsZero() {
			t.Fatalf("expected updated_at to be set")
		}
	})

	t.Run("GetMiss", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(ctx, abstractions.TableDatasets, "missing")
		if !se.IsRecordNotFound(err) {
			t.Fatalf("expected record not found, got %v", err)
		}
	})

	t.Run("TablesAreSeparate", func(t *testing.T) {
		s := newStore(t)
		_ = s.Put(ctx, abstractions.TableDatasets, record("same", "", 1))
		if _, err := s.Get(ctx, abstractions.TableExperiments, "same"); !se.IsRecordNotFound(err) {
			t.Fatalf("expected the experiments table to be empty, got %v", err)
		}
	})

	t.Run("Overwrite", func(t *testing.T) {
		s := newStore(t)
		_ = s.Put(ctx, abstractions.TableTestCases, record("tc-1", "", 1))
		updated := record("tc-1", "", 2)
		updated.Entity = []byte(`{"id":"tc-1","name":"v2"}`)
		if err := s.Put(ctx, abstractions.TableTestCases, updated); err != nil {
			t.Fatal(err)
		}
		got, err := s.Get(ctx, abstractions.TableTestCases, "tc-1")
		if err != nil {
			t.Fatal(err)
		}
		if got.Sort != 2 || string(got.Entity) != `{"id":"tc-1","name":"v2"}` {
			t.Fatalf("expected the overwritten record, got %+v", got)
		}
	})

	t.Run("DeleteAndDeleteNonexistent", func(t *testing.T) {
		s := newStore(t)
		_ = s.Put(ctx, abstractions.TableRuns, record("run-1", "exp-1", 1))
		if err := s.Delete(ctx, abstractions.TableRuns, "run-1"); err != nil {
			t.Fatal(err)
		}
		if _, err := s.Get(ctx, abstractions.TableRuns, "run-1"); !se.IsRecordNotFound(err) {
			t.Fatalf("expected miss after delete, got %v", err)
		}
		if err := s.Delete(ctx, abstractions.TableRuns, "never-existed"); err != nil {
			t.Fatalf("delete of a missing key should not fail: %v", err)
		}
	})

	t.Run("QueryByParentAndRange", func(t *testing.T) {
		s := newStore(t)
		err := s.BulkPut(ctx, abstractions.TableDatasetVersions, []abstractions.Record{
			record("v3", "ds-1", 3),
			record("v1", "ds-1", 1),
			record("v2", "ds-1", 2),
			record("w1", "ds-2", 1),
		})
		if err != nil {
			t.Fatal(err)
		}

		all, err := s.Query(ctx, abstractions.TableDatasetVersions, abstractions.Query{})
		if err != nil {
			t.Fatal(err)
		}
		if !equal(ids(all), "v1", "w1", "v2", "v3") {
			t.Fatalf("unexpected order %v", ids(all))
		}

		scoped, _ := s.Query(ctx, abstractions.TableDatasetVersions, abstractions.Query{Parent: "ds-1"})
		if !equal(ids(scoped), "v1", "v2", "v3") {
			t.Fatalf("unexpected scoped result %v", ids(scoped))
		}

		lo := int64(2)
		ranged, _ := s.Query(ctx, abstractions.TableDatasetVersions, abstractions.Query{Parent: "ds-1", MinSort: &lo})
		if !equal(ids(ranged), "v2", "v3") {
			t.Fatalf("unexpected ranged result %v", ids(ranged))
		}

		hi := int64(2)
		upTo, _ := s.Query(ctx, abstractions.TableDatasetVersions, abstractions.Query{Parent: "ds-1", MaxSort: &hi})
		if !equal(ids(upTo), "v1", "v2") {
			t.Fatalf("unexpected bounded result %v", ids(upTo))
		}

		latest, _ := s.Query(ctx, abstractions.TableDatasetVersions, abstractions.Query{Parent: "ds-1", Descending: true, Limit: 1})
		if !equal(ids(latest), "v3") {
			t.Fatalf("unexpected latest result %v", ids(latest))
		}

		none, err := s.Query(ctx, abstractions.TableDatasetVersions, abstractions.Query{Parent: "ds-9"})
		if err != nil || none == nil || len(none) != 0 {
			t.Fatalf("expected an empty non nil result, got %v %v", none, err)
		}
	})

	t.Run("Replace", func(t *testing.T) {
		s := newStore(t)
		_ = s.Put(ctx, abstractions.TableExperiments, record("temp-1", "", 1))
		if err := s.Replace(ctx, abstractions.TableExperiments, "temp-1", record("exp-1", "", 1)); err != nil {
			t.Fatal(err)
		}
		all, _ := s.Query(ctx, abstractions.TableExperiments, abstractions.Query{})
		if !equal(ids(all), "exp-1") {
			t.Fatalf("expected only the replacement, got %v", ids(all))
		}
	})

	t.Run("InvalidateAcrossTables", func(t *testing.T) {
		s := newStore(t)
		_ = s.Put(ctx, abstractions.TableDatasets, record("ds-1", "", 1))
		_ = s.Put(ctx, abstractions.TableDatasetVersions, record("v1", "ds-1", 1))
		_ = s.Put(ctx, abstractions.TableDatasetVersions, record("v2", "ds-1", 2))
		err := s.Invalidate(ctx,
			abstractions.Key{Table: abstractions.TableDatasets, ID: "ds-1"},
			abstractions.Key{Table: abstractions.TableDatasetVersions, ID: "v1"},
			abstractions.Key{Table: abstractions.TableDatasetVersions, ID: "missing"},
		)
		if err != nil {
			t.Fatal(err)
		}
		left, _ := s.Query(ctx, abstractions.TableDatasetVersions, abstractions.Query{})
		if !equal(ids(left), "v2") {
			t.Fatalf("unexpected remaining versions %v", ids(left))
		}
		if _, err := s.Get(ctx, abstractions.TableDatasets, "ds-1"); !se.IsRecordNotFound(err) {
			t.Fatalf("expected the dataset to be invalidated")
		}
	})

	t.Run("InvalidateIsAtomic", func(t *testing.T) {
		s := newStore(t)
		_ = s.Put(ctx, abstractions.TableDatasets, record("ds-1", "", 1))
		err := s.Invalidate(ctx,
			abstractions.Key{Table: abstractions.TableDatasets, ID: "ds-1"},
			abstractions.Key{Table: "unknown", ID: "x"},
		)
		if err == nil {
			t.Fatalf("expected an unknown table error")
		}
		if _, err := s.Get(ctx, abstractions.TableDatasets, "ds-1"); err != nil {
			t.Fatalf("expected no partial invalidation, got %v", err)
		}
	})

	t.Run("RejectsInvalidInput", func(t *testing.T) {
		s := newStore(t)
		if err := s.Put(ctx, "unknown", record("x", "", 1)); err == nil {
			t.Fatalf("expected unknown table error")
		}
		if err := s.Put(ctx, abstractions.TableDatasets, abstractions.Record{ID: "x"}); err == nil {
			t.Fatalf("expected empty entity error")
		}
		bad := []abstractions.Record{record("a", "", 1), {ID: "", Entity: []byte("{}")}}
		if err := s.BulkPut(ctx, abstractions.TableDatasets, bad); err == nil {
			t.Fatalf("expected missing id error")
		}
		if _, err := s.Get(ctx, abstractions.TableDatasets, "a"); !se.IsRecordNotFound(err) {
			t.Fatalf("expected the failed bulk put to leave nothing behind, got %v", err)
		}
	})

	t.Run("Clear", func(t *testing.T) {
		s := newStore(t)
		_ = s.Put(ctx, abstractions.TableDatasets, record("ds-1", "", 1))
		_ = s.Put(ctx, abstractions.TableUsers, record("u-1", "", 1))
		if err := s.Clear(ctx); err != nil {
			t.Fatal(err)
		}
		for _, table := range []abstractions.Table{abstractions.TableDatasets, abstractions.TableUsers} {
			left, _ := s.Query(ctx, table, abstractions.Query{})
			if len(left) != 0 {
				t.Fatalf("expected %s to be empty, got %v", table, ids(left))
			}
		}
	})

	t.Run("ConcurrentWrites", func(t *testing.T) {
		s := newStore(t)
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_ = s.Put(ctx, abstractions.TableTestResults, record(fmt.Sprintf("r-%d", i), "run-1", int64(i)))
			}(i)
		}
		wg.Wait()
		all, err := s.Query(ctx, abstractions.TableTestResults, abstractions.Query{Parent: "run-1"})
		if err != nil || len(all) != 8 {
			t.Fatalf("expected 8 results, got %d %v", len(all), err)
		}
	})

	t.Run("CancelledContext", func(t *testing.T) {
		s := newStore(t)
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		if err := s.Put(cancelled, abstractions.TableDatasets, record("ds-1", "", 1)); err == nil {
			t.Fatalf("expected the cancelled context to fail the write")
		}
	})
}
