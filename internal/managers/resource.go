package managers

import (
	"context"
	"encoding/json"
	"errors"

	jsonpatch "gopkg.in/evanphx/json-patch.v4"

	"github.com/eval-hub/eval-dashboard/internal/abstractions"
	"github.com/eval-hub/eval-dashboard/internal/cache"
	"github.com/eval-hub/eval-dashboard/internal/constants"
	"github.com/eval-hub/eval-dashboard/internal/executioncontext"
	"github.com/eval-hub/eval-dashboard/internal/messages"
	"github.com/eval-hub/eval-dashboard/internal/metrics"
	se "github.com/eval-hub/eval-dashboard/internal/serviceerrors"
	"github.com/eval-hub/eval-dashboard/pkg/api"
	"github.com/eval-hub/eval-dashboard/pkg/evalclient"
)

// resource implements the read through and optimistic write patterns for one entity
// type. The managers supply the API calls as closures.
type resource[T api.Entity] struct {
	entity   string
	table    *cache.Table[T]
	metrics  *metrics.Metrics
	rollback bool
}

func newResource[T api.Entity](entity string, table abstractions.Table, opts Options) *resource[T] {
	return &resource[T]{
		entity:   entity,
		table:    cache.NewTable[T](opts.Store, table, opts.Client.Validator()),
		metrics:  opts.Metrics,
		rollback: opts.RollbackOnFailure,
	}
}

// cached returns the cached entity or nil. Cache failures are logged and treated as a miss.
func (r *resource[T]) cached(ctx *executioncontext.ExecutionContext, id string) *T {
	entity, err := r.table.Lookup(ctx, id)
	if err != nil {
		ctx.Logger.Warn("Cache lookup failed", constants.LOG_ENTITY, r.entity, constants.LOG_ID, id, constants.LOG_ERROR, err)
		return nil
	}
	return entity
}

func (r *resource[T]) cachedList(ctx *executioncontext.ExecutionContext, query abstractions.Query) []T {
	entities, err := r.table.List(ctx, query)
	if err != nil {
		ctx.Logger.Warn("Cache query failed", constants.LOG_ENTITY, r.entity, constants.LOG_ERROR, err)
		return nil
	}
	return entities
}

// get reads one entity. Temporary IDs are only known locally and are served from the cache.
func (r *resource[T]) get(ctx *executioncontext.ExecutionContext, id string, fetch func() (*T, error)) (*T, error) {
	cached := r.cached(ctx, id)
	if api.IsTemporaryID(id) {
		if cached == nil {
			r.metrics.CacheRead(r.entity, constants.CACHE_OUTCOME_MISS)
			return nil, se.NewServiceError(messages.ResourceNotFound, "Type", r.entity, "ResourceId", id)
		}
		r.metrics.CacheRead(r.entity, constants.CACHE_OUTCOME_STALE)
		return cached, nil
	}

	fresh, err := fetch()
	if err != nil {
		return r.readFailed(ctx, id, cached, err)
	}
	if err := r.table.Put(ctx, *fresh); err != nil {
		ctx.Logger.Warn("Failed to cache entity", constants.LOG_ENTITY, r.entity, constants.LOG_ID, id, constants.LOG_ERROR, err)
	}
	r.metrics.CacheRead(r.entity, constants.CACHE_OUTCOME_FRESH)
	return fresh, nil
}

func (r *resource[T]) readFailed(ctx *executioncontext.ExecutionContext, id string, cached *T, err error) (*T, error) {
	switch {
	case evalclient.IsNotFound(err):
		if derr := r.table.Delete(ctx, id); derr != nil {
			ctx.Logger.Warn("Failed to evict entity", constants.LOG_ENTITY, r.entity, constants.LOG_ID, id, constants.LOG_ERROR, derr)
		}
		r.metrics.CacheRead(r.entity, constants.CACHE_OUTCOME_MISS)
		return nil, se.NewServiceErrorWithCause(err, messages.ResourceNotFound, "Type", r.entity, "ResourceId", id)
	case evalclient.IsUnavailable(err):
		if cached != nil {
			ctx.Logger.Warn("Serving cached entity", constants.LOG_ENTITY, r.entity, constants.LOG_ID, id, constants.LOG_ERROR, err)
			r.metrics.CacheRead(r.entity, constants.CACHE_OUTCOME_STALE)
			return cached, nil
		}
		r.metrics.CacheRead(r.entity, constants.CACHE_OUTCOME_MISS)
		return nil, se.NewServiceErrorWithCause(err, messages.UnableToLoad, "Type", r.entity, "ResourceId", id)
	default:
		r.logFailure(ctx, "read", id, err)
		return nil, err
	}
}

// list reads the entities of one parent ("" for all). A successful response replaces the
// cached rows of that scope, provisional rows are kept.
func (r *resource[T]) list(ctx *executioncontext.ExecutionContext, parent string, fetch func() ([]T, error)) ([]T, error) {
	cached := r.cachedList(ctx, abstractions.Query{Parent: parent})

	fresh, err := fetch()
	if err != nil {
		if !evalclient.IsUnavailable(err) {
			r.logFailure(ctx, "list", parent, err)
			return nil, err
		}
		if len(cached) > 0 {
			ctx.Logger.Warn("Serving cached list", constants.LOG_ENTITY, r.entity, constants.LOG_COUNT, len(cached), constants.LOG_ERROR, err)
			r.metrics.CacheRead(r.entity, constants.CACHE_OUTCOME_STALE)
			return cached, nil
		}
		r.metrics.CacheRead(r.entity, constants.CACHE_OUTCOME_MISS)
		return nil, se.NewServiceErrorWithCause(err, messages.UnableToList, "Type", r.entity)
	}

	r.reconcile(ctx, cached, fresh)
	r.metrics.CacheRead(r.entity, constants.CACHE_OUTCOME_FRESH)
	return fresh, nil
}

func (r *resource[T]) reconcile(ctx *executioncontext.ExecutionContext, cached []T, fresh []T) {
	present := make(map[string]struct{}, len(fresh))
	for _, entity := range fresh {
		present[entity.GetID()] = struct{}{}
	}
	var gone []abstractions.Key
	for _, entity := range cached {
		id := entity.GetID()
		if _, ok := present[id]; !ok && !api.IsTemporaryID(id) {
			gone = append(gone, r.table.Key(id))
		}
	}
	if len(gone) > 0 {
		if err := r.table.Store().Invalidate(ctx.Ctx, gone...); err != nil {
			ctx.Logger.Warn("Failed to prune cache", constants.LOG_ENTITY, r.entity, constants.LOG_ERROR, err)
		} else {
			ctx.Logger.Debug("Pruned cache", constants.LOG_ENTITY, r.entity, constants.LOG_COUNT, len(gone))
		}
	}
	if err := r.table.PutAll(ctx, fresh); err != nil {
		ctx.Logger.Warn("Failed to cache list", constants.LOG_ENTITY, r.entity, constants.LOG_ERROR, err)
	}
}

// create stores the provisional entity, sends the request and swaps the provisional
// entry for the server's entity.
func (r *resource[T]) create(ctx *executioncontext.ExecutionContext, provisional T, send func() (*T, error)) (*T, error) {
	tempID := provisional.GetID()
	if err := r.table.Put(ctx, provisional); err != nil {
		return nil, se.NewServiceErrorWithCause(err, messages.UnableToSave, "Type", r.entity, "ResourceId", tempID)
	}
	ctx.Logger.Debug("Provisional entity cached", constants.LOG_ENTITY, r.entity, constants.LOG_TEMP_ID, tempID)

	created, err := send()
	if err != nil {
		return nil, r.writeFailed(ctx, "create", tempID, err, func(c *executioncontext.ExecutionContext) error {
			return r.table.Delete(c, tempID)
		})
	}
	if err := r.table.Replace(ctx, tempID, *created); err != nil {
		ctx.Logger.Error("Failed to replace provisional entity", constants.LOG_ENTITY, r.entity, constants.LOG_TEMP_ID, tempID, constants.LOG_ID, (*created).GetID(), constants.LOG_ERROR, err)
	}
	r.metrics.CacheWrite(r.entity, constants.WRITE_OUTCOME_CONFIRMED)
	ctx.Logger.Info("Created", constants.LOG_ENTITY, r.entity, constants.LOG_ID, (*created).GetID(), constants.LOG_TEMP_ID, tempID)
	return created, nil
}

// update applies the patch to the cached entity as a JSON merge patch, then sends it.
// The entity must be cached.
func (r *resource[T]) update(ctx *executioncontext.ExecutionContext, id string, patch any, send func() (*T, error)) (*T, error) {
	if api.IsTemporaryID(id) {
		return nil, se.NewServiceError(messages.TemporaryResource, "Type", r.entity, "ResourceId", id)
	}
	current, err := r.table.Lookup(ctx, id)
	if err != nil {
		return nil, se.NewServiceErrorWithCause(err, messages.UnableToLoad, "Type", r.entity, "ResourceId", id)
	}
	if current == nil {
		return nil, se.NewServiceError(messages.ResourceNotCached, "Type", r.entity, "ResourceId", id)
	}

	merged, err := mergePatch(*current, patch)
	if err != nil {
		return nil, se.NewServiceErrorWithCause(err, messages.RequestValidationFailed)
	}
	if err := r.table.Put(ctx, merged); err != nil {
		return nil, se.NewServiceErrorWithCause(err, messages.UnableToSave, "Type", r.entity, "ResourceId", id)
	}

	updated, err := send()
	if err != nil {
		return nil, r.writeFailed(ctx, "update", id, err, func(c *executioncontext.ExecutionContext) error {
			return r.table.Put(c, *current)
		})
	}
	if err := r.table.Put(ctx, *updated); err != nil {
		ctx.Logger.Warn("Failed to cache entity", constants.LOG_ENTITY, r.entity, constants.LOG_ID, id, constants.LOG_ERROR, err)
	}
	r.metrics.CacheWrite(r.entity, constants.WRITE_OUTCOME_CONFIRMED)
	return updated, nil
}

// remove deletes on the server first and evicts the entity and the related keys once the
// server confirmed. A provisional entity only exists locally and is evicted directly.
func (r *resource[T]) remove(ctx *executioncontext.ExecutionContext, id string, send func() error, related ...abstractions.Key) error {
	keys := append([]abstractions.Key{r.table.Key(id)}, related...)
	if api.IsTemporaryID(id) {
		if err := r.table.Store().Invalidate(ctx.Ctx, keys...); err != nil {
			return se.NewServiceErrorWithCause(err, messages.DatabaseOperationFailed, "Type", r.entity, "ResourceId", id)
		}
		ctx.Logger.Info("Discarded provisional entity", constants.LOG_ENTITY, r.entity, constants.LOG_TEMP_ID, id)
		return nil
	}

	if err := send(); err != nil {
		if evalclient.IsNotFound(err) {
			r.evict(ctx, id, keys)
		}
		return r.rejected(ctx, "delete", id, err)
	}
	r.evict(ctx, id, keys)
	ctx.Logger.Info("Deleted", constants.LOG_ENTITY, r.entity, constants.LOG_ID, id)
	return nil
}

func (r *resource[T]) evict(ctx *executioncontext.ExecutionContext, id string, keys []abstractions.Key) {
	if err := r.table.Store().Invalidate(ctx.Ctx, keys...); err != nil {
		ctx.Logger.Warn("Failed to evict entity", constants.LOG_ENTITY, r.entity, constants.LOG_ID, id, constants.LOG_ERROR, err)
	}
}

// writeFailed reverts the optimistic write when rollback is enabled and classifies the error.
// The rollback runs even when the caller's context was cancelled.
func (r *resource[T]) writeFailed(ctx *executioncontext.ExecutionContext, operation string, id string, err error, rollback func(*executioncontext.ExecutionContext) error) error {
	outcome := constants.WRITE_OUTCOME_LEFT_STALE
	if r.rollback {
		detached := ctx.WithContext(context.WithoutCancel(ctx.Ctx))
		err = se.WithRollback(err, func() error { return rollback(detached) })
		outcome = constants.WRITE_OUTCOME_ROLLED_BACK
	}
	r.metrics.CacheWrite(r.entity, outcome)
	ctx.Logger.Debug("Optimistic write failed", constants.LOG_ENTITY, r.entity, constants.LOG_ID, id, constants.LOG_OUTCOME, outcome)
	return r.rejected(ctx, operation, id, err)
}

// rejected turns a failed write into the error returned to the caller.
func (r *resource[T]) rejected(ctx *executioncontext.ExecutionContext, operation string, id string, err error) error {
	var apiErr *evalclient.APIError
	switch {
	case evalclient.IsBusinessRule(err) && errors.As(err, &apiErr):
		ctx.Logger.Info("Operation rejected by the server", constants.LOG_ENTITY, r.entity, constants.LOG_ID, id, "operation", operation, "detail", apiErr.Message())
		return se.NewBusinessRuleError(operation, r.entity, id, apiErr.Message(), err)
	case evalclient.IsNotFound(err):
		ctx.Logger.Info("Resource not found", constants.LOG_ENTITY, r.entity, constants.LOG_ID, id, "operation", operation)
		return se.NewServiceErrorWithCause(err, messages.ResourceNotFound, "Type", r.entity, "ResourceId", id)
	case evalclient.IsConnectivityError(err):
		ctx.Logger.Warn("Server unreachable", constants.LOG_ENTITY, r.entity, constants.LOG_ID, id, "operation", operation, constants.LOG_ERROR, err)
		return se.NewServiceErrorWithCause(err, messages.UnableToSave, "Type", r.entity, "ResourceId", id)
	default:
		r.logFailure(ctx, operation, id, err)
		return err
	}
}

// logFailure logs failures that are returned unchanged. Expired sessions and cancelled
// calls are expected, anything else is a genuine failure.
func (r *resource[T]) logFailure(ctx *executioncontext.ExecutionContext, operation string, id string, err error) {
	if evalclient.IsUnauthorized(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		ctx.Logger.Info("Operation not completed", constants.LOG_ENTITY, r.entity, constants.LOG_ID, id, "operation", operation, constants.LOG_ERROR, err)
		return
	}
	ctx.Logger.Error("Operation failed", constants.LOG_ENTITY, r.entity, constants.LOG_ID, id, "operation", operation, constants.LOG_ERROR, err)
}

// mergePatch applies patch to a copy of current as an RFC 7386 merge patch. Nil fields of
// the patch are omitted when marshalled and leave the entity unchanged, api.Null fields
// are sent as null and remove the value.
func mergePatch[T any](current T, patch any) (T, error) {
	var merged T
	original, err := json.Marshal(current)
	if err != nil {
		return merged, err
	}
	patchData, err := json.Marshal(patch)
	if err != nil {
		return merged, err
	}
	result, err := jsonpatch.MergePatch(original, patchData)
	if err != nil {
		return merged, err
	}
	if err := json.Unmarshal(result, &merged); err != nil {
		return merged, err
	}
	return merged, nil
}
