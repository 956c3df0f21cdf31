package cache

import (
	"encoding/json"
	"time"

	validator "github.com/go-playground/validator/v10"

	"github.com/eval-hub/eval-dashboard/internal/abstractions"
	"github.com/eval-hub/eval-dashboard/internal/constants"
	"github.com/eval-hub/eval-dashboard/internal/executioncontext"
	"github.com/eval-hub/eval-dashboard/internal/messages"
	se "github.com/eval-hub/eval-dashboard/internal/serviceerrors"
	"github.com/eval-hub/eval-dashboard/pkg/api"
)

// Table is a typed view of one table of the local store. Entities are stored as JSON,
// the parent and sort keys come from the entity itself.
type Table[T api.Entity] struct {
	store    abstractions.LocalStore
	table    abstractions.Table
	validate *validator.Validate
}

func NewTable[T api.Entity](store abstractions.LocalStore, table abstractions.Table, validate *validator.Validate) *Table[T] {
	return &Table[T]{store: store, table: table, validate: validate}
}

func (t *Table[T]) Name() abstractions.Table {
	return t.table
}

func (t *Table[T]) Store() abstractions.LocalStore {
	return t.store
}

// Record converts the entity to a store record.
func (t *Table[T]) Record(entity T) (abstractions.Record, error) {
	data, err := json.Marshal(entity)
	if err != nil {
		return abstractions.Record{}, se.NewServiceErrorWithCause(err, messages.DatabaseOperationFailed, "Type", t.table, "ResourceId", entity.GetID())
	}
	return abstractions.Record{
		ID:        entity.GetID(),
		Parent:    entity.ParentID(),
		Sort:      entity.SortKey(),
		Entity:    data,
		UpdatedAt: time.Now(),
	}, nil
}

func (t *Table[T]) decode(ctx *executioncontext.ExecutionContext, record *abstractions.Record) (*T, error) {
	var entity T
	if err := json.Unmarshal(record.Entity, &entity); err != nil {
		ctx.Logger.Error("Failed to unmarshal cached entity", constants.LOG_TABLE, t.table, constants.LOG_ID, record.ID, constants.LOG_ERROR, err)
		return nil, se.NewServiceErrorWithCause(err, messages.JSONUnmarshalFailed, "Type", t.table)
	}
	if t.validate != nil {
		if err := t.validate.StructCtx(ctx.Ctx, entity); err != nil {
			ctx.Logger.Warn("Cached entity is not valid", constants.LOG_TABLE, t.table, constants.LOG_ID, record.ID, constants.LOG_ERROR, err)
			return nil, se.NewServiceErrorWithCause(err, messages.JSONUnmarshalFailed, "Type", t.table)
		}
	}
	return &entity, nil
}

// Get returns the cached entity. A missing entry is reported with an error for which
// serviceerrors.IsRecordNotFound is true.
func (t *Table[T]) Get(ctx *executioncontext.ExecutionContext, id string) (*T, error) {
	record, err := t.store.Get(ctx.Ctx, t.table, id)
	if err != nil {
		return nil, err
	}
	return t.decode(ctx, record)
}

// Lookup is Get that treats a missing entry as a nil result.
func (t *Table[T]) Lookup(ctx *executioncontext.ExecutionContext, id string) (*T, error) {
	entity, err := t.Get(ctx, id)
	if se.IsRecordNotFound(err) {
		return nil, nil
	}
	return entity, err
}

func (t *Table[T]) Put(ctx *executioncontext.ExecutionContext, entity T) error {
	record, err := t.Record(entity)
	if err != nil {
		return err
	}
	return t.store.Put(ctx.Ctx, t.table, record)
}

func (t *Table[T]) PutAll(ctx *executioncontext.ExecutionContext, entities []T) error {
	records := make([]abstractions.Record, 0, len(entities))
	for _, entity := range entities {
		record, err := t.Record(entity)
		if err != nil {
			return err
		}
		records = append(records, record)
	}
	return t.store.BulkPut(ctx.Ctx, t.table, records)
}

// Replace removes oldID and stores entity in one transaction, used when a provisional
// entity is swapped for the server's one.
func (t *Table[T]) Replace(ctx *executioncontext.ExecutionContext, oldID string, entity T) error {
	record, err := t.Record(entity)
	if err != nil {
		return err
	}
	return t.store.Replace(ctx.Ctx, t.table, oldID, record)
}

func (t *Table[T]) Delete(ctx *executioncontext.ExecutionContext, id string) error {
	return t.store.Delete(ctx.Ctx, t.table, id)
}

// List returns the cached entities matching the query. Entries that can not be decoded
// are skipped and logged so that one corrupt row does not hide the rest.
func (t *Table[T]) List(ctx *executioncontext.ExecutionContext, query abstractions.Query) ([]T, error) {
	records, err := t.store.Query(ctx.Ctx, t.table, query)
	if err != nil {
		return nil, err
	}
	entities := make([]T, 0, len(records))
	for i := range records {
		entity, err := t.decode(ctx, &records[i])
		if err != nil {
			continue
		}
		entities = append(entities, *entity)
	}
	return entities, nil
}

// Key returns the store key of the entity with the given ID.
func (t *Table[T]) Key(id string) abstractions.Key {
	return abstractions.Key{Table: t.table, ID: id}
}
