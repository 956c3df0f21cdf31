package memory

import (
	"context"
	"log/slog"
	"time"

	memdb "github.com/hashicorp/go-memdb"

	"github.com/eval-hub/eval-dashboard/internal/abstractions"
	"github.com/eval-hub/eval-dashboard/internal/constants"
	se "github.com/eval-hub/eval-dashboard/internal/serviceerrors"
	commonStorage "github.com/eval-hub/eval-dashboard/internal/storage/common"
)

const (
	indexID     = "id"
	indexParent = "parent"
)

// MemoryStorage keeps the cache in an indexed in-memory database. Nothing survives
// Close, which makes it the store for tests and ephemeral sessions.
type MemoryStorage struct {
	db     *memdb.MemDB
	logger *slog.Logger
}

func schema() *memdb.DBSchema {
	tables := make(map[string]*memdb.TableSchema, len(abstractions.Tables))
	for _, table := range abstractions.Tables {
		tables[string(table)] = &memdb.TableSchema{
			Name: string(table),
			Indexes: map[string]*memdb.IndexSchema{
				indexID: {
					Name:    indexID,
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "ID"},
				},
				indexParent: {
					Name:         indexParent,
					AllowMissing: true,
					Indexer:      &memdb.StringFieldIndex{Field: "Parent"},
				},
			},
		}
	}
	return &memdb.DBSchema{Tables: tables}
}

func NewStorage(logger *slog.Logger) (abstractions.LocalStore, error) {
	db, err := memdb.NewMemDB(schema())
	if err != nil {
		return nil, se.NewStorageErrorWithError(err, "failed to create the in-memory store")
	}
	logger.Info("Creating in-memory storage")
	return &MemoryStorage{db: db, logger: logger}, nil
}

func (s *MemoryStorage) Name() string {
	return "memory"
}

// copyRecord detaches the stored record from the caller's entity buffer.
func copyRecord(record abstractions.Record) *abstractions.Record {
	c := record
	c.Entity = append([]byte(nil), record.Entity...)
	return &c
}

func (s *MemoryStorage) Get(ctx context.Context, table abstractions.Table, id string) (*abstractions.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := commonStorage.ValidateTable(table); err != nil {
		return nil, err
	}
	txn := s.db.Txn(false)
	defer txn.Abort()
	raw, err := txn.First(string(table), indexID, id)
	if err != nil {
		return nil, se.NewStorageErrorWithError(err, "failed to get %s %s", table, id)
	}
	if raw == nil {
		return nil, se.NewStorageErrorWithError(se.ErrRecordNotFound, "%s %s", table, id)
	}
	return copyRecord(*raw.(*abstractions.Record)), nil
}

func (s *MemoryStorage) Put(ctx context.Context, table abstractions.Table, record abstractions.Record) error {
	return s.BulkPut(ctx, table, []abstractions.Record{record})
}

func (s *MemoryStorage) BulkPut(ctx context.Context, table abstractions.Table, records []abstractions.Record) error {
	return s.write(ctx, func(txn *memdb.Txn) error {
		return insert(txn, table, records...)
	})
}

func (s *MemoryStorage) Delete(ctx context.Context, table abstractions.Table, id string) error {
	return s.Invalidate(ctx, abstractions.Key{Table: table, ID: id})
}

func (s *MemoryStorage) Replace(ctx context.Context, table abstractions.Table, oldID string, record abstractions.Record) error {
	return s.write(ctx, func(txn *memdb.Txn) error {
		if oldID != record.ID {
			if err := remove(txn, table, oldID); err != nil {
				return err
			}
		}
		return insert(txn, table, record)
	})
}

func (s *MemoryStorage) Invalidate(ctx context.Context, keys ...abstractions.Key) error {
	return s.write(ctx, func(txn *memdb.Txn) error {
		for _, key := range keys {
			if err := remove(txn, key.Table, key.ID); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *MemoryStorage) Query(ctx context.Context, table abstractions.Table, query abstractions.Query) ([]abstractions.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := commonStorage.ValidateTable(table); err != nil {
		return nil, err
	}
	txn := s.db.Txn(false)
	defer txn.Abort()

	var it memdb.ResultIterator
	var err error
	if query.Parent != "" {
		it, err = txn.Get(string(table), indexParent, query.Parent)
	} else {
		it, err = txn.Get(string(table), indexID)
	}
	if err != nil {
		s.logger.Error("Failed to query records", constants.LOG_TABLE, table, constants.LOG_ERROR, err)
		return nil, se.NewStorageErrorWithError(err, "failed to query %s", table)
	}

	records := make([]abstractions.Record, 0)
	for raw := it.Next(); raw != nil; raw = it.Next() {
		record := raw.(*abstractions.Record)
		if commonStorage.MatchesQuery(record, query) {
			records = append(records, *copyRecord(*record))
		}
	}
	return commonStorage.OrderAndLimit(records, query), nil
}

func (s *MemoryStorage) Clear(ctx context.Context) error {
	return s.write(ctx, func(txn *memdb.Txn) error {
		for _, table := range abstractions.Tables {
			if _, err := txn.DeleteAll(string(table), indexID); err != nil {
				return se.NewStorageErrorWithError(err, "failed to clear %s", table)
			}
		}
		return nil
	})
}

func (s *MemoryStorage) Close() error {
	return nil
}

// write runs fn in a write transaction that is committed only when fn succeeds.
func (s *MemoryStorage) write(ctx context.Context, fn func(txn *memdb.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	txn := s.db.Txn(true)
	if err := fn(txn); err != nil {
		txn.Abort()
		s.logger.Debug("Transaction aborted", constants.LOG_ERROR, err)
		return err
	}
	txn.Commit()
	return nil
}

func insert(txn *memdb.Txn, table abstractions.Table, records ...abstractions.Record) error {
	if err := commonStorage.ValidateTable(table); err != nil {
		return err
	}
	for _, record := range records {
		if err := commonStorage.ValidateRecord(record); err != nil {
			return err
		}
		stored := copyRecord(record)
		if stored.UpdatedAt.IsZero() {
			stored.UpdatedAt = time.Now()
		}
		if err := txn.Insert(string(table), stored); err != nil {
			return se.NewStorageErrorWithError(err, "failed to put %s %s", table, record.ID)
		}
	}
	return nil
}

func remove(txn *memdb.Txn, table abstractions.Table, id string) error {
	if err := commonStorage.ValidateTable(table); err != nil {
		return err
	}
	raw, err := txn.First(string(table), indexID, id)
	if err != nil {
		return se.NewStorageErrorWithError(err, "failed to delete %s %s", table, id)
	}
	if raw == nil {
		return nil
	}
	if err := txn.Delete(string(table), raw); err != nil {
		return se.NewStorageErrorWithError(err, "failed to delete %s %s", table, id)
	}
	return nil
}
