package sql

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/eval-hub/eval-dashboard/internal/abstractions"
	"github.com/eval-hub/eval-dashboard/internal/constants"
	se "github.com/eval-hub/eval-dashboard/internal/serviceerrors"
	commonStorage "github.com/eval-hub/eval-dashboard/internal/storage/common"
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*abstractions.Record, error) {
	var record abstractions.Record
	var updatedAt int64
	var entity string
	if err := row.Scan(&record.ID, &record.Parent, &record.Sort, &updatedAt, &entity); err != nil {
		return nil, err
	}
	record.UpdatedAt = time.UnixMilli(updatedAt)
	record.Entity = []byte(entity)
	return &record, nil
}

func (s *SQLStorage) Get(ctx context.Context, table abstractions.Table, id string) (*abstractions.Record, error) {
	if err := commonStorage.ValidateTable(table); err != nil {
		return nil, err
	}
	row := s.pool.QueryRowContext(ctx, createGetEntityStatement(s.sqlConfig.Driver, table), id)
	record, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, se.NewStorageErrorWithError(se.ErrRecordNotFound, "%s %s", table, id)
		}
		s.logger.Error("Failed to get record", constants.LOG_TABLE, table, constants.LOG_ID, id, constants.LOG_ERROR, err)
		return nil, se.NewStorageErrorWithError(err, "failed to get %s %s", table, id)
	}
	return record, nil
}

func (s *SQLStorage) Put(ctx context.Context, table abstractions.Table, record abstractions.Record) error {
	return s.BulkPut(ctx, table, []abstractions.Record{record})
}

func (s *SQLStorage) BulkPut(ctx context.Context, table abstractions.Table, records []abstractions.Record) error {
	if err := commonStorage.ValidateTable(table); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	return s.withTransaction(ctx, "put", table, func(txn *sql.Tx) error {
		return s.upsertTxn(ctx, txn, table, records...)
	})
}

func (s *SQLStorage) upsertTxn(ctx context.Context, txn *sql.Tx, table abstractions.Table, records ...abstractions.Record) error {
	statement := createUpsertStatement(s.sqlConfig.Driver, table)
	for _, record := range records {
		if err := commonStorage.ValidateRecord(record); err != nil {
			return err
		}
		updatedAt := record.UpdatedAt
		if updatedAt.IsZero() {
			updatedAt = time.Now()
		}
		_, err := txn.ExecContext(ctx, statement, record.ID, record.Parent, record.Sort, updatedAt.UnixMilli(), string(record.Entity))
		if err != nil {
			s.logger.Error("Failed to put record", constants.LOG_TABLE, table, constants.LOG_ID, record.ID, constants.LOG_ERROR, err)
			return se.NewStorageErrorWithError(err, "failed to put %s %s", table, record.ID)
		}
	}
	return nil
}

func (s *SQLStorage) Delete(ctx context.Context, table abstractions.Table, id string) error {
	return s.Invalidate(ctx, abstractions.Key{Table: table, ID: id})
}

func (s *SQLStorage) Replace(ctx context.Context, table abstractions.Table, oldID string, record abstractions.Record) error {
	if err := commonStorage.ValidateTable(table); err != nil {
		return err
	}
	return s.withTransaction(ctx, "replace", table, func(txn *sql.Tx) error {
		if oldID != record.ID {
			if err := s.deleteTxn(ctx, txn, table, oldID); err != nil {
				return err
			}
		}
		return s.upsertTxn(ctx, txn, table, record)
	})
}

func (s *SQLStorage) deleteTxn(ctx context.Context, txn *sql.Tx, table abstractions.Table, id string) error {
	if _, err := txn.ExecContext(ctx, createDeleteEntityStatement(s.sqlConfig.Driver, table), id); err != nil {
		s.logger.Error("Failed to delete record", constants.LOG_TABLE, table, constants.LOG_ID, id, constants.LOG_ERROR, err)
		return se.NewStorageErrorWithError(err, "failed to delete %s %s", table, id)
	}
	return nil
}

func (s *SQLStorage) Invalidate(ctx context.Context, keys ...abstractions.Key) error {
	if len(keys) == 0 {
		return nil
	}
	for _, key := range keys {
		if err := commonStorage.ValidateTable(key.Table); err != nil {
			return err
		}
	}
	return s.withTransaction(ctx, "invalidate", keys[0].Table, func(txn *sql.Tx) error {
		for _, key := range keys {
			if err := s.deleteTxn(ctx, txn, key.Table, key.ID); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLStorage) Query(ctx context.Context, table abstractions.Table, query abstractions.Query) ([]abstractions.Record, error) {
	if err := commonStorage.ValidateTable(table); err != nil {
		return nil, err
	}
	statement, args := createQueryStatement(s.sqlConfig.Driver, table, query)
	rows, err := s.pool.QueryContext(ctx, statement, args...)
	if err != nil {
		s.logger.Error("Failed to query records", constants.LOG_TABLE, table, constants.LOG_ERROR, err)
		return nil, se.NewStorageErrorWithError(err, "failed to query %s", table)
	}
	defer rows.Close()

	records := make([]abstractions.Record, 0)
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			s.logger.Error("Failed to scan record", constants.LOG_TABLE, table, constants.LOG_ERROR, err)
			return nil, se.NewStorageErrorWithError(err, "failed to scan %s", table)
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, se.NewStorageErrorWithError(err, "failed to iterate %s", table)
	}
	return records, nil
}

func (s *SQLStorage) Clear(ctx context.Context) error {
	return s.withTransaction(ctx, "clear", "", func(txn *sql.Tx) error {
		for _, table := range abstractions.Tables {
			if _, err := txn.ExecContext(ctx, createClearTableStatement(table)); err != nil {
				return se.NewStorageErrorWithError(err, "failed to clear %s", table)
			}
		}
		return nil
	})
}
