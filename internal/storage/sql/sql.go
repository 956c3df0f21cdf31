package sql

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelsql"
	"go.opentelemetry.io/otel/attribute"

	// import the postgres driver - "pgx"
	_ "github.com/jackc/pgx/v5/stdlib"

	// import the sqlite driver - "sqlite"
	_ "modernc.org/sqlite"

	"github.com/eval-hub/eval-dashboard/internal/abstractions"
	"github.com/eval-hub/eval-dashboard/internal/config"
	"github.com/eval-hub/eval-dashboard/internal/constants"
	se "github.com/eval-hub/eval-dashboard/internal/serviceerrors"
)

type SQLStorage struct {
	sqlConfig config.SQLDatabaseConfig
	pool      *sql.DB
	logger    *slog.Logger
}

func NewStorage(sqlConfig config.SQLDatabaseConfig, logger *slog.Logger) (abstractions.LocalStore, error) {
	// check that the driver is supported
	switch sqlConfig.Driver {
	case config.SQLITE_DRIVER:
		break
	case config.POSTGRES_DRIVER:
		break
	default:
		return nil, getUnsupportedDriverError(sqlConfig.Driver)
	}

	logger = logger.With(constants.LOG_DRIVER, sqlConfig.Driver, constants.LOG_URL, sqlConfig.GetConnectionURL())
	logger.Info("Creating SQL storage")

	pool, err := otelsql.Open(sqlConfig.Driver, sqlConfig.URL,
		otelsql.WithDBSystem(dbSystem(sqlConfig.Driver)),
		otelsql.WithDBName(sqlConfig.DatabaseName),
		otelsql.WithAttributes(attribute.String("eval_dashboard.store", "local_cache")),
	)
	if err != nil {
		return nil, se.NewStorageErrorWithError(err, "failed to open the %s database", sqlConfig.Driver)
	}

	if sqlConfig.ConnMaxLifetime > 0 {
		pool.SetConnMaxLifetime(sqlConfig.ConnMaxLifetime)
	}
	if sqlConfig.MaxIdleConns > 0 {
		pool.SetMaxIdleConns(sqlConfig.MaxIdleConns)
	}
	if sqlConfig.MaxOpenConns > 0 {
		pool.SetMaxOpenConns(sqlConfig.MaxOpenConns)
	}
	if sqlConfig.Driver == config.SQLITE_DRIVER {
		// sqlite has a single writer and every connection to :memory: is a separate database
		pool.SetMaxOpenConns(1)
	}

	storage := &SQLStorage{
		sqlConfig: sqlConfig,
		pool:      pool,
		logger:    logger,
	}

	// ping the database to verify the DSN provided by the user is valid and the server is accessible
	logger.Info("Pinging SQL storage")
	if err := storage.Ping(1 * time.Second); err != nil {
		_ = pool.Close()
		return nil, se.NewStorageErrorWithError(err, "failed to connect to the %s database", sqlConfig.Driver)
	}

	// ensure the schemas are created
	logger.Info("Ensuring schemas are created")
	if err := storage.ensureSchema(context.Background()); err != nil {
		_ = pool.Close()
		return nil, err
	}

	return storage, nil
}

func dbSystem(driver string) string {
	if driver == config.POSTGRES_DRIVER {
		return "postgresql"
	}
	return "sqlite"
}

// Ping the database to verify DSN provided by the user is valid and the
// server accessible.
func (s *SQLStorage) Ping(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	return s.pool.PingContext(ctx)
}

func (s *SQLStorage) Name() string {
	return s.sqlConfig.Driver
}

func (s *SQLStorage) ensureSchema(ctx context.Context) error {
	for _, table := range abstractions.Tables {
		for _, statement := range createTableStatements(table) {
			if _, err := s.pool.ExecContext(ctx, statement); err != nil {
				s.logger.Error("Failed to create table", constants.LOG_TABLE, table, constants.LOG_ERROR, err)
				return se.NewStorageErrorWithError(err, "failed to create table %s", table)
			}
		}
	}
	return nil
}

// withTransaction runs fn in a transaction, the transaction is rolled back when fn fails.
func (s *SQLStorage) withTransaction(ctx context.Context, operation string, table abstractions.Table, fn func(txn *sql.Tx) error) error {
	txn, err := s.pool.BeginTx(ctx, nil)
	if err != nil {
		s.logger.Error("Failed to start transaction", "operation", operation, constants.LOG_TABLE, table, constants.LOG_ERROR, err)
		return se.NewStorageErrorWithError(err, "failed to start transaction for %s", operation)
	}
	err = se.WithRollback(fn(txn), txn.Rollback)
	if err != nil {
		s.logger.Debug("Transaction rolled back", "operation", operation, constants.LOG_TABLE, table, constants.LOG_ERROR, err)
		return err
	}
	if err := txn.Commit(); err != nil {
		s.logger.Error("Failed to commit transaction", "operation", operation, constants.LOG_TABLE, table, constants.LOG_ERROR, err)
		return se.NewStorageErrorWithError(err, "failed to commit transaction for %s", operation)
	}
	return nil
}

func (s *SQLStorage) Close() error {
	return s.pool.Close()
}
