package storage

import (
	"log/slog"

	"github.com/eval-hub/eval-dashboard/internal/abstractions"
	"github.com/eval-hub/eval-dashboard/internal/config"
	"github.com/eval-hub/eval-dashboard/internal/serviceerrors"
	"github.com/eval-hub/eval-dashboard/internal/storage/memory"
	"github.com/eval-hub/eval-dashboard/internal/storage/sql"
)

// NewStorage creates the local store selected by the database configuration.
func NewStorage(serviceConfig *config.Config, logger *slog.Logger) (abstractions.LocalStore, error) {
	if serviceConfig.Database == nil {
		return nil, serviceerrors.NewStorageError("database configuration is required")
	}
	switch serviceConfig.Database.Backend {
	case config.BackendMemory:
		return memory.NewStorage(logger)
	case config.BackendSQL, "":
		return sql.NewStorage(serviceConfig.Database.SQL, logger)
	default:
		return nil, serviceerrors.NewStorageError("unsupported database backend: %s", serviceConfig.Database.Backend)
	}
}
