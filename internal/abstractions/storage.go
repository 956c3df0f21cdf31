package abstractions

import (
	"context"
	"time"
)

// Table names of the local cache, one table per cached resource type.
type Table string

const (
	TableDatasets        Table = "datasets"
	TableDatasetVersions Table = "dataset_versions"
	TableTestCases       Table = "test_cases"
	TableExperiments     Table = "experiments"
	TableRuns            Table = "runs"
	TableTestResults     Table = "test_results"
	TableUsers           Table = "users"
)

// Tables lists every table the stores must create.
var Tables = []Table{
	TableDatasets,
	TableDatasetVersions,
	TableTestCases,
	TableExperiments,
	TableRuns,
	TableTestResults,
	TableUsers,
}

// Record is one cached entity. Entity holds the JSON representation, Parent and Sort are
// the secondary keys used by Query.
type Record struct {
	ID        string
	Parent    string
	Sort      int64
	Entity    []byte
	UpdatedAt time.Time
}

// Query selects records of a table. An empty Parent matches every record, MinSort and
// MaxSort are inclusive bounds. Results are ordered by Sort then ID.
type Query struct {
	Parent     string
	MinSort    *int64
	MaxSort    *int64
	Limit      int
	Descending bool
}

// Key addresses a single record.
type Key struct {
	Table Table
	ID    string
}

// LocalStore is the persistent cache that sits in front of the REST API. Implementations
// must be safe for concurrent use. Get returns an error wrapping
// serviceerrors.ErrRecordNotFound when the key is absent.
type LocalStore interface {
	Get(ctx context.Context, table Table, id string) (*Record, error)
	Put(ctx context.Context, table Table, record Record) error
	BulkPut(ctx context.Context, table Table, records []Record) error
	// Delete ignores missing keys.
	Delete(ctx context.Context, table Table, id string) error
	// Replace deletes oldID and stores record in one transaction.
	Replace(ctx context.Context, table Table, oldID string, record Record) error
	Query(ctx context.Context, table Table, query Query) ([]Record, error)
	// Invalidate deletes the keys in order within one transaction. Missing keys are ignored.
	Invalidate(ctx context.Context, keys ...Key) error
	Clear(ctx context.Context) error
	Name() string
	Close() error
}
