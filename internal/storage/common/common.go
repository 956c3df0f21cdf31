package common

import (
	"sort"

	"github.com/eval-hub/eval-dashboard/internal/abstractions"
	se "github.com/eval-hub/eval-dashboard/internal/serviceerrors"
)

// ValidateTable rejects table names that are not part of the cache schema. The SQL store
// interpolates table names into statements, so this check guards every call.
func ValidateTable(table abstractions.Table) error {
	for _, t := range abstractions.Tables {
		if t == table {
			return nil
		}
	}
	return se.NewStorageError("unknown table: %q", table)
}

func ValidateRecord(record abstractions.Record) error {
	if record.ID == "" {
		return se.NewStorageError("record without an id")
	}
	if len(record.Entity) == 0 {
		return se.NewStorageError("record %s has no entity", record.ID)
	}
	return nil
}

// MatchesQuery reports whether the record passes the parent and sort filters of the query.
func MatchesQuery(record *abstractions.Record, query abstractions.Query) bool {
	if query.Parent != "" && record.Parent != query.Parent {
		return false
	}
	if query.MinSort != nil && record.Sort < *query.MinSort {
		return false
	}
	if query.MaxSort != nil && record.Sort > *query.MaxSort {
		return false
	}
	return true
}

// OrderAndLimit sorts the records by sort key then ID and applies the limit of the query.
func OrderAndLimit(records []abstractions.Record, query abstractions.Query) []abstractions.Record {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if query.Descending {
			a, b = b, a
		}
		if a.Sort != b.Sort {
			return a.Sort < b.Sort
		}
		return a.ID < b.ID
	})
	if query.Limit > 0 && len(records) > query.Limit {
		records = records[:query.Limit]
	}
	return records
}
