package sql

import (
	"fmt"
	"strings"

	"github.com/eval-hub/eval-dashboard/internal/abstractions"
	"github.com/eval-hub/eval-dashboard/internal/config"
	se "github.com/eval-hub/eval-dashboard/internal/serviceerrors"
)

func getUnsupportedDriverError(driver string) error {
	return se.NewStorageError("unsupported driver: %s", driver)
}

// placeholder returns the n-th (1 based) bind parameter of the driver.
func placeholder(driver string, n int) string {
	if driver == config.POSTGRES_DRIVER {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func placeholders(driver string, from int, count int) string {
	params := make([]string, 0, count)
	for i := 0; i < count; i++ {
		params = append(params, placeholder(driver, from+i))
	}
	return strings.Join(params, ", ")
}

// createTableStatements returns the statements that create the table and its parent index.
// updated_at holds unix milliseconds so that both drivers scan it the same way.
func createTableStatements(table abstractions.Table) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    id         TEXT PRIMARY KEY,
    parent_id  TEXT NOT NULL DEFAULT '',
    sort_key   BIGINT NOT NULL DEFAULT 0,
    updated_at BIGINT NOT NULL,
    entity     TEXT NOT NULL
);`, table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_parent ON %s (parent_id, sort_key);`, table, table),
	}
}

// createUpsertStatement the order or arguments is:
// id parent_id sort_key updated_at entity
func createUpsertStatement(driver string, table abstractions.Table) string {
	return fmt.Sprintf(`INSERT INTO %s (id, parent_id, sort_key, updated_at, entity)
	VALUES (%s)
	ON CONFLICT (id) DO UPDATE SET
	parent_id = excluded.parent_id, sort_key = excluded.sort_key, updated_at = excluded.updated_at, entity = excluded.entity;`,
		table, placeholders(driver, 1, 5))
}

// createGetEntityStatement the order or arguments is:
// id
func createGetEntityStatement(driver string, table abstractions.Table) string {
	return fmt.Sprintf(`SELECT id, parent_id, sort_key, updated_at, entity FROM %s WHERE id = %s;`, table, placeholder(driver, 1))
}

// createDeleteEntityStatement the order or arguments is:
// id
func createDeleteEntityStatement(driver string, table abstractions.Table) string {
	return fmt.Sprintf(`DELETE FROM %s WHERE id = %s;`, table, placeholder(driver, 1))
}

func createClearTableStatement(table abstractions.Table) string {
	return fmt.Sprintf(`DELETE FROM %s;`, table)
}

// createQueryStatement builds the filtered select for the query and returns the arguments in order.
func createQueryStatement(driver string, table abstractions.Table, query abstractions.Query) (string, []any) {
	var filters []string
	var args []any
	if query.Parent != "" {
		args = append(args, query.Parent)
		filters = append(filters, "parent_id = "+placeholder(driver, len(args)))
	}
	if query.MinSort != nil {
		args = append(args, *query.MinSort)
		filters = append(filters, "sort_key >= "+placeholder(driver, len(args)))
	}
	if query.MaxSort != nil {
		args = append(args, *query.MaxSort)
		filters = append(filters, "sort_key <= "+placeholder(driver, len(args)))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT id, parent_id, sort_key, updated_at, entity FROM %s", table)
	if len(filters) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(filters, " AND "))
	}
	direction := "ASC"
	if query.Descending {
		direction = "DESC"
	}
	fmt.Fprintf(&b, " ORDER BY sort_key %s, id %s", direction, direction)
	if query.Limit > 0 {
		args = append(args, query.Limit)
		b.WriteString(" LIMIT " + placeholder(driver, len(args)))
	}
	b.WriteString(";")
	return b.String(), args
}
