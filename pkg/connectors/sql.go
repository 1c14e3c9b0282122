// Package connectors turns external data sources into registry tools.
//
// The SQL connector introspects a SQLite database and generates one
// tool per table and operation, so an agent can query application data
// without hand-written tool code.
package connectors

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/loomlab/loom/pkg/tools"
)

// Table describes one introspected database table.
type Table struct {
	Name       string
	Columns    []Column
	PrimaryKey []string
}

// Column describes one table column.
type Column struct {
	Name       string
	Type       string
	Nullable   bool
	IsPrimary  bool
	HasDefault bool
}

// SQLConnector generates tools from a SQLite database schema.
type SQLConnector struct {
	db       *sql.DB
	tables   map[string]*Table
	prefix   string
	readOnly bool
}

// SQLOption configures the SQLConnector.
type SQLOption func(*SQLConnector)

// WithToolPrefix prepends prefix to every generated tool name.
func WithToolPrefix(prefix string) SQLOption {
	return func(c *SQLConnector) { c.prefix = prefix }
}

// WithReadOnly generates only query tools, no insert or delete.
func WithReadOnly() SQLOption {
	return func(c *SQLConnector) { c.readOnly = true }
}

// NewSQLConnector introspects db and builds the connector. The database
// is expected to be opened with the modernc.org/sqlite driver.
func NewSQLConnector(db *sql.DB, opts ...SQLOption) (*SQLConnector, error) {
	c := &SQLConnector{
		db:     db,
		tables: make(map[string]*Table),
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.introspect(context.Background()); err != nil {
		return nil, fmt.Errorf("sql introspection: %w", err)
	}
	return c, nil
}

func (c *SQLConnector) introspect(ctx context.Context) error {
	rows, err := c.db.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'")
	if err != nil {
		return err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, name := range names {
		table, err := c.introspectTable(ctx, name)
		if err != nil {
			return err
		}
		c.tables[name] = table
	}
	return nil
}

func (c *SQLConnector) introspectTable(ctx context.Context, name string) (*Table, error) {
	rows, err := c.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%q)", name))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	table := &Table{Name: name}
	for rows.Next() {
		var cid, notNull, pk int
		var colName, colType string
		var dflt sql.NullString
		if err := rows.Scan(&cid, &colName, &colType, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		table.Columns = append(table.Columns, Column{
			Name:       colName,
			Type:       colType,
			Nullable:   notNull == 0,
			IsPrimary:  pk > 0,
			HasDefault: dflt.Valid,
		})
		if pk > 0 {
			table.PrimaryKey = append(table.PrimaryKey, colName)
		}
	}
	return table, rows.Err()
}

// Tables returns the introspected tables keyed by name.
func (c *SQLConnector) Tables() map[string]*Table {
	return c.tables
}

// Tools generates registry tools for every table. Query and get tools
// are always emitted; insert and delete only when the connector is not
// read-only.
func (c *SQLConnector) Tools() []tools.Tool {
	var out []tools.Tool
	for _, table := range c.tables {
		out = append(out, c.queryTool(table), c.getTool(table))
		if !c.readOnly {
			out = append(out, c.insertTool(table), c.deleteTool(table))
		}
	}
	return out
}

// Register adds all generated tools to the registry.
func (c *SQLConnector) Register(registry *tools.Registry) error {
	for _, tool := range c.Tools() {
		if err := registry.Register(tool); err != nil {
			return err
		}
	}
	return nil
}

func (c *SQLConnector) toolName(op, table string) string {
	name := op + "_" + table
	if c.prefix != "" {
		name = c.prefix + "_" + name
	}
	return name
}

func (c *SQLConnector) queryTool(table *Table) tools.Tool {
	props := make(map[string]tools.Property, len(table.Columns)+1)
	for _, col := range table.Columns {
		props[col.Name] = tools.Property{
			Type:        jsonType(col.Type),
			Description: fmt.Sprintf("Filter on %s (exact match)", col.Name),
		}
	}
	props["limit"] = tools.Property{Type: "integer", Description: "Maximum rows to return (default 100)"}

	return &sqlTool{
		name:        c.toolName("query", table.Name),
		description: fmt.Sprintf("Query rows from the %s table with optional exact-match filters.", table.Name),
		schema:      tools.Schema{Type: "object", Properties: props},
		run: func(ctx context.Context, params map[string]any) tools.Result {
			return c.execQuery(ctx, table, params)
		},
	}
}

func (c *SQLConnector) getTool(table *Table) tools.Tool {
	props := make(map[string]tools.Property, len(table.PrimaryKey))
	required := make([]string, 0, len(table.PrimaryKey))
	for _, pk := range table.PrimaryKey {
		props[pk] = tools.Property{Type: jsonType(c.columnType(table, pk))}
		required = append(required, pk)
	}

	return &sqlTool{
		name:        c.toolName("get", table.Name),
		description: fmt.Sprintf("Fetch one row from the %s table by primary key.", table.Name),
		schema:      tools.Schema{Type: "object", Properties: props, Required: required},
		run: func(ctx context.Context, params map[string]any) tools.Result {
			return c.execGet(ctx, table, params)
		},
	}
}

func (c *SQLConnector) insertTool(table *Table) tools.Tool {
	props := make(map[string]tools.Property, len(table.Columns))
	var required []string
	for _, col := range table.Columns {
		if col.IsPrimary && col.HasDefault {
			continue
		}
		props[col.Name] = tools.Property{Type: jsonType(col.Type)}
		if !col.Nullable && !col.HasDefault && !col.IsPrimary {
			required = append(required, col.Name)
		}
	}

	return &sqlTool{
		name:        c.toolName("insert", table.Name),
		description: fmt.Sprintf("Insert a row into the %s table.", table.Name),
		schema:      tools.Schema{Type: "object", Properties: props, Required: required},
		run: func(ctx context.Context, params map[string]any) tools.Result {
			return c.execInsert(ctx, table, params)
		},
	}
}

func (c *SQLConnector) deleteTool(table *Table) tools.Tool {
	props := make(map[string]tools.Property, len(table.PrimaryKey))
	required := make([]string, 0, len(table.PrimaryKey))
	for _, pk := range table.PrimaryKey {
		props[pk] = tools.Property{Type: jsonType(c.columnType(table, pk))}
		required = append(required, pk)
	}

	return &sqlTool{
		name:        c.toolName("delete", table.Name),
		description: fmt.Sprintf("Delete one row from the %s table by primary key.", table.Name),
		schema:      tools.Schema{Type: "object", Properties: props, Required: required},
		run: func(ctx context.Context, params map[string]any) tools.Result {
			return c.execDelete(ctx, table, params)
		},
	}
}

func (c *SQLConnector) columnType(table *Table, name string) string {
	for _, col := range table.Columns {
		if col.Name == name {
			return col.Type
		}
	}
	return ""
}

func (c *SQLConnector) execQuery(ctx context.Context, table *Table, params map[string]any) tools.Result {
	query := fmt.Sprintf("SELECT * FROM %q", table.Name)
	var args []any
	var conds []string
	for _, col := range table.Columns {
		if val, ok := params[col.Name]; ok {
			conds = append(conds, fmt.Sprintf("%q = ?", col.Name))
			args = append(args, val)
		}
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	limit := 100
	if l, ok := params["limit"].(float64); ok && l > 0 {
		limit = int(l)
	}
	query += fmt.Sprintf(" LIMIT %d", limit)

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return tools.Fail(fmt.Sprintf("query failed: %v", err))
	}
	defer rows.Close()

	results, err := rowsToMaps(rows)
	if err != nil {
		return tools.Fail(err.Error())
	}
	return tools.Succeed(results)
}

func (c *SQLConnector) execGet(ctx context.Context, table *Table, params map[string]any) tools.Result {
	conds, args, err := pkConditions(table, params)
	if err != nil {
		return tools.Fail(err.Error())
	}

	query := fmt.Sprintf("SELECT * FROM %q WHERE %s LIMIT 1", table.Name, strings.Join(conds, " AND "))
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return tools.Fail(fmt.Sprintf("query failed: %v", err))
	}
	defer rows.Close()

	results, err := rowsToMaps(rows)
	if err != nil {
		return tools.Fail(err.Error())
	}
	if len(results) == 0 {
		return tools.Fail("row not found")
	}
	return tools.Succeed(results[0])
}

func (c *SQLConnector) execInsert(ctx context.Context, table *Table, params map[string]any) tools.Result {
	var columns, placeholders []string
	var values []any
	for _, col := range table.Columns {
		if val, ok := params[col.Name]; ok {
			columns = append(columns, fmt.Sprintf("%q", col.Name))
			placeholders = append(placeholders, "?")
			values = append(values, val)
		}
	}
	if len(columns) == 0 {
		return tools.Fail("no column values provided")
	}

	query := fmt.Sprintf("INSERT INTO %q (%s) VALUES (%s)",
		table.Name, strings.Join(columns, ", "), strings.Join(placeholders, ", "))
	result, err := c.db.ExecContext(ctx, query, values...)
	if err != nil {
		return tools.Fail(fmt.Sprintf("insert failed: %v", err))
	}

	lastID, _ := result.LastInsertId()
	affected, _ := result.RowsAffected()
	return tools.Succeed(map[string]any{"last_insert_id": lastID, "rows_affected": affected})
}

func (c *SQLConnector) execDelete(ctx context.Context, table *Table, params map[string]any) tools.Result {
	conds, args, err := pkConditions(table, params)
	if err != nil {
		return tools.Fail(err.Error())
	}

	query := fmt.Sprintf("DELETE FROM %q WHERE %s", table.Name, strings.Join(conds, " AND "))
	result, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return tools.Fail(fmt.Sprintf("delete failed: %v", err))
	}

	affected, _ := result.RowsAffected()
	return tools.Succeed(map[string]any{"rows_affected": affected})
}

func pkConditions(table *Table, params map[string]any) ([]string, []any, error) {
	if len(table.PrimaryKey) == 0 {
		return nil, nil, fmt.Errorf("table %s has no primary key", table.Name)
	}
	var conds []string
	var args []any
	for _, pk := range table.PrimaryKey {
		val, ok := params[pk]
		if !ok {
			return nil, nil, fmt.Errorf("missing primary key value %s", pk)
		}
		conds = append(conds, fmt.Sprintf("%q = ?", pk))
		args = append(args, val)
	}
	return conds, args, nil
}

func rowsToMaps(rows *sql.Rows) ([]map[string]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var results []map[string]any
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		results = append(results, row)
	}
	return results, rows.Err()
}

// jsonType maps a SQLite column type to a JSON schema type.
func jsonType(sqlType string) string {
	upper := strings.ToUpper(sqlType)
	switch {
	case strings.Contains(upper, "INT"):
		return "integer"
	case strings.Contains(upper, "REAL"), strings.Contains(upper, "FLOA"),
		strings.Contains(upper, "DOUB"), strings.Contains(upper, "NUMERIC"),
		strings.Contains(upper, "DECIMAL"):
		return "number"
	case strings.Contains(upper, "BOOL"):
		return "boolean"
	default:
		return "string"
	}
}

type sqlTool struct {
	name        string
	description string
	schema      tools.Schema
	run         func(ctx context.Context, params map[string]any) tools.Result
}

func (t *sqlTool) Name() string        { return t.name }
func (t *sqlTool) Description() string { return t.description }
func (t *sqlTool) Schema() tools.Schema {
	return t.schema
}

func (t *sqlTool) Execute(ctx context.Context, params map[string]any) tools.Result {
	return t.run(ctx, params)
}
