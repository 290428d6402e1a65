package tool

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

const sqliteDBFilename = "merobot.db"

// Statements that modify data.
var writePrefixes = []string{"INSERT", "UPDATE", "DELETE", "CREATE", "DROP", "ALTER", "REPLACE"}

// SQLiteQueryTool gives the agent a persistent SQLite database inside
// the workspace for recording and querying structured data.
type SQLiteQueryTool struct {
	workspace string
	logger    *slog.Logger

	db *sql.DB
}

func NewSQLiteQueryTool(workspace string, logger *slog.Logger) *SQLiteQueryTool {
	return &SQLiteQueryTool{workspace: workspace, logger: logger}
}

func (t *SQLiteQueryTool) Name() string { return "sqlite_query" }
func (t *SQLiteQueryTool) Description() string {
	return "Execute SQL queries against a local SQLite database in the workspace. " +
		"Supports SELECT (returns a formatted table), INSERT, UPDATE, DELETE, CREATE TABLE, DROP TABLE and ALTER TABLE. " +
		"The database is created on first use. Use it to record information, track tasks, or persist structured data."
}
func (t *SQLiteQueryTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "SQL query to execute",
				"minLength":   1,
			},
			"params": map[string]any{
				"type":        "array",
				"description": "Optional parameters for ? placeholders in the query",
			},
		},
		"required": []string{"query"},
	}
}

func (t *SQLiteQueryTool) open() (*sql.DB, error) {
	if t.db != nil {
		return t.db, nil
	}
	if err := os.MkdirAll(t.workspace, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	dbPath := filepath.Join(t.workspace, sqliteDBFilename)
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	t.db = db
	return db, nil
}

// Close releases the underlying database handle.
func (t *SQLiteQueryTool) Close() error {
	if t.db == nil {
		return nil
	}
	err := t.db.Close()
	t.db = nil
	return err
}

func (t *SQLiteQueryTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	query := strings.TrimSpace(ArgsString(args, "query"))
	if query == "" {
		return "", fmt.Errorf("missing argument: query")
	}

	var params []any
	if raw, ok := args["params"].([]any); ok {
		params = raw
	}

	db, err := t.open()
	if err != nil {
		return "", err
	}

	t.logger.Info("sqlite query", "query", truncate(query, 100))

	upper := strings.ToUpper(query)
	for _, prefix := range writePrefixes {
		if strings.HasPrefix(upper, prefix) {
			return t.executeWrite(ctx, db, query, params, prefix)
		}
	}
	return t.executeRead(ctx, db, query, params)
}

func (t *SQLiteQueryTool) executeWrite(ctx context.Context, db *sql.DB, query string, params []any, prefix string) (string, error) {
	res, err := db.ExecContext(ctx, query, params...)
	if err != nil {
		return "", fmt.Errorf("sqlite: %w", err)
	}
	switch prefix {
	case "CREATE":
		return "Table created successfully.", nil
	case "DROP":
		return "Table dropped successfully.", nil
	}
	affected, _ := res.RowsAffected()
	return fmt.Sprintf("Query executed successfully. Rows affected: %d", affected), nil
}

func (t *SQLiteQueryTool) executeRead(ctx context.Context, db *sql.DB, query string, params []any) (string, error) {
	rows, err := db.QueryContext(ctx, query, params...)
	if err != nil {
		return "", fmt.Errorf("sqlite: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return "", fmt.Errorf("sqlite columns: %w", err)
	}

	var table [][]string
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return "", fmt.Errorf("sqlite scan: %w", err)
		}
		row := make([]string, len(columns))
		for i, v := range values {
			row[i] = renderValue(v)
		}
		table = append(table, row)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("sqlite rows: %w", err)
	}

	if len(table) == 0 {
		return "Query returned no results.", nil
	}
	return formatTable(columns, table), nil
}

const tableRowCap = 100

// formatTable renders rows as a markdown table, capped at tableRowCap rows.
func formatTable(columns []string, rows [][]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d row(s) returned:\n\n", len(rows))

	b.WriteString("| " + strings.Join(columns, " | ") + " |\n")
	seps := make([]string, len(columns))
	for i := range seps {
		seps[i] = "---"
	}
	b.WriteString("| " + strings.Join(seps, " | ") + " |\n")

	shown := rows
	if len(shown) > tableRowCap {
		shown = shown[:tableRowCap]
	}
	for _, row := range shown {
		b.WriteString("| " + strings.Join(row, " | ") + " |\n")
	}
	if len(rows) > tableRowCap {
		fmt.Fprintf(&b, "\n[Showing %d of %d rows]", tableRowCap, len(rows))
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(x)
	default:
		return fmt.Sprintf("%v", x)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
