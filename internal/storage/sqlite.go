package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

// SQLiteTable keeps the table in a local SQLite file. Row order is insertion order.
type SQLiteTable struct {
	conn *sql.DB
}

var _ TabularBackend = (*SQLiteTable)(nil)

// NewSQLiteTable opens (or creates) the database file and initializes the schema
func NewSQLiteTable(path string) (*SQLiteTable, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Single connection keeps the OFFSET-based index lookups and the writes that follow
	// them on one connection.
	conn.SetMaxOpenConns(1)

	t := &SQLiteTable{conn: conn}
	if err := t.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	logrus.Debugf("Opened sqlite table at %s", path)
	return t, nil
}

// Close closes the database connection.
func (t *SQLiteTable) Close() error {
	return t.conn.Close()
}

func quotedColumns() string {
	quoted := make([]string, len(Columns))
	for i, c := range Columns {
		quoted[i] = `"` + c + `"`
	}
	return strings.Join(quoted, ", ")
}

func (t *SQLiteTable) initSchema() error {
	defs := make([]string, len(Columns))
	for i, c := range Columns {
		defs[i] = fmt.Sprintf(`"%s" TEXT NOT NULL DEFAULT ''`, c)
	}
	schema := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS diary_rows (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		%s
	);`, strings.Join(defs, ",\n\t\t"))

	_, err := t.conn.Exec(schema)
	return err
}

func (t *SQLiteTable) ListRows(ctx context.Context) ([][]string, error) {
	query := fmt.Sprintf(`SELECT %s FROM diary_rows ORDER BY id`, quotedColumns())
	rows, err := t.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query rows: %w", err)
	}
	defer rows.Close()

	var out [][]string
	for rows.Next() {
		cells := make([]string, len(Columns))
		dest := make([]any, len(cells))
		for i := range cells {
			dest[i] = &cells[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, cells)
	}
	return out, rows.Err()
}

func (t *SQLiteTable) AppendRow(ctx context.Context, row []string) error {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(Columns)), ", ")
	query := fmt.Sprintf(`INSERT INTO diary_rows (%s) VALUES (%s)`, quotedColumns(), placeholders)

	if _, err := t.conn.ExecContext(ctx, query, cellArgs(row)...); err != nil {
		return fmt.Errorf("insert row: %w", err)
	}
	return nil
}

func (t *SQLiteTable) UpdateRow(ctx context.Context, index int, row []string) error {
	id, err := t.idAt(ctx, index)
	if err != nil {
		return err
	}

	sets := make([]string, len(Columns))
	for i, c := range Columns {
		sets[i] = fmt.Sprintf(`"%s" = ?`, c)
	}
	query := fmt.Sprintf(`UPDATE diary_rows SET %s WHERE id = ?`, strings.Join(sets, ", "))

	args := append(cellArgs(row), id)
	if _, err := t.conn.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update row %d: %w", index, err)
	}
	return nil
}

func (t *SQLiteTable) DeleteRow(ctx context.Context, index int) error {
	id, err := t.idAt(ctx, index)
	if err != nil {
		return err
	}
	if _, err := t.conn.ExecContext(ctx, `DELETE FROM diary_rows WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete row %d: %w", index, err)
	}
	return nil
}

func (t *SQLiteTable) idAt(ctx context.Context, index int) (int64, error) {
	if index < 0 {
		return 0, fmt.Errorf("row %d: %w", index, ErrIndexOutOfRange)
	}
	var id int64
	err := t.conn.QueryRowContext(ctx, `SELECT id FROM diary_rows ORDER BY id LIMIT 1 OFFSET ?`, index).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("row %d: %w", index, ErrIndexOutOfRange)
	}
	if err != nil {
		return 0, fmt.Errorf("resolve row %d: %w", index, err)
	}
	return id, nil
}

// cellArgs pads or truncates a row to the table width.
func cellArgs(row []string) []any {
	args := make([]any, len(Columns))
	for i := range Columns {
		if i < len(row) {
			args[i] = row[i]
		} else {
			args[i] = ""
		}
	}
	return args
}
