package etl

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/BartekS5/paysync/pkg/models"
	"github.com/BartekS5/paysync/pkg/utils"
)

// Dialect holds the SQL differences between supported engines.
type Dialect struct {
	Name   string
	Driver string

	quoteOpen   string
	quoteClose  string
	placeholder func(n int) string
	columnTypes map[models.FieldType]string
	// tableExists takes the table name as its only parameter and returns a count.
	tableExists string
	maxParams   int
	bindTime    func(time.Time) any
}

var SQLServer = &Dialect{
	Name:        "sqlserver",
	Driver:      "sqlserver",
	quoteOpen:   "[",
	quoteClose:  "]",
	placeholder: func(n int) string { return fmt.Sprintf("@p%d", n) },
	columnTypes: map[models.FieldType]string{
		models.TypeString:    "NVARCHAR(MAX)",
		models.TypeInteger:   "BIGINT",
		models.TypeFloat:     "FLOAT",
		models.TypeBoolean:   "BIT",
		models.TypeTimestamp: "DATETIME2",
		models.TypeRecord:    "NVARCHAR(MAX)",
	},
	tableExists: "SELECT COUNT(*) FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_NAME = @p1",
	maxParams:   2000,
	bindTime:    func(t time.Time) any { return t.UTC() },
}

var Postgres = &Dialect{
	Name:        "postgres",
	Driver:      "pgx",
	quoteOpen:   `"`,
	quoteClose:  `"`,
	placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	columnTypes: map[models.FieldType]string{
		models.TypeString:    "TEXT",
		models.TypeInteger:   "BIGINT",
		models.TypeFloat:     "DOUBLE PRECISION",
		models.TypeBoolean:   "BOOLEAN",
		models.TypeTimestamp: "TIMESTAMPTZ",
		models.TypeRecord:    "TEXT",
	},
	tableExists: "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = $1",
	maxParams:   30000,
	bindTime:    func(t time.Time) any { return t.UTC() },
}

var SQLite = &Dialect{
	Name:        "sqlite",
	Driver:      "sqlite",
	quoteOpen:   `"`,
	quoteClose:  `"`,
	placeholder: func(int) string { return "?" },
	columnTypes: map[models.FieldType]string{
		models.TypeString:    "TEXT",
		models.TypeInteger:   "INTEGER",
		models.TypeFloat:     "REAL",
		models.TypeBoolean:   "BOOLEAN",
		models.TypeTimestamp: "TIMESTAMP",
		models.TypeRecord:    "TEXT",
	},
	tableExists: "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?",
	maxParams:   30000,
	// Fixed-width text keeps MAX() and ORDER BY chronological.
	bindTime: func(t time.Time) any { return t.UTC().Format("2006-01-02 15:04:05") },
}

// DialectFor returns the dialect registered under name.
func DialectFor(name string) (*Dialect, error) {
	for _, d := range []*Dialect{SQLServer, Postgres, SQLite} {
		if d.Name == name {
			return d, nil
		}
	}
	return nil, fmt.Errorf("unsupported SQL dialect %q", name)
}

// Quote quotes an identifier.
func (d *Dialect) Quote(ident string) string {
	return d.quoteOpen + strings.ReplaceAll(ident, d.quoteClose, d.quoteClose+d.quoteClose) + d.quoteClose
}

func (d *Dialect) quoteAll(idents []string) string {
	quoted := make([]string, len(idents))
	for i, id := range idents {
		quoted[i] = d.Quote(id)
	}
	return strings.Join(quoted, ", ")
}

func (d *Dialect) createTable(table string, schema models.Schema) string {
	cols := make([]string, len(schema))
	for i, f := range schema {
		cols[i] = d.Quote(f.Name) + " " + d.columnTypes[f.Type]
	}
	if d == SQLServer {
		lit := strings.ReplaceAll(d.Quote(table), "'", "''")
		return fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NULL CREATE TABLE %s (%s)", lit, d.Quote(table), strings.Join(cols, ", "))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", d.Quote(table), strings.Join(cols, ", "))
}

// dedupSelect selects one row per identity key from staging ∪ target.
// Staged rows win over target rows; within a side the greatest OrderBy
// value wins, then the greatest remaining column values.
func (d *Dialect) dedupSelect(m MergeSpec) string {
	cols := d.quoteAll(m.Schema.Names())
	src, rn := d.Quote("_src"), d.Quote("_row_num")
	order := src + " ASC"
	if m.OrderBy != "" {
		order += ", " + d.Quote(m.OrderBy) + " DESC"
	}
	for _, c := range m.tieBreakColumns() {
		order += ", " + d.Quote(c) + " DESC"
	}
	return fmt.Sprintf(
		"SELECT %[1]s FROM (SELECT %[1]s, ROW_NUMBER() OVER (PARTITION BY %[2]s ORDER BY %[3]s) AS %[4]s "+
			"FROM (SELECT %[1]s, 0 AS %[5]s FROM %[6]s UNION ALL SELECT %[1]s, 1 AS %[5]s FROM %[7]s) u) d WHERE %[4]s = 1",
		cols, d.quoteAll(m.IdentityKey), order, rn, src, d.Quote(m.Staging), d.Quote(m.Table))
}

// SQLWarehouse stores resources in a relational database. Nested records
// are stored as JSON text.
type SQLWarehouse struct {
	DB      *sql.DB
	Dialect *Dialect
}

func NewSQLWarehouse(db *sql.DB, dialect *Dialect) *SQLWarehouse {
	return &SQLWarehouse{DB: db, Dialect: dialect}
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (w *SQLWarehouse) tableExists(ctx context.Context, q queryer, table string) (bool, error) {
	var n int
	if err := q.QueryRowContext(ctx, w.Dialect.tableExists, table).Scan(&n); err != nil {
		return false, fmt.Errorf("check table %s: %w", table, err)
	}
	return n > 0, nil
}

func (w *SQLWarehouse) MaxTimestamp(ctx context.Context, table, column string) (time.Time, bool, error) {
	exists, err := w.tableExists(ctx, w.DB, table)
	if err != nil {
		return time.Time{}, false, err
	}
	if !exists {
		return time.Time{}, false, fmt.Errorf("%s: %w", table, ErrTableNotFound)
	}

	var v any
	query := fmt.Sprintf("SELECT MAX(%s) FROM %s", w.Dialect.Quote(column), w.Dialect.Quote(table))
	if err := w.DB.QueryRowContext(ctx, query).Scan(&v); err != nil {
		return time.Time{}, false, err
	}
	if v == nil {
		return time.Time{}, false, nil
	}
	ts, err := utils.ConvertDateTime(v)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("max %s.%s: %w", table, column, err)
	}
	return ts, true, nil
}

func (w *SQLWarehouse) AppendRows(ctx context.Context, table string, schema models.Schema, rows []models.Record) (int64, error) {
	tx, err := w.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, w.Dialect.createTable(table, schema)); err != nil {
		return 0, fmt.Errorf("create %s: %w", table, err)
	}

	perStmt := w.Dialect.maxParams / len(schema)
	if perStmt < 1 {
		perStmt = 1
	}
	if perStmt > 1000 {
		perStmt = 1000
	}

	var written int64
	for start := 0; start < len(rows); start += perStmt {
		end := min(start+perStmt, len(rows))
		query, args, err := w.insertStatement(table, schema, rows[start:end])
		if err != nil {
			return 0, err
		}
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return 0, fmt.Errorf("insert into %s: %w", table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			n = int64(end - start)
		}
		written += n
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return written, nil
}

func (w *SQLWarehouse) insertStatement(table string, schema models.Schema, rows []models.Record) (string, []any, error) {
	args := make([]any, 0, len(rows)*len(schema))
	tuples := make([]string, 0, len(rows))
	for _, row := range rows {
		ph := make([]string, len(schema))
		for i, f := range schema {
			v, err := w.encode(f, row[f.Name])
			if err != nil {
				return "", nil, err
			}
			args = append(args, v)
			ph[i] = w.Dialect.placeholder(len(args))
		}
		tuples = append(tuples, "("+strings.Join(ph, ", ")+")")
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
		w.Dialect.Quote(table), w.Dialect.quoteAll(schema.Names()), strings.Join(tuples, ", "))
	return query, args, nil
}

func (w *SQLWarehouse) encode(f models.Field, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch f.Type {
	case models.TypeRecord:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", f.Name, err)
		}
		return string(b), nil
	case models.TypeTimestamp:
		if t, ok := v.(time.Time); ok {
			return w.Dialect.bindTime(t), nil
		}
	}
	return v, nil
}

func (w *SQLWarehouse) ReplaceDeduplicated(ctx context.Context, m MergeSpec) error {
	d := w.Dialect
	scratch := m.Table + "_merge"
	cols := d.quoteAll(m.Schema.Names())

	tx, err := w.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	steps := []string{
		d.createTable(m.Table, m.Schema),
		d.createTable(m.Staging, m.Schema),
		"DROP TABLE IF EXISTS " + d.Quote(scratch),
		d.createTable(scratch, m.Schema),
		fmt.Sprintf("INSERT INTO %s (%s) %s", d.Quote(scratch), cols, d.dedupSelect(m)),
		"DELETE FROM " + d.Quote(m.Table),
		fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s", d.Quote(m.Table), cols, cols, d.Quote(scratch)),
		"DROP TABLE " + d.Quote(scratch),
		"DELETE FROM " + d.Quote(m.Staging),
	}
	for _, stmt := range steps {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("merge %s: %w", m.Table, err)
		}
	}
	return tx.Commit()
}

func (w *SQLWarehouse) Close() error {
	return w.DB.Close()
}
