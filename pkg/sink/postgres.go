package sink

import (
	"context"
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/jackc/pgx/v5"

	"github.com/ajitpratap0/genobatch/pkg/errors"
)

// postgresWriter copies each batch into a table with COPY FROM STDIN
type postgresWriter struct {
	ctx     context.Context
	conn    *pgx.Conn
	table   pgx.Identifier
	columns []string
	rows    int64
}

// NewPostgres connects to opts.DSN and returns a sink copying into
// opts.Table, creating the table first when opts.CreateTable is set
func NewPostgres(ctx context.Context, schema *arrow.Schema, opts Options) (Writer, error) {
	if opts.DSN == "" || opts.Table == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "postgres output needs a dsn and a table")
	}
	table := tableIdentifier(opts.Table)
	ddl, err := createTableSQL(table, schema)
	if err != nil {
		return nil, err
	}

	conn, err := pgx.Connect(ctx, opts.DSN)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to connect to postgres")
	}
	if opts.CreateTable {
		if _, err := conn.Exec(ctx, ddl); err != nil {
			conn.Close(ctx)
			return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to create table").WithDetail("table", opts.Table)
		}
	}
	return &postgresWriter{ctx: ctx, conn: conn, table: table, columns: columnNames(schema)}, nil
}

func tableIdentifier(name string) pgx.Identifier {
	return pgx.Identifier(strings.Split(name, "."))
}

func columnNames(schema *arrow.Schema) []string {
	names := make([]string, schema.NumFields())
	for i, f := range schema.Fields() {
		names[i] = f.Name
	}
	return names
}

// postgresType maps a column type onto a PostgreSQL type. The attributes
// struct is stored as jsonb.
func postgresType(dt arrow.DataType) (string, error) {
	switch dt.ID() {
	case arrow.STRING, arrow.LARGE_STRING:
		return "text", nil
	case arrow.INT32:
		return "integer", nil
	case arrow.INT64:
		return "bigint", nil
	case arrow.FLOAT32:
		return "real", nil
	case arrow.FLOAT64:
		return "double precision", nil
	case arrow.BOOL:
		return "boolean", nil
	case arrow.LIST:
		elem, err := postgresType(dt.(*arrow.ListType).Elem())
		if err != nil {
			return "", err
		}
		return elem + "[]", nil
	case arrow.STRUCT:
		return "jsonb", nil
	default:
		return "", errors.Newf(errors.ErrorTypeInvalidInput, "no postgres mapping for %s", dt)
	}
}

func createTableSQL(table pgx.Identifier, schema *arrow.Schema) (string, error) {
	cols := make([]string, 0, schema.NumFields())
	for _, f := range schema.Fields() {
		typ, err := postgresType(f.Type)
		if err != nil {
			return "", errors.Wrap(err, errors.ErrorTypeInvalidInput, "unsupported column type").WithDetail("field", f.Name)
		}
		col := pgx.Identifier{f.Name}.Sanitize() + " " + typ
		if !f.Nullable {
			col += " NOT NULL"
		}
		cols = append(cols, col)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", table.Sanitize(), strings.Join(cols, ", ")), nil
}

// copyValue adapts value for pgx: string lists become []string so they
// encode as text[]
func copyValue(arr arrow.Array, i int) any {
	v := value(arr, i)
	items, ok := v.([]any)
	if !ok {
		return v
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, _ := item.(string)
		out = append(out, s)
	}
	return out
}

// copyRows returns the rows of rec in COPY column order
func copyRows(rec arrow.Record) [][]any {
	rows := make([][]any, rec.NumRows())
	for i := range rows {
		r := make([]any, rec.NumCols())
		for c, col := range rec.Columns() {
			r[c] = copyValue(col, i)
		}
		rows[i] = r
	}
	return rows
}

func (w *postgresWriter) Write(rec arrow.Record) error {
	if rec.NumRows() == 0 {
		return nil
	}
	n, err := w.conn.CopyFrom(w.ctx, w.table, w.columns, pgx.CopyFromRows(copyRows(rec)))
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "copy into postgres failed").
			WithDetail("table", w.table.Sanitize())
	}
	w.rows += n
	return nil
}

func (w *postgresWriter) Close() error {
	if err := w.conn.Close(w.ctx); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to close postgres connection")
	}
	return nil
}

func (w *postgresWriter) Rows() int64 { return w.rows }
