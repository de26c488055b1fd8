// Package cli implements the sqlkite command actions. Each action writes to the
// given writer so it can be driven from tests.
package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sllt/sqlkite/pkg/sqlkite/config"
	sqlds "github.com/sllt/sqlkite/pkg/sqlkite/datasource/sql"
	"github.com/sllt/sqlkite/pkg/sqlkite/dialect"
	"github.com/sllt/sqlkite/pkg/sqlkite/logging"
	"github.com/sllt/sqlkite/pkg/sqlkite/metrics"
	"github.com/sllt/sqlkite/pkg/sqlkite/queryfile"
)

var (
	errUnknownFormat = errors.New("unknown output format")
	errQueryNotFound = errors.New("query not found in file")
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

// Dialects lists the supported dialect names.
func Dialects(w io.Writer) error {
	for _, n := range dialect.Names() {
		if _, err := fmt.Fprintln(w, n); err != nil {
			return err
		}
	}

	return nil
}

// Render renders every query of the file at path. An empty dialectName falls back to
// the file's dialect and then to the standard dialect. Positional dialects print
// rebound markers.
func Render(w io.Writer, path, dialectName, format string) error {
	f, err := queryfile.Load(path)
	if err != nil {
		return err
	}

	if dialectName == "" {
		dialectName = f.Dialect
	}

	d, err := dialect.New(dialectName)
	if err != nil {
		return err
	}

	statements, err := queryfile.Render(f, d)
	if err != nil {
		return errors.Wrapf(err, "render %s", path)
	}

	for i := range statements {
		statements[i].SQL = d.Rebind(statements[i].SQL)
	}

	switch format {
	case "", FormatText:
		return writeText(w, statements)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		return enc.Encode(statements)
	default:
		return errors.Wrapf(errUnknownFormat, "%q", format)
	}
}

func writeText(w io.Writer, statements []queryfile.Statement) error {
	for _, st := range statements {
		if _, err := fmt.Fprintf(w, "-- %s (%s)\n%s;\n-- args: %v\n", st.Name, st.Kind, st.SQL, st.Args); err != nil {
			return err
		}
	}

	return nil
}

// Exec runs the query called name from the file at path against the database
// configured in configDir. The statement is rebound by the connection. Selected rows
// are printed as a table; other statements print the affected row count.
func Exec(ctx context.Context, w io.Writer, path, name, configDir string) error {
	f, err := queryfile.Load(path)
	if err != nil {
		return err
	}

	idx := -1

	for i, q := range f.Queries {
		if q.Name == name {
			idx = i
			break
		}
	}

	if idx < 0 {
		return errors.Wrapf(errQueryNotFound, "%q", name)
	}

	f.Queries = f.Queries[idx : idx+1]

	logger := logging.NewLogger(logging.INFO)
	cfg := config.NewEnvFile(configDir, logger)
	logger.ChangeLevel(logging.GetLevelFromString(cfg.Get("LOG_LEVEL")))

	m := metrics.NewMetricsManager(prometheus.NewRegistry(), logger)
	m.NewHistogram("app_sql_stats", "Response time of SQL queries in milliseconds.")

	db, err := sqlds.NewSQL(ctx, cfg, logger, m)
	if err != nil {
		return err
	}

	defer db.Close()

	d, err := dialect.FromConfig(cfg)
	if err != nil {
		return err
	}

	statements, err := queryfile.Render(f, d)
	if err != nil {
		return errors.Wrapf(err, "render %s", path)
	}

	st := statements[0]

	switch st.Kind {
	case queryfile.KindSelect:
		rows, err := db.QueryContext(ctx, st.SQL, st.Args...)
		if err != nil {
			return err
		}

		defer rows.Close()

		return writeRows(w, rows)
	case queryfile.KindCount:
		var n int64
		if err := db.QueryRowContext(ctx, st.SQL, st.Args...).Scan(&n); err != nil {
			return err
		}

		_, err = fmt.Fprintln(w, n)

		return err
	default:
		res, err := db.ExecContext(ctx, st.SQL, st.Args...)
		if err != nil {
			return err
		}

		n, err := res.RowsAffected()
		if err != nil {
			return err
		}

		_, err = fmt.Fprintf(w, "%d rows affected\n", n)

		return err
	}
}

func writeRows(w io.Writer, rows *sql.Rows) error {
	cols, err := rows.Columns()
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(cols, "\t"))

	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))

	for i := range values {
		ptrs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return err
		}

		cells := make([]string, len(values))
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				v = string(b)
			}

			cells[i] = fmt.Sprint(v)
		}

		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}

	if err := rows.Err(); err != nil {
		return err
	}

	return tw.Flush()
}
