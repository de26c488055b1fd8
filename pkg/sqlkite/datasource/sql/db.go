// Package sql executes rendered statements over database/sql. DB and Tx wrap sql.DB
// and sql.Tx: every statement is rebound to the driver's placeholder syntax, traced,
// logged at DEBUG and recorded in the app_sql_stats histogram.
package sql

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/sllt/sqlkite/pkg/sqlkite/config"
	"github.com/sllt/sqlkite/pkg/sqlkite/datasource"
	"github.com/sllt/sqlkite/pkg/sqlkite/dialect"
)

// DB is a wrapper around sql.DB bound to the dialect of its driver.
type DB struct {
	*sql.DB
	logger  datasource.Logger
	config  *config.DBConfig
	metrics Metrics
	tracer  trace.Tracer
	dialect *dialect.Dialect
}

// Log is the record written for every statement.
type Log struct {
	Type     string `json:"type"`
	Query    string `json:"query"`
	Duration int64  `json:"duration"`
	Args     []any  `json:"args,omitempty"`
}

func (l *Log) PrettyPrint(writer io.Writer) {
	fmt.Fprintf(writer, "\u001B[38;5;8m%-32s \u001B[38;5;24m%-6s\u001B[0m %8d\u001B[38;5;8mµs\u001B[0m %s\n",
		l.Type, "SQL", l.Duration, clean(l.Query))
}

var whitespace = regexp.MustCompile(`\s+`)

func clean(query string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(query, " "))
}

// NewDB wraps an open *sql.DB. The dialect is resolved from cfg.Dialect.
func NewDB(db *sql.DB, cfg *config.DBConfig, logger datasource.Logger, metrics Metrics, opts ...Option) (*DB, error) {
	d, err := dialect.New(cfg.Dialect)
	if err != nil {
		return nil, err
	}

	o := applyOptions(opts)

	return &DB{DB: db, logger: logger, config: cfg, metrics: metrics, tracer: o.tracer, dialect: d}, nil
}

type stats struct {
	logger  datasource.Logger
	metrics Metrics
	config  *config.DBConfig
	tracer  trace.Tracer
	dialect *dialect.Dialect
}

func (s *stats) send(ctx context.Context, start time.Time, queryType, query string, args ...any) {
	duration := time.Since(start)

	if s.logger != nil {
		s.logger.Debug(&Log{
			Type:     queryType,
			Query:    query,
			Duration: duration.Microseconds(),
			Args:     args,
		})
	}

	if s.metrics != nil {
		s.metrics.RecordHistogram(ctx, "app_sql_stats", float64(duration.Milliseconds()), "hostname", s.config.HostName,
			"database", s.config.Database, "type", getOperationType(query))
	}
}

// begin rebinds query for the driver and starts its span.
func (s *stats) begin(ctx context.Context, queryType, query string) (context.Context, trace.Span, string) {
	query = s.dialect.Rebind(query)

	ctx, span := s.tracer.Start(ctx, "sql-"+queryType, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		attribute.String("db.system", string(s.dialect.Name())),
		attribute.String("db.operation", getOperationType(query)),
		attribute.String("db.statement", clean(query)),
	)

	return ctx, span, query
}

func (s *stats) end(ctx context.Context, span trace.Span, start time.Time, queryType, query string, err error, args ...any) {
	if err != nil {
		span.RecordError(err)

		if s.logger != nil {
			s.logger.Errorf("%s failed: %v", queryType, err)
		}
	}

	span.End()
	s.send(ctx, start, queryType, query, args...)
}

func getOperationType(query string) string {
	words := strings.Fields(query)
	if len(words) == 0 {
		return ""
	}

	return strings.ToUpper(words[0])
}

func (d *DB) stats() *stats {
	return &stats{logger: d.logger, metrics: d.metrics, config: d.config, tracer: d.tracer, dialect: d.dialect}
}

// Dialect returns the configured dialect name.
func (d *DB) Dialect() string {
	return d.config.Dialect
}

// SQLDialect returns the renderer of the configured dialect.
func (d *DB) SQLDialect() *dialect.Dialect {
	return d.dialect
}

func (d *DB) Query(query string, args ...any) (*sql.Rows, error) {
	return d.query(context.Background(), "Query", query, args...)
}

func (d *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return d.query(ctx, "QueryContext", query, args...)
}

func (d *DB) query(ctx context.Context, queryType, query string, args ...any) (rows *sql.Rows, err error) {
	s := d.stats()
	start := time.Now()
	ctx, span, query := s.begin(ctx, queryType, query)

	defer func() { s.end(ctx, span, start, queryType, query, err, args...) }()

	return d.DB.QueryContext(ctx, query, args...)
}

func (d *DB) QueryRow(query string, args ...any) *sql.Row {
	return d.queryRow(context.Background(), "QueryRow", query, args...)
}

func (d *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return d.queryRow(ctx, "QueryRowContext", query, args...)
}

func (d *DB) queryRow(ctx context.Context, queryType, query string, args ...any) *sql.Row {
	s := d.stats()
	start := time.Now()
	ctx, span, query := s.begin(ctx, queryType, query)

	defer s.end(ctx, span, start, queryType, query, nil, args...)

	return d.DB.QueryRowContext(ctx, query, args...)
}

func (d *DB) Exec(query string, args ...any) (sql.Result, error) {
	return d.exec(context.Background(), "Exec", query, args...)
}

func (d *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return d.exec(ctx, "ExecContext", query, args...)
}

func (d *DB) exec(ctx context.Context, queryType, query string, args ...any) (res sql.Result, err error) {
	s := d.stats()
	start := time.Now()
	ctx, span, query := s.begin(ctx, queryType, query)

	defer func() { s.end(ctx, span, start, queryType, query, err, args...) }()

	return d.DB.ExecContext(ctx, query, args...)
}

func (d *DB) Prepare(query string) (*sql.Stmt, error) {
	query = d.dialect.Rebind(query)

	defer d.stats().send(context.Background(), time.Now(), "Prepare", query)

	return d.DB.PrepareContext(context.Background(), query)
}

func (d *DB) Begin() (*Tx, error) {
	return d.BeginTx(context.Background(), nil)
}

func (d *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*Tx, error) {
	tx, err := d.DB.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}

	return &Tx{Tx: tx, stats: d.stats()}, nil
}

func (d *DB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}

	return nil
}

// Tx is a wrapper around sql.Tx with the instrumentation of the DB it came from.
type Tx struct {
	*sql.Tx
	stats *stats
}

func (t *Tx) Query(query string, args ...any) (*sql.Rows, error) {
	return t.query(context.Background(), "TxQuery", query, args...)
}

func (t *Tx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.query(ctx, "TxQueryContext", query, args...)
}

func (t *Tx) query(ctx context.Context, queryType, query string, args ...any) (rows *sql.Rows, err error) {
	start := time.Now()
	ctx, span, query := t.stats.begin(ctx, queryType, query)

	defer func() { t.stats.end(ctx, span, start, queryType, query, err, args...) }()

	return t.Tx.QueryContext(ctx, query, args...)
}

func (t *Tx) QueryRow(query string, args ...any) *sql.Row {
	return t.QueryRowContext(context.Background(), query, args...)
}

func (t *Tx) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	start := time.Now()
	ctx, span, query := t.stats.begin(ctx, "TxQueryRowContext", query)

	defer t.stats.end(ctx, span, start, "TxQueryRowContext", query, nil, args...)

	return t.Tx.QueryRowContext(ctx, query, args...)
}

func (t *Tx) Exec(query string, args ...any) (sql.Result, error) {
	return t.ExecContext(context.Background(), query, args...)
}

func (t *Tx) ExecContext(ctx context.Context, query string, args ...any) (res sql.Result, err error) {
	start := time.Now()
	ctx, span, query := t.stats.begin(ctx, "TxExecContext", query)

	defer func() { t.stats.end(ctx, span, start, "TxExecContext", query, err, args...) }()

	return t.Tx.ExecContext(ctx, query, args...)
}

func (t *Tx) Prepare(query string) (*sql.Stmt, error) {
	query = t.stats.dialect.Rebind(query)

	defer t.stats.send(context.Background(), time.Now(), "TxPrepare", query)

	return t.Tx.PrepareContext(context.Background(), query)
}

func (t *Tx) Commit() error {
	defer t.stats.send(context.Background(), time.Now(), "TxCommit", "COMMIT")
	return t.Tx.Commit()
}

func (t *Tx) Rollback() error {
	defer t.stats.send(context.Background(), time.Now(), "TxRollback", "ROLLBACK")
	return t.Tx.Rollback()
}
