package sql

import (
	"context"
	"database/sql"

	"github.com/sllt/sqlkite/pkg/sqlkite/dialect"
	"github.com/sllt/sqlkite/pkg/sqlkite/entity"
	"github.com/sllt/sqlkite/pkg/sqlkite/query"
)

// Executor captures the statement operations shared by DB and Tx.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var (
	_ Executor = (*DB)(nil)
	_ Executor = (*Tx)(nil)
)

// Statements renders descriptors with a dialect and runs them on an Executor. It is
// transaction aware: pass a *Tx to run inside it.
type Statements struct {
	exec    Executor
	dialect *dialect.Dialect
}

// NewStatements returns Statements running on exec.
func NewStatements(exec Executor, d *dialect.Dialect) *Statements {
	return &Statements{exec: exec, dialect: d}
}

// Statements returns the runner of db bound to its own dialect.
func (d *DB) Statements() *Statements {
	return NewStatements(d, d.dialect)
}

// Statements returns the runner of the transaction.
func (t *Tx) Statements() *Statements {
	return NewStatements(t, t.stats.dialect)
}

// Select runs the SELECT of q. The caller owns the rows.
func (s *Statements) Select(ctx context.Context, q *query.Descriptor) (*sql.Rows, error) {
	text, args, err := s.dialect.Select(q)
	if err != nil {
		return nil, err
	}

	return s.exec.QueryContext(ctx, text, args...)
}

// Count returns the number of rows q selects.
func (s *Statements) Count(ctx context.Context, q *query.Descriptor) (int64, error) {
	text, args, err := s.dialect.Count(q)
	if err != nil {
		return 0, err
	}

	var n int64
	if err := s.exec.QueryRowContext(ctx, text, args...).Scan(&n); err != nil {
		return 0, err
	}

	return n, nil
}

// Insert inserts instance as a row of e.
func (s *Statements) Insert(ctx context.Context, e *entity.Descriptor, instance any) (sql.Result, error) {
	text, args, err := s.dialect.Insert(e, instance)
	if err != nil {
		return nil, err
	}

	return s.exec.ExecContext(ctx, text, args...)
}

// Update writes instance to the rows matched by q.
func (s *Statements) Update(ctx context.Context, q *query.Descriptor, instance any) (sql.Result, error) {
	text, args, err := s.dialect.Update(q, instance)
	if err != nil {
		return nil, err
	}

	return s.exec.ExecContext(ctx, text, args...)
}

// Delete removes the rows matched by q.
func (s *Statements) Delete(ctx context.Context, q *query.Descriptor) (sql.Result, error) {
	text, args, err := s.dialect.Delete(q)
	if err != nil {
		return nil, err
	}

	return s.exec.ExecContext(ctx, text, args...)
}

// Upsert inserts instance or updates the row it conflicts with.
func (s *Statements) Upsert(ctx context.Context, e *entity.Descriptor, instance any, conflict ...string) (sql.Result, error) {
	text, args, err := s.dialect.Upsert(e, instance, conflict...)
	if err != nil {
		return nil, err
	}

	return s.exec.ExecContext(ctx, text, args...)
}
