package sql

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/mock/gomock"

	"github.com/sllt/sqlkite/pkg/sqlkite/cond"
	"github.com/sllt/sqlkite/pkg/sqlkite/config"
	"github.com/sllt/sqlkite/pkg/sqlkite/entity"
	"github.com/sllt/sqlkite/pkg/sqlkite/logging"
	"github.com/sllt/sqlkite/pkg/sqlkite/query"
)

var errDB = errors.New("db error")

type testDB struct {
	db       *DB
	mock     sqlmock.Sqlmock
	metrics  *MockMetrics
	recorder *tracetest.SpanRecorder
	out      *bytes.Buffer
	errOut   *bytes.Buffer
}

func newTestDB(t *testing.T, dialectName string) *testDB {
	t.Helper()

	raw, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)

	t.Cleanup(func() { _ = raw.Close() })

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	metrics := NewMockMetrics(gomock.NewController(t))

	cfg := &config.DBConfig{Dialect: dialectName, HostName: "localhost", Database: "test"}

	db, err := NewDB(raw, cfg, logging.NewLoggerWithWriters(logging.DEBUG, out, errOut), metrics, WithTracer(tp.Tracer("test")))
	require.NoError(t, err)

	return &testDB{db: db, mock: mock, metrics: metrics, recorder: recorder, out: out, errOut: errOut}
}

func (tdb *testDB) expectStats(op string) {
	tdb.metrics.EXPECT().RecordHistogram(gomock.Any(), "app_sql_stats", gomock.Any(),
		"hostname", "localhost", "database", "test", "type", op)
}

func users(t *testing.T) *entity.Descriptor {
	t.Helper()

	e, err := entity.NewBuilder("User", "users").Key("id").Column("name").Build("")
	require.NoError(t, err)

	return e
}

func TestDB_ExecRebindsForPostgres(t *testing.T) {
	tdb := newTestDB(t, "postgres")

	tdb.mock.ExpectExec("UPDATE users SET name = $1 WHERE id = $2").
		WithArgs("ann", 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	tdb.expectStats("UPDATE")

	res, err := tdb.db.ExecContext(context.Background(), "UPDATE users SET name = ? WHERE id = ?", "ann", 1)
	require.NoError(t, err)

	n, _ := res.RowsAffected()
	assert.Equal(t, int64(1), n)
	require.NoError(t, tdb.mock.ExpectationsWereMet())

	spans := tdb.recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "sql-ExecContext", spans[0].Name())

	attrs := map[string]string{}
	for _, kv := range spans[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.AsString()
	}

	assert.Equal(t, "postgres", attrs["db.system"])
	assert.Equal(t, "UPDATE", attrs["db.operation"])
	assert.Equal(t, "UPDATE users SET name = $1 WHERE id = $2", attrs["db.statement"])

	var entry struct {
		Level   string `json:"level"`
		Message Log    `json:"message"`
	}

	require.NoError(t, json.Unmarshal(tdb.out.Bytes(), &entry))
	assert.Equal(t, "DEBUG", entry.Level)
	assert.Equal(t, "ExecContext", entry.Message.Type)
	assert.Equal(t, "UPDATE users SET name = $1 WHERE id = $2", entry.Message.Query)
}

func TestDB_QueryKeepsMarkersForMySQL(t *testing.T) {
	tdb := newTestDB(t, "mysql")

	tdb.mock.ExpectQuery("SELECT name FROM users WHERE id = ?").
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("ann"))
	tdb.expectStats("SELECT")

	rows, err := tdb.db.Query("SELECT name FROM users WHERE id = ?", 7)
	require.NoError(t, err)

	defer rows.Close()

	require.True(t, rows.Next())

	var name string
	require.NoError(t, rows.Scan(&name))
	assert.Equal(t, "ann", name)
	require.NoError(t, rows.Err())
}

func TestDB_QueryError(t *testing.T) {
	tdb := newTestDB(t, "mysql")

	tdb.mock.ExpectQuery("SELECT 1").WillReturnError(errDB)
	tdb.expectStats("SELECT")

	_, err := tdb.db.QueryContext(context.Background(), "SELECT 1")
	require.ErrorIs(t, err, errDB)

	assert.Contains(t, tdb.errOut.String(), "QueryContext failed: db error")

	spans := tdb.recorder.Ended()
	require.Len(t, spans, 1)
	require.NotEmpty(t, spans[0].Events())
	assert.Equal(t, "exception", spans[0].Events()[0].Name)
}

func TestDB_QueryRow(t *testing.T) {
	tdb := newTestDB(t, "postgres")

	tdb.mock.ExpectQuery("SELECT COUNT(*) FROM users WHERE id > $1").
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))
	tdb.expectStats("SELECT")

	var n int
	require.NoError(t, tdb.db.QueryRow("SELECT COUNT(*) FROM users WHERE id > ?", 3).Scan(&n))
	assert.Equal(t, 4, n)
}

func TestTx_CommitAndRollback(t *testing.T) {
	tdb := newTestDB(t, "postgres")

	tdb.mock.ExpectBegin()
	tdb.mock.ExpectExec("DELETE FROM users WHERE id = $1").WithArgs(1).WillReturnResult(sqlmock.NewResult(0, 1))
	tdb.mock.ExpectCommit()
	tdb.expectStats("DELETE")
	tdb.expectStats("COMMIT")

	tx, err := tdb.db.Begin()
	require.NoError(t, err)

	_, err = tx.Exec("DELETE FROM users WHERE id = ?", 1)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	tdb.mock.ExpectBegin()
	tdb.mock.ExpectRollback()
	tdb.expectStats("ROLLBACK")

	tx, err = tdb.db.BeginTx(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	require.NoError(t, tdb.mock.ExpectationsWereMet())
}

func TestDB_BeginError(t *testing.T) {
	tdb := newTestDB(t, "mysql")

	tdb.mock.ExpectBegin().WillReturnError(errDB)

	tx, err := tdb.db.Begin()
	assert.Nil(t, tx)
	require.ErrorIs(t, err, errDB)
}

func TestStatements(t *testing.T) {
	tdb := newTestDB(t, "postgres")
	u := users(t)
	s := tdb.db.Statements()
	ctx := context.Background()

	tdb.mock.ExpectExec("INSERT INTO users (id, name) VALUES (5, 'ann')").WillReturnResult(sqlmock.NewResult(5, 1))
	tdb.mock.ExpectQuery("SELECT COUNT(*) FROM (SELECT id, name FROM users WHERE name = $1) t_").
		WithArgs("ann").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	tdb.mock.ExpectExec("UPDATE users SET name = 'bob' WHERE id = $1").WithArgs(5).WillReturnResult(sqlmock.NewResult(0, 1))
	tdb.mock.ExpectQuery("SELECT id, name FROM users WHERE id IN ($1, $2)").
		WithArgs(5, 6).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(5, "bob"))
	tdb.mock.ExpectExec("DELETE FROM users WHERE id = $1").WithArgs(5).WillReturnResult(sqlmock.NewResult(0, 1))

	tdb.metrics.EXPECT().RecordHistogram(gomock.Any(), "app_sql_stats", gomock.Any(), gomock.Any(), gomock.Any(),
		gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(5)

	_, err := s.Insert(ctx, u, entity.Row{"id": 5, "name": "ann"})
	require.NoError(t, err)

	n, err := s.Count(ctx, query.New(u).Where(cond.Eq("name", "ann")))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	row := entity.Row{"id": 5, "name": "bob"}
	_, err = s.Update(ctx, query.New(u).Where(cond.KeyEquals(u, row)), row)
	require.NoError(t, err)

	rows, err := s.Select(ctx, query.New(u).Where(cond.In("id", 5, 6)))
	require.NoError(t, err)
	require.NoError(t, rows.Close())

	_, err = s.Delete(ctx, query.New(u).Where(cond.Eq("id", 5)))
	require.NoError(t, err)

	require.NoError(t, tdb.mock.ExpectationsWereMet())
}

func TestStatements_RenderErrorSkipsExecution(t *testing.T) {
	tdb := newTestDB(t, "mysql")
	s := NewStatements(tdb.db, tdb.db.SQLDialect())

	_, err := s.Insert(context.Background(), nil, entity.Row{"id": 1})
	require.Error(t, err)

	_, err = s.Delete(context.Background(), query.New(users(t)).Where(cond.Not(cond.Empty())))
	require.ErrorIs(t, err, cond.ErrInvalidCondition)

	_, err = s.Select(context.Background(), nil)
	require.Error(t, err)

	require.NoError(t, tdb.mock.ExpectationsWereMet())
}

func TestLog_PrettyPrint(t *testing.T) {
	var b bytes.Buffer

	l := &Log{Type: "Query", Query: "SELECT  *\n\tFROM users", Duration: 42}
	l.PrettyPrint(&b)

	assert.Contains(t, b.String(), "SELECT * FROM users")
	assert.Contains(t, b.String(), "42")
	assert.True(t, strings.HasSuffix(b.String(), "\n"))
}

func TestGetOperationType(t *testing.T) {
	assert.Equal(t, "SELECT", getOperationType("  select 1"))
	assert.Equal(t, "INSERT", getOperationType("\n\tINSERT INTO t"))
	assert.Empty(t, getOperationType(" "))
}

func TestNewDB_UnknownDialect(t *testing.T) {
	_, err := NewDB(&sql.DB{}, &config.DBConfig{Dialect: "informix"}, nil, nil)
	require.Error(t, err)
}
