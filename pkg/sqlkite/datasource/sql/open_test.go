package sql

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sllt/sqlkite/pkg/sqlkite/cond"
	"github.com/sllt/sqlkite/pkg/sqlkite/config"
	"github.com/sllt/sqlkite/pkg/sqlkite/entity"
	"github.com/sllt/sqlkite/pkg/sqlkite/expr"
	"github.com/sllt/sqlkite/pkg/sqlkite/logging"
	"github.com/sllt/sqlkite/pkg/sqlkite/query"
)

func TestGetDBConnectionString(t *testing.T) {
	tests := []struct {
		name     string
		config   config.DBConfig
		expected string
		err      error
	}{
		{
			name:     "mysql",
			config:   config.DBConfig{Dialect: "mysql", HostName: "localhost", Port: "3306", User: "root", Password: "pw", Database: "app"},
			expected: "root:pw@tcp(localhost:3306)/app?parseTime=true",
		},
		{
			name:     "postgres",
			config:   config.DBConfig{Dialect: "postgres", HostName: "db", Port: "5432", User: "u", Password: "p", Database: "app", SSLMode: "disable"},
			expected: "host=db port=5432 user=u password=p dbname=app sslmode=disable",
		},
		{
			name:     "sqlite",
			config:   config.DBConfig{Dialect: "sqlite", Database: ":memory:"},
			expected: "file::memory:",
		},
		{
			name:   "unsupported",
			config: config.DBConfig{Dialect: "oracle"},
			err:    errUnsupportedDriver,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dsn, err := getDBConnectionString(&tc.config)
			if tc.err != nil {
				require.ErrorIs(t, err, tc.err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.expected, dsn)
		})
	}
}

func TestNewSQL_InvalidConfig(t *testing.T) {
	_, err := NewSQL(context.Background(), config.NewMockConfig(map[string]string{"DB_DIALECT": "sqlite"}), nil, nil)
	require.ErrorIs(t, err, config.ErrInvalidDBConfig)
}

type account struct {
	ID      int64
	Owner   string
	Active  bool
	Balance float64
}

// TestSQLite_RoundTrip executes the rendered statements against an in-memory database.
func TestSQLite_RoundTrip(t *testing.T) {
	ctx := context.Background()

	var out bytes.Buffer

	db, err := NewSQL(ctx, config.NewMockConfig(map[string]string{
		"DB_DIALECT": "sqlite",
		"DB_NAME":    ":memory:",
	}), logging.NewLoggerWithWriters(logging.DEBUG, &out, &out), nil)
	require.NoError(t, err)

	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec("CREATE TABLE accounts (id INTEGER PRIMARY KEY, owner TEXT NOT NULL, active INTEGER NOT NULL, balance REAL)")
	require.NoError(t, err)

	reg := db.SQLDialect().Entities()
	require.NoError(t, reg.Register(entity.NewBuilder("Account", "accounts").
		Key("id").
		Field("Owner").
		Field("Active").
		Field("Balance")))

	accounts, err := reg.Get("Account")
	require.NoError(t, err)

	s := db.Statements()

	for _, a := range []account{
		{ID: 1, Owner: "O'Brien", Active: true, Balance: 10.5},
		{ID: 2, Owner: "ann", Active: false, Balance: 3},
		{ID: 3, Owner: "bob", Active: true, Balance: 7},
	} {
		_, err = s.Insert(ctx, accounts, &a)
		require.NoError(t, err)
	}

	active := query.New(accounts).Where(cond.Eq("active", true))

	n, err := s.Count(ctx, active)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	updated := &account{ID: 2, Owner: "ann", Active: true, Balance: 4}
	_, err = s.Update(ctx, query.New(accounts).Where(cond.KeyEquals(accounts, updated)), updated)
	require.NoError(t, err)

	_, err = s.Upsert(ctx, accounts, &account{ID: 3, Owner: "robert", Active: true, Balance: 8})
	require.NoError(t, err)

	rows, err := s.Select(ctx, query.New(accounts).
		Project(expr.Col("owner")).
		Where(cond.Eq("active", true), cond.Gt("balance", 5)).
		Asc("id").
		Limit(1).
		Offset(1))
	require.NoError(t, err)

	var owners []string

	for rows.Next() {
		var owner string
		require.NoError(t, rows.Scan(&owner))
		owners = append(owners, owner)
	}

	require.NoError(t, rows.Err())
	require.NoError(t, rows.Close())
	assert.Equal(t, []string{"robert"}, owners)

	tx, err := db.Begin()
	require.NoError(t, err)

	_, err = tx.Statements().Delete(ctx, query.New(accounts).Where(cond.Lt("balance", 5)))
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	n, err = s.Count(ctx, query.New(accounts))
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	assert.Contains(t, out.String(), "INSERT INTO accounts (id, owner, active, balance) VALUES (1, 'O''Brien', 1, 10.5)")
}
