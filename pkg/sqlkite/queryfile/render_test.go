package queryfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sllt/sqlkite/pkg/sqlkite/dialect"
	"github.com/sllt/sqlkite/pkg/sqlkite/entity"
)

const usersFile = `
dialect: postgres
entities:
  - name: User
    table: users
    columns:
      - {name: id, key: true}
      - {name: name}
      - {name: version, update: version + 1}
      - name: created_at
        readonly: true
        insert: CURRENT_TIMESTAMP
        overrides:
          oracle: {insert: SYSTIMESTAMP}
  - name: Order
    table: orders
    columns:
      - {name: id, key: true}
      - {name: user_id}
      - {name: total}
queries:
  - name: recent
    entity: User
    columns: [id, name]
    where:
      "id >": 10
      _or:
        - {name: ann}
        - {name: bob}
    order_by: [-id]
    limit: 5
  - name: big_spenders
    entity: User
    alias: u
    columns: [u.id, "SUM(o.total) AS spent"]
    joins:
      - {kind: left, entity: Order, alias: o, on: o.user_id = u.id}
    where: {"o.total >": 0}
    group_by: [u.id]
  - name: totals
    entity: Order
    columns: [user_id, "SUM(total) AS spent"]
    group_by: [user_id]
    having: {"SUM(total) >": 100}
  - name: add
    kind: insert
    entity: User
    values: {id: 1, name: "O'Brien", version: 1}
  - name: rename
    kind: update
    entity: User
    values: {name: bob}
    where: {id: 1}
  - name: purge
    kind: delete
    entity: User
    where: {"id in": [1, 2]}
  - name: total
    kind: count
    entity: User
    where: {name: {raw: "'ann'"}}
  - name: save
    kind: upsert
    entity: User
    values: {id: 1, name: ann, version: 2}
  - name: locked
    entity: Order
    columns: [id]
    where: {"user_id": null}
    lock: update
    skip_locked: true
`

func TestRender(t *testing.T) {
	f, err := Parse([]byte(usersFile))
	require.NoError(t, err)
	assert.Equal(t, "postgres", f.Dialect)

	d, err := dialect.New(f.Dialect)
	require.NoError(t, err)

	statements, err := Render(f, d)
	require.NoError(t, err)

	expected := []Statement{
		{Name: "recent", Kind: KindSelect, SQL: "SELECT id, name FROM users WHERE (name = ? OR name = ?) AND id > ? ORDER BY id DESC LIMIT 5",
			Args: []any{"ann", "bob", 10}},
		{Name: "big_spenders", Kind: KindSelect, SQL: "SELECT u.id, SUM(o.total) AS spent FROM users u LEFT JOIN orders o ON o.user_id = u.id" +
			" WHERE o.total > ? GROUP BY u.id", Args: []any{0}},
		{Name: "totals", Kind: KindSelect, SQL: "SELECT user_id, SUM(total) AS spent FROM orders GROUP BY user_id HAVING SUM(total) > ?",
			Args: []any{100}},
		{Name: "add", Kind: KindInsert, SQL: "INSERT INTO users (id, name, version, created_at) VALUES (1, 'O''Brien', 1, CURRENT_TIMESTAMP)",
			Args: []any{}},
		{Name: "rename", Kind: KindUpdate, SQL: "UPDATE users SET name = 'bob', version = version + 1 WHERE id = ?", Args: []any{1}},
		{Name: "purge", Kind: KindDelete, SQL: "DELETE FROM users WHERE id IN (?, ?)", Args: []any{1, 2}},
		{Name: "total", Kind: KindCount, SQL: "SELECT COUNT(*) FROM (SELECT id, name, version, created_at FROM users WHERE name = 'ann') t_",
			Args: []any{}},
		{Name: "save", Kind: KindUpsert, SQL: "INSERT INTO users (id, name, version, created_at) VALUES (1, 'ann', 2, CURRENT_TIMESTAMP)" +
			" ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, version = EXCLUDED.version", Args: []any{}},
		{Name: "locked", Kind: KindSelect, SQL: "SELECT id FROM orders WHERE user_id IS NULL FOR UPDATE SKIP LOCKED", Args: []any{}},
	}

	assert.Equal(t, expected, statements)
}

func TestRender_DialectOverrides(t *testing.T) {
	f, err := Parse([]byte(usersFile))
	require.NoError(t, err)

	f.Queries = f.Queries[3:4]

	d, err := dialect.New("oracle")
	require.NoError(t, err)

	statements, err := Render(f, d)
	require.NoError(t, err)
	require.Len(t, statements, 1)
	assert.Equal(t, "INSERT INTO users (id, name, version, created_at) VALUES (1, 'O''Brien', 1, SYSTIMESTAMP)", statements[0].SQL)
}

func TestRender_Errors(t *testing.T) {
	const entities = `
entities:
  - name: User
    table: users
    columns: [{name: id, key: true}, {name: name}]
`

	tests := []struct {
		name    string
		queries string
		err     error
	}{
		{name: "unknown kind", queries: "queries: [{name: q, kind: merge, entity: User}]", err: errUnknownKind},
		{name: "unknown entity", queries: "queries: [{name: q, entity: Nobody}]", err: entity.ErrUnknownEntity},
		{name: "unknown lock", queries: "queries: [{name: q, entity: User, lock: exclusive}]", err: errUnknownLock},
		{name: "unknown join", queries: "queries: [{name: q, entity: User, alias: a, joins: [{kind: full, entity: User, alias: b}]}]",
			err: errUnknownJoinKind},
		{name: "or branches", queries: "queries: [{name: q, entity: User, where: {_or: [1, 2]}}]", err: errOrBranchType},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f, err := Parse([]byte(entities + tc.queries))
			require.NoError(t, err)

			_, err = Render(f, mustDialect(t))
			require.ErrorIs(t, err, tc.err)
			assert.Contains(t, err.Error(), "query q")
		})
	}
}

func mustDialect(t *testing.T) *dialect.Dialect {
	t.Helper()

	d, err := dialect.New("standard")
	require.NoError(t, err)

	return d
}

func TestParse(t *testing.T) {
	f, err := Parse(nil)
	require.NoError(t, err)
	assert.Empty(t, f.Queries)

	_, err = Parse([]byte("queries: [{name: q, entity: User, colour: red}]"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode query file")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queries.yaml")
	require.NoError(t, os.WriteFile(path, []byte(usersFile), 0o600))

	f, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, f.Queries, 9)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
