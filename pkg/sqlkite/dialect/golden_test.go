package dialect

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"github.com/sllt/sqlkite/pkg/sqlkite/cond"
	"github.com/sllt/sqlkite/pkg/sqlkite/entity"
	"github.com/sllt/sqlkite/pkg/sqlkite/expr"
	"github.com/sllt/sqlkite/pkg/sqlkite/query"
)

// TestGolden renders the same statements for every product. Run with -update to
// regenerate testdata/golden after an intended change.
func TestGolden(t *testing.T) {
	for _, name := range Names() {
		t.Run(string(name), func(t *testing.T) {
			d, err := New(string(name))
			require.NoError(t, err)

			users, err := entity.NewBuilder("User", "users").
				Key("id").
				Column("name").
				Column("active").
				Column("created_at", entity.ReadOnly(), entity.InsertAs(expr.Raw("CURRENT_TIMESTAMP"))).
				Build(string(name))
			require.NoError(t, err)

			row := entity.Row{"id": 1, "name": "O'Brien", "active": false}
			active := cond.Where("{} = {}", expr.Col("active"), true)

			var buf bytes.Buffer

			write := func(label string, sql string, args []any, err error) {
				require.NoError(t, err, label)
				fmt.Fprintf(&buf, "-- %s\n%s\n-- args: %v\n", label, sql, args)
			}

			sql, args, err := d.Select(query.New(users).Where(active, cond.Gt("id", 10)).Desc("id").Limit(5).Offset(10))
			write("select", sql, args, err)

			sql, args, err = d.Insert(users, row)
			write("insert", sql, args, err)

			sql, args, err = d.Update(query.New(users).Where(cond.KeyEquals(users, row)), row)
			write("update", sql, args, err)

			sql, args, err = d.Delete(query.New(users).Where(cond.In("id", 1, 2)))
			write("delete", sql, args, err)

			sql, args, err = d.Count(query.New(users).Where(active).Limit(3))
			write("count", sql, args, err)

			sql, args, err = d.Select(query.New(users).Where(cond.Where("name = {}", `it's a \path`)))
			write("string escape", sql, args, err)

			g := goldie.New(t,
				goldie.WithFixtureDir("testdata/golden"),
				goldie.WithNameSuffix(".golden"),
			)
			g.Assert(t, string(name), buf.Bytes())
		})
	}
}
