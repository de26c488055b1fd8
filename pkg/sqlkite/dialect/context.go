package dialect

import (
	"fmt"
	"reflect"

	"github.com/sllt/sqlkite/pkg/sqlkite/expr"
	"github.com/sllt/sqlkite/pkg/sqlkite/literal"
	"github.com/sllt/sqlkite/pkg/sqlkite/query"
)

// renderContext is the expr.Context of one statement. Nested sub-selects get a child
// context whose alias lookups fall back to the enclosing statement.
type renderContext struct {
	d       *Dialect
	alias   string
	aliases map[string]string
	parent  *renderContext
	depth   int
}

func (d *Dialect) newContext(s query.State, parent *renderContext) *renderContext {
	c := &renderContext{d: d, alias: s.Alias, parent: parent, aliases: make(map[string]string, len(s.Joins)+1)}

	if parent != nil {
		c.depth = parent.depth + 1
	}

	if s.Entity != nil && s.Alias != "" {
		c.aliases[s.Entity.Table()] = s.Alias
	}

	for _, j := range s.Joins {
		if j.Entity == nil {
			continue
		}

		if _, taken := c.aliases[j.Entity.Table()]; !taken {
			c.aliases[j.Entity.Table()] = j.Alias
		}
	}

	return c
}

func (c *renderContext) Alias() string { return c.alias }

func (c *renderContext) AliasOf(table string) (string, bool) {
	for ctx := c; ctx != nil; ctx = ctx.parent {
		if a, ok := ctx.aliases[table]; ok {
			return a, true
		}
	}

	return "", false
}

func (c *renderContext) Literal(v any, dst reflect.Type) (literal.Literal, error) {
	return c.d.literals.ToSQLAs(v, dst)
}

func (c *renderContext) Convert(v any, dst reflect.Type) (any, error) {
	return c.d.literals.Registry().Convert(v, dst)
}

func (c *renderContext) Subselect(q expr.Query, params *expr.Params) (string, error) {
	qd, ok := q.(*query.Descriptor)
	if !ok {
		return "", fmt.Errorf("%w: got %T", errUnsupportedQuery, q)
	}

	if c.depth+1 > expr.MaxDepth {
		return "", fmt.Errorf("%w: %d levels", expr.ErrNestingTooDeep, expr.MaxDepth)
	}

	return c.d.subselect(qd, params, c)
}
