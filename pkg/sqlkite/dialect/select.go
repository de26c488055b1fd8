package dialect

import (
	"errors"
	"strconv"
	"strings"

	"github.com/sllt/sqlkite/pkg/sqlkite/cond"
	"github.com/sllt/sqlkite/pkg/sqlkite/expr"
	"github.com/sllt/sqlkite/pkg/sqlkite/query"
)

var errNoWaitSkipLocked = errors.New("[dialect] NOWAIT and SKIP LOCKED cannot be combined")

// Select renders q as an outermost SELECT:
//
//	SELECT [DISTINCT] cols FROM table [alias] [joins] [WHERE] [GROUP BY] [HAVING]
//	[ORDER BY] [pagination] [lock]
func (d *Dialect) Select(q *query.Descriptor) (string, []any, error) {
	if q == nil {
		return "", nil, errNilQuery
	}

	params := &expr.Params{}
	s := q.State()

	sql, err := d.selectBody(q, s, d.newContext(s, nil), params, true)
	if err != nil {
		return "", nil, err
	}

	return sql, params.Values(), nil
}

// Subselect renders q as a nested SELECT: ORDER BY, pagination and locking are
// omitted.
func (d *Dialect) Subselect(q *query.Descriptor) (string, []any, error) {
	if q == nil {
		return "", nil, errNilQuery
	}

	params := &expr.Params{}
	s := q.State()

	sql, err := d.selectBody(q, s, d.newContext(s, nil), params, false)
	if err != nil {
		return "", nil, err
	}

	return sql, params.Values(), nil
}

// Count renders SELECT COUNT(*) over the sub-select of q.
func (d *Dialect) Count(q *query.Descriptor) (string, []any, error) {
	sql, args, err := d.Subselect(q)
	if err != nil {
		return "", nil, err
	}

	return "SELECT COUNT(*) FROM (" + sql + ") t_", args, nil
}

func (d *Dialect) subselect(q *query.Descriptor, params *expr.Params, parent *renderContext) (string, error) {
	s := q.State()
	return d.selectBody(q, s, d.newContext(s, parent), params, false)
}

func (d *Dialect) selectBody(q *query.Descriptor, s query.State, ctx *renderContext, params *expr.Params, outer bool) (string, error) {
	if err := q.Validate(); err != nil {
		return "", err
	}

	var sb strings.Builder

	sb.WriteString("SELECT")

	if s.Distinct {
		sb.WriteString(" DISTINCT")
	}

	if outer && d.profile.page == pageTop && s.Limit != nil && s.Offset == nil {
		sb.WriteString(" TOP " + strconv.Itoa(*s.Limit))
	}

	cols, err := q.SelectColumns(ctx, params)
	if err != nil {
		return "", err
	}

	sb.WriteString(" " + strings.Join(cols, ", "))
	sb.WriteString(" FROM " + table(s.Entity.Table(), s.Alias))

	for _, j := range s.Joins {
		on, err := j.On.Render(ctx, params)
		if err != nil {
			return "", err
		}

		if on == "" {
			on = "1=1"
		}

		sb.WriteString(" " + string(j.Kind) + " " + table(j.Entity.Table(), j.Alias) + " ON " + on)
	}

	if err := writeCondition(&sb, " WHERE ", s.Where, ctx, params); err != nil {
		return "", err
	}

	if len(s.GroupBy) > 0 {
		list, err := renderList(s.GroupBy, ctx, params)
		if err != nil {
			return "", err
		}

		sb.WriteString(" GROUP BY " + list)
	}

	if err := writeCondition(&sb, " HAVING ", s.Having, ctx, params); err != nil {
		return "", err
	}

	if !outer {
		return sb.String(), nil
	}

	if len(s.OrderBy) > 0 {
		terms := make([]string, 0, len(s.OrderBy))

		for _, o := range s.OrderBy {
			t, err := o.Expr.Render(ctx, params)
			if err != nil {
				return "", err
			}

			if o.Direction != "" {
				t += " " + string(o.Direction)
			}

			terms = append(terms, t)
		}

		sb.WriteString(" ORDER BY " + strings.Join(terms, ", "))
	}

	sql, wrapped := d.paginate(sb.String(), s)

	lock, err := d.lockClause(s, wrapped)
	if err != nil {
		return "", err
	}

	return sql + lock, nil
}

// paginate appends or wraps the pagination of s. It reports whether the statement was
// wrapped in an outer SELECT.
func (d *Dialect) paginate(sql string, s query.State) (string, bool) {
	if s.Limit == nil && s.Offset == nil {
		return sql, false
	}

	switch d.profile.page {
	case pageRowNum:
		return rowNum(sql, s.Limit, s.Offset), true
	case pageOffsetFetch, pageFetchFirst:
		if s.Offset != nil {
			sql += " OFFSET " + strconv.Itoa(*s.Offset) + " ROWS"
		}

		if s.Limit != nil {
			if d.profile.page == pageFetchFirst {
				sql += " FETCH FIRST " + strconv.Itoa(*s.Limit) + " ROWS ONLY"
			} else {
				sql += " FETCH NEXT " + strconv.Itoa(*s.Limit) + " ROWS ONLY"
			}
		}

		return sql, false
	case pageTop:
		if s.Offset == nil {
			return sql, false
		}

		if len(s.OrderBy) == 0 {
			sql += " ORDER BY (SELECT NULL)"
		}

		sql += " OFFSET " + strconv.Itoa(*s.Offset) + " ROWS"

		if s.Limit != nil {
			sql += " FETCH NEXT " + strconv.Itoa(*s.Limit) + " ROWS ONLY"
		}

		return sql, false
	}

	switch {
	case s.Limit != nil && s.Offset != nil:
		return sql + " LIMIT " + strconv.Itoa(*s.Limit) + " OFFSET " + strconv.Itoa(*s.Offset), false
	case s.Limit != nil:
		return sql + " LIMIT " + strconv.Itoa(*s.Limit), false
	case d.profile.unboundedLimit != "":
		return sql + " LIMIT " + d.profile.unboundedLimit + " OFFSET " + strconv.Itoa(*s.Offset), false
	default:
		return sql + " OFFSET " + strconv.Itoa(*s.Offset), false
	}
}

func rowNum(sql string, limit, offset *int) string {
	if offset == nil {
		return "SELECT * FROM (" + sql + ") WHERE ROWNUM <= " + strconv.Itoa(*limit)
	}

	inner := "SELECT t_.*, ROWNUM rn_ FROM (" + sql + ") t_"
	if limit != nil {
		inner += " WHERE ROWNUM <= " + strconv.Itoa(*offset+*limit)
	}

	return "SELECT * FROM (" + inner + ") WHERE rn_ > " + strconv.Itoa(*offset)
}

func (d *Dialect) lockClause(s query.State, wrapped bool) (string, error) {
	if s.Lock == query.LockNone {
		return "", nil
	}

	if wrapped {
		return d.unsupported(s.Lock.String() + " with ROWNUM pagination")
	}

	if s.NoWait && s.SkipLocked {
		return "", errNoWaitSkipLocked
	}

	var clause string

	switch s.Lock {
	case query.LockUpdate:
		if !d.profile.forUpdate {
			return d.unsupported("FOR UPDATE")
		}

		clause = " FOR UPDATE"
	case query.LockShare:
		if d.profile.share == "" {
			return d.unsupported("FOR SHARE")
		}

		clause = " " + d.profile.share
	}

	modifiers := s.Lock == query.LockUpdate || d.profile.shareModifiers

	if s.NoWait {
		if !d.profile.noWait || !modifiers {
			marker, err := d.unsupported(strings.TrimSpace(clause) + " NOWAIT")
			if err != nil {
				return "", err
			}

			return clause + marker, nil
		}

		clause += " NOWAIT"
	}

	if s.SkipLocked {
		if !d.profile.skipLocked || !modifiers {
			marker, err := d.unsupported(strings.TrimSpace(clause) + " SKIP LOCKED")
			if err != nil {
				return "", err
			}

			return clause + marker, nil
		}

		clause += " SKIP LOCKED"
	}

	return clause, nil
}

func writeCondition(sb *strings.Builder, keyword string, c cond.Condition, ctx *renderContext, params *expr.Params) error {
	if cond.IsEmpty(c) || cond.IsAll(c) {
		return nil
	}

	text, err := c.Render(ctx, params)
	if err != nil {
		return err
	}

	if text != "" {
		sb.WriteString(keyword + text)
	}

	return nil
}

func renderList(es []expr.Expression, ctx *renderContext, params *expr.Params) (string, error) {
	parts := make([]string, 0, len(es))

	for _, e := range es {
		s, err := e.Render(ctx, params)
		if err != nil {
			return "", err
		}

		parts = append(parts, s)
	}

	return strings.Join(parts, ", "), nil
}

func table(name, alias string) string {
	if alias == "" {
		return name
	}

	return name + " " + alias
}
