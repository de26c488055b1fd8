package cond

import (
	"strings"

	"github.com/sllt/sqlkite/pkg/sqlkite/expr"
)

type compare struct {
	left  expr.Expression
	op    string
	right any
}

// Compare renders "left op ?". The right side is bound unless it is an expression.
func Compare(left expr.Expression, op string, right any) Condition {
	return compare{left: left, op: op, right: right}
}

func (c compare) Render(ctx expr.Context, params *expr.Params) (string, error) {
	left, err := c.left.Render(ctx, params)
	if err != nil {
		return "", err
	}

	right, err := expr.Bind(ctx, params, c.right)
	if err != nil {
		return "", err
	}

	return left + " " + c.op + " " + right, nil
}

func (compare) composite() bool { return false }

// Eq renders "col = ?", or "col IS NULL" for a nil value.
func Eq(col string, v any) Condition {
	if v == nil {
		return IsNull(col)
	}

	return Compare(expr.Col(col), "=", v)
}

// Ne renders "col != ?", or "col IS NOT NULL" for a nil value.
func Ne(col string, v any) Condition {
	if v == nil {
		return IsNotNull(col)
	}

	return Compare(expr.Col(col), "!=", v)
}

func Lt(col string, v any) Condition  { return Compare(expr.Col(col), "<", v) }
func Lte(col string, v any) Condition { return Compare(expr.Col(col), "<=", v) }
func Gt(col string, v any) Condition  { return Compare(expr.Col(col), ">", v) }
func Gte(col string, v any) Condition { return Compare(expr.Col(col), ">=", v) }

func Like(col string, pattern any) Condition    { return Compare(expr.Col(col), "LIKE", pattern) }
func NotLike(col string, pattern any) Condition { return Compare(expr.Col(col), "NOT LIKE", pattern) }

type membership struct {
	col    expr.Expression
	op     string
	values []any
}

// In renders "col IN (?, ?)". An empty list can match nothing and renders "1=0".
func In(col string, values ...any) Condition {
	if len(values) == 0 {
		return Expr(expr.Raw("1=0"))
	}

	return membership{col: expr.Col(col), op: "IN", values: values}
}

// NotIn renders "col NOT IN (?, ?)". An empty list excludes nothing and yields All.
func NotIn(col string, values ...any) Condition {
	if len(values) == 0 {
		return All()
	}

	return membership{col: expr.Col(col), op: "NOT IN", values: values}
}

func (m membership) Render(ctx expr.Context, params *expr.Params) (string, error) {
	left, err := m.col.Render(ctx, params)
	if err != nil {
		return "", err
	}

	markers := make([]string, 0, len(m.values))

	for _, v := range m.values {
		s, err := expr.Bind(ctx, params, v)
		if err != nil {
			return "", err
		}

		markers = append(markers, s)
	}

	return left + " " + m.op + " (" + strings.Join(markers, ", ") + ")", nil
}

func (membership) composite() bool { return false }

type between struct {
	col    expr.Expression
	op     string
	lo, hi any
}

// Between renders "col BETWEEN ? AND ?".
func Between(col string, lo, hi any) Condition {
	return between{col: expr.Col(col), op: "BETWEEN", lo: lo, hi: hi}
}

// NotBetween renders "col NOT BETWEEN ? AND ?".
func NotBetween(col string, lo, hi any) Condition {
	return between{col: expr.Col(col), op: "NOT BETWEEN", lo: lo, hi: hi}
}

func (b between) Render(ctx expr.Context, params *expr.Params) (string, error) {
	left, err := b.col.Render(ctx, params)
	if err != nil {
		return "", err
	}

	lo, err := expr.Bind(ctx, params, b.lo)
	if err != nil {
		return "", err
	}

	hi, err := expr.Bind(ctx, params, b.hi)
	if err != nil {
		return "", err
	}

	return left + " " + b.op + " " + lo + " AND " + hi, nil
}

func (between) composite() bool { return false }

// IsNull renders "col IS NULL".
func IsNull(col string) Condition {
	return Expr(expr.T("{} IS NULL", expr.Col(col)))
}

// IsNotNull renders "col IS NOT NULL".
func IsNotNull(col string) Condition {
	return Expr(expr.T("{} IS NOT NULL", expr.Col(col)))
}

// Exists renders "EXISTS (<sub-select>)".
func Exists(q expr.Query) Condition {
	return Subquery(expr.Raw("EXISTS"), q)
}

// NotExists renders "NOT EXISTS (<sub-select>)".
func NotExists(q expr.Query) Condition {
	return Subquery(expr.Raw("NOT EXISTS"), q)
}

type rawSQL struct {
	text string
	args []any
}

// Raw embeds SQL text with its own ? markers and the values bound to them.
func Raw(text string, args ...any) Condition {
	return rawSQL{text: text, args: args}
}

func (r rawSQL) Render(_ expr.Context, params *expr.Params) (string, error) {
	params.Add(r.args...)
	return r.text, nil
}

func (r rawSQL) composite() bool { return hasConnective(r.text) }

func hasConnective(text string) bool {
	upper := strings.ToUpper(text)
	return strings.Contains(upper, " OR ") || strings.Contains(upper, " AND ")
}
