// Package expr contains the expression nodes embedded in statements: templates with
// {} placeholders, column references, raw SQL and function calls.
//
// Every node renders against a Context, which supplies table aliases and literal
// synthesis, and appends bound values to a Params sink in the order their markers
// appear in the rendered text.
package expr

import (
	"errors"
	"reflect"
	"strings"

	"github.com/sllt/sqlkite/pkg/sqlkite/literal"
)

// MaxDepth bounds the nesting of sub-selects inside one statement.
const MaxDepth = 32

// ErrNestingTooDeep is returned when sub-selects nest deeper than MaxDepth.
var ErrNestingTooDeep = errors.New("[expr] sub-select nesting too deep")

// Expression is a node that renders to SQL text.
type Expression interface {
	Render(ctx Context, params *Params) (string, error)
}

// Query is a nested statement a Context can render as a sub-select.
type Query interface {
	EntityName() string
}

// Context is the rendering environment of one statement.
type Context interface {
	// Alias is the alias unqualified columns are qualified with, or "".
	Alias() string
	// AliasOf returns the alias bound to a table in the current statement.
	AliasOf(table string) (string, bool)
	// Literal synthesizes v, optionally converting it to dst first.
	Literal(v any, dst reflect.Type) (literal.Literal, error)
	// Convert converts v to dst with the dialect's conversion registry.
	Convert(v any, dst reflect.Type) (any, error)
	// Subselect renders q as a nested sub-select, appending its values to params.
	Subselect(q Query, params *Params) (string, error)
}

// Params collects bound values in marker order.
type Params struct {
	values []any
}

// Add appends v.
func (p *Params) Add(v ...any) {
	p.values = append(p.values, v...)
}

// Values returns the collected values. The result is never nil.
func (p *Params) Values() []any {
	if p.values == nil {
		return []any{}
	}

	return p.values
}

// Len returns how many values have been collected.
func (p *Params) Len() int {
	return len(p.values)
}

// Bind renders v as a parameter marker and records it. Expressions are rendered
// instead of bound.
func Bind(ctx Context, params *Params, v any) (string, error) {
	if e, ok := v.(Expression); ok {
		return e.Render(ctx, params)
	}

	params.Add(v)

	return "?", nil
}

// Emit renders v through the literal synthesizer: inline text, or a marker with the
// value recorded. Expressions are rendered as themselves.
func Emit(ctx Context, params *Params, v any, dst reflect.Type) (string, error) {
	if e, ok := v.(Expression); ok {
		return e.Render(ctx, params)
	}

	lit, err := ctx.Literal(v, dst)
	if err != nil {
		return "", err
	}

	if lit.Param {
		params.Add(lit.Value)
	}

	return lit.Text, nil
}

// Raw is SQL text emitted verbatim.
type Raw string

func (r Raw) Render(Context, *Params) (string, error) {
	return string(r), nil
}

// Column references a column, qualified with an alias when the statement has one.
type Column struct {
	Name string
	// Table selects the alias bound to that table. Alias wins when both are set.
	Table string
	Alias string
}

// Col returns a reference to name in the statement's root table. A qualified
// "alias.name" keeps its alias.
func Col(name string) Column {
	if alias, col, ok := strings.Cut(name, "."); ok && alias != "" && col != "" && !strings.ContainsAny(name, " ()") {
		return Column{Name: col, Alias: alias}
	}

	return Column{Name: name}
}

// Of qualifies the column with the alias bound to table.
func (c Column) Of(table string) Column {
	c.Table = table
	return c
}

// As qualifies the column with an explicit alias.
func (c Column) As(alias string) Column {
	c.Alias = alias
	return c
}

func (c Column) Render(ctx Context, _ *Params) (string, error) {
	alias := c.Alias

	if alias == "" && c.Table != "" {
		alias, _ = ctx.AliasOf(c.Table)
	}

	if alias == "" && c.Table == "" {
		alias = ctx.Alias()
	}

	if alias == "" {
		return c.Name, nil
	}

	return alias + "." + c.Name, nil
}

// Value forces v through the literal synthesizer.
type Value struct {
	V any
}

func (v Value) Render(ctx Context, params *Params) (string, error) {
	return Emit(ctx, params, v.V, nil)
}

// Param forces v to be bound as a parameter.
type Param struct {
	V any
}

func (p Param) Render(_ Context, params *Params) (string, error) {
	params.Add(p.V)
	return "?", nil
}

type function struct {
	name string
	args []Expression
}

// Func renders name(arg1, arg2, ...).
func Func(name string, args ...Expression) Expression {
	return function{name: name, args: args}
}

func (f function) Render(ctx Context, params *Params) (string, error) {
	parts := make([]string, 0, len(f.args))

	for _, arg := range f.args {
		s, err := arg.Render(ctx, params)
		if err != nil {
			return "", err
		}

		parts = append(parts, s)
	}

	return f.name + "(" + strings.Join(parts, ", ") + ")", nil
}

// Min renders MIN(e).
func Min(e Expression) Expression { return Func("MIN", e) }

// Max renders MAX(e).
func Max(e Expression) Expression { return Func("MAX", e) }

// Count renders COUNT(e).
func Count(e Expression) Expression { return Func("COUNT", e) }

// Sum renders SUM(e).
func Sum(e Expression) Expression { return Func("SUM", e) }

// Avg renders AVG(e).
func Avg(e Expression) Expression { return Func("AVG", e) }
