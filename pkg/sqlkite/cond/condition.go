// Package cond holds the predicate tree rendered into WHERE, HAVING and ON clauses.
//
// Conditions simplify as they are composed: Empty is the identity of And and Or, And
// drops All children and Or collapses to All when any child is All, so a finished tree
// never renders a redundant tautology.
package cond

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sllt/sqlkite/pkg/sqlkite/entity"
	"github.com/sllt/sqlkite/pkg/sqlkite/expr"
)

var (
	// ErrInvalidCondition matches every *InvalidConditionError.
	ErrInvalidCondition = errors.New("[cond] invalid condition")
	// ErrNoKeyColumns matches every *NoKeyColumnsError.
	ErrNoKeyColumns = errors.New("[cond] entity has no key columns")

	errNilEntity = errors.New("[cond] entity descriptor is nil")
)

// InvalidConditionError reports a tree that has no meaningful rendering.
type InvalidConditionError struct {
	Reason string
}

func (e *InvalidConditionError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidCondition, e.Reason)
}

func (*InvalidConditionError) Is(target error) bool { return target == ErrInvalidCondition }

// NoKeyColumnsError reports a key condition on an entity shape without key columns.
type NoKeyColumnsError struct {
	Entity string
}

func (e *NoKeyColumnsError) Error() string {
	return fmt.Sprintf("%s: %s", ErrNoKeyColumns, e.Entity)
}

func (*NoKeyColumnsError) Is(target error) bool { return target == ErrNoKeyColumns }

// Condition is a node of the predicate tree.
type Condition interface {
	expr.Expression
	// composite reports whether the rendering needs parentheses inside a junction.
	composite() bool
}

type empty struct{}

// Empty returns the condition that renders to nothing.
func Empty() Condition { return empty{} }

func (empty) Render(expr.Context, *expr.Params) (string, error) { return "", nil }
func (empty) composite() bool                                  { return false }

type all struct{}

// All returns the tautology. Assemblers never emit it in a WHERE clause.
func All() Condition { return all{} }

func (all) Render(expr.Context, *expr.Params) (string, error) { return "1=1", nil }
func (all) composite() bool                                  { return false }

// IsEmpty reports whether c is nil or Empty.
func IsEmpty(c Condition) bool {
	if c == nil {
		return true
	}

	_, ok := c.(empty)

	return ok
}

// IsAll reports whether c is the tautology.
func IsAll(c Condition) bool {
	_, ok := c.(all)
	return ok
}

type leaf struct {
	e expr.Expression
}

// Expr lifts an expression into a condition.
func Expr(e expr.Expression) Condition {
	if c, ok := e.(Condition); ok {
		return c
	}

	return leaf{e: e}
}

// Where builds a condition from a template: Where("age > {}", 18).
func Where(text string, args ...any) Condition {
	return leaf{e: expr.T(text, args...)}
}

func (l leaf) Render(ctx expr.Context, params *expr.Params) (string, error) {
	return l.e.Render(ctx, params)
}

// composite reports whether the template or raw text holds a top-level AND or OR, so
// a junction parenthesizes it the same way as Raw.
func (l leaf) composite() bool {
	switch e := l.e.(type) {
	case expr.Template:
		return hasConnective(e.Text())
	case expr.Raw:
		return hasConnective(string(e))
	default:
		return false
	}
}

type junction struct {
	op       string
	children []Condition
}

// And combines cs with AND. Empty children are elided and All children dropped; with
// nothing left the result is All, or Empty when every child was Empty.
func And(cs ...Condition) Condition {
	kept := make([]Condition, 0, len(cs))
	onlyEmpty := len(cs) > 0

	for _, c := range cs {
		if IsEmpty(c) {
			continue
		}

		onlyEmpty = false

		if IsAll(c) {
			continue
		}

		if j, ok := c.(junction); ok && j.op == "AND" {
			kept = append(kept, j.children...)
			continue
		}

		kept = append(kept, c)
	}

	switch {
	case len(kept) == 0 && onlyEmpty:
		return Empty()
	case len(kept) == 0:
		return All()
	case len(kept) == 1:
		return kept[0]
	}

	return junction{op: "AND", children: kept}
}

// Or combines cs with OR. Empty children are elided and any All child makes the
// result All; with nothing left the result is Empty.
func Or(cs ...Condition) Condition {
	kept := make([]Condition, 0, len(cs))

	for _, c := range cs {
		if IsEmpty(c) {
			continue
		}

		if IsAll(c) {
			return All()
		}

		if j, ok := c.(junction); ok && j.op == "OR" {
			kept = append(kept, j.children...)
			continue
		}

		kept = append(kept, c)
	}

	switch len(kept) {
	case 0:
		return Empty()
	case 1:
		return kept[0]
	}

	return junction{op: "OR", children: kept}
}

func (j junction) Render(ctx expr.Context, params *expr.Params) (string, error) {
	parts := make([]string, 0, len(j.children))

	for _, c := range j.children {
		s, err := c.Render(ctx, params)
		if err != nil {
			return "", err
		}

		if s == "" {
			continue
		}

		if c.composite() {
			s = "(" + s + ")"
		}

		parts = append(parts, s)
	}

	return strings.Join(parts, " "+j.op+" "), nil
}

func (junction) composite() bool { return true }

type not struct {
	inner Condition
}

// Not negates c. Negating Empty fails when rendered.
func Not(c Condition) Condition {
	return not{inner: c}
}

func (n not) Render(ctx expr.Context, params *expr.Params) (string, error) {
	if IsEmpty(n.inner) {
		return "", &InvalidConditionError{Reason: "cannot negate an empty condition"}
	}

	s, err := n.inner.Render(ctx, params)
	if err != nil {
		return "", err
	}

	return "NOT (" + s + ")", nil
}

func (not) composite() bool { return false }

type keyEquals struct {
	entity   *entity.Descriptor
	instance any
}

// KeyEquals matches the row whose key columns equal those of instance.
func KeyEquals(e *entity.Descriptor, instance any) Condition {
	return keyEquals{entity: e, instance: instance}
}

func (k keyEquals) Render(ctx expr.Context, params *expr.Params) (string, error) {
	if k.entity == nil {
		return "", errNilEntity
	}

	keys := k.entity.Keys()
	if len(keys) == 0 {
		return "", &NoKeyColumnsError{Entity: k.entity.Name()}
	}

	parts := make([]string, 0, len(keys))

	for _, key := range keys {
		v, err := k.entity.Value(k.instance, key)
		if err != nil {
			return "", err
		}

		if key.Dest != nil && v != nil {
			if v, err = ctx.Convert(v, key.Dest); err != nil {
				return "", fmt.Errorf("%s.%s: %w", k.entity.Name(), key.Name, err)
			}
		}

		col, err := expr.Col(key.Name).Render(ctx, params)
		if err != nil {
			return "", err
		}

		params.Add(v)
		parts = append(parts, col+" = ?")
	}

	return strings.Join(parts, " AND "), nil
}

func (k keyEquals) composite() bool {
	return k.entity != nil && len(k.entity.Keys()) > 1
}

type subquery struct {
	e expr.Expression
	q expr.Query
}

// Subquery renders e followed by the parenthesized sub-select of q, e.g.
// Subquery(expr.T("{} IN", expr.Col("dept_id")), q).
func Subquery(e expr.Expression, q expr.Query) Condition {
	return subquery{e: e, q: q}
}

func (s subquery) Render(ctx expr.Context, params *expr.Params) (string, error) {
	head := ""

	if s.e != nil {
		var err error
		if head, err = s.e.Render(ctx, params); err != nil {
			return "", err
		}
	}

	nested, err := ctx.Subselect(s.q, params)
	if err != nil {
		return "", err
	}

	if head == "" {
		return "(" + nested + ")", nil
	}

	return head + " (" + nested + ")", nil
}

func (subquery) composite() bool { return false }
