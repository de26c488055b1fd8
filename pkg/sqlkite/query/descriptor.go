// Package query holds the builder state of one statement: the target entity, joins,
// predicates, grouping, ordering, pagination and locking. A Descriptor is mutated by
// a fluent chain of calls and then handed to a dialect for rendering. It is not safe
// for concurrent use.
package query

import (
	"errors"
	"fmt"

	"github.com/sllt/sqlkite/pkg/sqlkite/cond"
	"github.com/sllt/sqlkite/pkg/sqlkite/entity"
	"github.com/sllt/sqlkite/pkg/sqlkite/expr"
)

var (
	// ErrAliasRequired is returned when a statement with joins has a participant
	// without an alias.
	ErrAliasRequired = errors.New("[query] every table needs an alias when joins are present")
	// ErrDuplicateAlias is returned when two participants share an alias.
	ErrDuplicateAlias = errors.New("[query] duplicate table alias")

	errNilEntity = errors.New("[query] entity descriptor is nil")
)

// JoinKind selects the join operator.
type JoinKind string

const (
	JoinInner JoinKind = "INNER JOIN"
	JoinLeft  JoinKind = "LEFT JOIN"
	JoinRight JoinKind = "RIGHT JOIN"
)

// Join is one joined table.
type Join struct {
	Kind   JoinKind
	Entity *entity.Descriptor
	Alias  string
	On     cond.Condition
}

// Direction is an ORDER BY direction.
type Direction string

const (
	Ascending  Direction = "ASC"
	Descending Direction = "DESC"
)

// Order is one ORDER BY term.
type Order struct {
	Expr      expr.Expression
	Direction Direction
}

// Lock is the row lock requested on a SELECT.
type Lock int

const (
	LockNone Lock = iota
	LockUpdate
	LockShare
)

func (l Lock) String() string {
	switch l {
	case LockUpdate:
		return "FOR UPDATE"
	case LockShare:
		return "FOR SHARE"
	default:
		return "NONE"
	}
}

// State is a read-only view of a Descriptor used by renderers.
type State struct {
	Entity     *entity.Descriptor
	Alias      string
	Joins      []Join
	Where      cond.Condition
	GroupBy    []expr.Expression
	Having     cond.Condition
	OrderBy    []Order
	Limit      *int
	Offset     *int
	Distinct   bool
	Lock       Lock
	NoWait     bool
	SkipLocked bool
	Projection []expr.Expression
}

// Descriptor is the builder state of one statement.
type Descriptor struct {
	s State
}

// New starts a statement against e.
func New(e *entity.Descriptor) *Descriptor {
	return &Descriptor{s: State{
		Entity: e,
		Where:  cond.Empty(),
		Having: cond.Empty(),
	}}
}

// EntityName returns the shape name of the root entity.
func (d *Descriptor) EntityName() string {
	if d.s.Entity == nil {
		return ""
	}

	return d.s.Entity.Name()
}

// State returns the current state. Slices are copies.
func (d *Descriptor) State() State {
	s := d.s
	s.Joins = append([]Join(nil), d.s.Joins...)
	s.GroupBy = append([]expr.Expression(nil), d.s.GroupBy...)
	s.OrderBy = append([]Order(nil), d.s.OrderBy...)
	s.Projection = append([]expr.Expression(nil), d.s.Projection...)

	return s
}

// Clone returns an independent copy.
func (d *Descriptor) Clone() *Descriptor {
	c := &Descriptor{s: d.State()}

	if d.s.Limit != nil {
		n := *d.s.Limit
		c.s.Limit = &n
	}

	if d.s.Offset != nil {
		n := *d.s.Offset
		c.s.Offset = &n
	}

	return c
}

// As sets the root table alias.
func (d *Descriptor) As(alias string) *Descriptor {
	d.s.Alias = alias
	return d
}

// Join appends a join of e under alias.
func (d *Descriptor) Join(kind JoinKind, e *entity.Descriptor, alias string, on cond.Condition) *Descriptor {
	if on == nil {
		on = cond.Empty()
	}

	d.s.Joins = append(d.s.Joins, Join{Kind: kind, Entity: e, Alias: alias, On: on})

	return d
}

func (d *Descriptor) InnerJoin(e *entity.Descriptor, alias string, on cond.Condition) *Descriptor {
	return d.Join(JoinInner, e, alias, on)
}

func (d *Descriptor) LeftJoin(e *entity.Descriptor, alias string, on cond.Condition) *Descriptor {
	return d.Join(JoinLeft, e, alias, on)
}

func (d *Descriptor) RightJoin(e *entity.Descriptor, alias string, on cond.Condition) *Descriptor {
	return d.Join(JoinRight, e, alias, on)
}

// Where ANDs cs into the WHERE condition.
func (d *Descriptor) Where(cs ...cond.Condition) *Descriptor {
	d.s.Where = cond.And(append([]cond.Condition{d.s.Where}, cs...)...)
	return d
}

// GroupBy appends GROUP BY expressions.
func (d *Descriptor) GroupBy(es ...expr.Expression) *Descriptor {
	d.s.GroupBy = append(d.s.GroupBy, es...)
	return d
}

// GroupByColumns appends root table columns to GROUP BY.
func (d *Descriptor) GroupByColumns(names ...string) *Descriptor {
	for _, name := range names {
		d.s.GroupBy = append(d.s.GroupBy, expr.Col(name))
	}

	return d
}

// Having ANDs cs into the HAVING condition.
func (d *Descriptor) Having(cs ...cond.Condition) *Descriptor {
	d.s.Having = cond.And(append([]cond.Condition{d.s.Having}, cs...)...)
	return d
}

// OrderBy appends an ORDER BY term.
func (d *Descriptor) OrderBy(e expr.Expression, dir Direction) *Descriptor {
	d.s.OrderBy = append(d.s.OrderBy, Order{Expr: e, Direction: dir})
	return d
}

// Asc orders by a root table column ascending.
func (d *Descriptor) Asc(col string) *Descriptor {
	return d.OrderBy(expr.Col(col), Ascending)
}

// Desc orders by a root table column descending.
func (d *Descriptor) Desc(col string) *Descriptor {
	return d.OrderBy(expr.Col(col), Descending)
}

// Limit bounds the number of rows. Negative values clear the limit.
func (d *Descriptor) Limit(n int) *Descriptor {
	if n < 0 {
		d.s.Limit = nil
		return d
	}

	d.s.Limit = &n

	return d
}

// Offset skips n rows. Zero or negative values clear the offset.
func (d *Descriptor) Offset(n int) *Descriptor {
	if n <= 0 {
		d.s.Offset = nil
		return d
	}

	d.s.Offset = &n

	return d
}

func (d *Descriptor) Distinct() *Descriptor {
	d.s.Distinct = true
	return d
}

// ForUpdate requests an exclusive row lock.
func (d *Descriptor) ForUpdate() *Descriptor {
	d.s.Lock = LockUpdate
	return d
}

// ForShare requests a shared row lock.
func (d *Descriptor) ForShare() *Descriptor {
	d.s.Lock = LockShare
	return d
}

// NoWait fails instead of waiting for locked rows.
func (d *Descriptor) NoWait() *Descriptor {
	d.s.NoWait = true
	return d
}

// SkipLocked skips locked rows.
func (d *Descriptor) SkipLocked() *Descriptor {
	d.s.SkipLocked = true
	return d
}

// Project replaces the entity's column list with es.
func (d *Descriptor) Project(es ...expr.Expression) *Descriptor {
	d.s.Projection = append([]expr.Expression(nil), es...)
	return d
}

// Validate checks the alias rule: with joins present the root and every joined table
// carry a distinct, non-empty alias.
func (d *Descriptor) Validate() error {
	if d.s.Entity == nil {
		return errNilEntity
	}

	if len(d.s.Joins) == 0 {
		return nil
	}

	if d.s.Alias == "" {
		return fmt.Errorf("%w: %s", ErrAliasRequired, d.s.Entity.Table())
	}

	seen := map[string]struct{}{d.s.Alias: {}}

	for _, j := range d.s.Joins {
		if j.Entity == nil {
			return errNilEntity
		}

		if j.Alias == "" {
			return fmt.Errorf("%w: %s", ErrAliasRequired, j.Entity.Table())
		}

		if _, dup := seen[j.Alias]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateAlias, j.Alias)
		}

		seen[j.Alias] = struct{}{}
	}

	return nil
}
