package dialect

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sllt/sqlkite/pkg/sqlkite/cond"
	"github.com/sllt/sqlkite/pkg/sqlkite/entity"
	"github.com/sllt/sqlkite/pkg/sqlkite/expr"
	"github.com/sllt/sqlkite/pkg/sqlkite/query"
)

var (
	// ErrUnsupportedFeature is returned for statements a product has no syntax for.
	ErrUnsupportedFeature = errors.New("[dialect] statement is not supported for dialect")
	// ErrMutationClause is matched by MutationClauseError.
	ErrMutationClause = errors.New("[dialect] clause is only supported in SELECT")
)

// MutationClauseError reports a SELECT-only clause set on a descriptor passed to
// Update or Delete.
type MutationClauseError struct {
	Statement string
	Clause    string
}

func (e *MutationClauseError) Error() string {
	return fmt.Sprintf("%s: %s in %s", ErrMutationClause, e.Clause, e.Statement)
}

func (*MutationClauseError) Is(target error) bool { return target == ErrMutationClause }

// Insert renders an INSERT of instance. Insertable columns are written in declaration
// order; each value is the column's Insert expression when it declares one, otherwise
// the instance value as a literal or parameter.
func (d *Dialect) Insert(e *entity.Descriptor, instance any) (string, []any, error) {
	params := &expr.Params{}

	cols, vals, err := d.insertValues(e, instance, params)
	if err != nil {
		return "", nil, err
	}

	sql := "INSERT INTO " + e.Table() + " (" + strings.Join(cols, ", ") + ") VALUES (" + strings.Join(vals, ", ") + ")"

	return sql, params.Values(), nil
}

func (d *Dialect) insertValues(e *entity.Descriptor, instance any, params *expr.Params) (cols, vals []string, err error) {
	if e == nil {
		return nil, nil, errNilEntity
	}

	ctx := d.newContext(query.State{}, nil)

	for _, c := range e.Columns() {
		if !c.Insertable && c.Insert == nil {
			continue
		}

		v, err := d.columnValue(ctx, params, e, instance, c, c.Insert)
		if err != nil {
			return nil, nil, err
		}

		cols = append(cols, c.Name)
		vals = append(vals, v)
	}

	if len(cols) == 0 {
		return nil, nil, fmt.Errorf("%w: %s", errNoInsertableColumns, e.Name())
	}

	return cols, vals, nil
}

// Update renders an UPDATE of the root table of q with the values of instance. Only
// updatable non-key columns are set. The WHERE clause comes from q and is omitted
// when it is the tautology.
func (d *Dialect) Update(q *query.Descriptor, instance any) (string, []any, error) {
	if q == nil {
		return "", nil, errNilQuery
	}

	s := q.State()
	if err := mutationTarget(s, "UPDATE"); err != nil {
		return "", nil, err
	}

	params := &expr.Params{}
	ctx := d.newContext(query.State{Entity: s.Entity}, nil)
	sets := make([]string, 0)

	for _, c := range s.Entity.Columns() {
		if c.Key || (!c.Updatable && c.Update == nil) {
			continue
		}

		v, err := d.columnValue(ctx, params, s.Entity, instance, c, c.Update)
		if err != nil {
			return "", nil, err
		}

		sets = append(sets, c.Name+" = "+v)
	}

	if len(sets) == 0 {
		return "", nil, fmt.Errorf("%w: %s", errNoUpdatableColumns, s.Entity.Name())
	}

	var sb strings.Builder

	sb.WriteString("UPDATE " + s.Entity.Table() + " SET " + strings.Join(sets, ", "))

	if err := writeCondition(&sb, " WHERE ", s.Where, ctx, params); err != nil {
		return "", nil, err
	}

	return sb.String(), params.Values(), nil
}

// Delete renders a DELETE from the root table of q, with the same WHERE rule as Update.
func (d *Dialect) Delete(q *query.Descriptor) (string, []any, error) {
	if q == nil {
		return "", nil, errNilQuery
	}

	s := q.State()
	if err := mutationTarget(s, "DELETE"); err != nil {
		return "", nil, err
	}

	params := &expr.Params{}
	ctx := d.newContext(query.State{Entity: s.Entity}, nil)

	var sb strings.Builder

	sb.WriteString("DELETE FROM " + s.Entity.Table())

	if err := writeCondition(&sb, " WHERE ", s.Where, ctx, params); err != nil {
		return "", nil, err
	}

	return sb.String(), params.Values(), nil
}

// Upsert renders an INSERT that updates the updatable non-key columns when the row
// already exists.
//
// MySQL uses ON DUPLICATE KEY UPDATE, or INSERT IGNORE when nothing is updatable.
// PostgreSQL and SQLite use ON CONFLICT (conflict) DO UPDATE SET, or DO NOTHING; the
// conflict target defaults to the key columns. Other products return
// ErrUnsupportedFeature.
func (d *Dialect) Upsert(e *entity.Descriptor, instance any, conflict ...string) (string, []any, error) {
	if !d.profile.upsert {
		return "", nil, fmt.Errorf("%w: upsert for %s", ErrUnsupportedFeature, d.name)
	}

	params := &expr.Params{}

	cols, vals, err := d.insertValues(e, instance, params)
	if err != nil {
		return "", nil, err
	}

	updates := make([]string, 0)

	for _, c := range e.Columns() {
		if c.Key || !c.Updatable || !contains(cols, c.Name) {
			continue
		}

		if d.name == MySQL {
			updates = append(updates, c.Name+" = VALUES("+c.Name+")")
		} else {
			updates = append(updates, c.Name+" = EXCLUDED."+c.Name)
		}
	}

	insert := "INSERT INTO " + e.Table() + " (" + strings.Join(cols, ", ") + ") VALUES (" + strings.Join(vals, ", ") + ")"

	if d.name == MySQL {
		if len(updates) == 0 {
			return "INSERT IGNORE" + strings.TrimPrefix(insert, "INSERT"), params.Values(), nil
		}

		return insert + " ON DUPLICATE KEY UPDATE " + strings.Join(updates, ", "), params.Values(), nil
	}

	target, err := conflictTarget(e, conflict)
	if err != nil {
		return "", nil, err
	}

	if len(updates) == 0 {
		if target == "" {
			return insert + " ON CONFLICT DO NOTHING", params.Values(), nil
		}

		return insert + " ON CONFLICT " + target + " DO NOTHING", params.Values(), nil
	}

	if target == "" {
		return "", nil, errEmptyConflictColumns
	}

	return insert + " ON CONFLICT " + target + " DO UPDATE SET " + strings.Join(updates, ", "), params.Values(), nil
}

func conflictTarget(e *entity.Descriptor, conflict []string) (string, error) {
	if len(conflict) == 0 {
		for _, k := range e.Keys() {
			conflict = append(conflict, k.Name)
		}
	}

	if len(conflict) == 0 {
		return "", nil
	}

	columns := make([]string, 0, len(conflict))

	for _, col := range conflict {
		c := strings.TrimSpace(col)
		if c == "" {
			return "", errEmptyConflictColumns
		}

		columns = append(columns, c)
	}

	return "(" + strings.Join(columns, ", ") + ")", nil
}

// columnValue renders the override expression when set, otherwise the instance value
// through the literal synthesizer.
func (d *Dialect) columnValue(ctx *renderContext, params *expr.Params, e *entity.Descriptor, instance any,
	c entity.Column, override expr.Expression) (string, error) {
	if override != nil {
		return override.Render(ctx, params)
	}

	v, err := e.Value(instance, c)
	if err != nil {
		return "", err
	}

	out, err := expr.Emit(ctx, params, v, c.Dest)
	if err != nil {
		return "", fmt.Errorf("%s.%s: %w", e.Name(), c.Name, err)
	}

	return out, nil
}

// mutationTarget rejects descriptors that UPDATE and DELETE cannot render faithfully.
// The statements address the bare table, so an alias is rejected too.
func mutationTarget(s query.State, statement string) error {
	if s.Entity == nil {
		return errNilEntity
	}

	if len(s.Joins) > 0 {
		return errJoinsNotAllowed
	}

	var clause string

	switch {
	case s.Alias != "":
		clause = "alias " + s.Alias
	case len(s.Projection) > 0:
		clause = "projection"
	case s.Distinct:
		clause = "DISTINCT"
	case len(s.GroupBy) > 0:
		clause = "GROUP BY"
	case !cond.IsEmpty(s.Having):
		clause = "HAVING"
	case len(s.OrderBy) > 0:
		clause = "ORDER BY"
	case s.Limit != nil, s.Offset != nil:
		clause = "pagination"
	case s.Lock != query.LockNone, s.NoWait, s.SkipLocked:
		clause = "row lock"
	default:
		return nil
	}

	return &MutationClauseError{Statement: statement, Clause: clause}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}

	return false
}
