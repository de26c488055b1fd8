package queryfile

import (
	"regexp"
	"strings"

	"github.com/pkg/errors"

	"github.com/sllt/sqlkite/pkg/sqlkite/cond"
	"github.com/sllt/sqlkite/pkg/sqlkite/dialect"
	"github.com/sllt/sqlkite/pkg/sqlkite/entity"
	"github.com/sllt/sqlkite/pkg/sqlkite/expr"
	"github.com/sllt/sqlkite/pkg/sqlkite/query"
)

var (
	errUnknownKind     = errors.New("[queryfile] unknown query kind")
	errUnknownJoinKind = errors.New("[queryfile] unknown join kind")
	errUnknownLock     = errors.New("[queryfile] unknown lock mode")
	errOrBranchType    = errors.New(`[queryfile] "_or" branches must be mappings`)
)

// Statement is one rendered query.
type Statement struct {
	Name string
	Kind string
	SQL  string
	Args []any
}

const (
	KindSelect = "select"
	KindCount  = "count"
	KindInsert = "insert"
	KindUpdate = "update"
	KindDelete = "delete"
	KindUpsert = "upsert"
)

// Render registers the entities of f and renders every query with d, in file order.
// SQL keeps "?" markers; callers rebind for positional drivers.
func Render(f *File, d *dialect.Dialect) ([]Statement, error) {
	reg := d.Entities()

	for _, e := range f.Entities {
		if err := reg.Register(builder(e)); err != nil {
			return nil, errors.Wrapf(err, "entity %s", e.Name)
		}
	}

	out := make([]Statement, 0, len(f.Queries))

	for _, q := range f.Queries {
		st, err := render(q, reg, d)
		if err != nil {
			return nil, errors.Wrapf(err, "query %s", q.Name)
		}

		out = append(out, st)
	}

	return out, nil
}

func builder(e Entity) *entity.Builder {
	b := entity.NewBuilder(e.Name, e.Table)

	for _, c := range e.Columns {
		opts := make([]entity.Option, 0)

		if c.Key {
			opts = append(opts, entity.AsKey())
		}

		if c.Property != "" {
			opts = append(opts, entity.Property(c.Property))
		}

		if c.ReadOnly {
			opts = append(opts, entity.ReadOnly())
		}

		if c.NoInsert {
			opts = append(opts, entity.NoInsert())
		}

		if c.NoUpdate {
			opts = append(opts, entity.NoUpdate())
		}

		if c.NoSelect {
			opts = append(opts, entity.NoSelect())
		}

		opts = append(opts, overrides(Override{Select: c.Select, Insert: c.Insert, Update: c.Update})...)

		for name, o := range c.Overrides {
			opts = append(opts, entity.ForDialect(name, overrides(o)...))
		}

		b.Column(c.Name, opts...)
	}

	return b
}

func overrides(o Override) []entity.Option {
	var opts []entity.Option

	if o.Select != "" {
		opts = append(opts, entity.SelectAs(expr.Raw(o.Select)))
	}

	if o.Insert != "" {
		opts = append(opts, entity.InsertAs(expr.Raw(o.Insert)))
	}

	if o.Update != "" {
		opts = append(opts, entity.UpdateAs(expr.Raw(o.Update)))
	}

	return opts
}

func render(q Query, reg *entity.Registry, d *dialect.Dialect) (Statement, error) {
	st := Statement{Name: q.Name, Kind: strings.ToLower(q.Kind)}
	if st.Kind == "" {
		st.Kind = KindSelect
	}

	e, err := reg.Get(q.Entity)
	if err != nil {
		return st, err
	}

	row := entity.Row(normalizeMap(q.Values))

	switch st.Kind {
	case KindInsert:
		st.SQL, st.Args, err = d.Insert(e, row)
		return st, err
	case KindUpsert:
		st.SQL, st.Args, err = d.Upsert(e, row, q.Conflict...)
		return st, err
	case KindSelect, KindCount, KindUpdate, KindDelete:
	default:
		return st, errors.Wrapf(errUnknownKind, "%q", q.Kind)
	}

	desc, err := descriptor(q, e, reg)
	if err != nil {
		return st, err
	}

	switch st.Kind {
	case KindSelect:
		st.SQL, st.Args, err = d.Select(desc)
	case KindCount:
		st.SQL, st.Args, err = d.Count(desc)
	case KindUpdate:
		st.SQL, st.Args, err = d.Update(desc, row)
	case KindDelete:
		st.SQL, st.Args, err = d.Delete(desc)
	}

	return st, err
}

func descriptor(q Query, e *entity.Descriptor, reg *entity.Registry) (*query.Descriptor, error) {
	desc := query.New(e).As(q.Alias)

	for _, j := range q.Joins {
		je, err := reg.Get(j.Entity)
		if err != nil {
			return nil, err
		}

		kind, err := joinKind(j.Kind)
		if err != nil {
			return nil, err
		}

		on := cond.All()
		if strings.TrimSpace(j.On) != "" {
			on = cond.Raw(j.On)
		}

		desc.Join(kind, je, j.Alias, on)
	}

	where, err := fromMap(q.Where)
	if err != nil {
		return nil, errors.Wrap(err, "where")
	}

	having, err := fromMap(q.Having)
	if err != nil {
		return nil, errors.Wrap(err, "having")
	}

	desc.Where(where).Having(having)

	if len(q.Columns) > 0 {
		cols := make([]expr.Expression, 0, len(q.Columns))
		for _, c := range q.Columns {
			cols = append(cols, column(c))
		}

		desc.Project(cols...)
	}

	for _, g := range q.GroupBy {
		desc.GroupBy(column(g))
	}

	for _, o := range q.OrderBy {
		if name, ok := strings.CutPrefix(o, "-"); ok {
			desc.OrderBy(column(name), query.Descending)
		} else {
			desc.OrderBy(column(o), query.Ascending)
		}
	}

	if q.Limit != nil {
		desc.Limit(*q.Limit)
	}

	if q.Offset != nil {
		desc.Offset(*q.Offset)
	}

	if q.Distinct {
		desc.Distinct()
	}

	switch strings.ToLower(q.Lock) {
	case "":
	case "update":
		desc.ForUpdate()
	case "share":
		desc.ForShare()
	default:
		return nil, errors.Wrapf(errUnknownLock, "%q", q.Lock)
	}

	if q.NoWait {
		desc.NoWait()
	}

	if q.SkipLocked {
		desc.SkipLocked()
	}

	return desc, nil
}

func joinKind(s string) (query.JoinKind, error) {
	switch strings.ToLower(s) {
	case "", "inner":
		return query.JoinInner, nil
	case "left":
		return query.JoinLeft, nil
	case "right":
		return query.JoinRight, nil
	default:
		return "", errors.Wrapf(errUnknownJoinKind, "%q", s)
	}
}

var identifier = regexp.MustCompile(`^(?:[A-Za-z_][A-Za-z0-9_]*\.)?[A-Za-z_][A-Za-z0-9_]*$`)

// column turns "name" and "alias.name" into column references and keeps anything
// else as SQL text.
func column(s string) expr.Expression {
	s = strings.TrimSpace(s)
	if !identifier.MatchString(s) {
		return expr.Raw(s)
	}

	return expr.Col(s)
}

func fromMap(m map[string]any) (cond.Condition, error) {
	where, err := normalizeWhere(m)
	if err != nil {
		return nil, err
	}

	return cond.FromMap(where)
}

// normalizeWhere converts the YAML shapes of a where-map to the ones cond.FromMap
// expects.
func normalizeWhere(m map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(m))

	for k, v := range m {
		if !strings.HasPrefix(k, "_or") {
			out[k] = normalize(v)
			continue
		}

		list, ok := v.([]any)
		if !ok {
			return nil, errors.Wrapf(errOrBranchType, "%s", k)
		}

		branches := make([]map[string]any, 0, len(list))

		for _, item := range list {
			branch, ok := item.(map[string]any)
			if !ok {
				return nil, errors.Wrapf(errOrBranchType, "%s", k)
			}

			nb, err := normalizeWhere(branch)
			if err != nil {
				return nil, err
			}

			branches = append(branches, nb)
		}

		out[k] = branches
	}

	return out, nil
}

func normalizeMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = normalize(v)
	}

	return out
}

// normalize turns {raw: TEXT} into expr.Raw.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		if text, ok := t["raw"].(string); ok && len(t) == 1 {
			return expr.Raw(text)
		}

		return normalizeMap(t)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = normalize(t[i])
		}

		return out
	default:
		return v
	}
}
