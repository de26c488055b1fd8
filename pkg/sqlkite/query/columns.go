package query

import (
	"github.com/sllt/sqlkite/pkg/sqlkite/expr"
)

// SelectColumns renders the SELECT list. An explicit projection wins; otherwise the
// selectable entity columns are listed in declaration order, overrides rendered as
// "<expr> AS name". Under GROUP BY every column that is neither grouped nor overridden
// is wrapped in MIN so the list stays valid next to aggregates.
func (d *Descriptor) SelectColumns(ctx expr.Context, params *expr.Params) ([]string, error) {
	if len(d.s.Projection) > 0 {
		out := make([]string, 0, len(d.s.Projection))

		for _, e := range d.s.Projection {
			s, err := e.Render(ctx, params)
			if err != nil {
				return nil, err
			}

			out = append(out, s)
		}

		return out, nil
	}

	grouped := d.groupedColumns()
	out := make([]string, 0)

	for _, c := range d.s.Entity.Columns() {
		if !c.Selectable {
			continue
		}

		if c.Select != nil {
			s, err := c.Select.Render(ctx, params)
			if err != nil {
				return nil, err
			}

			out = append(out, s+" AS "+c.Name)

			continue
		}

		col, err := expr.Col(c.Name).Render(ctx, params)
		if err != nil {
			return nil, err
		}

		if _, ok := grouped[c.Name]; len(d.s.GroupBy) > 0 && !ok {
			col = "MIN(" + col + ") AS " + c.Name
		}

		out = append(out, col)
	}

	return out, nil
}

// groupedColumns collects the root table columns referenced directly by GROUP BY.
func (d *Descriptor) groupedColumns() map[string]struct{} {
	grouped := make(map[string]struct{}, len(d.s.GroupBy))

	for _, e := range d.s.GroupBy {
		c, ok := e.(expr.Column)
		if !ok {
			continue
		}

		if c.Alias != "" && c.Alias != d.s.Alias {
			continue
		}

		if c.Table != "" && c.Table != d.s.Entity.Table() {
			continue
		}

		grouped[c.Name] = struct{}{}
	}

	return grouped
}
