// Package entity describes mappable row shapes: a table, its ordered columns and the
// key subset. Descriptors are immutable once built and safe to share.
package entity

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/sllt/sqlkite/pkg/sqlkite/expr"
)

var (
	errNilInstance  = errors.New("[entity] instance is nil")
	errFieldMissing = errors.New("[entity] field not found")
)

// Column describes one mapped column.
type Column struct {
	Name string
	// Property is the dotted field path the value is read from.
	Property string

	Key        bool
	Insertable bool
	Selectable bool
	Updatable  bool

	// Optional overrides used in place of the plain column or value.
	Select expr.Expression
	Insert expr.Expression
	Update expr.Expression

	// Dest converts values to this type before literal synthesis.
	Dest reflect.Type
	// Getter reads the column value from an instance. It takes precedence over Property.
	Getter func(instance any) (any, error)
}

// Row is an instance given as column name to value.
type Row map[string]any

// Descriptor is the immutable metadata of one entity shape.
type Descriptor struct {
	name    string
	table   string
	dialect string
	columns []Column
	keys    []Column
}

// Name returns the shape name.
func (d *Descriptor) Name() string { return d.name }

// Table returns the table name.
func (d *Descriptor) Table() string { return d.table }

// Dialect returns the dialect the overrides were resolved for.
func (d *Descriptor) Dialect() string { return d.dialect }

// Columns returns the columns in declaration order.
func (d *Descriptor) Columns() []Column {
	return append([]Column(nil), d.columns...)
}

// Keys returns the key columns in declaration order.
func (d *Descriptor) Keys() []Column {
	return append([]Column(nil), d.keys...)
}

// Column looks a column up by name.
func (d *Descriptor) Column(name string) (Column, bool) {
	for _, c := range d.columns {
		if c.Name == name {
			return c, true
		}
	}

	return Column{}, false
}

// Value reads the value of c from instance. Row instances are indexed by column
// name; other instances go through c.Getter or the struct field at c.Property.
func (d *Descriptor) Value(instance any, c Column) (any, error) {
	if instance == nil {
		return nil, errNilInstance
	}

	if row, ok := instance.(Row); ok {
		return row[c.Name], nil
	}

	if row, ok := instance.(map[string]any); ok {
		return row[c.Name], nil
	}

	if c.Getter != nil {
		return c.Getter(instance)
	}

	v, err := fieldByPath(reflect.ValueOf(instance), c.Property)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %w", d.name, c.Name, err)
	}

	return v, nil
}

func fieldByPath(v reflect.Value, path string) (any, error) {
	for _, part := range strings.Split(path, ".") {
		for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
			if v.IsNil() {
				return nil, nil
			}

			v = v.Elem()
		}

		if v.Kind() != reflect.Struct {
			return nil, fmt.Errorf("%w: %q on %s", errFieldMissing, part, v.Kind())
		}

		f := v.FieldByName(part)
		if !f.IsValid() {
			f = v.FieldByNameFunc(func(name string) bool {
				return strings.EqualFold(name, strings.ReplaceAll(part, "_", ""))
			})
		}

		if !f.IsValid() || !f.CanInterface() {
			return nil, fmt.Errorf("%w: %q", errFieldMissing, part)
		}

		v = f
	}

	return v.Interface(), nil
}
