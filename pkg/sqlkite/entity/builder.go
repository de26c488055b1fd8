package entity

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/sllt/sqlkite/pkg/sqlkite/expr"
)

var (
	ErrEmptyTable      = errors.New("[entity] table name is required")
	ErrEmptyColumn     = errors.New("[entity] column name is required")
	ErrDuplicateColumn = errors.New("[entity] duplicate column")
)

// Option adjusts one column while a Descriptor is built.
type Option func(c *columnDef)

type columnDef struct {
	Column
	overrides map[string][]Option
}

type columnDecl struct {
	name string
	opts []Option
}

// Builder declares an entity shape. Build resolves it for one dialect, applying the
// options registered with ForDialect for that dialect only.
type Builder struct {
	name    string
	table   string
	columns []columnDecl
}

// NewBuilder starts the declaration of the shape name stored in table.
func NewBuilder(name, table string) *Builder {
	return &Builder{name: name, table: table}
}

// Name returns the shape name.
func (b *Builder) Name() string { return b.name }

// Column declares a column. The property defaults to the CamelCase form of name.
func (b *Builder) Column(name string, opts ...Option) *Builder {
	b.columns = append(b.columns, columnDecl{name: name, opts: opts})
	return b
}

// Key declares a key column.
func (b *Builder) Key(name string, opts ...Option) *Builder {
	return b.Column(name, append([]Option{AsKey()}, opts...)...)
}

// Field declares a column from a struct field name; the column name is its
// snake_case form.
func (b *Builder) Field(property string, opts ...Option) *Builder {
	return b.Column(ToSnakeCase(property), append([]Option{Property(property)}, opts...)...)
}

// Build resolves the declaration for dialect. An empty dialect applies no overrides.
func (b *Builder) Build(dialect string) (*Descriptor, error) {
	if strings.TrimSpace(b.table) == "" {
		return nil, fmt.Errorf("%w: %s", ErrEmptyTable, b.name)
	}

	d := &Descriptor{name: b.name, table: b.table, dialect: dialect}
	seen := make(map[string]struct{}, len(b.columns))

	for _, decl := range b.columns {
		if strings.TrimSpace(decl.name) == "" {
			return nil, fmt.Errorf("%w: %s", ErrEmptyColumn, b.name)
		}

		if _, dup := seen[decl.name]; dup {
			return nil, fmt.Errorf("%w: %s.%s", ErrDuplicateColumn, b.name, decl.name)
		}

		seen[decl.name] = struct{}{}

		s := &columnDef{Column: Column{
			Name:       decl.name,
			Property:   ToCamelCase(decl.name),
			Insertable: true,
			Selectable: true,
			Updatable:  true,
		}}

		for _, opt := range decl.opts {
			opt(s)
		}

		for _, opt := range s.overrides[strings.ToLower(dialect)] {
			opt(s)
		}

		if s.Insert != nil {
			if err := validate(s.Insert); err != nil {
				return nil, fmt.Errorf("%s.%s insert: %w", b.name, decl.name, err)
			}
		}

		if s.Update != nil {
			if err := validate(s.Update); err != nil {
				return nil, fmt.Errorf("%s.%s update: %w", b.name, decl.name, err)
			}
		}

		if s.Select != nil {
			if err := validate(s.Select); err != nil {
				return nil, fmt.Errorf("%s.%s select: %w", b.name, decl.name, err)
			}
		}

		d.columns = append(d.columns, s.Column)
		if s.Key {
			d.keys = append(d.keys, s.Column)
		}
	}

	return d, nil
}

func validate(e expr.Expression) error {
	if t, ok := e.(expr.Template); ok {
		return t.Validate()
	}

	return nil
}

// AsKey marks the column as part of the key.
func AsKey() Option {
	return func(c *columnDef) { c.Key = true }
}

// Property sets the dotted struct field path the value is read from.
func Property(path string) Option {
	return func(c *columnDef) { c.Property = path }
}

// ReadOnly excludes the column from INSERT and UPDATE. Columns with an InsertAs or
// UpdateAs expression are still written with that expression.
func ReadOnly() Option {
	return func(c *columnDef) {
		c.Insertable = false
		c.Updatable = false
	}
}

// NoInsert excludes the column from INSERT.
func NoInsert() Option {
	return func(c *columnDef) { c.Insertable = false }
}

// NoUpdate excludes the column from UPDATE.
func NoUpdate() Option {
	return func(c *columnDef) { c.Updatable = false }
}

// NoSelect excludes the column from SELECT.
func NoSelect() Option {
	return func(c *columnDef) { c.Selectable = false }
}

// SelectAs renders e in the SELECT list, aliased to the column name.
func SelectAs(e expr.Expression) Option {
	return func(c *columnDef) { c.Select = e }
}

// InsertAs renders e as the INSERT value.
func InsertAs(e expr.Expression) Option {
	return func(c *columnDef) { c.Insert = e }
}

// UpdateAs renders e as the UPDATE value.
func UpdateAs(e expr.Expression) Option {
	return func(c *columnDef) { c.Update = e }
}

// Dest converts values to t before literal synthesis.
func Dest(t reflect.Type) Option {
	return func(c *columnDef) { c.Dest = t }
}

// Getter reads the value with fn instead of the struct field.
func Getter(fn func(instance any) (any, error)) Option {
	return func(c *columnDef) { c.Getter = fn }
}

// ForDialect applies opts only when the descriptor is built for dialect.
func ForDialect(dialect string, opts ...Option) Option {
	return func(c *columnDef) {
		if c.overrides == nil {
			c.overrides = make(map[string][]Option)
		}

		key := strings.ToLower(dialect)
		c.overrides[key] = append(c.overrides[key], opts...)
	}
}

var (
	matchFirstCap = regexp.MustCompile("(.)([A-Z][a-z]+)")
	matchAllCap   = regexp.MustCompile("([a-z0-9])([A-Z])")
)

// ToSnakeCase converts "UserID" to "user_id".
func ToSnakeCase(s string) string {
	snake := matchFirstCap.ReplaceAllString(s, "${1}_${2}")
	snake = matchAllCap.ReplaceAllString(snake, "${1}_${2}")

	return strings.ToLower(snake)
}

// ToCamelCase converts "created_at" to "CreatedAt".
func ToCamelCase(s string) string {
	s = strings.NewReplacer("-", "_", ".", "_").Replace(s)

	var out strings.Builder

	for _, part := range strings.Split(s, "_") {
		if part == "" {
			continue
		}

		out.WriteString(strings.ToUpper(part[:1]) + part[1:])
	}

	return out.String()
}
