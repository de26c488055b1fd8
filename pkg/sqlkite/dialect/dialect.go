// Package dialect assembles SELECT, INSERT, UPDATE and DELETE statements from query
// descriptors for one database product.
//
// Clause logic is shared by every product. A product only chooses its pagination
// syntax, its row-locking syntax and the literal policy used for booleans and dates,
// so clause ordering cannot diverge between dialects. Every operation returns the
// statement text with positional ? markers and the values bound to them, in marker
// order.
package dialect

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/cases"

	"github.com/sllt/sqlkite/pkg/sqlkite/config"
	"github.com/sllt/sqlkite/pkg/sqlkite/convert"
	"github.com/sllt/sqlkite/pkg/sqlkite/entity"
	"github.com/sllt/sqlkite/pkg/sqlkite/literal"
)

// Name identifies a database product.
type Name string

const (
	Standard  Name = "standard"
	MySQL     Name = "mysql"
	Postgres  Name = "postgres"
	SQLite    Name = "sqlite"
	Oracle    Name = "oracle"
	Oracle12  Name = "oracle12"
	SQLServer Name = "sqlserver"
	DB2       Name = "db2"
	H2        Name = "h2"
)

func (n Name) String() string { return string(n) }

var (
	// ErrUnsupportedDialect is returned for names that map to no product.
	ErrUnsupportedDialect = errors.New("[dialect] unsupported dialect")
	// ErrPaginationUnsupported matches every *PaginationUnsupportedError.
	ErrPaginationUnsupported = errors.New("[dialect] feature is not supported for dialect")

	errNilDialectProvider   = errors.New("[dialect] dialect provider is nil")
	errEmptyConflictColumns = errors.New("[dialect] conflict columns cannot be empty")
	errNoInsertableColumns  = errors.New("[dialect] entity has no insertable columns")
	errNoUpdatableColumns   = errors.New("[dialect] entity has no updatable columns")
	errJoinsNotAllowed      = errors.New("[dialect] joins are only supported in SELECT")
	errUnsupportedQuery     = errors.New("[dialect] nested query must be a *query.Descriptor")
	errNilQuery             = errors.New("[dialect] query descriptor is nil")
	errNilEntity            = errors.New("[dialect] entity descriptor is nil")
	errInvalidThreshold     = errors.New("[dialect] SQL_LITERAL_THRESHOLD must be an integer")
)

// PaginationUnsupportedError reports a pagination or locking feature the product
// cannot express.
type PaginationUnsupportedError struct {
	Dialect Name
	Feature string
}

func (e *PaginationUnsupportedError) Error() string {
	return fmt.Sprintf("%s: %s for %s", ErrPaginationUnsupported, e.Feature, e.Dialect)
}

func (*PaginationUnsupportedError) Is(target error) bool { return target == ErrPaginationUnsupported }

type pagination int

const (
	pageLimitOffset pagination = iota
	pageRowNum
	pageOffsetFetch
	pageTop
	pageFetchFirst
)

type profile struct {
	bools literal.BoolPolicy
	dates literal.DateStyle
	page  pagination
	// backslash reports whether backslash escapes inside string literals.
	backslash bool

	// unboundedLimit is written when only an offset is requested on products whose
	// OFFSET needs a LIMIT in front of it.
	unboundedLimit string

	forUpdate  bool
	noWait     bool
	skipLocked bool
	// share is the shared lock clause, or "" when the product has none.
	share string
	// shareModifiers reports whether NOWAIT and SKIP LOCKED may follow share.
	shareModifiers bool

	upsert bool
	// positional reports whether the driver expects $n markers instead of ?.
	positional bool
}

var profiles = map[Name]profile{
	Standard: {
		bools: literal.BoolKeyword, page: pageLimitOffset,
		forUpdate: true, noWait: true, skipLocked: true, share: "FOR SHARE", shareModifiers: true,
	},
	MySQL: {
		bools: literal.BoolNumeric, backslash: true, page: pageLimitOffset, unboundedLimit: "18446744073709551615",
		forUpdate: true, noWait: true, skipLocked: true, share: "LOCK IN SHARE MODE",
		upsert: true,
	},
	Postgres: {
		bools: literal.BoolKeyword, page: pageLimitOffset,
		forUpdate: true, noWait: true, skipLocked: true, share: "FOR SHARE", shareModifiers: true,
		upsert: true, positional: true,
	},
	SQLite: {
		bools: literal.BoolNumeric, dates: literal.DateQuoted, page: pageLimitOffset, unboundedLimit: "-1",
		upsert: true,
	},
	Oracle: {
		bools: literal.BoolYesNo, page: pageRowNum,
		forUpdate: true, noWait: true, skipLocked: true,
	},
	Oracle12: {
		bools: literal.BoolYesNo, page: pageOffsetFetch,
		forUpdate: true, noWait: true, skipLocked: true,
	},
	SQLServer: {
		bools: literal.BoolNumeric, dates: literal.DateQuoted, page: pageTop,
	},
	DB2: {
		bools: literal.BoolChar, page: pageFetchFirst,
		forUpdate: true,
	},
	H2: {
		bools: literal.BoolKeyword, page: pageLimitOffset,
		forUpdate: true, noWait: true, skipLocked: true,
	},
}

var aliases = map[string]Name{
	"":            Standard,
	"standard":    Standard,
	"ansi":        Standard,
	"mysql":       MySQL,
	"mariadb":     MySQL,
	"postgres":    Postgres,
	"postgresql":  Postgres,
	"pg":          Postgres,
	"supabase":    Postgres,
	"cockroachdb": Postgres,
	"sqlite":      SQLite,
	"sqlite3":     SQLite,
	"oracle":      Oracle,
	"oracle11":    Oracle,
	"oracle12":    Oracle12,
	"oracle12c":   Oracle12,
	"oracle19":    Oracle12,
	"oracle23":    Oracle12,
	"sqlserver":   SQLServer,
	"mssql":       SQLServer,
	"db2":         DB2,
	"h2":          H2,
}

// Normalize maps a product name or one of its aliases to a Name.
func Normalize(name string) (Name, error) {
	n, ok := aliases[cases.Fold().String(strings.TrimSpace(name))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedDialect, name)
	}

	return n, nil
}

// Names lists the supported products, sorted.
func Names() []Name {
	out := make([]Name, 0, len(profiles))
	for n := range profiles {
		out = append(out, n)
	}

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	return out
}

// Dialect renders statements for one product. It is immutable and safe for
// concurrent use.
type Dialect struct {
	name         Name
	profile      profile
	literals     *literal.Synthesizer
	lockFallback bool
}

type options struct {
	lockFallback bool
	literalOpts  []literal.Option
}

// Option configures a Dialect.
type Option func(*options)

// WithLockFallback writes a comment marker instead of failing when a locking feature
// is not available.
func WithLockFallback() Option {
	return func(o *options) { o.lockFallback = true }
}

// WithLiteralThreshold sets the string length at which strings become parameters.
func WithLiteralThreshold(n int) Option {
	return func(o *options) { o.literalOpts = append(o.literalOpts, literal.WithThreshold(n)) }
}

// WithBoolPolicy overrides the product's boolean literal policy.
func WithBoolPolicy(p literal.BoolPolicy) Option {
	return func(o *options) { o.literalOpts = append(o.literalOpts, literal.WithBoolPolicy(p)) }
}

// WithConversions registers custom conversions before the registry is frozen.
func WithConversions(fn func(r *convert.Registry) error) Option {
	return func(o *options) { o.literalOpts = append(o.literalOpts, literal.WithConversions(fn)) }
}

// New returns the Dialect for name.
//
// Supported values include:
//   - standard, ansi
//   - mysql, mariadb
//   - postgres, postgresql, supabase, cockroachdb
//   - sqlite, sqlite3
//   - oracle (ROWNUM pagination), oracle12 (OFFSET/FETCH)
//   - sqlserver, mssql
//   - db2, h2
func New(name string, opts ...Option) (*Dialect, error) {
	n, err := Normalize(name)
	if err != nil {
		return nil, err
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	p := profiles[n]

	litOpts := []literal.Option{literal.WithBoolPolicy(p.bools), literal.WithDateStyle(p.dates)}
	if p.backslash {
		litOpts = append(litOpts, literal.WithBackslashEscape())
	}

	litOpts = append(litOpts, o.literalOpts...)

	lits, err := literal.New(litOpts...)
	if err != nil {
		return nil, err
	}

	return &Dialect{name: n, profile: p, literals: lits, lockFallback: o.lockFallback}, nil
}

// DialectProvider describes a type that can expose its SQL dialect.
type DialectProvider interface {
	Dialect() string
}

// FromDB returns the Dialect of a connection.
func FromDB(db DialectProvider, opts ...Option) (*Dialect, error) {
	if db == nil {
		return nil, errNilDialectProvider
	}

	return New(db.Dialect(), opts...)
}

// FromConfig reads DB_DIALECT, SQL_LITERAL_THRESHOLD and SQL_LOCK_FALLBACK.
func FromConfig(cfg config.Config, opts ...Option) (*Dialect, error) {
	if v := cfg.Get("SQL_LITERAL_THRESHOLD"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", errInvalidThreshold, v)
		}

		opts = append(opts, WithLiteralThreshold(n))
	}

	if fallback, _ := strconv.ParseBool(cfg.GetOrDefault("SQL_LOCK_FALLBACK", "false")); fallback {
		opts = append(opts, WithLockFallback())
	}

	return New(cfg.Get("DB_DIALECT"), opts...)
}

// Name returns the product name.
func (d *Dialect) Name() Name { return d.name }

func (d *Dialect) String() string { return string(d.name) }

// Literals returns the literal synthesizer of the dialect.
func (d *Dialect) Literals() *literal.Synthesizer { return d.literals }

// Entities returns an entity registry resolving overrides for this dialect.
func (d *Dialect) Entities() *entity.Registry {
	return entity.NewRegistry(string(d.name))
}

// unsupported reports a feature the product cannot express, or the comment marker
// written in its place when the fallback is configured.
func (d *Dialect) unsupported(feature string) (string, error) {
	if d.lockFallback {
		return " /* " + feature + " unsupported */", nil
	}

	return "", &PaginationUnsupportedError{Dialect: d.name, Feature: feature}
}
