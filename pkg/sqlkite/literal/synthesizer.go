package literal

import (
	"database/sql/driver"
	"errors"
	"math"
	"math/big"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sllt/sqlkite/pkg/sqlkite/convert"
)

// DefaultThreshold is the string length, in characters, at which strings stop being
// inlined and become parameters.
const DefaultThreshold = 128

// ratDigits is the scale used for a *big.Rat without a terminating expansion.
const ratDigits = 38

const (
	timestampLayout = "2006-01-02 15:04:05.999999999"
	timeLayout      = "15:04:05.999999999"
)

// Synthesizer turns values into literals for one dialect. It is immutable after New.
type Synthesizer struct {
	threshold   int
	bools       BoolPolicy
	dates       DateStyle
	backslash   bool
	hooks       []func(*convert.Registry) error
	conversions *convert.Registry
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithThreshold sets the string length at which strings become parameters.
// A value of zero or less inlines every string.
func WithThreshold(n int) Option {
	return func(s *Synthesizer) {
		s.threshold = n
	}
}

// WithBoolPolicy sets how booleans are written.
func WithBoolPolicy(p BoolPolicy) Option {
	return func(s *Synthesizer) {
		s.bools = p
	}
}

// WithDateStyle sets how date and time values are written.
func WithDateStyle(d DateStyle) Option {
	return func(s *Synthesizer) {
		s.dates = d
	}
}

// WithBackslashEscape doubles backslashes in inline strings, for products that treat
// backslash as an escape character inside string literals.
func WithBackslashEscape() Option {
	return func(s *Synthesizer) {
		s.backslash = true
	}
}

// WithConversions registers additional conversions after the defaults, so callers can
// add custom types or replace a default.
func WithConversions(fn func(r *convert.Registry) error) Option {
	return func(s *Synthesizer) {
		s.hooks = append(s.hooks, fn)
	}
}

// New builds a Synthesizer and freezes its conversion registry.
func New(opts ...Option) (*Synthesizer, error) {
	s := &Synthesizer{threshold: DefaultThreshold, bools: BoolKeyword, dates: DateANSI}

	for _, opt := range opts {
		opt(s)
	}

	r := convert.NewRegistry()

	if err := s.registerDefaults(r); err != nil {
		return nil, err
	}

	for _, hook := range s.hooks {
		if err := hook(r); err != nil {
			return nil, err
		}
	}

	r.Freeze()
	s.conversions = r

	return s, nil
}

// Threshold returns the configured string threshold.
func (s *Synthesizer) Threshold() int { return s.threshold }

// Registry returns the frozen conversion registry backing s.
func (s *Synthesizer) Registry() *convert.Registry { return s.conversions }

// ToSQL synthesizes v. Nil values and nil pointers become NULL; other pointers are
// dereferenced unless a conversion is registered for the pointer type itself.
func (s *Synthesizer) ToSQL(v any) (Literal, error) {
	for {
		if v == nil {
			return Null, nil
		}

		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Pointer {
			break
		}

		if rv.IsNil() {
			return Null, nil
		}

		if _, err := s.conversions.Resolve(rv.Type(), Type); err == nil {
			break
		}

		v = rv.Elem().Interface()
	}

	out, err := s.conversions.Convert(v, Type)
	if err != nil {
		return Literal{}, err
	}

	return out.(Literal), nil
}

// ToSQLAs converts v to dst first and then synthesizes the result. A nil dst behaves
// like ToSQL.
func (s *Synthesizer) ToSQLAs(v any, dst reflect.Type) (Literal, error) {
	if dst == nil || v == nil {
		return s.ToSQL(v)
	}

	converted, err := s.conversions.Convert(v, dst)
	if err != nil {
		return Literal{}, err
	}

	return s.ToSQL(converted)
}

// String applies the string rules: parameter at or above the threshold, otherwise
// single-quoted with embedded quotes doubled. Backslashes are doubled first when
// WithBackslashEscape is set.
func (s *Synthesizer) String(v string) Literal {
	if s.threshold > 0 && utf8.RuneCountInString(v) >= s.threshold {
		return Parameter(v)
	}

	if s.backslash {
		v = strings.ReplaceAll(v, `\`, `\\`)
	}

	return Inline("'" + strings.ReplaceAll(v, "'", "''") + "'")
}

// rat writes v exactly when its decimal expansion terminates, that is when the
// reduced denominator has no prime factors other than 2 and 5. Others are bound as
// decimal text rounded to ratDigits places.
func (s *Synthesizer) rat(v *big.Rat) Literal {
	if v.IsInt() {
		return Inline(v.Num().String())
	}

	d := new(big.Int).Set(v.Denom())
	twos, fives := 0, 0

	for _, f := range []struct {
		p *big.Int
		n *int
	}{{big.NewInt(2), &twos}, {big.NewInt(5), &fives}} {
		m := new(big.Int)
		for {
			q, r := new(big.Int).QuoRem(d, f.p, m)
			if r.Sign() != 0 {
				break
			}

			d = q
			*f.n++
		}
	}

	if d.Cmp(big.NewInt(1)) != 0 {
		return Parameter(v.FloatString(ratDigits))
	}

	return Inline(v.FloatString(max(twos, fives)))
}

func (s *Synthesizer) float(v float64, bits int) Literal {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Parameter(v)
	}

	return Inline(strconv.FormatFloat(v, 'f', -1, bits))
}

func (s *Synthesizer) valuer(v driver.Valuer) (Literal, error) {
	val, err := v.Value()
	if err != nil {
		return Literal{}, err
	}

	if _, nested := val.(driver.Valuer); nested {
		return Parameter(val), nil
	}

	return s.ToSQL(val)
}

func (s *Synthesizer) registerDefaults(r *convert.Registry) error {
	inline := func(text string) (Literal, error) { return Inline(text), nil }

	return errors.Join(
		convert.Register(r, func(v string) (Literal, error) { return s.String(v), nil }),
		convert.Register(r, func(v bool) (Literal, error) { return inline(s.bools.format(v)) }),
		convert.Register(r, func(v int) (Literal, error) { return inline(strconv.FormatInt(int64(v), 10)) }),
		convert.Register(r, func(v int8) (Literal, error) { return inline(strconv.FormatInt(int64(v), 10)) }),
		convert.Register(r, func(v int16) (Literal, error) { return inline(strconv.FormatInt(int64(v), 10)) }),
		convert.Register(r, func(v int32) (Literal, error) { return inline(strconv.FormatInt(int64(v), 10)) }),
		convert.Register(r, func(v int64) (Literal, error) { return inline(strconv.FormatInt(v, 10)) }),
		convert.Register(r, func(v uint) (Literal, error) { return inline(strconv.FormatUint(uint64(v), 10)) }),
		convert.Register(r, func(v uint8) (Literal, error) { return inline(strconv.FormatUint(uint64(v), 10)) }),
		convert.Register(r, func(v uint16) (Literal, error) { return inline(strconv.FormatUint(uint64(v), 10)) }),
		convert.Register(r, func(v uint32) (Literal, error) { return inline(strconv.FormatUint(uint64(v), 10)) }),
		convert.Register(r, func(v uint64) (Literal, error) { return inline(strconv.FormatUint(v, 10)) }),
		convert.Register(r, func(v float32) (Literal, error) { return s.float(float64(v), 32), nil }),
		convert.Register(r, func(v float64) (Literal, error) { return s.float(v, 64), nil }),
		convert.Register(r, func(v []byte) (Literal, error) { return Parameter(v), nil }),
		convert.Register(r, func(v *big.Int) (Literal, error) { return inline(v.String()) }),
		convert.Register(r, func(v *big.Float) (Literal, error) {
			if v.IsInf() {
				return Parameter(v.String()), nil
			}
			return inline(v.Text('f', -1))
		}),
		convert.Register(r, func(v *big.Rat) (Literal, error) { return s.rat(v), nil }),
		convert.Register(r, func(v decimal.Decimal) (Literal, error) { return inline(v.String()) }),
		convert.Register(r, func(v time.Time) (Literal, error) {
			return inline(s.dates.format("TIMESTAMP", v.Format(timestampLayout)))
		}),
		convert.Register(r, func(v civil.Date) (Literal, error) {
			return inline(s.dates.format("DATE", v.String()))
		}),
		convert.Register(r, func(v civil.Time) (Literal, error) {
			t := time.Date(0, time.January, 1, v.Hour, v.Minute, v.Second, v.Nanosecond, time.UTC)
			return inline(s.dates.format("TIME", t.Format(timeLayout)))
		}),
		convert.Register(r, func(v civil.DateTime) (Literal, error) {
			return inline(s.dates.format("TIMESTAMP", v.In(time.UTC).Format(timestampLayout)))
		}),
		convert.Register(r, func(v convert.Enum) (Literal, error) { return s.String(v.EnumName()), nil }),
		convert.Register(r, s.valuer),

		// Destination overrides for columns stored in a different shape.
		convert.Register(r, func(v bool) (int64, error) {
			if v {
				return 1, nil
			}
			return 0, nil
		}),
		convert.Register(r, func(v uuid.UUID) (string, error) { return v.String(), nil }),
		convert.Register(r, func(v uuid.UUID) ([]byte, error) { return v[:], nil }),
		convert.Register(r, func(v time.Time) (civil.Date, error) { return civil.DateOf(v), nil }),
		convert.Register(r, func(v time.Time) (civil.DateTime, error) { return civil.DateTimeOf(v), nil }),
		convert.Register(r, func(v time.Time) (string, error) { return v.Format(time.RFC3339Nano), nil }),
	)
}
