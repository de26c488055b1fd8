package convert

import (
	"fmt"
	"reflect"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type status string

type color int

func (c color) EnumName() string {
	switch c {
	case 1:
		return "RED"
	default:
		return "BLUE"
	}
}

type labeled interface {
	Label() string
}

type sku struct{ code string }

func (s sku) Label() string { return "sku:" + s.code }

type celsius float64

var (
	stringType = reflect.TypeFor[string]()
	intType    = reflect.TypeFor[int]()
	int64Type  = reflect.TypeFor[int64]()
	boolType   = reflect.TypeFor[bool]()
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()

	r := NewRegistry()

	require.NoError(t, Register(r, func(v string) (int64, error) { return int64(len(v)), nil }))
	require.NoError(t, Register(r, func(v int) (string, error) { return strconv.Itoa(v), nil }))
	require.NoError(t, Register(r, func(v bool) (int, error) {
		if v {
			return 1, nil
		}
		return 0, nil
	}))
	require.NoError(t, Register(r, func(v Enum) (string, error) { return v.EnumName(), nil }))
	require.NoError(t, Register(r, func(v labeled) (string, error) { return v.Label(), nil }))

	return r
}

func TestRegistry_ResolveOrder(t *testing.T) {
	r := newTestRegistry(t)

	tests := []struct {
		name     string
		value    any
		dst      reflect.Type
		expected any
	}{
		{name: "exact pair", value: 42, dst: stringType, expected: "42"},
		{name: "identity", value: "same", dst: stringType, expected: "same"},
		{name: "enum category before canonical kind", value: color(1), dst: stringType, expected: "RED"},
		{name: "capability interface", value: sku{code: "a1"}, dst: stringType, expected: "sku:a1"},
		{name: "canonical kind of named type", value: status("open"), dst: int64Type, expected: int64(4)},
		{name: "one chained hop", value: true, dst: stringType, expected: "1"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out, err := r.Convert(tc.value, tc.dst)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, out)
		})
	}
}

func TestRegistry_NamedTypeUsesCanonicalFunc(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, Register(r, func(v float64) (string, error) {
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	}))

	out, err := r.Convert(celsius(21.5), stringType)
	require.NoError(t, err)
	assert.Equal(t, "21.5", out)
}

func TestRegistry_NoConversion(t *testing.T) {
	r := newTestRegistry(t)

	_, err := r.Resolve(reflect.TypeFor[struct{ A int }](), int64Type)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrNoConversion)

	var nce *NoConversionError
	require.ErrorAs(t, err, &nce)
	assert.Equal(t, int64Type, nce.Dst)
	assert.Contains(t, err.Error(), "struct { A int }")
}

func TestRegistry_NoTwoHopChains(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, Register(r, func(v bool) (int, error) { return 1, nil }))
	require.NoError(t, Register(r, func(v int) (int64, error) { return int64(v), nil }))
	require.NoError(t, Register(r, func(v int64) (string, error) { return "x", nil }))

	_, err := r.Resolve(boolType, int64Type)
	require.NoError(t, err)

	_, err = r.Resolve(boolType, stringType)
	require.ErrorIs(t, err, ErrNoConversion)
}

func TestRegistry_ChainUsesRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, Register(r, func(v bool) (int, error) { return 7, nil }))
	require.NoError(t, Register(r, func(v bool) (int64, error) { return 9, nil }))
	require.NoError(t, Register(r, func(v int) (string, error) { return "via int", nil }))
	require.NoError(t, Register(r, func(v int64) (string, error) { return "via int64", nil }))

	out, err := r.Convert(true, stringType)
	require.NoError(t, err)
	assert.Equal(t, "via int", out)
}

func TestRegistry_Freeze(t *testing.T) {
	r := newTestRegistry(t)
	r.Freeze()

	assert.True(t, r.Frozen())

	err := r.Register(intType, boolType, func(v any) (any, error) { return true, nil })
	require.ErrorIs(t, err, ErrRegistryFrozen)

	c := r.Clone()
	assert.False(t, c.Frozen())
	require.NoError(t, c.Register(intType, boolType, func(v any) (any, error) { return true, nil }))

	_, err = r.Resolve(intType, boolType)
	require.ErrorIs(t, err, ErrNoConversion, "clone registrations must not leak into the source")
}

func TestRegistry_ReplaceKeepsPosition(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, Register(r, func(v int) (string, error) { return "first", nil }))
	require.NoError(t, Register(r, func(v int) (string, error) { return "second", nil }))

	out, err := r.Convert(1, stringType)
	require.NoError(t, err)
	assert.Equal(t, "second", out)
	assert.Len(t, r.order, 1)
}

func TestRegistry_RegisterValidation(t *testing.T) {
	r := NewRegistry()

	require.ErrorIs(t, r.Register(nil, intType, identity), errNilType)
	require.ErrorIs(t, r.Register(intType, stringType, nil), errNilFunc)
}

func TestRegistry_ConcurrentResolve(t *testing.T) {
	r := newTestRegistry(t)
	r.Freeze()

	var wg sync.WaitGroup

	for i := 0; i < 32; i++ {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			out, err := r.Convert(i, stringType)
			assert.NoError(t, err)
			assert.Equal(t, fmt.Sprint(i), out)
		}(i)
	}

	wg.Wait()
}

func TestConvert_Nil(t *testing.T) {
	out, err := NewRegistry().Convert(nil, stringType)
	require.NoError(t, err)
	assert.Nil(t, out)
}
