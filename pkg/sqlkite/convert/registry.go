// Package convert holds the conversion registry used to turn Go values into the
// representations a SQL dialect understands.
//
// A Registry maps a (source, destination) type pair to a Func. Lookups resolve in a
// fixed order: the exact pair, the enum category, the capability interfaces the source
// implements (in registration order) followed by the canonical type of the source's
// underlying kind, and finally a single chained hop through an intermediate type.
package convert

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
)

var (
	// ErrNoConversion is matched by every *NoConversionError.
	ErrNoConversion = errors.New("[convert] no conversion registered")
	// ErrRegistryFrozen is returned when Register is called after Freeze.
	ErrRegistryFrozen = errors.New("[convert] registry is frozen")

	errNilType = errors.New("[convert] source and destination types are required")
	errNilFunc = errors.New("[convert] conversion func is nil")
)

// Func converts a value of the registered source type into the destination type.
type Func func(v any) (any, error)

// Enum is implemented by enumerated values. Every Enum resolves through the
// conversions registered for EnumType when no exact pair exists.
type Enum interface {
	EnumName() string
}

// EnumType is the category key for enumerated values.
var EnumType = reflect.TypeFor[Enum]()

// NoConversionError reports that no conversion from Src to Dst could be resolved.
type NoConversionError struct {
	Src reflect.Type
	Dst reflect.Type
}

func (e *NoConversionError) Error() string {
	return fmt.Sprintf("[convert] no conversion from %s to %s", typeName(e.Src), typeName(e.Dst))
}

func (e *NoConversionError) Is(target error) bool {
	return target == ErrNoConversion
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}

	return t.String()
}

type pair struct {
	src, dst reflect.Type
}

// Registry is append-only: it is populated during initialization, frozen, and then
// shared read-only between goroutines.
type Registry struct {
	mu           sync.RWMutex
	funcs        map[pair]Func
	order        []pair
	capabilities []reflect.Type
	frozen       atomic.Bool
	cache        sync.Map
}

// NewRegistry returns an empty, unfrozen Registry.
func NewRegistry() *Registry {
	return &Registry{funcs: make(map[pair]Func)}
}

// Register adds fn for the (src, dst) pair. Registering an existing pair replaces its
// function but keeps its original position in the lookup order.
func (r *Registry) Register(src, dst reflect.Type, fn Func) error {
	if src == nil || dst == nil {
		return errNilType
	}

	if fn == nil {
		return errNilFunc
	}

	if r.frozen.Load() {
		return fmt.Errorf("%w: %s -> %s", ErrRegistryFrozen, src, dst)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := pair{src: src, dst: dst}
	if _, ok := r.funcs[key]; !ok {
		r.order = append(r.order, key)
	}

	r.funcs[key] = fn

	if src.Kind() == reflect.Interface && src != EnumType && !containsType(r.capabilities, src) {
		r.capabilities = append(r.capabilities, src)
	}

	return nil
}

// Register is the typed form of Registry.Register.
func Register[S, D any](r *Registry, fn func(S) (D, error)) error {
	return r.Register(reflect.TypeFor[S](), reflect.TypeFor[D](), func(v any) (any, error) {
		s, ok := v.(S)
		if !ok {
			return nil, &NoConversionError{Src: reflect.TypeOf(v), Dst: reflect.TypeFor[D]()}
		}

		return fn(s)
	})
}

// Freeze ends initialization. Later calls to Register fail with ErrRegistryFrozen.
func (r *Registry) Freeze() {
	r.frozen.Store(true)
}

// Frozen reports whether Freeze has been called.
func (r *Registry) Frozen() bool {
	return r.frozen.Load()
}

// Clone returns an unfrozen copy carrying every registration of r.
func (r *Registry) Clone() *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c := &Registry{
		funcs:        make(map[pair]Func, len(r.funcs)),
		order:        append([]pair(nil), r.order...),
		capabilities: append([]reflect.Type(nil), r.capabilities...),
	}

	for k, v := range r.funcs {
		c.funcs[k] = v
	}

	return c
}

// Resolve finds the conversion from src to dst.
func (r *Registry) Resolve(src, dst reflect.Type) (Func, error) {
	if src == nil || dst == nil {
		return nil, &NoConversionError{Src: src, Dst: dst}
	}

	if src == dst {
		return identity, nil
	}

	key := pair{src: src, dst: dst}

	if fn, ok := r.cache.Load(key); ok {
		return fn.(Func), nil
	}

	r.mu.RLock()
	fn := r.resolve(src, dst)
	r.mu.RUnlock()

	if fn == nil {
		return nil, &NoConversionError{Src: src, Dst: dst}
	}

	// Results are only memoized once the registry can no longer change.
	if r.frozen.Load() {
		r.cache.Store(key, fn)
	}

	return fn, nil
}

// Convert converts v into dst. A nil v converts to nil.
func (r *Registry) Convert(v any, dst reflect.Type) (any, error) {
	if v == nil {
		return nil, nil
	}

	fn, err := r.Resolve(reflect.TypeOf(v), dst)
	if err != nil {
		return nil, err
	}

	return fn(v)
}

func (r *Registry) resolve(src, dst reflect.Type) Func {
	if fn := r.lookup(src, dst); fn != nil {
		return fn
	}

	// One chained hop: src -> X -> dst, X taken in registration order.
	for _, candidate := range r.candidates(src) {
		for _, p := range r.order {
			if p.src != candidate || p.dst == dst || p.dst == src {
				continue
			}

			second := r.lookup(p.dst, dst)
			if second == nil {
				continue
			}

			first := adapt(candidate, r.funcs[p])

			return func(v any) (any, error) {
				mid, err := first(v)
				if err != nil {
					return nil, err
				}

				return second(mid)
			}
		}
	}

	return nil
}

// lookup tries every candidate of src against dst without chaining.
func (r *Registry) lookup(src, dst reflect.Type) Func {
	for _, candidate := range r.candidates(src) {
		if fn, ok := r.funcs[pair{src: candidate, dst: dst}]; ok {
			return adapt(candidate, fn)
		}
	}

	return nil
}

func (r *Registry) candidates(src reflect.Type) []reflect.Type {
	out := []reflect.Type{src}

	if src.Kind() != reflect.Interface && src.Implements(EnumType) {
		out = append(out, EnumType)
	}

	for _, capability := range r.capabilities {
		if capability != src && src.Implements(capability) {
			out = append(out, capability)
		}
	}

	if canonical := canonicalType(src); canonical != nil && canonical != src {
		out = append(out, canonical)
	}

	return out
}

// adapt converts the value into a concrete candidate type before calling fn, so a
// func registered for string also accepts a named string type.
func adapt(candidate reflect.Type, fn Func) Func {
	if candidate.Kind() == reflect.Interface {
		return fn
	}

	return func(v any) (any, error) {
		rv := reflect.ValueOf(v)
		if rv.IsValid() && rv.Type() != candidate && rv.Type().ConvertibleTo(candidate) {
			v = rv.Convert(candidate).Interface()
		}

		return fn(v)
	}
}

func identity(v any) (any, error) {
	return v, nil
}

func containsType(list []reflect.Type, t reflect.Type) bool {
	for _, item := range list {
		if item == t {
			return true
		}
	}

	return false
}
