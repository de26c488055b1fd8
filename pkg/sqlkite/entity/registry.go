package entity

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

var (
	ErrUnknownEntity    = errors.New("[entity] entity is not registered")
	ErrDuplicateEntity  = errors.New("[entity] entity already registered")
	errNilEntityBuilder = errors.New("[entity] builder is nil")
)

// Registry is the arena of descriptors for one dialect. Each declaration is built at
// most once, on first use, and the descriptor is shared afterwards.
type Registry struct {
	dialect string

	mu       sync.RWMutex
	builders map[string]*Builder
	built    map[string]*Descriptor
	group    singleflight.Group
}

// NewRegistry returns an empty Registry resolving overrides for dialect.
func NewRegistry(dialect string) *Registry {
	return &Registry{
		dialect:  dialect,
		builders: make(map[string]*Builder),
		built:    make(map[string]*Descriptor),
	}
}

// Register adds a declaration under its shape name.
func (r *Registry) Register(b *Builder) error {
	if b == nil {
		return errNilEntityBuilder
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.builders[b.Name()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateEntity, b.Name())
	}

	r.builders[b.Name()] = b

	return nil
}

// Get returns the descriptor for name, building it on first use.
func (r *Registry) Get(name string) (*Descriptor, error) {
	r.mu.RLock()
	d, ok := r.built[name]
	b, declared := r.builders[name]
	r.mu.RUnlock()

	if ok {
		return d, nil
	}

	if !declared {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, name)
	}

	v, err, _ := r.group.Do(name, func() (any, error) {
		r.mu.RLock()
		cached, ok := r.built[name]
		r.mu.RUnlock()

		if ok {
			return cached, nil
		}

		d, err := b.Build(r.dialect)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.built[name] = d
		r.mu.Unlock()

		return d, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*Descriptor), nil
}

// MustGet is like Get but panics on error.
func (r *Registry) MustGet(name string) *Descriptor {
	d, err := r.Get(name)
	if err != nil {
		panic(err)
	}

	return d
}
