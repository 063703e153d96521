package service

import (
	"context"
	"fmt"
	"sync"
)

// Def is a typed Provider. Handlers use From to pull the typed instance out
// of the Services record they receive.
type Def[T any] struct {
	name    string
	produce func(ctx context.Context, r *Registry) (T, error)
}

// Define declares a service called name produced by fn.
func Define[T any](name string, fn func(ctx context.Context, r *Registry) (T, error)) *Def[T] {
	return &Def[T]{name: name, produce: fn}
}

// Value declares a service that always produces v.
func Value[T any](name string, v T) *Def[T] {
	return Define(name, func(context.Context, *Registry) (T, error) { return v, nil })
}

// ServiceName implements Provider.
func (d *Def[T]) ServiceName() string {
	return d.name
}

// Produce implements Provider.
func (d *Def[T]) Produce(ctx context.Context, r *Registry) (any, error) {
	return d.produce(ctx, r)
}

// From extracts this service's instance from a resolved record.
func (d *Def[T]) From(s Services) (T, error) {
	var zero T
	raw, ok := s[d.name]
	if !ok {
		return zero, fmt.Errorf("%w: %q not in resolved services", ErrServiceNotFound, d.name)
	}
	v, ok := raw.(T)
	if !ok {
		return zero, fmt.Errorf("service %q: instance is %T, want %T", d.name, raw, zero)
	}
	return v, nil
}

// MustFrom is From that panics; for handlers whose endpoint declares d.
func (d *Def[T]) MustFrom(s Services) T {
	v, err := d.From(s)
	if err != nil {
		panic(err)
	}
	return v
}

// Resolve produces this service through r.
func (d *Def[T]) Resolve(ctx context.Context, r *Registry) (T, error) {
	var zero T
	raw, err := r.Get(ctx, d.name)
	if err != nil {
		return zero, err
	}
	v, ok := raw.(T)
	if !ok {
		return zero, fmt.Errorf("service %q: instance is %T, want %T", d.name, raw, zero)
	}
	return v, nil
}

// Singleton wraps p so its first successful instance is reused. Failed
// productions are not cached and will be retried on the next resolution.
func Singleton(p Provider) Provider {
	return &singleton{Provider: p}
}

type singleton struct {
	Provider
	mu       sync.Mutex
	done     bool
	instance any
}

func (s *singleton) Produce(ctx context.Context, r *Registry) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done {
		return s.instance, nil
	}
	v, err := s.Provider.Produce(ctx, r)
	if err != nil {
		return nil, err
	}
	s.instance = v
	s.done = true
	return v, nil
}
