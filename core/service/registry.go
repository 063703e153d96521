// Package service provides the registry that supplies named collaborators
// to endpoint handlers.
//
// A Registry holds at most one Descriptor per service name: the first
// registration wins and later registrations under the same name are
// discarded. Resolving a name invokes the stored descriptor's producer
// afresh on every call; producers that must hand out a single instance
// should be wrapped with Singleton.
//
// The Registry is an explicit container. Create one per process and pass
// it to whatever executes endpoints.
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// ErrServiceNotFound is returned when resolving a name nothing registered.
var ErrServiceNotFound = errors.New("service not found")

// Provider declares a named service and how to produce its instance.
type Provider interface {
	// ServiceName is unique within a registry.
	ServiceName() string
	// Produce builds (or returns) the service instance.
	Produce(ctx context.Context, r *Registry) (any, error)
}

// Descriptor is a Provider bound to the registry it was created from.
type Descriptor struct {
	name     string
	provider Provider
	registry *Registry
}

// Name returns the service name.
func (d *Descriptor) Name() string {
	return d.name
}

// Produce invokes the provider against its owning registry.
func (d *Descriptor) Produce(ctx context.Context) (any, error) {
	return d.provider.Produce(ctx, d.registry)
}

// Services is the named record of produced instances handed to handlers.
type Services map[string]any

// Registry maps service names to descriptors.
type Registry struct {
	mu          sync.RWMutex
	descriptors map[string]*Descriptor
	logger      zerolog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for registration diagnostics.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger.With().Str("component", "registry").Logger()
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		descriptors: make(map[string]*Descriptor),
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Bind creates a descriptor for p tied to this registry without storing it.
func (r *Registry) Bind(p Provider) *Descriptor {
	return &Descriptor{name: p.ServiceName(), provider: p, registry: r}
}

// Add stores p unless a descriptor with the same name exists.
// It reports whether p was stored.
func (r *Registry) Add(p Provider) bool {
	d := r.Bind(p)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.descriptors[d.name]; exists {
		r.logger.Debug().Str("service", d.name).Msg("service already registered, keeping first descriptor")
		return false
	}
	r.descriptors[d.name] = d
	r.logger.Debug().Str("service", d.name).Msg("service registered")
	return true
}

// Register adds each provider (if absent) and resolves the stored
// descriptor for its name, in order. The returned record always reflects
// the first-ever registration for each name.
func (r *Registry) Register(ctx context.Context, providers ...Provider) (Services, error) {
	out := make(Services, len(providers))
	for _, p := range providers {
		r.Add(p)
		name := p.ServiceName()
		instance, err := r.Get(ctx, name)
		if err != nil {
			return nil, err
		}
		out[name] = instance
	}
	return out, nil
}

// Has reports whether name is registered. It never produces an instance.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.descriptors[name]
	return ok
}

// Get produces the instance for name.
func (r *Registry) Get(ctx context.Context, name string) (any, error) {
	r.mu.RLock()
	d, ok := r.descriptors[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrServiceNotFound, name)
	}

	instance, err := d.Produce(ctx)
	if err != nil {
		return nil, fmt.Errorf("produce service %q: %w", name, err)
	}
	return instance, nil
}

// GetMany resolves names one after another in the given order.
// Resolution stops at the first failure. No dependency graph is tracked,
// so producers must not resolve each other cyclically.
func (r *Registry) GetMany(ctx context.Context, names ...string) (Services, error) {
	out := make(Services, len(names))
	for _, name := range names {
		instance, err := r.Get(ctx, name)
		if err != nil {
			return nil, err
		}
		out[name] = instance
	}
	return out, nil
}

// Names returns the registered service names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.descriptors))
	for name := range r.descriptors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered services.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.descriptors)
}
