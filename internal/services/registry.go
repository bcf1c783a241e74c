// Package services holds lazily built, application-wide singletons.
//
// A service is built the first time it is requested by calling its factory
// with the owning application. The registry is owned by one application and,
// like the rest of a page session, is used from a single goroutine, so it
// takes no locks.
package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	wberrors "github.com/conneroisu/whiteboard/internal/errors"
)

// Factory builds a service for the application A.
type Factory[A any] func(app A) (any, error)

// Shutdowner is implemented by services that hold resources.
type Shutdowner interface {
	Shutdown(ctx context.Context) error
}

type descriptor[A any] struct {
	name     string
	factory  Factory[A]
	instance any
	built    bool
}

// Registry maps names to lazily built singletons.
type Registry[A any] struct {
	app      A
	services map[string]*descriptor[A]
	building []string
	created  []*descriptor[A]
}

// NewRegistry creates a registry whose factories receive app.
func NewRegistry[A any](app A) *Registry[A] {
	return &Registry[A]{
		app:      app,
		services: make(map[string]*descriptor[A]),
	}
}

// Add registers factory under name. Registering an existing name replaces it
// and drops any instance already built for it.
func (r *Registry[A]) Add(name string, factory Factory[A]) {
	r.services[name] = &descriptor[A]{name: name, factory: factory}
}

// Get returns the service registered under name, building it on first use.
// An unknown name yields (nil, nil). Requesting a service from inside its own
// factory, directly or through other services, fails with a cyclic service
// error and leaves nothing cached.
func (r *Registry[A]) Get(name string) (any, error) {
	d, ok := r.services[name]
	if !ok {
		return nil, nil
	}
	if d.built {
		return d.instance, nil
	}

	for i, b := range r.building {
		if b == name {
			return nil, wberrors.NewCyclicServiceError(name, r.building[i:])
		}
	}
	if d.factory == nil {
		return nil, fmt.Errorf("service %q has no factory", name)
	}

	r.building = append(r.building, name)
	instance, err := d.factory(r.app)
	r.building = r.building[:len(r.building)-1]

	if err != nil {
		return nil, fmt.Errorf("building service %q: %w", name, err)
	}

	d.instance = instance
	d.built = true
	r.created = append(r.created, d)

	return instance, nil
}

// Has reports whether a factory is registered under name.
func (r *Registry[A]) Has(name string) bool {
	_, ok := r.services[name]
	return ok
}

// Built reports whether the service under name has been built.
func (r *Registry[A]) Built(name string) bool {
	d, ok := r.services[name]
	return ok && d.built
}

// Names returns the registered names, sorted.
func (r *Registry[A]) Names() []string {
	names := make([]string, 0, len(r.services))
	for name := range r.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Shutdown shuts down built services in reverse creation order. Services that
// were replaced by a later Add are still shut down. Every error is collected.
func (r *Registry[A]) Shutdown(ctx context.Context) error {
	var errs []error

	for i := len(r.created) - 1; i >= 0; i-- {
		d := r.created[i]
		if s, ok := d.instance.(Shutdowner); ok {
			if err := s.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("shutting down %s: %w", d.name, err))
			}
		}
	}
	r.created = nil

	return errors.Join(errs...)
}
