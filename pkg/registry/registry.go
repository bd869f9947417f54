// Package registry keeps the set of drivers a process supervises, keyed by name.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/warden/pkg/domain"
)

// Driver is the part of a supervised component the control surfaces need.
type Driver interface {
	Name() string
	Kickstart(ctx context.Context) error
	Status() domain.DriverStatus
	Close(ctx context.Context) error
}

// Registry manages the running drivers.
type Registry struct {
	mu      sync.RWMutex
	drivers map[string]Driver
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		drivers: make(map[string]Driver),
	}
}

// Register adds a driver. Names are unique; a second driver with the same
// name is rejected with domain.ErrDuplicateDriver.
func (r *Registry) Register(d Driver) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.drivers[d.Name()]; ok {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateDriver, d.Name())
	}
	r.drivers[d.Name()] = d
	return nil
}

// Get looks up a driver by name.
func (r *Registry) Get(name string) (Driver, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.drivers[name]
	return d, ok
}

// Remove forgets a driver without closing it.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.drivers, name)
}

// List returns the drivers sorted by name.
func (r *Registry) List() []Driver {
	r.mu.RLock()
	list := make([]Driver, 0, len(r.drivers))
	for _, d := range r.drivers {
		list = append(list, d)
	}
	r.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool { return list[i].Name() < list[j].Name() })
	return list
}

// Statuses snapshots every driver, sorted by name.
func (r *Registry) Statuses() []domain.DriverStatus {
	list := r.List()
	out := make([]domain.DriverStatus, 0, len(list))
	for _, d := range list {
		out = append(out, d.Status())
	}
	return out
}

// Kickstart restarts the named driver's worker.
func (r *Registry) Kickstart(ctx context.Context, name string) error {
	d, ok := r.Get(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return d.Kickstart(ctx)
}

// CloseAll closes and removes every driver, collecting their errors.
func (r *Registry) CloseAll(ctx context.Context) error {
	r.mu.Lock()
	drivers := r.drivers
	r.drivers = make(map[string]Driver)
	r.mu.Unlock()

	var errs []error
	for name, d := range drivers {
		if err := d.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// ErrNotFound is returned for names no driver is registered under.
var ErrNotFound = errors.New("driver not found")
