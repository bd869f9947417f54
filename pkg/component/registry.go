package component

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/warden/pkg/domain"
)

// Entry is the body of a component. It must not send on out after returning.
type Entry func(ctx context.Context, in <-chan domain.Command, out chan<- domain.Response) error

var (
	mu      sync.RWMutex
	entries = make(map[string]Entry)
)

// Register makes an entry available under name.
// It panics if name is empty, entry is nil, or name is already taken.
func Register(name string, entry Entry) {
	mu.Lock()
	defer mu.Unlock()

	if name == "" {
		panic("component: Register with empty name")
	}
	if entry == nil {
		panic("component: Register entry is nil")
	}
	if _, dup := entries[name]; dup {
		panic("component: Register called twice for " + name)
	}
	entries[name] = entry
}

// Lookup returns the entry registered under name.
func Lookup(name string) (Entry, error) {
	mu.RLock()
	defer mu.RUnlock()

	entry, ok := entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownComponent, name)
	}
	return entry, nil
}

// Names lists registered component names in sorted order.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
