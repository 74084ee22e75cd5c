// Package debugreg holds handles published for manual inspection. It stands
// in for a page-global variable: publishing is an explicit call and names
// are write-once.
package debugreg

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	ErrAlreadyPublished = errors.New("debug handle already published")
	ErrNotFound         = errors.New("debug handle not found")
	ErrInvalidName      = errors.New("debug handle name is required")
)

// Snapshotter values report their own JSON view instead of being encoded
// directly.
type Snapshotter interface {
	DebugSnapshot() any
}

// Driver values can be connected and disconnected over the debug endpoint.
type Driver interface {
	Connect()
	Disconnect()
}

type Registry struct {
	mu      sync.RWMutex
	handles map[string]any
}

func New() *Registry {
	return &Registry{handles: make(map[string]any)}
}

func (r *Registry) Publish(name string, value any) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrInvalidName
	}
	if value == nil {
		return fmt.Errorf("publish %q: nil value", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handles[name]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyPublished, name)
	}
	r.handles[name] = value
	return nil
}

func (r *Registry) Lookup(name string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	value, ok := r.handles[name]
	return value, ok
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.handles))
	for name := range r.handles {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}
