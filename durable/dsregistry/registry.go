// Package dsregistry selects a go-datastore implementation by name at run
// time. Backends register themselves in init; the built-in ones are memory,
// leveldb and badger.
package dsregistry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ipfs/go-datastore"
)

// Backend opens a datastore.
type Backend struct {
	Name        string
	Description string

	// Persistent backends require a path.
	Persistent bool

	// Open constructs the datastore rooted at path. It returns an optional
	// close function.
	Open func(path string) (datastore.Batching, func() error, error)
}

var (
	mu       sync.RWMutex
	backends = map[string]Backend{}
)

// Register registers a backend.
func Register(b Backend) error {
	if b.Name == "" {
		return fmt.Errorf("dsregistry: backend name is required")
	}
	if b.Open == nil {
		return fmt.Errorf("dsregistry: backend %q missing Open", b.Name)
	}

	mu.Lock()
	defer mu.Unlock()
	if _, exists := backends[b.Name]; exists {
		return fmt.Errorf("dsregistry: backend %q already registered", b.Name)
	}
	backends[b.Name] = b
	return nil
}

// MustRegister is like Register but panics on error.
func MustRegister(b Backend) {
	if err := Register(b); err != nil {
		panic(err)
	}
}

// List returns all backends, sorted by name.
func List() []Backend {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]Backend, 0, len(backends))
	for _, b := range backends {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns backend names, sorted.
func Names() []string {
	bs := List()
	n := make([]string, 0, len(bs))
	for _, b := range bs {
		n = append(n, b.Name)
	}
	return n
}

// Open opens the named backend. The returned close function is never nil.
func Open(name, path string) (datastore.Batching, func() error, error) {
	mu.RLock()
	b, ok := backends[name]
	mu.RUnlock()
	if !ok {
		return nil, nil, fmt.Errorf("dsregistry: unknown datastore %q (have %v)", name, Names())
	}
	if b.Persistent && path == "" {
		return nil, nil, fmt.Errorf("dsregistry: datastore %q requires a path", name)
	}
	ds, closeFn, err := b.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("dsregistry: open %s: %w", name, err)
	}
	if closeFn == nil {
		closeFn = func() error { return nil }
	}
	return ds, closeFn, nil
}
