// Package durable provides keyed, individually serialized state holders on a
// shared datastore.
//
// A Namespace hands out one Object per key, created on first use. Each Object
// owns an exclusive scope: mutations run one at a time and see every earlier
// mutation, while reads may run concurrently with each other. All objects of
// a Namespace persist into the same go-datastore under disjoint key prefixes,
// so state survives a process restart.
package durable

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"github.com/ipfs/go-datastore"
	"golang.org/x/sync/semaphore"

	"github.com/storacha/w3clock/codec"
)

// maxShared bounds concurrent readers of one object. Exclusive access takes
// the whole weight.
const maxShared = 1 << 16

var ErrClosed = errors.New("durable: namespace closed")

// Namespace maps keys to lazily created objects.
type Namespace struct {
	ds     datastore.Datastore
	prefix datastore.Key

	mu      sync.Mutex
	objects map[string]*Object
	closed  bool
}

// NewNamespace returns a namespace storing objects under prefix in ds.
func NewNamespace(ds datastore.Datastore, prefix string) *Namespace {
	return &Namespace{
		ds:      ds,
		prefix:  datastore.NewKey(prefix),
		objects: make(map[string]*Object),
	}
}

// Get returns the object for key, creating it if needed. Every call with the
// same key returns the same object.
func (n *Namespace) Get(key string) (*Object, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil, ErrClosed
	}
	if o, ok := n.objects[key]; ok {
		return o, nil
	}
	o := &Object{
		key: key,
		sem: semaphore.NewWeighted(maxShared),
		storage: &Storage{
			ds:   n.ds,
			base: n.prefix.ChildString(url.PathEscape(key)),
		},
	}
	n.objects[key] = o
	return o, nil
}

// Len returns the number of resident objects.
func (n *Namespace) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.objects)
}

// Close stops handing out objects. It does not close the datastore.
func (n *Namespace) Close() {
	n.mu.Lock()
	n.closed = true
	n.mu.Unlock()
}

// Object is the state holder for one key.
type Object struct {
	key     string
	sem     *semaphore.Weighted
	storage *Storage
}

func (o *Object) Key() string { return o.key }

// Exclusive runs fn with no other Exclusive or Shared call in progress on o.
// Waiting is abandoned when ctx is done.
func (o *Object) Exclusive(ctx context.Context, fn func(*Storage) error) error {
	if err := o.sem.Acquire(ctx, maxShared); err != nil {
		return err
	}
	defer o.sem.Release(maxShared)
	return fn(o.storage)
}

// Shared runs fn concurrently with other Shared calls but never alongside an
// Exclusive one.
func (o *Object) Shared(ctx context.Context, fn func(*Storage) error) error {
	if err := o.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer o.sem.Release(1)
	return fn(o.storage)
}

// Storage is an object's view of the datastore. Values are CBOR documents.
type Storage struct {
	ds   datastore.Datastore
	base datastore.Key
}

func (s *Storage) key(name string) datastore.Key {
	return s.base.ChildString(name)
}

// Get decodes the value stored under name into v. It reports false, and
// leaves v untouched, when nothing is stored.
func (s *Storage) Get(ctx context.Context, name string, v any) (bool, error) {
	data, err := s.ds.Get(ctx, s.key(name))
	if errors.Is(err, datastore.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("durable: get %s: %w", s.key(name), err)
	}
	if err := codec.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("durable: decode %s: %w", s.key(name), err)
	}
	return true, nil
}

// Put encodes v and stores it under name.
func (s *Storage) Put(ctx context.Context, name string, v any) error {
	data, err := codec.Marshal(v)
	if err != nil {
		return fmt.Errorf("durable: encode %s: %w", s.key(name), err)
	}
	if err := s.ds.Put(ctx, s.key(name), data); err != nil {
		return fmt.Errorf("durable: put %s: %w", s.key(name), err)
	}
	return nil
}
