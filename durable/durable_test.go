package durable

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ipfs/go-datastore"
	dssync "github.com/ipfs/go-datastore/sync"
	"github.com/stretchr/testify/require"
)

func newNamespace() (*Namespace, datastore.Datastore) {
	ds := dssync.MutexWrap(datastore.NewMapDatastore())
	return NewNamespace(ds, "/test"), ds
}

func TestNamespace_SameObjectPerKey(t *testing.T) {
	ns, _ := newNamespace()
	a, err := ns.Get("did:example:a")
	require.NoError(t, err)
	again, err := ns.Get("did:example:a")
	require.NoError(t, err)
	b, err := ns.Get("did:example:b")
	require.NoError(t, err)

	require.Same(t, a, again)
	require.NotSame(t, a, b)
	require.Equal(t, 2, ns.Len())
}

func TestNamespace_Closed(t *testing.T) {
	ns, _ := newNamespace()
	ns.Close()
	_, err := ns.Get("x")
	require.ErrorIs(t, err, ErrClosed)
}

func TestStorage_RoundTripAndPersistence(t *testing.T) {
	ctx := context.Background()
	ns, ds := newNamespace()
	o, err := ns.Get("did:example:a")
	require.NoError(t, err)

	err = o.Shared(ctx, func(s *Storage) error {
		var v []string
		ok, err := s.Get(ctx, "list", &v)
		require.False(t, ok)
		return err
	})
	require.NoError(t, err)

	require.NoError(t, o.Exclusive(ctx, func(s *Storage) error {
		return s.Put(ctx, "list", []string{"x", "y"})
	}))

	// A fresh namespace over the same datastore sees the state.
	o2, err := NewNamespace(ds, "/test").Get("did:example:a")
	require.NoError(t, err)
	require.NoError(t, o2.Shared(ctx, func(s *Storage) error {
		var v []string
		ok, err := s.Get(ctx, "list", &v)
		require.True(t, ok)
		require.Equal(t, []string{"x", "y"}, v)
		return err
	}))

	// Keys of other objects are disjoint.
	other, err := ns.Get("did:example:b")
	require.NoError(t, err)
	require.NoError(t, other.Shared(ctx, func(s *Storage) error {
		var v []string
		ok, err := s.Get(ctx, "list", &v)
		require.False(t, ok)
		return err
	}))
}

func TestObject_ExclusiveSerializes(t *testing.T) {
	ctx := context.Background()
	ns, _ := newNamespace()
	o, err := ns.Get("counter")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := o.Exclusive(ctx, func(s *Storage) error {
				var n int
				if _, err := s.Get(ctx, "n", &n); err != nil {
					return err
				}
				return s.Put(ctx, "n", n+1)
			})
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	var n int
	require.NoError(t, o.Shared(ctx, func(s *Storage) error {
		_, err := s.Get(ctx, "n", &n)
		return err
	}))
	require.Equal(t, 50, n)
}

func TestObject_ExclusiveHonoursContext(t *testing.T) {
	ns, _ := newNamespace()
	o, err := ns.Get("busy")
	require.NoError(t, err)

	held := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = o.Exclusive(context.Background(), func(*Storage) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = o.Shared(ctx, func(*Storage) error { return nil })
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
