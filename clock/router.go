// Package clock hosts merkle clock actors and the protocol between them.
//
// A Router owns one Actor per clock DID, created on first use and backed by
// a shared datastore, so a restarted process reloads every clock's state.
// Operations that span clocks are issued through the Router:
// following a clock on behalf of an emitter also subscribes the follower on
// the followed clock, and advancing a clock replays the advance on every
// clock subscribed to it for that emitter.
package clock

import (
	"context"
	"fmt"

	blocks "github.com/ipfs/go-block-format"
	"github.com/ipfs/go-cid"
	"github.com/ipfs/go-datastore"

	"github.com/storacha/w3clock/durable"
	"github.com/storacha/w3clock/metrics"
	"github.com/storacha/w3clock/principal"
	"github.com/storacha/w3clock/storage"
)

// DefaultMaxDepth bounds propagation hops below the root clock.
const DefaultMaxDepth = 8

// Prefix is the datastore key prefix under which clock state is stored.
const Prefix = "/clock"

type Options struct {
	// Source provides blocks not attached to an advance, typically a
	// gateway. Nil means no blocks beyond those attached.
	Source storage.Fetcher
	// Cache sits in front of Source and is shared by every actor. Nil
	// means an LRU of storage.DefaultCacheSize blocks.
	Cache storage.Store
	// Strict makes advances by unfollowed emitters fail with
	// ErrUnauthorizedAdvance instead of being ignored.
	Strict bool
	// MaxDepth bounds propagation. Zero means DefaultMaxDepth.
	MaxDepth int
	// Transport reaches other clocks' actors. Nil means this router.
	Transport Transport
}

// Router locates clock actors by DID and runs the cross-clock protocol.
type Router struct {
	ns        *durable.Namespace
	source    storage.Fetcher
	cache     storage.Store
	strict    bool
	maxDepth  int
	transport Transport
}

var _ Transport = (*Router)(nil)

func NewRouter(ds datastore.Datastore, opts Options) (*Router, error) {
	cache := opts.Cache
	if cache == nil {
		c, err := storage.NewLRUStore(storage.DefaultCacheSize)
		if err != nil {
			return nil, err
		}
		cache = c
	}
	source := opts.Source
	if source == nil {
		source = storage.Nothing
	}
	r := &Router{
		ns:        durable.NewNamespace(ds, Prefix),
		source:    source,
		cache:     cache,
		strict:    opts.Strict,
		maxDepth:  opts.MaxDepth,
		transport: opts.Transport,
	}
	if r.maxDepth <= 0 {
		r.maxDepth = DefaultMaxDepth
	}
	if r.transport == nil {
		r.transport = r
	}
	return r, nil
}

// Actor returns the actor for clock, creating it on first use.
func (r *Router) Actor(clock principal.DID) (*Actor, error) {
	if _, err := principal.ParseDID(string(clock)); err != nil {
		return nil, err
	}
	obj, err := r.ns.Get(string(clock))
	if err != nil {
		return nil, err
	}
	metrics.ResidentActors.Set(float64(r.ns.Len()))
	return &Actor{did: clock, obj: obj, source: r.source, cache: r.cache, strict: r.strict}, nil
}

// Send dispatches cmd to the local actor of clock.
func (r *Router) Send(ctx context.Context, clock principal.DID, cmd Command) (Result, error) {
	a, err := r.Actor(clock)
	if err != nil {
		return Result{}, err
	}
	return a.Handle(ctx, cmd)
}

// Close stops creating actors.
func (r *Router) Close() { r.ns.Close() }

// Follow makes clock follow emitter's advances to target. When target is
// another clock, clock is also subscribed on target. The two steps are not
// atomic; both are idempotent, so repeating Follow repairs a partial one.
func (r *Router) Follow(ctx context.Context, clock, target, emitter principal.DID) error {
	if _, err := r.transport.Send(ctx, clock, FollowCmd{Target: target, Emitter: emitter}); err != nil {
		return err
	}
	if clock == target {
		return nil
	}
	if _, err := r.transport.Send(ctx, target, SubscribeCmd{Subscriber: clock, Emitter: emitter}); err != nil {
		return fmt.Errorf("clock: subscribe %s on %s: %w", clock, target, err)
	}
	return nil
}

// Unfollow reverses Follow. The subscription on target is removed even if
// clock had no matching follow.
func (r *Router) Unfollow(ctx context.Context, clock, target, emitter principal.DID) error {
	if _, err := r.transport.Send(ctx, clock, UnfollowCmd{Target: target, Emitter: emitter}); err != nil {
		return err
	}
	if clock == target {
		return nil
	}
	if _, err := r.transport.Send(ctx, target, UnsubscribeCmd{Subscriber: clock, Emitter: emitter}); err != nil {
		return fmt.Errorf("clock: unsubscribe %s on %s: %w", clock, target, err)
	}
	return nil
}

func (r *Router) Following(ctx context.Context, clock principal.DID) ([]Entry, error) {
	res, err := r.transport.Send(ctx, clock, FollowingCmd{})
	return res.Entries, err
}

func (r *Router) Subscribers(ctx context.Context, clock principal.DID) ([]Entry, error) {
	res, err := r.transport.Send(ctx, clock, SubscribersCmd{})
	return res.Entries, err
}

func (r *Router) Head(ctx context.Context, clock principal.DID) ([]cid.Cid, error) {
	res, err := r.transport.Send(ctx, clock, HeadCmd{})
	return res.Head, err
}

// Advance advances clock with event attributed to emitter and propagates it
// to subscribed clocks. It returns clock's resulting head.
func (r *Router) Advance(ctx context.Context, clock, emitter principal.DID, event cid.Cid, blks []blocks.Block) ([]cid.Cid, error) {
	return r.propagate(ctx, clock, emitter, event, blks)
}
