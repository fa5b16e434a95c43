package clock

import (
	"context"
	"errors"
	"fmt"

	blocks "github.com/ipfs/go-block-format"
	"github.com/ipfs/go-cid"
	logging "github.com/ipfs/go-log/v2"

	"github.com/storacha/w3clock/cidutil"
	"github.com/storacha/w3clock/codec"
	"github.com/storacha/w3clock/durable"
	"github.com/storacha/w3clock/merkle"
	"github.com/storacha/w3clock/metrics"
	"github.com/storacha/w3clock/principal"
	"github.com/storacha/w3clock/storage"
)

var log = logging.Logger("clock")

// ErrUnauthorizedAdvance is returned in strict mode when an advance is
// attributed to an emitter the clock does not follow for that target.
var ErrUnauthorizedAdvance = errors.New("clock: emitter is not followed for target")

// Actor is the state machine of one clock: its follow graph, its subscriber
// graph and its head. Mutations are serialized; reads see a consistent
// snapshot. Every mutation computes the new state in memory and commits it
// with a single write, so a failed operation leaves the stored state as it
// was.
type Actor struct {
	did    principal.DID
	obj    *durable.Object
	source storage.Fetcher
	cache  storage.Store
	strict bool
}

func (a *Actor) DID() principal.DID { return a.did }

// Follow records that advances to target attributed to emitter are accepted.
func (a *Actor) Follow(ctx context.Context, target, emitter principal.DID) error {
	return a.updateGraph(ctx, keyFollowing, func(g graph) bool { return g.add(target, emitter) })
}

// Unfollow removes a follow. Removing an absent follow is a no-op.
func (a *Actor) Unfollow(ctx context.Context, target, emitter principal.DID) error {
	return a.updateGraph(ctx, keyFollowing, func(g graph) bool { return g.remove(target, emitter) })
}

// Following lists the follow graph sorted by target, then emitter.
func (a *Actor) Following(ctx context.Context) ([]Entry, error) {
	return a.readGraph(ctx, keyFollowing)
}

// Subscribe registers subscriber for advances by emitter.
func (a *Actor) Subscribe(ctx context.Context, subscriber, emitter principal.DID) error {
	return a.updateGraph(ctx, keySubscribers, func(g graph) bool { return g.add(subscriber, emitter) })
}

// Unsubscribe removes a subscription. Removing an absent one is a no-op.
func (a *Actor) Unsubscribe(ctx context.Context, subscriber, emitter principal.DID) error {
	return a.updateGraph(ctx, keySubscribers, func(g graph) bool { return g.remove(subscriber, emitter) })
}

// Subscribers lists the subscriber graph sorted by subscriber, then emitter.
func (a *Actor) Subscribers(ctx context.Context) ([]Entry, error) {
	return a.readGraph(ctx, keySubscribers)
}

// Head returns the current head. A clock that was never advanced has an
// empty head.
func (a *Actor) Head(ctx context.Context) ([]cid.Cid, error) {
	var head []cid.Cid
	err := a.obj.Shared(ctx, func(s *durable.Storage) error {
		var err error
		head, err = loadHead(ctx, s)
		return err
	})
	return head, err
}

// Advance merges event into the head if emitter is followed for target.
//
// An advance by an emitter that is not followed leaves the head unchanged
// and returns it, or fails with ErrUnauthorizedAdvance in strict mode.
// Blocks, if given, are verified and consulted before the block source;
// blocks read from either pass through the shared cache, and the attached
// blocks of an applied advance are kept there.
func (a *Actor) Advance(ctx context.Context, target, emitter principal.DID, event cid.Cid, blks []blocks.Block) ([]cid.Cid, error) {
	if !cidutil.IsEventLink(event) {
		return nil, fmt.Errorf("%w: %s is not a dag-cbor sha2-256 CIDv1", merkle.ErrInvalidEvent, event)
	}
	var fetcher storage.Fetcher = a.source
	var attached *storage.MemoryStore
	if len(blks) > 0 {
		var err error
		attached, err = storage.NewMemoryStore(blks...)
		if err != nil {
			metrics.Advances.WithLabelValues("failed").Inc()
			return nil, fmt.Errorf("clock: attached blocks: %w", err)
		}
		fetcher = storage.NewMultiFetcher(attached, a.source)
	}
	fetcher = storage.WithCache(fetcher, a.cache)

	var head []cid.Cid
	applied := false
	err := a.obj.Exclusive(ctx, func(s *durable.Storage) error {
		following, err := loadGraph(ctx, s, keyFollowing)
		if err != nil {
			return err
		}
		current, err := loadHead(ctx, s)
		if err != nil {
			return err
		}

		if !following.has(target, emitter) {
			log.Infow("ignoring advance from unfollowed emitter", "clock", a.did, "target", target, "emitter", emitter, "event", event)
			if a.strict {
				metrics.Advances.WithLabelValues("rejected").Inc()
				return fmt.Errorf("%w: clock %s, target %s, emitter %s", ErrUnauthorizedAdvance, a.did, target, emitter)
			}
			metrics.Advances.WithLabelValues("ignored").Inc()
			head = current
			return nil
		}

		next, err := merkle.Advance(ctx, fetcher, current, event)
		if err != nil {
			return err
		}
		if !sameHead(current, next) {
			if err := s.Put(ctx, keyHead, codec.Links(next)); err != nil {
				return err
			}
		}
		metrics.Advances.WithLabelValues("applied").Inc()
		log.Debugw("advanced", "clock", a.did, "target", target, "emitter", emitter, "event", event, "head", next)
		head = next
		applied = true
		return nil
	})
	if err != nil && !errors.Is(err, ErrUnauthorizedAdvance) {
		metrics.Advances.WithLabelValues("failed").Inc()
	}
	if applied && attached != nil {
		for _, b := range blks {
			if err := a.cache.Put(ctx, b); err != nil {
				log.Warnw("caching attached block", "cid", b.Cid(), "error", err)
			}
		}
	}
	return head, err
}

// Handle executes cmd against this actor. The switch is exhaustive over the
// closed command set.
func (a *Actor) Handle(ctx context.Context, cmd Command) (Result, error) {
	switch c := cmd.(type) {
	case FollowCmd:
		return Result{}, a.Follow(ctx, c.Target, c.Emitter)
	case UnfollowCmd:
		return Result{}, a.Unfollow(ctx, c.Target, c.Emitter)
	case FollowingCmd:
		entries, err := a.Following(ctx)
		return Result{Entries: entries}, err
	case SubscribeCmd:
		return Result{}, a.Subscribe(ctx, c.Subscriber, c.Emitter)
	case UnsubscribeCmd:
		return Result{}, a.Unsubscribe(ctx, c.Subscriber, c.Emitter)
	case SubscribersCmd:
		entries, err := a.Subscribers(ctx)
		return Result{Entries: entries}, err
	case AdvanceCmd:
		head, err := a.Advance(ctx, c.Target, c.Emitter, c.Event, c.Blocks)
		return Result{Head: head}, err
	case HeadCmd:
		head, err := a.Head(ctx)
		return Result{Head: head}, err
	default:
		name := "<nil>"
		if cmd != nil {
			name = string(cmd.Method())
		}
		return Result{}, &DispatchError{Method: name}
	}
}

func (a *Actor) updateGraph(ctx context.Context, key string, mutate func(graph) bool) error {
	return a.obj.Exclusive(ctx, func(s *durable.Storage) error {
		g, err := loadGraph(ctx, s, key)
		if err != nil {
			return err
		}
		if !mutate(g) {
			return nil
		}
		return s.Put(ctx, key, g.entries())
	})
}

func (a *Actor) readGraph(ctx context.Context, key string) ([]Entry, error) {
	var out []Entry
	err := a.obj.Shared(ctx, func(s *durable.Storage) error {
		g, err := loadGraph(ctx, s, key)
		if err != nil {
			return err
		}
		out = g.entries()
		return nil
	})
	return out, err
}

func loadGraph(ctx context.Context, s *durable.Storage, key string) (graph, error) {
	var entries []Entry
	if _, err := s.Get(ctx, key, &entries); err != nil {
		return nil, err
	}
	return graphFrom(entries), nil
}

func loadHead(ctx context.Context, s *durable.Storage) ([]cid.Cid, error) {
	var links []codec.Link
	if _, err := s.Get(ctx, keyHead, &links); err != nil {
		return nil, err
	}
	return codec.CIDs(links), nil
}

func sameHead(a, b []cid.Cid) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equals(b[i]) {
			return false
		}
	}
	return true
}
