package merkle

import (
	"context"

	"github.com/ipfs/go-cid"

	"github.com/storacha/w3clock/storage"
)

// Advance merges event into head and returns the new head.
//
// Rules, in order:
// - an event already in head leaves head unchanged;
// - every head entry that event descends from is replaced by event;
// - an event that some head entry already descends from leaves head unchanged;
// - otherwise event is concurrent with head and is appended.
//
// The result depends only on head, event and the event graph, so applying
// the same event twice yields the same head. Head is never modified in place.
func Advance(ctx context.Context, blocks storage.Fetcher, head []cid.Cid, event cid.Cid) ([]cid.Cid, error) {
	for _, h := range head {
		if h.Equals(event) {
			return head, nil
		}
	}

	events := NewEventFetcher(blocks)

	next := make([]cid.Cid, 0, len(head)+1)
	changed := false
	for _, h := range head {
		ok, err := contains(ctx, events, event, h)
		if err != nil {
			return nil, err
		}
		if ok {
			if !changed {
				next = append(next, event)
				changed = true
			}
			continue
		}
		next = append(next, h)
	}
	if changed {
		return next, nil
	}

	for _, h := range head {
		ok, err := contains(ctx, events, h, event)
		if err != nil {
			return nil, err
		}
		if ok {
			return head, nil
		}
	}

	out := make([]cid.Cid, 0, len(head)+1)
	out = append(out, head...)
	return append(out, event), nil
}

// contains reports whether a descends from b, i.e. b is reachable from a
// through parent links. Ancestors shared with b's parents are not walked.
func contains(ctx context.Context, events *EventFetcher, a, b cid.Cid) (bool, error) {
	if a.Equals(b) {
		return true, nil
	}
	aev, err := events.Get(ctx, a)
	if err != nil {
		return false, err
	}
	bev, err := events.Get(ctx, b)
	if err != nil {
		return false, err
	}

	stop := cid.NewSet()
	for _, p := range bev.ParentCIDs() {
		stop.Add(p)
	}

	seen := cid.NewSet()
	queue := aev.ParentCIDs()
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		link := queue[0]
		queue = queue[1:]
		if link.Equals(b) {
			return true, nil
		}
		if stop.Has(link) || !seen.Visit(link) {
			continue
		}
		ev, err := events.Get(ctx, link)
		if err != nil {
			return false, err
		}
		queue = append(queue, ev.ParentCIDs()...)
	}
	return false, nil
}
