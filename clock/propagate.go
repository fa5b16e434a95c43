package clock

import (
	"context"

	blocks "github.com/ipfs/go-block-format"
	"github.com/ipfs/go-cid"
	"go.uber.org/multierr"

	"github.com/storacha/w3clock/metrics"
	"github.com/storacha/w3clock/principal"
)

// hop is one delivery of a propagation pass.
type hop struct {
	clock principal.DID
	depth int
}

// propagate delivers an advance of target to target itself and then to every
// clock subscribed to target for emitter.
//
// Only the delivery to target can fail the call. Deliveries to subscribers
// happen after target's advance has been committed; their failures are
// logged and counted but never undo it. A clock is visited at most once per
// pass and no deeper than maxDepth hops below target.
func (r *Router) propagate(ctx context.Context, target, emitter principal.DID, event cid.Cid, blks []blocks.Block) ([]cid.Cid, error) {
	res, err := r.transport.Send(ctx, target, AdvanceCmd{Target: target, Emitter: emitter, Event: event, Blocks: blks})
	if err != nil {
		return nil, err
	}

	visited := map[principal.DID]struct{}{target: {}}
	var errs error
	queue := []hop{{clock: target}}
	for len(queue) > 0 {
		h := queue[0]
		queue = queue[1:]

		// Only the clock whose own events these are fans out.
		if h.clock != target {
			continue
		}
		subs, err := r.transport.Send(ctx, h.clock, SubscribersCmd{})
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		for _, e := range subs.Entries {
			if !e.hasEmitter(emitter) {
				continue
			}
			if _, seen := visited[e.Clock]; seen || h.depth+1 > r.maxDepth {
				metrics.PropagationHops.WithLabelValues("skipped").Inc()
				log.Warnw("skipping propagation hop", "target", target, "subscriber", e.Clock, "depth", h.depth+1, "seen", seen)
				continue
			}
			visited[e.Clock] = struct{}{}

			if _, err := r.transport.Send(ctx, e.Clock, AdvanceCmd{Target: target, Emitter: emitter, Event: event}); err != nil {
				metrics.PropagationHops.WithLabelValues("failed").Inc()
				errs = multierr.Append(errs, err)
				continue
			}
			metrics.PropagationHops.WithLabelValues("delivered").Inc()
			queue = append(queue, hop{clock: e.Clock, depth: h.depth + 1})
		}
	}
	if errs != nil {
		log.Warnw("propagation incomplete", "target", target, "emitter", emitter, "event", event, "failures", len(multierr.Errors(errs)), "error", errs)
	}
	return res.Head, nil
}
