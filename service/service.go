// Package service exposes clocks through capability-gated invocations:
// clock/follow, clock/unfollow, clock/following, clock/advance and
// clock/head.
package service

import (
	"context"
	"fmt"

	blocks "github.com/ipfs/go-block-format"
	"github.com/ipfs/go-cid"
	logging "github.com/ipfs/go-log/v2"

	"github.com/storacha/w3clock/capability"
	"github.com/storacha/w3clock/clock"
	"github.com/storacha/w3clock/principal"
)

var log = logging.Logger("service")

// Clocks is the clock-level API the service drives. *clock.Router
// implements it.
type Clocks interface {
	Follow(ctx context.Context, clk, target, emitter principal.DID) error
	Unfollow(ctx context.Context, clk, target, emitter principal.DID) error
	Following(ctx context.Context, clk principal.DID) ([]clock.Entry, error)
	Advance(ctx context.Context, clk, emitter principal.DID, event cid.Cid, blks []blocks.Block) ([]cid.Cid, error)
	Head(ctx context.Context, clk principal.DID) ([]cid.Cid, error)
}

var _ Clocks = (*clock.Router)(nil)

// Result is the outcome of a successful invocation. Following is set for
// clock/following; Head for clock/advance and clock/head.
type Result struct {
	Following []clock.Entry
	Head      []cid.Cid
}

type Service struct {
	clocks Clocks
}

func New(clocks Clocks) *Service {
	return &Service{clocks: clocks}
}

// Invoke authorizes inv, resolves its target and emitter, and executes it.
// Authorization failures are *capability.Error values and nothing is
// mutated.
func (s *Service) Invoke(ctx context.Context, inv capability.Invocation) (Result, error) {
	if err := capability.Authorize(&inv); err != nil {
		log.Infow("invocation rejected", "issuer", inv.Issuer, "capability", inv.Capability.String(), "error", err)
		return Result{}, err
	}
	p := capability.Resolve(inv)
	log.Debugw("invoke", "ability", inv.Capability.Can, "clock", p.Clock, "target", p.Target, "emitter", p.Emitter)

	switch inv.Capability.Can {
	case capability.Follow:
		return Result{}, s.clocks.Follow(ctx, p.Clock, p.Target, p.Emitter)
	case capability.Unfollow:
		return Result{}, s.clocks.Unfollow(ctx, p.Clock, p.Target, p.Emitter)
	case capability.Following:
		entries, err := s.clocks.Following(ctx, p.Clock)
		if err != nil {
			return Result{}, err
		}
		return Result{Following: entries}, nil
	case capability.Advance:
		event, err := inv.Capability.Event()
		if err != nil {
			return Result{}, err
		}
		head, err := s.clocks.Advance(ctx, p.Clock, p.Emitter, event, inv.Blocks)
		if err != nil {
			return Result{}, err
		}
		return Result{Head: head}, nil
	case capability.Head:
		head, err := s.clocks.Head(ctx, p.Clock)
		if err != nil {
			return Result{}, err
		}
		return Result{Head: head}, nil
	default:
		return Result{}, &capability.Error{
			Kind:    capability.KindSchema,
			Name:    capability.NameUnknownAbility,
			Message: fmt.Sprintf("%s cannot be invoked", inv.Capability.Can),
		}
	}
}
