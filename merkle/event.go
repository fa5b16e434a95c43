// Package merkle implements the merkle clock: a causal log whose entries are
// content-addressed events linking to their parents, and whose head is the
// set of events no other known event descends from.
package merkle

import (
	"context"
	"errors"
	"fmt"

	blocks "github.com/ipfs/go-block-format"
	"github.com/ipfs/go-cid"

	"github.com/storacha/w3clock/cidutil"
	"github.com/storacha/w3clock/codec"
	"github.com/storacha/w3clock/storage"
)

var (
	// ErrEventNotFound means a block required by the merge was absent.
	ErrEventNotFound = errors.New("merkle: event not found")
	// ErrInvalidEvent means a block is not a well-formed event.
	ErrInvalidEvent = errors.New("merkle: invalid event")
)

// Event is a single clock entry. Data is opaque to the clock.
type Event struct {
	Parents []codec.Link `cbor:"parents"`
	Data    any          `cbor:"data"`
}

// EventBlock is an event together with its encoded bytes and link.
type EventBlock struct {
	Event
	blk blocks.Block
}

func (b *EventBlock) Cid() cid.Cid          { return b.blk.Cid() }
func (b *EventBlock) Block() blocks.Block   { return b.blk }
func (b *EventBlock) ParentCIDs() []cid.Cid { return codec.CIDs(b.Parents) }

// NewEventBlock encodes an event with the given parents and data.
func NewEventBlock(parents []cid.Cid, data any) (*EventBlock, error) {
	ev := Event{Parents: codec.Links(parents), Data: data}
	raw, err := codec.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("merkle: encode event: %w", err)
	}
	id, err := cidutil.DagCBORSHA256(raw)
	if err != nil {
		return nil, err
	}
	blk, err := blocks.NewBlockWithCid(raw, id)
	if err != nil {
		return nil, err
	}
	return &EventBlock{Event: ev, blk: blk}, nil
}

// DecodeEventBlock decodes blk as an event. The block's CID must be an event
// link and its bytes must hash to it.
func DecodeEventBlock(blk blocks.Block) (*EventBlock, error) {
	if !cidutil.IsEventLink(blk.Cid()) {
		return nil, fmt.Errorf("%w: %s is not a dag-cbor sha2-256 CIDv1", ErrInvalidEvent, blk.Cid())
	}
	if err := storage.Verify(blk.Cid(), blk.RawData()); err != nil {
		return nil, err
	}
	var ev Event
	if err := codec.Unmarshal(blk.RawData(), &ev); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidEvent, blk.Cid(), err)
	}
	return &EventBlock{Event: ev, blk: blk}, nil
}

// EventFetcher reads and decodes events from a block fetcher.
type EventFetcher struct {
	blocks storage.Fetcher
}

func NewEventFetcher(f storage.Fetcher) *EventFetcher {
	return &EventFetcher{blocks: f}
}

func (f *EventFetcher) Get(ctx context.Context, id cid.Cid) (*EventBlock, error) {
	blk, err := f.blocks.Get(ctx, id)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s: %v", ErrEventNotFound, id, err)
		}
		return nil, err
	}
	return DecodeEventBlock(blk)
}
