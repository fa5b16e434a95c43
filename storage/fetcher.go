package storage

import (
	"context"

	blocks "github.com/ipfs/go-block-format"
	"github.com/ipfs/go-cid"
)

// Fetcher retrieves content-addressed blocks.
//
// Contract:
// - Get MUST return an error matched by IsNotFound when the block is absent.
// - A returned block MUST hash to the requested CID.
type Fetcher interface {
	Get(ctx context.Context, id cid.Cid) (blocks.Block, error)
}

// Putter stores blocks. Put MUST be idempotent.
type Putter interface {
	Put(ctx context.Context, blk blocks.Block) error
}

// Store is a Fetcher that can also be written to, e.g. a cache tier.
type Store interface {
	Fetcher
	Putter
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, id cid.Cid) (blocks.Block, error)

func (f FetcherFunc) Get(ctx context.Context, id cid.Cid) (blocks.Block, error) {
	return f(ctx, id)
}

// Nothing is a Fetcher that never has any block.
var Nothing Fetcher = FetcherFunc(func(context.Context, cid.Cid) (blocks.Block, error) {
	return nil, ErrNotFound
})
