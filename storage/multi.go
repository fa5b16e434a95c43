package storage

import (
	"context"

	blocks "github.com/ipfs/go-block-format"
	"github.com/ipfs/go-cid"
)

// MultiFetcher provides deterministic, ordered fallback across fetchers.
//
// Lookup order is the slice order in Fetchers; inline blocks supplied with
// an invocation go first so the network is only consulted for the rest.
type MultiFetcher struct {
	Fetchers []Fetcher
}

var _ Fetcher = MultiFetcher{}

func NewMultiFetcher(fetchers ...Fetcher) MultiFetcher {
	return MultiFetcher{Fetchers: fetchers}
}

func (m MultiFetcher) Get(ctx context.Context, id cid.Cid) (blocks.Block, error) {
	if !id.Defined() {
		return nil, ErrInvalidCID
	}
	var lastAbsent error = ErrNotFound
	for _, f := range m.Fetchers {
		if f == nil {
			continue
		}
		b, err := f.Get(ctx, id)
		if err == nil {
			return b, nil
		}
		if IsNotFound(err) {
			lastAbsent = err
			continue
		}
		return nil, err
	}
	return nil, lastAbsent
}
