package storage

import (
	"context"

	blocks "github.com/ipfs/go-block-format"
	"github.com/ipfs/go-cid"
	logging "github.com/ipfs/go-log/v2"

	"github.com/storacha/w3clock/metrics"
)

var log = logging.Logger("storage")

// CachedFetcher reads through a cache tier into a source.
//
// Reads consult Cache first; a cache error is logged and treated as a miss.
// Blocks returned by Source are verified against the requested CID before
// they are written to Cache, so the cache only ever holds valid blocks.
type CachedFetcher struct {
	Source Fetcher
	Cache  Store
}

var _ Fetcher = (*CachedFetcher)(nil)

// WithCache wraps source with a read-through cache.
func WithCache(source Fetcher, cache Store) *CachedFetcher {
	return &CachedFetcher{Source: source, Cache: cache}
}

func (c *CachedFetcher) Get(ctx context.Context, id cid.Cid) (blocks.Block, error) {
	if !id.Defined() {
		return nil, ErrInvalidCID
	}
	if c.Cache != nil {
		b, err := c.Cache.Get(ctx, id)
		if err == nil {
			metrics.BlockCacheLookups.WithLabelValues("hit").Inc()
			return b, nil
		}
		if !IsNotFound(err) {
			log.Warnw("block cache read failed", "cid", id, "error", err)
		}
		metrics.BlockCacheLookups.WithLabelValues("miss").Inc()
	}

	b, err := c.Source.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := Verify(id, b.RawData()); err != nil {
		return nil, err
	}
	if c.Cache != nil {
		if err := c.Cache.Put(ctx, b); err != nil {
			log.Warnw("block cache write failed", "cid", id, "error", err)
		}
	}
	return b, nil
}
