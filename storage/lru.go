package storage

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	blocks "github.com/ipfs/go-block-format"
	"github.com/ipfs/go-cid"
)

// DefaultCacheSize is the number of blocks an LRUStore keeps when no size
// is configured.
const DefaultCacheSize = 50

// LRUStore is a bounded in-process block cache with least-recently-used
// eviction.
type LRUStore struct {
	cache *lru.Cache[cid.Cid, blocks.Block]
}

var _ Store = (*LRUStore)(nil)

func NewLRUStore(size int) (*LRUStore, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c, err := lru.New[cid.Cid, blocks.Block](size)
	if err != nil {
		return nil, fmt.Errorf("storage: lru cache: %w", err)
	}
	return &LRUStore{cache: c}, nil
}

func (s *LRUStore) Get(ctx context.Context, id cid.Cid) (blocks.Block, error) {
	if !id.Defined() {
		return nil, ErrInvalidCID
	}
	if b, ok := s.cache.Get(id); ok {
		return b, nil
	}
	return nil, ErrNotFound
}

// Put caches blk. Callers are expected to have verified it.
func (s *LRUStore) Put(ctx context.Context, blk blocks.Block) error {
	if !blk.Cid().Defined() {
		return ErrInvalidCID
	}
	s.cache.Add(blk.Cid(), blk)
	return nil
}

func (s *LRUStore) Len() int { return s.cache.Len() }
