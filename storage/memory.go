package storage

import (
	"context"
	"sync"

	blocks "github.com/ipfs/go-block-format"
	"github.com/ipfs/go-cid"
)

// MemoryStore is an unbounded in-memory block store. It backs the blocks
// attached inline to an advance.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns a store holding blks. Blocks are verified against
// their CIDs; the first block that fails verification is reported.
func NewMemoryStore(blks ...blocks.Block) (*MemoryStore, error) {
	m := &MemoryStore{data: make(map[string][]byte, len(blks))}
	for _, b := range blks {
		if err := m.Put(context.Background(), b); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *MemoryStore) Get(ctx context.Context, id cid.Cid) (blocks.Block, error) {
	if !id.Defined() {
		return nil, ErrInvalidCID
	}
	m.mu.RLock()
	data, ok := m.data[id.KeyString()]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return blocks.NewBlockWithCid(data, id)
}

func (m *MemoryStore) Put(ctx context.Context, blk blocks.Block) error {
	if err := Verify(blk.Cid(), blk.RawData()); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = make(map[string][]byte)
	}
	m.data[blk.Cid().KeyString()] = blk.RawData()
	return nil
}

// Len returns the number of blocks held.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
