// Package localfs is a disk-backed block cache tier.
//
// Blocks are written once under a two-character fan-out directory and are
// verified against their CID on every read, so a file corrupted out-of-band
// is reported as storage.ErrIntegrity instead of being served.
package localfs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	blocks "github.com/ipfs/go-block-format"
	"github.com/ipfs/go-cid"

	"github.com/storacha/w3clock/storage"
)

// Store is a local filesystem block store rooted at a directory.
type Store struct {
	root string
}

var _ storage.Store = (*Store)(nil)

// New returns a Store rooted at root, creating the directory if needed.
func New(root string) (*Store, error) {
	if root == "" {
		return nil, errors.New("localfs: root directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("localfs: %w", err)
	}
	return &Store{root: root}, nil
}

func (s *Store) Put(ctx context.Context, blk blocks.Block) error {
	id := blk.Cid()
	if err := storage.Verify(id, blk.RawData()); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	path := s.pathFor(id)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("localfs: %w", err)
	}

	// Write to a temp file and rename so readers never observe a partial block.
	tmp, err := os.CreateTemp(filepath.Dir(path), ".put-*")
	if err != nil {
		return fmt.Errorf("localfs: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(blk.RawData()); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("localfs: write %s: %w", id, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("localfs: sync %s: %w", id, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("localfs: close %s: %w", id, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("localfs: commit %s: %w", id, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id cid.Cid) (blocks.Block, error) {
	if !id.Defined() {
		return nil, storage.ErrInvalidCID
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.pathFor(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("localfs: read %s: %w", id, err)
	}
	if err := storage.Verify(id, data); err != nil {
		return nil, err
	}
	return blocks.NewBlockWithCid(data, id)
}

// Has reports whether a file exists for id. It does not verify contents.
func (s *Store) Has(id cid.Cid) bool {
	if !id.Defined() {
		return false
	}
	_, err := os.Stat(s.pathFor(id))
	return err == nil
}

func (s *Store) pathFor(id cid.Cid) string {
	k := id.String()
	if len(k) < 2 {
		return filepath.Join(s.root, k)
	}
	return filepath.Join(s.root, k[len(k)-2:], k)
}
