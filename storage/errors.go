package storage

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ipfs/go-cid"

	"github.com/storacha/w3clock/cidutil"
)

var (
	ErrNotFound   = errors.New("storage: not found")
	ErrInvalidCID = errors.New("storage: invalid cid")
	// ErrIntegrity means bytes do not hash to the CID they were requested
	// or supplied under. Such bytes are never cached or returned.
	ErrIntegrity = errors.New("storage: integrity check failed")
	// ErrUnavailable means a source could not be reached after retrying.
	// Callers treat it like ErrNotFound.
	ErrUnavailable = errors.New("storage: block unavailable")
)

// IsNotFound reports whether err means the block is absent, including
// blocks that were unavailable after bounded retries.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrUnavailable)
}

// Verify checks that data hashes to id's multihash, using id's own prefix.
func Verify(id cid.Cid, data []byte) error {
	if !id.Defined() {
		return ErrInvalidCID
	}
	got, err := cidutil.Rehash(id, data)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrIntegrity, id, err)
	}
	if !bytes.Equal(got.Hash(), id.Hash()) {
		return fmt.Errorf("%w: %s: got digest of %s", ErrIntegrity, id, got)
	}
	return nil
}
