// Package testkit holds conformance checks shared by block store
// implementations.
package testkit

import (
	"bytes"
	"context"
	"errors"
	"testing"

	blocks "github.com/ipfs/go-block-format"
	"github.com/ipfs/go-cid"

	"github.com/storacha/w3clock/cidutil"
	"github.com/storacha/w3clock/storage"
)

// NewStore constructs a fresh, empty store for a test.
// The returned store MUST be isolated from other tests.
type NewStore func(t *testing.T) storage.Store

// RawBlock returns a raw sha2-256 block holding data.
func RawBlock(t testing.TB, data []byte) blocks.Block {
	t.Helper()
	id, err := cidutil.RawSHA256(data)
	if err != nil {
		t.Fatalf("RawSHA256 failed: %v", err)
	}
	b, err := blocks.NewBlockWithCid(data, id)
	if err != nil {
		t.Fatalf("NewBlockWithCid failed: %v", err)
	}
	return b
}

func RunStoreConformance(t *testing.T, newStore NewStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("PutGetRoundTrip", func(t *testing.T) {
		s := newStore(t)
		want := RawBlock(t, []byte("hello, clock storage"))

		if err := s.Put(ctx, want); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		got, err := s.Get(ctx, want.Cid())
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if !got.Cid().Equals(want.Cid()) {
			t.Fatalf("Get CID mismatch: got %s want %s", got.Cid(), want.Cid())
		}
		if !bytes.Equal(got.RawData(), want.RawData()) {
			t.Fatalf("Get bytes mismatch")
		}
		if err := storage.Verify(got.Cid(), got.RawData()); err != nil {
			t.Fatalf("Get returned bytes not matching requested CID: %v", err)
		}
	})

	t.Run("PutIdempotent", func(t *testing.T) {
		s := newStore(t)
		b := RawBlock(t, []byte("same bytes"))
		if err := s.Put(ctx, b); err != nil {
			t.Fatalf("Put(1) failed: %v", err)
		}
		if err := s.Put(ctx, b); err != nil {
			t.Fatalf("Put(2) failed: %v", err)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		s := newStore(t)
		b := RawBlock(t, []byte("missing"))
		_, err := s.Get(ctx, b.Cid())
		if !storage.IsNotFound(err) {
			t.Fatalf("Get missing: got err=%v want ErrNotFound", err)
		}
	})

	t.Run("RejectUndefCID", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(ctx, cid.Undef)
		if !errors.Is(err, storage.ErrInvalidCID) {
			t.Fatalf("Get undefined: got err=%v want ErrInvalidCID", err)
		}
	})
}

// RunVerifyingPut checks that s refuses blocks whose bytes do not hash to
// their CID.
func RunVerifyingPut(t *testing.T, newStore NewStore) {
	t.Helper()
	s := newStore(t)
	good := RawBlock(t, []byte("good"))
	bad, err := blocks.NewBlockWithCid([]byte("evil"), good.Cid())
	if err != nil {
		t.Fatalf("NewBlockWithCid failed: %v", err)
	}
	if err := s.Put(context.Background(), bad); !errors.Is(err, storage.ErrIntegrity) {
		t.Fatalf("Put corrupted: got err=%v want ErrIntegrity", err)
	}
	if _, err := s.Get(context.Background(), good.Cid()); !storage.IsNotFound(err) {
		t.Fatalf("corrupted block was stored: err=%v", err)
	}
}
