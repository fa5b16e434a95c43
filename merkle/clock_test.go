package merkle

import (
	"context"
	"testing"

	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/require"

	"github.com/storacha/w3clock/storage"
	"github.com/storacha/w3clock/storage/testkit"
)

type testClock struct {
	t      *testing.T
	blocks *storage.MemoryStore
}

func newTestClock(t *testing.T) *testClock {
	s, err := storage.NewMemoryStore()
	require.NoError(t, err)
	return &testClock{t: t, blocks: s}
}

func (c *testClock) event(data string, parents ...cid.Cid) cid.Cid {
	c.t.Helper()
	if parents == nil {
		parents = []cid.Cid{}
	}
	eb, err := NewEventBlock(parents, map[string]any{"op": data})
	require.NoError(c.t, err)
	require.NoError(c.t, c.blocks.Put(context.Background(), eb.Block()))
	return eb.Cid()
}

func (c *testClock) advance(head []cid.Cid, event cid.Cid) []cid.Cid {
	c.t.Helper()
	next, err := Advance(context.Background(), c.blocks, head, event)
	require.NoError(c.t, err)
	return next
}

func TestAdvance_EmptyHeadNeedsNoBlocks(t *testing.T) {
	c := newTestClock(t)
	ev := c.event("genesis")

	head, err := Advance(context.Background(), storage.Nothing, nil, ev)
	require.NoError(t, err)
	require.Equal(t, []cid.Cid{ev}, head)
}

func TestAdvance_Idempotent(t *testing.T) {
	c := newTestClock(t)
	e0 := c.event("e0")
	e1 := c.event("e1", e0)

	head := c.advance(nil, e0)
	head = c.advance(head, e1)
	again := c.advance(head, e1)
	require.Equal(t, head, again)
	require.Equal(t, []cid.Cid{e1}, again)
}

func TestAdvance_DescendantReplacesAncestor(t *testing.T) {
	c := newTestClock(t)
	e0 := c.event("e0")
	e1 := c.event("e1", e0)
	e2 := c.event("e2", e1)

	head := c.advance(nil, e0)
	head = c.advance(head, e2)
	require.Equal(t, []cid.Cid{e2}, head)

	// An ancestor arriving late does not regress the head.
	require.Equal(t, []cid.Cid{e2}, c.advance(head, e1))
}

func TestAdvance_ConcurrentEventsThenMerge(t *testing.T) {
	c := newTestClock(t)
	e0 := c.event("e0")
	a := c.event("a", e0)
	b := c.event("b", e0)

	head := c.advance(nil, e0)
	head = c.advance(head, a)
	head = c.advance(head, b)
	require.Equal(t, []cid.Cid{a, b}, head)

	m := c.event("merge", a, b)
	require.Equal(t, []cid.Cid{m}, c.advance(head, m))
}

func TestAdvance_Deterministic(t *testing.T) {
	c := newTestClock(t)
	e0 := c.event("e0")
	a := c.event("a", e0)
	b := c.event("b", e0)

	h1 := c.advance(c.advance(c.advance(nil, e0), a), b)
	h2 := c.advance(c.advance(c.advance(nil, e0), a), b)
	require.Equal(t, h1, h2)
}

func TestAdvance_DoesNotMutateInput(t *testing.T) {
	c := newTestClock(t)
	e0 := c.event("e0")
	a := c.event("a", e0)
	b := c.event("b", e0)

	head := []cid.Cid{a}
	next := c.advance(head, b)
	require.Equal(t, []cid.Cid{a}, head)
	require.Equal(t, []cid.Cid{a, b}, next)
}

func TestAdvance_MissingEvent(t *testing.T) {
	c := newTestClock(t)
	e0 := c.event("e0")
	orphan, err := NewEventBlock([]cid.Cid{e0}, "never stored")
	require.NoError(t, err)

	_, err = Advance(context.Background(), c.blocks, []cid.Cid{e0}, orphan.Cid())
	require.ErrorIs(t, err, ErrEventNotFound)
}

func TestDecodeEventBlock_RoundTrip(t *testing.T) {
	c := newTestClock(t)
	e0 := c.event("e0")
	eb, err := NewEventBlock([]cid.Cid{e0}, map[string]any{"key": "value"})
	require.NoError(t, err)

	got, err := DecodeEventBlock(eb.Block())
	require.NoError(t, err)
	require.Equal(t, []cid.Cid{e0}, got.ParentCIDs())
	require.Equal(t, map[string]any{"key": "value"}, got.Data)
	require.True(t, got.Cid().Equals(eb.Cid()))
}

func TestDecodeEventBlock_RejectsRawCID(t *testing.T) {
	blk := testkit.RawBlock(t, []byte("not an event"))
	_, err := DecodeEventBlock(blk)
	require.ErrorIs(t, err, ErrInvalidEvent)
}
