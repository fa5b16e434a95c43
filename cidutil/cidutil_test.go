package cidutil

import (
	"testing"

	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/require"
)

func TestDagCBORSHA256IsEventLink(t *testing.T) {
	c, err := DagCBORSHA256([]byte{0xa0})
	require.NoError(t, err)
	require.True(t, IsEventLink(c))

	raw, err := RawSHA256([]byte{0xa0})
	require.NoError(t, err)
	require.False(t, IsEventLink(raw))
	require.False(t, IsEventLink(cid.Undef))
}

func TestRehashMatchesOnlyOriginalBytes(t *testing.T) {
	data := []byte("hello clock")
	c, err := RawSHA256(data)
	require.NoError(t, err)

	got, err := Rehash(c, data)
	require.NoError(t, err)
	require.True(t, got.Equals(c))

	got, err = Rehash(c, []byte("hello clocks"))
	require.NoError(t, err)
	require.False(t, got.Equals(c))
}
