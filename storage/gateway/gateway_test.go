package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/storacha/w3clock/storage"
	"github.com/storacha/w3clock/storage/testkit"
)

func newTestFetcher(t *testing.T, url string) *Fetcher {
	t.Helper()
	f, err := New(Options{
		URL:        url,
		Timeout:    200 * time.Millisecond,
		Retries:    2,
		MinBackoff: time.Millisecond,
		MaxBackoff: 5 * time.Millisecond,
	})
	require.NoError(t, err)
	return f
}

func TestGet_FetchesRawBlock(t *testing.T) {
	blk := testkit.RawBlock(t, []byte("gateway block"))

	var path, query, accept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path, query, accept = r.URL.Path, r.URL.RawQuery, r.Header.Get("Accept")
		_, _ = w.Write(blk.RawData())
	}))
	defer srv.Close()

	got, err := newTestFetcher(t, srv.URL+"/").Get(context.Background(), blk.Cid())
	require.NoError(t, err)
	require.Equal(t, blk.RawData(), got.RawData())
	require.Equal(t, "/ipfs/"+blk.Cid().String(), path)
	require.Equal(t, "format=raw", query)
	require.Equal(t, "application/vnd.ipld.raw", accept)
}

func TestGet_NonSuccessStatusIsNotFound(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := newTestFetcher(t, srv.URL).Get(context.Background(), testkit.RawBlock(t, []byte("x")).Cid())
	require.ErrorIs(t, err, storage.ErrNotFound)
	require.EqualValues(t, 1, hits.Load(), "absent blocks are not retried")
}

func TestGet_RejectsMismatchedBytes(t *testing.T) {
	blk := testkit.RawBlock(t, []byte("expected"))
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("something else"))
	}))
	defer srv.Close()

	cache, err := storage.NewLRUStore(4)
	require.NoError(t, err)
	f := storage.WithCache(newTestFetcher(t, srv.URL), cache)

	_, err = f.Get(context.Background(), blk.Cid())
	require.ErrorIs(t, err, storage.ErrIntegrity)
	require.False(t, storage.IsNotFound(err))
	require.Zero(t, cache.Len())
	require.EqualValues(t, 3, hits.Load())
}

func TestGet_TimeoutBecomesUnavailable(t *testing.T) {
	release := make(chan struct{})
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	f, err := New(Options{URL: srv.URL, Timeout: 20 * time.Millisecond, Retries: 1, MinBackoff: time.Millisecond})
	require.NoError(t, err)

	_, err = f.Get(context.Background(), testkit.RawBlock(t, []byte("slow")).Cid())
	require.ErrorIs(t, err, storage.ErrUnavailable)
	require.True(t, storage.IsNotFound(err))
	require.EqualValues(t, 2, hits.Load())
}

func TestGet_RetriesTransientFailure(t *testing.T) {
	blk := testkit.RawBlock(t, []byte("flaky"))
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			// Hijack and drop the connection to simulate a transport failure.
			conn, _, err := w.(http.Hijacker).Hijack()
			if err == nil {
				_ = conn.Close()
			}
			return
		}
		_, _ = w.Write(blk.RawData())
	}))
	defer srv.Close()

	got, err := newTestFetcher(t, srv.URL).Get(context.Background(), blk.Cid())
	require.NoError(t, err)
	require.Equal(t, blk.RawData(), got.RawData())
	require.EqualValues(t, 2, hits.Load())
}

func TestGet_CacheHitSkipsNetwork(t *testing.T) {
	blk := testkit.RawBlock(t, []byte("once"))
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write(blk.RawData())
	}))
	defer srv.Close()

	cache, err := storage.NewLRUStore(4)
	require.NoError(t, err)
	f := storage.WithCache(newTestFetcher(t, srv.URL), cache)

	for i := 0; i < 2; i++ {
		_, err := f.Get(context.Background(), blk.Cid())
		require.NoError(t, err)
	}
	require.EqualValues(t, 1, hits.Load())
}

func TestNew_RejectsBadURL(t *testing.T) {
	_, err := New(Options{URL: "ftp://example.com"})
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "scheme"))

	f, err := New(Options{})
	require.NoError(t, err)
	require.Equal(t, DefaultURL, f.base.String())
	require.Equal(t, DefaultTimeout, f.timeout)
	require.Equal(t, DefaultRetries, f.retries)
}
