package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	blocks "github.com/ipfs/go-block-format"
	"github.com/ipfs/go-cid"
	logging "github.com/ipfs/go-log/v2"
	"github.com/jpillora/backoff"
	"golang.org/x/sync/singleflight"

	"github.com/storacha/w3clock/metrics"
	"github.com/storacha/w3clock/storage"
)

var log = logging.Logger("gateway")

const (
	DefaultURL        = "https://ipfs.io"
	DefaultTimeout    = 10 * time.Second
	DefaultRetries    = 3
	DefaultMinBackoff = 100 * time.Millisecond
	DefaultMaxBackoff = 2 * time.Second

	// MaxBlockSize bounds how many bytes are read for one block.
	MaxBlockSize = 2 << 20
)

// Fetcher retrieves raw blocks from an IPFS HTTP gateway:
//
//	GET {URL}/ipfs/{cid}?format=raw
//
// Properties:
// - Every attempt is bounded by Timeout and cancelled on expiry.
// - Transport failures and integrity failures are retried up to Retries
//   times with exponential backoff.
// - A non-success status means the gateway does not have the block; it is
//   reported as storage.ErrNotFound without retrying.
// - Returned bytes are verified against the requested CID. Transport is not
//   validity; CID verification is.
type Fetcher struct {
	base       *url.URL
	client     *http.Client
	timeout    time.Duration
	retries    int
	minBackoff time.Duration
	maxBackoff time.Duration

	group singleflight.Group
}

var _ storage.Fetcher = (*Fetcher)(nil)

type Options struct {
	// URL is the gateway base URL. If empty, DefaultURL is used.
	URL string
	// Timeout bounds a single attempt. If zero, DefaultTimeout is used.
	Timeout time.Duration
	// Retries is the number of attempts after the first. Negative disables
	// retrying; zero uses DefaultRetries.
	Retries int
	// MinBackoff and MaxBackoff bound the delay between attempts.
	MinBackoff time.Duration
	MaxBackoff time.Duration
	// Client optionally overrides the HTTP client.
	Client *http.Client
}

func New(opts Options) (*Fetcher, error) {
	raw := opts.URL
	if raw == "" {
		raw = DefaultURL
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("gateway: invalid url %q: %w", raw, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("gateway: unsupported url scheme %q", base.Scheme)
	}

	f := &Fetcher{
		base:       base,
		client:     opts.Client,
		timeout:    opts.Timeout,
		retries:    opts.Retries,
		minBackoff: opts.MinBackoff,
		maxBackoff: opts.MaxBackoff,
	}
	if f.client == nil {
		f.client = http.DefaultClient
	}
	if f.timeout <= 0 {
		f.timeout = DefaultTimeout
	}
	switch {
	case f.retries == 0:
		f.retries = DefaultRetries
	case f.retries < 0:
		f.retries = 0
	}
	if f.minBackoff <= 0 {
		f.minBackoff = DefaultMinBackoff
	}
	if f.maxBackoff < f.minBackoff {
		f.maxBackoff = DefaultMaxBackoff
		if f.maxBackoff < f.minBackoff {
			f.maxBackoff = f.minBackoff
		}
	}
	return f, nil
}

// Get fetches id. Concurrent requests for the same CID share one fetch.
func (f *Fetcher) Get(ctx context.Context, id cid.Cid) (blocks.Block, error) {
	if !id.Defined() {
		return nil, storage.ErrInvalidCID
	}
	v, err, _ := f.group.Do(id.KeyString(), func() (any, error) {
		return f.fetch(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return v.(blocks.Block), nil
}

func (f *Fetcher) fetch(ctx context.Context, id cid.Cid) (blocks.Block, error) {
	b := &backoff.Backoff{
		Min:    f.minBackoff,
		Max:    f.maxBackoff,
		Factor: 2,
		Jitter: true,
	}

	var lastErr error
	for attempt := 0; attempt <= f.retries; attempt++ {
		if attempt > 0 {
			d := b.Duration()
			log.Debugw("retrying block fetch", "cid", id, "attempt", attempt, "delay", d, "error", lastErr)
			t := time.NewTimer(d)
			select {
			case <-ctx.Done():
				t.Stop()
				return nil, fmt.Errorf("%w: %s: %v", storage.ErrUnavailable, id, ctx.Err())
			case <-t.C:
			}
		}

		data, err := f.fetchOnce(ctx, id)
		switch {
		case err == nil:
			metrics.GatewayFetches.WithLabelValues("ok").Inc()
			return blocks.NewBlockWithCid(data, id)
		case errors.Is(err, storage.ErrNotFound):
			metrics.GatewayFetches.WithLabelValues("absent").Inc()
			return nil, err
		case errors.Is(err, storage.ErrIntegrity):
			metrics.GatewayFetches.WithLabelValues("integrity").Inc()
			log.Warnw("gateway returned bytes that do not match cid", "cid", id, "attempt", attempt)
		default:
			metrics.GatewayFetches.WithLabelValues("error").Inc()
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}

	if errors.Is(lastErr, storage.ErrIntegrity) {
		return nil, lastErr
	}
	log.Infow("block unavailable", "cid", id, "attempts", f.retries+1, "error", lastErr)
	return nil, fmt.Errorf("%w: %s: %v", storage.ErrUnavailable, id, lastErr)
}

func (f *Fetcher) fetchOnce(ctx context.Context, id cid.Cid) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.blockURL(id), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.ipld.raw")

	res, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway: fetch %s: %w", id, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 4096))
		return nil, fmt.Errorf("%w: %s: gateway status %d", storage.ErrNotFound, id, res.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(res.Body, MaxBlockSize+1))
	if err != nil {
		return nil, fmt.Errorf("gateway: read %s: %w", id, err)
	}
	if len(data) > MaxBlockSize {
		return nil, fmt.Errorf("%w: %s: block exceeds %d bytes", storage.ErrIntegrity, id, MaxBlockSize)
	}
	if err := storage.Verify(id, data); err != nil {
		return nil, err
	}
	return data, nil
}

func (f *Fetcher) blockURL(id cid.Cid) string {
	u := *f.base
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ipfs/" + id.String()
	u.RawQuery = "format=raw"
	return u.String()
}
