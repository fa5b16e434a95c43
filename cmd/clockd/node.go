package main

import (
	"context"
	"fmt"
	"time"

	"github.com/ipfs/go-datastore"
	"go.uber.org/multierr"

	"github.com/storacha/w3clock/clock"
	"github.com/storacha/w3clock/config"
	"github.com/storacha/w3clock/durable/dsregistry"
	"github.com/storacha/w3clock/principal"
	"github.com/storacha/w3clock/service"
	"github.com/storacha/w3clock/storage"
	"github.com/storacha/w3clock/storage/gateway"
	"github.com/storacha/w3clock/storage/localfs"
)

// node is everything clockd serves, assembled from a Config.
type node struct {
	identity *principal.Identity
	ds       datastore.Batching
	router   *clock.Router
	service  *service.Service

	closeDS func() error
}

// newNode opens the datastore and builds the block chain
//
//	gateway -> block_dir (optional) -> LRU cache
//
// shared by every clock actor.
func newNode(cfg config.Config) (*node, error) {
	id, err := serviceIdentity(cfg.ServiceSeed)
	if err != nil {
		return nil, err
	}

	gw, err := gateway.New(gateway.Options{
		URL:     cfg.GatewayURL,
		Timeout: time.Duration(cfg.FetchTimeout),
		Retries: cfg.FetchRetries,
	})
	if err != nil {
		return nil, err
	}
	var source storage.Fetcher = gw
	if cfg.BlockDir != "" {
		disk, err := localfs.New(cfg.BlockDir)
		if err != nil {
			return nil, err
		}
		source = storage.WithCache(gw, disk)
	}
	cache, err := storage.NewLRUStore(cfg.BlockCacheSize)
	if err != nil {
		return nil, err
	}

	ds, closeDS, err := dsregistry.Open(cfg.Datastore.Type, cfg.Datastore.Path)
	if err != nil {
		return nil, err
	}
	router, err := clock.NewRouter(ds, clock.Options{
		Source:   source,
		Cache:    cache,
		Strict:   cfg.StrictAdvance,
		MaxDepth: cfg.Propagation.MaxDepth,
	})
	if err != nil {
		_ = closeDS()
		return nil, err
	}

	return &node{
		identity: id,
		ds:       ds,
		router:   router,
		service:  service.New(router),
		closeDS:  closeDS,
	}, nil
}

func (n *node) Close() error {
	n.router.Close()
	return multierr.Append(n.ds.Sync(context.Background(), datastore.NewKey("/")), n.closeDS())
}

func serviceIdentity(seedHex string) (*principal.Identity, error) {
	if seedHex == "" {
		log.Warn("no service_seed configured; using an ephemeral service identity")
		return principal.Generate()
	}
	seed, err := principal.ParseSeedHex(seedHex)
	if err != nil {
		return nil, fmt.Errorf("service_seed: %w", err)
	}
	return principal.FromSeed(seed)
}
