package dsregistry

import (
	"github.com/ipfs/go-datastore"
	dssync "github.com/ipfs/go-datastore/sync"
	badger "github.com/ipfs/go-ds-badger2"
	leveldb "github.com/ipfs/go-ds-leveldb"
)

func init() {
	MustRegister(Backend{
		Name:        "memory",
		Description: "In-memory datastore; state is lost on exit",
		Open: func(string) (datastore.Batching, func() error, error) {
			return dssync.MutexWrap(datastore.NewMapDatastore()), nil, nil
		},
	})

	MustRegister(Backend{
		Name:        "leveldb",
		Description: "LevelDB datastore (directory)",
		Persistent:  true,
		Open: func(path string) (datastore.Batching, func() error, error) {
			ds, err := leveldb.NewDatastore(path, nil)
			if err != nil {
				return nil, nil, err
			}
			return ds, ds.Close, nil
		},
	})

	MustRegister(Backend{
		Name:        "badger",
		Description: "Badger v2 datastore (directory)",
		Persistent:  true,
		Open: func(path string) (datastore.Batching, func() error, error) {
			opts := badger.DefaultOptions
			ds, err := badger.NewDatastore(path, &opts)
			if err != nil {
				return nil, nil, err
			}
			return ds, ds.Close, nil
		},
	})
}
