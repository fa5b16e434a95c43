package cidutil

import (
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// DagCBORSHA256 returns a CIDv1 (dag-cbor + sha2-256) derived from data.
// This is the identifier format of clock events.
func DagCBORSHA256(data []byte) (cid.Cid, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.DagCBOR, sum), nil
}

// RawSHA256 returns a CIDv1 (raw + sha2-256) derived from data.
func RawSHA256(data []byte) (cid.Cid, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, sum), nil
}

// IsEventLink reports whether c has the shape required of an event link:
// CIDv1, dag-cbor codec, sha2-256 multihash.
func IsEventLink(c cid.Cid) bool {
	if !c.Defined() {
		return false
	}
	p := c.Prefix()
	return p.Version == 1 && p.Codec == cid.DagCBOR && p.MhType == multihash.SHA2_256
}

// Rehash recomputes the CID of data using the prefix (version, codec, hash
// function, digest length) of c.
func Rehash(c cid.Cid, data []byte) (cid.Cid, error) {
	return c.Prefix().Sum(data)
}
