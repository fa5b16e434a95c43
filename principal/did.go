// Package principal models the identities that own and write to clocks.
//
// Identities are Ed25519 keys named by did:key DIDs. Other DID methods are
// accepted as opaque identifiers; only equality is meaningful to a clock.
package principal

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cloudflare/circl/sign/ed25519"
	"github.com/multiformats/go-multibase"
	"github.com/multiformats/go-multicodec"
	"github.com/multiformats/go-varint"
)

const (
	scheme    = "did:"
	keyMethod = "did:key:"
)

var ErrInvalidDID = errors.New("principal: invalid did")

// DID is a decentralized identifier such as "did:key:z6Mk...".
type DID string

// ParseDID checks that s carries the did: scheme and a non-empty method and
// identifier.
func ParseDID(s string) (DID, error) {
	if !strings.HasPrefix(s, scheme) {
		return "", fmt.Errorf("%w: %q: missing did: prefix", ErrInvalidDID, s)
	}
	method, id, ok := strings.Cut(strings.TrimPrefix(s, scheme), ":")
	if !ok || method == "" || id == "" {
		return "", fmt.Errorf("%w: %q: expected did:<method>:<id>", ErrInvalidDID, s)
	}
	return DID(s), nil
}

// MustParseDID is like ParseDID but panics on error.
func MustParseDID(s string) DID {
	d, err := ParseDID(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (d DID) String() string { return string(d) }

// KeyDID returns the did:key DID of an Ed25519 public key.
func KeyDID(pub ed25519.PublicKey) (DID, error) {
	if len(pub) != ed25519.PublicKeySize {
		return "", fmt.Errorf("principal: ed25519 public key must be %d bytes, got %d", ed25519.PublicKeySize, len(pub))
	}
	prefix := varint.ToUvarint(uint64(multicodec.Ed25519Pub))
	s, err := multibase.Encode(multibase.Base58BTC, append(prefix, pub...))
	if err != nil {
		return "", err
	}
	return DID(keyMethod + s), nil
}

// PublicKey extracts the Ed25519 public key from a did:key DID.
func (d DID) PublicKey() (ed25519.PublicKey, error) {
	s := string(d)
	if !strings.HasPrefix(s, keyMethod) {
		return nil, fmt.Errorf("%w: %q is not a did:key", ErrInvalidDID, s)
	}
	enc, data, err := multibase.Decode(strings.TrimPrefix(s, keyMethod))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDID, err)
	}
	if enc != multibase.Base58BTC {
		return nil, fmt.Errorf("%w: did:key must be base58btc", ErrInvalidDID)
	}
	code, n, err := varint.FromUvarint(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDID, err)
	}
	if multicodec.Code(code) != multicodec.Ed25519Pub {
		return nil, fmt.Errorf("%w: unsupported key type %s", ErrInvalidDID, multicodec.Code(code))
	}
	pub := data[n:]
	if len(pub) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: bad ed25519 key length %d", ErrInvalidDID, len(pub))
	}
	return ed25519.PublicKey(pub), nil
}
