package principal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/cloudflare/circl/sign/ed25519"
	"golang.org/x/crypto/hkdf"
)

// SeedSize is the length of an identity seed.
const SeedSize = ed25519.SeedSize

const deriveSalt = "w3clock-principal-v1"

// Identity is an Ed25519 key pair and the did:key naming it.
type Identity struct {
	seed []byte
	pub  ed25519.PublicKey
	did  DID
}

// Generate creates a random identity.
func Generate() (*Identity, error) {
	seed := make([]byte, SeedSize)
	if _, err := io.ReadFull(rand.Reader, seed); err != nil {
		return nil, fmt.Errorf("principal: read random seed: %w", err)
	}
	return FromSeed(seed)
}

// FromSeed deterministically derives an identity from a 32-byte seed.
func FromSeed(seed []byte) (*Identity, error) {
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("principal: seed must be %d bytes, got %d", SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	did, err := KeyDID(pub)
	if err != nil {
		return nil, err
	}
	return &Identity{seed: append([]byte(nil), seed...), pub: pub, did: did}, nil
}

func (i *Identity) DID() DID                    { return i.did }
func (i *Identity) PublicKey() ed25519.PublicKey { return i.pub }

// Seed returns a copy of the identity's seed.
func (i *Identity) Seed() []byte { return append([]byte(nil), i.seed...) }

// DeriveSeed derives a named child seed from root with HKDF-SHA256. The same
// root and name always yield the same seed.
func DeriveSeed(root []byte, name string) ([]byte, error) {
	if len(root) != SeedSize {
		return nil, fmt.Errorf("principal: root seed must be %d bytes", SeedSize)
	}
	if err := CheckName(name); err != nil {
		return nil, err
	}
	r := hkdf.New(sha256.New, root, []byte(deriveSalt), []byte("name:"+name))
	out := make([]byte, SeedSize)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, fmt.Errorf("principal: derive seed: %w", err)
	}
	return out, nil
}

// ParseSeedHex decodes a hex seed, tolerating surrounding space and a 0x prefix.
func ParseSeedHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	data, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("principal: seed is not hex: %w", err)
	}
	if len(data) != SeedSize {
		return nil, fmt.Errorf("principal: expected seed length of %d bytes, got %d", SeedSize, len(data))
	}
	return data, nil
}

// CheckName validates identity and derivation names: ASCII letters, digits,
// '-' and '_'.
func CheckName(name string) error {
	if name == "" {
		return fmt.Errorf("principal: name cannot be empty")
	}
	for _, c := range name {
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '-' || c == '_' {
			continue
		}
		return fmt.Errorf("principal: invalid character %q in name", c)
	}
	return nil
}
