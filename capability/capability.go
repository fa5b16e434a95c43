// Package capability decides whether an invocation may act on a clock and
// which clock and emitter it acts for.
//
// Signatures and delegation chains are checked before an invocation reaches
// this package; here only the capability semantics are enforced: resource
// equality, the ability hierarchy and caveat derivation.
package capability

import (
	"fmt"
	"sort"

	blocks "github.com/ipfs/go-block-format"
	"github.com/ipfs/go-cid"

	"github.com/storacha/w3clock/cidutil"
	"github.com/storacha/w3clock/principal"
)

// Ability names an operation.
type Ability string

const (
	Top       Ability = "*"
	ClockAll  Ability = "clock/*"
	Follow    Ability = "clock/follow"
	Unfollow  Ability = "clock/unfollow"
	Following Ability = "clock/following"
	Advance   Ability = "clock/advance"
	Head      Ability = "clock/head"
)

// Caveat names.
const (
	CaveatIssuer = "iss"
	CaveatClock  = "clk"
	// CaveatWith is accepted as an alias of CaveatClock.
	CaveatWith  = "with"
	CaveatEvent = "event"
)

// Known reports whether a is one of the clock abilities or a wildcard.
func (a Ability) Known() bool {
	switch a {
	case Top, ClockAll, Follow, Unfollow, Following, Advance, Head:
		return true
	}
	return false
}

// Covers reports whether a delegated ability a authorizes claimed ability b.
func (a Ability) Covers(b Ability) bool {
	switch a {
	case Top:
		return b.Known()
	case ClockAll:
		return b != Top && b.Known()
	default:
		return a == b
	}
}

// Caveats are the nb fields of a capability. Values are strings: DIDs for
// iss and clk, the string form of a CID for event.
type Caveats map[string]string

// Keys returns the caveat names, sorted.
func (c Caveats) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Capability is an ability on a resource, constrained by caveats.
type Capability struct {
	Can  Ability       `cbor:"can"`
	With principal.DID `cbor:"with"`
	Nb   Caveats       `cbor:"nb,omitempty"`
}

// Event returns the event link carried by a clock/advance capability.
func (c Capability) Event() (cid.Cid, error) {
	s, ok := c.Nb[CaveatEvent]
	if !ok {
		return cid.Undef, schemaError(NameInvalidCaveat, nil, "missing nb.event on %s", c.Can)
	}
	id, err := cid.Decode(s)
	if err != nil {
		return cid.Undef, schemaError(NameInvalidCaveat, err, "invalid nb.event %q: %v", s, err)
	}
	if !cidutil.IsEventLink(id) {
		return cid.Undef, schemaError(NameInvalidCaveat, nil, "nb.event %s must be a dag-cbor sha2-256 CIDv1", id)
	}
	return id, nil
}

// Delegation grants capabilities from Issuer to Audience.
type Delegation struct {
	Issuer       principal.DID `cbor:"iss"`
	Audience     principal.DID `cbor:"aud"`
	Capabilities []Capability  `cbor:"att"`
}

// Invocation is a request by Issuer to exercise Capability, justified by
// Proofs. Blocks are event blocks supplied inline; they are never part of
// the authorization decision.
type Invocation struct {
	Issuer     principal.DID  `cbor:"iss"`
	Audience   principal.DID  `cbor:"aud"`
	Capability Capability     `cbor:"cap"`
	Proofs     []Delegation   `cbor:"prf,omitempty"`
	Blocks     []blocks.Block `cbor:"-"`
}

// Validate checks a capability against its ability's caveat schema and
// normalizes the with alias to clk. Wildcard abilities carry no caveats.
func Validate(c *Capability) error {
	if !c.Can.Known() {
		return schemaError(NameUnknownAbility, nil, "unknown ability %q", c.Can)
	}
	if _, err := principal.ParseDID(string(c.With)); err != nil {
		return schemaError(NameInvalidResource, err, "invalid resource %q: expected a did", c.With)
	}

	if w, ok := c.Nb[CaveatWith]; ok {
		if clk, dup := c.Nb[CaveatClock]; dup && clk != w {
			return schemaError(NameInvalidCaveat, nil, "conflicting nb.clk and nb.with")
		}
		nb := make(Caveats, len(c.Nb))
		for k, v := range c.Nb {
			nb[k] = v
		}
		delete(nb, CaveatWith)
		nb[CaveatClock] = w
		c.Nb = nb
	}

	var allowed []string
	switch c.Can {
	case Follow, Unfollow:
		allowed = []string{CaveatIssuer, CaveatClock}
	case Advance:
		allowed = []string{CaveatEvent}
		if _, err := c.Event(); err != nil {
			return err
		}
	}

	for _, k := range c.Nb.Keys() {
		if !contains(allowed, k) {
			return schemaError(NameInvalidCaveat, nil, "unexpected nb.%s on %s", k, c.Can)
		}
		if k == CaveatIssuer || k == CaveatClock {
			if _, err := principal.ParseDID(c.Nb[k]); err != nil {
				return schemaError(NameInvalidCaveat, err, "invalid nb.%s: %v", k, err)
			}
		}
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// String renders c for log lines.
func (c Capability) String() string {
	if len(c.Nb) == 0 {
		return fmt.Sprintf("%s with %s", c.Can, c.With)
	}
	return fmt.Sprintf("%s with %s nb=%v", c.Can, c.With, map[string]string(c.Nb))
}
