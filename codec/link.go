package codec

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/ipfs/go-cid"
)

// linkTag is the CBOR tag registered for IPLD content identifiers.
const linkTag = 42

var ErrInvalidLink = errors.New("codec: invalid link")

// Link is a CID encoded the DAG-CBOR way: tag 42 wrapping the binary CID
// with a leading 0x00 multibase identity prefix.
type Link struct {
	cid.Cid
}

// NewLink wraps c.
func NewLink(c cid.Cid) Link { return Link{Cid: c} }

// Links wraps each CID in cs.
func Links(cs []cid.Cid) []Link {
	out := make([]Link, 0, len(cs))
	for _, c := range cs {
		out = append(out, Link{Cid: c})
	}
	return out
}

// CIDs unwraps each link in ls.
func CIDs(ls []Link) []cid.Cid {
	out := make([]cid.Cid, 0, len(ls))
	for _, l := range ls {
		out = append(out, l.Cid)
	}
	return out
}

func (l Link) MarshalCBOR() ([]byte, error) {
	if !l.Cid.Defined() {
		return nil, fmt.Errorf("%w: undefined cid", ErrInvalidLink)
	}
	content := append([]byte{0x00}, l.Cid.Bytes()...)
	return encMode.Marshal(cbor.Tag{Number: linkTag, Content: content})
}

func (l *Link) UnmarshalCBOR(data []byte) error {
	var raw cbor.RawTag
	if err := decMode.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidLink, err)
	}
	if raw.Number != linkTag {
		return fmt.Errorf("%w: unexpected tag %d", ErrInvalidLink, raw.Number)
	}
	var b []byte
	if err := decMode.Unmarshal(raw.Content, &b); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidLink, err)
	}
	if len(b) < 2 || b[0] != 0x00 {
		return fmt.Errorf("%w: missing identity prefix", ErrInvalidLink)
	}
	c, err := cid.Cast(b[1:])
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidLink, err)
	}
	l.Cid = c
	return nil
}
