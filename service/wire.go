package service

import (
	"errors"
	"fmt"

	blocks "github.com/ipfs/go-block-format"

	"github.com/storacha/w3clock/capability"
	"github.com/storacha/w3clock/clock"
	"github.com/storacha/w3clock/codec"
	"github.com/storacha/w3clock/principal"
)

type wireInvocation struct {
	Issuer     principal.DID           `cbor:"iss"`
	Audience   principal.DID           `cbor:"aud"`
	Capability capability.Capability   `cbor:"cap"`
	Proofs     []capability.Delegation `cbor:"prf,omitempty"`
	Blocks     []wireBlock             `cbor:"blocks,omitempty"`
}

type wireBlock struct {
	CID   codec.Link `cbor:"cid"`
	Bytes []byte     `cbor:"bytes"`
}

// EncodeInvocation encodes inv, including its attached blocks.
func EncodeInvocation(inv capability.Invocation) ([]byte, error) {
	w := wireInvocation{
		Issuer:     inv.Issuer,
		Audience:   inv.Audience,
		Capability: inv.Capability,
		Proofs:     inv.Proofs,
	}
	for _, b := range inv.Blocks {
		w.Blocks = append(w.Blocks, wireBlock{CID: codec.NewLink(b.Cid()), Bytes: b.RawData()})
	}
	return codec.Marshal(w)
}

// DecodeInvocation decodes an invocation encoded by EncodeInvocation.
// Attached blocks are verified when they are used, not here.
func DecodeInvocation(data []byte) (capability.Invocation, error) {
	var w wireInvocation
	if err := codec.Unmarshal(data, &w); err != nil {
		return capability.Invocation{}, fmt.Errorf("service: decode invocation: %w", err)
	}
	inv := capability.Invocation{
		Issuer:     w.Issuer,
		Audience:   w.Audience,
		Capability: w.Capability,
		Proofs:     w.Proofs,
	}
	for _, wb := range w.Blocks {
		b, err := blocks.NewBlockWithCid(wb.Bytes, wb.CID.Cid)
		if err != nil {
			return capability.Invocation{}, fmt.Errorf("service: decode block: %w", err)
		}
		inv.Blocks = append(inv.Blocks, b)
	}
	return inv, nil
}

// Failure is an error as carried in a response.
type Failure struct {
	Name    string `cbor:"name"`
	Message string `cbor:"message"`
}

func (f *Failure) Error() string { return f.Message }

type response struct {
	Ok    codec.RawMessage `cbor:"ok,omitempty"`
	Error *Failure         `cbor:"error,omitempty"`
}

type headResult struct {
	Head []codec.Link `cbor:"head"`
}

// EncodeResponse encodes the outcome of invoking ability:
//
//	{ok: {}}                          follow, unfollow
//	{ok: [[clock, [emitters]]]}       following
//	{ok: {head: [links]}}             advance, head
//	{error: {name, message}}          any failure
func EncodeResponse(ability capability.Ability, res Result, err error) ([]byte, error) {
	if err != nil {
		f := &Failure{Name: capability.ErrorName(err), Message: err.Error()}
		if f.Name == "" {
			f.Name = "Error"
		}
		return codec.Marshal(response{Error: f})
	}

	var ok any
	switch ability {
	case capability.Follow, capability.Unfollow:
		ok = struct{}{}
	case capability.Following:
		entries := res.Following
		if entries == nil {
			entries = []clock.Entry{}
		}
		ok = entries
	case capability.Advance, capability.Head:
		ok = headResult{Head: codec.Links(res.Head)}
	default:
		return nil, fmt.Errorf("service: no result encoding for %s", ability)
	}
	raw, err := codec.Marshal(ok)
	if err != nil {
		return nil, err
	}
	return codec.Marshal(response{Ok: raw})
}

// DecodeResponse decodes a response for ability. A failure response is
// returned as a *Failure error.
func DecodeResponse(ability capability.Ability, data []byte) (Result, error) {
	var r response
	if err := codec.Unmarshal(data, &r); err != nil {
		return Result{}, fmt.Errorf("service: decode response: %w", err)
	}
	if r.Error != nil {
		return Result{}, r.Error
	}
	if r.Ok == nil {
		return Result{}, errors.New("service: response has neither ok nor error")
	}

	switch ability {
	case capability.Follow, capability.Unfollow:
		return Result{}, nil
	case capability.Following:
		var entries []clock.Entry
		if err := codec.Unmarshal(r.Ok, &entries); err != nil {
			return Result{}, fmt.Errorf("service: decode following: %w", err)
		}
		return Result{Following: entries}, nil
	case capability.Advance, capability.Head:
		var h headResult
		if err := codec.Unmarshal(r.Ok, &h); err != nil {
			return Result{}, fmt.Errorf("service: decode head: %w", err)
		}
		return Result{Head: codec.CIDs(h.Head)}, nil
	default:
		return Result{}, fmt.Errorf("service: no result decoding for %s", ability)
	}
}
