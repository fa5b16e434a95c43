package clock

import (
	"fmt"

	blocks "github.com/ipfs/go-block-format"

	"github.com/storacha/w3clock/codec"
	"github.com/storacha/w3clock/principal"
)

// envelope is the wire form of a command:
//
//	{method: string, args: [cbor...], blocks?: [{cid, bytes}]}
type envelope struct {
	Method string             `cbor:"method"`
	Args   []codec.RawMessage `cbor:"args"`
	Blocks []wireBlock        `cbor:"blocks,omitempty"`
}

type wireBlock struct {
	CID   codec.Link `cbor:"cid"`
	Bytes []byte     `cbor:"bytes"`
}

// EncodeCommand encodes cmd as an envelope.
func EncodeCommand(cmd Command) ([]byte, error) {
	var args []any
	var blks []blocks.Block
	switch c := cmd.(type) {
	case FollowCmd:
		args = []any{c.Target, c.Emitter}
	case UnfollowCmd:
		args = []any{c.Target, c.Emitter}
	case SubscribeCmd:
		args = []any{c.Subscriber, c.Emitter}
	case UnsubscribeCmd:
		args = []any{c.Subscriber, c.Emitter}
	case AdvanceCmd:
		args = []any{c.Target, c.Emitter, codec.NewLink(c.Event)}
		blks = c.Blocks
	case FollowingCmd, SubscribersCmd, HeadCmd:
	default:
		return nil, fmt.Errorf("clock: cannot encode %T", cmd)
	}

	env := envelope{Method: string(cmd.Method()), Args: make([]codec.RawMessage, 0, len(args))}
	for _, a := range args {
		raw, err := codec.Marshal(a)
		if err != nil {
			return nil, fmt.Errorf("clock: encode %s args: %w", cmd.Method(), err)
		}
		env.Args = append(env.Args, raw)
	}
	for _, b := range blks {
		env.Blocks = append(env.Blocks, wireBlock{CID: codec.NewLink(b.Cid()), Bytes: b.RawData()})
	}
	return codec.Marshal(env)
}

// DecodeCommand decodes an envelope. An unknown method yields a
// *DispatchError. Attached blocks are not verified here; the actor verifies
// them before use.
func DecodeCommand(data []byte) (Command, error) {
	var env envelope
	if err := codec.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("clock: decode envelope: %w", err)
	}

	switch Method(env.Method) {
	case MethodFollow, MethodUnfollow, MethodSubscribe, MethodUnsubscribe:
		var a, b principal.DID
		if err := decodeArgs(env, &a, &b); err != nil {
			return nil, err
		}
		switch Method(env.Method) {
		case MethodFollow:
			return FollowCmd{Target: a, Emitter: b}, nil
		case MethodUnfollow:
			return UnfollowCmd{Target: a, Emitter: b}, nil
		case MethodSubscribe:
			return SubscribeCmd{Subscriber: a, Emitter: b}, nil
		default:
			return UnsubscribeCmd{Subscriber: a, Emitter: b}, nil
		}
	case MethodFollowing:
		return FollowingCmd{}, decodeArgs(env)
	case MethodSubscribers:
		return SubscribersCmd{}, decodeArgs(env)
	case MethodHead:
		return HeadCmd{}, decodeArgs(env)
	case MethodAdvance:
		var c AdvanceCmd
		var event codec.Link
		if err := decodeArgs(env, &c.Target, &c.Emitter, &event); err != nil {
			return nil, err
		}
		c.Event = event.Cid
		for _, wb := range env.Blocks {
			b, err := blocks.NewBlockWithCid(wb.Bytes, wb.CID.Cid)
			if err != nil {
				return nil, fmt.Errorf("clock: decode block %s: %w", wb.CID.Cid, err)
			}
			c.Blocks = append(c.Blocks, b)
		}
		return c, nil
	default:
		return nil, &DispatchError{Method: env.Method}
	}
}

func decodeArgs(env envelope, dst ...any) error {
	if len(env.Args) != len(dst) {
		return fmt.Errorf("clock: %s expects %d args, got %d", env.Method, len(dst), len(env.Args))
	}
	for i, raw := range env.Args {
		if err := codec.Unmarshal(raw, dst[i]); err != nil {
			return fmt.Errorf("clock: %s arg %d: %w", env.Method, i, err)
		}
	}
	return nil
}

// EncodeResult encodes the result of a command of method m: null for
// graph mutations, [[clock, [emitters]]] for listings, [links] for heads.
func EncodeResult(m Method, r Result) ([]byte, error) {
	switch m {
	case MethodFollowing, MethodSubscribers:
		entries := r.Entries
		if entries == nil {
			entries = []Entry{}
		}
		return codec.Marshal(entries)
	case MethodAdvance, MethodHead:
		return codec.Marshal(codec.Links(r.Head))
	case MethodFollow, MethodUnfollow, MethodSubscribe, MethodUnsubscribe:
		return codec.Marshal(nil)
	default:
		return nil, &DispatchError{Method: string(m)}
	}
}

// DecodeResult decodes a result encoded by EncodeResult.
func DecodeResult(m Method, data []byte) (Result, error) {
	switch m {
	case MethodFollowing, MethodSubscribers:
		var entries []Entry
		if err := codec.Unmarshal(data, &entries); err != nil {
			return Result{}, fmt.Errorf("clock: decode %s result: %w", m, err)
		}
		return Result{Entries: entries}, nil
	case MethodAdvance, MethodHead:
		var links []codec.Link
		if err := codec.Unmarshal(data, &links); err != nil {
			return Result{}, fmt.Errorf("clock: decode %s result: %w", m, err)
		}
		return Result{Head: codec.CIDs(links)}, nil
	case MethodFollow, MethodUnfollow, MethodSubscribe, MethodUnsubscribe:
		return Result{}, nil
	default:
		return Result{}, &DispatchError{Method: string(m)}
	}
}
