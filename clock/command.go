package clock

import (
	"errors"
	"fmt"

	blocks "github.com/ipfs/go-block-format"
	"github.com/ipfs/go-cid"

	"github.com/storacha/w3clock/principal"
)

// Method names an actor command on the wire.
type Method string

const (
	MethodFollow      Method = "follow"
	MethodUnfollow    Method = "unfollow"
	MethodFollowing   Method = "following"
	MethodSubscribe   Method = "subscribe"
	MethodUnsubscribe Method = "unsubscribe"
	MethodSubscribers Method = "subscribers"
	MethodAdvance     Method = "advance"
	MethodHead        Method = "head"
)

// Methods lists every actor command.
var Methods = []Method{
	MethodFollow, MethodUnfollow, MethodFollowing,
	MethodSubscribe, MethodUnsubscribe, MethodSubscribers,
	MethodAdvance, MethodHead,
}

// ErrUnknownMethod is matched by every *DispatchError.
var ErrUnknownMethod = errors.New("clock: unknown method")

// DispatchError reports a command whose method is not one of Methods.
type DispatchError struct {
	Method string
}

func (e *DispatchError) Error() string { return fmt.Sprintf("clock: invalid method: %q", e.Method) }
func (e *DispatchError) Unwrap() error { return ErrUnknownMethod }

// Command is a request addressed to one clock actor. The set of commands is
// closed; see Methods.
type Command interface {
	Method() Method
	command()
}

// FollowCmd makes the clock accept advances to Target attributed to Emitter.
type FollowCmd struct{ Target, Emitter principal.DID }

// UnfollowCmd reverses FollowCmd.
type UnfollowCmd struct{ Target, Emitter principal.DID }

// FollowingCmd lists the follow graph.
type FollowingCmd struct{}

// SubscribeCmd registers Subscriber to receive advances by Emitter.
type SubscribeCmd struct{ Subscriber, Emitter principal.DID }

// UnsubscribeCmd reverses SubscribeCmd.
type UnsubscribeCmd struct{ Subscriber, Emitter principal.DID }

// SubscribersCmd lists the subscriber graph.
type SubscribersCmd struct{}

// AdvanceCmd merges Event into the clock's head. Blocks optionally supply
// the event and its ancestors.
type AdvanceCmd struct {
	Target  principal.DID
	Emitter principal.DID
	Event   cid.Cid
	Blocks  []blocks.Block
}

// HeadCmd reads the head.
type HeadCmd struct{}

func (FollowCmd) Method() Method      { return MethodFollow }
func (UnfollowCmd) Method() Method    { return MethodUnfollow }
func (FollowingCmd) Method() Method   { return MethodFollowing }
func (SubscribeCmd) Method() Method   { return MethodSubscribe }
func (UnsubscribeCmd) Method() Method { return MethodUnsubscribe }
func (SubscribersCmd) Method() Method { return MethodSubscribers }
func (AdvanceCmd) Method() Method     { return MethodAdvance }
func (HeadCmd) Method() Method        { return MethodHead }

func (FollowCmd) command()      {}
func (UnfollowCmd) command()    {}
func (FollowingCmd) command()   {}
func (SubscribeCmd) command()   {}
func (UnsubscribeCmd) command() {}
func (SubscribersCmd) command() {}
func (AdvanceCmd) command()     {}
func (HeadCmd) command()        {}

// Result carries a command's output: Entries for following and subscribers,
// Head for advance and head. Other commands return the zero Result.
type Result struct {
	Entries []Entry
	Head    []cid.Cid
}
