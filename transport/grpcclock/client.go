package grpcclock

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/storacha/w3clock/capability"
	"github.com/storacha/w3clock/clock"
	"github.com/storacha/w3clock/codec"
	"github.com/storacha/w3clock/principal"
	"github.com/storacha/w3clock/service"
)

// Client talks to a remote clockd. It implements clock.Transport, so a
// Router can deliver fan-out hops to clocks hosted elsewhere.
type Client struct {
	cc     *grpc.ClientConn
	client ClockClient

	// Timeout applies per RPC when non-zero.
	Timeout time.Duration
}

var _ clock.Transport = (*Client)(nil)

type DialOptions struct {
	// Timeout applies to the initial dial when non-zero.
	Timeout time.Duration

	// MaxMsgBytes sets both send/recv max sizes when non-zero.
	MaxMsgBytes int
}

func Dial(target string, opts DialOptions) (*Client, error) {
	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}
	if opts.MaxMsgBytes > 0 {
		dialOpts = append(dialOpts,
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(opts.MaxMsgBytes),
				grpc.MaxCallSendMsgSize(opts.MaxMsgBytes),
			),
		)
	}

	ctx := context.Background()
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	cc, err := grpc.DialContext(ctx, target, dialOpts...)
	if err != nil {
		return nil, err
	}
	return NewClient(cc), nil
}

// NewClient wraps an existing connection.
func NewClient(cc *grpc.ClientConn) *Client {
	return &Client{cc: cc, client: NewClockClient(cc)}
}

func (c *Client) Close() error {
	if c == nil || c.cc == nil {
		return nil
	}
	return c.cc.Close()
}

// Send delivers cmd to the actor of clk on the remote host.
func (c *Client) Send(ctx context.Context, clk principal.DID, cmd clock.Command) (clock.Result, error) {
	env, err := clock.EncodeCommand(cmd)
	if err != nil {
		return clock.Result{}, err
	}
	req, err := codec.Marshal(callRequest{Clock: clk, Command: env})
	if err != nil {
		return clock.Result{}, err
	}

	ctx, cancel := c.ctx(ctx)
	defer cancel()

	reply, err := c.client.Call(ctx, wrapperspb.Bytes(req))
	if err != nil {
		return clock.Result{}, mapRPC(err)
	}
	return clock.DecodeResult(cmd.Method(), reply.GetValue())
}

// Invoke submits an invocation. A failed invocation is returned as a
// *service.Failure.
func (c *Client) Invoke(ctx context.Context, inv capability.Invocation) (service.Result, error) {
	req, err := service.EncodeInvocation(inv)
	if err != nil {
		return service.Result{}, err
	}

	ctx, cancel := c.ctx(ctx)
	defer cancel()

	reply, err := c.client.Invoke(ctx, wrapperspb.Bytes(req))
	if err != nil {
		return service.Result{}, mapRPC(err)
	}
	return service.DecodeResponse(inv.Capability.Can, reply.GetValue())
}

func (c *Client) ctx(parent context.Context) (context.Context, context.CancelFunc) {
	if c.Timeout > 0 {
		return context.WithTimeout(parent, c.Timeout)
	}
	return context.WithCancel(parent)
}
