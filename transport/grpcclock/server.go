package grpcclock

import (
	"context"

	logging "github.com/ipfs/go-log/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/storacha/w3clock/clock"
	"github.com/storacha/w3clock/codec"
	"github.com/storacha/w3clock/principal"
	"github.com/storacha/w3clock/service"
)

var log = logging.Logger("grpcclock")

// callRequest addresses an encoded command to a clock.
type callRequest struct {
	Clock   principal.DID `cbor:"clock"`
	Command []byte        `cbor:"command"`
}

// Server exposes clock actors (Call) and the capability-gated service
// (Invoke) over gRPC.
type Server struct {
	UnimplementedClockServer
	Clocks  clock.Transport
	Service *service.Service
}

func (s *Server) Call(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	if s == nil || s.Clocks == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing clocks")
	}
	var req callRequest
	if err := codec.Unmarshal(in.GetValue(), &req); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "decode call: %v", err)
	}
	if _, err := principal.ParseDID(string(req.Clock)); err != nil {
		return nil, mapErr(err)
	}
	cmd, err := clock.DecodeCommand(req.Command)
	if err != nil {
		return nil, mapErr(err)
	}
	res, err := s.Clocks.Send(ctx, req.Clock, cmd)
	if err != nil {
		log.Debugw("call failed", "clock", req.Clock, "method", cmd.Method(), "error", err)
		return nil, mapErr(err)
	}
	out, err := clock.EncodeResult(cmd.Method(), res)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return wrapperspb.Bytes(out), nil
}

// Invoke runs an invocation. Failures of the invocation itself, including
// authorization failures, are returned in the response body; only requests
// that cannot be decoded fail at the RPC level.
func (s *Server) Invoke(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	if s == nil || s.Service == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing service")
	}
	inv, err := service.DecodeInvocation(in.GetValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	res, err := s.Service.Invoke(ctx, inv)
	if err != nil {
		log.Debugw("invocation failed", "issuer", inv.Issuer, "ability", inv.Capability.Can, "error", err)
	}
	out, err := service.EncodeResponse(inv.Capability.Can, res, err)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return wrapperspb.Bytes(out), nil
}
