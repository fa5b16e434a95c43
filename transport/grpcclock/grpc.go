package grpcclock

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	serviceName      = "w3clock.clock.v1.Clock"
	callFullMethod   = "/" + serviceName + "/Call"
	invokeFullMethod = "/" + serviceName + "/Invoke"
)

// ClockServer is the server API for the Clock gRPC service.
//
// Payloads are CBOR documents carried in protobuf well-known wrapper types,
// so no protoc toolchain is needed:
//
//	Call:   {clock, command: envelope} -> command result
//	Invoke: invocation                  -> {ok} | {error: {name, message}}
type ClockServer interface {
	Call(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
	Invoke(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
}

// UnimplementedClockServer can be embedded to have forward compatible implementations.
type UnimplementedClockServer struct{}

func (UnimplementedClockServer) Call(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	return nil, status.Error(codes.Unimplemented, "method Call not implemented")
}
func (UnimplementedClockServer) Invoke(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	return nil, status.Error(codes.Unimplemented, "method Invoke not implemented")
}

// RegisterClockServer registers the Clock service on a gRPC server.
func RegisterClockServer(s grpc.ServiceRegistrar, srv ClockServer) {
	s.RegisterService(&Clock_ServiceDesc, srv)
}

// ClockClient is the client API for the Clock gRPC service.
type ClockClient interface {
	Call(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error)
	Invoke(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error)
}

type clockClient struct{ cc grpc.ClientConnInterface }

func NewClockClient(cc grpc.ClientConnInterface) ClockClient { return &clockClient{cc: cc} }

func (c *clockClient) Call(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error) {
	out := new(wrapperspb.BytesValue)
	if err := c.cc.Invoke(ctx, callFullMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *clockClient) Invoke(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error) {
	out := new(wrapperspb.BytesValue)
	if err := c.cc.Invoke(ctx, invokeFullMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func _Clock_Call_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ClockServer).Call(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: callFullMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ClockServer).Call(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

func _Clock_Invoke_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ClockServer).Invoke(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: invokeFullMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ClockServer).Invoke(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

// Clock_ServiceDesc is the grpc.ServiceDesc for the Clock service.
var Clock_ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*ClockServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Call", Handler: _Clock_Call_Handler},
		{MethodName: "Invoke", Handler: _Clock_Invoke_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "clock.proto",
}
