// Package grpcbus exposes a transport bus over gRPC. Payloads travel as
// google.protobuf.BytesValue so the service needs no generated stubs.
package grpcbus

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	// ServiceName is the fully-qualified gRPC service name.
	ServiceName = "colosseum.bus.v1.Bus"

	putMethod = "/" + ServiceName + "/Put"
	getMethod = "/" + ServiceName + "/Get"

	// MetadataKeyExpr carries the key expression of a Put or Get.
	MetadataKeyExpr = "x-key-expr"
	// MetadataPayloadAbsent marks a Get that carries no payload.
	MetadataPayloadAbsent = "x-payload-absent"
	// MetadataRequestID propagates the caller's request id.
	MetadataRequestID = "x-request-id"
)

// BusServer is the server API for the Bus service.
type BusServer interface {
	// Put publishes the payload on the key expression in metadata.
	Put(context.Context, *wrapperspb.BytesValue) (*emptypb.Empty, error)
	// Get queries the key expression in metadata and returns the first reply.
	Get(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
}

// RegisterBusServer registers srv on s.
func RegisterBusServer(s grpc.ServiceRegistrar, srv BusServer) {
	s.RegisterService(&busServiceDesc, srv)
}

var busServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BusServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Put", Handler: busPutHandler},
		{MethodName: "Get", Handler: busGetHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "colosseum/bus/v1/bus.proto",
}

func busPutHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(BusServer).Put(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: putMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(BusServer).Put(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

func busGetHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(BusServer).Get(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: getMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(BusServer).Get(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}
