package rpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const serviceName = "nipowd.MinerControl"

// Method names of the MinerControl service
const (
	StartWorkMethod = "StartWork"
	StopWorkMethod  = "StopWork"
	GetStateMethod  = "GetState"
	EventsMethod    = "Events"
)

func fullMethodName(method string) string {
	return "/" + serviceName + "/" + method
}

type minerControl interface {
	startWork(ctx context.Context) error
	stopWork(ctx context.Context) error
	getState(ctx context.Context) (*structpb.Struct, error)
	events(stream grpc.ServerStream) error
}

var minerControlServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*minerControl)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: StartWorkMethod,
			Handler: unaryHandler(StartWorkMethod, func(service minerControl, ctx context.Context) (interface{}, error) {
				return &emptypb.Empty{}, service.startWork(ctx)
			}),
		},
		{
			MethodName: StopWorkMethod,
			Handler: unaryHandler(StopWorkMethod, func(service minerControl, ctx context.Context) (interface{}, error) {
				return &emptypb.Empty{}, service.stopWork(ctx)
			}),
		},
		{
			MethodName: GetStateMethod,
			Handler: unaryHandler(GetStateMethod, func(service minerControl, ctx context.Context) (interface{}, error) {
				return service.getState(ctx)
			}),
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    EventsMethod,
			Handler:       eventsHandler,
			ServerStreams: true,
		},
	},
	Metadata: "nipowd/minercontrol",
}

var eventsStreamDesc = grpc.StreamDesc{
	StreamName:    EventsMethod,
	ServerStreams: true,
}

type unaryCall func(service minerControl, ctx context.Context) (interface{}, error)

// unaryHandler builds the handler of a method that takes no arguments
func unaryHandler(method string, call unaryCall) func(srv interface{}, ctx context.Context,
	dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error,
		interceptor grpc.UnaryServerInterceptor) (interface{}, error) {

		request := new(emptypb.Empty)
		if err := dec(request); err != nil {
			return nil, err
		}
		service := srv.(minerControl)
		if interceptor == nil {
			return call(service, ctx)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethodName(method),
		}
		handler := func(ctx context.Context, _ interface{}) (interface{}, error) {
			return call(service, ctx)
		}
		return interceptor(ctx, request, info, handler)
	}
}

func eventsHandler(srv interface{}, stream grpc.ServerStream) error {
	request := new(emptypb.Empty)
	if err := stream.RecvMsg(request); err != nil {
		return err
	}
	return srv.(minerControl).events(stream)
}
