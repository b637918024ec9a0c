package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ConsoleServiceName is the fully qualified gRPC service name.
const ConsoleServiceName = "mirador.console.v1.Console"

// Full method names.
const (
	MethodGetSnapshot       = "/" + ConsoleServiceName + "/GetSnapshot"
	MethodSetTab            = "/" + ConsoleServiceName + "/SetTab"
	MethodRefresh           = "/" + ConsoleServiceName + "/Refresh"
	MethodSelectAgent       = "/" + ConsoleServiceName + "/SelectAgent"
	MethodSetLogFilter      = "/" + ConsoleServiceName + "/SetLogFilter"
	MethodSetEventSearch    = "/" + ConsoleServiceName + "/SetEventSearch"
	MethodSetAlertFilter    = "/" + ConsoleServiceName + "/SetAlertFilter"
	MethodSetTimelineFilter = "/" + ConsoleServiceName + "/SetTimelineFilter"
	MethodRunAutomation     = "/" + ConsoleServiceName + "/RunAutomation"
	MethodSendControl       = "/" + ConsoleServiceName + "/SendControl"
	MethodSubmitFeedback    = "/" + ConsoleServiceName + "/SubmitFeedback"
	MethodWatch             = "/" + ConsoleServiceName + "/Watch"
)

// ConsoleServer is the server API for the Console service. Requests and responses are
// google.protobuf.Struct documents shaped like the snapshot JSON.
type ConsoleServer interface {
	GetSnapshot(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	SetTab(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Refresh(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SelectAgent(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetLogFilter(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetEventSearch(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetAlertFilter(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetTimelineFilter(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RunAutomation(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SendControl(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SubmitFeedback(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Watch(*emptypb.Empty, ConsoleWatchServer) error
}

// ConsoleWatchServer is the server side of the Watch stream.
type ConsoleWatchServer interface {
	Send(*structpb.Struct) error
	grpc.ServerStream
}

// UnimplementedConsoleServer can be embedded to satisfy ConsoleServer.
type UnimplementedConsoleServer struct{}

func (UnimplementedConsoleServer) GetSnapshot(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method GetSnapshot not implemented")
}
func (UnimplementedConsoleServer) SetTab(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method SetTab not implemented")
}
func (UnimplementedConsoleServer) Refresh(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method Refresh not implemented")
}
func (UnimplementedConsoleServer) SelectAgent(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method SelectAgent not implemented")
}
func (UnimplementedConsoleServer) SetLogFilter(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method SetLogFilter not implemented")
}
func (UnimplementedConsoleServer) SetEventSearch(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method SetEventSearch not implemented")
}
func (UnimplementedConsoleServer) SetAlertFilter(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method SetAlertFilter not implemented")
}
func (UnimplementedConsoleServer) SetTimelineFilter(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method SetTimelineFilter not implemented")
}
func (UnimplementedConsoleServer) RunAutomation(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method RunAutomation not implemented")
}
func (UnimplementedConsoleServer) SendControl(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method SendControl not implemented")
}
func (UnimplementedConsoleServer) SubmitFeedback(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method SubmitFeedback not implemented")
}
func (UnimplementedConsoleServer) Watch(*emptypb.Empty, ConsoleWatchServer) error {
	return status.Error(codes.Unimplemented, "method Watch not implemented")
}

// RegisterConsoleServer attaches srv to s.
func RegisterConsoleServer(s grpc.ServiceRegistrar, srv ConsoleServer) {
	s.RegisterService(&ConsoleServiceDesc, srv)
}

// ConsoleServiceDesc describes the Console service for grpc.Server.
var ConsoleServiceDesc = grpc.ServiceDesc{
	ServiceName: ConsoleServiceName,
	HandlerType: (*ConsoleServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetSnapshot", Handler: emptyHandler(MethodGetSnapshot, ConsoleServer.GetSnapshot)},
		{MethodName: "SetTab", Handler: structHandler(MethodSetTab, ConsoleServer.SetTab)},
		{MethodName: "Refresh", Handler: structHandler(MethodRefresh, ConsoleServer.Refresh)},
		{MethodName: "SelectAgent", Handler: structHandler(MethodSelectAgent, ConsoleServer.SelectAgent)},
		{MethodName: "SetLogFilter", Handler: structHandler(MethodSetLogFilter, ConsoleServer.SetLogFilter)},
		{MethodName: "SetEventSearch", Handler: structHandler(MethodSetEventSearch, ConsoleServer.SetEventSearch)},
		{MethodName: "SetAlertFilter", Handler: structHandler(MethodSetAlertFilter, ConsoleServer.SetAlertFilter)},
		{MethodName: "SetTimelineFilter", Handler: structHandler(MethodSetTimelineFilter, ConsoleServer.SetTimelineFilter)},
		{MethodName: "RunAutomation", Handler: structHandler(MethodRunAutomation, ConsoleServer.RunAutomation)},
		{MethodName: "SendControl", Handler: structHandler(MethodSendControl, ConsoleServer.SendControl)},
		{MethodName: "SubmitFeedback", Handler: structHandler(MethodSubmitFeedback, ConsoleServer.SubmitFeedback)},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Watch",
			Handler:       watchHandler,
			ServerStreams: true,
		},
	},
	Metadata: "mirador/console/v1/console.proto",
}

func emptyHandler(method string, call func(ConsoleServer, context.Context, *emptypb.Empty) (*structpb.Struct, error)) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(emptypb.Empty)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ConsoleServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ConsoleServer), ctx, req.(*emptypb.Empty))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func structHandler(method string, call func(ConsoleServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ConsoleServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ConsoleServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func watchHandler(srv any, stream grpc.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(ConsoleServer).Watch(in, &consoleWatchServer{stream})
}

type consoleWatchServer struct {
	grpc.ServerStream
}

func (x *consoleWatchServer) Send(m *structpb.Struct) error {
	return x.ServerStream.SendMsg(m)
}

// ConsoleClient calls the Console service over conn.
type ConsoleClient struct {
	cc grpc.ClientConnInterface
}

// NewConsoleClient wraps cc.
func NewConsoleClient(cc grpc.ClientConnInterface) *ConsoleClient {
	return &ConsoleClient{cc: cc}
}

// GetSnapshot fetches the current snapshot.
func (c *ConsoleClient) GetSnapshot(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MethodGetSnapshot, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Call invokes a unary Struct method by its full name.
func (c *ConsoleClient) Call(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Watch opens the snapshot stream.
func (c *ConsoleClient) Watch(ctx context.Context, opts ...grpc.CallOption) (ConsoleWatchClient, error) {
	stream, err := c.cc.NewStream(ctx, &ConsoleServiceDesc.Streams[0], MethodWatch, opts...)
	if err != nil {
		return nil, err
	}
	x := &consoleWatchClient{stream}
	if err := x.ClientStream.SendMsg(&emptypb.Empty{}); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

// ConsoleWatchClient receives snapshots pushed by Watch.
type ConsoleWatchClient interface {
	Recv() (*structpb.Struct, error)
	grpc.ClientStream
}

type consoleWatchClient struct {
	grpc.ClientStream
}

func (x *consoleWatchClient) Recv() (*structpb.Struct, error) {
	m := new(structpb.Struct)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}
