package kamigazev1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/argus-labs/kamisync/pkg/protoutil"
)

const ServiceName = "kamigaze.v1.KamigazeService"

const (
	KamigazeService_GetStateBlock_FullMethodName = "/kamigaze.v1.KamigazeService/GetStateBlock" //nolint:revive,stylecheck // generated naming
	KamigazeService_GetComponents_FullMethodName = "/kamigaze.v1.KamigazeService/GetComponents" //nolint:revive,stylecheck // generated naming
	KamigazeService_GetEntities_FullMethodName   = "/kamigaze.v1.KamigazeService/GetEntities"   //nolint:revive,stylecheck // generated naming
	KamigazeService_GetState_FullMethodName      = "/kamigaze.v1.KamigazeService/GetState"      //nolint:revive,stylecheck // generated naming
)

// KamigazeServiceClient is the client API for KamigazeService. Every call is encoded with
// protoutil.Codec.
type KamigazeServiceClient interface {
	GetStateBlock(ctx context.Context, in *GetStateBlockRequest, opts ...grpc.CallOption) (*GetStateBlockResponse, error)
	GetComponents(ctx context.Context, in *GetComponentsRequest, opts ...grpc.CallOption) (*GetComponentsResponse, error)
	GetEntities(ctx context.Context, in *GetEntitiesRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[GetEntitiesResponse], error)
	GetState(ctx context.Context, in *GetStateRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[GetStateResponse], error)
}

type kamigazeServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewKamigazeServiceClient(cc grpc.ClientConnInterface) KamigazeServiceClient {
	return &kamigazeServiceClient{cc}
}

func withCodec(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{protoutil.CallOption()}, opts...)
}

func (c *kamigazeServiceClient) GetStateBlock(
	ctx context.Context, in *GetStateBlockRequest, opts ...grpc.CallOption,
) (*GetStateBlockResponse, error) {
	out := new(GetStateBlockResponse)
	err := c.cc.Invoke(ctx, KamigazeService_GetStateBlock_FullMethodName, in, out, withCodec(opts)...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *kamigazeServiceClient) GetComponents(
	ctx context.Context, in *GetComponentsRequest, opts ...grpc.CallOption,
) (*GetComponentsResponse, error) {
	out := new(GetComponentsResponse)
	err := c.cc.Invoke(ctx, KamigazeService_GetComponents_FullMethodName, in, out, withCodec(opts)...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *kamigazeServiceClient) GetEntities(
	ctx context.Context, in *GetEntitiesRequest, opts ...grpc.CallOption,
) (grpc.ServerStreamingClient[GetEntitiesResponse], error) {
	stream, err := c.cc.NewStream(ctx, &KamigazeService_ServiceDesc.Streams[0],
		KamigazeService_GetEntities_FullMethodName, withCodec(opts)...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[GetEntitiesRequest, GetEntitiesResponse]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

func (c *kamigazeServiceClient) GetState(
	ctx context.Context, in *GetStateRequest, opts ...grpc.CallOption,
) (grpc.ServerStreamingClient[GetStateResponse], error) {
	stream, err := c.cc.NewStream(ctx, &KamigazeService_ServiceDesc.Streams[1],
		KamigazeService_GetState_FullMethodName, withCodec(opts)...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[GetStateRequest, GetStateResponse]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

// KamigazeServiceServer is the server API for KamigazeService. Servers must be created with
// protoutil.ServerOption.
type KamigazeServiceServer interface {
	GetStateBlock(context.Context, *GetStateBlockRequest) (*GetStateBlockResponse, error)
	GetComponents(context.Context, *GetComponentsRequest) (*GetComponentsResponse, error)
	GetEntities(*GetEntitiesRequest, grpc.ServerStreamingServer[GetEntitiesResponse]) error
	GetState(*GetStateRequest, grpc.ServerStreamingServer[GetStateResponse]) error
}

// UnimplementedKamigazeServiceServer can be embedded to have forward compatible implementations.
type UnimplementedKamigazeServiceServer struct{}

func (UnimplementedKamigazeServiceServer) GetStateBlock(context.Context, *GetStateBlockRequest) (*GetStateBlockResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetStateBlock not implemented")
}

func (UnimplementedKamigazeServiceServer) GetComponents(context.Context, *GetComponentsRequest) (*GetComponentsResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetComponents not implemented")
}

func (UnimplementedKamigazeServiceServer) GetEntities(*GetEntitiesRequest, grpc.ServerStreamingServer[GetEntitiesResponse]) error {
	return status.Errorf(codes.Unimplemented, "method GetEntities not implemented")
}

func (UnimplementedKamigazeServiceServer) GetState(*GetStateRequest, grpc.ServerStreamingServer[GetStateResponse]) error {
	return status.Errorf(codes.Unimplemented, "method GetState not implemented")
}

func RegisterKamigazeServiceServer(s grpc.ServiceRegistrar, srv KamigazeServiceServer) {
	s.RegisterService(&KamigazeService_ServiceDesc, srv)
}

func getStateBlockHandler(
	srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	in := new(GetStateBlockRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(KamigazeServiceServer).GetStateBlock(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: KamigazeService_GetStateBlock_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(KamigazeServiceServer).GetStateBlock(ctx, req.(*GetStateBlockRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func getComponentsHandler(
	srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	in := new(GetComponentsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(KamigazeServiceServer).GetComponents(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: KamigazeService_GetComponents_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(KamigazeServiceServer).GetComponents(ctx, req.(*GetComponentsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func getEntitiesHandler(srv any, stream grpc.ServerStream) error {
	m := new(GetEntitiesRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(KamigazeServiceServer).GetEntities(m,
		&grpc.GenericServerStream[GetEntitiesRequest, GetEntitiesResponse]{ServerStream: stream})
}

func getStateHandler(srv any, stream grpc.ServerStream) error {
	m := new(GetStateRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(KamigazeServiceServer).GetState(m,
		&grpc.GenericServerStream[GetStateRequest, GetStateResponse]{ServerStream: stream})
}

//nolint:revive,stylecheck // generated naming
var KamigazeService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*KamigazeServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetStateBlock", Handler: getStateBlockHandler},
		{MethodName: "GetComponents", Handler: getComponentsHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "GetEntities", Handler: getEntitiesHandler, ServerStreams: true},
		{StreamName: "GetState", Handler: getStateHandler, ServerStreams: true},
	},
	Metadata: "kamigaze/v1/kamigaze.proto",
}
