package kamidenv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/argus-labs/kamisync/pkg/protoutil"
)

const ServiceName = "kamiden.v1.KamidenService"

//nolint:revive,stylecheck // generated naming
const KamidenService_SubscribeToStream_FullMethodName = "/kamiden.v1.KamidenService/SubscribeToStream"

// KamidenServiceClient is the client API for KamidenService. Every call is encoded with
// protoutil.Codec.
type KamidenServiceClient interface {
	SubscribeToStream(
		ctx context.Context, in *SubscribeToStreamRequest, opts ...grpc.CallOption,
	) (grpc.ServerStreamingClient[StreamResponse], error)
}

type kamidenServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewKamidenServiceClient(cc grpc.ClientConnInterface) KamidenServiceClient {
	return &kamidenServiceClient{cc}
}

func (c *kamidenServiceClient) SubscribeToStream(
	ctx context.Context, in *SubscribeToStreamRequest, opts ...grpc.CallOption,
) (grpc.ServerStreamingClient[StreamResponse], error) {
	opts = append([]grpc.CallOption{protoutil.CallOption()}, opts...)
	stream, err := c.cc.NewStream(ctx, &KamidenService_ServiceDesc.Streams[0],
		KamidenService_SubscribeToStream_FullMethodName, opts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[SubscribeToStreamRequest, StreamResponse]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

// KamidenServiceServer is the server API for KamidenService. Servers must be created with
// protoutil.ServerOption.
type KamidenServiceServer interface {
	SubscribeToStream(*SubscribeToStreamRequest, grpc.ServerStreamingServer[StreamResponse]) error
}

type UnimplementedKamidenServiceServer struct{}

func (UnimplementedKamidenServiceServer) SubscribeToStream(
	*SubscribeToStreamRequest, grpc.ServerStreamingServer[StreamResponse],
) error {
	return status.Errorf(codes.Unimplemented, "method SubscribeToStream not implemented")
}

func RegisterKamidenServiceServer(s grpc.ServiceRegistrar, srv KamidenServiceServer) {
	s.RegisterService(&KamidenService_ServiceDesc, srv)
}

func subscribeToStreamHandler(srv any, stream grpc.ServerStream) error {
	m := new(SubscribeToStreamRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(KamidenServiceServer).SubscribeToStream(m,
		&grpc.GenericServerStream[SubscribeToStreamRequest, StreamResponse]{ServerStream: stream})
}

//nolint:revive,stylecheck // generated naming
var KamidenService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*KamidenServiceServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{StreamName: "SubscribeToStream", Handler: subscribeToStreamHandler, ServerStreams: true},
	},
	Metadata: "kamiden/v1/kamiden.proto",
}
