package kamigaze_test

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/argus-labs/kamisync/pkg/kamigaze"
	"github.com/argus-labs/kamisync/pkg/kamigaze/memserver"
	"github.com/argus-labs/kamisync/pkg/protoutil"
)

// serve starts an in-process gRPC server hosting world and returns a client dialed to it.
func serve(t *testing.T, world *memserver.Server, opts ...grpc.ServerOption) (*kamigaze.Client, *grpc.Server) {
	t.Helper()
	return serveConfig(t, world, kamigaze.Config{URL: "passthrough:///bufnet"}, opts...)
}

func serveConfig(
	t *testing.T, world *memserver.Server, cfg kamigaze.Config, opts ...grpc.ServerOption,
) (*kamigaze.Client, *grpc.Server) {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(append(protoutil.ServerOptions(), opts...)...)
	if world != nil {
		world.Register(srv)
	}
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	client, err := kamigaze.Dial(cfg, kamigaze.WithDialOptions(
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, srv
}
