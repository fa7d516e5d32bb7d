package kamiden_test

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/argus-labs/kamisync/pkg/kamiden"
	"github.com/argus-labs/kamisync/pkg/kamiden/memserver"
	"github.com/argus-labs/kamisync/pkg/protoutil"
)

// serve starts a broadcaster on an in-process gRPC server and returns a client dialed to it.
func serve(t *testing.T, opts ...kamiden.Option) (*kamiden.Client, *memserver.Broadcaster) {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(protoutil.ServerOptions()...)
	b := memserver.NewBroadcaster()
	b.Register(srv)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	cfg := kamiden.Config{URL: "passthrough:///bufnet", ReconnectBackoff: "fixed", ReconnectDelay: time.Second}
	opts = append([]kamiden.Option{kamiden.WithDialOptions(
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)}, opts...)
	client, err := kamiden.Dial(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Stop() })
	return client, b
}

// delays records reconnect delays and fires them immediately.
type delays struct {
	mu  sync.Mutex
	got []time.Duration
}

func (d *delays) after(delay time.Duration) <-chan time.Time {
	d.mu.Lock()
	d.got = append(d.got, delay)
	d.mu.Unlock()
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}

func (d *delays) all() []time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]time.Duration(nil), d.got...)
}

// recorder collects callback invocations.
type recorder[T any] struct {
	mu  sync.Mutex
	got []T
}

func (r *recorder[T]) add(v T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, v)
}

func (r *recorder[T]) all() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]T(nil), r.got...)
}
