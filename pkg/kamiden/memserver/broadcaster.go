// Package memserver is an in-memory kamiden server that fans every published response out to
// all open streams.
package memserver

import (
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/argus-labs/kamisync/pkg/kamiden/kamidenv1"
)

const subscriberBuffer = 64

type subscriber struct {
	out  chan *kamidenv1.StreamResponse
	kick chan error
}

type Broadcaster struct {
	kamidenv1.UnimplementedKamidenServiceServer

	mu          sync.Mutex
	subscribers map[*subscriber]struct{}
	connections int
}

var _ kamidenv1.KamidenServiceServer = (*Broadcaster)(nil)

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subscribers: make(map[*subscriber]struct{})}
}

// Register adds the service to s. s must be created with protoutil.ServerOptions.
func (b *Broadcaster) Register(r grpc.ServiceRegistrar) {
	kamidenv1.RegisterKamidenServiceServer(r, b)
}

// Publish sends res to every open stream. A stream that cannot keep up is closed with
// ResourceExhausted.
func (b *Broadcaster) Publish(res *kamidenv1.StreamResponse) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subscribers {
		select {
		case sub.out <- res:
		default:
			b.kickLocked(sub, status.Error(codes.ResourceExhausted, "subscriber too slow"))
		}
	}
}

// Disconnect closes every open stream with err.
func (b *Broadcaster) Disconnect(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subscribers {
		b.kickLocked(sub, err)
	}
}

func (b *Broadcaster) kickLocked(sub *subscriber, err error) {
	select {
	case sub.kick <- err:
	default:
	}
	delete(b.subscribers, sub)
}

// Subscribers is the number of open streams.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}

// Connections is the number of streams ever opened.
func (b *Broadcaster) Connections() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connections
}

func (b *Broadcaster) SubscribeToStream(
	_ *kamidenv1.SubscribeToStreamRequest, stream grpc.ServerStreamingServer[kamidenv1.StreamResponse],
) error {
	sub := &subscriber{
		out:  make(chan *kamidenv1.StreamResponse, subscriberBuffer),
		kick: make(chan error, 1),
	}
	b.mu.Lock()
	b.subscribers[sub] = struct{}{}
	b.connections++
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.subscribers, sub)
		b.mu.Unlock()
	}()

	for {
		select {
		case <-stream.Context().Done():
			return stream.Context().Err()
		case err := <-sub.kick:
			return err
		case res := <-sub.out:
			if err := stream.Send(res); err != nil {
				return err
			}
		}
	}
}
