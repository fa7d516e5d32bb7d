// Package kamiden is the client of the kamiden live feed. It keeps one stream open, hands every
// pushed message and feed to the registered callbacks and reconnects when the stream breaks.
package kamiden

import (
	"context"
	"crypto/tls"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/argus-labs/kamisync/pkg/kamiden/kamidenv1"
)

// ErrStreamDisconnected is logged whenever the stream breaks. It is never returned to callers.
var ErrStreamDisconnected = eris.New("kamiden stream disconnected")

// ErrReconnectAttemptsExhausted is reported by Err when the reconnect policy gave up.
var ErrReconnectAttemptsExhausted = eris.New("kamiden reconnect attempts exhausted")

type State int32

const (
	Disconnected State = iota
	Connecting
	Streaming
	Reconnecting
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Streaming:
		return "streaming"
	case Reconnecting:
		return "reconnecting"
	default:
		return "undefined"
	}
}

type (
	MessageFunc func(msg *kamidenv1.Message)
	FeedFunc    func(feed *kamidenv1.Feed)
)

type callback[F any] struct {
	fn      F
	removed atomic.Bool
}

type Client struct {
	rpc      kamidenv1.KamidenServiceClient
	conn     *grpc.ClientConn
	policy   ReconnectPolicy
	log      zerolog.Logger
	after    func(time.Duration) <-chan time.Time
	dialOpts []grpc.DialOption

	state atomic.Int32

	mu        sync.Mutex
	onMessage []*callback[MessageFunc]
	onFeed    []*callback[FeedFunc]
	autoStart bool
	started   bool
	stopped   bool
	cancel    context.CancelFunc
	done      chan struct{}
	err       error

	stopOnce sync.Once
	stopErr  error
}

type Option func(*Client)

func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

func WithReconnectPolicy(p ReconnectPolicy) Option {
	return func(c *Client) { c.policy = p }
}

// WithAfter replaces time.After for reconnect delays.
func WithAfter(after func(time.Duration) <-chan time.Time) Option {
	return func(c *Client) { c.after = after }
}

// WithoutAutoStart keeps the first callback registration from opening the stream. The stream is
// then opened by Start only.
func WithoutAutoStart() Option {
	return func(c *Client) { c.autoStart = false }
}

// WithDialOptions appends gRPC dial options used by Dial.
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(c *Client) { c.dialOpts = append(c.dialOpts, opts...) }
}

func newClient(opts []Option) (*Client, error) {
	c := &Client{
		policy:    DefaultReconnectPolicy(),
		log:       zerolog.Nop(),
		after:     time.After,
		autoStart: true,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.policy.validate(); err != nil {
		return nil, eris.Wrap(err, "invalid reconnect policy")
	}
	return c, nil
}

// Dial creates a client for the server in cfg, using the reconnect policy of cfg unless an option
// overrides it.
func Dial(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	c, err := newClient(append([]Option{WithReconnectPolicy(cfg.ReconnectPolicy())}, opts...))
	if err != nil {
		return nil, err
	}

	creds := insecure.NewCredentials()
	if cfg.TLS {
		creds = credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(creds),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	}, c.dialOpts...)

	conn, err := grpc.NewClient(cfg.URL, dialOpts...)
	if err != nil {
		return nil, eris.Wrapf(err, "error dialing kamiden at %q", cfg.URL)
	}
	c.conn = conn
	c.rpc = kamidenv1.NewKamidenServiceClient(conn)
	return c, nil
}

// NewClient creates a client over rpc.
func NewClient(rpc kamidenv1.KamidenServiceClient, opts ...Option) (*Client, error) {
	c, err := newClient(opts)
	if err != nil {
		return nil, err
	}
	c.rpc = rpc
	return c, nil
}

func (c *Client) State() State {
	return State(c.state.Load())
}

func (c *Client) setState(s State) {
	if prev := State(c.state.Swap(int32(s))); prev != s {
		c.log.Debug().Stringer("from", prev).Stringer("to", s).Msg("kamiden state changed")
	}
}

// OnMessage registers fn for every received message and returns a func that deregisters it.
// Callbacks run on the stream goroutine in registration order.
func (c *Client) OnMessage(fn MessageFunc) func() {
	cb := &callback[MessageFunc]{fn: fn}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onMessage = append(c.onMessage, cb)
	c.maybeAutoStartLocked()
	return func() { c.deregister(&cb.removed, func() { c.onMessage = without(c.onMessage, cb) }) }
}

// OnFeed registers fn for every received feed and returns a func that deregisters it.
func (c *Client) OnFeed(fn FeedFunc) func() {
	cb := &callback[FeedFunc]{fn: fn}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onFeed = append(c.onFeed, cb)
	c.maybeAutoStartLocked()
	return func() { c.deregister(&cb.removed, func() { c.onFeed = without(c.onFeed, cb) }) }
}

func (c *Client) deregister(removed *atomic.Bool, remove func()) {
	if removed.Swap(true) {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	remove()
}

func without[T any](cbs []*callback[T], cb *callback[T]) []*callback[T] {
	out := make([]*callback[T], 0, len(cbs))
	for _, x := range cbs {
		if x != cb {
			out = append(out, x)
		}
	}
	return out
}

func (c *Client) maybeAutoStartLocked() {
	if c.autoStart {
		c.startLocked(context.Background())
	}
}

// Start opens the stream in the background. It does nothing if the stream was already started or
// the client was stopped. Canceling ctx stops the client.
func (c *Client) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.startLocked(ctx)
}

func (c *Client) startLocked(ctx context.Context) {
	if c.started || c.stopped {
		return
	}
	c.started = true
	ctx, c.cancel = context.WithCancel(ctx)
	go func() {
		err := c.run(ctx)
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
		close(c.done)
	}()
}

// Stop closes the stream, cancels any pending reconnect and waits for the stream goroutine. It
// also closes the connection created by Dial. Done is closed once Stop returns, also for a client
// that was never started. Calls after the first return its result. Stop must not be called from a
// callback.
func (c *Client) Stop() error {
	c.stopOnce.Do(func() {
		c.mu.Lock()
		c.stopped = true
		started := c.started
		if c.cancel != nil {
			c.cancel()
		}
		if !started {
			close(c.done)
		}
		c.mu.Unlock()

		if started {
			<-c.done
		}
		if c.conn != nil {
			c.stopErr = eris.Wrap(c.conn.Close(), "failed to close kamiden connection")
		}
	})
	return c.stopErr
}

// Done is closed once the stream goroutine exited, either after Stop or when the reconnect policy
// gave up. For a client that was never started it is closed by Stop.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns ErrReconnectAttemptsExhausted if the client gave up reconnecting, nil otherwise.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Client) run(ctx context.Context) error {
	defer c.setState(Disconnected)

	b := c.policy.newBackOff()
	for {
		c.setState(Connecting)
		err := c.stream(ctx, b)
		if ctx.Err() != nil {
			return nil
		}
		c.log.Warn().Err(eris.Wrap(ErrStreamDisconnected, err.Error())).Msg("kamiden stream disconnected")

		delay := b.NextBackOff()
		if delay == backoff.Stop {
			c.log.Error().Uint64("max_attempts", c.policy.MaxAttempts).Msg("giving up reconnecting to kamiden")
			return ErrReconnectAttemptsExhausted
		}
		c.setState(Reconnecting)
		c.log.Info().Dur("delay", delay).Msg("reconnecting to kamiden")
		select {
		case <-ctx.Done():
			return nil
		case <-c.after(delay):
		}
	}
}

// stream reads one stream until it fails. The backoff is reset once a response arrives.
func (c *Client) stream(ctx context.Context, b backoff.BackOff) error {
	stream, err := c.rpc.SubscribeToStream(ctx, &kamidenv1.SubscribeToStreamRequest{})
	if err != nil {
		return eris.Wrap(err, "failed to subscribe")
	}
	c.setState(Streaming)
	c.log.Info().Msg("kamiden stream opened")

	received := false
	for {
		res, err := stream.Recv()
		if err != nil {
			return eris.Wrap(err, "failed to receive")
		}
		if !received {
			received = true
			b.Reset()
		}
		c.dispatch(res)
	}
}

func (c *Client) dispatch(res *kamidenv1.StreamResponse) {
	c.mu.Lock()
	onMessage := c.onMessage
	onFeed := c.onFeed
	c.mu.Unlock()

	for _, msg := range res.Messages {
		for _, cb := range onMessage {
			if !cb.removed.Load() {
				cb.fn(msg)
			}
		}
	}
	if res.Feed == nil {
		return
	}
	for _, cb := range onFeed {
		if !cb.removed.Load() {
			cb.fn(res.Feed)
		}
	}
}
