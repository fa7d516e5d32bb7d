// Package kamigaze is the gRPC client of the kamigaze snapshot/delta service. Client implements
// syncer.Remote.
package kamigaze

import (
	"context"
	"crypto/tls"
	"errors"
	"io"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	riftcreds "pkg.world.dev/world-engine/rift/credentials"

	"github.com/argus-labs/kamisync/pkg/kamigaze/kamigazev1"
	"github.com/argus-labs/kamisync/pkg/mirror/schema"
	"github.com/argus-labs/kamisync/pkg/mirror/store"
	"github.com/argus-labs/kamisync/pkg/mirror/syncer"
)

var _ syncer.Remote = (*Client)(nil)

type Client struct {
	rpc      kamigazev1.KamigazeServiceClient
	conn     *grpc.ClientConn
	log      zerolog.Logger
	dialOpts []grpc.DialOption
}

type Option func(*Client)

func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithDialOptions appends gRPC dial options used by Dial.
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(c *Client) { c.dialOpts = append(c.dialOpts, opts...) }
}

func newClient(opts []Option) *Client {
	c := &Client{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dial connects to the server in cfg. The connection is established lazily on the first call.
func Dial(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	c := newClient(opts)

	creds := insecure.NewCredentials()
	if cfg.TLS {
		creds = credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(creds),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	}
	if cfg.APIKey != "" {
		dialOpts = append(dialOpts, grpc.WithPerRPCCredentials(riftcreds.NewSimpleTokenCredential(cfg.APIKey)))
	}
	dialOpts = append(dialOpts, c.dialOpts...)

	conn, err := grpc.NewClient(cfg.URL, dialOpts...)
	if err != nil {
		return nil, eris.Wrapf(err, "error dialing kamigaze at %q", cfg.URL)
	}
	c.conn = conn
	c.rpc = kamigazev1.NewKamigazeServiceClient(conn)
	return c, nil
}

// NewClient wraps an existing connection. Close does not close cc.
func NewClient(cc grpc.ClientConnInterface, opts ...Option) *Client {
	c := newClient(opts)
	c.rpc = kamigazev1.NewKamigazeServiceClient(cc)
	return c
}

func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return eris.Wrap(c.conn.Close(), "failed to close kamigaze connection")
}

func (c *Client) GetStateBlock(ctx context.Context) (syncer.StateBlock, error) {
	res, err := c.rpc.GetStateBlock(ctx, &kamigazev1.GetStateBlockRequest{})
	if err != nil {
		return syncer.StateBlock{}, transportError("GetStateBlock", err)
	}
	return syncer.StateBlock{
		BlockNumber: res.BlockNumber,
		SchemaEpoch: schema.FormatID(res.SchemaEpoch),
	}, nil
}

func (c *Client) GetComponents(ctx context.Context, fromIndex uint32) ([]store.Entry, error) {
	res, err := c.rpc.GetComponents(ctx, &kamigazev1.GetComponentsRequest{FromIndex: fromIndex})
	if err != nil {
		return nil, transportError("GetComponents", err)
	}
	c.log.Debug().Uint32("from", fromIndex).Int("count", len(res.Components)).Msg("received components")
	return toEntries(res.Components), nil
}

func (c *Client) EachEntities(
	ctx context.Context, fromIndex, numChunks uint32, fn func(page []store.Entry) error,
) error {
	stream, err := c.rpc.GetEntities(ctx, &kamigazev1.GetEntitiesRequest{FromIndex: fromIndex, NumChunks: numChunks})
	if err != nil {
		return transportError("GetEntities", err)
	}
	for {
		res, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return transportError("GetEntities", err)
		}
		if err := fn(toEntries(res.Entities)); err != nil {
			return err
		}
	}
}

func (c *Client) EachState(
	ctx context.Context, fromBlock uint64, numChunks uint32, removals bool, fn func(page []syncer.StateEntry) error,
) error {
	stream, err := c.rpc.GetState(ctx, &kamigazev1.GetStateRequest{
		FromBlock: fromBlock,
		NumChunks: numChunks,
		Removals:  removals,
	})
	if err != nil {
		return transportError("GetState", err)
	}
	for {
		res, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return transportError("GetState", err)
		}
		page := make([]syncer.StateEntry, 0, len(res.State))
		for _, e := range res.State {
			page = append(page, syncer.StateEntry{PackedIndex: store.PackedIndex(e.PackedIdx), Data: e.Data})
		}
		if err := fn(page); err != nil {
			return err
		}
	}
}

func toEntries(in []*kamigazev1.Entry) []store.Entry {
	out := make([]store.Entry, 0, len(in))
	for _, e := range in {
		out = append(out, store.Entry{Idx: e.Idx, ID: schema.FormatID(e.ID)})
	}
	return out
}
