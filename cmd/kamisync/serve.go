package main

import (
	"context"
	"net"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/argus-labs/kamisync/pkg/kamiden/kamidenv1"
	kamidenserver "github.com/argus-labs/kamisync/pkg/kamiden/memserver"
	"github.com/argus-labs/kamisync/pkg/kamigaze/memserver"
	"github.com/argus-labs/kamisync/pkg/protoutil"
)

type serveOptions struct {
	fixture     string
	kamigazeAdr string
	kamidenAdr  string
	heartbeat   time.Duration
}

func newServeCmd(a *app) *cobra.Command {
	var opts serveOptions
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a fixture world over in-memory kamigaze and kamiden servers",
		Long: "Serves the world described by a JSON fixture. With --heartbeat, an empty block is " +
			"committed every interval and announced on the kamiden feed.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.fixture, "fixture", "", "path of the JSON fixture (required)")
	cmd.Flags().StringVar(&opts.kamigazeAdr, "kamigaze-addr", ":9091", "kamigaze listen address")
	cmd.Flags().StringVar(&opts.kamidenAdr, "kamiden-addr", ":9092", "kamiden listen address")
	cmd.Flags().DurationVar(&opts.heartbeat, "heartbeat", 0, "commit an empty block this often")
	_ = cmd.MarkFlagRequired("fixture")
	return cmd
}

func (a *app) serve(ctx context.Context, opts serveOptions) error {
	log := a.tel.GetLogger("serve")

	f, err := os.Open(opts.fixture)
	if err != nil {
		return eris.Wrap(err, "failed to open fixture")
	}
	world, err := memserver.LoadFixture(f)
	f.Close()
	if err != nil {
		return err
	}
	feed := kamidenserver.NewBroadcaster()

	gazeSrv := newGRPCServer()
	world.Register(gazeSrv)
	denSrv := newGRPCServer()
	feed.Register(denSrv)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return listenAndServe(ctx, log, "kamigaze", opts.kamigazeAdr, gazeSrv) })
	g.Go(func() error { return listenAndServe(ctx, log, "kamiden", opts.kamidenAdr, denSrv) })
	if opts.heartbeat > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(opts.heartbeat)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					block := world.Commit()
					feed.Publish(&kamidenv1.StreamResponse{Feed: &kamidenv1.Feed{BlockNumber: block}})
					log.Debug().Uint64("block", block).Int("subscribers", feed.Subscribers()).Msg("heartbeat")
				}
			}
		})
	}
	return g.Wait()
}

func newGRPCServer() *grpc.Server {
	return grpc.NewServer(append(protoutil.ServerOptions(),
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
	)...)
}

// listenAndServe serves srv on addr until ctx is done.
func listenAndServe(ctx context.Context, log zerolog.Logger, name, addr string, srv *grpc.Server) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return eris.Wrapf(err, "failed to listen on %s", addr)
	}
	log.Info().Str("service", name).Str("addr", lis.Addr().String()).Msg("serving")

	go func() {
		<-ctx.Done()
		srv.Stop()
	}()
	if err := srv.Serve(lis); err != nil {
		return eris.Wrapf(err, "%s server failed", name)
	}
	return nil
}
