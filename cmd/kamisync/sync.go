package main

import (
	"context"
	"fmt"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/argus-labs/kamisync/pkg/kamiden"
	"github.com/argus-labs/kamisync/pkg/kamiden/kamidenv1"
	"github.com/argus-labs/kamisync/pkg/kamigaze"
	"github.com/argus-labs/kamisync/pkg/mirror/persist"
	"github.com/argus-labs/kamisync/pkg/mirror/store"
	"github.com/argus-labs/kamisync/pkg/mirror/syncer"
)

func newSyncCmd(a *app) *cobra.Command {
	var (
		followFeed bool
		quiet      bool
	)
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync the local mirror with kamigaze and persist it",
		Long: "Restores the persisted store, brings it up to date with kamigaze and saves it. " +
			"With KAMIGAZE_SYNC_INTERVAL set it keeps syncing until interrupted.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var out io.Writer = cmd.OutOrStdout()
			if quiet {
				out = io.Discard
			}
			return a.runSync(cmd.Context(), out, followFeed)
		},
	}
	cmd.Flags().BoolVar(&followFeed, "feed", false, "also follow kamiden and sync on every feed update")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not print progress")
	return cmd
}

func (a *app) runSync(ctx context.Context, out io.Writer, followFeed bool) error {
	syncCfg, err := syncer.LoadConfig()
	if err != nil {
		return err
	}
	gazeCfg, err := kamigaze.LoadConfig()
	if err != nil {
		return err
	}
	st, persistCfg, err := a.openStore()
	if err != nil {
		return err
	}
	storage, err := a.openStorage(ctx, persistCfg)
	if err != nil {
		return err
	}
	defer storage.Close()

	remote, err := kamigaze.Dial(gazeCfg, kamigaze.WithLogger(a.tel.GetLogger("kamigaze")))
	if err != nil {
		return err
	}
	defer remote.Close()

	s, err := syncer.New(remote, append(syncCfg.Options(),
		syncer.WithLogger(a.tel.GetLogger("syncer")),
		syncer.WithTracer(a.tel.Tracer),
		syncer.WithStatsd(a.tel.Statsd),
		syncer.WithErrorReporter(a.tel.CaptureException),
	)...)
	if err != nil {
		return err
	}

	runner := syncer.NewRunner(s, st, storage,
		syncer.WithInterval(syncCfg.SyncInterval),
		syncer.WithTimeout(syncCfg.SyncTimeout),
		syncer.WithProgress(func(progress float64, phase syncer.Phase) {
			fmt.Fprintf(out, "\rsyncing %3.0f%% %-10s", progress*100, phase)
			if phase == syncer.PhaseCommit {
				fmt.Fprintln(out)
			}
		}),
		syncer.WithRunnerLogger(a.tel.GetLogger("runner")),
		syncer.WithRunnerErrorReporter(a.tel.CaptureException),
		syncer.WithEventReporter(a.tel.CaptureEvent),
	)
	if err := runner.Restore(ctx); err != nil {
		return err
	}

	if !followFeed {
		if err := runner.Run(ctx); err != nil {
			return err
		}
		printSummary(out, st)
		return nil
	}
	return a.runSyncWithFeed(ctx, runner)
}

// runSyncWithFeed runs the sync loop and an extra sync for every feed update until ctx is done.
func (a *app) runSyncWithFeed(ctx context.Context, runner *syncer.Runner) error {
	feedCfg, err := kamiden.LoadConfig()
	if err != nil {
		return err
	}
	log := a.tel.GetLogger("sync")

	// Feed updates coalesce into one pending sync.
	trigger := make(chan uint64, 1)
	feed, err := kamiden.Dial(feedCfg,
		kamiden.WithLogger(a.tel.GetLogger("kamiden")),
		kamiden.WithoutAutoStart(),
	)
	if err != nil {
		return err
	}
	feed.OnFeed(func(f *kamidenv1.Feed) {
		select {
		case trigger <- f.BlockNumber:
		default:
		}
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return runner.Run(ctx)
	})
	g.Go(func() error {
		feed.Start(ctx)
		<-feed.Done()
		err := feed.Err()
		if stopErr := feed.Stop(); err == nil {
			err = stopErr
		}
		return err
	})
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case block := <-trigger:
				log.Debug().Uint64("block", block).Msg("feed update, syncing")
				if err := runner.RunOnce(ctx); err != nil && ctx.Err() == nil {
					log.Error().Err(err).Uint64("block", block).Msg("feed triggered sync failed")
					a.tel.CaptureException(ctx, err)
				}
			}
		}
	})
	if err := g.Wait(); err != nil && !eris.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// printSummary prints the cursors and sizes of st. Registry sizes leave out the sentinel slot.
func printSummary(out io.Writer, st *store.Store) {
	c := st.Cursors()
	fmt.Fprintf(out, "epoch %s block %d: %d components, %d entities, %d values\n",
		c.SchemaEpoch, c.LastSyncedBlock, max(st.ComponentsLen()-1, 0), max(st.EntitiesLen()-1, 0), st.Len())
}

// wipeStore removes the persisted store of the configured name, or every persisted store.
func (a *app) wipeStore(ctx context.Context, all bool) error {
	st, persistCfg, err := a.openStore()
	if err != nil {
		return err
	}
	storage, err := a.openStorage(ctx, persistCfg)
	if err != nil {
		return err
	}
	defer storage.Close()

	if all {
		return storage.WipeAll(ctx)
	}
	if err := storage.Wipe(ctx, st.PersistedName()); err != nil && !eris.Is(err, persist.ErrNotFound) {
		return err
	}
	return nil
}
