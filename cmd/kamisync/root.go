package main

import (
	"context"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/argus-labs/kamisync/pkg/mirror/decode"
	"github.com/argus-labs/kamisync/pkg/mirror/persist"
	"github.com/argus-labs/kamisync/pkg/mirror/schema"
	"github.com/argus-labs/kamisync/pkg/mirror/store"
	"github.com/argus-labs/kamisync/pkg/telemetry"
	"github.com/argus-labs/kamisync/pkg/telemetry/posthog"
)

const shutdownTimeout = 5 * time.Second

// app holds what every subcommand shares.
type app struct {
	tel telemetry.Telemetry

	unknownSchema string
}

func newRootCmd() *cobra.Command {
	a := &app{tel: telemetry.Nop()}
	root := &cobra.Command{
		Use:           "kamisync",
		Short:         "Mirror a kamigaze world into a local cache",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			tel, err := telemetry.New(telemetry.Options{
				ServiceName:    "kamisync",
				PosthogOptions: posthog.Options{DistinctID: installationID()},
			})
			if err != nil {
				return eris.Wrap(err, "failed to set up telemetry")
			}
			a.tel = tel
			return nil
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return a.tel.Shutdown(ctx)
		},
	}
	root.PersistentFlags().StringVar(&a.unknownSchema, "unknown-schema", "bool",
		"how to decode components without a schema: bool or raw")

	root.AddCommand(
		newSyncCmd(a),
		newFeedCmd(a),
		newWipeCmd(a),
		newInspectCmd(a),
		newServeCmd(a),
	)
	return root
}

// installationID identifies this machine in analytics events.
func installationID() string {
	host, err := os.Hostname()
	if err != nil {
		return ""
	}
	return host
}

// openStore builds an empty store with a decoder over the configured schema registry.
func (a *app) openStore() (*store.Store, persist.Config, error) {
	persistCfg, err := persist.LoadConfig()
	if err != nil {
		return nil, persistCfg, err
	}
	schemaCfg, err := schema.LoadConfig()
	if err != nil {
		return nil, persistCfg, err
	}
	registry, err := schema.Open(schemaCfg)
	if err != nil {
		return nil, persistCfg, err
	}
	policy, err := decode.ParseUnknownPolicy(a.unknownSchema)
	if err != nil {
		return nil, persistCfg, err
	}

	cache := decode.NewCache(registry,
		decode.WithLogger(a.tel.GetLogger("decode")),
		decode.WithUnknownPolicy(policy),
		decode.WithErrorReporter(a.tel.CaptureException),
	)
	st := store.New(persistCfg.Name,
		store.WithDecoder(cache),
		store.WithLogger(a.tel.GetLogger("store")),
	)
	return st, persistCfg, nil
}

// openStorage opens the configured persistence backend.
func (a *app) openStorage(ctx context.Context, cfg persist.Config) (persist.Storage, error) {
	return persist.New(ctx, cfg, a.tel.GetLogger("persist"))
}
