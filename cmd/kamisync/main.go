// Command kamisync mirrors a remote ECS world into a local cache and follows its live feed.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/argus-labs/kamisync/pkg/telemetry/sentry"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	// No-op unless the root command initialized Sentry.
	defer sentry.RecoverAndFlush(true)

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1) //nolint:gocritic // stop already ran
	}
}
