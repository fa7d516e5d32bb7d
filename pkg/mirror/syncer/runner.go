package syncer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"github.com/argus-labs/kamisync/pkg/mirror/persist"
	"github.com/argus-labs/kamisync/pkg/mirror/store"
)

// EventSyncComplete is reported after every sync that was persisted.
const EventSyncComplete = "sync complete"

// EventReporter receives named analytics events.
type EventReporter func(ctx context.Context, event string, props map[string]any)

// Runner keeps one store in sync: it syncs, persists the result and repeats every interval.
// Runs never overlap, so saves land in the order the syncs committed.
type Runner struct {
	syncer   *Syncer
	store    *store.Store
	storage  persist.Storage
	interval time.Duration
	timeout  time.Duration
	progress ProgressFunc
	log      zerolog.Logger
	onError  ErrorReporter
	onEvent  EventReporter

	mu sync.Mutex
}

type RunnerOption func(*Runner)

// WithInterval sets the sync period. Zero makes Run return after the first sync.
func WithInterval(d time.Duration) RunnerOption {
	return func(r *Runner) { r.interval = d }
}

// WithTimeout bounds every sync.
func WithTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) { r.timeout = d }
}

func WithProgress(fn ProgressFunc) RunnerOption {
	return func(r *Runner) { r.progress = fn }
}

func WithRunnerLogger(log zerolog.Logger) RunnerOption {
	return func(r *Runner) { r.log = log }
}

// WithRunnerErrorReporter receives every failed run that Run swallows or returns.
func WithRunnerErrorReporter(fn ErrorReporter) RunnerOption {
	return func(r *Runner) { r.onError = fn }
}

// WithEventReporter receives EventSyncComplete after every persisted sync.
func WithEventReporter(fn EventReporter) RunnerOption {
	return func(r *Runner) { r.onEvent = fn }
}

const defaultSyncTimeout = 5 * time.Minute

func NewRunner(s *Syncer, st *store.Store, storage persist.Storage, opts ...RunnerOption) *Runner {
	r := &Runner{
		syncer:  s,
		store:   st,
		storage: storage,
		timeout: defaultSyncTimeout,
		log:     zerolog.Nop(),
		onError: func(context.Context, error) {},
		onEvent: func(context.Context, string, map[string]any) {},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Restore loads the persisted store. A missing entry is not an error.
func (r *Runner) Restore(ctx context.Context) error {
	err := persist.LoadStore(ctx, r.storage, r.store)
	if eris.Is(err, persist.ErrNotFound) {
		r.log.Info().Str("store", r.store.PersistedName()).Msg("no persisted store, starting empty")
		return nil
	}
	if err != nil {
		return err
	}
	c := r.store.Cursors()
	r.log.Info().
		Str("store", r.store.PersistedName()).
		Uint64("block", c.LastSyncedBlock).
		Str("epoch", c.SchemaEpoch).
		Msg("restored persisted store")
	return nil
}

// RunOnce syncs the store and persists it on success. Concurrent calls run one after the other.
func (r *Runner) RunOnce(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if _, err := r.syncer.Sync(ctx, r.store, r.progress); err != nil {
		return err
	}
	if err := persist.SaveStore(ctx, r.storage, r.store); err != nil {
		return err
	}

	c := r.store.Cursors()
	r.onEvent(ctx, EventSyncComplete, map[string]any{
		"store": r.store.PersistedName(),
		"block": c.LastSyncedBlock,
		"epoch": c.SchemaEpoch,
	})
	return nil
}

// Run syncs until ctx is done. Failed runs are logged and retried on the next tick. With a zero
// interval it runs once and returns that run's error.
func (r *Runner) Run(ctx context.Context) error {
	err := r.RunOnce(ctx)
	if r.interval == 0 {
		if err != nil && ctx.Err() == nil {
			r.onError(ctx, err)
		}
		return err
	}
	if err != nil {
		r.fail(ctx, err)
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := r.RunOnce(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				r.fail(ctx, err)
			}
		}
	}
}

// temporary is implemented by transport errors that may succeed on retry.
type temporary interface {
	Temporary() bool
}

// fail logs a failed run and hands it to the error reporter. Temporary failures are logged as
// warnings.
func (r *Runner) fail(ctx context.Context, err error) {
	var t temporary
	if errors.As(err, &t) && t.Temporary() {
		r.log.Warn().Err(err).Msg("sync failed, retrying next interval")
	} else {
		r.log.Error().Err(err).Bool("permanent", true).Msg("sync failed, retrying next interval")
	}
	r.onError(ctx, err)
}
