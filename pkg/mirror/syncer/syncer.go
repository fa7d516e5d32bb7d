// Package syncer pulls the remote world into a store: an epoch check followed by the components,
// removals, values and entities phases, committed as one batch.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	ddstatsd "github.com/DataDog/datadog-go/v5/statsd"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/singleflight"

	"github.com/argus-labs/kamisync/pkg/mirror/store"
)

// Phase names a step of a sync. It is passed to progress callbacks and used as the span and
// metric tag.
type Phase string

const (
	PhaseEpoch      Phase = "epoch"
	PhaseComponents Phase = "components"
	PhaseRemovals   Phase = "removals"
	PhaseValues     Phase = "values"
	PhaseEntities   Phase = "entities"
	PhaseCommit     Phase = "commit"
)

// Progress checkpoints. Each paged phase advances linearly from its start to the next checkpoint.
const (
	progressComponents = 0.05
	progressRemovals   = 0.40
	progressValues     = 0.75
	progressDone       = 1.0
)

// ProgressFunc receives the sync progress in [0, 1]. Reported values never decrease.
type ProgressFunc func(progress float64, phase Phase)

// ErrorReporter receives errors that do not fail a sync but leave the mirror diverged from the
// remote, and errors of failed runs.
type ErrorReporter func(ctx context.Context, err error)

// Syncer syncs stores against one remote. It is safe for concurrent use.
type Syncer struct {
	remote    Remote
	numChunks uint32
	policy    ConflictPolicy
	log       zerolog.Logger
	tracer    trace.Tracer
	statsd    ddstatsd.ClientInterface
	onError   ErrorReporter

	group singleflight.Group
}

type Option func(*Syncer)

// WithNumChunks sets how many pages the remote splits every paged response into.
func WithNumChunks(n uint32) Option {
	return func(s *Syncer) { s.numChunks = n }
}

func WithConflictPolicy(p ConflictPolicy) Option {
	return func(s *Syncer) { s.policy = p }
}

func WithLogger(log zerolog.Logger) Option {
	return func(s *Syncer) { s.log = log }
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Syncer) { s.tracer = t }
}

func WithStatsd(c ddstatsd.ClientInterface) Option {
	return func(s *Syncer) { s.statsd = c }
}

// WithErrorReporter receives the registry conflicts that ConflictSkip drops.
func WithErrorReporter(fn ErrorReporter) Option {
	return func(s *Syncer) { s.onError = fn }
}

const defaultNumChunks = 20

func New(remote Remote, opts ...Option) (*Syncer, error) {
	if remote == nil {
		return nil, eris.New("remote cannot be nil")
	}
	s := &Syncer{
		remote:    remote,
		numChunks: defaultNumChunks,
		policy:    ConflictSkip,
		log:       zerolog.Nop(),
		tracer:    noop.NewTracerProvider().Tracer("syncer"),
		statsd:    &ddstatsd.NoOpClient{},
		onError:   func(context.Context, error) {},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.numChunks == 0 {
		return nil, eris.New("number of chunks must be at least 1")
	}
	return s, nil
}

// Sync brings st up to date with the remote and returns it. When the remote schema epoch differs
// from the store's, the store is rebuilt from scratch.
//
// All phases are staged in one batch that is committed only when every phase succeeded, so on
// error (including cancellation of ctx) the store content and cursors are unchanged and Sync can
// simply be retried. Concurrent calls for the same store share a single run; only the first
// caller's onProgress is invoked.
func (s *Syncer) Sync(ctx context.Context, st *store.Store, onProgress ProgressFunc) (*store.Store, error) {
	key := fmt.Sprintf("%p", st)
	_, err, shared := s.group.Do(key, func() (any, error) {
		return nil, s.syncWithPolicy(ctx, st, onProgress)
	})
	if shared {
		s.log.Debug().Str("store", st.Name()).Msg("joined in-flight sync")
	}
	if err != nil {
		return st, err
	}
	return st, nil
}

func (s *Syncer) syncWithPolicy(ctx context.Context, st *store.Store, onProgress ProgressFunc) error {
	err := s.sync(ctx, st, newProgress(onProgress), false)
	var conflict store.RegistryIndexConflict
	if err != nil && s.policy == ConflictResync && errors.As(err, &conflict) {
		s.log.Warn().Err(err).Str("store", st.Name()).Msg("registry diverged, resyncing from scratch")
		s.statsd.Incr("sync.resync", nil, 1) //nolint:errcheck // metrics are best effort
		return s.sync(ctx, st, newProgress(onProgress), true)
	}
	return err
}

func (s *Syncer) sync(ctx context.Context, st *store.Store, progress *progress, forceReset bool) error {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "kamigaze.sync", trace.WithAttributes(
		attribute.String("store", st.Name()),
		attribute.Bool("force_reset", forceReset),
	))
	defer span.End()

	b := st.Begin()
	defer b.Discard()

	r := run{Syncer: s, batch: b, progress: progress}
	err := r.execute(ctx, forceReset)
	if err == nil {
		err = b.Commit()
	}
	if err != nil {
		span.SetStatus(codes.Error, eris.ToString(err, true))
		span.RecordError(err)
		s.statsd.Incr("sync.failure", nil, 1) //nolint:errcheck // metrics are best effort
		return eris.Wrapf(err, "failed to sync store %s", st.Name())
	}

	progress.report(progressDone, PhaseCommit)
	cursors := st.Cursors()
	tags := []string{"full:" + strconv.FormatBool(r.fullLoad)}
	s.statsd.Timing("sync.duration", time.Since(start), tags, 1) //nolint:errcheck // best effort
	s.log.Info().
		Str("store", st.Name()).
		Bool("full_load", r.fullLoad).
		Uint64("block", cursors.LastSyncedBlock).
		Uint32("components", cursors.LastSyncedComponentIndex).
		Uint32("entities", cursors.LastSyncedEntityIndex).
		Int("values", st.Len()).
		Dur("took", time.Since(start)).
		Msg("sync complete")
	return nil
}

// run holds the state of one sync attempt.
type run struct {
	*Syncer
	batch    *store.Batch
	progress *progress

	head     StateBlock
	fullLoad bool
}

func (r *run) execute(ctx context.Context, forceReset bool) error {
	if err := r.phase(ctx, PhaseEpoch, func(ctx context.Context) error {
		return r.checkEpoch(ctx, forceReset)
	}); err != nil {
		return err
	}
	if err := r.phase(ctx, PhaseComponents, r.syncComponents); err != nil {
		return err
	}
	if !r.fullLoad {
		if err := r.phase(ctx, PhaseRemovals, r.syncRemovals); err != nil {
			return err
		}
	}
	r.progress.report(progressRemovals, PhaseRemovals)
	if err := r.phase(ctx, PhaseValues, r.syncValues); err != nil {
		return err
	}
	if err := r.phase(ctx, PhaseEntities, r.syncEntities); err != nil {
		return err
	}

	c := r.batch.Cursors()
	c.LastSyncedBlock = r.head.BlockNumber
	c.SchemaEpoch = r.head.SchemaEpoch
	r.batch.SetCursors(c)
	return nil
}

// phase runs fn inside its own span and records its duration.
func (r *run) phase(ctx context.Context, p Phase, fn func(ctx context.Context) error) error {
	start := time.Now()
	ctx, span := r.tracer.Start(ctx, "kamigaze.sync."+string(p))
	defer span.End()

	if err := ctx.Err(); err != nil {
		return eris.Wrapf(err, "sync canceled before %s phase", p)
	}
	if err := fn(ctx); err != nil {
		span.SetStatus(codes.Error, eris.ToString(err, true))
		span.RecordError(err)
		return eris.Wrapf(err, "%s phase failed", p)
	}

	r.statsd.Timing("sync.phase", time.Since(start), []string{"phase:" + string(p)}, 1) //nolint:errcheck // best effort
	r.log.Debug().Str("phase", string(p)).Dur("took", time.Since(start)).Msg("sync phase complete")
	return nil
}

func (r *run) checkEpoch(ctx context.Context, forceReset bool) error {
	head, err := r.remote.GetStateBlock(ctx)
	if err != nil {
		return eris.Wrap(err, "failed to get state block")
	}
	r.head = head

	local := r.batch.Cursors().SchemaEpoch
	if forceReset || head.SchemaEpoch != local {
		if local != "" {
			r.log.Warn().
				Str("local_epoch", local).
				Str("remote_epoch", head.SchemaEpoch).
				Bool("forced", forceReset).
				Msg("schema epoch changed, discarding local state")
		}
		r.batch.Reset()
		r.fullLoad = true
	}
	return nil
}

func (r *run) syncComponents(ctx context.Context) error {
	c := r.batch.Cursors()
	r.batch.TruncateComponentsAfter(c.LastSyncedComponentIndex)

	entries, err := r.remote.GetComponents(ctx, c.LastSyncedComponentIndex)
	if err != nil {
		return eris.Wrap(err, "failed to get components")
	}
	if err := r.checkConflicts(ctx, r.batch.AppendComponents(entries)); err != nil {
		return err
	}

	c.LastSyncedComponentIndex = uint32(r.batch.ComponentsLen() - 1) //nolint:gosec // bounded by the packed index layout
	r.batch.SetCursors(c)
	r.progress.report(progressComponents, PhaseComponents)
	return nil
}

func (r *run) syncRemovals(ctx context.Context) error {
	pages := r.pageProgress(progressComponents, progressRemovals, PhaseRemovals)
	removed := 0
	err := r.remote.EachState(ctx, r.batch.Cursors().LastSyncedBlock, r.numChunks, true,
		func(page []StateEntry) error {
			for _, e := range page {
				r.batch.RemoveValue(e.PackedIndex)
			}
			removed += len(page)
			pages()
			return nil
		})
	if err != nil {
		return eris.Wrap(err, "failed to get removed state")
	}
	r.statsd.Count("sync.removed", int64(removed), nil, 1) //nolint:errcheck // best effort
	return nil
}

func (r *run) syncValues(ctx context.Context) error {
	pages := r.pageProgress(progressRemovals, progressValues, PhaseValues)
	put := 0
	err := r.remote.EachState(ctx, r.batch.Cursors().LastSyncedBlock, r.numChunks, false,
		func(page []StateEntry) error {
			for _, e := range page {
				if err := r.batch.PutValue(ctx, e.PackedIndex, e.Data); err != nil {
					return err
				}
			}
			put += len(page)
			pages()
			return nil
		})
	if err != nil {
		return eris.Wrap(err, "failed to apply state")
	}
	r.statsd.Count("sync.put", int64(put), nil, 1) //nolint:errcheck // best effort
	return nil
}

func (r *run) syncEntities(ctx context.Context) error {
	c := r.batch.Cursors()
	r.batch.TruncateEntitiesAfter(c.LastSyncedEntityIndex)

	pages := r.pageProgress(progressValues, progressDone, PhaseEntities)
	err := r.remote.EachEntities(ctx, c.LastSyncedEntityIndex, r.numChunks, func(page []store.Entry) error {
		if err := r.checkConflicts(ctx, r.batch.AppendEntities(page)); err != nil {
			return err
		}
		pages()
		return nil
	})
	if err != nil {
		return eris.Wrap(err, "failed to get entities")
	}

	c = r.batch.Cursors()
	c.LastSyncedEntityIndex = uint32(r.batch.EntitiesLen() - 1) //nolint:gosec // bounded by the packed index layout
	r.batch.SetCursors(c)
	return nil
}

// checkConflicts applies the conflict policy to the entries the batch rejected.
func (r *run) checkConflicts(ctx context.Context, conflicts []store.RegistryIndexConflict) error {
	if len(conflicts) == 0 {
		return nil
	}
	r.statsd.Count("sync.conflicts", int64(len(conflicts)), nil, 1) //nolint:errcheck // best effort
	if r.policy == ConflictResync {
		return conflicts[0]
	}
	r.onError(ctx, eris.Wrapf(conflicts[0], "skipped %d conflicting %s entries",
		len(conflicts), conflicts[0].Registry))
	return nil
}

// pageProgress returns a func to call after each page, moving progress from lo toward hi by one
// numChunks-th of the range per page.
func (r *run) pageProgress(lo, hi float64, p Phase) func() {
	received := 0
	return func() {
		received++
		frac := float64(received) / float64(r.numChunks)
		if frac > 1 {
			frac = 1
		}
		r.progress.report(lo+(hi-lo)*frac, p)
	}
}

// progress forwards monotonically increasing values to a ProgressFunc.
type progress struct {
	fn   ProgressFunc
	last float64
}

func newProgress(fn ProgressFunc) *progress {
	return &progress{fn: fn}
}

func (p *progress) report(v float64, phase Phase) {
	if p.fn == nil || v < p.last {
		return
	}
	p.last = v
	p.fn(v, phase)
}
