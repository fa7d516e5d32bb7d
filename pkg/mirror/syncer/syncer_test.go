package syncer_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/argus-labs/kamisync/pkg/mirror/decode"
	"github.com/argus-labs/kamisync/pkg/mirror/schema"
	"github.com/argus-labs/kamisync/pkg/mirror/store"
	"github.com/argus-labs/kamisync/pkg/mirror/syncer"
)

var uint32Schema = schema.Schema{Keys: []string{"value"}, Values: []schema.ValueType{schema.Uint32}}

func encodeUint32(t *testing.T, v uint32) []byte {
	t.Helper()
	args, err := decode.Arguments(uint32Schema)
	require.NoError(t, err)
	raw, err := args.Pack(v)
	require.NoError(t, err)
	return raw
}

func newStore(t *testing.T) *store.Store {
	t.Helper()
	registry := schema.NewMapRegistry()
	for _, id := range []string{"0xc1", "0xc2", "0xc3", "0xc9"} {
		require.NoError(t, registry.Register(id, uint32Schema))
	}
	return store.New("test", store.WithDecoder(decode.NewCache(registry)))
}

func newSyncer(t *testing.T, remote syncer.Remote, opts ...syncer.Option) *syncer.Syncer {
	t.Helper()
	s, err := syncer.New(remote, append([]syncer.Option{syncer.WithNumChunks(2)}, opts...)...)
	require.NoError(t, err)
	return s
}

func put(p store.PackedIndex, data []byte) stateEvent {
	return stateEvent{index: p, data: data}
}

func remove(p store.PackedIndex) stateEvent {
	return stateEvent{index: p, removed: true}
}

func value(t *testing.T, st *store.Store, p store.PackedIndex) any {
	t.Helper()
	v, ok := st.GetValue(p)
	if !ok {
		return nil
	}
	return v["value"]
}

func TestSync_FullLoad(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	remote := newFakeRemote("0x01")
	c1 := remote.addComponent("0xc1")
	e1 := remote.addEntity("0xe1")
	e2 := remote.addEntity("0xe2")
	e3 := remote.addEntity("0xe3")
	remote.commit(
		put(store.MustPack(c1, e1), encodeUint32(t, 42)),
		put(store.MustPack(c1, e2), encodeUint32(t, 7)),
		put(store.MustPack(c1, e3), encodeUint32(t, 9)),
	)

	var (
		reports []float64
		phases  []syncer.Phase
	)
	st := newStore(t)
	got, err := newSyncer(t, remote).Sync(ctx, st, func(p float64, phase syncer.Phase) {
		reports = append(reports, p)
		phases = append(phases, phase)
	})
	require.NoError(t, err)
	assert.Same(t, st, got)

	assert.Equal(t, store.Cursors{
		LastSyncedBlock:          1,
		LastSyncedComponentIndex: 1,
		LastSyncedEntityIndex:    3,
		SchemaEpoch:              "0x01",
	}, st.Cursors())
	assert.Equal(t, int64(42), value(t, st, store.MustPack(1, 1)))
	assert.Equal(t, int64(9), value(t, st, store.MustPack(1, 3)))
	slot, ok := st.EntitySlot("0xe2")
	require.True(t, ok)
	assert.Equal(t, uint32(2), slot)

	// A full load never asks for removals.
	assert.Empty(t, remote.callArgs("EachStateRemovals"))

	require.NotEmpty(t, reports)
	assert.IsNonDecreasing(t, reports)
	assert.InDelta(t, 1.0, reports[len(reports)-1], 1e-9)
	assert.Equal(t, syncer.PhaseCommit, phases[len(phases)-1])
	assert.Contains(t, phases, syncer.PhaseComponents)
	assert.Contains(t, phases, syncer.PhaseValues)
	assert.Contains(t, phases, syncer.PhaseEntities)
}

func TestSync_ConcreteExample(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	remote := newFakeRemote("0x01")
	remote.addComponent("0xc1")
	for i := range 7 {
		remote.addEntity(fmt.Sprintf("0xe%d", i+1))
	}
	p := store.MustPack(1, 7)
	remote.commit(put(p, encodeUint32(t, 42)))

	st := newStore(t)
	s := newSyncer(t, remote)
	_, err := s.Sync(ctx, st, nil)
	require.NoError(t, err)
	v, ok := st.GetValue(p)
	require.True(t, ok)
	assert.Equal(t, decode.Record{"value": int64(42)}, v)

	remote.commit(remove(p))
	_, err = s.Sync(ctx, st, nil)
	require.NoError(t, err)
	_, ok = st.GetValue(p)
	assert.False(t, ok)
}

func TestSync_Incremental(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	remote := newFakeRemote("0x01")
	c1 := remote.addComponent("0xc1")
	e1 := remote.addEntity("0xe1")
	e2 := remote.addEntity("0xe2")
	remote.commit(
		put(store.MustPack(c1, e1), encodeUint32(t, 1)),
		put(store.MustPack(c1, e2), encodeUint32(t, 2)),
	)

	st := newStore(t)
	s := newSyncer(t, remote)
	_, err := s.Sync(ctx, st, nil)
	require.NoError(t, err)

	// Block 2: a new component and entity, one update, one removal.
	c2 := remote.addComponent("0xc2")
	e3 := remote.addEntity("0xe3")
	remote.commit(
		put(store.MustPack(c2, e3), encodeUint32(t, 30)),
		put(store.MustPack(c1, e1), encodeUint32(t, 10)),
		remove(store.MustPack(c1, e2)),
	)
	_, err = s.Sync(ctx, st, nil)
	require.NoError(t, err)

	assert.Equal(t, []uint64{0, 1}, remote.callArgs("GetComponents"))
	assert.Equal(t, []uint64{1}, remote.callArgs("EachStateRemovals"))
	assert.Equal(t, []uint64{0, 1}, remote.callArgs("EachState"))
	assert.Equal(t, []uint64{0, 2}, remote.callArgs("EachEntities"))

	assert.Equal(t, int64(10), value(t, st, store.MustPack(1, 1)))
	assert.Nil(t, value(t, st, store.MustPack(1, 2)))
	assert.Equal(t, int64(30), value(t, st, store.MustPack(2, 3)))
	assert.Equal(t, store.Cursors{
		LastSyncedBlock:          2,
		LastSyncedComponentIndex: 2,
		LastSyncedEntityIndex:    3,
		SchemaEpoch:              "0x01",
	}, st.Cursors())
}

func TestSync_EpochReset(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	remote := newFakeRemote("0x01")
	remote.addComponent("0xc1")
	remote.addComponent("0xc2")
	remote.addComponent("0xc3")
	remote.addEntity("0xe1")
	remote.commit(put(store.MustPack(3, 1), encodeUint32(t, 3)))

	st := newStore(t)
	s := newSyncer(t, remote)
	_, err := s.Sync(ctx, st, nil)
	require.NoError(t, err)
	require.Equal(t, uint32(3), st.Cursors().LastSyncedComponentIndex)

	remote.redeploy("0x02")
	remote.addComponent("0xc9")
	remote.addEntity("0xf1")
	remote.commit(put(store.MustPack(1, 1), encodeUint32(t, 99)))

	_, err = s.Sync(ctx, st, nil)
	require.NoError(t, err)

	assert.Equal(t, store.Cursors{
		LastSyncedBlock:          1,
		LastSyncedComponentIndex: 1,
		LastSyncedEntityIndex:    1,
		SchemaEpoch:              "0x02",
	}, st.Cursors())
	assert.Equal(t, 2, st.ComponentsLen())
	_, ok := st.ComponentSlot("0xc1")
	assert.False(t, ok)
	assert.Nil(t, value(t, st, store.MustPack(3, 1)))
	assert.Equal(t, int64(99), value(t, st, store.MustPack(1, 1)))
	assert.Equal(t, 1, st.Len())

	// The new epoch was loaded from scratch.
	assert.Equal(t, []uint64{0, 0}, remote.callArgs("GetComponents"))
	assert.Empty(t, remote.callArgs("EachStateRemovals"))
}

func TestSync_PartialFailureLeavesStoreUntouched(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	remote := newFakeRemote("0x01")
	c1 := remote.addComponent("0xc1")
	e1 := remote.addEntity("0xe1")
	e2 := remote.addEntity("0xe2")
	remote.commit(
		put(store.MustPack(c1, e1), encodeUint32(t, 1)),
		put(store.MustPack(c1, e2), encodeUint32(t, 2)),
	)

	st := newStore(t)
	s := newSyncer(t, remote)
	_, err := s.Sync(ctx, st, nil)
	require.NoError(t, err)
	before, err := st.Serialize()
	require.NoError(t, err)

	c2 := remote.addComponent("0xc2")
	remote.commit(
		remove(store.MustPack(c1, e1)),
		put(store.MustPack(c2, e2), encodeUint32(t, 20)),
	)

	// Removals succeed, values fail.
	transport := errors.New("connection reset")
	remote.failNext("EachState", transport)
	_, err = s.Sync(ctx, st, nil)
	require.ErrorIs(t, err, transport)

	after, err := st.Serialize()
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, uint64(1), st.Cursors().LastSyncedBlock)

	// The retry asks for the same window and applies it completely.
	_, err = s.Sync(ctx, st, nil)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 1}, remote.callArgs("EachStateRemovals"))
	assert.Equal(t, uint64(2), st.Cursors().LastSyncedBlock)
	assert.Nil(t, value(t, st, store.MustPack(1, 1)))
	assert.Equal(t, int64(20), value(t, st, store.MustPack(2, 2)))
}

func TestSync_FailurePerPhase(t *testing.T) {
	t.Parallel()

	for _, call := range []string{"GetStateBlock", "GetComponents", "EachStateRemovals", "EachState", "EachEntities"} {
		t.Run(call, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			remote := newFakeRemote("0x01")
			remote.addComponent("0xc1")
			remote.addEntity("0xe1")
			remote.commit(put(store.MustPack(1, 1), encodeUint32(t, 1)))

			st := newStore(t)
			s := newSyncer(t, remote)
			_, err := s.Sync(ctx, st, nil)
			require.NoError(t, err)

			remote.addEntity("0xe2")
			remote.commit(remove(store.MustPack(1, 1)), put(store.MustPack(1, 2), encodeUint32(t, 2)))
			want := st.Cursors()

			boom := errors.New(call + " failed")
			remote.failNext(call, boom)
			_, err = s.Sync(ctx, st, nil)
			require.ErrorIs(t, err, boom)
			assert.Equal(t, want, st.Cursors())
			assert.Equal(t, int64(1), value(t, st, store.MustPack(1, 1)))
			assert.Equal(t, 2, st.EntitiesLen())

			_, err = s.Sync(ctx, st, nil)
			require.NoError(t, err)
			assert.Equal(t, 3, st.EntitiesLen())
			assert.Nil(t, value(t, st, store.MustPack(1, 1)))
		})
	}
}

func TestSync_DecodeFailureAbortsSync(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	remote := newFakeRemote("0x01")
	remote.addComponent("0xc1")
	remote.addEntity("0xe1")
	remote.commit(put(store.MustPack(1, 1), []byte{0x01}))

	st := newStore(t)
	_, err := newSyncer(t, remote).Sync(ctx, st, nil)
	require.ErrorIs(t, err, decode.ErrMalformedValue)
	assert.Equal(t, store.Cursors{}, st.Cursors())
	assert.Equal(t, 1, st.ComponentsLen())
}

func TestSync_Canceled(t *testing.T) {
	t.Parallel()

	remote := newFakeRemote("0x01")
	remote.addComponent("0xc1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	st := newStore(t)
	_, err := newSyncer(t, remote).Sync(ctx, st, nil)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, st.ComponentsLen())
}

func TestSync_ConflictSkip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	remote := newFakeRemote("0x01")
	for _, id := range []string{"0xc1", "0xc2", "0xc3"} {
		remote.addComponent(id)
	}
	remote.dropComponentOnce = 2

	var reported []error
	st := newStore(t)
	_, err := newSyncer(t, remote, syncer.WithErrorReporter(func(_ context.Context, err error) {
		reported = append(reported, err)
	})).Sync(ctx, st, nil)
	require.NoError(t, err)

	// 0xc3 declared slot 3 on a registry of length 2 and was dropped.
	assert.Equal(t, 2, st.ComponentsLen())
	assert.Equal(t, uint32(1), st.Cursors().LastSyncedComponentIndex)

	// The skip is reported even though the sync succeeded.
	require.Len(t, reported, 1)
	var conflict store.RegistryIndexConflict
	require.ErrorAs(t, reported[0], &conflict)
	assert.Equal(t, uint32(3), conflict.Declared)
	assert.ErrorContains(t, reported[0], "skipped 1 conflicting components entries")
}

func TestSync_ConflictResync(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	remote := newFakeRemote("0x01")
	for _, id := range []string{"0xc1", "0xc2", "0xc3"} {
		remote.addComponent(id)
	}
	remote.dropComponentOnce = 2

	st := newStore(t)
	_, err := newSyncer(t, remote, syncer.WithConflictPolicy(syncer.ConflictResync)).Sync(ctx, st, nil)
	require.NoError(t, err)

	assert.Equal(t, 4, st.ComponentsLen())
	assert.Equal(t, []uint64{0, 0}, remote.callArgs("GetComponents"))
}

func TestSync_ConflictResyncGivesUp(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	remote := newFakeRemote("0x01")
	for _, id := range []string{"0xc1", "0xc2", "0xc3"} {
		remote.addComponent(id)
	}
	remote.dropComponent = 2

	st := newStore(t)
	_, err := newSyncer(t, remote, syncer.WithConflictPolicy(syncer.ConflictResync)).Sync(ctx, st, nil)
	var conflict store.RegistryIndexConflict
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "components", conflict.Registry)
	assert.Equal(t, uint32(3), conflict.Declared)
	assert.Equal(t, uint32(2), conflict.Expected)

	// One retry, then the error surfaces with nothing applied.
	assert.Equal(t, []uint64{0, 0}, remote.callArgs("GetComponents"))
	assert.Equal(t, 1, st.ComponentsLen())
	assert.Equal(t, store.Cursors{}, st.Cursors())
}

func TestSync_SingleWriter(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	remote := newFakeRemote("0x01")
	remote.addComponent("0xc1")
	remote.addEntity("0xe1")
	remote.commit(put(store.MustPack(1, 1), encodeUint32(t, 1)))
	remote.stateBlockDelay = 5 * time.Millisecond

	st := newStore(t)
	s := newSyncer(t, remote)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Sync(ctx, st, nil)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	assert.Equal(t, int32(1), remote.maxInFlight.Load())
	assert.Equal(t, uint64(1), st.Cursors().LastSyncedBlock)
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	_, err := syncer.New(nil)
	require.Error(t, err)

	_, err = syncer.New(newFakeRemote("0x01"), syncer.WithNumChunks(0))
	require.Error(t, err)
}
