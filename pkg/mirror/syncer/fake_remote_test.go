package syncer_test

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/argus-labs/kamisync/pkg/mirror/store"
	"github.com/argus-labs/kamisync/pkg/mirror/syncer"
)

type stateEvent struct {
	block   uint64
	index   store.PackedIndex
	data    []byte
	removed bool
}

// fakeRemote is an in-memory world. Values are a journal of events per block; a delta from block
// b contains the latest event of every packed index touched after b.
type fakeRemote struct {
	mu         sync.Mutex
	head       syncer.StateBlock
	components []string
	entities   []string
	journal    []stateEvent

	// failures holds one error per call name, returned once.
	failures map[string]error
	// dropComponentOnce hides the component at this slot from the next GetComponents call.
	dropComponentOnce uint32
	// dropComponent hides the component at this slot from every GetComponents call.
	dropComponent uint32

	calls map[string][]uint64

	// stateBlockDelay keeps GetStateBlock busy so overlapping syncs can be observed.
	stateBlockDelay time.Duration
	inFlight        atomic.Int32
	maxInFlight     atomic.Int32
}

var _ syncer.Remote = (*fakeRemote)(nil)

func newFakeRemote(epoch string) *fakeRemote {
	return &fakeRemote{
		head:     syncer.StateBlock{SchemaEpoch: epoch},
		failures: map[string]error{},
		calls:    map[string][]uint64{},
	}
}

func (f *fakeRemote) addComponent(id string) uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.components = append(f.components, id)
	return uint32(len(f.components))
}

func (f *fakeRemote) addEntity(id string) uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entities = append(f.entities, id)
	return uint32(len(f.entities))
}

// commit appends events at a new block and returns it.
func (f *fakeRemote) commit(events ...stateEvent) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.head.BlockNumber++
	for _, e := range events {
		e.block = f.head.BlockNumber
		f.journal = append(f.journal, e)
	}
	return f.head.BlockNumber
}

// redeploy starts a new epoch with an empty world.
func (f *fakeRemote) redeploy(epoch string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.head.SchemaEpoch = epoch
	f.components = nil
	f.entities = nil
	f.journal = nil
}

func (f *fakeRemote) failNext(call string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[call] = err
}

func (f *fakeRemote) record(call string, arg uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[call] = append(f.calls[call], arg)
	if err, ok := f.failures[call]; ok {
		delete(f.failures, call)
		return err
	}
	return nil
}

func (f *fakeRemote) callArgs(call string) []uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uint64(nil), f.calls[call]...)
}

func (f *fakeRemote) GetStateBlock(ctx context.Context) (syncer.StateBlock, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		m := f.maxInFlight.Load()
		if n <= m || f.maxInFlight.CompareAndSwap(m, n) {
			break
		}
	}
	time.Sleep(f.stateBlockDelay)

	if err := ctx.Err(); err != nil {
		return syncer.StateBlock{}, err
	}
	if err := f.record("GetStateBlock", 0); err != nil {
		return syncer.StateBlock{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.head, nil
}

func (f *fakeRemote) GetComponents(_ context.Context, fromIndex uint32) ([]store.Entry, error) {
	if err := f.record("GetComponents", uint64(fromIndex)); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	drop := f.dropComponent
	if f.dropComponentOnce != 0 {
		drop = f.dropComponentOnce
		f.dropComponentOnce = 0
	}
	return entriesAfter(f.components, fromIndex, drop), nil
}

func (f *fakeRemote) EachEntities(
	_ context.Context, fromIndex, numChunks uint32, fn func(page []store.Entry) error,
) error {
	if err := f.record("EachEntities", uint64(fromIndex)); err != nil {
		return err
	}
	f.mu.Lock()
	entries := entriesAfter(f.entities, fromIndex, 0)
	f.mu.Unlock()
	for _, page := range chunk(entries, numChunks) {
		if err := fn(page); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeRemote) EachState(
	_ context.Context, fromBlock uint64, numChunks uint32, removals bool, fn func(page []syncer.StateEntry) error,
) error {
	call := "EachState"
	if removals {
		call = "EachStateRemovals"
	}
	if err := f.record(call, fromBlock); err != nil {
		return err
	}

	f.mu.Lock()
	latest := map[store.PackedIndex]stateEvent{}
	var order []store.PackedIndex
	for _, e := range f.journal {
		if e.block <= fromBlock {
			continue
		}
		if _, seen := latest[e.index]; !seen {
			order = append(order, e.index)
		}
		latest[e.index] = e
	}
	f.mu.Unlock()

	var entries []syncer.StateEntry
	for _, idx := range order {
		e := latest[idx]
		if e.removed != removals {
			continue
		}
		entries = append(entries, syncer.StateEntry{PackedIndex: idx, Data: e.data})
	}
	for _, page := range chunk(entries, numChunks) {
		if err := fn(page); err != nil {
			return err
		}
	}
	return nil
}

func entriesAfter(ids []string, fromIndex, drop uint32) []store.Entry {
	var out []store.Entry
	for i, id := range ids {
		idx := uint32(i + 1)
		if idx <= fromIndex || idx == drop {
			continue
		}
		out = append(out, store.Entry{Idx: idx, ID: id})
	}
	return out
}

// chunk splits items into at most n pages of equal size.
func chunk[T any](items []T, n uint32) [][]T {
	if len(items) == 0 {
		return nil
	}
	size := (len(items) + int(n) - 1) / int(n)
	var pages [][]T
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		pages = append(pages, items[start:end])
	}
	return pages
}
