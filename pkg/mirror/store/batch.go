package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/argus-labs/kamisync/pkg/mirror/decode"
	"github.com/argus-labs/kamisync/pkg/mirror/schema"
)

// Batch stages mutations against a Store and applies them atomically on Commit. Reads through a
// batch see the staged state. A batch holds the store's writer lock until it is committed or
// discarded, and is not safe for concurrent use.
type Batch struct {
	store *Store
	done  bool

	// reset hides all committed content and wipes it on commit.
	reset bool

	components *registryView
	entities   *registryView
	puts       map[PackedIndex]decode.Record
	removals   map[PackedIndex]struct{}
	cursors    Cursors
}

var _ Reader = (*Batch)(nil)

func newBatch(s *Store) *Batch {
	return &Batch{
		store:      s,
		components: newRegistryView(componentsRegistry, s.components),
		entities:   newRegistryView(entitiesRegistry, s.entities),
		puts:       make(map[PackedIndex]decode.Record),
		removals:   make(map[PackedIndex]struct{}),
		cursors:    s.cursors,
	}
}

// Reset stages a wipe of the whole store: registries back to the sentinel, no values, zero
// cursors. Mutations staged afterwards apply on top of the empty store.
func (b *Batch) Reset() {
	b.reset = true
	b.components.reset()
	b.entities.reset()
	clear(b.puts)
	clear(b.removals)
	b.cursors = Cursors{}
}

// Resetting reports whether the batch will wipe the store on commit.
func (b *Batch) Resetting() bool {
	return b.reset
}

func (b *Batch) GetValue(p PackedIndex) (decode.Record, bool) {
	if v, ok := b.puts[p]; ok {
		return v, true
	}
	if _, removed := b.removals[p]; removed || b.reset {
		return nil, false
	}
	v, ok := b.store.values[p]
	return v, ok
}

func (b *Batch) GetComponentID(slot uint32) (string, bool) {
	return b.components.id(slot)
}

func (b *Batch) GetEntityID(slot uint32) (string, bool) {
	return b.entities.id(slot)
}

func (b *Batch) ComponentSlot(id string) (uint32, bool) {
	id, err := schema.NormalizeID(id)
	if err != nil {
		return 0, false
	}
	return b.components.slot(id)
}

func (b *Batch) EntitySlot(id string) (uint32, bool) {
	id, err := schema.NormalizeID(id)
	if err != nil {
		return 0, false
	}
	return b.entities.slot(id)
}

func (b *Batch) Cursors() Cursors {
	return b.cursors
}

func (b *Batch) SetCursors(c Cursors) {
	b.cursors = c
}

// ComponentsLen returns the staged component registry length, sentinel included.
func (b *Batch) ComponentsLen() int {
	return b.components.len()
}

// EntitiesLen returns the staged entity registry length, sentinel included.
func (b *Batch) EntitiesLen() int {
	return b.entities.len()
}

// AppendComponents stages candidates in order. An entry whose declared index is not the registry
// length is dropped with a warning and returned.
func (b *Batch) AppendComponents(entries []Entry) []RegistryIndexConflict {
	return b.appendEntries(b.components, entries)
}

// AppendEntities stages candidates in order, like AppendComponents.
func (b *Batch) AppendEntities(entries []Entry) []RegistryIndexConflict {
	return b.appendEntries(b.entities, entries)
}

func (b *Batch) appendEntries(v *registryView, entries []Entry) []RegistryIndexConflict {
	var conflicts []RegistryIndexConflict
	for _, e := range entries {
		c, ok := v.add(e)
		if ok {
			continue
		}
		b.store.log.Warn().
			Str("registry", c.Registry).
			Str("id", c.ID).
			Uint32("declared", c.Declared).
			Uint32("expected", c.Expected).
			Msg("dropping out-of-order registry entry")
		conflicts = append(conflicts, c)
	}
	return conflicts
}

func (b *Batch) TruncateComponentsAfter(idx uint32) {
	b.components.truncateAfter(idx)
}

func (b *Batch) TruncateEntitiesAfter(idx uint32) {
	b.entities.truncateAfter(idx)
}

// PutValue decodes raw with the schema of p's component, resolved through the staged registry,
// and stages the result.
func (b *Batch) PutValue(ctx context.Context, p PackedIndex, raw []byte) error {
	if !p.Valid() {
		return eris.Wrapf(ErrInvalidPackedIndex, "packed index %d", uint64(p))
	}
	if b.store.decoder == nil {
		return ErrNoDecoder
	}
	slot := p.ComponentSlot()
	componentID, ok := b.components.id(slot)
	if !ok || slot == 0 {
		return eris.Wrapf(ErrComponentSlotNotFound, "packed index %s", p)
	}
	record, err := b.store.decoder.Decode(ctx, componentID, raw)
	if err != nil {
		return eris.Wrapf(err, "failed to decode value at packed index %s", p)
	}
	delete(b.removals, p)
	b.puts[p] = record
	return nil
}

// RemoveValue stages the removal of p. Removing an absent value is a no-op.
func (b *Batch) RemoveValue(p PackedIndex) {
	delete(b.puts, p)
	if !b.reset {
		b.removals[p] = struct{}{}
	}
}

// Commit applies the staged state and releases the writer lock.
func (b *Batch) Commit() error {
	if b.done {
		return ErrBatchClosed
	}
	s := b.store

	s.mu.Lock()
	if b.reset {
		s.values = make(map[PackedIndex]decode.Record, len(b.puts))
	}
	b.components.apply()
	b.entities.apply()
	for p := range b.removals {
		delete(s.values, p)
	}
	for p, v := range b.puts {
		s.values[p] = v
	}
	s.cursors = b.cursors
	s.mu.Unlock()

	b.close()
	return nil
}

// Discard drops the staged state and releases the writer lock. It is a no-op after Commit, so it
// can be deferred.
func (b *Batch) Discard() {
	if b.done {
		return
	}
	b.close()
}

func (b *Batch) close() {
	b.done = true
	b.store.writeMu.Unlock()
}
