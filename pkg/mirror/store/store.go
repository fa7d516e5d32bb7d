// Package store holds the local mirror of the remote world: component and entity registries, the
// decoded state map and the sync cursors.
package store

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/argus-labs/kamisync/pkg/mirror/decode"
	"github.com/argus-labs/kamisync/pkg/mirror/schema"
)

// NamePrefix prefixes the persisted name of every store.
const NamePrefix = "ECSCache"

// Cursors describe how much of the remote world has been mirrored.
type Cursors struct {
	LastSyncedBlock          uint64 `json:"lastSyncedBlock"`
	LastSyncedComponentIndex uint32 `json:"lastSyncedComponentIndex"`
	LastSyncedEntityIndex    uint32 `json:"lastSyncedEntityIndex"`
	SchemaEpoch              string `json:"schemaEpoch"`
}

// Reader is the read-only view of the mirror handed to consumers.
type Reader interface {
	GetValue(p PackedIndex) (decode.Record, bool)
	GetComponentID(slot uint32) (string, bool)
	GetEntityID(slot uint32) (string, bool)
	ComponentSlot(id string) (uint32, bool)
	EntitySlot(id string) (uint32, bool)
	Cursors() Cursors
}

// Store is safe for concurrent readers. Mutations go through a Batch, and at most one batch is
// open at a time.
type Store struct {
	name    string
	decoder decode.Decoder
	log     zerolog.Logger

	// writeMu serializes batches. mu guards the fields below against readers.
	writeMu sync.Mutex
	mu      sync.RWMutex

	components *registry
	entities   *registry
	values     map[PackedIndex]decode.Record
	cursors    Cursors
}

var _ Reader = (*Store)(nil)

type Option func(*Store)

func WithDecoder(d decode.Decoder) Option {
	return func(s *Store) { s.decoder = d }
}

func WithLogger(log zerolog.Logger) Option {
	return func(s *Store) { s.log = log }
}

// New returns an empty store: both registries hold only the sentinel and the cursors are zero.
func New(name string, opts ...Option) *Store {
	s := &Store{
		name:       name,
		log:        zerolog.Nop(),
		components: newRegistry(),
		entities:   newRegistry(),
		values:     make(map[PackedIndex]decode.Record),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Name() string {
	return s.name
}

// PersistedName is the key the store is saved under.
func (s *Store) PersistedName() string {
	return NamePrefix + s.name
}

// GetValue returns the decoded value at p. The returned record must not be modified.
func (s *Store) GetValue(p PackedIndex) (decode.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[p]
	return v, ok
}

func (s *Store) GetComponentID(slot uint32) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.components.id(slot)
}

func (s *Store) GetEntityID(slot uint32) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entities.id(slot)
}

// ComponentSlot accepts the id in any hex spelling.
func (s *Store) ComponentSlot(id string) (uint32, bool) {
	id, err := schema.NormalizeID(id)
	if err != nil {
		return 0, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.components.slot(id)
}

// EntitySlot accepts the id in any hex spelling.
func (s *Store) EntitySlot(id string) (uint32, bool) {
	id, err := schema.NormalizeID(id)
	if err != nil {
		return 0, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entities.slot(id)
}

func (s *Store) Cursors() Cursors {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cursors
}

// Len returns the number of stored values.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}

// ComponentsLen returns the component registry length, sentinel included.
func (s *Store) ComponentsLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.components.len()
}

// EntitiesLen returns the entity registry length, sentinel included.
func (s *Store) EntitiesLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entities.len()
}

// Values calls fn for every stored value in no particular order until fn returns false. fn must
// not call mutating methods of the store.
func (s *Store) Values(fn func(PackedIndex, decode.Record) bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for p, v := range s.values {
		if !fn(p, v) {
			return
		}
	}
}

// EntityComponents calls fn for every value attached to entitySlot. It scans the whole map.
func (s *Store) EntityComponents(entitySlot uint32, fn func(componentSlot uint32, v decode.Record) bool) {
	s.Values(func(p PackedIndex, v decode.Record) bool {
		if p.EntitySlot() != entitySlot {
			return true
		}
		return fn(p.ComponentSlot(), v)
	})
}

// Begin opens a batch. It blocks while another batch is open.
func (s *Store) Begin() *Batch {
	s.writeMu.Lock()
	return newBatch(s)
}

// Update runs fn inside a batch and commits it when fn returns nil.
func (s *Store) Update(fn func(b *Batch) error) error {
	b := s.Begin()
	defer b.Discard()
	if err := fn(b); err != nil {
		return err
	}
	return b.Commit()
}

// AppendComponents applies registry candidates in order and returns the rejected ones.
func (s *Store) AppendComponents(entries []Entry) []RegistryIndexConflict {
	var conflicts []RegistryIndexConflict
	_ = s.Update(func(b *Batch) error {
		conflicts = b.AppendComponents(entries)
		return nil
	})
	return conflicts
}

// AppendEntities applies registry candidates in order and returns the rejected ones.
func (s *Store) AppendEntities(entries []Entry) []RegistryIndexConflict {
	var conflicts []RegistryIndexConflict
	_ = s.Update(func(b *Batch) error {
		conflicts = b.AppendEntities(entries)
		return nil
	})
	return conflicts
}

// PutValue decodes raw with the schema of p's component and stores the result.
func (s *Store) PutValue(ctx context.Context, p PackedIndex, raw []byte) error {
	return s.Update(func(b *Batch) error { return b.PutValue(ctx, p, raw) })
}

// RemoveValue deletes the value at p. Removing an absent value is a no-op.
func (s *Store) RemoveValue(p PackedIndex) {
	_ = s.Update(func(b *Batch) error {
		b.RemoveValue(p)
		return nil
	})
}

func (s *Store) TruncateComponentsAfter(idx uint32) {
	_ = s.Update(func(b *Batch) error {
		b.TruncateComponentsAfter(idx)
		return nil
	})
}

func (s *Store) TruncateEntitiesAfter(idx uint32) {
	_ = s.Update(func(b *Batch) error {
		b.TruncateEntitiesAfter(idx)
		return nil
	})
}

func (s *Store) SetCursors(c Cursors) {
	_ = s.Update(func(b *Batch) error {
		b.SetCursors(c)
		return nil
	})
}

// Clear drops all content and cursors.
func (s *Store) Clear() {
	_ = s.Update(func(b *Batch) error {
		b.Reset()
		return nil
	})
}
