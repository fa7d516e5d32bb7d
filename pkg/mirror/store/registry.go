package store

import (
	"github.com/rotisserie/eris"

	"github.com/argus-labs/kamisync/pkg/assert"
	"github.com/argus-labs/kamisync/pkg/mirror/schema"
)

// Entry is a registry candidate as delivered by the remote: a declared slot and a canonical id.
type Entry struct {
	Idx uint32
	ID  string
}

const (
	componentsRegistry = "components"
	entitiesRegistry   = "entities"
)

// registry is an append-only, 1-indexed list of ids. Slot 0 always holds the sentinel.
type registry struct {
	ids   []string
	slots map[string]uint32
}

func newRegistry() *registry {
	return &registry{
		ids:   []string{schema.SentinelID},
		slots: map[string]uint32{schema.SentinelID: 0},
	}
}

func (r *registry) len() int {
	return len(r.ids)
}

func (r *registry) id(slot uint32) (string, bool) {
	if int(slot) >= len(r.ids) {
		return "", false
	}
	return r.ids[slot], true
}

func (r *registry) slot(id string) (uint32, bool) {
	s, ok := r.slots[id]
	return s, ok
}

// truncate keeps the first n slots. n is at least 1.
func (r *registry) truncate(n int) {
	assert.That(n >= 1, "registry truncated below the sentinel: %d", n)
	if n >= len(r.ids) {
		return
	}
	for _, id := range r.ids[n:] {
		delete(r.slots, id)
	}
	r.ids = r.ids[:n]
}

func (r *registry) append(id string) {
	_, dup := r.slots[id]
	assert.That(!dup, "id %s is already registered", id)
	r.slots[id] = uint32(len(r.ids)) //nolint:gosec // bounded by the packed index layout
	r.ids = append(r.ids, id)
}

func (r *registry) snapshot() []string {
	return append([]string(nil), r.ids...)
}

func registryFromIDs(ids []string) (*registry, error) {
	if len(ids) == 0 || ids[0] != schema.SentinelID {
		return nil, ErrMissingSentinel
	}
	r := newRegistry()
	for _, id := range ids[1:] {
		if _, dup := r.slot(id); dup {
			return nil, eris.Errorf("id %s is registered twice", id)
		}
		r.append(id)
	}
	return r, nil
}

// registryView overlays staged changes on a base registry: the first keep base slots stay
// visible, followed by the staged additions.
type registryView struct {
	name       string
	base       *registry
	keep       int
	added      []string
	addedSlots map[string]uint32
}

func newRegistryView(name string, base *registry) *registryView {
	return &registryView{
		name:       name,
		base:       base,
		keep:       base.len(),
		addedSlots: make(map[string]uint32),
	}
}

func (v *registryView) len() int {
	return v.keep + len(v.added)
}

func (v *registryView) id(slot uint32) (string, bool) {
	s := int(slot)
	if s < v.keep {
		return v.base.ids[s], true
	}
	if s-v.keep < len(v.added) {
		return v.added[s-v.keep], true
	}
	return "", false
}

func (v *registryView) slot(id string) (uint32, bool) {
	if s, ok := v.addedSlots[id]; ok {
		return s, true
	}
	if s, ok := v.base.slot(id); ok && int(s) < v.keep {
		return s, true
	}
	return 0, false
}

// truncateAfter drops every slot beyond idx. The sentinel is never dropped.
func (v *registryView) truncateAfter(idx uint32) {
	n := int(idx) + 1
	if n >= v.len() {
		return
	}
	if n <= v.keep {
		v.keep = n
		v.added = nil
		clear(v.addedSlots)
		return
	}
	for _, id := range v.added[n-v.keep:] {
		delete(v.addedSlots, id)
	}
	v.added = v.added[:n-v.keep]
}

// reset hides every base slot except the sentinel.
func (v *registryView) reset() {
	v.truncateAfter(0)
}

// add appends e when its declared index equals the current length. A replayed entry that matches
// the id already at its slot is ignored. Anything else is returned as a conflict.
func (v *registryView) add(e Entry) (RegistryIndexConflict, bool) {
	expected := uint32(v.len()) //nolint:gosec // bounded by the packed index layout
	if e.Idx == expected {
		if _, dup := v.slot(e.ID); !dup {
			v.addedSlots[e.ID] = expected
			v.added = append(v.added, e.ID)
			return RegistryIndexConflict{}, true
		}
	} else if existing, ok := v.id(e.Idx); ok && existing == e.ID {
		return RegistryIndexConflict{}, true
	}
	return RegistryIndexConflict{Registry: v.name, ID: e.ID, Declared: e.Idx, Expected: expected}, false
}

func (v *registryView) apply() {
	v.base.truncate(v.keep)
	for _, id := range v.added {
		v.base.append(id)
	}
}
