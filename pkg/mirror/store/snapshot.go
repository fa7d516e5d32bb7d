package store

import (
	"bytes"
	"slices"

	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"

	"github.com/argus-labs/kamisync/pkg/mirror/decode"
)

const snapshotVersion = 1

type snapshotValue struct {
	Index PackedIndex   `json:"i"`
	Value decode.Record `json:"v"`
}

type snapshot struct {
	Version    int             `json:"version"`
	Layout     Layout          `json:"layout"`
	Name       string          `json:"name"`
	Cursors    Cursors         `json:"cursors"`
	Components []string        `json:"components"`
	Entities   []string        `json:"entities"`
	Values     []snapshotValue `json:"values"`
}

// Serialize encodes the committed state. Values are ordered by packed index so equal stores
// serialize to equal bytes.
func (s *Store) Serialize() ([]byte, error) {
	s.mu.RLock()
	snap := snapshot{
		Version:    snapshotVersion,
		Layout:     LayoutV1,
		Name:       s.name,
		Cursors:    s.cursors,
		Components: s.components.snapshot(),
		Entities:   s.entities.snapshot(),
		Values:     make([]snapshotValue, 0, len(s.values)),
	}
	for p, v := range s.values {
		snap.Values = append(snap.Values, snapshotValue{Index: p, Value: v})
	}
	s.mu.RUnlock()

	slices.SortFunc(snap.Values, func(a, b snapshotValue) int {
		switch {
		case a.Index < b.Index:
			return -1
		case a.Index > b.Index:
			return 1
		default:
			return 0
		}
	})

	data, err := json.Marshal(snap)
	if err != nil {
		return nil, eris.Wrap(err, "failed to marshal store snapshot")
	}
	return data, nil
}

// Deserialize replaces the whole store content with a snapshot produced by Serialize. On error
// the store is left unchanged.
func (s *Store) Deserialize(data []byte) error {
	var snap snapshot
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&snap); err != nil {
		return eris.Wrap(err, "failed to unmarshal store snapshot")
	}
	if snap.Version != snapshotVersion {
		return eris.Wrapf(ErrUnsupportedSnapshot, "version %d", snap.Version)
	}
	if snap.Layout != LayoutV1 {
		return eris.Wrapf(ErrUnsupportedSnapshot, "packed index layout %d", snap.Layout)
	}

	components, err := registryFromIDs(snap.Components)
	if err != nil {
		return eris.Wrap(err, "components")
	}
	entities, err := registryFromIDs(snap.Entities)
	if err != nil {
		return eris.Wrap(err, "entities")
	}
	values := make(map[PackedIndex]decode.Record, len(snap.Values))
	for _, sv := range snap.Values {
		record, err := decode.Normalize(sv.Value)
		if err != nil {
			return eris.Wrapf(err, "value at packed index %s", sv.Index)
		}
		values[sv.Index] = record
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.components = components
	s.entities = entities
	s.values = values
	s.cursors = snap.Cursors
	return nil
}
