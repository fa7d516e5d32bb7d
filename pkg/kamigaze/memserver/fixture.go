package memserver

import (
	"io"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"

	"github.com/argus-labs/kamisync/pkg/mirror/schema"
	"github.com/argus-labs/kamisync/pkg/mirror/store"
)

// Fixture describes a world to serve. Ids are hex; values are hex ABI encodings. Every element of
// Blocks is committed as its own block, in order.
type Fixture struct {
	Epoch      string            `json:"epoch"`
	Components []string          `json:"components"`
	Entities   []string          `json:"entities"`
	Blocks     [][]FixtureChange `json:"blocks"`
}

type FixtureChange struct {
	Component string `json:"component"`
	Entity    string `json:"entity"`
	Data      string `json:"data,omitempty"`
	Removed   bool   `json:"removed,omitempty"`
}

// LoadFixture reads a JSON fixture and returns a server holding it.
func LoadFixture(r io.Reader) (*Server, error) {
	var f Fixture
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return nil, eris.Wrap(err, "failed to decode fixture")
	}
	return f.Server()
}

// Server builds a server holding the fixture world.
func (f *Fixture) Server() (*Server, error) {
	epoch, err := idBytes(f.Epoch)
	if err != nil {
		return nil, eris.Wrap(err, "invalid epoch")
	}
	s := New(epoch)

	components, err := register(f.Components, s.AddComponent)
	if err != nil {
		return nil, eris.Wrap(err, "invalid component id")
	}
	entities, err := register(f.Entities, s.AddEntity)
	if err != nil {
		return nil, eris.Wrap(err, "invalid entity id")
	}

	for i, block := range f.Blocks {
		changes := make([]Change, 0, len(block))
		for _, c := range block {
			change, err := c.resolve(components, entities)
			if err != nil {
				return nil, eris.Wrapf(err, "block %d", i+1)
			}
			changes = append(changes, change)
		}
		s.Commit(changes...)
	}
	return s, nil
}

func (c FixtureChange) resolve(components, entities map[string]uint32) (Change, error) {
	cid, err := schema.NormalizeID(c.Component)
	if err != nil {
		return Change{}, err
	}
	eid, err := schema.NormalizeID(c.Entity)
	if err != nil {
		return Change{}, err
	}
	cslot, ok := components[cid]
	if !ok {
		return Change{}, eris.Errorf("unknown component %s", c.Component)
	}
	eslot, ok := entities[eid]
	if !ok {
		return Change{}, eris.Errorf("unknown entity %s", c.Entity)
	}
	p, err := store.Pack(cslot, eslot)
	if err != nil {
		return Change{}, err
	}
	if c.Removed {
		return Remove(uint64(p)), nil
	}
	data, err := hexutil.Decode(c.Data)
	if err != nil {
		return Change{}, eris.Wrapf(err, "invalid data for %s", p)
	}
	return Set(uint64(p), data), nil
}

func register(ids []string, add func([]byte) uint32) (map[string]uint32, error) {
	slots := make(map[string]uint32, len(ids))
	for _, id := range ids {
		b, err := idBytes(id)
		if err != nil {
			return nil, err
		}
		slots[schema.FormatID(b)] = add(b)
	}
	return slots, nil
}

func idBytes(s string) ([]byte, error) {
	id, err := schema.NormalizeID(s)
	if err != nil {
		return nil, err
	}
	n, err := hexutil.DecodeBig(id)
	if err != nil {
		return nil, eris.Wrapf(err, "invalid id %q", s)
	}
	return n.Bytes(), nil
}
