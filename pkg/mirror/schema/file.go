package schema

import (
	"os"

	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
)

// Parse builds a MapRegistry from a JSON document of the form
//
//	{"0xc1": {"keys": ["value"], "values": ["UINT32"]}}
func Parse(data []byte) (*MapRegistry, error) {
	var raw map[string]Schema
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, eris.Wrap(err, "failed to parse schema registry")
	}
	r := NewMapRegistry()
	for id, s := range raw {
		if err := r.Register(id, s); err != nil {
			return nil, eris.Wrapf(err, "invalid schema entry %q", id)
		}
	}
	return r, nil
}

// LoadFile reads a schema registry written in the Parse format.
func LoadFile(path string) (*MapRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to read schema registry %s", path)
	}
	return Parse(data)
}
