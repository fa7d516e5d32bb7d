package schema

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
)

// ErrSchemaNotFound is returned by a Registry when no schema is registered for a component id.
var ErrSchemaNotFound = eris.New("schema not found")

// Schema is the field layout of a component value.
type Schema struct {
	Keys   []string    `json:"keys"`
	Values []ValueType `json:"values"`
}

// Registry resolves component ids to schemas. Lookup may block on I/O.
type Registry interface {
	Lookup(ctx context.Context, componentID string) (Schema, error)
}

// MapRegistry is an in-memory Registry.
type MapRegistry struct {
	mu      sync.RWMutex
	schemas map[string]Schema
}

var _ Registry = (*MapRegistry)(nil)

func NewMapRegistry() *MapRegistry {
	return &MapRegistry{schemas: make(map[string]Schema)}
}

// Register stores the schema for a component id, replacing any previous one. The id is
// normalized with NormalizeID.
func (r *MapRegistry) Register(componentID string, s Schema) error {
	id, err := NormalizeID(componentID)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schemas[id] = s
	return nil
}

func (r *MapRegistry) Lookup(ctx context.Context, componentID string) (Schema, error) {
	if err := ctx.Err(); err != nil {
		return Schema{}, eris.Wrap(err, "schema lookup canceled")
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[componentID]
	if !ok {
		return Schema{}, eris.Wrapf(ErrSchemaNotFound, "component %s", componentID)
	}
	return s, nil
}

func (r *MapRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.schemas)
}
