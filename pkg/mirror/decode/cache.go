// Package decode turns raw ABI-encoded component values into Records, compiling one decoder per
// component id from the schema registry and memoizing it.
package decode

import (
	"context"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/argus-labs/kamisync/pkg/mirror/schema"
)

// Decoder decodes a raw component value. Implementations may block on schema lookups.
type Decoder interface {
	Decode(ctx context.Context, componentID string, raw []byte) (Record, error)
}

// Func is a compiled decoder for a single component.
type Func func(raw []byte) (Record, error)

// UnknownPolicy selects what happens to values of components that have no registered schema.
type UnknownPolicy uint8

const (
	// UnknownAsBool decodes the value as a single boolean field named "value". The result looks
	// like real data, so a warning is logged the first time a component falls back.
	UnknownAsBool UnknownPolicy = iota
	// UnknownAsRaw returns {"value": Unknown{Raw}} so consumers can tell it apart from real data.
	UnknownAsRaw
)

func (p UnknownPolicy) String() string {
	switch p {
	case UnknownAsBool:
		return "bool"
	case UnknownAsRaw:
		return "raw"
	default:
		return "undefined"
	}
}

// ParseUnknownPolicy parses "bool" or "raw".
func ParseUnknownPolicy(s string) (UnknownPolicy, error) {
	switch strings.ToLower(s) {
	case "bool":
		return UnknownAsBool, nil
	case "raw":
		return UnknownAsRaw, nil
	default:
		return UnknownAsBool, eris.Errorf("invalid unknown schema policy: %s (must be 'bool' or 'raw')", s)
	}
}

// Cache is a Decoder that memoizes compiled decoders by component id. The zero value is not
// usable; construct with NewCache.
type Cache struct {
	registry schema.Registry
	policy   UnknownPolicy
	log      zerolog.Logger
	onError  func(ctx context.Context, err error)

	mu       sync.RWMutex
	decoders map[string]Func
	group    singleflight.Group
}

var _ Decoder = (*Cache)(nil)

// Option configures a Cache.
type Option func(*Cache)

func WithLogger(log zerolog.Logger) Option {
	return func(c *Cache) { c.log = log }
}

func WithUnknownPolicy(p UnknownPolicy) Option {
	return func(c *Cache) { c.policy = p }
}

// WithErrorReporter receives one error, wrapping schema.ErrSchemaNotFound, for every component
// that falls back to the unknown-schema policy.
func WithErrorReporter(fn func(ctx context.Context, err error)) Option {
	return func(c *Cache) { c.onError = fn }
}

func NewCache(registry schema.Registry, opts ...Option) *Cache {
	c := &Cache{
		registry: registry,
		policy:   UnknownAsBool,
		log:      zerolog.Nop(),
		onError:  func(context.Context, error) {},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.Reset()
	return c
}

// Reset drops every compiled decoder except the seeded meta components.
func (c *Cache) Reset() {
	meta, err := Compile(schema.ComponentsComponentID, schema.MetaSchema)
	if err != nil {
		panic(eris.ToString(err, true)) // MetaSchema is a constant.
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.decoders = map[string]Func{
		schema.ComponentsComponentID: meta,
		schema.SystemsComponentID:    meta,
	}
}

// Len returns the number of memoized decoders, seeded ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.decoders)
}

func (c *Cache) Decode(ctx context.Context, componentID string, raw []byte) (Record, error) {
	fn, err := c.Decoder(ctx, componentID)
	if err != nil {
		return nil, err
	}
	return fn(raw)
}

// Decoder returns the compiled decoder for componentID, resolving and compiling the schema on
// first use. Concurrent first uses of the same id share one lookup.
func (c *Cache) Decoder(ctx context.Context, componentID string) (Func, error) {
	c.mu.RLock()
	fn, ok := c.decoders[componentID]
	c.mu.RUnlock()
	if ok {
		return fn, nil
	}

	v, err, _ := c.group.Do(componentID, func() (any, error) {
		fn, err := c.resolve(ctx, componentID)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.decoders[componentID] = fn
		c.mu.Unlock()
		return fn, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Func), nil //nolint:errcheck // only Func is ever stored
}

func (c *Cache) resolve(ctx context.Context, componentID string) (Func, error) {
	s, err := c.registry.Lookup(ctx, componentID)
	if err == nil {
		return Compile(componentID, s)
	}
	if !eris.Is(err, schema.ErrSchemaNotFound) {
		return nil, eris.Wrapf(err, "failed to resolve schema for component %s", componentID)
	}

	var fn Func
	switch c.policy {
	case UnknownAsRaw:
		c.log.Warn().Str("component_id", componentID).Msg("no schema registered for component, keeping raw values")
		fn = rawFallback
	case UnknownAsBool:
		c.log.Warn().Str("component_id", componentID).Msg("no schema registered for component, decoding as boolean")
		fn = boolFallback
	default:
		return nil, eris.Errorf("invalid unknown-schema policy %d", c.policy)
	}
	c.onError(ctx, eris.Wrapf(err, "component %s decoded with %s fallback", componentID, c.policy))
	return fn, nil
}

// boolFallback reads the value as a single boolean: true when any byte of the first ABI word is
// set. It never fails, so one unknown component cannot stall a sync.
func boolFallback(raw []byte) (Record, error) {
	word := raw
	if len(word) > wordSize {
		word = word[:wordSize]
	}
	set := false
	for _, b := range word {
		if b != 0 {
			set = true
			break
		}
	}
	return Record{"value": set}, nil
}

func rawFallback(raw []byte) (Record, error) {
	return Record{"value": Unknown{Raw: hexutil.Encode(raw)}}, nil
}
