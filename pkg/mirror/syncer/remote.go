package syncer

import (
	"context"

	"github.com/argus-labs/kamisync/pkg/mirror/store"
)

// StateBlock is the remote head: the latest block it has indexed and the schema epoch of the
// deployed world. SchemaEpoch is lowercase 0x-prefixed hex.
type StateBlock struct {
	BlockNumber uint64
	SchemaEpoch string
}

// StateEntry is one raw component value keyed by its packed index.
type StateEntry struct {
	PackedIndex store.PackedIndex
	Data        []byte
}

// Remote is the snapshot/delta service. Paged calls invoke fn once per page, in the order the
// pages arrive, and stop at the first error fn returns.
type Remote interface {
	GetStateBlock(ctx context.Context) (StateBlock, error)

	// GetComponents returns the component registry entries from fromIndex onward.
	GetComponents(ctx context.Context, fromIndex uint32) ([]store.Entry, error)

	// EachEntities streams the entity registry entries from fromIndex onward, split into
	// numChunks pages.
	EachEntities(ctx context.Context, fromIndex, numChunks uint32, fn func(page []store.Entry) error) error

	// EachState streams the values changed since fromBlock, split into numChunks pages. With
	// removals set it streams the values removed since fromBlock instead; their Data is empty.
	EachState(ctx context.Context, fromBlock uint64, numChunks uint32, removals bool,
		fn func(page []StateEntry) error) error
}
