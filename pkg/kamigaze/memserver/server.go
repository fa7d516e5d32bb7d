// Package memserver is an in-memory kamigaze server. It keeps the world as a journal of value
// changes per block, so deltas from any block can be served.
package memserver

import (
	"context"
	"sync"

	"google.golang.org/grpc"

	"github.com/argus-labs/kamisync/pkg/kamigaze/kamigazev1"
)

// Change sets or removes the value at a packed index.
type Change struct {
	PackedIdx uint64
	Data      []byte
	Removed   bool
}

func Set(packedIdx uint64, data []byte) Change {
	return Change{PackedIdx: packedIdx, Data: data}
}

func Remove(packedIdx uint64) Change {
	return Change{PackedIdx: packedIdx, Removed: true}
}

type event struct {
	Change
	block uint64
}

type Server struct {
	kamigazev1.UnimplementedKamigazeServiceServer

	mu         sync.RWMutex
	epoch      []byte
	block      uint64
	components [][]byte
	entities   [][]byte
	journal    []event
}

var _ kamigazev1.KamigazeServiceServer = (*Server)(nil)

func New(epoch []byte) *Server {
	return &Server{epoch: epoch}
}

// Register adds the service to s. s must be created with protoutil.ServerOptions, whose
// interceptors reject requests with num_chunks of zero.
func (s *Server) Register(r grpc.ServiceRegistrar) {
	kamigazev1.RegisterKamigazeServiceServer(r, s)
}

// AddComponent registers a component id and returns its slot.
func (s *Server) AddComponent(id []byte) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.components = append(s.components, id)
	return uint32(len(s.components)) //nolint:gosec // bounded by the packed index layout
}

// AddEntity registers an entity id and returns its slot.
func (s *Server) AddEntity(id []byte) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities = append(s.entities, id)
	return uint32(len(s.entities)) //nolint:gosec // bounded by the packed index layout
}

// Commit applies changes at a new block and returns its number.
func (s *Server) Commit(changes ...Change) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.block++
	for _, c := range changes {
		s.journal = append(s.journal, event{Change: c, block: s.block})
	}
	return s.block
}

// Redeploy empties the world and starts a new schema epoch. The block number keeps counting.
func (s *Server) Redeploy(epoch []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch = epoch
	s.components = nil
	s.entities = nil
	s.journal = nil
}

func (s *Server) GetStateBlock(context.Context, *kamigazev1.GetStateBlockRequest) (*kamigazev1.GetStateBlockResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &kamigazev1.GetStateBlockResponse{BlockNumber: s.block, SchemaEpoch: s.epoch}, nil
}

func (s *Server) GetComponents(
	_ context.Context, req *kamigazev1.GetComponentsRequest,
) (*kamigazev1.GetComponentsResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &kamigazev1.GetComponentsResponse{Components: entriesAfter(s.components, req.FromIndex)}, nil
}

func (s *Server) GetEntities(
	req *kamigazev1.GetEntitiesRequest, stream grpc.ServerStreamingServer[kamigazev1.GetEntitiesResponse],
) error {
	s.mu.RLock()
	entries := entriesAfter(s.entities, req.FromIndex)
	s.mu.RUnlock()

	for _, page := range chunk(entries, req.NumChunks) {
		if err := stream.Send(&kamigazev1.GetEntitiesResponse{Entities: page}); err != nil {
			return err
		}
	}
	return nil
}

// GetState streams the latest change of every packed index touched after req.FromBlock, keeping
// either only the removals or only the values.
func (s *Server) GetState(
	req *kamigazev1.GetStateRequest, stream grpc.ServerStreamingServer[kamigazev1.GetStateResponse],
) error {
	s.mu.RLock()
	latest := make(map[uint64]event)
	var order []uint64
	for _, e := range s.journal {
		if e.block <= req.FromBlock {
			continue
		}
		if _, ok := latest[e.PackedIdx]; !ok {
			order = append(order, e.PackedIdx)
		}
		latest[e.PackedIdx] = e
	}
	s.mu.RUnlock()

	var state []*kamigazev1.StateEntry
	for _, idx := range order {
		e := latest[idx]
		if e.Removed != req.Removals {
			continue
		}
		state = append(state, &kamigazev1.StateEntry{PackedIdx: idx, Data: e.Data})
	}
	for _, page := range chunk(state, req.NumChunks) {
		if err := stream.Send(&kamigazev1.GetStateResponse{State: page}); err != nil {
			return err
		}
	}
	return nil
}

func entriesAfter(ids [][]byte, fromIndex uint32) []*kamigazev1.Entry {
	var out []*kamigazev1.Entry
	for i, id := range ids {
		idx := uint32(i + 1) //nolint:gosec // bounded by the packed index layout
		if idx <= fromIndex {
			continue
		}
		out = append(out, &kamigazev1.Entry{Idx: idx, ID: id})
	}
	return out
}

// chunk splits items into at most n pages of equal size. n is at least 1.
func chunk[T any](items []T, n uint32) [][]T {
	if len(items) == 0 {
		return nil
	}
	size := (len(items) + int(n) - 1) / int(n)
	pages := make([][]T, 0, n)
	for start := 0; start < len(items); start += size {
		pages = append(pages, items[start:min(start+size, len(items))])
	}
	return pages
}
