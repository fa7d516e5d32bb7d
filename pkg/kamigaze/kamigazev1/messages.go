// Package kamigazev1 holds the kamigaze.v1 wire messages and the KamigazeService descriptor. See
// proto/kamigaze/v1/kamigaze.proto for the schema.
package kamigazev1

import (
	"github.com/rotisserie/eris"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/argus-labs/kamisync/pkg/protoutil"
)

var (
	_ protoutil.Message = (*GetStateBlockRequest)(nil)
	_ protoutil.Message = (*GetStateBlockResponse)(nil)
	_ protoutil.Message = (*GetComponentsRequest)(nil)
	_ protoutil.Message = (*GetComponentsResponse)(nil)
	_ protoutil.Message = (*GetEntitiesRequest)(nil)
	_ protoutil.Message = (*GetEntitiesResponse)(nil)
	_ protoutil.Message = (*GetStateRequest)(nil)
	_ protoutil.Message = (*GetStateResponse)(nil)
	_ protoutil.Message = (*Entry)(nil)
	_ protoutil.Message = (*StateEntry)(nil)

	_ protoutil.Validator = (*GetEntitiesRequest)(nil)
	_ protoutil.Validator = (*GetStateRequest)(nil)
)

// validateNumChunks enforces (buf.validate.field).uint32.gte = 1.
func validateNumChunks(n uint32) error {
	if n < 1 {
		return eris.New("num_chunks: value must be greater than or equal to 1")
	}
	return nil
}

type GetStateBlockRequest struct{}

func (m *GetStateBlockRequest) AppendWire(b []byte) []byte { return b }

func (m *GetStateBlockRequest) UnmarshalWire(b []byte) error {
	return protoutil.Walk(b, func(protoutil.Field) error { return nil })
}

type GetStateBlockResponse struct {
	BlockNumber uint64
	SchemaEpoch []byte
}

func (m *GetStateBlockResponse) AppendWire(b []byte) []byte {
	b = protoutil.AppendUint64(b, 1, m.BlockNumber)
	return protoutil.AppendBytes(b, 2, m.SchemaEpoch)
}

func (m *GetStateBlockResponse) UnmarshalWire(b []byte) error {
	*m = GetStateBlockResponse{}
	return protoutil.Walk(b, func(f protoutil.Field) error {
		switch {
		case f.Num == 1 && f.Type == protowire.VarintType:
			m.BlockNumber = f.Varint
		case f.Num == 2 && f.Type == protowire.BytesType:
			m.SchemaEpoch = f.Clone()
		}
		return nil
	})
}

type GetComponentsRequest struct {
	FromIndex uint32
}

func (m *GetComponentsRequest) AppendWire(b []byte) []byte {
	return protoutil.AppendUint64(b, 1, uint64(m.FromIndex))
}

func (m *GetComponentsRequest) UnmarshalWire(b []byte) error {
	*m = GetComponentsRequest{}
	return protoutil.Walk(b, func(f protoutil.Field) error {
		if f.Num == 1 && f.Type == protowire.VarintType {
			v, err := f.Uint32()
			m.FromIndex = v
			return err
		}
		return nil
	})
}

type GetComponentsResponse struct {
	Components []*Entry
}

func (m *GetComponentsResponse) AppendWire(b []byte) []byte {
	for _, e := range m.Components {
		b = protoutil.AppendMessage(b, 1, e)
	}
	return b
}

func (m *GetComponentsResponse) UnmarshalWire(b []byte) error {
	*m = GetComponentsResponse{}
	return protoutil.Walk(b, func(f protoutil.Field) error {
		if f.Num == 1 && f.Type == protowire.BytesType {
			e := new(Entry)
			if err := e.UnmarshalWire(f.Bytes); err != nil {
				return err
			}
			m.Components = append(m.Components, e)
		}
		return nil
	})
}

type GetEntitiesRequest struct {
	FromIndex uint32
	NumChunks uint32
}

func (m *GetEntitiesRequest) Validate() error {
	return validateNumChunks(m.NumChunks)
}

func (m *GetEntitiesRequest) AppendWire(b []byte) []byte {
	b = protoutil.AppendUint64(b, 1, uint64(m.FromIndex))
	return protoutil.AppendUint64(b, 2, uint64(m.NumChunks))
}

func (m *GetEntitiesRequest) UnmarshalWire(b []byte) error {
	*m = GetEntitiesRequest{}
	return protoutil.Walk(b, func(f protoutil.Field) error {
		if f.Type != protowire.VarintType {
			return nil
		}
		var err error
		switch f.Num {
		case 1:
			m.FromIndex, err = f.Uint32()
		case 2:
			m.NumChunks, err = f.Uint32()
		}
		return err
	})
}

// GetEntitiesResponse is one page of a GetEntities stream.
type GetEntitiesResponse struct {
	Entities []*Entry
}

func (m *GetEntitiesResponse) AppendWire(b []byte) []byte {
	for _, e := range m.Entities {
		b = protoutil.AppendMessage(b, 1, e)
	}
	return b
}

func (m *GetEntitiesResponse) UnmarshalWire(b []byte) error {
	*m = GetEntitiesResponse{}
	return protoutil.Walk(b, func(f protoutil.Field) error {
		if f.Num == 1 && f.Type == protowire.BytesType {
			e := new(Entry)
			if err := e.UnmarshalWire(f.Bytes); err != nil {
				return err
			}
			m.Entities = append(m.Entities, e)
		}
		return nil
	})
}

type GetStateRequest struct {
	FromBlock uint64
	NumChunks uint32
	Removals  bool
}

func (m *GetStateRequest) Validate() error {
	return validateNumChunks(m.NumChunks)
}

func (m *GetStateRequest) AppendWire(b []byte) []byte {
	b = protoutil.AppendUint64(b, 1, m.FromBlock)
	b = protoutil.AppendUint64(b, 2, uint64(m.NumChunks))
	return protoutil.AppendBool(b, 3, m.Removals)
}

func (m *GetStateRequest) UnmarshalWire(b []byte) error {
	*m = GetStateRequest{}
	return protoutil.Walk(b, func(f protoutil.Field) error {
		if f.Type != protowire.VarintType {
			return nil
		}
		var err error
		switch f.Num {
		case 1:
			m.FromBlock = f.Varint
		case 2:
			m.NumChunks, err = f.Uint32()
		case 3:
			m.Removals = f.Varint != 0
		}
		return err
	})
}

// GetStateResponse is one page of a GetState stream.
type GetStateResponse struct {
	State []*StateEntry
}

func (m *GetStateResponse) AppendWire(b []byte) []byte {
	for _, e := range m.State {
		b = protoutil.AppendMessage(b, 1, e)
	}
	return b
}

func (m *GetStateResponse) UnmarshalWire(b []byte) error {
	*m = GetStateResponse{}
	return protoutil.Walk(b, func(f protoutil.Field) error {
		if f.Num == 1 && f.Type == protowire.BytesType {
			e := new(StateEntry)
			if err := e.UnmarshalWire(f.Bytes); err != nil {
				return err
			}
			m.State = append(m.State, e)
		}
		return nil
	})
}

// Entry is a component or entity registry entry. ID is the fixed-width big-endian id.
type Entry struct {
	Idx uint32
	ID  []byte
}

func (m *Entry) AppendWire(b []byte) []byte {
	b = protoutil.AppendUint64(b, 1, uint64(m.Idx))
	return protoutil.AppendBytes(b, 2, m.ID)
}

func (m *Entry) UnmarshalWire(b []byte) error {
	*m = Entry{}
	return protoutil.Walk(b, func(f protoutil.Field) error {
		var err error
		switch {
		case f.Num == 1 && f.Type == protowire.VarintType:
			m.Idx, err = f.Uint32()
		case f.Num == 2 && f.Type == protowire.BytesType:
			m.ID = f.Clone()
		}
		return err
	})
}

// StateEntry is one component value. Data is ABI encoded and empty for removals.
type StateEntry struct {
	PackedIdx uint64
	Data      []byte
}

func (m *StateEntry) AppendWire(b []byte) []byte {
	b = protoutil.AppendUint64(b, 1, m.PackedIdx)
	return protoutil.AppendBytes(b, 2, m.Data)
}

func (m *StateEntry) UnmarshalWire(b []byte) error {
	*m = StateEntry{}
	return protoutil.Walk(b, func(f protoutil.Field) error {
		switch {
		case f.Num == 1 && f.Type == protowire.VarintType:
			m.PackedIdx = f.Varint
		case f.Num == 2 && f.Type == protowire.BytesType:
			m.Data = f.Clone()
		}
		return nil
	})
}
