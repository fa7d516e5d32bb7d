// Package protoutil provides protobuf wire encoding for the hand-written kamigaze and kamiden
// messages, and the gRPC codec that carries them.
//
// The messages follow the field numbering in proto/. They are encoded with protowire directly
// instead of generated code, so every message implements Message by appending its fields to a
// buffer and by reading them back with Walk.
package protoutil

import (
	"github.com/rotisserie/eris"
	"google.golang.org/protobuf/encoding/protowire"
)

var ErrMalformed = eris.New("malformed protobuf message")

// Message is a protobuf message with hand-written wire encoding.
type Message interface {
	// AppendWire appends the encoded message to b.
	AppendWire(b []byte) []byte
	// UnmarshalWire decodes b into the message, replacing its contents.
	UnmarshalWire(b []byte) error
}

// Field is one decoded field. Varint holds varint and fixed-width values, Bytes holds
// length-delimited values and aliases the input buffer.
type Field struct {
	Num    protowire.Number
	Type   protowire.Type
	Varint uint64
	Bytes  []byte
}

// Walk calls fn for every field of b in wire order. Groups are skipped.
func Walk(b []byte, fn func(f Field) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return eris.Wrapf(ErrMalformed, "tag: %v", protowire.ParseError(n))
		}
		b = b[n:]

		f := Field{Num: num, Type: typ}
		switch typ {
		case protowire.VarintType:
			f.Varint, n = protowire.ConsumeVarint(b)
		case protowire.Fixed32Type:
			var v uint32
			v, n = protowire.ConsumeFixed32(b)
			f.Varint = uint64(v)
		case protowire.Fixed64Type:
			f.Varint, n = protowire.ConsumeFixed64(b)
		case protowire.BytesType:
			f.Bytes, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return eris.Wrapf(ErrMalformed, "field %d: %v", num, protowire.ParseError(n))
		}
		b = b[n:]

		if typ == protowire.StartGroupType {
			continue
		}
		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

// Uint32 narrows a varint field, rejecting values that do not fit.
func (f Field) Uint32() (uint32, error) {
	if f.Varint > 1<<32-1 {
		return 0, eris.Wrapf(ErrMalformed, "field %d: %d overflows uint32", f.Num, f.Varint)
	}
	return uint32(f.Varint), nil
}

// Clone copies a bytes field out of the input buffer.
func (f Field) Clone() []byte {
	if f.Bytes == nil {
		return nil
	}
	return append([]byte{}, f.Bytes...)
}

// The Append helpers follow proto3 presence: zero scalars and empty bytes are omitted.

func AppendUint64(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func AppendInt64(b []byte, num protowire.Number, v int64) []byte {
	return AppendUint64(b, num, uint64(v)) //nolint:gosec // two's complement, as protobuf int64
}

func AppendBool(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	return AppendUint64(b, num, 1)
}

func AppendBytes(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func AppendString(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

// AppendMessage appends m as an embedded message. Embedded messages are always written, even when
// empty, so presence survives the round trip.
func AppendMessage(b []byte, num protowire.Number, m Message) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, m.AppendWire(nil))
}

// Marshal encodes m.
func Marshal(m Message) []byte {
	return m.AppendWire(nil)
}
