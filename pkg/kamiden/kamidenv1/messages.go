// Package kamidenv1 holds the kamiden.v1 wire messages and the KamidenService descriptor. See
// proto/kamiden/v1/kamiden.proto for the schema.
package kamidenv1

import (
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/argus-labs/kamisync/pkg/protoutil"
)

var (
	_ protoutil.Message = (*SubscribeToStreamRequest)(nil)
	_ protoutil.Message = (*StreamResponse)(nil)
	_ protoutil.Message = (*Message)(nil)
	_ protoutil.Message = (*Feed)(nil)
	_ protoutil.Message = (*FeedEvent)(nil)
)

type SubscribeToStreamRequest struct{}

func (m *SubscribeToStreamRequest) AppendWire(b []byte) []byte { return b }

func (m *SubscribeToStreamRequest) UnmarshalWire(b []byte) error {
	return protoutil.Walk(b, func(protoutil.Field) error { return nil })
}

// StreamResponse is one push of the live feed. Feed is nil when the push carries only messages.
type StreamResponse struct {
	Messages []*Message
	Feed     *Feed
}

func (m *StreamResponse) AppendWire(b []byte) []byte {
	for _, msg := range m.Messages {
		b = protoutil.AppendMessage(b, 1, msg)
	}
	if m.Feed != nil {
		b = protoutil.AppendMessage(b, 2, m.Feed)
	}
	return b
}

func (m *StreamResponse) UnmarshalWire(b []byte) error {
	*m = StreamResponse{}
	return protoutil.Walk(b, func(f protoutil.Field) error {
		if f.Type != protowire.BytesType {
			return nil
		}
		switch f.Num {
		case 1:
			msg := new(Message)
			if err := msg.UnmarshalWire(f.Bytes); err != nil {
				return err
			}
			m.Messages = append(m.Messages, msg)
		case 2:
			m.Feed = new(Feed)
			return m.Feed.UnmarshalWire(f.Bytes)
		}
		return nil
	})
}

// Message is a chat or system message. Timestamp is in unix milliseconds.
type Message struct {
	ID        uint64
	Kind      string
	Room      string
	Sender    []byte
	Text      string
	Timestamp int64
}

func (m *Message) AppendWire(b []byte) []byte {
	b = protoutil.AppendUint64(b, 1, m.ID)
	b = protoutil.AppendString(b, 2, m.Kind)
	b = protoutil.AppendString(b, 3, m.Room)
	b = protoutil.AppendBytes(b, 4, m.Sender)
	b = protoutil.AppendString(b, 5, m.Text)
	return protoutil.AppendInt64(b, 6, m.Timestamp)
}

func (m *Message) UnmarshalWire(b []byte) error {
	*m = Message{}
	return protoutil.Walk(b, func(f protoutil.Field) error {
		switch {
		case f.Num == 1 && f.Type == protowire.VarintType:
			m.ID = f.Varint
		case f.Num == 2 && f.Type == protowire.BytesType:
			m.Kind = string(f.Bytes)
		case f.Num == 3 && f.Type == protowire.BytesType:
			m.Room = string(f.Bytes)
		case f.Num == 4 && f.Type == protowire.BytesType:
			m.Sender = f.Clone()
		case f.Num == 5 && f.Type == protowire.BytesType:
			m.Text = string(f.Bytes)
		case f.Num == 6 && f.Type == protowire.VarintType:
			m.Timestamp = int64(f.Varint) //nolint:gosec // two's complement, as protobuf int64
		}
		return nil
	})
}

// Feed is a batch of world events observed at one block.
type Feed struct {
	BlockNumber uint64
	Events      []*FeedEvent
}

func (m *Feed) AppendWire(b []byte) []byte {
	b = protoutil.AppendUint64(b, 1, m.BlockNumber)
	for _, e := range m.Events {
		b = protoutil.AppendMessage(b, 2, e)
	}
	return b
}

func (m *Feed) UnmarshalWire(b []byte) error {
	*m = Feed{}
	return protoutil.Walk(b, func(f protoutil.Field) error {
		switch {
		case f.Num == 1 && f.Type == protowire.VarintType:
			m.BlockNumber = f.Varint
		case f.Num == 2 && f.Type == protowire.BytesType:
			e := new(FeedEvent)
			if err := e.UnmarshalWire(f.Bytes); err != nil {
				return err
			}
			m.Events = append(m.Events, e)
		}
		return nil
	})
}

// FeedEvent is one event. Data is ABI encoded and interpreted by Kind.
type FeedEvent struct {
	Kind   string
	Entity []byte
	Data   []byte
}

func (m *FeedEvent) AppendWire(b []byte) []byte {
	b = protoutil.AppendString(b, 1, m.Kind)
	b = protoutil.AppendBytes(b, 2, m.Entity)
	return protoutil.AppendBytes(b, 3, m.Data)
}

func (m *FeedEvent) UnmarshalWire(b []byte) error {
	*m = FeedEvent{}
	return protoutil.Walk(b, func(f protoutil.Field) error {
		if f.Type != protowire.BytesType {
			return nil
		}
		switch f.Num {
		case 1:
			m.Kind = string(f.Bytes)
		case 2:
			m.Entity = f.Clone()
		case 3:
			m.Data = f.Clone()
		}
		return nil
	})
}
