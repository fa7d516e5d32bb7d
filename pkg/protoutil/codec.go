package protoutil

import (
	"github.com/rotisserie/eris"
	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// Codec is a gRPC codec for Message values. It registers as "proto" on the wire, so peers using
// generated code interoperate with it.
type Codec struct{}

var _ encoding.Codec = Codec{}

func (Codec) Marshal(v any) ([]byte, error) {
	m, ok := v.(Message)
	if !ok {
		return nil, eris.Errorf("protoutil: cannot marshal %T", v)
	}
	return m.AppendWire(nil), nil
}

func (Codec) Unmarshal(data []byte, v any) error {
	m, ok := v.(Message)
	if !ok {
		return eris.Errorf("protoutil: cannot unmarshal into %T", v)
	}
	return m.UnmarshalWire(data)
}

func (Codec) Name() string {
	return "proto"
}

// CallOption makes a client call use Codec.
func CallOption() grpc.CallOption {
	return grpc.ForceCodec(Codec{})
}

// ServerOption makes a server use Codec for every service it hosts.
func ServerOption() grpc.ServerOption {
	return grpc.ForceServerCodec(Codec{})
}
