package decode

import (
	"math/big"
	"reflect"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/rotisserie/eris"

	"github.com/argus-labs/kamisync/pkg/mirror/schema"
)

const wordSize = 32

// Compile builds a decoder for a schema. The raw value must be the ABI encoding of the schema's
// value types as a parameter list.
func Compile(componentID string, s schema.Schema) (Func, error) {
	if len(s.Keys) != len(s.Values) {
		return nil, eris.Wrapf(ErrSchemaArityMismatch, "component %s has %d keys and %d values",
			componentID, len(s.Keys), len(s.Values))
	}

	args, err := Arguments(s)
	if err != nil {
		return nil, eris.Wrapf(err, "component %s", componentID)
	}

	keys := append([]string(nil), s.Keys...)
	types := append([]schema.ValueType(nil), s.Values...)

	return func(raw []byte) (Record, error) {
		values, err := args.UnpackValues(raw)
		if err != nil {
			return nil, eris.Wrapf(ErrMalformedValue, "component %s: %v", componentID, err)
		}
		record := make(Record, len(keys))
		for i, key := range keys {
			v, err := flatten(values[i], types[i])
			if err != nil {
				return nil, eris.Wrapf(err, "component %s field %s", componentID, key)
			}
			record[key] = v
		}
		return record, nil
	}, nil
}

// Arguments converts a schema into a go-ethereum parameter list, which is also what the tests and
// the fixture server use to encode values.
func Arguments(s schema.Schema) (abi.Arguments, error) {
	args := make(abi.Arguments, 0, len(s.Values))
	for i, vt := range s.Values {
		name, ok := vt.ABIType()
		if !ok {
			return nil, eris.Wrapf(ErrUnknownValueType, "field %d has type %s", i, vt)
		}
		t, err := abi.NewType(name, "", nil)
		if err != nil {
			return nil, eris.Wrapf(err, "failed to build abi type %s", name)
		}
		args = append(args, abi.Argument{Type: t})
	}
	return args, nil
}

func flatten(v any, vt schema.ValueType) (any, error) {
	switch vt.Kind() {
	case schema.KindSmallInt:
		return smallInt(v, vt)
	case schema.KindBigInt:
		return bigIntHex(v, vt)
	case schema.KindHex:
		return bytesHex(v, vt)
	case schema.KindBool:
		b, ok := v.(bool)
		if !ok {
			return nil, mismatch(v, vt)
		}
		return b, nil
	case schema.KindString:
		s, ok := v.(string)
		if !ok {
			return nil, mismatch(v, vt)
		}
		return s, nil
	case schema.KindArray:
		elem, _ := vt.Elem()
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return nil, mismatch(v, vt)
		}
		out := make([]any, rv.Len())
		for i := range out {
			e, err := flatten(rv.Index(i).Interface(), elem)
			if err != nil {
				return nil, eris.Wrapf(err, "element %d", i)
			}
			out[i] = e
		}
		return out, nil
	case schema.KindInvalid:
		return nil, eris.Wrapf(ErrUnknownValueType, "%s", vt)
	default:
		return nil, eris.Wrapf(ErrUnknownValueType, "%s", vt)
	}
}

func smallInt(v any, vt schema.ValueType) (any, error) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() { //nolint:exhaustive // everything else is a mismatch
	case reflect.Int8, reflect.Int16, reflect.Int32:
		return rv.Int(), nil
	case reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return int64(rv.Uint()), nil
	default:
		return nil, mismatch(v, vt)
	}
}

func bigIntHex(v any, vt schema.ValueType) (any, error) {
	switch n := v.(type) {
	case uint64:
		return hexutil.EncodeUint64(n), nil
	case int64:
		return hexutil.EncodeBig(big.NewInt(n)), nil
	case *big.Int:
		return hexutil.EncodeBig(n), nil
	default:
		return nil, mismatch(v, vt)
	}
}

func bytesHex(v any, vt schema.ValueType) (any, error) {
	switch b := v.(type) {
	case []byte:
		return hexutil.Encode(b), nil
	case [4]byte:
		return hexutil.Encode(b[:]), nil
	case common.Address:
		return hexutil.Encode(b.Bytes()), nil
	default:
		return nil, mismatch(v, vt)
	}
}

func mismatch(v any, vt schema.ValueType) error {
	return eris.Wrapf(ErrMalformedValue, "unexpected %T for %s", v, vt)
}
