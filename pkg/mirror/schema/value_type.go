package schema

import (
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
)

// ValueType is the wire type of a single component field. The numeric values match the on-chain
// SchemaValue enumeration and must not be reordered.
type ValueType uint8

const (
	Bool ValueType = iota
	Int8
	Int16
	Int32
	Int64
	Int128
	Int256
	Int
	Uint8
	Uint16
	Uint32
	Uint64
	Uint128
	Uint256
	Bytes
	String
	Address
	Bytes4
	BoolArray
	Int8Array
	Int16Array
	Int32Array
	Int64Array
	Int128Array
	Int256Array
	IntArray
	Uint8Array
	Uint16Array
	Uint32Array
	Uint64Array
	Uint128Array
	Uint256Array
	BytesArray
	StringArray

	numValueTypes
)

var valueTypeNames = [numValueTypes]string{
	"BOOL", "INT8", "INT16", "INT32", "INT64", "INT128", "INT256", "INT",
	"UINT8", "UINT16", "UINT32", "UINT64", "UINT128", "UINT256",
	"BYTES", "STRING", "ADDRESS", "BYTES4",
	"BOOL_ARRAY", "INT8_ARRAY", "INT16_ARRAY", "INT32_ARRAY", "INT64_ARRAY", "INT128_ARRAY",
	"INT256_ARRAY", "INT_ARRAY", "UINT8_ARRAY", "UINT16_ARRAY", "UINT32_ARRAY", "UINT64_ARRAY",
	"UINT128_ARRAY", "UINT256_ARRAY", "BYTES_ARRAY", "STRING_ARRAY",
}

var abiTypeNames = [numValueTypes]string{
	"bool", "int8", "int16", "int32", "int64", "int128", "int256", "int256",
	"uint8", "uint16", "uint32", "uint64", "uint128", "uint256",
	"bytes", "string", "address", "bytes4",
}

// Kind groups value types by the shape they decode to.
type Kind uint8

const (
	KindInvalid  Kind = iota
	KindSmallInt      // 8, 16 and 32 bit integers, decoded to int64
	KindBigInt        // 64 bit and wider integers, decoded to a hex string
	KindHex           // byte blobs, fixed byte arrays and addresses, decoded to a hex string
	KindBool
	KindString
	KindArray
)

func (v ValueType) Valid() bool {
	return v < numValueTypes
}

func (v ValueType) IsArray() bool {
	return v >= BoolArray && v < numValueTypes
}

// Elem returns the element type of an array type.
func (v ValueType) Elem() (ValueType, bool) {
	if !v.IsArray() {
		return 0, false
	}
	// Array types are laid out in the same order as the scalar types from Bool to String.
	return v - BoolArray, true
}

func (v ValueType) Kind() Kind {
	switch v {
	case Int8, Int16, Int32, Uint8, Uint16, Uint32:
		return KindSmallInt
	case Int64, Int128, Int256, Int, Uint64, Uint128, Uint256:
		return KindBigInt
	case Bytes, Bytes4, Address:
		return KindHex
	case Bool:
		return KindBool
	case String:
		return KindString
	case BoolArray, Int8Array, Int16Array, Int32Array, Int64Array, Int128Array, Int256Array, IntArray,
		Uint8Array, Uint16Array, Uint32Array, Uint64Array, Uint128Array, Uint256Array, BytesArray, StringArray:
		return KindArray
	case numValueTypes:
		return KindInvalid
	default:
		return KindInvalid
	}
}

// ABIType returns the solidity type name used to build the ABI decoder.
func (v ValueType) ABIType() (string, bool) {
	if elem, ok := v.Elem(); ok {
		inner, ok := elem.ABIType()
		if !ok {
			return "", false
		}
		return inner + "[]", true
	}
	if !v.Valid() {
		return "", false
	}
	return abiTypeNames[v], true
}

func (v ValueType) String() string {
	if !v.Valid() {
		return "UNKNOWN(" + strconv.Itoa(int(v)) + ")"
	}
	return valueTypeNames[v]
}

// ParseValueType accepts the enum name (case insensitive) or its numeric value.
func ParseValueType(s string) (ValueType, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseUint(s, 10, 8); err == nil {
		return ValueType(n), nil
	}
	upper := strings.ToUpper(s)
	for i, name := range valueTypeNames {
		if name == upper {
			return ValueType(i), nil
		}
	}
	return 0, eris.Errorf("unknown value type %q", s)
}

func (v ValueType) MarshalJSON() ([]byte, error) {
	if !v.Valid() {
		return json.Marshal(uint8(v))
	}
	return json.Marshal(v.String())
}

func (v *ValueType) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		parsed, err := ParseValueType(name)
		if err != nil {
			return err
		}
		*v = parsed
		return nil
	}
	var n uint8
	if err := json.Unmarshal(data, &n); err != nil {
		return eris.Wrapf(err, "value type must be a name or a number, got %s", data)
	}
	*v = ValueType(n)
	return nil
}
