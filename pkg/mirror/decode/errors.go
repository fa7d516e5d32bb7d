package decode

import "github.com/rotisserie/eris"

var (
	// ErrSchemaArityMismatch means a schema has a different number of keys and value types.
	ErrSchemaArityMismatch = eris.New("schema keys and values length does not match")

	// ErrUnknownValueType means a schema uses a wire type no decode rule covers.
	ErrUnknownValueType = eris.New("unknown value type")

	// ErrMalformedValue means the raw bytes are not a valid ABI encoding for the schema.
	ErrMalformedValue = eris.New("malformed component value")
)
