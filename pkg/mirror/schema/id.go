package schema

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rotisserie/eris"
)

// SentinelID occupies slot 0 of every registry and means "no component" / "no entity".
const SentinelID = "0x0"

var (
	// ComponentsComponentID and SystemsComponentID identify the world's own registry components.
	// Their values must be decodable before any schema lookup succeeds.
	ComponentsComponentID = FormatID(crypto.Keccak256([]byte("world.component.components")))
	SystemsComponentID    = FormatID(crypto.Keccak256([]byte("world.component.systems")))

	// MetaSchema is the schema shared by both meta components.
	MetaSchema = Schema{Keys: []string{"value"}, Values: []ValueType{Uint256}}
)

// FormatID converts a big-endian id to its canonical form.
func FormatID(b []byte) string {
	return hexutil.EncodeBig(new(big.Int).SetBytes(b))
}

// NormalizeID parses a hex id in any common spelling (with or without 0x, any case, leading
// zeros, odd length) and returns its canonical form.
func NormalizeID(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "0x")
	if s == "" {
		return "", eris.New("empty id")
	}
	if len(s)%2 == 1 {
		s = "0" + s
	}
	b, err := hexutil.Decode("0x" + s)
	if err != nil {
		return "", eris.Wrapf(err, "invalid hex id %q", s)
	}
	return FormatID(b), nil
}
