package starkattest

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/NethermindEth/juno/core/felt"
	"github.com/consensys/gnark-crypto/ecc/stark-curve/fp"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// MaxShortStringLength is the number of bytes a Cairo short string can hold.
const MaxShortStringLength = 31

// feltPrime is the Starknet field modulus P = 2^251 + 17*2^192 + 1.
var feltPrime = fp.Modulus()

// ParseFelt parses a field element from a 0x-prefixed hex string or a
// decimal string. Values must lie in [0, P).
func ParseFelt(s string) (*felt.Felt, error) {
	b, ok := parseBig(s)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not a number", ErrValueOutOfRange, s)
	}
	return FeltFromBig(b)
}

// MustParseFelt is like ParseFelt but panics on error.
// Use only with compile-time constant values.
func MustParseFelt(s string) *felt.Felt {
	f, err := ParseFelt(s)
	if err != nil {
		panic(err)
	}
	return f
}

// FeltFromBig converts b to a field element, rejecting values outside [0, P).
func FeltFromBig(b *big.Int) (*felt.Felt, error) {
	if b.Sign() < 0 || b.Cmp(feltPrime) >= 0 {
		return nil, fmt.Errorf("%w: %s is not a field element", ErrValueOutOfRange, b.String())
	}
	return new(felt.Felt).SetBigInt(b), nil
}

// FeltFromUint64 converts v to a field element.
func FeltFromUint64(v uint64) *felt.Felt {
	return new(felt.Felt).SetUint64(v)
}

// FeltToBig returns the canonical integer value of f.
func FeltToBig(f *felt.Felt) *big.Int {
	return f.BigInt(new(big.Int))
}

// FeltHex formats f the way the JSON-RPC API expects: lower-case,
// 0x-prefixed, no leading zeros.
func FeltHex(f *felt.Felt) string {
	return hexutil.EncodeBig(FeltToBig(f))
}

// feltsToHex formats a felt slice for the wire. The result is never nil so
// it marshals as [] rather than null.
func feltsToHex(fs []*felt.Felt) []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = FeltHex(f)
	}
	return out
}

// feltsFromHex parses a wire felt slice.
func feltsFromHex(ss []string) ([]*felt.Felt, error) {
	out := make([]*felt.Felt, len(ss))
	for i, s := range ss {
		f, err := ParseFelt(s)
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}

// EncodeShortString packs up to 31 ASCII bytes into a felt, big-endian.
func EncodeShortString(s string) (*felt.Felt, error) {
	if len(s) > MaxShortStringLength {
		return nil, fmt.Errorf("%w: short string %q longer than %d bytes", ErrValueOutOfRange, s, MaxShortStringLength)
	}
	for i := 0; i < len(s); i++ {
		if s[i] > 0x7f {
			return nil, fmt.Errorf("%w: short string %q is not ASCII", ErrValueOutOfRange, s)
		}
	}
	return new(felt.Felt).SetBigInt(new(big.Int).SetBytes([]byte(s))), nil
}

// DecodeShortString unpacks a felt produced by EncodeShortString.
func DecodeShortString(f *felt.Felt) string {
	return string(FeltToBig(f).Bytes())
}

// HexToBytes decodes a hex string into bytes. A 0x prefix is optional and an
// odd number of digits is left-padded with a zero nibble, so "0x1" decodes
// to []byte{0x01}.
func HexToBytes(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s)%2 != 0 {
		s = "0" + s
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("starkattest: invalid hex: %w", err)
	}
	return b, nil
}

// parseBig parses a 0x-prefixed hex or a decimal string.
func parseBig(s string) (*big.Int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}
	if has0xPrefix(s) {
		if len(s) == 2 {
			return nil, false
		}
		return new(big.Int).SetString(s[2:], 16)
	}
	return new(big.Int).SetString(s, 10)
}

func has0xPrefix(s string) bool {
	return len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}

// toBigInt converts Go numeric values (and numeric strings) to *big.Int.
func toBigInt(v any) (*big.Int, error) {
	switch x := v.(type) {
	case *felt.Felt:
		if x == nil {
			return nil, fmt.Errorf("nil felt")
		}
		return FeltToBig(x), nil
	case felt.Felt:
		return FeltToBig(&x), nil
	case *big.Int:
		if x == nil {
			return nil, fmt.Errorf("nil big.Int")
		}
		return new(big.Int).Set(x), nil
	case big.Int:
		return new(big.Int).Set(&x), nil
	case int:
		return big.NewInt(int64(x)), nil
	case int8:
		return big.NewInt(int64(x)), nil
	case int16:
		return big.NewInt(int64(x)), nil
	case int32:
		return big.NewInt(int64(x)), nil
	case int64:
		return big.NewInt(x), nil
	case uint:
		return new(big.Int).SetUint64(uint64(x)), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(x)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(x)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(x)), nil
	case uint64:
		return new(big.Int).SetUint64(x), nil
	case string:
		b, ok := parseBig(x)
		if !ok {
			return nil, fmt.Errorf("%q is not a number", x)
		}
		return b, nil
	default:
		return nil, &TypeMismatchError{Expected: "integer", Got: fmt.Sprintf("%T", v)}
	}
}
