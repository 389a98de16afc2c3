package starkattest

import (
	"errors"
	"fmt"
	"math/big"
	"reflect"
	"strings"

	"github.com/NethermindEth/juno/core/felt"
	"github.com/ethereum/go-ethereum/common"
)

// Cairo core type names with a fixed serialization.
const (
	TypeFelt            = "core::felt252"
	TypeLegacyFelt      = "felt"
	TypeContractAddress = "core::starknet::contract_address::ContractAddress"
	TypeClassHash       = "core::starknet::class_hash::ClassHash"
	TypeBytes31         = "core::bytes_31::bytes31"
	TypeEthAddress      = "core::starknet::eth_address::EthAddress"
	TypeU256            = "core::integer::u256"
	TypeBool            = "core::bool"
	TypeByteArray       = "core::byte_array::ByteArray"
	TypeUnit            = "()"

	genericArray  = "core::array::Array"
	genericSpan   = "core::array::Span"
	genericOption = "core::option::Option"
)

// ByteArrayWordSize is the number of bytes packed into each full ByteArray word.
const ByteArrayWordSize = 31

var integerTypes = map[string]struct {
	bits   uint
	signed bool
}{
	"core::integer::u8":    {8, false},
	"core::integer::u16":   {16, false},
	"core::integer::u32":   {32, false},
	"core::integer::u64":   {64, false},
	"core::integer::u128":  {128, false},
	"core::integer::usize": {32, false},
	"core::integer::i8":    {8, true},
	"core::integer::i16":   {16, true},
	"core::integer::i32":   {32, true},
	"core::integer::i64":   {64, true},
	"core::integer::i128":  {128, true},
}

var (
	two128   = new(big.Int).Lsh(big.NewInt(1), 128)
	two160   = new(big.Int).Lsh(big.NewInt(1), 160)
	two256   = new(big.Int).Lsh(big.NewInt(1), 256)
	halfFelt = new(big.Int).Rsh(feltPrime, 1)
)

// Enum is a Cairo enum value: the variant name and its payload (nil for
// unit variants).
type Enum struct {
	Variant string
	Value   any
}

// EncodeInputs serializes the arguments of fn in declaration order.
func (a *ABI) EncodeInputs(fn *Function, args []any) ([]*felt.Felt, error) {
	if len(args) != len(fn.Inputs) {
		return nil, &ArgumentError{
			Function: fn.Name,
			Index:    len(args),
			Err:      fmt.Errorf("got %d arguments, want %d", len(args), len(fn.Inputs)),
		}
	}
	var out []*felt.Felt
	for i, in := range fn.Inputs {
		enc, err := a.Encode(in.Type, args[i])
		if err != nil {
			return nil, &ArgumentError{Function: fn.Name, Index: i, Err: err}
		}
		out = append(out, enc...)
	}
	if out == nil {
		out = []*felt.Felt{}
	}
	return out, nil
}

// DecodeOutputs deserializes the result felts of fn, one value per output.
func (a *ABI) DecodeOutputs(fn *Function, data []*felt.Felt) ([]any, error) {
	values := make([]any, 0, len(fn.Outputs))
	rest := data
	for _, o := range fn.Outputs {
		var (
			v   any
			err error
		)
		v, rest, err = a.Decode(o.Type, rest)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

// Encode serializes v as the Cairo type typ.
func (a *ABI) Encode(typ string, v any) ([]*felt.Felt, error) {
	out, err := a.encode(strings.TrimPrefix(typ, "@"), v, nil)
	if err != nil {
		var encErr *EncodingError
		if errors.As(err, &encErr) {
			return nil, err
		}
		return nil, &EncodingError{Type: typ, Err: err}
	}
	return out, nil
}

func (a *ABI) encode(typ string, v any, out []*felt.Felt) ([]*felt.Felt, error) {
	typ = strings.TrimPrefix(typ, "@")

	switch typ {
	case TypeFelt, TypeLegacyFelt, TypeContractAddress, TypeClassHash, TypeBytes31:
		f, err := encodeFelt(v)
		if err != nil {
			return nil, err
		}
		return append(out, f), nil
	case TypeEthAddress:
		f, err := encodeEthAddress(v)
		if err != nil {
			return nil, err
		}
		return append(out, f), nil
	case TypeU256:
		x, err := toBigInt(v)
		if err != nil {
			return nil, err
		}
		if x.Sign() < 0 || x.Cmp(two256) >= 0 {
			return nil, fmt.Errorf("%w: %s does not fit u256", ErrValueOutOfRange, x)
		}
		low := new(big.Int).Mod(x, two128)
		high := new(big.Int).Rsh(x, 128)
		return append(out, new(felt.Felt).SetBigInt(low), new(felt.Felt).SetBigInt(high)), nil
	case TypeBool:
		b, ok := v.(bool)
		if !ok {
			return nil, &TypeMismatchError{Expected: "bool", Got: fmt.Sprintf("%T", v)}
		}
		if b {
			return append(out, FeltFromUint64(1)), nil
		}
		return append(out, FeltFromUint64(0)), nil
	case TypeByteArray:
		return encodeByteArray(v, out)
	case TypeUnit:
		return out, nil
	}

	if it, ok := integerTypes[typ]; ok {
		f, err := encodeInteger(v, it.bits, it.signed)
		if err != nil {
			return nil, err
		}
		return append(out, f), nil
	}

	if base, params, ok := splitGeneric(typ); ok && len(params) == 1 {
		switch base {
		case genericArray, genericSpan:
			return a.encodeArray(params[0], v, out)
		case genericOption:
			if _, declared := a.Enums[typ]; !declared {
				return a.encodeEnum(&EnumDef{Name: typ, Variants: []Param{
					{Name: "Some", Type: params[0]},
					{Name: "None", Type: TypeUnit},
				}}, v, out)
			}
		}
	}

	if elems, ok := splitTuple(typ); ok {
		return a.encodeTuple(elems, v, out)
	}
	if s, ok := a.Structs[typ]; ok {
		return a.encodeStruct(s, v, out)
	}
	if e, ok := a.Enums[typ]; ok {
		return a.encodeEnum(e, v, out)
	}
	return nil, fmt.Errorf("unknown Cairo type %q", typ)
}

func encodeFelt(v any) (*felt.Felt, error) {
	switch x := v.(type) {
	case common.Address:
		return new(felt.Felt).SetBigInt(new(big.Int).SetBytes(x.Bytes())), nil
	case string:
		if b, ok := parseBig(x); ok {
			return FeltFromBig(b)
		}
		return EncodeShortString(x)
	}
	b, err := toBigInt(v)
	if err != nil {
		return nil, err
	}
	return FeltFromBig(b)
}

func encodeEthAddress(v any) (*felt.Felt, error) {
	var x *big.Int
	switch addr := v.(type) {
	case common.Address:
		x = new(big.Int).SetBytes(addr.Bytes())
	case string:
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("%w: %q is not a 20-byte address", ErrValueOutOfRange, addr)
		}
		x = new(big.Int).SetBytes(common.HexToAddress(addr).Bytes())
	default:
		var err error
		if x, err = toBigInt(v); err != nil {
			return nil, err
		}
	}
	if x.Sign() < 0 || x.Cmp(two160) >= 0 {
		return nil, fmt.Errorf("%w: %s does not fit an EthAddress", ErrValueOutOfRange, x)
	}
	return new(felt.Felt).SetBigInt(x), nil
}

func encodeInteger(v any, bits uint, signed bool) (*felt.Felt, error) {
	x, err := toBigInt(v)
	if err != nil {
		return nil, err
	}
	limit := new(big.Int).Lsh(big.NewInt(1), bits)
	if signed {
		half := new(big.Int).Rsh(limit, 1)
		if x.Cmp(new(big.Int).Neg(half)) < 0 || x.Cmp(half) >= 0 {
			return nil, fmt.Errorf("%w: %s does not fit i%d", ErrValueOutOfRange, x, bits)
		}
		if x.Sign() < 0 {
			x.Add(x, feltPrime)
		}
		return new(felt.Felt).SetBigInt(x), nil
	}
	if x.Sign() < 0 || x.Cmp(limit) >= 0 {
		return nil, fmt.Errorf("%w: %s does not fit u%d", ErrValueOutOfRange, x, bits)
	}
	return new(felt.Felt).SetBigInt(x), nil
}

// encodeByteArray packs bytes as [n_full_words, words..., pending_word,
// pending_word_len], 31 bytes per word, big-endian.
func encodeByteArray(v any, out []*felt.Felt) ([]*felt.Felt, error) {
	var data []byte
	switch x := v.(type) {
	case string:
		data = []byte(x)
	case []byte:
		data = x
	default:
		return nil, &TypeMismatchError{Expected: "string or []byte", Got: fmt.Sprintf("%T", v)}
	}

	full := len(data) / ByteArrayWordSize
	out = append(out, FeltFromUint64(uint64(full)))
	for i := 0; i < full; i++ {
		word := data[i*ByteArrayWordSize : (i+1)*ByteArrayWordSize]
		out = append(out, new(felt.Felt).SetBigInt(new(big.Int).SetBytes(word)))
	}
	pending := data[full*ByteArrayWordSize:]
	out = append(out,
		new(felt.Felt).SetBigInt(new(big.Int).SetBytes(pending)),
		FeltFromUint64(uint64(len(pending))),
	)
	return out, nil
}

func (a *ABI) encodeArray(elem string, v any, out []*felt.Felt) ([]*felt.Felt, error) {
	if v == nil {
		return append(out, FeltFromUint64(0)), nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, &TypeMismatchError{Expected: "slice", Got: fmt.Sprintf("%T", v)}
	}
	out = append(out, FeltFromUint64(uint64(rv.Len())))
	for i := 0; i < rv.Len(); i++ {
		var err error
		out, err = a.encode(elem, rv.Index(i).Interface(), out)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
	}
	return out, nil
}

func (a *ABI) encodeTuple(elems []string, v any, out []*felt.Felt) ([]*felt.Felt, error) {
	values, ok := v.([]any)
	if !ok {
		return nil, &TypeMismatchError{Expected: "[]any tuple", Got: fmt.Sprintf("%T", v)}
	}
	if len(values) != len(elems) {
		return nil, fmt.Errorf("tuple has %d elements, want %d", len(values), len(elems))
	}
	for i, t := range elems {
		var err error
		out, err = a.encode(t, values[i], out)
		if err != nil {
			return nil, fmt.Errorf("tuple element %d: %w", i, err)
		}
	}
	return out, nil
}

func (a *ABI) encodeStruct(s *Struct, v any, out []*felt.Felt) ([]*felt.Felt, error) {
	fields, err := structFields(v)
	if err != nil {
		return nil, err
	}
	for _, m := range s.Members {
		fv, ok := fields[m.Name]
		if !ok {
			return nil, fmt.Errorf("struct %s: missing member %q", s.Name, m.Name)
		}
		out, err = a.encode(m.Type, fv, out)
		if err != nil {
			return nil, fmt.Errorf("struct %s member %q: %w", s.Name, m.Name, err)
		}
	}
	return out, nil
}

// structFields accepts map[string]any or a Go struct; struct fields are
// keyed by their `cairo` tag, falling back to the field name with its first
// letter lower-cased.
func structFields(v any) (map[string]any, error) {
	if m, ok := v.(map[string]any); ok {
		return m, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer && !rv.IsNil() {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, &TypeMismatchError{Expected: "map[string]any or struct", Got: fmt.Sprintf("%T", v)}
	}
	rt := rv.Type()
	fields := make(map[string]any, rt.NumField())
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		if !f.IsExported() {
			continue
		}
		name := f.Tag.Get("cairo")
		if name == "-" {
			continue
		}
		if name == "" {
			name = strings.ToLower(f.Name[:1]) + f.Name[1:]
		}
		fields[name] = rv.Field(i).Interface()
	}
	return fields, nil
}

func (a *ABI) encodeEnum(e *EnumDef, v any, out []*felt.Felt) ([]*felt.Felt, error) {
	var val Enum
	switch x := v.(type) {
	case Enum:
		val = x
	case *Enum:
		val = *x
	case nil:
		val = Enum{Variant: "None"}
	default:
		return nil, &TypeMismatchError{Expected: "Enum", Got: fmt.Sprintf("%T", v)}
	}
	for i, variant := range e.Variants {
		if variant.Name != val.Variant {
			continue
		}
		out = append(out, FeltFromUint64(uint64(i)))
		return a.encode(variant.Type, val.Value, out)
	}
	return nil, fmt.Errorf("enum %s has no variant %q", e.Name, val.Variant)
}

// Decode deserializes one value of Cairo type typ from the head of data and
// returns the remaining felts.
func (a *ABI) Decode(typ string, data []*felt.Felt) (any, []*felt.Felt, error) {
	v, rest, err := a.decode(strings.TrimPrefix(typ, "@"), data)
	if err != nil {
		var encErr *EncodingError
		if errors.As(err, &encErr) {
			return nil, nil, err
		}
		return nil, nil, &EncodingError{Type: typ, Err: err}
	}
	return v, rest, nil
}

func (a *ABI) decode(typ string, data []*felt.Felt) (any, []*felt.Felt, error) {
	typ = strings.TrimPrefix(typ, "@")
	take := func(n int) ([]*felt.Felt, error) {
		if len(data) < n {
			return nil, ErrShortData
		}
		return data[:n], nil
	}

	switch typ {
	case TypeFelt, TypeLegacyFelt, TypeContractAddress, TypeClassHash, TypeBytes31:
		head, err := take(1)
		if err != nil {
			return nil, nil, err
		}
		return head[0], data[1:], nil
	case TypeEthAddress:
		head, err := take(1)
		if err != nil {
			return nil, nil, err
		}
		x := FeltToBig(head[0])
		if x.Cmp(two160) >= 0 {
			return nil, nil, fmt.Errorf("%w: %s does not fit an EthAddress", ErrValueOutOfRange, x)
		}
		return common.BigToAddress(x), data[1:], nil
	case TypeU256:
		head, err := take(2)
		if err != nil {
			return nil, nil, err
		}
		low, high := FeltToBig(head[0]), FeltToBig(head[1])
		if low.Cmp(two128) >= 0 || high.Cmp(two128) >= 0 {
			return nil, nil, fmt.Errorf("%w: u256 limb exceeds 128 bits", ErrValueOutOfRange)
		}
		return high.Lsh(high, 128).Or(high, low), data[2:], nil
	case TypeBool:
		head, err := take(1)
		if err != nil {
			return nil, nil, err
		}
		if x := FeltToBig(head[0]); x.IsUint64() {
			switch x.Uint64() {
			case 0:
				return false, data[1:], nil
			case 1:
				return true, data[1:], nil
			}
		}
		return nil, nil, fmt.Errorf("%w: %s is not a bool", ErrValueOutOfRange, FeltHex(head[0]))
	case TypeByteArray:
		return decodeByteArray(data)
	case TypeUnit:
		return nil, data, nil
	}

	if it, ok := integerTypes[typ]; ok {
		head, err := take(1)
		if err != nil {
			return nil, nil, err
		}
		x := FeltToBig(head[0])
		if it.signed && x.Cmp(halfFelt) > 0 {
			x.Sub(x, feltPrime)
		}
		return x, data[1:], nil
	}

	if base, params, ok := splitGeneric(typ); ok && len(params) == 1 {
		switch base {
		case genericArray, genericSpan:
			return a.decodeArray(params[0], data)
		case genericOption:
			if _, declared := a.Enums[typ]; !declared {
				return a.decodeEnum(&EnumDef{Name: typ, Variants: []Param{
					{Name: "Some", Type: params[0]},
					{Name: "None", Type: TypeUnit},
				}}, data)
			}
		}
	}

	if elems, ok := splitTuple(typ); ok {
		values := make([]any, 0, len(elems))
		rest := data
		for _, t := range elems {
			var (
				v   any
				err error
			)
			v, rest, err = a.decode(t, rest)
			if err != nil {
				return nil, nil, err
			}
			values = append(values, v)
		}
		return values, rest, nil
	}
	if s, ok := a.Structs[typ]; ok {
		fields := make(map[string]any, len(s.Members))
		rest := data
		for _, m := range s.Members {
			var (
				v   any
				err error
			)
			v, rest, err = a.decode(m.Type, rest)
			if err != nil {
				return nil, nil, fmt.Errorf("struct %s member %q: %w", s.Name, m.Name, err)
			}
			fields[m.Name] = v
		}
		return fields, rest, nil
	}
	if e, ok := a.Enums[typ]; ok {
		return a.decodeEnum(e, data)
	}
	return nil, nil, fmt.Errorf("unknown Cairo type %q", typ)
}

func decodeByteArray(data []*felt.Felt) (any, []*felt.Felt, error) {
	if len(data) < 1 {
		return nil, nil, ErrShortData
	}
	n := FeltToBig(data[0])
	if !n.IsUint64() || n.Uint64() > uint64(len(data)) {
		return nil, nil, ErrShortData
	}
	full := int(n.Uint64())
	if len(data) < full+3 {
		return nil, nil, ErrShortData
	}

	var sb strings.Builder
	word := make([]byte, ByteArrayWordSize)
	for i := 0; i < full; i++ {
		w := FeltToBig(data[1+i])
		if w.BitLen() > ByteArrayWordSize*8 {
			return nil, nil, fmt.Errorf("%w: byte array word %d exceeds 31 bytes", ErrValueOutOfRange, i)
		}
		w.FillBytes(word)
		sb.Write(word)
	}
	pendingLen := FeltToBig(data[full+2])
	if !pendingLen.IsUint64() || pendingLen.Uint64() >= ByteArrayWordSize {
		return nil, nil, fmt.Errorf("%w: pending word length %s", ErrValueOutOfRange, pendingLen)
	}
	pending := make([]byte, pendingLen.Uint64())
	pw := FeltToBig(data[full+1])
	if pw.BitLen() > len(pending)*8 {
		return nil, nil, fmt.Errorf("%w: pending word longer than %d bytes", ErrValueOutOfRange, len(pending))
	}
	pw.FillBytes(pending)
	sb.Write(pending)
	return sb.String(), data[full+3:], nil
}

func (a *ABI) decodeArray(elem string, data []*felt.Felt) (any, []*felt.Felt, error) {
	if len(data) < 1 {
		return nil, nil, ErrShortData
	}
	n := FeltToBig(data[0])
	if !n.IsUint64() || n.Uint64() > uint64(len(data)) {
		return nil, nil, ErrShortData
	}
	values := make([]any, 0, int(n.Uint64()))
	rest := data[1:]
	for i := uint64(0); i < n.Uint64(); i++ {
		var (
			v   any
			err error
		)
		v, rest, err = a.decode(elem, rest)
		if err != nil {
			return nil, nil, fmt.Errorf("element %d: %w", i, err)
		}
		values = append(values, v)
	}
	return values, rest, nil
}

func (a *ABI) decodeEnum(e *EnumDef, data []*felt.Felt) (any, []*felt.Felt, error) {
	if len(data) < 1 {
		return nil, nil, ErrShortData
	}
	idx := FeltToBig(data[0])
	if !idx.IsUint64() || idx.Uint64() >= uint64(len(e.Variants)) {
		return nil, nil, fmt.Errorf("%w: enum %s has no variant %s", ErrValueOutOfRange, e.Name, idx)
	}
	variant := e.Variants[idx.Uint64()]
	v, rest, err := a.decode(variant.Type, data[1:])
	if err != nil {
		return nil, nil, err
	}
	return Enum{Variant: variant.Name, Value: v}, rest, nil
}

// splitGeneric splits "a::b::<T, U>" into "a::b" and [T, U].
func splitGeneric(typ string) (string, []string, bool) {
	open := strings.Index(typ, "::<")
	if open < 0 || !strings.HasSuffix(typ, ">") {
		return "", nil, false
	}
	return typ[:open], splitTopLevel(typ[open+3 : len(typ)-1]), true
}

// splitTuple splits "(A, B)" into [A, B]. The unit type is not a tuple.
func splitTuple(typ string) ([]string, bool) {
	if len(typ) < 3 || typ[0] != '(' || typ[len(typ)-1] != ')' {
		return nil, false
	}
	return splitTopLevel(typ[1 : len(typ)-1]), true
}

// splitTopLevel splits on commas that are not nested inside <> or ().
func splitTopLevel(s string) []string {
	var (
		parts []string
		depth int
		start int
	)
	for i, r := range s {
		switch r {
		case '<', '(':
			depth++
		case '>', ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	if last := strings.TrimSpace(s[start:]); last != "" {
		parts = append(parts, last)
	}
	return parts
}
