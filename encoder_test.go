package starkattest

import (
	"errors"
	"math/big"
	"reflect"
	"strings"
	"testing"

	"github.com/NethermindEth/juno/core/felt"
	"github.com/ethereum/go-ethereum/common"
)

const codecABI = `[
	{"type": "struct", "name": "demo::Point", "members": [
		{"name": "x", "type": "core::integer::u32"},
		{"name": "y", "type": "core::integer::i32"}
	]},
	{"type": "enum", "name": "demo::Shape", "variants": [
		{"name": "Empty", "type": "()"},
		{"name": "Dot", "type": "demo::Point"},
		{"name": "Line", "type": "(demo::Point, demo::Point)"}
	]},
	{"type": "function", "name": "draw", "state_mutability": "external",
		"inputs": [
			{"name": "shape", "type": "demo::Shape"},
			{"name": "label", "type": "core::byte_array::ByteArray"}
		],
		"outputs": [{"type": "core::bool"}]}
]`

func hexes(fs []*felt.Felt) []string {
	return feltsToHex(fs)
}

func TestEncodeBuiltins(t *testing.T) {
	a := MustParseABI(codecABI)

	tests := []struct {
		name string
		typ  string
		in   any
		want []string
	}{
		{"felt from int", TypeFelt, 42, []string{"0x2a"}},
		{"felt from hex", TypeFelt, "0x2a", []string{"0x2a"}},
		{"felt from short string", TypeFelt, "hello", []string{"0x68656c6c6f"}},
		{"felt from address", TypeContractAddress, common.HexToAddress("0x01"), []string{"0x1"}},
		{"eth address", TypeEthAddress, "0xe05fcC23807536bEe418f142D19fa0d21BB0cfF7", []string{"0xe05fcc23807536bee418f142d19fa0d21bb0cff7"}},
		{"u256 small", TypeU256, 5, []string{"0x5", "0x0"}},
		{"u256 split", TypeU256, "0x6516ff20b12fab566bffa0007a21e4790d74345696806422615c31a2bbe04698",
			[]string{"0xd74345696806422615c31a2bbe04698", "0x6516ff20b12fab566bffa0007a21e479"}},
		{"bool", TypeBool, true, []string{"0x1"}},
		{"u8", "core::integer::u8", uint8(255), []string{"0xff"}},
		{"i8 negative", "core::integer::i8", -1, []string{"0x800000000000011000000000000000000000000000000000000000000000000"}},
		{"byte array short", TypeByteArray, "url", []string{"0x0", "0x75726c", "0x3"}},
		{"byte array empty", TypeByteArray, "", []string{"0x0", "0x0", "0x0"}},
		{"unit", TypeUnit, nil, []string{}},
		{"snapshot prefix", "@" + TypeFelt, 1, []string{"0x1"}},
		{"array", "core::array::Array::<core::felt252>", []int{1, 2}, []string{"0x2", "0x1", "0x2"}},
		{"span of bytes", "core::array::Span::<core::integer::u8>", []byte{0xab}, []string{"0x1", "0xab"}},
		{"tuple", "(core::felt252, core::bool)", []any{7, false}, []string{"0x7", "0x0"}},
		{"option some", "core::option::Option::<core::felt252>", Enum{Variant: "Some", Value: 3}, []string{"0x0", "0x3"}},
		{"option none", "core::option::Option::<core::felt252>", nil, []string{"0x1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := a.Encode(tt.typ, tt.in)
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if !reflect.DeepEqual(hexes(got), tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, hexes(got))
			}
		})
	}
}

func TestEncodeByteArrayWords(t *testing.T) {
	a := MustParseABI(codecABI)
	s := strings.Repeat("a", 31) + "bc"

	got, err := a.Encode(TypeByteArray, s)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 4 {
		t.Fatalf("Expected 4 felts, got %d", len(got))
	}
	if FeltToBig(got[0]).Int64() != 1 {
		t.Errorf("Expected one full word, got %s", FeltHex(got[0]))
	}
	if FeltHex(got[2]) != "0x6263" || FeltToBig(got[3]).Int64() != 2 {
		t.Errorf("Expected pending word bc of length 2, got %s/%s", FeltHex(got[2]), FeltHex(got[3]))
	}

	back, rest, err := a.Decode(TypeByteArray, got)
	if err != nil {
		t.Fatal(err)
	}
	if back != s || len(rest) != 0 {
		t.Errorf("Expected %q with no remainder, got %q (%d left)", s, back, len(rest))
	}
}

func TestEncodeStructsAndEnums(t *testing.T) {
	a := MustParseABI(codecABI)

	type point struct {
		X uint32
		Y int32 `cairo:"y"`
	}

	t.Run("struct from map", func(t *testing.T) {
		got, err := a.Encode("demo::Point", map[string]any{"x": 1, "y": 2})
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(hexes(got), []string{"0x1", "0x2"}) {
			t.Errorf("Expected [0x1 0x2], got %v", hexes(got))
		}
	})

	t.Run("struct from Go struct", func(t *testing.T) {
		got, err := a.Encode("demo::Point", point{X: 3, Y: 4})
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(hexes(got), []string{"0x3", "0x4"}) {
			t.Errorf("Expected [0x3 0x4], got %v", hexes(got))
		}
	})

	t.Run("missing member", func(t *testing.T) {
		_, err := a.Encode("demo::Point", map[string]any{"x": 1})
		if err == nil || !strings.Contains(err.Error(), `missing member "y"`) {
			t.Errorf("Expected missing member error, got %v", err)
		}
	})

	t.Run("enum variants", func(t *testing.T) {
		got, err := a.Encode("demo::Shape", Enum{Variant: "Line", Value: []any{point{1, 2}, point{3, 4}}})
		if err != nil {
			t.Fatal(err)
		}
		want := []string{"0x2", "0x1", "0x2", "0x3", "0x4"}
		if !reflect.DeepEqual(hexes(got), want) {
			t.Errorf("Expected %v, got %v", want, hexes(got))
		}

		got, err = a.Encode("demo::Shape", Enum{Variant: "Empty"})
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(hexes(got), []string{"0x0"}) {
			t.Errorf("Expected [0x0], got %v", hexes(got))
		}
	})

	t.Run("unknown variant", func(t *testing.T) {
		if _, err := a.Encode("demo::Shape", Enum{Variant: "Circle"}); err == nil {
			t.Error("Expected error for unknown variant")
		}
	})

	t.Run("enum round trip", func(t *testing.T) {
		data, err := a.Encode("demo::Shape", Enum{Variant: "Dot", Value: point{5, -6}})
		if err != nil {
			t.Fatal(err)
		}
		v, _, err := a.Decode("demo::Shape", data)
		if err != nil {
			t.Fatal(err)
		}
		e, ok := v.(Enum)
		if !ok || e.Variant != "Dot" {
			t.Fatalf("Expected Dot variant, got %#v", v)
		}
		fields := e.Value.(map[string]any)
		if fields["x"].(*big.Int).Int64() != 5 || fields["y"].(*big.Int).Int64() != -6 {
			t.Errorf("Expected point (5, -6), got %v", fields)
		}
	})
}

func TestEncodeErrors(t *testing.T) {
	a := MustParseABI(codecABI)

	tests := []struct {
		name string
		typ  string
		in   any
		want error
	}{
		{"u8 overflow", "core::integer::u8", 256, ErrValueOutOfRange},
		{"u32 negative", "core::integer::u32", -1, ErrValueOutOfRange},
		{"i8 overflow", "core::integer::i8", 128, ErrValueOutOfRange},
		{"u256 overflow", TypeU256, new(big.Int).Lsh(big.NewInt(1), 256), ErrValueOutOfRange},
		{"felt overflow", TypeFelt, new(big.Int).Set(feltPrime), ErrValueOutOfRange},
		{"short string too long", TypeFelt, strings.Repeat("x", 32), ErrValueOutOfRange},
		{"eth address too short", TypeEthAddress, "0x1234", ErrValueOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.Encode(tt.typ, tt.in)
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
			var encErr *EncodingError
			if !errors.As(err, &encErr) {
				t.Errorf("Expected EncodingError, got %T", err)
			}
		})
	}

	t.Run("type mismatch", func(t *testing.T) {
		_, err := a.Encode(TypeBool, "yes")
		var mismatch *TypeMismatchError
		if !errors.As(err, &mismatch) {
			t.Errorf("Expected TypeMismatchError, got %v", err)
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		if _, err := a.Encode("demo::Missing", 1); err == nil {
			t.Error("Expected error for unknown type")
		}
	})
}

func TestEncodeInputs(t *testing.T) {
	a := MustParseABI(codecABI)
	fn, ok := a.Function("draw")
	if !ok {
		t.Fatal("Expected draw to be declared")
	}

	t.Run("concatenates arguments", func(t *testing.T) {
		got, err := a.EncodeInputs(fn, []any{Enum{Variant: "Empty"}, "url"})
		if err != nil {
			t.Fatal(err)
		}
		want := []string{"0x0", "0x0", "0x75726c", "0x3"}
		if !reflect.DeepEqual(hexes(got), want) {
			t.Errorf("Expected %v, got %v", want, hexes(got))
		}
	})

	t.Run("wrong count", func(t *testing.T) {
		_, err := a.EncodeInputs(fn, []any{Enum{Variant: "Empty"}})
		var argErr *ArgumentError
		if !errors.As(err, &argErr) {
			t.Errorf("Expected ArgumentError, got %v", err)
		}
	})

	t.Run("reports the failing index", func(t *testing.T) {
		_, err := a.EncodeInputs(fn, []any{Enum{Variant: "Empty"}, 3.5})
		var argErr *ArgumentError
		if !errors.As(err, &argErr) || argErr.Index != 1 {
			t.Errorf("Expected ArgumentError at index 1, got %v", err)
		}
	})

	t.Run("no arguments encode to an empty slice", func(t *testing.T) {
		got, err := a.EncodeInputs(&Function{Name: "noop"}, nil)
		if err != nil {
			t.Fatal(err)
		}
		if got == nil || len(got) != 0 {
			t.Errorf("Expected empty non-nil calldata, got %v", got)
		}
	})
}

func TestDecode(t *testing.T) {
	a := MustParseABI(codecABI)
	felts := func(ss ...string) []*felt.Felt {
		fs, err := feltsFromHex(ss)
		if err != nil {
			t.Fatal(err)
		}
		return fs
	}

	t.Run("u256", func(t *testing.T) {
		v, rest, err := a.Decode(TypeU256, felts("0xd74345696806422615c31a2bbe04698", "0x6516ff20b12fab566bffa0007a21e479", "0x9"))
		if err != nil {
			t.Fatal(err)
		}
		want, _ := new(big.Int).SetString("6516ff20b12fab566bffa0007a21e4790d74345696806422615c31a2bbe04698", 16)
		if v.(*big.Int).Cmp(want) != 0 {
			t.Errorf("Expected %x, got %x", want, v)
		}
		if len(rest) != 1 {
			t.Errorf("Expected one felt left, got %d", len(rest))
		}
	})

	t.Run("bool outputs", func(t *testing.T) {
		fn, _ := a.Function("draw")
		out, err := a.DecodeOutputs(fn, felts("0x1"))
		if err != nil {
			t.Fatal(err)
		}
		if out[0] != true {
			t.Errorf("Expected true, got %v", out[0])
		}
		if _, err := a.DecodeOutputs(fn, felts("0x2")); !errors.Is(err, ErrValueOutOfRange) {
			t.Errorf("Expected ErrValueOutOfRange for bool 2, got %v", err)
		}
	})

	t.Run("eth address", func(t *testing.T) {
		v, _, err := a.Decode(TypeEthAddress, felts("0xe05fcc23807536bee418f142d19fa0d21bb0cff7"))
		if err != nil {
			t.Fatal(err)
		}
		if v.(common.Address) != common.HexToAddress("0xe05fcC23807536bEe418f142D19fa0d21BB0cfF7") {
			t.Errorf("Expected attestor address, got %v", v)
		}
	})

	t.Run("array", func(t *testing.T) {
		v, _, err := a.Decode("core::array::Array::<core::felt252>", felts("0x2", "0xa", "0xb"))
		if err != nil {
			t.Fatal(err)
		}
		items := v.([]any)
		if len(items) != 2 || FeltHex(items[1].(*felt.Felt)) != "0xb" {
			t.Errorf("Expected [0xa 0xb], got %v", items)
		}
	})

	t.Run("short data", func(t *testing.T) {
		cases := []struct {
			typ  string
			data []*felt.Felt
		}{
			{TypeU256, felts("0x1")},
			{TypeByteArray, felts("0x1", "0x0")},
			{"core::array::Array::<core::felt252>", felts("0x3", "0x1")},
		}
		for _, c := range cases {
			if _, _, err := a.Decode(c.typ, c.data); !errors.Is(err, ErrShortData) {
				t.Errorf("Expected ErrShortData for %s, got %v", c.typ, err)
			}
		}
	})

	t.Run("malformed byte array", func(t *testing.T) {
		if _, _, err := a.Decode(TypeByteArray, felts("0x0", "0x75726c", "0x1f")); err == nil {
			t.Error("Expected error for pending length 31")
		}
		if _, _, err := a.Decode(TypeByteArray, felts("0x0", "0x75726c", "0x1")); err == nil {
			t.Error("Expected error for a pending word longer than its length")
		}
	})
}

func TestSplitHelpers(t *testing.T) {
	base, params, ok := splitGeneric("core::array::Array::<(core::felt252, core::array::Span::<core::integer::u8>)>")
	if !ok || base != genericArray {
		t.Fatalf("Expected Array generic, got %q %v", base, ok)
	}
	if len(params) != 1 {
		t.Fatalf("Expected one parameter, got %v", params)
	}
	elems, ok := splitTuple(params[0])
	if !ok || len(elems) != 2 || elems[1] != "core::array::Span::<core::integer::u8>" {
		t.Errorf("Expected two tuple elements, got %v", elems)
	}
	if _, ok := splitTuple(TypeUnit); ok {
		t.Error("Expected unit not to be a tuple")
	}
}
