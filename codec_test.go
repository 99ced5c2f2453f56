package settings

import (
	"errors"
	"math"
	"testing"
)

func TestEncodeTextScalarForms(t *testing.T) {
	cases := []struct {
		name string
		v    Value
		want string
	}{
		{"true", Bool(true), "true"},
		{"false", Bool(false), "false"},
		{"int", Int(-42), "-42"},
		{"float", Float(2.5), "2.5"},
		{"floatExp", Float(1e21), "1e+21"},
		{"string", String("hello world"), "hello world"},
	}
	for _, tc := range cases {
		if got := encodeText(tc.v); got != tc.want {
			t.Fatalf("%s: expected %q, got %q", tc.name, tc.want, got)
		}
	}
}

func TestTextRoundTripPreservesValues(t *testing.T) {
	values := []Value{
		Bool(true),
		Int(math.MaxInt64),
		Int(math.MinInt64),
		Float(0.1),
		Float(math.MaxFloat64),
		String(""),
		String("line\nbreak and = signs; [brackets]"),
		List(),
		List(Int(1), String("two"), Bool(false)),
		List(List(Float(1.5)), Map(map[string]Value{"deep": String("yes")})),
		Map(map[string]Value{}),
		Map(map[string]Value{"a": Int(1), "b": List(String("x"))}),
	}
	for i, v := range values {
		text := encodeText(v)
		back, err := decodeText(v.Kind(), text)
		if err != nil {
			t.Fatalf("value %d: unexpected decode error: %v", i, err)
		}
		if !v.Equal(back) {
			t.Fatalf("value %d: round trip mismatch, encoded %q", i, text)
		}
	}
}

func TestTextRoundTripKeepsFloatBits(t *testing.T) {
	for _, f := range []float64{math.NaN(), math.Inf(1), math.Inf(-1), math.Copysign(0, -1)} {
		text := encodeText(Float(f))
		back, err := decodeText(KindFloat, text)
		if err != nil {
			t.Fatalf("decode %q: %v", text, err)
		}
		if !Float(f).Equal(back) {
			t.Fatalf("expected bit-exact float round trip for %q", text)
		}
	}
}

func TestDecodeTextRejectsCorruptInput(t *testing.T) {
	cases := []struct {
		name string
		kind Kind
		text string
	}{
		{"badBool", KindBool, "maybe"},
		{"badInt", KindInt, "12.5"},
		{"badFloat", KindFloat, "wide"},
		{"badList", KindList, "{not json"},
		{"badMap", KindMap, "[]"},
		{"badMemberKind", KindList, `[{"k":"rune","v":"x"}]`},
		{"badMemberValue", KindList, `[{"k":"int","v":"NaN"}]`},
		{"invalidKind", KindInvalid, "anything"},
	}
	for _, tc := range cases {
		if _, err := decodeText(tc.kind, tc.text); !errors.Is(err, ErrCorruptStore) {
			t.Fatalf("%s: expected ErrCorruptStore, got %v", tc.name, err)
		}
	}
}

func TestRecordRoundTrip(t *testing.T) {
	path := Path{"editor", "font", "size"}
	rec := NewRecord(path, Int(14))
	if rec.Path != "editor/font/size" {
		t.Fatalf("expected joined path, got %q", rec.Path)
	}
	if rec.Kind != KindInt {
		t.Fatalf("expected int kind, got %s", rec.Kind)
	}
	v, err := rec.Value()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, _ := v.AsInt(); got != 14 {
		t.Fatalf("expected 14, got %d", got)
	}
}
