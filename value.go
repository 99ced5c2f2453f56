package settings

import (
	"fmt"
	"math"
	"sort"
)

// Kind tags the semantic type of a stored value. Tags are always persisted
// alongside the encoded text; nothing is ever inferred from value shape.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindList
	KindMap
)

var kindNames = map[Kind]string{
	KindBool:   "bool",
	KindInt:    "int",
	KindFloat:  "float",
	KindString: "str",
	KindList:   "list",
	KindMap:    "map",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "invalid"
}

// ParseKind resolves the persisted tag name back into a Kind.
func ParseKind(name string) (Kind, error) {
	for kind, known := range kindNames {
		if known == name {
			return kind, nil
		}
	}
	return KindInvalid, fmt.Errorf("%w: unknown kind %q", ErrCorruptStore, name)
}

// MarshalText encodes the kind as its tag name, so text formats persist
// "int" rather than an enum ordinal.
func (k Kind) MarshalText() ([]byte, error) {
	name, ok := kindNames[k]
	if !ok {
		return nil, fmt.Errorf("cannot encode kind %d", uint8(k))
	}
	return []byte(name), nil
}

// UnmarshalText decodes a persisted tag name.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Value is a tagged union over the six supported kinds. Values are immutable:
// constructors copy container contents and accessors return fresh copies, so
// a Value can be shared freely across trees and snapshots.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	list []Value
	m    map[string]Value
}

// Bool wraps a boolean.
func Bool(v bool) Value {
	return Value{kind: KindBool, b: v}
}

// Int wraps a signed integer.
func Int(v int64) Value {
	return Value{kind: KindInt, i: v}
}

// Float wraps a floating point number.
func Float(v float64) Value {
	return Value{kind: KindFloat, f: v}
}

// String wraps a text value.
func String(v string) Value {
	return Value{kind: KindString, s: v}
}

// List wraps an ordered sequence. The items are copied.
func List(items ...Value) Value {
	copied := make([]Value, len(items))
	copy(copied, items)
	return Value{kind: KindList, list: copied}
}

// Map wraps a mapping of text keys to values. The entries are copied.
func Map(entries map[string]Value) Value {
	copied := make(map[string]Value, len(entries))
	for key, item := range entries {
		copied[key] = item
	}
	return Value{kind: KindMap, m: copied}
}

// Kind returns the tag carried by the value.
func (v Value) Kind() Kind {
	return v.kind
}

// IsZero reports whether the value carries no tag at all.
func (v Value) IsZero() bool {
	return v.kind == KindInvalid
}

// AsBool unwraps a boolean, failing with ErrTypeMismatch for any other kind.
func (v Value) AsBool() (bool, error) {
	if v.kind != KindBool {
		return false, mismatch(v.kind, KindBool)
	}
	return v.b, nil
}

// AsInt unwraps an integer.
func (v Value) AsInt() (int64, error) {
	if v.kind != KindInt {
		return 0, mismatch(v.kind, KindInt)
	}
	return v.i, nil
}

// AsFloat unwraps a float.
func (v Value) AsFloat() (float64, error) {
	if v.kind != KindFloat {
		return 0, mismatch(v.kind, KindFloat)
	}
	return v.f, nil
}

// AsString unwraps a text value.
func (v Value) AsString() (string, error) {
	if v.kind != KindString {
		return "", mismatch(v.kind, KindString)
	}
	return v.s, nil
}

// AsList unwraps an ordered sequence. The returned slice is a copy.
func (v Value) AsList() ([]Value, error) {
	if v.kind != KindList {
		return nil, mismatch(v.kind, KindList)
	}
	out := make([]Value, len(v.list))
	copy(out, v.list)
	return out, nil
}

// AsMap unwraps a mapping. The returned map is a copy.
func (v Value) AsMap() (map[string]Value, error) {
	if v.kind != KindMap {
		return nil, mismatch(v.kind, KindMap)
	}
	out := make(map[string]Value, len(v.m))
	for key, item := range v.m {
		out[key] = item
	}
	return out, nil
}

func mismatch(stored, requested Kind) error {
	return fmt.Errorf("%w: stored %s, requested %s", ErrTypeMismatch, stored, requested)
}

// Equal reports semantic equality. Floats compare by bit pattern so NaN
// values and signed zeros survive a persistence round trip intact.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindBool:
		return v.b == other.b
	case KindInt:
		return v.i == other.i
	case KindFloat:
		return math.Float64bits(v.f) == math.Float64bits(other.f)
	case KindString:
		return v.s == other.s
	case KindList:
		if len(v.list) != len(other.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(other.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.m) != len(other.m) {
			return false
		}
		for key, item := range v.m {
			peer, ok := other.m[key]
			if !ok || !item.Equal(peer) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// Native unwraps the value into plain Go data: bool, int64, float64, string,
// []any, or map[string]any. Containers are unwrapped recursively.
func (v Value) Native() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	case KindList:
		out := make([]any, len(v.list))
		for i, item := range v.list {
			out[i] = item.Native()
		}
		return out
	case KindMap:
		out := make(map[string]any, len(v.m))
		for key, item := range v.m {
			out[key] = item.Native()
		}
		return out
	default:
		return nil
	}
}

// FromNative wraps plain Go data in a tagged Value. Integers of any width
// map to KindInt, float32/float64 to KindFloat, slices to KindList, and
// string-keyed maps to KindMap. A Value passes through unchanged.
func FromNative(value any) (Value, error) {
	switch typed := value.(type) {
	case Value:
		return typed, nil
	case bool:
		return Bool(typed), nil
	case int:
		return Int(int64(typed)), nil
	case int8:
		return Int(int64(typed)), nil
	case int16:
		return Int(int64(typed)), nil
	case int32:
		return Int(int64(typed)), nil
	case int64:
		return Int(typed), nil
	case uint:
		return Int(int64(typed)), nil
	case uint8:
		return Int(int64(typed)), nil
	case uint16:
		return Int(int64(typed)), nil
	case uint32:
		return Int(int64(typed)), nil
	case uint64:
		if typed > math.MaxInt64 {
			return Value{}, fmt.Errorf("%w: %d overflows integer range", ErrTypeMismatch, typed)
		}
		return Int(int64(typed)), nil
	case float32:
		return Float(float64(typed)), nil
	case float64:
		return Float(typed), nil
	case string:
		return String(typed), nil
	case []Value:
		return List(typed...), nil
	case map[string]Value:
		return Map(typed), nil
	case []any:
		items := make([]Value, len(typed))
		for i, raw := range typed {
			item, err := FromNative(raw)
			if err != nil {
				return Value{}, err
			}
			items[i] = item
		}
		return List(items...), nil
	case []string:
		items := make([]Value, len(typed))
		for i, raw := range typed {
			items[i] = String(raw)
		}
		return List(items...), nil
	case map[string]any:
		entries := make(map[string]Value, len(typed))
		for key, raw := range typed {
			item, err := FromNative(raw)
			if err != nil {
				return Value{}, err
			}
			entries[key] = item
		}
		return Map(entries), nil
	case nil:
		return Value{}, fmt.Errorf("%w: nil value", ErrTypeMismatch)
	default:
		return Value{}, fmt.Errorf("%w: unsupported value type %T", ErrTypeMismatch, value)
	}
}

// Coerce converts a rule or binding result into the declared kind. Numeric
// results convert between int and float when the conversion is exact; every
// other cross-kind pairing fails with ErrTypeMismatch.
func Coerce(value any, kind Kind) (Value, error) {
	wrapped, err := FromNative(value)
	if err != nil {
		return Value{}, err
	}
	if wrapped.kind == kind {
		return wrapped, nil
	}
	switch {
	case wrapped.kind == KindInt && kind == KindFloat:
		return Float(float64(wrapped.i)), nil
	case wrapped.kind == KindFloat && kind == KindInt:
		if wrapped.f == math.Trunc(wrapped.f) && !math.IsInf(wrapped.f, 0) {
			return Int(int64(wrapped.f)), nil
		}
		return Value{}, fmt.Errorf("%w: %v is not an integer", ErrTypeMismatch, wrapped.f)
	default:
		return Value{}, mismatch(wrapped.kind, kind)
	}
}

// sortedKeys returns map keys in deterministic order for encoding and walks.
func sortedKeys(m map[string]Value) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
