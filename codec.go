package settings

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// textEnvelope is the serialized form of a container member: the member's
// kind tag plus its own encoded text. Containers nest by carrying envelopes
// inside envelopes, so one scalar codec covers arbitrary depth.
type textEnvelope struct {
	K string `json:"k"`
	V string `json:"v"`
}

// encodeText renders a value into its persisted text form. Scalars encode
// with strconv; lists and maps encode as a JSON envelope of tagged members.
// decodeText inverts encodeText exactly for every valid value.
func encodeText(v Value) string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindString:
		return v.s
	case KindList:
		members := make([]textEnvelope, len(v.list))
		for i, item := range v.list {
			members[i] = textEnvelope{K: item.kind.String(), V: encodeText(item)}
		}
		encoded, err := json.Marshal(members)
		if err != nil {
			return "[]"
		}
		return string(encoded)
	case KindMap:
		members := make(map[string]textEnvelope, len(v.m))
		for _, key := range sortedKeys(v.m) {
			item := v.m[key]
			members[key] = textEnvelope{K: item.kind.String(), V: encodeText(item)}
		}
		encoded, err := json.Marshal(members)
		if err != nil {
			return "{}"
		}
		return string(encoded)
	default:
		return ""
	}
}

// decodeText parses persisted text back into a tagged value. Failures wrap
// ErrCorruptStore because decode input always originates from a snapshot.
func decodeText(kind Kind, text string) (Value, error) {
	switch kind {
	case KindBool:
		parsed, err := strconv.ParseBool(text)
		if err != nil {
			return Value{}, fmt.Errorf("%w: bad bool %q", ErrCorruptStore, text)
		}
		return Bool(parsed), nil
	case KindInt:
		parsed, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("%w: bad int %q", ErrCorruptStore, text)
		}
		return Int(parsed), nil
	case KindFloat:
		parsed, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return Value{}, fmt.Errorf("%w: bad float %q", ErrCorruptStore, text)
		}
		return Float(parsed), nil
	case KindString:
		return String(text), nil
	case KindList:
		var members []textEnvelope
		if err := json.Unmarshal([]byte(text), &members); err != nil {
			return Value{}, fmt.Errorf("%w: bad list %q", ErrCorruptStore, text)
		}
		items := make([]Value, len(members))
		for i, member := range members {
			item, err := decodeEnvelope(member)
			if err != nil {
				return Value{}, err
			}
			items[i] = item
		}
		return List(items...), nil
	case KindMap:
		var members map[string]textEnvelope
		if err := json.Unmarshal([]byte(text), &members); err != nil {
			return Value{}, fmt.Errorf("%w: bad map %q", ErrCorruptStore, text)
		}
		entries := make(map[string]Value, len(members))
		for key, member := range members {
			item, err := decodeEnvelope(member)
			if err != nil {
				return Value{}, err
			}
			entries[key] = item
		}
		return Map(entries), nil
	default:
		return Value{}, fmt.Errorf("%w: undecodable kind %q", ErrCorruptStore, kind)
	}
}

func decodeEnvelope(member textEnvelope) (Value, error) {
	kind, err := ParseKind(member.K)
	if err != nil {
		return Value{}, err
	}
	return decodeText(kind, member.V)
}
