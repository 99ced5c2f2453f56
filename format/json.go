package format

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/tidwall/jsonc"

	settings "github.com/goliatone/go-settings"
)

// NewJSONCodec returns a snapshot codec producing indented JSON. Decoding
// is comment tolerant: // and /* */ comments and trailing commas are
// stripped first, so hand-annotated files keep loading.
func NewJSONCodec() settings.SnapshotCodec {
	return jsonCodec{}
}

type jsonCodec struct{}

func (jsonCodec) Encode(snap settings.Snapshot) ([]byte, error) {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("format: encoding snapshot: %w", err)
	}
	return append(data, '\n'), nil
}

func (jsonCodec) Decode(data []byte) (settings.Snapshot, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return settings.Snapshot{}, nil
	}
	var snap settings.Snapshot
	if err := json.Unmarshal(jsonc.ToJSON(data), &snap); err != nil {
		return settings.Snapshot{}, fmt.Errorf("%w: json: %v", settings.ErrCorruptStore, err)
	}
	return snap, nil
}
