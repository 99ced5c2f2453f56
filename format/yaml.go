package format

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"

	settings "github.com/goliatone/go-settings"
)

// yamlSnapshot mirrors Snapshot with kinds spelled out by name, since
// yaml.v3 does not consult TextUnmarshaler on decode.
type yamlSnapshot struct {
	ID      string       `yaml:"id,omitempty"`
	Records []yamlRecord `yaml:"records"`
}

type yamlRecord struct {
	Path  string `yaml:"path"`
	Kind  string `yaml:"kind"`
	Value string `yaml:"value"`
}

// NewYAMLCodec returns a snapshot codec producing YAML.
func NewYAMLCodec() settings.SnapshotCodec {
	return yamlCodec{}
}

type yamlCodec struct{}

func (yamlCodec) Encode(snap settings.Snapshot) ([]byte, error) {
	doc := yamlSnapshot{ID: snap.ID}
	for _, rec := range snap.Records {
		doc.Records = append(doc.Records, yamlRecord{
			Path:  rec.Path,
			Kind:  rec.Kind.String(),
			Value: rec.Text,
		})
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("format: encoding snapshot: %w", err)
	}
	return data, nil
}

func (yamlCodec) Decode(data []byte) (settings.Snapshot, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return settings.Snapshot{}, nil
	}
	var doc yamlSnapshot
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return settings.Snapshot{}, fmt.Errorf("%w: yaml: %v", settings.ErrCorruptStore, err)
	}
	snap := settings.Snapshot{ID: doc.ID}
	for _, rec := range doc.Records {
		kind, err := settings.ParseKind(rec.Kind)
		if err != nil {
			return settings.Snapshot{}, fmt.Errorf("%w: record %q: %v", settings.ErrCorruptStore, rec.Path, err)
		}
		snap.Records = append(snap.Records, settings.Record{
			Path: rec.Path,
			Kind: kind,
			Text: rec.Value,
		})
	}
	return snap, nil
}
