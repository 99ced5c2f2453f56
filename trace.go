package settings

import (
	"encoding/json"
)

// Trace captures provenance for one key lookup across every source the
// read cascade consults, strongest first.
type Trace struct {
	Path   string       `json:"path"`
	Layers []Provenance `json:"layers"`
}

// Provenance details how one source contributed to a traced path.
type Provenance struct {
	Source     string `json:"source"`
	SnapshotID string `json:"snapshot_id,omitempty"`
	Kind       string `json:"kind,omitempty"`
	Value      any    `json:"value,omitempty"`
	Found      bool   `json:"found"`
	Selected   bool   `json:"selected"`
}

// ToJSON serialises the trace for logs or diagnostic endpoints.
func (t Trace) ToJSON() ([]byte, error) {
	type alias Trace
	return json.Marshal(alias(t))
}

// TraceFromJSON rebuilds a trace from its ToJSON form.
func TraceFromJSON(payload []byte) (Trace, error) {
	type alias Trace
	var trace alias
	if err := json.Unmarshal(payload, &trace); err != nil {
		return Trace{}, err
	}
	return Trace(trace), nil
}

// Explain resolves key exactly like Get and reports where the answer came
// from: every source consulted, what each held, and which one won. The
// trace is returned even when the key resolves nowhere.
func (s *Settings) Explain(key string) (Value, Trace, error) {
	path, err := s.resolvePath("explain", key)
	if err != nil {
		return Value{}, Trace{}, err
	}
	joined := path.String()
	trace := Trace{Path: joined}

	var winner Value
	found := false
	record := func(source, snapshotID string, v Value, ok bool) {
		p := Provenance{Source: source, SnapshotID: snapshotID, Found: ok}
		if ok {
			p.Kind = v.Kind().String()
			p.Value = v.Native()
			if !found {
				p.Selected = true
				winner = v
				found = true
			}
		}
		trace.Layers = append(trace.Layers, p)
	}

	v, ok := s.store.Lookup(path)
	record("local", s.lastWriteID(), v, ok)
	for _, overlay := range s.overlays {
		ov, ok := overlay.store.Lookup(path)
		record("fallback/"+overlay.name, overlay.snapshotID, ov, ok)
	}
	if decl, declared := s.defaults.Lookup(joined); declared {
		dv, derr := s.resolveDeclared(decl)
		record("defaults", "", dv, derr == nil)
	}

	if !found {
		return Value{}, trace, wrapKeyError("explain", joined, ErrUnknownKey)
	}
	return winner, trace, nil
}
