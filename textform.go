package settings

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const (
	textMagic    = "; go-settings v1"
	textIDPrefix = "; id:"
)

// textCodec is the default on-disk layout: a human-inspectable INI-flavored
// text file. Section headers carry full group paths, entries are
// `key = kind text`, strings are quoted, containers stay on one line as
// their JSON envelope. The whole file is rewritten on every flush.
type textCodec struct{}

// NewTextCodec returns the default text snapshot codec.
func NewTextCodec() SnapshotCodec {
	return textCodec{}
}

func (textCodec) Encode(snap Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(textMagic)
	buf.WriteByte('\n')
	if snap.ID != "" {
		fmt.Fprintf(&buf, "%s %s\n", textIDPrefix, snap.ID)
	}

	sections := map[string][]Record{}
	var order []string
	for _, rec := range snap.Records {
		section := ""
		key := rec.Path
		if idx := strings.LastIndex(rec.Path, Separator); idx >= 0 {
			section, key = rec.Path[:idx], rec.Path[idx+1:]
		}
		if _, seen := sections[section]; !seen {
			order = append(order, section)
		}
		sections[section] = append(sections[section], Record{Path: key, Kind: rec.Kind, Text: rec.Text})
	}
	// Root entries first, then sections in path order. An entry written
	// after a header would otherwise be claimed by that section on reload.
	sort.Strings(order)

	for _, section := range order {
		if section != "" {
			fmt.Fprintf(&buf, "[%s]\n", quoteTextSection(section))
		}
		for _, rec := range sections[section] {
			text := rec.Text
			if rec.Kind == KindString {
				text = strconv.Quote(text)
			}
			fmt.Fprintf(&buf, "%s = %s %s\n", quoteTextKey(rec.Path), rec.Kind, text)
		}
	}
	return buf.Bytes(), nil
}

func (textCodec) Decode(data []byte) (Snapshot, error) {
	snap := Snapshot{}
	section := ""
	for no, raw := range strings.Split(string(data), "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, ";") || strings.HasPrefix(line, "#") {
			if rest, ok := strings.CutPrefix(line, textIDPrefix); ok {
				snap.ID = strings.TrimSpace(rest)
			}
			continue
		}
		if strings.HasPrefix(line, "[") {
			name, err := parseTextSection(line)
			if err != nil {
				return Snapshot{}, fmt.Errorf("%w: line %d: %v", ErrCorruptStore, no+1, err)
			}
			section = name
			continue
		}
		rec, err := parseTextEntry(line)
		if err != nil {
			return Snapshot{}, fmt.Errorf("%w: line %d: %v", ErrCorruptStore, no+1, err)
		}
		if section != "" {
			rec.Path = section + Separator + rec.Path
		}
		snap.Records = append(snap.Records, rec)
	}
	return snap, nil
}

func parseTextSection(line string) (string, error) {
	end := strings.LastIndexByte(line, ']')
	if end < 0 {
		return "", fmt.Errorf("unterminated section %q", line)
	}
	name := strings.TrimSpace(line[1:end])
	if strings.HasPrefix(name, `"`) {
		unquoted, err := strconv.Unquote(name)
		if err != nil {
			return "", fmt.Errorf("bad section name %q", name)
		}
		name = unquoted
	}
	if name == "" {
		return "", fmt.Errorf("empty section name in %q", line)
	}
	return name, nil
}

func parseTextEntry(line string) (Record, error) {
	var key, rest string
	if strings.HasPrefix(line, `"`) {
		quoted, err := strconv.QuotedPrefix(line)
		if err != nil {
			return Record{}, fmt.Errorf("bad key in %q", line)
		}
		key, err = strconv.Unquote(quoted)
		if err != nil {
			return Record{}, fmt.Errorf("bad key in %q", line)
		}
		tail := strings.TrimSpace(line[len(quoted):])
		if !strings.HasPrefix(tail, "=") {
			return Record{}, fmt.Errorf("missing = in %q", line)
		}
		rest = strings.TrimSpace(tail[1:])
	} else {
		before, after, found := strings.Cut(line, "=")
		if !found {
			return Record{}, fmt.Errorf("missing = in %q", line)
		}
		key = strings.TrimSpace(before)
		rest = strings.TrimSpace(after)
	}
	if key == "" {
		return Record{}, fmt.Errorf("empty key in %q", line)
	}

	kindName, text, found := strings.Cut(rest, " ")
	if !found {
		return Record{}, fmt.Errorf("entry %q has no value", line)
	}
	kind, err := ParseKind(kindName)
	if err != nil {
		return Record{}, fmt.Errorf("unknown kind %q", kindName)
	}
	text = strings.TrimSpace(text)
	if kind == KindString {
		unquoted, err := strconv.Unquote(text)
		if err != nil {
			return Record{}, fmt.Errorf("bad string %s", text)
		}
		text = unquoted
	}
	return Record{Path: key, Kind: kind, Text: text}, nil
}

// quoteTextKey protects keys the line grammar would misread: embedded
// separators, comment markers, surrounding whitespace.
func quoteTextKey(key string) string {
	if key != strings.TrimSpace(key) || strings.ContainsAny(key, "=;#[\"\n\r") {
		return strconv.Quote(key)
	}
	return key
}

func quoteTextSection(name string) string {
	if name != strings.TrimSpace(name) || strings.HasPrefix(name, `"`) || strings.ContainsAny(name, "\n\r") {
		return strconv.Quote(name)
	}
	return name
}
