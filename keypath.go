package settings

import (
	"fmt"
	"strings"
)

// Separator splits a raw key address into path segments.
const Separator = "/"

// Path is the resolved form of a key address: an ordered sequence of
// non-empty segments. Segments compare byte for byte, no case folding or
// whitespace normalization.
type Path []string

// ParsePath resolves a raw key address. It fails with ErrMalformedPath when
// the input is empty, begins or ends with the separator, or contains an
// empty segment (a doubled separator).
func ParsePath(raw string) (Path, error) {
	if raw == "" {
		return nil, fmt.Errorf("%w: empty key", ErrMalformedPath)
	}
	segments := strings.Split(raw, Separator)
	for _, segment := range segments {
		if segment == "" {
			return nil, fmt.Errorf("%w: %q", ErrMalformedPath, raw)
		}
	}
	return Path(segments), nil
}

// JoinPath concatenates a group scope with a relative address.
func JoinPath(base Path, relative string) (Path, error) {
	rel, err := ParsePath(relative)
	if err != nil {
		return nil, err
	}
	if len(base) == 0 {
		return rel, nil
	}
	joined := make(Path, 0, len(base)+len(rel))
	joined = append(joined, base...)
	joined = append(joined, rel...)
	return joined, nil
}

// String renders the path in its raw separator-joined form.
func (p Path) String() string {
	return strings.Join(p, Separator)
}

// Equal reports whether both paths hold the same segment sequence.
func (p Path) Equal(other Path) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

// HasPrefix reports whether prefix is an ancestor of p or equal to it.
func (p Path) HasPrefix(prefix Path) bool {
	if len(prefix) > len(p) {
		return false
	}
	for i := range prefix {
		if p[i] != prefix[i] {
			return false
		}
	}
	return true
}

// Parent returns the path one level up, or nil for a top-level path.
func (p Path) Parent() Path {
	if len(p) <= 1 {
		return nil
	}
	return p[:len(p)-1].Clone()
}

// Leaf returns the final segment, or "" for an empty path.
func (p Path) Leaf() string {
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1]
}

// Clone returns a copy detached from the original backing array.
func (p Path) Clone() Path {
	if p == nil {
		return nil
	}
	out := make(Path, len(p))
	copy(out, p)
	return out
}
