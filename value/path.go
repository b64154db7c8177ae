package value

import (
	"strconv"
	"strings"
)

// Segment addresses one step of a Path: either an object key or an array
// index. Keys are held as plain Go strings; Key does not intern them
// through a Pool.
type Segment struct {
	Key     string
	Index   int
	IsIndex bool
}

// Key builds an object-key segment.
func Key(k string) Segment { return Segment{Key: k} }

// Idx builds an array-index segment.
func Idx(i int) Segment { return Segment{Index: i, IsIndex: true} }

func (s Segment) String() string {
	if s.IsIndex {
		return strconv.Itoa(s.Index)
	}
	return s.Key
}

// Path is an ordered sequence of Segments. The empty Path addresses the
// document root.
type Path []Segment

// Root is the empty path.
func Root() Path { return nil }

// Child returns a new Path with seg appended.
func (p Path) Child(seg Segment) Path {
	out := make(Path, len(p)+1)
	copy(out, p)
	out[len(p)] = seg
	return out
}

// Parent returns the path with its last segment removed, and the removed
// segment, or false if p is already the root.
func (p Path) Parent() (Path, Segment, bool) {
	if len(p) == 0 {
		return nil, Segment{}, false
	}
	return p[:len(p)-1], p[len(p)-1], true
}

// String renders the path using JSON Pointer syntax (§6.2).
func (p Path) String() string {
	if len(p) == 0 {
		return ""
	}
	var b strings.Builder
	for _, seg := range p {
		b.WriteByte('/')
		if seg.IsIndex {
			b.WriteString(strconv.Itoa(seg.Index))
			continue
		}
		b.WriteString(escapeToken(seg.Key))
	}
	return b.String()
}

func escapeToken(tok string) string {
	if !strings.ContainsAny(tok, "~/") {
		return tok
	}
	tok = strings.ReplaceAll(tok, "~", "~0")
	tok = strings.ReplaceAll(tok, "/", "~1")
	return tok
}

func unescapeToken(tok string) string {
	if !strings.Contains(tok, "~") {
		return tok
	}
	tok = strings.ReplaceAll(tok, "~1", "/")
	tok = strings.ReplaceAll(tok, "~0", "~")
	return tok
}

// ParsePath parses an RFC 6901 JSON Pointer into a Path. "-" (the array
// append position) is kept as an index segment with Index == -1.
func ParsePath(pointer string) (Path, error) {
	if pointer == "" {
		return Root(), nil
	}
	if pointer[0] != '/' {
		return nil, &PathSyntaxError{Pointer: pointer, Reason: "must start with '/'"}
	}
	tokens := strings.Split(pointer[1:], "/")
	path := make(Path, 0, len(tokens))
	for _, raw := range tokens {
		tok := unescapeToken(raw)
		if tok == "-" {
			path = append(path, Segment{Index: -1, IsIndex: true})
			continue
		}
		if n, err := strconv.Atoi(tok); err == nil && n >= 0 && strconv.Itoa(n) == tok {
			path = append(path, Idx(n))
			continue
		}
		path = append(path, Key(tok))
	}
	return path, nil
}

// PathSyntaxError reports a malformed JSON Pointer.
type PathSyntaxError struct {
	Pointer string
	Reason  string
}

func (e *PathSyntaxError) Error() string {
	return "value: invalid path " + strconv.Quote(e.Pointer) + ": " + e.Reason
}

// Compare gives Path a total lexicographic order over segment tuples
// (§3: "Paths are total orderable by segment tuple"). Shorter paths that are
// a prefix of a longer one sort first. Within a segment, index ordering
// compares numerically and a key segment always sorts after an index
// segment at the same position (arbitrary but deterministic and stable).
func Compare(a, b Path) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := compareSegment(a[i], b[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

func compareSegment(a, b Segment) int {
	if a.IsIndex && b.IsIndex {
		switch {
		case a.Index < b.Index:
			return -1
		case a.Index > b.Index:
			return 1
		default:
			return 0
		}
	}
	if a.IsIndex != b.IsIndex {
		if a.IsIndex {
			return -1
		}
		return 1
	}
	switch {
	case a.Key < b.Key:
		return -1
	case a.Key > b.Key:
		return 1
	default:
		return 0
	}
}

// PathEqual reports whether two paths address the same location.
func PathEqual(a, b Path) bool { return Compare(a, b) == 0 }

// HasPrefix reports whether p starts with prefix.
func (p Path) HasPrefix(prefix Path) bool {
	if len(prefix) > len(p) {
		return false
	}
	for i := range prefix {
		if compareSegment(p[i], prefix[i]) != 0 {
			return false
		}
	}
	return true
}
