// Package keypath turns delimited key strings into path segments.
//
// A key such as "database:primary:host" addresses a nested value. The
// delimiter can be escaped with a backslash ("a\\:b" is the single segment
// "a:b") and each segment is percent-decoded, so "a%3Ab" is also "a:b".
//
// The nil Path addresses the root of a tree. The empty string is not the
// root: it addresses the key "".
package keypath

import (
	"net/url"
	"strings"

	"github.com/cockroachdb/errors"
)

// Path is an ordered list of unescaped, decoded segments.
type Path []string

// Root addresses the whole tree.
var Root Path

// ErrInvalidKey indicates a key of an unsupported type was supplied.
var ErrInvalidKey = errors.New("invalid key")

// Addressor splits keys on a single delimiter rune.
type Addressor struct {
	Delimiter rune
}

var (
	// Default is the addressor used by general stores.
	Default = Addressor{Delimiter: ':'}

	// URL is the addressor used by stores whose keys are URL paths.
	URL = Addressor{Delimiter: '/'}
)

// Parse splits s into a Path.
//
// A delimiter immediately preceded by a backslash is kept as part of the
// current segment. Every segment is then percent-decoded and stripped of
// backslashes. A trailing delimiter produces a final empty segment.
func (a Addressor) Parse(s string) Path {
	delim := a.delimiter()
	parts := make(Path, 0, strings.Count(s, string(delim))+1)

	offset := 0
	for i, r := range s {
		if r != delim {
			continue
		}
		if i > 0 && s[i-1] == '\\' {
			continue
		}
		parts = append(parts, decodeSegment(s[offset:i]))
		offset = i + len(string(delim))
	}
	parts = append(parts, decodeSegment(s[offset:]))

	return parts
}

// Resolve converts a caller-supplied key into a Path.
//
// nil resolves to Root, a Path or []string is returned unchanged and a
// string is parsed. Any other type yields ErrInvalidKey.
func (a Addressor) Resolve(input any) (Path, error) {
	switch v := input.(type) {
	case nil:
		return Root, nil
	case Path:
		return v, nil
	case []string:
		return Path(v), nil
	case string:
		return a.Parse(v), nil
	default:
		return nil, errors.Wrapf(ErrInvalidKey, "unsupported key type %T", input)
	}
}

// Format renders p using the addressor's delimiter. Delimiters inside a
// segment are backslash-escaped and '%' is percent-encoded so the result
// parses back to p. Backslashes never survive parsing, so segments that
// contain one do not round-trip.
func (a Addressor) Format(p Path) string {
	delim := string(a.delimiter())
	escaped := make([]string, len(p))
	for i, seg := range p {
		seg = strings.ReplaceAll(seg, "%", "%25")
		escaped[i] = strings.ReplaceAll(seg, delim, `\`+delim)
	}
	return strings.Join(escaped, delim)
}

func (a Addressor) delimiter() rune {
	if a.Delimiter == 0 {
		return Default.Delimiter
	}
	return a.Delimiter
}

// decodeSegment percent-decodes raw and removes escape markers. Segments
// that are not valid percent-encodings are kept verbatim.
func decodeSegment(raw string) string {
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		decoded = raw
	}
	return strings.ReplaceAll(decoded, `\`, "")
}

// Parse splits s using the default ':' addressor.
func Parse(s string) Path {
	return Default.Parse(s)
}

// Resolve converts input using the default ':' addressor.
func Resolve(input any) (Path, error) {
	return Default.Resolve(input)
}

// IsRoot reports whether p addresses the root.
func (p Path) IsRoot() bool {
	return len(p) == 0
}

// Parent returns p without its last segment.
func (p Path) Parent() Path {
	if len(p) == 0 {
		return Root
	}
	return p[:len(p)-1:len(p)-1]
}

// Last returns the final segment, or "" for the root.
func (p Path) Last() string {
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1]
}

// String renders p with the default delimiter.
func (p Path) String() string {
	return Default.Format(p)
}

// Join returns a new Path made of p followed by segments.
func Join(p Path, segments ...string) Path {
	out := make(Path, 0, len(p)+len(segments))
	out = append(out, p...)
	return append(out, segments...)
}
