// Package codec converts configuration trees to and from their serialized
// forms.
//
// Formats are looked up by name ("json", "yaml", "toml", "ini") or by file
// extension. Decoded values are normalized with tree.Clone, so every format
// produces map[string]any mappings and []any sequences.
package codec

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/thoreinstein/strata/pkg/store"
	"github.com/thoreinstein/strata/pkg/tree"
)

// ErrUnknownFormat is returned when no format matches a name or extension.
var ErrUnknownFormat = errors.New("unknown format")

// Format is a serialization codec.
type Format struct {
	Name       string
	Extensions []string

	Marshal   func(v any) ([]byte, error)
	Unmarshal func(data []byte) (any, error)
}

var formats = map[string]Format{}

func register(f Format) {
	formats[f.Name] = f
}

func init() {
	register(JSON)
	register(YAML)
	register(TOML)
	register(INI)
}

// Lookup returns the format registered under name.
func Lookup(name string) (Format, error) {
	f, ok := formats[strings.ToLower(name)]
	if !ok {
		return Format{}, errors.Wrapf(ErrUnknownFormat, "%q", name)
	}
	return f, nil
}

// ForPath returns the format matching the extension of path.
func ForPath(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	for _, name := range Names() {
		f := formats[name]
		for _, e := range f.Extensions {
			if e == ext {
				return f, nil
			}
		}
	}
	return Format{}, errors.Wrapf(ErrUnknownFormat, "extension %q of %s", ext, path)
}

// Names returns the registered format names in sorted order.
func Names() []string {
	names := make([]string, 0, len(formats))
	for name := range formats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Extensions returns every registered extension.
func Extensions() []string {
	var exts []string
	for _, name := range Names() {
		exts = append(exts, formats[name].Extensions...)
	}
	return exts
}

// Decode unmarshals data read from source. Empty input decodes to an empty
// mapping. Failures are reported as *store.ParseError.
func (f Format) Decode(source string, data []byte) (any, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return map[string]any{}, nil
	}
	v, err := f.Unmarshal(data)
	if err != nil {
		return nil, &store.ParseError{Source: source, Format: f.Name, Err: err}
	}
	return tree.Clone(v), nil
}

// Encode marshals v.
func (f Format) Encode(v any) ([]byte, error) {
	data, err := f.Marshal(v)
	if err != nil {
		return nil, errors.Wrapf(err, "encoding %s", f.Name)
	}
	return data, nil
}
