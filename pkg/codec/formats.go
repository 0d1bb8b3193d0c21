package codec

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cast"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

// JSON encodes with two-space indentation and a trailing newline.
var JSON = Format{
	Name:       "json",
	Extensions: []string{".json"},
	Marshal: func(v any) ([]byte, error) {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	},
	Unmarshal: func(data []byte) (any, error) {
		var v any
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		return v, nil
	},
}

// YAML uses gopkg.in/yaml.v3.
var YAML = Format{
	Name:       "yaml",
	Extensions: []string{".yaml", ".yml"},
	Marshal: func(v any) (data []byte, err error) {
		// yaml.Marshal panics on values it cannot represent
		defer func() {
			if r := recover(); r != nil {
				err = errors.Newf("marshaling YAML: %v", r)
			}
		}()
		return yaml.Marshal(v)
	},
	Unmarshal: func(data []byte) (any, error) {
		var v any
		if err := yaml.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		return v, nil
	},
}

// TOML uses pelletier/go-toml/v2. Only mappings can be encoded.
var TOML = Format{
	Name:       "toml",
	Extensions: []string{".toml"},
	Marshal: func(v any) ([]byte, error) {
		if _, ok := v.(map[string]any); !ok {
			return nil, errors.Newf("toml documents must be mappings, got %T", v)
		}
		return toml.Marshal(v)
	},
	Unmarshal: func(data []byte) (any, error) {
		var v map[string]any
		if err := toml.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		return v, nil
	},
}

// INI uses gopkg.in/ini.v1. Keys of the default section become top-level
// scalars; every other section becomes a mapping, with dotted section names
// nested. All decoded values are strings.
var INI = Format{
	Name:       "ini",
	Extensions: []string{".ini"},
	Marshal:    marshalINI,
	Unmarshal:  unmarshalINI,
}

func unmarshalINI(data []byte) (any, error) {
	f, err := ini.Load(data)
	if err != nil {
		return nil, err
	}

	out := map[string]any{}
	for _, section := range f.Sections() {
		target := out
		if section.Name() != ini.DefaultSection {
			for _, part := range strings.Split(section.Name(), ".") {
				next, ok := target[part].(map[string]any)
				if !ok {
					next = map[string]any{}
					target[part] = next
				}
				target = next
			}
		}
		for _, key := range section.Keys() {
			target[key.Name()] = key.Value()
		}
	}
	return out, nil
}

func marshalINI(v any) ([]byte, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, errors.Newf("ini documents must be mappings, got %T", v)
	}

	f := ini.Empty()
	if err := writeINISection(f, "", m); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeINISection(f *ini.File, name string, m map[string]any) error {
	section := f.Section(name)

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		switch val := m[k].(type) {
		case map[string]any:
			child := k
			if name != "" {
				child = name + "." + k
			}
			if err := writeINISection(f, child, val); err != nil {
				return err
			}
		case []any:
			parts := make([]string, len(val))
			for i, item := range val {
				parts[i] = cast.ToString(item)
			}
			if _, err := section.NewKey(k, strings.Join(parts, ",")); err != nil {
				return errors.Wrapf(err, "key %s", k)
			}
		default:
			if _, err := section.NewKey(k, cast.ToString(val)); err != nil {
				return errors.Wrapf(err, "key %s", k)
			}
		}
	}
	return nil
}
