package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cast"

	"github.com/thoreinstein/strata/internal/errors"
	"github.com/thoreinstein/strata/pkg/codec"
	"github.com/thoreinstein/strata/pkg/store"
	"github.com/thoreinstein/strata/pkg/tree"
)

// outputFormat returns the codec chosen by --output or the config file.
func outputFormat() (codec.Format, error) {
	name := outputFlag
	if name == "" && cfg != nil {
		name = cfg.Output
	}
	f, err := codec.Lookup(name)
	if err != nil {
		return codec.Format{}, errors.NewUserError(err, "Use one of: json, yaml, toml, ini")
	}
	return f, nil
}

// printValue writes scalars bare and encodes mappings and sequences with
// f. Formats that only encode mappings fall back to JSON for other values.
func printValue(w io.Writer, v any, f codec.Format) error {
	switch val := v.(type) {
	case nil:
		_, err := fmt.Fprintln(w, "null")
		return err
	case map[string]any, []any:
		if !tree.IsMergeable(val) && (f.Name == codec.TOML.Name || f.Name == codec.INI.Name) {
			f = codec.JSON
		}
		data, err := f.Encode(val)
		if err != nil {
			return errors.Wrapf(err, "encoding %s output", f.Name)
		}
		_, err = w.Write(data)
		return err
	default:
		_, err := fmt.Fprintln(w, cast.ToString(val))
		return err
	}
}

// parseValue reads a command-line value. JSON objects and arrays are
// decoded; scalars are coerced the way environment values are, so "8080"
// is a number and anything unparseable stays a string.
func parseValue(s string) (any, error) {
	trimmed := bytes.TrimSpace([]byte(s))
	if len(trimmed) == 0 || (trimmed[0] != '{' && trimmed[0] != '[') {
		return store.Coerce(s), nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidValue, "%s: %v", s, err)
	}
	if dec.More() {
		return nil, errors.Wrapf(errors.ErrInvalidValue, "%s: trailing data after JSON value", s)
	}
	return normalizeNumbers(v), nil
}

func normalizeNumbers(v any) any {
	switch val := v.(type) {
	case map[string]any:
		for k, child := range val {
			val[k] = normalizeNumbers(child)
		}
		return val
	case []any:
		for i, child := range val {
			val[i] = normalizeNumbers(child)
		}
		return val
	case json.Number:
		return store.Coerce(val.String())
	default:
		return v
	}
}
