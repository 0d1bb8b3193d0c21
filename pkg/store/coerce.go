package store

import (
	"strings"

	"github.com/spf13/cast"
)

// Coerce converts a string from the environment or the command line into
// the scalar it spells: true, false, null, a decimal integer or a float.
// Anything else, including numbers written with leading zeros, stays a
// string.
func Coerce(s string) any {
	switch s {
	case "true", "false":
		return cast.ToBool(s)
	case "null":
		return nil
	case "":
		return s
	}

	if n, err := cast.ToInt64E(s); err == nil && cast.ToString(n) == s {
		if int64(int(n)) == n {
			return int(n)
		}
		return n
	}
	if strings.ContainsAny(s, ".eE") && !strings.ContainsAny(s, " \t") {
		if f, err := cast.ToFloat64E(s); err == nil {
			return f
		}
	}
	return s
}
