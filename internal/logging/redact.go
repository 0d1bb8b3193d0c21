package logging

import (
	"net/url"
	"strings"
)

// secretKeyParts mark a configuration key or log attribute as sensitive.
// Matching is case-insensitive on any substring of the key.
var secretKeyParts = []string{
	"TOKEN",
	"SECRET",
	"PASSWORD",
	"PASSWD",
	"API_KEY",
	"APIKEY",
	"PRIVATE",
	"CREDENTIAL",
	"AUTH",
}

// tokenPrefixes identify well-known credentials by value alone.
var tokenPrefixes = []string{
	"ghp_", "gho_", "ghu_", "ghs_", "ghr_",
	"sk-",
	"AKIA",
	"xoxb-", "xoxp-", "xoxa-", "xoxr-",
}

// IsSecretKey reports whether key names a value that should not be printed.
func IsSecretKey(key string) bool {
	upper := strings.ToUpper(key)
	for _, part := range secretKeyParts {
		if strings.Contains(upper, part) {
			return true
		}
	}
	return false
}

// LooksLikeToken reports whether value starts with a known token prefix.
func LooksLikeToken(value string) bool {
	for _, prefix := range tokenPrefixes {
		if strings.HasPrefix(value, prefix) {
			return true
		}
	}
	return false
}

// Mask hides all but the last four characters of value.
func Mask(value string) string {
	if len(value) <= 4 {
		return "********"
	}
	return "****" + value[len(value)-4:]
}

// MaskURL hides the password of a URL with embedded credentials. Strings
// that do not parse are returned unchanged.
func MaskURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	pass, ok := u.User.Password()
	if !ok || pass == "" {
		return raw
	}
	u.User = url.UserPassword(u.User.Username(), Mask(pass))
	return u.String()
}

// Redact returns v with secrets masked, deciding by key and by value.
// Maps and slices are walked and copied; v itself is never modified.
func Redact(key string, v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			out[k] = Redact(k, child)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			out[i] = Redact(key, child)
		}
		return out
	case string:
		if IsSecretKey(key) || LooksLikeToken(val) {
			return Mask(val)
		}
		if strings.Contains(val, "://") {
			return MaskURL(val)
		}
		return val
	case nil:
		return nil
	default:
		if IsSecretKey(key) {
			return "********"
		}
		return v
	}
}
