// Package env implements a store loaded from environment variables.
//
// With Prefix "APP_" and the default separator, APP_DB__HOST=localhost is
// loaded as {"DB": {"HOST": "localhost"}}, or {"db": {"host": "localhost"}}
// when Lowercase is set.
package env

import (
	"context"
	"os"
	"slices"
	"sort"
	"strings"

	"github.com/thoreinstein/strata/pkg/keypath"
	"github.com/thoreinstein/strata/pkg/store"
	"github.com/thoreinstein/strata/pkg/tree"
)

// DefaultSeparator splits variable names into path segments.
const DefaultSeparator = "__"

// Options configures an environment store.
type Options struct {
	// Prefix selects variables whose name starts with it and is stripped
	// from the key.
	Prefix string `mapstructure:"prefix"`

	// Separator splits names into nested keys. Defaults to "__".
	Separator string `mapstructure:"separator"`

	Lowercase bool `mapstructure:"lowercase"`

	// ParseValues converts values that spell booleans, null or numbers.
	ParseValues bool `mapstructure:"parse_values"`

	// Whitelist, when non-empty, limits loading to the named variables.
	// Names are matched case-insensitively against the full variable name.
	Whitelist []string `mapstructure:"whitelist"`

	// Environ replaces os.Environ as the source of KEY=value pairs.
	Environ func() []string `mapstructure:"-"`
}

// Store is an environment-backed store. Its tree is rebuilt from the
// environment on every Load.
type Store struct {
	*store.Memory

	opts Options
}

var _ store.Store = (*Store)(nil)

// New returns an environment store. Nothing is read until Load.
func New(name string, opts Options) *Store {
	if opts.Separator == "" {
		opts.Separator = DefaultSeparator
	}
	if opts.Environ == nil {
		opts.Environ = os.Environ
	}
	return &Store{
		Memory: store.NewMemory(name),
		opts:   opts,
	}
}

// Load reads the environment into the store.
func (s *Store) Load(_ context.Context) *store.Result {
	s.Replace(Parse(s.opts.Environ(), s.opts))
	snapshot := s.Snapshot()
	s.Emit(store.Event{Store: s.Name(), Tree: snapshot})
	return store.Resolved(snapshot, true)
}

// Parse builds a tree from KEY=value pairs. Variables are applied in name
// order, so APP_DB=x is replaced by the mapping APP_DB__HOST creates.
func Parse(environ []string, opts Options) map[string]any {
	sep := opts.Separator
	if sep == "" {
		sep = DefaultSeparator
	}

	vars := slices.Clone(environ)
	sort.Strings(vars)

	var root any = map[string]any{}
	for _, kv := range vars {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || name == "" {
			continue
		}
		if !allowed(name, opts.Whitelist) {
			continue
		}
		if !strings.HasPrefix(name, opts.Prefix) {
			continue
		}

		p := path(strings.TrimPrefix(name, opts.Prefix), sep, opts.Lowercase)
		if p == nil {
			continue
		}

		var v any = value
		if opts.ParseValues {
			v = store.Coerce(value)
		}
		root = tree.Set(p, root, v)
	}

	m, _ := root.(map[string]any)
	return m
}

func path(name, sep string, lower bool) keypath.Path {
	if lower {
		name = strings.ToLower(name)
	}
	var p keypath.Path
	for _, seg := range strings.Split(name, sep) {
		if seg != "" {
			p = append(p, seg)
		}
	}
	return p
}

func allowed(name string, whitelist []string) bool {
	if len(whitelist) == 0 {
		return true
	}
	for _, w := range whitelist {
		if strings.EqualFold(w, name) {
			return true
		}
	}
	return false
}
