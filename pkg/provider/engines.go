package provider

import (
	"log/slog"
	"net/http"
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/pflag"

	"github.com/thoreinstein/strata/pkg/store"
	"github.com/thoreinstein/strata/pkg/store/argv"
	"github.com/thoreinstein/strata/pkg/store/dir"
	"github.com/thoreinstein/strata/pkg/store/env"
	"github.com/thoreinstein/strata/pkg/store/etcd"
	"github.com/thoreinstein/strata/pkg/store/file"
	"github.com/thoreinstein/strata/pkg/store/httpstore"
	"github.com/thoreinstein/strata/pkg/store/viperstore"
)

// Engine builds a store named name from its decoded options.
type Engine func(name string, opts map[string]any) (store.Store, error)

// Engines maps a backend type name to its constructor.
type Engines map[string]Engine

// Types returns the registered type names.
func (e Engines) Types() []string {
	types := make([]string, 0, len(e))
	for t := range e {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}

// Deps carries the process-level dependencies engines may need.
type Deps struct {
	Logger     *slog.Logger
	HTTPClient *http.Client

	// Environ replaces os.Environ for env stores.
	Environ func() []string

	// Args replaces os.Args[1:] for argv stores without an "args" option.
	Args []string

	// Flags, when set, backs argv stores instead of Args.
	Flags *pflag.FlagSet
}

// DefaultEngines returns constructors for every built-in backend.
func DefaultEngines(deps Deps) Engines {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return Engines{
		"memory": func(name string, opts map[string]any) (store.Store, error) {
			var o struct {
				Root map[string]any `mapstructure:"root"`
			}
			if err := decode(opts, &o); err != nil {
				return nil, err
			}
			return store.NewMemory(name, store.WithRoot(o.Root)), nil
		},

		// literal treats its whole option map as the tree.
		"literal": func(name string, opts map[string]any) (store.Store, error) {
			return store.NewMemory(name, store.WithRoot(opts)), nil
		},

		"file": func(name string, opts map[string]any) (store.Store, error) {
			var o file.Options
			if err := decode(opts, &o); err != nil {
				return nil, err
			}
			return file.New(name, o)
		},

		"dir": func(name string, opts map[string]any) (store.Store, error) {
			var o dir.Options
			if err := decode(opts, &o); err != nil {
				return nil, err
			}
			return dir.New(name, o)
		},

		"http": func(name string, opts map[string]any) (store.Store, error) {
			var o httpstore.Options
			if err := decode(opts, &o); err != nil {
				return nil, err
			}
			o.Client = deps.HTTPClient
			o.Logger = logger
			return httpstore.New(name, o)
		},

		"etcd": func(name string, opts map[string]any) (store.Store, error) {
			var o etcd.Options
			if err := decode(opts, &o); err != nil {
				return nil, err
			}
			o.Logger = logger
			return etcd.New(name, o), nil
		},

		"env": func(name string, opts map[string]any) (store.Store, error) {
			var o env.Options
			if err := decode(opts, &o); err != nil {
				return nil, err
			}
			o.Environ = deps.Environ
			return env.New(name, o), nil
		},

		"argv": func(name string, opts map[string]any) (store.Store, error) {
			var o argv.Options
			if err := decode(opts, &o); err != nil {
				return nil, err
			}
			if o.Args == nil {
				o.Args = deps.Args
				o.Flags = deps.Flags
			}
			return argv.New(name, o), nil
		},

		"viper": func(name string, opts map[string]any) (store.Store, error) {
			var o viperstore.Options
			if err := decode(opts, &o); err != nil {
				return nil, err
			}
			return viperstore.New(name, o)
		},
	}
}

// decode converts loosely typed options into out. Unknown keys are errors
// so a misspelled option does not silently fall back to a default.
func decode(opts map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return errors.Wrap(err, "creating options decoder")
	}
	if err := dec.Decode(opts); err != nil {
		return errors.Wrap(err, "decoding store options")
	}
	return nil
}
