// Package argv implements a store loaded from command-line arguments.
//
// Recognized forms are --key=value, --key value, --flag (true) and
// --no-flag (false). Keys are parsed with the store's addressor, so
// --db:host=x sets {"db": {"host": "x"}}. Repeating a key collects its
// values into a sequence. Arguments that are not options, and everything
// after a bare "--", are collected under "_". A negative number such as
// -1 is a value, not a short option.
package argv

import (
	"context"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cast"
	"github.com/spf13/pflag"

	"github.com/thoreinstein/strata/pkg/keypath"
	"github.com/thoreinstein/strata/pkg/store"
	"github.com/thoreinstein/strata/pkg/tree"
)

// PositionalKey holds arguments that are not options.
const PositionalKey = "_"

// Options configures an argument store.
type Options struct {
	// Args replaces os.Args[1:].
	Args []string `mapstructure:"args"`

	// ParseValues converts values that spell booleans, null or numbers.
	ParseValues bool `mapstructure:"parse_values"`

	// Addressor splits option names into paths. Defaults to ':'.
	Addressor keypath.Addressor `mapstructure:"-"`

	// Flags, when set, is read instead of Args. Only flags the user changed
	// are loaded.
	Flags *pflag.FlagSet `mapstructure:"-"`
}

// Store is an argument-backed store.
type Store struct {
	*store.Memory

	opts Options
}

var _ store.Store = (*Store)(nil)

// New returns an argument store. Nothing is parsed until Load.
func New(name string, opts Options) *Store {
	if opts.Args == nil && opts.Flags == nil && len(os.Args) > 1 {
		opts.Args = os.Args[1:]
	}
	return &Store{
		Memory: store.NewMemory(name),
		opts:   opts,
	}
}

// FromFlags returns a store over the changed flags of fs.
func FromFlags(name string, fs *pflag.FlagSet) *Store {
	return New(name, Options{Flags: fs})
}

// Load parses the arguments into the store.
func (s *Store) Load(_ context.Context) *store.Result {
	var root map[string]any
	if s.opts.Flags != nil {
		root = ParseFlags(s.opts.Flags, s.opts.Addressor)
	} else {
		root = Parse(s.opts.Args, s.opts)
	}

	s.Replace(root)
	snapshot := s.Snapshot()
	s.Emit(store.Event{Store: s.Name(), Tree: snapshot})
	return store.Resolved(snapshot, true)
}

// Parse builds a tree from args.
func Parse(args []string, opts Options) map[string]any {
	b := builder{root: map[string]any{}, addr: opts.Addressor, parse: opts.ParseValues}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if arg == "--" {
			for _, rest := range args[i+1:] {
				b.positional(rest)
			}
			break
		}

		name, ok := optionName(arg)
		if !ok {
			b.positional(arg)
			continue
		}

		if key, value, hasValue := strings.Cut(name, "="); hasValue {
			b.add(key, b.value(value))
			continue
		}
		if key, negated := strings.CutPrefix(name, "no-"); negated && key != "" {
			b.add(key, false)
			continue
		}
		if i+1 < len(args) {
			if _, next := optionName(args[i+1]); !next && args[i+1] != "--" {
				b.add(name, b.value(args[i+1]))
				i++
				continue
			}
		}
		b.add(name, true)
	}

	m, _ := b.root.(map[string]any)
	return m
}

// ParseFlags builds a tree from the flags of fs that were set on the
// command line.
func ParseFlags(fs *pflag.FlagSet, addr keypath.Addressor) map[string]any {
	b := builder{root: map[string]any{}, addr: addr}

	fs.Visit(func(f *pflag.Flag) {
		var v any
		switch f.Value.Type() {
		case "bool":
			v = cast.ToBool(f.Value.String())
		case "int", "int8", "int16", "int32", "int64":
			v = cast.ToInt(f.Value.String())
		case "uint", "uint8", "uint16", "uint32", "uint64":
			v = cast.ToUint(f.Value.String())
		case "float32", "float64":
			v = cast.ToFloat64(f.Value.String())
		default:
			if sv, ok := f.Value.(pflag.SliceValue); ok {
				items := make([]any, 0, len(sv.GetSlice()))
				for _, item := range sv.GetSlice() {
					items = append(items, item)
				}
				v = items
			} else {
				v = f.Value.String()
			}
		}
		b.root = tree.Set(b.addr.Parse(f.Name), b.root, v)
	})

	m, _ := b.root.(map[string]any)
	return m
}

type builder struct {
	root  any
	addr  keypath.Addressor
	parse bool
	args  []any
}

func (b *builder) value(s string) any {
	if b.parse {
		return store.Coerce(s)
	}
	return s
}

// add sets key, turning a repeated key into a sequence.
func (b *builder) add(key string, v any) {
	p := b.addr.Parse(key)
	if existing, found := tree.Get(p, b.root); found && !tree.IsMergeable(existing) {
		if seq, ok := existing.([]any); ok {
			v = append(slices.Clone(seq), v)
		} else {
			v = []any{existing, v}
		}
	}
	b.root = tree.Set(p, b.root, v)
}

func (b *builder) positional(arg string) {
	b.args = append(b.args, b.value(arg))
	b.root = tree.Set(keypath.Path{PositionalKey}, b.root, slices.Clone(b.args))
}

// optionName strips the leading dashes of an option. A lone "-" and
// negative numbers are positional arguments.
func optionName(arg string) (string, bool) {
	switch {
	case strings.HasPrefix(arg, "--") && len(arg) > 2:
		return arg[2:], true
	case isNegativeNumber(arg):
		return "", false
	case strings.HasPrefix(arg, "-") && len(arg) > 1 && arg != "--":
		return arg[1:], true
	default:
		return "", false
	}
}

func isNegativeNumber(arg string) bool {
	if len(arg) < 2 || arg[0] != '-' || !(arg[1] >= '0' && arg[1] <= '9' || arg[1] == '.') {
		return false
	}
	_, err := strconv.ParseFloat(arg, 64)
	return err == nil
}
