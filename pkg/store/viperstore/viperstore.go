// Package viperstore mirrors a viper configuration file as a store.
//
// Viper folds keys to lower case, so keys read through this store are
// lower case regardless of how the file spells them.
package viperstore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"

	"github.com/thoreinstein/strata/pkg/store"
)

// ErrMissingFile is returned when neither a file nor a viper instance is
// configured.
var ErrMissingFile = errors.New("missing required option `file`")

// Options configures a viper store.
type Options struct {
	// File is the configuration file read by Load and written by Save.
	File string `mapstructure:"file"`

	// Type overrides the config type viper infers from the extension.
	Type string `mapstructure:"type"`

	// Viper supplies a preconfigured instance. File, when also set, is
	// applied to it.
	Viper *viper.Viper `mapstructure:"-"`
}

// Store is a viper-backed store.
type Store struct {
	*store.Memory

	mu  sync.Mutex
	v   *viper.Viper
	typ string
}

var _ store.Store = (*Store)(nil)

// New returns a store over the file in opts. Nothing is read until Load.
func New(name string, opts Options) (*Store, error) {
	v := opts.Viper
	if v == nil {
		if opts.File == "" {
			return nil, ErrMissingFile
		}
		v = viper.New()
	}
	if opts.File != "" {
		v.SetConfigFile(opts.File)
	}
	typ := opts.Type
	if typ != "" {
		v.SetConfigType(typ)
	} else {
		typ = strings.TrimPrefix(filepath.Ext(v.ConfigFileUsed()), ".")
	}

	return &Store{
		Memory: store.NewMemory(name),
		v:      v,
		typ:    typ,
	}, nil
}

// Viper returns the underlying instance.
func (s *Store) Viper() *viper.Viper { return s.v }

// Load reads the config file and mirrors every setting, including defaults
// and bound environment variables. A missing file loads as an empty tree.
func (s *Store) Load(_ context.Context) *store.Result {
	s.mu.Lock()
	err := s.v.ReadInConfig()
	settings := s.v.AllSettings()
	s.mu.Unlock()

	if err != nil && !notFound(err) {
		var parseErr viper.ConfigParseError
		if errors.As(err, &parseErr) {
			return store.Rejected(&store.ParseError{Source: s.v.ConfigFileUsed(), Format: s.typ, Err: err})
		}
		return store.Rejected(&store.TransportError{Store: s.Name(), Op: store.OpLoad, Err: err})
	}

	s.Replace(settings)
	snapshot := s.Snapshot()
	s.Emit(store.Event{Store: s.Name(), Tree: snapshot})
	return store.Resolved(snapshot, true)
}

// Save writes the mirror to the config file. Keys cleared from the mirror
// are dropped from the file.
func (s *Store) Save(_ context.Context) *store.Result {
	snapshot := s.Snapshot()

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.v.ConfigFileUsed()
	if path == "" {
		return store.Rejected(&store.TransportError{
			Store: s.Name(),
			Op:    store.OpSave,
			Err:   errors.New("no config file to write"),
		})
	}

	typ := s.typ
	if typ == "" {
		typ = strings.TrimPrefix(filepath.Ext(path), ".")
	}
	out := viper.New()
	out.SetConfigType(typ)
	for k, val := range snapshot {
		out.Set(k, val)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return store.Rejected(&store.TransportError{Store: s.Name(), Op: store.OpSave, Err: err})
	}
	if err := out.WriteConfigAs(path); err != nil {
		return store.Rejected(&store.TransportError{Store: s.Name(), Op: store.OpSave, Err: err})
	}
	return store.Resolved(snapshot, true)
}

func notFound(err error) bool {
	var nf viper.ConfigFileNotFoundError
	return errors.As(err, &nf) || errors.Is(err, os.ErrNotExist)
}
