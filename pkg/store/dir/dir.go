// Package dir implements a store backed by a directory of configuration
// files, one file per top-level key.
//
// A file named "db.json" is loaded under the key "db". A file named
// "db.production.json" is loaded under "db" only when the store's
// environment is "production"; files for other environments are ignored.
// Reads and writes operate on an in-memory mirror; Load and Save touch the
// directory and complete asynchronously.
package dir

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/thoreinstein/strata/pkg/codec"
	"github.com/thoreinstein/strata/pkg/fileutil"
	"github.com/thoreinstein/strata/pkg/store"
)

// DefaultEnv is the environment used when neither the options nor
// STRATA_ENV name one.
const DefaultEnv = "development"

// ErrMissingDir is returned when no directory is configured.
var ErrMissingDir = errors.New("missing required option `dir`")

// Options configures a directory store.
type Options struct {
	Dir string `mapstructure:"dir"`
	Env string `mapstructure:"env"`
}

type fileInfo struct {
	file   string
	format codec.Format
}

// Store is a directory-backed store.
type Store struct {
	*store.Memory

	dir string
	env string

	mu    sync.Mutex
	files map[string]fileInfo
}

var (
	_ store.Store    = (*Store)(nil)
	_ store.OpSyncer = (*Store)(nil)
)

// New returns a store over opts.Dir. The directory is not read until Load.
func New(name string, opts Options) (*Store, error) {
	if opts.Dir == "" {
		return nil, ErrMissingDir
	}

	env := opts.Env
	if env == "" {
		env = os.Getenv("STRATA_ENV")
	}
	if env == "" {
		env = DefaultEnv
	}

	return &Store{
		Memory: store.NewMemory(name),
		dir:    opts.Dir,
		env:    env,
		files:  map[string]fileInfo{},
	}, nil
}

// Env returns the environment the store selects files for.
func (s *Store) Env() string { return s.env }

// Sync reports false since Load and Save leave the process.
func (s *Store) Sync() bool { return false }

// SyncOp reports reads and writes against the mirror as synchronous.
func (s *Store) SyncOp(op store.Op) bool {
	return op != store.OpLoad && op != store.OpSave
}

// Load reads every matching file into the mirror. A missing directory
// loads as an empty tree.
func (s *Store) Load(_ context.Context) *store.Result {
	return store.Go(func() (any, bool, error) {
		root, files, err := s.read()
		if err != nil {
			return nil, false, err
		}

		s.mu.Lock()
		s.files = files
		s.mu.Unlock()

		s.Replace(root)
		snapshot := s.Snapshot()
		s.Emit(store.Event{Store: s.Name(), Tree: snapshot})
		return snapshot, true, nil
	})
}

// Save writes each top-level key back to the file it was loaded from. Keys
// without a file are written as "<key>.<env>.json". Files of keys that have
// been cleared since the last Load or Save are removed.
func (s *Store) Save(_ context.Context) *store.Result {
	return store.Go(func() (any, bool, error) {
		root := s.Snapshot()

		keys := make([]string, 0, len(root))
		for k := range root {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		s.mu.Lock()
		defer s.mu.Unlock()

		if err := s.removeCleared(root); err != nil {
			return nil, false, err
		}

		for _, key := range keys {
			info, ok := s.files[key]
			if !ok {
				info = fileInfo{file: key + "." + s.env + ".json", format: codec.JSON}
				s.files[key] = info
			}
			path := filepath.Join(s.dir, info.file)
			if err := fileutil.WriteEncoded(path, info.format, root[key], fileutil.DefaultPerm); err != nil {
				return nil, false, &store.TransportError{Store: s.Name(), Op: store.OpSave, Err: err}
			}
		}
		return root, true, nil
	})
}

// removeCleared deletes every file that loads into a key no longer present
// in root. Callers hold s.mu.
func (s *Store) removeCleared(root map[string]any) error {
	cleared := map[string]bool{}
	for key := range s.files {
		if _, ok := root[key]; !ok {
			cleared[key] = true
		}
	}
	if len(cleared) == 0 {
		return nil
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return &store.TransportError{Store: s.Name(), Op: store.OpSave, Err: err}
	}
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		key, ok := s.match(entry.Name())
		if !ok || !cleared[key] {
			continue
		}
		err := os.Remove(filepath.Join(s.dir, entry.Name()))
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return &store.TransportError{Store: s.Name(), Op: store.OpSave, Err: err}
		}
	}
	for key := range cleared {
		delete(s.files, key)
	}
	return nil
}

func (s *Store) read() (map[string]any, map[string]fileInfo, error) {
	root := map[string]any{}
	files := map[string]fileInfo{}

	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return root, files, nil
	}
	if err != nil {
		return nil, nil, &store.TransportError{Store: s.Name(), Op: store.OpLoad, Err: err}
	}

	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		key, ok := s.match(entry.Name())
		if !ok {
			continue
		}

		path := filepath.Join(s.dir, entry.Name())
		format, err := codec.ForPath(path)
		if err != nil {
			return nil, nil, &store.ParseError{Source: path, Format: filepath.Ext(path), Err: err}
		}
		data, err := fileutil.ReadFile(path)
		if err != nil {
			return nil, nil, &store.TransportError{Store: s.Name(), Op: store.OpLoad, Err: err}
		}
		v, err := format.Decode(path, data)
		if err != nil {
			return nil, nil, err
		}

		root[key] = v
		files[key] = fileInfo{file: entry.Name(), format: format}
	}
	return root, files, nil
}

// match returns the key a file name loads into, and false when the file
// belongs to another environment.
func (s *Store) match(name string) (string, bool) {
	parts := strings.Split(name, ".")
	switch {
	case len(parts) == 3 && parts[0] != "" && parts[1] != "":
		if parts[1] != s.env {
			return "", false
		}
		return parts[0], true
	default:
		return strings.TrimSuffix(name, filepath.Ext(name)), true
	}
}
