// Package file implements a synchronous store backed by a single
// configuration file.
//
// Every operation reads the file, applies the change and, for writes, writes
// the file back atomically. There is no in-memory copy, so edits made to the
// file by other processes are visible on the next call.
package file

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/adrg/xdg"
	"github.com/cockroachdb/errors"

	"github.com/thoreinstein/strata/pkg/codec"
	"github.com/thoreinstein/strata/pkg/fileutil"
	"github.com/thoreinstein/strata/pkg/keypath"
	"github.com/thoreinstein/strata/pkg/store"
	"github.com/thoreinstein/strata/pkg/tree"
)

// ErrMissingFile is returned when no file name is configured.
var ErrMissingFile = errors.New("missing required option `file`")

// Options configures a file store.
type Options struct {
	// File is the path of the configuration file.
	File string `mapstructure:"file"`

	// Dir, when set, is joined with a relative File.
	Dir string `mapstructure:"dir"`

	// Format overrides detection from the file extension.
	Format string `mapstructure:"format"`

	// Search resolves a relative File against the working directory first
	// and then the XDG config directories.
	Search bool `mapstructure:"search"`

	// Perm is the mode of files the store creates. Defaults to 0644.
	Perm os.FileMode `mapstructure:"perm"`
}

// Store is a file-backed store.
type Store struct {
	store.Notifier

	name   string
	path   string
	format codec.Format
	perm   os.FileMode

	mu sync.Mutex
}

var _ store.Store = (*Store)(nil)

// New returns a store for the file described by opts.
func New(name string, opts Options) (*Store, error) {
	if opts.File == "" {
		return nil, ErrMissingFile
	}

	path, err := resolvePath(opts)
	if err != nil {
		return nil, err
	}

	var format codec.Format
	if opts.Format != "" {
		format, err = codec.Lookup(opts.Format)
	} else {
		format, err = codec.ForPath(path)
	}
	if err != nil {
		return nil, err
	}

	perm := opts.Perm
	if perm == 0 {
		perm = fileutil.DefaultPerm
	}

	return &Store{
		name:   name,
		path:   path,
		format: format,
		perm:   perm,
	}, nil
}

func resolvePath(opts Options) (string, error) {
	file := opts.File
	if opts.Dir != "" && !filepath.IsAbs(file) {
		file = filepath.Join(opts.Dir, file)
	}

	abs, err := filepath.Abs(file)
	if err != nil {
		return "", errors.Wrapf(err, "resolving %s", file)
	}
	if !opts.Search || filepath.IsAbs(opts.File) {
		return abs, nil
	}

	if _, err := os.Stat(abs); err == nil {
		return abs, nil
	}
	if found, err := xdg.SearchConfigFile(file); err == nil {
		return found, nil
	}
	return abs, nil
}

// Path returns the absolute path of the backing file.
func (s *Store) Path() string { return s.path }

// Format returns the codec used for the backing file.
func (s *Store) Format() codec.Format { return s.format }

// Name returns the store's name.
func (s *Store) Name() string { return s.name }

// Sync reports true: every operation completes before returning.
func (s *Store) Sync() bool { return true }

// Get reads the file and returns the value at p. A missing file holds an
// empty tree.
func (s *Store) Get(_ context.Context, p keypath.Path) *store.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	root, err := s.read(store.OpGet)
	if err != nil {
		return store.Rejected(err)
	}
	v, found := tree.Get(p, root)
	return store.Resolved(v, found)
}

// Set writes value at p and resolves to the new file content.
func (s *Store) Set(_ context.Context, p keypath.Path, value any) *store.Result {
	value = tree.Clone(value)
	if p.IsRoot() && !tree.IsMergeable(value) {
		return store.Rejected(&store.RootTypeError{Store: s.name, Op: store.OpSet, Value: value})
	}
	return s.update(store.OpSet, func(root any) any {
		return tree.Set(p, root, value)
	})
}

// Merge deep-folds value into p and resolves to the new file content.
func (s *Store) Merge(_ context.Context, p keypath.Path, value any) *store.Result {
	value = tree.Clone(value)
	if p.IsRoot() && !tree.IsMergeable(value) {
		return store.Rejected(&store.RootTypeError{Store: s.name, Op: store.OpMerge, Value: value})
	}
	return s.update(store.OpMerge, func(root any) any {
		return tree.Merge(p, root, value)
	})
}

// Clear removes p from the file. Clearing the root empties the file to an
// empty mapping and resolves to not found.
func (s *Store) Clear(_ context.Context, p keypath.Path) *store.Result {
	if p.IsRoot() {
		r := s.update(store.OpClear, func(any) any { return map[string]any{} })
		return store.Chain(r, func(_ any, _ bool, err error) *store.Result {
			if err != nil {
				return store.Rejected(err)
			}
			return store.Resolved(nil, false)
		})
	}
	return s.update(store.OpClear, func(root any) any {
		cleared, _ := tree.Clear(p, root)
		return cleared
	})
}

// Load validates the file and notifies reload subscribers.
func (s *Store) Load(_ context.Context) *store.Result {
	s.mu.Lock()
	root, err := s.read(store.OpLoad)
	s.mu.Unlock()
	if err != nil {
		return store.Rejected(err)
	}

	s.Emit(store.Event{Store: s.name, Tree: root})
	return store.Resolved(root, true)
}

// Save has nothing to flush since every write goes to disk.
func (s *Store) Save(_ context.Context) *store.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	root, err := s.read(store.OpSave)
	if err != nil {
		return store.Rejected(err)
	}
	return store.Resolved(root, true)
}

func (s *Store) update(op store.Op, fn func(root any) any) *store.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	root, err := s.read(op)
	if err != nil {
		return store.Rejected(err)
	}

	next := fn(root)
	if err := fileutil.WriteEncoded(s.path, s.format, next, s.perm); err != nil {
		return store.Rejected(&store.TransportError{Store: s.name, Op: op, Err: err})
	}
	return store.Resolved(next, true)
}

// read decodes the file. A missing file is an empty mapping; malformed
// content is a *store.ParseError and is never overwritten.
func (s *Store) read(op store.Op) (map[string]any, error) {
	data, ok, err := fileutil.ReadIfExists(s.path)
	if err != nil {
		return nil, &store.TransportError{Store: s.name, Op: op, Err: err}
	}
	if !ok {
		return map[string]any{}, nil
	}

	v, err := s.format.Decode(s.path, data)
	if err != nil {
		return nil, err
	}
	root, ok := v.(map[string]any)
	if !ok {
		return nil, &store.ParseError{
			Source: s.path,
			Format: s.format.Name,
			Err:    errors.Newf("document root is %T, not a mapping", v),
		}
	}
	return root, nil
}
