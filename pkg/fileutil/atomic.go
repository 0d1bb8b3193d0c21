// Package fileutil provides the file primitives shared by file-backed
// stores: size-limited reads and atomic, encoded writes.
package fileutil

import (
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"

	"github.com/thoreinstein/strata/pkg/codec"
)

// DefaultPerm is the mode given to configuration files strata creates.
const DefaultPerm os.FileMode = 0o644

// WriteAtomic writes data to path through a temporary file in the same
// directory that is synced and then renamed over path. An interrupted write
// leaves the previous content intact.
//
// The parent directory must exist.
func WriteAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, ".strata-*.tmp")
	if err != nil {
		return errors.Wrap(err, "creating temp file")
	}
	tmpName := tmp.Name()

	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "writing temp file")
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return errors.Wrap(err, "setting file permissions")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrap(err, "syncing temp file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "closing temp file")
	}
	if err := os.Rename(tmpName, path); err != nil {
		return errors.Wrap(err, "renaming temp file")
	}

	committed = true
	return nil
}

// WriteAtomicMkdir is WriteAtomic after creating the parent directory.
func WriteAtomicMkdir(path string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "creating parent directory")
	}
	return WriteAtomic(path, data, perm)
}

// WriteEncoded encodes v with f and writes it atomically, creating the
// parent directory when needed.
func WriteEncoded(path string, f codec.Format, v any, perm os.FileMode) error {
	data, err := f.Encode(v)
	if err != nil {
		return err
	}
	return WriteAtomicMkdir(path, data, perm)
}
