package paths

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/cockroachdb/errors"
)

// AppName names the strata directories under the XDG base dirs.
const AppName = "strata"

// ConfigFileName is the CLI configuration file looked up in ConfigDir.
const ConfigFileName = "config.yaml"

// UserStoreFileName is the file backing the default writable store.
const UserStoreFileName = "user.json"

var (
	// ErrHomeDirNotFound indicates the user's home directory could not be determined.
	ErrHomeDirNotFound = errors.New("home directory not found")

	// ErrInvalidPath indicates the provided path is malformed or invalid.
	ErrInvalidPath = errors.New("invalid path")
)

// DefaultDirPerm is the permission for directories strata creates.
const DefaultDirPerm = 0o700

// EnsureDir creates path and its parents. A zero perm means DefaultDirPerm.
func EnsureDir(path string, perm os.FileMode) error {
	if perm == 0 {
		perm = DefaultDirPerm
	}
	return os.MkdirAll(path, perm)
}

// Home returns the user's home directory, or "" when it is unknown.
func Home() string {
	h, _ := ResolveHome()
	return h
}

// ResolveHome returns the user's home directory.
func ResolveHome() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(ErrHomeDirNotFound, err.Error())
	}
	return home, nil
}

// ConfigHome returns the XDG config home directory.
func ConfigHome() string {
	return xdg.ConfigHome
}

// DataHome returns the XDG data home directory.
func DataHome() string {
	return xdg.DataHome
}

// ConfigDir returns <ConfigHome>/strata.
func ConfigDir() string {
	return filepath.Join(ConfigHome(), AppName)
}

// ConfigFile returns the default CLI configuration file path.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), ConfigFileName)
}

// DataDir returns <DataHome>/strata, where the default user store lives.
func DataDir() string {
	return filepath.Join(DataHome(), AppName)
}

// UserStoreFile returns the path of the default writable store.
func UserStoreFile() string {
	return filepath.Join(DataDir(), UserStoreFileName)
}

// Expand replaces a leading "~" with the home directory and cleans the
// result. Paths containing NUL bytes are rejected.
func Expand(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if strings.ContainsRune(path, '\x00') {
		return "", errors.Wrapf(ErrInvalidPath, "%q contains a NUL byte", path)
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := ResolveHome()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return filepath.Clean(path), nil
}
