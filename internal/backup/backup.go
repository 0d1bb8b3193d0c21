package backup

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/thoreinstein/strata/internal/paths"
	"github.com/thoreinstein/strata/pkg/codec"
	"github.com/thoreinstein/strata/pkg/fileutil"
	"github.com/thoreinstein/strata/pkg/tree"
)

// Version is recorded in every manifest. The CLI sets it at startup.
var Version = "dev"

const (
	manifestFile = "manifest.json"
	treeFile     = "tree.json"

	// idLayout sorts lexically in creation order.
	idLayout = "20060102T150405.000000000"
)

// Manager creates, lists, restores and prunes store snapshots.
type Manager struct {
	rootDir        string
	retentionCount int
	now            func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithBackupDir sets the root backup directory.
func WithBackupDir(dir string) Option {
	return func(m *Manager) {
		if dir != "" {
			m.rootDir = dir
		}
	}
}

// WithRetentionCount sets the number of snapshots kept per store.
func WithRetentionCount(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.retentionCount = n
		}
	}
}

// DefaultDir returns the default backup root under the strata data
// directory.
func DefaultDir() string {
	return filepath.Join(paths.DataDir(), "backups")
}

// NewManager creates a new Manager with the given options.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		rootDir:        DefaultDir(),
		retentionCount: DefaultRetentionCount,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Dir returns the root backup directory.
func (m *Manager) Dir() string { return m.rootDir }

// Backup writes a snapshot of t, the full tree of the named store, and
// prunes snapshots beyond the retention count.
func (m *Manager) Backup(storeName string, t any) (*Manifest, error) {
	if storeName == "" {
		return nil, errors.New("store name is required")
	}
	if t == nil {
		t = map[string]any{}
	}

	data, err := codec.JSON.Encode(t)
	if err != nil {
		return nil, errors.Wrap(err, "encoding snapshot")
	}
	sum := sha256.Sum256(data)

	created := m.now().UTC()
	id := created.Format(idLayout)
	dir := m.backupPath(storeName, id)
	if _, err := os.Stat(dir); err == nil {
		return nil, errors.Newf("backup %s already exists", id)
	}

	if err := fileutil.WriteAtomicMkdir(filepath.Join(dir, treeFile), data, 0o600); err != nil {
		return nil, errors.Wrap(err, "writing snapshot")
	}

	manifest := &Manifest{
		Version:       ManifestVersion,
		CreatedAt:     created,
		Store:         storeName,
		Keys:          len(tree.Flatten(t)),
		SHA256Hash:    hex.EncodeToString(sum[:]),
		StrataVersion: Version,
		ID:            id,
	}
	mdata, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "encoding manifest")
	}
	if err := fileutil.WriteAtomic(filepath.Join(dir, manifestFile), mdata, 0o600); err != nil {
		return nil, errors.Wrap(err, "writing manifest")
	}

	if err := m.Prune(storeName, m.retentionCount); err != nil {
		return manifest, errors.Wrap(err, "pruning old backups")
	}
	return manifest, nil
}

// Restore reads the snapshot with the given ID and verifies it against its
// manifest. An empty ID selects the most recent snapshot.
func (m *Manager) Restore(storeName, backupID string) (any, *Manifest, error) {
	var manifest *Manifest
	var err error
	if backupID == "" {
		manifest, err = m.Latest(storeName)
	} else {
		manifest, err = m.Get(storeName, backupID)
	}
	if err != nil {
		return nil, nil, err
	}

	path := filepath.Join(m.backupPath(storeName, manifest.ID), treeFile)
	data, err := fileutil.ReadFile(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "reading backup %s", manifest.ID)
	}
	sum := sha256.Sum256(data)
	if hex.EncodeToString(sum[:]) != manifest.SHA256Hash {
		return nil, nil, errors.Wrapf(ErrBackupCorrupted, "backup %s hash mismatch", manifest.ID)
	}

	t, err := codec.JSON.Decode(path, data)
	if err != nil {
		return nil, nil, errors.Wrapf(ErrBackupCorrupted, "backup %s: %v", manifest.ID, err)
	}
	return t, manifest, nil
}

// List returns the snapshots of a store, newest first.
func (m *Manager) List(storeName string) ([]Manifest, error) {
	if storeName == "" {
		return nil, errors.New("store name is required")
	}

	entries, err := os.ReadDir(m.storeBackupDir(storeName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNoBackupsFound
		}
		return nil, errors.Wrap(err, "reading backup directory")
	}

	manifests := make([]Manifest, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		manifest, err := m.Get(storeName, entry.Name())
		if err != nil {
			// Incomplete snapshot directories are skipped.
			continue
		}
		manifests = append(manifests, *manifest)
	}
	if len(manifests) == 0 {
		return nil, ErrNoBackupsFound
	}

	slices.SortFunc(manifests, func(a, b Manifest) int {
		return strings.Compare(b.ID, a.ID)
	})
	return manifests, nil
}

// Latest returns the most recent snapshot of a store.
func (m *Manager) Latest(storeName string) (*Manifest, error) {
	manifests, err := m.List(storeName)
	if err != nil {
		return nil, err
	}
	return &manifests[0], nil
}

// Prune keeps the newest keep snapshots of a store and removes the rest.
func (m *Manager) Prune(storeName string, keep int) error {
	if keep < 0 {
		return errors.New("keep must be non-negative")
	}

	manifests, err := m.List(storeName)
	if err != nil {
		if errors.Is(err, ErrNoBackupsFound) {
			return nil
		}
		return err
	}

	for i := keep; i < len(manifests); i++ {
		if err := os.RemoveAll(m.backupPath(storeName, manifests[i].ID)); err != nil {
			return errors.Wrapf(err, "removing backup %s", manifests[i].ID)
		}
	}
	return nil
}

// Get returns the manifest of one snapshot.
func (m *Manager) Get(storeName, backupID string) (*Manifest, error) {
	if storeName == "" {
		return nil, errors.New("store name is required")
	}
	if backupID == "" || strings.ContainsAny(backupID, `/\`) || backupID == "." || backupID == ".." {
		return nil, errors.Newf("invalid backup ID %q", backupID)
	}

	data, err := fileutil.ReadFile(filepath.Join(m.backupPath(storeName, backupID), manifestFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrapf(ErrNoBackupsFound, "backup %s not found", backupID)
		}
		return nil, errors.Wrap(err, "reading manifest")
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, errors.Wrap(err, "parsing manifest")
	}
	manifest.ID = backupID
	return &manifest, nil
}

func (m *Manager) backupPath(storeName, backupID string) string {
	return filepath.Join(m.storeBackupDir(storeName), backupID)
}

func (m *Manager) storeBackupDir(storeName string) string {
	return filepath.Join(m.rootDir, dirName(storeName))
}

// dirName maps a store name onto a single safe path element. Names such as
// "file:/etc/app.yaml" keep their letters and lose separators.
func dirName(storeName string) string {
	var b strings.Builder
	for _, r := range storeName {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	name := b.String()
	if name == "" || strings.Trim(name, ".") == "" {
		name = "_" + name
	}
	return name
}
