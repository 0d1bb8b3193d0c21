package backup

import (
	"time"

	"github.com/cockroachdb/errors"
)

// ManifestVersion is the manifest format version.
const ManifestVersion = 1

// DefaultRetentionCount is the default number of snapshots kept per store.
const DefaultRetentionCount = 5

var (
	// ErrNoBackupsFound indicates no snapshots exist for the store.
	ErrNoBackupsFound = errors.New("no backups found")

	// ErrBackupCorrupted indicates the snapshot data no longer matches the
	// hash recorded in its manifest.
	ErrBackupCorrupted = errors.New("backup corrupted")
)

// Manifest describes one snapshot. It is stored as manifest.json next to
// the snapshot data.
type Manifest struct {
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`

	// Store is the name of the store the snapshot was taken from.
	Store string `json:"store"`

	// Keys is the number of leaf values in the snapshot.
	Keys int `json:"keys"`

	// SHA256Hash is the hex-encoded hash of tree.json.
	SHA256Hash string `json:"sha256_hash"`

	// StrataVersion is the version of strata that wrote the snapshot.
	StrataVersion string `json:"strata_version"`

	// ID is the snapshot directory name. Get fills it from the directory,
	// not the file.
	ID string `json:"id"`
}
