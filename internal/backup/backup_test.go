package backup

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/thoreinstein/strata/pkg/store"
)

// clock returns successive instants one second apart.
func clock(start time.Time) func() time.Time {
	next := start
	return func() time.Time {
		t := next
		next = next.Add(time.Second)
		return t
	}
}

func newTestManager(t *testing.T, opts ...Option) *Manager {
	t.Helper()
	m := NewManager(append([]Option{WithBackupDir(t.TempDir())}, opts...)...)
	m.now = clock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	return m
}

func TestBackupAndRestore(t *testing.T) {
	m := newTestManager(t)
	tree := map[string]any{"db": map[string]any{"host": "localhost", "port": 5432}}

	manifest, err := m.Backup("user", tree)
	if err != nil {
		t.Fatalf("Backup() error = %v", err)
	}
	if manifest.Keys != 2 || manifest.Store != "user" || manifest.SHA256Hash == "" {
		t.Errorf("manifest = %+v", manifest)
	}

	got, restored, err := m.Restore("user", "")
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if restored.ID != manifest.ID {
		t.Errorf("restored %s, want %s", restored.ID, manifest.ID)
	}
	want := map[string]any{"db": map[string]any{"host": "localhost", "port": float64(5432)}}
	if g, ok := got.(map[string]any); !ok || !reflect.DeepEqual(normalize(g), want) {
		t.Errorf("Restore() = %#v, want %#v", got, want)
	}
}

// normalize turns integer-valued numbers into float64 so decoded trees
// compare regardless of the codec's number handling.
func normalize(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, c := range val {
			out[k] = normalize(c)
		}
		return out
	case int:
		return float64(val)
	case int64:
		return float64(val)
	default:
		return v
	}
}

func TestBackup_UniqueIDsAndOrder(t *testing.T) {
	m := newTestManager(t)
	var ids []string
	for i := range 3 {
		man, err := m.Backup("user", map[string]any{"n": i})
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, man.ID)
	}

	list, err := m.List("user")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 {
		t.Fatalf("List() = %d manifests, want 3", len(list))
	}
	for i, man := range list {
		if want := ids[len(ids)-1-i]; man.ID != want {
			t.Errorf("List()[%d] = %s, want %s", i, man.ID, want)
		}
	}
}

func TestBackup_Retention(t *testing.T) {
	m := newTestManager(t, WithRetentionCount(2))
	for i := range 4 {
		if _, err := m.Backup("user", map[string]any{"n": i}); err != nil {
			t.Fatal(err)
		}
	}
	list, err := m.List("user")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("List() = %d manifests, want 2", len(list))
	}
	got, _, err := m.Restore("user", list[1].ID)
	if err != nil {
		t.Fatal(err)
	}
	if n := normalize(got).(map[string]any)["n"]; n != float64(2) {
		t.Errorf("oldest kept snapshot n = %v, want 2", n)
	}
}

func TestRestore_Corrupted(t *testing.T) {
	m := newTestManager(t)
	man, err := m.Backup("user", map[string]any{"a": 1})
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(m.backupPath("user", man.ID), treeFile)
	if err := os.WriteFile(path, []byte(`{"a": 2}`), 0o600); err != nil {
		t.Fatal(err)
	}

	_, _, err = m.Restore("user", man.ID)
	if !errors.Is(err, ErrBackupCorrupted) {
		t.Errorf("Restore() error = %v, want ErrBackupCorrupted", err)
	}
}

func TestNoBackups(t *testing.T) {
	m := newTestManager(t)

	if _, err := m.List("user"); !errors.Is(err, ErrNoBackupsFound) {
		t.Errorf("List() error = %v, want ErrNoBackupsFound", err)
	}
	if _, _, err := m.Restore("user", ""); !errors.Is(err, ErrNoBackupsFound) {
		t.Errorf("Restore() error = %v, want ErrNoBackupsFound", err)
	}
	if _, err := m.Get("user", "20260101T000000.000000000"); !errors.Is(err, ErrNoBackupsFound) {
		t.Errorf("Get() error = %v, want ErrNoBackupsFound", err)
	}
	if err := m.Prune("user", 1); err != nil {
		t.Errorf("Prune() error = %v", err)
	}
}

func TestGet_RejectsTraversal(t *testing.T) {
	m := newTestManager(t)
	for _, id := range []string{"", "..", "../x", `a\b`} {
		if _, err := m.Get("user", id); err == nil {
			t.Errorf("Get(%q) succeeded", id)
		}
	}
}

func TestDirName(t *testing.T) {
	tests := map[string]string{
		"user":                  "user",
		"file:/etc/strata.yaml": "file__etc_strata.yaml",
		"..":                    "_..",
		"":                      "_",
	}
	for in, want := range tests {
		if got := dirName(in); got != want {
			t.Errorf("dirName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSession_OncePerStore(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	s := NewSession(m)

	mem := store.NewMemory("user", store.WithRoot(map[string]any{"a": 1}))
	for range 3 {
		if err := s.EnsureBackedUp(ctx, "user", mem); err != nil {
			t.Fatal(err)
		}
	}
	other := store.NewMemory("other")
	if err := s.EnsureBackedUp(ctx, "other", other); err != nil {
		t.Fatal(err)
	}

	if list, _ := m.List("user"); len(list) != 1 {
		t.Errorf("user snapshots = %d, want 1", len(list))
	}
	if list, _ := m.List("other"); len(list) != 1 {
		t.Errorf("other snapshots = %d, want 1", len(list))
	}
}
