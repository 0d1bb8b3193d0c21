package paths

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/thoreinstein/strata/internal/errors"
)

func TestHome(t *testing.T) {
	want, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home directory: %v", err)
	}
	if got := Home(); got != want {
		t.Errorf("Home() = %q, want %q", got, want)
	}
}

func TestResolveHome(t *testing.T) {
	got, err := ResolveHome()
	if err != nil {
		if !errors.Is(err, ErrHomeDirNotFound) {
			t.Errorf("unexpected error type: %v", err)
		}
		return
	}
	want, _ := os.UserHomeDir()
	if got != want {
		t.Errorf("ResolveHome() = %q, want %q", got, want)
	}
}

func TestXDGDirs(t *testing.T) {
	tests := []struct {
		name string
		got  string
		base string
		tail string
	}{
		{"ConfigDir", ConfigDir(), ConfigHome(), AppName},
		{"ConfigFile", ConfigFile(), ConfigHome(), filepath.Join(AppName, ConfigFileName)},
		{"DataDir", DataDir(), DataHome(), AppName},
		{"UserStoreFile", UserStoreFile(), DataHome(), filepath.Join(AppName, UserStoreFileName)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !filepath.IsAbs(tt.got) {
				t.Errorf("%s() = %q, want absolute path", tt.name, tt.got)
			}
			if want := filepath.Join(tt.base, tt.tail); tt.got != want {
				t.Errorf("%s() = %q, want %q", tt.name, tt.got, want)
			}
		})
	}
}

func TestExpand(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home directory: %v", err)
	}

	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "", want: ""},
		{in: "~", want: home},
		{in: "~/conf/app.yaml", want: filepath.Join(home, "conf", "app.yaml")},
		{in: "/etc/../etc/app.yaml", want: "/etc/app.yaml"},
		{in: "~user/app.yaml", want: "~user/app.yaml"},
		{in: "bad\x00path", wantErr: true},
	}
	for _, tt := range tests {
		got, err := Expand(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidPath) {
				t.Errorf("Expand(%q) error = %v, want ErrInvalidPath", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("Expand(%q) unexpected error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Expand(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEnsureDir(t *testing.T) {
	tmpDir := t.TempDir()

	t.Run("creates new directory with default perms", func(t *testing.T) {
		path := filepath.Join(tmpDir, "new-dir")
		if err := EnsureDir(path, 0); err != nil {
			t.Fatalf("EnsureDir failed: %v", err)
		}
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("stat failed: %v", err)
		}
		if !info.IsDir() {
			t.Errorf("expected directory, got file")
		}
		if info.Mode().Perm() != DefaultDirPerm {
			t.Errorf("expected perm %o, got %o", DefaultDirPerm, info.Mode().Perm())
		}
	})

	t.Run("creates nested directories", func(t *testing.T) {
		path := filepath.Join(tmpDir, "parent", "child")
		if err := EnsureDir(path, 0o755); err != nil {
			t.Fatalf("EnsureDir failed: %v", err)
		}
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("stat failed: %v", err)
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		path := filepath.Join(tmpDir, "existing")
		if err := os.Mkdir(path, 0o755); err != nil {
			t.Fatal(err)
		}
		if err := EnsureDir(path, 0o700); err != nil {
			t.Errorf("EnsureDir failed on existing directory: %v", err)
		}
		info, err := os.Stat(path)
		if err != nil {
			t.Fatal(err)
		}
		if info.Mode().Perm() != 0o755 {
			t.Errorf("expected original perm 0755 to be preserved, got %o", info.Mode().Perm())
		}
	})
}

func TestAppNameInPaths(t *testing.T) {
	for _, p := range []string{ConfigDir(), DataDir()} {
		if !strings.HasSuffix(p, AppName) {
			t.Errorf("%q should end in %q", p, AppName)
		}
	}
}
