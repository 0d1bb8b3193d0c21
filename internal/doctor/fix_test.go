package doctor

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestPermissionFixer_CanFix(t *testing.T) {
	tests := []struct {
		name   string
		issues []pathIssue
		want   int
	}{
		{name: "no issues", want: 0},
		{
			name:   "non-fixable issue",
			issues: []pathIssue{{Path: "/a", Type: "file", Severity: SeverityError}},
			want:   0,
		},
		{
			name: "mixed",
			issues: []pathIssue{
				{Path: "/a", Type: "file", Severity: SeverityError},
				{Path: "/b", Type: "file", Severity: SeverityWarning, Fixable: true},
				{Path: "/c", Type: "directory", Severity: SeverityWarning, Fixable: true},
			},
			want: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &PermissionFixer{}
			f.setIssues(tt.issues)
			if got := f.CountFixable(); got != tt.want {
				t.Errorf("CountFixable() = %d, want %d", got, tt.want)
			}
			if got := f.CanFix(); got != (tt.want > 0) {
				t.Errorf("CanFix() = %v, want %v", got, tt.want > 0)
			}
		})
	}
}

func TestPermissionFixer_Fix(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("Unix permissions")
	}

	dir := t.TempDir()
	file := filepath.Join(dir, "secrets.json")
	if err := os.WriteFile(file, []byte(`{}`), 0o644); err != nil {
		t.Fatal(err)
	}
	sub := filepath.Join(dir, "shared")
	if err := os.Mkdir(sub, 0o777); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(sub, 0o777); err != nil {
		t.Fatal(err)
	}

	f := &PermissionFixer{}
	f.setIssues([]pathIssue{
		{Path: file, Type: "file", Fixable: true},
		{Path: sub, Type: "directory", Fixable: true},
		{Path: filepath.Join(dir, "skipped"), Type: "file"},
		{Path: file, Type: "socket", Fixable: true},
		{Path: filepath.Join(dir, "missing.json"), Type: "file", Fixable: true},
	})

	results := f.Fix()
	if len(results) != 4 {
		t.Fatalf("Fix() returned %d results, want 4", len(results))
	}

	if !results[0].Fixed || results[0].Description != "chmod 0600" {
		t.Errorf("file result = %+v", results[0])
	}
	if !results[1].Fixed || results[1].Description != "chmod 0700" {
		t.Errorf("directory result = %+v", results[1])
	}
	if results[2].Fixed || results[2].Error == nil {
		t.Errorf("unknown type result = %+v, want error", results[2])
	}
	if results[3].Fixed || results[3].Error == nil {
		t.Errorf("missing file result = %+v, want error", results[3])
	}

	assertPerm(t, file, 0o600)
	assertPerm(t, sub, 0o700)
}

func assertPerm(t *testing.T, path string, want os.FileMode) {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := info.Mode().Perm(); got != want {
		t.Errorf("%s mode = %04o, want %04o", path, got, want)
	}
}
