package doctor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/thoreinstein/strata/pkg/keypath"
	"github.com/thoreinstein/strata/pkg/store"
	"github.com/thoreinstein/strata/pkg/store/file"
)

func TestConfigCheck(t *testing.T) {
	tests := []struct {
		name     string
		check    *ConfigCheck
		want     Severity
		wantHint bool
	}{
		{"loaded", NewConfigCheck("/etc/strata/config.yaml", nil, nil), SeverityPass, false},
		{"defaults", NewConfigCheck("", nil, nil), SeverityInfo, false},
		{"load error", NewConfigCheck("/x.yaml", errors.New("yaml: line 3"), nil), SeverityError, true},
		{
			"validation",
			NewConfigCheck("/x.yaml", nil, []error{errors.New("bad delimiter"), errors.New("bad tier")}),
			SeverityError, true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.check.Run(context.Background())
			if got.Status != tt.want {
				t.Errorf("Status = %v, want %v (%s)", got.Status, tt.want, got.Message)
			}
			if (got.FixHint != "") != tt.wantHint {
				t.Errorf("FixHint = %q", got.FixHint)
			}
		})
	}

	got := NewConfigCheck("/x.yaml", nil, []error{errors.New("bad delimiter")}).Run(context.Background())
	problems, _ := got.Details["problems"].([]string)
	if len(problems) != 1 || problems[0] != "bad delimiter" {
		t.Errorf("Details[problems] = %v", got.Details["problems"])
	}
}

func TestStoreCheck(t *testing.T) {
	ctx := context.Background()

	full := store.NewMemory("full", store.WithRoot(map[string]any{
		"db": map[string]any{"host": "localhost", "port": 5432},
	}))
	got := NewStoreCheck("full", full, 0).Run(ctx)
	if got.Status != SeverityPass {
		t.Errorf("full: Status = %v (%s)", got.Status, got.Message)
	}
	if got.Details["keys"] != 2 {
		t.Errorf("full: keys = %v, want 2", got.Details["keys"])
	}
	if got.Name != "store:full" {
		t.Errorf("Name = %q", got.Name)
	}

	empty := store.NewMemory("empty")
	if got := NewStoreCheck("empty", empty, 0).Run(ctx); got.Status != SeverityInfo {
		t.Errorf("empty: Status = %v (%s)", got.Status, got.Message)
	}
}

func TestStoreCheck_ParseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	if err := os.WriteFile(path, []byte(`{"a":`), 0o600); err != nil {
		t.Fatal(err)
	}
	s, err := file.New("broken", file.Options{File: path})
	if err != nil {
		t.Fatal(err)
	}

	got := NewStoreCheck("broken", s, time.Second).Run(context.Background())
	if got.Status != SeverityError {
		t.Fatalf("Status = %v, want error", got.Status)
	}
	if !strings.Contains(got.FixHint, path) {
		t.Errorf("FixHint = %q, want it to name %s", got.FixHint, path)
	}
}

// slowStore never finishes loading until its context ends.
type slowStore struct{ store.Store }

func (s slowStore) Load(ctx context.Context) *store.Result {
	<-ctx.Done()
	return store.Rejected(ctx.Err())
}

func TestStoreCheck_Timeout(t *testing.T) {
	s := slowStore{store.NewMemory("slow")}
	got := NewStoreCheck("slow", s, 10*time.Millisecond).Run(context.Background())
	if got.Status != SeverityError {
		t.Fatalf("Status = %v, want error", got.Status)
	}
	if !strings.Contains(got.FixHint, "in time") {
		t.Errorf("FixHint = %q", got.FixHint)
	}
}

func TestPermissionCheck(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("Unix permissions")
	}
	dir := t.TempDir()

	write := func(name, content string, perm os.FileMode) string {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(content), perm); err != nil {
			t.Fatal(err)
		}
		if err := os.Chmod(p, perm); err != nil {
			t.Fatal(err)
		}
		return p
	}

	private := write("private.json", `{"db": {"password": "x"}}`, 0o600)
	plain := write("plain.yaml", "db:\n  host: localhost\n", 0o644)
	leaky := write("leaky.yaml", "db:\n  password: hunter2\n", 0o644)
	open := write("open.json", `{}`, 0o666)
	missing := filepath.Join(dir, "missing.json")

	t.Run("clean", func(t *testing.T) {
		c := NewPermissionCheck([]string{private, plain, missing})
		got := c.Run(context.Background())
		if got.Status != SeverityPass {
			t.Errorf("Status = %v (%s)", got.Status, got.Message)
		}
		if got.Message != "all 2 files have safe permissions" {
			t.Errorf("Message = %q", got.Message)
		}
		if c.CanFix() {
			t.Error("CanFix() = true, want false")
		}
	})

	t.Run("issues then fix", func(t *testing.T) {
		c := NewPermissionCheck([]string{leaky, open})
		got := c.Run(context.Background())
		if got.Status != SeverityWarning {
			t.Fatalf("Status = %v (%s)", got.Status, got.Message)
		}
		if !got.Fixable || got.Details["issue_count"] != 2 {
			t.Errorf("result = %+v", got)
		}

		var f Fixer = c
		if !f.CanFix() {
			t.Fatal("CanFix() = false")
		}
		for _, r := range f.Fix() {
			if !r.Fixed {
				t.Errorf("fix %s: %s", r.Path, r.Description)
			}
		}

		if got := c.Run(context.Background()); got.Status != SeverityPass {
			t.Errorf("after fix: Status = %v (%s)", got.Status, got.Message)
		}
	})
}

func TestSecretKeyIn(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.json")
	if err := os.WriteFile(path, []byte(`{"service": {"api_key": "k", "name": "n"}}`), 0o600); err != nil {
		t.Fatal(err)
	}
	key, ok := secretKeyIn(path)
	if !ok || key != keypath.Parse("service:api_key").String() {
		t.Errorf("secretKeyIn = %q, %v", key, ok)
	}

	if _, ok := secretKeyIn(filepath.Join(dir, "missing.json")); ok {
		t.Error("missing file reported a secret")
	}
}
