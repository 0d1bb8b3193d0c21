package doctor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/thoreinstein/strata/internal/logging"
	"github.com/thoreinstein/strata/pkg/codec"
	"github.com/thoreinstein/strata/pkg/fileutil"
	"github.com/thoreinstein/strata/pkg/store"
	"github.com/thoreinstein/strata/pkg/tree"
)

// DefaultStoreTimeout bounds how long a single store may take to load.
const DefaultStoreTimeout = 10 * time.Second

// secretFilePerm is the widest mode a file holding credentials should have.
const secretFilePerm os.FileMode = 0o600

// ConfigCheck reports whether the strata config file loaded and validated.
type ConfigCheck struct {
	path     string
	loadErr  error
	problems []error
}

var _ Check = (*ConfigCheck)(nil)

// NewConfigCheck creates a config check. path is the file that was read,
// empty when built-in defaults were used. loadErr is the error from reading
// the file and problems the validation errors.
func NewConfigCheck(path string, loadErr error, problems []error) *ConfigCheck {
	return &ConfigCheck{path: path, loadErr: loadErr, problems: problems}
}

func (c *ConfigCheck) Name() string     { return "config" }
func (c *ConfigCheck) Category() string { return "config" }

func (c *ConfigCheck) Run(context.Context) *CheckResult {
	result := &CheckResult{Name: c.Name(), Category: c.Category()}
	source := c.path
	if source == "" {
		source = "built-in defaults"
	}

	switch {
	case c.loadErr != nil:
		result.Status = SeverityError
		result.Message = fmt.Sprintf("cannot load config: %v", c.loadErr)
		result.FixHint = "Check the YAML syntax of " + source
	case len(c.problems) > 0:
		msgs := make([]string, 0, len(c.problems))
		for _, p := range c.problems {
			msgs = append(msgs, p.Error())
		}
		result.Status = SeverityError
		result.Message = fmt.Sprintf("%d problem(s) in %s", len(c.problems), source)
		result.Details = map[string]any{"problems": msgs}
		result.FixHint = "Check the stores section of " + source
	case c.path == "":
		result.Status = SeverityInfo
		result.Message = "no config file found, using built-in defaults"
	default:
		result.Status = SeverityPass
		result.Message = "loaded " + c.path
	}
	return result
}

// StoreCheck loads one store and reports whether its backend is reachable
// and its contents decode.
type StoreCheck struct {
	name    string
	store   store.Store
	timeout time.Duration
}

var _ Check = (*StoreCheck)(nil)

// NewStoreCheck creates a check that loads s. A zero timeout means
// DefaultStoreTimeout.
func NewStoreCheck(name string, s store.Store, timeout time.Duration) *StoreCheck {
	if timeout <= 0 {
		timeout = DefaultStoreTimeout
	}
	return &StoreCheck{name: name, store: s, timeout: timeout}
}

func (c *StoreCheck) Name() string     { return "store:" + c.name }
func (c *StoreCheck) Category() string { return "store" }

func (c *StoreCheck) Run(ctx context.Context) *CheckResult {
	result := &CheckResult{Name: c.Name(), Category: c.Category()}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	v, _, err := c.store.Load(ctx).Wait(ctx)
	elapsed := time.Since(start)

	result.Details = map[string]any{
		"sync":        c.store.Sync(),
		"duration_ms": elapsed.Milliseconds(),
	}
	if err != nil {
		result.Status = SeverityError
		result.Message = fmt.Sprintf("load failed: %v", err)
		result.FixHint = storeHint(err)
		return result
	}

	leaves := len(tree.Flatten(v))
	result.Details["keys"] = leaves
	if leaves == 0 {
		result.Status = SeverityInfo
		result.Message = "loaded, empty"
		return result
	}
	result.Status = SeverityPass
	result.Message = fmt.Sprintf("loaded %d keys", leaves)
	return result
}

func storeHint(err error) string {
	var parseErr *store.ParseError
	if errors.As(err, &parseErr) {
		return fmt.Sprintf("Fix the %s syntax in %s", parseErr.Format, parseErr.Source)
	}
	var rootErr *store.RootTypeError
	if errors.As(err, &rootErr) {
		return "The top level of a store must be a mapping"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "The backend did not answer in time; check that it is reachable"
	}
	var transportErr *store.TransportError
	if errors.As(err, &transportErr) {
		return "Check that the backend is reachable and the credentials are valid"
	}
	return ""
}

// PermissionCheck inspects the files behind file stores. Files holding
// credentials must not be readable by other users, and no file or parent
// directory may be world-writable.
type PermissionCheck struct {
	PermissionFixer
	paths []string
}

var (
	_ Check = (*PermissionCheck)(nil)
	_ Fixer = (*PermissionCheck)(nil)
)

// NewPermissionCheck creates a permission check over the given file paths.
func NewPermissionCheck(paths []string) *PermissionCheck {
	return &PermissionCheck{paths: paths}
}

func (c *PermissionCheck) Name() string     { return "file-permissions" }
func (c *PermissionCheck) Category() string { return "filesystem" }

// pathIssue represents a single path or permission problem.
type pathIssue struct {
	Path        string
	Type        string // "file" or "directory"
	Problem     string
	Severity    Severity
	Permissions string
	Fixable     bool
	FixHint     string
}

func (c *PermissionCheck) Run(context.Context) *CheckResult {
	var issues []pathIssue
	var checked int

	// Unix modes do not apply on Windows.
	if runtime.GOOS != "windows" {
		for _, path := range c.paths {
			fileIssues, exists := c.checkFile(path)
			if !exists {
				continue
			}
			checked++
			issues = append(issues, fileIssues...)
			issues = append(issues, c.checkDirectory(filepath.Dir(path))...)
		}
	}

	c.setIssues(issues)
	return c.buildResult(issues, checked)
}

func (c *PermissionCheck) checkFile(path string) ([]pathIssue, bool) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false
	}
	if err != nil {
		return []pathIssue{{
			Path:     path,
			Type:     "file",
			Problem:  fmt.Sprintf("cannot stat file: %v", err),
			Severity: SeverityError,
		}}, true
	}

	var issues []pathIssue
	perm := info.Mode().Perm()

	if perm&0o002 != 0 {
		issues = append(issues, pathIssue{
			Path:        path,
			Type:        "file",
			Problem:     "file is world-writable",
			Severity:    SeverityWarning,
			Permissions: formatPermissions(info.Mode()),
			Fixable:     true,
			FixHint:     fmt.Sprintf("chmod %04o %s", secretFilePerm, path),
		})
		return issues, true
	}

	if perm&^secretFilePerm != 0 {
		if key, ok := secretKeyIn(path); ok {
			issues = append(issues, pathIssue{
				Path: path,
				Type: "file",
				Problem: fmt.Sprintf("file holds %q but is readable by others (mode %s)",
					key, formatPermissions(info.Mode())),
				Severity:    SeverityWarning,
				Permissions: formatPermissions(info.Mode()),
				Fixable:     true,
				FixHint:     fmt.Sprintf("chmod %04o %s", secretFilePerm, path),
			})
		}
	}
	return issues, true
}

func (c *PermissionCheck) checkDirectory(path string) []pathIssue {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return nil
	}
	// Sticky directories such as /tmp are world-writable on purpose.
	if info.Mode().Perm()&0o002 == 0 || info.Mode()&os.ModeSticky != 0 {
		return nil
	}
	return []pathIssue{{
		Path:        path,
		Type:        "directory",
		Problem:     "directory is world-writable",
		Severity:    SeverityWarning,
		Permissions: formatPermissions(info.Mode()),
		Fixable:     true,
		FixHint:     fmt.Sprintf("chmod %04o %s", secureDirPerm, path),
	}}
}

// secretKeyIn returns the first credential-looking key in the file at path.
// Unreadable or undecodable files report false; the store check covers
// those.
func secretKeyIn(path string) (string, bool) {
	f, err := codec.ForPath(path)
	if err != nil {
		return "", false
	}
	data, err := fileutil.ReadFile(path)
	if err != nil {
		return "", false
	}
	v, err := f.Decode(path, data)
	if err != nil {
		return "", false
	}
	for _, leaf := range tree.Flatten(v) {
		if key := leaf.Path.Last(); logging.IsSecretKey(key) {
			return leaf.Path.String(), true
		}
	}
	return "", false
}

// buildResult constructs the final CheckResult from accumulated issues.
func (c *PermissionCheck) buildResult(issues []pathIssue, checked int) *CheckResult {
	if len(issues) == 0 {
		return &CheckResult{
			Name:     c.Name(),
			Category: c.Category(),
			Status:   SeverityPass,
			Message:  fmt.Sprintf("all %d files have safe permissions", checked),
		}
	}

	status := SeverityWarning
	fixable := false
	issueDetails := make([]map[string]any, 0, len(issues))
	for _, issue := range issues {
		if issue.Severity == SeverityError {
			status = SeverityError
		}
		fixable = fixable || issue.Fixable
		m := map[string]any{
			"path":     issue.Path,
			"type":     issue.Type,
			"problem":  issue.Problem,
			"severity": issue.Severity.String(),
		}
		if issue.Permissions != "" {
			m["permissions"] = issue.Permissions
		}
		if issue.FixHint != "" {
			m["fix_hint"] = issue.FixHint
		}
		issueDetails = append(issueDetails, m)
	}

	result := &CheckResult{
		Name:     c.Name(),
		Category: c.Category(),
		Status:   status,
		Message:  fmt.Sprintf("%d permission issue(s) in %d files", len(issues), checked),
		Details: map[string]any{
			"checked_paths": checked,
			"issue_count":   len(issues),
			"issues":        issueDetails,
		},
		Fixable: fixable,
	}
	if fixable {
		result.FixHint = "Run: strata doctor --fix"
	}
	return result
}

// formatPermissions returns the mode as a string like "-rw-r--r-- (0644)".
func formatPermissions(mode os.FileMode) string {
	return fmt.Sprintf("%s (%04o)", mode.Perm(), mode.Perm())
}
