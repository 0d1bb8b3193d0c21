package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/thoreinstein/strata/internal/config"
	"github.com/thoreinstein/strata/internal/doctor"
	"github.com/thoreinstein/strata/internal/errors"
	"github.com/thoreinstein/strata/internal/logging"
	"github.com/thoreinstein/strata/pkg/keypath"
	"github.com/thoreinstein/strata/pkg/provider"
	"github.com/thoreinstein/strata/pkg/store"
	"github.com/thoreinstein/strata/pkg/store/file"
)

var (
	doctorJSON    bool
	doctorFix     bool
	doctorAll     bool
	doctorTimeout time.Duration
)

func init() {
	doctorCmd.Flags().BoolVar(&doctorJSON, "json", false,
		"output results as JSON")
	doctorCmd.Flags().BoolVar(&doctorFix, "fix", false,
		"repair file permission problems")
	doctorCmd.Flags().BoolVar(&doctorAll, "all", false,
		"show passed checks too")
	doctorCmd.Flags().DurationVar(&doctorTimeout, "timeout", doctor.DefaultStoreTimeout,
		"how long each store may take to load")
	rootCmd.AddCommand(doctorCmd)
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Diagnose configuration issues",
	Long: `Run diagnostic checks on the strata config file and every store it
declares. Each store is loaded on its own, so one unreachable backend does
not hide problems in the others. Files behind file stores are checked for
unsafe permissions; --fix tightens them.

Exit codes:
  0 - No errors or warnings
  1 - Warnings present, no errors
  2 - Errors present`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

var (
	errDoctorWarnings = errors.New("doctor found warnings")
	errDoctorErrors   = errors.New("doctor found errors")
)

func runDoctor(cmd *cobra.Command, _ []string) error {
	if doctorJSON && doctorAll {
		return errors.NewUserError(errors.New("--json already includes every check"), "Drop --all")
	}
	ctx := cmd.Context()

	runner, closeStores := doctorChecks(cmd)
	defer closeStores()

	report := runner.Run(ctx)

	var fixes []doctor.FixResult
	if doctorFix {
		for _, c := range runner.Checks() {
			if f, ok := c.(doctor.Fixer); ok && f.CanFix() {
				fixes = append(fixes, f.Fix()...)
			}
		}
	}

	w := cmd.OutOrStdout()
	if doctorJSON {
		out := struct {
			*doctor.DoctorReport
			Fixes []doctor.FixResult `json:"fixes,omitempty"`
		}{report, fixes}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return errors.Wrap(err, "encoding JSON")
		}
	} else {
		printReport(w, report, fixes)
	}

	switch {
	case report.HasErrors():
		return errors.NewExitError(errDoctorErrors, errors.ExitSystem)
	case report.HasWarnings() && !allFixed(fixes):
		return errors.NewExitError(errDoctorWarnings, errors.ExitUser)
	}
	return nil
}

// doctorChecks builds one check for the config file, one per declared store
// and one over the files behind file stores. The returned func closes the
// stores built for the checks.
func doctorChecks(cmd *cobra.Command) (*doctor.Runner, func()) {
	logger := logging.FromContext(cmd.Context())
	runner := doctor.NewRunner()
	var built []store.Store
	closeAll := func() {
		for _, s := range built {
			if c, ok := store.As[io.Closer](s); ok {
				_ = c.Close()
			}
		}
	}

	if configLoadErr != nil {
		runner.AddCheck(doctor.NewConfigCheck(config.Used(), configLoadErr, nil))
		return runner, closeAll
	}

	engines := defaultEngines(logger)
	problems := config.Validate(cfg, engines.Types())
	delim, err := config.ParseDelimiter(cfg.Delimiter)
	if err != nil {
		delim = keypath.Default.Delimiter
	}
	p := provider.New(
		provider.WithEngines(engines),
		provider.WithAddressor(keypath.Addressor{Delimiter: delim}),
		provider.WithLogger(logger),
	)

	var storeChecks []doctor.Check
	var files []string
	for _, sc := range append(fileStores(extraFiles), cfg.Stores...) {
		spec, err := expandSpec(sc.Spec)
		if err == nil {
			var s store.Store
			s, err = p.Build(sc.Name, spec)
			if err == nil {
				built = append(built, s)
				storeChecks = append(storeChecks, doctor.NewStoreCheck(sc.Name, s, doctorTimeout))
				if fs, ok := store.As[*file.Store](s); ok {
					files = append(files, fs.Path())
				}
				continue
			}
		}
		if !errors.Is(err, provider.ErrUnknownType) {
			problems = append(problems, &config.StoreError{Name: sc.Name, Err: err})
		}
	}

	runner.AddCheck(doctor.NewConfigCheck(config.Used(), nil, problems))
	for _, c := range storeChecks {
		runner.AddCheck(c)
	}
	runner.AddCheck(doctor.NewPermissionCheck(files))
	return runner, closeAll
}

func allFixed(fixes []doctor.FixResult) bool {
	if len(fixes) == 0 {
		return false
	}
	for _, f := range fixes {
		if !f.Fixed {
			return false
		}
	}
	return true
}

func printReport(w io.Writer, report *doctor.DoctorReport, fixes []doctor.FixResult) {
	colors := map[doctor.Severity]*color.Color{
		doctor.SeverityPass:    color.New(color.FgGreen),
		doctor.SeverityInfo:    color.New(color.FgCyan),
		doctor.SeverityWarning: color.New(color.FgYellow),
		doctor.SeverityError:   color.New(color.FgRed),
	}
	if !logging.SupportsColor(w) {
		for _, c := range colors {
			c.DisableColor()
		}
	}

	shown := 0
	for _, r := range report.Results {
		if !doctorAll && r.Status != doctor.SeverityError && r.Status != doctor.SeverityWarning {
			continue
		}
		shown++
		fmt.Fprintf(w, "%s [%s] %s: %s\n", colors[r.Status].Sprint(statusIcon(r.Status)), r.Category, r.Name, r.Message)
		if problems, ok := r.Details["problems"].([]string); ok {
			for _, p := range problems {
				fmt.Fprintf(w, "  - %s\n", p)
			}
		}
		if issues, ok := r.Details["issues"].([]map[string]any); ok {
			for _, i := range issues {
				fmt.Fprintf(w, "  - %s: %s\n", i["path"], i["problem"])
			}
		}
		if r.FixHint != "" && r.Status >= doctor.SeverityWarning {
			fmt.Fprintf(w, "  hint: %s\n", r.FixHint)
		}
	}

	if len(fixes) > 0 {
		fmt.Fprintln(w)
		for _, f := range fixes {
			mark := "fixed"
			if !f.Fixed {
				mark = "failed"
			}
			fmt.Fprintf(w, "%s %s: %s\n", mark, f.Path, f.Description)
		}
	}

	if shown > 0 || len(fixes) > 0 {
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "Summary: %d passed, %d info, %d warnings, %d errors\n",
		report.Summary.Passed, report.Summary.Info, report.Summary.Warnings, report.Summary.Errors)
}

func statusIcon(s doctor.Severity) string {
	switch s {
	case doctor.SeverityPass:
		return "✓"
	case doctor.SeverityInfo:
		return "ℹ"
	case doctor.SeverityWarning:
		return "⚠"
	case doctor.SeverityError:
		return "✗"
	default:
		return "?"
	}
}
