// Package commands implements the CLI commands for strata.
package commands

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/thoreinstein/strata/cmd"
	"github.com/thoreinstein/strata/internal/backup"
	"github.com/thoreinstein/strata/internal/config"
	"github.com/thoreinstein/strata/internal/errors"
	"github.com/thoreinstein/strata/internal/logging"
)

var (
	// cfgFile holds the value of the --config flag.
	cfgFile string

	// verbosity holds the count of -v flags.
	verbosity int

	// quiet holds the value of the -q/--quiet flag.
	quiet bool

	// logFormat holds the value of the --log-format flag.
	logFormat string

	// logFile holds the path of the JSON log file.
	logFile string

	// extraFiles holds --file paths layered above the configured stores.
	extraFiles []string

	// outputFlag holds the value of the --output flag.
	outputFlag string
)

var (
	cfg           *config.Config
	configLoadErr error
	logSink       io.Closer
)

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "",
		"config file (default: ./config.yaml, then ~/.config/strata/config.yaml)")
	flags.CountVarP(&verbosity, "verbose", "v",
		"increase verbosity level (e.g., -v, -vv, -vvv)")
	flags.BoolVarP(&quiet, "quiet", "q", false,
		"suppress everything but errors")
	flags.StringVar(&logFormat, "log-format", "",
		"log format: text, json (default from config)")
	flags.StringVar(&logFile, "log-file", "",
		"also write logs to this file in JSON format")
	flags.StringArrayVarP(&extraFiles, "file", "f", nil,
		"layer a file store above the configured stores (repeatable, first wins)")
	flags.StringVarP(&outputFlag, "output", "o", "",
		"output format: json, yaml, toml, ini (default from config)")

	rootCmd.Version = cmd.Version
	backup.Version = cmd.Version
	rootCmd.SetVersionTemplate("strata version {{.Version}}\n")

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
}

func initConfig() {
	config.Init()
	cfg, configLoadErr = config.Load(cfgFile)
}

var rootCmd = &cobra.Command{
	Use:   "strata",
	Short: "Read and write layered configuration",
	Long: `strata resolves configuration from an ordered stack of stores: files,
directories, environment variables, HTTP endpoints and etcd. Reads return
the first store that holds a key, with mappings deep-merged across stores.
Writes go to every writable store.

Keys are segments joined by the delimiter (":" by default), for example
database:host. The store stack is declared in config.yaml.`,
	Example: `  # Read one value and the whole merged tree
  strata get database:host
  strata get -o json

  # Write a value and persist it
  strata set database:port 5432

  # Layer an extra file on top for this invocation
  strata get -f ./local.yaml database

  # Serve the merged configuration over HTTP
  strata serve --addr :8080`,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return setupLogging(cmd)
	},
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

// setupLogging installs the logger chosen by flags and config on the
// command's context.
func setupLogging(cmd *cobra.Command) error {
	if quiet && verbosity > 0 {
		return errors.NewUserError(errors.New("cannot use --quiet and --verbose together"), "")
	}

	level := slog.LevelWarn
	switch {
	case quiet:
		level = slog.LevelError
	case verbosity > 0:
		level = logging.LevelFromVerbosity(verbosity)
	case cfg != nil && cfg.Log.Level != "":
		l, err := logging.ParseLevel(cfg.Log.Level)
		if err != nil {
			return errors.NewConfigError(err)
		}
		level = l
	}

	formatName := logFormat
	if formatName == "" && cfg != nil {
		formatName = cfg.Log.Format
	}
	format, err := logging.ParseFormat(formatName)
	if err != nil {
		return errors.NewUserError(err, "")
	}

	lc := logging.Config{Level: level, Format: format, Output: cmd.ErrOrStderr()}

	path := logFile
	if path == "" && cfg != nil {
		path = cfg.Log.File
	}
	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return errors.NewUserError(err, "failed to open log file")
		}
		lc.File = f
		logSink = f
	}

	logger := logging.New(lc)
	slog.SetDefault(logger)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(logging.NewContext(ctx, logger))
	return nil
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	defer func() {
		if logSink != nil {
			_ = logSink.Close()
			logSink = nil
		}
	}()
	return rootCmd.ExecuteContext(ctx)
}
