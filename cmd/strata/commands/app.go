package commands

import (
	"context"
	"log/slog"
	"maps"
	"os"

	"github.com/thoreinstein/strata/internal/backup"
	"github.com/thoreinstein/strata/internal/config"
	"github.com/thoreinstein/strata/internal/errors"
	"github.com/thoreinstein/strata/internal/logging"
	"github.com/thoreinstein/strata/internal/paths"
	"github.com/thoreinstein/strata/pkg/keypath"
	"github.com/thoreinstein/strata/pkg/provider"
)

// app is the provider assembled for one command invocation.
type app struct {
	*provider.Provider

	// types maps each store name to its configured backend type.
	types map[string]string

	backups *backup.Session
}

// openApp validates the loaded configuration, builds every store it
// declares and loads them. The caller must Close the result.
func openApp(ctx context.Context) (*app, error) {
	if configLoadErr != nil {
		return nil, errors.NewConfigError(configLoadErr)
	}
	logger := logging.FromContext(ctx)

	p, err := newProvider(logger)
	if err != nil {
		return nil, err
	}
	a := &app{Provider: p, types: make(map[string]string)}

	stores := append(fileStores(extraFiles), cfg.Stores...)

	// Each Add goes to the front of its tier, so walk the list backwards
	// to keep the first declared store on top.
	for i := len(stores) - 1; i >= 0; i-- {
		sc := stores[i]
		spec, err := expandSpec(sc.Spec)
		if err != nil {
			_ = p.Close()
			return nil, errors.Wrapf(err, "store %q", sc.Name)
		}
		if _, _, err := p.Add(ctx, sc.Name, spec).Wait(ctx); err != nil {
			_ = p.Close()
			return nil, errors.Wrapf(err, "loading store %q", sc.Name)
		}
		a.types[sc.Name] = sc.Type
		logger.Debug("store loaded", "store", sc.Name, "type", sc.Type)
	}
	return a, nil
}

// newProvider validates the loaded configuration and returns an empty
// provider using its delimiter.
func newProvider(logger *slog.Logger) (*provider.Provider, error) {
	engines := defaultEngines(logger)
	if errs := config.Validate(cfg, engines.Types()); len(errs) > 0 {
		return nil, errors.NewConfigError(errors.Join(errs...))
	}
	delim, _ := config.ParseDelimiter(cfg.Delimiter)

	return provider.New(
		provider.WithEngines(engines),
		provider.WithAddressor(keypath.Addressor{Delimiter: delim}),
		provider.WithLogger(logger),
	), nil
}

func defaultEngines(logger *slog.Logger) provider.Engines {
	return provider.DefaultEngines(provider.Deps{
		Logger:  logger,
		Environ: os.Environ,
		// argv stores declared in config see no arguments; the CLI's own
		// flags are not configuration.
		Args: []string{},
	})
}

// fileStores turns --file paths into store declarations.
func fileStores(files []string) []config.StoreConfig {
	stores := make([]config.StoreConfig, 0, len(files))
	for _, f := range files {
		stores = append(stores, config.StoreConfig{
			Name: "file:" + f,
			Spec: provider.Spec{Type: "file", Options: map[string]any{"file": f}},
		})
	}
	return stores
}

// expandSpec resolves "~" in the path options of file-backed stores.
func expandSpec(spec provider.Spec) (provider.Spec, error) {
	switch spec.Type {
	case "file", "dir", "viper":
	default:
		return spec, nil
	}
	if spec.Options == nil {
		return spec, nil
	}
	opts := maps.Clone(spec.Options)
	for _, key := range []string{"file", "dir"} {
		s, ok := opts[key].(string)
		if !ok {
			continue
		}
		expanded, err := paths.Expand(s)
		if err != nil {
			return spec, err
		}
		opts[key] = expanded
	}
	spec.Options = opts
	return spec, nil
}

// backupManager returns the snapshot manager configured by the backup
// section of the config file.
func backupManager() *backup.Manager {
	return backup.NewManager(
		backup.WithBackupDir(cfg.Backup.Dir),
		backup.WithRetentionCount(cfg.Backup.Retention),
	)
}

// snapshotWritable takes one snapshot of every writable store before a
// change. It does nothing when backups are disabled.
func (a *app) snapshotWritable(ctx context.Context) error {
	if !cfg.Backup.Enabled {
		return nil
	}
	if a.backups == nil {
		a.backups = backup.NewSession(backupManager())
	}
	for _, e := range a.Stores() {
		if e.ReadOnly {
			continue
		}
		if err := a.backups.EnsureBackedUp(ctx, e.Name, e.Store); err != nil {
			return err
		}
	}
	return nil
}
